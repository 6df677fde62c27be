// Package subscription implements the subscription and entitlement lifecycle
// engine: the logic that keeps a company's internal entitlement state
// synchronized with an external, webhook-driven billing provider while
// tolerating out-of-order delivery, duplicate delivery, and partial failure.
//
// # Architecture
//
// The package has five cooperating parts:
//
//   - Entitlement calculator: CalculateAt turns a persisted Company record
//     into a SubscriptionInfo view (tier, status, seat usage, trial
//     countdown, active flag). Pure, total, no I/O.
//   - Enforcement predicates: CanAddSeat, ShouldShowUpgradeNudge,
//     ShouldLockOut, ShouldShowBanner over SubscriptionInfo.
//   - Webhook processing: Service.HandleWebhook verifies the raw payload
//     through the BillingProvider, then dispatches per event category.
//   - Reconciliation handlers: one per event category, all writing through
//     the same company/payment stores.
//   - Command handlers: user-initiated actions (setup intent, complete,
//     cancel) that call the provider and then apply the same reconciliation
//     rules as the webhook path.
//
// # Idempotency
//
// Webhook delivery is assumed concurrent and at-least-once. Payment events
// dedup on the provider's payment reference via the PaymentStore's
// insert-if-absent contract. Subscription events are idempotent by
// construction: each carries the provider's full current snapshot and is
// applied as a whole-record overwrite, so replays and reorderings of the same
// snapshot are harmless.
//
// # Quick start
//
//	provider, err := subscription.NewStripeProvider(stripeCfg, logger)
//	if err != nil {
//		// handle error
//	}
//
//	store := subscription.NewPostgresStore(pool)
//	svc := subscription.NewService(subscription.DefaultCatalog(), provider, store, store,
//		subscription.WithLogger(logger))
//
//	// Webhook endpoint: hand the raw body and signature header to the engine.
//	err = svc.HandleWebhook(ctx, rawBody, r.Header.Get("Stripe-Signature"))
//
//	// Entitlement reads are cheap and recomputed on every call.
//	info, err := svc.Info(ctx, companyID)
//	if info.ShouldLockOut() {
//		// render paywall
//	}
package subscription
