package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
)

// Service is the public interface of the subscription lifecycle engine. The
// command methods and HandleWebhook terminate in the same reconciliation write
// path, so the two never diverge: a command's state write and the provider's
// corroborating webhook converge on identical company state.
type Service interface {
	// Entitlement reads
	Info(ctx context.Context, companyID uuid.UUID) (SubscriptionInfo, error)

	// Seat management (the enforcement point for the seat ceiling)
	AddSeat(ctx context.Context, companyID, memberID uuid.UUID) error
	RemoveSeat(ctx context.Context, companyID, memberID uuid.UUID) error

	// User-initiated billing commands
	EnsureBillingCustomer(ctx context.Context, companyID uuid.UUID) (string, error)
	CreateSetupIntent(ctx context.Context, companyID uuid.UUID) (string, error)
	CompleteSubscription(ctx context.Context, companyID uuid.UUID, tier PlanTier, period BillingPeriod) (*Company, error)
	CancelSubscription(ctx context.Context, companyID uuid.UUID) error

	// Webhook ingestion
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
}

type service struct {
	catalog   *Catalog
	provider  BillingProvider
	companies CompanyStore
	payments  PaymentStore
	log       *slog.Logger
	now       func() time.Time
}

// ServiceOption configures a Service instance.
type ServiceOption func(*service)

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(log *slog.Logger) ServiceOption {
	return func(s *service) {
		if log != nil {
			s.log = log
		}
	}
}

// WithClock overrides the time source. Intended for tests that pin "now".
func WithClock(now func() time.Time) ServiceOption {
	return func(s *service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService creates the subscription lifecycle service. Panics on nil
// required dependencies to fail fast during initialization; a misconfigured
// engine must not come up half-wired.
func NewService(catalog *Catalog, provider BillingProvider, companies CompanyStore, payments PaymentStore, opts ...ServiceOption) Service {
	if catalog == nil {
		panic("subscription: Catalog is required")
	}
	if provider == nil {
		panic("subscription: BillingProvider is required")
	}
	if companies == nil {
		panic("subscription: CompanyStore is required")
	}
	if payments == nil {
		panic("subscription: PaymentStore is required")
	}

	s := &service{
		catalog:   catalog,
		provider:  provider,
		companies: companies,
		payments:  payments,
		log:       slog.Default(),
		now:       func() time.Time { return time.Now().UTC() },
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Info derives the entitlement view for a company. An absent company yields
// the permissive trial default so a not-yet-loaded record never locks anyone
// out.
func (s *service) Info(ctx context.Context, companyID uuid.UUID) (SubscriptionInfo, error) {
	company, err := s.companies.Get(ctx, companyID)
	if err != nil {
		if errors.Is(err, ErrCompanyNotFound) {
			return CalculateAt(nil, s.now()), nil
		}
		return SubscriptionInfo{}, err
	}
	return CalculateAt(company, s.now()), nil
}

// AddSeat seats a member, enforcing the seat ceiling at the point of addition.
// Idempotent on membership: seating an already-seated member is a no-op.
func (s *service) AddSeat(ctx context.Context, companyID, memberID uuid.UUID) error {
	company, err := s.companies.Get(ctx, companyID)
	if err != nil {
		return err
	}

	if company.HasSeat(memberID) {
		return nil
	}

	if !CalculateAt(company, s.now()).CanAddSeat() {
		return ErrSeatLimitReached
	}

	company.SeatedMemberIDs = append(company.SeatedMemberIDs, memberID)
	company.UpdatedAt = s.now()
	return s.companies.Save(ctx, company)
}

// RemoveSeat releases a member's seat. Removing a member that holds no seat
// is a no-op.
func (s *service) RemoveSeat(ctx context.Context, companyID, memberID uuid.UUID) error {
	company, err := s.companies.Get(ctx, companyID)
	if err != nil {
		return err
	}

	if !company.HasSeat(memberID) {
		return nil
	}

	company.SeatedMemberIDs = slices.DeleteFunc(company.SeatedMemberIDs, func(id uuid.UUID) bool {
		return id == memberID
	})
	company.UpdatedAt = s.now()
	return s.companies.Save(ctx, company)
}

// EnsureBillingCustomer returns the company's billing customer reference,
// creating one with the provider on first use. Provider customer creation is
// not idempotent, so this is guarded by a check-then-create read immediately
// before the call; two concurrent first-time calls can still create two
// provider customers, an accepted degraded outcome that is not corrected.
func (s *service) EnsureBillingCustomer(ctx context.Context, companyID uuid.UUID) (string, error) {
	company, err := s.companies.Get(ctx, companyID)
	if err != nil {
		return "", err
	}

	if company.BillingCustomerID != "" {
		return company.BillingCustomerID, nil
	}

	customerID, err := s.provider.CreateCustomer(ctx, company)
	if err != nil {
		return "", fmt.Errorf("create billing customer: %w", err)
	}

	company.BillingCustomerID = customerID
	company.UpdatedAt = s.now()
	if err := s.companies.Save(ctx, company); err != nil {
		return "", fmt.Errorf("persist billing customer ref: %w", err)
	}

	s.log.InfoContext(ctx, "billing customer created",
		"company_id", companyID, "billing_customer_id", customerID)

	return customerID, nil
}

// CreateSetupIntent prepares payment method collection and returns the client
// secret. No state mutation beyond lazy billing customer creation.
func (s *service) CreateSetupIntent(ctx context.Context, companyID uuid.UUID) (string, error) {
	customerID, err := s.EnsureBillingCustomer(ctx, companyID)
	if err != nil {
		return "", err
	}

	secret, err := s.provider.CreateSetupIntent(ctx, customerID)
	if err != nil {
		return "", fmt.Errorf("create setup intent: %w", err)
	}
	return secret, nil
}

// CompleteSubscription creates the external subscription for a (tier, period)
// pair and immediately folds the provider's snapshot into the company record
// using the same mapping as the webhook path. The corroborating webhook's
// later arrival is a no-op re-application, not a second effect.
func (s *service) CompleteSubscription(ctx context.Context, companyID uuid.UUID, tier PlanTier, period BillingPeriod) (*Company, error) {
	priceID, err := s.catalog.PriceFor(tier, period)
	if err != nil {
		return nil, err
	}

	customerID, err := s.EnsureBillingCustomer(ctx, companyID)
	if err != nil {
		return nil, err
	}

	// Provider call happens without holding any internal lock; the state
	// write below is a short, independent transaction.
	snapshot, err := s.provider.CreateSubscription(ctx, customerID, priceID)
	if err != nil {
		return nil, fmt.Errorf("create subscription: %w", err)
	}

	company, err := s.companies.Get(ctx, companyID)
	if err != nil {
		return nil, err
	}

	s.applySnapshot(company, snapshot)
	if err := s.companies.Save(ctx, company); err != nil {
		return nil, fmt.Errorf("persist subscription state: %w", err)
	}

	s.log.InfoContext(ctx, "subscription completed",
		"company_id", companyID, "subscription_id", snapshot.SubscriptionID,
		"tier", tier, "period", period)

	return company, nil
}

// CancelSubscription requests cancellation at period end and optimistically
// marks the company cancelled ahead of the corroborating webhook, so the UI
// reflects intent without waiting on webhook latency. If the webhook later
// reports a different status, last write wins.
func (s *service) CancelSubscription(ctx context.Context, companyID uuid.UUID) error {
	company, err := s.companies.Get(ctx, companyID)
	if err != nil {
		return err
	}

	subscriptionID := company.SubscriptionID
	if subscriptionID == "" {
		// Stored reference is stale or missing; fall back to the provider's
		// view of the customer's active subscriptions.
		if company.BillingCustomerID == "" {
			return ErrNoActiveSubscription
		}
		active, err := s.provider.ListActiveSubscriptions(ctx, company.BillingCustomerID)
		if err != nil {
			return fmt.Errorf("list active subscriptions: %w", err)
		}
		if len(active) == 0 {
			return ErrNoActiveSubscription
		}
		subscriptionID = active[0]
	}

	if err := s.provider.CancelSubscription(ctx, subscriptionID); err != nil {
		return fmt.Errorf("cancel subscription: %w", err)
	}

	company.Status = StatusCancelled
	company.UpdatedAt = s.now()
	if err := s.companies.Save(ctx, company); err != nil {
		return fmt.Errorf("persist cancellation: %w", err)
	}

	s.log.InfoContext(ctx, "subscription cancelled",
		"company_id", companyID, "subscription_id", subscriptionID)

	return nil
}

// HandleWebhook authenticates, deduplicates, and dispatches an inbound
// provider event. Delivery is concurrent and at-least-once; every handler
// below is safe to invoke more than once with the same event. Unknown event
// types and events that resolve to no company are acknowledged (nil) so the
// provider does not retry deliveries this engine deliberately ignores.
func (s *service) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	event, err := s.provider.VerifyEvent(payload, signature)
	if err != nil {
		return err
	}

	switch event.Type {
	case EventPaymentCaptured:
		return s.handlePaymentCaptured(ctx, event)
	case EventSubscriptionUpdated:
		return s.handleSubscriptionSnapshot(ctx, event)
	case EventSubscriptionDeleted:
		return s.handleSubscriptionDeleted(ctx, event)
	case EventPaymentFailed:
		return s.handlePaymentFailed(ctx, event)
	default:
		s.log.DebugContext(ctx, "ignoring unhandled billing event",
			"provider_event", event.ProviderEvent, "event_id", event.EventID)
		return nil
	}
}

// handlePaymentCaptured inserts the payment row exactly once, keyed by the
// provider's payment reference. Payments without company/invoice metadata are
// non-portal payments and are acknowledged without action.
func (s *service) handlePaymentCaptured(ctx context.Context, event *WebhookEvent) error {
	if event.CompanyID == "" || event.InvoiceID == "" {
		s.log.DebugContext(ctx, "payment without portal metadata, skipping",
			"external_payment_id", event.ExternalPaymentID)
		return nil
	}

	companyID, err := uuid.Parse(event.CompanyID)
	if err != nil {
		s.log.WarnContext(ctx, "payment metadata carries malformed company id",
			"company_id", event.CompanyID, "external_payment_id", event.ExternalPaymentID)
		return nil
	}

	if _, err := s.companies.Get(ctx, companyID); err != nil {
		if errors.Is(err, ErrCompanyNotFound) {
			s.log.WarnContext(ctx, "payment references unknown company",
				"company_id", companyID, "external_payment_id", event.ExternalPaymentID)
			return nil
		}
		return err
	}

	payment := &Payment{
		ID:                uuid.New(),
		CompanyID:         companyID,
		ExternalPaymentID: event.ExternalPaymentID,
		InvoiceID:         event.InvoiceID,
		Amount:            event.Amount,
		RecordedAt:        s.now(),
	}

	if err := s.payments.Insert(ctx, payment); err != nil {
		if errors.Is(err, ErrPaymentAlreadyRecorded) {
			s.log.DebugContext(ctx, "duplicate payment delivery, already recorded",
				"external_payment_id", event.ExternalPaymentID)
			return nil
		}
		return err
	}

	s.log.InfoContext(ctx, "payment recorded",
		"company_id", companyID, "external_payment_id", event.ExternalPaymentID,
		"invoice_id", event.InvoiceID, "amount", payment.Amount.Amount)

	return nil
}

// handleSubscriptionSnapshot overwrites the company's subscription state with
// the event's full snapshot. Unresolvable customer references are expected
// (provider test traffic, foreign accounts) and acknowledged.
func (s *service) handleSubscriptionSnapshot(ctx context.Context, event *WebhookEvent) error {
	company, ok, err := s.resolveCompany(ctx, event)
	if err != nil || !ok {
		return err
	}

	s.applySnapshot(company, event.Subscription)
	if err := s.companies.Save(ctx, company); err != nil {
		return err
	}

	s.log.InfoContext(ctx, "subscription snapshot applied",
		"company_id", company.ID, "subscription_id", company.SubscriptionID,
		"status", company.Status, "tier", company.Plan)

	return nil
}

// handleSubscriptionDeleted marks the company cancelled and clears the stored
// subscription reference. Terminal: only a fresh snapshot from a new
// subscription resurrects the record.
func (s *service) handleSubscriptionDeleted(ctx context.Context, event *WebhookEvent) error {
	company, ok, err := s.resolveCompany(ctx, event)
	if err != nil || !ok {
		return err
	}

	company.Status = StatusCancelled
	company.SubscriptionID = ""
	company.UpdatedAt = s.now()
	if err := s.companies.Save(ctx, company); err != nil {
		return err
	}

	s.log.InfoContext(ctx, "subscription deleted", "company_id", company.ID)
	return nil
}

// handlePaymentFailed moves the company into grace. Plan and period end stay
// untouched; grace is about payment health, not entitlement shape.
func (s *service) handlePaymentFailed(ctx context.Context, event *WebhookEvent) error {
	company, ok, err := s.resolveCompany(ctx, event)
	if err != nil || !ok {
		return err
	}

	company.Status = StatusGrace
	company.UpdatedAt = s.now()
	if err := s.companies.Save(ctx, company); err != nil {
		return err
	}

	s.log.InfoContext(ctx, "payment failed, company in grace", "company_id", company.ID)
	return nil
}

// resolveCompany looks up the company by the event's billing customer
// reference. Returns ok=false with a nil error when no company matches, which
// the caller acknowledges rather than surfaces.
func (s *service) resolveCompany(ctx context.Context, event *WebhookEvent) (*Company, bool, error) {
	if event.CustomerID == "" {
		s.log.WarnContext(ctx, "billing event without customer reference",
			"provider_event", event.ProviderEvent, "event_id", event.EventID)
		return nil, false, nil
	}

	company, err := s.companies.GetByBillingCustomerID(ctx, event.CustomerID)
	if err != nil {
		if errors.Is(err, ErrCompanyNotFound) {
			s.log.WarnContext(ctx, "billing event for unknown customer",
				"billing_customer_id", event.CustomerID, "provider_event", event.ProviderEvent)
			return nil, false, nil
		}
		return nil, false, err
	}
	return company, true, nil
}

// applySnapshot folds a provider subscription snapshot into the company
// record. Shared by the command path and the webhook path so the two converge
// on identical state. Full overwrite, not a merge.
func (s *service) applySnapshot(company *Company, snapshot *SubscriptionSnapshot) {
	company.SubscriptionID = snapshot.SubscriptionID
	company.Status = statusFromProvider(snapshot.Status, snapshot.CancelAtPeriodEnd)
	company.PeriodEnd = snapshot.PeriodEnd
	company.UpdatedAt = s.now()

	if key, ok := s.catalog.ByPriceID(snapshot.PriceID); ok {
		company.Plan = key.Tier
		company.Period = key.Period
		company.MaxSeats = s.catalog.SeatsFor(key.Tier)
	} else if snapshot.PriceID != "" {
		// Price not in the catalog: keep the current tier rather than guess.
		s.log.Warn("subscription snapshot carries unknown price",
			"price_id", snapshot.PriceID, "company_id", company.ID)
	}
}
