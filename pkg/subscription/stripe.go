package subscription

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

// StripeConfig holds configuration for the Stripe billing provider.
type StripeConfig struct {
	SecretKey     string `env:"STRIPE_SECRET_KEY,required"`
	WebhookSecret string `env:"STRIPE_WEBHOOK_SECRET,required"`
}

// StripeProvider implements BillingProvider for Stripe.
type StripeProvider struct {
	client        *stripe.Client
	webhookSecret string
	log           *slog.Logger
}

// Metadata keys carried on Stripe objects so webhook events can be traced
// back to portal entities. Payments missing these are non-portal payments.
const (
	stripeMetaCompanyID = "company_id"
	stripeMetaInvoiceID = "invoice_id"
)

// NewStripeProvider creates a new Stripe billing provider.
func NewStripeProvider(config StripeConfig, log *slog.Logger) (*StripeProvider, error) {
	if config.SecretKey == "" {
		return nil, errors.New("stripe secret key is required")
	}
	if config.WebhookSecret == "" {
		return nil, errors.New("stripe webhook secret is required")
	}
	if log == nil {
		log = slog.Default()
	}

	return &StripeProvider{
		client:        stripe.NewClient(config.SecretKey, nil),
		webhookSecret: config.WebhookSecret,
		log:           log,
	}, nil
}

// CreateCustomer registers the company as a Stripe customer. The company ID
// travels in customer metadata so provider-side objects stay traceable.
func (p *StripeProvider) CreateCustomer(ctx context.Context, company *Company) (string, error) {
	params := &stripe.CustomerCreateParams{
		Name: stripe.String(company.ID.String()),
		Metadata: map[string]string{
			stripeMetaCompanyID: company.ID.String(),
		},
	}

	customer, err := p.client.V1Customers.Create(ctx, params)
	if err != nil {
		return "", errors.Join(ErrProviderUnavailable, fmt.Errorf("stripe create customer: %w", err))
	}
	return customer.ID, nil
}

// CreateSetupIntent prepares off-session payment method collection and
// returns the client secret for the frontend.
func (p *StripeProvider) CreateSetupIntent(ctx context.Context, customerID string) (string, error) {
	params := &stripe.SetupIntentCreateParams{
		Customer: stripe.String(customerID),
		Usage:    stripe.String("off_session"),
	}

	intent, err := p.client.V1SetupIntents.Create(ctx, params)
	if err != nil {
		return "", errors.Join(ErrProviderUnavailable, fmt.Errorf("stripe create setup intent: %w", err))
	}
	return intent.ClientSecret, nil
}

// CreateSubscription starts a Stripe subscription on the given price and
// returns its snapshot for immediate local application.
func (p *StripeProvider) CreateSubscription(ctx context.Context, customerID, priceID string) (*SubscriptionSnapshot, error) {
	params := &stripe.SubscriptionCreateParams{
		Customer: stripe.String(customerID),
		Items: []*stripe.SubscriptionCreateItemParams{
			{Price: stripe.String(priceID)},
		},
	}

	sub, err := p.client.V1Subscriptions.Create(ctx, params)
	if err != nil {
		return nil, errors.Join(ErrProviderUnavailable, fmt.Errorf("stripe create subscription: %w", err))
	}
	return snapshotFromStripe(sub), nil
}

// CancelSubscription requests cancellation at period end. The subscription
// stays active in Stripe until then; the deleted webhook arrives at rollover.
func (p *StripeProvider) CancelSubscription(ctx context.Context, subscriptionID string) error {
	params := &stripe.SubscriptionUpdateParams{
		CancelAtPeriodEnd: stripe.Bool(true),
	}

	if _, err := p.client.V1Subscriptions.Update(ctx, subscriptionID, params); err != nil {
		return errors.Join(ErrProviderUnavailable, fmt.Errorf("stripe cancel subscription: %w", err))
	}
	return nil
}

// ListActiveSubscriptions returns the IDs of the customer's active Stripe
// subscriptions.
func (p *StripeProvider) ListActiveSubscriptions(ctx context.Context, customerID string) ([]string, error) {
	params := &stripe.SubscriptionListParams{
		Customer: stripe.String(customerID),
		Status:   stripe.String(string(stripe.SubscriptionStatusActive)),
	}

	var ids []string
	var iterErr error
	p.client.V1Subscriptions.List(ctx, params)(func(sub *stripe.Subscription, err error) bool {
		if err != nil {
			iterErr = errors.Join(ErrProviderUnavailable, fmt.Errorf("stripe list subscriptions: %w", err))
			return false
		}
		ids = append(ids, sub.ID)
		return true
	})
	if iterErr != nil {
		return nil, iterErr
	}
	return ids, nil
}

// VerifyEvent authenticates the raw webhook payload against the
// Stripe-Signature header and normalizes the event. The body must be the raw,
// unparsed bytes; Stripe's scheme signs exactly what was sent.
func (p *StripeProvider) VerifyEvent(payload []byte, signature string) (*WebhookEvent, error) {
	// Ignore API version mismatch so a provider-side version bump does not
	// silently drop every event on the floor.
	event, err := webhook.ConstructEventWithOptions(payload, signature, p.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, errors.Join(ErrSignatureInvalid, err)
	}

	normalized := &WebhookEvent{
		Type:          EventUnknown,
		ProviderEvent: string(event.Type),
		EventID:       event.ID,
	}

	switch event.Type {
	case "payment_intent.succeeded":
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			return nil, fmt.Errorf("parse payment intent: %w", err)
		}
		normalized.Type = EventPaymentCaptured
		normalized.ExternalPaymentID = intent.ID
		normalized.CompanyID = intent.Metadata[stripeMetaCompanyID]
		normalized.InvoiceID = intent.Metadata[stripeMetaInvoiceID]
		normalized.Amount = Money{
			Amount:   intent.Amount,
			Currency: strings.ToUpper(string(intent.Currency)),
		}
		if intent.Customer != nil {
			normalized.CustomerID = intent.Customer.ID
		}

	case "customer.subscription.created", "customer.subscription.updated":
		sub, err := parseStripeSubscription(event.Data.Raw)
		if err != nil {
			return nil, err
		}
		normalized.Type = EventSubscriptionUpdated
		normalized.Subscription = snapshotFromStripe(sub)
		if sub.Customer != nil {
			normalized.CustomerID = sub.Customer.ID
		}

	case "customer.subscription.deleted":
		sub, err := parseStripeSubscription(event.Data.Raw)
		if err != nil {
			return nil, err
		}
		normalized.Type = EventSubscriptionDeleted
		normalized.Subscription = snapshotFromStripe(sub)
		if sub.Customer != nil {
			normalized.CustomerID = sub.Customer.ID
		}

	case "invoice.payment_failed":
		var invoice stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
			return nil, fmt.Errorf("parse invoice: %w", err)
		}
		normalized.Type = EventPaymentFailed
		normalized.InvoiceID = invoice.ID
		if invoice.Customer != nil {
			normalized.CustomerID = invoice.Customer.ID
		}
	}

	return normalized, nil
}

func parseStripeSubscription(raw json.RawMessage) (*stripe.Subscription, error) {
	var sub stripe.Subscription
	if err := json.Unmarshal(raw, &sub); err != nil {
		return nil, fmt.Errorf("parse subscription: %w", err)
	}
	return &sub, nil
}

// snapshotFromStripe maps a Stripe subscription object onto the normalized
// snapshot. Used by both CreateSubscription and VerifyEvent so the command
// path and the webhook path see identical state.
func snapshotFromStripe(sub *stripe.Subscription) *SubscriptionSnapshot {
	snapshot := &SubscriptionSnapshot{
		SubscriptionID:    sub.ID,
		Status:            string(sub.Status),
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
	}

	if sub.Items != nil && len(sub.Items.Data) > 0 {
		item := sub.Items.Data[0]
		if item.Price != nil {
			snapshot.PriceID = item.Price.ID
		}
		if item.CurrentPeriodEnd != 0 {
			end := time.Unix(item.CurrentPeriodEnd, 0).UTC()
			snapshot.PeriodEnd = &end
		}
	}

	if snapshot.PeriodEnd == nil && sub.TrialEnd != 0 {
		end := time.Unix(sub.TrialEnd, 0).UTC()
		snapshot.PeriodEnd = &end
	}

	return snapshot
}
