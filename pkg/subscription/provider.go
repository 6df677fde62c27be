package subscription

import (
	"context"
	"time"
)

// BillingProvider defines the minimal interface for payment provider
// integrations. This abstraction keeps the reconciliation core free of vendor
// lock-in; implementations should use official provider SDKs and handle
// provider-specific quirks internally.
type BillingProvider interface {
	// CreateCustomer registers a billing customer for the company and returns
	// the provider's opaque customer reference. Not idempotent at the provider
	// level; callers must check-then-create.
	CreateCustomer(ctx context.Context, company *Company) (string, error)

	// CreateSetupIntent prepares the customer for collecting a payment method
	// and returns the client secret for the frontend to complete the flow.
	CreateSetupIntent(ctx context.Context, customerID string) (string, error)

	// CreateSubscription starts a subscription on the given price and returns
	// the provider's view of it as a snapshot, so the command path can apply
	// the exact same mapping as the corroborating webhook.
	CreateSubscription(ctx context.Context, customerID, priceID string) (*SubscriptionSnapshot, error)

	// CancelSubscription requests cancellation at period end.
	CancelSubscription(ctx context.Context, subscriptionID string) error

	// ListActiveSubscriptions returns the IDs of the customer's currently
	// active subscriptions. Fallback for a stale or missing stored reference.
	ListActiveSubscriptions(ctx context.Context, customerID string) ([]string, error)

	// VerifyEvent authenticates raw webhook bytes against the provided
	// signature and returns a normalized event. Verification must run over the
	// raw, unparsed body; parsing before verifying is a correctness bug.
	// Returns ErrSignatureInvalid when verification fails.
	VerifyEvent(payload []byte, signature string) (*WebhookEvent, error)
}

// EventType represents the normalized billing event category. Each provider
// implementation maps its specific event names onto these.
type EventType string

const (
	EventPaymentCaptured     EventType = "payment_captured"
	EventSubscriptionUpdated EventType = "subscription_updated" // full-state snapshot, covers created too
	EventSubscriptionDeleted EventType = "subscription_deleted"
	EventPaymentFailed       EventType = "payment_failed"

	// EventUnknown covers provider event types this engine does not handle.
	// Always acknowledged, never dispatched (forward compatibility).
	EventUnknown EventType = "unknown"
)

// SubscriptionSnapshot is the provider's full current state of a subscription.
// Snapshots are idempotent by construction: applying the same snapshot twice
// yields the same company record, and a stale partial update cannot corrupt
// state because every snapshot is complete.
type SubscriptionSnapshot struct {
	SubscriptionID    string
	Status            string // provider status vocabulary (active, trialing, past_due, ...)
	CancelAtPeriodEnd bool
	PriceID           string
	PeriodEnd         *time.Time
}

// WebhookEvent is a normalized, verified billing provider event.
type WebhookEvent struct {
	Type          EventType
	ProviderEvent string // original provider event name
	EventID       string // provider-issued event identifier
	CustomerID    string // provider's customer reference (billing customer ref)

	// Subscription fields, set for subscription events.
	Subscription *SubscriptionSnapshot

	// Payment fields, set for payment events.
	ExternalPaymentID string
	InvoiceID         string
	CompanyID         string // carried in event metadata; empty for non-portal payments
	Amount            Money
}

// statusFromProvider maps the provider's subscription status vocabulary onto
// the internal enum. An explicit cancel-at-period-end flag wins over status.
func statusFromProvider(status string, cancelAtPeriodEnd bool) SubscriptionStatus {
	if cancelAtPeriodEnd {
		return StatusCancelled
	}
	switch status {
	case "active":
		return StatusActive
	case "trialing":
		return StatusTrial
	case "past_due":
		return StatusGrace
	default:
		return StatusCancelled
	}
}
