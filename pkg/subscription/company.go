package subscription

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// Company holds the billing-relevant slice of a company record.
// It is the single source of truth for entitlement: billing provider events
// are folded into it by the reconciliation path and never re-consulted.
type Company struct {
	ID                uuid.UUID
	BillingCustomerID string // provider's customer ID (cus_xxx); empty until first billing interaction
	SubscriptionID    string // provider's subscription ID (sub_xxx); empty when none active
	Status            SubscriptionStatus
	Plan              PlanTier
	Period            BillingPeriod
	PeriodEnd         *time.Time // current billing period end, doubles as trial end for trial companies
	MaxSeats          int
	SeatedMemberIDs   []uuid.UUID
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// HasSeat reports whether the member currently occupies a seat.
func (c *Company) HasSeat(memberID uuid.UUID) bool {
	return slices.Contains(c.SeatedMemberIDs, memberID)
}

// Payment records a single confirmed payment from the billing provider.
// Rows are immutable once written; ExternalPaymentID carries a uniqueness
// constraint and serves as the dedup key for at-least-once webhook delivery.
type Payment struct {
	ID                uuid.UUID
	CompanyID         uuid.UUID
	ExternalPaymentID string // provider's payment ID (pi_xxx), unique
	InvoiceID         string
	Amount            Money
	RecordedAt        time.Time
}

// Money represents a monetary amount in the smallest currency unit.
// For example, $10.99 USD would be Amount: 1099, Currency: "USD".
type Money struct {
	Amount   int64  // Amount in smallest currency unit (cents for USD)
	Currency string // ISO 4217 currency code
}

// SubscriptionStatus represents the current state of a company's subscription.
type SubscriptionStatus string

const (
	StatusTrial     SubscriptionStatus = "trial"
	StatusActive    SubscriptionStatus = "active"
	StatusGrace     SubscriptionStatus = "grace" // payment failed, not yet locked out
	StatusCancelled SubscriptionStatus = "cancelled"
	StatusExpired   SubscriptionStatus = "expired"
)

// PlanTier represents a subscription plan tier.
type PlanTier string

const (
	TierTrial    PlanTier = "trial"
	TierStarter  PlanTier = "starter"
	TierTeam     PlanTier = "team"
	TierBusiness PlanTier = "business"
)

// BillingPeriod represents the billing frequency for a paid subscription.
type BillingPeriod string

const (
	PeriodMonthly BillingPeriod = "monthly"
	PeriodAnnual  BillingPeriod = "annual"
)
