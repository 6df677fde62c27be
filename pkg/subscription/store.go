package subscription

import (
	"context"

	"github.com/google/uuid"
)

// CompanyStore persists company subscription records. Saves are full-row
// overwrites: subscription snapshots carry complete state, so merge logic is
// neither needed nor wanted.
type CompanyStore interface {
	// Get retrieves a company by ID. Returns ErrCompanyNotFound if absent.
	Get(ctx context.Context, id uuid.UUID) (*Company, error)

	// GetByBillingCustomerID retrieves a company by the provider's customer
	// reference. Returns ErrCompanyNotFound if no company carries it.
	GetByBillingCustomerID(ctx context.Context, billingCustomerID string) (*Company, error)

	// Save creates or updates a company record keyed by Company.ID.
	Save(ctx context.Context, company *Company) error
}

// PaymentStore persists immutable payment rows.
type PaymentStore interface {
	// Insert writes a payment row. Returns ErrPaymentAlreadyRecorded when a
	// row with the same ExternalPaymentID already exists; this insert-if-absent
	// contract is what makes payment event replay safe.
	Insert(ctx context.Context, payment *Payment) error
}
