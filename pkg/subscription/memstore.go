package subscription

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is a mutex-guarded in-memory implementation of CompanyStore and
// PaymentStore. Intended for tests and local development; the Postgres store
// is the production implementation.
type MemoryStore struct {
	mu        sync.RWMutex
	companies map[uuid.UUID]Company
	payments  map[string]Payment // keyed by ExternalPaymentID, the dedup key
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		companies: make(map[uuid.UUID]Company),
		payments:  make(map[string]Payment),
	}
}

// Get retrieves a company by ID.
func (s *MemoryStore) Get(ctx context.Context, id uuid.UUID) (*Company, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	company, exists := s.companies[id]
	if !exists {
		return nil, ErrCompanyNotFound
	}
	return copyCompany(company), nil
}

// GetByBillingCustomerID retrieves a company by the provider's customer reference.
func (s *MemoryStore) GetByBillingCustomerID(ctx context.Context, billingCustomerID string) (*Company, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if billingCustomerID != "" {
		for _, company := range s.companies {
			if company.BillingCustomerID == billingCustomerID {
				return copyCompany(company), nil
			}
		}
	}
	return nil, ErrCompanyNotFound
}

// Save creates or updates a company record.
func (s *MemoryStore) Save(ctx context.Context, company *Company) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.companies[company.ID] = *copyCompany(*company)
	return nil
}

// Insert writes a payment row, enforcing the ExternalPaymentID uniqueness
// contract.
func (s *MemoryStore) Insert(ctx context.Context, payment *Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.payments[payment.ExternalPaymentID]; exists {
		return ErrPaymentAlreadyRecorded
	}
	s.payments[payment.ExternalPaymentID] = *payment
	return nil
}

// PaymentCount reports the number of recorded payments. Test helper.
func (s *MemoryStore) PaymentCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.payments)
}

// Copying on both read and write keeps callers from mutating shared state
// behind the lock's back.
func copyCompany(c Company) *Company {
	c.SeatedMemberIDs = slices.Clone(c.SeatedMemberIDs)
	return &c
}
