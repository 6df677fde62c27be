package subscription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements CompanyStore and PaymentStore on top of pgx.
// Payment dedup relies on the unique index over external_payment_id; company
// saves are full-row upserts matching the snapshot-overwrite semantics of the
// reconciliation path.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a store backed by the given connection pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	if pool == nil {
		panic("subscription: pgxpool.Pool is required")
	}
	return &PostgresStore{pool: pool}
}

const companyColumns = `id, billing_customer_id, subscription_id, status, plan, period,
	period_end, max_seats, seated_member_ids, created_at, updated_at`

// Get retrieves a company by ID.
func (s *PostgresStore) Get(ctx context.Context, id uuid.UUID) (*Company, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+companyColumns+` FROM companies WHERE id = $1`, id)
	return scanCompany(row)
}

// GetByBillingCustomerID retrieves a company by the provider's customer reference.
func (s *PostgresStore) GetByBillingCustomerID(ctx context.Context, billingCustomerID string) (*Company, error) {
	if billingCustomerID == "" {
		return nil, ErrCompanyNotFound
	}
	row := s.pool.QueryRow(ctx,
		`SELECT `+companyColumns+` FROM companies WHERE billing_customer_id = $1`, billingCustomerID)
	return scanCompany(row)
}

// Save upserts the full company record keyed by id.
func (s *PostgresStore) Save(ctx context.Context, company *Company) error {
	seated := make([]string, len(company.SeatedMemberIDs))
	for i, id := range company.SeatedMemberIDs {
		seated[i] = id.String()
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO companies (id, billing_customer_id, subscription_id, status, plan, period,
			period_end, max_seats, seated_member_ids, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			billing_customer_id = EXCLUDED.billing_customer_id,
			subscription_id     = EXCLUDED.subscription_id,
			status              = EXCLUDED.status,
			plan                = EXCLUDED.plan,
			period              = EXCLUDED.period,
			period_end          = EXCLUDED.period_end,
			max_seats           = EXCLUDED.max_seats,
			seated_member_ids   = EXCLUDED.seated_member_ids,
			updated_at          = EXCLUDED.updated_at`,
		company.ID, company.BillingCustomerID, company.SubscriptionID,
		string(company.Status), string(company.Plan), string(company.Period),
		company.PeriodEnd, company.MaxSeats, seated,
		company.CreatedAt, company.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save company: %w", err)
	}
	return nil
}

// Insert writes a payment row exactly once per external payment reference.
// ON CONFLICT DO NOTHING keeps the insert race-free under concurrent webhook
// delivery without holding any lock across the write.
func (s *PostgresStore) Insert(ctx context.Context, payment *Payment) error {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO payments (id, company_id, external_payment_id, invoice_id,
			amount, currency, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (external_payment_id) DO NOTHING`,
		payment.ID, payment.CompanyID, payment.ExternalPaymentID, payment.InvoiceID,
		payment.Amount.Amount, payment.Amount.Currency, payment.RecordedAt)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPaymentAlreadyRecorded
	}
	return nil
}

func scanCompany(row pgx.Row) (*Company, error) {
	var (
		company   Company
		status    string
		plan      string
		period    string
		periodEnd *time.Time
		seated    []string
	)

	err := row.Scan(&company.ID, &company.BillingCustomerID, &company.SubscriptionID,
		&status, &plan, &period, &periodEnd, &company.MaxSeats, &seated,
		&company.CreatedAt, &company.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCompanyNotFound
		}
		return nil, fmt.Errorf("scan company: %w", err)
	}

	company.Status = SubscriptionStatus(status)
	company.Plan = PlanTier(plan)
	company.Period = BillingPeriod(period)
	company.PeriodEnd = periodEnd

	company.SeatedMemberIDs = make([]uuid.UUID, 0, len(seated))
	for _, raw := range seated {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("malformed seated member id %q: %w", raw, err)
		}
		company.SeatedMemberIDs = append(company.SeatedMemberIDs, id)
	}

	return &company, nil
}
