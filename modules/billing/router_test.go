package billing_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/billingkit/modules/billing"
	"github.com/dmitrymomot/billingkit/pkg/subscription"
)

// stubProvider is a function-field BillingProvider double; only the fields a
// test sets are expected to be called.
type stubProvider struct {
	verifyEvent        func(payload []byte, signature string) (*subscription.WebhookEvent, error)
	createCustomer     func(ctx context.Context, company *subscription.Company) (string, error)
	createSetupIntent  func(ctx context.Context, customerID string) (string, error)
	createSubscription func(ctx context.Context, customerID, priceID string) (*subscription.SubscriptionSnapshot, error)
	listActive         func(ctx context.Context, customerID string) ([]string, error)
}

func (s *stubProvider) CreateCustomer(ctx context.Context, company *subscription.Company) (string, error) {
	return s.createCustomer(ctx, company)
}

func (s *stubProvider) CreateSetupIntent(ctx context.Context, customerID string) (string, error) {
	return s.createSetupIntent(ctx, customerID)
}

func (s *stubProvider) CreateSubscription(ctx context.Context, customerID, priceID string) (*subscription.SubscriptionSnapshot, error) {
	return s.createSubscription(ctx, customerID, priceID)
}

func (s *stubProvider) CancelSubscription(ctx context.Context, subscriptionID string) error {
	return nil
}

func (s *stubProvider) ListActiveSubscriptions(ctx context.Context, customerID string) ([]string, error) {
	return s.listActive(ctx, customerID)
}

func (s *stubProvider) VerifyEvent(payload []byte, signature string) (*subscription.WebhookEvent, error) {
	return s.verifyEvent(payload, signature)
}

func newTestServer(t *testing.T, provider subscription.BillingProvider, store *subscription.MemoryStore, companyID uuid.UUID) *httptest.Server {
	t.Helper()

	svc := subscription.NewService(subscription.DefaultCatalog(), provider, store, store)
	router := billing.Router(billing.RouterOptions{
		Service: svc,
		ResolveCompany: func(r *http.Request) (uuid.UUID, error) {
			return companyID, nil
		},
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func TestWebhookEndpoint(t *testing.T) {
	t.Run("signature failure is a client error", func(t *testing.T) {
		provider := &stubProvider{
			verifyEvent: func(payload []byte, signature string) (*subscription.WebhookEvent, error) {
				return nil, subscription.ErrSignatureInvalid
			},
		}
		srv := newTestServer(t, provider, subscription.NewMemoryStore(), uuid.New())

		resp, err := http.Post(srv.URL+"/webhook", "application/json", strings.NewReader(`{}`))
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("processed event is acknowledged", func(t *testing.T) {
		provider := &stubProvider{
			verifyEvent: func(payload []byte, signature string) (*subscription.WebhookEvent, error) {
				return &subscription.WebhookEvent{Type: subscription.EventUnknown, ProviderEvent: "charge.updated"}, nil
			},
		}
		srv := newTestServer(t, provider, subscription.NewMemoryStore(), uuid.New())

		resp, err := http.Post(srv.URL+"/webhook", "application/json", strings.NewReader(`{}`))
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}

func TestSubscribeEndpoint_UnknownPlan(t *testing.T) {
	companyID := uuid.New()
	store := subscription.NewMemoryStore()
	require.NoError(t, store.Save(context.Background(), &subscription.Company{ID: companyID}))

	srv := newTestServer(t, &stubProvider{}, store, companyID)

	resp, err := http.Post(srv.URL+"/subscribe", "application/json",
		strings.NewReader(`{"plan":"enterprise","period":"monthly"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCancelEndpoint_NothingToCancel(t *testing.T) {
	companyID := uuid.New()
	store := subscription.NewMemoryStore()
	require.NoError(t, store.Save(context.Background(), &subscription.Company{
		ID:                companyID,
		BillingCustomerID: "cus_1",
	}))

	provider := &stubProvider{
		listActive: func(ctx context.Context, customerID string) ([]string, error) {
			return nil, nil
		},
	}
	srv := newTestServer(t, provider, store, companyID)

	resp, err := http.Post(srv.URL+"/cancel", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAddSeatEndpoint_LimitConflict(t *testing.T) {
	companyID := uuid.New()
	store := subscription.NewMemoryStore()
	require.NoError(t, store.Save(context.Background(), &subscription.Company{
		ID:              companyID,
		Status:          subscription.StatusActive,
		Plan:            subscription.TierStarter,
		MaxSeats:        1,
		SeatedMemberIDs: []uuid.UUID{uuid.New()},
	}))

	srv := newTestServer(t, &stubProvider{}, store, companyID)

	resp, err := http.Post(srv.URL+"/seats", "application/json",
		strings.NewReader(`{"member_id":"`+uuid.NewString()+`"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestInfoEndpoint_TrialDefault(t *testing.T) {
	// No company record at all: the endpoint must still return the permissive
	// trial view, never an error.
	srv := newTestServer(t, &stubProvider{}, subscription.NewMemoryStore(), uuid.New())

	resp, err := http.Get(srv.URL + "/info")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
}

func TestCommandEndpoints_Unauthorized(t *testing.T) {
	svc := subscription.NewService(subscription.DefaultCatalog(), &stubProvider{},
		subscription.NewMemoryStore(), subscription.NewMemoryStore())
	router := billing.Router(billing.RouterOptions{
		Service: svc,
		ResolveCompany: func(r *http.Request) (uuid.UUID, error) {
			return uuid.Nil, context.DeadlineExceeded // any resolver error
		},
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(srv.URL + "/info")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
