package subscription_test

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/billingkit/pkg/subscription"
)

const testWebhookSecret = "whsec_test_secret"

func newTestStripeProvider(t *testing.T) *subscription.StripeProvider {
	t.Helper()
	provider, err := subscription.NewStripeProvider(subscription.StripeConfig{
		SecretKey:     "sk_test_123",
		WebhookSecret: testWebhookSecret,
	}, slog.Default())
	require.NoError(t, err)
	return provider
}

// signPayload produces a valid Stripe-Signature header for the payload using
// Stripe's documented v1 scheme: HMAC-SHA256 over "<timestamp>.<payload>".
func signPayload(payload []byte, secret string) string {
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts, payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func TestVerifyEvent_ValidSubscriptionSnapshot(t *testing.T) {
	provider := newTestStripeProvider(t)

	payload := []byte(`{
		"id": "evt_1",
		"type": "customer.subscription.updated",
		"data": {
			"object": {
				"id": "sub_99",
				"object": "subscription",
				"status": "active",
				"cancel_at_period_end": false,
				"customer": "cus_42",
				"items": {
					"data": [
						{
							"id": "si_1",
							"current_period_end": 1790000000,
							"price": {"id": "price_team_monthly"}
						}
					]
				}
			}
		}
	}`)

	event, err := provider.VerifyEvent(payload, signPayload(payload, testWebhookSecret))
	require.NoError(t, err)

	assert.Equal(t, subscription.EventSubscriptionUpdated, event.Type)
	assert.Equal(t, "cus_42", event.CustomerID)
	require.NotNil(t, event.Subscription)
	assert.Equal(t, "sub_99", event.Subscription.SubscriptionID)
	assert.Equal(t, "active", event.Subscription.Status)
	assert.Equal(t, "price_team_monthly", event.Subscription.PriceID)
	require.NotNil(t, event.Subscription.PeriodEnd)
	assert.Equal(t, time.Unix(1790000000, 0).UTC(), *event.Subscription.PeriodEnd)
}

func TestVerifyEvent_PaymentIntentMetadata(t *testing.T) {
	provider := newTestStripeProvider(t)

	payload := []byte(`{
		"id": "evt_2",
		"type": "payment_intent.succeeded",
		"data": {
			"object": {
				"id": "pi_77",
				"object": "payment_intent",
				"amount": 4900,
				"currency": "usd",
				"customer": "cus_42",
				"metadata": {"company_id": "c0ffee00-0000-0000-0000-000000000001", "invoice_id": "inv_5"}
			}
		}
	}`)

	event, err := provider.VerifyEvent(payload, signPayload(payload, testWebhookSecret))
	require.NoError(t, err)

	assert.Equal(t, subscription.EventPaymentCaptured, event.Type)
	assert.Equal(t, "pi_77", event.ExternalPaymentID)
	assert.Equal(t, "c0ffee00-0000-0000-0000-000000000001", event.CompanyID)
	assert.Equal(t, "inv_5", event.InvoiceID)
	assert.Equal(t, subscription.Money{Amount: 4900, Currency: "USD"}, event.Amount)
}

func TestVerifyEvent_UnknownTypeNormalized(t *testing.T) {
	provider := newTestStripeProvider(t)

	payload := []byte(`{"id":"evt_3","type":"customer.tax_id.created","data":{"object":{}}}`)

	event, err := provider.VerifyEvent(payload, signPayload(payload, testWebhookSecret))
	require.NoError(t, err)
	assert.Equal(t, subscription.EventUnknown, event.Type)
	assert.Equal(t, "customer.tax_id.created", event.ProviderEvent)
}

func TestVerifyEvent_TamperedPayload(t *testing.T) {
	provider := newTestStripeProvider(t)

	payload := []byte(`{"id":"evt_4","type":"customer.subscription.updated","data":{"object":{"id":"sub_1"}}}`)
	signature := signPayload(payload, testWebhookSecret)

	// Any single-byte mutation after signing must fail verification.
	tampered := append([]byte(nil), payload...)
	tampered[len(tampered)/2] ^= 0x01

	event, err := provider.VerifyEvent(tampered, signature)
	assert.ErrorIs(t, err, subscription.ErrSignatureInvalid)
	assert.Nil(t, event)
}

func TestVerifyEvent_WrongSecret(t *testing.T) {
	provider := newTestStripeProvider(t)

	payload := []byte(`{"id":"evt_5","type":"payment_intent.succeeded","data":{"object":{"id":"pi_1"}}}`)

	event, err := provider.VerifyEvent(payload, signPayload(payload, "whsec_other"))
	assert.ErrorIs(t, err, subscription.ErrSignatureInvalid)
	assert.Nil(t, event)
}
