package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"mystronium-backend-go/internal/core"
	"mystronium-backend-go/internal/models"
)

const testWebhookSecret = "whsec_test_secret"

func newTestProvider(t *testing.T, handler http.HandlerFunc) *StripeProvider {
	t.Helper()
	var backends *stripe.Backends
	if handler != nil {
		srv := httptest.NewServer(handler)
		t.Cleanup(srv.Close)
		backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
			URL:               stripe.String(srv.URL),
			MaxNetworkRetries: stripe.Int64(0),
			LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
		})
		backends = &stripe.Backends{API: backend, Connect: backend, Uploads: backend}
	}
	p, err := NewStripeProviderWithBackends("sk_test_123", testWebhookSecret, backends)
	require.NoError(t, err)
	return p
}

func eventJSON(t *testing.T, id, eventType string, object map[string]interface{}) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]interface{}{
		"id":          id,
		"object":      "event",
		"type":        eventType,
		"api_version": stripe.APIVersion,
		"created":     time.Now().Unix(),
		"data":        map[string]interface{}{"object": object},
	})
	require.NoError(t, err)
	return body
}

func sign(payload []byte, secret string) string {
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: time.Now(),
	})
	return signed.Header
}

func TestNewStripeProviderRequiresSecrets(t *testing.T) {
	_, err := NewStripeProvider("", testWebhookSecret)
	assert.Error(t, err)
	_, err = NewStripeProvider("sk_test_123", "")
	assert.Error(t, err)
}

func TestVerifyEvent(t *testing.T) {
	p := newTestProvider(t, nil)

	tests := []struct {
		name      string
		eventType string
		object    map[string]interface{}
		want      models.EventPayload
	}{
		{
			name:      "subscription with item period",
			eventType: models.EventCustomerSubscriptionUpdated,
			object: map[string]interface{}{
				"id": "sub_1", "object": "subscription", "customer": "cus_1", "status": "past_due",
				"items": map[string]interface{}{"data": []interface{}{map[string]interface{}{"id": "si_1", "current_period_end": 1793491200}}},
			},
			want: models.SubscriptionPayload{Subscription: models.ProviderSubscription{
				ID: "sub_1", CustomerID: "cus_1", Status: "past_due", CurrentPeriodEnd: time.Unix(1793491200, 0).UTC(),
			}},
		},
		{
			name:      "subscription with top-level period and expanded customer",
			eventType: models.EventCustomerSubscriptionCreated,
			object: map[string]interface{}{
				"id": "sub_1", "customer": map[string]interface{}{"id": "cus_1", "object": "customer"},
				"status": "active", "current_period_end": 1793491200,
			},
			want: models.SubscriptionPayload{Subscription: models.ProviderSubscription{
				ID: "sub_1", CustomerID: "cus_1", Status: "active", CurrentPeriodEnd: time.Unix(1793491200, 0).UTC(),
			}},
		},
		{
			name:      "invoice with top-level subscription",
			eventType: models.EventInvoicePaymentSucceeded,
			object:    map[string]interface{}{"id": "in_1", "customer": "cus_1", "subscription": "sub_1"},
			want:      models.InvoicePayload{InvoiceID: "in_1", CustomerID: "cus_1", SubscriptionID: "sub_1"},
		},
		{
			name:      "invoice with parent subscription details",
			eventType: models.EventInvoicePaymentFailed,
			object: map[string]interface{}{
				"id": "in_2", "customer": "cus_1",
				"parent": map[string]interface{}{"subscription_details": map[string]interface{}{"subscription": "sub_9"}},
			},
			want: models.InvoicePayload{InvoiceID: "in_2", CustomerID: "cus_1", SubscriptionID: "sub_9"},
		},
		{
			name:      "checkout session with metadata",
			eventType: models.EventCheckoutSessionCompleted,
			object: map[string]interface{}{
				"id": "cs_1", "customer": "cus_1", "subscription": "sub_1",
				"client_reference_id": "other", "metadata": map[string]interface{}{"userId": "u1"},
			},
			want: models.CheckoutSessionPayload{SessionID: "cs_1", CustomerID: "cus_1", SubscriptionID: "sub_1", UserID: "u1"},
		},
		{
			name:      "checkout session falls back to client reference",
			eventType: models.EventCheckoutSessionCompleted,
			object:    map[string]interface{}{"id": "cs_2", "customer": "cus_1", "client_reference_id": "u2"},
			want:      models.CheckoutSessionPayload{SessionID: "cs_2", CustomerID: "cus_1", UserID: "u2"},
		},
		{
			name:      "payment intent",
			eventType: models.EventPaymentIntentFailed,
			object:    map[string]interface{}{"id": "pi_1", "customer": nil, "amount": 999, "currency": "usd"},
			want:      models.PaymentIntentPayload{PaymentIntentID: "pi_1", Amount: 999, Currency: "usd"},
		},
		{
			name:      "unhandled type",
			eventType: "customer.created",
			object:    map[string]interface{}{"id": "cus_1"},
			want:      models.UnhandledPayload{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := eventJSON(t, "evt_1", tt.eventType, tt.object)

			event, err := p.VerifyEvent(payload, sign(payload, testWebhookSecret))
			require.NoError(t, err)
			assert.Equal(t, "evt_1", event.ID)
			assert.Equal(t, tt.eventType, event.Type)
			assert.Equal(t, tt.want, event.Payload)
		})
	}
}

func TestVerifyEventRejects(t *testing.T) {
	p := newTestProvider(t, nil)
	payload := eventJSON(t, "evt_1", models.EventCustomerSubscriptionUpdated, map[string]interface{}{"id": "sub_1", "status": "active"})

	t.Run("tampered payload", func(t *testing.T) {
		header := sign(payload, testWebhookSecret)
		tampered := bytes.Replace(payload, []byte(`"active"`), []byte(`"ACTIVE"`), 1)
		require.NotEqual(t, payload, tampered)

		_, err := p.VerifyEvent(tampered, header)
		assert.ErrorIs(t, err, core.ErrInvalidSignature)
	})

	t.Run("wrong secret", func(t *testing.T) {
		_, err := p.VerifyEvent(payload, sign(payload, "whsec_other"))
		assert.ErrorIs(t, err, core.ErrInvalidSignature)
	})

	t.Run("garbage header", func(t *testing.T) {
		_, err := p.VerifyEvent(payload, "not-a-signature")
		assert.ErrorIs(t, err, core.ErrInvalidSignature)
	})

	t.Run("expired timestamp", func(t *testing.T) {
		signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
			Payload:   payload,
			Secret:    testWebhookSecret,
			Timestamp: time.Now().Add(-time.Hour),
		})
		_, err := p.VerifyEvent(payload, signed.Header)
		assert.ErrorIs(t, err, core.ErrInvalidSignature)
	})

	t.Run("undecodable object", func(t *testing.T) {
		bad := eventJSON(t, "evt_2", models.EventInvoicePaymentSucceeded, map[string]interface{}{"id": 42})
		_, err := p.VerifyEvent(bad, sign(bad, testWebhookSecret))
		assert.ErrorIs(t, err, core.ErrInvalidPayload)
	})
}

func TestFetchSubscription(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1/subscriptions/sub_1", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "sub_1", "object": "subscription", "customer": "cus_1", "status": "active",
			"items": {"object": "list", "data": [{"id": "si_1", "object": "subscription_item", "current_period_end": 1793491200}]}
		}`))
	})

	sub, err := p.FetchSubscription(context.Background(), "sub_1")
	require.NoError(t, err)
	assert.Equal(t, &models.ProviderSubscription{
		ID: "sub_1", CustomerID: "cus_1", Status: "active", CurrentPeriodEnd: time.Unix(1793491200, 0).UTC(),
	}, sub)
}

func TestFetchSubscriptionUpstreamError(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error": {"type": "invalid_request_error", "message": "No such subscription: 'sub_x'"}}`))
	})

	_, err := p.FetchSubscription(context.Background(), "sub_x")
	assert.Error(t, err)
}

func TestCreateCheckoutSession(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/checkout/sessions", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "subscription", r.PostForm.Get("mode"))
		assert.Equal(t, "price_1", r.PostForm.Get("line_items[0][price]"))
		assert.Equal(t, "1", r.PostForm.Get("line_items[0][quantity]"))
		assert.Equal(t, "u1", r.PostForm.Get("client_reference_id"))
		assert.Equal(t, "u1", r.PostForm.Get("metadata[userId]"))
		assert.Equal(t, "https://app/ok", r.PostForm.Get("success_url"))
		assert.Equal(t, "https://app/cancel", r.PostForm.Get("cancel_url"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": "cs_test_1", "object": "checkout.session"}`))
	})

	id, err := p.CreateCheckoutSession(context.Background(), models.CheckoutSessionRequest{
		PriceID: "price_1", UserID: "u1", SuccessURL: "https://app/ok", CancelURL: "https://app/cancel",
	})
	require.NoError(t, err)
	assert.Equal(t, "cs_test_1", id)
}

func TestCreatePortalSession(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/billing_portal/sessions", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "cus_1", r.PostForm.Get("customer"))
		assert.Equal(t, "https://app/account", r.PostForm.Get("return_url"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": "bps_1", "object": "billing_portal.session", "url": "https://billing.stripe.com/p/session/test"}`))
	})

	url, err := p.CreatePortalSession(context.Background(), models.PortalSessionRequest{CustomerID: "cus_1", ReturnURL: "https://app/account"})
	require.NoError(t, err)
	assert.Equal(t, "https://billing.stripe.com/p/session/test", url)
}
