// Package payment adapts the Stripe SDK to the reconciler's PaymentProvider.
package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"github.com/stripe/stripe-go/v82/webhook"

	"mystronium-backend-go/internal/core"
	"mystronium-backend-go/internal/models"
)

// MetadataUserID is the checkout session metadata key linking a session to a user.
const MetadataUserID = "userId"

// StripeProvider implements core.PaymentProvider with a per-process Stripe client.
type StripeProvider struct {
	api           *client.API
	webhookSecret string
}

// NewStripeProvider creates the Stripe client. No network call is made here.
func NewStripeProvider(secretKey, webhookSecret string) (*StripeProvider, error) {
	return NewStripeProviderWithBackends(secretKey, webhookSecret, nil)
}

// NewStripeProviderWithBackends is NewStripeProvider with explicit API backends;
// nil selects the SDK defaults.
func NewStripeProviderWithBackends(secretKey, webhookSecret string, backends *stripe.Backends) (*StripeProvider, error) {
	if secretKey == "" {
		return nil, errors.New("stripe secret key is required")
	}
	if webhookSecret == "" {
		return nil, errors.New("stripe webhook secret is required")
	}
	api := &client.API{}
	api.Init(secretKey, backends)
	return &StripeProvider{api: api, webhookSecret: webhookSecret}, nil
}

// VerifyEvent checks the Stripe-Signature header against the raw body and
// decodes the verified event. Only the verified event is returned, never the raw body.
func (p *StripeProvider) VerifyEvent(payload []byte, signature string) (*models.WebhookEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, p.webhookSecret, webhook.ConstructEventOptions{
		Tolerance:                webhook.DefaultTolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrInvalidSignature, err)
	}

	eventType := string(event.Type)
	var raw []byte
	if event.Data != nil {
		raw = event.Data.Raw
	}
	if len(raw) == 0 {
		raw = []byte("{}")
	}
	body, err := decodeEventPayload(eventType, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: event %s: %v", core.ErrInvalidPayload, event.ID, err)
	}
	return &models.WebhookEvent{ID: event.ID, Type: eventType, Payload: body}, nil
}

// FetchSubscription retrieves the current state of a subscription.
func (p *StripeProvider) FetchSubscription(ctx context.Context, subscriptionID string) (*models.ProviderSubscription, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	sub, err := p.api.Subscriptions.Get(subscriptionID, params)
	if err != nil {
		return nil, fmt.Errorf("get subscription %s: %w", subscriptionID, err)
	}

	out := &models.ProviderSubscription{
		ID:     sub.ID,
		Status: string(sub.Status),
	}
	if sub.Customer != nil {
		out.CustomerID = sub.Customer.ID
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 {
		out.CurrentPeriodEnd = unixToTime(sub.Items.Data[0].CurrentPeriodEnd)
	}
	return out, nil
}

// CreateCheckoutSession creates a subscription-mode checkout session for one price.
func (p *StripeProvider) CreateCheckoutSession(ctx context.Context, req models.CheckoutSessionRequest) (string, error) {
	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(req.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
		ClientReferenceID: stripe.String(req.UserID),
	}
	params.Context = ctx
	params.AddMetadata(MetadataUserID, req.UserID)

	session, err := p.api.CheckoutSessions.New(params)
	if err != nil {
		return "", fmt.Errorf("create checkout session: %w", err)
	}
	return session.ID, nil
}

// CreatePortalSession creates a billing portal session and returns its URL.
func (p *StripeProvider) CreatePortalSession(ctx context.Context, req models.PortalSessionRequest) (string, error) {
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(req.CustomerID),
		ReturnURL: stripe.String(req.ReturnURL),
	}
	params.Context = ctx

	session, err := p.api.BillingPortalSessions.New(params)
	if err != nil {
		return "", fmt.Errorf("create billing portal session: %w", err)
	}
	return session.URL, nil
}
