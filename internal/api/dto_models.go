package api

import (
	"time"

	"mystronium-backend-go/internal/models"
)

// ErrorResponse is a generic structure for returning errors via API.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// WebhookReceivedResponse acknowledges a processed (or deliberately ignored) webhook.
type WebhookReceivedResponse struct {
	Received bool `json:"received"`
}

// CheckoutSessionResponse returns the ID of the created Stripe Checkout session.
type CheckoutSessionResponse struct {
	SessionID string `json:"sessionId"`
}

// PortalSessionResponse returns the URL for the Stripe Customer Portal.
type PortalSessionResponse struct {
	URL string `json:"url"`
}

// SubscriptionResponse is the caller's view of their billing state.
type SubscriptionResponse struct {
	UserID               string     `json:"userId"`
	PlanTier             string     `json:"planTier"`
	SubscriptionStatus   string     `json:"subscriptionStatus,omitempty"`
	CurrentPeriodEnd     *time.Time `json:"currentPeriodEnd,omitempty"`
	Credits              int64      `json:"credits"`
	StripeCustomerID     string     `json:"stripeCustomerId,omitempty"`
	StripeSubscriptionID string     `json:"stripeSubscriptionId,omitempty"`
}

func newSubscriptionResponse(u *models.User) SubscriptionResponse {
	resp := SubscriptionResponse{
		UserID:               u.ID,
		PlanTier:             string(u.PlanTier),
		SubscriptionStatus:   u.SubscriptionStatus,
		Credits:              u.CreditBalance,
		StripeCustomerID:     u.StripeCustomerID,
		StripeSubscriptionID: u.StripeSubscriptionID,
	}
	if resp.PlanTier == "" {
		resp.PlanTier = string(models.PlanFree)
	}
	if !u.CurrentPeriodEnd.IsZero() {
		end := u.CurrentPeriodEnd.UTC()
		resp.CurrentPeriodEnd = &end
	}
	return resp
}
