package models

// Direct-call actions accepted by the billing endpoint.
const (
	ActionCreateCheckoutSession = "create-checkout-session"
	ActionCreatePortalSession   = "create-portal-session"
)

// BillingActionRequest is the direct-call body. Which fields are required depends on Action.
type BillingActionRequest struct {
	Action     string `json:"action"`
	PriceID    string `json:"priceId,omitempty"`
	UserID     string `json:"userId,omitempty"`
	SuccessURL string `json:"successUrl,omitempty"`
	CancelURL  string `json:"cancelUrl,omitempty"`
	CustomerID string `json:"customerId,omitempty"`
	ReturnURL  string `json:"returnUrl,omitempty"`
}

// CheckoutSessionRequest holds the parameters of create-checkout-session.
type CheckoutSessionRequest struct {
	PriceID    string
	UserID     string
	SuccessURL string
	CancelURL  string
}

// PortalSessionRequest holds the parameters of create-portal-session.
type PortalSessionRequest struct {
	CustomerID string
	ReturnURL  string
}
