package models

import "time"

// Provider event types handled by the reconciler.
const (
	EventInvoicePaymentSucceeded     = "invoice.payment_succeeded"
	EventInvoicePaymentFailed        = "invoice.payment_failed"
	EventCustomerSubscriptionCreated = "customer.subscription.created"
	EventCustomerSubscriptionUpdated = "customer.subscription.updated"
	EventCustomerSubscriptionDeleted = "customer.subscription.deleted"
	EventCheckoutSessionCompleted    = "checkout.session.completed"
	EventPaymentIntentSucceeded      = "payment_intent.succeeded"
	EventPaymentIntentFailed         = "payment_intent.payment_failed"
)

// SubscriptionStatusActive is the only provider status that maps to a paid tier.
const SubscriptionStatusActive = "active"

// WebhookEvent is a verified provider event. Payload holds one of the
// *Payload types below, selected by Type.
type WebhookEvent struct {
	ID      string
	Type    string
	Payload EventPayload
}

// EventPayload is implemented by every typed event body.
type EventPayload interface {
	eventPayload()
}

// ProviderSubscription is the provider-side subscription state.
type ProviderSubscription struct {
	ID               string
	CustomerID       string
	Status           string
	CurrentPeriodEnd time.Time
}

type InvoicePayload struct {
	InvoiceID      string
	CustomerID     string
	SubscriptionID string
}

type SubscriptionPayload struct {
	Subscription ProviderSubscription
}

type CheckoutSessionPayload struct {
	SessionID      string
	CustomerID     string
	SubscriptionID string
	// UserID comes from session metadata set at checkout creation.
	UserID string
}

type PaymentIntentPayload struct {
	PaymentIntentID string
	CustomerID      string
	Amount          int64
	Currency        string
}

// UnhandledPayload marks event types outside the dispatch table.
type UnhandledPayload struct{}

func (InvoicePayload) eventPayload()         {}
func (SubscriptionPayload) eventPayload()    {}
func (CheckoutSessionPayload) eventPayload() {}
func (PaymentIntentPayload) eventPayload()   {}
func (UnhandledPayload) eventPayload()       {}

// Outcome values recorded in the billing audit trail.
const (
	OutcomeApplied          = "applied"
	OutcomeRecorded         = "recorded"
	OutcomeUserNotFound     = "user_not_found"
	OutcomeCustomerMismatch = "customer_mismatch"
	OutcomeNoSubscription   = "no_subscription"
)

// BillingEvent is one audit trail entry, keyed by provider event ID.
type BillingEvent struct {
	ID             string    `json:"id" firestore:"-"`
	Type           string    `json:"type" firestore:"type"`
	CustomerID     string    `json:"customerId,omitempty" firestore:"customerId,omitempty"`
	UserID         string    `json:"userId,omitempty" firestore:"userId,omitempty"`
	SubscriptionID string    `json:"subscriptionId,omitempty" firestore:"subscriptionId,omitempty"`
	Status         string    `json:"status,omitempty" firestore:"status,omitempty"`
	CreditsGranted int64     `json:"creditsGranted" firestore:"creditsGranted"`
	Outcome        string    `json:"outcome" firestore:"outcome"`
	ProcessedAt    time.Time `json:"processedAt" firestore:"processedAt,serverTimestamp"`
}

// BillingNotification is published to the message queue for downstream consumers.
type BillingNotification struct {
	EventID        string    `json:"eventId"`
	EventType      string    `json:"eventType"`
	UserID         string    `json:"userId,omitempty"`
	CustomerID     string    `json:"customerId,omitempty"`
	PlanTier       PlanTier  `json:"planTier,omitempty"`
	Status         string    `json:"status,omitempty"`
	CreditsGranted int64     `json:"creditsGranted,omitempty"`
	OccurredAt     time.Time `json:"occurredAt"`
}
