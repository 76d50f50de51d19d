package core

import (
	"context"

	"mystronium-backend-go/internal/models"
)

// PaymentProvider is the subset of the payment provider the reconciler consumes.
type PaymentProvider interface {
	// VerifyEvent fails closed: any error means the event must not be processed.
	VerifyEvent(payload []byte, signature string) (*models.WebhookEvent, error)
	FetchSubscription(ctx context.Context, subscriptionID string) (*models.ProviderSubscription, error)
	CreateCheckoutSession(ctx context.Context, req models.CheckoutSessionRequest) (string, error)
	CreatePortalSession(ctx context.Context, req models.PortalSessionRequest) (string, error)
}

// BillingService reconciles provider events with user records and creates provider sessions.
type BillingService interface {
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
	CreateCheckoutSession(ctx context.Context, req models.CheckoutSessionRequest) (string, error)
	CreatePortalSession(ctx context.Context, req models.PortalSessionRequest) (string, error)
}

// UserService exposes user billing state to authenticated callers.
type UserService interface {
	GetSubscription(ctx context.Context, userID string) (*models.User, error)
}

// AuditService records handled billing events.
type AuditService interface {
	RecordBillingEvent(ctx context.Context, event models.BillingEvent) error
}

// EventDeduper remembers provider event IDs that were processed successfully.
type EventDeduper interface {
	AlreadyProcessed(ctx context.Context, eventID string) (bool, error)
	MarkProcessed(ctx context.Context, eventID string) error
}

// Notifier publishes billing notifications for downstream consumers.
type Notifier interface {
	Notify(ctx context.Context, n models.BillingNotification) error
}
