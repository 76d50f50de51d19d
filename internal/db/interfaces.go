package db

import (
	"context"

	"mystronium-backend-go/internal/models"
)

// MutateUserFunc changes a user record in place inside a transaction.
// Returning an error aborts the transaction without writing.
type MutateUserFunc func(user *models.User) error

// UserRepository defines the user record operations billing needs.
type UserRepository interface {
	GetByID(ctx context.Context, userID string) (*models.User, error)
	// FindByStripeCustomerID returns ErrNotFound when no user carries the customer ID.
	FindByStripeCustomerID(ctx context.Context, customerID string) (*models.User, error)
	// UpdateBilling atomically reads the user, applies mutate and writes the billing fields back.
	// It never creates a missing document; ErrNotFound is returned instead.
	UpdateBilling(ctx context.Context, userID string, mutate MutateUserFunc) (*models.User, error)
}

// BillingEventRepository stores the billing audit trail.
type BillingEventRepository interface {
	Create(ctx context.Context, event models.BillingEvent) error
}
