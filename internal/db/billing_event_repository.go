package db

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"

	"mystronium-backend-go/internal/models"
)

const billingEventsCollection = "billingEvents"

type firestoreBillingEventRepository struct {
	client *firestore.Client
}

// NewFirestoreBillingEventRepository creates the Firestore-backed audit trail.
func NewFirestoreBillingEventRepository(client *firestore.Client) BillingEventRepository {
	return &firestoreBillingEventRepository{client: client}
}

// Create writes the entry under the provider event ID, so a redelivered event
// overwrites its own entry instead of adding a new one.
func (r *firestoreBillingEventRepository) Create(ctx context.Context, event models.BillingEvent) error {
	if event.ID == "" {
		return errors.New("billing event ID cannot be empty")
	}
	if _, err := r.client.Collection(billingEventsCollection).Doc(event.ID).Set(ctx, event); err != nil {
		return fmt.Errorf("failed to record billing event '%s': %w", event.ID, err)
	}
	return nil
}
