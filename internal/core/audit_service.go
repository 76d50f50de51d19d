package core

import (
	"context"
	"fmt"

	"mystronium-backend-go/internal/db"
	"mystronium-backend-go/internal/models"
)

// auditService implements the AuditService interface.
type auditService struct {
	eventRepo db.BillingEventRepository
}

// NewAuditService creates a new AuditService backed by the billing event repository.
func NewAuditService(eventRepo db.BillingEventRepository) AuditService {
	return &auditService{
		eventRepo: eventRepo,
	}
}

// RecordBillingEvent stores one entry per provider event ID; a redelivered
// event overwrites its earlier entry.
func (s *auditService) RecordBillingEvent(ctx context.Context, event models.BillingEvent) error {
	if s.eventRepo == nil {
		return fmt.Errorf("BillingEventRepository not initialized in AuditService")
	}
	if event.ID == "" {
		return fmt.Errorf("billing event has no ID")
	}
	if err := s.eventRepo.Create(ctx, event); err != nil {
		return fmt.Errorf("failed to record billing event '%s': %w", event.ID, err)
	}
	return nil
}
