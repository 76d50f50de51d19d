package core

import (
	"context"
	"encoding/json"
	"fmt"

	"mystronium-backend-go/internal/models"
	"mystronium-backend-go/pkg/messagequeue"
)

type queueNotifier struct {
	publisher messagequeue.Publisher
	queue     string
}

// NewQueueNotifier publishes billing notifications as JSON to the named queue.
func NewQueueNotifier(publisher messagequeue.Publisher, queue string) Notifier {
	return &queueNotifier{publisher: publisher, queue: queue}
}

func (n *queueNotifier) Notify(ctx context.Context, msg models.BillingNotification) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal billing notification: %w", err)
	}
	if err := n.publisher.Publish(ctx, n.queue, body); err != nil {
		return fmt.Errorf("publish billing notification for event '%s': %w", msg.EventID, err)
	}
	return nil
}
