package core

import (
	"context"
	"fmt"
	"time"

	"mystronium-backend-go/pkg/cache"
)

const processedEventKeyPrefix = "billing:event:"

type cacheDeduper struct {
	cache cache.Cache
	ttl   time.Duration
}

// NewCacheEventDeduper remembers processed provider event IDs in the cache for ttl.
// It only short-circuits redeliveries; the user record markers still decide crediting.
func NewCacheEventDeduper(c cache.Cache, ttl time.Duration) EventDeduper {
	return &cacheDeduper{cache: c, ttl: ttl}
}

func (d *cacheDeduper) AlreadyProcessed(ctx context.Context, eventID string) (bool, error) {
	if eventID == "" {
		return false, nil
	}
	ok, err := d.cache.Exists(ctx, processedEventKeyPrefix+eventID)
	if err != nil {
		return false, fmt.Errorf("check processed event '%s': %w", eventID, err)
	}
	return ok, nil
}

func (d *cacheDeduper) MarkProcessed(ctx context.Context, eventID string) error {
	if eventID == "" {
		return nil
	}
	if _, err := d.cache.SetNX(ctx, processedEventKeyPrefix+eventID, time.Now().UTC().Format(time.RFC3339), d.ttl); err != nil {
		return fmt.Errorf("mark processed event '%s': %w", eventID, err)
	}
	return nil
}
