package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Runs against a real Redis when REDIS_TEST_ADDR is set.
func TestRedisCacheIntegration(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	ctx := context.Background()
	c, err := NewRedisCache(ctx, NewRedisCacheConfig{Address: addr})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	key := "test:billing:" + time.Now().Format(time.RFC3339Nano)
	t.Cleanup(func() { _ = c.Delete(ctx, key) })

	ok, err := c.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	stored, err := c.SetNX(ctx, key, "1", time.Minute)
	require.NoError(t, err)
	assert.True(t, stored)

	stored, err = c.SetNX(ctx, key, "2", time.Minute)
	require.NoError(t, err)
	assert.False(t, stored)

	val, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "1", val)

	require.NoError(t, c.Delete(ctx, key))
	val, err = c.Get(ctx, key)
	require.NoError(t, err)
	assert.Empty(t, val)
}
