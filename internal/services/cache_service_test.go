package services

import (
	"context"
	"testing"

	"opspulse/internal/config"
	"opspulse/internal/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheService_HitMissMetrics(t *testing.T) {
	ctx := context.Background()
	cache := NewCacheService(newMemoryStore(), &config.CacheConfig{Enabled: true, RouteTTL: 60}, logger.NewDiscard())

	var v string
	found, err := cache.Get(ctx, "route:a", &v)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, cache.Set(ctx, "route:a", "value", cache.RouteTTL()))
	found, err = cache.Get(ctx, "route:a", &v)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "value", v)

	require.NoError(t, cache.Delete(ctx, "route:a"))

	m, err := cache.GetMetrics(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), m.Hits)
	assert.Equal(t, uint64(1), m.Misses)
	assert.Equal(t, uint64(1), m.Evictions)
	assert.Equal(t, 50.0, m.HitRate)
	assert.Equal(t, int64(0), m.CacheSize)
}

func TestCacheService_WithoutStoreIsAlwaysMiss(t *testing.T) {
	cache := NewCacheService(nil, &config.CacheConfig{Enabled: true}, logger.NewDiscard())

	var v string
	found, err := cache.Get(context.Background(), "k", &v)
	assert.NoError(t, err)
	assert.False(t, found)
	assert.NoError(t, cache.Set(context.Background(), "k", "v", 0))
}
