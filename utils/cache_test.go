package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCacheExpiresByClock(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	cache := NewMemoryCache(func() time.Time { return now })

	cache.Set("page:index", []byte("first render"), 20*time.Second)

	got, ok := cache.Get("page:index")
	require.True(t, ok)
	assert.Equal(t, []byte("first render"), got)

	// Still fresh just before the deadline.
	now = now.Add(19 * time.Second)
	_, ok = cache.Get("page:index")
	assert.True(t, ok)

	now = now.Add(2 * time.Second)
	_, ok = cache.Get("page:index")
	assert.False(t, ok)
}

func TestMemoryCacheIgnoresNonPositiveTTL(t *testing.T) {
	cache := NewMemoryCache(nil)
	cache.Set("k", []byte("v"), 0)
	_, ok := cache.Get("k")
	assert.False(t, ok)
}

func TestRedisCacheRoundTripAndTTL(t *testing.T) {
	cache := NewRedisCache()
	cache.Set("cache:test:index", []byte("cached body"), 20*time.Second)

	got, ok := cache.Get("cache:test:index")
	require.True(t, ok)
	assert.Equal(t, []byte("cached body"), got)

	testRedis.FastForward(21 * time.Second)

	_, ok = cache.Get("cache:test:index")
	assert.False(t, ok)
}

func TestRedisCacheMissingKey(t *testing.T) {
	cache := NewRedisCache()
	_, ok := cache.Get("cache:test:absent")
	assert.False(t, ok)
}
