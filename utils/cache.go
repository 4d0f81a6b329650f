package utils

import (
	"context"
	"sync"
	"time"
)

// ByteCache is a key -> (bytes, expiry) store backing the home page cache.
// Entries expire only by elapsed time; there is no write-path invalidation.
type ByteCache interface {
	Get(key string) ([]byte, bool)
	Set(key string, b []byte, ttl time.Duration)
}

// RedisCache stores entries in Redis with a TTL.
type RedisCache struct{}

// NewRedisCache returns a ByteCache backed by the shared Redis client.
func NewRedisCache() *RedisCache { return &RedisCache{} }

// Get returns cached bytes for a key from Redis.
func (r *RedisCache) Get(key string) ([]byte, bool) {
	rc := GetRedis()
	if rc == nil {
		return nil, false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	b, err := rc.Get(ctx, key).Bytes()
	if err != nil {
		if Sugar != nil {
			Sugar.Debugf("cache get miss key=%s err=%v", key, err)
		}
		return nil, false
	}
	return b, true
}

// Set stores bytes with the given TTL.
func (r *RedisCache) Set(key string, b []byte, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	rc := GetRedis()
	if rc == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rc.Set(ctx, key, b, ttl).Err(); err != nil {
		if Sugar != nil {
			Sugar.Warnf("cache set failed key=%s err=%v", key, err)
		}
	}
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryCache is an in-process ByteCache with an injectable clock. It serves
// as the fallback when Redis is unreachable and gives tests deterministic
// control over expiry.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryCache returns a MemoryCache using the supplied clock, or
// time.Now when nil.
func NewMemoryCache(now func() time.Time) *MemoryCache {
	if now == nil {
		now = time.Now
	}
	return &MemoryCache{entries: map[string]memoryEntry{}, now: now}
}

// Get returns the value for key if it has not expired.
func (m *MemoryCache) Get(key string) ([]byte, bool) {
	m.mu.RLock()
	entry, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if m.now().After(entry.expiresAt) {
		m.mu.Lock()
		delete(m.entries, key)
		m.mu.Unlock()
		return nil, false
	}
	return entry.value, true
}

// Set stores value under key until now+ttl.
func (m *MemoryCache) Set(key string, b []byte, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	m.mu.Lock()
	m.entries[key] = memoryEntry{value: b, expiresAt: m.now().Add(ttl)}
	m.mu.Unlock()
}
