package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryCache is an in-process cache. Entries are lost when the process exits.
type MemoryCache struct {
	c *gocache.Cache
}

// NewMemoryCache creates an in-memory cache that sweeps expired entries every
// cleanupInterval.
func NewMemoryCache(cleanupInterval time.Duration) *MemoryCache {
	return &MemoryCache{c: gocache.New(gocache.NoExpiration, cleanupInterval)}
}

func (m *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := m.c.Get(key)
	if !ok {
		return nil, false, nil
	}
	data, _ := v.([]byte)
	return data, true, nil
}

func (m *MemoryCache) Set(_ context.Context, key string, data []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	m.c.Set(key, append([]byte(nil), data...), ttl)
	return nil
}

func (m *MemoryCache) Delete(_ context.Context, key string) error {
	m.c.Delete(key)
	return nil
}

// Len returns the number of stored entries, including expired ones not yet swept.
func (m *MemoryCache) Len() int { return m.c.ItemCount() }

func (m *MemoryCache) Close() error {
	m.c.Flush()
	return nil
}

var _ Cache = (*MemoryCache)(nil)
