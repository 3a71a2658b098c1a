// Package cache provides the byte-level storage backends and the stale-aware
// [Query] layer used by the comparison orchestrator.
//
// Backends implement [Cache] and only deal in opaque bytes with a TTL:
//
//   - [FileCache]: one JSON file per key under the user cache directory (CLI default)
//   - [MemoryCache]: in-process, backed by patrickmn/go-cache
//   - [RedisCache]: shared cache for `stackrank serve` deployments
//   - [MongoCache]: document store with a TTL index
//   - [NullCache]: disables caching
//
// [Query] adds freshness on top: entries younger than a [Policy]'s StaleTime
// are served directly, older ones are refetched, and the backend drops them
// after GCTime.
package cache

import (
	"context"
	"fmt"
	"time"
)

// Cache is a byte-level key/value store with per-entry expiry.
type Cache interface {
	// Get returns the stored bytes and whether the key was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A ttl <= 0 means the entry never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// Resource types stored through [Query].
const (
	ResourceRegistry    = "registry"
	ResourceSourceHost  = "source-host"
	ResourcePackageList = "package-list"
)

// Key identifies one cached resource.
type Key struct {
	Resource  string
	Ecosystem string
	ID        string
}

// String renders the backend key, e.g. "registry:npm:react".
func (k Key) String() string {
	return fmt.Sprintf("%s:%s:%s", k.Resource, k.Ecosystem, k.ID)
}

// Scoped prefixes every key before it reaches the wrapped cache. It is used to
// version the on-disk layout so an incompatible release never reads old entries.
type Scoped struct {
	inner  Cache
	prefix string
}

// NewScoped wraps inner so every key is stored as prefix+key.
func NewScoped(inner Cache, prefix string) Cache {
	if inner == nil {
		inner = NewNullCache()
	}
	return &Scoped{inner: inner, prefix: prefix}
}

func (s *Scoped) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return s.inner.Get(ctx, s.prefix+key)
}

func (s *Scoped) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	return s.inner.Set(ctx, s.prefix+key, data, ttl)
}

func (s *Scoped) Delete(ctx context.Context, key string) error {
	return s.inner.Delete(ctx, s.prefix+key)
}

func (s *Scoped) Close() error { return s.inner.Close() }

var _ Cache = (*Scoped)(nil)
