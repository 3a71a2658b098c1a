package cache

import (
	"context"
	"time"
)

// NullCache stores nothing. It backs --no-cache and the "none" backend, and
// is the fallback when a [Query] is built without a backend. [Fetch] still
// deduplicates concurrent calls on top of it, so a session that asks for
// the same package twice fetches it once.
type NullCache struct{}

// NewNullCache returns a [NullCache].
func NewNullCache() Cache { return &NullCache{} }

// Get always misses.
func (*NullCache) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }

func (*NullCache) Set(context.Context, string, []byte, time.Duration) error { return nil }

func (*NullCache) Delete(context.Context, string) error { return nil }

func (*NullCache) Close() error { return nil }

var _ Cache = (*NullCache)(nil)
