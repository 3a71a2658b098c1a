package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"

	"github.com/matzehuels/stackrank/pkg/httputil"
	"github.com/matzehuels/stackrank/pkg/observability"
)

// Policy controls how long a cached value is served.
type Policy struct {
	// StaleTime is how long a value is considered fresh.
	StaleTime time.Duration
	// GCTime is how long the backend keeps a value at all. Stale values are
	// still used as a fallback when a refetch fails.
	GCTime time.Duration
}

// Default policies.
var (
	RegistryPolicy    = Policy{StaleTime: 72 * time.Hour, GCTime: 7 * 24 * time.Hour}
	SourceHostPolicy  = Policy{StaleTime: 72 * time.Hour, GCTime: 7 * 24 * time.Hour}
	PackageListPolicy = Policy{StaleTime: 72 * time.Hour, GCTime: 14 * 24 * time.Hour}
)

type entry struct {
	Data      json.RawMessage `json:"data"`
	FetchedAt time.Time       `json:"fetchedAt"`
}

// Query serves values from a [Cache] and refetches them when stale.
// Concurrent fetches of the same key share one call.
type Query struct {
	backend    Cache
	group      singleflight.Group
	logger     *log.Logger
	now        func() time.Time
	retryDelay time.Duration
	retries    int
}

// QueryOption configures a [Query].
type QueryOption func(*Query)

// WithLogger sets the logger used for stale-fallback warnings.
func WithLogger(l *log.Logger) QueryOption {
	return func(q *Query) { q.logger = l }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) QueryOption {
	return func(q *Query) { q.now = now }
}

// WithRetryDelay sets the pause before retrying a retryable failure.
func WithRetryDelay(d time.Duration) QueryOption {
	return func(q *Query) { q.retryDelay = d }
}

// WithRetries sets how many times a retryable failure is retried. The
// default is 1; 0 disables retries.
func WithRetries(n int) QueryOption {
	return func(q *Query) {
		if n >= 0 {
			q.retries = n
		}
	}
}

// NewQuery creates a query layer over backend. A nil backend disables caching.
func NewQuery(backend Cache, opts ...QueryOption) *Query {
	if backend == nil {
		backend = NewNullCache()
	}
	q := &Query{
		backend:    backend,
		logger:     log.New(io.Discard),
		now:        time.Now,
		retryDelay: time.Second,
		retries:    1,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Backend returns the underlying cache.
func (q *Query) Backend() Cache { return q.backend }

// Invalidate removes key so the next [Fetch] goes to the source.
func (q *Query) Invalidate(ctx context.Context, key Key) error {
	k := key.String()
	q.group.Forget(k)
	return q.backend.Delete(ctx, k)
}

// FetchOption modifies a single [Fetch] call.
type FetchOption func(*fetchConfig)

type fetchConfig struct {
	force bool
}

// Force skips the freshness check. The stored value is still used as a
// fallback if the fetch fails.
func Force() FetchOption {
	return func(c *fetchConfig) { c.force = true }
}

// Fetch returns the value for key, calling fn when there is no fresh entry.
// Only [httputil.RetryableError] failures are retried, once by default. If fn
// fails and a stale value exists, the stale value is returned without error.
//
// Concurrent callers of the same key share one call of fn, which runs
// without the callers' cancellation. A caller whose ctx ends stops waiting
// and gets ctx.Err(); the shared call keeps running for the others.
func Fetch[T any](ctx context.Context, q *Query, key Key, policy Policy, fn func(context.Context) (T, error), opts ...FetchOption) (T, error) {
	var cfg fetchConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	k := key.String()
	hooks := observability.Cache()

	var zero T
	stale, fetchedAt, found := readEntry[T](ctx, q, k)
	if found && !cfg.force && q.now().Sub(fetchedAt) < policy.StaleTime {
		hooks.OnCacheHit(ctx, key.Resource, false)
		return stale, nil
	}
	if found {
		hooks.OnCacheHit(ctx, key.Resource, true)
	} else {
		hooks.OnCacheMiss(ctx, key.Resource)
	}

	// The shared call outlives any single caller: one caller giving up must
	// not fail the others waiting on the same key.
	fetchCtx := context.WithoutCancel(ctx)
	ch := q.group.DoChan(k, func() (any, error) {
		var out T
		err := httputil.Retry(fetchCtx, q.retries+1, q.retryDelay, func() error {
			var err error
			out, err = fn(fetchCtx)
			return err
		})
		if err != nil {
			return nil, err
		}
		if size, err := writeEntry(fetchCtx, q, k, policy, out); err != nil {
			q.logger.Warn("cache write failed", "key", k, "error", err)
		} else {
			hooks.OnCacheSet(fetchCtx, key.Resource, size)
		}
		return out, nil
	})

	var (
		v   any
		err error
	)
	select {
	case res := <-ch:
		v, err = res.Val, res.Err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
	if err != nil {
		if found {
			q.logger.Warn("refetch failed, serving stale value", "key", k, "age", q.now().Sub(fetchedAt).Round(time.Second), "error", err)
			return stale, nil
		}
		return zero, err
	}
	return v.(T), nil
}

// Get reads the stored value for key regardless of freshness. It returns
// [ErrCacheMiss] when nothing is stored.
func Get[T any](ctx context.Context, q *Query, key Key) (T, time.Time, error) {
	v, fetchedAt, ok := readEntry[T](ctx, q, key.String())
	if !ok {
		var zero T
		return zero, time.Time{}, ErrCacheMiss
	}
	return v, fetchedAt, nil
}

// Set stores v under key as if it had just been fetched.
func Set[T any](ctx context.Context, q *Query, key Key, policy Policy, v T) error {
	_, err := writeEntry(ctx, q, key.String(), policy, v)
	return err
}

func readEntry[T any](ctx context.Context, q *Query, k string) (T, time.Time, bool) {
	var zero T
	data, ok, err := q.backend.Get(ctx, k)
	if err != nil {
		q.logger.Warn("cache read failed", "key", k, "error", err)
		return zero, time.Time{}, false
	}
	if !ok {
		return zero, time.Time{}, false
	}
	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		return zero, time.Time{}, false
	}
	var v T
	if err := json.Unmarshal(e.Data, &v); err != nil {
		return zero, time.Time{}, false
	}
	return v, e.FetchedAt, true
}

func writeEntry[T any](ctx context.Context, q *Query, k string, policy Policy, v T) (int, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return 0, fmt.Errorf("encode %s: %w", k, err)
	}
	data, err := json.Marshal(entry{Data: raw, FetchedAt: q.now()})
	if err != nil {
		return 0, err
	}
	return len(data), q.backend.Set(ctx, k, data, policy.GCTime)
}
