package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/stackrank/pkg/cache"
	"github.com/matzehuels/stackrank/pkg/ecosystem"
	"github.com/matzehuels/stackrank/pkg/observability"
	"github.com/matzehuels/stackrank/pkg/stats"
)

// ErrNoSourceHost is returned by [Orchestrator.FetchSourceHost] when the
// orchestrator was built without a source host.
var ErrNoSourceHost = errors.New("no source host configured")

// Orchestrator owns the collaborators shared by all sessions.
type Orchestrator struct {
	adapters       *ecosystem.Registry
	host           ecosystem.SourceHost
	query          *cache.Query
	registryPolicy cache.Policy
	hostPolicy     cache.Policy
	logger         *log.Logger
}

// Option configures an [Orchestrator].
type Option func(*Orchestrator)

// WithSourceHost enables repository enrichment.
func WithSourceHost(h ecosystem.SourceHost) Option {
	return func(o *Orchestrator) { o.host = h }
}

// WithQuery sets the cache layer. Without it nothing is cached, but
// concurrent fetches of one key are still shared.
func WithQuery(q *cache.Query) Option {
	return func(o *Orchestrator) { o.query = q }
}

// WithPolicies overrides the stale and gc horizons of both layers.
func WithPolicies(registry, sourceHost cache.Policy) Option {
	return func(o *Orchestrator) {
		o.registryPolicy = registry
		o.hostPolicy = sourceHost
	}
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// New creates an orchestrator over adapters.
func New(adapters *ecosystem.Registry, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		adapters:       adapters,
		registryPolicy: cache.RegistryPolicy,
		hostPolicy:     cache.SourceHostPolicy,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.query == nil {
		o.query = cache.NewQuery(cache.NewNullCache())
	}
	if o.logger == nil {
		o.logger = log.Default()
	}
	return o
}

// RegistryKey is the cache key of a request's registry record.
func RegistryKey(req ecosystem.Request) cache.Key {
	return cache.Key{Resource: cache.ResourceRegistry, Ecosystem: string(req.Ecosystem), ID: req.Name}
}

// SourceHostKey is the cache key of a request's source-host record.
func SourceHostKey(req ecosystem.Request) cache.Key {
	return cache.Key{Resource: cache.ResourceSourceHost, Ecosystem: string(req.Ecosystem), ID: req.Name}
}

// FetchRegistry returns the registry-only record for req, from cache when fresh.
func (o *Orchestrator) FetchRegistry(ctx context.Context, req ecosystem.Request, force bool) (*stats.PackageStats, error) {
	return instrumented(ctx, o, cache.ResourceRegistry, req, func(ctx context.Context) (*stats.PackageStats, error) {
		return cache.Fetch(ctx, o.query, RegistryKey(req), o.registryPolicy, func(ctx context.Context) (*stats.PackageStats, error) {
			return o.adapters.Fetch(ctx, req, ecosystem.WithoutSourceHost())
		}, fetchOptions(force)...)
	})
}

// FetchSourceHost returns the repository enrichment for req, from cache when fresh.
func (o *Orchestrator) FetchSourceHost(ctx context.Context, req ecosystem.Request, repoURL string, force bool) (*stats.GitHubStats, error) {
	if o.host == nil {
		return nil, ErrNoSourceHost
	}
	return instrumented(ctx, o, cache.ResourceSourceHost, req, func(ctx context.Context) (*stats.GitHubStats, error) {
		return cache.Fetch(ctx, o.query, SourceHostKey(req), o.hostPolicy, func(ctx context.Context) (*stats.GitHubStats, error) {
			return o.host.Enrich(ctx, repoURL)
		}, fetchOptions(force)...)
	})
}

// Invalidate drops the cached layers of req selected by scope.
func (o *Orchestrator) Invalidate(ctx context.Context, req ecosystem.Request, scope Scope) error {
	var errs []error
	if scope.Has(ScopeRegistry) {
		errs = append(errs, o.query.Invalidate(ctx, RegistryKey(req)))
	}
	if scope.Has(ScopeSourceHost) {
		errs = append(errs, o.query.Invalidate(ctx, SourceHostKey(req)))
	}
	return errors.Join(errs...)
}

// HasSourceHost reports whether repository enrichment is enabled.
func (o *Orchestrator) HasSourceHost() bool { return o.host != nil }

// Compare runs a one-shot session for reqs and returns its final snapshot.
// If ctx ends first, the snapshot taken at that moment is returned with
// ctx.Err(); it holds every package that had already loaded.
func (o *Orchestrator) Compare(ctx context.Context, reqs []ecosystem.Request, opts ...SessionOption) (Snapshot, error) {
	s := o.NewSession(ctx, opts...)
	defer s.Close()
	s.SetPackages(reqs)
	err := s.Wait(ctx)
	return s.Snapshot(), err
}

func fetchOptions(force bool) []cache.FetchOption {
	if force {
		return []cache.FetchOption{cache.Force()}
	}
	return nil
}

func instrumented[T any](ctx context.Context, o *Orchestrator, layer string, req ecosystem.Request, fn func(context.Context) (T, error)) (T, error) {
	hooks := observability.Fetch()
	hooks.OnFetchStart(ctx, layer, string(req.Ecosystem), req.Name)
	start := time.Now()

	v, err := fn(ctx)

	elapsed := time.Since(start)
	hooks.OnFetchComplete(ctx, layer, string(req.Ecosystem), req.Name, elapsed, err)
	if err != nil {
		o.logger.Debug("fetch failed", "layer", layer, "package", req.Key(), "duration", elapsed.Round(time.Millisecond), "error", err)
	} else {
		o.logger.Debug("fetched", "layer", layer, "package", req.Key(), "duration", elapsed.Round(time.Millisecond))
	}
	return v, err
}
