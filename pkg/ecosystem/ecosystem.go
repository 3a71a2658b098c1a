// Package ecosystem defines the adapter contract that turns registry records
// into [stats.PackageStats], plus the shared source-host enrichment.
//
// Adapters are constructed explicitly and handed to the orchestrator through
// a [Registry]; nothing here is a package-level singleton.
package ecosystem

import (
	"context"
	"fmt"
	"strings"

	"github.com/matzehuels/stackrank/pkg/stats"
)

// Request names one package in one ecosystem.
type Request struct {
	Name      string          `json:"name"`
	Ecosystem stats.Ecosystem `json:"ecosystem"`
}

// Key returns "ecosystem:name", the join key used across sessions.
func (r Request) Key() string {
	return string(r.Ecosystem) + ":" + r.Name
}

func (r Request) String() string { return r.Key() }

// ParseRequest parses "ecosystem:name" (e.g. "npm:@babel/core", "pypi:flask").
// A bare name is assigned to def; def may be empty to require a prefix.
func ParseRequest(s string, def stats.Ecosystem) (Request, error) {
	s = strings.TrimSpace(s)
	prefix, name, found := strings.Cut(s, ":")
	if found {
		eco, err := stats.ParseEcosystem(prefix)
		if err != nil {
			return Request{}, err
		}
		return newRequest(name, eco)
	}
	if def == "" {
		return Request{}, fmt.Errorf("package %q has no ecosystem prefix (use npm:%s or pypi:%s)", s, s, s)
	}
	return newRequest(s, def)
}

func newRequest(name string, eco stats.Ecosystem) (Request, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Request{}, fmt.Errorf("empty package name")
	}
	if eco == stats.NPM {
		name = strings.ToLower(name)
	}
	return Request{Name: name, Ecosystem: eco}, nil
}

// Adapter fetches and normalizes one ecosystem's package data.
// Implementations must be safe for concurrent use and must not cache.
type Adapter interface {
	// Fetch returns the normalized record for req. Registry failures are
	// returned as errors; source-host failures degrade to warnings.
	Fetch(ctx context.Context, req Request, opts ...FetchOption) (*stats.PackageStats, error)

	// Supports reports whether the adapter handles eco.
	Supports(eco stats.Ecosystem) bool
}

// FetchOptions holds per-call adapter options.
type FetchOptions struct {
	// SkipSourceHost disables repository enrichment inside the adapter.
	SkipSourceHost bool
}

// FetchOption modifies [FetchOptions].
type FetchOption func(*FetchOptions)

// WithoutSourceHost makes the adapter return registry data only. The
// orchestrator uses it because it fetches and caches the source host itself.
func WithoutSourceHost() FetchOption {
	return func(o *FetchOptions) { o.SkipSourceHost = true }
}

// ApplyOptions folds opts into a [FetchOptions].
func ApplyOptions(opts []FetchOption) FetchOptions {
	var o FetchOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Registry routes requests to adapters.
type Registry struct {
	adapters []Adapter
}

// NewRegistry creates a registry. Earlier adapters win when several support
// the same ecosystem.
func NewRegistry(adapters ...Adapter) *Registry {
	return &Registry{adapters: adapters}
}

// For returns the adapter for eco.
func (r *Registry) For(eco stats.Ecosystem) (Adapter, error) {
	for _, a := range r.adapters {
		if a.Supports(eco) {
			return a, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedEcosystem, eco)
}

// Fetch routes req to its adapter.
func (r *Registry) Fetch(ctx context.Context, req Request, opts ...FetchOption) (*stats.PackageStats, error) {
	a, err := r.For(req.Ecosystem)
	if err != nil {
		return nil, err
	}
	return a.Fetch(ctx, req, opts...)
}
