// Package catalog answers package-name autocomplete queries.
//
// npm queries go to the scoring service's suggestion endpoint. PyPI has no
// search API, so the catalog downloads a package list (the full simple
// index, or the curated popular list when the full one cannot be loaded),
// caches it, and ranks names locally with [Search].
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/matzehuels/stackrank/pkg/cache"
	apperrors "github.com/matzehuels/stackrank/pkg/errors"
	"github.com/matzehuels/stackrank/pkg/integrations/npm"
	"github.com/matzehuels/stackrank/pkg/integrations/pypi"
	"github.com/matzehuels/stackrank/pkg/stats"
)

// DefaultLimit caps results when the caller passes limit <= 0.
const DefaultLimit = 10

// DefaultFullIndexBackoff is how long a failed full-index download keeps
// later lookups on the popular list.
const DefaultFullIndexBackoff = 5 * time.Minute

// Suggestion is one autocomplete hit.
type Suggestion struct {
	Name        string          `json:"name"`
	Ecosystem   stats.Ecosystem `json:"ecosystem"`
	Description string          `json:"description,omitempty"`
	Version     string          `json:"version,omitempty"`
	Downloads   int64           `json:"downloads,omitempty"`
	Score       float64         `json:"score"`
}

// NPMSuggester is the part of [npm.Client] the catalog uses.
type NPMSuggester interface {
	FetchSuggestions(ctx context.Context, query string, size int) ([]npm.Suggestion, error)
}

// PyPIIndex is the part of [pypi.IndexClient] the catalog uses.
type PyPIIndex interface {
	FetchIndex(ctx context.Context, ds pypi.Dataset) ([]pypi.IndexEntry, error)
}

// Catalog serves suggestions for every supported ecosystem.
type Catalog struct {
	npm    NPMSuggester
	pypi   PyPIIndex
	query  *cache.Query
	policy cache.Policy
	memo   *expirable.LRU[string, []Suggestion]
	logger *log.Logger

	// failed remembers datasets whose last download failed, until the
	// entry expires.
	failed  *expirable.LRU[pypi.Dataset, error]
	backoff time.Duration
}

// Option configures a [Catalog].
type Option func(*Catalog)

// WithQuery caches package lists through q.
func WithQuery(q *cache.Query) Option { return func(c *Catalog) { c.query = q } }

// WithPolicy overrides the package-list cache policy.
func WithPolicy(p cache.Policy) Option { return func(c *Catalog) { c.policy = p } }

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option { return func(c *Catalog) { c.logger = l } }

// WithMemo sets the size and lifetime of the in-process result memo.
func WithMemo(size int, ttl time.Duration) Option {
	return func(c *Catalog) { c.memo = expirable.NewLRU[string, []Suggestion](size, nil, ttl) }
}

// WithFullIndexBackoff sets how long a full-index failure is remembered.
func WithFullIndexBackoff(d time.Duration) Option {
	return func(c *Catalog) { c.backoff = d }
}

// New creates a catalog. Either source may be nil to disable its ecosystem.
func New(npmSource NPMSuggester, pypiIndex PyPIIndex, opts ...Option) *Catalog {
	c := &Catalog{
		npm:    npmSource,
		pypi:   pypiIndex,
		policy: cache.PackageListPolicy,
		memo:    expirable.NewLRU[string, []Suggestion](256, nil, 10*time.Minute),
		backoff: DefaultFullIndexBackoff,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.backoff <= 0 {
		c.backoff = DefaultFullIndexBackoff
	}
	c.failed = expirable.NewLRU[pypi.Dataset, error](4, nil, c.backoff)
	if c.query == nil {
		c.query = cache.NewQuery(cache.NewNullCache())
	}
	if c.logger == nil {
		c.logger = log.Default()
	}
	return c
}

// Suggest returns up to limit suggestions for query. Queries that fail
// validation yield an empty list rather than an error.
func (c *Catalog) Suggest(ctx context.Context, eco stats.Ecosystem, query string, limit int) ([]Suggestion, error) {
	query = strings.TrimSpace(query)
	if err := apperrors.ValidateSearchQuery(query); err != nil {
		return []Suggestion{}, nil
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	memoKey := fmt.Sprintf("%s|%d|%s", eco, limit, strings.ToLower(query))
	if hit, ok := c.memo.Get(memoKey); ok {
		return hit, nil
	}

	var (
		out []Suggestion
		err error
	)
	switch eco {
	case stats.NPM:
		out, err = c.suggestNPM(ctx, query, limit)
	case stats.PyPI:
		out, err = c.suggestPyPI(ctx, query, limit)
	default:
		return nil, apperrors.New(apperrors.ErrCodeInvalidEcosystem, "unsupported ecosystem %q", eco)
	}
	if err != nil {
		return nil, err
	}
	c.memo.Add(memoKey, out)
	return out, nil
}

func (c *Catalog) suggestNPM(ctx context.Context, query string, limit int) ([]Suggestion, error) {
	if c.npm == nil {
		return nil, apperrors.New(apperrors.ErrCodeUnsupported, "npm suggestions are disabled")
	}
	hits, err := c.npm.FetchSuggestions(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	out := make([]Suggestion, 0, len(hits))
	for _, h := range hits {
		out = append(out, Suggestion{
			Name:        h.Package.Name,
			Ecosystem:   stats.NPM,
			Description: h.Package.Description,
			Version:     h.Package.Version,
			Score:       h.SearchScore,
		})
	}
	return out, nil
}

func (c *Catalog) suggestPyPI(ctx context.Context, query string, limit int) ([]Suggestion, error) {
	entries, _, err := c.PackageList(ctx)
	if err != nil {
		return nil, err
	}
	return Search(entries, query, limit), nil
}

// PackageList returns the PyPI package list and the dataset it came from.
// The full index is tried first; the popular list is the fallback. After the
// full index fails, it is not tried again until the backoff has passed.
func (c *Catalog) PackageList(ctx context.Context) ([]pypi.IndexEntry, pypi.Dataset, error) {
	if c.pypi == nil {
		return nil, "", apperrors.New(apperrors.ErrCodeUnsupported, "pypi suggestions are disabled")
	}
	if lastErr, down := c.failed.Get(pypi.DatasetFull); down {
		c.logger.Debug("full package index recently failed, using popular list", "error", lastErr)
	} else {
		full, err := c.dataset(ctx, pypi.DatasetFull)
		if err == nil && len(full) > 0 {
			return full, pypi.DatasetFull, nil
		}
		if err == nil {
			err = errors.New("empty index")
		}
		if ctx.Err() == nil {
			c.failed.Add(pypi.DatasetFull, err)
		}
		c.logger.Debug("full package index unavailable, using popular list", "error", err, "retry_in", c.backoff)
	}

	popular, perr := c.dataset(ctx, pypi.DatasetPopular)
	if perr != nil {
		return nil, "", fmt.Errorf("load package list: %w", perr)
	}
	return popular, pypi.DatasetPopular, nil
}

func (c *Catalog) dataset(ctx context.Context, ds pypi.Dataset) ([]pypi.IndexEntry, error) {
	key := cache.Key{Resource: cache.ResourcePackageList, Ecosystem: string(stats.PyPI), ID: string(ds)}
	return cache.Fetch(ctx, c.query, key, c.policy, func(ctx context.Context) ([]pypi.IndexEntry, error) {
		return c.pypi.FetchIndex(ctx, ds)
	})
}
