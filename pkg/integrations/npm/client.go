package npm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	apperrors "github.com/matzehuels/stackrank/pkg/errors"
	"github.com/matzehuels/stackrank/pkg/integrations"
)

// DefaultBaseURL is the npms.io v2 API root.
const DefaultBaseURL = "https://api.npms.io/v2"

const (
	defaultSuggestions = 25
	maxSuggestions     = 250
)

// Client talks to the npms.io scoring service, which serves npm registry
// metadata together with download counts, mirrored GitHub figures and scores.
type Client struct {
	*integrations.Client
	baseURL string
}

// Option configures a [Client].
type Option func(*options)

type options struct {
	baseURL string
	http    *http.Client
}

// WithBaseURL points the client at a different npms-compatible service.
func WithBaseURL(u string) Option {
	return func(o *options) { o.baseURL = strings.TrimSuffix(u, "/") }
}

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.http = c }
}

// NewClient creates an npms client.
func NewClient(opts ...Option) *Client {
	o := options{baseURL: DefaultBaseURL}
	for _, opt := range opts {
		opt(&o)
	}
	return &Client{
		Client:  integrations.NewClient("npm", o.http, nil),
		baseURL: o.baseURL,
	}
}

// FetchPackage returns the npms record for pkg. An unknown package yields an
// error wrapping [integrations.ErrNotFound].
func (c *Client) FetchPackage(ctx context.Context, pkg string) (*PackageRecord, error) {
	pkg = strings.TrimSpace(pkg)
	var rec PackageRecord
	if err := c.Get(ctx, c.baseURL+"/package/"+integrations.URLEncode(pkg), &rec); err != nil {
		if errors.Is(err, integrations.ErrNotFound) {
			return nil, fmt.Errorf("%w: npm package %s", err, pkg)
		}
		return nil, err
	}
	return &rec, nil
}

// FetchPackages fetches several records in one request. Names the service
// cannot resolve are omitted from the result rather than failing the batch.
func (c *Client) FetchPackages(ctx context.Context, pkgs []string) (map[string]*PackageRecord, error) {
	out := make(map[string]*PackageRecord, len(pkgs))
	if len(pkgs) == 0 {
		return out, nil
	}
	var raw map[string]*PackageRecord
	if err := c.Post(ctx, c.baseURL+"/package/mget", pkgs, &raw); err != nil {
		return nil, err
	}
	for name, rec := range raw {
		if rec != nil && rec.Collected.Metadata.Name != "" {
			out[name] = rec
		}
	}
	return out, nil
}

// FetchSuggestions returns up to size ranked completions for query. An empty
// or invalid query, or one nothing matches, yields an empty slice.
func (c *Client) FetchSuggestions(ctx context.Context, query string, size int) ([]Suggestion, error) {
	query = strings.TrimSpace(query)
	if apperrors.ValidateSearchQuery(query) != nil {
		return []Suggestion{}, nil
	}
	if size <= 0 {
		size = defaultSuggestions
	}
	size = min(size, maxSuggestions)

	q := url.Values{}
	q.Set("q", query)
	q.Set("size", strconv.Itoa(size))

	var out []Suggestion
	if err := c.Get(ctx, c.baseURL+"/search/suggestions?"+q.Encode(), &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []Suggestion{}
	}
	return out, nil
}
