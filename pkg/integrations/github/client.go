package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	gh "github.com/google/go-github/v68/github"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/matzehuels/stackrank/pkg/httputil"
	"github.com/matzehuels/stackrank/pkg/integrations"
)

const httpTimeout = 10 * time.Second

// NewLimiter returns a rate limiter sized for the GitHub REST quota:
// 5000 requests per hour with a token, 60 without.
func NewLimiter(authenticated bool) *rate.Limiter {
	if authenticated {
		return rate.NewLimiter(rate.Every(time.Hour/5000), 100)
	}
	return rate.NewLimiter(rate.Every(time.Hour/60), 60)
}

// Client reads repository metadata and READMEs from the GitHub REST API.
type Client struct {
	gh            *gh.Client
	authenticated bool
}

// Option configures a [Client].
type Option func(*options)

type options struct {
	token   string
	limiter *rate.Limiter
	http    *http.Client
	baseURL string
}

// WithToken authenticates requests with a bearer token. An empty token keeps
// the client anonymous.
func WithToken(token string) Option {
	return func(o *options) { o.token = strings.TrimSpace(token) }
}

// WithLimiter overrides the default [NewLimiter] limiter.
func WithLimiter(l *rate.Limiter) Option {
	return func(o *options) { o.limiter = l }
}

// WithHTTPClient replaces the HTTP client. The token and limiter options are
// ignored when it is set.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.http = c }
}

// WithBaseURL points the client at a GitHub Enterprise or test server.
func WithBaseURL(u string) Option {
	return func(o *options) { o.baseURL = u }
}

// NewClient creates a GitHub client.
func NewClient(opts ...Option) (*Client, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	httpClient := o.http
	if httpClient == nil {
		limiter := o.limiter
		if limiter == nil {
			limiter = NewLimiter(o.token != "")
		}
		var transport http.RoundTripper = httputil.NewTransport(nil, limiter)
		if o.token != "" {
			transport = &oauth2.Transport{
				Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: o.token}),
				Base:   transport,
			}
		}
		httpClient = &http.Client{Timeout: httpTimeout, Transport: transport}
	}

	client := gh.NewClient(httpClient)
	if o.baseURL != "" {
		base, err := url.Parse(strings.TrimSuffix(o.baseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("github: parse base url: %w", err)
		}
		client.BaseURL = base
	}
	return &Client{gh: client, authenticated: o.token != ""}, nil
}

// Authenticated reports whether the client sends a token.
func (c *Client) Authenticated() bool { return c.authenticated }

// FetchRepository returns the repository that repoURL points to.
//
// Errors wrap [integrations.ErrInvalidRepoURL] for URLs that are not GitHub
// repositories, [integrations.ErrNotFound] for 404 and
// [integrations.ErrRateLimited] for 403/429 or an exhausted quota.
func (c *Client) FetchRepository(ctx context.Context, repoURL string) (*RepoRecord, error) {
	owner, repo, err := ParseRepoURL(repoURL)
	if err != nil {
		return nil, err
	}
	r, _, err := c.gh.Repositories.Get(ctx, owner, repo)
	if err != nil {
		return nil, classify(ctx, err, owner+"/"+repo)
	}
	return newRepoRecord(r), nil
}

// FetchReadme returns the decoded README of the repository. A repository
// without a README yields ("", false, nil).
func (c *Client) FetchReadme(ctx context.Context, repoURL string) (string, bool, error) {
	owner, repo, err := ParseRepoURL(repoURL)
	if err != nil {
		return "", false, err
	}
	content, _, err := c.gh.Repositories.GetReadme(ctx, owner, repo, nil)
	if err != nil {
		err = classify(ctx, err, owner+"/"+repo+" readme")
		if errors.Is(err, integrations.ErrNotFound) {
			return "", false, nil
		}
		return "", false, err
	}
	text, err := content.GetContent()
	if err != nil {
		return "", false, fmt.Errorf("github: decode readme %s/%s: %w", owner, repo, err)
	}
	return text, true, nil
}

// Whoami returns the user the token belongs to.
func (c *Client) Whoami(ctx context.Context) (*User, error) {
	u, _, err := c.gh.Users.Get(ctx, "")
	if err != nil {
		return nil, classify(ctx, err, "authenticated user")
	}
	return &User{
		ID:        u.GetID(),
		Login:     u.GetLogin(),
		Name:      u.GetName(),
		AvatarURL: u.GetAvatarURL(),
		Email:     u.GetEmail(),
	}, nil
}

// classify maps go-github errors onto the integrations sentinels.
func classify(ctx context.Context, err error, what string) error {
	var (
		rateLimit  *gh.RateLimitError
		abuseLimit *gh.AbuseRateLimitError
		respErr    *gh.ErrorResponse
	)
	switch {
	case errors.As(err, &rateLimit), errors.As(err, &abuseLimit):
		return fmt.Errorf("github: %w: %s", integrations.ErrRateLimited, what)
	case errors.As(err, &respErr) && respErr.Response != nil:
		switch code := respErr.Response.StatusCode; {
		case code == http.StatusUnauthorized:
			return fmt.Errorf("github: bad credentials: %s (status %d)", what, code)
		case code == http.StatusNotFound:
			return fmt.Errorf("github: %w: %s", integrations.ErrNotFound, what)
		case code == http.StatusForbidden, code == http.StatusTooManyRequests:
			return fmt.Errorf("github: %w: %s (status %d)", integrations.ErrRateLimited, what, code)
		case code >= 500:
			return httputil.Retryable(fmt.Errorf("github: %w: %s (status %d)", integrations.ErrNetwork, what, code))
		default:
			return fmt.Errorf("github: %w: %s (status %d)", integrations.ErrNetwork, what, code)
		}
	case ctx.Err() != nil:
		return fmt.Errorf("github: %s: %w", what, ctx.Err())
	default:
		return httputil.Retryable(fmt.Errorf("github: %w: %s: %w", integrations.ErrNetwork, what, err))
	}
}

func newRepoRecord(r *gh.Repository) *RepoRecord {
	rec := &RepoRecord{
		Owner:         r.GetOwner().GetLogin(),
		Name:          r.GetName(),
		FullName:      r.GetFullName(),
		Stars:         int64(r.GetStargazersCount()),
		Forks:         int64(r.GetForksCount()),
		OpenIssues:    int64(r.GetOpenIssuesCount()),
		Subscribers:   int64(r.GetSubscribersCount()),
		SizeKB:        int64(r.GetSize()),
		DefaultBranch: r.GetDefaultBranch(),
		Homepage:      r.GetHomepage(),
		Language:      r.GetLanguage(),
		Archived:      r.GetArchived(),
	}
	rec.CreatedAt = timestamp(r.CreatedAt)
	rec.UpdatedAt = timestamp(r.UpdatedAt)
	rec.PushedAt = timestamp(r.PushedAt)
	return rec
}

func timestamp(ts *gh.Timestamp) *time.Time {
	if ts == nil || ts.IsZero() {
		return nil
	}
	t := ts.Time
	return &t
}
