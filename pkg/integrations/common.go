package integrations

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/matzehuels/stackrank/pkg/httputil"
)

const httpTimeout = 10 * time.Second

var (
	// ErrNotFound is returned when a package or resource doesn't exist in the registry.
	ErrNotFound = errors.New("resource not found")

	// ErrNetwork is returned for HTTP failures (timeouts, connection errors, 5xx responses).
	ErrNetwork = errors.New("network error")

	// ErrRateLimited is returned when an API refuses requests because a quota is exhausted.
	ErrRateLimited = errors.New("rate limited")

	// ErrInvalidRepoURL is returned when a repository URL cannot be mapped to a source host.
	ErrInvalidRepoURL = errors.New("invalid repository url")
)

// NewHTTPClient creates an HTTP client with a standard timeout for registry
// requests. Requests wait on limiter when it is non-nil and report to the
// registered HTTP hooks.
func NewHTTPClient(limiter *rate.Limiter) *http.Client {
	return &http.Client{
		Timeout:   httpTimeout,
		Transport: httputil.NewTransport(nil, limiter),
	}
}

// NormalizePkgName converts a package name to its canonical form.
// Applies lowercase and replaces underscores with hyphens, following PEP 503
// normalization rules used by PyPI.
func NormalizePkgName(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "_", "-")
}

var repoURLReplacer = strings.NewReplacer(
	"git@github.com:", "https://github.com/",
	"git://github.com/", "https://github.com/",
	"git+ssh://git@github.com/", "https://github.com/",
	"ssh://git@github.com/", "https://github.com/",
)

// NormalizeRepoURL converts various repository URL formats to canonical HTTPS form.
// Handles git@, git://, ssh:// and git+ prefixes, and removes .git suffixes.
// Returns empty string if raw is empty.
func NormalizeRepoURL(raw string) string {
	if raw == "" {
		return ""
	}
	s := strings.TrimSpace(raw)
	s = repoURLReplacer.Replace(s)
	s = strings.TrimPrefix(s, "git+")
	s = strings.TrimSuffix(s, "/")
	return strings.TrimSuffix(s, ".git")
}

// URLEncode percent-encodes a string for use in URLs.
// This is a convenience wrapper around [url.QueryEscape].
func URLEncode(s string) string { return url.QueryEscape(s) }
