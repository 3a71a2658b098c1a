package httputil

import (
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/matzehuels/stackrank/pkg/buildinfo"
	"github.com/matzehuels/stackrank/pkg/observability"
)

// Transport is an http.RoundTripper that applies an optional rate limit,
// sets the stackrank User-Agent when the request has none, and reports
// requests to [observability.HTTP] hooks.
type Transport struct {
	base    http.RoundTripper
	limiter *rate.Limiter
}

// NewTransport wraps base (http.DefaultTransport when nil). A nil limiter
// disables rate limiting.
func NewTransport(base http.RoundTripper, limiter *rate.Limiter) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Transport{base: base, limiter: limiter}
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	hooks := observability.HTTP()
	host, path := req.URL.Host, req.URL.Path

	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			hooks.OnError(ctx, req.Method, host, path, err)
			return nil, err
		}
	}

	if req.Header.Get("User-Agent") == "" {
		req = req.Clone(ctx)
		req.Header.Set("User-Agent", buildinfo.UserAgent())
	}

	hooks.OnRequest(ctx, req.Method, host, path)
	start := time.Now()
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		hooks.OnError(ctx, req.Method, host, path, err)
		return nil, err
	}
	hooks.OnResponse(ctx, req.Method, host, path, resp.StatusCode, time.Since(start))
	return resp, nil
}
