// Package httputil provides HTTP plumbing shared by the registry clients.
//
// # Overview
//
//   - [Retry]: bounded retry with exponential backoff for [RetryableError]s
//   - [Transport]: an http.RoundTripper that waits on an optional rate limiter
//     and reports every request to the registered observability hooks
//
// Registry clients never retry on their own. They mark transient failures
// (network errors, 5xx responses) with [RetryableError] and leave the retry
// decision to the caller, normally the cache query layer.
//
// # Rate Limiting
//
// [NewTransport] accepts a *rate.Limiter from golang.org/x/time/rate. Requests
// block until the limiter admits them or the request context is cancelled:
//
//	limiter := rate.NewLimiter(rate.Every(time.Hour/60), 1)
//	client := &http.Client{Transport: httputil.NewTransport(nil, limiter)}
package httputil
