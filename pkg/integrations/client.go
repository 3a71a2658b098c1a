package integrations

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/matzehuels/stackrank/pkg/httputil"
)

// Client provides shared HTTP functionality for all registry API clients.
// It applies default headers, maps HTTP status codes onto the package
// sentinel errors, and prefixes every error with the client name.
//
// Client does not cache; caching and freshness are handled by [cache.Query]
// one layer up.
//
// [cache.Query]: github.com/matzehuels/stackrank/pkg/cache.Query
type Client struct {
	name    string
	http    *http.Client
	headers map[string]string
}

// NewClient creates a Client. name prefixes every error ("npm: resource not
// found"). A nil httpClient selects [NewHTTPClient] without rate limiting.
// Pass nil for headers if no default headers are needed.
func NewClient(name string, httpClient *http.Client, headers map[string]string) *Client {
	if httpClient == nil {
		httpClient = NewHTTPClient(nil)
	}
	return &Client{
		name:    name,
		http:    httpClient,
		headers: headers,
	}
}

// Name returns the client name used in error messages.
func (c *Client) Name() string { return c.name }

// Get performs an HTTP GET request and JSON-decodes the response into v.
func (c *Client) Get(ctx context.Context, url string, v any) error {
	return c.GetWithHeaders(ctx, url, nil, v)
}

// GetWithHeaders performs an HTTP GET with additional headers merged with defaults.
// Request-specific headers override client defaults for the same key.
func (c *Client) GetWithHeaders(ctx context.Context, url string, headers map[string]string, v any) error {
	body, err := c.do(ctx, http.MethodGet, url, nil, headers)
	if err != nil {
		return err
	}
	defer body.Close()
	return c.decode(body, v)
}

// Post JSON-encodes in, POSTs it to url, and JSON-decodes the response into v.
func (c *Client) Post(ctx context.Context, url string, in, v any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("%s: encode request: %w", c.name, err)
	}
	body, err := c.do(ctx, http.MethodPost, url, payload, map[string]string{"Content-Type": "application/json"})
	if err != nil {
		return err
	}
	defer body.Close()
	return c.decode(body, v)
}

func (c *Client) decode(body io.Reader, v any) error {
	if err := json.NewDecoder(body).Decode(v); err != nil {
		return fmt.Errorf("%s: decode response: %w", c.name, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, url string, payload []byte, headers map[string]string) (io.ReadCloser, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.name, err)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%s: %w", c.name, ctx.Err())
		}
		return nil, httputil.Retryable(fmt.Errorf("%s: %w: %w", c.name, ErrNetwork, err))
	}

	if err := checkStatus(resp.StatusCode); err != nil {
		resp.Body.Close()
		return nil, prefix(c.name, err)
	}
	return resp.Body, nil
}

func checkStatus(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusNotFound:
		return ErrNotFound
	case code == http.StatusTooManyRequests, code == http.StatusForbidden:
		return fmt.Errorf("%w: status %d", ErrRateLimited, code)
	case code >= 500:
		return httputil.Retryable(fmt.Errorf("%w: status %d", ErrNetwork, code))
	default:
		return fmt.Errorf("%w: status %d", ErrNetwork, code)
	}
}

// prefix adds the client name while keeping retryability intact.
func prefix(name string, err error) error {
	if httputil.IsRetryable(err) {
		return httputil.Retryable(fmt.Errorf("%s: %w", name, err))
	}
	return fmt.Errorf("%s: %w", name, err)
}
