package httputil

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/matzehuels/stackrank/pkg/observability"
)

type recordingHTTPHooks struct {
	observability.NoopHTTPHooks
	mu        sync.Mutex
	requests  int
	responses []int
	errors    int
}

func (h *recordingHTTPHooks) OnRequest(context.Context, string, string, string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.requests++
}

func (h *recordingHTTPHooks) OnResponse(_ context.Context, _, _, _ string, code int, _ time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.responses = append(h.responses, code)
}

func (h *recordingHTTPHooks) OnError(context.Context, string, string, string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errors++
}

func TestTransportReportsHooks(t *testing.T) {
	hooks := &recordingHTTPHooks{}
	observability.SetHTTPHooks(hooks)
	defer observability.Reset()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	defer server.Close()

	client := &http.Client{Transport: NewTransport(nil, nil)}
	resp, err := client.Get(server.URL + "/x")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	resp.Body.Close()

	if hooks.requests != 1 {
		t.Errorf("requests = %d, want 1", hooks.requests)
	}
	if len(hooks.responses) != 1 || hooks.responses[0] != http.StatusTeapot {
		t.Errorf("responses = %v, want [418]", hooks.responses)
	}
}

func TestTransportUserAgent(t *testing.T) {
	agents := make(chan string, 2)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		agents <- r.UserAgent()
	}))
	defer server.Close()

	client := &http.Client{Transport: NewTransport(nil, nil)}
	resp, err := client.Get(server.URL)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
	req.Header.Set("User-Agent", "go-github/v75")
	resp, err = client.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	if ua := <-agents; !strings.HasPrefix(ua, "stackrank/") {
		t.Errorf("default User-Agent = %q", ua)
	}
	if ua := <-agents; ua != "go-github/v75" {
		t.Errorf("explicit User-Agent replaced: %q", ua)
	}
	if req.Header.Get("User-Agent") != "go-github/v75" {
		t.Error("caller's request was modified")
	}
}

func TestTransportLimiterHonoursContext(t *testing.T) {
	hooks := &recordingHTTPHooks{}
	observability.SetHTTPHooks(hooks)
	defer observability.Reset()

	limiter := rate.NewLimiter(rate.Every(time.Hour), 1)
	limiter.Allow() // drain the only token

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, "http://example.invalid/", nil)

	_, err := NewTransport(nil, limiter).RoundTrip(req)
	if err == nil {
		t.Fatal("expected limiter wait to fail")
	}
	if hooks.requests != 0 || hooks.errors != 1 {
		t.Errorf("requests = %d errors = %d, want 0 and 1", hooks.requests, hooks.errors)
	}
}
