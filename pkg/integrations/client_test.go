package integrations

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/matzehuels/stackrank/pkg/httputil"
)

func TestNewClient(t *testing.T) {
	headers := map[string]string{"Authorization": "Bearer token"}
	client := NewClient("test", nil, headers)

	if client == nil {
		t.Fatal("NewClient() returned nil")
	}
	if client.http == nil {
		t.Error("NewClient() http client is nil")
	}
	if client.Name() != "test" {
		t.Errorf("Name() = %q", client.Name())
	}
	if client.headers["Authorization"] != "Bearer token" {
		t.Error("NewClient() headers not set correctly")
	}
}

func TestClientGet(t *testing.T) {
	type response struct {
		Message string `json:"message"`
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		json.NewEncoder(w).Encode(response{Message: "hello"})
	}))
	defer server.Close()

	client := NewClient("test", server.Client(), nil)

	var resp response
	if err := client.Get(context.Background(), server.URL, &resp); err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if resp.Message != "hello" {
		t.Errorf("Get() message = %q, want %q", resp.Message, "hello")
	}
}

func TestClientGetWithHeadersOverridesDefaults(t *testing.T) {
	var override, def string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		override = r.Header.Get("X-Override")
		def = r.Header.Get("X-Default")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}))
	defer server.Close()

	client := NewClient("test", server.Client(), map[string]string{"X-Override": "default", "X-Default": "kept"})

	var resp map[string]string
	err := client.GetWithHeaders(context.Background(), server.URL, map[string]string{"X-Override": "overridden"}, &resp)
	if err != nil {
		t.Fatalf("GetWithHeaders() error: %v", err)
	}
	if override != "overridden" {
		t.Errorf("override header = %q, want %q", override, "overridden")
	}
	if def != "kept" {
		t.Errorf("default header = %q, want %q", def, "kept")
	}
}

func TestClientPost(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		var names []string
		json.NewDecoder(r.Body).Decode(&names)
		out := map[string]int{}
		for _, n := range names {
			out[n] = len(n)
		}
		json.NewEncoder(w).Encode(out)
	}))
	defer server.Close()

	client := NewClient("test", server.Client(), nil)

	var resp map[string]int
	if err := client.Post(context.Background(), server.URL, []string{"react", "vue"}, &resp); err != nil {
		t.Fatalf("Post() error: %v", err)
	}
	if resp["react"] != 5 || resp["vue"] != 3 {
		t.Errorf("Post() = %v", resp)
	}
}

func TestClientErrors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		want      error
		retryable bool
	}{
		{"404", http.StatusNotFound, "", ErrNotFound, false},
		{"429", http.StatusTooManyRequests, "", ErrRateLimited, false},
		{"500", http.StatusInternalServerError, "", ErrNetwork, true},
		{"400", http.StatusBadRequest, "", ErrNetwork, false},
		{"bad json", http.StatusOK, "{", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := NewClient("npms", server.Client(), nil)

			var resp map[string]string
			err := client.Get(context.Background(), server.URL, &resp)
			if err == nil {
				t.Fatal("Get() should fail")
			}
			if !strings.HasPrefix(err.Error(), "npms: ") {
				t.Errorf("error %q should carry the client name", err)
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("Get() error = %v, want %v", err, tt.want)
			}
			if got := httputil.IsRetryable(err); got != tt.retryable {
				t.Errorf("IsRetryable = %v, want %v", got, tt.retryable)
			}
		})
	}
}

func TestClientNetworkErrorIsRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := NewClient("test", nil, nil)
	err := client.Get(context.Background(), url, &struct{}{})
	if !errors.Is(err, ErrNetwork) {
		t.Errorf("error = %v, want ErrNetwork", err)
	}
	if !httputil.IsRetryable(err) {
		t.Error("connection failure should be retryable")
	}
}

func TestClientTimeoutKeepsCause(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	client := NewClient("test", &http.Client{Timeout: 20 * time.Millisecond}, nil)
	err := client.Get(context.Background(), server.URL, &struct{}{})
	if !errors.Is(err, ErrNetwork) {
		t.Errorf("error = %v, want ErrNetwork", err)
	}
	var netErr net.Error
	if !errors.As(err, &netErr) || !netErr.Timeout() {
		t.Errorf("error = %v, want a net.Error reporting a timeout", err)
	}
	if !httputil.IsRetryable(err) {
		t.Error("timeout should be retryable")
	}
}

func TestClientCanceledContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewClient("test", server.Client(), nil).Get(ctx, server.URL, &struct{}{})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
	if httputil.IsRetryable(err) {
		t.Error("cancellation should not be retryable")
	}
}

func TestCheckStatus(t *testing.T) {
	tests := []struct {
		name       string
		code       int
		wantErr    bool
		wantType   error
		isRetryErr bool
	}{
		{name: "200 OK", code: 200},
		{name: "204 No Content", code: 204},
		{name: "404 Not Found", code: 404, wantErr: true, wantType: ErrNotFound},
		{name: "403 Forbidden", code: 403, wantErr: true, wantType: ErrRateLimited},
		{name: "429 Too Many Requests", code: 429, wantErr: true, wantType: ErrRateLimited},
		{name: "500 Internal Server Error", code: 500, wantErr: true, wantType: ErrNetwork, isRetryErr: true},
		{name: "502 Bad Gateway", code: 502, wantErr: true, wantType: ErrNetwork, isRetryErr: true},
		{name: "503 Service Unavailable", code: 503, wantErr: true, wantType: ErrNetwork, isRetryErr: true},
		{name: "400 Bad Request", code: 400, wantErr: true, wantType: ErrNetwork},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkStatus(tt.code)

			if !tt.wantErr {
				if err != nil {
					t.Errorf("checkStatus() unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("checkStatus() should return error")
			}
			if tt.wantType != nil && !errors.Is(err, tt.wantType) {
				t.Errorf("checkStatus() error = %v, want %v", err, tt.wantType)
			}
			if httputil.IsRetryable(err) != tt.isRetryErr {
				t.Errorf("checkStatus() retryable = %v, want %v", httputil.IsRetryable(err), tt.isRetryErr)
			}
		})
	}
}

func TestNormalizePkgName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"lowercase", "Package", "package"},
		{"underscore to dash", "my_package", "my-package"},
		{"trim spaces", "  package  ", "package"},
		{"combined", "  My_Package  ", "my-package"},
		{"empty", "", ""},
		{"already normalized", "my-package", "my-package"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizePkgName(tt.input); got != tt.want {
				t.Errorf("NormalizePkgName(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizeRepoURL(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"https url", "https://github.com/user/repo", "https://github.com/user/repo"},
		{"with .git suffix", "https://github.com/user/repo.git", "https://github.com/user/repo"},
		{"trailing slash", "https://github.com/user/repo/", "https://github.com/user/repo"},
		{"git@ to https", "git@github.com:user/repo", "https://github.com/user/repo"},
		{"git:// to https", "git://github.com/user/repo", "https://github.com/user/repo"},
		{"git+ prefix", "git+https://github.com/user/repo", "https://github.com/user/repo"},
		{"git+ssh", "git+ssh://git@github.com/user/repo.git", "https://github.com/user/repo"},
		{"with spaces", "  https://github.com/user/repo  ", "https://github.com/user/repo"},
		{"combined", "git+git@github.com:user/repo.git", "https://github.com/user/repo"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeRepoURL(tt.input); got != tt.want {
				t.Errorf("NormalizeRepoURL(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestURLEncode(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "hello", "hello"},
		{"space", "hello world", "hello+world"},
		{"special chars", "a=1&b=2", "a%3D1%26b%3D2"},
		{"scoped", "@babel/core", "%40babel%2Fcore"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := URLEncode(tt.input); got != tt.want {
				t.Errorf("URLEncode(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNewHTTPClient(t *testing.T) {
	client := NewHTTPClient(nil)
	if client == nil {
		t.Fatal("NewHTTPClient() returned nil")
	}
	if client.Timeout != httpTimeout {
		t.Errorf("Timeout = %v, want %v", client.Timeout, httpTimeout)
	}
	if _, ok := client.Transport.(*httputil.Transport); !ok {
		t.Errorf("Transport = %T, want *httputil.Transport", client.Transport)
	}
}
