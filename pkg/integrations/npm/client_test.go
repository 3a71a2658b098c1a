package npm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/matzehuels/stackrank/pkg/integrations"
)

const reactJSON = `{
  "analyzedAt": "2024-06-01T00:00:00Z",
  "collected": {
    "metadata": {
      "name": "react",
      "version": "18.3.1",
      "description": "React is a JavaScript library for building user interfaces.",
      "keywords": ["react"],
      "license": "MIT",
      "links": {"npm": "https://www.npmjs.com/package/react", "homepage": "https://react.dev/", "repository": "https://github.com/facebook/react"},
      "repository": {"type": "git", "url": "git+https://github.com/facebook/react.git"},
      "dependencies": {"loose-envify": "^1.1.0"}
    },
    "npm": {
      "downloads": [
        {"from": "2024-05-31T00:00:00Z", "to": "2024-06-01T00:00:00Z", "count": 3000000},
        {"from": "2024-05-25T00:00:00Z", "to": "2024-06-01T00:00:00Z", "count": 21000000},
        {"from": "2024-05-02T00:00:00Z", "to": "2024-06-01T00:00:00Z", "count": 90000000}
      ],
      "dependentsCount": 150000
    },
    "github": {"starsCount": 220000, "forksCount": 45000, "subscribersCount": 6600, "issues": {"count": 12000, "openCount": 800}}
  },
  "score": {"final": 0.9, "detail": {"quality": 0.85, "popularity": 0.95, "maintenance": 0.99}}
}`

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(WithBaseURL(server.URL), WithHTTPClient(server.Client()))
}

func TestFetchPackage(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/package/react" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Write([]byte(reactJSON))
	})

	rec, err := c.FetchPackage(context.Background(), "react")
	if err != nil {
		t.Fatalf("FetchPackage() error: %v", err)
	}
	if rec.Collected.Metadata.Name != "react" {
		t.Errorf("Name = %q", rec.Collected.Metadata.Name)
	}
	if rec.Score.Detail.Quality != 0.85 {
		t.Errorf("Quality = %v", rec.Score.Detail.Quality)
	}
	if rec.Collected.GitHub == nil || rec.Collected.GitHub.StarsCount != 220000 {
		t.Errorf("GitHub = %+v", rec.Collected.GitHub)
	}
	if got := rec.Collected.NPM.Downloads[1].Days(); got != 7 {
		t.Errorf("Downloads[1].Days() = %d, want 7", got)
	}
}

func TestFetchPackageScopedName(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.EscapedPath() != "/package/%40babel%2Fcore" {
			t.Errorf("escaped path = %q", r.URL.EscapedPath())
		}
		w.Write([]byte(`{"collected":{"metadata":{"name":"@babel/core"}}}`))
	})

	rec, err := c.FetchPackage(context.Background(), "@babel/core")
	if err != nil {
		t.Fatal(err)
	}
	if rec.Collected.Metadata.Name != "@babel/core" {
		t.Errorf("Name = %q", rec.Collected.Metadata.Name)
	}
}

func TestFetchPackageNotFound(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := c.FetchPackage(context.Background(), "no-such-package-xyz")
	if !errors.Is(err, integrations.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
	if !strings.Contains(err.Error(), "not found") {
		t.Errorf("error %q should mention not found", err)
	}
	if !strings.Contains(err.Error(), "no-such-package-xyz") {
		t.Errorf("error %q should name the package", err)
	}
}

func TestFetchPackages(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/package/mget" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		var names []string
		json.NewDecoder(r.Body).Decode(&names)
		if len(names) != 3 {
			t.Errorf("names = %v", names)
		}
		// npms answers only for the names it knows
		w.Write([]byte(`{"react": ` + reactJSON + `, "vue": {"collected": {"metadata": {"name": "vue"}}}, "ghost": null}`))
	})

	got, err := c.FetchPackages(context.Background(), []string{"react", "vue", "ghost"})
	if err != nil {
		t.Fatalf("FetchPackages() error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2: %v", len(got), got)
	}
	if _, ok := got["ghost"]; ok {
		t.Error("unresolvable package should be omitted")
	}
}

func TestFetchPackagesEmpty(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})
	got, err := c.FetchPackages(context.Background(), nil)
	if err != nil || len(got) != 0 {
		t.Errorf("FetchPackages(nil) = %v, %v", got, err)
	}
}

func TestFetchSuggestions(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		body      string
		wantLen   int
		wantCalls int
	}{
		{"matches", "reac", `[{"package":{"name":"react"},"searchScore":100},{"package":{"name":"react-dom"},"searchScore":90}]`, 2, 1},
		{"no matches", "zzzzzz", `[]`, 0, 1},
		{"empty query", "  ", ``, 0, 0},
		{"control characters", "re\x00act", ``, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
				calls++
				if r.URL.Path != "/search/suggestions" {
					t.Errorf("path = %s", r.URL.Path)
				}
				if r.URL.Query().Get("q") != strings.TrimSpace(tt.query) {
					t.Errorf("q = %q", r.URL.Query().Get("q"))
				}
				if r.URL.Query().Get("size") != "10" {
					t.Errorf("size = %q", r.URL.Query().Get("size"))
				}
				w.Write([]byte(tt.body))
			})

			got, err := c.FetchSuggestions(context.Background(), tt.query, 10)
			if err != nil {
				t.Fatalf("FetchSuggestions() error: %v", err)
			}
			if got == nil {
				t.Fatal("FetchSuggestions() returned nil slice")
			}
			if len(got) != tt.wantLen {
				t.Errorf("len = %d, want %d", len(got), tt.wantLen)
			}
			if calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls, tt.wantCalls)
			}
		})
	}
}

func TestFetchSuggestionsServerError(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	_, err := c.FetchSuggestions(context.Background(), "react", 0)
	if !errors.Is(err, integrations.ErrNetwork) {
		t.Errorf("error = %v, want ErrNetwork", err)
	}
}
