package pypi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/matzehuels/stackrank/pkg/integrations"
)

// DefaultBaseURL is the PyPI JSON API root.
const DefaultBaseURL = "https://pypi.org/pypi"

// PackageRecord is the PyPI JSON API response for one project.
type PackageRecord struct {
	Info     Info                     `json:"info"`
	Releases map[string][]ReleaseFile `json:"releases"`
	URLs     []ReleaseFile            `json:"urls"`
}

// Info is the project metadata of the latest release.
type Info struct {
	Name           string      `json:"name"`
	Version        string      `json:"version"`
	Summary        string      `json:"summary"`
	HomePage       string      `json:"home_page"`
	Author         string      `json:"author"`
	AuthorEmail    string      `json:"author_email"`
	License        string      `json:"license"`
	Classifiers    []string    `json:"classifiers"`
	RequiresDist   []string    `json:"requires_dist"`
	RequiresPython string      `json:"requires_python"`
	ProjectURLs    ProjectURLs `json:"project_urls"`
}

// ReleaseFile is one uploaded distribution file.
type ReleaseFile struct {
	Filename    string    `json:"filename"`
	PackageType string    `json:"packagetype"`
	UploadTime  time.Time `json:"upload_time_iso_8601"`
	Yanked      bool      `json:"yanked"`
}

// ProjectURLs maps labels such as "Homepage" or "Source Code" to URLs.
// Non-string values in the upstream JSON are dropped.
type ProjectURLs map[string]string

// UnmarshalJSON tolerates null and non-string entries.
func (p *ProjectURLs) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(ProjectURLs, len(raw))
	for k, v := range raw {
		if s, ok := v.(string); ok && s != "" {
			out[k] = s
		}
	}
	*p = out
	return nil
}

// Client provides access to the PyPI package registry API.
//
// All methods are safe for concurrent use by multiple goroutines.
type Client struct {
	*integrations.Client
	baseURL string
}

// Option configures a [Client] or [IndexClient].
type Option func(*options)

type options struct {
	baseURL    string
	popularURL string
	http       *http.Client
}

// WithBaseURL overrides the API root (JSON API for [Client], simple index for [IndexClient]).
func WithBaseURL(u string) Option {
	return func(o *options) { o.baseURL = strings.TrimSuffix(u, "/") }
}

// WithPopularURL overrides the popular-packages dataset location.
func WithPopularURL(u string) Option {
	return func(o *options) { o.popularURL = u }
}

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.http = c }
}

// NewClient creates a PyPI JSON API client.
func NewClient(opts ...Option) *Client {
	o := options{baseURL: DefaultBaseURL}
	for _, opt := range opts {
		opt(&o)
	}
	return &Client{
		Client:  integrations.NewClient("pypi", o.http, nil),
		baseURL: o.baseURL,
	}
}

// FetchPackage retrieves metadata for a Python package from PyPI.
//
// The pkg parameter is normalized following PEP 503 (case-insensitive,
// underscores to hyphens).
//
// Returns:
//   - the raw record on success
//   - [integrations.ErrNotFound] if the package doesn't exist
//   - [integrations.ErrNetwork] for HTTP failures (timeout, 5xx, etc.)
func (c *Client) FetchPackage(ctx context.Context, pkg string) (*PackageRecord, error) {
	pkg = integrations.NormalizePkgName(pkg)

	var rec PackageRecord
	if err := c.Get(ctx, fmt.Sprintf("%s/%s/json", c.baseURL, pkg), &rec); err != nil {
		if errors.Is(err, integrations.ErrNotFound) {
			return nil, fmt.Errorf("%w: pypi package %s", err, pkg)
		}
		return nil, err
	}
	return &rec, nil
}

// LicenseType extracts a short license identifier from the record.
// It prefers the classifier (e.g., "License :: OSI Approved :: MIT License" -> "MIT License")
// and falls back to the license field if it's short enough.
func (i Info) LicenseType() string {
	for _, c := range i.Classifiers {
		if strings.HasPrefix(c, "License :: ") {
			parts := strings.Split(c, " :: ")
			if len(parts) >= 3 {
				return parts[len(parts)-1]
			}
		}
	}

	license := i.License
	if license != "" && len(license) < 100 && !strings.Contains(license, "\n") {
		return strings.TrimSpace(license)
	}

	// Full license text: keep the first line if it looks like a title
	if license != "" {
		firstLine := strings.TrimSpace(strings.Split(license, "\n")[0])
		if len(firstLine) < 50 {
			return firstLine
		}
	}

	return ""
}
