// Package pypi adapts PyPI JSON API records into [stats.PackageStats].
//
// PyPI reports no scores of its own. The adapter derives a maintenance score
// from release recency (see [MaintenanceScore]) and leaves quality and
// popularity unset.
package pypi

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"k8s.io/utils/ptr"

	"github.com/matzehuels/stackrank/pkg/ecosystem"
	apperrors "github.com/matzehuels/stackrank/pkg/errors"
	"github.com/matzehuels/stackrank/pkg/integrations"
	"github.com/matzehuels/stackrank/pkg/integrations/pypi"
	"github.com/matzehuels/stackrank/pkg/stats"
)

// Registry is the part of [pypi.Client] the adapter needs.
type Registry interface {
	FetchPackage(ctx context.Context, pkg string) (*pypi.PackageRecord, error)
}

// Adapter implements [ecosystem.Adapter] for PyPI.
type Adapter struct {
	registry Registry
	host     ecosystem.SourceHost
	logger   *log.Logger
	now      func() time.Time
}

// Option configures an [Adapter].
type Option func(*Adapter)

// WithClock overrides the clock used for the maintenance score.
func WithClock(now func() time.Time) Option {
	return func(a *Adapter) { a.now = now }
}

// New creates a PyPI adapter. host may be nil to disable enrichment.
func New(registry Registry, host ecosystem.SourceHost, logger *log.Logger, opts ...Option) *Adapter {
	if logger == nil {
		logger = log.Default()
	}
	a := &Adapter{registry: registry, host: host, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Supports implements [ecosystem.Adapter].
func (a *Adapter) Supports(eco stats.Ecosystem) bool { return eco == stats.PyPI }

// Fetch implements [ecosystem.Adapter].
func (a *Adapter) Fetch(ctx context.Context, req ecosystem.Request, opts ...ecosystem.FetchOption) (*stats.PackageStats, error) {
	if err := apperrors.ValidatePythonPackageName(req.Name); err != nil {
		return nil, err
	}
	o := ecosystem.ApplyOptions(opts)

	rec, err := a.registry.FetchPackage(ctx, req.Name)
	if err != nil {
		return nil, err
	}
	s := FromRecord(req.Name, rec, a.now())

	if !o.SkipSourceHost && s.Repository != "" && ecosystem.SupportsRepository(s.Repository) {
		ecosystem.Enrich(ctx, a.host, s, a.logger)
	}
	return s, nil
}

// FromRecord converts a PyPI record. now anchors the maintenance score.
func FromRecord(name string, rec *pypi.PackageRecord, now time.Time) *stats.PackageStats {
	info := rec.Info
	if info.Name != "" {
		name = info.Name
	}

	uploads := Uploads(rec.Releases)
	var last *time.Time
	if len(uploads) > 0 {
		last = ptr.To(uploads[0])
	}

	s := stats.New(name, &stats.PyPIExtension{
		RequiresPython: info.RequiresPython,
		Classifiers:    info.Classifiers,
		Uploads:        uploads,
		Dependencies:   Dependencies(info.RequiresDist),
		License:        info.LicenseType(),
		Author:         info.Author,
	})
	s.Description = info.Summary
	s.Version = info.Version
	s.Repository, s.Homepage = Links(info)
	s.LastPublish = last
	s.Maintenance = ptr.To(float64(MaintenanceScore(last, now)) / 100)
	return s
}

// repositoryKeys lists project_urls keys in resolution priority.
var repositoryKeys = []string{"Repository", "repository", "Source Code", "source", "Homepage"}

// Links resolves the repository and homepage URLs. The repository prefers
// project_urls in priority order and falls back to home_page; the homepage
// is home_page, else project_urls["Homepage"].
func Links(info pypi.Info) (repository, homepage string) {
	for _, k := range repositoryKeys {
		if u := strings.TrimSpace(info.ProjectURLs[k]); u != "" {
			repository = u
			break
		}
	}
	if repository == "" {
		repository = strings.TrimSpace(info.HomePage)
	}
	homepage = strings.TrimSpace(info.HomePage)
	if homepage == "" {
		homepage = strings.TrimSpace(info.ProjectURLs["Homepage"])
	}
	return integrations.NormalizeRepoURL(repository), homepage
}

var depName = regexp.MustCompile(`^([a-zA-Z0-9_.-]+)`)

// Dependencies extracts normalized names from requires_dist entries.
// The interpreter pseudo-requirement "python" is dropped; names such as
// "python-dateutil" are kept. Order is preserved and duplicates removed.
func Dependencies(requiresDist []string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, req := range requiresDist {
		m := depName.FindStringSubmatch(strings.TrimSpace(req))
		if m == nil {
			continue
		}
		name := integrations.NormalizePkgName(m[1])
		if name == "python" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}

// Uploads returns the upload times of every release file, newest first.
func Uploads(releases map[string][]pypi.ReleaseFile) []time.Time {
	var out []time.Time
	for _, files := range releases {
		for _, f := range files {
			if !f.UploadTime.IsZero() {
				out = append(out, f.UploadTime)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].After(out[j]) })
	return out
}

// MaintenanceScore buckets release recency into a 0..100 score:
// under 30 days 95, under 90 85, under 180 70, under 365 50, otherwise 30.
// A package without releases scores 50.
func MaintenanceScore(last *time.Time, now time.Time) int {
	if last == nil {
		return 50
	}
	days := int(now.Sub(*last).Hours() / 24)
	switch {
	case days < 30:
		return 95
	case days < 90:
		return 85
	case days < 180:
		return 70
	case days < 365:
		return 50
	default:
		return 30
	}
}
