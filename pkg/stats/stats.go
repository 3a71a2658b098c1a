// Package stats defines the unified, cross-ecosystem package statistics record.
//
// A [PackageStats] always belongs to exactly one ecosystem. The ecosystem-specific
// fields live behind the sealed [Extension] interface so that an npm record can never
// carry PyPI data and vice versa:
//
//	s := stats.New("react", &stats.NPMExtension{License: "MIT"})
//	if ext, ok := s.NPM(); ok {
//	    fmt.Println(ext.License)
//	}
//
// All optional numeric fields are pointers; nil means "not reported by any source".
package stats

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Ecosystem identifies a package registry ecosystem.
type Ecosystem string

// Supported ecosystems.
const (
	NPM  Ecosystem = "npm"
	PyPI Ecosystem = "pypi"
)

// Ecosystems lists all supported ecosystems in display order.
var Ecosystems = []Ecosystem{NPM, PyPI}

// ParseEcosystem converts a user-supplied ecosystem name to an [Ecosystem].
// Matching is case-insensitive and accepts "node" and "python" as aliases.
func ParseEcosystem(s string) (Ecosystem, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "npm", "node", "javascript", "js":
		return NPM, nil
	case "pypi", "python", "py":
		return PyPI, nil
	default:
		return "", fmt.Errorf("unknown ecosystem %q (available: npm, pypi)", s)
	}
}

// PackageStats is the normalized statistics record for one package.
type PackageStats struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Version     string `json:"version,omitempty"`
	Homepage    string `json:"homepage,omitempty"`
	Repository  string `json:"repository,omitempty"`

	WeeklyDownloads *int64 `json:"weeklyDownloads,omitempty"`
	TotalDownloads  *int64 `json:"totalDownloads,omitempty"`
	Stars           *int64 `json:"stars,omitempty"`
	Forks           *int64 `json:"forks,omitempty"`
	DependentsCount *int64 `json:"dependentsCount,omitempty"`

	LastPublish  *time.Time `json:"lastPublish,omitempty"`
	OpenIssues   *int64     `json:"openIssues,omitempty"`
	Commits      *int64     `json:"commits,omitempty"`
	Contributors *int64     `json:"contributors,omitempty"`

	// Scores are in [0,1].
	Quality     *float64 `json:"quality,omitempty"`
	Popularity  *float64 `json:"popularity,omitempty"`
	Maintenance *float64 `json:"maintenance,omitempty"`
	FinalScore  *float64 `json:"finalScore,omitempty"`

	GitHub   *GitHubStats `json:"github,omitempty"`
	Warnings []Warning    `json:"warnings,omitempty"`

	// Ext is the ecosystem-specific part of the record. It is never nil for
	// records built with [New].
	Ext Extension `json:"-"`
}

// New creates a record for name in the ecosystem of ext.
func New(name string, ext Extension) *PackageStats {
	return &PackageStats{Name: name, Ext: ext}
}

// Ecosystem reports the ecosystem of the record, derived from its extension.
func (p *PackageStats) Ecosystem() Ecosystem {
	if p.Ext == nil {
		return ""
	}
	return p.Ext.Ecosystem()
}

// NPM returns the npm extension if the record belongs to npm.
func (p *PackageStats) NPM() (*NPMExtension, bool) {
	ext, ok := p.Ext.(*NPMExtension)
	return ext, ok
}

// PyPI returns the PyPI extension if the record belongs to PyPI.
func (p *PackageStats) PyPI() (*PyPIExtension, bool) {
	ext, ok := p.Ext.(*PyPIExtension)
	return ext, ok
}

// AddWarning records a degraded-result marker.
func (p *PackageStats) AddWarning(code WarningCode, err error) {
	w := Warning{Code: code}
	if err != nil {
		w.Message = err.Error()
	}
	p.Warnings = append(p.Warnings, w)
}

// HasWarning reports whether a warning with code was recorded.
func (p *PackageStats) HasWarning(code WarningCode) bool {
	for _, w := range p.Warnings {
		if w.Code == code {
			return true
		}
	}
	return false
}

// Clone returns a copy that can be modified without affecting p.
// Pointer fields that are replaced wholesale (scores, counters) are shared.
func (p *PackageStats) Clone() *PackageStats {
	c := *p
	c.Warnings = append([]Warning(nil), p.Warnings...)
	if p.GitHub != nil {
		gh := *p.GitHub
		c.GitHub = &gh
	}
	return &c
}

// Extension is the ecosystem-specific part of a [PackageStats].
// It is implemented only by [NPMExtension] and [PyPIExtension].
type Extension interface {
	Ecosystem() Ecosystem
	sealed()
}

// NPMExtension holds npm-only fields.
type NPMExtension struct {
	Dependencies     []string `json:"dependencies,omitempty"`
	DevDependencies  []string `json:"devDependencies,omitempty"`
	PeerDependencies []string `json:"peerDependencies,omitempty"`
	License          string   `json:"license,omitempty"`
	Keywords         []string `json:"keywords,omitempty"`

	// Mirrored holds repository figures copied by the scoring service. They are
	// used only when the source host could not be queried directly.
	Mirrored *MirroredRepo `json:"mirrored,omitempty"`
}

// Ecosystem implements Extension.
func (*NPMExtension) Ecosystem() Ecosystem { return NPM }
func (*NPMExtension) sealed()              {}

// MirroredRepo is the repository snapshot embedded in a scoring-service response.
type MirroredRepo struct {
	Stars       int64 `json:"stars"`
	Forks       int64 `json:"forks"`
	OpenIssues  int64 `json:"openIssues"`
	Subscribers int64 `json:"subscribers"`
}

// PyPIExtension holds PyPI-only fields.
type PyPIExtension struct {
	RequiresPython string      `json:"requiresPython,omitempty"`
	Classifiers    []string    `json:"classifiers,omitempty"`
	Uploads        []time.Time `json:"uploads,omitempty"` // newest first
	Dependencies   []string    `json:"dependencies,omitempty"`
	License        string      `json:"license,omitempty"`
	Author         string      `json:"author,omitempty"`
}

// Ecosystem implements Extension.
func (*PyPIExtension) Ecosystem() Ecosystem { return PyPI }
func (*PyPIExtension) sealed()              {}

// GitHubStats is the source-host enrichment for a package.
type GitHubStats struct {
	FullName      string     `json:"fullName"`
	Stars         int64      `json:"stars"`
	Forks         int64      `json:"forks"`
	OpenIssues    int64      `json:"openIssues"`
	Subscribers   int64      `json:"subscribers"`
	CreatedAt     *time.Time `json:"createdAt,omitempty"`
	UpdatedAt     *time.Time `json:"updatedAt,omitempty"`
	PushedAt      *time.Time `json:"pushedAt,omitempty"`
	DefaultBranch string     `json:"defaultBranch,omitempty"`
	Readme        *string    `json:"readme,omitempty"`
	HomepageURL   string     `json:"homepageUrl,omitempty"`
	Language      string     `json:"language,omitempty"`
	Archived      bool       `json:"archived,omitempty"`
}

// WarningCode identifies a kind of degraded result.
type WarningCode string

// Warning codes set by adapters and the orchestrator.
const (
	WarnGitHubEnrichmentFailed WarningCode = "github-enrichment-failed"
	WarnGitHubRateLimited      WarningCode = "github-rate-limited"
	WarnGitHubNotFound         WarningCode = "github-not-found"
	WarnRepositoryUnsupported  WarningCode = "repository-url-unsupported"
)

// Warning marks a record as usable but incomplete.
type Warning struct {
	Code    WarningCode `json:"code"`
	Message string      `json:"message,omitempty"`
}

type jsonStats struct {
	Ecosystem Ecosystem      `json:"ecosystem"`
	NPM       *NPMExtension  `json:"npm,omitempty"`
	PyPI      *PyPIExtension `json:"pypi,omitempty"`
}

// MarshalJSON encodes the record with an "ecosystem" discriminator and the
// extension under its ecosystem key.
func (p PackageStats) MarshalJSON() ([]byte, error) {
	type alias PackageStats
	out := struct {
		alias
		jsonStats
	}{alias: alias(p)}
	out.Ecosystem = p.Ecosystem()
	switch ext := p.Ext.(type) {
	case *NPMExtension:
		out.NPM = ext
	case *PyPIExtension:
		out.PyPI = ext
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes records produced by MarshalJSON.
func (p *PackageStats) UnmarshalJSON(data []byte) error {
	type alias PackageStats
	aux := struct {
		*alias
		jsonStats
	}{alias: (*alias)(p)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	switch aux.Ecosystem {
	case NPM:
		if aux.PyPI != nil {
			return fmt.Errorf("npm record %q carries a pypi extension", p.Name)
		}
		if aux.NPM == nil {
			aux.NPM = &NPMExtension{}
		}
		p.Ext = aux.NPM
	case PyPI:
		if aux.NPM != nil {
			return fmt.Errorf("pypi record %q carries an npm extension", p.Name)
		}
		if aux.PyPI == nil {
			aux.PyPI = &PyPIExtension{}
		}
		p.Ext = aux.PyPI
	default:
		return fmt.Errorf("record %q has unknown ecosystem %q", p.Name, aux.Ecosystem)
	}
	return nil
}
