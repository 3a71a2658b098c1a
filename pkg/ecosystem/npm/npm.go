// Package npm adapts npms.io analysis records into [stats.PackageStats].
package npm

import (
	"context"
	"math"
	"sort"

	"github.com/charmbracelet/log"
	"k8s.io/utils/ptr"

	"github.com/matzehuels/stackrank/pkg/ecosystem"
	apperrors "github.com/matzehuels/stackrank/pkg/errors"
	"github.com/matzehuels/stackrank/pkg/integrations"
	"github.com/matzehuels/stackrank/pkg/integrations/npm"
	"github.com/matzehuels/stackrank/pkg/stats"
)

// Registry is the part of [npm.Client] the adapter needs.
type Registry interface {
	FetchPackage(ctx context.Context, pkg string) (*npm.PackageRecord, error)
}

// Adapter implements [ecosystem.Adapter] for npm.
type Adapter struct {
	registry Registry
	host     ecosystem.SourceHost
	logger   *log.Logger
}

// New creates an npm adapter. host may be nil to disable enrichment.
func New(registry Registry, host ecosystem.SourceHost, logger *log.Logger) *Adapter {
	if logger == nil {
		logger = log.Default()
	}
	return &Adapter{registry: registry, host: host, logger: logger}
}

// Supports implements [ecosystem.Adapter].
func (a *Adapter) Supports(eco stats.Ecosystem) bool { return eco == stats.NPM }

// Fetch implements [ecosystem.Adapter].
func (a *Adapter) Fetch(ctx context.Context, req ecosystem.Request, opts ...ecosystem.FetchOption) (*stats.PackageStats, error) {
	if err := apperrors.ValidateNpmPackageName(req.Name); err != nil {
		return nil, err
	}
	o := ecosystem.ApplyOptions(opts)

	rec, err := a.registry.FetchPackage(ctx, req.Name)
	if err != nil {
		return nil, err
	}
	s := FromRecord(req.Name, rec)

	if !o.SkipSourceHost {
		ecosystem.Enrich(ctx, a.host, s, a.logger)
	}
	return s, nil
}

// FromRecord converts a scoring-service record. name is used when the
// record carries no name of its own.
func FromRecord(name string, rec *npm.PackageRecord) *stats.PackageStats {
	md := rec.Collected.Metadata
	if md.Name != "" {
		name = md.Name
	}

	ext := &stats.NPMExtension{
		Dependencies:     keys(md.Dependencies),
		DevDependencies:  keys(md.DevDependencies),
		PeerDependencies: keys(md.PeerDependencies),
		License:          md.License,
		Keywords:         md.Keywords,
	}
	s := stats.New(name, ext)
	s.Description = md.Description
	s.Version = md.Version
	s.Homepage = md.Links.Homepage
	s.Repository = repository(md)
	s.LastPublish = md.Date

	if weekly, total, ok := downloads(rec.Collected.NPM.Downloads); ok {
		s.WeeklyDownloads = ptr.To(weekly)
		s.TotalDownloads = ptr.To(total)
	}
	if n := rec.Collected.NPM.DependentsCount; n > 0 {
		s.DependentsCount = ptr.To(n)
	}

	s.Quality = ptr.To(clamp(rec.Score.Detail.Quality))
	s.Popularity = ptr.To(clamp(rec.Score.Detail.Popularity))
	s.Maintenance = ptr.To(clamp(rec.Score.Detail.Maintenance))
	s.FinalScore = ptr.To(clamp(rec.Score.Final))

	if gh := rec.Collected.GitHub; gh != nil {
		ext.Mirrored = &stats.MirroredRepo{
			Stars:       gh.StarsCount,
			Forks:       gh.ForksCount,
			OpenIssues:  gh.Issues.OpenCount,
			Subscribers: gh.SubscribersCount,
		}
		if len(gh.Contributors) > 0 {
			s.Contributors = ptr.To(int64(len(gh.Contributors)))
		}
		if _, total, ok := downloads(gh.Commits); ok {
			s.Commits = ptr.To(total)
		}
		if s.Homepage == "" {
			s.Homepage = gh.Homepage
		}
	}
	return s
}

// ApplyMirrored copies the scoring service's repository figures into the
// popularity fields that are still unset.
func ApplyMirrored(s *stats.PackageStats) {
	ext, ok := s.NPM()
	if !ok || ext.Mirrored == nil {
		return
	}
	m := ext.Mirrored
	if s.Stars == nil {
		s.Stars = ptr.To(m.Stars)
	}
	if s.Forks == nil {
		s.Forks = ptr.To(m.Forks)
	}
	if s.OpenIssues == nil {
		s.OpenIssues = ptr.To(m.OpenIssues)
	}
}

func repository(md npm.Metadata) string {
	if md.Repository != nil && md.Repository.URL != "" {
		return integrations.NormalizeRepoURL(md.Repository.URL)
	}
	return integrations.NormalizeRepoURL(md.Links.Repository)
}

// downloads picks the 7-day window as weekly (falling back to the second
// entry, which npms reports as the week) and the widest window as total.
func downloads(ws []npm.Window) (weekly, total int64, ok bool) {
	if len(ws) == 0 {
		return 0, 0, false
	}
	weeklyIdx, widest := -1, 0
	for i, w := range ws {
		if weeklyIdx < 0 && w.Days() == 7 {
			weeklyIdx = i
		}
		if w.Days() > ws[widest].Days() {
			widest = i
		}
	}
	if weeklyIdx < 0 {
		weeklyIdx = min(1, len(ws)-1)
	}
	return ws[weeklyIdx].Count, ws[widest].Count, true
}

func keys(m map[string]string) []string {
	if len(m) == 0 {
		return nil
	}
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func clamp(v float64) float64 {
	switch {
	case v < 0 || math.IsNaN(v):
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
