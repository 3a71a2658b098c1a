package ecosystem

import (
	"context"
	"errors"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/stackrank/pkg/integrations"
	"github.com/matzehuels/stackrank/pkg/integrations/github"
	"github.com/matzehuels/stackrank/pkg/stats"
)

// ErrUnsupportedEcosystem is returned when no adapter handles an ecosystem.
var ErrUnsupportedEcosystem = errors.New("unsupported ecosystem")

// SourceHost fetches repository enrichment for a repository URL.
type SourceHost interface {
	Enrich(ctx context.Context, repoURL string) (*stats.GitHubStats, error)
}

// GitHubClient is the part of [github.Client] used for enrichment.
type GitHubClient interface {
	FetchRepository(ctx context.Context, repoURL string) (*github.RepoRecord, error)
	FetchReadme(ctx context.Context, repoURL string) (string, bool, error)
}

// GitHubSource implements [SourceHost] on GitHub.
type GitHubSource struct {
	client GitHubClient
	logger *log.Logger
}

// NewGitHubSource creates a source host backed by client.
func NewGitHubSource(client GitHubClient, logger *log.Logger) *GitHubSource {
	if logger == nil {
		logger = log.Default()
	}
	return &GitHubSource{client: client, logger: logger}
}

// Enrich fetches repository metadata and README concurrently. A README
// failure leaves Readme nil; a repository failure fails the call.
func (s *GitHubSource) Enrich(ctx context.Context, repoURL string) (*stats.GitHubStats, error) {
	if _, _, err := github.ParseRepoURL(repoURL); err != nil {
		return nil, err
	}

	var (
		repo   *github.RepoRecord
		readme *string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		r, err := s.client.FetchRepository(gctx, repoURL)
		repo = r
		return err
	})
	g.Go(func() error {
		text, ok, err := s.client.FetchReadme(gctx, repoURL)
		if err != nil {
			s.logger.Debug("readme unavailable", "repository", repoURL, "error", err)
			return nil
		}
		if ok {
			readme = &text
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &stats.GitHubStats{
		FullName:      repo.FullName,
		Stars:         repo.Stars,
		Forks:         repo.Forks,
		OpenIssues:    repo.OpenIssues,
		Subscribers:   repo.Subscribers,
		CreatedAt:     repo.CreatedAt,
		UpdatedAt:     repo.UpdatedAt,
		PushedAt:      repo.PushedAt,
		DefaultBranch: repo.DefaultBranch,
		Readme:        readme,
		HomepageURL:   repo.Homepage,
		Language:      repo.Language,
		Archived:      repo.Archived,
	}, nil
}

// SupportsRepository reports whether repoURL can be enriched by the GitHub source.
func SupportsRepository(repoURL string) bool {
	_, _, err := github.ParseRepoURL(repoURL)
	return err == nil
}

// ApplySourceHost attaches gh to s and copies its counters into the
// top-level popularity fields.
func ApplySourceHost(s *stats.PackageStats, gh *stats.GitHubStats) {
	if gh == nil {
		return
	}
	s.GitHub = gh
	stars, forks, issues := gh.Stars, gh.Forks, gh.OpenIssues
	s.Stars = &stars
	s.Forks = &forks
	s.OpenIssues = &issues
}

// WarningFor maps a source-host error to the warning recorded on the result.
func WarningFor(err error) stats.WarningCode {
	switch {
	case errors.Is(err, integrations.ErrRateLimited):
		return stats.WarnGitHubRateLimited
	case errors.Is(err, integrations.ErrNotFound):
		return stats.WarnGitHubNotFound
	case errors.Is(err, integrations.ErrInvalidRepoURL):
		return stats.WarnRepositoryUnsupported
	default:
		return stats.WarnGitHubEnrichmentFailed
	}
}

// Enrich runs host for s when s has a repository and records a warning
// instead of failing when enrichment is unavailable.
func Enrich(ctx context.Context, host SourceHost, s *stats.PackageStats, logger *log.Logger) {
	if host == nil || s.Repository == "" {
		return
	}
	gh, err := host.Enrich(ctx, s.Repository)
	if err != nil {
		code := WarningFor(err)
		s.AddWarning(code, err)
		if logger != nil {
			logger.Debug("source host degraded", "package", s.Name, "warning", code, "error", err)
		}
		return
	}
	ApplySourceHost(s, gh)
}
