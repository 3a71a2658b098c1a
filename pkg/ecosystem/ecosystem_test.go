package ecosystem

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/stackrank/pkg/integrations"
	"github.com/matzehuels/stackrank/pkg/integrations/github"
	"github.com/matzehuels/stackrank/pkg/stats"
)

func TestParseRequest(t *testing.T) {
	tests := []struct {
		in      string
		def     stats.Ecosystem
		want    Request
		wantErr bool
	}{
		{"npm:react", "", Request{"react", stats.NPM}, false},
		{"npm:@babel/core", "", Request{"@babel/core", stats.NPM}, false},
		{"NPM:React", "", Request{"react", stats.NPM}, false},
		{"pypi:Flask", "", Request{"Flask", stats.PyPI}, false},
		{"python:requests", "", Request{"requests", stats.PyPI}, false},
		{"lodash", stats.NPM, Request{"lodash", stats.NPM}, false},
		{"lodash", "", Request{}, true},
		{"cargo:serde", "", Request{}, true},
		{"npm:", "", Request{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRequest(tt.in, tt.def)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRequestKey(t *testing.T) {
	assert.Equal(t, "npm:react", Request{Name: "react", Ecosystem: stats.NPM}.Key())
	assert.Equal(t, "pypi:flask", Request{Name: "flask", Ecosystem: stats.PyPI}.String())
}

type fakeAdapter struct {
	eco   stats.Ecosystem
	calls int
	opts  FetchOptions
}

func (f *fakeAdapter) Supports(eco stats.Ecosystem) bool { return eco == f.eco }

func (f *fakeAdapter) Fetch(_ context.Context, req Request, opts ...FetchOption) (*stats.PackageStats, error) {
	f.calls++
	f.opts = ApplyOptions(opts)
	return stats.New(req.Name, &stats.NPMExtension{}), nil
}

func TestRegistry(t *testing.T) {
	npmAdapter := &fakeAdapter{eco: stats.NPM}
	r := NewRegistry(npmAdapter)

	a, err := r.For(stats.NPM)
	require.NoError(t, err)
	assert.Same(t, npmAdapter, a)

	_, err = r.For(stats.PyPI)
	assert.ErrorIs(t, err, ErrUnsupportedEcosystem)

	s, err := r.Fetch(context.Background(), Request{Name: "react", Ecosystem: stats.NPM}, WithoutSourceHost())
	require.NoError(t, err)
	assert.Equal(t, "react", s.Name)
	assert.Equal(t, 1, npmAdapter.calls)
	assert.True(t, npmAdapter.opts.SkipSourceHost)
}

func TestWarningFor(t *testing.T) {
	tests := []struct {
		err  error
		want stats.WarningCode
	}{
		{fmt.Errorf("github: %w", integrations.ErrRateLimited), stats.WarnGitHubRateLimited},
		{fmt.Errorf("github: %w", integrations.ErrNotFound), stats.WarnGitHubNotFound},
		{fmt.Errorf("%w: gitlab.com", integrations.ErrInvalidRepoURL), stats.WarnRepositoryUnsupported},
		{errors.New("boom"), stats.WarnGitHubEnrichmentFailed},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, WarningFor(tt.err), tt.err.Error())
	}
}

type fakeGitHub struct {
	repo      *github.RepoRecord
	repoErr   error
	readme    string
	hasReadme bool
	readmeErr error
}

func (f *fakeGitHub) FetchRepository(context.Context, string) (*github.RepoRecord, error) {
	return f.repo, f.repoErr
}

func (f *fakeGitHub) FetchReadme(context.Context, string) (string, bool, error) {
	return f.readme, f.hasReadme, f.readmeErr
}

func TestGitHubSource_Enrich(t *testing.T) {
	ctx := context.Background()
	repo := &github.RepoRecord{FullName: "facebook/react", Stars: 220000, Forks: 45000, OpenIssues: 900, DefaultBranch: "main"}

	t.Run("repository and readme", func(t *testing.T) {
		src := NewGitHubSource(&fakeGitHub{repo: repo, readme: "# React", hasReadme: true}, nil)
		gh, err := src.Enrich(ctx, "https://github.com/facebook/react")
		require.NoError(t, err)
		assert.Equal(t, int64(220000), gh.Stars)
		assert.Equal(t, "main", gh.DefaultBranch)
		require.NotNil(t, gh.Readme)
		assert.Equal(t, "# React", *gh.Readme)
	})

	t.Run("readme failure is not fatal", func(t *testing.T) {
		src := NewGitHubSource(&fakeGitHub{repo: repo, readmeErr: errors.New("boom")}, nil)
		gh, err := src.Enrich(ctx, "https://github.com/facebook/react")
		require.NoError(t, err)
		assert.Nil(t, gh.Readme)
	})

	t.Run("repository failure", func(t *testing.T) {
		src := NewGitHubSource(&fakeGitHub{repoErr: fmt.Errorf("github: %w", integrations.ErrRateLimited)}, nil)
		_, err := src.Enrich(ctx, "https://github.com/facebook/react")
		assert.ErrorIs(t, err, integrations.ErrRateLimited)
	})

	t.Run("unsupported host", func(t *testing.T) {
		src := NewGitHubSource(&fakeGitHub{repo: repo}, nil)
		_, err := src.Enrich(ctx, "https://gitlab.com/foo/bar")
		assert.ErrorIs(t, err, integrations.ErrInvalidRepoURL)
	})
}

type hostFunc func(ctx context.Context, url string) (*stats.GitHubStats, error)

func (f hostFunc) Enrich(ctx context.Context, url string) (*stats.GitHubStats, error) {
	return f(ctx, url)
}

func TestEnrich(t *testing.T) {
	ctx := context.Background()

	t.Run("applies counters", func(t *testing.T) {
		s := stats.New("react", &stats.NPMExtension{})
		s.Repository = "https://github.com/facebook/react"
		Enrich(ctx, hostFunc(func(context.Context, string) (*stats.GitHubStats, error) {
			return &stats.GitHubStats{Stars: 10, Forks: 2, OpenIssues: 1}, nil
		}), s, nil)
		require.NotNil(t, s.GitHub)
		assert.Equal(t, int64(10), *s.Stars)
		assert.Equal(t, int64(2), *s.Forks)
		assert.Equal(t, int64(1), *s.OpenIssues)
		assert.Empty(t, s.Warnings)
	})

	t.Run("degrades to warning", func(t *testing.T) {
		s := stats.New("react", &stats.NPMExtension{})
		s.Repository = "https://github.com/facebook/react"
		Enrich(ctx, hostFunc(func(context.Context, string) (*stats.GitHubStats, error) {
			return nil, fmt.Errorf("github: %w", integrations.ErrNotFound)
		}), s, nil)
		assert.Nil(t, s.GitHub)
		assert.Nil(t, s.Stars)
		assert.True(t, s.HasWarning(stats.WarnGitHubNotFound))
	})

	t.Run("no repository", func(t *testing.T) {
		s := stats.New("left-pad", &stats.NPMExtension{})
		Enrich(ctx, hostFunc(func(context.Context, string) (*stats.GitHubStats, error) {
			t.Fatal("host must not be called")
			return nil, nil
		}), s, nil)
		assert.Nil(t, s.GitHub)
	})
}
