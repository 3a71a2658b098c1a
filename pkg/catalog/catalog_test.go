package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/stackrank/pkg/cache"
	apperrors "github.com/matzehuels/stackrank/pkg/errors"
	"github.com/matzehuels/stackrank/pkg/integrations/npm"
	"github.com/matzehuels/stackrank/pkg/integrations/pypi"
	"github.com/matzehuels/stackrank/pkg/stats"
)

type fakeNPM struct {
	calls int
	hits  []npm.Suggestion
	err   error
}

func (f *fakeNPM) FetchSuggestions(_ context.Context, _ string, _ int) ([]npm.Suggestion, error) {
	f.calls++
	return f.hits, f.err
}

type fakeIndex struct {
	calls map[pypi.Dataset]int
	lists map[pypi.Dataset][]pypi.IndexEntry
	errs  map[pypi.Dataset]error
}

func (f *fakeIndex) FetchIndex(_ context.Context, ds pypi.Dataset) ([]pypi.IndexEntry, error) {
	if f.calls == nil {
		f.calls = make(map[pypi.Dataset]int)
	}
	f.calls[ds]++
	return f.lists[ds], f.errs[ds]
}

var popular = []pypi.IndexEntry{
	{Name: "requests", Downloads: 900},
	{Name: "requests-oauthlib", Downloads: 300},
	{Name: "requests-toolbelt", Downloads: 200},
	{Name: "types-requests", Downloads: 250},
	{Name: "flask", Downloads: 500},
	{Name: "Flask_Cors", Downloads: 100},
}

func TestSearch(t *testing.T) {
	got := Search(popular, "requests", 10)
	var names []string
	for _, s := range got {
		names = append(names, s.Name)
		assert.Equal(t, stats.PyPI, s.Ecosystem)
	}
	assert.Equal(t, []string{"requests", "requests-oauthlib", "requests-toolbelt", "types-requests"}, names)
}

func TestSearchNormalizesNames(t *testing.T) {
	got := Search(popular, "flask_cors", 10)
	require.NotEmpty(t, got)
	assert.Equal(t, "Flask_Cors", got[0].Name)
	assert.InDelta(t, 3.0, got[0].Score, 1e-9)
}

func TestSearchFuzzy(t *testing.T) {
	got := Search(popular, "requets", 1)
	require.Len(t, got, 1)
	assert.Equal(t, "requests", got[0].Name)
}

func TestSearchLimitAndEmpty(t *testing.T) {
	assert.Len(t, Search(popular, "req", 2), 2)
	assert.Empty(t, Search(popular, "   ", 5))
	assert.Empty(t, Search(popular, "zzzzzz", 5))
}

func TestSuggestNPM(t *testing.T) {
	src := &fakeNPM{hits: []npm.Suggestion{
		{Package: npm.SuggestionPackage{Name: "react", Version: "18.2.0", Description: "UI"}, SearchScore: 100},
		{Package: npm.SuggestionPackage{Name: "react-dom"}, SearchScore: 50},
	}}
	c := New(src, nil)
	ctx := context.Background()

	got, err := c.Suggest(ctx, stats.NPM, "react", 5)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, Suggestion{Name: "react", Ecosystem: stats.NPM, Description: "UI", Version: "18.2.0", Score: 100}, got[0])

	_, err = c.Suggest(ctx, stats.NPM, "REACT ", 5)
	require.NoError(t, err)
	assert.Equal(t, 1, src.calls, "repeated queries are memoised")
}

func TestSuggestInvalidQuery(t *testing.T) {
	src := &fakeNPM{}
	c := New(src, nil)
	for _, q := range []string{"", "   ", "bad\x00query"} {
		got, err := c.Suggest(context.Background(), stats.NPM, q, 5)
		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	}
	assert.Zero(t, src.calls)
}

func TestSuggestUpstreamError(t *testing.T) {
	c := New(&fakeNPM{err: errors.New("npm: network error")}, nil)
	_, err := c.Suggest(context.Background(), stats.NPM, "react", 5)
	assert.Error(t, err)
}

func TestSuggestUnknownEcosystem(t *testing.T) {
	c := New(&fakeNPM{}, &fakeIndex{})
	_, err := c.Suggest(context.Background(), stats.Ecosystem("cargo"), "serde", 5)
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeInvalidEcosystem))
}

func TestPackageListFallback(t *testing.T) {
	idx := &fakeIndex{
		lists: map[pypi.Dataset][]pypi.IndexEntry{pypi.DatasetPopular: popular},
		errs:  map[pypi.Dataset]error{pypi.DatasetFull: errors.New("pypi-index: status 500")},
	}
	q := cache.NewQuery(cache.NewMemoryCache(0), cache.WithRetryDelay(time.Millisecond))
	c := New(nil, idx, WithQuery(q))
	ctx := context.Background()

	entries, ds, err := c.PackageList(ctx)
	require.NoError(t, err)
	assert.Equal(t, pypi.DatasetPopular, ds)
	assert.Len(t, entries, len(popular))

	got, err := c.Suggest(ctx, stats.PyPI, "flask", 3)
	require.NoError(t, err)
	require.NotEmpty(t, got)
	assert.Equal(t, "flask", got[0].Name)

	assert.Equal(t, 1, idx.calls[pypi.DatasetPopular], "popular list is cached")
}

func TestPackageListBacksOffFailedFullIndex(t *testing.T) {
	idx := &fakeIndex{
		lists: map[pypi.Dataset][]pypi.IndexEntry{pypi.DatasetPopular: popular},
		errs:  map[pypi.Dataset]error{pypi.DatasetFull: errors.New("pypi-index: status 500")},
	}
	q := cache.NewQuery(cache.NewMemoryCache(0), cache.WithRetryDelay(time.Millisecond))
	c := New(nil, idx, WithQuery(q), WithFullIndexBackoff(50*time.Millisecond))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, ds, err := c.PackageList(ctx)
		require.NoError(t, err)
		assert.Equal(t, pypi.DatasetPopular, ds)
	}
	assert.Equal(t, 1, idx.calls[pypi.DatasetFull], "failed full index is not retried within the backoff")

	time.Sleep(100 * time.Millisecond)
	idx.errs = nil
	idx.lists[pypi.DatasetFull] = []pypi.IndexEntry{{Name: "zope.interface"}}

	_, ds, err := c.PackageList(ctx)
	require.NoError(t, err)
	assert.Equal(t, pypi.DatasetFull, ds)
	assert.Equal(t, 2, idx.calls[pypi.DatasetFull])
}

func TestPackageListPrefersFull(t *testing.T) {
	idx := &fakeIndex{lists: map[pypi.Dataset][]pypi.IndexEntry{
		pypi.DatasetFull:    {{Name: "zope.interface"}},
		pypi.DatasetPopular: popular,
	}}
	c := New(nil, idx)
	_, ds, err := c.PackageList(context.Background())
	require.NoError(t, err)
	assert.Equal(t, pypi.DatasetFull, ds)
	assert.Zero(t, idx.calls[pypi.DatasetPopular])
}

func TestPackageListBothFail(t *testing.T) {
	idx := &fakeIndex{errs: map[pypi.Dataset]error{
		pypi.DatasetFull:    errors.New("down"),
		pypi.DatasetPopular: errors.New("down"),
	}}
	c := New(nil, idx)
	_, _, err := c.PackageList(context.Background())
	assert.Error(t, err)
}

func TestMemoExpires(t *testing.T) {
	src := &fakeNPM{hits: []npm.Suggestion{{Package: npm.SuggestionPackage{Name: "vue"}}}}
	c := New(src, nil, WithMemo(8, 10*time.Millisecond))
	ctx := context.Background()
	_, _ = c.Suggest(ctx, stats.NPM, "vue", 5)
	time.Sleep(50 * time.Millisecond)
	_, _ = c.Suggest(ctx, stats.NPM, "vue", 5)
	assert.Equal(t, 2, src.calls)
}
