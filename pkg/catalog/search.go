package catalog

import (
	"sort"
	"strings"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"

	"github.com/matzehuels/stackrank/pkg/integrations"
	"github.com/matzehuels/stackrank/pkg/integrations/pypi"
	"github.com/matzehuels/stackrank/pkg/stats"
)

// MinSimilarity is the Jaro-Winkler threshold for non-prefix matches.
const MinSimilarity = 0.85

// Search ranks entries against query. Exact matches come first, then
// prefix matches (shorter names first), then substring and fuzzy matches
// by Jaro-Winkler similarity. Ties are broken by downloads, then name.
func Search(entries []pypi.IndexEntry, query string, limit int) []Suggestion {
	q := integrations.NormalizePkgName(query)
	if q == "" {
		return []Suggestion{}
	}
	jw := metrics.NewJaroWinkler()

	out := make([]Suggestion, 0, limit)
	for _, e := range entries {
		name := integrations.NormalizePkgName(e.Name)
		score, ok := rank(q, name, jw)
		if !ok {
			continue
		}
		out = append(out, Suggestion{
			Name:      e.Name,
			Ecosystem: stats.PyPI,
			Downloads: e.Downloads,
			Score:     score,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Downloads != b.Downloads {
			return a.Downloads > b.Downloads
		}
		return a.Name < b.Name
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// rank scores name in tiers: 3 exact, 2..3 prefix, 1..2 substring, 0..1 fuzzy.
func rank(q, name string, jw *metrics.JaroWinkler) (float64, bool) {
	switch {
	case name == q:
		return 3, true
	case strings.HasPrefix(name, q):
		return 2 + float64(len(q))/float64(len(name)), true
	case strings.Contains(name, q):
		return 1 + float64(len(q))/float64(len(name)), true
	}
	sim := strutil.Similarity(q, name, jw)
	if sim < MinSimilarity {
		return 0, false
	}
	return sim, true
}
