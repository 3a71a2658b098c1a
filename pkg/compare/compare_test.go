package compare

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/utils/ptr"
	"pgregory.net/rapid"

	"github.com/matzehuels/stackrank/pkg/stats"
)

func npmPkg(name string, stars *int64) *stats.PackageStats {
	s := stats.New(name, &stats.NPMExtension{})
	s.Stars = stars
	return s
}

func TestCompareMany_ReactPreact(t *testing.T) {
	react := npmPkg("react", ptr.To[int64](220000))
	preact := npmPkg("preact", ptr.To[int64](36000))

	res := CompareMany([]*stats.PackageStats{react, preact})
	assert.Equal(t, []*stats.PackageStats{react, preact}, res.Packages)

	mc, ok := res.Metric(Stars)
	require.True(t, ok)
	require.Len(t, mc.Entries, 2)

	assert.True(t, mc.Entries[0].IsWinner)
	assert.Nil(t, mc.Entries[0].PercentDiff)
	assert.False(t, mc.Entries[1].IsWinner)
	require.NotNil(t, mc.Entries[1].PercentDiff)
	assert.InDelta(t, -83.636, *mc.Entries[1].PercentDiff, 0.001)

	assert.Equal(t, 2, mc.Summary.Count)
	assert.InDelta(t, 128000, mc.Summary.Mean, 1e-9)
	assert.InDelta(t, 128000, mc.Summary.Median, 1e-9)
	assert.Equal(t, []int{1, 0}, res.WinCounts())
}

func TestCompareMany(t *testing.T) {
	tests := []struct {
		name        string
		stars       []*int64
		wantPresent bool
		wantWinners []int
		wantDiff    []*float64
	}{
		{
			name:        "absent everywhere",
			stars:       []*int64{nil, nil},
			wantPresent: false,
		},
		{
			name:        "tie",
			stars:       []*int64{ptr.To[int64](10), ptr.To[int64](10), ptr.To[int64](5)},
			wantPresent: true,
			wantWinners: []int{0, 1},
			wantDiff:    []*float64{nil, nil, ptr.To(-50.0)},
		},
		{
			name:        "zero max",
			stars:       []*int64{ptr.To[int64](0), ptr.To[int64](0)},
			wantPresent: true,
			wantWinners: []int{0, 1},
			wantDiff:    []*float64{nil, nil},
		},
		{
			name:        "sparse",
			stars:       []*int64{nil, ptr.To[int64](4), ptr.To[int64](1)},
			wantPresent: true,
			wantWinners: []int{1},
			wantDiff:    []*float64{nil, nil, ptr.To(-75.0)},
		},
		{
			name:        "single package",
			stars:       []*int64{ptr.To[int64](3)},
			wantPresent: true,
			wantWinners: []int{0},
			wantDiff:    []*float64{nil},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var pkgs []*stats.PackageStats
			for i, s := range tt.stars {
				pkgs = append(pkgs, npmPkg(fmt.Sprintf("p%d", i), s))
			}
			mc, ok := CompareMany(pkgs).Metric(Stars)
			require.Equal(t, tt.wantPresent, ok)
			if !ok {
				return
			}
			assert.Equal(t, tt.wantWinners, mc.Winners())
			for i, want := range tt.wantDiff {
				got := mc.Entries[i].PercentDiff
				if want == nil {
					assert.Nil(t, got, "entry %d", i)
					continue
				}
				require.NotNil(t, got, "entry %d", i)
				assert.InDelta(t, *want, *got, 1e-9)
			}
		})
	}
}

func TestCompareManyEmpty(t *testing.T) {
	res := CompareMany(nil)
	assert.Empty(t, res.Metrics)
	assert.Empty(t, res.WinCounts())
}

func TestCompareManyMetricOrder(t *testing.T) {
	s := stats.New("a", &stats.NPMExtension{})
	s.Maintenance = ptr.To(0.5)
	s.WeeklyDownloads = ptr.To[int64](1)
	s.Stars = ptr.To[int64](1)

	res := CompareMany([]*stats.PackageStats{s})
	var got []Metric
	for _, mc := range res.Metrics {
		got = append(got, mc.Metric)
	}
	assert.Equal(t, []Metric{WeeklyDownloads, Stars, Maintenance}, got)
}

func TestCompare(t *testing.T) {
	tests := []struct {
		name       string
		a, b       int64
		wantWinner Winner
		wantDiff   float64
	}{
		{"a ahead", 150, 100, WinnerA, 50},
		{"b ahead", 50, 100, WinnerB, -50},
		{"tie", 7, 7, Tie, 0},
		{"both zero", 0, 0, Tie, 0},
		{"b zero", 5, 0, WinnerA, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Compare(npmPkg("a", ptr.To(tt.a)), npmPkg("b", ptr.To(tt.b)))
			require.Len(t, res.Metrics, 1)
			m := res.Metrics[0]
			assert.Equal(t, Stars, m.Metric)
			assert.Equal(t, tt.wantWinner, m.Winner)
			assert.InDelta(t, tt.wantDiff, m.PercentDiff, 1e-9)
		})
	}
}

func TestCompareSkipsOneSidedMetrics(t *testing.T) {
	a := npmPkg("a", ptr.To[int64](1))
	b := npmPkg("b", nil)
	b.Quality = ptr.To(0.3)
	assert.Empty(t, Compare(a, b).Metrics)
}

func TestMetricLabel(t *testing.T) {
	assert.Equal(t, "Weekly downloads", WeeklyDownloads.Label())
	assert.Equal(t, "custom", Metric("custom").Label())
	assert.True(t, Quality.IsScore())
	assert.False(t, Stars.IsScore())
}

// genPackages draws up to six packages with sparse metrics. Values come from
// a small range so ties and zero maxima are common.
func genPackages(t *rapid.T) []*stats.PackageStats {
	n := rapid.IntRange(0, 6).Draw(t, "n")
	pkgs := make([]*stats.PackageStats, n)
	optInt := func(label string) *int64 {
		if !rapid.Bool().Draw(t, label+"-set") {
			return nil
		}
		return ptr.To(rapid.Int64Range(0, 4).Draw(t, label))
	}
	optScore := func(label string) *float64 {
		if !rapid.Bool().Draw(t, label+"-set") {
			return nil
		}
		return ptr.To(float64(rapid.IntRange(0, 4).Draw(t, label)) / 4)
	}
	for i := range pkgs {
		s := stats.New(fmt.Sprintf("pkg-%d", i), &stats.NPMExtension{})
		s.WeeklyDownloads = optInt("weekly")
		s.TotalDownloads = optInt("total")
		s.Stars = optInt("stars")
		s.Forks = optInt("forks")
		s.OpenIssues = optInt("issues")
		s.Quality = optScore("quality")
		s.Popularity = optScore("popularity")
		s.Maintenance = optScore("maintenance")
		pkgs[i] = s
	}
	return pkgs
}

func TestCompareManyProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		pkgs := genPackages(t)
		res := CompareMany(pkgs)

		if len(res.Packages) != len(pkgs) {
			t.Fatalf("packages length %d, want %d", len(res.Packages), len(pkgs))
		}
		for i := range pkgs {
			if res.Packages[i] != pkgs[i] {
				t.Fatalf("package %d out of order", i)
			}
		}

		for _, m := range Metrics {
			maxValue, defined := math.Inf(-1), 0
			for _, p := range pkgs {
				if v, ok := m.Value(p); ok {
					defined++
					maxValue = math.Max(maxValue, v)
				}
			}

			mc, present := res.Metric(m)
			if defined == 0 {
				if present {
					t.Fatalf("metric %s present although no package reports it", m)
				}
				continue
			}
			if !present {
				t.Fatalf("metric %s missing although %d packages report it", m, defined)
			}
			if len(mc.Entries) != len(pkgs) {
				t.Fatalf("metric %s has %d entries, want %d", m, len(mc.Entries), len(pkgs))
			}

			winners := 0
			for i, e := range mc.Entries {
				if e.PackageIndex != i || e.PackageName != pkgs[i].Name {
					t.Fatalf("metric %s entry %d out of order", m, i)
				}
				v, ok := m.Value(pkgs[i])
				wantWinner := ok && v == maxValue
				if e.IsWinner != wantWinner {
					t.Fatalf("metric %s entry %d winner=%v, want %v", m, i, e.IsWinner, wantWinner)
				}
				if e.IsWinner {
					winners++
				}
				switch {
				case e.IsWinner || !ok || maxValue == 0:
					if e.PercentDiff != nil {
						t.Fatalf("metric %s entry %d has unexpected percentDiff %v", m, i, *e.PercentDiff)
					}
				default:
					if e.PercentDiff == nil || !(*e.PercentDiff < 0) {
						t.Fatalf("metric %s entry %d percentDiff must be negative", m, i)
					}
				}
			}
			if winners == 0 {
				t.Fatalf("metric %s has no winner", m)
			}
		}
	})
}

func TestCompareManyTiesProduceMultipleWinners(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		v := rapid.Int64Range(0, 1000).Draw(t, "v")
		n := rapid.IntRange(2, 5).Draw(t, "n")
		pkgs := make([]*stats.PackageStats, n)
		for i := range pkgs {
			pkgs[i] = npmPkg(fmt.Sprintf("p%d", i), ptr.To(v))
		}
		mc, ok := CompareMany(pkgs).Metric(Stars)
		if !ok || len(mc.Winners()) != n {
			t.Fatalf("expected %d winners", n)
		}
	})
}
