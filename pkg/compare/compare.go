// Package compare ranks packages against each other metric by metric.
//
// [CompareMany] is the N-way comparison used everywhere in stackrank. The
// pairwise [Compare] is kept for callers of the older two-package view; its
// percentage convention differs and is documented on the function.
package compare

import (
	mstats "github.com/montanaflynn/stats"

	"github.com/matzehuels/stackrank/pkg/stats"
)

// Metric names a comparable numeric field of [stats.PackageStats].
type Metric string

// Tracked metrics, in display order.
const (
	WeeklyDownloads Metric = "weeklyDownloads"
	TotalDownloads  Metric = "totalDownloads"
	Stars           Metric = "stars"
	Forks           Metric = "forks"
	OpenIssues      Metric = "openIssues"
	Quality         Metric = "quality"
	Popularity      Metric = "popularity"
	Maintenance     Metric = "maintenance"
)

// Metrics lists every tracked metric in display order.
var Metrics = []Metric{
	WeeklyDownloads, TotalDownloads, Stars, Forks, OpenIssues, Quality, Popularity, Maintenance,
}

var labels = map[Metric]string{
	WeeklyDownloads: "Weekly downloads",
	TotalDownloads:  "Total downloads",
	Stars:           "Stars",
	Forks:           "Forks",
	OpenIssues:      "Open issues",
	Quality:         "Quality",
	Popularity:      "Popularity",
	Maintenance:     "Maintenance",
}

// Label returns a human-readable name.
func (m Metric) Label() string {
	if l, ok := labels[m]; ok {
		return l
	}
	return string(m)
}

// IsScore reports whether the metric is a [0,1] score.
func (m Metric) IsScore() bool {
	return m == Quality || m == Popularity || m == Maintenance
}

// Value extracts the metric from s. ok is false when s does not report it.
func (m Metric) Value(s *stats.PackageStats) (v float64, ok bool) {
	if s == nil {
		return 0, false
	}
	switch m {
	case WeeklyDownloads:
		return intValue(s.WeeklyDownloads)
	case TotalDownloads:
		return intValue(s.TotalDownloads)
	case Stars:
		return intValue(s.Stars)
	case Forks:
		return intValue(s.Forks)
	case OpenIssues:
		return intValue(s.OpenIssues)
	case Quality:
		return floatValue(s.Quality)
	case Popularity:
		return floatValue(s.Popularity)
	case Maintenance:
		return floatValue(s.Maintenance)
	}
	return 0, false
}

func intValue(p *int64) (float64, bool) {
	if p == nil {
		return 0, false
	}
	return float64(*p), true
}

func floatValue(p *float64) (float64, bool) {
	if p == nil {
		return 0, false
	}
	return *p, true
}

// Entry is one package's standing in a [MetricComparison].
type Entry struct {
	PackageIndex int      `json:"packageIndex"`
	PackageName  string   `json:"packageName"`
	Value        *float64 `json:"value,omitempty"`
	IsWinner     bool     `json:"isWinner"`
	// PercentDiff is the distance to the best value, always negative.
	// It is nil for winners, for packages without a value, and for every
	// package when the best value is 0.
	PercentDiff *float64 `json:"percentDiff,omitempty"`
}

// Summary describes the defined values of one metric.
type Summary struct {
	Count  int     `json:"count"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
}

// MetricComparison holds one entry per input package, in input order.
type MetricComparison struct {
	Metric  Metric  `json:"metric"`
	Label   string  `json:"label"`
	Entries []Entry `json:"entries"`
	Summary Summary `json:"summary"`
}

// Winners returns the indices of the winning packages.
func (mc MetricComparison) Winners() []int {
	var out []int
	for _, e := range mc.Entries {
		if e.IsWinner {
			out = append(out, e.PackageIndex)
		}
	}
	return out
}

// Result is the output of [CompareMany].
type Result struct {
	Packages []*stats.PackageStats `json:"packages"`
	Metrics  []MetricComparison    `json:"metricComparisons"`
}

// Metric returns the comparison for m, if any package reported it.
func (r Result) Metric(m Metric) (MetricComparison, bool) {
	for _, mc := range r.Metrics {
		if mc.Metric == m {
			return mc, true
		}
	}
	return MetricComparison{}, false
}

// WinCounts returns how many metrics each package wins, indexed like Packages.
func (r Result) WinCounts() []int {
	out := make([]int, len(r.Packages))
	for _, mc := range r.Metrics {
		for _, i := range mc.Winners() {
			out[i]++
		}
	}
	return out
}

// CompareMany compares any number of packages on every tracked metric.
//
// A metric that no package reports is omitted. Every package whose value
// equals the maximum wins, so ties produce several winners. Non-winners get
// PercentDiff = (value-max)/max*100; when max is 0 nobody gets a PercentDiff.
// Packages and entries keep the input order.
func CompareMany(pkgs []*stats.PackageStats) Result {
	res := Result{Packages: pkgs}
	for _, m := range Metrics {
		if mc, ok := compareMetric(m, pkgs); ok {
			res.Metrics = append(res.Metrics, mc)
		}
	}
	return res
}

func compareMetric(m Metric, pkgs []*stats.PackageStats) (MetricComparison, bool) {
	entries := make([]Entry, len(pkgs))
	var defined mstats.Float64Data
	for i, p := range pkgs {
		entries[i] = Entry{PackageIndex: i}
		if p == nil {
			continue
		}
		entries[i].PackageName = p.Name
		if v, ok := m.Value(p); ok {
			entries[i].Value = &v
			defined = append(defined, v)
		}
	}
	if len(defined) == 0 {
		return MetricComparison{}, false
	}

	maxValue, _ := defined.Max()
	for i := range entries {
		e := &entries[i]
		if e.Value == nil {
			continue
		}
		if *e.Value == maxValue {
			e.IsWinner = true
			continue
		}
		if maxValue != 0 {
			d := (*e.Value - maxValue) / maxValue * 100
			e.PercentDiff = &d
		}
	}

	mean, _ := defined.Mean()
	median, _ := defined.Median()
	return MetricComparison{
		Metric:  m,
		Label:   m.Label(),
		Entries: entries,
		Summary: Summary{Count: len(defined), Max: maxValue, Mean: mean, Median: median},
	}, true
}
