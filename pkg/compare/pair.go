package compare

import "github.com/matzehuels/stackrank/pkg/stats"

// Winner names the better side of a pairwise metric.
type Winner string

// Pairwise outcomes.
const (
	WinnerA Winner = "a"
	WinnerB Winner = "b"
	Tie     Winner = "tie"
)

// PairMetric is one metric of a pairwise comparison.
type PairMetric struct {
	Metric      Metric  `json:"metric"`
	Label       string  `json:"label"`
	A           float64 `json:"a"`
	B           float64 `json:"b"`
	Winner      Winner  `json:"winner"`
	PercentDiff float64 `json:"percentDiff"`
}

// PairResult is the output of [Compare].
type PairResult struct {
	A       *stats.PackageStats `json:"a"`
	B       *stats.PackageStats `json:"b"`
	Metrics []PairMetric        `json:"metrics"`
}

// Compare is the legacy two-package comparison.
//
// Only metrics reported by both packages are included. PercentDiff is
// measured from b: (a-b)/b*100. When b is 0 the result is 0 if a is also 0
// and 100 otherwise. This differs from [CompareMany], which reports no
// percentage at all when the best value is 0.
func Compare(a, b *stats.PackageStats) PairResult {
	res := PairResult{A: a, B: b}
	for _, m := range Metrics {
		va, okA := m.Value(a)
		vb, okB := m.Value(b)
		if !okA || !okB {
			continue
		}
		res.Metrics = append(res.Metrics, PairMetric{
			Metric:      m,
			Label:       m.Label(),
			A:           va,
			B:           vb,
			Winner:      pairWinner(va, vb),
			PercentDiff: pairPercentDiff(va, vb),
		})
	}
	return res
}

func pairWinner(a, b float64) Winner {
	switch {
	case a > b:
		return WinnerA
	case b > a:
		return WinnerB
	default:
		return Tie
	}
}

func pairPercentDiff(a, b float64) float64 {
	if b == 0 {
		if a == 0 {
			return 0
		}
		return 100
	}
	return (a - b) / b * 100
}
