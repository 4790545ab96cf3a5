// Package compare scores a candidate's held-out losses against a baseline's.
//
// Every test here is one-sided: it asks whether the first loss vector is
// significantly smaller than the second, and reports p = 1 whenever the data
// point the other way.
package compare

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"predindep/domain/core"
)

// minSignedRankSD keeps z finite when the null variance collapses
const minSignedRankSD = 1e-100

// RankTestResult is the outcome of the one-sided signed-rank test
type RankTestResult struct {
	PValue    float64 `json:"p_value"`
	Better    bool    `json:"better"`    // first sequence has the smaller losses
	Statistic float64 `json:"statistic"` // T = min(r+, r-)
	Z         float64 `json:"z"`
	N         int     `json:"n"` // non-zero differences
}

// SignedRank runs a one-sided Wilcoxon signed-rank test of a against b using
// the normal approximation with tie correction. Zero differences are dropped.
func SignedRank(a, b []float64) (RankTestResult, error) {
	if len(a) != len(b) {
		return RankTestResult{}, core.NewLengthMismatchError("signed-rank residuals", len(a), len(b))
	}

	diffs := make([]float64, 0, len(a))
	identical := true
	for i := range a {
		d := a[i] - b[i]
		if a[i] != b[i] {
			identical = false
		}
		if d != 0 {
			diffs = append(diffs, d)
		}
	}

	abs := make([]float64, len(diffs))
	for i, d := range diffs {
		abs[i] = math.Abs(d)
	}
	ranks, ties := averageRanks(abs)

	var rPlus, rMinus float64
	for i, d := range diffs {
		if d > 0 {
			rPlus += ranks[i]
		} else {
			rMinus += ranks[i]
		}
	}

	n := float64(len(diffs))
	t := math.Min(rPlus, rMinus)
	mean := n * (n + 1) * 0.25
	variance := n * (n + 1) * (2*n + 1)
	for _, k := range ties {
		kf := float64(k)
		variance -= 0.5 * kf * (kf*kf - 1)
	}
	sd := math.Max(math.Sqrt(variance/24), minSignedRankSD)
	z := (t - mean) / sd

	result := RankTestResult{
		PValue:    distuv.UnitNormal.Survival(math.Abs(z)),
		Better:    rPlus < rMinus,
		Statistic: t,
		Z:         z,
		N:         len(diffs),
	}

	if identical {
		result.Better = false
	}
	if !result.Better {
		result.PValue = 1
	}
	return result, nil
}
