package compare

import (
	"math"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat/distuv"

	"predindep/domain/core"
)

// TTestResult is the outcome of the one-sided paired t-test
type TTestResult struct {
	PValue    float64 `json:"p_value"`
	Better    bool    `json:"better"`
	T         float64 `json:"t"`
	TwoSidedP float64 `json:"two_sided_p"`
	DF        int     `json:"df"`
}

// PairedTTest tests whether a is significantly smaller than b on paired samples.
// A negative t credits half the two-sided p-value; otherwise the result is at least 0.5.
func PairedTTest(a, b []float64) (TTestResult, error) {
	if len(a) != len(b) {
		return TTestResult{}, core.NewLengthMismatchError("paired t-test residuals", len(a), len(b))
	}
	if len(a) < 2 {
		return TTestResult{}, core.NewInsufficientDataError("paired t-test", 2, len(a))
	}

	diffs := make(stats.Float64Data, len(a))
	for i := range a {
		diffs[i] = a[i] - b[i]
	}
	meanDiff, err := diffs.Mean()
	if err != nil {
		return TTestResult{}, err
	}
	sd, err := diffs.StandardDeviationSample()
	if err != nil {
		return TTestResult{}, err
	}

	df := len(diffs) - 1
	result := TTestResult{DF: df}

	// constant differences: the sign alone decides
	if sd == 0 {
		switch {
		case meanDiff < 0:
			result.T = math.Inf(-1)
			result.PValue, result.Better = 0, true
		case meanDiff > 0:
			result.T = math.Inf(1)
			result.PValue = 1
		default:
			result.TwoSidedP = 1
			result.PValue = 1
		}
		return result, nil
	}

	result.T = meanDiff / (sd / math.Sqrt(float64(len(diffs))))
	tDist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(df)}
	result.TwoSidedP = math.Min(1, 2*tDist.Survival(math.Abs(result.T)))

	if result.T < 0 {
		result.Better = true
		result.PValue = result.TwoSidedP / 2
	} else {
		result.PValue = 1 - result.TwoSidedP/2
	}
	return result, nil
}
