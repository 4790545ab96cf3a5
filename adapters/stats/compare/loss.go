package compare

import (
	"fmt"
	"math"

	"github.com/montanaflynn/stats"

	"predindep/domain/core"
	"predindep/domain/indep"
)

// LossStatistics summarises two loss vectors for reporting
type LossStatistics struct {
	Means [2]float64 // square root of the mean loss
	SE    [2]float64 // standard error of the mean, scaled to the root-mean scale
}

// LossSummary computes root-mean losses and their standard errors.
// Losses must be non-negative (squared errors); a negative mean is rejected.
func LossSummary(a, b []float64) (LossStatistics, error) {
	if len(a) != len(b) {
		return LossStatistics{}, core.NewLengthMismatchError("loss vectors", len(a), len(b))
	}
	if len(a) == 0 {
		return LossStatistics{}, core.NewInsufficientDataError("loss summary", 1, 0)
	}

	var out LossStatistics
	for i, losses := range [2]stats.Float64Data{a, b} {
		mean, err := losses.Mean()
		if err != nil {
			return LossStatistics{}, err
		}
		if mean < 0 {
			return LossStatistics{}, core.ErrNegativeLoss
		}

		se := 0.0
		if n := losses.Len(); n > 1 {
			variance, err := losses.PopulationVariance()
			if err != nil {
				return LossStatistics{}, err
			}
			se = math.Sqrt(variance / float64(n-1))
		}

		root := math.Sqrt(mean)
		out.Means[i] = root
		if root > 0 {
			out.SE[i] = se / (2 * root)
		}
	}
	return out, nil
}

// Evaluate runs the signed-rank test and the loss summary on the same pair
func Evaluate(a, b []float64) (indep.ComparisonResult, error) {
	rank, err := SignedRank(a, b)
	if err != nil {
		return indep.ComparisonResult{}, err
	}
	summary, err := LossSummary(a, b)
	if err != nil {
		return indep.ComparisonResult{}, err
	}
	return indep.ComparisonResult{
		PValue:    rank.PValue,
		Better:    rank.Better,
		LossMeans: summary.Means,
		LossSE:    summary.SE,
	}, nil
}

// Run applies the chosen comparator to loss against baseline. The loss
// statistics of the returned result are left zero; see LossSummary.
func Run(comparator indep.Comparator, loss, baseline []float64) (indep.ComparisonResult, error) {
	switch comparator {
	case indep.ComparatorPairedT:
		r, err := PairedTTest(loss, baseline)
		if err != nil {
			return indep.ComparisonResult{}, err
		}
		return indep.ComparisonResult{PValue: r.PValue, Better: r.Better}, nil
	case indep.ComparatorSignedRank, "":
		r, err := SignedRank(loss, baseline)
		if err != nil {
			return indep.ComparisonResult{}, err
		}
		return indep.ComparisonResult{PValue: r.PValue, Better: r.Better}, nil
	default:
		return indep.ComparisonResult{}, fmt.Errorf("%w: %q", core.ErrUnknownComparator, comparator)
	}
}

// PValue scores "loss is significantly smaller than baseline" with the chosen comparator
func PValue(comparator indep.Comparator, loss, baseline []float64) (float64, error) {
	r, err := Run(comparator, loss, baseline)
	if err != nil {
		return 0, err
	}
	return r.PValue, nil
}
