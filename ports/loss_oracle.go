package ports

import (
	"context"

	"gonum.org/v1/gonum/mat"
)

// ResidualRequest asks for held-out losses of one response column
type ResidualRequest struct {
	TrainX *mat.Dense // nil or ignored in baseline mode
	TestX  *mat.Dense
	TrainY []float64
	TestY  []float64
	// Baseline requests the trivial predictor that ignores the predictors
	Baseline bool
}

// LossOracle fits a predictor on the training split and returns one
// non-negative loss per test sample
type LossOracle interface {
	Residuals(ctx context.Context, req ResidualRequest) ([]float64, error)
}
