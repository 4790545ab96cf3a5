// Package oracle is the reference loss oracle: it fits a regressor on the
// training split and reports squared errors on the test split.
package oracle

import (
	"context"
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"predindep/domain/core"
	"predindep/internal/analysis"
	"predindep/ports"
)

// Estimation methods
const (
	MethodMean         = "mean"
	MethodOLS          = "ols"
	MethodRidge        = "ridge"
	MethodMultiplexing = "multiplexing"
)

// minMultiplexRows is the smallest training set the inner holdout is run on
const minMultiplexRows = 6

// Config selects the estimator behind the oracle
type Config struct {
	Method        string
	RidgeLambda   float64
	Seed          int64   // inner holdout seed for multiplexing
	ValidFraction float64 // inner holdout fraction for multiplexing
}

// DefaultConfig returns the multiplexing oracle
func DefaultConfig() Config {
	return Config{
		Method:        MethodMultiplexing,
		RidgeLambda:   1,
		Seed:          1,
		ValidFraction: 1.0 / 3.0,
	}
}

// Oracle implements ports.LossOracle. It holds no state between calls and is
// safe for concurrent use.
type Oracle struct {
	cfg        Config
	candidates []Estimator
}

var _ ports.LossOracle = (*Oracle)(nil)

// New validates the configuration and builds the oracle
func New(cfg Config) (*Oracle, error) {
	cfg.Method = strings.ToLower(strings.TrimSpace(cfg.Method))
	if cfg.Method == "" {
		cfg.Method = MethodMultiplexing
	}
	if cfg.RidgeLambda < 0 {
		return nil, fmt.Errorf("ridge lambda %.3f is negative", cfg.RidgeLambda)
	}
	if cfg.ValidFraction <= 0 || cfg.ValidFraction >= 1 {
		cfg.ValidFraction = 1.0 / 3.0
	}

	o := &Oracle{cfg: cfg}
	switch cfg.Method {
	case MethodMean:
		o.candidates = []Estimator{MeanEstimator{}}
	case MethodOLS:
		o.candidates = []Estimator{OLSEstimator{}}
	case MethodRidge:
		o.candidates = []Estimator{RidgeEstimator{Lambda: cfg.RidgeLambda}}
	case MethodMultiplexing:
		o.candidates = []Estimator{
			MeanEstimator{},
			OLSEstimator{},
			RidgeEstimator{Lambda: cfg.RidgeLambda},
		}
	default:
		return nil, fmt.Errorf("%w: %q", core.ErrUnknownMethod, cfg.Method)
	}
	return o, nil
}

// Method returns the configured method name
func (o *Oracle) Method() string {
	return o.cfg.Method
}

// Residuals returns the squared test-set errors of the fitted predictor, or
// of the training mean when req.Baseline is set
func (o *Oracle) Residuals(ctx context.Context, req ports.ResidualRequest) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(req.TrainY) == 0 || len(req.TestY) == 0 {
		return nil, core.NewInsufficientDataError("loss oracle", 1, 0)
	}

	if req.Baseline {
		pred, err := MeanEstimator{}.Fit(nil, req.TrainY)
		if err != nil {
			return nil, err
		}
		return squaredErrors(pred.Predict(mat.NewDense(len(req.TestY), 1, nil)), req.TestY), nil
	}

	if req.TrainX == nil || req.TestX == nil {
		return nil, fmt.Errorf("loss oracle: predictors required unless baseline is requested")
	}
	if r, _ := req.TrainX.Dims(); r != len(req.TrainY) {
		return nil, core.NewRowMismatchError("training predictors", len(req.TrainY), r)
	}
	if r, _ := req.TestX.Dims(); r != len(req.TestY) {
		return nil, core.NewRowMismatchError("test predictors", len(req.TestY), r)
	}

	est, err := o.choose(req.TrainX, req.TrainY)
	if err != nil {
		return nil, err
	}
	pred, err := est.Fit(req.TrainX, req.TrainY)
	if err != nil {
		return nil, fmt.Errorf("%s fit: %w", est.Name(), err)
	}
	return squaredErrors(pred.Predict(req.TestX), req.TestY), nil
}

// choose returns the single configured estimator, or for multiplexing the
// candidate with the lowest validation MSE on an inner holdout
func (o *Oracle) choose(x *mat.Dense, y []float64) (Estimator, error) {
	if len(o.candidates) == 1 {
		return o.candidates[0], nil
	}
	if len(y) < minMultiplexRows {
		return RidgeEstimator{Lambda: o.cfg.RidgeLambda}, nil
	}

	yCol := mat.NewDense(len(y), 1, append([]float64(nil), y...))
	splits, err := analysis.NewDataPartitionerWithSeed(o.cfg.Seed).Split(o.cfg.ValidFraction, x, yCol)
	if err != nil {
		return nil, err
	}
	fitX, validX := splits[0].Train, splits[0].Test
	fitY := mat.Col(nil, 0, splits[1].Train)
	validY := mat.Col(nil, 0, splits[1].Test)

	best, bestLoss := Estimator(nil), math.Inf(1)
	for _, est := range o.candidates {
		pred, err := est.Fit(fitX, fitY)
		if err != nil {
			continue
		}
		if loss := stat.Mean(squaredErrors(pred.Predict(validX), validY), nil); loss < bestLoss {
			best, bestLoss = est, loss
		}
	}
	if best == nil {
		return nil, fmt.Errorf("multiplexing: no candidate estimator could be fitted")
	}
	return best, nil
}

func squaredErrors(pred, actual []float64) []float64 {
	out := make([]float64, len(actual))
	for i := range actual {
		d := pred[i] - actual[i]
		out[i] = d * d
	}
	return out
}
