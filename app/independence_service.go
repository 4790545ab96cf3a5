package app

import (
	"context"
	stderrors "errors"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"predindep/adapters/stats/compare"
	"predindep/adapters/stats/fdr"
	"predindep/domain/core"
	"predindep/domain/indep"
	"predindep/internal"
	"predindep/internal/analysis"
	"predindep/internal/errors"
	"predindep/ports"
)

// IndependenceService decides whether X carries information about Y beyond Z
// by comparing held-out prediction losses against a baseline
type IndependenceService struct {
	oracle      ports.LossOracle
	splitterFor func(seed int64) ports.Splitter
	logger      *internal.Logger
}

// NewIndependenceService creates an independence test service
func NewIndependenceService(oracle ports.LossOracle, logger *internal.Logger) *IndependenceService {
	if logger == nil {
		logger = internal.NewNopLogger()
	}
	return &IndependenceService{
		oracle: oracle,
		splitterFor: func(seed int64) ports.Splitter {
			return analysis.NewDataPartitionerWithSeed(seed)
		},
		logger: logger,
	}
}

// WithSplitter replaces the seeded partitioner, mainly for tests
func (s *IndependenceService) WithSplitter(splitterFor func(seed int64) ports.Splitter) *IndependenceService {
	s.splitterFor = splitterFor
	return s
}

// directionResult is the p-value vector of one direction and its per-column detail
type directionResult struct {
	pValues indep.PValueVector
	reports []indep.DimensionReport
}

// Test runs the predictive independence test described by req
func (s *IndependenceService) Test(ctx context.Context, req indep.Request) (*indep.Result, error) {
	opts, harmonic, err := normalizeOptions(req.Options)
	if err != nil {
		return nil, err
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	runID := core.NewRunID()
	log := s.logger.With("run_id", runID.String())
	log.Info("independence test started: method=%s comparator=%s symmetric=%t confidence=%.4g",
		opts.Method, opts.Comparator, opts.Symmetric, opts.Confidence)

	forward, err := s.runDirection(ctx, log, indep.DirectionForward, req.Y, req.X, req.Z, opts)
	if err != nil {
		return nil, err
	}

	result := &indep.Result{
		RunID:      runID,
		Forward:    forward.pValues,
		Comparator: opts.Comparator,
		Symmetric:  opts.Symmetric,
		Confidence: opts.Confidence,
		Dimensions: forward.reports,
	}

	var backward directionResult
	if opts.Symmetric {
		backward, err = s.runDirection(ctx, log, indep.DirectionBackward, req.X, req.Y, req.Z, opts)
		if err != nil {
			return nil, err
		}
		result.Backward = backward.pValues
		result.Dimensions = append(result.Dimensions, backward.reports...)
	}

	reported := reportDirection(forward.pValues, opts.Confidence, harmonic)
	result.Adjusted = reported.Adjusted
	result.Significant = reported.Significant
	result.Finding = findingOf(reported)

	if opts.Symmetric {
		family := make([]float64, 0, len(forward.pValues)+len(backward.pValues))
		family = append(family, forward.pValues...)
		family = append(family, backward.pValues...)
		result.Independent = fdr.Control(family, opts.Confidence, harmonic).None()
	} else {
		result.Independent = reported.None()
	}

	log.Info("independence test finished: independent=%t finding=%s significant=%v",
		result.Independent, result.Finding, result.Significant)
	return result, nil
}

// reportDirection applies FDR control to a multi-column direction; a single
// column is compared to the threshold unadjusted
func reportDirection(pValues indep.PValueVector, confidence float64, harmonic fdr.Harmonic) fdr.Result {
	if len(pValues) > 1 {
		return fdr.Control(pValues, confidence, harmonic)
	}
	result := fdr.Result{Adjusted: pValues.Clone(), Significant: []int{}}
	if pValues[0] <= confidence {
		result.Significant = []int{0}
	}
	return result
}

func findingOf(r fdr.Result) indep.Finding {
	if r.None() {
		return indep.FindingNone
	}
	return indep.FindingSome
}

// runDirection computes one p-value per column of y, asking whether x (with z
// when present) predicts it better than the baseline (z alone, or the trivial
// predictor)
func (s *IndependenceService) runDirection(
	ctx context.Context,
	log *internal.Logger,
	dir indep.Direction,
	y, x, z *mat.Dense,
	opts indep.Options,
) (directionResult, error) {
	predictors := x
	matrices := []*mat.Dense{x, y}
	if z != nil {
		predictors = hstack(x, z)
		matrices = []*mat.Dense{predictors, y, z}
	}

	splits, err := s.splitterFor(opts.Seed).Split(opts.TestFraction, matrices...)
	if err != nil {
		return directionResult{}, errors.Wrapf(err, "%s direction: train/test split failed", dir)
	}
	if len(splits) != len(matrices) {
		return directionResult{}, errors.InternalError(fmt.Sprintf("%s direction: splitter returned %d splits for %d matrices", dir, len(splits), len(matrices)))
	}
	xs, ys := splits[0], splits[1]

	_, outputs := y.Dims()
	out := directionResult{
		pValues: make(indep.PValueVector, outputs),
		reports: make([]indep.DimensionReport, outputs),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	for i := 0; i < outputs; i++ {
		i := i
		g.Go(func() error {
			trainY := mat.Col(nil, i, ys.Train)
			testY := mat.Col(nil, i, ys.Test)

			baseReq := ports.ResidualRequest{TrainY: trainY, TestY: testY, Baseline: true}
			if z != nil {
				baseReq = ports.ResidualRequest{TrainX: splits[2].Train, TestX: splits[2].Test, TrainY: trainY, TestY: testY}
			}
			baseLoss, err := s.oracle.Residuals(gctx, baseReq)
			if err != nil {
				return oracleError(err, dir, i, "baseline")
			}

			loss, err := s.oracle.Residuals(gctx, ports.ResidualRequest{
				TrainX: xs.Train, TestX: xs.Test, TrainY: trainY, TestY: testY,
			})
			if err != nil {
				return oracleError(err, dir, i, "candidate")
			}

			cmp, err := compare.Run(opts.Comparator, loss, baseLoss)
			if err != nil {
				return errors.Wrapf(err, "%s direction, dimension %d: comparison failed", dir, i)
			}
			if summary, err := compare.LossSummary(loss, baseLoss); err == nil {
				cmp.LossMeans, cmp.LossSE = summary.Means, summary.SE
			} else {
				log.Warn("%s direction, dimension %d: loss summary skipped: %v", dir, i, err)
			}

			out.pValues[i] = cmp.PValue
			out.reports[i] = indep.DimensionReport{Direction: dir, Index: i, ComparisonResult: cmp}
			log.Debug("%s direction, dimension %d: p=%.6g better=%t", dir, i, cmp.PValue, cmp.Better)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return directionResult{}, err
	}
	return out, nil
}

func oracleError(err error, dir indep.Direction, dim int, role string) error {
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return errors.Wrapf(errors.ExternalServiceError("loss oracle", err),
		"%s direction, dimension %d: %s losses", dir, dim, role)
}

// hstack joins a and b column-wise
func hstack(a, b *mat.Dense) *mat.Dense {
	r, ca := a.Dims()
	_, cb := b.Dims()
	out := mat.NewDense(r, ca+cb, nil)
	out.Slice(0, r, 0, ca).(*mat.Dense).Copy(a)
	out.Slice(0, r, ca, ca+cb).(*mat.Dense).Copy(b)
	return out
}

func normalizeOptions(opts indep.Options) (indep.Options, fdr.Harmonic, error) {
	if opts.Comparator == "" {
		opts.Comparator = indep.ComparatorSignedRank
	}
	switch opts.Comparator {
	case indep.ComparatorSignedRank, indep.ComparatorPairedT:
	default:
		return opts, 0, errors.Wrap(fmt.Errorf("%w: %q", core.ErrUnknownComparator, opts.Comparator), "invalid options")
	}
	if opts.Confidence <= 0 || opts.Confidence >= 1 {
		return opts, 0, errors.Wrap(core.ErrInvalidConfidence, "invalid options")
	}
	if opts.TestFraction == 0 {
		opts.TestFraction = 1.0 / 3.0
	}
	if opts.Workers < 1 {
		opts.Workers = runtime.NumCPU()
	}
	harmonic, err := fdr.ParseHarmonic(opts.Harmonic)
	if err != nil {
		return opts, 0, errors.WithCode(errors.CodeInvalidInput, err)
	}
	return opts, harmonic, nil
}

func validateRequest(req indep.Request) error {
	if req.Y == nil || req.X == nil {
		return errors.InvalidInput("Y and X are required")
	}
	rows, yc := req.Y.Dims()
	if _, xc := req.X.Dims(); rows == 0 || yc == 0 || xc == 0 {
		return errors.Wrap(core.ErrEmptyMatrix, "Y and X need at least one row and column")
	}
	if r, _ := req.X.Dims(); r != rows {
		return errors.ShapeMismatch(core.NewRowMismatchError("X", rows, r))
	}
	if req.Z != nil {
		if r, _ := req.Z.Dims(); r != rows {
			return errors.ShapeMismatch(core.NewRowMismatchError("Z", rows, r))
		}
	}
	return nil
}
