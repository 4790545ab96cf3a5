package oracle

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Estimator fits a predictor for one response column
type Estimator interface {
	Name() string
	Fit(x *mat.Dense, y []float64) (Predictor, error)
}

// Predictor produces one prediction per row of x
type Predictor interface {
	Predict(x *mat.Dense) []float64
}

// MeanEstimator ignores the predictors and always predicts the training mean
type MeanEstimator struct{}

func (MeanEstimator) Name() string { return MethodMean }

func (MeanEstimator) Fit(_ *mat.Dense, y []float64) (Predictor, error) {
	if len(y) == 0 {
		return nil, fmt.Errorf("mean estimator: empty training response")
	}
	return constantPredictor(stat.Mean(y, nil)), nil
}

type constantPredictor float64

func (c constantPredictor) Predict(x *mat.Dense) []float64 {
	r, _ := x.Dims()
	out := make([]float64, r)
	for i := range out {
		out[i] = float64(c)
	}
	return out
}

// linearPredictor is intercept + x·coef
type linearPredictor struct {
	intercept float64
	coef      *mat.VecDense
}

func (p linearPredictor) Predict(x *mat.Dense) []float64 {
	r, _ := x.Dims()
	var fitted mat.VecDense
	fitted.MulVec(x, p.coef)
	out := make([]float64, r)
	for i := range out {
		out[i] = p.intercept + fitted.AtVec(i)
	}
	return out
}

// OLSEstimator fits ordinary least squares with an intercept
type OLSEstimator struct{}

func (OLSEstimator) Name() string { return MethodOLS }

func (OLSEstimator) Fit(x *mat.Dense, y []float64) (Predictor, error) {
	return fitCentered(x, y, 0)
}

// RidgeEstimator fits L2-penalised least squares; the intercept is not penalised
type RidgeEstimator struct {
	Lambda float64
}

func (RidgeEstimator) Name() string { return MethodRidge }

func (e RidgeEstimator) Fit(x *mat.Dense, y []float64) (Predictor, error) {
	return fitCentered(x, y, e.Lambda)
}

// fitCentered solves (Xc'Xc + λI) b = Xc'yc on column-centred data and recovers
// the intercept from the means. A singular system falls back to the SVD
// minimum-norm solution.
func fitCentered(x *mat.Dense, y []float64, lambda float64) (Predictor, error) {
	n, p := x.Dims()
	if n != len(y) {
		return nil, fmt.Errorf("least squares: %d rows but %d responses", n, len(y))
	}
	if n == 0 {
		return nil, fmt.Errorf("least squares: empty training set")
	}

	means := make([]float64, p)
	xc := mat.NewDense(n, p, nil)
	for j := 0; j < p; j++ {
		col := mat.Col(nil, j, x)
		means[j] = stat.Mean(col, nil)
		for i := range col {
			xc.Set(i, j, col[i]-means[j])
		}
	}
	yMean := stat.Mean(y, nil)
	yc := mat.NewVecDense(n, nil)
	for i, v := range y {
		yc.SetVec(i, v-yMean)
	}

	var xtx mat.SymDense
	xtx.SymOuterK(1, xc.T())
	for j := 0; j < p; j++ {
		xtx.SetSym(j, j, xtx.At(j, j)+lambda)
	}
	var xty mat.VecDense
	xty.MulVec(xc.T(), yc)

	coef := mat.NewVecDense(p, nil)
	var chol mat.Cholesky
	if ok := chol.Factorize(&xtx); ok {
		if err := chol.SolveVecTo(coef, &xty); err != nil {
			coef = nil
		}
	} else {
		coef = nil
	}

	if coef == nil {
		var err error
		coef, err = svdSolve(xc, yc, lambda)
		if err != nil {
			return nil, err
		}
	}

	intercept := yMean
	for j := 0; j < p; j++ {
		intercept -= means[j] * coef.AtVec(j)
	}
	return linearPredictor{intercept: intercept, coef: coef}, nil
}

// svdSolve returns the minimum-norm (ridge-shrunk when lambda > 0) solution
func svdSolve(x *mat.Dense, y *mat.VecDense, lambda float64) (*mat.VecDense, error) {
	_, p := x.Dims()
	var svd mat.SVD
	if ok := svd.Factorize(x, mat.SVDThin); !ok {
		return nil, fmt.Errorf("least squares: SVD factorization failed")
	}

	values := svd.Values(nil)
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	tol := 1e-12
	if len(values) > 0 {
		tol *= values[0]
	}

	coef := mat.NewVecDense(p, nil)
	for k, s := range values {
		if s <= tol {
			continue
		}
		// b += v_k * s/(s²+λ) * u_k'y
		weight := s / (s*s + lambda) * mat.Dot(u.ColView(k), y)
		coef.AddScaledVec(coef, weight, v.ColView(k))
	}
	return coef, nil
}
