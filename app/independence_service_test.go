package app

import (
	"context"
	stderrors "errors"
	"math"
	"sync"
	"testing"

	"predindep/domain/indep"
	"predindep/internal/errors"
	"predindep/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

const rowsPerTest = 30

// keyed builds a matrix whose column j holds base+1000*j+row, so a fake oracle
// can tell from the response values which column it is scoring
func keyed(cols int, base float64) *mat.Dense {
	m := mat.NewDense(rowsPerTest, cols, nil)
	for i := 0; i < rowsPerTest; i++ {
		for j := 0; j < cols; j++ {
			m.Set(i, j, base+1000*float64(j)+float64(i))
		}
	}
	return m
}

// scriptedOracle returns clearly smaller candidate losses for the response
// columns listed in predictable, keyed by floor(y/1000)
type scriptedOracle struct {
	predictable map[int]bool
	mu          sync.Mutex
	requests    []ports.ResidualRequest
}

func (o *scriptedOracle) Residuals(_ context.Context, req ports.ResidualRequest) ([]float64, error) {
	o.mu.Lock()
	o.requests = append(o.requests, req)
	o.mu.Unlock()

	key := int(math.Floor(req.TestY[0] / 1000))
	base := make([]float64, len(req.TestY))
	for i := range base {
		base[i] = 1 + 0.01*float64(i)
	}
	if req.Baseline || req.TrainX == nil || isConditioningOnly(req) {
		return base, nil
	}
	out := make([]float64, len(base))
	for i := range out {
		if o.predictable[key] {
			out[i] = base[i] - 0.9
		} else {
			out[i] = base[i] + 0.5
		}
	}
	return out, nil
}

// the conditioning set in these tests is a single column of -1s
func isConditioningOnly(req ports.ResidualRequest) bool {
	_, c := req.TrainX.Dims()
	return c == 1 && req.TrainX.At(0, 0) == -1
}

func newTestService(oracle ports.LossOracle) *IndependenceService {
	return NewIndependenceService(oracle, nil)
}

func options(symmetric bool) indep.Options {
	opts := indep.DefaultOptions()
	opts.Symmetric = symmetric
	opts.Workers = 4
	return opts
}

func TestSingleDimensionDependent(t *testing.T) {
	svc := newTestService(&scriptedOracle{predictable: map[int]bool{0: true}})

	result, err := svc.Test(context.Background(), indep.Request{Y: keyed(1, 0), X: keyed(1, 50000), Options: options(false)})
	require.NoError(t, err)

	require.Len(t, result.Forward, 1)
	assert.Less(t, result.Forward[0], 0.01)
	assert.Equal(t, []float64(result.Forward), result.Adjusted, "single dimension is not adjusted")
	assert.Equal(t, []int{0}, result.Significant)
	assert.Equal(t, indep.FindingSome, result.Finding)
	assert.False(t, result.Independent)
	assert.Nil(t, result.Backward)
	assert.False(t, result.RunID.String() == "")
}

func TestSingleDimensionIndependent(t *testing.T) {
	svc := newTestService(&scriptedOracle{})

	result, err := svc.Test(context.Background(), indep.Request{Y: keyed(1, 0), X: keyed(1, 50000), Options: options(false)})
	require.NoError(t, err)

	assert.Equal(t, indep.PValueVector{1}, result.Forward)
	assert.Empty(t, result.Significant)
	assert.NotNil(t, result.Significant)
	assert.Equal(t, indep.FindingNone, result.Finding)
	assert.True(t, result.Independent)
}

func TestMultiDimensionUsesFDR(t *testing.T) {
	tests := []struct {
		name        string
		predictable map[int]bool
		significant []int
	}{
		{"first column only", map[int]bool{0: true}, []int{0}},
		{"middle column", map[int]bool{1: true}, []int{1}},
		{"two columns", map[int]bool{0: true, 2: true}, []int{0, 2}},
		{"none", map[int]bool{}, []int{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(&scriptedOracle{predictable: tt.predictable})

			result, err := svc.Test(context.Background(), indep.Request{Y: keyed(3, 0), X: keyed(2, 50000), Options: options(false)})
			require.NoError(t, err)

			require.Len(t, result.Adjusted, 3)
			for i := range result.Adjusted {
				assert.GreaterOrEqual(t, result.Adjusted[i], result.Forward[i])
			}
			assert.Equal(t, tt.significant, result.Significant)
			assert.Equal(t, len(tt.significant) == 0, result.Independent)
			assert.Len(t, result.Dimensions, 3)
		})
	}
}

func TestSymmetricVerdictUsesBothDirections(t *testing.T) {
	// Y has one column (key 0); X has two (keys 50, 51). Only X's second
	// column is predictable from Y.
	svc := newTestService(&scriptedOracle{predictable: map[int]bool{51: true}})

	result, err := svc.Test(context.Background(), indep.Request{Y: keyed(1, 0), X: keyed(2, 50000), Options: options(true)})
	require.NoError(t, err)

	assert.Len(t, result.Forward, 1)
	require.Len(t, result.Backward, 2)
	assert.Equal(t, 1.0, result.Backward[0])
	assert.Less(t, result.Backward[1], 0.01)

	// the reported set only looks at the forward direction
	assert.Empty(t, result.Significant)
	assert.Equal(t, indep.FindingNone, result.Finding)
	assert.False(t, result.Independent)
	assert.Len(t, result.Dimensions, 3)
	assert.Equal(t, indep.DirectionBackward, result.Dimensions[2].Direction)
}

func TestSymmetricIndependent(t *testing.T) {
	svc := newTestService(&scriptedOracle{})

	result, err := svc.Test(context.Background(), indep.Request{Y: keyed(2, 0), X: keyed(2, 50000), Options: options(true)})
	require.NoError(t, err)

	assert.Equal(t, []float64{1, 1}, result.Adjusted)
	assert.True(t, result.Independent)
}

func TestConditioningSetFeedsBaseline(t *testing.T) {
	oracle := &scriptedOracle{predictable: map[int]bool{0: true}}
	svc := newTestService(oracle)

	z := mat.NewDense(rowsPerTest, 1, nil)
	for i := 0; i < rowsPerTest; i++ {
		z.Set(i, 0, -1)
	}

	result, err := svc.Test(context.Background(), indep.Request{Y: keyed(1, 0), X: keyed(2, 50000), Z: z, Options: options(false)})
	require.NoError(t, err)
	assert.False(t, result.Independent)

	require.Len(t, oracle.requests, 2)
	for _, req := range oracle.requests {
		assert.False(t, req.Baseline)
		require.NotNil(t, req.TrainX)
		_, cols := req.TrainX.Dims()
		assert.Contains(t, []int{1, 3}, cols, "baseline sees Z, candidate sees X|Z")
	}
}

type mockOracle struct {
	mock.Mock
}

func (m *mockOracle) Residuals(ctx context.Context, req ports.ResidualRequest) ([]float64, error) {
	args := m.Called(ctx, req)
	losses, _ := args.Get(0).([]float64)
	return losses, args.Error(1)
}

func TestOracleFailurePropagates(t *testing.T) {
	boom := stderrors.New("model fit diverged")
	oracle := new(mockOracle)
	oracle.On("Residuals", mock.Anything, mock.MatchedBy(func(r ports.ResidualRequest) bool { return r.Baseline })).
		Return(nil, boom)

	_, err := newTestService(oracle).Test(context.Background(), indep.Request{Y: keyed(1, 0), X: keyed(1, 50000), Options: options(false)})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, errors.CodeExternalService, errors.GetCode(err))
	oracle.AssertExpectations(t)
}

func TestOracleLengthMismatchIsShapeError(t *testing.T) {
	oracle := new(mockOracle)
	oracle.On("Residuals", mock.Anything, mock.MatchedBy(func(r ports.ResidualRequest) bool { return r.Baseline })).
		Return([]float64{1, 2, 3}, nil)
	oracle.On("Residuals", mock.Anything, mock.MatchedBy(func(r ports.ResidualRequest) bool { return !r.Baseline })).
		Return([]float64{1, 2}, nil)

	_, err := newTestService(oracle).Test(context.Background(), indep.Request{Y: keyed(1, 0), X: keyed(1, 50000), Options: options(false)})
	require.Error(t, err)
	assert.Equal(t, errors.CodeShapeMismatch, errors.GetCode(err))
}

func TestRequestValidation(t *testing.T) {
	svc := newTestService(&scriptedOracle{})
	ctx := context.Background()

	badConfidence := options(false)
	badConfidence.Confidence = 0

	badComparator := options(false)
	badComparator.Comparator = "bootstrap"

	badHarmonic := options(false)
	badHarmonic.Harmonic = "n+1"

	tests := []struct {
		name string
		req  indep.Request
		code string
	}{
		{"missing X", indep.Request{Y: keyed(1, 0), Options: options(false)}, errors.CodeInvalidInput},
		{"empty Y", indep.Request{Y: &mat.Dense{}, X: keyed(1, 0), Options: options(false)}, errors.CodeShapeMismatch},
		{"row mismatch", indep.Request{Y: keyed(1, 0), X: mat.NewDense(5, 1, nil), Options: options(false)}, errors.CodeShapeMismatch},
		{"z row mismatch", indep.Request{Y: keyed(1, 0), X: keyed(1, 0), Z: mat.NewDense(5, 1, nil), Options: options(false)}, errors.CodeShapeMismatch},
		{"confidence", indep.Request{Y: keyed(1, 0), X: keyed(1, 0), Options: badConfidence}, errors.CodeInvalidInput},
		{"comparator", indep.Request{Y: keyed(1, 0), X: keyed(1, 0), Options: badComparator}, errors.CodeInvalidInput},
		{"harmonic", indep.Request{Y: keyed(1, 0), X: keyed(1, 0), Options: badHarmonic}, errors.CodeInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Test(ctx, tt.req)
			require.Error(t, err)
			assert.Equal(t, tt.code, errors.GetCode(err))
		})
	}
}

func TestHstack(t *testing.T) {
	a := mat.NewDense(2, 1, []float64{1, 2})
	b := mat.NewDense(2, 2, []float64{3, 4, 5, 6})
	assert.True(t, mat.Equal(mat.NewDense(2, 3, []float64{1, 3, 4, 2, 5, 6}), hstack(a, b)))
}
