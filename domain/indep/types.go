// Package indep holds the value types exchanged by the independence test.
package indep

import (
	"gonum.org/v1/gonum/mat"

	"predindep/domain/core"
)

// Comparator selects how two loss vectors are compared
type Comparator string

const (
	ComparatorSignedRank Comparator = "signed_rank"
	ComparatorPairedT    Comparator = "paired_t"
)

// ComparisonResult is the outcome of one paired loss comparison.
// LossMeans are root-mean losses; LossSE are the matching delta-method standard errors.
type ComparisonResult struct {
	PValue    float64    `json:"p_value"`
	Better    bool       `json:"better"`
	LossMeans [2]float64 `json:"loss_means"`
	LossSE    [2]float64 `json:"loss_se"`
}

// PValueVector holds one p-value per output column, in column order
type PValueVector []float64

// Clone returns an independent copy
func (v PValueVector) Clone() PValueVector {
	out := make(PValueVector, len(v))
	copy(out, v)
	return out
}

// Direction names which variable plays the response
type Direction string

const (
	DirectionForward  Direction = "forward"  // X predicts Y
	DirectionBackward Direction = "backward" // Y predicts X
)

// Finding says whether any output dimension showed dependence
type Finding int

const (
	FindingNone Finding = iota
	FindingSome
)

func (f Finding) String() string {
	if f == FindingSome {
		return "dependent"
	}
	return "none"
}

// MarshalText renders the finding by name
func (f Finding) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// Options configures an independence test
type Options struct {
	Method       string     // loss oracle method, e.g. "multiplexing", "ols"
	Comparator   Comparator // signed rank unless the caller opts into the t-test
	Confidence   float64    // significance threshold on adjusted p-values
	Symmetric    bool
	TestFraction float64
	Seed         int64
	Workers      int
	Harmonic     string // "p-1" (default) or "p"
}

// DefaultOptions mirrors the documented defaults
func DefaultOptions() Options {
	return Options{
		Method:       "multiplexing",
		Comparator:   ComparatorSignedRank,
		Confidence:   0.05,
		Symmetric:    true,
		TestFraction: 1.0 / 3.0,
		Seed:         1,
		Workers:      1,
		Harmonic:     "p-1",
	}
}

// Request carries the response Y, predictors X and optional conditioning set Z.
// All matrices are samples × variables and must share the row count.
type Request struct {
	Y       *mat.Dense
	X       *mat.Dense
	Z       *mat.Dense
	Options Options
}

// DimensionReport describes one output column in one direction
type DimensionReport struct {
	Direction Direction `json:"direction"`
	Index     int       `json:"index"`
	ComparisonResult
}

// Result is the verdict of an independence test.
//
// Adjusted and Significant describe the forward direction. Independent is decided
// over both directions when the test is symmetric, so it can be false while
// Significant is empty.
type Result struct {
	RunID       core.RunID        `json:"run_id"`
	Forward     PValueVector      `json:"forward_p_values"`
	Backward    PValueVector      `json:"backward_p_values,omitempty"`
	Adjusted    []float64         `json:"adjusted_p_values"`
	Finding     Finding           `json:"finding"`
	Significant []int             `json:"significant"`
	Independent bool              `json:"independent"`
	Dimensions  []DimensionReport `json:"dimensions"`
	Comparator  Comparator        `json:"comparator"`
	Symmetric   bool              `json:"symmetric"`
	Confidence  float64           `json:"confidence"`
}
