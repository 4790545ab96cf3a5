// Package fdr implements the step-up false discovery rate adjustment used to
// merge per-dimension p-values, after R's p.adjust.
package fdr

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// Harmonic selects the harmonic-number weight q applied to every p-value
type Harmonic int

const (
	// HarmonicPMinusOne uses q = sum_{k=1}^{p-1} 1/k. With a single p-value q is
	// zero and the adjusted value is 0 whatever the input.
	HarmonicPMinusOne Harmonic = iota
	// HarmonicP uses q = sum_{k=1}^{p} 1/k (Benjamini-Yekutieli).
	HarmonicP
)

// ParseHarmonic accepts "p-1" or "p"
func ParseHarmonic(s string) (Harmonic, error) {
	switch s {
	case "", "p-1":
		return HarmonicPMinusOne, nil
	case "p":
		return HarmonicP, nil
	default:
		return 0, fmt.Errorf("unknown harmonic weighting %q", s)
	}
}

func (h Harmonic) String() string {
	if h == HarmonicP {
		return "p"
	}
	return "p-1"
}

// weight returns q for a family of p tests
func (h Harmonic) weight(p int) float64 {
	upper := p - 1
	if h == HarmonicP {
		upper = p
	}
	q := 0.0
	for k := 1; k <= upper; k++ {
		q += 1 / float64(k)
	}
	return q
}

// Result is an adjusted family of p-values and the indices at or below the threshold
type Result struct {
	Adjusted    []float64
	Significant []int // ascending original indices
}

// None reports whether no hypothesis survived the threshold
func (r Result) None() bool {
	return len(r.Significant) == 0
}

// Adjust returns the step-up adjusted p-values in the input order.
// The input slice is not modified.
func Adjust(pValues []float64, h Harmonic) []float64 {
	p := len(pValues)
	adjusted := make([]float64, p)
	if p == 0 {
		return adjusted
	}

	order := make([]int, p)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return pValues[order[i]] < pValues[order[j]]
	})

	q := h.weight(p)
	n := float64(p)
	running := math.Inf(1)
	// walk from the largest p-value down; rank runs p..1
	for k := p - 1; k >= 0; k-- {
		idx := order[k]
		rank := float64(k + 1)
		running = math.Min(running, q*pValues[idx]/rank*n)
		adjusted[idx] = math.Min(1, running)
	}
	return adjusted
}

// Control adjusts the p-values and collects the indices whose adjusted value is
// at or below confidence.
func Control(pValues []float64, confidence float64, h Harmonic) Result {
	adjusted := Adjust(pValues, h)
	return Result{
		Adjusted:    adjusted,
		Significant: atOrBelow(adjusted, confidence),
	}
}

// AdjustMatrix adjusts every entry of m as one family, flattened row-major,
// and returns a matrix of the same shape.
func AdjustMatrix(m mat.Matrix, h Harmonic) *mat.Dense {
	flat := flatten(m)
	r, c := m.Dims()
	return mat.NewDense(r, c, Adjust(flat, h))
}

// ControlMatrix is Control over a matrix; significant indices refer to the
// row-major flattening.
func ControlMatrix(m mat.Matrix, confidence float64, h Harmonic) (*mat.Dense, []int) {
	adjusted := AdjustMatrix(m, h)
	return adjusted, atOrBelow(adjusted.RawMatrix().Data, confidence)
}

func flatten(m mat.Matrix) []float64 {
	r, c := m.Dims()
	out := make([]float64, 0, r*c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out = append(out, m.At(i, j))
		}
	}
	return out
}

func atOrBelow(values []float64, threshold float64) []int {
	out := []int{}
	for i, v := range values {
		if v <= threshold {
			out = append(out, i)
		}
	}
	return out
}
