package fdr

import (
	"fmt"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"pgregory.net/rapid"
)

func TestAdjust(t *testing.T) {
	pValues := []float64{0.01, 0.04, 0.03, 0.2}

	tests := []struct {
		name     string
		harmonic Harmonic
		expected []float64
	}{
		{"p-1", HarmonicPMinusOne, []float64{0.0733333333, 0.0977777778, 0.0977777778, 0.3666666667}},
		{"p", HarmonicP, []float64{0.0833333333, 0.1111111111, 0.1111111111, 0.4166666667}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Adjust(pValues, tt.harmonic)
			require.Len(t, got, len(tt.expected))
			for i := range got {
				assert.InDelta(t, tt.expected[i], got[i], 1e-9, "index %d", i)
			}
		})
	}

	assert.Equal(t, []float64{0.01, 0.04, 0.03, 0.2}, pValues, "input must not be modified")
}

func TestAdjustClipsToOne(t *testing.T) {
	assert.Equal(t, []float64{1, 1, 1}, Adjust([]float64{0.5, 0.6, 0.7}, HarmonicPMinusOne))
}

func TestAdjustSingleValue(t *testing.T) {
	// q is the empty sum for one test under p-1 weighting
	assert.Equal(t, []float64{0}, Adjust([]float64{0.8}, HarmonicPMinusOne))
	assert.Equal(t, []float64{0.8}, Adjust([]float64{0.8}, HarmonicP))
	assert.Empty(t, Adjust(nil, HarmonicP))
}

func TestControl(t *testing.T) {
	result := Control([]float64{0.01, 0.04, 0.03, 0.2}, 0.08, HarmonicPMinusOne)
	assert.Equal(t, []int{0}, result.Significant)
	assert.False(t, result.None())

	result = Control([]float64{0.01, 0.04, 0.03, 0.2}, 0.1, HarmonicPMinusOne)
	assert.Equal(t, []int{0, 1, 2}, result.Significant)

	none := Control([]float64{0.5, 0.6, 0.7}, 0.05, HarmonicPMinusOne)
	assert.True(t, none.None())
	assert.NotNil(t, none.Significant)
}

func TestControlMatrixKeepsShape(t *testing.T) {
	m := mat.NewDense(2, 2, []float64{0.01, 0.04, 0.03, 0.2})

	adjusted, significant := ControlMatrix(m, 0.08, HarmonicPMinusOne)
	r, c := adjusted.Dims()
	assert.Equal(t, 2, r)
	assert.Equal(t, 2, c)
	assert.InDelta(t, 0.0977777778, adjusted.At(1, 0), 1e-9)
	assert.Equal(t, []int{0}, significant)
}

func TestParseHarmonic(t *testing.T) {
	h, err := ParseHarmonic("p")
	require.NoError(t, err)
	assert.Equal(t, HarmonicP, h)

	h, err = ParseHarmonic("")
	require.NoError(t, err)
	assert.Equal(t, HarmonicPMinusOne, h)
	assert.Equal(t, "p-1", h.String())

	_, err = ParseHarmonic("bonferroni")
	assert.Error(t, err)
}

func TestAdjustProperties(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(2, 40).Draw(rt, "n")
		harmonic := Harmonic(rapid.IntRange(0, 1).Draw(rt, "harmonic"))
		pValues := make([]float64, n)
		for i := range pValues {
			pValues[i] = rapid.Float64Range(0, 1).Draw(rt, fmt.Sprintf("p%d", i))
		}

		adjusted := Adjust(pValues, harmonic)
		require.Len(rt, adjusted, n)

		order := make([]int, n)
		for i := range order {
			order[i] = i
		}
		sort.SliceStable(order, func(i, j int) bool { return pValues[order[i]] < pValues[order[j]] })
		for k := 1; k < n; k++ {
			assert.LessOrEqual(rt, adjusted[order[k-1]], adjusted[order[k]], "monotone in raw order")
		}
		for i := range pValues {
			assert.GreaterOrEqual(rt, adjusted[i], pValues[i])
			assert.LessOrEqual(rt, adjusted[i], 1.0)
		}

		assert.Equal(rt, adjusted, Adjust(pValues, harmonic), "deterministic")
	})
}

func TestConcatenatedFamily(t *testing.T) {
	forward := []float64{0.001, 0.3, 0.02}
	backward := []float64{0.5, 0.04}
	family := append(append([]float64{}, forward...), backward...)

	adjusted := Adjust(family, HarmonicPMinusOne)
	require.Len(t, adjusted, len(forward)+len(backward))

	for _, half := range [][2]int{{0, len(forward)}, {len(forward), len(family)}} {
		raw := family[half[0]:half[1]]
		adj := adjusted[half[0]:half[1]]
		for i := range raw {
			for j := range raw {
				if raw[i] < raw[j] {
					assert.LessOrEqual(t, adj[i], adj[j])
				}
			}
		}
	}
}
