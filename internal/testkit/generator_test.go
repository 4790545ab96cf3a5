package testkit

import (
	"bytes"
	"encoding/csv"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

func column(m *mat.Dense, j int) []float64 {
	return mat.Col(nil, j, m)
}

func TestGenerateDependent(t *testing.T) {
	cfg := DefaultGeneratorConfig()
	cfg.YDims = 2
	ds, err := NewGenerator(cfg).Generate()
	require.NoError(t, err)

	r, c := ds.Y.Dims()
	assert.Equal(t, cfg.Rows, r)
	assert.Equal(t, 2, c)
	assert.Nil(t, ds.Z)

	assert.Greater(t, stat.Correlation(column(ds.X, 0), column(ds.Y, 0), nil), 0.99)
	assert.Less(t, math.Abs(stat.Correlation(column(ds.X, 0), column(ds.Y, 1), nil)), 0.2)
}

func TestGenerateConfounded(t *testing.T) {
	cfg := GeneratorConfig{Scenario: ScenarioConfounded, Rows: 400, XDims: 1, YDims: 1, ZDims: 1, Strength: 1, Noise: 0.5, Seed: 3}
	ds, err := NewGenerator(cfg).Generate()
	require.NoError(t, err)
	require.NotNil(t, ds.Z)

	assert.Greater(t, stat.Correlation(column(ds.X, 0), column(ds.Y, 0), nil), 0.5)
}

func TestGenerateIsSeeded(t *testing.T) {
	cfg := DefaultGeneratorConfig()
	a, err := NewGenerator(cfg).Generate()
	require.NoError(t, err)
	b, err := NewGenerator(cfg).Generate()
	require.NoError(t, err)
	assert.True(t, mat.Equal(a.Y, b.Y))
}

func TestGenerateRejectsBadConfig(t *testing.T) {
	cases := map[string]GeneratorConfig{
		"no rows":            {Scenario: ScenarioIndependent, Rows: 1, XDims: 1, YDims: 1},
		"confounded no z":    {Scenario: ScenarioConfounded, Rows: 10, XDims: 1, YDims: 1},
		"too many dependent": {Scenario: ScenarioDependent, Rows: 10, XDims: 1, YDims: 1, Dependent: 2},
		"unknown scenario":   {Scenario: "bogus", Rows: 10, XDims: 1, YDims: 1},
	}
	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewGenerator(cfg).Generate()
			assert.Error(t, err)
		})
	}
}

func TestWriteCSV(t *testing.T) {
	cfg := GeneratorConfig{Scenario: ScenarioIndependent, Rows: 5, XDims: 2, YDims: 1, ZDims: 1, Seed: 1}
	ds, err := NewGenerator(cfg).Generate()
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, ds.WriteCSV(&buf))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 6)
	assert.Equal(t, []string{"x0", "x1", "y0", "z0"}, records[0])
}
