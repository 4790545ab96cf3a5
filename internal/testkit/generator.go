// Package testkit generates seeded synthetic data sets with a known
// dependence structure for exercising the independence test end to end.
package testkit

import (
	"encoding/csv"
	"fmt"
	"io"
	"math/rand"
	"strconv"

	"gonum.org/v1/gonum/mat"
)

// Scenario names the ground truth a generated data set carries
type Scenario string

const (
	// ScenarioIndependent draws X, Y and Z independently
	ScenarioIndependent Scenario = "independent"
	// ScenarioDependent makes the first Y columns linear in X
	ScenarioDependent Scenario = "dependent"
	// ScenarioConfounded drives X and Y from Z only, so X ⊥ Y | Z
	ScenarioConfounded Scenario = "confounded"
)

// GeneratorConfig configures the synthetic data generator
type GeneratorConfig struct {
	Scenario  Scenario `json:"scenario"`
	Rows      int      `json:"rows"`
	XDims     int      `json:"x_dims"`
	YDims     int      `json:"y_dims"`
	ZDims     int      `json:"z_dims"`
	Dependent int      `json:"dependent"` // Y columns driven by X in ScenarioDependent
	Strength  float64  `json:"strength"`
	Noise     float64  `json:"noise"`
	Seed      int64    `json:"seed"`
}

// DefaultGeneratorConfig returns a single-column dependent data set
func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		Scenario:  ScenarioDependent,
		Rows:      500,
		XDims:     1,
		YDims:     1,
		Dependent: 1,
		Strength:  1,
		Noise:     0.1,
		Seed:      42,
	}
}

// Dataset is a generated sample; Z is nil when ZDims is zero
type Dataset struct {
	X *mat.Dense
	Y *mat.Dense
	Z *mat.Dense
}

// Generator produces data sets for one configuration
type Generator struct {
	config GeneratorConfig
	rng    *rand.Rand
}

// NewGenerator creates a new generator
func NewGenerator(config GeneratorConfig) *Generator {
	return &Generator{
		config: config,
		rng:    rand.New(rand.NewSource(config.Seed)),
	}
}

// Generate draws the next data set from the generator's stream
func (g *Generator) Generate() (*Dataset, error) {
	c := g.config
	if c.Rows < 2 || c.XDims < 1 || c.YDims < 1 || c.ZDims < 0 {
		return nil, fmt.Errorf("invalid generator shape: rows=%d x=%d y=%d z=%d", c.Rows, c.XDims, c.YDims, c.ZDims)
	}

	ds := &Dataset{}
	if c.ZDims > 0 {
		ds.Z = g.normal(c.Rows, c.ZDims)
	}

	switch c.Scenario {
	case ScenarioIndependent:
		ds.X = g.normal(c.Rows, c.XDims)
		ds.Y = g.normal(c.Rows, c.YDims)

	case ScenarioDependent:
		if c.Dependent < 0 || c.Dependent > c.YDims {
			return nil, fmt.Errorf("dependent columns %d outside [0, %d]", c.Dependent, c.YDims)
		}
		ds.X = g.normal(c.Rows, c.XDims)
		ds.Y = g.normal(c.Rows, c.YDims)
		for j := 0; j < c.Dependent; j++ {
			src := j % c.XDims
			for i := 0; i < c.Rows; i++ {
				ds.Y.Set(i, j, c.Strength*ds.X.At(i, src)+c.Noise*g.rng.NormFloat64())
			}
		}

	case ScenarioConfounded:
		if c.ZDims == 0 {
			return nil, fmt.Errorf("scenario %s needs at least one Z column", c.Scenario)
		}
		ds.X = g.driven(ds.Z, c.XDims)
		ds.Y = g.driven(ds.Z, c.YDims)

	default:
		return nil, fmt.Errorf("unknown scenario %q", c.Scenario)
	}

	return ds, nil
}

func (g *Generator) normal(rows, cols int) *mat.Dense {
	m := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			m.Set(i, j, g.rng.NormFloat64())
		}
	}
	return m
}

// driven returns columns that are a Z column plus noise
func (g *Generator) driven(z *mat.Dense, cols int) *mat.Dense {
	rows, zc := z.Dims()
	m := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			m.Set(i, j, g.config.Strength*z.At(i, j%zc)+g.config.Noise*g.rng.NormFloat64())
		}
	}
	return m
}

// WriteCSV writes the data set with headers x0.., y0.., z0..
func (ds *Dataset) WriteCSV(w io.Writer) error {
	blocks := []struct {
		prefix string
		m      *mat.Dense
	}{{"x", ds.X}, {"y", ds.Y}, {"z", ds.Z}}

	var header []string
	for _, b := range blocks {
		if b.m == nil {
			continue
		}
		_, c := b.m.Dims()
		for j := 0; j < c; j++ {
			header = append(header, b.prefix+strconv.Itoa(j))
		}
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	rows, _ := ds.X.Dims()
	for i := 0; i < rows; i++ {
		record := make([]string, 0, len(header))
		for _, b := range blocks {
			if b.m == nil {
				continue
			}
			_, c := b.m.Dims()
			for j := 0; j < c; j++ {
				record = append(record, strconv.FormatFloat(b.m.At(i, j), 'g', -1, 64))
			}
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
