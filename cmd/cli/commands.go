package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/mat"

	"predindep/adapters/excel"
	"predindep/adapters/oracle"
	"predindep/adapters/stats/fdr"
	"predindep/app"
	"predindep/domain/indep"
	"predindep/internal"
	"predindep/internal/config"
	"predindep/internal/errors"
)

func newRootCmd(cfg *config.Config, logger *internal.Logger) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "predindep",
		Short:         "Predictive (conditional) independence testing on tabular data",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		newTestCmd(cfg, logger),
		newFDRCmd(cfg),
	)
	return rootCmd
}

type testParams struct {
	dataFile    string
	sheet       string
	xCols       string
	yCols       string
	zCols       string
	method      string
	parametric  bool
	confidence  float64
	symmetric   bool
	seed        int64
	workers     int
	harmonic    string
	ridgeLambda float64
}

func newTestCmd(cfg *config.Config, logger *internal.Logger) *cobra.Command {
	p := testParams{
		method:      cfg.Test.Method,
		parametric:  cfg.Test.Parametric,
		confidence:  cfg.Test.Confidence,
		symmetric:   cfg.Test.Symmetric,
		seed:        cfg.Test.Seed,
		workers:     cfg.Test.Workers,
		harmonic:    cfg.Test.Harmonic,
		ridgeLambda: cfg.Test.RidgeLambda,
	}

	cmd := &cobra.Command{
		Use:   "test",
		Short: "Test whether the X columns predict the Y columns (optionally given Z)",
		Long: `Split the rows into train and test sets, fit a predictor for every Y column
from X (and Z), and compare its held-out losses against a baseline that only
sees Z (or nothing). Per-column p-values are merged with FDR control.

Example: predindep test --data data.csv --x age,income --y spend --z region --confidence 0.05`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTest(cmd.Context(), cmd.OutOrStdout(), p, cfg.Test.TestFraction, logger)
		},
	}

	cmd.Flags().StringVar(&p.dataFile, "data", "", "CSV or XLSX file with a header row")
	cmd.Flags().StringVar(&p.sheet, "sheet", "", "XLSX worksheet (default: first sheet)")
	cmd.Flags().StringVar(&p.xCols, "x", "", "Comma-separated predictor columns")
	cmd.Flags().StringVar(&p.yCols, "y", "", "Comma-separated response columns")
	cmd.Flags().StringVar(&p.zCols, "z", "", "Comma-separated conditioning columns (optional)")
	cmd.Flags().StringVar(&p.method, "method", p.method, "Estimator: mean|ols|ridge|multiplexing")
	cmd.Flags().BoolVar(&p.parametric, "parametric", p.parametric, "Use the paired t-test instead of the signed-rank test")
	cmd.Flags().Float64Var(&p.confidence, "confidence", p.confidence, "Significance threshold on adjusted p-values")
	cmd.Flags().BoolVar(&p.symmetric, "symmetric", p.symmetric, "Also test whether Y predicts X")
	cmd.Flags().Int64Var(&p.seed, "seed", p.seed, "Random seed for the train/test split")
	cmd.Flags().IntVar(&p.workers, "workers", p.workers, "Output columns evaluated concurrently")
	cmd.Flags().StringVar(&p.harmonic, "harmonic", p.harmonic, "FDR harmonic weighting: p-1|p")
	cmd.Flags().Float64Var(&p.ridgeLambda, "ridge-lambda", p.ridgeLambda, "Ridge penalty")
	_ = cmd.MarkFlagRequired("data")
	_ = cmd.MarkFlagRequired("x")
	_ = cmd.MarkFlagRequired("y")

	return cmd
}

func runTest(ctx context.Context, out io.Writer, p testParams, testFraction float64, logger *internal.Logger) error {
	table, err := excel.NewDataReader(p.dataFile, logger).WithSheet(p.sheet).ReadTable()
	if err != nil {
		return errors.Wrap(err, "failed to load data")
	}

	x, err := table.Matrix(excel.ParseColumns(p.xCols))
	if err != nil {
		return errors.Wrap(err, "failed to read X columns")
	}
	y, err := table.Matrix(excel.ParseColumns(p.yCols))
	if err != nil {
		return errors.Wrap(err, "failed to read Y columns")
	}
	var z *mat.Dense
	if cols := excel.ParseColumns(p.zCols); len(cols) > 0 {
		if z, err = table.Matrix(cols); err != nil {
			return errors.Wrap(err, "failed to read Z columns")
		}
	}

	lossOracle, err := oracle.New(oracle.Config{
		Method:        p.method,
		RidgeLambda:   p.ridgeLambda,
		Seed:          p.seed,
		ValidFraction: testFraction,
	})
	if err != nil {
		return errors.WithCode(errors.CodeInvalidInput, err)
	}

	comparator := indep.ComparatorSignedRank
	if p.parametric {
		comparator = indep.ComparatorPairedT
	}

	result, err := app.NewIndependenceService(lossOracle, logger).Test(ctx, indep.Request{
		Y: y,
		X: x,
		Z: z,
		Options: indep.Options{
			Method:       lossOracle.Method(),
			Comparator:   comparator,
			Confidence:   p.confidence,
			Symmetric:    p.symmetric,
			TestFraction: testFraction,
			Seed:         p.seed,
			Workers:      p.workers,
			Harmonic:     p.harmonic,
		},
	})
	if err != nil {
		return err
	}
	return writeJSON(out, result)
}

type fdrOutput struct {
	Harmonic    string    `json:"harmonic"`
	Adjusted    []float64 `json:"adjusted_p_values"`
	Significant []int     `json:"significant,omitempty"`
}

func newFDRCmd(cfg *config.Config) *cobra.Command {
	var confidence float64
	harmonic := cfg.Test.Harmonic

	cmd := &cobra.Command{
		Use:   "fdr [p-values...]",
		Short: "Apply the step-up FDR adjustment to a list of p-values",
		Long: `Adjust p-values as one family. With --confidence the indices whose adjusted
value is at or below the threshold are listed as well.

Example: predindep fdr 0.01 0.04 0.03 0.2 --confidence 0.05`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pValues := make([]float64, len(args))
			for i, a := range args {
				v, err := strconv.ParseFloat(a, 64)
				if err != nil || v < 0 || v > 1 {
					return errors.InvalidInput(fmt.Sprintf("argument %d: %q is not a p-value", i+1, a))
				}
				pValues[i] = v
			}

			h, err := fdr.ParseHarmonic(harmonic)
			if err != nil {
				return errors.WithCode(errors.CodeInvalidInput, err)
			}

			out := fdrOutput{Harmonic: h.String()}
			if cmd.Flags().Changed("confidence") {
				res := fdr.Control(pValues, confidence, h)
				out.Adjusted, out.Significant = res.Adjusted, res.Significant
			} else {
				out.Adjusted = fdr.Adjust(pValues, h)
			}
			return writeJSON(cmd.OutOrStdout(), out)
		},
	}

	cmd.Flags().Float64Var(&confidence, "confidence", cfg.Test.Confidence, "Report indices at or below this adjusted p-value")
	cmd.Flags().StringVar(&harmonic, "harmonic", harmonic, "Harmonic weighting: p-1|p")
	return cmd
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
