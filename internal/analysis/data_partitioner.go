package analysis

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"predindep/domain/core"
	"predindep/ports"
)

// DataPartitioner splits row-aligned matrices into train and test sets
type DataPartitioner struct {
	randomSeed int64
}

// PartitionStatistics provides metadata about the partitioning
type PartitionStatistics struct {
	TotalRows int
	TrainRows int
	TestRows  int
	TestRatio float64
	Seed      int64
}

// NewDataPartitionerWithSeed creates a partitioner with a specific seed for reproducibility
func NewDataPartitionerWithSeed(seed int64) *DataPartitioner {
	return &DataPartitioner{
		randomSeed: seed,
	}
}

// Seed returns the seed the partitioner shuffles with
func (dp *DataPartitioner) Seed() int64 {
	return dp.randomSeed
}

// Split shuffles row indices with the partitioner's seed and cuts off
// ceil(n*testFraction) rows for testing. Every matrix gets the same rows.
func (dp *DataPartitioner) Split(testFraction float64, matrices ...*mat.Dense) ([]ports.Split, error) {
	if len(matrices) == 0 {
		return nil, nil
	}
	if testFraction <= 0 || testFraction >= 1 {
		return nil, fmt.Errorf("test fraction %.3f outside (0, 1)", testFraction)
	}

	n, _ := matrices[0].Dims()
	for i, m := range matrices[1:] {
		if r, _ := m.Dims(); r != n {
			return nil, core.NewRowMismatchError(fmt.Sprintf("matrix %d", i+1), n, r)
		}
	}
	if n < 2 {
		return nil, core.NewInsufficientDataError("train/test split", 2, n)
	}

	trainRows, testRows := dp.randomPartition(n, testSize(n, testFraction))

	splits := make([]ports.Split, len(matrices))
	for i, m := range matrices {
		splits[i] = ports.Split{
			Train: selectRows(m, trainRows),
			Test:  selectRows(m, testRows),
		}
	}
	return splits, nil
}

// Statistics describes the partition Split would produce for n rows
func (dp *DataPartitioner) Statistics(n int, testFraction float64) PartitionStatistics {
	test := testSize(n, testFraction)
	stats := PartitionStatistics{
		TotalRows: n,
		TrainRows: n - test,
		TestRows:  test,
		Seed:      dp.randomSeed,
	}
	if n > 0 {
		stats.TestRatio = float64(test) / float64(n)
	}
	return stats
}

// testSize rounds up and leaves at least one row on each side
func testSize(n int, testFraction float64) int {
	size := int(math.Ceil(float64(n) * testFraction))
	if size < 1 {
		size = 1
	}
	if size > n-1 {
		size = n - 1
	}
	return size
}

// randomPartition performs simple random partitioning of row indices
func (dp *DataPartitioner) randomPartition(n, testSize int) ([]int, []int) {
	rows := make([]int, n)
	for i := range rows {
		rows[i] = i
	}

	// Shuffle with deterministic seed
	rng := rand.New(rand.NewSource(dp.randomSeed))
	rng.Shuffle(len(rows), func(i, j int) {
		rows[i], rows[j] = rows[j], rows[i]
	})

	return rows[testSize:], rows[:testSize]
}

func selectRows(m *mat.Dense, rows []int) *mat.Dense {
	_, c := m.Dims()
	out := mat.NewDense(len(rows), c, nil)
	for i, r := range rows {
		out.SetRow(i, m.RawRowView(r))
	}
	return out
}
