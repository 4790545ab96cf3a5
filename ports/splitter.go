package ports

import "gonum.org/v1/gonum/mat"

// Split holds the training and test rows of one matrix
type Split struct {
	Train *mat.Dense
	Test  *mat.Dense
}

// Splitter partitions row-aligned matrices into train and test sets.
// Every returned split uses the same row assignment.
type Splitter interface {
	Split(testFraction float64, matrices ...*mat.Dense) ([]Split, error)
}
