package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Shape errors
	ErrLengthMismatch = errors.New("unequal sample counts")
	ErrRowMismatch    = fmt.Errorf("%w: matrix rows", ErrLengthMismatch)
	ErrEmptyMatrix    = errors.New("matrix has no columns")

	// Validation errors
	ErrInsufficientData  = errors.New("insufficient data for analysis")
	ErrNegativeLoss      = errors.New("mean loss is negative")
	ErrInvalidConfidence = errors.New("confidence must lie in (0, 1)")
	ErrUnknownMethod     = errors.New("unknown estimation method")
	ErrUnknownComparator = errors.New("unknown comparator")
	ErrUnknownColumn     = errors.New("unknown column")
	ErrNonNumeric        = errors.New("non-numeric value")
)

// Error constructors with context
func NewLengthMismatchError(what string, a, b int) error {
	return fmt.Errorf("%w: %s has %d and %d", ErrLengthMismatch, what, a, b)
}

func NewRowMismatchError(name string, want, got int) error {
	return fmt.Errorf("%w: %s has %d rows, want %d", ErrRowMismatch, name, got, want)
}

func NewInsufficientDataError(what string, need, got int) error {
	return fmt.Errorf("%w: %s needs at least %d samples, got %d", ErrInsufficientData, what, need, got)
}

// Error checking helpers
func IsShapeError(err error) bool {
	return errors.Is(err, ErrLengthMismatch) || errors.Is(err, ErrEmptyMatrix)
}

func IsValidationError(err error) bool {
	return errors.Is(err, ErrInsufficientData) ||
		errors.Is(err, ErrNegativeLoss) ||
		errors.Is(err, ErrInvalidConfidence) ||
		errors.Is(err, ErrUnknownMethod) ||
		errors.Is(err, ErrUnknownComparator) ||
		errors.Is(err, ErrUnknownColumn) ||
		errors.Is(err, ErrNonNumeric)
}
