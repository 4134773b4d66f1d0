package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	ErrNotFound     = errors.New("resource not found")
	ErrUnitNotFound = fmt.Errorf("%w: experiment unit", ErrNotFound)
	ErrDataNotFound = fmt.Errorf("%w: data file", ErrNotFound)

	// Validation errors
	ErrUnparseableKey   = errors.New("unparseable experiment unit identifier")
	ErrMalformedMatrix  = errors.New("malformed partial ranking matrix")
	ErrMalformedResult  = errors.New("malformed result content")
	ErrUnknownBiomarker = errors.New("unknown biomarker")
	ErrUnknownStrategy  = errors.New("unknown aggregation strategy")
	ErrInsufficientData = errors.New("insufficient data for aggregation")
)

// NewValidationError reports a field-level validation failure
func NewValidationError(field string, reason string) error {
	return fmt.Errorf("validation failed for %s: %s", field, reason)
}

// NewMatrixError reports a structural problem in one row of a partial ranking matrix
func NewMatrixError(row int, reason string) error {
	return fmt.Errorf("%w: row %d: %s", ErrMalformedMatrix, row, reason)
}

// NewInsufficientDataError reports why a strategy could not be fitted
func NewInsufficientDataError(strategy string, reason string) error {
	return fmt.Errorf("%w: %s: %s", ErrInsufficientData, strategy, reason)
}

// IsNotFoundError reports whether err is any not-found error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsInsufficientData reports whether a fit failed for lack of usable rows
func IsInsufficientData(err error) bool {
	return errors.Is(err, ErrInsufficientData)
}
