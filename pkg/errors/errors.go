package errors

import "errors"

var (
	// Store errors
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	ErrInvalidShape      = errors.New("invalid input shape: expected 1-D or 2-D data")

	// Index errors
	ErrInsufficientData   = errors.New("not enough vectors to build index")
	ErrParamsKindMismatch = errors.New("search params kind does not match active index")

	// Persistence errors
	ErrCorruptIndex = errors.New("corrupt index file")
)
