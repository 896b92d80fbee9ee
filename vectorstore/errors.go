package vectorstore

import "errors"

var (
	// ErrDimensionMismatch is returned by EnsureIndex when an existing
	// index has a different dimension than the deployment configuration.
	// Operators must delete and recreate the index.
	ErrDimensionMismatch = errors.New("vector index dimension mismatch")

	// ErrInvalidVector is returned when a vector has no id or the wrong
	// number of values.
	ErrInvalidVector = errors.New("invalid vector")
)
