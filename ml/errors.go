package ml

import (
	"github.com/pkg/errors"
)

var (
	// ErrConfig reports an invalid network configuration.
	ErrConfig = errors.New("invalid network configuration")

	// ErrNotFound reports an activation or derivative name missing from the registry.
	ErrNotFound = errors.New("not found")

	// ErrDimensionMismatch reports a violated shape or stride precondition.
	// The engine panics with an error wrapping it; it is never returned from
	// the forward or backward pass.
	ErrDimensionMismatch = errors.New("dimension mismatch")
)

// mismatch panics with ErrDimensionMismatch and a formatted description.
func mismatch(format string, args ...any) {
	panic(errors.Wrapf(ErrDimensionMismatch, format, args...))
}
