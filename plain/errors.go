// Package plain is the plaintext mirror of the encrypted vector and matrix types. It is
// used by the plaintext training path and to check encrypted results.
package plain

import "errors"

var (
	// ErrDimensionMismatch is returned when operand shapes are incompatible.
	ErrDimensionMismatch = errors.New("dimension mismatch")
	// ErrEmpty is returned by reductions over empty operands.
	ErrEmpty = errors.New("empty operand")
	// ErrIndexOutOfRange is returned by accessors given an invalid index.
	ErrIndexOutOfRange = errors.New("index out of range")
)
