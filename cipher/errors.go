package cipher

import (
	"errors"

	"github.com/z3rotig4r/tfhe_logreg/plain"
)

var (
	// ErrContextMismatch is returned when operands were built under different contexts.
	ErrContextMismatch = errors.New("cipher: operands belong to different contexts")
	// ErrRangeViolation is returned when the image of a function escapes the requested range.
	ErrRangeViolation = errors.New("cipher: function image escapes the requested range")

	// Shape errors are shared with the plaintext mirror.
	ErrDimensionMismatch = plain.ErrDimensionMismatch
	ErrEmpty             = plain.ErrEmpty
	ErrIndexOutOfRange   = plain.ErrIndexOutOfRange
)
