// Package regression trains and applies a logistic regression model with a fixed number
// of Newton updates, either on plaintext values or on values encrypted under the keys of
// the trusted party.
//
// The Hessian is replaced by the diagonal approximation
//
//	H̃[j][j] = -1/4 · Σ_i x[i][j] · Σ_k x[i][k]
//
// whose entries are inverted with a Newton-Raphson reciprocal. Row 0 of the training data
// does not contribute to the Hessian or to the gradient.
package regression

import (
	"errors"

	"github.com/z3rotig4r/tfhe_logreg/plain"
)

var (
	// ErrLengthMismatch is returned when predictions and labels differ in length.
	ErrLengthMismatch = errors.New("regression: length mismatch")

	ErrDimensionMismatch = plain.ErrDimensionMismatch
	ErrEmpty             = plain.ErrEmpty
)

// NewtonStart is the magnitude of the first reciprocal estimate.
const NewtonStart = 0.0001

// DiagonalHessian returns the diagonal of H̃ for the rows of x. Rows must share one width.
func DiagonalHessian(x [][]float64) []float64 {
	if len(x) == 0 {
		return nil
	}

	d := len(x[0])
	h := make([]float64, d)
	for i := 1; i < len(x); i++ {
		sum := plain.NewVector(x[i]).Sum()
		for j := 0; j < d; j++ {
			h[j] += x[i][j] * sum
		}
	}

	for j := range h {
		h[j] = -h[j] / 4
	}
	return h
}

// NewtonReciprocal approximates 1/a with rounds of x ← x(2 - ax), starting from
// ±NewtonStart on the side of the sign of a. The iteration converges when
// 0 < a·NewtonStart < 2, that is for |a| < 20000. NewtonReciprocal(0) is 0.
func NewtonReciprocal(a float64, rounds int) float64 {
	if a == 0 {
		return 0
	}

	x := -NewtonStart
	if a > 0 {
		x = NewtonStart
	}
	for k := 0; k < rounds; k++ {
		x = x * (2 - a*x)
	}
	return x
}

// InvertDiagonal applies NewtonReciprocal to every entry of h.
func InvertDiagonal(h []float64, rounds int) []float64 {
	inv := make([]float64, len(h))
	for j, a := range h {
		inv[j] = NewtonReciprocal(a, rounds)
	}
	return inv
}
