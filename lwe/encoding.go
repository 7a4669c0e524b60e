package lwe

import (
	"fmt"
	"math"
)

// widthTolerance is the relative tolerance under which two range widths are considered equal.
const widthTolerance = 1e-9

// Encoding declares the plaintext range of a ciphertext and its bit budget.
//
// A message m is normalized to y = (2m - Min - Max) / (Max - Min) in [-1, 1] and
// stored as round(y * Q/4 / 2^PaddingBits).
type Encoding struct {
	Min           float64 `json:"min"`
	Max           float64 `json:"max"`
	PrecisionBits int     `json:"precision_bits"`
	PaddingBits   int     `json:"padding_bits"`
}

// Validate checks that the range is finite and non-empty and that the budgets are sane.
func (e Encoding) Validate() error {
	switch {
	case math.IsNaN(e.Min) || math.IsNaN(e.Max) || math.IsInf(e.Min, 0) || math.IsInf(e.Max, 0):
		return fmt.Errorf("%w: non-finite range [%v, %v]", ErrInvalidEncoding, e.Min, e.Max)
	case e.Max <= e.Min:
		return fmt.Errorf("%w: empty range [%v, %v]", ErrInvalidEncoding, e.Min, e.Max)
	case e.PrecisionBits < 1:
		return fmt.Errorf("%w: precision_bits=%d", ErrInvalidEncoding, e.PrecisionBits)
	case e.PaddingBits < 0:
		return fmt.Errorf("%w: padding_bits=%d", ErrInvalidEncoding, e.PaddingBits)
	}
	return nil
}

func (e Encoding) Width() float64 {
	return e.Max - e.Min
}

func (e Encoding) Center() float64 {
	return (e.Max + e.Min) / 2
}

// Radius returns the largest magnitude of the range.
func (e Encoding) Radius() float64 {
	return math.Max(math.Abs(e.Min), math.Abs(e.Max))
}

// Step returns the value of one precision unit.
func (e Encoding) Step() float64 {
	return e.Width() / math.Exp2(float64(e.PrecisionBits))
}

// Symmetric reports whether the range is centered on zero.
func (e Encoding) Symmetric() bool {
	return math.Abs(e.Max+e.Min) <= widthTolerance*e.Width()
}

// Contains reports whether v lies in the declared range.
func (e Encoding) Contains(v float64) bool {
	slack := widthTolerance * e.Width()
	return v >= e.Min-slack && v <= e.Max+slack
}

// Compatible reports whether two ciphertexts under e and other can be added exactly.
func (e Encoding) Compatible(other Encoding) bool {
	return sameWidth(e.Width(), other.Width()) && e.PaddingBits == other.PaddingBits
}

// Shift returns the encoding of m + k for a ciphertext of m under e.
func (e Encoding) Shift(k float64) Encoding {
	e.Min += k
	e.Max += k
	return e
}

// Scale returns the encoding of k * m for a ciphertext of m under e, k > 0.
func (e Encoding) Scale(k float64) Encoding {
	e.Min *= k
	e.Max *= k
	return e
}

// WithPadding returns e with the padding budget replaced.
func (e Encoding) WithPadding(padding int) Encoding {
	e.PaddingBits = padding
	return e
}

func (e Encoding) String() string {
	return fmt.Sprintf("[%g, %g]/p%d/pad%d", e.Min, e.Max, e.PrecisionBits, e.PaddingBits)
}

func (e Encoding) normalize(v float64) float64 {
	return (2*v - e.Min - e.Max) / (e.Max - e.Min)
}

func (e Encoding) denormalize(y float64) float64 {
	return (y*(e.Max-e.Min) + e.Max + e.Min) / 2
}

func sameWidth(a, b float64) bool {
	return math.Abs(a-b) <= widthTolerance*math.Max(math.Abs(a), math.Abs(b))
}

func combine(a, b Encoding) error {
	if !a.Compatible(b) {
		return fmt.Errorf("%w: %s and %s", ErrEncodingMismatch, a, b)
	}
	if a.PaddingBits < 1 {
		return fmt.Errorf("%w: %s", ErrPaddingExhausted, a)
	}
	return nil
}

func sumEncoding(a, b Encoding) Encoding {
	return Encoding{
		Min:           a.Min + b.Min,
		Max:           a.Max + b.Max,
		PrecisionBits: min(a.PrecisionBits, b.PrecisionBits),
		PaddingBits:   a.PaddingBits - 1,
	}
}

func differenceEncoding(a, b Encoding) Encoding {
	return Encoding{
		Min:           a.Min - b.Max,
		Max:           a.Max - b.Min,
		PrecisionBits: min(a.PrecisionBits, b.PrecisionBits),
		PaddingBits:   a.PaddingBits - 1,
	}
}
