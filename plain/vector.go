package plain

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Vector is an immutable vector of float64.
type Vector struct {
	data []float64
}

// NewVector returns a vector holding a copy of values.
func NewVector(values []float64) Vector {
	return Vector{data: append([]float64(nil), values...)}
}

// Zeros returns the zero vector of dimension n.
func Zeros(n int) Vector {
	return Vector{data: make([]float64, n)}
}

// Fill returns the vector of dimension n with every entry set to v.
func Fill(n int, v float64) Vector {
	out := Zeros(n)
	for i := range out.data {
		out.data[i] = v
	}
	return out
}

func (v Vector) Dim() int {
	return len(v.data)
}

func (v Vector) Get(i int) (float64, error) {
	if i < 0 || i >= len(v.data) {
		return 0, fmt.Errorf("%w: %d not in [0, %d)", ErrIndexOutOfRange, i, len(v.data))
	}
	return v.data[i], nil
}

// Values returns a copy of the entries.
func (v Vector) Values() []float64 {
	return append([]float64(nil), v.data...)
}

func (v Vector) checkDim(other Vector) error {
	if len(v.data) != len(other.data) {
		return fmt.Errorf("%w: %d and %d", ErrDimensionMismatch, len(v.data), len(other.data))
	}
	return nil
}

func (v Vector) Add(other Vector) (Vector, error) {
	if err := v.checkDim(other); err != nil {
		return Vector{}, err
	}
	out := NewVector(v.data)
	floats.Add(out.data, other.data)
	return out, nil
}

func (v Vector) Sub(other Vector) (Vector, error) {
	if err := v.checkDim(other); err != nil {
		return Vector{}, err
	}
	out := NewVector(v.data)
	floats.Sub(out.data, other.data)
	return out, nil
}

func (v Vector) AddConstant(k float64) Vector {
	out := NewVector(v.data)
	floats.AddConst(k, out.data)
	return out
}

func (v Vector) SubConstant(k float64) Vector {
	return v.AddConstant(-k)
}

func (v Vector) MulConstant(k float64) Vector {
	out := NewVector(v.data)
	floats.Scale(k, out.data)
	return out
}

// MulElementwise returns the Hadamard product of v and other.
func (v Vector) MulElementwise(other Vector) (Vector, error) {
	if err := v.checkDim(other); err != nil {
		return Vector{}, err
	}
	out := NewVector(v.data)
	floats.Mul(out.data, other.data)
	return out, nil
}

func (v Vector) Dot(other Vector) (float64, error) {
	if err := v.checkDim(other); err != nil {
		return 0, err
	}
	if len(v.data) == 0 {
		return 0, ErrEmpty
	}
	return floats.Dot(v.data, other.data), nil
}

func (v Vector) Sum() float64 {
	return floats.Sum(v.data)
}

// MaxAbs returns the largest magnitude of the entries, 0 for the empty vector.
func (v Vector) MaxAbs() float64 {
	var m float64
	for _, x := range v.data {
		m = math.Max(m, math.Abs(x))
	}
	return m
}

// Apply returns the vector of f(v[i]).
func (v Vector) Apply(f func(float64) float64) Vector {
	out := Zeros(len(v.data))
	for i, x := range v.data {
		out.data[i] = f(x)
	}
	return out
}

// Clamp saturates every entry to [min, max].
func (v Vector) Clamp(min, max float64) Vector {
	return v.Apply(func(x float64) float64 {
		return math.Max(min, math.Min(max, x))
	})
}

// Pad returns v extended with zeros to dimension n. Vectors longer than n are rejected.
func (v Vector) Pad(n int) (Vector, error) {
	if len(v.data) > n {
		return Vector{}, fmt.Errorf("%w: cannot pad %d entries to %d", ErrDimensionMismatch, len(v.data), n)
	}
	out := Zeros(n)
	copy(out.data, v.data)
	return out, nil
}
