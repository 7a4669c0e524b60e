package cipher

import (
	"fmt"
)

// Vector is an immutable vector of encrypted reals sharing one context.
type Vector struct {
	ctx   *Context
	elems []*Float
}

// NewVector groups elems into a vector. All elements must belong to ctx.
func NewVector(ctx *Context, elems []*Float) (*Vector, error) {
	for i, e := range elems {
		if e == nil || e.ctx != ctx {
			return nil, fmt.Errorf("new vector: element %d: %w", i, ErrContextMismatch)
		}
	}
	return &Vector{ctx: ctx, elems: append([]*Float(nil), elems...)}, nil
}

func (v *Vector) Context() *Context {
	return v.ctx
}

func (v *Vector) Dim() int {
	return len(v.elems)
}

func (v *Vector) Get(i int) (*Float, error) {
	if i < 0 || i >= len(v.elems) {
		return nil, fmt.Errorf("%w: %d not in [0, %d)", ErrIndexOutOfRange, i, len(v.elems))
	}
	return v.elems[i], nil
}

// Elements returns the elements of the vector. Floats are immutable and can be shared.
func (v *Vector) Elements() []*Float {
	return append([]*Float(nil), v.elems...)
}

func (v *Vector) copy() *Vector {
	out := &Vector{ctx: v.ctx, elems: make([]*Float, len(v.elems))}
	for i, e := range v.elems {
		out.elems[i] = e.copy()
	}
	return out
}

func (v *Vector) check(other *Vector) error {
	if other == nil || v.ctx != other.ctx {
		return ErrContextMismatch
	}
	if len(v.elems) != len(other.elems) {
		return fmt.Errorf("%w: %d and %d", ErrDimensionMismatch, len(v.elems), len(other.elems))
	}
	return nil
}

// zip applies op to every pair of elements in parallel.
func (v *Vector) zip(other *Vector, op func(a, b *Float) (*Float, error)) (*Vector, error) {
	if err := v.check(other); err != nil {
		return nil, err
	}
	return v.mapErr(func(i int, a *Float) (*Float, error) {
		return op(a, other.elems[i])
	})
}

func (v *Vector) mapErr(op func(i int, a *Float) (*Float, error)) (*Vector, error) {
	out := &Vector{ctx: v.ctx, elems: make([]*Float, len(v.elems))}
	if err := v.ctx.Parallel(len(v.elems), func(i int) (err error) {
		out.elems[i], err = op(i, v.elems[i])
		return
	}); err != nil {
		return nil, err
	}
	return out, nil
}

func (v *Vector) Add(other *Vector) (*Vector, error) {
	res, err := v.zip(other, (*Float).Add)
	if err != nil {
		return nil, fmt.Errorf("vector add: %w", err)
	}
	return res, nil
}

func (v *Vector) Sub(other *Vector) (*Vector, error) {
	res, err := v.zip(other, (*Float).Sub)
	if err != nil {
		return nil, fmt.Errorf("vector sub: %w", err)
	}
	return res, nil
}

// MulElementwise returns the Hadamard product, two bootstraps per element.
func (v *Vector) MulElementwise(other *Vector) (*Vector, error) {
	res, err := v.zip(other, (*Float).Mul)
	if err != nil {
		return nil, fmt.Errorf("vector mul: %w", err)
	}
	return res, nil
}

func (v *Vector) broadcast(s *Float, op func(a, b *Float) (*Float, error)) (*Vector, error) {
	if s == nil || s.ctx != v.ctx {
		return nil, ErrContextMismatch
	}
	return v.mapErr(func(_ int, a *Float) (*Float, error) {
		return op(a, s)
	})
}

// AddScalar adds s to every element.
func (v *Vector) AddScalar(s *Float) (*Vector, error) {
	res, err := v.broadcast(s, (*Float).Add)
	if err != nil {
		return nil, fmt.Errorf("vector add scalar: %w", err)
	}
	return res, nil
}

// SubScalar subtracts s from every element.
func (v *Vector) SubScalar(s *Float) (*Vector, error) {
	res, err := v.broadcast(s, (*Float).Sub)
	if err != nil {
		return nil, fmt.Errorf("vector sub scalar: %w", err)
	}
	return res, nil
}

// MulScalar multiplies every element by s.
func (v *Vector) MulScalar(s *Float) (*Vector, error) {
	res, err := v.broadcast(s, (*Float).Mul)
	if err != nil {
		return nil, fmt.Errorf("vector mul scalar: %w", err)
	}
	return res, nil
}

func (v *Vector) AddConstant(k float64) *Vector {
	out := &Vector{ctx: v.ctx, elems: make([]*Float, len(v.elems))}
	for i, e := range v.elems {
		out.elems[i] = e.AddConstant(k)
	}
	return out
}

func (v *Vector) SubConstant(k float64) *Vector {
	return v.AddConstant(-k)
}

func (v *Vector) MulConstant(k float64) (*Vector, error) {
	res, err := v.mapErr(func(_ int, a *Float) (*Float, error) {
		return a.MulConstant(k)
	})
	if err != nil {
		return nil, fmt.Errorf("vector mul constant: %w", err)
	}
	return res, nil
}

// MulConstants multiplies every element by its own plaintext factor.
func (v *Vector) MulConstants(k []float64) (*Vector, error) {
	if len(k) != len(v.elems) {
		return nil, fmt.Errorf("vector mul constants: %w: %d and %d", ErrDimensionMismatch, len(v.elems), len(k))
	}
	res, err := v.mapErr(func(i int, a *Float) (*Float, error) {
		return a.MulConstant(k[i])
	})
	if err != nil {
		return nil, fmt.Errorf("vector mul constants: %w", err)
	}
	return res, nil
}

// Dot returns the inner product of v and other.
func (v *Vector) Dot(other *Vector) (*Float, error) {
	if err := v.check(other); err != nil {
		return nil, fmt.Errorf("dot: %w", err)
	}
	if len(v.elems) == 0 {
		return nil, fmt.Errorf("dot: %w", ErrEmpty)
	}

	prod, err := v.MulElementwise(other)
	if err != nil {
		return nil, fmt.Errorf("dot: %w", err)
	}

	res, err := v.ctx.sum(prod.elems)
	if err != nil {
		return nil, fmt.Errorf("dot: %w", err)
	}
	return res, nil
}

// Sum returns the sum of the elements.
func (v *Vector) Sum() (*Float, error) {
	res, err := v.ctx.sum(v.elems)
	if err != nil {
		return nil, fmt.Errorf("sum: %w", err)
	}
	return res, nil
}

// Apply evaluates g on every element, one bootstrap each.
func (v *Vector) Apply(g func(float64) float64) (*Vector, error) {
	res, err := v.mapErr(func(_ int, a *Float) (*Float, error) {
		return a.Apply(g)
	})
	if err != nil {
		return nil, fmt.Errorf("vector apply: %w", err)
	}
	return res, nil
}

// Clamp re-encodes every element into [min, max].
func (v *Vector) Clamp(min, max float64) (*Vector, error) {
	res, err := v.mapErr(func(_ int, a *Float) (*Float, error) {
		return a.Clamp(min, max)
	})
	if err != nil {
		return nil, fmt.Errorf("vector clamp: %w", err)
	}
	return res, nil
}

// SumVectors returns the elementwise sum of vs. All vectors must share one context and
// dimension.
func SumVectors(vs []*Vector) (*Vector, error) {
	if len(vs) == 0 {
		return nil, fmt.Errorf("sum vectors: %w", ErrEmpty)
	}

	first := vs[0]
	for i, v := range vs[1:] {
		if err := first.check(v); err != nil {
			return nil, fmt.Errorf("sum vectors: vector %d: %w", i+1, err)
		}
	}

	res, err := first.mapErr(func(j int, _ *Float) (*Float, error) {
		terms := make([]*Float, len(vs))
		for i, v := range vs {
			terms[i] = v.elems[j]
		}
		return first.ctx.sum(terms)
	})
	if err != nil {
		return nil, fmt.Errorf("sum vectors: %w", err)
	}
	return res, nil
}
