package cipher

import (
	"fmt"
)

// Matrix is an immutable row-major matrix of encrypted reals.
type Matrix struct {
	ctx  *Context
	rows []*Vector
	cols int
}

// NewMatrix groups rows into a matrix. Rows must share ctx and have the same dimension.
func NewMatrix(ctx *Context, rows []*Vector) (*Matrix, error) {
	m := &Matrix{ctx: ctx, rows: append([]*Vector(nil), rows...)}
	for i, row := range rows {
		if row.ctx != ctx {
			return nil, fmt.Errorf("new matrix: row %d: %w", i, ErrContextMismatch)
		}
		if i == 0 {
			m.cols = row.Dim()
		} else if row.Dim() != m.cols {
			return nil, fmt.Errorf("new matrix: %w: row %d has %d columns, expected %d", ErrDimensionMismatch, i, row.Dim(), m.cols)
		}
	}
	return m, nil
}

func (m *Matrix) Context() *Context {
	return m.ctx
}

func (m *Matrix) Rows() int {
	return len(m.rows)
}

func (m *Matrix) Cols() int {
	return m.cols
}

func (m *Matrix) Get(i, j int) (*Float, error) {
	if i < 0 || i >= len(m.rows) || j < 0 || j >= m.cols {
		return nil, fmt.Errorf("%w: (%d, %d) not in %dx%d", ErrIndexOutOfRange, i, j, len(m.rows), m.cols)
	}
	return m.rows[i].elems[j], nil
}

// Row returns an independent copy of row i.
func (m *Matrix) Row(i int) (*Vector, error) {
	if i < 0 || i >= len(m.rows) {
		return nil, fmt.Errorf("%w: row %d not in [0, %d)", ErrIndexOutOfRange, i, len(m.rows))
	}
	return m.rows[i].copy(), nil
}

func (m *Matrix) check(other *Matrix) error {
	if m.ctx != other.ctx {
		return ErrContextMismatch
	}
	if len(m.rows) != len(other.rows) || m.cols != other.cols {
		return fmt.Errorf("%w: %dx%d and %dx%d", ErrDimensionMismatch, len(m.rows), m.cols, len(other.rows), other.cols)
	}
	return nil
}

func (m *Matrix) zip(other *Matrix, op func(a, b *Vector) (*Vector, error)) (*Matrix, error) {
	if err := m.check(other); err != nil {
		return nil, err
	}
	out := &Matrix{ctx: m.ctx, rows: make([]*Vector, len(m.rows)), cols: m.cols}
	for i := range m.rows {
		row, err := op(m.rows[i], other.rows[i])
		if err != nil {
			return nil, err
		}
		out.rows[i] = row
	}
	return out, nil
}

func (m *Matrix) Add(other *Matrix) (*Matrix, error) {
	res, err := m.zip(other, (*Vector).Add)
	if err != nil {
		return nil, fmt.Errorf("matrix add: %w", err)
	}
	return res, nil
}

func (m *Matrix) Sub(other *Matrix) (*Matrix, error) {
	res, err := m.zip(other, (*Vector).Sub)
	if err != nil {
		return nil, fmt.Errorf("matrix sub: %w", err)
	}
	return res, nil
}

// MulVector returns the matrix-vector product, one dot product per row.
func (m *Matrix) MulVector(v *Vector) (*Vector, error) {
	if m.ctx != v.ctx {
		return nil, fmt.Errorf("matrix mul vector: %w", ErrContextMismatch)
	}
	if m.cols != v.Dim() {
		return nil, fmt.Errorf("matrix mul vector: %w: %dx%d matrix times vector of dimension %d", ErrDimensionMismatch, len(m.rows), m.cols, v.Dim())
	}

	out := &Vector{ctx: m.ctx, elems: make([]*Float, len(m.rows))}
	for i, row := range m.rows {
		dot, err := row.Dot(v)
		if err != nil {
			return nil, fmt.Errorf("matrix mul vector: row %d: %w", i, err)
		}
		out.elems[i] = dot
	}
	return out, nil
}

// Diagonal returns the main diagonal of a square matrix.
func (m *Matrix) Diagonal() (*Vector, error) {
	if len(m.rows) != m.cols {
		return nil, fmt.Errorf("diagonal: %w: %dx%d matrix", ErrDimensionMismatch, len(m.rows), m.cols)
	}
	out := &Vector{ctx: m.ctx, elems: make([]*Float, m.cols)}
	for i, row := range m.rows {
		out.elems[i] = row.elems[i].copy()
	}
	return out, nil
}
