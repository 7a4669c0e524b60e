package plain

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Matrix is an immutable row-major matrix of float64. Matrices with no rows or no
// columns are valid and carry no gonum storage.
type Matrix struct {
	rows, cols int
	dense      *mat.Dense
}

// NewMatrix copies rows into a matrix. Ragged input is rejected.
func NewMatrix(rows [][]float64) (Matrix, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		for i, row := range rows {
			if len(row) != 0 {
				return Matrix{}, fmt.Errorf("%w: row %d has %d columns, expected 0", ErrDimensionMismatch, i, len(row))
			}
		}
		return Matrix{rows: len(rows)}, nil
	}

	cols := len(rows[0])
	data := make([]float64, 0, len(rows)*cols)
	for i, row := range rows {
		if len(row) != cols {
			return Matrix{}, fmt.Errorf("%w: row %d has %d columns, expected %d", ErrDimensionMismatch, i, len(row), cols)
		}
		data = append(data, row...)
	}

	return Matrix{rows: len(rows), cols: cols, dense: mat.NewDense(len(rows), cols, data)}, nil
}

func (m Matrix) Rows() int {
	return m.rows
}

func (m Matrix) Cols() int {
	return m.cols
}

func (m Matrix) Get(i, j int) (float64, error) {
	if i < 0 || i >= m.rows || j < 0 || j >= m.cols {
		return 0, fmt.Errorf("%w: (%d, %d) not in %dx%d", ErrIndexOutOfRange, i, j, m.rows, m.cols)
	}
	return m.dense.At(i, j), nil
}

// Row returns an independent copy of row i.
func (m Matrix) Row(i int) (Vector, error) {
	if i < 0 || i >= m.rows {
		return Vector{}, fmt.Errorf("%w: row %d not in [0, %d)", ErrIndexOutOfRange, i, m.rows)
	}
	if m.dense == nil {
		return Zeros(0), nil
	}
	return NewVector(m.dense.RawRowView(i)), nil
}

// Values returns a copy of the entries row by row.
func (m Matrix) Values() [][]float64 {
	out := make([][]float64, m.rows)
	for i := range out {
		if m.dense == nil {
			out[i] = []float64{}
			continue
		}
		out[i] = append([]float64(nil), m.dense.RawRowView(i)...)
	}
	return out
}

func (m Matrix) checkShape(other Matrix) error {
	if m.rows != other.rows || m.cols != other.cols {
		return fmt.Errorf("%w: %dx%d and %dx%d", ErrDimensionMismatch, m.rows, m.cols, other.rows, other.cols)
	}
	return nil
}

func (m Matrix) Add(other Matrix) (Matrix, error) {
	if err := m.checkShape(other); err != nil {
		return Matrix{}, err
	}
	if m.dense == nil {
		return m, nil
	}
	out := mat.NewDense(m.rows, m.cols, nil)
	out.Add(m.dense, other.dense)
	return Matrix{rows: m.rows, cols: m.cols, dense: out}, nil
}

func (m Matrix) Sub(other Matrix) (Matrix, error) {
	if err := m.checkShape(other); err != nil {
		return Matrix{}, err
	}
	if m.dense == nil {
		return m, nil
	}
	out := mat.NewDense(m.rows, m.cols, nil)
	out.Sub(m.dense, other.dense)
	return Matrix{rows: m.rows, cols: m.cols, dense: out}, nil
}

// MulVector returns the matrix-vector product m * v.
func (m Matrix) MulVector(v Vector) (Vector, error) {
	if m.cols != v.Dim() {
		return Vector{}, fmt.Errorf("%w: %dx%d matrix times vector of dimension %d", ErrDimensionMismatch, m.rows, m.cols, v.Dim())
	}
	if m.dense == nil {
		return Zeros(m.rows), nil
	}
	out := mat.NewVecDense(m.rows, nil)
	out.MulVec(m.dense, mat.NewVecDense(v.Dim(), v.Values()))
	return NewVector(out.RawVector().Data), nil
}

// Diagonal returns the main diagonal of a square matrix.
func (m Matrix) Diagonal() (Vector, error) {
	if m.rows != m.cols {
		return Vector{}, fmt.Errorf("%w: diagonal of a %dx%d matrix", ErrDimensionMismatch, m.rows, m.cols)
	}
	out := Zeros(m.rows)
	if m.dense == nil {
		return out, nil
	}
	diag := m.dense.DiagView()
	for i := range out.data {
		out.data[i] = diag.At(i, i)
	}
	return out, nil
}
