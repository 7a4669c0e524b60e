package cipher

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVectorLinear(t *testing.T) {
	k := getKit(t)
	ctx := k.noiseless

	a := k.encryptVector(t, ctx, []float64{1, -0.5, 0.25}, -2, 2)
	b := k.encryptVector(t, ctx, []float64{0.5, 0.5, -1}, -2, 2)

	sum, err := a.Add(b)
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff([]float64{1.5, 0, -0.75}, k.decryptVector(t, sum), cmpopts.EquateApprox(0, 1e-3)))

	diff, err := a.Sub(b)
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff([]float64{0.5, -1, 1.25}, k.decryptVector(t, diff), cmpopts.EquateApprox(0, 1e-3)))

	shifted := a.AddConstant(1).SubConstant(0.5)
	assert.Empty(t, cmp.Diff([]float64{1.5, 0, 0.75}, k.decryptVector(t, shifted), cmpopts.EquateApprox(0, 1e-3)))

	s := k.encrypt(t, ctx, 1, -2, 2)
	plus, err := a.AddScalar(s)
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff([]float64{2, 0.5, 1.25}, k.decryptVector(t, plus), cmpopts.EquateApprox(0, 1e-3)))

	minus, err := a.SubScalar(s)
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff([]float64{0, -1.5, -0.75}, k.decryptVector(t, minus), cmpopts.EquateApprox(0, 1e-3)))

	total, err := a.Sum()
	require.NoError(t, err)
	assert.InDelta(t, 0.75, k.decrypt(t, total), tolerance(total.Encoding()))
}

func TestVectorErrors(t *testing.T) {
	k := getKit(t)
	ctx := k.noiseless

	a := k.encryptVector(t, ctx, []float64{1, 2, 3}, -4, 4)
	b := k.encryptVector(t, ctx, []float64{1, 2}, -4, 4)

	_, err := a.Add(b)
	require.ErrorIs(t, err, ErrDimensionMismatch)
	_, err = a.Sub(b)
	require.ErrorIs(t, err, ErrDimensionMismatch)
	_, err = a.MulElementwise(b)
	require.ErrorIs(t, err, ErrDimensionMismatch)
	_, err = a.Dot(b)
	require.ErrorIs(t, err, ErrDimensionMismatch)
	_, err = a.MulConstants([]float64{1})
	require.ErrorIs(t, err, ErrDimensionMismatch)

	empty, err := NewVector(ctx, nil)
	require.NoError(t, err)
	_, err = empty.Dot(empty)
	require.ErrorIs(t, err, ErrEmpty)
	_, err = empty.Sum()
	require.ErrorIs(t, err, ErrEmpty)

	_, err = a.Get(3)
	require.ErrorIs(t, err, ErrIndexOutOfRange)

	other := k.encryptVector(t, k.refreshed, []float64{1, 2, 3}, -4, 4)
	_, err = a.Add(other)
	require.ErrorIs(t, err, ErrContextMismatch)

	t.Run("NilOperand", func(t *testing.T) {
		for name, op := range map[string]func(*Float) (*Vector, error){
			"AddScalar": a.AddScalar,
			"SubScalar": a.SubScalar,
			"MulScalar": a.MulScalar,
		} {
			_, err := op(nil)
			require.ErrorIs(t, err, ErrContextMismatch, name)
		}
		_, err := a.Add(nil)
		require.ErrorIs(t, err, ErrContextMismatch)
		_, err = a.Dot(nil)
		require.ErrorIs(t, err, ErrContextMismatch)
	})
}

func TestVectorNonlinear(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping bootstrap-heavy test in -short mode")
	}

	k := getKit(t)
	ctx := k.noiseless

	a := k.encryptVector(t, ctx, []float64{1, -0.5}, -2, 2)
	b := k.encryptVector(t, ctx, []float64{1.5, 1}, -2, 2)

	dot, err := a.Dot(b)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, k.decrypt(t, dot), 0.25*dot.Encoding().Radius())

	scaled, err := a.MulConstant(-1)
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff([]float64{-1, 0.5}, k.decryptVector(t, scaled), cmpopts.EquateApprox(0, 0.4)))

	weighted, err := a.MulConstants([]float64{2, 0})
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff([]float64{2, 0}, k.decryptVector(t, weighted), cmpopts.EquateApprox(0, 0.8)))

	clamped, err := b.Clamp(-1, 1)
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff([]float64{1, 1}, k.decryptVector(t, clamped), cmpopts.EquateApprox(0, 0.2)))

	s := k.encrypt(t, ctx, -1, -1, 1)
	prod, err := a.MulScalar(s)
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff([]float64{-1, 0.5}, k.decryptVector(t, prod), cmpopts.EquateApprox(0, 0.5)))

	sq, err := a.Apply(func(x float64) float64 { return x * x })
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff([]float64{1, 0.25}, k.decryptVector(t, sq), cmpopts.EquateApprox(0, 0.4)))
}

func TestMatrix(t *testing.T) {
	k := getKit(t)
	ctx := k.noiseless

	r0 := k.encryptVector(t, ctx, []float64{1, 0.5}, -2, 2)
	r1 := k.encryptVector(t, ctx, []float64{-1, 1.5}, -2, 2)

	m, err := NewMatrix(ctx, []*Vector{r0, r1})
	require.NoError(t, err)
	assert.Equal(t, 2, m.Rows())
	assert.Equal(t, 2, m.Cols())

	e, err := m.Get(1, 1)
	require.NoError(t, err)
	assert.InDelta(t, 1.5, k.decrypt(t, e), 1e-3)

	row, err := m.Row(1)
	require.NoError(t, err)
	assert.NotSame(t, r1.elems[0], row.elems[0])
	assert.Empty(t, cmp.Diff([]float64{-1, 1.5}, k.decryptVector(t, row), cmpopts.EquateApprox(0, 1e-3)))

	diag, err := m.Diagonal()
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff([]float64{1, 1.5}, k.decryptVector(t, diag), cmpopts.EquateApprox(0, 1e-3)))

	sum, err := m.Add(m)
	require.NoError(t, err)
	e, err = sum.Get(0, 1)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, k.decrypt(t, e), 1e-3)

	diff, err := m.Sub(m)
	require.NoError(t, err)
	e, err = diff.Get(1, 0)
	require.NoError(t, err)
	assert.InDelta(t, 0, k.decrypt(t, e), 1e-3)

	_, err = m.Get(2, 0)
	require.ErrorIs(t, err, ErrIndexOutOfRange)
	_, err = m.Row(2)
	require.ErrorIs(t, err, ErrIndexOutOfRange)

	short := k.encryptVector(t, ctx, []float64{1}, -2, 2)
	_, err = NewMatrix(ctx, []*Vector{r0, short})
	require.ErrorIs(t, err, ErrDimensionMismatch)
	_, err = m.MulVector(short)
	require.ErrorIs(t, err, ErrDimensionMismatch)

	wide, err := NewMatrix(ctx, []*Vector{r0})
	require.NoError(t, err)
	_, err = wide.Diagonal()
	require.ErrorIs(t, err, ErrDimensionMismatch)
	_, err = m.Add(wide)
	require.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestMatrixMulVector(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping bootstrap-heavy test in -short mode")
	}

	k := getKit(t)
	ctx := k.noiseless

	m, err := NewMatrix(ctx, []*Vector{
		k.encryptVector(t, ctx, []float64{1, 0.5}, -2, 2),
		k.encryptVector(t, ctx, []float64{-1, 1.5}, -2, 2),
	})
	require.NoError(t, err)

	v := k.encryptVector(t, ctx, []float64{1, -1}, -2, 2)

	res, err := m.MulVector(v)
	require.NoError(t, err)
	require.Equal(t, 2, res.Dim())

	got := k.decryptVector(t, res)
	bound := res.elems[0].Encoding().Radius()
	assert.InDelta(t, 0.5, got[0], 0.25*bound)
	assert.InDelta(t, -2.5, got[1], 0.25*bound)
}

func TestSumVectors(t *testing.T) {
	k := getKit(t)
	ctx := k.noiseless

	vs := []*Vector{
		k.encryptVector(t, ctx, []float64{1, -1}, -2, 2),
		k.encryptVector(t, ctx, []float64{0.5, 0.5}, -2, 2),
		k.encryptVector(t, ctx, []float64{-0.25, 1}, -2, 2),
	}

	sum, err := SumVectors(vs)
	require.NoError(t, err)
	require.Equal(t, 2, sum.Dim())
	for i, want := range []float64{1.25, 0.5} {
		got, err := sum.Get(i)
		require.NoError(t, err)
		assert.InDelta(t, want, k.decrypt(t, got), tolerance(got.Encoding()))
	}

	_, err = SumVectors(nil)
	require.ErrorIs(t, err, ErrEmpty)

	_, err = SumVectors([]*Vector{vs[0], k.encryptVector(t, ctx, []float64{1}, -2, 2)})
	require.ErrorIs(t, err, ErrDimensionMismatch)
}
