package sigmoid

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/z3rotig4r/tfhe_logreg/cipher"
	"github.com/z3rotig4r/tfhe_logreg/keys"
	"github.com/z3rotig4r/tfhe_logreg/lwe"
)

func TestPolynomial(t *testing.T) {
	for _, m := range Methods() {
		assert.InDelta(t, 0.5, m.Evaluate(0), 1e-12, m.Name())
	}

	p := NewMinimax(5)
	c := p.Coefficients()
	x := 1.7
	want := 0.0
	for i, ci := range c {
		want += ci * math.Pow(x, float64(i))
	}
	assert.InDelta(t, want, p.Evaluate(x), 1e-12)

	c[0] = 42
	assert.Equal(t, 0.5, p.Coefficients()[0])
}

func TestDegrees(t *testing.T) {
	for _, tc := range []struct {
		approx Approximation
		name   string
		degree int
	}{
		{Taylor, "Taylor-1", 1},
		{NewChebyshev(5), "Chebyshev-5", 5},
		{NewChebyshev(4), "Chebyshev-3", 3},
		{NewMinimax(7), "Minimax-7", 7},
		{NewMinimax(9), "Minimax-3", 3},
		{NewComposite(3), "Composite-3", 3},
		{NewComposite(4), "Composite-5", 5},
		{NewComposite(0), "Composite-1", 1},
	} {
		assert.Equal(t, tc.name, tc.approx.Name())
		assert.Equal(t, tc.degree, tc.approx.Degree())
	}
}

func TestTaylor(t *testing.T) {
	assert.Equal(t, 0.75, Taylor.Evaluate(1))
	assert.Equal(t, 0.25, Taylor.Evaluate(-1))

	for x := -1.0; x <= 1; x += 0.25 {
		assert.InDelta(t, Logistic(x), Taylor.Evaluate(x), 0.025)
	}

	// the first order composite is the Taylor expansion
	for _, x := range TestPoints {
		assert.InDelta(t, Taylor.Evaluate(x), NewComposite(1).Evaluate(x), 1e-12)
	}
}

func TestBenchmarkPlain(t *testing.T) {
	results, err := Benchmark(Methods(), TestPoints, Plain{})
	require.NoError(t, err)
	require.Len(t, results, len(Methods()))

	for _, r := range results {
		assert.Equal(t, "plain", r.Backend)
		assert.Equal(t, len(TestPoints), r.TestPoints)
		assert.GreaterOrEqual(t, r.MaxError, r.P95Error)
		assert.GreaterOrEqual(t, r.MaxError, r.MeanError)
		assert.NotEmpty(t, r.String())
	}

	// near the origin every approximation tracks the logistic closely
	near, err := Benchmark(Methods(), []float64{-0.5, 0, 0.5}, Plain{})
	require.NoError(t, err)
	for _, r := range near {
		assert.Less(t, r.MaxError, 0.02, r.Method)
	}

	_, err = Benchmark(Methods(), nil, Plain{})
	require.Error(t, err)
}

func TestEncrypted(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping bootstrap in -short mode")
	}

	params, err := lwe.NewParameters(lwe.TestParameters)
	require.NoError(t, err)
	k := keys.Generate(params)
	ctx, err := k.Context(cipher.Options{Workers: 2})
	require.NoError(t, err)

	f, err := k.EncryptScalar(ctx, 1, ctx.Encoding(-8, 8))
	require.NoError(t, err)

	out, err := Encrypted(f, Taylor)
	require.NoError(t, err)

	// image of 0.5+0.25x over [-8, 8]
	enc := out.Encoding()
	assert.LessOrEqual(t, enc.Min, -1.5)
	assert.GreaterOrEqual(t, enc.Max, 2.5)

	v, err := k.DecryptScalar(out)
	require.NoError(t, err)
	assert.InDelta(t, 0.75, v, 0.1*enc.Width())

	backend := &EncryptedBackend{Keys: k, Context: ctx, Bound: 8}
	results, err := Benchmark([]Approximation{Taylor}, []float64{-1, 0, 1}, backend)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "encrypted", results[0].Backend)
	assert.Less(t, results[0].MaxError, 0.1*enc.Width()+0.02)
}
