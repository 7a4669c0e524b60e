package lwe

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tuneinsight/lattigo/v6/core/rlwe"
)

type testContext struct {
	params Parameters
	sk     *rlwe.SecretKey
	evk    *EvaluationKeySet
	enc    *Encryptor
	dec    *Decryptor
	eval   *Evaluator
}

var (
	testContextOnce sync.Once
	testCtx         *testContext
	testCtxErr      error
)

// getTestContext generates the keys of TestParameters once for the whole package.
func getTestContext(t *testing.T) *testContext {
	t.Helper()

	testContextOnce.Do(func() {
		testCtx, testCtxErr = newTestContext(TestParameters, 2)
	})
	require.NoError(t, testCtxErr)

	return testCtx
}

func newTestContext(lit ParametersLiteral, workers int) (*testContext, error) {
	params, err := NewParameters(lit)
	if err != nil {
		return nil, err
	}

	sk, evk := NewKeyGenerator(params).GenKeys()

	eval, err := NewEvaluator(params, evk, workers)
	if err != nil {
		return nil, err
	}

	return &testContext{
		params: params,
		sk:     sk,
		evk:    evk,
		enc:    NewEncryptor(params, sk),
		dec:    NewDecryptor(params, sk),
		eval:   eval,
	}, nil
}

func (tc *testContext) encrypt(t *testing.T, v, min, max float64) *Ciphertext {
	t.Helper()
	ct, err := tc.enc.Encrypt(v, tc.params.Encoding(min, max))
	require.NoError(t, err)
	return ct
}

func (tc *testContext) decrypt(t *testing.T, ct *Ciphertext) float64 {
	t.Helper()
	v, err := tc.dec.Decrypt(ct)
	require.NoError(t, err)
	return v
}

// bootstrapTolerance is the decoding error accepted after one bootstrap, relative to the
// output width, for TestParameters.
func bootstrapTolerance(e Encoding) float64 {
	return 0.1 * e.Width()
}

func freshTolerance(e Encoding) float64 {
	return 1e-4 * e.Width()
}

func identity(x float64) float64 { return x }

func sign(x float64) float64 {
	if x >= 0 {
		return 1
	}
	return -1
}

func square(x float64) float64 { return x * x }

func TestEncryptDecrypt(t *testing.T) {
	tc := getTestContext(t)

	for _, v := range []float64{-3, -1.25, 0, 0.5, 2.75, 3} {
		ct := tc.encrypt(t, v, -3, 3)
		require.InDelta(t, v, tc.decrypt(t, ct), freshTolerance(ct.Encoding))
	}

	ct := tc.encrypt(t, 7, 5, 10)
	require.InDelta(t, 7, tc.decrypt(t, ct), freshTolerance(ct.Encoding))
}

func TestEncryptOutOfRange(t *testing.T) {
	tc := getTestContext(t)

	_, err := tc.enc.Encrypt(4, tc.params.Encoding(-3, 3))
	require.ErrorIs(t, err, ErrOutOfRange)

	_, err = tc.enc.Encrypt(0, tc.params.Encoding(1, 1))
	require.ErrorIs(t, err, ErrInvalidEncoding)
}

func TestAddSub(t *testing.T) {
	tc := getTestContext(t)

	a := tc.encrypt(t, 1.5, -2, 2)
	b := tc.encrypt(t, -0.5, -1, 3)

	sum, err := tc.eval.Add(a, b)
	require.NoError(t, err)
	require.Equal(t, -3.0, sum.Encoding.Min)
	require.Equal(t, 5.0, sum.Encoding.Max)
	require.Equal(t, tc.params.PaddingBits()-1, sum.Encoding.PaddingBits)
	require.InDelta(t, 1.0, tc.decrypt(t, sum), freshTolerance(sum.Encoding))

	diff, err := tc.eval.Sub(a, b)
	require.NoError(t, err)
	require.Equal(t, -5.0, diff.Encoding.Min)
	require.Equal(t, 3.0, diff.Encoding.Max)
	require.InDelta(t, 2.0, tc.decrypt(t, diff), freshTolerance(diff.Encoding))

	// operands are left untouched
	require.InDelta(t, 1.5, tc.decrypt(t, a), freshTolerance(a.Encoding))
}

func TestAddErrors(t *testing.T) {
	tc := getTestContext(t)

	a := tc.encrypt(t, 0, -1, 1)
	b := tc.encrypt(t, 0, -2, 2)

	_, err := tc.eval.Add(a, b)
	require.ErrorIs(t, err, ErrEncodingMismatch)

	c := tc.encrypt(t, 0.25, -1, 1)
	for i := 0; i < tc.params.PaddingBits(); i++ {
		c, err = tc.eval.Add(c, c)
		require.NoError(t, err)
	}
	require.Equal(t, 0, c.Encoding.PaddingBits)

	_, err = tc.eval.Sub(c, c)
	require.ErrorIs(t, err, ErrPaddingExhausted)
}

func TestAddConstantRescale(t *testing.T) {
	tc := getTestContext(t)

	a := tc.encrypt(t, 1, -2, 2)

	shifted := tc.eval.AddConstant(a, 10)
	require.Equal(t, 8.0, shifted.Encoding.Min)
	require.InDelta(t, 11, tc.decrypt(t, shifted), freshTolerance(shifted.Encoding))

	scaled, err := tc.eval.Rescale(a, 0.5)
	require.NoError(t, err)
	require.InDelta(t, 0.5, tc.decrypt(t, scaled), freshTolerance(scaled.Encoding))

	_, err = tc.eval.Rescale(a, -1)
	require.Error(t, err)
	_, err = tc.eval.Rescale(a, 0)
	require.Error(t, err)
}

func TestBootstrap(t *testing.T) {
	tc := getTestContext(t)

	t.Run("Identity", func(t *testing.T) {
		out := tc.params.Encoding(-4, 4)
		for _, v := range []float64{-3, -1, 0.5, 2.5} {
			ct, err := tc.eval.Bootstrap(tc.encrypt(t, v, -4, 4), identity, out)
			require.NoError(t, err)
			require.Equal(t, out, ct.Encoding)
			require.InDelta(t, v, tc.decrypt(t, ct), bootstrapTolerance(out))
		}
	})

	t.Run("Square", func(t *testing.T) {
		out := tc.params.Encoding(0, 4)
		for _, v := range []float64{-1.5, -0.5, 1, 2} {
			ct, err := tc.eval.Bootstrap(tc.encrypt(t, v, -2, 2), square, out)
			require.NoError(t, err)
			require.InDelta(t, v*v, tc.decrypt(t, ct), bootstrapTolerance(out))
		}
	})

	t.Run("Sign", func(t *testing.T) {
		out := tc.params.Encoding(-1, 1)
		for _, v := range []float64{-5, -2, 2, 5} {
			ct, err := tc.eval.Bootstrap(tc.encrypt(t, v, -6, 6), sign, out)
			require.NoError(t, err)
			require.Equal(t, sign(v), math.Copysign(1, tc.decrypt(t, ct)))
		}
	})

	t.Run("Saturates", func(t *testing.T) {
		out := tc.params.Encoding(-1, 1)
		ct, err := tc.eval.Bootstrap(tc.encrypt(t, 3, -4, 4), identity, out)
		require.NoError(t, err)
		require.InDelta(t, 1, tc.decrypt(t, ct), bootstrapTolerance(out))
	})

	t.Run("AfterAdd", func(t *testing.T) {
		a := tc.encrypt(t, 1, -2, 2)
		b := tc.encrypt(t, 0.5, -2, 2)
		sum, err := tc.eval.Add(a, b)
		require.NoError(t, err)

		out := tc.params.Encoding(-4, 4)
		ct, err := tc.eval.Bootstrap(sum, identity, out)
		require.NoError(t, err)
		require.Equal(t, tc.params.PaddingBits(), ct.Encoding.PaddingBits)
		require.InDelta(t, 1.5, tc.decrypt(t, ct), bootstrapTolerance(out))
	})

	t.Run("Concurrent", func(t *testing.T) {
		out := tc.params.Encoding(-4, 4)
		values := []float64{-3, -2, -1, 0, 1, 2, 3}
		results := make([]*Ciphertext, len(values))
		errs := make([]error, len(values))

		var wg sync.WaitGroup
		for i, v := range values {
			ct := tc.encrypt(t, v, -4, 4)
			wg.Add(1)
			go func(i int, ct *Ciphertext) {
				defer wg.Done()
				results[i], errs[i] = tc.eval.Bootstrap(ct, identity, out)
			}(i, ct)
		}
		wg.Wait()

		for i, v := range values {
			require.NoError(t, errs[i])
			require.InDelta(t, v, tc.decrypt(t, results[i]), bootstrapTolerance(out))
		}
	})

	t.Run("InvalidOutput", func(t *testing.T) {
		_, err := tc.eval.Bootstrap(tc.encrypt(t, 0, -1, 1), identity, Encoding{Min: 1, Max: 0, PrecisionBits: 4})
		require.ErrorIs(t, err, ErrInvalidEncoding)
	})
}

func TestBootstrapWithoutKeySwitch(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping key generation in -short mode")
	}

	lit := TestParameters
	lit.WithKeySwitch = false
	lit.LogNBR = 9

	tc, err := newTestContext(lit, 1)
	require.NoError(t, err)
	require.Nil(t, tc.evk.KeySwitch)
	require.Equal(t, tc.params.BR().N(), tc.params.N())

	out := tc.params.Encoding(-2, 2)
	ct, err := tc.eval.Bootstrap(tc.encrypt(t, -1, -2, 2), identity, out)
	require.NoError(t, err)
	require.InDelta(t, -1, tc.decrypt(t, ct), bootstrapTolerance(out))
}

func TestNewEvaluatorRejectsForeignKeys(t *testing.T) {
	tc := getTestContext(t)

	lit := TestParameters
	lit.LogNLWE = 7
	params, err := NewParameters(lit)
	require.NoError(t, err)

	_, err = NewEvaluator(params, tc.evk, 1)
	require.ErrorIs(t, err, ErrParametersMismatch)

	_, err = NewEvaluator(tc.params, nil, 1)
	require.Error(t, err)

	eval, err := NewEvaluator(tc.params, tc.evk, 0)
	require.NoError(t, err)
	require.Equal(t, 1, eval.Workers())
}
