package lwe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewParameters(t *testing.T) {
	params, err := NewParameters(TestParameters)
	require.NoError(t, err)

	assert.Equal(t, 1<<TestParameters.LogNLWE, params.N())
	assert.Equal(t, 1<<TestParameters.LogNBR, params.BR().N())
	assert.Equal(t, params.BR().Q(), params.LWE().Q())
	assert.Equal(t, params.Q(), params.LWE().Q()[0])
	assert.True(t, params.WithKeySwitch())
	assert.Equal(t, TestParameters, params.Literal())

	again, err := NewParameters(TestParameters)
	require.NoError(t, err)
	assert.True(t, params.Equal(again))
	assert.Equal(t, params.Prefix(), again.Prefix())

	_, err = NewParameters(DefaultParameters)
	require.NoError(t, err)
}

func TestParametersDefaults(t *testing.T) {
	lit := TestParameters
	lit.HammingWeightLWE = 0
	lit.HammingWeightBR = 0
	lit.LogNLWE = 5

	params, err := NewParameters(lit)
	require.NoError(t, err)
	assert.Equal(t, 16, params.Literal().HammingWeightLWE)
	assert.Equal(t, defaultHammingWeightBR, params.Literal().HammingWeightBR)

	lit = TestParameters
	lit.WithKeySwitch = false
	params, err = NewParameters(lit)
	require.NoError(t, err)
	assert.Equal(t, params.BR().N(), params.N())
	assert.Equal(t, 0, params.Literal().HammingWeightLWE)
}

func TestParametersValidation(t *testing.T) {
	for name, mutate := range map[string]func(*ParametersLiteral){
		"RingTooSmall":     func(l *ParametersLiteral) { l.LogNBR = 4 },
		"LWELargerThanBR":  func(l *ParametersLiteral) { l.LogNLWE = l.LogNBR + 1 },
		"ModulusTooSmall":  func(l *ParametersLiteral) { l.LogQ = 8 },
		"NoGadget":         func(l *ParametersLiteral) { l.LogP = nil },
		"NoPadding":        func(l *ParametersLiteral) { l.PaddingBits = 0 },
		"NoPrecision":      func(l *ParametersLiteral) { l.PrecisionBits = 0 },
		"PrecisionTooHigh": func(l *ParametersLiteral) { l.PrecisionBits = l.LogNBR },
		"BadAuxiliary":     func(l *ParametersLiteral) { l.LogP = []int{70} },
		"HammingTooLarge":  func(l *ParametersLiteral) { l.HammingWeightBR = 1 << 20 },
	} {
		t.Run(name, func(t *testing.T) {
			lit := TestParameters
			lit.LogP = append([]int(nil), TestParameters.LogP...)
			mutate(&lit)
			_, err := NewParameters(lit)
			require.ErrorIs(t, err, ErrInvalidParameters)
		})
	}

	lit := TestParameters
	lit.LogP = nil
	lit.BaseTwoDecomposition = 7
	_, err := NewParameters(lit)
	require.NoError(t, err)
}

func TestParametersPrefix(t *testing.T) {
	a, err := NewParameters(TestParameters)
	require.NoError(t, err)

	lit := TestParameters
	lit.PrecisionBits++
	b, err := NewParameters(lit)
	require.NoError(t, err)

	assert.False(t, a.Equal(b))
	assert.NotEqual(t, a.Prefix(), b.Prefix())
	assert.Regexp(t, `^lwe256_br1024_[0-9a-f]{12}$`, a.Prefix())
}

func TestEncodeDecode(t *testing.T) {
	params, err := NewParameters(TestParameters)
	require.NoError(t, err)

	q := params.Q()
	for _, padding := range []int{0, 1, 2} {
		for _, y := range []float64{-1, -0.5, -1e-3, 0, 0.3, 1} {
			c := params.encode(y, padding)
			require.Less(t, c, q)
			require.InDelta(t, y, params.decode(c, padding), 1e-5)
		}
	}

	require.Equal(t, uint64(0), params.encode(0, 2))
	require.Equal(t, q-params.encode(0.5, 2), params.encode(-0.5, 2))
}
