// Package lwe implements the numeric backend of the regression engine: bounded-range
// real values encrypted as LWE samples, exact linear operations on them and a
// programmable bootstrap that evaluates an arbitrary real function while refreshing noise.
//
// Samples are RLWE ciphertexts whose constant coefficient carries the message, so that
// lattigo's blind rotation can read them directly. After the blind rotation the result is
// key-switched from the larger ring back to the LWE ring, both rings sharing one prime.
package lwe

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"

	"github.com/tuneinsight/lattigo/v6/core/rlwe"
	"github.com/tuneinsight/lattigo/v6/ring"
	"github.com/tuneinsight/lattigo/v6/utils"
	"github.com/zeebo/blake3"
)

const (
	minLogN = 5
	maxLogN = 16

	defaultHammingWeightLWE = 64
	defaultHammingWeightBR  = 192
)

// ParametersLiteral is the user-facing description of a parameter set.
type ParametersLiteral struct {
	LogNLWE              int   `json:"log_n_lwe"`
	LogNBR               int   `json:"log_n_br"`
	LogQ                 int   `json:"log_q"`
	LogP                 []int `json:"log_p,omitempty"`
	BaseTwoDecomposition int   `json:"base_two_decomposition,omitempty"`
	HammingWeightLWE     int   `json:"hamming_weight_lwe,omitempty"`
	HammingWeightBR      int   `json:"hamming_weight_br,omitempty"`
	PrecisionBits        int   `json:"precision_bits"`
	PaddingBits          int   `json:"padding_bits"`
	WithKeySwitch        bool  `json:"with_key_switch"`
}

var (
	// DefaultParameters targets the deployment setting of the project: LWE samples of
	// dimension 1024 bootstrapped in a ring of degree 4096, 6 bits of precision and
	// 2 bits of padding, with keyswitching.
	DefaultParameters = ParametersLiteral{
		LogNLWE:          10,
		LogNBR:           12,
		LogQ:             27,
		LogP:             []int{42},
		HammingWeightLWE: 64,
		HammingWeightBR:  192,
		PrecisionBits:    6,
		PaddingBits:      2,
		WithKeySwitch:    true,
	}

	// TestParameters is a small and INSECURE parameter set for tests and demos.
	TestParameters = ParametersLiteral{
		LogNLWE:          8,
		LogNBR:           10,
		LogQ:             25,
		LogP:             []int{30},
		HammingWeightLWE: 32,
		HammingWeightBR:  64,
		PrecisionBits:    5,
		PaddingBits:      2,
		WithKeySwitch:    true,
	}
)

// Parameters is an instantiated and validated parameter set.
type Parameters struct {
	literal   ParametersLiteral
	paramsLWE rlwe.Parameters
	paramsBR  rlwe.Parameters
	digest    [32]byte
}

// NewParameters validates the literal and instantiates the LWE and blind-rotation rings.
func NewParameters(lit ParametersLiteral) (p Parameters, err error) {
	lit = lit.withDefaults()

	if err = lit.validate(); err != nil {
		return Parameters{}, err
	}

	if p.paramsBR, err = rlwe.NewParametersFromLiteral(rlwe.ParametersLiteral{
		LogN:    lit.LogNBR,
		LogQ:    []int{lit.LogQ},
		LogP:    lit.LogP,
		Xs:      ring.Ternary{H: lit.HammingWeightBR},
		NTTFlag: true,
	}); err != nil {
		return Parameters{}, fmt.Errorf("%w: blind rotation ring: %w", ErrInvalidParameters, err)
	}

	if lit.WithKeySwitch {
		if p.paramsLWE, err = rlwe.NewParametersFromLiteral(rlwe.ParametersLiteral{
			LogN:    lit.LogNLWE,
			Q:       p.paramsBR.Q(),
			Xs:      ring.Ternary{H: lit.HammingWeightLWE},
			NTTFlag: true,
		}); err != nil {
			return Parameters{}, fmt.Errorf("%w: lwe ring: %w", ErrInvalidParameters, err)
		}
	} else {
		p.paramsLWE = p.paramsBR
	}

	p.literal = lit

	data, err := json.Marshal(lit)
	if err != nil {
		return Parameters{}, fmt.Errorf("%w: %w", ErrInvalidParameters, err)
	}
	p.digest = blake3.Sum256(data)

	return p, nil
}

func (lit ParametersLiteral) withDefaults() ParametersLiteral {
	lit.LogP = append([]int(nil), lit.LogP...)

	if !lit.WithKeySwitch {
		lit.LogNLWE = lit.LogNBR
		lit.HammingWeightLWE = 0
	} else if lit.HammingWeightLWE == 0 {
		lit.HammingWeightLWE = utils.Min(defaultHammingWeightLWE, 1<<lit.LogNLWE>>1)
	}

	if lit.HammingWeightBR == 0 {
		lit.HammingWeightBR = utils.Min(defaultHammingWeightBR, 1<<lit.LogNBR>>1)
	}

	return lit
}

func (lit ParametersLiteral) validate() error {
	switch {
	case lit.LogNBR < minLogN || lit.LogNBR > maxLogN:
		return fmt.Errorf("%w: log_n_br=%d not in [%d, %d]", ErrInvalidParameters, lit.LogNBR, minLogN, maxLogN)
	case lit.LogNLWE < minLogN || lit.LogNLWE > lit.LogNBR:
		return fmt.Errorf("%w: log_n_lwe=%d not in [%d, log_n_br]", ErrInvalidParameters, lit.LogNLWE, minLogN)
	case lit.LogQ < 16 || lit.LogQ > 61:
		return fmt.Errorf("%w: log_q=%d not in [16, 61]", ErrInvalidParameters, lit.LogQ)
	case lit.BaseTwoDecomposition < 0:
		return fmt.Errorf("%w: negative base_two_decomposition", ErrInvalidParameters)
	case len(lit.LogP) == 0 && lit.BaseTwoDecomposition == 0:
		return fmt.Errorf("%w: either log_p or base_two_decomposition must be set", ErrInvalidParameters)
	case lit.PrecisionBits < 1:
		return fmt.Errorf("%w: precision_bits must be positive", ErrInvalidParameters)
	case lit.PaddingBits < 1:
		return fmt.Errorf("%w: padding_bits must be positive", ErrInvalidParameters)
	case lit.PrecisionBits+lit.PaddingBits+1 > lit.LogNBR:
		return fmt.Errorf("%w: precision_bits+padding_bits+1=%d exceeds log_n_br=%d",
			ErrInvalidParameters, lit.PrecisionBits+lit.PaddingBits+1, lit.LogNBR)
	case lit.HammingWeightBR < 1 || lit.HammingWeightBR > 1<<lit.LogNBR:
		return fmt.Errorf("%w: hamming_weight_br=%d", ErrInvalidParameters, lit.HammingWeightBR)
	case lit.WithKeySwitch && (lit.HammingWeightLWE < 1 || lit.HammingWeightLWE > 1<<lit.LogNLWE):
		return fmt.Errorf("%w: hamming_weight_lwe=%d", ErrInvalidParameters, lit.HammingWeightLWE)
	}

	for _, logP := range lit.LogP {
		if logP < 16 || logP > 61 {
			return fmt.Errorf("%w: log_p entry %d not in [16, 61]", ErrInvalidParameters, logP)
		}
	}

	return nil
}

// Literal returns a copy of the literal the parameters were built from, defaults resolved.
func (p Parameters) Literal() ParametersLiteral {
	lit := p.literal
	lit.LogP = append([]int(nil), p.literal.LogP...)
	return lit
}

// LWE returns the parameters of the ring holding the LWE samples.
func (p Parameters) LWE() rlwe.Parameters {
	return p.paramsLWE
}

// BR returns the parameters of the blind-rotation ring.
func (p Parameters) BR() rlwe.Parameters {
	return p.paramsBR
}

// Q returns the ciphertext modulus shared by both rings.
func (p Parameters) Q() uint64 {
	return p.paramsBR.Q()[0]
}

// N returns the LWE dimension.
func (p Parameters) N() int {
	return p.paramsLWE.N()
}

func (p Parameters) PrecisionBits() int {
	return p.literal.PrecisionBits
}

func (p Parameters) PaddingBits() int {
	return p.literal.PaddingBits
}

func (p Parameters) WithKeySwitch() bool {
	return p.literal.WithKeySwitch
}

// Encoding returns an encoding of [min, max] with the default precision and padding.
func (p Parameters) Encoding(min, max float64) Encoding {
	return Encoding{
		Min:           min,
		Max:           max,
		PrecisionBits: p.literal.PrecisionBits,
		PaddingBits:   p.literal.PaddingBits,
	}
}

// Prefix returns a file-name prefix identifying the parameter set.
func (p Parameters) Prefix() string {
	return fmt.Sprintf("lwe%d_br%d_%s", p.paramsLWE.N(), p.paramsBR.N(), hex.EncodeToString(p.digest[:6]))
}

// Equal reports whether both parameter sets were built from the same literal.
func (p Parameters) Equal(other Parameters) bool {
	return p.digest == other.digest
}

func (p Parameters) tag() (t [8]byte) {
	copy(t[:], p.digest[:8])
	return
}

func (p Parameters) evaluationKeyParameters() rlwe.EvaluationKeyParameters {
	evkParams := rlwe.EvaluationKeyParameters{}
	if p.literal.BaseTwoDecomposition > 0 {
		evkParams.BaseTwoDecomposition = utils.Pointy(p.literal.BaseTwoDecomposition)
	}
	return evkParams
}

// delta is the scaling factor of a normalized message under the given padding.
func (p Parameters) delta(padding int) float64 {
	return float64(p.Q()) / 4 / math.Exp2(float64(padding))
}

// encode maps a normalized value y in [-1, 1] to a coefficient modulo Q.
func (p Parameters) encode(y float64, padding int) uint64 {
	q := p.Q()
	c := int64(math.Round(y * p.delta(padding)))
	if c < 0 {
		return (q - uint64(-c)%q) % q
	}
	return uint64(c) % q
}

// decode maps a coefficient modulo Q back to a normalized value.
func (p Parameters) decode(c uint64, padding int) float64 {
	q := p.Q()
	c %= q
	if c >= q>>1 {
		return -float64(q-c) / p.delta(padding)
	}
	return float64(c) / p.delta(padding)
}
