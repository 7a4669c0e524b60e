package regression

import (
	"fmt"
	"log"
	"math"

	"github.com/z3rotig4r/tfhe_logreg/plain"
)

// Bounds is the static range plan of encrypted training. Every intermediate value is
// clamped back into its range after it is computed.
type Bounds struct {
	// Input is the encryption range ±Input of the features. Zero selects max|x|.
	Input float64 `json:"input"`
	// Weight bounds the model weights ±Weight.
	Weight float64 `json:"weight"`
	// Score bounds the inner products x·β.
	Score float64 `json:"score"`
	// Gradient bounds the gradient accumulator. Zero selects the worst case
	// (n-1)·Input·(1/2 + Score/4).
	Gradient float64 `json:"gradient"`
}

// DefaultBounds keeps the scores in the region where the first order logistic is
// meaningful.
var DefaultBounds = Bounds{Weight: 4, Score: 4}

// Term returns the bound of a single gradient term y(1/2 - y·s/4).
func (b Bounds) Term() float64 {
	return 0.5 + b.Score/4
}

// resolve fills the derived bounds for the training rows x.
func (b Bounds) resolve(x [][]float64) (Bounds, error) {
	if b.Input == 0 {
		for _, row := range x {
			b.Input = math.Max(b.Input, plain.NewVector(row).MaxAbs())
		}
		if b.Input == 0 {
			b.Input = 1
		}
	}

	if b.Gradient == 0 {
		b.Gradient = float64(max(len(x)-1, 1)) * b.Input * b.Term()
	}

	for _, bound := range []struct {
		name string
		v    float64
	}{
		{"input", b.Input},
		{"weight", b.Weight},
		{"score", b.Score},
		{"gradient", b.Gradient},
	} {
		if !(bound.v > 0) || math.IsInf(bound.v, 0) {
			return b, fmt.Errorf("invalid %s bound %v", bound.name, bound.v)
		}
	}

	return b, nil
}

// Config holds the knobs of training.
type Config struct {
	// Iterations is the number of Newton updates.
	Iterations int `json:"iterations"`
	// InitialWeight seeds every coordinate of the model.
	InitialWeight float64 `json:"initial_weight"`
	// NewtonRounds is the number of reciprocal iterations per Hessian entry.
	NewtonRounds int `json:"newton_rounds"`
	// Bounds is only used by encrypted training.
	Bounds Bounds `json:"bounds"`

	// Logger receives progress lines. Nil is silent.
	Logger *log.Logger `json:"-"`
}

// PlainConfig returns the defaults of plaintext training.
func PlainConfig() Config {
	return Config{
		Iterations:    19,
		InitialWeight: 0.001,
		NewtonRounds:  20,
		Bounds:        DefaultBounds,
	}
}

// EncryptedConfig returns the defaults of encrypted training, which spends fewer updates
// because every update costs bootstraps. The reciprocal rounds stay at 20: with the
// fixed start x0 = ±0.0001, fewer rounds leave small Hessian entries unconverged.
func EncryptedConfig() Config {
	return Config{
		Iterations:    9,
		InitialWeight: 0.001,
		NewtonRounds:  20,
		Bounds:        DefaultBounds,
	}
}

func (c Config) logf(format string, args ...interface{}) {
	if c.Logger != nil {
		c.Logger.Printf(format, args...)
	}
}

func (c Config) validate() error {
	if c.Iterations < 0 || c.NewtonRounds < 0 {
		return fmt.Errorf("negative iteration count")
	}
	if math.IsNaN(c.InitialWeight) || math.IsInf(c.InitialWeight, 0) {
		return fmt.Errorf("non-finite initial weight")
	}
	return nil
}
