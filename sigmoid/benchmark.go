package sigmoid

import (
	"fmt"
	"math"
	"time"

	"github.com/montanaflynn/stats"
	"github.com/z3rotig4r/tfhe_logreg/cipher"
	"github.com/z3rotig4r/tfhe_logreg/keys"
)

// TestPoints are the default benchmark inputs.
var TestPoints = []float64{-8, -6, -4, -2, -1, -0.5, 0, 0.5, 1, 2, 4, 6, 8}

// Backend evaluates an approximation at one point.
type Backend interface {
	Name() string
	Evaluate(approx Approximation, x float64) (float64, error)
}

// Plain evaluates approximations on plaintext values.
type Plain struct{}

func (Plain) Name() string {
	return "plain"
}

func (Plain) Evaluate(approx Approximation, x float64) (float64, error) {
	return approx.Evaluate(x), nil
}

// EncryptedBackend evaluates approximations on values encrypted under [-Bound, Bound].
type EncryptedBackend struct {
	Keys    *keys.Keys
	Context *cipher.Context
	Bound   float64
}

func (b *EncryptedBackend) Name() string {
	return "encrypted"
}

func (b *EncryptedBackend) Evaluate(approx Approximation, x float64) (float64, error) {
	f, err := b.Keys.EncryptScalar(b.Context, x, b.Context.Encoding(-b.Bound, b.Bound))
	if err != nil {
		return 0, err
	}
	out, err := Encrypted(f, approx)
	if err != nil {
		return 0, err
	}
	return b.Keys.DecryptScalar(out)
}

// BenchmarkResult stores benchmark information
type BenchmarkResult struct {
	Method     string
	Backend    string
	MeanError  float64
	MaxError   float64
	P95Error   float64
	Duration   time.Duration
	TestPoints int
}

func (r BenchmarkResult) String() string {
	return fmt.Sprintf("%-14s %-9s mean=%.6f max=%.6f p95=%.6f (%d points, %v)",
		r.Method, r.Backend, r.MeanError, r.MaxError, r.P95Error, r.TestPoints, r.Duration)
}

// Benchmark measures the absolute error of every method against Logistic over points.
func Benchmark(methods []Approximation, points []float64, backend Backend) ([]BenchmarkResult, error) {
	if len(points) == 0 {
		return nil, fmt.Errorf("benchmark: no test points")
	}

	results := make([]BenchmarkResult, 0, len(methods))

	for _, method := range methods {
		errs := make(stats.Float64Data, 0, len(points))

		start := time.Now()
		for _, x := range points {
			v, err := backend.Evaluate(method, x)
			if err != nil {
				return nil, fmt.Errorf("benchmark %s at %g: %w", method.Name(), x, err)
			}
			errs = append(errs, math.Abs(v-Logistic(x)))
		}
		elapsed := time.Since(start)

		mean, _ := errs.Mean()
		maxErr, _ := errs.Max()
		p95, _ := errs.Percentile(95)

		results = append(results, BenchmarkResult{
			Method:     method.Name(),
			Backend:    backend.Name(),
			MeanError:  mean,
			MaxError:   maxErr,
			P95Error:   p95,
			Duration:   elapsed,
			TestPoints: len(points),
		})
	}

	return results, nil
}
