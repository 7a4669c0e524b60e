// Package sigmoid holds polynomial approximations of the logistic function and
// evaluates them on plaintext values or, through one programmable bootstrap, on
// encrypted ones.
package sigmoid

import (
	"fmt"
	"math"

	"github.com/z3rotig4r/tfhe_logreg/cipher"
)

// Approximation represents a sigmoid approximation method
type Approximation interface {
	Name() string
	Evaluate(x float64) float64
	Degree() int
}

// Logistic is the exact logistic function 1/(1+e^-x).
func Logistic(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// Polynomial is an approximation given by its monomial coefficients, lowest degree first.
type Polynomial struct {
	name   string
	coeffs []float64
}

func (p *Polynomial) Name() string {
	return p.name
}

func (p *Polynomial) Degree() int {
	return len(p.coeffs) - 1
}

// Coefficients returns a copy of the coefficients, lowest degree first.
func (p *Polynomial) Coefficients() []float64 {
	return append([]float64(nil), p.coeffs...)
}

// Evaluate computes the polynomial with Horner's method.
func (p *Polynomial) Evaluate(x float64) float64 {
	r := 0.0
	for i := len(p.coeffs) - 1; i >= 0; i-- {
		r = r*x + p.coeffs[i]
	}
	return r
}

// Taylor is the first order expansion 0.5 + 0.25x around the origin. It is the logistic
// used by the regression gradient and decision function.
var Taylor = &Polynomial{name: "Taylor-1", coeffs: []float64{0.5, 0.25}}

// Chebyshev coefficients for [-8, 8], truncated to degree 3, 5 or 7.
var chebyshev = []float64{0.5, 0.25, 0.0, -0.03125, 0.0, 0.003906, 0.0, -0.000488}

// Minimax coefficients for [-8, 8].
var minimax = map[int][]float64{
	3: {0.5, 0.2159198, 0.0, -0.0082176},
	5: {0.5, 0.2380952, 0.0, -0.0154321, 0.0, 0.0006588},
	7: {0.5, 0.2471169, 0.0, -0.0195740, 0.0, 0.0015314, 0.0, -0.0000451},
}

// NewChebyshev returns the Chebyshev approximation of degree 3, 5 or 7. Other degrees
// fall back to 3.
func NewChebyshev(degree int) *Polynomial {
	if degree != 5 && degree != 7 {
		degree = 3
	}
	return &Polynomial{
		name:   fmt.Sprintf("Chebyshev-%d", degree),
		coeffs: chebyshev[:degree+1],
	}
}

// NewMinimax returns the minimax approximation of degree 3, 5 or 7. Other degrees fall
// back to 3.
func NewMinimax(degree int) *Polynomial {
	coeffs, ok := minimax[degree]
	if !ok {
		degree = 3
		coeffs = minimax[3]
	}
	return &Polynomial{
		name:   fmt.Sprintf("Minimax-%d", degree),
		coeffs: coeffs,
	}
}

// Composite evaluates σ(x) ≈ 0.5 + 0.5·tanh(x/2) with tanh replaced by its odd Taylor
// series up to Degree.
type Composite struct {
	degree int
}

// NewComposite returns the composite approximation of the given odd degree (at least 1).
func NewComposite(degree int) *Composite {
	if degree < 1 {
		degree = 1
	}
	if degree%2 == 0 {
		degree++
	}
	return &Composite{degree: degree}
}

func (c *Composite) Name() string {
	return fmt.Sprintf("Composite-%d", c.degree)
}

func (c *Composite) Degree() int {
	return c.degree
}

// tanh Taylor coefficients of t, t^3, t^5, t^7, t^9.
var tanhSeries = []float64{1, -1.0 / 3, 2.0 / 15, -17.0 / 315, 62.0 / 2835}

func (c *Composite) Evaluate(x float64) float64 {
	t := x / 2
	t2 := t * t

	sum, pow := 0.0, t
	for k := 0; 2*k+1 <= c.degree && k < len(tanhSeries); k++ {
		sum += tanhSeries[k] * pow
		pow *= t2
	}

	return 0.5 + 0.5*sum
}

// Methods returns every approximation of the package.
func Methods() []Approximation {
	methods := []Approximation{Taylor}
	for _, d := range []int{3, 5, 7} {
		methods = append(methods, NewChebyshev(d), NewMinimax(d))
	}
	return append(methods, NewComposite(3))
}

// Encrypted evaluates approx on f with a single bootstrap.
func Encrypted(f *cipher.Float, approx Approximation) (*cipher.Float, error) {
	out, err := f.Apply(approx.Evaluate)
	if err != nil {
		return nil, fmt.Errorf("sigmoid %s: %w", approx.Name(), err)
	}
	return out, nil
}
