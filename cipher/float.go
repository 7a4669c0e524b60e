package cipher

import (
	"fmt"
	"math"

	"github.com/z3rotig4r/tfhe_logreg/lwe"
)

// Float is an encrypted real number. Operations return new values and never modify
// their operands, so a Float can be shared between goroutines.
type Float struct {
	ctx *Context
	ct  *lwe.Ciphertext
}

func (f *Float) Context() *Context {
	return f.ctx
}

// Encoding returns the declared range and budgets of the value.
func (f *Float) Encoding() lwe.Encoding {
	return f.ct.Encoding
}

// Ciphertext returns a copy of the underlying ciphertext.
func (f *Float) Ciphertext() *lwe.Ciphertext {
	return f.ct.CopyNew()
}

func (f *Float) copy() *Float {
	return &Float{ctx: f.ctx, ct: f.ct.CopyNew()}
}

func (f *Float) check(other *Float) error {
	if other == nil || f.ctx != other.ctx {
		return ErrContextMismatch
	}
	return nil
}

func (f *Float) bootstrap(g func(float64) float64, out lwe.Encoding) (*Float, error) {
	ct, err := f.ctx.eval.Bootstrap(f.ct, g, out)
	if err != nil {
		return nil, err
	}
	return &Float{ctx: f.ctx, ct: ct}, nil
}

// defaultEncoding returns [min, max] with the default budgets.
func (f *Float) defaultEncoding(min, max float64) lwe.Encoding {
	return f.ctx.Encoding(min, max)
}

// Add returns f + other.
func (f *Float) Add(other *Float) (*Float, error) {
	return f.linear(other, (*lwe.Evaluator).Add, "add")
}

// Sub returns f - other.
func (f *Float) Sub(other *Float) (*Float, error) {
	return f.linear(other, (*lwe.Evaluator).Sub, "sub")
}

func (f *Float) linear(other *Float, op func(*lwe.Evaluator, *lwe.Ciphertext, *lwe.Ciphertext) (*lwe.Ciphertext, error), name string) (*Float, error) {
	if err := f.check(other); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	a, b, err := align(f, other)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	ct, err := op(f.ctx.eval, a.ct, b.ct)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	res := &Float{ctx: f.ctx, ct: ct}

	if f.ctx.policy == PolicyRefreshed {
		if res, err = res.Refresh(); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
	}

	return res, nil
}

// align re-encodes, by an identity bootstrap, the operands whose encodings cannot be
// combined exactly. Both are brought to the larger width around their own center.
func align(a, b *Float) (*Float, *Float, error) {
	ea, eb := a.Encoding(), b.Encoding()
	if ea.Compatible(eb) && ea.PaddingBits >= 1 {
		return a, b, nil
	}

	width := math.Max(ea.Width(), eb.Width())
	padding := a.ctx.Parameters().PaddingBits()

	out := [2]*Float{a, b}
	err := a.ctx.Parallel(2, func(i int) (err error) {
		e := out[i].Encoding()
		target := out[i].defaultEncoding(e.Center()-width/2, e.Center()+width/2)
		if e.Compatible(target) && e.PaddingBits == padding {
			return nil
		}
		out[i], err = out[i].bootstrap(identity, target)
		return
	})
	if err != nil {
		return nil, nil, fmt.Errorf("align: %w", err)
	}

	return out[0], out[1], nil
}

// AddConstant returns f + k. It is exact and costs no bootstrap.
func (f *Float) AddConstant(k float64) *Float {
	return &Float{ctx: f.ctx, ct: f.ctx.eval.AddConstant(f.ct, k)}
}

// SubConstant returns f - k. It is exact and costs no bootstrap.
func (f *Float) SubConstant(k float64) *Float {
	return f.AddConstant(-k)
}

// Mul returns f * other, computed as ((a+b)^2 - (a-b)^2)/4 on unit-range operands.
// Its declared range is [-Ra*Rb, Ra*Rb] where R is the radius of each operand range.
func (f *Float) Mul(other *Float) (*Float, error) {
	if err := f.check(other); err != nil {
		return nil, fmt.Errorf("mul: %w", err)
	}

	ra, rb := f.Encoding().Radius(), other.Encoding().Radius()

	units := [2]*Float{f, other}
	if err := f.ctx.Parallel(2, func(i int) (err error) {
		units[i], err = units[i].unit()
		return
	}); err != nil {
		return nil, fmt.Errorf("mul: %w", err)
	}

	p, err := f.ctx.eval.Add(units[0].ct, units[1].ct)
	if err != nil {
		return nil, fmt.Errorf("mul: %w", err)
	}

	n, err := f.ctx.eval.Sub(units[0].ct, units[1].ct)
	if err != nil {
		return nil, fmt.Errorf("mul: %w", err)
	}

	quarterSquare := func(x float64) float64 { return x * x / 4 }
	squares := [2]*Float{{ctx: f.ctx, ct: p}, {ctx: f.ctx, ct: n}}
	if err = f.ctx.Parallel(2, func(i int) (err error) {
		squares[i], err = squares[i].bootstrap(quarterSquare, f.defaultEncoding(0, 1))
		return
	}); err != nil {
		return nil, fmt.Errorf("mul: %w", err)
	}

	ct, err := f.ctx.eval.Sub(squares[0].ct, squares[1].ct)
	if err != nil {
		return nil, fmt.Errorf("mul: %w", err)
	}

	if ct, err = f.ctx.eval.Rescale(ct, ra*rb); err != nil {
		return nil, fmt.Errorf("mul: %w", err)
	}

	return &Float{ctx: f.ctx, ct: ct}, nil
}

// unit maps f to f/R in [-1, 1] with the default padding, R the radius of its range.
// Symmetric ranges are rescaled exactly.
func (f *Float) unit() (*Float, error) {
	e := f.Encoding()
	r := e.Radius()
	padding := f.ctx.Parameters().PaddingBits()

	if e.Symmetric() && e.PaddingBits == padding {
		ct, err := f.ctx.eval.Rescale(f.ct, 1/r)
		if err != nil {
			return nil, err
		}
		// exact bounds so that both unit operands share their width
		ct.Encoding.Min, ct.Encoding.Max = -1, 1
		return &Float{ctx: f.ctx, ct: ct}, nil
	}

	return f.bootstrap(func(x float64) float64 { return x / r }, f.defaultEncoding(-1, 1))
}

// MulConstant returns k * f with one bootstrap, which also refreshes the noise.
func (f *Float) MulConstant(k float64) (*Float, error) {
	if math.IsNaN(k) || math.IsInf(k, 0) {
		return nil, fmt.Errorf("mul constant: non-finite factor %v", k)
	}

	e := f.Encoding()

	lo, hi := k*e.Min, k*e.Max
	if lo > hi {
		lo, hi = hi, lo
	}
	if k == 0 {
		lo, hi = -e.Width()/2, e.Width()/2
	}

	res, err := f.bootstrap(func(x float64) float64 { return k * x }, f.defaultEncoding(lo, hi))
	if err != nil {
		return nil, fmt.Errorf("mul constant: %w", err)
	}

	return res, nil
}

// Apply returns g(f) with one bootstrap. The output range is the image of g sampled over
// the input range, widened by one precision step on each side.
func (f *Float) Apply(g func(float64) float64) (*Float, error) {
	lo, hi, err := f.image(g)
	if err != nil {
		return nil, fmt.Errorf("apply: %w", err)
	}

	margin := (hi - lo) / math.Exp2(float64(f.ctx.Parameters().PrecisionBits()))
	if margin == 0 {
		margin = math.Max(1, math.Abs(lo)) * 1e-3
	}

	res, err := f.bootstrap(g, f.defaultEncoding(lo-margin, hi+margin))
	if err != nil {
		return nil, fmt.Errorf("apply: %w", err)
	}

	return res, nil
}

// ApplyInRange returns g(f) encoded over [min, max]. It fails with ErrRangeViolation
// when the sampled image of g over the input range escapes [min, max].
func (f *Float) ApplyInRange(g func(float64) float64, min, max float64) (*Float, error) {
	out := f.defaultEncoding(min, max)
	if err := out.Validate(); err != nil {
		return nil, fmt.Errorf("apply in range: %w", err)
	}

	lo, hi, err := f.image(g)
	if err != nil {
		return nil, fmt.Errorf("apply in range: %w", err)
	}

	if !out.Contains(lo) || !out.Contains(hi) {
		return nil, fmt.Errorf("apply in range: %w: image [%g, %g] not in [%g, %g]", ErrRangeViolation, lo, hi, min, max)
	}

	res, err := f.bootstrap(g, out)
	if err != nil {
		return nil, fmt.Errorf("apply in range: %w", err)
	}

	return res, nil
}

// image samples g over the input range at a resolution finer than the precision.
func (f *Float) image(g func(float64) float64) (lo, hi float64, err error) {
	e := f.Encoding()
	samples := 1<<(f.ctx.Parameters().PrecisionBits()+3) + 1

	lo, hi = math.Inf(1), math.Inf(-1)
	for i := 0; i < samples; i++ {
		y := g(e.Min + e.Width()*float64(i)/float64(samples-1))
		if math.IsNaN(y) || math.IsInf(y, 0) {
			return 0, 0, fmt.Errorf("%w: non-finite image %v", ErrRangeViolation, y)
		}
		lo, hi = math.Min(lo, y), math.Max(hi, y)
	}

	return lo, hi, nil
}

// Clamp re-encodes f into [min, max], saturating values outside of it.
func (f *Float) Clamp(min, max float64) (*Float, error) {
	res, err := f.bootstrap(identity, f.defaultEncoding(min, max))
	if err != nil {
		return nil, fmt.Errorf("clamp: %w", err)
	}
	return res, nil
}

// Refresh bootstraps f through the identity into its own range with fresh padding.
func (f *Float) Refresh() (*Float, error) {
	e := f.Encoding()
	res, err := f.bootstrap(identity, f.defaultEncoding(e.Min, e.Max))
	if err != nil {
		return nil, fmt.Errorf("refresh: %w", err)
	}
	return res, nil
}

func identity(x float64) float64 {
	return x
}
