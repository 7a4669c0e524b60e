package lwe

import (
	"fmt"
	"math"

	"github.com/tuneinsight/lattigo/v6/core/rgsw/blindrot"
	"github.com/tuneinsight/lattigo/v6/core/rlwe"
	"github.com/tuneinsight/lattigo/v6/ring"
)

// Evaluator performs homomorphic operations with the public evaluation keys only.
//
// Linear operations are lock-free. Bootstraps draw a worker from a bounded pool, each
// worker owning its blind-rotation and keyswitch evaluators, so at most Workers()
// bootstraps run at the same time and the Evaluator is safe for concurrent use.
type Evaluator struct {
	params  Parameters
	keys    *EvaluationKeySet
	workers chan *worker
}

type worker struct {
	br *blindrot.Evaluator
	ks *rlwe.Evaluator
}

// NewEvaluator returns an Evaluator running up to workers bootstraps concurrently.
func NewEvaluator(params Parameters, evk *EvaluationKeySet, workers int) (*Evaluator, error) {
	if evk == nil {
		return nil, fmt.Errorf("new evaluator: nil evaluation keys")
	}

	if err := evk.Check(params); err != nil {
		return nil, fmt.Errorf("new evaluator: %w", err)
	}

	if workers < 1 {
		workers = 1
	}

	eval := &Evaluator{
		params:  params,
		keys:    evk,
		workers: make(chan *worker, workers),
	}

	// workers are built on first use
	for i := 0; i < workers; i++ {
		eval.workers <- nil
	}

	return eval, nil
}

func (eval *Evaluator) Parameters() Parameters {
	return eval.params
}

// Workers returns the maximum number of concurrent bootstraps.
func (eval *Evaluator) Workers() int {
	return cap(eval.workers)
}

func (eval *Evaluator) acquire() *worker {
	w := <-eval.workers
	if w == nil {
		w = &worker{br: blindrot.NewEvaluator(eval.params.BR(), eval.params.LWE())}
		if eval.params.WithKeySwitch() {
			w.ks = rlwe.NewEvaluator(eval.params.BR(), nil)
		}
	}
	return w
}

func (eval *Evaluator) release(w *worker) {
	eval.workers <- w
}

// Add returns a + b. Both operands must share width and padding and have at least one
// padding bit left; the result has one padding bit less.
func (eval *Evaluator) Add(a, b *Ciphertext) (*Ciphertext, error) {
	if err := combine(a.Encoding, b.Encoding); err != nil {
		return nil, fmt.Errorf("add: %w", err)
	}

	out := a.Value.CopyNew()
	ringQ := eval.params.LWE().RingQ().AtLevel(out.Level())
	ringQ.Add(a.Value.Value[0], b.Value.Value[0], out.Value[0])
	ringQ.Add(a.Value.Value[1], b.Value.Value[1], out.Value[1])

	return &Ciphertext{Value: out, Encoding: sumEncoding(a.Encoding, b.Encoding)}, nil
}

// Sub returns a - b under the same conditions as Add.
func (eval *Evaluator) Sub(a, b *Ciphertext) (*Ciphertext, error) {
	if err := combine(a.Encoding, b.Encoding); err != nil {
		return nil, fmt.Errorf("sub: %w", err)
	}

	out := a.Value.CopyNew()
	ringQ := eval.params.LWE().RingQ().AtLevel(out.Level())
	ringQ.Sub(a.Value.Value[0], b.Value.Value[0], out.Value[0])
	ringQ.Sub(a.Value.Value[1], b.Value.Value[1], out.Value[1])

	return &Ciphertext{Value: out, Encoding: differenceEncoding(a.Encoding, b.Encoding)}, nil
}

// AddConstant returns a + k. The ciphertext is unchanged and its declared range is
// shifted by k, which is exact and adds no noise.
func (eval *Evaluator) AddConstant(a *Ciphertext, k float64) *Ciphertext {
	return &Ciphertext{Value: a.Value.CopyNew(), Encoding: a.Encoding.Shift(k)}
}

// Rescale returns k * a for k > 0 by rescaling the declared range.
func (eval *Evaluator) Rescale(a *Ciphertext, k float64) (*Ciphertext, error) {
	if !(k > 0) || math.IsInf(k, 0) {
		return nil, fmt.Errorf("rescale: factor %v must be positive and finite", k)
	}
	return &Ciphertext{Value: a.Value.CopyNew(), Encoding: a.Encoding.Scale(k)}, nil
}

// Bootstrap evaluates f on the value carried by ct and returns a fresh ciphertext under
// out. Images of f outside the range of out are saturated to its bounds.
func (eval *Evaluator) Bootstrap(ct *Ciphertext, f func(float64) float64, out Encoding) (*Ciphertext, error) {
	if err := out.Validate(); err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	in := ct.Encoding
	spread := math.Exp2(float64(in.PaddingBits))

	// The blind rotation reads x = phase / (Q/4), that is y / 2^padding.
	g := func(x float64) float64 {
		y := clamp(x*spread, -1, 1)
		return clamp(out.normalize(f(in.denormalize(y))), -1, 1)
	}

	testPoly := blindrot.InitTestPolynomial(g, rlwe.NewScale(eval.params.delta(out.PaddingBits)), eval.params.BR().RingQ(), -1, 1)

	w := eval.acquire()
	defer eval.release(w)

	res, err := w.br.Evaluate(ct.Value, map[int]*ring.Poly{0: &testPoly}, eval.keys.BlindRotation)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: blind rotation: %w", err)
	}

	value, err := eval.keySwitch(w, res[0])
	if err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	return &Ciphertext{Value: value, Encoding: out}, nil
}

// keySwitch maps a blind-rotation output back to the LWE ring and key.
func (eval *Evaluator) keySwitch(w *worker, ct *rlwe.Ciphertext) (*rlwe.Ciphertext, error) {
	if !eval.params.WithKeySwitch() {
		return ct, nil
	}

	out := rlwe.NewCiphertext(eval.params.LWE(), 1, 0)
	if err := w.ks.ApplyEvaluationKey(ct, eval.keys.KeySwitch, out); err != nil {
		return nil, fmt.Errorf("keyswitch: %w", err)
	}

	return out, nil
}

func clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}
