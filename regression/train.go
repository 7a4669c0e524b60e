package regression

import (
	"fmt"
	"time"

	"github.com/z3rotig4r/tfhe_logreg/cipher"
	"github.com/z3rotig4r/tfhe_logreg/keys"
	"github.com/z3rotig4r/tfhe_logreg/plain"
	"github.com/z3rotig4r/tfhe_logreg/sigmoid"
)

// gradientTerm is y(1 - σ(y·s)) with the first order logistic, y(1/2 - y·s/4).
func gradientTerm(y, s float64) float64 {
	return y * (1 - sigmoid.Taylor.Evaluate(y*s))
}

func checkTrainingSet(x [][]float64, y []float64) (plain.Matrix, error) {
	if len(x) == 0 {
		return plain.Matrix{}, fmt.Errorf("%w: no training rows", ErrEmpty)
	}
	if len(y) != len(x) {
		return plain.Matrix{}, fmt.Errorf("%w: %d rows and %d labels", ErrDimensionMismatch, len(x), len(y))
	}

	m, err := plain.NewMatrix(x)
	if err != nil {
		return plain.Matrix{}, err
	}
	if m.Cols() == 0 {
		return plain.Matrix{}, fmt.Errorf("%w: no features", ErrEmpty)
	}

	return m, nil
}

// TrainPlain runs the Newton updates on plaintext values and returns the weights.
func TrainPlain(x [][]float64, y []float64, cfg Config) ([]float64, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("train: %w", err)
	}

	m, err := checkTrainingSet(x, y)
	if err != nil {
		return nil, fmt.Errorf("train: %w", err)
	}

	hinv := plain.NewVector(InvertDiagonal(DiagonalHessian(x), cfg.NewtonRounds))
	beta := plain.Fill(m.Cols(), cfg.InitialWeight)

	for it := 0; it < cfg.Iterations; it++ {
		g := plain.Zeros(m.Cols())
		for i := 1; i < m.Rows(); i++ {
			row, err := m.Row(i)
			if err != nil {
				return nil, err
			}
			s, err := row.Dot(beta)
			if err != nil {
				return nil, err
			}
			if g, err = g.Add(row.MulConstant(gradientTerm(y[i], s))); err != nil {
				return nil, err
			}
		}

		delta, err := hinv.MulElementwise(g)
		if err != nil {
			return nil, err
		}
		if beta, err = beta.Sub(delta); err != nil {
			return nil, err
		}

		cfg.logf("🔄 Iteration %d/%d: max|Δ| = %.6g", it+1, cfg.Iterations, delta.MaxAbs())
	}

	return beta.Values(), nil
}

// TrainEncrypted runs the Newton updates on values encrypted with k and evaluated under
// ctx, then decrypts the weights. The Hessian approximation is computed in plaintext
// before encryption. Row terms of one iteration are evaluated in parallel.
func TrainEncrypted(k *keys.Keys, ctx *cipher.Context, x [][]float64, y []float64, cfg Config) ([]float64, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("train: %w", err)
	}

	m, err := checkTrainingSet(x, y)
	if err != nil {
		return nil, fmt.Errorf("train: %w", err)
	}

	bounds, err := cfg.Bounds.resolve(x)
	if err != nil {
		return nil, fmt.Errorf("train: %w", err)
	}
	if cfg.InitialWeight < -bounds.Weight || cfg.InitialWeight > bounds.Weight {
		return nil, fmt.Errorf("train: initial weight %g outside ±%g", cfg.InitialWeight, bounds.Weight)
	}

	hinv := InvertDiagonal(DiagonalHessian(x), cfg.NewtonRounds)
	hb := plain.NewVector(hinv).MaxAbs()
	if hb == 0 {
		hb = 1
	}

	d := m.Cols()
	start := time.Now()

	eX, err := k.EncryptMatrix(ctx, x, ctx.Encoding(-bounds.Input, bounds.Input))
	if err != nil {
		return nil, fmt.Errorf("train: features: %w", err)
	}
	eY, err := k.EncryptVector(ctx, y, ctx.Encoding(-1, 1))
	if err != nil {
		return nil, fmt.Errorf("train: labels: %w", err)
	}
	eHinv, err := k.EncryptVector(ctx, hinv, ctx.Encoding(-hb, hb))
	if err != nil {
		return nil, fmt.Errorf("train: hessian: %w", err)
	}
	eBeta, err := k.EncryptVector(ctx, plain.Fill(d, cfg.InitialWeight).Values(), ctx.Encoding(-bounds.Weight, bounds.Weight))
	if err != nil {
		return nil, fmt.Errorf("train: weights: %w", err)
	}
	eG, err := k.EncryptVector(ctx, make([]float64, d), ctx.Encoding(-bounds.Gradient, bounds.Gradient))
	if err != nil {
		return nil, fmt.Errorf("train: gradient: %w", err)
	}

	cfg.logf("📊 Encrypted %dx%d features in %v (bounds %+v)", m.Rows(), d, time.Since(start), bounds)

	rows := make([]*cipher.Vector, m.Rows())
	labels := make([]*cipher.Float, m.Rows())
	for i := range rows {
		if rows[i], err = eX.Row(i); err != nil {
			return nil, err
		}
		if labels[i], err = eY.Get(i); err != nil {
			return nil, err
		}
	}

	for it := 0; it < cfg.Iterations; it++ {
		start := time.Now()

		terms := make([]*cipher.Vector, m.Rows()-1)
		if err := ctx.Parallel(len(terms), func(r int) (err error) {
			terms[r], err = rowGradient(rows[r+1], labels[r+1], eBeta, bounds)
			if err != nil {
				return fmt.Errorf("row %d: %w", r+1, err)
			}
			return nil
		}); err != nil {
			return nil, fmt.Errorf("train: iteration %d: %w", it+1, err)
		}

		if eBeta, err = update(eBeta, eG, eHinv, terms, bounds); err != nil {
			return nil, fmt.Errorf("train: iteration %d: %w", it+1, err)
		}

		cfg.logf("🔄 Iteration %d/%d done in %v", it+1, cfg.Iterations, time.Since(start))
	}

	beta, err := k.DecryptVector(eBeta)
	if err != nil {
		return nil, fmt.Errorf("train: %w", err)
	}
	return beta, nil
}

// rowGradient returns x_i · y_i(1 - σ(y_i · x_i·β)).
func rowGradient(row *cipher.Vector, label *cipher.Float, beta *cipher.Vector, b Bounds) (*cipher.Vector, error) {
	s, err := row.Dot(beta)
	if err != nil {
		return nil, err
	}
	if s, err = s.Clamp(-b.Score, b.Score); err != nil {
		return nil, err
	}

	ys, err := label.Mul(s)
	if err != nil {
		return nil, err
	}
	u, err := ys.Apply(func(v float64) float64 {
		return 1 - sigmoid.Taylor.Evaluate(v)
	})
	if err != nil {
		return nil, err
	}

	a, err := u.Mul(label)
	if err != nil {
		return nil, err
	}
	if a, err = a.Clamp(-b.Term(), b.Term()); err != nil {
		return nil, err
	}

	return row.MulScalar(a)
}

// update returns β - H̃⁻¹ ⊙ (g0 + Σ terms), with the gradient and the weights clamped to
// their bounds.
func update(beta, g0, hinv *cipher.Vector, terms []*cipher.Vector, b Bounds) (*cipher.Vector, error) {
	g, err := cipher.SumVectors(append([]*cipher.Vector{g0}, terms...))
	if err != nil {
		return nil, err
	}
	if g, err = g.Clamp(-b.Gradient, b.Gradient); err != nil {
		return nil, err
	}

	delta, err := hinv.MulElementwise(g)
	if err != nil {
		return nil, err
	}

	next, err := beta.Sub(delta)
	if err != nil {
		return nil, err
	}
	return next.Clamp(-b.Weight, b.Weight)
}
