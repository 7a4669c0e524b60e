package main

import (
	"fmt"
	"math"
	"time"

	"github.com/montanaflynn/stats"
	"github.com/z3rotig4r/tfhe_logreg/cipher"
	"github.com/z3rotig4r/tfhe_logreg/dataset"
	"github.com/z3rotig4r/tfhe_logreg/regression"
	"github.com/z3rotig4r/tfhe_logreg/sigmoid"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

func (b *bench) sigmoid() error {
	b.header("🧪 Sigmoid approximations")

	backends := []sigmoid.Backend{sigmoid.Plain{}}
	if b.opts.encrypt {
		k, ctx, err := b.context()
		if err != nil {
			return err
		}
		backends = append(backends, &sigmoid.EncryptedBackend{Keys: k, Context: ctx, Bound: 8})
	}

	fmt.Fprintf(b.out, "%-14s | %-9s | %-10s | %-10s | %-10s | %s\n", "Method", "Backend", "Mean", "Max", "P95", "Time")
	for _, backend := range backends {
		results, err := sigmoid.Benchmark(sigmoid.Methods(), sigmoid.TestPoints, backend)
		if err != nil {
			return err
		}
		for _, r := range results {
			fmt.Fprintf(b.out, "%-14s | %-9s | %.8f | %.8f | %.8f | %v\n",
				r.Method, r.Backend, r.MeanError, r.MaxError, r.P95Error, r.Duration)
		}
	}
	return nil
}

// chain is an operation applied repeatedly to an encrypted value, mirrored in plaintext.
type chain struct {
	name  string
	plain func(x, y float64) float64
	enc   func(x, y *cipher.Float) (*cipher.Float, error)
}

var chains = []chain{
	{
		name:  "add",
		plain: func(x, y float64) float64 { return x + y },
		enc:   func(x, y *cipher.Float) (*cipher.Float, error) { return x.Add(y) },
	},
	{
		name:  "mul",
		plain: func(x, y float64) float64 { return x * y },
		enc:   func(x, y *cipher.Float) (*cipher.Float, error) { return x.Mul(y) },
	},
	{
		name:  "refresh",
		plain: func(x, _ float64) float64 { return x },
		enc:   func(x, _ *cipher.Float) (*cipher.Float, error) { return x.Refresh() },
	},
}

// noise measures how the error of chained operations grows with their length. Every
// error is reported relative to the radius of the encoding of the result.
func (b *bench) noise() error {
	b.header("🔬 Noise growth of chained operations")

	k, ctx, err := b.context()
	if err != nil {
		return err
	}

	src := rand.NewSource(b.opts.seed)
	uniform := distuv.Uniform{Min: -1, Max: 1, Src: src}

	fmt.Fprintf(b.out, "%-8s | %-5s | %-10s | %-10s | %-10s\n", "Op", "Depth", "Mean", "Max", "P95")

	for _, c := range chains {
		errs := make([]stats.Float64Data, b.opts.depth)

		start := time.Now()
		for s := 0; s < b.opts.samples; s++ {
			x, y := uniform.Rand(), uniform.Rand()

			ex, err := k.EncryptScalar(ctx, x, ctx.Encoding(-1, 1))
			if err != nil {
				return err
			}
			ey, err := k.EncryptScalar(ctx, y, ctx.Encoding(-1, 1))
			if err != nil {
				return err
			}

			for d := 0; d < b.opts.depth; d++ {
				x = c.plain(x, y)
				if ex, err = c.enc(ex, ey); err != nil {
					return fmt.Errorf("%s at depth %d: %w", c.name, d+1, err)
				}

				got, err := k.DecryptScalar(ex)
				if err != nil {
					return err
				}
				errs[d] = append(errs[d], math.Abs(got-x)/ex.Encoding().Radius())
			}
		}

		for d, e := range errs {
			mean, _ := e.Mean()
			maxErr, _ := e.Max()
			p95, _ := e.Percentile(95)
			fmt.Fprintf(b.out, "%-8s | %5d | %.8f | %.8f | %.8f\n", c.name, d+1, mean, maxErr, p95)
		}
		b.logger.Printf("⏱️  %s: %d samples in %v", c.name, b.opts.samples, time.Since(start))
	}
	return nil
}

// model trains and classifies a synthetic two-cluster dataset.
func (b *bench) model() error {
	b.header(fmt.Sprintf("📈 Model on %d synthetic rows, %d features", b.opts.rows, b.opts.feats))

	data := dataset.Synthetic(b.opts.rows, b.opts.feats, b.opts.seed)

	cfg := b.cfg.Plain
	cfg.Logger = b.logger

	start := time.Now()
	beta, err := regression.TrainPlain(data.X, data.Y, cfg)
	if err != nil {
		return err
	}
	predictions, err := regression.ClassifyPlain(beta, data.X)
	if err != nil {
		return err
	}
	acc, err := regression.Accuracy(predictions, data.Y)
	if err != nil {
		return err
	}
	fmt.Fprintf(b.out, "%-9s | accuracy %6.2f%% | %v | β = %.4f\n", "plain", acc*100, time.Since(start), beta)

	if !b.opts.encrypt {
		return nil
	}

	k, ctx, err := b.context()
	if err != nil {
		return err
	}

	cfg = b.cfg.Encrypted
	cfg.Logger = b.logger

	start = time.Now()
	if beta, err = regression.TrainEncrypted(k, ctx, data.X, data.Y, cfg); err != nil {
		return err
	}
	if predictions, err = regression.ClassifyEncrypted(k, ctx, beta, data.X); err != nil {
		return err
	}
	if acc, err = regression.Accuracy(predictions, data.Y); err != nil {
		return err
	}
	fmt.Fprintf(b.out, "%-9s | accuracy %6.2f%% | %v | β = %.4f\n", "encrypted", acc*100, time.Since(start), beta)
	return nil
}
