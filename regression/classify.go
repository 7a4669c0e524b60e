package regression

import (
	"fmt"
	"math"

	"github.com/z3rotig4r/tfhe_logreg/cipher"
	"github.com/z3rotig4r/tfhe_logreg/keys"
	"github.com/z3rotig4r/tfhe_logreg/plain"
	"github.com/z3rotig4r/tfhe_logreg/sigmoid"
)

// Threshold is the probability above which a row is classified +1.
const Threshold = 0.5

// Decision maps a score x·β to +1 when the first order logistic exceeds Threshold and to
// -1 otherwise.
func Decision(score float64) float64 {
	if sigmoid.Taylor.Evaluate(score) > Threshold {
		return 1
	}
	return -1
}

// padRows zero-pads every row to the dimension of beta. Longer rows are rejected.
func padRows(beta []float64, x [][]float64) ([]plain.Vector, error) {
	if len(beta) == 0 {
		return nil, fmt.Errorf("%w: empty model", ErrEmpty)
	}

	rows := make([]plain.Vector, len(x))
	for i, row := range x {
		v, err := plain.NewVector(row).Pad(len(beta))
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		rows[i] = v
	}
	return rows, nil
}

// ClassifyPlain returns the class of every row of x under the model beta.
func ClassifyPlain(beta []float64, x [][]float64) ([]float64, error) {
	rows, err := padRows(beta, x)
	if err != nil {
		return nil, fmt.Errorf("classify: %w", err)
	}

	b := plain.NewVector(beta)
	predictions := make([]float64, len(rows))
	for i, row := range rows {
		s, err := row.Dot(b)
		if err != nil {
			return nil, fmt.Errorf("classify: row %d: %w", i, err)
		}
		predictions[i] = Decision(s)
	}

	return predictions, nil
}

// EncodingLimit returns the symmetric range under which ClassifyEncrypted encrypts the
// model and the rows: |floor(Σβ)| widened to cover every entry of beta and x.
func EncodingLimit(beta []float64, x [][]float64) float64 {
	limit := math.Abs(math.Floor(plain.NewVector(beta).Sum()))
	limit = math.Max(limit, plain.NewVector(beta).MaxAbs())
	for _, row := range x {
		limit = math.Max(limit, plain.NewVector(row).MaxAbs())
	}
	if limit == 0 {
		limit = 1
	}
	return limit
}

// ClassifyEncrypted encrypts beta and the rows of x with k, evaluates the score and the
// decision under ctx, and decrypts the classes.
func ClassifyEncrypted(k *keys.Keys, ctx *cipher.Context, beta []float64, x [][]float64) ([]float64, error) {
	rows, err := padRows(beta, x)
	if err != nil {
		return nil, fmt.Errorf("classify: %w", err)
	}

	limit := EncodingLimit(beta, x)
	enc := ctx.Encoding(-limit, limit)

	eBeta, err := k.EncryptVector(ctx, beta, enc)
	if err != nil {
		return nil, fmt.Errorf("classify: model: %w", err)
	}

	predictions := make([]float64, len(rows))
	for i, row := range rows {
		eRow, err := k.EncryptVector(ctx, row.Values(), enc)
		if err != nil {
			return nil, fmt.Errorf("classify: row %d: %w", i, err)
		}

		s, err := eRow.Dot(eBeta)
		if err != nil {
			return nil, fmt.Errorf("classify: row %d: %w", i, err)
		}

		class, err := s.ApplyInRange(Decision, -1, 1)
		if err != nil {
			return nil, fmt.Errorf("classify: row %d: %w", i, err)
		}

		v, err := k.DecryptScalar(class)
		if err != nil {
			return nil, fmt.Errorf("classify: row %d: %w", i, err)
		}
		predictions[i] = -1
		if v > 0 {
			predictions[i] = 1
		}
	}

	return predictions, nil
}

// Infer scores encrypted features against a plaintext model and returns the encrypted
// class. It runs on the compute side: only evaluation keys are involved.
func Infer(beta []float64, features *cipher.Vector) (*cipher.Float, error) {
	if len(beta) == 0 {
		return nil, fmt.Errorf("infer: %w: empty model", ErrEmpty)
	}
	if features.Dim() != len(beta) {
		return nil, fmt.Errorf("infer: %w: %d features for %d weights", ErrDimensionMismatch, features.Dim(), len(beta))
	}

	terms, err := features.MulConstants(beta)
	if err != nil {
		return nil, fmt.Errorf("infer: %w", err)
	}

	s, err := terms.Sum()
	if err != nil {
		return nil, fmt.Errorf("infer: %w", err)
	}

	class, err := s.ApplyInRange(Decision, -1, 1)
	if err != nil {
		return nil, fmt.Errorf("infer: %w", err)
	}
	return class, nil
}
