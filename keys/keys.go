// Package keys manages the key material of the regression engine: generation,
// persistence to disk and the bulk encryption and decryption used by the trusted party.
//
// Only the holder of a Keys value can encrypt and decrypt. The evaluation keys it hands
// out through Context never expose the secret key.
package keys

import (
	"errors"
	"fmt"

	"github.com/tuneinsight/lattigo/v6/core/rlwe"
	"github.com/z3rotig4r/tfhe_logreg/cipher"
	"github.com/z3rotig4r/tfhe_logreg/lwe"
)

var (
	// ErrKeysNotFound is returned when a key artifact is missing on disk.
	ErrKeysNotFound = errors.New("keys: key files not found")
	// ErrCorruptKey is returned when a key artifact fails its checksum or cannot be decoded.
	ErrCorruptKey = errors.New("keys: corrupt key file")
)

// Keys is the secret key together with the evaluation keys generated with it.
type Keys struct {
	params lwe.Parameters
	secret *rlwe.SecretKey
	eval   *lwe.EvaluationKeySet

	enc *lwe.Encryptor
	dec *lwe.Decryptor
}

// Generate returns fresh keys for params.
func Generate(params lwe.Parameters) *Keys {
	sk, evk := lwe.NewKeyGenerator(params).GenKeys()
	return newKeys(params, sk, evk)
}

func newKeys(params lwe.Parameters, sk *rlwe.SecretKey, evk *lwe.EvaluationKeySet) *Keys {
	return &Keys{
		params: params,
		secret: sk,
		eval:   evk,
		enc:    lwe.NewEncryptor(params, sk),
		dec:    lwe.NewDecryptor(params, sk),
	}
}

func (k *Keys) Parameters() lwe.Parameters {
	return k.params
}

// EvaluationKeys returns the public evaluation keys.
func (k *Keys) EvaluationKeys() *lwe.EvaluationKeySet {
	return k.eval
}

func (k *Keys) Encryptor() *lwe.Encryptor {
	return k.enc
}

func (k *Keys) Decryptor() *lwe.Decryptor {
	return k.dec
}

// Context returns an evaluation context over the evaluation keys only.
func (k *Keys) Context(opts cipher.Options) (*cipher.Context, error) {
	return cipher.NewContext(k.params, k.eval, opts)
}

func (k *Keys) checkContext(ctx *cipher.Context) error {
	if !ctx.Parameters().Equal(k.params) {
		return fmt.Errorf("%w: context and keys use different parameters", lwe.ErrParametersMismatch)
	}
	return nil
}

// EncryptScalar encrypts v under enc and binds it to ctx.
func (k *Keys) EncryptScalar(ctx *cipher.Context, v float64, enc lwe.Encoding) (*cipher.Float, error) {
	if err := k.checkContext(ctx); err != nil {
		return nil, err
	}
	ct, err := k.enc.Encrypt(v, enc)
	if err != nil {
		return nil, err
	}
	return ctx.Wrap(ct), nil
}

// EncryptVector encrypts every entry of values under enc.
func (k *Keys) EncryptVector(ctx *cipher.Context, values []float64, enc lwe.Encoding) (*cipher.Vector, error) {
	elems := make([]*cipher.Float, len(values))
	for i, v := range values {
		f, err := k.EncryptScalar(ctx, v, enc)
		if err != nil {
			return nil, fmt.Errorf("encrypt vector: entry %d: %w", i, err)
		}
		elems[i] = f
	}
	return cipher.NewVector(ctx, elems)
}

// EncryptMatrix encrypts every entry of rows under enc. Ragged rows are rejected.
func (k *Keys) EncryptMatrix(ctx *cipher.Context, rows [][]float64, enc lwe.Encoding) (*cipher.Matrix, error) {
	vectors := make([]*cipher.Vector, len(rows))
	for i, row := range rows {
		if len(row) != len(rows[0]) {
			return nil, fmt.Errorf("encrypt matrix: %w: row %d has %d columns, expected %d", cipher.ErrDimensionMismatch, i, len(row), len(rows[0]))
		}
		v, err := k.EncryptVector(ctx, row, enc)
		if err != nil {
			return nil, fmt.Errorf("encrypt matrix: row %d: %w", i, err)
		}
		vectors[i] = v
	}
	return cipher.NewMatrix(ctx, vectors)
}

func (k *Keys) DecryptScalar(f *cipher.Float) (float64, error) {
	return k.dec.Decrypt(f.Ciphertext())
}

func (k *Keys) DecryptVector(v *cipher.Vector) ([]float64, error) {
	out := make([]float64, v.Dim())
	for i, f := range v.Elements() {
		x, err := k.DecryptScalar(f)
		if err != nil {
			return nil, fmt.Errorf("decrypt vector: entry %d: %w", i, err)
		}
		out[i] = x
	}
	return out, nil
}

func (k *Keys) DecryptMatrix(m *cipher.Matrix) ([][]float64, error) {
	out := make([][]float64, m.Rows())
	for i := range out {
		row, err := m.Row(i)
		if err != nil {
			return nil, err
		}
		if out[i], err = k.DecryptVector(row); err != nil {
			return nil, fmt.Errorf("decrypt matrix: row %d: %w", i, err)
		}
	}
	return out, nil
}
