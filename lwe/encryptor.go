package lwe

import (
	"fmt"
	"sync"

	"github.com/tuneinsight/lattigo/v6/core/rlwe"
)

// Encryptor encodes and encrypts real values under the LWE secret key.
// It is safe for concurrent use.
type Encryptor struct {
	params Parameters

	mu  sync.Mutex
	enc *rlwe.Encryptor
}

// NewEncryptor returns an Encryptor for the given secret key.
func NewEncryptor(params Parameters, sk *rlwe.SecretKey) *Encryptor {
	return &Encryptor{
		params: params,
		enc:    rlwe.NewEncryptor(params.LWE(), sk),
	}
}

// Encrypt encodes v under enc and encrypts it.
func (e *Encryptor) Encrypt(v float64, enc Encoding) (*Ciphertext, error) {
	if err := enc.Validate(); err != nil {
		return nil, err
	}

	if !enc.Contains(v) {
		return nil, fmt.Errorf("%w: %v not in %s", ErrOutOfRange, v, enc)
	}

	paramsLWE := e.params.LWE()

	pt := rlwe.NewPlaintext(paramsLWE, 0)
	pt.Value.Coeffs[0][0] = e.params.encode(enc.normalize(v), enc.PaddingBits)
	if pt.IsNTT {
		paramsLWE.RingQ().AtLevel(0).NTT(pt.Value, pt.Value)
	}

	ct := rlwe.NewCiphertext(paramsLWE, 1, 0)

	e.mu.Lock()
	err := e.enc.Encrypt(pt, ct)
	e.mu.Unlock()

	if err != nil {
		return nil, fmt.Errorf("encrypt: %w", err)
	}

	return &Ciphertext{Value: ct, Encoding: enc}, nil
}

// Decryptor decrypts and decodes ciphertexts. It is safe for concurrent use.
type Decryptor struct {
	params Parameters

	mu  sync.Mutex
	dec *rlwe.Decryptor
}

// NewDecryptor returns a Decryptor for the given secret key.
func NewDecryptor(params Parameters, sk *rlwe.SecretKey) *Decryptor {
	return &Decryptor{
		params: params,
		dec:    rlwe.NewDecryptor(params.LWE(), sk),
	}
}

// Decrypt returns the real value carried by ct. Values whose true result left the declared
// range decode to an incorrect value; nothing in the ciphertext allows to detect it.
func (d *Decryptor) Decrypt(ct *Ciphertext) (float64, error) {
	if ct == nil || ct.Value == nil {
		return 0, fmt.Errorf("decrypt: nil ciphertext")
	}

	paramsLWE := d.params.LWE()

	if ct.Value.Degree() != 1 || ct.Value.Value[0].N() != paramsLWE.N() {
		return 0, fmt.Errorf("decrypt: %w", ErrParametersMismatch)
	}

	pt := rlwe.NewPlaintext(paramsLWE, ct.Value.Level())

	d.mu.Lock()
	d.dec.Decrypt(ct.Value, pt)
	d.mu.Unlock()

	if pt.IsNTT {
		paramsLWE.RingQ().AtLevel(pt.Level()).INTT(pt.Value, pt.Value)
	}

	y := d.params.decode(pt.Value.Coeffs[0][0], ct.Encoding.PaddingBits)

	return ct.Encoding.denormalize(y), nil
}
