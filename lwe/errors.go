package lwe

import "errors"

var (
	// ErrInvalidParameters is returned when a parameter literal cannot be instantiated.
	ErrInvalidParameters = errors.New("lwe: invalid parameters")

	// ErrInvalidEncoding is returned for empty, inverted or non-finite ranges.
	ErrInvalidEncoding = errors.New("lwe: invalid encoding")

	// ErrOutOfRange is returned when a value does not fit the declared range at encryption.
	ErrOutOfRange = errors.New("lwe: value outside the encoding range")

	// ErrEncodingMismatch is returned when two ciphertexts cannot be combined exactly.
	ErrEncodingMismatch = errors.New("lwe: encodings cannot be combined exactly")

	// ErrPaddingExhausted is returned when an exact linear combination has no padding bit left.
	ErrPaddingExhausted = errors.New("lwe: no padding bit left")

	// ErrParametersMismatch is returned when key material or a ciphertext belongs to another parameter set.
	ErrParametersMismatch = errors.New("lwe: parameter set mismatch")

	// ErrMalformedKey is returned when serialized key material cannot be decoded.
	ErrMalformedKey = errors.New("lwe: malformed key material")
)
