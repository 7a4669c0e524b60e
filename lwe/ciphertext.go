package lwe

import (
	"bytes"
	"encoding"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/tuneinsight/lattigo/v6/core/rlwe"
)

var ciphertextMagic = [4]byte{'L', 'W', 'C', '1'}

// Ciphertext is an encrypted real value together with its declared encoding.
type Ciphertext struct {
	Value    *rlwe.Ciphertext
	Encoding Encoding
}

// CopyNew returns a deep copy of the ciphertext.
func (ct Ciphertext) CopyNew() *Ciphertext {
	return &Ciphertext{Value: ct.Value.CopyNew(), Encoding: ct.Encoding}
}

type ciphertextHeader struct {
	Magic         [4]byte
	Tag           [8]byte
	Min           float64
	Max           float64
	PrecisionBits uint16
	PaddingBits   uint16
}

// MarshalCiphertext serializes ct tagged with the parameter set.
func (p Parameters) MarshalCiphertext(ct *Ciphertext) ([]byte, error) {
	if ct.Encoding.PrecisionBits > math.MaxUint16 || ct.Encoding.PaddingBits > math.MaxUint16 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidEncoding, ct.Encoding)
	}

	body, err := ct.Value.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("marshal ciphertext: %w", err)
	}

	buf := new(bytes.Buffer)
	header := ciphertextHeader{
		Magic:         ciphertextMagic,
		Tag:           p.tag(),
		Min:           ct.Encoding.Min,
		Max:           ct.Encoding.Max,
		PrecisionBits: uint16(ct.Encoding.PrecisionBits),
		PaddingBits:   uint16(ct.Encoding.PaddingBits),
	}
	if err = binary.Write(buf, binary.LittleEndian, header); err != nil {
		return nil, err
	}
	buf.Write(body)

	return buf.Bytes(), nil
}

// UnmarshalCiphertext decodes a ciphertext produced by MarshalCiphertext under the same parameters.
func (p Parameters) UnmarshalCiphertext(data []byte) (*Ciphertext, error) {
	var header ciphertextHeader
	r := bytes.NewReader(data)
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("unmarshal ciphertext header: %w", err)
	}

	if header.Magic != ciphertextMagic {
		return nil, fmt.Errorf("unmarshal ciphertext: bad magic %q", header.Magic[:])
	}

	if header.Tag != p.tag() {
		return nil, fmt.Errorf("unmarshal ciphertext: %w", ErrParametersMismatch)
	}

	enc := Encoding{
		Min:           header.Min,
		Max:           header.Max,
		PrecisionBits: int(header.PrecisionBits),
		PaddingBits:   int(header.PaddingBits),
	}
	if err := enc.Validate(); err != nil {
		return nil, fmt.Errorf("unmarshal ciphertext: %w", err)
	}

	body := data[len(data)-r.Len():]
	if want := rlwe.NewCiphertext(p.LWE(), 1, 0).BinarySize(); len(body) != want {
		return nil, fmt.Errorf("unmarshal ciphertext: body of %d bytes, expected %d", len(body), want)
	}

	value := new(rlwe.Ciphertext)
	if err := unmarshal(value, body); err != nil {
		return nil, fmt.Errorf("unmarshal ciphertext: %w", err)
	}

	if value.Degree() != 1 || value.Value[0].N() != p.N() {
		return nil, fmt.Errorf("unmarshal ciphertext: %w: ring degree %d", ErrParametersMismatch, value.Value[0].N())
	}

	return &Ciphertext{Value: value, Encoding: enc}, nil
}

// unmarshal decodes data into v, turning a panic of the decoder on a crafted payload into
// an error.
func unmarshal(v encoding.BinaryUnmarshaler, data []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed payload: %v", r)
		}
	}()
	return v.UnmarshalBinary(data)
}
