package lwe

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/tuneinsight/lattigo/v6/core/rgsw"
	"github.com/tuneinsight/lattigo/v6/core/rgsw/blindrot"
	"github.com/tuneinsight/lattigo/v6/core/rlwe"
)

// EvaluationKeySet is the public bundle needed to bootstrap: the blind-rotation key and,
// when keyswitching is enabled, the key switching the blind-rotation output back to the
// LWE key. Without keyswitching KeySwitch is nil.
//
// The set is never mutated after generation and can be shared by concurrent evaluators.
type EvaluationKeySet struct {
	BlindRotation blindrot.MemBlindRotationEvaluationKeySet
	KeySwitch     *rlwe.EvaluationKey
}

// KeyGenerator generates the key material of a parameter set.
type KeyGenerator struct {
	params Parameters
}

func NewKeyGenerator(params Parameters) *KeyGenerator {
	return &KeyGenerator{params: params}
}

// GenKeys returns a fresh LWE secret key and the matching evaluation keys.
// The blind-rotation secret is only used during generation and is not returned.
func (kg *KeyGenerator) GenKeys() (*rlwe.SecretKey, *EvaluationKeySet) {
	params := kg.params

	kgenBR := rlwe.NewKeyGenerator(params.BR())
	skBR := kgenBR.GenSecretKeyNew()

	skLWE := skBR
	if params.WithKeySwitch() {
		skLWE = rlwe.NewKeyGenerator(params.LWE()).GenSecretKeyNew()
	}

	evkParams := params.evaluationKeyParameters()

	evk := &EvaluationKeySet{
		BlindRotation: blindrot.GenEvaluationKeyNew(params.BR(), skBR, params.LWE(), skLWE, evkParams),
	}

	if params.WithKeySwitch() {
		evk.KeySwitch = kgenBR.GenEvaluationKeyNew(skBR, skLWE, evkParams)
	}

	return skLWE, evk
}

// Check verifies that the key set has the shape expected by params.
func (evk *EvaluationKeySet) Check(params Parameters) error {
	if got := len(evk.BlindRotation.BlindRotationKeys); got != params.N() {
		return fmt.Errorf("%w: %d blind rotation keys for dimension %d", ErrParametersMismatch, got, params.N())
	}
	if params.WithKeySwitch() != (evk.KeySwitch != nil) {
		return fmt.Errorf("%w: keyswitch key presence does not match parameters", ErrParametersMismatch)
	}
	return nil
}

// MarshalBlindRotation serializes the blind-rotation key.
func (evk *EvaluationKeySet) MarshalBlindRotation() ([]byte, error) {
	buf := new(bytes.Buffer)

	brks := evk.BlindRotation.BlindRotationKeys
	if err := binary.Write(buf, binary.LittleEndian, uint32(len(brks))); err != nil {
		return nil, err
	}
	for i, brk := range brks {
		for j := range brk.Value {
			data, err := brk.Value[j].MarshalBinary()
			if err != nil {
				return nil, fmt.Errorf("marshal blind rotation key %d: %w", i, err)
			}
			if err = writeChunk(buf, data); err != nil {
				return nil, err
			}
		}
	}

	gks := evk.BlindRotation.AutomorphismKeys
	if err := binary.Write(buf, binary.LittleEndian, uint32(len(gks))); err != nil {
		return nil, err
	}
	for i, gk := range gks {
		data, err := gk.MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("marshal automorphism key %d: %w", i, err)
		}
		if err = writeChunk(buf, data); err != nil {
			return nil, err
		}
	}

	return buf.Bytes(), nil
}

// UnmarshalBlindRotation decodes a blind-rotation key produced by MarshalBlindRotation.
func (evk *EvaluationKeySet) UnmarshalBlindRotation(data []byte) error {
	r := bytes.NewReader(data)

	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedKey, err)
	}
	if int64(count) > int64(r.Len()) {
		return fmt.Errorf("%w: %d blind rotation keys announced", ErrMalformedKey, count)
	}

	brks := make([]*rgsw.Ciphertext, count)
	for i := range brks {
		brk := new(rgsw.Ciphertext)
		for j := range brk.Value {
			chunk, err := readChunk(r)
			if err != nil {
				return err
			}
			if err = unmarshal(&brk.Value[j], chunk); err != nil {
				return fmt.Errorf("%w: blind rotation key %d: %w", ErrMalformedKey, i, err)
			}
		}
		brks[i] = brk
	}

	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedKey, err)
	}
	if int64(count) > int64(r.Len()) {
		return fmt.Errorf("%w: %d automorphism keys announced", ErrMalformedKey, count)
	}

	gks := make([]*rlwe.GaloisKey, count)
	for i := range gks {
		chunk, err := readChunk(r)
		if err != nil {
			return err
		}
		gk := new(rlwe.GaloisKey)
		if err = unmarshal(gk, chunk); err != nil {
			return fmt.Errorf("%w: automorphism key %d: %w", ErrMalformedKey, i, err)
		}
		gks[i] = gk
	}

	if r.Len() != 0 {
		return fmt.Errorf("%w: %d trailing bytes", ErrMalformedKey, r.Len())
	}

	evk.BlindRotation = blindrot.MemBlindRotationEvaluationKeySet{
		BlindRotationKeys: brks,
		AutomorphismKeys:  gks,
	}

	return nil
}

// MarshalKeySwitch serializes the keyswitch key. The placeholder of a parameter set
// without keyswitching serializes to an empty payload.
func (evk *EvaluationKeySet) MarshalKeySwitch() ([]byte, error) {
	if evk.KeySwitch == nil {
		return []byte{}, nil
	}
	return evk.KeySwitch.MarshalBinary()
}

// UnmarshalKeySwitch decodes a keyswitch key produced by MarshalKeySwitch.
func (evk *EvaluationKeySet) UnmarshalKeySwitch(data []byte) error {
	if len(data) == 0 {
		evk.KeySwitch = nil
		return nil
	}

	ksk := new(rlwe.EvaluationKey)
	if err := unmarshal(ksk, data); err != nil {
		return fmt.Errorf("%w: keyswitch key: %w", ErrMalformedKey, err)
	}
	evk.KeySwitch = ksk

	return nil
}

func writeChunk(w io.Writer, data []byte) error {
	if err := binary.Write(w, binary.LittleEndian, uint64(len(data))); err != nil {
		return err
	}
	_, err := w.Write(data)
	return err
}

func readChunk(r *bytes.Reader) ([]byte, error) {
	var size uint64
	if err := binary.Read(r, binary.LittleEndian, &size); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedKey, err)
	}
	if size > uint64(r.Len()) {
		return nil, fmt.Errorf("%w: chunk of %d bytes exceeds remaining %d", ErrMalformedKey, size, r.Len())
	}
	chunk := make([]byte, size)
	if _, err := io.ReadFull(r, chunk); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedKey, err)
	}
	return chunk, nil
}
