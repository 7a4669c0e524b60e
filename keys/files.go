package keys

import (
	"bytes"
	"encoding"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"

	"github.com/tuneinsight/lattigo/v6/core/rlwe"
	"github.com/z3rotig4r/tfhe_logreg/lwe"
	"github.com/zeebo/blake3"
)

const (
	secretFile        = "secret_key.bin"
	bootstrappingFile = "bootstrapping_key.bin"
	keyswitchingFile  = "keyswitching_key.bin"
)

var artifactMagic = [4]byte{'T', 'L', 'R', 'K'}

// Paths returns the locations of the three key artifacts of params in dir.
func Paths(dir string, params lwe.Parameters) (secret, bootstrapping, keyswitching string) {
	prefix := filepath.Join(dir, params.Prefix())
	return prefix + "_" + secretFile, prefix + "_" + bootstrappingFile, prefix + "_" + keyswitchingFile
}

// Exist reports whether all three key artifacts of params are present in dir.
func Exist(dir string, params lwe.Parameters) bool {
	sk, bsk, ksk := Paths(dir, params)
	return fileExists(sk) && fileExists(bsk) && fileExists(ksk)
}

// Artifacts returns the contents of the three key files: a checksummed header followed by
// the binary encoding of each key.
func (k *Keys) Artifacts() (secret, bootstrapping, keyswitching []byte, err error) {
	sk, err := k.secret.MarshalBinary()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("secret key: %w", err)
	}

	bsk, err := k.eval.MarshalBlindRotation()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("bootstrapping key: %w", err)
	}

	ksk, err := k.eval.MarshalKeySwitch()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("keyswitching key: %w", err)
	}

	return encodeArtifact(sk), encodeArtifact(bsk), encodeArtifact(ksk), nil
}

// Save writes the key artifacts to dir, creating it if needed. The keyswitching artifact
// is written even when the parameters do not use keyswitching.
func (k *Keys) Save(dir string) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("save keys: %w", err)
	}

	skPath, bskPath, kskPath := Paths(dir, k.params)

	sk, bsk, ksk, err := k.Artifacts()
	if err != nil {
		return fmt.Errorf("save keys: %w", err)
	}

	for _, a := range []struct {
		path string
		data []byte
		perm os.FileMode
	}{
		{skPath, sk, 0o600},
		{bskPath, bsk, 0o644},
		{kskPath, ksk, 0o644},
	} {
		if err := os.WriteFile(a.path, a.data, a.perm); err != nil {
			return fmt.Errorf("save keys: %w", err)
		}
	}

	return nil
}

// Load reads the key artifacts of params from dir.
func Load(dir string, params lwe.Parameters) (*Keys, error) {
	skPath, _, _ := Paths(dir, params)

	data, err := readFile(skPath)
	if err != nil {
		return nil, err
	}
	sk, err := ParseSecretKey(params, data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", skPath, err)
	}

	evk, err := LoadEvaluationKeys(dir, params)
	if err != nil {
		return nil, err
	}

	return newKeys(params, sk, evk), nil
}

// ParseSecretKey decodes a secret key artifact of params.
func ParseSecretKey(params lwe.Parameters, data []byte) (*rlwe.SecretKey, error) {
	payload, err := decodeArtifact(data)
	if err != nil {
		return nil, err
	}

	sk := rlwe.NewSecretKey(params.LWE())
	if len(payload) != sk.BinarySize() {
		return nil, fmt.Errorf("%w: secret key of %d bytes, expected %d", ErrCorruptKey, len(payload), sk.BinarySize())
	}
	if err = unmarshal(sk, payload); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptKey, err)
	}
	if sk.Value.Q.N() != params.N() {
		return nil, fmt.Errorf("%w: secret key of dimension %d, expected %d", ErrCorruptKey, sk.Value.Q.N(), params.N())
	}
	return sk, nil
}

// LoadEvaluationKeys reads only the public evaluation keys of params from dir, for the
// compute side that must never see the secret key.
func LoadEvaluationKeys(dir string, params lwe.Parameters) (*lwe.EvaluationKeySet, error) {
	_, bskPath, kskPath := Paths(dir, params)

	bsk, err := readFile(bskPath)
	if err != nil {
		return nil, err
	}
	ksk, err := readFile(kskPath)
	if err != nil {
		return nil, err
	}

	evk, err := ParseEvaluationKeys(params, bsk, ksk)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", dir, err)
	}
	return evk, nil
}

// ParseEvaluationKeys decodes the bootstrapping and keyswitching artifacts of params.
func ParseEvaluationKeys(params lwe.Parameters, bootstrapping, keyswitching []byte) (*lwe.EvaluationKeySet, error) {
	evk := new(lwe.EvaluationKeySet)

	payload, err := decodeArtifact(bootstrapping)
	if err != nil {
		return nil, fmt.Errorf("bootstrapping key: %w", err)
	}
	if err = evk.UnmarshalBlindRotation(payload); err != nil {
		return nil, fmt.Errorf("%w: bootstrapping key: %w", ErrCorruptKey, err)
	}

	if payload, err = decodeArtifact(keyswitching); err != nil {
		return nil, fmt.Errorf("keyswitching key: %w", err)
	}
	if err = evk.UnmarshalKeySwitch(payload); err != nil {
		return nil, fmt.Errorf("%w: keyswitching key: %w", ErrCorruptKey, err)
	}

	if err = evk.Check(params); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptKey, err)
	}

	return evk, nil
}

// LoadOrGenerate loads the keys of params from dir, or generates and saves them when
// they do not exist yet. logger may be nil.
func LoadOrGenerate(dir string, params lwe.Parameters, logger *log.Logger) (*Keys, error) {
	if Exist(dir, params) {
		logf(logger, "🔑 Loading keys %s from %s", params.Prefix(), dir)
		return Load(dir, params)
	}

	logf(logger, "🔑 Generating keys %s (LWE N=%d, BR N=%d)", params.Prefix(), params.N(), params.BR().N())
	k := Generate(params)

	if err := k.Save(dir); err != nil {
		return nil, err
	}
	logf(logger, "✅ Keys saved to %s", dir)

	return k, nil
}

func logf(logger *log.Logger, format string, args ...interface{}) {
	if logger != nil {
		logger.Printf(format, args...)
	}
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

// encodeArtifact returns magic || blake3(payload) || payload.
func encodeArtifact(payload []byte) []byte {
	sum := blake3.Sum256(payload)

	buf := bytes.NewBuffer(make([]byte, 0, len(artifactMagic)+len(sum)+len(payload)))
	buf.Write(artifactMagic[:])
	buf.Write(sum[:])
	buf.Write(payload)

	return buf.Bytes()
}

func decodeArtifact(data []byte) ([]byte, error) {
	header := len(artifactMagic) + 32
	if len(data) < header || !bytes.Equal(data[:len(artifactMagic)], artifactMagic[:]) {
		return nil, fmt.Errorf("%w: bad header", ErrCorruptKey)
	}

	payload := data[header:]
	sum := blake3.Sum256(payload)
	if !bytes.Equal(sum[:], data[len(artifactMagic):header]) {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrCorruptKey)
	}

	return payload, nil
}

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrKeysNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

// fileExists reports whether filename exists and is a regular file.
func fileExists(filename string) bool {
	info, err := os.Stat(filename)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && !info.IsDir()
}
