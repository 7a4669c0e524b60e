package keys

import (
	"bytes"
	"log"
	"os"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/z3rotig4r/tfhe_logreg/cipher"
	"github.com/z3rotig4r/tfhe_logreg/lwe"
)

var (
	testKeysOnce sync.Once
	testKeys     *Keys
)

func getTestKeys(t *testing.T) *Keys {
	t.Helper()
	testKeysOnce.Do(func() {
		params, err := lwe.NewParameters(lwe.TestParameters)
		if err != nil {
			panic(err)
		}
		testKeys = Generate(params)
	})
	return testKeys
}

func TestSaveLoad(t *testing.T) {
	k := getTestKeys(t)
	dir := t.TempDir()

	require.False(t, Exist(dir, k.Parameters()))
	require.NoError(t, k.Save(dir))
	require.True(t, Exist(dir, k.Parameters()))

	loaded, err := Load(dir, k.Parameters())
	require.NoError(t, err)
	require.True(t, loaded.secret.Equal(k.secret))

	// a value encrypted with the original keys decrypts with the loaded ones
	enc := k.Parameters().Encoding(-4, 4)
	ct, err := k.Encryptor().Encrypt(2.5, enc)
	require.NoError(t, err)
	v, err := loaded.Decryptor().Decrypt(ct)
	require.NoError(t, err)
	assert.InDelta(t, 2.5, v, 1e-3)

	// and the loaded evaluation keys bootstrap correctly
	ctx, err := loaded.Context(cipher.Options{Workers: 1})
	require.NoError(t, err)
	f, err := ctx.Wrap(ct).Clamp(-2, 2)
	require.NoError(t, err)
	v, err = loaded.DecryptScalar(f)
	require.NoError(t, err)
	assert.InDelta(t, 2, v, 0.4)
}

func TestLoadErrors(t *testing.T) {
	k := getTestKeys(t)

	_, err := Load(t.TempDir(), k.Parameters())
	require.ErrorIs(t, err, ErrKeysNotFound)

	dir := t.TempDir()
	require.NoError(t, k.Save(dir))
	sk, bsk, ksk := Paths(dir, k.Parameters())

	t.Run("Checksum", func(t *testing.T) {
		data, err := os.ReadFile(bsk)
		require.NoError(t, err)
		data[len(data)-1] ^= 0xff
		require.NoError(t, os.WriteFile(bsk, data, 0o644))
		defer func() {
			data[len(data)-1] ^= 0xff
			require.NoError(t, os.WriteFile(bsk, data, 0o644))
		}()

		_, err = Load(dir, k.Parameters())
		require.ErrorIs(t, err, ErrCorruptKey)
	})

	t.Run("Header", func(t *testing.T) {
		data, err := os.ReadFile(ksk)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(ksk, data[:10], 0o644))
		defer func() { require.NoError(t, os.WriteFile(ksk, data, 0o644)) }()

		_, err = Load(dir, k.Parameters())
		require.ErrorIs(t, err, ErrCorruptKey)
	})

	t.Run("Payload", func(t *testing.T) {
		data, err := os.ReadFile(sk)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(sk, encodeArtifact([]byte("not a key")), 0o600))
		defer func() { require.NoError(t, os.WriteFile(sk, data, 0o600)) }()

		_, err = Load(dir, k.Parameters())
		require.ErrorIs(t, err, ErrCorruptKey)
	})

	t.Run("Missing", func(t *testing.T) {
		require.NoError(t, os.Remove(ksk))
		assert.False(t, Exist(dir, k.Parameters()))
		_, err := Load(dir, k.Parameters())
		require.ErrorIs(t, err, ErrKeysNotFound)
	})
}

func TestLoadOrGenerate(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping key generation in -short mode")
	}

	params := getTestKeys(t).Parameters()
	dir := t.TempDir()

	var buf bytes.Buffer
	logger := log.New(&buf, "", 0)

	generated, err := LoadOrGenerate(dir, params, logger)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Generating")
	require.True(t, Exist(dir, params))

	buf.Reset()
	loaded, err := LoadOrGenerate(dir, params, logger)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Loading")
	assert.True(t, loaded.secret.Equal(generated.secret))
}

func TestBulkEncryption(t *testing.T) {
	k := getTestKeys(t)
	ctx, err := k.Context(cipher.Options{Workers: 2})
	require.NoError(t, err)

	enc := k.Parameters().Encoding(-10, 10)
	approx := cmpopts.EquateApprox(0, 1e-3)

	f, err := k.EncryptScalar(ctx, -7.5, enc)
	require.NoError(t, err)
	v, err := k.DecryptScalar(f)
	require.NoError(t, err)
	assert.InDelta(t, -7.5, v, 1e-3)

	vec, err := k.EncryptVector(ctx, []float64{1, 2, -3}, enc)
	require.NoError(t, err)
	got, err := k.DecryptVector(vec)
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff([]float64{1, 2, -3}, got, approx))

	rows := [][]float64{{1, 2}, {3, 4}, {-5, 6}}
	m, err := k.EncryptMatrix(ctx, rows, enc)
	require.NoError(t, err)
	assert.Equal(t, 3, m.Rows())
	gotRows, err := k.DecryptMatrix(m)
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(rows, gotRows, approx))

	_, err = k.EncryptMatrix(ctx, [][]float64{{1, 2}, {3}}, enc)
	require.ErrorIs(t, err, cipher.ErrDimensionMismatch)

	_, err = k.EncryptVector(ctx, []float64{1, 20}, enc)
	require.ErrorIs(t, err, lwe.ErrOutOfRange)
}

func TestContextParametersMismatch(t *testing.T) {
	k := getTestKeys(t)

	lit := lwe.TestParameters
	lit.PrecisionBits = 4
	params, err := lwe.NewParameters(lit)
	require.NoError(t, err)

	// same rings, different parameter set: the context is valid but foreign to k
	ctx, err := cipher.NewContext(params, k.EvaluationKeys(), cipher.Options{Workers: 1})
	require.NoError(t, err)

	_, err = k.EncryptScalar(ctx, 1, params.Encoding(-2, 2))
	require.ErrorIs(t, err, lwe.ErrParametersMismatch)
}

func TestLoadEvaluationKeys(t *testing.T) {
	k := getTestKeys(t)
	dir := t.TempDir()
	require.NoError(t, k.Save(dir))

	sk, _, _ := Paths(dir, k.Parameters())
	require.NoError(t, os.Remove(sk))

	// the compute side loads without the secret key
	evk, err := LoadEvaluationKeys(dir, k.Parameters())
	require.NoError(t, err)
	require.NoError(t, evk.Check(k.Parameters()))

	_, err = Load(dir, k.Parameters())
	require.ErrorIs(t, err, ErrKeysNotFound)
}

func TestArtifacts(t *testing.T) {
	k := getTestKeys(t)
	params := k.Parameters()

	sk, bsk, ksk, err := k.Artifacts()
	require.NoError(t, err)

	secret, err := ParseSecretKey(params, sk)
	require.NoError(t, err)
	assert.True(t, secret.Equal(k.secret))

	evk, err := ParseEvaluationKeys(params, bsk, ksk)
	require.NoError(t, err)
	require.NoError(t, evk.Check(params))

	tampered := append([]byte(nil), bsk...)
	tampered[len(tampered)-1] ^= 0xff
	_, err = ParseEvaluationKeys(params, tampered, ksk)
	require.ErrorIs(t, err, ErrCorruptKey)

	_, err = ParseSecretKey(params, sk[:20])
	require.ErrorIs(t, err, ErrCorruptKey)

	// well-formed envelopes around payloads that are not secret keys
	for _, payload := range [][]byte{
		[]byte("not a key"),
		nil,
		make([]byte, secret.BinarySize()+1),
	} {
		_, err = ParseSecretKey(params, encodeArtifact(payload))
		require.ErrorIs(t, err, ErrCorruptKey, "payload of %d bytes", len(payload))
	}
	_, err = ParseEvaluationKeys(params, encodeArtifact([]byte("not a key")), ksk)
	require.ErrorIs(t, err, ErrCorruptKey)
}
