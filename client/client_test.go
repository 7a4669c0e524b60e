package client

import (
	"context"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/z3rotig4r/tfhe_logreg/cipher"
	"github.com/z3rotig4r/tfhe_logreg/config"
	"github.com/z3rotig4r/tfhe_logreg/keys"
	"github.com/z3rotig4r/tfhe_logreg/lwe"
	"github.com/z3rotig4r/tfhe_logreg/regression"
	"github.com/z3rotig4r/tfhe_logreg/server"
)

var (
	testKeysOnce sync.Once
	testKeys     *keys.Keys
	testErr      error
)

func getTestKeys(t *testing.T) *keys.Keys {
	t.Helper()
	testKeysOnce.Do(func() {
		var params lwe.Parameters
		if params, testErr = lwe.NewParameters(lwe.TestParameters); testErr != nil {
			return
		}
		testKeys = keys.Generate(params)
	})
	require.NoError(t, testErr)
	return testKeys
}

// newClient returns a client that only holds the secret key parsed from its artifact.
func newClient(t *testing.T, k *keys.Keys, url string) *Client {
	t.Helper()
	sk, _, _, err := k.Artifacts()
	require.NoError(t, err)
	secret, err := keys.ParseSecretKey(k.Parameters(), sk)
	require.NoError(t, err)
	return New(url, k.Parameters(), secret, nil)
}

func TestEncryptDecrypt(t *testing.T) {
	k := getTestKeys(t)
	c := newClient(t, k, "http://localhost")

	encrypted, err := c.EncryptFeatures([]float64{0.5, -1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, encrypted, 3)

	for i, want := range []float64{0.5, -1, 0} {
		v, err := c.Decrypt(encrypted[i])
		require.NoError(t, err)
		assert.InDelta(t, want, v, 0.1)
	}

	class, err := c.DecryptDecision(encrypted[0])
	require.NoError(t, err)
	assert.Equal(t, 1.0, class)
	class, err = c.DecryptDecision(encrypted[1])
	require.NoError(t, err)
	assert.Equal(t, -1.0, class)

	_, err = c.EncryptFeatures([]float64{3}, 1)
	require.Error(t, err)
	_, err = c.Decrypt("!!")
	require.Error(t, err)
}

func TestInfer(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping encrypted inference in -short mode")
	}

	k := getTestKeys(t)

	// the server only receives the evaluation keys
	_, bsk, ksk, err := k.Artifacts()
	require.NoError(t, err)
	evk, err := keys.ParseEvaluationKeys(k.Parameters(), bsk, ksk)
	require.NoError(t, err)
	ctx, err := cipher.NewContext(k.Parameters(), evk, cipher.Options{Workers: 2})
	require.NoError(t, err)

	s := server.New(config.Default().Server, regression.PlainConfig(), ctx, log.New(io.Discard, "", 0))
	s.SetModel([]float64{2, -2})
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	c := newClient(t, k, ts.URL+"/")
	for _, tc := range []struct {
		features []float64
		want     float64
	}{
		{[]float64{1, 0}, 1},
		{[]float64{0, 1}, -1},
	} {
		class, err := c.Infer(context.Background(), tc.features, 1)
		require.NoError(t, err)
		assert.Equal(t, tc.want, class, "features=%v", tc.features)
	}

	_, err = c.Infer(context.Background(), []float64{1}, 1)
	require.ErrorIs(t, err, ErrServer)
}

func TestInferUnavailable(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/inference", r.URL.Path)
		http.Error(w, "No model loaded", http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	c := newClient(t, getTestKeys(t), ts.URL)
	_, err := c.Infer(context.Background(), []float64{1}, 1)
	require.ErrorIs(t, err, ErrServer)
	assert.Contains(t, err.Error(), "No model loaded")
}
