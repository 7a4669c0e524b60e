// Package client is the data owner side of encrypted inference. It encrypts feature
// vectors under a secret key, submits them to a server and decrypts the class it returns.
// The server only ever sees ciphertexts.
package client

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tuneinsight/lattigo/v6/core/rlwe"
	"github.com/z3rotig4r/tfhe_logreg/lwe"
)

// ErrServer is returned when the server answers with a non-200 status.
var ErrServer = errors.New("client: server error")

// Client encrypts and decrypts under one secret key.
type Client struct {
	params lwe.Parameters
	enc    *lwe.Encryptor
	dec    *lwe.Decryptor

	baseURL string
	http    *http.Client
}

// New returns a client of the server at baseURL. httpClient may be nil to use a client
// with a 30 second timeout.
func New(baseURL string, params lwe.Parameters, sk *rlwe.SecretKey, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		params:  params,
		enc:     lwe.NewEncryptor(params, sk),
		dec:     lwe.NewDecryptor(params, sk),
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
	}
}

func (c *Client) Parameters() lwe.Parameters {
	return c.params
}

// EncryptFeatures encrypts every feature under [-bound, bound] and returns the base64
// serialized ciphertexts.
func (c *Client) EncryptFeatures(features []float64, bound float64) ([]string, error) {
	enc := c.params.Encoding(-bound, bound)

	out := make([]string, len(features))
	for i, v := range features {
		ct, err := c.enc.Encrypt(v, enc)
		if err != nil {
			return nil, fmt.Errorf("feature %d: %w", i, err)
		}
		data, err := c.params.MarshalCiphertext(ct)
		if err != nil {
			return nil, fmt.Errorf("feature %d: %w", i, err)
		}
		out[i] = base64.StdEncoding.EncodeToString(data)
	}
	return out, nil
}

// Decrypt decodes and decrypts a base64 serialized ciphertext.
func (c *Client) Decrypt(encoded string) (float64, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return 0, fmt.Errorf("decode ciphertext: %w", err)
	}
	ct, err := c.params.UnmarshalCiphertext(data)
	if err != nil {
		return 0, err
	}
	return c.dec.Decrypt(ct)
}

// DecryptDecision decrypts an encrypted class and returns 1 or -1.
func (c *Client) DecryptDecision(encoded string) (float64, error) {
	v, err := c.Decrypt(encoded)
	if err != nil {
		return 0, err
	}
	if v > 0 {
		return 1, nil
	}
	return -1, nil
}

type inferenceRequest struct {
	EncryptedFeatures []string `json:"encryptedFeatures"`
}

type inferenceResponse struct {
	EncryptedDecision string `json:"encryptedDecision"`
	Timestamp         int64  `json:"timestamp"`
}

// Infer encrypts features, asks the server to classify them and returns the decrypted
// class.
func (c *Client) Infer(ctx context.Context, features []float64, bound float64) (float64, error) {
	encrypted, err := c.EncryptFeatures(features, bound)
	if err != nil {
		return 0, fmt.Errorf("infer: %w", err)
	}

	body, err := json.Marshal(inferenceRequest{EncryptedFeatures: encrypted})
	if err != nil {
		return 0, fmt.Errorf("infer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/inference", bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("infer: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("infer: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return 0, fmt.Errorf("infer: %w: %s: %s", ErrServer, resp.Status, strings.TrimSpace(string(msg)))
	}

	var out inferenceResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("infer: decode response: %w", err)
	}

	class, err := c.DecryptDecision(out.EncryptedDecision)
	if err != nil {
		return 0, fmt.Errorf("infer: %w", err)
	}
	return class, nil
}
