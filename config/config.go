// Package config loads the JSON configuration shared by the command line and the server.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/z3rotig4r/tfhe_logreg/cipher"
	"github.com/z3rotig4r/tfhe_logreg/lwe"
	"github.com/z3rotig4r/tfhe_logreg/regression"
)

// ErrInvalidConfig is returned when a configuration file cannot be used.
var ErrInvalidConfig = errors.New("config: invalid configuration")

const (
	// Maximum ciphertext size: 10MB
	DefaultMaxCiphertextSize = 10 * 1024 * 1024
	// DefaultMaxFeatures bounds the number of features of one inference request.
	DefaultMaxFeatures = 256
)

// Server configures the HTTP surface.
type Server struct {
	Addr string `json:"addr"`
	// TLS is enabled when both files exist.
	CertFile string `json:"cert_file"`
	KeyFile  string `json:"key_file"`
	// ModelFile is the plaintext model served by /api/inference. It may be empty, in
	// which case inference is disabled until a model is trained through /api/train.
	ModelFile         string `json:"model_file"`
	MaxCiphertextSize int    `json:"max_ciphertext_size"`
	MaxFeatures       int    `json:"max_features"`
}

// Config is the complete configuration.
type Config struct {
	Parameters lwe.ParametersLiteral `json:"parameters"`
	Policy     string                `json:"policy"`
	Workers    int                   `json:"workers"`
	KeyDir     string                `json:"key_dir"`

	Plain     regression.Config `json:"plain"`
	Encrypted regression.Config `json:"encrypted"`

	Server Server `json:"server"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	params := lwe.DefaultParameters
	params.LogP = slices.Clone(params.LogP)

	return Config{
		Parameters: params,
		Policy:     cipher.PolicyNoiseless.String(),
		KeyDir:     "keys",
		Plain:      regression.PlainConfig(),
		Encrypted:  regression.EncryptedConfig(),
		Server: Server{
			Addr:              ":8080",
			CertFile:          "server.crt",
			KeyFile:           "server.key",
			MaxCiphertextSize: DefaultMaxCiphertextSize,
			MaxFeatures:       DefaultMaxFeatures,
		},
	}
}

// Load reads the file at path over the defaults: fields absent from the file keep their
// default value. Unknown fields are rejected.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	return Parse(data)
}

// Parse decodes a JSON configuration over the defaults and validates it. A "parameters"
// object is a complete literal: its absent fields are zero, not inherited from the
// default parameter set.
func Parse(data []byte) (Config, error) {
	cfg := Default()

	var sections map[string]json.RawMessage
	if err := json.Unmarshal(data, &sections); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if _, ok := sections["parameters"]; ok {
		cfg.Parameters = lwe.ParametersLiteral{}
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every section of the configuration.
func (c Config) Validate() error {
	if _, err := c.LWEParameters(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if _, err := c.CipherOptions(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.Workers < 0 {
		return fmt.Errorf("%w: negative worker count %d", ErrInvalidConfig, c.Workers)
	}
	if c.KeyDir == "" {
		return fmt.Errorf("%w: empty key directory", ErrInvalidConfig)
	}
	for name, r := range map[string]regression.Config{"plain": c.Plain, "encrypted": c.Encrypted} {
		if r.Iterations < 0 || r.NewtonRounds < 0 {
			return fmt.Errorf("%w: %s: negative iteration count", ErrInvalidConfig, name)
		}
	}
	if c.Server.MaxCiphertextSize <= 0 || c.Server.MaxFeatures <= 0 {
		return fmt.Errorf("%w: server limits must be positive", ErrInvalidConfig)
	}
	return nil
}

// LWEParameters instantiates the parameter set.
func (c Config) LWEParameters() (lwe.Parameters, error) {
	return lwe.NewParameters(c.Parameters)
}

// CipherOptions returns the evaluation options of the configuration.
func (c Config) CipherOptions() (cipher.Options, error) {
	policy, err := cipher.ParsePolicy(c.Policy)
	if err != nil {
		return cipher.Options{}, err
	}
	return cipher.Options{Policy: policy, Workers: c.Workers}, nil
}

// Save writes c as indented JSON.
func (c Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
