// Package server exposes the regression engine over HTTP. The server is the compute
// party: it holds evaluation keys and a plaintext model, never a secret key.
package server

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/z3rotig4r/tfhe_logreg/cipher"
	"github.com/z3rotig4r/tfhe_logreg/config"
	"github.com/z3rotig4r/tfhe_logreg/regression"
)

// Server serves training, classification and encrypted inference.
type Server struct {
	cfg   config.Server
	train regression.Config
	ctx   *cipher.Context

	mu    sync.RWMutex
	model []float64

	logger *log.Logger
}

// New returns a server. ctx may be nil, in which case encrypted inference is disabled.
// logger may be nil to use the standard logger.
func New(cfg config.Server, train regression.Config, ctx *cipher.Context, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	return &Server{cfg: cfg, train: train, ctx: ctx, logger: logger}
}

// SetModel replaces the model used by inference and by classification requests that do
// not carry weights.
func (s *Server) SetModel(beta []float64) {
	s.mu.Lock()
	s.model = append([]float64(nil), beta...)
	s.mu.Unlock()
}

// Model returns a copy of the current model.
func (s *Server) Model() []float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]float64(nil), s.model...)
}

// Handler returns the routes wrapped in the CORS middleware.
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/health", s.healthHandler).Methods("GET")
	router.HandleFunc("/api/train", s.trainHandler).Methods("POST", "OPTIONS")
	router.HandleFunc("/api/classify", s.classifyHandler).Methods("POST", "OPTIONS")
	router.HandleFunc("/api/accuracy", s.accuracyHandler).Methods("POST", "OPTIONS")
	router.HandleFunc("/api/inference", s.inferenceHandler).Methods("POST", "OPTIONS")

	return enableCORS(router)
}

// ListenAndServe serves on the configured address, with TLS when the certificate and
// key files exist.
func (s *Server) ListenAndServe() error {
	handler := s.Handler()
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Printf("📊 Model: %d weights", len(s.Model()))
	if s.ctx != nil {
		s.logger.Printf("🔐 Ready to perform encrypted inference (%s, %s policy)", s.ctx.Parameters().Prefix(), s.ctx.Policy())
	}

	if fileExists(s.cfg.CertFile) && fileExists(s.cfg.KeyFile) {
		s.logger.Printf("🔒 Server starting with HTTPS on %s", s.cfg.Addr)
		return srv.ListenAndServeTLS(s.cfg.CertFile, s.cfg.KeyFile)
	}

	s.logger.Printf("⚠️  Server starting with HTTP on %s (no TLS certificates found)", s.cfg.Addr)
	return srv.ListenAndServe()
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// bodyLimit bounds every request body: base64 inflates each ciphertext by 4/3.
func (s *Server) bodyLimit() int64 {
	return int64(s.cfg.MaxFeatures) * int64(s.cfg.MaxCiphertextSize) * 4 / 3
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.bodyLimit())
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request: %v", err), http.StatusBadRequest)
		return false
	}
	return true
}

func (s *Server) respond(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Printf("❌ Failed to write response: %v", err)
	}
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	status := http.StatusBadRequest
	if !isClientError(err) {
		status = http.StatusInternalServerError
	}
	s.logger.Printf("❌ %v", err)
	http.Error(w, err.Error(), status)
}

func isClientError(err error) bool {
	for _, target := range []error{
		regression.ErrDimensionMismatch,
		regression.ErrEmpty,
		regression.ErrLengthMismatch,
		errInvalidRequest,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

var errInvalidRequest = errors.New("invalid request")

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
		"weights":   len(s.Model()),
	}
	if s.ctx != nil {
		resp["parameters"] = s.ctx.Parameters().Prefix()
	}
	s.respond(w, resp)
}

type trainRequest struct {
	Rows       [][]float64 `json:"rows"`
	Labels     []float64   `json:"labels"`
	Iterations int         `json:"iterations,omitempty"`
}

type trainResponse struct {
	Weights []float64 `json:"weights"`
}

// trainHandler trains a plaintext model and makes it the served model.
func (s *Server) trainHandler(w http.ResponseWriter, r *http.Request) {
	var req trainRequest
	if !s.decode(w, r, &req) {
		return
	}

	cfg := s.train
	if req.Iterations < 0 {
		s.fail(w, fmt.Errorf("%w: negative iteration count", errInvalidRequest))
		return
	}
	if req.Iterations > 0 {
		cfg.Iterations = req.Iterations
	}

	beta, err := regression.TrainPlain(req.Rows, req.Labels, cfg)
	if err != nil {
		s.fail(w, err)
		return
	}

	s.SetModel(beta)
	s.logger.Printf("✅ Trained model on %d rows", len(req.Rows))
	s.respond(w, trainResponse{Weights: beta})
}

type classifyRequest struct {
	Weights []float64   `json:"weights,omitempty"`
	Rows    [][]float64 `json:"rows"`
}

type classifyResponse struct {
	Predictions []float64 `json:"predictions"`
}

func (s *Server) classifyHandler(w http.ResponseWriter, r *http.Request) {
	var req classifyRequest
	if !s.decode(w, r, &req) {
		return
	}

	weights := req.Weights
	if len(weights) == 0 {
		weights = s.Model()
	}

	predictions, err := regression.ClassifyPlain(weights, req.Rows)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.respond(w, classifyResponse{Predictions: predictions})
}

type accuracyRequest struct {
	Predictions []float64 `json:"predictions"`
	Labels      []float64 `json:"labels"`
}

type accuracyResponse struct {
	Accuracy float64 `json:"accuracy"`
	Total    int     `json:"total"`
}

func (s *Server) accuracyHandler(w http.ResponseWriter, r *http.Request) {
	var req accuracyRequest
	if !s.decode(w, r, &req) {
		return
	}

	acc, err := regression.Accuracy(req.Predictions, req.Labels)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.respond(w, accuracyResponse{Accuracy: acc, Total: len(req.Labels)})
}

// fileExists reports whether filename exists and is a regular file.
func fileExists(filename string) bool {
	if filename == "" {
		return false
	}
	info, err := os.Stat(filename)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && !info.IsDir()
}

type inferenceRequest struct {
	EncryptedFeatures []string `json:"encryptedFeatures"`
}

type inferenceResponse struct {
	EncryptedDecision string `json:"encryptedDecision"`
	Timestamp         int64  `json:"timestamp"`
}

// inferenceHandler scores serialized ciphertexts against the served model and returns the
// encrypted class.
func (s *Server) inferenceHandler(w http.ResponseWriter, r *http.Request) {
	if s.ctx == nil {
		http.Error(w, "Encrypted inference is not configured", http.StatusServiceUnavailable)
		return
	}

	model := s.Model()
	if len(model) == 0 {
		http.Error(w, "No model loaded", http.StatusServiceUnavailable)
		return
	}

	var req inferenceRequest
	if !s.decode(w, r, &req) {
		return
	}

	if len(req.EncryptedFeatures) != len(model) {
		http.Error(w, fmt.Sprintf("Expected %d encrypted features, got %d", len(model), len(req.EncryptedFeatures)), http.StatusBadRequest)
		return
	}

	s.logger.Printf("Received inference request with %d encrypted features", len(req.EncryptedFeatures))

	params := s.ctx.Parameters()
	elems := make([]*cipher.Float, len(req.EncryptedFeatures))
	for i, b64Str := range req.EncryptedFeatures {
		if base64.StdEncoding.DecodedLen(len(b64Str)) > s.cfg.MaxCiphertextSize {
			s.logger.Printf("❌ Feature %d exceeds size limit: %d bytes", i, len(b64Str))
			http.Error(w, fmt.Sprintf("Feature %d exceeds maximum size", i), http.StatusBadRequest)
			return
		}

		ctBytes, err := base64.StdEncoding.DecodeString(b64Str)
		if err != nil {
			s.logger.Printf("❌ Failed to decode feature %d: %v", i, err)
			http.Error(w, fmt.Sprintf("Failed to decode feature %d: %v", i, err), http.StatusBadRequest)
			return
		}

		ct, err := params.UnmarshalCiphertext(ctBytes)
		if err != nil {
			s.logger.Printf("❌ Failed to unmarshal ciphertext %d: %v", i, err)
			http.Error(w, fmt.Sprintf("Invalid ciphertext %d: %v", i, err), http.StatusBadRequest)
			return
		}

		elems[i] = s.ctx.Wrap(ct)
	}

	features, err := cipher.NewVector(s.ctx, elems)
	if err != nil {
		s.fail(w, err)
		return
	}

	start := time.Now()
	class, err := regression.Infer(model, features)
	if err != nil {
		s.fail(w, err)
		return
	}

	out, err := params.MarshalCiphertext(class.Ciphertext())
	if err != nil {
		s.fail(w, err)
		return
	}

	s.respond(w, inferenceResponse{
		EncryptedDecision: base64.StdEncoding.EncodeToString(out),
		Timestamp:         time.Now().Unix(),
	})

	s.logger.Printf("✅ Inference completed in %v", time.Since(start))
}
