package extractor

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/luizprojeto1143/museus-frontend-sub000/internal/remote"
	"github.com/luizprojeto1143/museus-frontend-sub000/pkg/types"
)

// HTTPConfig configures an HTTPExtractor.
type HTTPConfig struct {
	// BaseURL of the inference sidecar (default: http://localhost:11434)
	BaseURL string

	// Model sent with every request (default: museus-vision)
	Model string

	// Timeout per request (default: 5s)
	Timeout time.Duration
}

// embedRequest is the body of POST /api/embed. Input is a base64 JPEG.
type embedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

// embedResponse holds one embedding per input; we always send one.
type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// HTTPExtractor delegates embedding to a local inference sidecar. Every
// call is wrapped by a circuit breaker so that a dead sidecar fails fast.
type HTTPExtractor struct {
	baseURL string
	model   string
	timeout time.Duration
	client  *http.Client
	breaker *remote.CircuitBreaker

	mu        sync.RWMutex
	dimension int
	loaded    bool
}

// NewHTTPExtractor creates a sidecar extractor.
func NewHTTPExtractor(cfg HTTPConfig, lg zerolog.Logger) *HTTPExtractor {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	if cfg.Model == "" {
		cfg.Model = "museus-vision"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}

	return &HTTPExtractor{
		baseURL: cfg.BaseURL,
		model:   cfg.Model,
		timeout: cfg.Timeout,
		client:  &http.Client{Timeout: cfg.Timeout},
		breaker: remote.NewCircuitBreaker(remote.DefaultCircuitBreakerConfig("extractor-sidecar"), lg),
	}
}

// Load checks that the sidecar is reachable and probes the embedding
// dimension with a blank frame.
func (e *HTTPExtractor) Load(ctx context.Context) error {
	if err := e.healthCheck(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrModelLoad, err)
	}

	probe := image.NewGray(image.Rect(0, 0, 8, 8))
	for i := range probe.Pix {
		probe.Pix[i] = 128
	}
	vec, err := e.embed(ctx, probe)
	if err != nil {
		return fmt.Errorf("%w: dimension probe: %v", ErrModelLoad, err)
	}

	e.mu.Lock()
	e.dimension = len(vec)
	e.loaded = true
	e.mu.Unlock()
	return nil
}

// Dimension returns the probed dimension, or 0 before Load.
func (e *HTTPExtractor) Dimension() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.dimension
}

// ModelName returns the configured sidecar model.
func (e *HTTPExtractor) ModelName() string {
	return e.model
}

// Extract sends frame to the sidecar and validates the returned dimension.
func (e *HTTPExtractor) Extract(ctx context.Context, frame image.Image) (types.Embedding, error) {
	e.mu.RLock()
	loaded, dim := e.loaded, e.dimension
	e.mu.RUnlock()

	if !loaded {
		return nil, ErrModelNotReady
	}
	if err := checkFrame(frame); err != nil {
		return nil, err
	}

	vec, err := e.embed(ctx, frame)
	if err != nil {
		return nil, err
	}
	if len(vec) != dim {
		return nil, fmt.Errorf("sidecar returned %d components, expected %d", len(vec), dim)
	}
	return vec, nil
}

func (e *HTTPExtractor) embed(ctx context.Context, frame image.Image) (types.Embedding, error) {
	result, err := e.breaker.Execute(ctx, func() (interface{}, error) {
		return e.doEmbed(ctx, frame)
	})
	if err != nil {
		if errors.Is(err, remote.ErrCircuitOpen) {
			return nil, fmt.Errorf("extractor sidecar circuit breaker open: %w", err)
		}
		return nil, err
	}
	return result.(types.Embedding), nil
}

func (e *HTTPExtractor) doEmbed(ctx context.Context, frame image.Image) (types.Embedding, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, frame, &jpeg.Options{Quality: 90}); err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}

	jsonData, err := json.Marshal(embedRequest{
		Model: e.model,
		Input: base64.StdEncoding.EncodeToString(buf.Bytes()),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/api/embed", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &remote.StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var respData embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&respData); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(respData.Embeddings) == 0 || len(respData.Embeddings[0]) == 0 {
		return nil, fmt.Errorf("sidecar returned empty embedding vector")
	}

	vec := types.Embedding(respData.Embeddings[0])
	if !vec.IsFinite() {
		return nil, fmt.Errorf("sidecar returned non-finite values")
	}
	return vec, nil
}

// healthCheck hits /api/version without the breaker.
func (e *HTTPExtractor) healthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/api/version", nil)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("health check returned status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

var (
	_ Extractor = (*HaarExtractor)(nil)
	_ Extractor = (*HTTPExtractor)(nil)
)
