// Package extractor turns camera frames into fixed-dimension embeddings.
//
// An Extractor is a pure function of its loaded model: the same frame always
// produces the same embedding, and Extract has no side effects beyond compute.
package extractor

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/rs/zerolog"

	"github.com/luizprojeto1143/museus-frontend-sub000/pkg/types"
)

var (
	// ErrModelNotReady is returned by Extract when Load has not succeeded.
	ErrModelNotReady = errors.New("embedding model not loaded")

	// ErrModelLoad wraps every failure to load the backing model.
	ErrModelLoad = errors.New("embedding model failed to load")

	// ErrInvalidFrame is returned for nil or empty frames.
	ErrInvalidFrame = errors.New("invalid frame")
)

// Extractor produces embeddings from frames.
type Extractor interface {
	// Load loads the backing model. It is safe to call more than once.
	Load(ctx context.Context) error

	// Extract returns the embedding of frame.
	Extract(ctx context.Context, frame image.Image) (types.Embedding, error)

	// Dimension is the embedding length, known once Load succeeded.
	Dimension() int

	// ModelName identifies the model version the embeddings belong to.
	ModelName() string
}

// Extractor kinds.
const (
	KindHaar = "haar"
	KindHTTP = "http"
)

// Config selects and configures an extractor.
type Config struct {
	Kind      string        // "haar" (default) or "http"
	AssetPath string        // haar: optional YAML manifest
	ServerURL string        // http: inference sidecar base URL
	Model     string        // http: model name sent to the sidecar
	Timeout   time.Duration // http: per-request timeout
}

// NewFromConfig creates the extractor named by cfg.Kind.
func NewFromConfig(cfg Config, lg zerolog.Logger) (Extractor, error) {
	switch cfg.Kind {
	case KindHaar, "":
		return NewHaarExtractor(cfg.AssetPath), nil
	case KindHTTP:
		if cfg.ServerURL == "" {
			return nil, fmt.Errorf("http extractor requires a server URL")
		}
		return NewHTTPExtractor(HTTPConfig{
			BaseURL: cfg.ServerURL,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
		}, lg), nil
	default:
		return nil, fmt.Errorf("unsupported extractor kind: %q", cfg.Kind)
	}
}

func checkFrame(frame image.Image) error {
	if frame == nil {
		return fmt.Errorf("%w: nil image", ErrInvalidFrame)
	}
	b := frame.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return fmt.Errorf("%w: empty bounds %v", ErrInvalidFrame, b)
	}
	return nil
}
