// Package engine runs the scan loop: it samples camera frames, extracts an
// embedding, classifies it against the reference dataset and turns the
// per-cycle candidates into stable match events.
package engine

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/luizprojeto1143/museus-frontend-sub000/internal/classifier"
	"github.com/luizprojeto1143/museus-frontend-sub000/pkg/types"
)

var (
	// ErrNotReady is returned by Begin and the dataset operations before the
	// model has finished loading.
	ErrNotReady = errors.New("engine not ready")

	// ErrModelFailed is returned once the model failed to load. Recognition
	// is unavailable for the lifetime of the engine.
	ErrModelFailed = errors.New("model failed to load")

	// ErrScanActive is returned by dataset mutations while scanning or matched.
	ErrScanActive = errors.New("dataset cannot change while scanning")

	// ErrAlreadyStarted is returned by a second call to Start.
	ErrAlreadyStarted = errors.New("engine already started")

	// ErrDatasetUnread is returned by Save when the persisted dataset could
	// not be read at startup and saving would overwrite it.
	ErrDatasetUnread = errors.New("persisted dataset was not read")
)

// Config holds configuration for the scan engine.
type Config struct {
	// TenantID keys the persisted dataset and the entity catalog.
	TenantID string

	// Classifier configures the k-nearest-neighbour vote.
	Classifier classifier.Config

	// AcceptThreshold is the confidence a candidate needs to count towards
	// a match (default: 0.8).
	AcceptThreshold float64

	// ReleaseThreshold is the confidence below which a shown match counts
	// towards release (default: AcceptThreshold).
	ReleaseThreshold float64

	// Hysteresis is the number of consecutive cycles h a condition must hold
	// before the visible match state changes (default: 2).
	Hysteresis int

	// FrameInterval paces the loop when no Pacer is supplied (default: 100ms).
	FrameInterval time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	cc := classifier.DefaultConfig()
	cc.MinSimilarity = 0.5
	return Config{
		TenantID:         "default",
		Classifier:       cc,
		AcceptThreshold:  0.8,
		ReleaseThreshold: 0.8,
		Hysteresis:       2,
		FrameInterval:    100 * time.Millisecond,
	}
}

// Validate checks if the config is valid.
func (c *Config) Validate() error {
	if c.TenantID == "" {
		return fmt.Errorf("TenantID is required")
	}
	if math.IsNaN(c.AcceptThreshold) || c.AcceptThreshold <= 0 || c.AcceptThreshold > 1 {
		return fmt.Errorf("AcceptThreshold must be in (0, 1], got %v", c.AcceptThreshold)
	}
	if math.IsNaN(c.ReleaseThreshold) || c.ReleaseThreshold <= 0 || c.ReleaseThreshold > c.AcceptThreshold {
		return fmt.Errorf("ReleaseThreshold must be in (0, AcceptThreshold], got %v", c.ReleaseThreshold)
	}
	if c.Hysteresis < 1 {
		return fmt.Errorf("Hysteresis must be >= 1, got %d", c.Hysteresis)
	}
	if c.FrameInterval < 0 {
		return fmt.Errorf("FrameInterval must be >= 0, got %v", c.FrameInterval)
	}
	return nil
}

// Stats is a point-in-time view of the engine counters.
type Stats struct {
	State     types.ScanState `json:"state"`
	SessionID string          `json:"session_id,omitempty"`
	Model     string          `json:"model,omitempty"`
	Dimension int             `json:"dimension"`
	Labels    int             `json:"labels"`
	Examples  int             `json:"examples"`

	// Cycles counts pacer ticks handled by the loop.
	Cycles uint64 `json:"cycles"`

	// Inferences counts extract+classify passes.
	Inferences uint64 `json:"inferences"`

	// StaleFrames counts cycles that found no frame newer than the last one processed.
	StaleFrames uint64 `json:"stale_frames"`

	// Discarded counts inference results dropped because the session stopped.
	Discarded uint64 `json:"discarded"`

	// Failures counts cycles where extraction or classification failed.
	Failures uint64 `json:"failures"`

	Matches  uint64 `json:"matches"`
	Releases uint64 `json:"releases"`
}
