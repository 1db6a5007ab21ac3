// Package camera owns the lifecycle of the capture device.
//
// A Manager moves between Released, Acquiring and Active. It never holds its
// lock across a device call, so Stop is safe from any goroutine, including
// from inside a frame callback.
package camera

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	// ErrPermissionDenied is returned when the user or OS refuses camera
	// access. The caller may retry.
	ErrPermissionDenied = errors.New("camera permission denied")

	// ErrAcquireCancelled is returned by Start when Stop ran while the device
	// was being opened. The opened stream has already been closed.
	ErrAcquireCancelled = errors.New("camera acquisition cancelled")

	// ErrAcquireInProgress is returned by Start while another Start is opening the device.
	ErrAcquireInProgress = errors.New("camera acquisition in progress")

	// ErrDeviceUnavailable is returned when the device does not exist or cannot be opened.
	ErrDeviceUnavailable = errors.New("camera device unavailable")

	// ErrNoFrame is returned when no frame has been captured yet.
	ErrNoFrame = errors.New("no frame captured")
)

// Frame is one captured image. Seq is strictly increasing per source.
type Frame struct {
	Seq        uint64
	Image      image.Image
	CapturedAt time.Time
}

// FrameSource is an open capture stream. Sources keep only the newest frame:
// frames that arrive while the consumer is busy are overwritten.
type FrameSource interface {
	// Latest returns the newest frame, or false when nothing was captured yet.
	Latest() (Frame, bool)

	// Peek returns the frame Latest would report without consuming it.
	// Observers such as the preview use it.
	Peek() (Frame, bool)

	// Close releases the stream. It is safe to call more than once.
	Close() error
}

// Device opens capture streams.
type Device interface {
	Open(ctx context.Context) (FrameSource, error)
	Name() string
}

// Sink is a display surface bound to the live stream, such as a preview.
type Sink interface {
	Attach(src FrameSource)
	Detach()
}

// State is the manager's resource state.
type State string

const (
	StateReleased  State = "released"
	StateAcquiring State = "acquiring"
	StateActive    State = "active"
)

// Manager serialises access to one Device.
type Manager struct {
	device Device
	sink   Sink
	lg     zerolog.Logger

	mu     sync.Mutex
	state  State
	source FrameSource
	gen    uint64 // bumped by every Start and Stop
}

// NewManager creates a manager for device. sink may be nil.
func NewManager(device Device, sink Sink, lg zerolog.Logger) *Manager {
	return &Manager{
		device: device,
		sink:   sink,
		lg:     lg.With().Str("component", "camera").Str("device", device.Name()).Logger(),
		state:  StateReleased,
	}
}

// State returns the current resource state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Source returns the active stream, or nil.
func (m *Manager) Source() FrameSource {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.source
}

// Start acquires the device. When already Active it returns the existing
// stream. A permission denial leaves the manager Released and is reported
// as ErrPermissionDenied.
func (m *Manager) Start(ctx context.Context) (FrameSource, error) {
	m.mu.Lock()
	switch m.state {
	case StateActive:
		src := m.source
		m.mu.Unlock()
		return src, nil
	case StateAcquiring:
		m.mu.Unlock()
		return nil, ErrAcquireInProgress
	}
	m.state = StateAcquiring
	m.gen++
	gen := m.gen
	m.mu.Unlock()

	m.lg.Debug().Msg("acquiring camera")
	src, err := m.device.Open(ctx)

	m.mu.Lock()
	if m.gen != gen {
		// Stop ran while we were opening.
		m.mu.Unlock()
		if src != nil {
			if cerr := src.Close(); cerr != nil {
				m.lg.Warn().Err(cerr).Msg("failed to close cancelled stream")
			}
		}
		return nil, ErrAcquireCancelled
	}
	if err != nil {
		m.state = StateReleased
		m.mu.Unlock()
		if errors.Is(err, ErrPermissionDenied) {
			m.lg.Warn().Err(err).Msg("camera permission denied")
			return nil, err
		}
		m.lg.Error().Err(err).Msg("failed to open camera")
		return nil, fmt.Errorf("open camera %s: %w", m.device.Name(), err)
	}

	m.state = StateActive
	m.source = src
	if m.sink != nil {
		m.sink.Attach(src)
	}
	m.mu.Unlock()

	m.lg.Info().Msg("camera active")
	return src, nil
}

// Stop closes the stream, detaches the sink and returns to Released. It is
// idempotent and cancels an acquisition in progress.
func (m *Manager) Stop() error {
	m.mu.Lock()
	prev := m.state
	src := m.source
	m.gen++
	m.state = StateReleased
	m.source = nil
	if m.sink != nil && src != nil {
		m.sink.Detach()
	}
	m.mu.Unlock()

	if prev == StateReleased {
		return nil
	}
	m.lg.Info().Str("from", string(prev)).Msg("camera released")

	if src == nil {
		return nil
	}
	if err := src.Close(); err != nil {
		return fmt.Errorf("close camera stream: %w", err)
	}
	return nil
}
