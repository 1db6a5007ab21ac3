package camera

import (
	"context"
	"image"
	"sync"
	"time"
)

// StaticDevice replays a fixed list of frames. Each call to Latest on its
// stream yields the next frame, as if the camera had captured a new image
// between two reads. Without looping the last frame is repeated with an
// unchanged sequence number once the list is exhausted.
type StaticDevice struct {
	frames []image.Image
	loop   bool

	mu      sync.Mutex
	openErr error
	opens   int
	open    int
}

// NewStaticDevice creates a device replaying frames.
func NewStaticDevice(frames ...image.Image) *StaticDevice {
	return &StaticDevice{frames: frames}
}

// Looping makes the stream restart from the first frame when exhausted.
func (d *StaticDevice) Looping() *StaticDevice {
	d.loop = true
	return d
}

// FailOpen makes subsequent Open calls return err (nil to clear).
func (d *StaticDevice) FailOpen(err error) {
	d.mu.Lock()
	d.openErr = err
	d.mu.Unlock()
}

// Name implements Device.
func (d *StaticDevice) Name() string { return "static" }

// Open implements Device.
func (d *StaticDevice) Open(ctx context.Context) (FrameSource, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.openErr != nil {
		return nil, d.openErr
	}
	d.opens++
	d.open++
	return &staticSource{device: d}, nil
}

// Opens returns how many streams were opened in total.
func (d *StaticDevice) Opens() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opens
}

// OpenStreams returns how many streams are currently open.
func (d *StaticDevice) OpenStreams() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.open
}

type staticSource struct {
	device *StaticDevice

	mu     sync.Mutex
	next   int
	seq    uint64
	last   Frame
	closed bool
}

func (s *staticSource) Latest() (Frame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	frames := s.device.frames
	if s.closed || len(frames) == 0 {
		return Frame{}, false
	}
	if s.next >= len(frames) {
		if !s.device.loop {
			return s.last, true
		}
		s.next = 0
	}

	s.seq++
	s.last = Frame{Seq: s.seq, Image: frames[s.next], CapturedAt: time.Now()}
	s.next++
	return s.last, true
}

// Peek returns the last delivered frame, or the upcoming one before the first
// Latest. It never advances the stream.
func (s *staticSource) Peek() (Frame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	frames := s.device.frames
	if s.closed || len(frames) == 0 {
		return Frame{}, false
	}
	if s.seq == 0 {
		return Frame{Image: frames[0]}, true
	}
	return s.last, true
}

func (s *staticSource) Close() error {
	s.mu.Lock()
	wasOpen := !s.closed
	s.closed = true
	s.mu.Unlock()

	if wasOpen {
		s.device.mu.Lock()
		s.device.open--
		s.device.mu.Unlock()
	}
	return nil
}
