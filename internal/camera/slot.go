package camera

import (
	"image"
	"sync"
	"time"
)

// slot holds the newest frame of a stream. Publishing overwrites the previous
// frame so consumers never work on a stale image.
type slot struct {
	mu     sync.Mutex
	frame  Frame
	has    bool
	seq    uint64
	closed bool
}

// publish stores img as the newest frame and returns its sequence number.
// It returns false once the slot is closed.
func (s *slot) publish(img image.Image, at time.Time) (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, false
	}
	s.seq++
	s.frame = Frame{Seq: s.seq, Image: img, CapturedAt: at}
	s.has = true
	return s.seq, true
}

func (s *slot) latest() (Frame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || !s.has {
		return Frame{}, false
	}
	return s.frame, true
}

// close marks the slot closed and reports whether it was open.
func (s *slot) close() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.closed = true
	s.frame = Frame{}
	s.has = false
	return true
}
