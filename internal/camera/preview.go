package camera

import (
	"image/jpeg"
	"io"
	"sync"
)

// PreviewSink exposes the live stream to the HTTP preview endpoint.
type PreviewSink struct {
	mu  sync.RWMutex
	src FrameSource
}

// NewPreviewSink creates a detached preview.
func NewPreviewSink() *PreviewSink {
	return &PreviewSink{}
}

// Attach implements Sink.
func (p *PreviewSink) Attach(src FrameSource) {
	p.mu.Lock()
	p.src = src
	p.mu.Unlock()
}

// Detach implements Sink.
func (p *PreviewSink) Detach() {
	p.mu.Lock()
	p.src = nil
	p.mu.Unlock()
}

// Attached reports whether a stream is bound.
func (p *PreviewSink) Attached() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.src != nil
}

// WriteJPEG encodes the newest frame to w without consuming it. It returns
// ErrNoFrame when no stream is attached or nothing has been captured.
func (p *PreviewSink) WriteJPEG(w io.Writer, quality int) error {
	p.mu.RLock()
	src := p.src
	p.mu.RUnlock()

	if src == nil {
		return ErrNoFrame
	}
	frame, ok := src.Peek()
	if !ok || frame.Image == nil {
		return ErrNoFrame
	}
	return jpeg.Encode(w, frame.Image, &jpeg.Options{Quality: quality})
}
