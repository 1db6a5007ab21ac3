package engine

import (
	"context"
	"time"
)

// Pacer decides when the loop runs its next cycle. Wait is only called after
// the previous cycle has completed, so a pacer can never cause two cycles to
// overlap.
type Pacer interface {
	Wait(ctx context.Context) error
}

// IntervalPacer paces cycles at a fixed cadence. Time spent inside a cycle
// counts towards the interval; a slow cycle is followed immediately by the
// next one instead of queueing missed ticks.
type IntervalPacer struct {
	interval time.Duration
	next     time.Time
}

// NewIntervalPacer creates a pacer ticking every interval.
func NewIntervalPacer(interval time.Duration) *IntervalPacer {
	return &IntervalPacer{interval: interval}
}

// Wait implements Pacer.
func (p *IntervalPacer) Wait(ctx context.Context) error {
	now := time.Now()
	if p.next.IsZero() || p.next.Before(now) {
		p.next = now
	}
	delay := p.next.Sub(now)
	p.next = p.next.Add(p.interval)

	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// HostPacer lets the host drive the loop, one cycle per Tick, the way a
// display calls back once per painted frame.
type HostPacer struct {
	ticks chan struct{}
}

// NewHostPacer creates a host-driven pacer.
func NewHostPacer() *HostPacer {
	return &HostPacer{ticks: make(chan struct{})}
}

// Tick hands one cycle to the loop. It blocks until the loop is idle and
// waiting, which means every cycle started by an earlier Tick has completed.
func (p *HostPacer) Tick(ctx context.Context) error {
	select {
	case p.ticks <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Wait implements Pacer.
func (p *HostPacer) Wait(ctx context.Context) error {
	select {
	case <-p.ticks:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
