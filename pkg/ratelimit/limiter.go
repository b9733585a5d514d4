package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter defines the interface for rate limiting
type Limiter interface {
	// Allow checks if a request may be dispatched right now without waiting
	Allow() bool
	// Wait blocks until the rate limit allows another request or the
	// context is cancelled
	Wait(ctx context.Context) error
	// Reset resets the rate limiter state
	Reset()
}

// Pacer is a single-slot leaky-bucket limiter shared by all concurrent
// fetchers. It keeps one "next allowed" instant and advances it by the
// request interval under a lock, so dispatches come out evenly spaced at
// the configured rate rather than in bursts. The instant never moves
// backwards and no two callers are ever granted the same slot.
type Pacer struct {
	interval time.Duration
	mu       sync.Mutex
	next     time.Time
}

// NewPacer creates a pacer that sustains requestsPerSecond. A rate of zero
// or less disables pacing.
func NewPacer(requestsPerSecond float64) *Pacer {
	var interval time.Duration
	if requestsPerSecond > 0 {
		interval = time.Duration(float64(time.Second) / requestsPerSecond)
	}
	return &Pacer{interval: interval}
}

// NewPacerFromLimit derives the sustained rate from a provider's published
// per-minute ceiling scaled by a safety factor. An explicit overrideRPS
// takes effect only below the derived safe rate; the ceiling always wins.
func NewPacerFromLimit(maxPerMinute int, safetyFactor, overrideRPS float64) *Pacer {
	return NewPacer(EffectiveRate(maxPerMinute, safetyFactor, overrideRPS))
}

// EffectiveRate returns the requests-per-second the pacer will actually
// sustain for the given ceiling, safety factor and optional override.
func EffectiveRate(maxPerMinute int, safetyFactor, overrideRPS float64) float64 {
	safeRPM := float64(maxPerMinute) * safetyFactor
	if safeRPM < 1 {
		safeRPM = 1
	}
	safeRPS := safeRPM / 60.0

	rps := overrideRPS
	if rps <= 0 || rps > safeRPS {
		rps = safeRPS
	}
	return rps
}

// Interval returns the spacing between granted slots
func (p *Pacer) Interval() time.Duration {
	return p.interval
}

// Allow grants a slot only if it would not require waiting
func (p *Pacer) Allow() bool {
	if p.interval <= 0 {
		return true
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	if p.next.After(now) {
		return false
	}
	p.next = now.Add(p.interval)
	return true
}

// Wait reserves the next free slot and sleeps until it arrives. The
// reservation happens in an O(1) critical section; the sleep runs outside
// the lock so concurrent callers queue up without serializing on it.
func (p *Pacer) Wait(ctx context.Context) error {
	if p.interval <= 0 {
		return ctx.Err()
	}

	p.mu.Lock()
	now := time.Now()
	if p.next.Before(now) {
		p.next = now
	}
	reserved := p.next
	p.next = p.next.Add(p.interval)
	p.mu.Unlock()

	wait := time.Until(reserved)
	if wait <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Reset clears the shared instant so the next caller dispatches immediately
func (p *Pacer) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.next = time.Time{}
}
