// Package ratelimit provides the process-wide request pacing for the tile
// coverage prober.
//
// The tile service publishes a per-minute request ceiling for the whole
// application. Every concurrent fetcher in the pool shares one Pacer, which
// releases request slots evenly spaced at the configured rate instead of in
// bursts.
//
// Implementation:
//
// Pacer (single-slot leaky bucket):
//   - One shared "next allowed" instant advanced by 1/rate under a lock
//   - Dispatches are evenly spaced; a quiet period never builds up a burst
//   - Safe for any number of concurrent callers
//
// Interface:
//
// Rate limiters implement the Limiter interface:
//   - Allow() bool - Grant a slot only if no waiting is needed
//   - Wait(ctx) error - Block until a slot is granted or ctx is cancelled
//   - Reset() - Reset the limiter state
//
// Usage:
//
//	// 50,000 requests/minute ceiling, 85% safety margin
//	limiter := ratelimit.NewPacerFromLimit(50000, 0.85, 0)
//
//	if err := limiter.Wait(ctx); err != nil {
//	    return err // cancelled while waiting
//	}
//	// Proceed with request
package ratelimit
