// Package backoff computes retry delays: exponential growth with a cap,
// plus random jitter so concurrent workers do not retry in lockstep.
package backoff

import (
	"context"
	"math/rand"
	"time"
)

// Policy describes one retry schedule.
type Policy struct {
	// Initial is the deterministic delay before the first retry.
	Initial time.Duration
	// Multiplier scales the delay on each successive attempt.
	Multiplier float64
	// Cap bounds the deterministic component.
	Cap time.Duration
	// JitterMax is the upper bound (exclusive) of the random component
	// added to every delay.
	JitterMax time.Duration
}

// Delay returns the sleep before retry number attempt (1-based):
// min(Initial * Multiplier^(attempt-1), Cap) + jitter, jitter ∈ [0, JitterMax).
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := float64(p.Initial)
	for i := 1; i < attempt; i++ {
		d *= p.Multiplier
		if time.Duration(d) >= p.Cap {
			d = float64(p.Cap)
			break
		}
	}
	if time.Duration(d) > p.Cap {
		d = float64(p.Cap)
	}
	delay := time.Duration(d)
	if p.JitterMax > 0 {
		delay += time.Duration(rand.Int63n(int64(p.JitterMax)))
	}
	return delay
}

// Base returns the deterministic component of the delay for attempt,
// without jitter. Exposed for callers that need a predictable bound.
func (p Policy) Base(attempt int) time.Duration {
	saved := p.JitterMax
	p.JitterMax = 0
	d := p.Delay(attempt)
	p.JitterMax = saved
	return d
}

// Sleep blocks for the attempt's delay or until ctx is done, returning
// ctx.Err() in the latter case.
func (p Policy) Sleep(ctx context.Context, attempt int) error {
	timer := time.NewTimer(p.Delay(attempt))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
