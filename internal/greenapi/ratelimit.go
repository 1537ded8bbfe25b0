package greenapi

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter enforces a minimum interval between API requests regardless of
// caller concurrency, with adaptive back-pressure when the API throttles us.
type Limiter struct {
	limiter *rate.Limiter

	mu             sync.Mutex
	throttledUntil time.Time
}

// NewLimiter creates a limiter that allows one request per interval.
// Non-positive intervals disable the limiter's pacing (tests).
func NewLimiter(interval time.Duration) *Limiter {
	lim := rate.NewLimiter(rate.Inf, 1)
	if interval > 0 {
		lim = rate.NewLimiter(rate.Every(interval), 1)
	}
	return &Limiter{limiter: lim}
}

// Wait blocks until a request is allowed or the context is cancelled.
// An active throttle window is waited out before the interval pacing applies.
func (l *Limiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	wait := time.Until(l.throttledUntil)
	l.mu.Unlock()

	if wait > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}

	return l.limiter.Wait(ctx)
}

// Throttle blocks further requests for the given duration.
// Used after 429 responses to back off beyond the normal pacing.
// An existing longer throttle window is never shortened.
func (l *Limiter) Throttle(d time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	until := time.Now().Add(d)
	if until.After(l.throttledUntil) {
		l.throttledUntil = until
	}
}

// Throttled reports whether the limiter is currently in a throttle window.
func (l *Limiter) Throttled() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return time.Now().Before(l.throttledUntil)
}
