package papersources

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter paces requests to one provider. On top of the token bucket it
// can be paused, so a Retry-After from the provider holds back every caller
// sharing the source, not only the request that received it.
type RateLimiter struct {
	limiter *rate.Limiter

	mu          sync.Mutex
	pausedUntil time.Time
	now         func() time.Time
}

// NewRateLimiter creates a new rate limiter.
// ratePerSecond is the sustained rate of requests per second.
// burst is the maximum burst size (number of tokens that can be consumed at once).
//
// Example configurations:
//   - PubMed without a key: NewRateLimiter(3, 3)
//   - arXiv: NewRateLimiter(1, 1)
func NewRateLimiter(ratePerSecond float64, burst int) *RateLimiter {
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(ratePerSecond), burst),
		now:     time.Now,
	}
}

// Wait blocks until the pause, if any, has elapsed and a token is available,
// or until ctx is done.
func (r *RateLimiter) Wait(ctx context.Context) error {
	if d := r.PausedFor(); d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	return r.limiter.Wait(ctx)
}

// Allow reports whether a request may go out now without waiting.
func (r *RateLimiter) Allow() bool {
	if r.PausedFor() > 0 {
		return false
	}
	return r.limiter.Allow()
}

// PauseFor holds back every request for d. An existing longer pause is kept.
func (r *RateLimiter) PauseFor(d time.Duration) {
	if d <= 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if until := r.now().Add(d); until.After(r.pausedUntil) {
		r.pausedUntil = until
	}
}

// PausedFor returns the remaining pause, or 0.
func (r *RateLimiter) PausedFor() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	if remaining := r.pausedUntil.Sub(r.now()); remaining > 0 {
		return remaining
	}
	return 0
}
