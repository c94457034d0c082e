package telemetry

import (
	"sync"
	"sync/atomic"
	"time"
)

// RateLimiter allows one action per interval. It is used to keep telemetry
// failure logs from flooding the output.
type RateLimiter struct {
	interval time.Duration
	now      func() time.Time

	mu       sync.Mutex
	lastTime time.Time

	suppressed atomic.Int64
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(interval time.Duration) *RateLimiter {
	return &RateLimiter{
		interval: interval,
		now:      time.Now,
	}
}

// Allow returns true if an action is allowed based on rate limiting
func (r *RateLimiter) Allow() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if r.lastTime.IsZero() || now.Sub(r.lastTime) >= r.interval {
		r.lastTime = now
		return true
	}
	r.suppressed.Add(1)
	return false
}

// Suppressed returns how many actions were rejected so far.
func (r *RateLimiter) Suppressed() int64 {
	return r.suppressed.Load()
}
