package retry

import (
	"sync"
	"time"
)

// RateLimiter enforces a sliding-window calls-per-minute budget for remote
// providers and opens a circuit breaker after a run of consecutive
// failures. Shared by the transcription and analysis clients.
type RateLimiter struct {
	mu sync.Mutex

	maxPerMinute int
	calls        []time.Time

	consecutiveFailures int
	breakerThreshold    int
	breakerCooldown     time.Duration
	breakerOpenedAt     time.Time

	now func() time.Time
}

// NewRateLimiter creates a limiter. maxPerMinute <= 0 disables the window;
// breakerThreshold <= 0 disables the circuit breaker.
func NewRateLimiter(maxPerMinute, breakerThreshold int, breakerCooldown time.Duration) *RateLimiter {
	return &RateLimiter{
		maxPerMinute:     maxPerMinute,
		breakerThreshold: breakerThreshold,
		breakerCooldown:  breakerCooldown,
		now:              time.Now,
	}
}

// Allow reports whether a call may proceed now. When it may not, the
// returned duration is how long to wait before asking again.
func (r *RateLimiter) Allow() (bool, time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()

	if r.breakerOpen(now) {
		return false, r.breakerOpenedAt.Add(r.breakerCooldown).Sub(now)
	}

	if r.maxPerMinute <= 0 {
		return true, 0
	}

	cutoff := now.Add(-time.Minute)
	kept := r.calls[:0]
	for _, t := range r.calls {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	r.calls = kept

	if len(r.calls) >= r.maxPerMinute {
		return false, r.calls[0].Add(time.Minute).Sub(now)
	}

	return true, 0
}

// Record registers the outcome of a call. A success resets the failure run;
// enough consecutive failures open the breaker.
func (r *RateLimiter) Record(success bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	r.calls = append(r.calls, now)

	if success {
		r.consecutiveFailures = 0
		r.breakerOpenedAt = time.Time{}
		return
	}

	r.consecutiveFailures++
	if r.breakerThreshold > 0 && r.consecutiveFailures >= r.breakerThreshold && r.breakerOpenedAt.IsZero() {
		r.breakerOpenedAt = now
	}
}

// BreakerOpen reports whether the circuit breaker is currently open
func (r *RateLimiter) BreakerOpen() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.breakerOpen(r.now())
}

func (r *RateLimiter) breakerOpen(now time.Time) bool {
	if r.breakerOpenedAt.IsZero() {
		return false
	}
	if now.Sub(r.breakerOpenedAt) >= r.breakerCooldown {
		// Cooldown elapsed: half-open, allow the next attempt
		r.breakerOpenedAt = time.Time{}
		r.consecutiveFailures = 0
		return false
	}
	return true
}
