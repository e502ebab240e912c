package internal

import (
	"sync"
	"time"
)

// RateLimiter admits at most limit events per key within a sliding window.
// The hub keys it by connection id for chat frames; the entry form keys a
// second instance by client IP for room creation.
type RateLimiter struct {
	mu     sync.Mutex
	events map[string][]time.Time
	limit  int
	window time.Duration
	now    func() time.Time
	swept  time.Time
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		events: make(map[string][]time.Time),
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

// Allow reports whether key may act now and, if so, records the event. A nil
// limiter or a non-positive limit admits everything.
func (r *RateLimiter) Allow(key string) bool {
	if r == nil || r.limit <= 0 {
		return true
	}
	now := r.now()
	cutoff := now.Add(-r.window)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.sweepLocked(now, cutoff)

	recent := dropBefore(r.events[key], cutoff)
	if len(recent) >= r.limit {
		r.events[key] = recent
		return false
	}
	r.events[key] = append(recent, now)
	return true
}

// Forget drops the history for key, used when a connection goes away.
func (r *RateLimiter) Forget(key string) {
	if r == nil {
		return
	}
	r.mu.Lock()
	delete(r.events, key)
	r.mu.Unlock()
}

// sweepLocked forgets idle keys at most once per window so IP-keyed limiters
// do not grow without bound.
func (r *RateLimiter) sweepLocked(now, cutoff time.Time) {
	if now.Sub(r.swept) < r.window {
		return
	}
	r.swept = now
	for key, stamps := range r.events {
		if len(stamps) == 0 || !stamps[len(stamps)-1].After(cutoff) {
			delete(r.events, key)
		}
	}
}

// dropBefore removes the leading stamps at or before cutoff. stamps is kept in
// ascending order by Allow.
func dropBefore(stamps []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(stamps) && !stamps[i].After(cutoff) {
		i++
	}
	return stamps[i:]
}
