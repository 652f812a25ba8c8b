package gateway

import (
	"sync"
	"time"
)

// ClientRateLimiter implements a sliding one-minute window per client.
// A limit of zero or less disables limiting.
type ClientRateLimiter struct {
	mu              sync.Mutex
	eventsPerMinute int
	events          []time.Time
	now             func() time.Time
}

// NewClientRateLimiter creates a rate limiter allowing eventsPerMinute
func NewClientRateLimiter(eventsPerMinute int) *ClientRateLimiter {
	return &ClientRateLimiter{
		eventsPerMinute: eventsPerMinute,
		events:          make([]time.Time, 0),
		now:             time.Now,
	}
}

// Allow records an event and reports whether it fits in the window
func (r *ClientRateLimiter) Allow() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.eventsPerMinute <= 0 {
		return true
	}

	now := r.now()
	r.prune(now)

	if len(r.events) >= r.eventsPerMinute {
		return false
	}

	r.events = append(r.events, now)
	return true
}

// Count returns the number of events accepted in the last minute
func (r *ClientRateLimiter) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.prune(r.now())
	return len(r.events)
}

func (r *ClientRateLimiter) prune(now time.Time) {
	cutoff := now.Add(-time.Minute)
	valid := r.events[:0]
	for _, t := range r.events {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	r.events = valid
}
