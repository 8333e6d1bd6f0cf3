// Package ratelimit provides per-identifier sliding-window admission
// control. Unlike a token bucket, the window counts actual request
// timestamps, so a burst never admits more than MaxRequests per window.
package ratelimit

import (
	"sync"
	"time"
)

// Limiter tracks request timestamps per identifier and admits a request
// only if fewer than max requests happened inside the trailing window.
type Limiter struct {
	max    int
	window time.Duration

	mu      sync.Mutex
	history map[string][]time.Time

	// now is replaced in tests.
	now func() time.Time
}

// New creates a limiter admitting max requests per identifier per window.
func New(max int, window time.Duration) *Limiter {
	return &Limiter{
		max:     max,
		window:  window,
		history: make(map[string][]time.Time),
		now:     time.Now,
	}
}

// Allow records and admits the request if the identifier has made fewer
// than max requests within the trailing window. Denied requests are not
// recorded.
func (l *Limiter) Allow(identifier string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	recent := l.prune(identifier, now)
	if len(recent) >= l.max {
		l.history[identifier] = recent
		return false
	}
	l.history[identifier] = append(recent, now)
	return true
}

// Remaining reports how many requests the identifier may still make in
// the current window.
func (l *Limiter) Remaining(identifier string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	recent := l.prune(identifier, l.now())
	l.history[identifier] = recent
	if n := l.max - len(recent); n > 0 {
		return n
	}
	return 0
}

// Sweep drops identifiers with no requests inside the window, bounding
// memory for long-lived processes. Safe to call from a background loop.
func (l *Limiter) Sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for id, stamps := range l.history {
		if len(l.pruneStamps(stamps, now)) == 0 {
			delete(l.history, id)
		}
	}
}

// prune must be called with the lock held.
func (l *Limiter) prune(identifier string, now time.Time) []time.Time {
	return l.pruneStamps(l.history[identifier], now)
}

func (l *Limiter) pruneStamps(stamps []time.Time, now time.Time) []time.Time {
	cutoff := now.Add(-l.window)
	recent := stamps[:0]
	for _, ts := range stamps {
		if ts.After(cutoff) {
			recent = append(recent, ts)
		}
	}
	return recent
}
