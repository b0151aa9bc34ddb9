// Package ratelimit implements a per-identity sliding-window limiter.
package ratelimit

import (
	"sync"
	"time"
)

const (
	DefaultMaxRequests = 5
	DefaultWindow      = 60 * time.Second
)

// Clock abstracts time for testing.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Limiter allows at most max requests per identity within a trailing window.
// Denied requests are not recorded.
type Limiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	windows map[string][]time.Time
	clock   Clock
}

// New creates a Limiter. Zero or negative values fall back to defaults.
func New(maxRequests int, window time.Duration) *Limiter {
	if maxRequests <= 0 {
		maxRequests = DefaultMaxRequests
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Limiter{
		max:     maxRequests,
		window:  window,
		windows: make(map[string][]time.Time),
		clock:   realClock{},
	}
}

// WithClock replaces the limiter clock. Intended for tests.
func (l *Limiter) WithClock(c Clock) *Limiter {
	l.clock = c
	return l
}

// Allow reports whether identity may proceed, recording the request if so.
func (l *Limiter) Allow(identity string) bool {
	now := l.clock.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	ts := l.prune(l.windows[identity], now)
	if len(ts) >= l.max {
		l.windows[identity] = ts
		return false
	}
	l.windows[identity] = append(ts, now)
	return true
}

// Sweep drops identities with no request left inside the window and
// returns how many were removed.
func (l *Limiter) Sweep() int {
	now := l.clock.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for id, ts := range l.windows {
		ts = l.prune(ts, now)
		if len(ts) == 0 {
			delete(l.windows, id)
			removed++
			continue
		}
		l.windows[id] = ts
	}
	return removed
}

// Identities returns the number of tracked identities.
func (l *Limiter) Identities() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

// prune keeps timestamps with now-t < window. Timestamps are appended in order,
// so the first one still inside the window marks the cut.
func (l *Limiter) prune(ts []time.Time, now time.Time) []time.Time {
	i := 0
	for i < len(ts) && now.Sub(ts[i]) >= l.window {
		i++
	}
	if i == 0 {
		return ts
	}
	kept := make([]time.Time, len(ts)-i, l.max)
	copy(kept, ts[i:])
	return kept
}
