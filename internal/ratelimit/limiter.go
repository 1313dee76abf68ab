// Package ratelimit admits questions per session using a sliding time window.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

const (
	defaultLimit  = 3
	defaultWindow = 30 * time.Minute
)

// Limiter keeps recent event timestamps per key. The zero value is not usable;
// construct with New.
type Limiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu   sync.Mutex
	keys map[string]*window
}

// window is the oldest-first event log for one key. dead is set once Sweep has
// removed the window from the map.
type window struct {
	mu     sync.Mutex
	events []time.Time
	dead   bool
}

type Option func(*Limiter)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		if now != nil {
			l.now = now
		}
	}
}

// New returns a Limiter admitting at most limit events per key in any trailing
// window of the given duration. Non-positive values fall back to 3 per 30m.
func New(limit int, span time.Duration, opts ...Option) *Limiter {
	if limit <= 0 {
		limit = defaultLimit
	}
	if span <= 0 {
		span = defaultWindow
	}
	l := &Limiter{
		limit:  limit,
		window: span,
		now:    time.Now,
		keys:   make(map[string]*window),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Touch records an event for key and reports whether it was admitted. Events
// at or before now-window have expired. A rejected call records nothing.
func (l *Limiter) Touch(key string) bool {
	for {
		w := l.lookup(key)

		w.mu.Lock()
		if w.dead {
			// Swept between lookup and lock; the map already holds a fresh window.
			w.mu.Unlock()
			continue
		}
		now := l.now()
		w.evict(now.Add(-l.window))
		if len(w.events) >= l.limit {
			w.mu.Unlock()
			return false
		}
		w.events = append(w.events, now)
		w.mu.Unlock()
		return true
	}
}

func (l *Limiter) lookup(key string) *window {
	l.mu.Lock()
	defer l.mu.Unlock()
	w, ok := l.keys[key]
	if !ok {
		w = &window{}
		l.keys[key] = w
	}
	return w
}

func (w *window) evict(cutoff time.Time) {
	i := 0
	for i < len(w.events) && !w.events[i].After(cutoff) {
		i++
	}
	if i > 0 {
		w.events = append(w.events[:0], w.events[i:]...)
	}
}

// Sweep forgets keys whose events have all expired and returns how many were
// dropped.
func (l *Limiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.window)
	dropped := 0
	for key, w := range l.keys {
		w.mu.Lock()
		w.evict(cutoff)
		if len(w.events) == 0 {
			w.dead = true
			delete(l.keys, key)
			dropped++
		}
		w.mu.Unlock()
	}
	return dropped
}

// RunSweeper calls Sweep every interval until ctx is done.
func (l *Limiter) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = l.window
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Sweep()
		}
	}
}

// Len reports the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.keys)
}
