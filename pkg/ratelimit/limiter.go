// Package ratelimit provides the per-identifier fixed-window request limiter
// that guards the chat endpoint.
//
// Each identifier (normally a client IP) gets a short-window counter and an
// independent daily counter. Both are checked on every request, so the daily
// ceiling is exact rather than only enforced when a short window rolls over.
package ratelimit

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"
)

// Fixed limits; not configurable at runtime.
const (
	// ShortWindow is the length of the short fixed window. It doubles as the cooldown.
	ShortWindow = 60 * time.Second

	// MaxRequestsPerWindow is the number of requests allowed per short window.
	MaxRequestsPerWindow = 10

	// DailyWindow is the length of the daily fixed window.
	DailyWindow = 24 * time.Hour

	// MaxRequestsPerDay is the number of requests allowed per daily window.
	MaxRequestsPerDay = 50

	// SweepInterval is how often stale entries are removed.
	SweepInterval = 10 * time.Minute
)

// Entry is the accounting state kept for one identifier.
//
// Invariants: Count >= 1, LastRequestTime >= FirstRequestTime.
type Entry struct {
	// Count is the number of allowed requests in the current short window.
	Count int

	// FirstRequestTime is the start of the current short window.
	FirstRequestTime time.Time

	// LastRequestTime is the time of the most recent allowed request.
	LastRequestTime time.Time

	// DailyCount is the number of allowed requests in the current daily window.
	DailyCount int

	// DailyStart is the start of the current daily window.
	DailyStart time.Time
}

// Result is the outcome of a Check.
type Result struct {
	// Allowed reports whether the request may proceed.
	Allowed bool

	// Remaining is the number of requests left in the current short window.
	Remaining int

	// ResetIn is the time until the blocking (or current) window resets.
	ResetIn time.Duration

	// Reason is a human-readable explanation, set when the request is denied.
	Reason string
}

// ResetInMs returns ResetIn in whole milliseconds.
func (r Result) ResetInMs() int64 {
	return r.ResetIn.Milliseconds()
}

// RetryAfterSeconds returns ceil(resetInMs / 1000), the Retry-After header value.
func (r Result) RetryAfterSeconds() int {
	return int(math.Ceil(float64(r.ResetInMs()) / 1000))
}

// Limiter tracks request counts per identifier. The zero value is not usable;
// construct one with New. A Limiter is safe for concurrent use.
type Limiter struct {
	mu            sync.Mutex
	entries       map[string]*Entry
	now           func() time.Time
	sweepInterval time.Duration
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		l.now = now
	}
}

// WithSweepInterval overrides how often Run sweeps stale entries.
func WithSweepInterval(d time.Duration) Option {
	return func(l *Limiter) {
		if d > 0 {
			l.sweepInterval = d
		}
	}
}

// New creates a Limiter with the fixed limits.
func New(opts ...Option) *Limiter {
	l := &Limiter{
		entries:       make(map[string]*Entry),
		now:           time.Now,
		sweepInterval: SweepInterval,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Check records a request for identifier and reports whether it is allowed.
//
// Denied requests are not counted.
func (l *Limiter) Check(identifier string) Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	entry, ok := l.entries[identifier]
	if !ok {
		l.entries[identifier] = &Entry{
			Count:            1,
			FirstRequestTime: now,
			LastRequestTime:  now,
			DailyCount:       1,
			DailyStart:       now,
		}
		return Result{
			Allowed:   true,
			Remaining: MaxRequestsPerWindow - 1,
			ResetIn:   ShortWindow,
		}
	}

	dailyAge := now.Sub(entry.DailyStart)
	if dailyAge >= DailyWindow {
		entry.DailyCount = 0
		entry.DailyStart = now
		dailyAge = 0
	}
	if entry.DailyCount >= MaxRequestsPerDay {
		return Result{
			Allowed: false,
			ResetIn: DailyWindow - dailyAge,
			Reason:  "Daily limit reached. Please try again tomorrow.",
		}
	}

	windowAge := now.Sub(entry.FirstRequestTime)
	if windowAge > ShortWindow {
		entry.Count = 1
		entry.FirstRequestTime = now
		entry.LastRequestTime = now
		entry.DailyCount++
		return Result{
			Allowed:   true,
			Remaining: MaxRequestsPerWindow - 1,
			ResetIn:   ShortWindow,
		}
	}

	resetIn := ShortWindow - windowAge
	if entry.Count >= MaxRequestsPerWindow {
		return Result{
			Allowed: false,
			ResetIn: resetIn,
			Reason:  fmt.Sprintf("Too many requests. Please wait %d seconds before trying again.", int(math.Ceil(resetIn.Seconds()))),
		}
	}

	entry.Count++
	entry.DailyCount++
	entry.LastRequestTime = now
	return Result{
		Allowed:   true,
		Remaining: MaxRequestsPerWindow - entry.Count,
		ResetIn:   resetIn,
	}
}

// Entry returns a copy of the entry for identifier.
func (l *Limiter) Entry(identifier string) (Entry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[identifier]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Len returns the number of tracked identifiers.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Sweep deletes entries whose last request is older than the daily window
// and returns how many were removed.
func (l *Limiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	removed := 0
	for id, e := range l.entries {
		if now.Sub(e.LastRequestTime) > DailyWindow {
			delete(l.entries, id)
			removed++
		}
	}
	return removed
}

// Run sweeps stale entries on every interval tick until ctx is cancelled.
func (l *Limiter) Run(ctx context.Context) {
	ticker := time.NewTicker(l.sweepInterval)
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
