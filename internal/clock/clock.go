package clock

import (
	"sync"
	"time"
)

// Clock supplies the current wall-clock time in the configured zone.
// Abstracted so reconciliation logic can be tested against literal timestamps.
type Clock interface {
	Now() time.Time
}

// Wall is the real clock pinned to one location
type Wall struct {
	loc *time.Location
}

// NewWall creates a wall clock in loc, falling back to time.Local
func NewWall(loc *time.Location) *Wall {
	if loc == nil {
		loc = time.Local
	}
	return &Wall{loc: loc}
}

// Now returns the current time in the clock's location
func (w *Wall) Now() time.Time {
	return time.Now().In(w.loc)
}

// Fixed is a settable clock for tests
type Fixed struct {
	mu sync.Mutex
	t  time.Time
}

// NewFixed creates a clock frozen at t
func NewFixed(t time.Time) *Fixed {
	return &Fixed{t: t}
}

// Now returns the frozen time
func (f *Fixed) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

// Set moves the clock to t
func (f *Fixed) Set(t time.Time) {
	f.mu.Lock()
	f.t = t
	f.mu.Unlock()
}

// Advance moves the clock forward by d
func (f *Fixed) Advance(d time.Duration) {
	f.mu.Lock()
	f.t = f.t.Add(d)
	f.mu.Unlock()
}
