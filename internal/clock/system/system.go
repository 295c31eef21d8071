// Package system provides a real clock implementation.
package system

import "time"

// Clock implements tracker.Clock using the time package.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}

// NewTicker returns a ticker backed by time.Ticker.
func (Clock) NewTicker(d time.Duration) Ticker {
	return &realTicker{t: time.NewTicker(d)}
}

// After waits for the duration to elapse and then delivers the current time.
func (Clock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

// Ticker delivers ticks on C until stopped. It mirrors time.Ticker but hides
// the concrete type so tests can substitute a manual implementation.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type realTicker struct {
	t *time.Ticker
}

func (r *realTicker) C() <-chan time.Time {
	return r.t.C
}

func (r *realTicker) Stop() {
	r.t.Stop()
}
