package ratelimit

import (
	"sync"
	"time"
)

// Window is a fixed-window event counter.
//
// The window restarts once more than period has elapsed since it opened, so a
// sender straddling a boundary can get up to 2*limit events through in just
// over one period.
type Window struct {
	mu sync.Mutex

	clock  Clock
	limit  int
	period time.Duration

	start time.Time
	count int
}

// NewWindow returns a window that opens now. limit <= 0 disables limiting.
func NewWindow(clock Clock, limit int, period time.Duration) *Window {
	if clock == nil {
		clock = RealClock{}
	}
	if period <= 0 {
		period = time.Second
	}
	return &Window{
		clock:  clock,
		limit:  limit,
		period: period,
		start:  clock.Now(),
	}
}

// Allow records one event and reports whether it is within the limit.
func (w *Window) Allow() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.clock.Now()
	if now.Sub(w.start) > w.period || now.Before(w.start) {
		w.start = now
		w.count = 0
	}
	w.count++
	return w.limit <= 0 || w.count <= w.limit
}

// Count returns the number of events recorded in the current window.
func (w *Window) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count
}
