// Package resilience provides the admission, retry and polling machinery the
// orchestrator composes around backend calls.
package resilience

import (
	"fmt"
	"sync"
	"time"

	"github.com/merlinrabens/image-gen-mcp/pkg/errors"
)

// SlidingWindowLimiter provides per-backend admission control over a trailing
// time window. Each backend gets an independent window; expired timestamps
// are pruned lazily on every admission check.
type SlidingWindowLimiter struct {
	mu      sync.Mutex
	windows map[string]*requestWindow

	capacity int
	window   time.Duration
	now      func() time.Time
}

type requestWindow struct {
	mu     sync.Mutex
	stamps []time.Time
}

// NewSlidingWindowLimiter creates a limiter admitting at most capacity
// requests per backend within the trailing window.
func NewSlidingWindowLimiter(capacity int, window time.Duration) *SlidingWindowLimiter {
	if capacity <= 0 {
		capacity = 10
	}
	if window <= 0 {
		window = time.Minute
	}
	return &SlidingWindowLimiter{
		windows:  make(map[string]*requestWindow),
		capacity: capacity,
		window:   window,
		now:      time.Now,
	}
}

// Admit records one request against the backend's window, or fails with a
// rate-limit error when the window is full. Admission order is the arrival
// order at the window's mutex.
func (l *SlidingWindowLimiter) Admit(backendName string) error {
	w := l.windowFor(backendName)

	w.mu.Lock()
	defer w.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)

	kept := w.stamps[:0]
	for _, ts := range w.stamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	w.stamps = kept

	if len(w.stamps) >= l.capacity {
		return errors.NewRateLimitError(backendName,
			fmt.Sprintf("rate limit of %d requests per %s reached", l.capacity, l.window))
	}

	w.stamps = append(w.stamps, now)
	return nil
}

// InFlight returns the number of admissions currently inside the window.
func (l *SlidingWindowLimiter) InFlight(backendName string) int {
	w := l.windowFor(backendName)

	w.mu.Lock()
	defer w.mu.Unlock()

	cutoff := l.now().Add(-l.window)
	n := 0
	for _, ts := range w.stamps {
		if ts.After(cutoff) {
			n++
		}
	}
	return n
}

func (l *SlidingWindowLimiter) windowFor(backendName string) *requestWindow {
	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[backendName]
	if !ok {
		w = &requestWindow{}
		l.windows[backendName] = w
	}
	return w
}
