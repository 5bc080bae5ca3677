package ratelimit

import (
	"context"
	"sync"
	"time"
)

const (
	DefaultMaxRequests = 8
	DefaultWindow      = 300 * time.Second
)

// Options tune the fixed request window.
type Options struct {
	MaxRequests int
	Window      time.Duration
	// Clock overrides time.Now, mainly for tests.
	Clock func() time.Time
}

// Window is a point-in-time view of the limiter state.
type Window struct {
	Count int
	Start time.Time
}

// Limiter counts outbound requests in a fixed window that restarts once it has been
// open longer than the configured duration. Every method is linearized by mu; the
// lock is never held while a caller sleeps.
type Limiter struct {
	mu     sync.Mutex
	max    int
	window time.Duration
	now    func() time.Time

	count int
	start time.Time
}

// New constructs a Limiter whose first window opens now.
func New(opts Options) *Limiter {
	if opts.MaxRequests <= 0 {
		opts.MaxRequests = DefaultMaxRequests
	}
	if opts.Window <= 0 {
		opts.Window = DefaultWindow
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Limiter{
		max:    opts.MaxRequests,
		window: opts.Window,
		now:    opts.Clock,
		start:  opts.Clock(),
	}
}

// Admit reserves one request slot and returns how long the caller must wait before
// issuing it. A zero duration means go now.
//
// When the window is full the caller waits out the remainder; the window then
// restarts at the end of that wait with the caller as its first request.
func (l *Limiter) Admit() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.start) > l.window {
		l.start = now
		l.count = 0
	}

	if l.count >= l.max {
		wait := l.window - now.Sub(l.start)
		if wait < 0 {
			wait = 0
		}
		l.start = now.Add(wait)
		l.count = 1
		return wait
	}

	l.count++
	// A window opened by an earlier forced wait may still lie in the future.
	if l.start.After(now) {
		return l.start.Sub(now)
	}
	return 0
}

// Refund gives back one slot reserved by Admit for a request the server refused.
func (l *Limiter) Refund() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.count > 0 {
		l.count--
	}
}

// Wait reserves a slot and blocks until it may be used or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	return Sleep(ctx, l.Admit())
}

// Snapshot returns the current count and window start.
func (l *Limiter) Snapshot() Window {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Window{Count: l.count, Start: l.start}
}

// Limit reports the configured ceiling and window length.
func (l *Limiter) Limit() (int, time.Duration) {
	return l.max, l.window
}

// Sleep pauses for d unless ctx finishes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
