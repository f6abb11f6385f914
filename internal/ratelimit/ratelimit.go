// Package ratelimit provides a fixed-window request gate for outbound
// calls to external services. Each external endpoint (streaming
// subscription, bulk REST, webhook) gets its own Limiter instance; a
// Limiter is owned by a single goroutine and is not safe for concurrent
// use.
package ratelimit

import (
	"context"
	"time"
)

// Limiter permits at most perSecond acquisitions within each one-second
// window. When the budget is exhausted, Acquire blocks the caller until
// the window rolls over.
type Limiter struct {
	perSecond int

	windowStart time.Time
	count       int

	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

// New creates a Limiter permitting perSecond acquisitions per second,
// using the real clock.
func New(perSecond int) *Limiter {
	return &Limiter{
		perSecond: perSecond,
		now:       time.Now,
		sleep:     sleepCtx,
	}
}

// NewWithClock creates a Limiter with an injectable clock and sleep
// function, for tests that verify the delay sequence without wall-clock
// waits.
func NewWithClock(perSecond int, now func() time.Time, sleep func(context.Context, time.Duration) error) *Limiter {
	return &Limiter{
		perSecond: perSecond,
		now:       now,
		sleep:     sleep,
	}
}

// Acquire consumes one token, blocking until the current window rolls
// over when the per-second budget is exhausted. It returns early with
// the context error if ctx is cancelled while waiting.
func (l *Limiter) Acquire(ctx context.Context) error {
	now := l.now()
	if l.windowStart.IsZero() || now.Sub(l.windowStart) >= time.Second {
		l.windowStart = now
		l.count = 0
	}

	if l.count >= l.perSecond {
		wait := l.windowStart.Add(time.Second).Sub(now)
		if wait > 0 {
			if err := l.sleep(ctx, wait); err != nil {
				return err
			}
		}
		l.windowStart = l.now()
		l.count = 0
	}

	l.count++
	return nil
}

// AcquireN consumes n tokens, blocking as needed between them.
func (l *Limiter) AcquireN(ctx context.Context, n int) error {
	for i := 0; i < n; i++ {
		if err := l.Acquire(ctx); err != nil {
			return err
		}
	}
	return nil
}

// sleepCtx sleeps for d, returning early with the context error if ctx
// is cancelled first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
