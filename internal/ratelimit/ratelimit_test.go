package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeClock drives a Limiter without wall-clock waits. Sleeping advances
// the clock by the requested duration and records it.
type fakeClock struct {
	now   time.Time
	slept []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Sleep(_ context.Context, d time.Duration) error {
	c.slept = append(c.slept, d)
	c.now = c.now.Add(d)
	return nil
}

func TestAcquireWithinBudgetDoesNotBlock(t *testing.T) {
	clock := newFakeClock()
	l := NewWithClock(3, clock.Now, clock.Sleep)

	for i := 0; i < 3; i++ {
		require.NoError(t, l.Acquire(context.Background()))
	}
	require.Empty(t, clock.slept)
}

func TestAcquireBlocksUntilWindowRollsOver(t *testing.T) {
	clock := newFakeClock()
	l := NewWithClock(2, clock.Now, clock.Sleep)
	ctx := context.Background()

	require.NoError(t, l.Acquire(ctx))
	clock.now = clock.now.Add(400 * time.Millisecond)
	require.NoError(t, l.Acquire(ctx))

	// Budget exhausted: the third acquisition waits out the remainder
	// of the window.
	require.NoError(t, l.Acquire(ctx))
	require.Equal(t, []time.Duration{600 * time.Millisecond}, clock.slept)
}

func TestAcquireResetsAfterIdleWindow(t *testing.T) {
	clock := newFakeClock()
	l := NewWithClock(1, clock.Now, clock.Sleep)
	ctx := context.Background()

	require.NoError(t, l.Acquire(ctx))

	// More than a second of idle time starts a fresh window.
	clock.now = clock.now.Add(2 * time.Second)
	require.NoError(t, l.Acquire(ctx))
	require.Empty(t, clock.slept)
}

func TestAcquireNConsumesAllTokens(t *testing.T) {
	clock := newFakeClock()
	l := NewWithClock(5, clock.Now, clock.Sleep)

	require.NoError(t, l.AcquireN(context.Background(), 7))
	// Five tokens fit in the first window; the remaining two force one
	// roll-over wait.
	require.Len(t, clock.slept, 1)
}

func TestAcquireReturnsContextError(t *testing.T) {
	clock := newFakeClock()
	l := NewWithClock(1, clock.Now, func(ctx context.Context, d time.Duration) error {
		return context.Canceled
	})
	ctx := context.Background()

	require.NoError(t, l.Acquire(ctx))
	require.ErrorIs(t, l.Acquire(ctx), context.Canceled)
}
