package notify

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ffxivarb/gilarb/internal/ratelimit"
)

type fakeSender struct {
	sent []string
	err  error
}

func (f *fakeSender) Send(_ context.Context, message string) error {
	f.sent = append(f.sent, message)
	return f.err
}

func (f *fakeSender) Name() string { return "fake" }

func newTestDispatcher(sender Sender, window int) *Dispatcher {
	return NewDispatcher(sender, ratelimit.New(1000), window, slog.Default())
}

func TestDispatchSuppressesDuplicates(t *testing.T) {
	sender := &fakeSender{}
	d := newTestDispatcher(sender, 10)
	ctx := context.Background()

	d.Dispatch(ctx, "buy low, sell high")
	d.Dispatch(ctx, "buy low, sell high")

	require.Equal(t, []string{"buy low, sell high"}, sender.sent)
}

func TestDispatchDistinctMessagesAllSent(t *testing.T) {
	sender := &fakeSender{}
	d := newTestDispatcher(sender, 10)
	ctx := context.Background()

	d.Dispatch(ctx, "alert one")
	d.Dispatch(ctx, "alert two")

	require.Equal(t, []string{"alert one", "alert two"}, sender.sent)
}

func TestDispatchEvictsOldestFromWindow(t *testing.T) {
	sender := &fakeSender{}
	d := newTestDispatcher(sender, 2)
	ctx := context.Background()

	d.Dispatch(ctx, "a")
	d.Dispatch(ctx, "b")
	d.Dispatch(ctx, "c") // evicts "a"
	d.Dispatch(ctx, "a") // no longer remembered, goes out again

	require.Equal(t, []string{"a", "b", "c", "a"}, sender.sent)
}

func TestDispatchWithoutSinkDoesNotPanic(t *testing.T) {
	d := newTestDispatcher(nil, 10)

	require.NotPanics(t, func() {
		d.Dispatch(context.Background(), "nobody is listening")
	})
}

func TestDispatchSendFailureIsSwallowed(t *testing.T) {
	sender := &fakeSender{err: errors.New("webhook down")}
	d := newTestDispatcher(sender, 10)

	require.NotPanics(t, func() {
		d.Dispatch(context.Background(), "alert")
	})
	require.Len(t, sender.sent, 1)
}
