// Package notify delivers arbitrage alerts to a webhook sink with
// exact-text deduplication and outbound rate limiting. Delivery is
// best-effort: a failed send is logged, never surfaced to the engine.
package notify

import (
	"context"
	"log/slog"
	"slices"

	"github.com/ffxivarb/gilarb/internal/ratelimit"
)

// Sender is the interface a notification channel must implement.
type Sender interface {
	// Send delivers the formatted alert text.
	Send(ctx context.Context, message string) error
	// Name returns a human-readable identifier for the sender.
	Name() string
}

// Dispatcher deduplicates and rate-limits alerts before handing them to
// the configured Sender. It is only touched from the engine goroutine;
// the dedup window needs no locking.
type Dispatcher struct {
	sender     Sender // nil when no sink is configured
	limiter    *ratelimit.Limiter
	recent     []string
	windowSize int
	logger     *slog.Logger
}

// NewDispatcher creates a Dispatcher. sender may be nil, in which case
// every dispatch logs a warning and drops the alert. windowSize bounds
// the dedup window (values < 1 fall back to 10).
func NewDispatcher(sender Sender, limiter *ratelimit.Limiter, windowSize int, logger *slog.Logger) *Dispatcher {
	if windowSize < 1 {
		windowSize = 10
	}
	return &Dispatcher{
		sender:     sender,
		limiter:    limiter,
		windowSize: windowSize,
		logger:     logger.With(slog.String("component", "notify")),
	}
}

// Dispatch sends the alert unless its exact text was already sent
// within the dedup window. Send failures are logged but never returned.
func (d *Dispatcher) Dispatch(ctx context.Context, message string) {
	if slices.Contains(d.recent, message) {
		d.logger.Debug("alert suppressed, sent recently")
		return
	}

	if d.sender == nil {
		d.logger.Warn("alert not dispatched, no webhook sink configured")
		return
	}

	if err := d.limiter.Acquire(ctx); err != nil {
		return
	}

	if err := d.sender.Send(ctx, message); err != nil {
		d.logger.Error("alert delivery failed",
			slog.String("sender", d.sender.Name()),
			slog.String("error", err.Error()),
		)
	}

	d.recent = append(d.recent, message)
	if len(d.recent) > d.windowSize {
		d.recent = d.recent[1:]
	}
}
