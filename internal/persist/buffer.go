// Package persist accumulates sale rows and flushes them to the sale
// store in batches. Buffering is at-least-once: a row is dropped from
// the buffer only after the batched write succeeds.
package persist

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ffxivarb/gilarb/internal/domain"
)

// DefaultBufferSize is the flush threshold used when none is configured.
const DefaultBufferSize = 100

// Buffer accumulates sale records and writes them through the store in
// one batch when the threshold is reached or Flush is called. It is
// owned by the engine goroutine; no internal locking.
type Buffer struct {
	store  domain.SaleStore
	rows   []domain.SaleRecord
	size   int
	logger *slog.Logger
}

// New creates a Buffer flushing at the given size (DefaultBufferSize if
// size < 1).
func New(store domain.SaleStore, size int, logger *slog.Logger) *Buffer {
	if size < 1 {
		size = DefaultBufferSize
	}
	return &Buffer{
		store:  store,
		rows:   make([]domain.SaleRecord, 0, size),
		size:   size,
		logger: logger.With(slog.String("component", "persist")),
	}
}

// Insert appends a record, flushing synchronously once the buffer
// reaches its configured size. A flush failure is returned to the
// caller: silently dropping audit rows is unacceptable.
func (b *Buffer) Insert(ctx context.Context, rec domain.SaleRecord) error {
	b.rows = append(b.rows, rec)
	if len(b.rows) >= b.size {
		return b.Flush(ctx)
	}
	return nil
}

// Flush writes all buffered records in one batch and clears the buffer.
// An empty buffer is a no-op.
func (b *Buffer) Flush(ctx context.Context) error {
	if len(b.rows) == 0 {
		return nil
	}

	count := len(b.rows)
	if err := b.store.InsertBatch(ctx, b.rows); err != nil {
		return fmt.Errorf("persist: flush %d rows: %w", count, err)
	}

	b.logger.Debug("flushed sale rows", slog.Int("count", count))
	b.rows = b.rows[:0]
	return nil
}

// Len returns the number of buffered, unflushed records.
func (b *Buffer) Len() int {
	return len(b.rows)
}
