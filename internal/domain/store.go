package domain

import (
	"context"
	"io"
	"time"
)

// SaleStore persists sale rows. Implementations must write the whole
// batch or fail; partial success is reported as an error so the caller
// never silently loses audit rows.
type SaleStore interface {
	// InsertBatch writes all records in one batched statement.
	InsertBatch(ctx context.Context, records []SaleRecord) error
	// ListBefore returns all rows with a time strictly before the cutoff.
	ListBefore(ctx context.Context, before time.Time) ([]SaleRecord, error)
	// DeleteBefore deletes all rows with a time strictly before the
	// cutoff and returns the number deleted.
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// HomePriceCache publishes the latest home-world minimum prices per item
// for consumers outside the engine (dashboards, ad-hoc queries). Writes
// are best-effort; the engine never reads it back.
type HomePriceCache interface {
	SetHomePrices(ctx context.Context, item ItemID, nq, hq int64, ts time.Time) error
}

// BlobWriter uploads an object to cold storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}
