package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ffxivarb/gilarb/internal/domain"
)

// multipartThreshold is the archive payload size above which uploads go
// through the multipart uploader instead of a single PutObject.
const multipartThreshold = 8 * 1024 * 1024

// SaleArchiveStore provides the store access the archiver needs: reading
// rows older than a cutoff and deleting them once the archive upload has
// succeeded.
type SaleArchiveStore interface {
	ListBefore(ctx context.Context, before time.Time) ([]domain.SaleRecord, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// ArchiveWriter is the blob surface the archiver uploads through:
// single-shot puts for typical archives, multipart for oversized ones.
type ArchiveWriter interface {
	domain.BlobWriter
	PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error
}

// SaleArchiver moves old sale rows out of the primary store into
// JSONL objects in blob storage. Rows are deleted from the store only
// after the upload has succeeded.
type SaleArchiver struct {
	writer ArchiveWriter
	store  SaleArchiveStore
	logger *slog.Logger
}

// NewSaleArchiver creates a SaleArchiver.
func NewSaleArchiver(writer ArchiveWriter, store SaleArchiveStore, logger *slog.Logger) *SaleArchiver {
	return &SaleArchiver{
		writer: writer,
		store:  store,
		logger: logger.With(slog.String("component", "archiver")),
	}
}

// ArchiveSales queries all sales before the cutoff, serializes them to
// JSONL, uploads the file, and deletes the archived rows. It returns the
// number of rows archived.
func (a *SaleArchiver) ArchiveSales(ctx context.Context, before time.Time) (int64, error) {
	sales, err := a.store.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive sales query: %w", err)
	}
	if len(sales) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(sales)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive sales marshal: %w", err)
	}

	path := archivePath(before)
	if len(buf) >= multipartThreshold {
		err = a.writer.PutMultipart(ctx, path, bytes.NewReader(buf), multipartThreshold)
	} else {
		err = a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson")
	}
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive sales upload: %w", err)
	}

	deleted, err := a.store.DeleteBefore(ctx, before)
	if err != nil {
		// The archive exists but the rows are still in the store; the
		// next run will re-archive them under a new key.
		return 0, fmt.Errorf("s3blob: archive sales delete: %w", err)
	}

	a.logger.Info("sales archived",
		slog.String("path", path),
		slog.Int("archived", len(sales)),
		slog.Int64("deleted", deleted),
	)
	return int64(len(sales)), nil
}

// archivePath builds the object key for an archive file, partitioned by
// the year-month of the cutoff with a unique suffix so repeated runs
// within one month never overwrite each other.
//
//	archive/sales/2025-01-8f2c7c1a-....jsonl
func archivePath(before time.Time) string {
	return fmt.Sprintf("archive/sales/%s-%s.jsonl", before.Format("2006-01"), uuid.NewString())
}

// marshalJSONL serialises a slice of values as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
