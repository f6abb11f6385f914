package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ffxivarb/gilarb/internal/domain"
)

// SaleStore implements domain.SaleStore using PostgreSQL.
type SaleStore struct {
	pool *pgxpool.Pool
}

// NewSaleStore creates a new SaleStore backed by the given connection pool.
func NewSaleStore(pool *pgxpool.Pool) *SaleStore {
	return &SaleStore{pool: pool}
}

const saleSelectCols = `time, world_id, item_id, price_per_unit, quantity, hq`

func scanSaleRows(rows pgx.Rows) ([]domain.SaleRecord, error) {
	var sales []domain.SaleRecord
	for rows.Next() {
		var s domain.SaleRecord
		if err := rows.Scan(
			&s.Time, &s.WorldID, &s.ItemID,
			&s.PricePerUnit, &s.Quantity, &s.HQ,
		); err != nil {
			return nil, err
		}
		sales = append(sales, s)
	}
	return sales, rows.Err()
}

// InsertBatch inserts multiple sale rows efficiently using pgx Batch.
func (s *SaleStore) InsertBatch(ctx context.Context, sales []domain.SaleRecord) error {
	if len(sales) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	const query = `
		INSERT INTO market_board_sales (
			time, world_id, item_id, price_per_unit, quantity, hq
		) VALUES ($1, $2, $3, $4, $5, $6)`

	for _, rec := range sales {
		batch.Queue(query,
			rec.Time, rec.WorldID, rec.ItemID,
			rec.PricePerUnit, rec.Quantity, rec.HQ,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range sales {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: insert sale batch item %d: %w", i, err)
		}
	}
	return nil
}

// ListBefore returns all sales recorded strictly before the given time
// (for archiving).
func (s *SaleStore) ListBefore(ctx context.Context, before time.Time) ([]domain.SaleRecord, error) {
	query := `SELECT ` + saleSelectCols + ` FROM market_board_sales WHERE time < $1 ORDER BY time ASC`
	rows, err := s.pool.Query(ctx, query, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list sales before: %w", err)
	}
	defer rows.Close()
	return scanSaleRows(rows)
}

// DeleteBefore deletes all sales recorded before the given time. Returns
// the number deleted.
func (s *SaleStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM market_board_sales WHERE time < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete sales before: %w", err)
	}
	return tag.RowsAffected(), nil
}
