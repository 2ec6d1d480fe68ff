package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"token-auction-lab/internal/domain"
	"token-auction-lab/internal/observability"
	"token-auction-lab/internal/storage"
)

// SwapEventStore implements storage.SwapEventStore using PostgreSQL.
type SwapEventStore struct {
	pool *Pool
}

// NewSwapEventStore creates a new SwapEventStore.
func NewSwapEventStore(pool *Pool) *SwapEventStore {
	return &SwapEventStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SwapEventStore = (*SwapEventStore)(nil)

const insertSwapEventQuery = `
	INSERT INTO swap_events (
		sale_id, seq, epoch, timestamp, asset_delta, quote_delta, tick_after, created_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
`

// Insert adds a new swap event. Returns ErrDuplicateKey if (sale_id, seq) exists.
func (s *SwapEventStore) Insert(ctx context.Context, e *domain.SwapEventRecord) (err error) {
	start := time.Now()
	defer func() { observability.RecordDBQuery("postgres", "swap_events_insert", time.Since(start).Seconds(), err) }()

	_, err = s.pool.Exec(ctx, insertSwapEventQuery,
		e.SaleID, e.Seq, e.Epoch, e.Timestamp,
		e.AssetDelta, e.QuoteDelta, e.TickAfter, e.CreatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert swap event: %w", err)
	}
	return nil
}

// InsertBulk adds multiple events atomically. Fails entire batch on any duplicate.
func (s *SwapEventStore) InsertBulk(ctx context.Context, events []*domain.SwapEventRecord) (err error) {
	if len(events) == 0 {
		return nil
	}
	start := time.Now()
	defer func() {
		observability.RecordDBQuery("postgres", "swap_events_insert_bulk", time.Since(start).Seconds(), err)
	}()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, e := range events {
		_, err := tx.Exec(ctx, insertSwapEventQuery,
			e.SaleID, e.Seq, e.Epoch, e.Timestamp,
			e.AssetDelta, e.QuoteDelta, e.TickAfter, e.CreatedAt,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert swap event in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetBySaleID retrieves all events for a sale, ordered by seq ASC.
func (s *SwapEventStore) GetBySaleID(ctx context.Context, saleID string) (events []*domain.SwapEventRecord, err error) {
	start := time.Now()
	defer func() {
		observability.RecordDBQuery("postgres", "swap_events_get_by_sale", time.Since(start).Seconds(), err)
	}()

	query := `
		SELECT id, sale_id, seq, epoch, timestamp, asset_delta, quote_delta, tick_after, created_at
		FROM swap_events
		WHERE sale_id = $1
		ORDER BY seq ASC
	`

	rows, err := s.pool.Query(ctx, query, saleID)
	if err != nil {
		return nil, fmt.Errorf("get swap events by sale id: %w", err)
	}
	defer rows.Close()

	return scanSwapEvents(rows)
}

// GetByEpoch retrieves a sale's events for one epoch, ordered by seq ASC.
func (s *SwapEventStore) GetByEpoch(ctx context.Context, saleID string, epoch int64) (events []*domain.SwapEventRecord, err error) {
	start := time.Now()
	defer func() {
		observability.RecordDBQuery("postgres", "swap_events_get_by_epoch", time.Since(start).Seconds(), err)
	}()

	query := `
		SELECT id, sale_id, seq, epoch, timestamp, asset_delta, quote_delta, tick_after, created_at
		FROM swap_events
		WHERE sale_id = $1 AND epoch = $2
		ORDER BY seq ASC
	`

	rows, err := s.pool.Query(ctx, query, saleID, epoch)
	if err != nil {
		return nil, fmt.Errorf("get swap events by epoch: %w", err)
	}
	defer rows.Close()

	return scanSwapEvents(rows)
}

// scanSwapEvents scans multiple rows into a slice of SwapEventRecord.
func scanSwapEvents(rows pgx.Rows) ([]*domain.SwapEventRecord, error) {
	var events []*domain.SwapEventRecord

	for rows.Next() {
		var e domain.SwapEventRecord
		err := rows.Scan(
			&e.ID, &e.SaleID, &e.Seq, &e.Epoch, &e.Timestamp,
			&e.AssetDelta, &e.QuoteDelta, &e.TickAfter, &e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan swap event row: %w", err)
		}
		events = append(events, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate swap event rows: %w", err)
	}
	return events, nil
}
