package clickhouse

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"token-auction-lab/internal/domain"
	"token-auction-lab/internal/observability"
	"token-auction-lab/internal/storage"
)

// RebalanceStore implements storage.RebalanceStore using ClickHouse.
// Slug snapshots are serialized to a JSON string column so each rebalance
// stays a single row.
type RebalanceStore struct {
	conn *Conn
}

// NewRebalanceStore creates a new RebalanceStore.
func NewRebalanceStore(conn *Conn) *RebalanceStore {
	return &RebalanceStore{conn: conn}
}

// Compile-time interface check.
var _ storage.RebalanceStore = (*RebalanceStore)(nil)

// Insert adds one rebalance row. Returns ErrDuplicateKey if the sale
// already has a row for this epoch.
func (s *RebalanceStore) Insert(ctx context.Context, r *domain.RebalanceRecord) (err error) {
	start := time.Now()
	defer func() {
		observability.RecordDBQuery("clickhouse", "rebalances_insert", time.Since(start).Seconds(), err)
	}()

	// MergeTree does not enforce uniqueness, check before insert
	exists, err := s.exists(ctx, r.SaleID, r.Epoch)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists {
		return storage.ErrDuplicateKey
	}

	slugs, err := json.Marshal(r.Slugs)
	if err != nil {
		return fmt.Errorf("marshal slugs: %w", err)
	}

	query := `
		INSERT INTO rebalances (
			sale_id, epoch, timestamp,
			tick_lower, tick_upper, pool_tick,
			total_tokens_sold, total_proceeds, slugs
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	err = s.conn.Exec(ctx, query,
		r.SaleID, r.Epoch, r.Timestamp,
		r.TickLower, r.TickUpper, r.PoolTick,
		r.TotalTokensSold, r.TotalProceeds, string(slugs),
	)
	if err != nil {
		return fmt.Errorf("insert rebalance: %w", err)
	}
	return nil
}

// GetBySaleID retrieves all rebalances for a sale, ordered by epoch ASC.
func (s *RebalanceStore) GetBySaleID(ctx context.Context, saleID string) (records []*domain.RebalanceRecord, err error) {
	start := time.Now()
	defer func() {
		observability.RecordDBQuery("clickhouse", "rebalances_get_by_sale", time.Since(start).Seconds(), err)
	}()

	query := `
		SELECT
			sale_id, epoch, timestamp,
			tick_lower, tick_upper, pool_tick,
			total_tokens_sold, total_proceeds, slugs
		FROM rebalances
		WHERE sale_id = ?
		ORDER BY epoch ASC
	`

	rows, err := s.conn.Query(ctx, query, saleID)
	if err != nil {
		return nil, fmt.Errorf("query rebalances by sale id: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			r     domain.RebalanceRecord
			slugs string
		)
		err := rows.Scan(
			&r.SaleID, &r.Epoch, &r.Timestamp,
			&r.TickLower, &r.TickUpper, &r.PoolTick,
			&r.TotalTokensSold, &r.TotalProceeds, &slugs,
		)
		if err != nil {
			return nil, fmt.Errorf("scan rebalance row: %w", err)
		}
		if err := json.Unmarshal([]byte(slugs), &r.Slugs); err != nil {
			return nil, fmt.Errorf("unmarshal slugs: %w", err)
		}
		records = append(records, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rebalance rows: %w", err)
	}
	return records, nil
}

// exists checks if the sale already has a rebalance row for the epoch.
func (s *RebalanceStore) exists(ctx context.Context, saleID string, epoch int64) (bool, error) {
	query := `SELECT count(*) FROM rebalances WHERE sale_id = ? AND epoch = ?`

	var count uint64
	err := s.conn.QueryRow(ctx, query, saleID, epoch).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
