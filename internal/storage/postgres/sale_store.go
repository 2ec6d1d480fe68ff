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

// SaleStore implements storage.SaleStore using PostgreSQL.
type SaleStore struct {
	pool *Pool
}

// NewSaleStore creates a new SaleStore.
func NewSaleStore(pool *Pool) *SaleStore {
	return &SaleStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SaleStore = (*SaleStore)(nil)

const saleColumns = `
	sale_id, asset_mint, quote_mint, num_tokens_to_sell,
	starting_time, ending_time, epoch_length,
	starting_tick, ending_tick, gamma, tick_spacing,
	minimum_proceeds, maximum_proceeds,
	status, total_tokens_sold, total_proceeds, current_epoch, failed,
	updated_at, created_at
`

// Insert adds a new sale. Returns ErrDuplicateKey if sale_id exists.
func (s *SaleStore) Insert(ctx context.Context, rec *domain.SaleRecord) (err error) {
	start := time.Now()
	defer func() { observability.RecordDBQuery("postgres", "sales_insert", time.Since(start).Seconds(), err) }()

	query := `
		INSERT INTO sales (
			sale_id, asset_mint, quote_mint, num_tokens_to_sell,
			starting_time, ending_time, epoch_length,
			starting_tick, ending_tick, gamma, tick_spacing,
			minimum_proceeds, maximum_proceeds,
			status, total_tokens_sold, total_proceeds, current_epoch, failed,
			updated_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
	`

	_, err = s.pool.Exec(ctx, query,
		rec.SaleID, rec.AssetMint, rec.QuoteMint, rec.NumTokensToSell,
		rec.StartingTime, rec.EndingTime, rec.EpochLength,
		rec.StartingTick, rec.EndingTick, rec.Gamma, rec.TickSpacing,
		rec.MinimumProceeds, rec.MaximumProceeds,
		rec.Status, rec.TotalTokensSold, rec.TotalProceeds, rec.CurrentEpoch, rec.Failed,
		rec.UpdatedAt, rec.CreatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert sale: %w", err)
	}
	return nil
}

// GetByID retrieves a sale by its ID. Returns ErrNotFound if not exists.
func (s *SaleStore) GetByID(ctx context.Context, saleID string) (rec *domain.SaleRecord, err error) {
	start := time.Now()
	defer func() { observability.RecordDBQuery("postgres", "sales_get", time.Since(start).Seconds(), err) }()

	query := `SELECT ` + saleColumns + ` FROM sales WHERE sale_id = $1`

	rec, err = scanSale(s.pool.QueryRow(ctx, query, saleID))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get sale by id: %w", err)
	}
	return rec, nil
}

// UpdateState overwrites the mutable state columns of an existing sale.
func (s *SaleStore) UpdateState(ctx context.Context, rec *domain.SaleRecord) (err error) {
	start := time.Now()
	defer func() { observability.RecordDBQuery("postgres", "sales_update", time.Since(start).Seconds(), err) }()

	query := `
		UPDATE sales
		SET status = $2, total_tokens_sold = $3, total_proceeds = $4,
		    current_epoch = $5, failed = $6, updated_at = $7
		WHERE sale_id = $1
	`

	tag, err := s.pool.Exec(ctx, query,
		rec.SaleID, rec.Status, rec.TotalTokensSold, rec.TotalProceeds,
		rec.CurrentEpoch, rec.Failed, rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update sale state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// List retrieves all sales ordered by created_at ASC.
func (s *SaleStore) List(ctx context.Context) (sales []*domain.SaleRecord, err error) {
	start := time.Now()
	defer func() { observability.RecordDBQuery("postgres", "sales_list", time.Since(start).Seconds(), err) }()

	query := `SELECT ` + saleColumns + ` FROM sales ORDER BY created_at ASC, sale_id ASC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list sales: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		rec, err := scanSale(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sale row: %w", err)
		}
		sales = append(sales, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sale rows: %w", err)
	}
	return sales, nil
}

// scanSale scans one row into a SaleRecord.
func scanSale(row pgx.Row) (*domain.SaleRecord, error) {
	var rec domain.SaleRecord
	err := row.Scan(
		&rec.SaleID, &rec.AssetMint, &rec.QuoteMint, &rec.NumTokensToSell,
		&rec.StartingTime, &rec.EndingTime, &rec.EpochLength,
		&rec.StartingTick, &rec.EndingTick, &rec.Gamma, &rec.TickSpacing,
		&rec.MinimumProceeds, &rec.MaximumProceeds,
		&rec.Status, &rec.TotalTokensSold, &rec.TotalProceeds, &rec.CurrentEpoch, &rec.Failed,
		&rec.UpdatedAt, &rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
