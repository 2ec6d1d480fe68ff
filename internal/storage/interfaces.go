package storage

import (
	"context"

	"token-auction-lab/internal/domain"
)

// SaleStore provides access to sales storage. The sale row is inserted
// once at creation; its mutable state columns are updated as the
// lifecycle advances.
type SaleStore interface {
	// Insert adds a new sale. Returns ErrDuplicateKey if sale_id exists.
	Insert(ctx context.Context, rec *domain.SaleRecord) error

	// GetByID retrieves a sale by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, saleID string) (*domain.SaleRecord, error)

	// UpdateState overwrites the mutable state columns (status, totals,
	// epoch, failure flag) of an existing sale. Returns ErrNotFound if
	// the sale does not exist.
	UpdateState(ctx context.Context, rec *domain.SaleRecord) error

	// List retrieves all sales ordered by created_at ASC.
	List(ctx context.Context) ([]*domain.SaleRecord, error)
}

// SwapEventStore provides access to swap_events storage. Append-only.
type SwapEventStore interface {
	// Insert adds a new swap event. Returns ErrDuplicateKey if
	// (sale_id, seq) exists.
	Insert(ctx context.Context, e *domain.SwapEventRecord) error

	// InsertBulk adds multiple events atomically. Fails entire batch on
	// any duplicate.
	InsertBulk(ctx context.Context, events []*domain.SwapEventRecord) error

	// GetBySaleID retrieves all events for a sale, ordered by seq ASC.
	GetBySaleID(ctx context.Context, saleID string) ([]*domain.SwapEventRecord, error)

	// GetByEpoch retrieves a sale's events for one epoch, ordered by seq ASC.
	GetByEpoch(ctx context.Context, saleID string, epoch int64) ([]*domain.SwapEventRecord, error)
}

// RebalanceStore provides access to rebalance timeseries storage.
// Append-only; one row per processed epoch rollover.
type RebalanceStore interface {
	// Insert adds one rebalance record. Returns ErrDuplicateKey if
	// (sale_id, epoch) exists.
	Insert(ctx context.Context, rec *domain.RebalanceRecord) error

	// GetBySaleID retrieves all rebalances for a sale, ordered by epoch ASC.
	GetBySaleID(ctx context.Context, saleID string) ([]*domain.RebalanceRecord, error)
}
