package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"token-auction-lab/internal/domain"
	"token-auction-lab/internal/storage"
)

func testSaleRecord(saleID string) *domain.SaleRecord {
	return &domain.SaleRecord{
		SaleID:          saleID,
		AssetMint:       "AssetMint111",
		QuoteMint:       "QuoteMint111",
		NumTokensToSell: "1000000",
		StartingTime:    0,
		EndingTime:      21600,
		EpochLength:     400,
		StartingTick:    -172504,
		EndingTick:      -260000,
		Gamma:           -1624,
		TickSpacing:     8,
		MinimumProceeds: "100000",
		MaximumProceeds: "500000",
		Status:          string(domain.StatusPreSale),
		TotalTokensSold: "0",
		TotalProceeds:   "0",
		CurrentEpoch:    -1,
		UpdatedAt:       1700000000000,
		CreatedAt:       1700000000000,
	}
}

func TestSaleStore_InsertAndGetByID(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewSaleStore(pool)
	ctx := context.Background()

	rec := testSaleRecord("sale-001")

	// Insert
	err := store.Insert(ctx, rec)
	require.NoError(t, err)

	// GetByID
	retrieved, err := store.GetByID(ctx, "sale-001")
	require.NoError(t, err)

	assert.Equal(t, rec.SaleID, retrieved.SaleID)
	assert.Equal(t, rec.AssetMint, retrieved.AssetMint)
	assert.Equal(t, rec.QuoteMint, retrieved.QuoteMint)
	assert.Equal(t, rec.NumTokensToSell, retrieved.NumTokensToSell)
	assert.Equal(t, rec.StartingTime, retrieved.StartingTime)
	assert.Equal(t, rec.EndingTime, retrieved.EndingTime)
	assert.Equal(t, rec.EpochLength, retrieved.EpochLength)
	assert.Equal(t, rec.StartingTick, retrieved.StartingTick)
	assert.Equal(t, rec.EndingTick, retrieved.EndingTick)
	assert.Equal(t, rec.Gamma, retrieved.Gamma)
	assert.Equal(t, rec.TickSpacing, retrieved.TickSpacing)
	assert.Equal(t, rec.MinimumProceeds, retrieved.MinimumProceeds)
	assert.Equal(t, rec.MaximumProceeds, retrieved.MaximumProceeds)
	assert.Equal(t, rec.Status, retrieved.Status)
	assert.Equal(t, rec.CurrentEpoch, retrieved.CurrentEpoch)
	assert.False(t, retrieved.Failed)
}

func TestSaleStore_InsertDuplicate(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewSaleStore(pool)
	ctx := context.Background()

	rec := testSaleRecord("sale-dup")

	// First insert should succeed
	err := store.Insert(ctx, rec)
	require.NoError(t, err)

	// Second insert should return ErrDuplicateKey
	err = store.Insert(ctx, rec)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestSaleStore_GetByIDNotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewSaleStore(pool)
	ctx := context.Background()

	_, err := store.GetByID(ctx, "nonexistent-sale")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSaleStore_UpdateState(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewSaleStore(pool)
	ctx := context.Background()

	rec := testSaleRecord("sale-update")
	require.NoError(t, store.Insert(ctx, rec))

	// Mutate the state columns and update
	rec.Status = string(domain.StatusActive)
	rec.TotalTokensSold = "250000"
	rec.TotalProceeds = "120000"
	rec.CurrentEpoch = 12
	rec.UpdatedAt = 1700000005000

	err := store.UpdateState(ctx, rec)
	require.NoError(t, err)

	retrieved, err := store.GetByID(ctx, "sale-update")
	require.NoError(t, err)

	assert.Equal(t, string(domain.StatusActive), retrieved.Status)
	assert.Equal(t, "250000", retrieved.TotalTokensSold)
	assert.Equal(t, "120000", retrieved.TotalProceeds)
	assert.Equal(t, int64(12), retrieved.CurrentEpoch)
	assert.Equal(t, int64(1700000005000), retrieved.UpdatedAt)

	// Immutable columns untouched
	assert.Equal(t, rec.StartingTick, retrieved.StartingTick)
	assert.Equal(t, rec.CreatedAt, retrieved.CreatedAt)
}

func TestSaleStore_UpdateStateNotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewSaleStore(pool)
	ctx := context.Background()

	rec := testSaleRecord("sale-missing")
	err := store.UpdateState(ctx, rec)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSaleStore_ListOrdered(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewSaleStore(pool)
	ctx := context.Background()

	first := testSaleRecord("sale-a")
	first.CreatedAt = 1700000000000
	second := testSaleRecord("sale-b")
	second.CreatedAt = 1700000002000

	// Insert out of order
	require.NoError(t, store.Insert(ctx, second))
	require.NoError(t, store.Insert(ctx, first))

	sales, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, sales, 2)

	assert.Equal(t, "sale-a", sales[0].SaleID)
	assert.Equal(t, "sale-b", sales[1].SaleID)
}
