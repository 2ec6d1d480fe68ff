package memory

import (
	"context"
	"errors"
	"testing"

	"token-auction-lab/internal/domain"
	"token-auction-lab/internal/storage"
)

func testSwapEvent(saleID string, seq, epoch int64) *domain.SwapEventRecord {
	return &domain.SwapEventRecord{
		SaleID:     saleID,
		Seq:        seq,
		Epoch:      epoch,
		Timestamp:  epoch*400 + seq,
		AssetDelta: "-5000",
		QuoteDelta: "4200",
		TickAfter:  -180000,
	}
}

func TestSwapEventStore_InsertAndGetBySaleID(t *testing.T) {
	store := NewSwapEventStore()
	ctx := context.Background()

	for _, seq := range []int64{3, 1, 2} {
		if err := store.Insert(ctx, testSwapEvent("sale1", seq, 0)); err != nil {
			t.Fatalf("Insert seq %d failed: %v", seq, err)
		}
	}
	if err := store.Insert(ctx, testSwapEvent("sale2", 1, 0)); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	events, err := store.GetBySaleID(ctx, "sale1")
	if err != nil {
		t.Fatalf("GetBySaleID failed: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("Expected 3 events, got %d", len(events))
	}
	for i, e := range events {
		if e.Seq != int64(i+1) {
			t.Errorf("Expected seq ordering, got %d at position %d", e.Seq, i)
		}
		if e.ID == 0 {
			t.Errorf("Expected assigned ID, got 0 at seq %d", e.Seq)
		}
	}
}

func TestSwapEventStore_DuplicateKey(t *testing.T) {
	store := NewSwapEventStore()
	ctx := context.Background()

	if err := store.Insert(ctx, testSwapEvent("sale1", 1, 0)); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}
	if err := store.Insert(ctx, testSwapEvent("sale1", 1, 0)); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestSwapEventStore_InsertBulkAtomic(t *testing.T) {
	store := NewSwapEventStore()
	ctx := context.Background()

	if err := store.Insert(ctx, testSwapEvent("sale1", 2, 0)); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	batch := []*domain.SwapEventRecord{
		testSwapEvent("sale1", 1, 0),
		testSwapEvent("sale1", 2, 0), // duplicate of existing
	}
	if err := store.InsertBulk(ctx, batch); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Fatalf("Expected ErrDuplicateKey, got %v", err)
	}

	// The batch must not be partially applied.
	events, err := store.GetBySaleID(ctx, "sale1")
	if err != nil {
		t.Fatalf("GetBySaleID failed: %v", err)
	}
	if len(events) != 1 {
		t.Errorf("Expected 1 event after failed bulk, got %d", len(events))
	}
}

func TestSwapEventStore_GetByEpoch(t *testing.T) {
	store := NewSwapEventStore()
	ctx := context.Background()

	if err := store.InsertBulk(ctx, []*domain.SwapEventRecord{
		testSwapEvent("sale1", 1, 0),
		testSwapEvent("sale1", 2, 1),
		testSwapEvent("sale1", 3, 1),
	}); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	events, err := store.GetByEpoch(ctx, "sale1", 1)
	if err != nil {
		t.Fatalf("GetByEpoch failed: %v", err)
	}
	if len(events) != 2 {
		t.Errorf("Expected 2 events in epoch 1, got %d", len(events))
	}
}
