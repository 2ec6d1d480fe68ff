package reporting

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"token-auction-lab/internal/domain"
	"token-auction-lab/internal/storage"
	"token-auction-lab/internal/storage/memory"
)

func seedStores(t *testing.T) (*memory.SaleStore, *memory.SwapEventStore, *memory.RebalanceStore) {
	t.Helper()
	ctx := context.Background()

	sales := memory.NewSaleStore()
	swaps := memory.NewSwapEventStore()
	rebalances := memory.NewRebalanceStore()

	err := sales.Insert(ctx, &domain.SaleRecord{
		SaleID:          "sale-001",
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
		Status:          string(domain.StatusMatured),
		TotalTokensSold: "250000",
		TotalProceeds:   "120000",
		CurrentEpoch:    53,
	})
	if err != nil {
		t.Fatalf("insert sale: %v", err)
	}

	for seq := int64(1); seq <= 4; seq++ {
		err := swaps.Insert(ctx, &domain.SwapEventRecord{
			SaleID:     "sale-001",
			Seq:        seq,
			Epoch:      seq,
			Timestamp:  seq * 400,
			AssetDelta: "-62500",
			QuoteDelta: "30000",
			TickAfter:  -172504,
		})
		if err != nil {
			t.Fatalf("insert swap: %v", err)
		}
	}

	for _, epoch := range []int64{0, 1, 2} {
		err := rebalances.Insert(ctx, &domain.RebalanceRecord{
			SaleID:          "sale-001",
			Epoch:           epoch,
			Timestamp:       epoch * 400,
			TickLower:       -174128 - int32(epoch)*1624,
			TickUpper:       -172504 - int32(epoch)*1624,
			PoolTick:        -172504 - int32(epoch)*1624,
			TotalTokensSold: "62500",
			TotalProceeds:   "30000",
			Slugs:           []domain.SlugSnapshot{{Name: "lower"}, {Name: "upper"}},
		})
		if err != nil {
			t.Fatalf("insert rebalance: %v", err)
		}
	}

	return sales, swaps, rebalances
}

func newTestGenerator(t *testing.T) *Generator {
	sales, swaps, rebalances := seedStores(t)
	return NewGenerator(GeneratorOptions{
		SaleStore:      sales,
		SwapStore:      swaps,
		RebalanceStore: rebalances,
	}).WithClock(func() time.Time {
		return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	})
}

func TestGenerate_AssemblesReport(t *testing.T) {
	g := newTestGenerator(t)

	report, err := g.Generate(context.Background(), "sale-001")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if report.Sale.SaleID != "sale-001" {
		t.Errorf("expected sale-001, got %s", report.Sale.SaleID)
	}
	if report.Sale.TotalEpochs != 54 {
		t.Errorf("expected 54 total epochs, got %d", report.Sale.TotalEpochs)
	}
	if report.Outcome.SwapCount != 4 {
		t.Errorf("expected 4 swaps, got %d", report.Outcome.SwapCount)
	}
	if report.Outcome.EpochsProcessed != 3 {
		t.Errorf("expected 3 rollovers, got %d", report.Outcome.EpochsProcessed)
	}
	if got := report.Outcome.SelloutPercent.StringFixed(2); got != "25.00" {
		t.Errorf("expected 25.00%% sellout, got %s", got)
	}

	if len(report.Epochs) != 3 {
		t.Fatalf("expected 3 epoch rows, got %d", len(report.Epochs))
	}
	if report.Epochs[1].TickUpper != -174128 {
		t.Errorf("expected epoch 1 ceiling -174128, got %d", report.Epochs[1].TickUpper)
	}
	if report.Epochs[1].CeilingPrice.Sign() <= 0 {
		t.Errorf("ceiling price must be positive, got %s", report.Epochs[1].CeilingPrice)
	}
	// The ceiling price decays with the ticks
	if !report.Epochs[1].CeilingPrice.LessThan(report.Epochs[0].CeilingPrice) {
		t.Errorf("expected decaying ceiling price, got %s then %s",
			report.Epochs[0].CeilingPrice, report.Epochs[1].CeilingPrice)
	}
}

func TestGenerate_UnknownSale(t *testing.T) {
	g := newTestGenerator(t)

	_, err := g.Generate(context.Background(), "no-such-sale")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRenderMarkdown_ContainsSections(t *testing.T) {
	g := newTestGenerator(t)

	report, err := g.Generate(context.Background(), "sale-001")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	md := RenderMarkdown(report)
	for _, want := range []string{
		"# Sale Report: sale-001",
		"## Configuration",
		"## Outcome",
		"## Epoch Trace",
		"| Status | MATURED |",
		"| Swaps Settled | 4 |",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q", want)
		}
	}
}

func TestRenderCSV_OneRowPerEpoch(t *testing.T) {
	g := newTestGenerator(t)

	report, err := g.Generate(context.Background(), "sale-001")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	csv := RenderCSV(report)
	lines := strings.Split(strings.TrimSpace(csv), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected header plus 3 rows, got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[0], "epoch,timestamp,") {
		t.Errorf("unexpected header: %s", lines[0])
	}
	if !strings.HasPrefix(lines[1], "0,0,-172504,") {
		t.Errorf("unexpected first row: %s", lines[1])
	}
}
