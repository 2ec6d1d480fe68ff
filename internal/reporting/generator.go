package reporting

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"token-auction-lab/internal/storage"
	"token-auction-lab/internal/tickmath"
)

// Generator produces sale reports from stored data.
type Generator struct {
	saleStore      storage.SaleStore
	swapStore      storage.SwapEventStore
	rebalanceStore storage.RebalanceStore

	assetDecimals int32
	quoteDecimals int32
	now           func() time.Time // Injectable clock for deterministic output
}

// GeneratorOptions contains configuration for creating a Generator.
type GeneratorOptions struct {
	SaleStore      storage.SaleStore
	SwapStore      storage.SwapEventStore
	RebalanceStore storage.RebalanceStore

	// Token decimals for price rendering. Default 9/6 (SPL asset
	// against USDC-style quote).
	AssetDecimals int32
	QuoteDecimals int32
}

// NewGenerator creates a new report generator.
func NewGenerator(opts GeneratorOptions) *Generator {
	assetDecimals := opts.AssetDecimals
	if assetDecimals == 0 {
		assetDecimals = 9
	}
	quoteDecimals := opts.QuoteDecimals
	if quoteDecimals == 0 {
		quoteDecimals = 6
	}

	return &Generator{
		saleStore:      opts.SaleStore,
		swapStore:      opts.SwapStore,
		rebalanceStore: opts.RebalanceStore,
		assetDecimals:  assetDecimals,
		quoteDecimals:  quoteDecimals,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate assembles the report for one sale.
func (g *Generator) Generate(ctx context.Context, saleID string) (*Report, error) {
	sale, err := g.saleStore.GetByID(ctx, saleID)
	if err != nil {
		return nil, err // propagates storage.ErrNotFound
	}

	swaps, err := g.swapStore.GetBySaleID(ctx, saleID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	rebalances, err := g.rebalanceStore.GetBySaleID(ctx, saleID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	epochs := make([]EpochRow, 0, len(rebalances))
	for _, r := range rebalances {
		epochs = append(epochs, EpochRow{
			Epoch:           r.Epoch,
			Timestamp:       r.Timestamp,
			TickLower:       r.TickLower,
			TickUpper:       r.TickUpper,
			PoolTick:        r.PoolTick,
			CeilingPrice:    tickmath.PriceAtTick(r.TickUpper, g.assetDecimals, g.quoteDecimals),
			TotalTokensSold: r.TotalTokensSold,
			TotalProceeds:   r.TotalProceeds,
			SlugCount:       len(r.Slugs),
		})
	}

	totalEpochs := int64(0)
	if sale.EpochLength > 0 {
		totalEpochs = (sale.EndingTime - sale.StartingTime) / sale.EpochLength
	}

	return &Report{
		GeneratedAt: g.now(),
		Sale: SaleSummary{
			SaleID:          sale.SaleID,
			AssetMint:       sale.AssetMint,
			QuoteMint:       sale.QuoteMint,
			NumTokensToSell: sale.NumTokensToSell,
			StartingTime:    sale.StartingTime,
			EndingTime:      sale.EndingTime,
			EpochLength:     sale.EpochLength,
			TotalEpochs:     totalEpochs,
			StartingTick:    sale.StartingTick,
			EndingTick:      sale.EndingTick,
			Gamma:           sale.Gamma,
			MinimumProceeds: sale.MinimumProceeds,
			MaximumProceeds: sale.MaximumProceeds,
		},
		Epochs: epochs,
		Outcome: OutcomeSection{
			Status:          sale.Status,
			Failed:          sale.Failed,
			TotalTokensSold: sale.TotalTokensSold,
			TotalProceeds:   sale.TotalProceeds,
			SelloutPercent:  selloutPercent(sale.TotalTokensSold, sale.NumTokensToSell),
			CurrentEpoch:    sale.CurrentEpoch,
			SwapCount:       len(swaps),
			EpochsProcessed: len(rebalances),
		},
	}, nil
}

// selloutPercent computes sold/total as a percentage. Zero on malformed
// or zero inputs.
func selloutPercent(sold, total string) decimal.Decimal {
	soldDec, err := decimal.NewFromString(sold)
	if err != nil {
		return decimal.Zero
	}
	totalDec, err := decimal.NewFromString(total)
	if err != nil || totalDec.IsZero() {
		return decimal.Zero
	}
	return soldDec.Div(totalDec).Mul(decimal.NewFromInt(100))
}
