package reporting

import (
	"time"

	"github.com/shopspring/decimal"
)

// Report is the full post-sale summary assembled from stored records.
type Report struct {
	GeneratedAt time.Time

	Sale SaleSummary

	// Epochs holds one row per processed rollover, ordered by epoch.
	Epochs []EpochRow

	Outcome OutcomeSection
}

// SaleSummary describes the sale's immutable configuration.
type SaleSummary struct {
	SaleID          string
	AssetMint       string
	QuoteMint       string
	NumTokensToSell string
	StartingTime    int64
	EndingTime      int64
	EpochLength     int64
	TotalEpochs     int64
	StartingTick    int32
	EndingTick      int32
	Gamma           int32
	MinimumProceeds string
	MaximumProceeds string
}

// EpochRow traces one epoch rollover: the drifted bounds, the ceiling
// price they imply, and the running accounting at that point.
type EpochRow struct {
	Epoch           int64
	Timestamp       int64
	TickLower       int32
	TickUpper       int32
	PoolTick        int32
	CeilingPrice    decimal.Decimal
	TotalTokensSold string
	TotalProceeds   string
	SlugCount       int
}

// OutcomeSection summarizes how the sale ended.
type OutcomeSection struct {
	Status          string
	Failed          bool
	TotalTokensSold string
	TotalProceeds   string
	SelloutPercent  decimal.Decimal
	CurrentEpoch    int64
	SwapCount       int
	EpochsProcessed int
}
