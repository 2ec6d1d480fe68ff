// Package main runs scripted auction scenarios against the in-memory
// pool and writes the resulting frames and reports for analysis.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"math/big"
	"os"
	"path/filepath"
	"time"

	"token-auction-lab/internal/domain"
	"token-auction-lab/internal/idhash"
	"token-auction-lab/internal/recorder"
	"token-auction-lab/internal/reporting"
	"token-auction-lab/internal/simulation"
	"token-auction-lab/internal/storage"
	chstore "token-auction-lab/internal/storage/clickhouse"
	"token-auction-lab/internal/storage/memory"
	"token-auction-lab/internal/storage/migrations"
	pgstore "token-auction-lab/internal/storage/postgres"
)

// Well-known mints used when none are supplied.
const (
	defaultAssetMint = "So11111111111111111111111111111111111111112"
	defaultQuoteMint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	defaultMigrator  = "11111111111111111111111111111111"
	defaultRecipient = "SysvarRent111111111111111111111111111111111"
)

func main() {
	scenarioName := flag.String("scenario", "quiet-decay", "Scenario to run (quiet-decay, early-exit, undersubscribed, round-trip, all)")
	outputDir := flag.String("output-dir", "output", "Output directory for frames and reports")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string (optional)")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string (optional)")
	assetMint := flag.String("asset-mint", defaultAssetMint, "Asset mint address")
	quoteMint := flag.String("quote-mint", defaultQuoteMint, "Quote mint address")
	migrator := flag.String("migrator", defaultMigrator, "Migrator address")
	recipient := flag.String("recipient", defaultRecipient, "Migration recipient address")
	tokens := flag.Int64("tokens", 1_000_000, "Number of tokens to sell")
	flag.Parse()

	logger := log.New(os.Stderr, "[simulate] ", log.LstdFlags)
	ctx := context.Background()

	names := []string{*scenarioName}
	if *scenarioName == "all" {
		names = simulation.Names()
	}

	stores, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN)
	if err != nil {
		logger.Fatalf("create stores: %v", err)
	}
	defer cleanup()

	rec := recorder.New(recorder.Options{
		Sales:      stores.sales,
		Swaps:      stores.swaps,
		Rebalances: stores.rebalances,
		Logger:     log.New(os.Stderr, "[recorder] ", log.LstdFlags),
	})
	runner := simulation.NewRunner(simulation.RunnerOptions{
		Observer: rec,
		Logger:   logger,
	})

	for i, name := range names {
		// Distinct starting times keep each scenario's sale_id unique.
		cfg := defaultConfig(*assetMint, *quoteMint, *tokens, int64(i)*100_000)
		sc, err := simulation.Builtin(name, cfg, *migrator, *recipient)
		if err != nil {
			logger.Fatalf("scenario: %v", err)
		}

		if err := insertSaleRecord(ctx, stores.sales, cfg); err != nil {
			logger.Fatalf("insert sale record: %v", err)
		}

		res, err := runner.Run(sc)
		if err != nil {
			logger.Fatalf("run %s: %v", name, err)
		}

		dir := filepath.Join(*outputDir, name)
		if err := writeOutputs(ctx, dir, res, stores); err != nil {
			logger.Fatalf("write outputs for %s: %v", name, err)
		}
		logger.Printf("%s: %s, %d frames written to %s", name, res.Status, len(res.Frames), dir)
	}
}

type allStores struct {
	sales      storage.SaleStore
	swaps      storage.SwapEventStore
	rebalances storage.RebalanceStore
}

// createStores returns database-backed stores when both DSNs are set and
// in-memory stores otherwise. Database mode applies migrations first.
func createStores(ctx context.Context, postgresDSN, clickhouseDSN string) (*allStores, func(), error) {
	if postgresDSN == "" || clickhouseDSN == "" {
		return &allStores{
			sales:      memory.NewSaleStore(),
			swaps:      memory.NewSwapEventStore(),
			rebalances: memory.NewRebalanceStore(),
		}, func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("postgres migrations: %w", err)
	}

	chConn, err := migrations.RunClickhouseMigrations(ctx, clickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
	}

	stores := &allStores{
		sales:      pgstore.NewSaleStore(pool),
		swaps:      pgstore.NewSwapEventStore(pool),
		rebalances: chstore.NewRebalanceStore(chConn),
	}
	cleanup := func() {
		chConn.Close()
		pool.Close()
	}
	return stores, cleanup, nil
}

// defaultConfig is the reference six-hour decay schedule.
func defaultConfig(assetMint, quoteMint string, tokens, startAt int64) *domain.SaleConfig {
	return &domain.SaleConfig{
		AssetMint:              assetMint,
		QuoteMint:              quoteMint,
		NumTokensToSell:        big.NewInt(tokens),
		StartingTime:           startAt,
		EndingTime:             startAt + 21_600,
		EpochLength:            400,
		StartingTick:           -172_504,
		EndingTick:             -260_000,
		Gamma:                  -1_624,
		TickSpacing:            8,
		MinimumProceeds:        big.NewInt(100_000),
		MaximumProceeds:        big.NewInt(10_000_000),
		NumPriceDiscoverySlugs: 3,
	}
}

// insertSaleRecord seeds the sale row the recorder updates during the run.
func insertSaleRecord(ctx context.Context, sales storage.SaleStore, cfg *domain.SaleConfig) error {
	now := time.Now().UnixMilli()
	rec := &domain.SaleRecord{
		SaleID:          idhash.ComputeSaleID(cfg.AssetMint, cfg.QuoteMint, cfg.StartingTime, cfg.NumTokensToSell.String()),
		AssetMint:       cfg.AssetMint,
		QuoteMint:       cfg.QuoteMint,
		NumTokensToSell: cfg.NumTokensToSell.String(),
		StartingTime:    cfg.StartingTime,
		EndingTime:      cfg.EndingTime,
		EpochLength:     cfg.EpochLength,
		StartingTick:    cfg.StartingTick,
		EndingTick:      cfg.EndingTick,
		Gamma:           cfg.Gamma,
		TickSpacing:     cfg.TickSpacing,
		MinimumProceeds: cfg.MinimumProceeds.String(),
		MaximumProceeds: cfg.MaximumProceeds.String(),
		Status:          string(domain.StatusPreSale),
		TotalTokensSold: "0",
		TotalProceeds:   "0",
		CurrentEpoch:    -1,
		UpdatedAt:       now,
		CreatedAt:       now,
	}
	err := sales.Insert(ctx, rec)
	if errors.Is(err, storage.ErrDuplicateKey) {
		return nil // re-running a scenario against an existing sale
	}
	return err
}

// writeOutputs renders the scenario result, its frames, and the stored
// sale report into dir.
func writeOutputs(ctx context.Context, dir string, res *simulation.Result, stores *allStores) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	frames, err := json.MarshalIndent(res.Frames, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal frames: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "frames.json"), frames, 0644); err != nil {
		return err
	}

	summary := *res
	summary.Frames = nil
	out, err := json.MarshalIndent(&summary, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "result.json"), out, 0644); err != nil {
		return err
	}

	gen := reporting.NewGenerator(reporting.GeneratorOptions{
		SaleStore:      stores.sales,
		SwapStore:      stores.swaps,
		RebalanceStore: stores.rebalances,
	})
	report, err := gen.Generate(ctx, res.SaleID)
	if err != nil {
		return fmt.Errorf("generate report: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "REPORT.md"), []byte(reporting.RenderMarkdown(report)), 0644); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "epochs.csv"), []byte(reporting.RenderCSV(report)), 0644)
}
