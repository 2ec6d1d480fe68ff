// Package main provides the auction lab service:
// - Scenario execution on demand, streamed live over websockets
// - Stored sale browsing and report generation
// - Prometheus metrics
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"token-auction-lab/internal/domain"
	"token-auction-lab/internal/idhash"
	"token-auction-lab/internal/observability"
	"token-auction-lab/internal/recorder"
	"token-auction-lab/internal/reporting"
	"token-auction-lab/internal/simulation"
	"token-auction-lab/internal/storage"
	chstore "token-auction-lab/internal/storage/clickhouse"
	"token-auction-lab/internal/storage/memory"
	"token-auction-lab/internal/storage/migrations"
	pgstore "token-auction-lab/internal/storage/postgres"
	"token-auction-lab/internal/stream"
)

// Well-known mints used when none are supplied.
const (
	defaultAssetMint = "So11111111111111111111111111111111111111112"
	defaultQuoteMint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	defaultMigrator  = "11111111111111111111111111111111"
	defaultRecipient = "SysvarRent111111111111111111111111111111111"
)

// Server ties the stores, the stream hub and the scenario runner together.
type Server struct {
	stores *allStores
	hub    *stream.Hub
	runner *simulation.Runner
	logger *log.Logger

	migrator  string
	recipient string

	mu         sync.Mutex
	started    time.Time
	runs       int
	running    bool
	lastRun    time.Time
	lastSaleID string
}

type allStores struct {
	sales      storage.SaleStore
	swaps      storage.SwapEventStore
	rebalances storage.RebalanceStore
}

func main() {
	addr := flag.String("addr", ":8080", "HTTP listen address")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of the databases")
	migrator := flag.String("migrator", defaultMigrator, "Migrator address for scenario runs")
	recipient := flag.String("recipient", defaultRecipient, "Migration recipient for scenario runs")
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags)

	if !*useMemory && (*postgresDSN == "" || *clickhouseDSN == "") {
		logger.Fatal("--postgres-dsn and --clickhouse-dsn are required (or pass --use-memory)")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stores, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN, *useMemory)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	hub := stream.NewHub(stream.HubOptions{
		Logger: log.New(os.Stdout, "[stream] ", log.LstdFlags),
	})
	defer hub.Close()

	rec := recorder.New(recorder.Options{
		Sales:      stores.sales,
		Swaps:      stores.swaps,
		Rebalances: stores.rebalances,
		Stream:     hub,
		Logger:     log.New(os.Stdout, "[recorder] ", log.LstdFlags),
	})

	server := &Server{
		stores:    stores,
		hub:       hub,
		runner:    simulation.NewRunner(simulation.RunnerOptions{Observer: rec, Logger: logger}),
		logger:    logger,
		migrator:  *migrator,
		recipient: *recipient,
		started:   time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/status", server.handleStatus)
	mux.Handle("/ws", hub)
	mux.HandleFunc("/sales", server.handleSales)
	mux.HandleFunc("/report", server.handleReport)
	mux.HandleFunc("/simulate", server.handleSimulate)

	httpServer := &http.Server{Addr: *addr, Handler: mux}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, shutting down...", sig)
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)
		cancel()
	}()

	logger.Printf("Listening on %s", *addr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("HTTP server error: %v", err)
	}
	logger.Println("Shutdown complete")
}

// createStores creates memory or database-backed stores. Database mode
// applies migrations on startup.
func createStores(ctx context.Context, postgresDSN, clickhouseDSN string, useMemory bool) (*allStores, func(), error) {
	if useMemory {
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

// StatusResponse is the JSON response for the /status endpoint.
type StatusResponse struct {
	Status        string    `json:"status"`
	Uptime        string    `json:"uptime"`
	ScenarioRuns  int       `json:"scenario_runs"`
	Running       bool      `json:"running"`
	LastRun       time.Time `json:"last_run,omitempty"`
	LastSaleID    string    `json:"last_sale_id,omitempty"`
	StreamClients int       `json:"stream_clients"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	resp := StatusResponse{
		Status:        "running",
		Uptime:        time.Since(s.started).String(),
		ScenarioRuns:  s.runs,
		Running:       s.running,
		LastRun:       s.lastRun,
		LastSaleID:    s.lastSaleID,
		StreamClients: s.hub.ClientCount(),
	}
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// handleSales lists all stored sales.
func (s *Server) handleSales(w http.ResponseWriter, r *http.Request) {
	sales, err := s.stores.sales.List(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(sales)
}

// handleReport renders one sale's report as markdown (default), JSON
// or CSV depending on the format query parameter.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	saleID := r.URL.Query().Get("sale_id")
	if saleID == "" {
		http.Error(w, "sale_id query parameter is required", http.StatusBadRequest)
		return
	}

	gen := reporting.NewGenerator(reporting.GeneratorOptions{
		SaleStore:      s.stores.sales,
		SwapStore:      s.stores.swaps,
		RebalanceStore: s.stores.rebalances,
	})
	report, err := gen.Generate(r.Context(), saleID)
	if errors.Is(err, storage.ErrNotFound) {
		http.Error(w, "sale not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	switch r.URL.Query().Get("format") {
	case "json":
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(report)
	case "csv":
		w.Header().Set("Content-Type", "text/csv")
		w.Write([]byte(reporting.RenderCSV(report)))
	default:
		w.Header().Set("Content-Type", "text/markdown")
		w.Write([]byte(reporting.RenderMarkdown(report)))
	}
}

// handleSimulate runs one named scenario, persisting and broadcasting
// as it goes. One run at a time.
func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST required", http.StatusMethodNotAllowed)
		return
	}
	name := r.URL.Query().Get("scenario")
	if name == "" {
		name = "quiet-decay"
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		http.Error(w, "a scenario is already running", http.StatusConflict)
		return
	}
	s.running = true
	runSeq := s.runs
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.lastRun = time.Now()
		s.runs++
		s.mu.Unlock()
	}()

	// Distinct starting times keep each run's sale_id unique.
	cfg := defaultConfig(int64(runSeq) * 100_000)
	sc, err := simulation.Builtin(name, cfg, s.migrator, s.recipient)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.insertSaleRecord(r.Context(), cfg); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	res, err := s.runner.Run(sc)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	s.mu.Lock()
	s.lastSaleID = res.SaleID
	s.mu.Unlock()
	s.logger.Printf("scenario %s completed: sale %s %s", name, res.SaleID, res.Status)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(res)
}

// defaultConfig is the reference six-hour decay schedule.
func defaultConfig(startAt int64) *domain.SaleConfig {
	return &domain.SaleConfig{
		AssetMint:              defaultAssetMint,
		QuoteMint:              defaultQuoteMint,
		NumTokensToSell:        big.NewInt(1_000_000),
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

// insertSaleRecord seeds the sale row the recorder updates during a run.
func (s *Server) insertSaleRecord(ctx context.Context, cfg *domain.SaleConfig) error {
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
	err := s.stores.sales.Insert(ctx, rec)
	if errors.Is(err, storage.ErrDuplicateKey) {
		return nil
	}
	return err
}
