package simulation

import (
	"errors"
	"fmt"
	"log"
	"os"

	"token-auction-lab/internal/auction"
	"token-auction-lab/internal/domain"
	"token-auction-lab/internal/pool"
)

// Frame is one rebalance snapshot. The data field carries the slug list
// in the shape the plotting scripts consume.
type Frame struct {
	Epoch     int64                 `json:"epoch"`
	Timestamp int64                 `json:"timestamp"`
	TickLower int32                 `json:"tickLower"`
	TickUpper int32                 `json:"tickUpper"`
	PoolTick  int32                 `json:"poolTick"`
	Data      []domain.SlugSnapshot `json:"data"`
}

// MigrationSummary reports what migration handed over.
type MigrationSummary struct {
	AssetAmount string `json:"assetAmount"`
	QuoteAmount string `json:"quoteAmount"`
	Failed      bool   `json:"failed"`
}

// Result is the outcome of one scenario run.
type Result struct {
	SaleID          string            `json:"saleId"`
	Scenario        string            `json:"scenario"`
	Status          domain.Status     `json:"status"`
	Failed          bool              `json:"failed"`
	TotalTokensSold string            `json:"totalTokensSold"`
	TotalProceeds   string            `json:"totalProceeds"`
	FinalEpoch      int64             `json:"finalEpoch"`
	SwapsSettled    int               `json:"swapsSettled"`
	Frames          []Frame           `json:"frames"`
	Migration       *MigrationSummary `json:"migration,omitempty"`
}

// Runner executes scenarios.
type Runner struct {
	observer auction.Observer
	logger   *log.Logger
}

// RunnerOptions contains configuration for creating a Runner.
type RunnerOptions struct {
	// Observer additionally receives every sale event, on top of the
	// runner's own frame collection.
	Observer auction.Observer
	Logger   *log.Logger
}

// NewRunner creates a scenario runner.
func NewRunner(opts RunnerOptions) *Runner {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[simulation] ", log.LstdFlags)
	}
	return &Runner{observer: opts.Observer, logger: logger}
}

// Run executes one scenario to completion. Steps after the sale concludes
// are skipped; a concluded sale rejecting further swaps is the expected
// shape of every scenario ending.
func (r *Runner) Run(sc Scenario) (*Result, error) {
	collector := &frameCollector{}
	var obs auction.Observer = collector
	if r.observer != nil {
		obs = multiObserver{collector, r.observer}
	}

	pm := pool.NewMemory(sc.Config)
	sale, err := auction.NewSale(auction.SaleOptions{
		Config:   sc.Config,
		Pool:     pm,
		Migrator: sc.Migrator,
		Observer: obs,
		Logger:   r.logger,
	})
	if err != nil {
		return nil, err
	}
	r.logger.Printf("scenario %s: sale %s, %d steps", sc.Name, sale.ID(), len(sc.Steps))

	swaps := 0
	for i, step := range sc.Steps {
		err := sale.Handle(auction.Event{Kind: auction.EventBeforeSwap, Now: step.At})
		if errors.Is(err, auction.ErrSaleConcluded) {
			r.logger.Printf("scenario %s: sale concluded at step %d (t=%d)", sc.Name, i, step.At)
			break
		}
		if err != nil {
			return nil, fmt.Errorf("step %d admission (t=%d): %w", i, step.At, err)
		}
		if !step.IsSwap() {
			continue
		}

		tick := sale.Bounds().Upper + step.TickOffset
		if step.Tick != nil {
			tick = *step.Tick
		}
		pm.SetTick(tick)
		if err := pm.ApplySwap(step.AssetDelta, step.QuoteDelta); err != nil {
			return nil, fmt.Errorf("step %d reserves (t=%d): %w", i, step.At, err)
		}

		err = sale.Handle(auction.Event{
			Kind: auction.EventAfterSwap,
			Now:  step.At,
			Swap: &auction.SwapResult{
				AssetDelta: step.AssetDelta,
				QuoteDelta: step.QuoteDelta,
				TickAfter:  tick,
			},
		})
		if err != nil {
			return nil, fmt.Errorf("step %d settlement (t=%d): %w", i, step.At, err)
		}
		swaps++
	}

	var migration *MigrationSummary
	if sc.MigrateAt > 0 {
		m, err := sale.Migrate(sc.MigrateAt, sc.Migrator, sc.Recipient)
		if err != nil {
			return nil, fmt.Errorf("migrate (t=%d): %w", sc.MigrateAt, err)
		}
		migration = &MigrationSummary{
			AssetAmount: m.AssetAmount.String(),
			QuoteAmount: m.QuoteAmount.String(),
			Failed:      m.Failed,
		}
	}

	snap := sale.State()
	res := &Result{
		SaleID:          sale.ID(),
		Scenario:        sc.Name,
		Status:          sale.Status(),
		Failed:          snap.Failed,
		TotalTokensSold: snap.TotalTokensSold.String(),
		TotalProceeds:   snap.TotalProceeds.String(),
		FinalEpoch:      snap.CurrentEpoch,
		SwapsSettled:    swaps,
		Frames:          collector.frames,
		Migration:       migration,
	}
	r.logger.Printf("scenario %s: %s sold=%s proceeds=%s over %d frames",
		sc.Name, res.Status, res.TotalTokensSold, res.TotalProceeds, len(res.Frames))
	return res, nil
}

// frameCollector records one frame per rebalance.
type frameCollector struct {
	frames []Frame
}

func (c *frameCollector) OnSwap(*domain.SwapEventRecord) {}

func (c *frameCollector) OnRebalance(rec *domain.RebalanceRecord) {
	c.frames = append(c.frames, Frame{
		Epoch:     rec.Epoch,
		Timestamp: rec.Timestamp,
		TickLower: rec.TickLower,
		TickUpper: rec.TickUpper,
		PoolTick:  rec.PoolTick,
		Data:      rec.Slugs,
	})
}

func (c *frameCollector) OnStatus(string, domain.Status) {}

// multiObserver fans events out to several observers in order.
type multiObserver []auction.Observer

func (m multiObserver) OnSwap(rec *domain.SwapEventRecord) {
	for _, o := range m {
		o.OnSwap(rec)
	}
}

func (m multiObserver) OnRebalance(rec *domain.RebalanceRecord) {
	for _, o := range m {
		o.OnRebalance(rec)
	}
}

func (m multiObserver) OnStatus(saleID string, status domain.Status) {
	for _, o := range m {
		o.OnStatus(saleID, status)
	}
}
