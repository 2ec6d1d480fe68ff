package auction

import (
	"fmt"
	"log"
	"math/big"
	"os"

	"token-auction-lab/internal/domain"
	"token-auction-lab/internal/drift"
	"token-auction-lab/internal/idhash"
	"token-auction-lab/internal/pool"
	"token-auction-lab/internal/schedule"
	"token-auction-lab/internal/slugs"
)

// Observer receives the sale's emitted records. All methods are called
// synchronously from within the triggering operation; implementations
// must not call back into the sale.
type Observer interface {
	OnSwap(rec *domain.SwapEventRecord)
	OnRebalance(rec *domain.RebalanceRecord)
	OnStatus(saleID string, status domain.Status)
}

// SaleOptions contains configuration for creating a Sale.
type SaleOptions struct {
	Config *domain.SaleConfig
	Pool   pool.View

	// Migrator is the only caller Migrate accepts.
	Migrator string

	// Callbacks defaults to DefaultCallbacks when zero.
	Callbacks Callbacks

	// Schedule overrides the linear reference schedule when set.
	Schedule schedule.SoldSchedule

	Observer Observer
	Logger   *log.Logger
}

// Sale drives one auction. Not safe for concurrent use: the execution
// model is transaction-serialized, each event is processed to
// completion before the next is admitted.
type Sale struct {
	id        string
	cfg       *domain.SaleConfig
	callbacks Callbacks
	migrator  string

	pool        pool.View
	scheduler   *schedule.Scheduler
	accumulator *drift.Accumulator
	planner     *slugs.Planner

	state        *domain.AuctionState
	bounds       drift.Bounds
	quoteCustody *big.Int // proceeds not currently placed in the lower slug
	swapSeq      int64
	inRollover   bool

	observer Observer
	logger   *log.Logger
}

// NewSale validates the config and builds the engine. The sale starts
// in PreSale with the full inventory in custody and nothing placed.
func NewSale(opts SaleOptions) (*Sale, error) {
	cfg := opts.Config
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("sale config: %w", err)
	}
	if opts.Pool == nil {
		return nil, fmt.Errorf("sale config: pool view is required")
	}

	callbacks := opts.Callbacks
	if callbacks == 0 {
		callbacks = DefaultCallbacks
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[auction] ", log.LstdFlags)
	}

	acc := drift.NewAccumulator(cfg)
	return &Sale{
		id:           idhash.ComputeSaleID(cfg.AssetMint, cfg.QuoteMint, cfg.StartingTime, cfg.NumTokensToSell.String()),
		cfg:          cfg,
		callbacks:    callbacks,
		migrator:     opts.Migrator,
		pool:         opts.Pool,
		scheduler:    schedule.NewScheduler(cfg, opts.Schedule),
		accumulator:  acc,
		planner:      slugs.NewPlanner(cfg),
		state:        domain.NewAuctionState(cfg),
		bounds:       acc.InitialBounds(),
		quoteCustody: big.NewInt(0),
		observer:     opts.Observer,
		logger:       logger,
	}, nil
}

// ID returns the sale's stable identifier.
func (s *Sale) ID() string { return s.id }

// Config returns the immutable sale configuration.
func (s *Sale) Config() *domain.SaleConfig { return s.cfg }

// State returns the externally visible state snapshot.
func (s *Sale) State() domain.Snapshot { return s.state.Snapshot() }

// Status returns the current lifecycle state.
func (s *Sale) Status() domain.Status { return s.state.Status() }

// Bounds returns the active epoch's price bounds.
func (s *Sale) Bounds() drift.Bounds { return s.bounds }

// beforeSwap admits or rejects a swap and lazily rolls pending epoch
// transitions forward. Maturity is observed here: the triggering
// interaction itself is rejected once the sale is past endingTime.
func (s *Sale) beforeSwap(now int64) error {
	if s.state.Concluded() {
		return ErrSaleConcluded
	}
	if now < s.cfg.StartingTime {
		return ErrNotStarted
	}
	if now >= s.cfg.EndingTime {
		s.mature()
		return ErrSaleConcluded
	}

	if !s.state.Started {
		s.state.Started = true
		s.emitStatus()
	}
	return s.catchUp(now)
}

// afterSwap settles one swap's balance deltas into the sale's
// accounting and checks the early-exit condition.
func (s *Sale) afterSwap(now int64, res *SwapResult) error {
	if res == nil || res.AssetDelta == nil || res.QuoteDelta == nil {
		return ErrMissingSwapResult
	}
	if s.state.Migrated {
		return ErrSaleConcluded
	}
	if !s.state.Started {
		return ErrNotStarted
	}

	sold := new(big.Int).Sub(s.state.TotalTokensSold, res.AssetDelta)
	if sold.Cmp(s.cfg.NumTokensToSell) > 0 || sold.Sign() < 0 {
		return ErrInventoryInvariant
	}
	s.state.TotalTokensSold = sold
	s.state.TotalProceeds.Add(s.state.TotalProceeds, res.QuoteDelta)

	s.swapSeq++
	if s.observer != nil {
		s.observer.OnSwap(&domain.SwapEventRecord{
			SaleID:     s.id,
			Seq:        s.swapSeq,
			Epoch:      s.state.CurrentEpoch,
			Timestamp:  now,
			AssetDelta: res.AssetDelta.String(),
			QuoteDelta: res.QuoteDelta.String(),
			TickAfter:  res.TickAfter,
		})
	}

	if s.state.TotalProceeds.Cmp(s.cfg.MaximumProceeds) >= 0 {
		s.state.EarlyExit = true
		s.logger.Printf("sale %s early exit: proceeds %s reached maximum %s",
			s.id, s.state.TotalProceeds, s.cfg.MaximumProceeds)
		s.emitStatus()
	}
	return nil
}

// catchUp processes every epoch boundary between the last processed
// epoch and now, in order. Each missed epoch applies its own drift,
// independently clamped by gamma; slugs are replaced once, under the
// final bounds.
func (s *Sale) catchUp(now int64) error {
	epoch, ok := s.scheduler.CurrentEpoch(now)
	if !ok || epoch == s.state.CurrentEpoch {
		return nil
	}
	if s.inRollover {
		return ErrReentrantRollover
	}
	s.inRollover = true
	defer func() { s.inRollover = false }()

	for e := s.state.CurrentEpoch + 1; e <= epoch; e++ {
		epochStart, _ := s.scheduler.EpochBounds(e)
		expected := s.scheduler.ExpectedSold(epochStart)

		if e == 0 {
			s.bounds = s.accumulator.InitialBounds()
		} else {
			s.bounds, s.state.LastEpochEndTick = s.accumulator.NextBounds(
				s.state.LastEpochEndTick, e, s.state.TotalTokensSold, expected)
		}
		s.state.CurrentEpoch = e
	}

	if err := s.rebalance(now, epoch); err != nil {
		return err
	}
	s.logger.Printf("sale %s rolled to epoch %d bounds [%d, %d]",
		s.id, epoch, s.bounds.Lower, s.bounds.Upper)
	return nil
}

// rebalance withdraws every placed slug, repositions the pool price
// into the new bounds and places the new plan.
func (s *Sale) rebalance(now, epoch int64) error {
	if _, _, err := s.pool.WithdrawAll(); err != nil {
		return fmt.Errorf("withdraw slugs: %w", err)
	}

	poolTick := s.pool.CurrentTick()
	if poolTick > s.bounds.Upper {
		poolTick = s.bounds.Upper
	}
	if poolTick < s.bounds.Lower {
		poolTick = s.bounds.Lower
	}
	s.pool.MoveTick(poolTick)

	_, epochEnd := s.scheduler.EpochBounds(epoch)
	plan, err := s.planner.Plan(slugs.Input{
		Bounds:                 s.bounds,
		PoolTick:               poolTick,
		TotalSold:              s.state.TotalTokensSold,
		TotalProceeds:          s.state.TotalProceeds,
		ExpectedSoldByEpochEnd: s.scheduler.ExpectedSold(epochEnd),
	})
	if err != nil {
		return err
	}

	snapshots := make([]domain.SlugSnapshot, 0, len(plan.Discovery)+2)
	for _, pos := range plan.Positions() {
		asset, quote, err := s.pool.Place(&pos)
		if err != nil {
			return fmt.Errorf("place %s: %w", pos.Salt(), err)
		}
		if asset.Cmp(pos.AmountAsset) != 0 || quote.Cmp(pos.AmountQuote) != 0 {
			return ErrInventoryInvariant
		}
		snapshots = append(snapshots, domain.SlugSnapshot{
			Name:      pos.Salt(),
			TickLower: pos.TickLower,
			TickUpper: pos.TickUpper,
			Liquidity: pos.Liquidity.String(),
			Asset:     asset.String(),
			Quote:     quote.String(),
		})
	}

	s.state.Custody.Set(plan.AssetUnplaced)
	s.quoteCustody.Set(plan.QuoteUnplaced)

	// sold + placed + custody must reproduce the inventory exactly.
	check := new(big.Int).Add(s.state.TotalTokensSold, plan.AssetPlaced)
	check.Add(check, s.state.Custody)
	if check.Cmp(s.cfg.NumTokensToSell) != 0 {
		return ErrInventoryInvariant
	}

	if s.observer != nil {
		s.observer.OnRebalance(&domain.RebalanceRecord{
			SaleID:          s.id,
			Epoch:           epoch,
			Timestamp:       now,
			TickLower:       s.bounds.Lower,
			TickUpper:       s.bounds.Upper,
			PoolTick:        poolTick,
			TotalTokensSold: s.state.TotalTokensSold.String(),
			TotalProceeds:   s.state.TotalProceeds.String(),
			Slugs:           snapshots,
		})
	}
	return nil
}

// mature flips the sale into its end-of-life state. Failure is recorded
// when proceeds never reached the configured minimum.
func (s *Sale) mature() {
	s.state.Matured = true
	if s.state.TotalProceeds.Cmp(s.cfg.MinimumProceeds) < 0 {
		s.state.Failed = true
		s.logger.Printf("sale %s matured undersubscribed: proceeds %s below minimum %s",
			s.id, s.state.TotalProceeds, s.cfg.MinimumProceeds)
	} else {
		s.logger.Printf("sale %s matured: proceeds %s", s.id, s.state.TotalProceeds)
	}
	s.emitStatus()
}

func (s *Sale) emitStatus() {
	if s.observer != nil {
		s.observer.OnStatus(s.id, s.state.Status())
	}
}
