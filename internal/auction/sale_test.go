package auction

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"io"
	"log"
	"math/big"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"token-auction-lab/internal/addr"
	"token-auction-lab/internal/domain"
	"token-auction-lab/internal/observability"
	"token-auction-lab/internal/pool"
)

func testAddr(t *testing.T) string {
	t.Helper()
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return base58.Encode(pub)
}

func testConfig(t *testing.T) *domain.SaleConfig {
	return &domain.SaleConfig{
		AssetMint:              testAddr(t),
		QuoteMint:              testAddr(t),
		NumTokensToSell:        big.NewInt(1_000_000),
		StartingTime:           0,
		EndingTime:             21_600,
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

type recorder struct {
	swaps      []*domain.SwapEventRecord
	rebalances []*domain.RebalanceRecord
	statuses   []domain.Status
}

func (r *recorder) OnSwap(rec *domain.SwapEventRecord)      { r.swaps = append(r.swaps, rec) }
func (r *recorder) OnRebalance(rec *domain.RebalanceRecord) { r.rebalances = append(r.rebalances, rec) }
func (r *recorder) OnStatus(_ string, st domain.Status)     { r.statuses = append(r.statuses, st) }

func newTestSale(t *testing.T) (*Sale, *pool.Memory, *recorder, string) {
	t.Helper()
	cfg := testConfig(t)
	pm := pool.NewMemory(cfg)
	rec := &recorder{}
	migrator := testAddr(t)

	s, err := NewSale(SaleOptions{
		Config:   cfg,
		Pool:     pm,
		Migrator: migrator,
		Observer: rec,
		Logger:   log.New(io.Discard, "", 0),
	})
	if err != nil {
		t.Fatalf("new sale: %v", err)
	}
	return s, pm, rec, migrator
}

func TestFirstSwapStartsSale(t *testing.T) {
	s, _, rec, _ := newTestSale(t)

	if s.Status() != domain.StatusPreSale {
		t.Fatalf("expected PRE_SALE, got %s", s.Status())
	}
	if err := s.Handle(Event{Kind: EventBeforeSwap, Now: -1}); !errors.Is(err, ErrNotStarted) {
		t.Errorf("expected ErrNotStarted before startingTime, got %v", err)
	}

	if err := s.Handle(Event{Kind: EventBeforeSwap, Now: 0}); err != nil {
		t.Fatalf("first swap admission: %v", err)
	}
	if s.Status() != domain.StatusActive {
		t.Errorf("expected ACTIVE, got %s", s.Status())
	}
	if got := s.State().CurrentEpoch; got != 0 {
		t.Errorf("expected epoch 0, got %d", got)
	}
	if len(rec.rebalances) != 1 {
		t.Errorf("expected one rebalance record, got %d", len(rec.rebalances))
	}
}

func TestCatchUpAfterTenQuietEpochs(t *testing.T) {
	s, pm, rec, _ := newTestSale(t)

	// First interaction lands in epoch 10. All ten missed rollovers are
	// processed in one batch, each clamped to gamma.
	if err := s.Handle(Event{Kind: EventBeforeSwap, Now: 4_000}); err != nil {
		t.Fatalf("admission: %v", err)
	}

	wantTick := int32(-172_504 - 10*1_624)
	if b := s.Bounds(); b.Upper != wantTick {
		t.Errorf("expected ceiling %d after 10 epochs of full drift, got %d", wantTick, b.Upper)
	}
	if got := s.State().CurrentEpoch; got != 10 {
		t.Errorf("expected epoch 10, got %d", got)
	}
	if got := pm.CurrentTick(); got != wantTick {
		t.Errorf("pool price must follow the ceiling, got %d", got)
	}
	if len(rec.rebalances) != 1 {
		t.Errorf("batched catch-up must place slugs once, got %d rebalances", len(rec.rebalances))
	}
	if len(pm.Salts()) == 0 {
		t.Error("expected slugs placed after drift opened headroom")
	}
}

func TestRolloverIdempotentWithinEpoch(t *testing.T) {
	s, pm, rec, _ := newTestSale(t)

	if err := s.Handle(Event{Kind: EventBeforeSwap, Now: 2_000}); err != nil {
		t.Fatalf("admission: %v", err)
	}
	bounds := s.Bounds()
	salts := pm.Salts()

	// Second swap in the same epoch: no drift, no replacement.
	if err := s.Handle(Event{Kind: EventBeforeSwap, Now: 2_300}); err != nil {
		t.Fatalf("second admission: %v", err)
	}
	if s.Bounds() != bounds {
		t.Errorf("bounds drifted within one epoch: %+v != %+v", s.Bounds(), bounds)
	}
	if got := pm.Salts(); len(got) != len(salts) {
		t.Errorf("slug set changed within one epoch")
	}
	if len(rec.rebalances) != 1 {
		t.Errorf("expected exactly one rebalance, got %d", len(rec.rebalances))
	}
}

func TestEarlyExitBlocksNextSwap(t *testing.T) {
	s, pm, _, _ := newTestSale(t)

	if err := s.Handle(Event{Kind: EventBeforeSwap, Now: 2_000}); err != nil {
		t.Fatalf("admission: %v", err)
	}

	// One buy consumes the whole maximumProceeds.
	pm.SetTick(s.Bounds().Upper + 200)
	err := s.Handle(Event{Kind: EventAfterSwap, Now: 2_010, Swap: &SwapResult{
		AssetDelta: big.NewInt(-120_000),
		QuoteDelta: big.NewInt(10_000_000),
		TickAfter:  s.Bounds().Upper + 200,
	}})
	if err != nil {
		t.Fatalf("settlement: %v", err)
	}

	if s.Status() != domain.StatusEarlyExited {
		t.Fatalf("expected EARLY_EXITED, got %s", s.Status())
	}
	if err := s.Handle(Event{Kind: EventBeforeSwap, Now: 2_020}); !errors.Is(err, ErrSaleConcluded) {
		t.Errorf("expected ErrSaleConcluded for the next swap, got %v", err)
	}
}

func TestMaturityUndersubscribed(t *testing.T) {
	s, pm, _, migrator := newTestSale(t)

	if err := s.Handle(Event{Kind: EventBeforeSwap, Now: 400}); err != nil {
		t.Fatalf("admission: %v", err)
	}
	if err := pm.ApplySwap(big.NewInt(-1_000), big.NewInt(99_999)); err != nil {
		t.Fatalf("apply swap: %v", err)
	}
	err := s.Handle(Event{Kind: EventAfterSwap, Now: 410, Swap: &SwapResult{
		AssetDelta: big.NewInt(-1_000),
		QuoteDelta: big.NewInt(99_999), // one below minimumProceeds
		TickAfter:  s.Bounds().Upper,
	}})
	if err != nil {
		t.Fatalf("settlement: %v", err)
	}

	if err := s.Handle(Event{Kind: EventBeforeSwap, Now: 21_600}); !errors.Is(err, ErrSaleConcluded) {
		t.Fatalf("expected rejection at maturity, got %v", err)
	}
	st := s.State()
	if s.Status() != domain.StatusMatured || !st.Failed {
		t.Errorf("expected MATURED with failure flag, got %s failed=%v", s.Status(), st.Failed)
	}

	res, err := s.Migrate(21_700, migrator, testAddr(t))
	if err != nil {
		t.Fatalf("migrate after failed maturity: %v", err)
	}
	if !res.Failed {
		t.Error("migration must report the under-subscription condition")
	}
	if want := big.NewInt(999_000); res.AssetAmount.Cmp(want) != 0 {
		t.Errorf("expected the unsold %s back, got %s", want, res.AssetAmount)
	}
	if want := big.NewInt(99_999); res.QuoteAmount.Cmp(want) != 0 {
		t.Errorf("expected the settled proceeds %s back, got %s", want, res.QuoteAmount)
	}
}

func TestMigratePolicy(t *testing.T) {
	s, _, _, migrator := newTestSale(t)
	recipient := testAddr(t)

	if _, err := s.Migrate(100, migrator, recipient); !errors.Is(err, ErrNotConcluded) {
		t.Errorf("expected ErrNotConcluded mid-sale, got %v", err)
	}
	if _, err := s.Migrate(100, testAddr(t), recipient); !errors.Is(err, ErrUnauthorizedCaller) {
		t.Errorf("expected ErrUnauthorizedCaller, got %v", err)
	}
	if _, err := s.Migrate(100, "not-base58-0OIl", recipient); !errors.Is(err, addr.ErrInvalidAddress) {
		t.Errorf("expected ErrInvalidAddress, got %v", err)
	}
	if s.Status() != domain.StatusPreSale {
		t.Errorf("failed migrations must not mutate state, got %s", s.Status())
	}
}

func TestMigrateQuietSaleReturnsFullInventory(t *testing.T) {
	s, _, _, migrator := newTestSale(t)

	// No interaction ever happens. Migration observes maturity itself.
	res, err := s.Migrate(22_000, migrator, testAddr(t))
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if res.AssetAmount.Cmp(big.NewInt(1_000_000)) != 0 {
		t.Errorf("expected the full inventory back, got %s", res.AssetAmount)
	}
	if res.QuoteAmount.Sign() != 0 {
		t.Errorf("expected no proceeds, got %s", res.QuoteAmount)
	}
	if !res.Failed {
		t.Error("zero proceeds below minimum must be a failed sale")
	}
	if s.Status() != domain.StatusMigrated {
		t.Errorf("expected MIGRATED, got %s", s.Status())
	}

	if _, err := s.Migrate(22_100, migrator, testAddr(t)); !errors.Is(err, ErrAlreadyMigrated) {
		t.Errorf("expected ErrAlreadyMigrated, got %v", err)
	}
}

func TestTerminalImmutability(t *testing.T) {
	s, pm, rec, migrator := newTestSale(t)

	if err := s.Handle(Event{Kind: EventBeforeSwap, Now: 2_000}); err != nil {
		t.Fatalf("admission: %v", err)
	}
	if err := pm.ApplySwap(big.NewInt(-120_000), big.NewInt(10_000_000)); err != nil {
		t.Fatalf("apply swap: %v", err)
	}
	err := s.Handle(Event{Kind: EventAfterSwap, Now: 2_010, Swap: &SwapResult{
		AssetDelta: big.NewInt(-120_000),
		QuoteDelta: big.NewInt(10_000_000),
		TickAfter:  s.Bounds().Upper,
	}})
	if err != nil {
		t.Fatalf("settlement: %v", err)
	}
	res, err := s.Migrate(2_020, migrator, testAddr(t))
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if want := big.NewInt(880_000); res.AssetAmount.Cmp(want) != 0 {
		t.Errorf("expected the unsold %s back, got %s", want, res.AssetAmount)
	}
	if want := big.NewInt(10_000_000); res.QuoteAmount.Cmp(want) != 0 {
		t.Errorf("expected the settled proceeds %s back, got %s", want, res.QuoteAmount)
	}

	rebalances := len(rec.rebalances)
	if err := s.Handle(Event{Kind: EventBeforeSwap, Now: 3_000}); !errors.Is(err, ErrSaleConcluded) {
		t.Errorf("expected ErrSaleConcluded after migration, got %v", err)
	}
	if len(rec.rebalances) != rebalances {
		t.Error("no rollover may be observable after migration")
	}
	if len(pm.Salts()) != 0 {
		t.Error("migration must leave no positions behind")
	}

	// The pool is released: external liquidity is no longer rejected.
	if err := s.Handle(Event{Kind: EventBeforeAddLiquidity, Sender: "lp"}); err != nil {
		t.Errorf("expected external liquidity admitted after migration, got %v", err)
	}
}

func TestExternalLiquidityRejected(t *testing.T) {
	s, _, _, _ := newTestSale(t)

	if err := s.Handle(Event{Kind: EventBeforeAddLiquidity, Sender: "lp"}); !errors.Is(err, ErrExternalLiquidity) {
		t.Errorf("expected ErrExternalLiquidity, got %v", err)
	}
	if err := s.Handle(Event{Kind: EventBeforeDonate}); !errors.Is(err, ErrDonationRejected) {
		t.Errorf("expected ErrDonationRejected, got %v", err)
	}
}

func TestRejectedOperationsAreCounted(t *testing.T) {
	s, _, _, _ := newTestSale(t)

	counter := observability.DefaultMetrics.OperationsRejected.WithLabelValues("external_liquidity")
	before := testutil.ToFloat64(counter)

	if err := s.Handle(Event{Kind: EventBeforeAddLiquidity, Sender: "lp"}); !errors.Is(err, ErrExternalLiquidity) {
		t.Fatalf("expected ErrExternalLiquidity, got %v", err)
	}
	if got := testutil.ToFloat64(counter); got != before+1 {
		t.Errorf("expected rejection count %v, got %v", before+1, got)
	}
}

func TestDisabledCallbackIsNoop(t *testing.T) {
	cfg := testConfig(t)
	s, err := NewSale(SaleOptions{
		Config:    cfg,
		Pool:      pool.NewMemory(cfg),
		Migrator:  testAddr(t),
		Callbacks: CallbackBeforeSwap | CallbackAfterSwap,
		Logger:    log.New(io.Discard, "", 0),
	})
	if err != nil {
		t.Fatalf("new sale: %v", err)
	}

	if err := s.Handle(Event{Kind: EventBeforeAddLiquidity, Sender: "lp"}); err != nil {
		t.Errorf("disabled callback must be acknowledged silently, got %v", err)
	}
}

func TestRoundTripWithinEpochKeepsPrice(t *testing.T) {
	s, pm, _, _ := newTestSale(t)

	if err := s.Handle(Event{Kind: EventBeforeSwap, Now: 2_000}); err != nil {
		t.Fatalf("admission: %v", err)
	}

	// An initial buy, so the sell-back has inventory to return.
	buyTick := s.Bounds().Upper + 4
	pm.SetTick(buyTick)
	err := s.Handle(Event{Kind: EventAfterSwap, Now: 2_010, Swap: &SwapResult{
		AssetDelta: big.NewInt(-5_000),
		QuoteDelta: big.NewInt(4_200),
		TickAfter:  buyTick,
	}})
	if err != nil {
		t.Fatalf("buy settlement: %v", err)
	}

	// Sell-back through the lower slug, then an equal-size buy-back,
	// both within the same epoch: no rollover interferes and the price
	// returns exactly.
	if err := s.Handle(Event{Kind: EventBeforeSwap, Now: 2_050}); err != nil {
		t.Fatalf("sell admission: %v", err)
	}
	pm.SetTick(buyTick - 64)
	err = s.Handle(Event{Kind: EventAfterSwap, Now: 2_050, Swap: &SwapResult{
		AssetDelta: big.NewInt(5_000),
		QuoteDelta: big.NewInt(-4_200),
		TickAfter:  buyTick - 64,
	}})
	if err != nil {
		t.Fatalf("sell settlement: %v", err)
	}

	if err := s.Handle(Event{Kind: EventBeforeSwap, Now: 2_060}); err != nil {
		t.Fatalf("buy admission: %v", err)
	}
	pm.SetTick(buyTick)
	err = s.Handle(Event{Kind: EventAfterSwap, Now: 2_060, Swap: &SwapResult{
		AssetDelta: big.NewInt(-5_000),
		QuoteDelta: big.NewInt(4_200),
		TickAfter:  buyTick,
	}})
	if err != nil {
		t.Fatalf("buy-back settlement: %v", err)
	}

	if got := pm.CurrentTick(); got != buyTick {
		t.Errorf("round trip within one epoch must restore the price, got %d want %d", got, buyTick)
	}
	if got := s.State().TotalTokensSold.Cmp(big.NewInt(5_000)); got != 0 {
		t.Errorf("round trip must net out to the initial buy, got %s", s.State().TotalTokensSold)
	}
}
