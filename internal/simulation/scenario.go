// Package simulation drives a sale through scripted market activity on an
// in-memory pool and collects the slug placements for analysis tooling.
package simulation

import (
	"fmt"
	"math/big"

	"token-auction-lab/internal/domain"
)

// Step is one scripted interaction with the sale. A step without deltas
// is an admission-only probe: it triggers epoch catch-up but settles
// nothing.
type Step struct {
	At int64 // unix seconds

	// Swap deltas from the pool's perspective. Both nil for a probe.
	AssetDelta *big.Int
	QuoteDelta *big.Int

	// Tick pins the pool tick after the swap. When nil, the tick is
	// resolved at run time as the active epoch ceiling plus TickOffset.
	Tick       *int32
	TickOffset int32
}

// IsSwap reports whether the step settles balance deltas.
func (s Step) IsSwap() bool {
	return s.AssetDelta != nil || s.QuoteDelta != nil
}

// Scenario is a full scripted run: a sale configuration, the ordered
// interactions, and an optional migration at the end.
type Scenario struct {
	Name   string
	Config *domain.SaleConfig
	Steps  []Step

	// MigrateAt > 0 triggers migration after the steps complete.
	MigrateAt int64
	Migrator  string
	Recipient string
}

// Builtin returns one of the canonical scenarios by name.
func Builtin(name string, cfg *domain.SaleConfig, migrator, recipient string) (Scenario, error) {
	switch name {
	case "quiet-decay":
		return QuietDecay(cfg, migrator, recipient), nil
	case "early-exit":
		return EarlyExit(cfg, migrator, recipient), nil
	case "undersubscribed":
		return Undersubscribed(cfg, migrator, recipient), nil
	case "round-trip":
		return RoundTrip(cfg, migrator, recipient), nil
	default:
		return Scenario{}, fmt.Errorf("unknown scenario %q", name)
	}
}

// Names lists the canonical scenario names.
func Names() []string {
	return []string{"quiet-decay", "early-exit", "undersubscribed", "round-trip"}
}

// QuietDecay probes the sale once per epoch with no demand at all. The
// price ceiling walks the full gamma every epoch and migration returns
// the entire inventory.
func QuietDecay(cfg *domain.SaleConfig, migrator, recipient string) Scenario {
	var steps []Step
	for e := int64(0); e < cfg.TotalEpochs(); e++ {
		steps = append(steps, Step{At: cfg.StartingTime + e*cfg.EpochLength})
	}
	return Scenario{
		Name:      "quiet-decay",
		Config:    cfg,
		Steps:     steps,
		MigrateAt: cfg.EndingTime + cfg.EpochLength,
		Migrator:  migrator,
		Recipient: recipient,
	}
}

// EarlyExit floods the sale with three buys sized so cumulative proceeds
// cross maximumProceeds on the last one.
func EarlyExit(cfg *domain.SaleConfig, migrator, recipient string) Scenario {
	quote := new(big.Int).Div(cfg.MaximumProceeds, big.NewInt(3))
	quote.Add(quote, big.NewInt(1))
	asset := new(big.Int).Div(cfg.NumTokensToSell, big.NewInt(10))

	var steps []Step
	for i := int64(1); i <= 3; i++ {
		steps = append(steps, Step{
			At:         cfg.StartingTime + i*cfg.EpochLength,
			AssetDelta: new(big.Int).Neg(asset),
			QuoteDelta: new(big.Int).Set(quote),
			TickOffset: 4,
		})
	}
	return Scenario{
		Name:      "early-exit",
		Config:    cfg,
		Steps:     steps,
		MigrateAt: cfg.StartingTime + 4*cfg.EpochLength,
		Migrator:  migrator,
		Recipient: recipient,
	}
}

// Undersubscribed trickles in a handful of small buys that never reach
// minimumProceeds, so the sale matures failed and migration reports it.
func Undersubscribed(cfg *domain.SaleConfig, migrator, recipient string) Scenario {
	quote := new(big.Int).Div(cfg.MinimumProceeds, big.NewInt(10))
	if quote.Sign() == 0 {
		quote = big.NewInt(1)
	}
	asset := new(big.Int).Div(cfg.NumTokensToSell, big.NewInt(1000))
	if asset.Sign() == 0 {
		asset = big.NewInt(1)
	}

	var steps []Step
	for _, e := range []int64{1, 5, 9} {
		steps = append(steps, Step{
			At:         cfg.StartingTime + e*cfg.EpochLength,
			AssetDelta: new(big.Int).Neg(asset),
			QuoteDelta: new(big.Int).Set(quote),
			TickOffset: 4,
		})
	}
	return Scenario{
		Name:      "undersubscribed",
		Config:    cfg,
		Steps:     steps,
		MigrateAt: cfg.EndingTime + cfg.EpochLength,
		Migrator:  migrator,
		Recipient: recipient,
	}
}

// RoundTrip buys early and sells the full position back within the same
// epoch, leaving net sold at zero for the rest of the sale.
func RoundTrip(cfg *domain.SaleConfig, migrator, recipient string) Scenario {
	asset := new(big.Int).Div(cfg.NumTokensToSell, big.NewInt(200))
	if asset.Sign() == 0 {
		asset = big.NewInt(1)
	}
	quote := new(big.Int).Div(cfg.MinimumProceeds, big.NewInt(25))
	if quote.Sign() == 0 {
		quote = big.NewInt(1)
	}

	buyAt := cfg.StartingTime + cfg.EpochLength
	steps := []Step{
		{
			At:         buyAt,
			AssetDelta: new(big.Int).Neg(asset),
			QuoteDelta: new(big.Int).Set(quote),
			TickOffset: 4,
		},
		{
			At:         buyAt + cfg.EpochLength/4,
			AssetDelta: new(big.Int).Set(asset),
			QuoteDelta: new(big.Int).Neg(quote),
			TickOffset: -64,
		},
	}
	// Quiet probes for the remainder of the schedule
	for e := int64(2); e < cfg.TotalEpochs(); e += 10 {
		steps = append(steps, Step{At: cfg.StartingTime + e*cfg.EpochLength})
	}
	return Scenario{
		Name:      "round-trip",
		Config:    cfg,
		Steps:     steps,
		MigrateAt: cfg.EndingTime + cfg.EpochLength,
		Migrator:  migrator,
		Recipient: recipient,
	}
}
