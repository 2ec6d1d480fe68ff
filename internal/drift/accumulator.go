// Package drift computes per-epoch price bounds. The per-epoch tick
// delta is clamped to gamma regardless of how far behind schedule the
// sale is; this is the invariant that bounds the auction's decay speed.
package drift

import (
	"math/big"

	"token-auction-lab/internal/domain"
)

// Bounds are the price bounds of one epoch, in ticks. Lower <= Upper.
type Bounds struct {
	Lower int32
	Upper int32
}

// Accumulator derives the next epoch's bounds from the previous epoch's
// ending tick and the sold-vs-expected relationship.
type Accumulator struct {
	cfg      *domain.SaleConfig
	gammaAbs int32
}

// NewAccumulator builds an accumulator for a validated sale config.
func NewAccumulator(cfg *domain.SaleConfig) *Accumulator {
	gammaAbs := cfg.Gamma
	if gammaAbs < 0 {
		gammaAbs = -gammaAbs
	}
	return &Accumulator{cfg: cfg, gammaAbs: gammaAbs}
}

// InitialBounds returns epoch 0's bounds, anchored at startingTick with
// no drift applied.
func (a *Accumulator) InitialBounds() Bounds {
	return a.boundsAt(a.cfg.StartingTick)
}

// NextBounds computes the bounds for epoch, given the previous epoch's
// ending tick and the actual and expected amounts sold during it.
// expected == nil or <= 0 is treated as a full deficit. The returned
// tick is the new epoch's ending tick (the drifted edge), to be fed back
// on the next call.
func (a *Accumulator) NextBounds(lastEpochEndTick int32, epoch int64, actual, expected *big.Int) (Bounds, int32) {
	dir := a.cfg.DriftDirection()

	// The final epoch converges on endingTick, still within one gamma
	// per transition. It lands exactly when endingTick is within reach.
	if epoch >= a.cfg.TotalEpochs()-1 {
		step := a.cfg.EndingTick - lastEpochEndTick
		if step > a.gammaAbs {
			step = a.gammaAbs
		}
		if step < -a.gammaAbs {
			step = -a.gammaAbs
		}
		snapped := lastEpochEndTick + step
		return a.boundsAt(snapped), snapped
	}

	delta := a.deficitDelta(actual, expected)
	drifted := lastEpochEndTick + dir*delta

	// Never drift past the configured ending tick.
	if dir < 0 && drifted < a.cfg.EndingTick {
		drifted = a.cfg.EndingTick
	}
	if dir > 0 && drifted > a.cfg.EndingTick {
		drifted = a.cfg.EndingTick
	}

	return a.boundsAt(drifted), drifted
}

// deficitDelta returns the unsigned tick drift for the epoch: gamma
// scaled by the deficit ratio, aligned down to tick spacing (alignment
// narrows, never widens) and clamped to gamma.
func (a *Accumulator) deficitDelta(actual, expected *big.Int) int32 {
	if expected == nil || expected.Sign() <= 0 {
		return a.gammaAbs
	}
	if actual != nil && actual.Cmp(expected) >= 0 {
		// At or ahead of schedule: hold the bounds.
		return 0
	}

	deficit := new(big.Int).Set(expected)
	if actual != nil {
		deficit.Sub(deficit, actual)
	}
	scaled := deficit.Mul(deficit, big.NewInt(int64(a.gammaAbs)))
	scaled.Div(scaled, expected)

	delta := int32(scaled.Int64())
	delta = (delta / a.cfg.TickSpacing) * a.cfg.TickSpacing
	if delta > a.gammaAbs {
		delta = a.gammaAbs
	}
	return delta
}

// boundsAt returns the epoch bounds anchored at the drifted edge. For a
// downward decay the edge is the upper bound; for an upward one, the
// lower. The opposite bound sits one gamma away, clamped into the sale's
// global tick range.
func (a *Accumulator) boundsAt(edge int32) Bounds {
	minTick, maxTick := a.cfg.TickRange()

	if a.cfg.DriftDirection() < 0 {
		lower := edge - a.gammaAbs
		if lower < minTick {
			lower = minTick
		}
		return Bounds{Lower: lower, Upper: edge}
	}

	upper := edge + a.gammaAbs
	if upper > maxTick {
		upper = maxTick
	}
	return Bounds{Lower: edge, Upper: upper}
}
