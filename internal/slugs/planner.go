// Package slugs turns epoch bounds and sale accounting into concrete
// liquidity placements. Three placements exist per epoch: a lower slug
// backing sell-backs with accumulated proceeds, an upper slug exposing
// the epoch's expected sales, and up to numPriceDiscoverySlugs thin
// slugs spreading the rest of the unsold inventory across the headroom
// between the epoch ceiling and the starting tick.
package slugs

import (
	"errors"
	"math/big"

	"token-auction-lab/internal/domain"
	"token-auction-lab/internal/drift"
	"token-auction-lab/internal/tickmath"
)

// ErrOversold reports accounting that claims more sold than the sale's
// inventory. This is fatal: the caller must abort without committing.
var ErrOversold = errors.New("total sold exceeds sale inventory")

// Input is one epoch's planning context.
type Input struct {
	Bounds   drift.Bounds
	PoolTick int32

	TotalSold     *big.Int
	TotalProceeds *big.Int

	// Cumulative amount the schedule expects sold by the end of the
	// epoch being planned. Sizes the upper slug.
	ExpectedSoldByEpochEnd *big.Int
}

// Plan is the set of placements for one epoch. Lower or Upper may be
// nil when there is no inventory or room for them; Discovery may be
// shorter than numPriceDiscoverySlugs when headroom is scarce.
type Plan struct {
	Lower     *domain.Position
	Upper     *domain.Position
	Discovery []domain.Position

	// Exact totals moved into the placements, after rounding down.
	AssetPlaced *big.Int
	QuotePlaced *big.Int

	// Rounding and headroom remainders. Stay in custody until the next
	// rebalance.
	AssetUnplaced *big.Int
	QuoteUnplaced *big.Int
}

// Positions returns the placements in placement order, skipping absent
// ones.
func (p *Plan) Positions() []domain.Position {
	out := make([]domain.Position, 0, len(p.Discovery)+2)
	if p.Lower != nil {
		out = append(out, *p.Lower)
	}
	if p.Upper != nil {
		out = append(out, *p.Upper)
	}
	out = append(out, p.Discovery...)
	return out
}

// Planner computes placements for one sale. Stateless; all state flows
// through Input.
type Planner struct {
	cfg *domain.SaleConfig
}

// NewPlanner builds a planner for a validated sale config.
func NewPlanner(cfg *domain.SaleConfig) *Planner {
	return &Planner{cfg: cfg}
}

// Plan computes the epoch's placements. The returned plan satisfies
// AssetPlaced + AssetUnplaced == numTokensToSell - TotalSold and
// QuotePlaced + QuoteUnplaced == TotalProceeds, exactly.
func (p *Planner) Plan(in Input) (*Plan, error) {
	remaining := new(big.Int).Sub(p.cfg.NumTokensToSell, in.TotalSold)
	if remaining.Sign() < 0 {
		return nil, ErrOversold
	}

	plan := &Plan{
		AssetPlaced: big.NewInt(0),
		QuotePlaced: big.NewInt(0),
	}

	if err := p.planLower(in, plan); err != nil {
		return nil, err
	}
	if err := p.planAssetSide(in, remaining, plan); err != nil {
		return nil, err
	}

	plan.AssetUnplaced = new(big.Int).Sub(remaining, plan.AssetPlaced)
	plan.QuoteUnplaced = new(big.Int).Sub(in.TotalProceeds, plan.QuotePlaced)
	return plan, nil
}

// planLower places the proceeds between the epoch floor and the pool
// tick, on the side price retreats into. When the pool sits at the
// epoch floor the slug is pinned to a single spacing just beyond it, so
// sell-backs always find quote liquidity.
func (p *Planner) planLower(in Input, plan *Plan) error {
	if in.TotalProceeds == nil || in.TotalProceeds.Sign() <= 0 {
		return nil
	}
	minTick, maxTick := p.cfg.TickRange()
	spacing := p.cfg.TickSpacing

	var lo, hi int32
	if p.cfg.DriftDirection() < 0 {
		lo, hi = in.Bounds.Lower, in.PoolTick
		if hi > maxTick {
			hi = maxTick
		}
		if hi-lo < spacing {
			hi = tickmath.AlignTickDown(in.PoolTick, spacing)
			lo = hi - spacing
		}
		if lo < minTick {
			return nil
		}
	} else {
		lo, hi = in.PoolTick, in.Bounds.Upper
		if lo < minTick {
			lo = minTick
		}
		if hi-lo < spacing {
			lo = tickmath.AlignTickUp(in.PoolTick, spacing)
			hi = lo + spacing
		}
		if hi > maxTick {
			return nil
		}
	}

	sqrtLo, sqrtHi, err := p.sqrtPair(lo, hi)
	if err != nil {
		return err
	}
	liquidity, err := p.quoteLiquidity(sqrtLo, sqrtHi, in.TotalProceeds)
	if err != nil {
		return err
	}
	if liquidity.Sign() <= 0 {
		return nil
	}
	placed, err := p.quoteAmount(sqrtLo, sqrtHi, liquidity)
	if err != nil {
		return err
	}

	plan.Lower = &domain.Position{
		Kind:        domain.SlugLower,
		TickLower:   lo,
		TickUpper:   hi,
		Liquidity:   liquidity,
		AmountAsset: big.NewInt(0),
		AmountQuote: placed,
	}
	plan.QuotePlaced.Add(plan.QuotePlaced, placed)
	return nil
}

// planAssetSide places the upper slug and the discovery slugs in the
// headroom between the epoch ceiling and the starting tick. The
// headroom is empty in epoch zero and grows as the bounds drift, so
// supply comes on the market progressively.
func (p *Planner) planAssetSide(in Input, remaining *big.Int, plan *Plan) error {
	if remaining.Sign() == 0 {
		return nil
	}
	minTick, maxTick := p.cfg.TickRange()
	spacing := p.cfg.TickSpacing
	down := p.cfg.DriftDirection() < 0

	// Upper slug range: one spacing beyond the epoch ceiling.
	var upLo, upHi int32
	if down {
		upLo = tickmath.AlignTickUp(in.Bounds.Upper, spacing)
		upHi = upLo + spacing
		if upHi > maxTick {
			upHi = maxTick
		}
	} else {
		upHi = tickmath.AlignTickDown(in.Bounds.Lower, spacing)
		upLo = upHi - spacing
		if upLo < minTick {
			upLo = minTick
		}
	}

	target := p.upperTarget(in, remaining)
	if upHi-upLo >= spacing && target.Sign() > 0 {
		pos, placed, err := p.assetPosition(domain.SlugUpper, 0, upLo, upHi, target)
		if err != nil {
			return err
		}
		if pos != nil {
			plan.Upper = pos
			plan.AssetPlaced.Add(plan.AssetPlaced, placed)
		}
	}

	// Discovery slugs fill whatever aligned headroom is left beyond the
	// upper slug.
	var bottom, top int32
	if down {
		bottom, top = upHi, maxTick
	} else {
		bottom, top = minTick, upLo
	}
	headroom := top - bottom
	if headroom < spacing {
		return nil
	}
	left := new(big.Int).Sub(remaining, plan.AssetPlaced)
	if left.Sign() <= 0 {
		return nil
	}

	count := int32(p.cfg.NumPriceDiscoverySlugs)
	if slots := headroom / spacing; count > slots {
		count = slots
	}
	width := (headroom / count / spacing) * spacing
	per := new(big.Int).Div(left, big.NewInt(int64(count)))
	if per.Sign() <= 0 {
		return nil
	}

	for i := int32(0); i < count; i++ {
		var lo, hi int32
		if down {
			lo = bottom + i*width
			hi = lo + width
			if i == count-1 {
				hi = top
			}
		} else {
			hi = top - i*width
			lo = hi - width
			if i == count-1 {
				lo = bottom
			}
		}
		pos, placed, err := p.assetPosition(domain.SlugDiscovery, int(i), lo, hi, per)
		if err != nil {
			return err
		}
		if pos == nil {
			continue
		}
		plan.Discovery = append(plan.Discovery, *pos)
		plan.AssetPlaced.Add(plan.AssetPlaced, placed)
	}
	return nil
}

// upperTarget caps the upper slug at what the schedule expects to sell
// by epoch end, net of what already sold, never exceeding the unsold
// remainder.
func (p *Planner) upperTarget(in Input, remaining *big.Int) *big.Int {
	if in.ExpectedSoldByEpochEnd == nil {
		return new(big.Int).Set(remaining)
	}
	target := new(big.Int).Sub(in.ExpectedSoldByEpochEnd, in.TotalSold)
	if target.Sign() < 0 {
		target.SetInt64(0)
	}
	if target.Cmp(remaining) > 0 {
		target.Set(remaining)
	}
	return target
}

// assetPosition solves liquidity for the target amount, then reports
// the amount the liquidity actually absorbs. Both conversions round
// down, so placed never exceeds target.
func (p *Planner) assetPosition(kind domain.SlugKind, index int, lo, hi int32, target *big.Int) (*domain.Position, *big.Int, error) {
	sqrtLo, sqrtHi, err := p.sqrtPair(lo, hi)
	if err != nil {
		return nil, nil, err
	}
	liquidity, err := p.assetLiquidity(sqrtLo, sqrtHi, target)
	if err != nil {
		return nil, nil, err
	}
	if liquidity.Sign() <= 0 {
		return nil, nil, nil
	}
	placed, err := p.assetAmount(sqrtLo, sqrtHi, liquidity)
	if err != nil {
		return nil, nil, err
	}

	return &domain.Position{
		Kind:        kind,
		Index:       index,
		TickLower:   lo,
		TickUpper:   hi,
		Liquidity:   liquidity,
		AmountAsset: placed,
		AmountQuote: big.NewInt(0),
	}, placed, nil
}

func (p *Planner) sqrtPair(lo, hi int32) (*big.Int, *big.Int, error) {
	sqrtLo, err := tickmath.SqrtRatioAtTick(lo)
	if err != nil {
		return nil, nil, err
	}
	sqrtHi, err := tickmath.SqrtRatioAtTick(hi)
	if err != nil {
		return nil, nil, err
	}
	return sqrtLo, sqrtHi, nil
}

// For a downward decay the asset occupies ranges above the pool tick
// and behaves as token0; for an upward decay the roles flip.

func (p *Planner) assetLiquidity(sqrtLo, sqrtHi, amount *big.Int) (*big.Int, error) {
	if p.cfg.DriftDirection() < 0 {
		return tickmath.LiquidityForAmount0(sqrtLo, sqrtHi, amount)
	}
	return tickmath.LiquidityForAmount1(sqrtLo, sqrtHi, amount)
}

func (p *Planner) assetAmount(sqrtLo, sqrtHi, liquidity *big.Int) (*big.Int, error) {
	if p.cfg.DriftDirection() < 0 {
		return tickmath.Amount0Delta(sqrtLo, sqrtHi, liquidity, false)
	}
	return tickmath.Amount1Delta(sqrtLo, sqrtHi, liquidity, false), nil
}

func (p *Planner) quoteLiquidity(sqrtLo, sqrtHi, amount *big.Int) (*big.Int, error) {
	if p.cfg.DriftDirection() < 0 {
		return tickmath.LiquidityForAmount1(sqrtLo, sqrtHi, amount)
	}
	return tickmath.LiquidityForAmount0(sqrtLo, sqrtHi, amount)
}

func (p *Planner) quoteAmount(sqrtLo, sqrtHi, liquidity *big.Int) (*big.Int, error) {
	if p.cfg.DriftDirection() < 0 {
		return tickmath.Amount1Delta(sqrtLo, sqrtHi, liquidity, false), nil
	}
	return tickmath.Amount0Delta(sqrtLo, sqrtHi, liquidity, false)
}
