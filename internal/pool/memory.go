package pool

import (
	"math/big"
	"sort"
	"sync"

	"token-auction-lab/internal/domain"
	"token-auction-lab/internal/tickmath"
)

// Memory is an in-process pool used by the simulation harness and
// tests. Swaps are not computed here: the driver moves the tick with
// SetTick and folds each settled swap's balance deltas in with
// ApplySwap. Reserves are a strict ledger: placements credit them,
// swap deltas move them, withdrawal empties them. Positions are valued
// with the constant-liquidity formula only at placement time.
type Memory struct {
	mu        sync.Mutex
	cfg       *domain.SaleConfig
	tick      int32
	positions map[string]*domain.Position

	assetReserve *big.Int
	quoteReserve *big.Int
}

// NewMemory creates an empty pool sitting at the sale's starting tick.
func NewMemory(cfg *domain.SaleConfig) *Memory {
	return &Memory{
		cfg:          cfg,
		tick:         cfg.StartingTick,
		positions:    make(map[string]*domain.Position),
		assetReserve: big.NewInt(0),
		quoteReserve: big.NewInt(0),
	}
}

// CurrentTick implements View.
func (m *Memory) CurrentTick() int32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tick
}

// SetTick moves the pool to a new tick. Used by the simulation driver
// after a scripted swap.
func (m *Memory) SetTick(tick int32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tick = tick
}

// MoveTick implements View.
func (m *Memory) MoveTick(tick int32) {
	m.SetTick(tick)
}

// ApplySwap settles one swap against the reserves, pool perspective:
// a negative asset delta means asset left the pool toward the buyer, a
// positive quote delta means proceeds came in. Reserves can never go
// negative; a swap that would drain more than the pool holds is the
// driver's bug, not a rounding artifact.
func (m *Memory) ApplySwap(assetDelta, quoteDelta *big.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	asset := new(big.Int).Set(m.assetReserve)
	quote := new(big.Int).Set(m.quoteReserve)
	if assetDelta != nil {
		asset.Add(asset, assetDelta)
	}
	if quoteDelta != nil {
		quote.Add(quote, quoteDelta)
	}
	if asset.Sign() < 0 || quote.Sign() < 0 {
		return ErrInsufficientReserves
	}

	m.assetReserve = asset
	m.quoteReserve = quote
	return nil
}

// Place implements View.
func (m *Memory) Place(pos *domain.Position) (*big.Int, *big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	salt := pos.Salt()
	if _, ok := m.positions[salt]; ok {
		return nil, nil, ErrPositionExists
	}
	asset, quote, err := m.amountsAt(pos, m.tick)
	if err != nil {
		return nil, nil, err
	}

	held := *pos
	held.Liquidity = new(big.Int).Set(pos.Liquidity)
	m.positions[salt] = &held
	m.assetReserve.Add(m.assetReserve, asset)
	m.quoteReserve.Add(m.quoteReserve, quote)
	return asset, quote, nil
}

// WithdrawAll implements View. Emptying an empty pool returns zeros.
func (m *Memory) WithdrawAll() (*big.Int, *big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	asset := m.assetReserve
	quote := m.quoteReserve
	m.assetReserve = big.NewInt(0)
	m.quoteReserve = big.NewInt(0)
	m.positions = make(map[string]*domain.Position)
	return asset, quote, nil
}

// Salts implements View.
func (m *Memory) Salts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, 0, len(m.positions))
	for salt := range m.positions {
		out = append(out, salt)
	}
	sort.Strings(out)
	return out
}

// amountsAt values a position at a tick. Standard piecewise rule: fully
// one-sided outside the range, split at the tick inside it. Token sides
// map to asset and quote by the sale's decay direction.
func (m *Memory) amountsAt(pos *domain.Position, tick int32) (*big.Int, *big.Int, error) {
	sqrtLo, err := tickmath.SqrtRatioAtTick(pos.TickLower)
	if err != nil {
		return nil, nil, err
	}
	sqrtHi, err := tickmath.SqrtRatioAtTick(pos.TickUpper)
	if err != nil {
		return nil, nil, err
	}

	var amount0, amount1 *big.Int
	switch {
	case tick <= pos.TickLower:
		amount0, err = tickmath.Amount0Delta(sqrtLo, sqrtHi, pos.Liquidity, false)
		if err != nil {
			return nil, nil, err
		}
		amount1 = big.NewInt(0)
	case tick >= pos.TickUpper:
		amount0 = big.NewInt(0)
		amount1 = tickmath.Amount1Delta(sqrtLo, sqrtHi, pos.Liquidity, false)
	default:
		sqrtAt, err := tickmath.SqrtRatioAtTick(tick)
		if err != nil {
			return nil, nil, err
		}
		amount0, err = tickmath.Amount0Delta(sqrtAt, sqrtHi, pos.Liquidity, false)
		if err != nil {
			return nil, nil, err
		}
		amount1 = tickmath.Amount1Delta(sqrtLo, sqrtAt, pos.Liquidity, false)
	}

	if m.cfg.DriftDirection() < 0 {
		return amount0, amount1, nil
	}
	return amount1, amount0, nil
}

var _ View = (*Memory)(nil)
