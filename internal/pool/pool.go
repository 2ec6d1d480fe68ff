// Package pool is the sale's view of the external AMM pool. The
// auction engine only places and withdraws its own positions; swaps are
// executed by the AMM and reported to the engine from outside.
package pool

import (
	"errors"
	"math/big"

	"token-auction-lab/internal/domain"
)

var (
	ErrPositionExists       = errors.New("position already placed under this salt")
	ErrInsufficientReserves = errors.New("swap exceeds pool reserves")
)

// View is the pool surface the auction engine depends on.
type View interface {
	// CurrentTick reports the pool's current tick.
	CurrentTick() int32

	// Place moves a position's liquidity into the pool and reports the
	// asset and quote amounts the pool absorbed, valued at the current
	// tick.
	Place(pos *domain.Position) (asset, quote *big.Int, err error)

	// WithdrawAll removes every placed position and returns the pool's
	// entire reserves: everything placed plus whatever settled swaps
	// added or removed since. The engine always empties the pool, both
	// at a rebalance and at migration, so there is no per-position
	// withdrawal.
	WithdrawAll() (asset, quote *big.Int, err error)

	// MoveTick repositions the pool price. Only meaningful while the
	// sale is the pool's sole liquidity provider, which it is for the
	// whole pre-migration lifetime; called between withdrawing and
	// replacing slugs during a rebalance.
	MoveTick(tick int32)

	// Salts lists the currently placed positions in deterministic
	// order.
	Salts() []string
}
