package domain

import (
	"errors"
	"fmt"
	"math/big"
)

// MaxPriceDiscoverySlugs caps the number of thin ranges exposing future
// supply above the active range.
const MaxPriceDiscoverySlugs = 15

// Configuration errors. All are detected at construction; a sale is never
// partially constructed.
var (
	ErrZeroInventory       = errors.New("num tokens to sell must be positive")
	ErrInvalidTimeBounds   = errors.New("starting time must precede ending time")
	ErrInvalidEpochLength  = errors.New("sale duration must be a positive multiple of epoch length")
	ErrInvalidTickSpacing  = errors.New("tick spacing must be positive")
	ErrInvalidTickRange    = errors.New("starting and ending ticks must differ and align to tick spacing")
	ErrGammaSignMismatch   = errors.New("gamma sign must match the direction of ending tick minus starting tick")
	ErrGammaNotAligned     = errors.New("gamma must be a non-zero multiple of tick spacing")
	ErrGammaTooSmall       = errors.New("cumulative gamma drift cannot reach the ending tick")
	ErrInvalidProceeds     = errors.New("maximum proceeds must be positive and not below minimum proceeds")
	ErrInvalidSlugCount    = errors.New("price discovery slug count out of range")
)

// SaleConfig is the immutable configuration of a sale, fixed at creation.
type SaleConfig struct {
	AssetMint string // base58 address of the asset being sold
	QuoteMint string // base58 address of the numeraire

	NumTokensToSell *big.Int
	StartingTime    int64 // unix seconds
	EndingTime      int64 // unix seconds
	EpochLength     int64 // seconds

	StartingTick int32
	EndingTick   int32
	Gamma        int32 // max signed tick drift per epoch
	TickSpacing  int32

	MinimumProceeds *big.Int
	MaximumProceeds *big.Int

	NumPriceDiscoverySlugs int
	AssetIsBaseCurrency    bool   // asset is token0 of the pool
	InitialLpFee           uint32 // fee in hundredths of a bip
}

// TotalEpochs returns the number of epochs in the sale schedule.
func (c *SaleConfig) TotalEpochs() int64 {
	return (c.EndingTime - c.StartingTime) / c.EpochLength
}

// DriftDirection returns -1 for a downward decay (ending tick below
// starting tick) and +1 for an upward one.
func (c *SaleConfig) DriftDirection() int32 {
	if c.EndingTick < c.StartingTick {
		return -1
	}
	return 1
}

// TickRange returns the sale's global tick bounds as (min, max).
func (c *SaleConfig) TickRange() (int32, int32) {
	if c.StartingTick < c.EndingTick {
		return c.StartingTick, c.EndingTick
	}
	return c.EndingTick, c.StartingTick
}

// Validate checks every construction-time invariant. It returns the first
// violation found.
func (c *SaleConfig) Validate() error {
	if c.NumTokensToSell == nil || c.NumTokensToSell.Sign() <= 0 {
		return ErrZeroInventory
	}
	if c.StartingTime >= c.EndingTime {
		return ErrInvalidTimeBounds
	}
	if c.EpochLength <= 0 || (c.EndingTime-c.StartingTime)%c.EpochLength != 0 {
		return ErrInvalidEpochLength
	}
	if c.TickSpacing <= 0 {
		return ErrInvalidTickSpacing
	}
	if c.StartingTick == c.EndingTick ||
		c.StartingTick%c.TickSpacing != 0 || c.EndingTick%c.TickSpacing != 0 {
		return ErrInvalidTickRange
	}
	if c.Gamma == 0 || c.Gamma%c.TickSpacing != 0 {
		return ErrGammaNotAligned
	}
	tickDelta := c.EndingTick - c.StartingTick
	if (tickDelta < 0) != (c.Gamma < 0) {
		return ErrGammaSignMismatch
	}
	span := int64(tickDelta)
	if span < 0 {
		span = -span
	}
	gammaAbs := int64(c.Gamma)
	if gammaAbs < 0 {
		gammaAbs = -gammaAbs
	}
	if gammaAbs*c.TotalEpochs() < span {
		return ErrGammaTooSmall
	}
	if c.MaximumProceeds == nil || c.MaximumProceeds.Sign() <= 0 ||
		c.MinimumProceeds == nil || c.MinimumProceeds.Cmp(c.MaximumProceeds) > 0 {
		return ErrInvalidProceeds
	}
	if c.NumPriceDiscoverySlugs < 1 || c.NumPriceDiscoverySlugs > MaxPriceDiscoverySlugs {
		return fmt.Errorf("%w: %d", ErrInvalidSlugCount, c.NumPriceDiscoverySlugs)
	}
	return nil
}
