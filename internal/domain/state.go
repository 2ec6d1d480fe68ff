package domain

import "math/big"

// Status is the lifecycle state of a sale.
type Status string

// Lifecycle states. EarlyExited, Matured and Migrated are one-way;
// Migrated is terminal.
const (
	StatusPreSale     Status = "PRE_SALE"
	StatusActive      Status = "ACTIVE"
	StatusEarlyExited Status = "EARLY_EXITED"
	StatusMatured     Status = "MATURED"
	StatusMigrated    Status = "MIGRATED"
)

// AuctionState is the sale's mutable record. It is mutated exclusively by
// hook-driven epoch transitions and swap settlement.
type AuctionState struct {
	TotalTokensSold *big.Int // net asset units taken out of pool reserves
	TotalProceeds   *big.Int // net quote units paid into pool reserves

	CurrentEpoch     int64 // last processed epoch index, monotonically non-decreasing
	LastEpochEndTick int32 // drifted ceiling tick after the last rollover

	// Custody is inventory not currently placed in any slug (rounding
	// remainders). Part of the reconciliation invariant:
	// sold + placed + custody == numTokensToSell.
	Custody *big.Int

	Started   bool
	EarlyExit bool
	Matured   bool
	Failed    bool // matured below minimum proceeds
	Migrated  bool
}

// NewAuctionState returns the zeroed state of a freshly created sale with
// the full inventory in custody.
func NewAuctionState(cfg *SaleConfig) *AuctionState {
	return &AuctionState{
		TotalTokensSold:  big.NewInt(0),
		TotalProceeds:    big.NewInt(0),
		CurrentEpoch:     -1,
		LastEpochEndTick: cfg.StartingTick,
		Custody:          new(big.Int).Set(cfg.NumTokensToSell),
	}
}

// Status derives the lifecycle state from the one-way flags.
func (s *AuctionState) Status() Status {
	switch {
	case s.Migrated:
		return StatusMigrated
	case s.EarlyExit:
		return StatusEarlyExited
	case s.Matured:
		return StatusMatured
	case s.Started:
		return StatusActive
	default:
		return StatusPreSale
	}
}

// Concluded reports whether the sale can no longer admit swaps.
func (s *AuctionState) Concluded() bool {
	return s.EarlyExit || s.Matured || s.Migrated
}

// Snapshot is the externally visible view of AuctionState, exposed to the
// factory/migration collaborators.
type Snapshot struct {
	TotalTokensSold *big.Int
	TotalProceeds   *big.Int
	CurrentEpoch    int64
	EarlyExit       bool
	Matured         bool
	Failed          bool
	Migrated        bool
}

// Snapshot copies the observable fields. The returned big.Ints are fresh.
func (s *AuctionState) Snapshot() Snapshot {
	return Snapshot{
		TotalTokensSold: new(big.Int).Set(s.TotalTokensSold),
		TotalProceeds:   new(big.Int).Set(s.TotalProceeds),
		CurrentEpoch:    s.CurrentEpoch,
		EarlyExit:       s.EarlyExit,
		Matured:         s.Matured,
		Failed:          s.Failed,
		Migrated:        s.Migrated,
	}
}
