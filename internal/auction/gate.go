// Package auction is the sale engine: a state machine driven by AMM
// callbacks that rolls epochs forward, replaces liquidity slugs and
// enforces the sale's admission policy.
package auction

import (
	"errors"
	"math/big"

	"token-auction-lab/internal/observability"
)

// Callbacks is the explicit capability set replacing the AMM engine's
// address-flag convention. Only events whose bit is set are dispatched;
// the rest are acknowledged without effect.
type Callbacks uint8

const (
	CallbackBeforeSwap Callbacks = 1 << iota
	CallbackAfterSwap
	CallbackBeforeAddLiquidity
	CallbackBeforeDonate
)

// DefaultCallbacks enables every injection point the sale relies on.
const DefaultCallbacks = CallbackBeforeSwap | CallbackAfterSwap | CallbackBeforeAddLiquidity | CallbackBeforeDonate

// Has reports whether all bits of cb are set.
func (c Callbacks) Has(cb Callbacks) bool {
	return c&cb == cb
}

// EventKind identifies the AMM injection point an Event arrived on.
type EventKind int

const (
	EventBeforeSwap EventKind = iota
	EventAfterSwap
	EventBeforeAddLiquidity
	EventBeforeDonate
)

func (k EventKind) callback() Callbacks {
	switch k {
	case EventBeforeSwap:
		return CallbackBeforeSwap
	case EventAfterSwap:
		return CallbackAfterSwap
	case EventBeforeAddLiquidity:
		return CallbackBeforeAddLiquidity
	default:
		return CallbackBeforeDonate
	}
}

// SwapResult carries the settled balance deltas of one swap, from the
// pool's perspective: a negative AssetDelta means asset left the pool
// toward the buyer, a positive QuoteDelta means proceeds came in.
type SwapResult struct {
	AssetDelta *big.Int
	QuoteDelta *big.Int
	TickAfter  int32
}

// Event is the unit dispatched through Handle.
type Event struct {
	Kind EventKind
	Now  int64 // unix seconds observed at the injection point

	// Swap is required for EventAfterSwap.
	Swap *SwapResult

	// Sender identifies the originator of a liquidity or donate
	// attempt. The sale's own placements do not route through the gate.
	Sender string
}

// Policy rejections. Expected, recoverable by the caller.
var (
	ErrNotStarted        = errors.New("sale has not started")
	ErrSaleConcluded     = errors.New("sale concluded, no further swaps admitted")
	ErrExternalLiquidity = errors.New("external liquidity modification rejected while sale owns the pool")
	ErrDonationRejected  = errors.New("donations rejected while sale owns the pool")
	ErrReentrantRollover = errors.New("re-entrant epoch rollover")
)

// Invariant violations. Fatal for the triggering operation; nothing is
// committed.
var (
	ErrInventoryInvariant = errors.New("inventory accounting violated")
	ErrMissingSwapResult  = errors.New("after-swap event without settlement data")
)

// Migration errors.
var (
	ErrNotConcluded       = errors.New("sale not concluded, migration unavailable")
	ErrUnauthorizedCaller = errors.New("caller not authorized to migrate")
	ErrAlreadyMigrated    = errors.New("sale already migrated")
)

// Handle dispatches one callback event. Events whose callback bit is
// not enabled are acknowledged without effect.
func (s *Sale) Handle(ev Event) error {
	if !s.callbacks.Has(ev.Kind.callback()) {
		return nil
	}
	var err error
	switch ev.Kind {
	case EventBeforeSwap:
		err = s.beforeSwap(ev.Now)
	case EventAfterSwap:
		err = s.afterSwap(ev.Now, ev.Swap)
	case EventBeforeAddLiquidity:
		err = s.beforeAddLiquidity(ev.Sender)
	case EventBeforeDonate:
		err = s.beforeDonate()
	}
	if reason := rejectionReason(err); reason != "" {
		observability.RecordRejection(reason)
	}
	return err
}

// rejectionReason maps a policy rejection to its metric label. Invariant
// violations and transport errors are not admission policy and return
// the empty string.
func rejectionReason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotStarted):
		return "not_started"
	case errors.Is(err, ErrSaleConcluded):
		return "concluded"
	case errors.Is(err, ErrExternalLiquidity):
		return "external_liquidity"
	case errors.Is(err, ErrDonationRejected):
		return "donation"
	case errors.Is(err, ErrReentrantRollover):
		return "reentrant_rollover"
	default:
		return ""
	}
}

func (s *Sale) beforeAddLiquidity(string) error {
	if s.state.Migrated {
		return nil
	}
	return ErrExternalLiquidity
}

func (s *Sale) beforeDonate() error {
	if s.state.Migrated {
		return nil
	}
	return ErrDonationRejected
}
