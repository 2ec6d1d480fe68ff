package auction

import (
	"fmt"
	"math/big"

	"token-auction-lab/internal/addr"
)

// MigrationResult reports the final reserves handed off to the
// migration recipient. Failed marks an undersubscribed sale: the
// recipient gets the reserves back but must not establish a liquidity
// venue from them.
type MigrationResult struct {
	AssetAmount *big.Int
	QuoteAmount *big.Int
	Failed      bool
}

// Migrate withdraws all remaining slug liquidity and hands the final
// reserves to recipient. Callable exactly once, only by the authorized
// migrator, only after the sale concluded. Maturity past endingTime is
// observed here the same way swaps observe it, so a sale without
// post-deadline interactions can still be migrated. Failed calls do not
// mutate state.
func (s *Sale) Migrate(now int64, caller, recipient string) (*MigrationResult, error) {
	if err := addr.Validate(caller); err != nil {
		return nil, fmt.Errorf("caller: %w", err)
	}
	if err := addr.Validate(recipient); err != nil {
		return nil, fmt.Errorf("recipient: %w", err)
	}
	if caller != s.migrator {
		return nil, ErrUnauthorizedCaller
	}
	if s.state.Migrated {
		return nil, ErrAlreadyMigrated
	}
	if !s.state.EarlyExit && !s.state.Matured {
		if now < s.cfg.EndingTime {
			return nil, ErrNotConcluded
		}
		s.mature()
	}

	poolAsset, poolQuote, err := s.pool.WithdrawAll()
	if err != nil {
		return nil, fmt.Errorf("withdraw slugs: %w", err)
	}
	asset := new(big.Int).Add(s.state.Custody, poolAsset)
	quote := new(big.Int).Add(s.quoteCustody, poolQuote)

	// The handoff must reproduce the accounting exactly: everything not
	// sold comes back, and every settled quote unit is present.
	check := new(big.Int).Add(asset, s.state.TotalTokensSold)
	if check.Cmp(s.cfg.NumTokensToSell) != 0 {
		return nil, ErrInventoryInvariant
	}
	if quote.Cmp(s.state.TotalProceeds) != 0 {
		return nil, ErrInventoryInvariant
	}

	s.state.Custody.SetInt64(0)
	s.quoteCustody.SetInt64(0)
	s.state.Migrated = true
	s.logger.Printf("sale %s migrated to %s: asset=%s quote=%s failed=%v",
		s.id, recipient, asset, quote, s.state.Failed)
	s.emitStatus()

	return &MigrationResult{
		AssetAmount: asset,
		QuoteAmount: quote,
		Failed:      s.state.Failed,
	}, nil
}
