package domain

import (
	"fmt"
	"math/big"
)

// SlugKind identifies one of the sale's liquidity placements.
type SlugKind string

// Slug kinds. Discovery slugs carry an index suffix in their salt.
const (
	SlugLower     SlugKind = "lowerSlug"
	SlugUpper     SlugKind = "upperSlug"
	SlugDiscovery SlugKind = "pdSlug"
)

// Position is a concentrated-liquidity range owned by the sale.
type Position struct {
	Kind      SlugKind
	Index     int // 0 except for discovery slugs
	TickLower int32
	TickUpper int32
	Liquidity *big.Int

	// Amounts actually moved into the range at placement, as reported
	// by the pool. Used for exact inventory reconciliation.
	AmountAsset *big.Int
	AmountQuote *big.Int
}

// Salt returns the stable identifier the pool keys this position by.
func (p *Position) Salt() string {
	if p.Kind == SlugDiscovery {
		return fmt.Sprintf("%s%d", p.Kind, p.Index+1)
	}
	return string(p.Kind)
}
