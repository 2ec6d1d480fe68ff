package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeSaleID computes a deterministic sale_id using SHA256.
// Formula: SHA256(asset_mint|quote_mint|starting_time|num_tokens_to_sell)
// Returns hex-encoded hash (64 characters).
func ComputeSaleID(assetMint, quoteMint string, startingTime int64, numTokensToSell string) string {
	data := fmt.Sprintf("%s|%s|%d|%s",
		assetMint,
		quoteMint,
		startingTime,
		numTokensToSell,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
