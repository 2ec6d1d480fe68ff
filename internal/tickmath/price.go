package tickmath

import (
	"math"

	"github.com/shopspring/decimal"
)

// PriceAtTick returns the human-readable price 1.0001^tick adjusted for
// token decimals. Intended for reports and logs only; all safety-critical
// math stays in the Q64.96 representation.
func PriceAtTick(tick int32, baseDecimals, quoteDecimals int32) decimal.Decimal {
	raw := math.Pow(1.0001, float64(tick))
	price := decimal.NewFromFloat(raw)
	shift := baseDecimals - quoteDecimals
	if shift != 0 {
		price = price.Mul(decimal.New(1, shift))
	}
	return price
}
