package tickmath

import (
	"errors"
	"math/big"
)

var (
	ErrLiquidityZero = errors.New("liquidity must be greater than zero")
	ErrSqrtPriceZero = errors.New("sqrt price must be greater than zero")

	bigOne = big.NewInt(1)
)

// mulDiv returns (a * b) / c rounded toward zero.
func mulDiv(a, b, c *big.Int) *big.Int {
	product := new(big.Int).Mul(a, b)
	return product.Div(product, c)
}

// mulDivRoundingUp returns ceil((a * b) / c).
func mulDivRoundingUp(a, b, c *big.Int) *big.Int {
	product := new(big.Int).Mul(a, b)
	quotient, rem := new(big.Int).DivMod(product, c, new(big.Int))
	if rem.Sign() > 0 {
		quotient.Add(quotient, bigOne)
	}
	return quotient
}

// divRoundingUp returns ceil(a / b).
func divRoundingUp(a, b *big.Int) *big.Int {
	quotient, rem := new(big.Int).DivMod(a, b, new(big.Int))
	if rem.Sign() > 0 {
		quotient.Add(quotient, bigOne)
	}
	return quotient
}

// Amount0Delta returns the amount of token0 held by liquidity between the
// two sqrt prices. roundUp selects the rounding direction.
func Amount0Delta(sqrtRatioAX96, sqrtRatioBX96, liquidity *big.Int, roundUp bool) (*big.Int, error) {
	if sqrtRatioAX96.Cmp(sqrtRatioBX96) > 0 {
		sqrtRatioAX96, sqrtRatioBX96 = sqrtRatioBX96, sqrtRatioAX96
	}
	if sqrtRatioAX96.Sign() <= 0 {
		return nil, ErrSqrtPriceZero
	}

	numerator1 := new(big.Int).Lsh(liquidity, 96)
	numerator2 := new(big.Int).Sub(sqrtRatioBX96, sqrtRatioAX96)

	if roundUp {
		term := mulDivRoundingUp(numerator1, numerator2, sqrtRatioBX96)
		return divRoundingUp(term, sqrtRatioAX96), nil
	}
	term := mulDiv(numerator1, numerator2, sqrtRatioBX96)
	return term.Div(term, sqrtRatioAX96), nil
}

// Amount1Delta returns the amount of token1 held by liquidity between the
// two sqrt prices. roundUp selects the rounding direction.
func Amount1Delta(sqrtRatioAX96, sqrtRatioBX96, liquidity *big.Int, roundUp bool) *big.Int {
	if sqrtRatioAX96.Cmp(sqrtRatioBX96) > 0 {
		sqrtRatioAX96, sqrtRatioBX96 = sqrtRatioBX96, sqrtRatioAX96
	}

	diff := new(big.Int).Sub(sqrtRatioBX96, sqrtRatioAX96)
	if roundUp {
		return mulDivRoundingUp(liquidity, diff, Q96)
	}
	return mulDiv(liquidity, diff, Q96)
}

// LiquidityForAmount0 returns the largest liquidity such that the token0
// amount needed for the range does not exceed amount0. Always rounds down
// so that computed exposure never overstates the inventory backing it.
func LiquidityForAmount0(sqrtRatioAX96, sqrtRatioBX96, amount0 *big.Int) (*big.Int, error) {
	if sqrtRatioAX96.Cmp(sqrtRatioBX96) > 0 {
		sqrtRatioAX96, sqrtRatioBX96 = sqrtRatioBX96, sqrtRatioAX96
	}
	if sqrtRatioAX96.Sign() <= 0 {
		return nil, ErrSqrtPriceZero
	}
	diff := new(big.Int).Sub(sqrtRatioBX96, sqrtRatioAX96)
	if diff.Sign() == 0 {
		return big.NewInt(0), nil
	}

	intermediate := mulDiv(sqrtRatioAX96, sqrtRatioBX96, Q96)
	return mulDiv(amount0, intermediate, diff), nil
}

// LiquidityForAmount1 returns the largest liquidity such that the token1
// amount needed for the range does not exceed amount1. Rounds down.
func LiquidityForAmount1(sqrtRatioAX96, sqrtRatioBX96, amount1 *big.Int) (*big.Int, error) {
	if sqrtRatioAX96.Cmp(sqrtRatioBX96) > 0 {
		sqrtRatioAX96, sqrtRatioBX96 = sqrtRatioBX96, sqrtRatioAX96
	}
	diff := new(big.Int).Sub(sqrtRatioBX96, sqrtRatioAX96)
	if diff.Sign() == 0 {
		return big.NewInt(0), nil
	}

	return mulDiv(amount1, Q96, diff), nil
}
