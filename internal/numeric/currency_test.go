package numeric

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	weth = Currency{Symbol: "WETH", Address: common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"), Decimals: 18}
	usdc = Currency{Symbol: "USDC", Address: common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"), Decimals: 6}
)

func TestAmountFromFormatted(t *testing.T) {
	amount, err := AmountFromFormatted(weth, "1.5")
	require.NoError(t, err)

	want, ok := new(big.Int).SetString("1500000000000000000", 10)
	require.True(t, ok)
	assert.Equal(t, 0, amount.Raw().Cmp(want))
	assert.Equal(t, "1.5000", amount.ToFixed(4, RoundDown))

	_, err = AmountFromFormatted(weth, "not a number")
	assert.Error(t, err)
}

func TestAmountArithmetic(t *testing.T) {
	one, err := AmountFromFormatted(weth, "1.0")
	require.NoError(t, err)
	half, err := AmountFromFormatted(weth, "0.5")
	require.NoError(t, err)

	sum := one.Add(half)
	assert.Equal(t, "1.5", sum.ToFixed(1, RoundDown))

	diff := one.Sub(half)
	assert.Equal(t, "0.5", diff.ToFixed(1, RoundDown))

	doubled := one.Mul(NewInt(2))
	assert.Equal(t, "2.0", doubled.ToFixed(1, RoundDown))
}

func TestAmountFormatting(t *testing.T) {
	amount := AmountFromRaw(usdc, big.NewInt(1234567))
	assert.Equal(t, "1.234567", amount.ToFixed(6, RoundDown))
	assert.Equal(t, "1.2346", amount.ToFixed(4, RoundHalfUp))
	assert.Equal(t, "1.23457", amount.ToSignificant(6, RoundHalfUp))
}

func TestPriceQuote(t *testing.T) {
	// 1 WETH = 2500 USDC.
	base, err := AmountFromFormatted(weth, "1")
	require.NoError(t, err)
	quote, err := AmountFromFormatted(usdc, "2500")
	require.NoError(t, err)

	price := PriceFromAmounts(base, quote)
	assert.Equal(t, "2500.00", price.ToFixed(2, RoundDown))

	twoEth, err := AmountFromFormatted(weth, "2")
	require.NoError(t, err)
	quoted := price.Quote(twoEth)
	assert.Equal(t, usdc.Symbol, quoted.Currency.Symbol)
	assert.Equal(t, "5000.00", quoted.ToFixed(2, RoundDown))
}

func TestPriceToSignificant(t *testing.T) {
	base, err := AmountFromFormatted(usdc, "3")
	require.NoError(t, err)
	quote, err := AmountFromFormatted(weth, "1")
	require.NoError(t, err)

	price := PriceFromAmounts(base, quote)
	assert.Equal(t, "0.33333", price.ToSignificant(5, RoundHalfUp))
}
