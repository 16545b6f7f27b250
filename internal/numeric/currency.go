package numeric

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Currency describes a fungible token as far as formatting is concerned.
// Address is zero for the chain's native coin.
type Currency struct {
	Symbol   string
	Address  common.Address
	Decimals int
}

// CurrencyAmount couples a fraction of raw units with the currency it
// denominates. Internally the value is stored in the token's smallest
// unit, so formatting divides by 10^decimals.
type CurrencyAmount struct {
	Fraction
	Currency Currency
}

// AmountFromRaw wraps a raw integer amount of the token's smallest unit.
func AmountFromRaw(currency Currency, raw *big.Int) CurrencyAmount {
	return CurrencyAmount{Fraction: FromBig(raw), Currency: currency}
}

// AmountFromFraction wraps an already-scaled fraction of raw units.
func AmountFromFraction(currency Currency, f Fraction) CurrencyAmount {
	return CurrencyAmount{Fraction: f, Currency: currency}
}

// AmountFromFormatted parses a human-readable amount such as "1.5" and
// scales it up by the token's decimals.
func AmountFromFormatted(currency Currency, formatted string) (CurrencyAmount, error) {
	f, err := FromDecimal(formatted)
	if err != nil {
		return CurrencyAmount{}, err
	}
	scaled := f.Mul(FromBig(decimalScale(currency.Decimals)))
	return CurrencyAmount{Fraction: scaled, Currency: currency}, nil
}

func decimalScale(decimals int) *big.Int {
	return new(big.Int).Exp(bigTen, big.NewInt(int64(decimals)), nil)
}

// DecimalScale returns 10^decimals for the amount's currency.
func (a CurrencyAmount) DecimalScale() *big.Int {
	return decimalScale(a.Currency.Decimals)
}

// Add sums two amounts of the same currency.
func (a CurrencyAmount) Add(other CurrencyAmount) CurrencyAmount {
	return CurrencyAmount{Fraction: a.Fraction.Add(other.Fraction), Currency: a.Currency}
}

// Sub subtracts an amount of the same currency.
func (a CurrencyAmount) Sub(other CurrencyAmount) CurrencyAmount {
	return CurrencyAmount{Fraction: a.Fraction.Sub(other.Fraction), Currency: a.Currency}
}

// Mul scales the amount by a fraction, keeping the currency.
func (a CurrencyAmount) Mul(f Fraction) CurrencyAmount {
	return CurrencyAmount{Fraction: a.Fraction.Mul(f), Currency: a.Currency}
}

// Raw returns the integer number of smallest units, truncated.
func (a CurrencyAmount) Raw() *big.Int {
	return a.Quotient()
}

// ToFixed formats the amount in whole tokens with the given precision.
func (a CurrencyAmount) ToFixed(decimalPlaces int, rounding Rounding) string {
	return a.Fraction.Div(FromBig(a.DecimalScale())).ToFixed(decimalPlaces, rounding)
}

// ToSignificant formats the amount in whole tokens with the given number
// of significant digits.
func (a CurrencyAmount) ToSignificant(significantDigits int, rounding Rounding) string {
	return a.Fraction.Div(FromBig(a.DecimalScale())).ToSignificant(significantDigits, rounding)
}
