package numeric

import "math/big"

// Price is an exchange rate between a base and a quote currency, stored
// as quote-units per base-unit in raw token amounts. The scalar corrects
// for the decimal difference between the two currencies when formatting.
type Price struct {
	Fraction
	BaseCurrency  Currency
	QuoteCurrency Currency
	scalar        Fraction
}

// NewPrice builds a price from raw base and quote unit counts.
func NewPrice(base, quote Currency, baseRaw, quoteRaw *big.Int) Price {
	return Price{
		Fraction:      NewFraction(quoteRaw, baseRaw),
		BaseCurrency:  base,
		QuoteCurrency: quote,
		scalar: Fraction{
			num: decimalScale(base.Decimals),
			den: decimalScale(quote.Decimals),
		},
	}
}

// PriceFromAmounts derives the rate implied by a pair of amounts, using
// their truncated raw quotients.
func PriceFromAmounts(base, quote CurrencyAmount) Price {
	return NewPrice(base.Currency, quote.Currency, base.Raw(), quote.Raw())
}

// Quote converts a base-currency amount into the quote currency at this
// rate.
func (p Price) Quote(base CurrencyAmount) CurrencyAmount {
	return CurrencyAmount{Fraction: p.Fraction.Mul(base.Fraction), Currency: p.QuoteCurrency}
}

func (p Price) adjusted() Fraction {
	return p.Fraction.Mul(p.scalar)
}

// ToFixed formats the decimal-adjusted rate.
func (p Price) ToFixed(decimalPlaces int, rounding Rounding) string {
	return p.adjusted().ToFixed(decimalPlaces, rounding)
}

// ToSignificant formats the decimal-adjusted rate with significant digits.
func (p Price) ToSignificant(significantDigits int, rounding Rounding) string {
	return p.adjusted().ToSignificant(significantDigits, rounding)
}
