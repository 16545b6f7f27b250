// Package numeric implements exact rational arithmetic for token amounts
// and prices. Fractions keep full precision through every operation and
// only lose it at formatting time, under an explicit rounding mode.
package numeric

import (
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

// Rounding selects how ToFixed and ToSignificant resolve the discarded
// remainder.
type Rounding int

const (
	RoundDown Rounding = iota
	RoundHalfUp
	RoundUp
)

var (
	ErrZeroDenominator = errors.New("numeric: zero denominator")
	ErrInvalidDecimal  = errors.New("numeric: invalid decimal string")
)

var (
	bigZero = big.NewInt(0)
	bigOne  = big.NewInt(1)
	bigTwo  = big.NewInt(2)
	bigTen  = big.NewInt(10)
)

// Fraction is an arbitrary-precision rational number. It is never reduced:
// numerator and denominator stay exactly as the operations produced them,
// so comparisons cross-multiply instead of normalizing.
type Fraction struct {
	num *big.Int
	den *big.Int
}

// NewFraction builds a fraction from copies of num and den.
func NewFraction(num, den *big.Int) Fraction {
	return Fraction{num: new(big.Int).Set(num), den: new(big.Int).Set(den)}
}

// NewInt builds a whole-number fraction.
func NewInt(v int64) Fraction {
	return Fraction{num: big.NewInt(v), den: big.NewInt(1)}
}

// FromBig builds a whole-number fraction from a copy of v.
func FromBig(v *big.Int) Fraction {
	return Fraction{num: new(big.Int).Set(v), den: big.NewInt(1)}
}

// FromDecimal parses a decimal string such as "1.5", "-0.01" or "2.5e-3"
// into an exact fraction. Scientific notation shifts the denominator or
// numerator by the corresponding power of ten.
func FromDecimal(s string) (Fraction, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Fraction{}, ErrInvalidDecimal
	}

	if i := strings.IndexAny(s, "eE"); i >= 0 {
		mantissa, expStr := s[:i], s[i+1:]
		exp, err := strconv.Atoi(expStr)
		if err != nil {
			return Fraction{}, fmt.Errorf("%w: %q", ErrInvalidDecimal, s)
		}
		base, err := FromDecimal(mantissa)
		if err != nil {
			return Fraction{}, err
		}
		abs := exp
		if abs < 0 {
			abs = -abs
		}
		scale := new(big.Int).Exp(bigTen, big.NewInt(int64(abs)), nil)
		if exp >= 0 {
			return Fraction{num: base.num.Mul(base.num, scale), den: base.den}, nil
		}
		return Fraction{num: base.num, den: base.den.Mul(base.den, scale)}, nil
	}

	intPart, decPart, _ := strings.Cut(s, ".")
	num, ok := new(big.Int).SetString(intPart+decPart, 10)
	if !ok {
		return Fraction{}, fmt.Errorf("%w: %q", ErrInvalidDecimal, s)
	}
	den := new(big.Int).Exp(bigTen, big.NewInt(int64(len(decPart))), nil)
	return Fraction{num: num, den: den}, nil
}

// MustFromDecimal is FromDecimal for compile-time constants.
func MustFromDecimal(s string) Fraction {
	f, err := FromDecimal(s)
	if err != nil {
		panic(err)
	}
	return f
}

// Num returns a copy of the numerator.
func (f Fraction) Num() *big.Int { return new(big.Int).Set(f.orDefault().num) }

// Den returns a copy of the denominator.
func (f Fraction) Den() *big.Int { return new(big.Int).Set(f.orDefault().den) }

// orDefault lets the zero value behave as 0/1.
func (f Fraction) orDefault() Fraction {
	if f.num == nil {
		return Fraction{num: bigZero, den: bigOne}
	}
	return f
}

func (f Fraction) Add(other Fraction) Fraction {
	f, other = f.orDefault(), other.orDefault()
	if f.den.Cmp(other.den) == 0 {
		return Fraction{num: new(big.Int).Add(f.num, other.num), den: new(big.Int).Set(f.den)}
	}
	num := new(big.Int).Mul(f.num, other.den)
	num.Add(num, new(big.Int).Mul(other.num, f.den))
	return Fraction{num: num, den: new(big.Int).Mul(f.den, other.den)}
}

func (f Fraction) Sub(other Fraction) Fraction {
	f, other = f.orDefault(), other.orDefault()
	if f.den.Cmp(other.den) == 0 {
		return Fraction{num: new(big.Int).Sub(f.num, other.num), den: new(big.Int).Set(f.den)}
	}
	num := new(big.Int).Mul(f.num, other.den)
	num.Sub(num, new(big.Int).Mul(other.num, f.den))
	return Fraction{num: num, den: new(big.Int).Mul(f.den, other.den)}
}

func (f Fraction) Mul(other Fraction) Fraction {
	f, other = f.orDefault(), other.orDefault()
	return Fraction{
		num: new(big.Int).Mul(f.num, other.num),
		den: new(big.Int).Mul(f.den, other.den),
	}
}

func (f Fraction) Div(other Fraction) Fraction {
	f, other = f.orDefault(), other.orDefault()
	return Fraction{
		num: new(big.Int).Mul(f.num, other.den),
		den: new(big.Int).Mul(f.den, other.num),
	}
}

// Invert swaps numerator and denominator.
func (f Fraction) Invert() Fraction {
	f = f.orDefault()
	return Fraction{num: new(big.Int).Set(f.den), den: new(big.Int).Set(f.num)}
}

// Quotient returns the integer part, truncated toward zero.
func (f Fraction) Quotient() *big.Int {
	f = f.orDefault()
	return new(big.Int).Quo(f.num, f.den)
}

// Cmp compares two fractions by cross-multiplication; it returns -1, 0
// or 1 in the manner of big.Int.Cmp.
func (f Fraction) Cmp(other Fraction) int {
	f, other = f.orDefault(), other.orDefault()
	left := new(big.Int).Mul(f.num, other.den)
	right := new(big.Int).Mul(other.num, f.den)
	// A negative denominator flips the ordering.
	if f.den.Sign()*other.den.Sign() < 0 {
		return -left.Cmp(right)
	}
	return left.Cmp(right)
}

func (f Fraction) LessThan(other Fraction) bool    { return f.Cmp(other) < 0 }
func (f Fraction) GreaterThan(other Fraction) bool { return f.Cmp(other) > 0 }
func (f Fraction) EqualTo(other Fraction) bool     { return f.Cmp(other) == 0 }

// Sign reports the sign of the fraction.
func (f Fraction) Sign() int {
	f = f.orDefault()
	return f.num.Sign() * f.den.Sign()
}

// IsZero reports whether the fraction equals zero.
func (f Fraction) IsZero() bool { return f.Sign() == 0 }

// ToFixed renders the fraction with exactly decimalPlaces digits after
// the decimal point.
func (f Fraction) ToFixed(decimalPlaces int, rounding Rounding) string {
	f = f.orDefault()
	scalar := new(big.Int).Exp(bigTen, big.NewInt(int64(decimalPlaces)), nil)
	scaled := new(big.Int).Mul(f.num, scalar)
	result, remainder := new(big.Int).QuoRem(scaled, f.den, new(big.Int))

	switch rounding {
	case RoundHalfUp:
		doubled := new(big.Int).Mul(remainder, bigTwo)
		if doubled.Cmp(f.den) >= 0 {
			result.Add(result, bigOne)
		}
	case RoundUp:
		if remainder.Sign() > 0 {
			result.Add(result, bigOne)
		}
	}

	str := result.String()
	if decimalPlaces == 0 {
		return str
	}

	neg := strings.HasPrefix(str, "-")
	if neg {
		str = str[1:]
	}
	var out string
	if insertAt := len(str) - decimalPlaces; insertAt <= 0 {
		out = "0." + strings.Repeat("0", -insertAt) + str
	} else {
		out = str[:insertAt] + "." + str[insertAt:]
	}
	if neg {
		out = "-" + out
	}
	return out
}

// toSignificantScale keeps 40 fractional digits while hunting for the
// first significant digit of a value below one.
const toSignificantScale = 40

// ToSignificant renders the fraction with the given number of significant
// digits. Values below one are expanded to find leading zeros; larger
// values defer to ToFixed with whatever decimal places remain.
func (f Fraction) ToSignificant(significantDigits int, rounding Rounding) string {
	f = f.orDefault()
	quotient := f.Quotient()

	if quotient.Sign() == 0 {
		scalar := new(big.Int).Exp(bigTen, big.NewInt(toSignificantScale), nil)
		expanded := new(big.Int).Mul(f.num, scalar)
		expanded.Quo(expanded, f.den)

		digits := expanded.String()
		neg := strings.HasPrefix(digits, "-")
		if neg {
			digits = digits[1:]
		}
		if len(digits) < toSignificantScale {
			digits = strings.Repeat("0", toSignificantScale-len(digits)) + digits
		}

		firstNonZero := 0
		for firstNonZero < len(digits) && digits[firstNonZero] == '0' {
			firstNonZero++
		}
		if firstNonZero == len(digits) {
			return "0"
		}

		end := firstNonZero + significantDigits
		if end > len(digits) {
			end = len(digits)
		}
		significant := strings.TrimRight(digits[firstNonZero:end], "0")

		out := "0." + strings.Repeat("0", firstNonZero) + significant
		if neg {
			out = "-" + out
		}
		return out
	}

	decimalPlaces := significantDigits - len(strings.TrimPrefix(quotient.String(), "-"))
	if decimalPlaces < 0 {
		decimalPlaces = 0
	}
	return f.ToFixed(decimalPlaces, rounding)
}

// String renders the raw num/den pair, mostly for logs.
func (f Fraction) String() string {
	f = f.orDefault()
	return f.num.String() + "/" + f.den.String()
}
