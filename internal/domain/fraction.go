package domain

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// Fraction is an exact ratio of two arbitrary-precision integers. Arithmetic
// and comparison never round; rounding happens only in the explicit
// ToFixed/ToSignificant projections. The denominator is kept positive.
type Fraction struct {
	num *big.Int
	den *big.Int
}

// NewFraction builds num/den. A zero denominator is a programmer error.
func NewFraction(num, den int64) Fraction {
	return NewFractionFromBig(big.NewInt(num), big.NewInt(den))
}

func NewFractionFromBig(num, den *big.Int) Fraction {
	if den.Sign() == 0 {
		panic("fraction: zero denominator")
	}
	n := new(big.Int).Set(num)
	d := new(big.Int).Set(den)
	if d.Sign() < 0 {
		n.Neg(n)
		d.Neg(d)
	}
	return Fraction{num: n, den: d}
}

func (f Fraction) Num() *big.Int { return new(big.Int).Set(f.num) }
func (f Fraction) Den() *big.Int { return new(big.Int).Set(f.den) }

func (f Fraction) Sign() int {
	return f.num.Sign()
}

func (f Fraction) IsZero() bool {
	return f.num.Sign() == 0
}

func (f Fraction) Add(other Fraction) Fraction {
	num := new(big.Int).Mul(f.num, other.den)
	num.Add(num, new(big.Int).Mul(other.num, f.den))
	return NewFractionFromBig(num, new(big.Int).Mul(f.den, other.den))
}

func (f Fraction) Sub(other Fraction) Fraction {
	num := new(big.Int).Mul(f.num, other.den)
	num.Sub(num, new(big.Int).Mul(other.num, f.den))
	return NewFractionFromBig(num, new(big.Int).Mul(f.den, other.den))
}

func (f Fraction) Mul(other Fraction) Fraction {
	return NewFractionFromBig(
		new(big.Int).Mul(f.num, other.num),
		new(big.Int).Mul(f.den, other.den),
	)
}

func (f Fraction) Invert() Fraction {
	return NewFractionFromBig(f.den, f.num)
}

// Cmp returns -1, 0 or 1 comparing f against other exactly.
func (f Fraction) Cmp(other Fraction) int {
	left := new(big.Int).Mul(f.num, other.den)
	right := new(big.Int).Mul(other.num, f.den)
	return left.Cmp(right)
}

// Decimal projects the fraction onto a decimal with the given number of
// fractional places (rounded half up). This is the only lossy conversion.
func (f Fraction) Decimal(places int32) decimal.Decimal {
	return decimal.NewFromBigInt(f.num, 0).
		DivRound(decimal.NewFromBigInt(f.den, 0), places)
}

func (f Fraction) ToFixed(places int32) string {
	return f.Decimal(places).StringFixed(places)
}

// ToSignificant renders the fraction with at most sig significant digits.
func (f Fraction) ToSignificant(sig int32) string {
	if sig <= 0 {
		sig = 1
	}
	d := f.Decimal(28)
	if d.IsZero() {
		return "0"
	}
	abs := d.Abs()
	ten := decimal.NewFromInt(10)
	one := decimal.NewFromInt(1)

	var magnitude int32
	for abs.GreaterThanOrEqual(ten) {
		abs = abs.Div(ten)
		magnitude++
	}
	for abs.LessThan(one) {
		abs = abs.Mul(ten)
		magnitude--
	}

	return d.Round(sig - 1 - magnitude).String()
}

// Percent is a fraction used for slippage tolerances and swap-percentage
// annotations; NewPercent(5, 1000) is 0.5%.
type Percent struct {
	Fraction
}

func NewPercent(num, den int64) Percent {
	return Percent{NewFraction(num, den)}
}

func NewPercentFromBps(bps int64) Percent {
	return Percent{NewFraction(bps, 10000)}
}

// ToSignificantPercent renders the percent scaled to its human form,
// e.g. NewPercent(5, 1000) -> "0.5".
func (p Percent) ToSignificantPercent(sig int32) string {
	return p.Mul(NewFraction(100, 1)).ToSignificant(sig)
}

// Price is the informational exchange rate between two currencies, adjusted
// for their decimal precision. It is never used to recompute trade bounds.
type Price struct {
	Base  Currency
	Quote Currency
	Fraction
}

// NewPrice builds the quote-per-base rate from raw integer amounts.
func NewPrice(base, quote Currency, baseRaw, quoteRaw *big.Int) Price {
	if baseRaw.Sign() == 0 {
		return Price{Base: base, Quote: quote, Fraction: NewFraction(0, 1)}
	}
	num := new(big.Int).Mul(quoteRaw, pow10(base.Decimals))
	den := new(big.Int).Mul(baseRaw, pow10(quote.Decimals))
	return Price{Base: base, Quote: quote, Fraction: NewFractionFromBig(num, den)}
}

func pow10(decimals uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
}
