package domain

import (
	"errors"
	"math/big"

	"github.com/shopspring/decimal"
)

var ErrCurrencyMismatch = errors.New("currency amounts belong to different currencies")

// CurrencyAmount is an exact integer amount in a currency's smallest unit.
// Negative values are legal only as intermediates inside difference
// calculations; anything surfaced to callers is non-negative.
type CurrencyAmount struct {
	Currency Currency
	raw      *big.Int
}

func NewCurrencyAmount(currency Currency, raw *big.Int) CurrencyAmount {
	if raw == nil {
		raw = big.NewInt(0)
	}
	return CurrencyAmount{Currency: currency, raw: new(big.Int).Set(raw)}
}

// Raw returns a copy of the underlying integer amount.
func (a CurrencyAmount) Raw() *big.Int {
	if a.raw == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(a.raw)
}

func (a CurrencyAmount) Sign() int {
	if a.raw == nil {
		return 0
	}
	return a.raw.Sign()
}

func (a CurrencyAmount) IsZero() bool {
	return a.Sign() == 0
}

func (a CurrencyAmount) Add(other CurrencyAmount) (CurrencyAmount, error) {
	if !a.Currency.Equal(other.Currency) {
		return CurrencyAmount{}, ErrCurrencyMismatch
	}
	return NewCurrencyAmount(a.Currency, new(big.Int).Add(a.raw, other.raw)), nil
}

func (a CurrencyAmount) Sub(other CurrencyAmount) (CurrencyAmount, error) {
	if !a.Currency.Equal(other.Currency) {
		return CurrencyAmount{}, ErrCurrencyMismatch
	}
	return NewCurrencyAmount(a.Currency, new(big.Int).Sub(a.raw, other.raw)), nil
}

func (a CurrencyAmount) Cmp(other CurrencyAmount) (int, error) {
	if !a.Currency.Equal(other.Currency) {
		return 0, ErrCurrencyMismatch
	}
	return a.raw.Cmp(other.raw), nil
}

// ToExact projects the raw amount into decimal units (first float-free
// arithmetic boundary; display only).
func (a CurrencyAmount) ToExact() decimal.Decimal {
	return decimal.NewFromBigInt(a.Raw(), -int32(a.Currency.Decimals))
}

func (a CurrencyAmount) ToSignificant(sig int32) string {
	return NewFractionFromBig(a.Raw(), pow10(a.Currency.Decimals)).ToSignificant(sig)
}

func (a CurrencyAmount) String() string {
	return a.ToSignificant(6) + " " + a.Currency.Symbol
}
