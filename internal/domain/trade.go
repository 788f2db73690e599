package domain

import (
	"errors"
	"math/big"

	"github.com/shopspring/decimal"
)

var ErrInvalidTolerance = errors.New("slippage tolerance must not be negative")

type TradeType uint8

const (
	ExactInput TradeType = iota
	ExactOutput
)

func (t TradeType) String() string {
	switch t {
	case ExactInput:
		return "ExactIn"
	case ExactOutput:
		return "ExactOut"
	default:
		return "UNKNOWN"
	}
}

// SourceKind tags the liquidity-source family a candidate trade came from.
type SourceKind uint8

const (
	SourceConstantProduct SourceKind = iota
	SourceConcentratedLiquidity
	SourceOffchainAggregated
)

func (s SourceKind) String() string {
	switch s {
	case SourceConstantProduct:
		return "ConstantProduct"
	case SourceConcentratedLiquidity:
		return "ConcentratedLiquidity"
	case SourceOffchainAggregated:
		return "OffchainAggregated"
	default:
		return "UNKNOWN"
	}
}

// Trade is the priced, bounded outcome of executing one or more routes for a
// given input/output amount. A Trade is immutable once constructed; consumers
// derive bounds rather than mutating it, and a stale Trade is replaced, never
// patched, when inputs change.
type Trade struct {
	Type   TradeType
	Source SourceKind

	InputAmount  CurrencyAmount
	OutputAmount CurrencyAmount
	Routes       []Route

	// USD valuations from the quoting backend. Zero means "not valued yet".
	AmountInUSD  decimal.Decimal
	AmountOutUSD decimal.Decimal
	ReceivedUSD  decimal.Decimal

	// GasCostUSD is nil while unknown; absence must never be read as zero.
	GasCostUSD *decimal.Decimal
}

// MinimumAmountOut returns the worst acceptable output under the tolerance.
// The output side of an exact-output trade is fixed by definition and is
// returned unchanged. Division truncates toward zero.
func (t *Trade) MinimumAmountOut(tolerance Percent) (CurrencyAmount, error) {
	if tolerance.Sign() < 0 {
		return CurrencyAmount{}, ErrInvalidTolerance
	}
	if t.Type == ExactOutput {
		return t.OutputAmount, nil
	}
	// out / (1 + tolerance) == out * den / (den + num)
	den := tolerance.Den()
	adjusted := new(big.Int).Mul(t.OutputAmount.Raw(), den)
	adjusted.Quo(adjusted, den.Add(den, tolerance.Num()))
	return NewCurrencyAmount(t.OutputAmount.Currency, adjusted), nil
}

// MaximumAmountIn returns the worst acceptable input under the tolerance.
// The input side of an exact-input trade is returned unchanged.
func (t *Trade) MaximumAmountIn(tolerance Percent) (CurrencyAmount, error) {
	if tolerance.Sign() < 0 {
		return CurrencyAmount{}, ErrInvalidTolerance
	}
	if t.Type == ExactInput {
		return t.InputAmount, nil
	}
	// in * (1 + tolerance) == in * (den + num) / den
	den := tolerance.Den()
	adjusted := new(big.Int).Add(den, tolerance.Num())
	adjusted.Mul(adjusted, t.InputAmount.Raw())
	adjusted.Quo(adjusted, den)
	return NewCurrencyAmount(t.InputAmount.Currency, adjusted), nil
}

// ExecutionPrice is the output-per-input rate. Informational only: bounds are
// always derived from the raw integer amounts, never from this price.
func (t *Trade) ExecutionPrice() Price {
	return NewPrice(
		t.InputAmount.Currency,
		t.OutputAmount.Currency,
		t.InputAmount.Raw(),
		t.OutputAmount.Raw(),
	)
}

// GrossValuation is the plain USD output valuation, gas ignored.
func (t *Trade) GrossValuation() decimal.Decimal {
	return t.AmountOutUSD
}

// NetValuation is the output valuation net of the known gas cost. Falls back
// to the gross figure when no net figure exists.
func (t *Trade) NetValuation() decimal.Decimal {
	if !t.ReceivedUSD.IsZero() {
		return t.ReceivedUSD
	}
	if t.GasCostUSD != nil {
		return t.AmountOutUSD.Sub(*t.GasCostUSD)
	}
	return t.AmountOutUSD
}
