// Package quote defines the quoting-backend collaborator surface: the client
// interface, its option struct and the raw quote payload the route composer
// consumes. Transport details live in the thin HTTP implementation; callers
// own staleness handling.
package quote

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/meridianswap/trade-engine/internal/domain"
)

// ErrQuoteUnavailable means the source returned no usable route for the pair.
// It is "no trade from this source", not a hard failure.
var ErrQuoteUnavailable = errors.New("quote unavailable for pair")

// Options enumerates the recognized quote options explicitly; unknown
// dynamic option bags from callers are rejected at the HTTP boundary.
type Options struct {
	SaveGas            bool
	IncludeGasEstimate bool
	SlippageTolerance  domain.Percent
}

func DefaultOptions() Options {
	return Options{
		SaveGas:            false,
		IncludeGasEstimate: true,
		SlippageTolerance:  domain.NewPercentFromBps(50),
	}
}

// TokenMeta is the token metadata lookup accompanying a raw quote.
type TokenMeta struct {
	Address  common.Address
	Decimals uint8
	Symbol   string
}

// RawQuote is one source's answer for (tokenIn, tokenOut, amountIn). Hops is
// a list of elementary swap batches: each inner slice is one candidate path
// from input to output token, in hop order.
type RawQuote struct {
	InputAmount  *big.Int
	OutputAmount *big.Int

	AmountInUSD  decimal.Decimal
	AmountOutUSD decimal.Decimal
	ReceivedUSD  decimal.Decimal

	// GasUSD is nil when the backend did not estimate gas.
	GasUSD *decimal.Decimal

	Hops   [][]domain.Hop
	Tokens map[common.Address]TokenMeta
}

// Usable reports whether the quote carries actual amounts; zero or absent
// amounts are treated as "no route from this source".
func (q *RawQuote) Usable() bool {
	return q != nil &&
		q.InputAmount != nil && q.InputAmount.Sign() > 0 &&
		q.OutputAmount != nil && q.OutputAmount.Sign() > 0
}

// Client fetches raw swap-hop data and USD valuations from one liquidity
// source. Implementations must be idempotent for identical inputs.
type Client interface {
	// Source tags which liquidity-source family this client quotes.
	Source() domain.SourceKind

	GetQuote(ctx context.Context, networkID uint64, tokenIn, tokenOut common.Address, amountIn *big.Int, opts Options) (*RawQuote, error)
}
