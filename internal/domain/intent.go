package domain

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// SwapIntent is the single shared mutable input of the pipeline: what the
// user currently wants to trade. It is replaced atomically as a whole on
// every user action, never partially mutated.
type SwapIntent struct {
	ChainID   uint64
	TokenIn   Currency
	TokenOut  Currency
	Amount    *big.Int // raw units of the exact side
	Type      TradeType
	Tolerance Percent
	Recipient common.Address
	SaveGas   bool
}

func (i SwapIntent) Validate() error {
	if i.Amount == nil || i.Amount.Sign() <= 0 {
		return errors.New("swap intent: amount must be positive")
	}
	if i.TokenIn.Equal(i.TokenOut) {
		return errors.New("swap intent: input and output currencies must differ")
	}
	if i.Tolerance.Sign() < 0 {
		return ErrInvalidTolerance
	}
	return nil
}

// SamePair reports whether another intent targets the same network and
// currency pair; used for cache invalidation decisions.
func (i SwapIntent) SamePair(other SwapIntent) bool {
	return i.ChainID == other.ChainID &&
		i.TokenIn.Equal(other.TokenIn) &&
		i.TokenOut.Equal(other.TokenOut)
}
