// Package domain holds the trade aggregation value objects: currencies,
// exact-integer amounts, fractions, routes and trades.
package domain

import (
	"github.com/ethereum/go-ethereum/common"
)

// Currency identifies either the network's native asset or a fungible token.
// Value equality is (chain id, native marker or contract address); decimals
// and symbol are display metadata and do not participate in identity.
type Currency struct {
	ChainID  uint64
	Address  common.Address
	Native   bool
	Decimals uint8
	Symbol   string
}

func NewToken(chainID uint64, address common.Address, decimals uint8, symbol string) Currency {
	return Currency{
		ChainID:  chainID,
		Address:  address,
		Decimals: decimals,
		Symbol:   symbol,
	}
}

func NewNative(chainID uint64, decimals uint8, symbol string) Currency {
	return Currency{
		ChainID:  chainID,
		Native:   true,
		Decimals: decimals,
		Symbol:   symbol,
	}
}

func (c Currency) Equal(other Currency) bool {
	if c.ChainID != other.ChainID {
		return false
	}
	if c.Native || other.Native {
		return c.Native == other.Native
	}
	return c.Address == other.Address
}
