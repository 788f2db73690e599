// Package encoder lowers a selected trade into per-hop settlement call data.
// Each hop carries a 16-bit venue descriptor and a family-specific parameter
// layout of 32-byte words.
package encoder

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/meridianswap/trade-engine/internal/domain"
	"github.com/meridianswap/trade-engine/internal/registry"
)

var (
	ErrAmountOverflow = errors.New("hop amount does not fit in 256 bits")
	ErrInvalidPool    = errors.New("pool id is not a valid address")
)

// PackVenueDescriptor packs the family type into the high byte and the venue
// id into the low byte. Unknown venues arrive here already mapped to the
// default codes by the registry.
func PackVenueDescriptor(familyType, venueID uint8) uint16 {
	return uint16(familyType)<<8 | uint16(venueID)
}

// HopCall is one encoded hop of the settlement transaction.
type HopCall struct {
	Pool       common.Address
	TokenIn    common.Address
	TokenOut   common.Address
	AmountIn   *big.Int
	Descriptor uint16
	Venue      string
	Data       []byte
}

type Encoder struct {
	registry *registry.Registry
}

func New(reg *registry.Registry) *Encoder {
	return &Encoder{registry: reg}
}

// EncodeTrade flattens the trade's route tree into hop calls in execution
// order: route by route, position by position, contributor by contributor.
func (e *Encoder) EncodeTrade(networkID uint64, trade *domain.Trade) ([]HopCall, error) {
	calls := make([]HopCall, 0, 8)
	for _, route := range trade.Routes {
		for _, sub := range route.SubRoutes {
			for _, leg := range sub.Legs {
				call, err := e.encodeHop(networkID, leg)
				if err != nil {
					return nil, fmt.Errorf("encode hop via %s: %w", leg.Venue, err)
				}
				calls = append(calls, call)
			}
		}
	}
	return calls, nil
}

func (e *Encoder) encodeHop(networkID uint64, leg domain.RouteLeg) (HopCall, error) {
	if !common.IsHexAddress(leg.PoolID) {
		return HopCall{}, fmt.Errorf("%w: %q", ErrInvalidPool, leg.PoolID)
	}
	pool := common.HexToAddress(leg.PoolID)

	info := e.registry.Lookup(networkID, leg.Venue)
	descriptor := PackVenueDescriptor(info.FamilyType, info.VenueID)

	data, err := encodeParams(info.Kind, pool, leg)
	if err != nil {
		return HopCall{}, err
	}

	return HopCall{
		Pool:       pool,
		TokenIn:    leg.TokenIn,
		TokenOut:   leg.TokenOut,
		AmountIn:   new(big.Int).Set(leg.Amount),
		Descriptor: descriptor,
		Venue:      leg.Venue,
		Data:       data,
	}, nil
}

// encodeParams lays out the family-specific words. All families share a
// common prefix of pool, tokenIn, tokenOut, amount; families with extra
// parameters append trailing words.
func encodeParams(kind registry.FamilyKind, pool common.Address, leg domain.RouteLeg) ([]byte, error) {
	amount, overflow := uint256.FromBig(leg.Amount)
	if overflow {
		return nil, ErrAmountOverflow
	}

	words := 4
	switch kind {
	case registry.KindStableSwap, registry.KindConcentratedLiquidity:
		words = 5
	}

	data := make([]byte, 0, words*32)
	data = append(data, addressWord(pool)...)
	data = append(data, addressWord(leg.TokenIn)...)
	data = append(data, addressWord(leg.TokenOut)...)
	amountWord := amount.Bytes32()
	data = append(data, amountWord[:]...)

	switch kind {
	case registry.KindStableSwap:
		data = append(data, indexWord(leg.TokenIn, leg.TokenOut)...)
	case registry.KindConcentratedLiquidity:
		// Zero price limit word means no bound on the executable price.
		data = append(data, make([]byte, 32)...)
	}
	return data, nil
}

func addressWord(addr common.Address) []byte {
	return common.LeftPadBytes(addr.Bytes(), 32)
}

// indexWord packs stable-swap coin indexes as inIdx<<8 | outIdx, derived
// from the canonical address ordering the pools register coins in.
func indexWord(tokenIn, tokenOut common.Address) []byte {
	word := make([]byte, 32)
	if tokenIn.Cmp(tokenOut) < 0 {
		word[31] = 1
	} else {
		word[30] = 1
	}
	return word
}
