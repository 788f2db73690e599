package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Hop is one elementary swap leg through a single liquidity pool. Hops are
// produced fresh on every quote refresh and are not owned by any one trade.
type Hop struct {
	PoolID   string
	Venue    string
	TokenIn  common.Address
	TokenOut common.Address
	// Amount is the leg's input amount, in TokenIn's smallest unit.
	Amount *big.Int
}

// RouteLeg is a hop annotated with its share of the merged flow at its path
// position. Percent is an integer 0..100.
type RouteLeg struct {
	Hop
	Percent int
}

// SubRoute holds the parallel contributors moving value across one path
// position; their percentages sum to 100. Ordering is first-appearance
// insertion order, not amount order.
type SubRoute struct {
	Legs []RouteLeg
}

// Route is a complete token path from input to output currency, with one
// SubRoute per consecutive token pair and the route's share of the whole
// trade's input.
type Route struct {
	// ID is a stable identifier derived from the pools involved.
	ID        string
	Path      []common.Address
	SubRoutes []SubRoute
	// Percent is this route's share of the total trade input, 0..100.
	Percent int
	// InputAmount is the total first-position input flowing through this route.
	InputAmount *big.Int
}

// HopCount returns the number of path positions.
func (r Route) HopCount() int {
	return len(r.SubRoutes)
}
