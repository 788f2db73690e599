// Package composer merges elementary swap batches into the deduplicated,
// percentage-annotated route tree a trade carries.
package composer

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog/log"

	"github.com/meridianswap/trade-engine/internal/domain"
	"github.com/meridianswap/trade-engine/internal/metrics"
)

// Compose groups raw hop batches into routes: batches sharing a destination
// path merge into one route, identical pools at a position are summed, and
// every contributor's percentage is recomputed against the merged position
// total. Route data is advisory, so any internal panic fails soft to an
// empty list instead of propagating.
func Compose(batches [][]domain.Hop, totalInput *big.Int) (routes []domain.Route) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).
				Msg("[composer] route merge panicked, returning empty route list")
			metrics.ComposerFailSoft.Inc()
			routes = nil
		}
	}()

	builders := make([]*routeBuilder, 0, len(batches))
	index := make(map[string]int, len(batches))

	for _, batch := range batches {
		if len(batch) == 0 {
			continue
		}
		slug := slugOf(batch)
		if i, ok := index[slug]; ok {
			builders[i].merge(batch)
		} else {
			// First-seen ordering: new slugs take the next position.
			index[slug] = len(builders)
			builders = append(builders, newRouteBuilder(batch))
		}
	}

	routes = make([]domain.Route, 0, len(builders))
	for _, b := range builders {
		routes = append(routes, b.build(totalInput))
	}
	metrics.RoutesComposed.Observe(float64(len(routes)))
	return routes
}

// slugOf keys a batch by the output tokens from the second hop onward, so
// all direct paths for the pair share one slug and merge into a single
// route with parallel contributors.
func slugOf(batch []domain.Hop) string {
	if len(batch) <= 1 {
		return ""
	}
	parts := make([]string, 0, len(batch)-1)
	for _, hop := range batch[1:] {
		parts = append(parts, strings.ToLower(hop.TokenOut.Hex()))
	}
	return strings.Join(parts, "-")
}

type routeBuilder struct {
	path       []common.Address
	positions  [][]domain.Hop
	firstTotal *big.Int
}

func newRouteBuilder(batch []domain.Hop) *routeBuilder {
	b := &routeBuilder{
		path:       make([]common.Address, 0, len(batch)+1),
		positions:  make([][]domain.Hop, len(batch)),
		firstTotal: big.NewInt(0),
	}
	b.path = append(b.path, batch[0].TokenIn)
	for i, hop := range batch {
		b.path = append(b.path, hop.TokenOut)
		b.positions[i] = []domain.Hop{copyHop(hop)}
	}
	b.firstTotal.Set(amountOrZero(batch[0].Amount))
	return b
}

// merge folds a repeated-slug batch in: per position, an identical pool's
// amount is summed into the existing entry, anything else appends as a new
// parallel contributor in first-appearance order.
func (b *routeBuilder) merge(batch []domain.Hop) {
	for pos, hop := range batch {
		if pos >= len(b.positions) {
			b.positions = append(b.positions, []domain.Hop{copyHop(hop)})
			continue
		}
		merged := false
		for i := range b.positions[pos] {
			if b.positions[pos][i].PoolID == hop.PoolID {
				b.positions[pos][i].Amount.Add(b.positions[pos][i].Amount, amountOrZero(hop.Amount))
				merged = true
				break
			}
		}
		if !merged {
			b.positions[pos] = append(b.positions[pos], copyHop(hop))
		}
	}
	b.firstTotal.Add(b.firstTotal, amountOrZero(batch[0].Amount))
}

func (b *routeBuilder) build(totalInput *big.Int) domain.Route {
	route := domain.Route{
		Path:        b.path,
		SubRoutes:   make([]domain.SubRoute, 0, len(b.positions)),
		InputAmount: new(big.Int).Set(b.firstTotal),
	}

	pools := make([]string, 0, 4)
	for _, position := range b.positions {
		total := big.NewInt(0)
		for _, hop := range position {
			total.Add(total, hop.Amount)
			pools = append(pools, hop.PoolID)
		}

		legs := make([]domain.RouteLeg, 0, len(position))
		acc := 0
		for i, hop := range position {
			pct := 0
			switch {
			case len(position) == 1:
				// Single contributor is always the whole leg.
				pct = 100
			case i == len(position)-1:
				// Rounding residue lands on the last contributor.
				pct = 100 - acc
			case total.Sign() > 0:
				pct = roundHalfUpPercent(hop.Amount, total)
				// A leg never spends more than the remaining budget, which
				// keeps the last contributor's residue non-negative when many
				// near-equal legs each round up.
				if pct > 100-acc {
					pct = 100 - acc
				}
			}
			acc += pct
			legs = append(legs, domain.RouteLeg{Hop: hop, Percent: pct})
		}
		route.SubRoutes = append(route.SubRoutes, domain.SubRoute{Legs: legs})
	}

	route.ID = routeID(pools)
	if totalInput != nil && totalInput.Sign() > 0 {
		route.Percent = roundHalfUpPercent(b.firstTotal, totalInput)
	} else {
		route.Percent = 100
	}
	return route
}

// roundHalfUpPercent computes round_half_up(amount * 100 / total).
func roundHalfUpPercent(amount, total *big.Int) int {
	num := new(big.Int).Mul(amount, big.NewInt(200))
	num.Add(num, total)
	den := new(big.Int).Lsh(total, 1)
	num.Quo(num, den)
	return int(num.Int64())
}

func routeID(pools []string) string {
	return common.Bytes2Hex(crypto.Keccak256([]byte(strings.Join(pools, "|"))))[:16]
}

func copyHop(hop domain.Hop) domain.Hop {
	hop.Amount = new(big.Int).Set(amountOrZero(hop.Amount))
	return hop
}

func amountOrZero(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return v
}
