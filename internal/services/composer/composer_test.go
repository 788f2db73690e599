package composer

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/meridianswap/trade-engine/internal/domain"
)

var (
	tokenA = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	tokenB = common.HexToAddress("0x00000000000000000000000000000000000000bb")
	tokenC = common.HexToAddress("0x00000000000000000000000000000000000000cc")

	poolOne   = "0x1111111111111111111111111111111111111111"
	poolTwo   = "0x2222222222222222222222222222222222222222"
	poolThree = "0x3333333333333333333333333333333333333333"
)

func hop(pool, venue string, in, out common.Address, amount int64) domain.Hop {
	return domain.Hop{
		PoolID:   pool,
		Venue:    venue,
		TokenIn:  in,
		TokenOut: out,
		Amount:   big.NewInt(amount),
	}
}

func TestComposeSplitAcrossTwoPools(t *testing.T) {
	// 70/30 split between two direct pools must merge into one route with
	// two parallel contributors.
	batches := [][]domain.Hop{
		{hop(poolOne, "uniswap-v3", tokenA, tokenB, 700)},
		{hop(poolTwo, "sushiswap", tokenA, tokenB, 300)},
	}

	routes := Compose(batches, big.NewInt(1000))
	if len(routes) != 1 {
		t.Fatalf("got %d routes, want 1", len(routes))
	}

	route := routes[0]
	if route.Percent != 100 {
		t.Errorf("route percent = %d, want 100", route.Percent)
	}
	if len(route.SubRoutes) != 1 {
		t.Fatalf("got %d positions, want 1", len(route.SubRoutes))
	}

	legs := route.SubRoutes[0].Legs
	if len(legs) != 2 {
		t.Fatalf("got %d contributors, want 2", len(legs))
	}
	if legs[0].Percent != 70 || legs[1].Percent != 30 {
		t.Errorf("split = %d/%d, want 70/30", legs[0].Percent, legs[1].Percent)
	}
	if legs[0].PoolID != poolOne || legs[1].PoolID != poolTwo {
		t.Error("contributors must keep first-appearance order")
	}
}

func TestComposeSamePoolAmountsSummed(t *testing.T) {
	batches := [][]domain.Hop{
		{hop(poolOne, "uniswap-v3", tokenA, tokenB, 400)},
		{hop(poolOne, "uniswap-v3", tokenA, tokenB, 600)},
	}

	routes := Compose(batches, big.NewInt(1000))
	if len(routes) != 1 {
		t.Fatalf("got %d routes, want 1", len(routes))
	}

	legs := routes[0].SubRoutes[0].Legs
	if len(legs) != 1 {
		t.Fatalf("identical pools must merge, got %d contributors", len(legs))
	}
	if legs[0].Amount.Int64() != 1000 {
		t.Errorf("merged amount = %d, want 1000", legs[0].Amount.Int64())
	}
	if legs[0].Percent != 100 {
		t.Errorf("single contributor percent = %d, want 100", legs[0].Percent)
	}
}

func TestComposeDistinctPathsStaySeparate(t *testing.T) {
	// A->B and A->C->B traverse different paths, so they form two routes.
	batches := [][]domain.Hop{
		{hop(poolOne, "uniswap-v3", tokenA, tokenB, 600)},
		{
			hop(poolTwo, "sushiswap", tokenA, tokenC, 400),
			hop(poolThree, "curve", tokenC, tokenB, 395),
		},
	}

	routes := Compose(batches, big.NewInt(1000))
	if len(routes) != 2 {
		t.Fatalf("got %d routes, want 2", len(routes))
	}
	if routes[0].Percent != 60 || routes[1].Percent != 40 {
		t.Errorf("route percents = %d/%d, want 60/40", routes[0].Percent, routes[1].Percent)
	}
	if routes[1].HopCount() != 2 {
		t.Errorf("multi-hop route has %d positions, want 2", routes[1].HopCount())
	}
	if len(routes[1].Path) != 3 {
		t.Errorf("multi-hop path length = %d, want 3", len(routes[1].Path))
	}
}

func TestComposePercentagesConserved(t *testing.T) {
	// Awkward thirds: percentages must still sum to exactly 100.
	batches := [][]domain.Hop{
		{hop(poolOne, "uniswap-v3", tokenA, tokenB, 333)},
		{hop(poolTwo, "sushiswap", tokenA, tokenB, 333)},
		{hop(poolThree, "curve", tokenA, tokenB, 334)},
	}

	routes := Compose(batches, big.NewInt(1000))
	if len(routes) != 1 {
		t.Fatalf("got %d routes, want 1", len(routes))
	}

	total := 0
	for _, leg := range routes[0].SubRoutes[0].Legs {
		if leg.Percent < 0 {
			t.Errorf("negative percent %d", leg.Percent)
		}
		total += leg.Percent
	}
	if total != 100 {
		t.Errorf("percentages sum to %d, want exactly 100", total)
	}
}

func TestComposeManyEqualContributorsStayInRange(t *testing.T) {
	// 66 equal legs each round 1.515% up to 2%, which would overspend the
	// budget and push the last contributor negative without the cap.
	batches := make([][]domain.Hop, 66)
	for i := range batches {
		pool := common.BigToAddress(big.NewInt(int64(i + 1))).Hex()
		batches[i] = []domain.Hop{hop(pool, "uniswap-v3", tokenA, tokenB, 10)}
	}

	routes := Compose(batches, big.NewInt(660))
	if len(routes) != 1 {
		t.Fatalf("got %d routes, want 1", len(routes))
	}

	legs := routes[0].SubRoutes[0].Legs
	if len(legs) != 66 {
		t.Fatalf("got %d contributors, want 66", len(legs))
	}
	total := 0
	for _, leg := range legs {
		if leg.Percent < 0 || leg.Percent > 100 {
			t.Errorf("leg percent %d out of range", leg.Percent)
		}
		total += leg.Percent
	}
	if total != 100 {
		t.Errorf("percentages sum to %d, want exactly 100", total)
	}
}

func TestComposeRoundHalfUp(t *testing.T) {
	tests := []struct {
		amount, total int64
		expected      int
	}{
		{1, 3, 33},
		{125, 1000, 13}, // 12.5 rounds up
		{124, 1000, 12},
		{999, 1000, 100},
		{0, 1000, 0},
	}
	for _, tt := range tests {
		if got := roundHalfUpPercent(big.NewInt(tt.amount), big.NewInt(tt.total)); got != tt.expected {
			t.Errorf("roundHalfUpPercent(%d, %d) = %d, want %d", tt.amount, tt.total, got, tt.expected)
		}
	}
}

func TestComposeZeroAmounts(t *testing.T) {
	// All-zero contributions must not divide by zero; the last contributor
	// absorbs the full 100.
	batches := [][]domain.Hop{
		{hop(poolOne, "uniswap-v3", tokenA, tokenB, 0)},
		{hop(poolTwo, "sushiswap", tokenA, tokenB, 0)},
	}

	routes := Compose(batches, big.NewInt(0))
	if len(routes) != 1 {
		t.Fatalf("got %d routes, want 1", len(routes))
	}

	total := 0
	for _, leg := range routes[0].SubRoutes[0].Legs {
		total += leg.Percent
	}
	if total != 100 {
		t.Errorf("degenerate percentages sum to %d, want 100", total)
	}
}

func TestComposeSkipsEmptyBatches(t *testing.T) {
	batches := [][]domain.Hop{
		nil,
		{},
		{hop(poolOne, "uniswap-v3", tokenA, tokenB, 100)},
	}

	routes := Compose(batches, big.NewInt(100))
	if len(routes) != 1 {
		t.Fatalf("got %d routes, want 1", len(routes))
	}
}

func TestComposeNilInput(t *testing.T) {
	if routes := Compose(nil, big.NewInt(1)); len(routes) != 0 {
		t.Errorf("nil batches produced %d routes", len(routes))
	}
}

func TestComposeDoesNotMutateInput(t *testing.T) {
	shared := hop(poolOne, "uniswap-v3", tokenA, tokenB, 400)
	batches := [][]domain.Hop{
		{shared},
		{hop(poolOne, "uniswap-v3", tokenA, tokenB, 600)},
	}

	Compose(batches, big.NewInt(1000))
	if shared.Amount.Int64() != 400 {
		t.Errorf("input hop amount mutated to %d", shared.Amount.Int64())
	}
}

func TestComposeRouteIDStable(t *testing.T) {
	batches := [][]domain.Hop{
		{hop(poolOne, "uniswap-v3", tokenA, tokenB, 100)},
	}

	first := Compose(batches, big.NewInt(100))
	second := Compose(batches, big.NewInt(100))
	if first[0].ID == "" || first[0].ID != second[0].ID {
		t.Errorf("route ID must be stable, got %q vs %q", first[0].ID, second[0].ID)
	}
}
