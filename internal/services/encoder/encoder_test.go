package encoder

import (
	"bytes"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/meridianswap/trade-engine/internal/domain"
	"github.com/meridianswap/trade-engine/internal/registry"
)

var registryJSON = []byte(`{
	"all": {
		"uniswap-v2": {"familyType": 0, "venueId": 2, "family": "constant-product", "displayName": "Uniswap V2"},
		"curve": {"familyType": 1, "venueId": 1, "family": "stable-swap", "displayName": "Curve"},
		"uniswap-v3": {"familyType": 2, "venueId": 1, "family": "concentrated-liquidity", "displayName": "Uniswap V3"}
	}
}`)

func testRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg, err := registry.Parse(registryJSON)
	if err != nil {
		t.Fatal(err)
	}
	return reg
}

func TestPackVenueDescriptor(t *testing.T) {
	tests := []struct {
		name       string
		familyType uint8
		venueID    uint8
		expected   uint16
	}{
		{"constant product", 0, 2, 0x0002},
		{"stable swap", 1, 1, 0x0101},
		{"concentrated", 2, 1, 0x0201},
		{"max values", 255, 255, 0xFFFF},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PackVenueDescriptor(tt.familyType, tt.venueID); got != tt.expected {
				t.Errorf("PackVenueDescriptor(%d, %d) = %#04x, want %#04x",
					tt.familyType, tt.venueID, got, tt.expected)
			}
		})
	}
}

func singleHopTrade(pool, venue string, amount *big.Int) *domain.Trade {
	tokenIn := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	tokenOut := common.HexToAddress("0x00000000000000000000000000000000000000bb")
	return &domain.Trade{
		Routes: []domain.Route{{
			Path: []common.Address{tokenIn, tokenOut},
			SubRoutes: []domain.SubRoute{{
				Legs: []domain.RouteLeg{{
					Hop: domain.Hop{
						PoolID:   pool,
						Venue:    venue,
						TokenIn:  tokenIn,
						TokenOut: tokenOut,
						Amount:   amount,
					},
					Percent: 100,
				}},
			}},
		}},
	}
}

func TestEncodeConstantProductLayout(t *testing.T) {
	e := New(testRegistry(t))
	pool := "0x1111111111111111111111111111111111111111"

	calls, err := e.EncodeTrade(1, singleHopTrade(pool, "uniswap-v2", big.NewInt(1000)))
	if err != nil {
		t.Fatal(err)
	}
	if len(calls) != 1 {
		t.Fatalf("got %d calls, want 1", len(calls))
	}

	call := calls[0]
	if call.Descriptor != 0x0002 {
		t.Errorf("descriptor = %#04x, want 0x0002", call.Descriptor)
	}
	if len(call.Data) != 4*32 {
		t.Errorf("constant-product data = %d bytes, want 128", len(call.Data))
	}

	// word 0: left-padded pool address
	if !bytes.Equal(call.Data[:32], common.LeftPadBytes(common.HexToAddress(pool).Bytes(), 32)) {
		t.Error("word 0 must be the pool address")
	}
	// word 3: the amount, big-endian in the last bytes
	if got := new(big.Int).SetBytes(call.Data[96:128]); got.Int64() != 1000 {
		t.Errorf("amount word = %d, want 1000", got.Int64())
	}
}

func TestEncodeFamilyLayoutWidths(t *testing.T) {
	e := New(testRegistry(t))
	pool := "0x1111111111111111111111111111111111111111"

	tests := []struct {
		venue      string
		words      int
		descriptor uint16
	}{
		{"uniswap-v2", 4, 0x0002},
		{"curve", 5, 0x0101},
		{"uniswap-v3", 5, 0x0201},
	}
	for _, tt := range tests {
		t.Run(tt.venue, func(t *testing.T) {
			calls, err := e.EncodeTrade(1, singleHopTrade(pool, tt.venue, big.NewInt(1)))
			if err != nil {
				t.Fatal(err)
			}
			if len(calls[0].Data) != tt.words*32 {
				t.Errorf("data = %d bytes, want %d words", len(calls[0].Data), tt.words)
			}
			if calls[0].Descriptor != tt.descriptor {
				t.Errorf("descriptor = %#04x, want %#04x", calls[0].Descriptor, tt.descriptor)
			}
		})
	}
}

func TestEncodeUnknownVenueUsesDefault(t *testing.T) {
	e := New(testRegistry(t))
	pool := "0x1111111111111111111111111111111111111111"

	calls, err := e.EncodeTrade(1, singleHopTrade(pool, "never-heard-of-it", big.NewInt(1)))
	if err != nil {
		t.Fatal(err)
	}
	// Unknown venues fall back to family type 0, venue id 1.
	if calls[0].Descriptor != 0x0001 {
		t.Errorf("descriptor = %#04x, want 0x0001", calls[0].Descriptor)
	}
}

func TestEncodeInvalidPool(t *testing.T) {
	e := New(testRegistry(t))

	_, err := e.EncodeTrade(1, singleHopTrade("raydium-style-id", "uniswap-v2", big.NewInt(1)))
	if !errors.Is(err, ErrInvalidPool) {
		t.Errorf("err = %v, want ErrInvalidPool", err)
	}
}

func TestEncodeAmountOverflow(t *testing.T) {
	e := New(testRegistry(t))
	pool := "0x1111111111111111111111111111111111111111"

	huge := new(big.Int).Lsh(big.NewInt(1), 300)
	_, err := e.EncodeTrade(1, singleHopTrade(pool, "uniswap-v2", huge))
	if !errors.Is(err, ErrAmountOverflow) {
		t.Errorf("err = %v, want ErrAmountOverflow", err)
	}
}

func TestEncodeHopOrdering(t *testing.T) {
	e := New(testRegistry(t))
	a := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	b := common.HexToAddress("0x00000000000000000000000000000000000000bb")
	c := common.HexToAddress("0x00000000000000000000000000000000000000cc")

	trade := &domain.Trade{
		Routes: []domain.Route{{
			Path: []common.Address{a, b, c},
			SubRoutes: []domain.SubRoute{
				{Legs: []domain.RouteLeg{{
					Hop: domain.Hop{
						PoolID: "0x1111111111111111111111111111111111111111", Venue: "uniswap-v2",
						TokenIn: a, TokenOut: b, Amount: big.NewInt(10),
					}, Percent: 100,
				}}},
				{Legs: []domain.RouteLeg{{
					Hop: domain.Hop{
						PoolID: "0x2222222222222222222222222222222222222222", Venue: "uniswap-v3",
						TokenIn: b, TokenOut: c, Amount: big.NewInt(9),
					}, Percent: 100,
				}}},
			},
		}},
	}

	calls, err := e.EncodeTrade(1, trade)
	if err != nil {
		t.Fatal(err)
	}
	if len(calls) != 2 {
		t.Fatalf("got %d calls, want 2", len(calls))
	}
	if calls[0].TokenIn != a || calls[1].TokenIn != b {
		t.Error("hops must be emitted in execution order")
	}
}
