package engine

import (
	"context"
	"errors"
	"math/big"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/meridianswap/trade-engine/internal/adapters/chain"
	"github.com/meridianswap/trade-engine/internal/clients/quote"
	"github.com/meridianswap/trade-engine/internal/config"
	"github.com/meridianswap/trade-engine/internal/domain"
	"github.com/meridianswap/trade-engine/internal/registry"
	"github.com/meridianswap/trade-engine/internal/services/encoder"
	"github.com/meridianswap/trade-engine/internal/services/gas"
	"github.com/meridianswap/trade-engine/internal/services/selector"
)

type fakeQuoteClient struct {
	source domain.SourceKind
	quote  *quote.RawQuote
	err    error
	calls  atomic.Int64
	delay  time.Duration
}

func (f *fakeQuoteClient) Source() domain.SourceKind { return f.source }

func (f *fakeQuoteClient) GetQuote(ctx context.Context, networkID uint64, tokenIn, tokenOut common.Address, amountIn *big.Int, opts quote.Options) (*quote.RawQuote, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.quote, f.err
}

func rawQuoteWorth(outUSD string) *quote.RawQuote {
	return &quote.RawQuote{
		InputAmount:  big.NewInt(1_000_000),
		OutputAmount: big.NewInt(2_000_000),
		AmountInUSD:  decimal.RequireFromString("2000"),
		AmountOutUSD: decimal.RequireFromString(outUSD),
		ReceivedUSD:  decimal.RequireFromString(outUSD),
		Hops: [][]domain.Hop{{{
			PoolID:   "0x1111111111111111111111111111111111111111",
			Venue:    "uniswap-v3",
			TokenIn:  common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"),
			TokenOut: common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"),
			Amount:   big.NewInt(1_000_000),
		}}},
	}
}

func testIntent() domain.SwapIntent {
	return domain.SwapIntent{
		ChainID:   1,
		TokenIn:   domain.NewToken(1, common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"), 18, "WETH"),
		TokenOut:  domain.NewToken(1, common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"), 6, "USDC"),
		Amount:    big.NewInt(1_000_000),
		Type:      domain.ExactInput,
		Tolerance: domain.NewPercentFromBps(50),
	}
}

func newTestService(clients ...quote.Client) *Service {
	svc := &Service{
		clients: clients,
		engineConfig: &config.EngineConfig{
			MaterialityBps: 200,
			DebounceMs:     5,
			QuoteTimeoutMs: 2000,
		},
		chainConfig: &config.ChainConfig{ChainID: 1},
		registry:    registry.Empty(),
		debounce:    5 * time.Millisecond,
		candidates:  make(map[domain.SourceKind]selector.Candidate),
		listeners:   make(map[int]Listener),
	}
	svc.encoder = encoder.New(svc.registry)
	return svc
}

func TestQuoteOncePicksBestSource(t *testing.T) {
	svc := newTestService(
		&fakeQuoteClient{source: domain.SourceConstantProduct, quote: rawQuoteWorth("1990")},
		&fakeQuoteClient{source: domain.SourceConcentratedLiquidity, quote: rawQuoteWorth("1995")},
		&fakeQuoteClient{source: domain.SourceOffchainAggregated, err: quote.ErrQuoteUnavailable},
	)

	trade, err := svc.QuoteOnce(context.Background(), testIntent())
	if err != nil {
		t.Fatal(err)
	}
	if trade.Source != domain.SourceConcentratedLiquidity {
		t.Errorf("winner = %s, want ConcentratedLiquidity", trade.Source)
	}
	if len(trade.Routes) != 1 {
		t.Errorf("got %d routes, want 1", len(trade.Routes))
	}
}

func TestQuoteOnceNoRoute(t *testing.T) {
	svc := newTestService(
		&fakeQuoteClient{source: domain.SourceConstantProduct, err: quote.ErrQuoteUnavailable},
		&fakeQuoteClient{source: domain.SourceConcentratedLiquidity, err: quote.ErrQuoteUnavailable},
	)

	if _, err := svc.QuoteOnce(context.Background(), testIntent()); !errors.Is(err, ErrNoRoute) {
		t.Errorf("err = %v, want ErrNoRoute", err)
	}
}

func TestQuoteOnceRejectsInvalidIntent(t *testing.T) {
	svc := newTestService()

	bad := testIntent()
	bad.Amount = big.NewInt(0)
	if _, err := svc.QuoteOnce(context.Background(), bad); err == nil {
		t.Error("zero amount must be rejected")
	}

	same := testIntent()
	same.TokenOut = same.TokenIn
	if _, err := svc.QuoteOnce(context.Background(), same); err == nil {
		t.Error("identical pair must be rejected")
	}
}

func TestStaleCompletionDiscarded(t *testing.T) {
	svc := newTestService(&fakeQuoteClient{source: domain.SourceConstantProduct, quote: rawQuoteWorth("1990")})
	svc.generation = 7
	svc.intent = &domain.SwapIntent{}
	svc.candidates[domain.SourceConstantProduct] = selector.Candidate{State: selector.StateSyncing}
	svc.pending = 1

	trade := buildTrade(testIntent(), domain.SourceConstantProduct, rawQuoteWorth("1990"))

	// Completion from a superseded generation must change nothing.
	svc.completeSource(6, domain.SourceConstantProduct, trade)
	if svc.candidates[domain.SourceConstantProduct].State != selector.StateSyncing {
		t.Fatal("stale completion must not touch candidate state")
	}
	if svc.pending != 1 {
		t.Fatal("stale completion must not consume the pending count")
	}

	// The current generation's completion lands.
	svc.completeSource(7, domain.SourceConstantProduct, trade)
	if svc.candidates[domain.SourceConstantProduct].State != selector.StateReady {
		t.Fatal("current completion must apply")
	}
	if svc.decision.Outcome != selector.Selected {
		t.Fatalf("decision = %v, want Selected", svc.decision.Outcome)
	}
}

func TestSetIntentDebouncesRefresh(t *testing.T) {
	client := &fakeQuoteClient{source: domain.SourceConstantProduct, quote: rawQuoteWorth("1990")}
	svc := newTestService(client)

	updates := make(chan Snapshot, 32)
	unsubscribe := svc.Subscribe(func(s Snapshot) {
		select {
		case updates <- s:
		default:
		}
	})
	defer unsubscribe()

	// Three rapid edits inside the debounce window coalesce into one fetch.
	intent := testIntent()
	for _, amount := range []int64{100, 200, 300} {
		next := intent
		next.Amount = big.NewInt(amount)
		if err := svc.SetIntent(next); err != nil {
			t.Fatal(err)
		}
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case snap := <-updates:
			if !snap.Loading && snap.Decision.Outcome == selector.Selected {
				if got := client.calls.Load(); got != 1 {
					t.Errorf("backend fetched %d times, want 1", got)
				}
				if snap.Intent.Amount.Int64() != 300 {
					t.Errorf("final intent amount = %d, want 300", snap.Intent.Amount.Int64())
				}
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for a settled snapshot")
		}
	}
}

func TestSetIntentValidation(t *testing.T) {
	svc := newTestService()
	bad := testIntent()
	bad.Tolerance = domain.NewPercent(-1, 100)
	if err := svc.SetIntent(bad); !errors.Is(err, domain.ErrInvalidTolerance) {
		t.Errorf("err = %v, want ErrInvalidTolerance", err)
	}
}

func TestBuildTrade(t *testing.T) {
	raw := rawQuoteWorth("1999")
	raw.ReceivedUSD = decimal.Zero
	gas := decimal.RequireFromString("4.2")
	raw.GasUSD = &gas

	trade := buildTrade(testIntent(), domain.SourceConstantProduct, raw)
	if trade == nil {
		t.Fatal("usable quote must build a trade")
	}
	if trade.InputAmount.Raw().Int64() != 1_000_000 {
		t.Errorf("input = %d", trade.InputAmount.Raw().Int64())
	}
	// gas known and received absent: derive received = out - gas
	want := decimal.RequireFromString("1994.8")
	if !trade.ReceivedUSD.Equal(want) {
		t.Errorf("receivedUsd = %s, want %s", trade.ReceivedUSD, want)
	}
}

func TestBuildTradeUnusable(t *testing.T) {
	if trade := buildTrade(testIntent(), domain.SourceConstantProduct, &quote.RawQuote{}); trade != nil {
		t.Error("unusable quote must not build a trade")
	}
}

type fakeChainRPC struct {
	gasUnits uint64
	gasPrice *big.Int
}

func (f *fakeChainRPC) BlockNumber(ctx context.Context) (uint64, error) { return 1, nil }

func (f *fakeChainRPC) EstimateGas(ctx context.Context, call chain.CallSpec) (uint64, error) {
	return f.gasUnits, nil
}

func (f *fakeChainRPC) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return f.gasPrice, nil
}

type fixedPriceOracle struct{ price decimal.Decimal }

func (o fixedPriceOracle) PriceOf(ctx context.Context, currency domain.Currency) (decimal.Decimal, error) {
	return o.price, nil
}

func TestHeadAdvanceRefreshesPricedCandidates(t *testing.T) {
	svc := newTestService()
	svc.estimator = gas.NewEstimator(
		&fakeChainRPC{gasUnits: 100_000, gasPrice: big.NewInt(1_000_000_000)},
		fixedPriceOracle{price: decimal.RequireFromString("10000")},
		domain.NewNative(1, 18, "ETH"),
		0,
	)

	intent := testIntent()
	stale := decimal.RequireFromString("5")
	published := buildTrade(intent, domain.SourceConstantProduct, rawQuoteWorth("1990"))
	published.GasCostUSD = &stale

	svc.generation = 3
	svc.intent = &intent
	svc.candidates[domain.SourceConstantProduct] = selector.Candidate{Trade: published, State: selector.StateReady}

	// The regular pass skips already-priced candidates.
	if got := len(svc.readyTradesLocked(false)); got != 0 {
		t.Fatalf("regular pass sees %d trades, want 0", got)
	}
	// The head-advance pass must not: its gas price is what went stale.
	if got := len(svc.readyTradesLocked(true)); got != 1 {
		t.Fatalf("head-advance pass sees %d trades, want 1", got)
	}

	svc.runGasPass(3, intent, true)

	current := svc.candidates[domain.SourceConstantProduct].Trade
	if current == published {
		t.Fatal("head advance must swap in a fresh copy, not keep the stale trade")
	}
	// 100k raw + 20% margin at 1 gwei, converted at 10000 USD/ETH
	want := decimal.RequireFromString("1.2")
	if current.GasCostUSD == nil || !current.GasCostUSD.Equal(want) {
		t.Errorf("refreshed gas cost = %v, want %s", current.GasCostUSD, want)
	}
	if !current.ReceivedUSD.Equal(current.AmountOutUSD.Sub(want)) {
		t.Errorf("receivedUsd = %s, want net of %s", current.ReceivedUSD, want)
	}
	// The previously published trade is replaced, never patched.
	if !published.GasCostUSD.Equal(stale) {
		t.Errorf("published trade mutated: gas cost = %s", published.GasCostUSD)
	}
	if !published.ReceivedUSD.Equal(decimal.RequireFromString("1990")) {
		t.Errorf("published trade mutated: receivedUsd = %s", published.ReceivedUSD)
	}
}

func TestBackendKindsDistinct(t *testing.T) {
	kinds, err := backendKinds(3)
	if err != nil {
		t.Fatal(err)
	}
	seen := make(map[domain.SourceKind]bool)
	for _, k := range kinds {
		if seen[k] {
			t.Fatalf("kind %s assigned twice", k)
		}
		seen[k] = true
	}

	if _, err := backendKinds(4); err == nil {
		t.Error("a fourth backend must be rejected, not collapse into a shared candidate slot")
	}
}

func TestComputePriceImpact(t *testing.T) {
	tests := []struct {
		name     string
		inUSD    string
		outUSD   string
		severity string
		known    bool
	}{
		{"negligible", "2000", "1998.6", "low", true},
		{"medium", "2000", "1950", "medium", true},
		{"high", "2000", "1800", "high", true},
		{"critical", "2000", "1500", "critical", true},
		{"unknown in", "0", "1998", "unknown", false},
		{"unknown out", "2000", "0", "unknown", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trade := &domain.Trade{
				AmountInUSD:  decimal.RequireFromString(tt.inUSD),
				AmountOutUSD: decimal.RequireFromString(tt.outUSD),
			}
			impact := ComputePriceImpact(trade)
			if impact.Severity != tt.severity {
				t.Errorf("severity = %q, want %q", impact.Severity, tt.severity)
			}
			if impact.Known != tt.known {
				t.Errorf("known = %t, want %t", impact.Known, tt.known)
			}
		})
	}

	if got := ComputePriceImpact(nil); got.Known || got.Severity != "unknown" {
		t.Error("nil trade must yield unknown impact")
	}
}
