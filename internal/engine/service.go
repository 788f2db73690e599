// Package engine orchestrates the swap pipeline: it owns the current swap
// intent, fans quote fetches out across sources, composes routes, estimates
// gas and publishes the selected trade to subscribers.
package engine

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	container "github.com/thehyperflames/dicontainer-go"

	"github.com/meridianswap/trade-engine/internal/adapters/chain"
	"github.com/meridianswap/trade-engine/internal/clients/oracle"
	"github.com/meridianswap/trade-engine/internal/clients/quote"
	icommon "github.com/meridianswap/trade-engine/internal/common"
	"github.com/meridianswap/trade-engine/internal/config"
	"github.com/meridianswap/trade-engine/internal/domain"
	"github.com/meridianswap/trade-engine/internal/metrics"
	"github.com/meridianswap/trade-engine/internal/registry"
	"github.com/meridianswap/trade-engine/internal/services/composer"
	"github.com/meridianswap/trade-engine/internal/services/encoder"
	"github.com/meridianswap/trade-engine/internal/services/gas"
	"github.com/meridianswap/trade-engine/internal/services/selector"
)

const ENGINE_SERVICE = "trade-engine-svc"

// ErrNoRoute means no source produced a usable trade for the intent.
var ErrNoRoute = errors.New("no route available for pair")

// settlementSelector prefixes simulated settlement calldata.
var settlementSelector = crypto.Keccak256([]byte("executeRoutes(bytes)"))[:4]

// backendKinds assigns each configured quote backend its own liquidity-source
// family. Candidates are keyed by family, so two backends sharing one would
// collapse into a single slot with last-completion-wins results.
func backendKinds(n int) ([]domain.SourceKind, error) {
	kinds := []domain.SourceKind{
		domain.SourceConstantProduct,
		domain.SourceConcentratedLiquidity,
		domain.SourceOffchainAggregated,
	}
	if n > len(kinds) {
		return nil, fmt.Errorf("%d quote backends configured, at most %d supported (one per source family)", n, len(kinds))
	}
	return kinds[:n], nil
}

// Snapshot is an immutable view of the pipeline published to subscribers.
// Generation increments on every intent change; a snapshot from an older
// generation describes inputs the user has already moved past.
type Snapshot struct {
	Generation uint64
	Intent     domain.SwapIntent
	Loading    bool
	Decision   selector.Decision
	UpdatedAt  time.Time
}

type Listener func(Snapshot)

type Service struct {
	container.BaseDIInstance

	clients    []quote.Client
	estimator  *gas.Estimator
	headCache  *gas.HeadCacheService
	registry   *registry.Registry
	encoder    *encoder.Encoder
	settlement common.Address

	chainConfig  *config.ChainConfig
	engineConfig *config.EngineConfig
	debounce     time.Duration
	logger       *icommon.ServiceLogger

	mu         sync.Mutex
	generation uint64
	intent     *domain.SwapIntent
	candidates map[domain.SourceKind]selector.Candidate
	decision   selector.Decision
	pending    int
	estimating bool
	timer      *time.Timer
	listeners  map[int]Listener
	nextSub    int
}

func (svc *Service) ID() string {
	return ENGINE_SERVICE
}

func (svc *Service) Configure(c container.IContainer) error {
	generalConfig := c.GetConfig(config.GENERAL_CONFIG_KEY).(*config.GeneralConfig)
	svc.logger = icommon.NewServiceLogger(svc)
	if generalConfig.Env == config.DevEnv {
		svc.logger.SetDebugMode(true)
		svc.logger.EnableLogForServices([]string{ENGINE_SERVICE})
	}

	svc.chainConfig = c.GetConfig(config.CHAIN_CONFIG_KEY).(*config.ChainConfig)
	svc.engineConfig = c.GetConfig(config.ENGINE_CONFIG_KEY).(*config.EngineConfig)
	svc.headCache = c.Instance(gas.HEAD_CACHE_SERVICE).(*gas.HeadCacheService)

	svc.debounce = time.Duration(svc.engineConfig.DebounceMs) * time.Millisecond
	svc.candidates = make(map[domain.SourceKind]selector.Candidate)
	svc.listeners = make(map[int]Listener)
	svc.settlement = common.HexToAddress(svc.chainConfig.SettlementContract)

	if svc.registry == nil {
		reg, err := registry.Load(svc.chainConfig.VenueRegistryPath)
		if err != nil {
			log.Warn().Err(err).Str("path", svc.chainConfig.VenueRegistryPath).
				Msg("[EngineService] venue registry unavailable, using defaults")
			reg = registry.Empty()
		}
		svc.registry = reg
	}
	svc.encoder = encoder.New(svc.registry)

	if svc.clients == nil {
		timeout := time.Duration(svc.engineConfig.QuoteTimeoutMs) * time.Millisecond
		kinds, err := backendKinds(len(svc.engineConfig.QuoteBackends))
		if err != nil {
			return err
		}
		for i, baseURL := range svc.engineConfig.QuoteBackends {
			client := quote.NewCachedClient(
				quote.NewHTTPClient(baseURL, kinds[i], timeout),
				svc.engineConfig.QuoteCacheSize,
			)
			svc.clients = append(svc.clients, client)
		}
	}

	if svc.estimator == nil {
		var priceOracle oracle.PriceOracle
		if svc.engineConfig.PriceAPIUrl != "" {
			priceOracle = oracle.NewCachedOracle(
				oracle.NewHTTPOracle(svc.engineConfig.PriceAPIUrl, 5*time.Second),
				30*time.Second,
			)
		}
		native := domain.NewNative(svc.chainConfig.ChainID, svc.chainConfig.NativeDecimals, svc.chainConfig.NativeSymbol)
		svc.estimator = gas.NewEstimator(
			chain.NewRPCClient(svc.chainConfig.RPCUrl, 10*time.Second),
			priceOracle,
			native,
			svc.engineConfig.GasMinBuffer,
		)
	}
	return nil
}

func (svc *Service) Start() error {
	svc.headCache.Subscribe(svc.onHeadAdvance)
	log.Info().
		Int("sources", len(svc.clients)).
		Uint64("chainID", svc.chainConfig.ChainID).
		Msg("[EngineService] started")
	return nil
}

func (svc *Service) Stop() error {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	// Advancing the generation orphans every in-flight completion.
	svc.generation++
	if svc.timer != nil {
		svc.timer.Stop()
	}
	return nil
}

// SetClients / SetEstimator / SetRegistry inject collaborators before
// Configure; used by tests and alternative wiring.
func (svc *Service) SetClients(clients []quote.Client)  { svc.clients = clients }
func (svc *Service) SetEstimator(e *gas.Estimator)      { svc.estimator = e }
func (svc *Service) SetRegistry(reg *registry.Registry) { svc.registry = reg }

// Registry exposes the venue registry for the HTTP surface.
func (svc *Service) Registry() *registry.Registry {
	return svc.registry
}

// Encoder exposes the call encoder for the HTTP surface.
func (svc *Service) Encoder() *encoder.Encoder {
	return svc.encoder
}

// SetIntent replaces the current swap intent wholesale and schedules a
// debounced refresh. Rapid successive calls coalesce into one refresh; every
// call invalidates all in-flight work from prior intents.
func (svc *Service) SetIntent(intent domain.SwapIntent) error {
	if err := intent.Validate(); err != nil {
		return err
	}

	svc.mu.Lock()
	svc.generation++
	gen := svc.generation

	if svc.intent != nil && !svc.intent.SamePair(intent) {
		svc.invalidateCachesLocked(*svc.intent)
	}
	svc.intent = &intent

	svc.candidates = make(map[domain.SourceKind]selector.Candidate, len(svc.clients))
	for _, client := range svc.clients {
		svc.candidates[client.Source()] = selector.Candidate{State: selector.StateSyncing}
	}
	svc.pending = len(svc.clients)
	svc.decision = selector.Decision{Outcome: selector.Undecided}

	if svc.timer != nil {
		svc.timer.Stop()
	}
	svc.timer = time.AfterFunc(svc.debounce, func() {
		svc.refresh(gen, intent)
	})
	svc.mu.Unlock()

	svc.logger.Info("intent replaced, refresh scheduled", "SetIntent")
	svc.notify()
	return nil
}

// Snapshot returns the current pipeline state.
func (svc *Service) Snapshot() Snapshot {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return svc.snapshotLocked()
}

// Subscribe registers a listener for snapshot updates and returns its
// unsubscribe function.
func (svc *Service) Subscribe(fn Listener) func() {
	svc.mu.Lock()
	id := svc.nextSub
	svc.nextSub++
	svc.listeners[id] = fn
	svc.mu.Unlock()

	return func() {
		svc.mu.Lock()
		delete(svc.listeners, id)
		svc.mu.Unlock()
	}
}

// QuoteOnce runs the whole pipeline statelessly for one intent: fetch all
// sources, compose, estimate gas, select. It never touches the shared intent
// state, so HTTP quote requests cannot perturb a live session.
func (svc *Service) QuoteOnce(ctx context.Context, intent domain.SwapIntent) (*domain.Trade, error) {
	if err := intent.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	defer func() {
		metrics.RefreshDuration.Observe(time.Since(start).Seconds())
	}()

	trades := svc.fetchAll(ctx, intent)
	if len(trades) == 0 {
		svc.logger.Info("no source produced a usable trade", "QuoteOnce")
		return nil, ErrNoRoute
	}
	for i, cost := range svc.estimateGas(ctx, intent, trades) {
		if cost != nil {
			trades[i] = withGasCost(trades[i], *cost)
		}
	}

	candidates := make([]selector.Candidate, 0, len(trades))
	for _, t := range trades {
		candidates = append(candidates, selector.Candidate{Trade: t, State: selector.StateReady})
	}
	decision := selector.SelectBest(candidates, nil, svc.materiality())
	if decision.Outcome != selector.Selected {
		return nil, ErrNoRoute
	}
	return decision.Trade, nil
}

func (svc *Service) refresh(gen uint64, intent domain.SwapIntent) {
	start := time.Now()
	timeout := time.Duration(svc.engineConfig.QuoteTimeoutMs) * time.Millisecond
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var wg sync.WaitGroup
	for _, client := range svc.clients {
		wg.Add(1)
		go func(client quote.Client) {
			defer wg.Done()
			trade := svc.fetchOne(ctx, client, intent)
			svc.completeSource(gen, client.Source(), trade)
		}(client)
	}
	wg.Wait()

	svc.runGasPass(gen, intent, false)
	metrics.RefreshDuration.Observe(time.Since(start).Seconds())
}

func (svc *Service) fetchOne(ctx context.Context, client quote.Client, intent domain.SwapIntent) *domain.Trade {
	opts := quote.Options{
		SaveGas:            intent.SaveGas || svc.engineConfig.SaveGas,
		IncludeGasEstimate: true,
		SlippageTolerance:  intent.Tolerance,
	}
	raw, err := client.GetQuote(ctx, intent.ChainID, intent.TokenIn.Address, intent.TokenOut.Address, intent.Amount, opts)
	if err != nil {
		if !errors.Is(err, quote.ErrQuoteUnavailable) {
			log.Warn().Err(err).Str("source", client.Source().String()).
				Msg("[EngineService] quote fetch failed")
		}
		return nil
	}
	return buildTrade(intent, client.Source(), raw)
}

// completeSource records one source's outcome, discarding it when the
// generation moved on while the fetch was in flight.
func (svc *Service) completeSource(gen uint64, source domain.SourceKind, trade *domain.Trade) {
	svc.mu.Lock()
	if gen != svc.generation {
		svc.mu.Unlock()
		metrics.StaleDiscards.Inc()
		return
	}

	if trade != nil {
		svc.candidates[source] = selector.Candidate{Trade: trade, State: selector.StateReady}
	} else {
		svc.candidates[source] = selector.Candidate{State: selector.StateAbsent}
	}
	if svc.pending > 0 {
		svc.pending--
	}
	svc.reselectLocked()
	svc.mu.Unlock()

	svc.notify()
}

// runGasPass estimates execution gas for ready candidates, then reselects.
// refreshAll re-estimates even already-priced candidates; the head-advance
// trigger uses it so a stale gas price never outlives the chain state it
// came from. Priced trades are replaced with copies, never written in place:
// published trades stay immutable.
func (svc *Service) runGasPass(gen uint64, intent domain.SwapIntent, refreshAll bool) {
	svc.mu.Lock()
	if gen != svc.generation || svc.estimating {
		svc.mu.Unlock()
		if gen != svc.generation {
			metrics.StaleDiscards.Inc()
		}
		return
	}
	svc.estimating = true
	trades := svc.readyTradesLocked(refreshAll)
	svc.mu.Unlock()

	var costs []*decimal.Decimal
	if len(trades) > 0 {
		timeout := time.Duration(svc.engineConfig.QuoteTimeoutMs) * time.Millisecond
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		costs = svc.estimateGas(ctx, intent, trades)
		cancel()
	}

	svc.mu.Lock()
	svc.estimating = false
	if gen != svc.generation {
		svc.mu.Unlock()
		metrics.StaleDiscards.Inc()
		return
	}
	for i, cost := range costs {
		if cost == nil {
			continue
		}
		source := trades[i].Source
		if c, ok := svc.candidates[source]; ok && c.State == selector.StateReady && c.Trade == trades[i] {
			svc.candidates[source] = selector.Candidate{Trade: withGasCost(trades[i], *cost), State: selector.StateReady}
		}
	}
	svc.reselectLocked()
	svc.mu.Unlock()

	svc.notify()
}

// estimateGas runs one position-correlated estimation batch and returns the
// USD execution cost per trade, nil where the estimate or conversion failed.
// The input trades are read, never written.
func (svc *Service) estimateGas(ctx context.Context, intent domain.SwapIntent, trades []*domain.Trade) []*decimal.Decimal {
	costs := make([]*decimal.Decimal, len(trades))
	if svc.estimator == nil || len(trades) == 0 {
		return costs
	}

	calls := make([]chain.CallSpec, len(trades))
	encodable := make([]bool, len(trades))
	for i, t := range trades {
		spec, err := svc.buildCallSpec(intent, t)
		if err != nil {
			log.Debug().Err(err).Str("source", t.Source.String()).
				Msg("[EngineService] trade not encodable for gas simulation")
			continue
		}
		calls[i] = spec
		encodable[i] = true
	}

	results := svc.estimator.EstimateBatch(ctx, calls)
	for i, res := range results {
		if !encodable[i] || !res.Known() {
			continue
		}
		cost := res.Estimate.CostUSD
		costs[i] = &cost
	}
	return costs
}

// withGasCost returns a copy of the trade carrying a fresh gas cost.
func withGasCost(t *domain.Trade, cost decimal.Decimal) *domain.Trade {
	priced := *t
	priced.GasCostUSD = &cost
	if !priced.AmountOutUSD.IsZero() {
		priced.ReceivedUSD = priced.AmountOutUSD.Sub(cost)
	}
	return &priced
}

func (svc *Service) buildCallSpec(intent domain.SwapIntent, trade *domain.Trade) (chain.CallSpec, error) {
	hops, err := svc.encoder.EncodeTrade(intent.ChainID, trade)
	if err != nil {
		return chain.CallSpec{}, err
	}

	data := make([]byte, 0, 4+len(hops)*(32+5*32))
	data = append(data, settlementSelector...)
	for _, hop := range hops {
		word := make([]byte, 32)
		word[30] = byte(hop.Descriptor >> 8)
		word[31] = byte(hop.Descriptor)
		data = append(data, word...)
		data = append(data, hop.Data...)
	}

	spec := chain.CallSpec{
		From: intent.Recipient,
		To:   svc.settlement,
		Data: data,
	}
	if intent.TokenIn.Native {
		spec.Value = new(big.Int).Set(intent.Amount)
	}
	return spec, nil
}

// onHeadAdvance re-estimates gas for the current candidates under the fresh
// chain state. Overlapping advances coalesce through the estimating flag.
func (svc *Service) onHeadAdvance(height uint64) {
	svc.mu.Lock()
	if svc.intent == nil || svc.pending > 0 || svc.estimating {
		svc.mu.Unlock()
		return
	}
	gen := svc.generation
	intent := *svc.intent
	svc.mu.Unlock()

	log.Debug().Uint64("height", height).Msg("[EngineService] head advanced, refreshing gas")
	go svc.runGasPass(gen, intent, true)
}

func (svc *Service) fetchAll(ctx context.Context, intent domain.SwapIntent) []*domain.Trade {
	results := make([]*domain.Trade, len(svc.clients))
	var wg sync.WaitGroup
	for i, client := range svc.clients {
		wg.Add(1)
		go func(i int, client quote.Client) {
			defer wg.Done()
			results[i] = svc.fetchOne(ctx, client, intent)
		}(i, client)
	}
	wg.Wait()

	trades := make([]*domain.Trade, 0, len(results))
	for _, t := range results {
		if t != nil {
			trades = append(trades, t)
		}
	}
	return trades
}

// readyTradesLocked returns the ready candidates' trades: all of them when
// refreshAll, otherwise only those without a gas cost yet.
func (svc *Service) readyTradesLocked(refreshAll bool) []*domain.Trade {
	trades := make([]*domain.Trade, 0, len(svc.candidates))
	for _, c := range svc.candidates {
		if c.State != selector.StateReady || c.Trade == nil {
			continue
		}
		if refreshAll || c.Trade.GasCostUSD == nil {
			trades = append(trades, c.Trade)
		}
	}
	return trades
}

func (svc *Service) reselectLocked() {
	candidates := make([]selector.Candidate, 0, len(svc.candidates))
	for _, c := range svc.candidates {
		candidates = append(candidates, c)
	}
	var incumbent *domain.Trade
	if svc.decision.Outcome == selector.Selected {
		incumbent = svc.decision.Trade
	}
	svc.decision = selector.SelectBest(candidates, incumbent, svc.materiality())
}

func (svc *Service) invalidateCachesLocked(old domain.SwapIntent) {
	for _, client := range svc.clients {
		if cached, ok := client.(*quote.CachedClient); ok {
			cached.InvalidatePair(old.ChainID, old.TokenIn.Address, old.TokenOut.Address)
		}
	}
}

func (svc *Service) materiality() domain.Percent {
	return domain.NewPercentFromBps(int64(svc.engineConfig.MaterialityBps))
}

func (svc *Service) snapshotLocked() Snapshot {
	snap := Snapshot{
		Generation: svc.generation,
		Loading:    svc.pending > 0 || svc.estimating,
		Decision:   svc.decision,
		UpdatedAt:  time.Now(),
	}
	if svc.intent != nil {
		snap.Intent = *svc.intent
	}
	return snap
}

func (svc *Service) notify() {
	svc.mu.Lock()
	snap := svc.snapshotLocked()
	listeners := make([]Listener, 0, len(svc.listeners))
	for _, fn := range svc.listeners {
		listeners = append(listeners, fn)
	}
	svc.mu.Unlock()

	for _, fn := range listeners {
		fn(snap)
	}
}

// buildTrade lifts one source's raw quote into a Trade with composed routes.
func buildTrade(intent domain.SwapIntent, source domain.SourceKind, raw *quote.RawQuote) *domain.Trade {
	if !raw.Usable() {
		return nil
	}

	trade := &domain.Trade{
		Type:         intent.Type,
		Source:       source,
		InputAmount:  domain.NewCurrencyAmount(intent.TokenIn, raw.InputAmount),
		OutputAmount: domain.NewCurrencyAmount(intent.TokenOut, raw.OutputAmount),
		Routes:       composer.Compose(raw.Hops, raw.InputAmount),
		AmountInUSD:  raw.AmountInUSD,
		AmountOutUSD: raw.AmountOutUSD,
		ReceivedUSD:  raw.ReceivedUSD,
		GasCostUSD:   raw.GasUSD,
	}
	if raw.GasUSD != nil && trade.ReceivedUSD.IsZero() && !trade.AmountOutUSD.IsZero() {
		trade.ReceivedUSD = trade.AmountOutUSD.Sub(*raw.GasUSD)
	}
	return trade
}

// PriceImpact classifies the USD in/out spread of a trade into severity
// bands for display. Unknown valuations yield an unknown impact, not zero.
type PriceImpact struct {
	Percent  decimal.Decimal
	Severity string
	Known    bool
}

func ComputePriceImpact(trade *domain.Trade) PriceImpact {
	if trade == nil || trade.AmountInUSD.Sign() <= 0 || trade.AmountOutUSD.Sign() <= 0 {
		return PriceImpact{Severity: "unknown"}
	}

	spread := trade.AmountInUSD.Sub(trade.AmountOutUSD).
		Div(trade.AmountInUSD).
		Mul(decimal.NewFromInt(100))

	severity := "low"
	switch {
	case spread.GreaterThan(decimal.NewFromInt(15)):
		severity = "critical"
	case spread.GreaterThan(decimal.NewFromInt(5)):
		severity = "high"
	case spread.GreaterThan(decimal.NewFromInt(1)):
		severity = "medium"
	}
	return PriceImpact{Percent: spread, Severity: severity, Known: true}
}
