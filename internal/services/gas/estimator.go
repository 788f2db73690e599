// Package gas estimates execution cost for candidate trades via node
// simulation and converts it to USD through the price oracle.
package gas

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridianswap/trade-engine/internal/adapters/chain"
	"github.com/meridianswap/trade-engine/internal/clients/oracle"
	"github.com/meridianswap/trade-engine/internal/domain"
	"github.com/meridianswap/trade-engine/internal/metrics"
)

var (
	ErrEstimationFailed      = errors.New("gas estimation failed")
	ErrConversionUnavailable = errors.New("gas cost conversion unavailable")
)

// Estimate is one candidate's simulated execution cost. GasUnits already
// carries the safety margin.
type Estimate struct {
	GasUnits   uint64
	CostNative *big.Int
	CostUSD    decimal.Decimal
}

// Result pairs an estimate with its failure, position-correlated with the
// input call list. A failed candidate stays unknown; it is never zeroed.
type Result struct {
	Estimate *Estimate
	Err      error
}

func (r Result) Known() bool {
	return r.Err == nil && r.Estimate != nil
}

type Estimator struct {
	client    chain.Client
	oracle    oracle.PriceOracle
	native    domain.Currency
	minBuffer uint64
}

func NewEstimator(client chain.Client, priceOracle oracle.PriceOracle, native domain.Currency, minBuffer uint64) *Estimator {
	return &Estimator{
		client:    client,
		oracle:    priceOracle,
		native:    native,
		minBuffer: minBuffer,
	}
}

// EstimateBatch simulates every call concurrently and returns results in the
// same order as the calls. One failure never poisons the batch.
func (e *Estimator) EstimateBatch(ctx context.Context, calls []chain.CallSpec) []Result {
	results := make([]Result, len(calls))
	if len(calls) == 0 {
		return results
	}

	start := time.Now()
	gasPrice, priceErr := e.client.SuggestGasPrice(ctx)
	usdPrice, usdErr := e.nativePrice(ctx)

	var wg sync.WaitGroup
	for i := range calls {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = e.estimateOne(ctx, calls[i], gasPrice, priceErr, usdPrice, usdErr)
		}(i)
	}
	wg.Wait()

	metrics.GasEstimateDuration.Observe(time.Since(start).Seconds())
	return results
}

func (e *Estimator) estimateOne(ctx context.Context, call chain.CallSpec, gasPrice *big.Int, priceErr error, usdPrice decimal.Decimal, usdErr error) Result {
	raw, err := e.client.EstimateGas(ctx, call)
	if err != nil {
		metrics.GasEstimates.WithLabelValues("error").Inc()
		return Result{Err: fmt.Errorf("%w: %v", ErrEstimationFailed, err)}
	}

	padded := e.applyMargin(raw)
	est := &Estimate{GasUnits: padded}

	if priceErr != nil {
		metrics.GasEstimates.WithLabelValues("no_price").Inc()
		return Result{Estimate: est, Err: fmt.Errorf("%w: %v", ErrConversionUnavailable, priceErr)}
	}
	est.CostNative = new(big.Int).Mul(new(big.Int).SetUint64(padded), gasPrice)

	if usdErr != nil {
		metrics.GasEstimates.WithLabelValues("no_price").Inc()
		return Result{Estimate: est, Err: fmt.Errorf("%w: %v", ErrConversionUnavailable, usdErr)}
	}
	est.CostUSD = decimal.NewFromBigInt(est.CostNative, -int32(e.native.Decimals)).Mul(usdPrice)

	metrics.GasEstimates.WithLabelValues("ok").Inc()
	return Result{Estimate: est}
}

// applyMargin pads the raw estimate by max(minBuffer, 20%) so tight node
// estimates do not revert at execution time.
func (e *Estimator) applyMargin(raw uint64) uint64 {
	margin := raw / 5
	if margin < e.minBuffer {
		margin = e.minBuffer
	}
	return raw + margin
}

func (e *Estimator) nativePrice(ctx context.Context) (decimal.Decimal, error) {
	if e.oracle == nil {
		return decimal.Zero, oracle.ErrPriceUnavailable
	}
	return e.oracle.PriceOf(ctx, e.native)
}
