// Package oracle defines the USD price collaborator consumed by the gas cost
// estimator and valuation paths.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/shopspring/decimal"

	"github.com/meridianswap/trade-engine/internal/domain"
)

// ErrPriceUnavailable means the oracle has no usable price for the currency.
// Consumers treat the dependent valuation as unknown, never as zero.
var ErrPriceUnavailable = errors.New("price unavailable")

type PriceOracle interface {
	// PriceOf returns the USD price of one whole unit of the currency.
	PriceOf(ctx context.Context, currency domain.Currency) (decimal.Decimal, error)
}

// HTTPOracle is a thin client for a price API returning {"price": "123.45"}.
type HTTPOracle struct {
	baseURL string
	http    *http.Client
}

func NewHTTPOracle(baseURL string, timeout time.Duration) *HTTPOracle {
	return &HTTPOracle{baseURL: baseURL, http: &http.Client{Timeout: timeout}}
}

func (o *HTTPOracle) PriceOf(ctx context.Context, currency domain.Currency) (decimal.Decimal, error) {
	asset := currency.Address.Hex()
	if currency.Native {
		asset = "native"
	}
	url := fmt.Sprintf("%s/price?chainId=%d&asset=%s", o.baseURL, currency.ChainID, asset)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return decimal.Zero, err
	}
	resp, err := o.http.Do(req)
	if err != nil {
		return decimal.Zero, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, ErrPriceUnavailable
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return decimal.Zero, err
	}

	var payload struct {
		Price string `json:"price"`
	}
	if err := sonic.Unmarshal(body, &payload); err != nil {
		return decimal.Zero, err
	}
	price, err := decimal.NewFromString(payload.Price)
	if err != nil || price.Sign() <= 0 {
		return decimal.Zero, ErrPriceUnavailable
	}
	return price, nil
}

// CachedOracle keeps prices for a short TTL so a batch of gas conversions
// does not hammer the price API once per candidate.
type CachedOracle struct {
	inner PriceOracle
	ttl   time.Duration

	mu      sync.RWMutex
	entries map[string]cachedPrice
}

type cachedPrice struct {
	price decimal.Decimal
	at    time.Time
}

func NewCachedOracle(inner PriceOracle, ttl time.Duration) *CachedOracle {
	return &CachedOracle{
		inner:   inner,
		ttl:     ttl,
		entries: make(map[string]cachedPrice),
	}
}

func (o *CachedOracle) PriceOf(ctx context.Context, currency domain.Currency) (decimal.Decimal, error) {
	key := cacheKey(currency)

	o.mu.RLock()
	entry, ok := o.entries[key]
	o.mu.RUnlock()
	if ok && time.Since(entry.at) < o.ttl {
		return entry.price, nil
	}

	price, err := o.inner.PriceOf(ctx, currency)
	if err != nil {
		return decimal.Zero, err
	}

	o.mu.Lock()
	o.entries[key] = cachedPrice{price: price, at: time.Now()}
	o.mu.Unlock()
	return price, nil
}

func cacheKey(c domain.Currency) string {
	if c.Native {
		return fmt.Sprintf("%d|native", c.ChainID)
	}
	return fmt.Sprintf("%d|%s", c.ChainID, c.Address.Hex())
}
