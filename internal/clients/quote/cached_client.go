package quote

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/meridianswap/trade-engine/internal/domain"
	"github.com/meridianswap/trade-engine/internal/metrics"
)

// CachedClient wraps a Client with a bounded LRU for in-flight-window
// deduplication. The cache is owned here, not by a process-wide singleton,
// and is invalidated explicitly on network or pair change; routes are still
// rebuilt fresh on every refresh downstream.
type CachedClient struct {
	inner Client
	cache *BoundedLRUCache[string, *RawQuote]
}

func NewCachedClient(inner Client, size int) *CachedClient {
	if size <= 0 {
		size = 256
	}
	return &CachedClient{
		inner: inner,
		cache: NewBoundedLRUCache[string, *RawQuote](size),
	}
}

func (c *CachedClient) Source() domain.SourceKind {
	return c.inner.Source()
}

func (c *CachedClient) GetQuote(ctx context.Context, networkID uint64, tokenIn, tokenOut common.Address, amountIn *big.Int, opts Options) (*RawQuote, error) {
	key := quoteKey(networkID, tokenIn, tokenOut, amountIn, opts)
	if cached, ok := c.cache.Get(key); ok {
		metrics.QuoteCacheHits.Inc()
		return cached, nil
	}
	metrics.QuoteCacheMisses.Inc()

	q, err := c.inner.GetQuote(ctx, networkID, tokenIn, tokenOut, amountIn, opts)
	if err != nil {
		return nil, err
	}
	c.cache.Set(key, q)
	return q, nil
}

// InvalidatePair drops every cached quote for the given network and pair.
func (c *CachedClient) InvalidatePair(networkID uint64, tokenIn, tokenOut common.Address) {
	prefix := pairPrefix(networkID, tokenIn, tokenOut)
	c.cache.DeleteFunc(func(key string) bool {
		return strings.HasPrefix(key, prefix)
	})
}

// InvalidateNetwork drops every cached quote for the given network.
func (c *CachedClient) InvalidateNetwork(networkID uint64) {
	prefix := fmt.Sprintf("%d|", networkID)
	c.cache.DeleteFunc(func(key string) bool {
		return strings.HasPrefix(key, prefix)
	})
}

func pairPrefix(networkID uint64, tokenIn, tokenOut common.Address) string {
	return fmt.Sprintf("%d|%s|%s|", networkID, tokenIn.Hex(), tokenOut.Hex())
}

func quoteKey(networkID uint64, tokenIn, tokenOut common.Address, amountIn *big.Int, opts Options) string {
	return fmt.Sprintf("%s%s|%t|%t|%s",
		pairPrefix(networkID, tokenIn, tokenOut),
		amountIn.String(),
		opts.SaveGas,
		opts.IncludeGasEstimate,
		opts.SlippageTolerance.ToFixed(6),
	)
}
