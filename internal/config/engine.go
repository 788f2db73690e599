package config

import (
	"errors"
	"strings"

	"github.com/meridianswap/trade-engine/internal/common"
)

type EngineConfig struct {
	// MaterialityBps is the minimum valuation advantage (in basis points)
	// a challenger needs before it displaces the currently selected trade.
	// Treated as product policy, not a proven-optimal constant.
	MaterialityBps int

	// DebounceMs is applied to swap-intent changes and to the aggregate
	// loading flag before a refresh fires.
	DebounceMs int

	// GasMinBuffer is the fixed minimum gas padding; the effective margin is
	// max(GasMinBuffer, 20% of the raw estimate).
	GasMinBuffer uint64

	// QuoteBackends is the comma-separated list of quoting backend base URLs.
	QuoteBackends []string

	// QuoteTimeoutMs bounds a single quote fetch.
	QuoteTimeoutMs int

	// QuoteCacheSize bounds the in-flight quote deduplication cache.
	QuoteCacheSize int

	// PriceAPIUrl is the USD price oracle endpoint.
	PriceAPIUrl string

	// SaveGas asks backends for gas-optimized routes by default.
	SaveGas bool
}

func (c *EngineConfig) Key() string {
	return ENGINE_CONFIG_KEY
}

func (c *EngineConfig) Load() error {
	c.MaterialityBps = common.GetEnvOrDefaultInt("ENGINE_MATERIALITY_BPS", 200)
	c.DebounceMs = common.GetEnvOrDefaultInt("ENGINE_DEBOUNCE_MS", 200)
	c.GasMinBuffer = common.GetEnvOrDefaultUint64("ENGINE_GAS_MIN_BUFFER", 50000)
	c.QuoteTimeoutMs = common.GetEnvOrDefaultInt("QUOTE_TIMEOUT_MS", 5000)
	c.QuoteCacheSize = common.GetEnvOrDefaultInt("QUOTE_CACHE_SIZE", 512)
	c.PriceAPIUrl = common.GetEnvOrDefault("PRICE_API_URL", "")
	c.SaveGas = common.GetEnvOrDefaultBool("ENGINE_SAVE_GAS", false)

	c.QuoteBackends = nil
	for _, u := range strings.Split(common.GetEnvOrDefault("QUOTE_BACKENDS", ""), ",") {
		if u = strings.TrimSpace(u); u != "" {
			c.QuoteBackends = append(c.QuoteBackends, u)
		}
	}
	return c.Validate()
}

func (c *EngineConfig) Validate() error {
	if c.MaterialityBps < 0 {
		return errors.New("invalid engine config: materiality must be non-negative")
	}
	if c.DebounceMs < 0 {
		return errors.New("invalid engine config: debounce must be non-negative")
	}
	return nil
}
