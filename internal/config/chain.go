package config

import (
	"errors"

	"github.com/meridianswap/trade-engine/internal/common"
)

type ChainConfig struct {
	// ChainID is the network id all quotes and venues are scoped to.
	ChainID uint64

	// RPCUrl is the JSON-RPC endpoint used for gas estimation and head polling.
	RPCUrl string

	// NativeSymbol / NativeDecimals describe the network's native asset.
	NativeSymbol   string
	NativeDecimals uint8

	// HeadPollIntervalMs is how often the chain head is polled for advances.
	HeadPollIntervalMs int

	// VenueRegistryPath points at the JSON venue registry file.
	VenueRegistryPath string

	// SettlementContract is the router contract gas simulations run against.
	SettlementContract string
}

func (c *ChainConfig) Key() string {
	return CHAIN_CONFIG_KEY
}

func (c *ChainConfig) Load() error {
	c.ChainID = common.GetEnvOrDefaultUint64("CHAIN_ID", 1)
	c.RPCUrl = common.GetEnvOrDefault("RPC_URL", "http://localhost:8545")
	c.NativeSymbol = common.GetEnvOrDefault("NATIVE_SYMBOL", "ETH")
	c.NativeDecimals = uint8(common.GetEnvOrDefaultInt("NATIVE_DECIMALS", 18))
	c.HeadPollIntervalMs = common.GetEnvOrDefaultInt("HEAD_POLL_INTERVAL_MS", 3000)
	c.VenueRegistryPath = common.GetEnvOrDefault("VENUE_REGISTRY_PATH", "./data/venues.json")
	c.SettlementContract = common.GetEnvOrDefault("SETTLEMENT_CONTRACT", "")
	return c.Validate()
}

func (c *ChainConfig) Validate() error {
	if c.RPCUrl == "" {
		return errors.New("invalid chain config: missing RPC url")
	}
	if c.HeadPollIntervalMs <= 0 {
		return errors.New("invalid chain config: head poll interval must be positive")
	}
	return nil
}
