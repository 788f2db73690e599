package main

import (
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	container "github.com/thehyperflames/dicontainer-go"

	"github.com/meridianswap/trade-engine/internal/common"
	"github.com/meridianswap/trade-engine/internal/config"
	"github.com/meridianswap/trade-engine/internal/engine"
	"github.com/meridianswap/trade-engine/internal/http"
	"github.com/meridianswap/trade-engine/internal/services/gas"
)

// @title Meridian Trade Engine API
// @version 1.0
// @description Multi-source swap aggregation API: fetches quotes from several liquidity sources, merges their routes and selects the best executable trade.
// @description
// @description ## Features
// @description - **Multi-Source Aggregation**: constant-product pools, concentrated liquidity and off-chain aggregators
// @description - **Route Merging**: parallel pool splits with exact percentage accounting
// @description - **Gas-Aware Selection**: candidates ranked by USD value net of simulated gas cost
// @description - **Slippage Protection**: configurable tolerance with exact integer thresholds
// @description
// @description ## Usage Tips
// @description - Use smallest token units: 1 WETH (18 decimals) = 1000000000000000000
// @description - Default slippage is 50 bps (0.5%)
// @description - Rate limit: 10 requests/second (burst: 20)
// @BasePath /
// @schemes https http
// @tag.name quote
// @tag.description Get the best swap quote with merged routing information
// @tag.name swap
// @tag.description Encode the selected trade into settlement call data
// @tag.name venues
// @tag.description Discover registered liquidity venues and their descriptor codes

func main() {
	common.InitRuntime()

	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("no .env file loaded, using process environment")
	}

	conf := container.NewConf(
		&config.GeneralConfig{},
		&config.ChainConfig{},
		&config.EngineConfig{},
	)

	dic, err := container.New(
		conf,

		&gas.HeadCacheService{},
		&engine.Service{},

		&http.HTTPService{},
	)
	if err != nil {
		log.Error().Err(err).Msg("failed to create di container")
		return
	}

	if err := dic.Run(); err != nil {
		log.Error().Err(err).Msg("failed to run di container")
		return
	}

	log.Info().Msg("Shutting down services...")
	if err := dic.Stop(); err != nil {
		log.Error().Err(err).Msg("error during shutdown")
	}
	log.Info().Msg("Shutdown complete")
}
