package http

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"

	"github.com/meridianswap/trade-engine/internal/domain"
	"github.com/meridianswap/trade-engine/internal/engine"
	"github.com/meridianswap/trade-engine/internal/http/httputil"
)

type QuoteHandler struct {
	engineSvc *engine.Service
	chainID   uint64
}

func NewQuoteHandler(engineSvc *engine.Service, chainID uint64) *QuoteHandler {
	return &QuoteHandler{engineSvc: engineSvc, chainID: chainID}
}

func (h *QuoteHandler) Root() string {
	return "/quote"
}

func (h *QuoteHandler) SetRoutes(pub *gin.RouterGroup, private *gin.RouterGroup, admin *gin.RouterGroup) {
	pub.GET("", h.getQuote)
}

// QuoteRequest represents the parameters for requesting a swap quote
type QuoteRequest struct {
	// Input token contract address (0x-prefixed hex)
	TokenIn string `form:"tokenIn" binding:"required" example:"0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"`

	// Output token contract address (0x-prefixed hex)
	TokenOut string `form:"tokenOut" binding:"required" example:"0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"`

	// Amount of the exact side in smallest token units
	// For WETH with 18 decimals: "1000000000000000000" = 1 WETH
	Amount string `form:"amount" binding:"required" example:"1000000000000000000"`

	// Swap mode determines how the amount is interpreted
	// - "ExactIn": Amount is the exact input, output is estimated
	// - "ExactOut": Amount is the exact output desired, input is estimated
	SwapMode string `form:"swapMode" binding:"required" enums:"ExactIn,ExactOut" example:"ExactIn"`

	// Slippage tolerance in basis points (1 bps = 0.01%). Default: 50 (0.5%)
	SlippageBps uint16 `form:"slippageBps" example:"50"`

	// Token decimal precision; defaults to 18 when omitted
	TokenInDecimals  uint8 `form:"tokenInDecimals" example:"18"`
	TokenOutDecimals uint8 `form:"tokenOutDecimals" example:"6"`

	// Prefer gas-cheaper routes over absolute best output
	SaveGas bool `form:"saveGas" example:"false"`

	// Recipient address for gas simulation; optional for quoting
	Recipient string `form:"recipient" example:"0x0000000000000000000000000000000000000000"`
}

// HopInfo describes one pool swap inside a route position
type HopInfo struct {
	Pool string `json:"pool" example:"0x88e6A0c2dDD26FEEb64F039a2c41296FcB3f5640"`

	// Venue name as reported by the quoting source
	Venue string `json:"venue" example:"uniswap-v3"`

	// Percentage of this position's flow through the pool (100 when alone)
	Percent int `json:"percent" example:"70"`

	TokenIn  string `json:"tokenIn"`
	TokenOut string `json:"tokenOut"`
	Amount   string `json:"amount" example:"700000000000000000"`
}

// RouteResponse is one merged route with its parallel contributors per position
type RouteResponse struct {
	ID string `json:"id"`

	// Share of the whole trade's input flowing through this route
	Percent int `json:"percent" example:"100"`

	// Token path from input to output, hop by hop
	Path []string `json:"path"`

	// Positions in hop order; each holds the parallel pool contributors
	Positions [][]HopInfo `json:"positions"`
}

// QuoteResponse contains the selected trade with routing information
type QuoteResponse struct {
	TokenIn  string `json:"tokenIn"`
	TokenOut string `json:"tokenOut"`

	AmountIn  string `json:"amountIn" example:"1000000000000000000"`
	AmountOut string `json:"amountOut" example:"2000000000"`

	// Liquidity-source family that won the selection
	Source string `json:"source" example:"ConcentratedLiquidity"`

	AmountInUsd  string `json:"amountInUsd" example:"2001.50"`
	AmountOutUsd string `json:"amountOutUsd" example:"2000.00"`
	ReceivedUsd  string `json:"receivedUsd" example:"1994.80"`

	// Null while the gas cost is unknown; never reported as zero
	GasUsd *string `json:"gasUsd" example:"5.20"`

	// Minimum output (ExactIn) or maximum input (ExactOut) under the tolerance
	OtherAmountThreshold string `json:"otherAmountThreshold" example:"1990049751"`

	// Price impact from the USD in/out spread
	PriceImpactPercent  string `json:"priceImpactPercent" example:"0.07"`
	PriceImpactSeverity string `json:"priceImpactSeverity" enums:"unknown,low,medium,high,critical" example:"low"`

	// Output-per-input execution rate, display only
	ExecutionPrice string `json:"executionPrice" example:"2000.5"`

	Routes []RouteResponse `json:"routes"`
}

type parsedQuoteRequest struct {
	req    *QuoteRequest
	intent domain.SwapIntent
}

func (h *QuoteHandler) parseQuoteRequest(c *gin.Context) (*parsedQuoteRequest, bool) {
	var req QuoteRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httputil.HandleBadRequest(c, "invalid query parameters: "+err.Error())
		return nil, false
	}
	intent, ok := intentFromParams(c, h.chainID, req.TokenIn, req.TokenOut, req.Amount, req.SwapMode,
		req.SlippageBps, req.TokenInDecimals, req.TokenOutDecimals, req.SaveGas, req.Recipient)
	if !ok {
		return nil, false
	}
	return &parsedQuoteRequest{req: &req, intent: intent}, true
}

// intentFromParams validates raw request fields into a SwapIntent; shared by
// the quote and swap handlers.
func intentFromParams(c *gin.Context, chainID uint64, tokenIn, tokenOut, amountStr, swapMode string, slippageBps uint16, inDecimals, outDecimals uint8, saveGas bool, recipient string) (domain.SwapIntent, bool) {
	if !common.IsHexAddress(tokenIn) {
		httputil.HandleBadRequest(c, "invalid tokenIn address")
		return domain.SwapIntent{}, false
	}
	if !common.IsHexAddress(tokenOut) {
		httputil.HandleBadRequest(c, "invalid tokenOut address")
		return domain.SwapIntent{}, false
	}

	amount, ok := new(big.Int).SetString(amountStr, 10)
	if !ok || amount.Sign() <= 0 {
		httputil.HandleBadRequest(c, "invalid amount: must be a positive integer")
		return domain.SwapIntent{}, false
	}

	var tradeType domain.TradeType
	switch swapMode {
	case "ExactIn":
		tradeType = domain.ExactInput
	case "ExactOut":
		tradeType = domain.ExactOutput
	default:
		httputil.HandleBadRequest(c, "invalid swapMode: must be ExactIn or ExactOut")
		return domain.SwapIntent{}, false
	}

	if slippageBps == 0 {
		slippageBps = 50
	}
	if inDecimals == 0 {
		inDecimals = 18
	}
	if outDecimals == 0 {
		outDecimals = 18
	}

	intent := domain.SwapIntent{
		ChainID:   chainID,
		TokenIn:   domain.NewToken(chainID, common.HexToAddress(tokenIn), inDecimals, ""),
		TokenOut:  domain.NewToken(chainID, common.HexToAddress(tokenOut), outDecimals, ""),
		Amount:    amount,
		Type:      tradeType,
		Tolerance: domain.NewPercentFromBps(int64(slippageBps)),
		SaveGas:   saveGas,
	}
	if recipient != "" {
		if !common.IsHexAddress(recipient) {
			httputil.HandleBadRequest(c, "invalid recipient address")
			return domain.SwapIntent{}, false
		}
		intent.Recipient = common.HexToAddress(recipient)
	}

	if err := intent.Validate(); err != nil {
		httputil.HandleBadRequest(c, err.Error())
		return domain.SwapIntent{}, false
	}
	return intent, true
}

func buildQuoteResponse(req *QuoteRequest, intent domain.SwapIntent, trade *domain.Trade) (QuoteResponse, error) {
	var threshold domain.CurrencyAmount
	var err error
	if intent.Type == domain.ExactInput {
		threshold, err = trade.MinimumAmountOut(intent.Tolerance)
	} else {
		threshold, err = trade.MaximumAmountIn(intent.Tolerance)
	}
	if err != nil {
		return QuoteResponse{}, err
	}

	impact := engine.ComputePriceImpact(trade)

	resp := QuoteResponse{
		TokenIn:              req.TokenIn,
		TokenOut:             req.TokenOut,
		AmountIn:             trade.InputAmount.Raw().String(),
		AmountOut:            trade.OutputAmount.Raw().String(),
		Source:               trade.Source.String(),
		AmountInUsd:          trade.AmountInUSD.StringFixed(2),
		AmountOutUsd:         trade.AmountOutUSD.StringFixed(2),
		ReceivedUsd:          trade.ReceivedUSD.StringFixed(2),
		OtherAmountThreshold: threshold.Raw().String(),
		PriceImpactSeverity:  impact.Severity,
		ExecutionPrice:       trade.ExecutionPrice().ToSignificant(6),
		Routes:               buildRouteResponses(trade.Routes),
	}
	if impact.Known {
		resp.PriceImpactPercent = impact.Percent.StringFixed(2)
	}
	if trade.GasCostUSD != nil {
		gasUsd := trade.GasCostUSD.StringFixed(2)
		resp.GasUsd = &gasUsd
	}
	return resp, nil
}

func buildRouteResponses(routes []domain.Route) []RouteResponse {
	out := make([]RouteResponse, 0, len(routes))
	for _, route := range routes {
		path := make([]string, 0, len(route.Path))
		for _, token := range route.Path {
			path = append(path, token.Hex())
		}

		positions := make([][]HopInfo, 0, len(route.SubRoutes))
		for _, sub := range route.SubRoutes {
			hops := make([]HopInfo, 0, len(sub.Legs))
			for _, leg := range sub.Legs {
				hops = append(hops, HopInfo{
					Pool:     leg.PoolID,
					Venue:    leg.Venue,
					Percent:  leg.Percent,
					TokenIn:  leg.TokenIn.Hex(),
					TokenOut: leg.TokenOut.Hex(),
					Amount:   leg.Amount.String(),
				})
			}
			positions = append(positions, hops)
		}

		out = append(out, RouteResponse{
			ID:        route.ID,
			Percent:   route.Percent,
			Path:      path,
			Positions: positions,
		})
	}
	return out
}

// @Summary Get swap quote
// @Description Fetch quotes from every configured liquidity source, merge the returned hop batches into routes and select the best trade.
// @Description
// @Description The response includes:
// @Description - Exact input/output amounts for the winning trade
// @Description - USD valuations and the gas cost when known (null while loading)
// @Description - The slippage-adjusted threshold for transaction building
// @Description - The merged route tree with per-pool split percentages
// @Description
// @Description **Amount Format:** smallest token units, e.g. 1 WETH (18 decimals) = 1000000000000000000
// @Description
// @Description **Swap Modes:**
// @Description - ExactIn: amount is the exact input, output is estimated
// @Description - ExactOut: amount is the exact output desired, input is estimated
// @Tags quote
// @Produce json
// @Param tokenIn query string true "Input token contract address" example("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
// @Param tokenOut query string true "Output token contract address" example("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
// @Param amount query string true "Amount of the exact side in smallest token units" example("1000000000000000000")
// @Param swapMode query string true "Swap mode: ExactIn or ExactOut" Enums(ExactIn, ExactOut) example("ExactIn")
// @Param slippageBps query int false "Slippage tolerance in basis points. Default: 50 (0.5%)" default(50) example(50)
// @Param saveGas query bool false "Prefer gas-cheaper routes" default(false)
// @Success 200 {object} QuoteResponse "Selected trade with routing information"
// @Failure 400 {object} httputil.Response "Invalid request parameters"
// @Failure 404 {object} httputil.Response "No route found between the token pair"
// @Router /api/v1/quote [get]
func (h *QuoteHandler) getQuote(c *gin.Context) {
	parsed, ok := h.parseQuoteRequest(c)
	if !ok {
		return
	}

	trade, err := h.engineSvc.QuoteOnce(c.Request.Context(), parsed.intent)
	if err != nil {
		handleEngineError(c, err)
		return
	}

	resp, err := buildQuoteResponse(parsed.req, parsed.intent, trade)
	if err != nil {
		httputil.HandleUnprocessable(c, err.Error())
		return
	}
	httputil.HandleSuccess(c, resp)
}
