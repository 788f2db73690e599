package http

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gin-gonic/gin"

	"github.com/meridianswap/trade-engine/internal/engine"
	"github.com/meridianswap/trade-engine/internal/http/httputil"
)

type SwapHandler struct {
	engineSvc *engine.Service
	chainID   uint64
}

func NewSwapHandler(engineSvc *engine.Service, chainID uint64) *SwapHandler {
	return &SwapHandler{engineSvc: engineSvc, chainID: chainID}
}

func (h *SwapHandler) Root() string {
	return "/swap"
}

func (h *SwapHandler) SetRoutes(pub *gin.RouterGroup, private *gin.RouterGroup, admin *gin.RouterGroup) {
	pub.POST("/encode", h.encodeSwap)
}

// SwapRequest asks for the winning trade encoded into settlement call data
type SwapRequest struct {
	TokenIn  string `json:"tokenIn" binding:"required" example:"0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"`
	TokenOut string `json:"tokenOut" binding:"required" example:"0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"`
	Amount   string `json:"amount" binding:"required" example:"1000000000000000000"`
	SwapMode string `json:"swapMode" binding:"required" enums:"ExactIn,ExactOut" example:"ExactIn"`

	// Recipient of the swap output; required for encoding
	Recipient string `json:"recipient" binding:"required" example:"0x28C6c06298d514Db089934071355E5743bf21d60"`

	SlippageBps      uint16 `json:"slippageBps" example:"50"`
	TokenInDecimals  uint8  `json:"tokenInDecimals" example:"18"`
	TokenOutDecimals uint8  `json:"tokenOutDecimals" example:"6"`
	SaveGas          bool   `json:"saveGas" example:"false"`
}

// EncodedHop is one hop of the settlement transaction
type EncodedHop struct {
	Pool     string `json:"pool"`
	TokenIn  string `json:"tokenIn"`
	TokenOut string `json:"tokenOut"`
	AmountIn string `json:"amountIn"`

	// 16-bit venue descriptor: family type in the high byte, venue id low
	Descriptor uint16 `json:"descriptor" example:"513"`

	Venue string `json:"venue" example:"uniswap-v3"`

	// Family-specific parameter words, hex encoded
	Data string `json:"data"`
}

// SwapResponse pairs the selected trade with its encoded hop calls
type SwapResponse struct {
	Quote QuoteResponse `json:"quote"`
	Hops  []EncodedHop  `json:"hops"`
}

// @Summary Encode swap transaction
// @Description Quote the pair, select the best trade and lower it into per-hop settlement call data.
// @Description Each hop carries a 16-bit venue descriptor and a family-specific parameter layout.
// @Tags swap
// @Accept json
// @Produce json
// @Param request body SwapRequest true "Swap parameters"
// @Success 200 {object} SwapResponse "Selected trade and encoded hops"
// @Failure 400 {object} httputil.Response "Invalid request parameters"
// @Failure 404 {object} httputil.Response "No route found between the token pair"
// @Failure 422 {object} httputil.Response "Trade found but not encodable"
// @Router /api/v1/swap/encode [post]
func (h *SwapHandler) encodeSwap(c *gin.Context) {
	var req SwapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequest(c, "invalid request body: "+err.Error())
		return
	}

	intent, ok := intentFromParams(c, h.chainID, req.TokenIn, req.TokenOut, req.Amount, req.SwapMode,
		req.SlippageBps, req.TokenInDecimals, req.TokenOutDecimals, req.SaveGas, req.Recipient)
	if !ok {
		return
	}

	trade, err := h.engineSvc.QuoteOnce(c.Request.Context(), intent)
	if err != nil {
		handleEngineError(c, err)
		return
	}

	calls, err := h.engineSvc.Encoder().EncodeTrade(h.chainID, trade)
	if err != nil {
		httputil.HandleUnprocessable(c, fmt.Sprintf("trade not encodable: %v", err))
		return
	}

	quoteReq := QuoteRequest{TokenIn: req.TokenIn, TokenOut: req.TokenOut}
	quote, err := buildQuoteResponse(&quoteReq, intent, trade)
	if err != nil {
		httputil.HandleUnprocessable(c, err.Error())
		return
	}

	hops := make([]EncodedHop, 0, len(calls))
	for _, call := range calls {
		hops = append(hops, EncodedHop{
			Pool:       call.Pool.Hex(),
			TokenIn:    call.TokenIn.Hex(),
			TokenOut:   call.TokenOut.Hex(),
			AmountIn:   call.AmountIn.String(),
			Descriptor: call.Descriptor,
			Venue:      call.Venue,
			Data:       hexutil.Encode(call.Data),
		})
	}

	httputil.HandleSuccess(c, SwapResponse{Quote: quote, Hops: hops})
}
