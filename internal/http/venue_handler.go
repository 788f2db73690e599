package http

import (
	"sort"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/meridianswap/trade-engine/internal/engine"
	"github.com/meridianswap/trade-engine/internal/http/httputil"
	"github.com/meridianswap/trade-engine/internal/services/encoder"
)

type VenueHandler struct {
	engineSvc *engine.Service
	chainID   uint64
}

func NewVenueHandler(engineSvc *engine.Service, chainID uint64) *VenueHandler {
	return &VenueHandler{engineSvc: engineSvc, chainID: chainID}
}

func (h *VenueHandler) Root() string {
	return "/venues"
}

func (h *VenueHandler) SetRoutes(pub *gin.RouterGroup, private *gin.RouterGroup, admin *gin.RouterGroup) {
	pub.GET("", h.listVenues)
}

// VenueResponse is one registered liquidity venue
type VenueResponse struct {
	Name        string `json:"name" example:"uniswap-v3"`
	DisplayName string `json:"displayName" example:"Uniswap V3"`
	Family      string `json:"family" example:"concentrated-liquidity"`
	IconURL     string `json:"iconUrl,omitempty"`

	// Packed 16-bit descriptor used in settlement call data
	Descriptor uint16 `json:"descriptor" example:"513"`
}

// @Summary List venues
// @Description List the liquidity venues registered for a network, with the descriptor codes used in settlement call data.
// @Tags venues
// @Produce json
// @Param chainId query int false "Network id; defaults to the configured chain"
// @Success 200 {object} []VenueResponse
// @Router /api/v1/venues [get]
func (h *VenueHandler) listVenues(c *gin.Context) {
	chainID := h.chainID
	if raw := c.Query("chainId"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			httputil.HandleBadRequest(c, "invalid chainId")
			return
		}
		chainID = parsed
	}

	venues := h.engineSvc.Registry().Venues(chainID)
	out := make([]VenueResponse, 0, len(venues))
	for name, info := range venues {
		out = append(out, VenueResponse{
			Name:        name,
			DisplayName: info.DisplayName,
			Family:      info.Kind.String(),
			IconURL:     info.IconURL,
			Descriptor:  encoder.PackVenueDescriptor(info.FamilyType, info.VenueID),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })

	httputil.HandleSuccess(c, out)
}
