package http

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/meridianswap/trade-engine/internal/common"
	"github.com/meridianswap/trade-engine/internal/domain"
	"github.com/meridianswap/trade-engine/internal/engine"
	"github.com/meridianswap/trade-engine/internal/http/httputil"
)

// handleEngineError maps pipeline errors onto the HTTP error taxonomy.
func handleEngineError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, engine.ErrNoRoute):
		httputil.HandleHttpError(c, common.HTTPErrorNotFound("no route found for pair"))
	case errors.Is(err, domain.ErrInvalidTolerance):
		httputil.HandleHttpError(c, common.HTTPErrorUnprocessable(err.Error()))
	default:
		httputil.HandleHttpError(c, common.HTTPErrorInternalError(err.Error()))
	}
}
