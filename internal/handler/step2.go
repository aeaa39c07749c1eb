package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tradesetup/internal/rules"
	"tradesetup/internal/service"
)

type Step2Handler struct {
	Service *service.Step2Service
	Logger  *zap.Logger
}

func (h *Step2Handler) Register(r *gin.Engine) {
	g := r.Group("/api/v1/step2")
	g.GET("/:date", h.get)
	g.POST("/:date/preview", h.preview)
	g.POST("/:date/freeze", h.freeze)
}

type step2Request struct {
	Candles          []rules.Candle `json:"candles"`
	BaselineRange    *float64       `json:"baseline_range"`
	TradePermission  string         `json:"trade_permission"`
	PermissionReason string         `json:"permission_reason"`
}

func (r step2Request) input() service.OpenBehaviorInput {
	return service.OpenBehaviorInput{Candles: r.Candles, BaselineRange: r.BaselineRange}
}

// @Summary Preview open behavior
// @Description Classifies the opening range. Omit candles to read the session from the market store.
// @Tags step2
// @Param date path string true "trade date (YYYY-MM-DD)"
// @Param body body step2Request false "candles and baseline"
// @Success 200 {object} apiResponse
// @Failure 400 {object} apiResponse
// @Failure 409 {object} apiResponse
// @Router /api/v1/step2/{date}/preview [post]
func (h *Step2Handler) preview(c *gin.Context) {
	if h.Service == nil {
		Error(c, http.StatusInternalServerError, "step2 service unavailable", nil)
		return
	}
	day, ok := tradeDateParam(c)
	if !ok {
		return
	}
	var req step2Request
	if !bindOptionalJSON(c, &req) {
		return
	}
	view, err := h.Service.Preview(c.Request.Context(), day, req.input())
	if err != nil {
		Fail(c, h.Logger, err)
		return
	}
	Ok(c, view, nil)
}

// @Summary Freeze open behavior
// @Description trade_permission may only tighten the derived permission.
// @Tags step2
// @Param date path string true "trade date (YYYY-MM-DD)"
// @Param body body step2Request false "candles, baseline and optional override"
// @Success 200 {object} apiResponse
// @Failure 400 {object} apiResponse
// @Failure 409 {object} apiResponse
// @Router /api/v1/step2/{date}/freeze [post]
func (h *Step2Handler) freeze(c *gin.Context) {
	if h.Service == nil {
		Error(c, http.StatusInternalServerError, "step2 service unavailable", nil)
		return
	}
	day, ok := tradeDateParam(c)
	if !ok {
		return
	}
	var req step2Request
	if !bindOptionalJSON(c, &req) {
		return
	}
	view, err := h.Service.Freeze(c.Request.Context(), service.FreezeOpenBehaviorRequest{
		TradeDate:          day,
		Input:              req.input(),
		PermissionOverride: strings.ToUpper(strings.TrimSpace(req.TradePermission)),
		PermissionReason:   req.PermissionReason,
	})
	if err != nil {
		Fail(c, h.Logger, err)
		return
	}
	Ok(c, view, nil)
}

// @Summary Get open behavior
// @Tags step2
// @Param date path string true "trade date (YYYY-MM-DD)"
// @Success 200 {object} apiResponse
// @Router /api/v1/step2/{date} [get]
func (h *Step2Handler) get(c *gin.Context) {
	if h.Service == nil {
		Error(c, http.StatusInternalServerError, "step2 service unavailable", nil)
		return
	}
	day, ok := tradeDateParam(c)
	if !ok {
		return
	}
	view, err := h.Service.Get(c.Request.Context(), day)
	if err != nil {
		Fail(c, h.Logger, err)
		return
	}
	Ok(c, view, nil)
}
