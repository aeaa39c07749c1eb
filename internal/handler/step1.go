package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tradesetup/internal/rules"
	"tradesetup/internal/service"
)

type Step1Handler struct {
	Service *service.Step1Service
	Logger  *zap.Logger
}

func (h *Step1Handler) Register(r *gin.Engine) {
	g := r.Group("/api/v1/step1")
	g.GET("/:date", h.get)
	g.POST("/:date/preview", h.preview)
	g.POST("/:date/freeze", h.freeze)
}

type step1PreviewRequest struct {
	Inputs *rules.MarketContextInputs `json:"inputs"`
}

// @Summary Preview market context
// @Description Classifies the day without persisting. Omit inputs to read them from the market store.
// @Tags step1
// @Param date path string true "trade date (YYYY-MM-DD)"
// @Param body body step1PreviewRequest false "manual inputs"
// @Success 200 {object} apiResponse
// @Failure 400 {object} apiResponse
// @Router /api/v1/step1/{date}/preview [post]
func (h *Step1Handler) preview(c *gin.Context) {
	if h.Service == nil {
		Error(c, http.StatusInternalServerError, "step1 service unavailable", nil)
		return
	}
	day, ok := tradeDateParam(c)
	if !ok {
		return
	}
	var req step1PreviewRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	view, err := h.Service.Preview(c.Request.Context(), day, req.Inputs)
	if err != nil {
		Fail(c, h.Logger, err)
		return
	}
	Ok(c, view, nil)
}

type step1FreezeRequest struct {
	FinalMarketContext string                     `json:"final_market_context"`
	FinalReason        string                     `json:"final_reason"`
	Inputs             *rules.MarketContextInputs `json:"inputs"`
}

// @Summary Freeze market context
// @Tags step1
// @Param date path string true "trade date (YYYY-MM-DD)"
// @Param body body step1FreezeRequest true "final decision"
// @Success 200 {object} apiResponse
// @Failure 400 {object} apiResponse
// @Failure 409 {object} apiResponse
// @Router /api/v1/step1/{date}/freeze [post]
func (h *Step1Handler) freeze(c *gin.Context) {
	if h.Service == nil {
		Error(c, http.StatusInternalServerError, "step1 service unavailable", nil)
		return
	}
	day, ok := tradeDateParam(c)
	if !ok {
		return
	}
	var req step1FreezeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", map[string]any{"error_code": "INVALID_BODY"})
		return
	}
	view, err := h.Service.Freeze(c.Request.Context(), service.FreezeMarketContextRequest{
		TradeDate:          day,
		FinalMarketContext: strings.TrimSpace(req.FinalMarketContext),
		FinalReason:        req.FinalReason,
		Inputs:             req.Inputs,
	})
	if err != nil {
		Fail(c, h.Logger, err)
		return
	}
	Ok(c, view, nil)
}

// @Summary Get market context
// @Description Reports frozen false when the day has not been frozen yet.
// @Tags step1
// @Param date path string true "trade date (YYYY-MM-DD)"
// @Success 200 {object} apiResponse
// @Router /api/v1/step1/{date} [get]
func (h *Step1Handler) get(c *gin.Context) {
	if h.Service == nil {
		Error(c, http.StatusInternalServerError, "step1 service unavailable", nil)
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
