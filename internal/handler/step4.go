package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"tradesetup/internal/service"
)

type Step4Handler struct {
	Service *service.Step4Service
	Logger  *zap.Logger
}

func (h *Step4Handler) Register(r *gin.Engine) {
	g := r.Group("/api/v1/step4")
	g.GET("/:date", h.get)
	g.GET("/:date/:symbol", h.get)
	g.POST("/:date/:symbol/preview", h.preview)
	g.POST("/:date/:symbol/freeze", h.freeze)
}

type step4PreviewRequest struct {
	Capital     *decimal.Decimal `json:"capital" swaggertype:"string"`
	RiskPercent *decimal.Decimal `json:"risk_percent" swaggertype:"string"`
	EntryBuffer *decimal.Decimal `json:"entry_buffer" swaggertype:"string"`
	RMultiple   *decimal.Decimal `json:"r_multiple" swaggertype:"string"`
}

// @Summary Preview trade construction
// @Description Sizes a frozen candidate and stores the construction. Repeatable until the trade is frozen.
// @Tags step4
// @Param date path string true "trade date (YYYY-MM-DD)"
// @Param symbol path string true "candidate symbol"
// @Param body body step4PreviewRequest false "sizing overrides"
// @Success 200 {object} apiResponse
// @Failure 400 {object} apiResponse
// @Failure 409 {object} apiResponse
// @Router /api/v1/step4/{date}/{symbol}/preview [post]
func (h *Step4Handler) preview(c *gin.Context) {
	if h.Service == nil {
		Error(c, http.StatusInternalServerError, "step4 service unavailable", nil)
		return
	}
	day, ok := tradeDateParam(c)
	if !ok {
		return
	}
	var req step4PreviewRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	view, err := h.Service.Preview(c.Request.Context(), service.TradePreviewRequest{
		TradeDate:   day,
		Symbol:      symbolParam(c),
		Capital:     req.Capital,
		RiskPercent: req.RiskPercent,
		EntryBuffer: req.EntryBuffer,
		RMultiple:   req.RMultiple,
	})
	if err != nil {
		Fail(c, h.Logger, err)
		return
	}
	Ok(c, view, nil)
}

type step4FreezeRequest struct {
	Rationale  string           `json:"rationale"`
	EntryPrice *decimal.Decimal `json:"entry_price" swaggertype:"string"`
	StopLoss   *decimal.Decimal `json:"stop_loss" swaggertype:"string"`
	Quantity   *int64           `json:"quantity"`
}

// @Summary Freeze trade
// @Description Freezes the stored construction. Echoed levels must match the last preview.
// @Tags step4
// @Param date path string true "trade date (YYYY-MM-DD)"
// @Param symbol path string true "candidate symbol"
// @Param body body step4FreezeRequest false "rationale and echoed levels"
// @Success 200 {object} apiResponse
// @Failure 400 {object} apiResponse
// @Failure 409 {object} apiResponse
// @Router /api/v1/step4/{date}/{symbol}/freeze [post]
func (h *Step4Handler) freeze(c *gin.Context) {
	if h.Service == nil {
		Error(c, http.StatusInternalServerError, "step4 service unavailable", nil)
		return
	}
	day, ok := tradeDateParam(c)
	if !ok {
		return
	}
	var req step4FreezeRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	view, err := h.Service.Freeze(c.Request.Context(), service.TradeFreezeRequest{
		TradeDate:  day,
		Symbol:     symbolParam(c),
		Rationale:  req.Rationale,
		EntryPrice: req.EntryPrice,
		StopLoss:   req.StopLoss,
		Quantity:   req.Quantity,
	})
	if err != nil {
		Fail(c, h.Logger, err)
		return
	}
	Ok(c, view, nil)
}

// @Summary Get constructions and trades
// @Tags step4
// @Param date path string true "trade date (YYYY-MM-DD)"
// @Param symbol path string false "candidate symbol"
// @Success 200 {object} apiResponse
// @Router /api/v1/step4/{date} [get]
// @Router /api/v1/step4/{date}/{symbol} [get]
func (h *Step4Handler) get(c *gin.Context) {
	if h.Service == nil {
		Error(c, http.StatusInternalServerError, "step4 service unavailable", nil)
		return
	}
	day, ok := tradeDateParam(c)
	if !ok {
		return
	}
	view, err := h.Service.Get(c.Request.Context(), day, symbolParam(c))
	if err != nil {
		Fail(c, h.Logger, err)
		return
	}
	Ok(c, view, nil)
}

func symbolParam(c *gin.Context) string {
	return strings.ToUpper(strings.TrimSpace(c.Param("symbol")))
}
