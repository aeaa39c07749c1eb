package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tradesetup/internal/repository"
	"tradesetup/internal/service"
)

type TradeDayHandler struct {
	Step1  *service.Step1Service
	Days   *service.TradeDayService
	Logger *zap.Logger
}

func (h *TradeDayHandler) Register(r *gin.Engine) {
	g := r.Group("/api/v1/trade-days")
	g.GET("", h.list)
	g.GET("/:date", h.status)
}

// @Summary List frozen trade days
// @Tags trade-days
// @Param limit query int false "limit"
// @Param offset query int false "offset"
// @Param from query string false "first trade date (YYYY-MM-DD)"
// @Param to query string false "last trade date (YYYY-MM-DD)"
// @Success 200 {object} apiResponse
// @Router /api/v1/trade-days [get]
func (h *TradeDayHandler) list(c *gin.Context) {
	if h.Step1 == nil {
		Error(c, http.StatusInternalServerError, "step1 service unavailable", nil)
		return
	}
	limit := intQuery(c, "limit", 30)
	offset := intQuery(c, "offset", 0)
	params := repository.ListTradeDaysParams{
		Limit:  limit,
		Offset: offset,
		From:   dateQueryPtr(c, "from"),
		To:     dateQueryPtr(c, "to"),
		Asc:    boolPtr(false),
	}
	items, total, err := h.Step1.List(c.Request.Context(), params)
	if err != nil {
		Fail(c, h.Logger, err)
		return
	}
	Ok(c, items, paginationMeta(limit, offset, total))
}

// @Summary Pipeline status for one trade date
// @Description Reports which steps are frozen and which step comes next.
// @Tags trade-days
// @Param date path string true "trade date (YYYY-MM-DD)"
// @Success 200 {object} apiResponse
// @Router /api/v1/trade-days/{date} [get]
func (h *TradeDayHandler) status(c *gin.Context) {
	if h.Days == nil {
		Error(c, http.StatusInternalServerError, "trade day service unavailable", nil)
		return
	}
	day, ok := tradeDateParam(c)
	if !ok {
		return
	}
	st, err := h.Days.Status(c.Request.Context(), day)
	if err != nil {
		Fail(c, h.Logger, err)
		return
	}
	Ok(c, st, nil)
}
