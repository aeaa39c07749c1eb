package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tradesetup/internal/rules"
	"tradesetup/internal/service"
)

type Step3Handler struct {
	Service *service.Step3Service
	Logger  *zap.Logger
}

func (h *Step3Handler) Register(r *gin.Engine) {
	g := r.Group("/api/v1/step3")
	g.GET("/:date", h.get)
	g.POST("/:date/execution", h.execution)
	g.GET("/:date/universe", h.universe)
	g.POST("/:date/compute", h.compute)
	g.POST("/:date/freeze", h.freeze)
}

type step3CandidatesRequest struct {
	Stocks    []rules.StockContext `json:"stocks"`
	IndexMove *rules.IndexMove     `json:"index_move"`
}

// @Summary Derive execution control
// @Description Maps the frozen STEP-1 and STEP-2 outcomes to execution permission. Idempotent.
// @Tags step3
// @Param date path string true "trade date (YYYY-MM-DD)"
// @Success 200 {object} apiResponse
// @Failure 409 {object} apiResponse
// @Router /api/v1/step3/{date}/execution [post]
func (h *Step3Handler) execution(c *gin.Context) {
	if h.Service == nil {
		Error(c, http.StatusInternalServerError, "step3 service unavailable", nil)
		return
	}
	day, ok := tradeDateParam(c)
	if !ok {
		return
	}
	view, err := h.Service.DeriveExecution(c.Request.Context(), day)
	if err != nil {
		Fail(c, h.Logger, err)
		return
	}
	Ok(c, view, nil)
}

// @Summary List tradable universe
// @Description Reads the liquid universe and tradability checks from the market store.
// @Tags step3
// @Param date path string true "trade date (YYYY-MM-DD)"
// @Success 200 {object} apiResponse
// @Failure 400 {object} apiResponse
// @Router /api/v1/step3/{date}/universe [get]
func (h *Step3Handler) universe(c *gin.Context) {
	if h.Service == nil {
		Error(c, http.StatusInternalServerError, "step3 service unavailable", nil)
		return
	}
	day, ok := tradeDateParam(c)
	if !ok {
		return
	}
	items, err := h.Service.Universe(c.Request.Context(), day)
	if err != nil {
		Fail(c, h.Logger, err)
		return
	}
	Ok(c, items, map[string]any{"total": len(items)})
}

// @Summary Compute candidates
// @Description Evaluates the submitted stocks without persisting.
// @Tags step3
// @Param date path string true "trade date (YYYY-MM-DD)"
// @Param body body step3CandidatesRequest true "stocks and index move"
// @Success 200 {object} apiResponse
// @Failure 400 {object} apiResponse
// @Failure 409 {object} apiResponse
// @Router /api/v1/step3/{date}/compute [post]
func (h *Step3Handler) compute(c *gin.Context) {
	req, ok := h.candidateRequest(c)
	if !ok {
		return
	}
	res, err := h.Service.Compute(c.Request.Context(), req)
	if err != nil {
		Fail(c, h.Logger, err)
		return
	}
	Ok(c, res, nil)
}

// @Summary Freeze candidates
// @Tags step3
// @Param date path string true "trade date (YYYY-MM-DD)"
// @Param body body step3CandidatesRequest true "stocks and index move"
// @Success 200 {object} apiResponse
// @Failure 400 {object} apiResponse
// @Failure 409 {object} apiResponse
// @Router /api/v1/step3/{date}/freeze [post]
func (h *Step3Handler) freeze(c *gin.Context) {
	req, ok := h.candidateRequest(c)
	if !ok {
		return
	}
	view, err := h.Service.Freeze(c.Request.Context(), req)
	if err != nil {
		Fail(c, h.Logger, err)
		return
	}
	Ok(c, view, nil)
}

// @Summary Get execution control and frozen candidates
// @Tags step3
// @Param date path string true "trade date (YYYY-MM-DD)"
// @Success 200 {object} apiResponse
// @Router /api/v1/step3/{date} [get]
func (h *Step3Handler) get(c *gin.Context) {
	if h.Service == nil {
		Error(c, http.StatusInternalServerError, "step3 service unavailable", nil)
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

func (h *Step3Handler) candidateRequest(c *gin.Context) (service.CandidateRequest, bool) {
	if h.Service == nil {
		Error(c, http.StatusInternalServerError, "step3 service unavailable", nil)
		return service.CandidateRequest{}, false
	}
	day, ok := tradeDateParam(c)
	if !ok {
		return service.CandidateRequest{}, false
	}
	var body step3CandidatesRequest
	if !bindOptionalJSON(c, &body) {
		return service.CandidateRequest{}, false
	}
	return service.CandidateRequest{TradeDate: day, Stocks: body.Stocks, IndexMove: body.IndexMove}, true
}
