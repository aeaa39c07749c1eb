package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"tradesetup/internal/models"
	"tradesetup/internal/repository"
	"tradesetup/internal/service"
)

type JournalHandler struct {
	Service *service.JournalService
	Logger  *zap.Logger
}

func (h *JournalHandler) Register(r *gin.Engine) {
	g := r.Group("/api/v1/journal")
	g.GET("/plans", h.listPlans)
	g.POST("/plans", h.createPlan)
	g.GET("/plans/:id", h.getPlan)
	g.POST("/plans/:id/not-taken", h.notTaken)
	g.POST("/plans/:id/execute", h.execute)
	g.GET("/trades/:id", h.getTrade)
	g.POST("/trades/:id/exit", h.exit)
	g.POST("/trades/:id/review", h.review)
	g.GET("/calendar", h.calendar)
}

// @Summary List journal plans
// @Tags journal
// @Param limit query int false "limit"
// @Param offset query int false "offset"
// @Param from query string false "first plan date (YYYY-MM-DD)"
// @Param to query string false "last plan date (YYYY-MM-DD)"
// @Param status query string false "PLANNED, EXECUTED or NOT_TAKEN"
// @Param symbol query string false "symbol"
// @Success 200 {object} apiResponse
// @Router /api/v1/journal/plans [get]
func (h *JournalHandler) listPlans(c *gin.Context) {
	if h.Service == nil {
		Error(c, http.StatusInternalServerError, "journal service unavailable", nil)
		return
	}
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)
	params := repository.ListTradePlansParams{
		Limit:  limit,
		Offset: offset,
		From:   dateQueryPtr(c, "from"),
		To:     dateQueryPtr(c, "to"),
		Asc:    boolPtr(false),
	}
	if v := strings.ToUpper(strings.TrimSpace(c.Query("status"))); v != "" {
		params.Status = &v
	}
	if v := strings.ToUpper(strings.TrimSpace(c.Query("symbol"))); v != "" {
		params.Symbol = &v
	}
	items, total, err := h.Service.ListPlans(c.Request.Context(), params)
	if err != nil {
		Fail(c, h.Logger, err)
		return
	}
	Ok(c, items, paginationMeta(limit, offset, total))
}

type journalPlanRequest struct {
	PlanDate            string           `json:"plan_date"`
	TradeMode           string           `json:"trade_mode"`
	Symbol              string           `json:"symbol"`
	Strategy            string           `json:"strategy"`
	PositionType        string           `json:"position_type"`
	SetupDescription    string           `json:"setup_description"`
	EntryTrigger        string           `json:"entry_trigger"`
	PlannedEntryPrice   decimal.Decimal  `json:"planned_entry_price" swaggertype:"string"`
	PlannedStopPrice    decimal.Decimal  `json:"planned_stop_price" swaggertype:"string"`
	PlannedTargetPrice  *decimal.Decimal `json:"planned_target_price" swaggertype:"string"`
	PlannedRiskAmount   *decimal.Decimal `json:"planned_risk_amount" swaggertype:"string"`
	PlannedPositionSize int64            `json:"planned_position_size"`
}

// @Summary Create a journal plan
// @Description Records a plan by hand. Frozen STEP-4 trades seed their own plans.
// @Tags journal
// @Param body body journalPlanRequest true "plan"
// @Success 200 {object} apiResponse
// @Failure 400 {object} apiResponse
// @Router /api/v1/journal/plans [post]
func (h *JournalHandler) createPlan(c *gin.Context) {
	if h.Service == nil {
		Error(c, http.StatusInternalServerError, "journal service unavailable", nil)
		return
	}
	var req journalPlanRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	var day time.Time
	if raw := strings.TrimSpace(req.PlanDate); raw != "" {
		parsed, err := models.ParseTradeDate(raw)
		if err != nil {
			Error(c, http.StatusBadRequest, "plan_date must be YYYY-MM-DD", map[string]any{"error_code": "INVALID_PLAN_DATE"})
			return
		}
		day = parsed
	}
	view, err := h.Service.CreatePlan(c.Request.Context(), service.CreatePlanRequest{
		PlanDate:            day,
		TradeMode:           req.TradeMode,
		Symbol:              req.Symbol,
		Strategy:            req.Strategy,
		PositionType:        req.PositionType,
		SetupDescription:    req.SetupDescription,
		EntryTrigger:        req.EntryTrigger,
		PlannedEntryPrice:   req.PlannedEntryPrice,
		PlannedStopPrice:    req.PlannedStopPrice,
		PlannedTargetPrice:  req.PlannedTargetPrice,
		PlannedRiskAmount:   req.PlannedRiskAmount,
		PlannedPositionSize: req.PlannedPositionSize,
	})
	if err != nil {
		Fail(c, h.Logger, err)
		return
	}
	Ok(c, view, nil)
}

// @Summary Get a journal plan
// @Tags journal
// @Param id path int true "plan id"
// @Success 200 {object} apiResponse
// @Failure 404 {object} apiResponse
// @Router /api/v1/journal/plans/{id} [get]
func (h *JournalHandler) getPlan(c *gin.Context) {
	if h.Service == nil {
		Error(c, http.StatusInternalServerError, "journal service unavailable", nil)
		return
	}
	id, ok := idParam(c)
	if !ok {
		return
	}
	view, err := h.Service.GetPlan(c.Request.Context(), id)
	if err != nil {
		Fail(c, h.Logger, err)
		return
	}
	Ok(c, view, nil)
}

type journalNotTakenRequest struct {
	NotTakenReason string `json:"not_taken_reason"`
}

// @Summary Mark a plan not taken
// @Tags journal
// @Param id path int true "plan id"
// @Param body body journalNotTakenRequest true "reason"
// @Success 200 {object} apiResponse
// @Failure 409 {object} apiResponse
// @Router /api/v1/journal/plans/{id}/not-taken [post]
func (h *JournalHandler) notTaken(c *gin.Context) {
	if h.Service == nil {
		Error(c, http.StatusInternalServerError, "journal service unavailable", nil)
		return
	}
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req journalNotTakenRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	view, err := h.Service.MarkNotTaken(c.Request.Context(), id, req.NotTakenReason)
	if err != nil {
		Fail(c, h.Logger, err)
		return
	}
	Ok(c, view, nil)
}

type journalExecuteRequest struct {
	EntryPrice *decimal.Decimal `json:"entry_price" swaggertype:"string"`
	Quantity   *int64           `json:"quantity"`
	ExecutedAt *time.Time       `json:"executed_at"`
}

// @Summary Execute a plan
// @Description Opens the trade log. Omitted fields take the planned values.
// @Tags journal
// @Param id path int true "plan id"
// @Param body body journalExecuteRequest false "fill"
// @Success 200 {object} apiResponse
// @Failure 409 {object} apiResponse
// @Router /api/v1/journal/plans/{id}/execute [post]
func (h *JournalHandler) execute(c *gin.Context) {
	if h.Service == nil {
		Error(c, http.StatusInternalServerError, "journal service unavailable", nil)
		return
	}
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req journalExecuteRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	view, err := h.Service.Execute(c.Request.Context(), id, service.ExecuteRequest{
		EntryPrice: req.EntryPrice,
		Quantity:   req.Quantity,
		ExecutedAt: req.ExecutedAt,
	})
	if err != nil {
		Fail(c, h.Logger, err)
		return
	}
	Ok(c, view, nil)
}

// @Summary Get a journal trade
// @Tags journal
// @Param id path int true "trade log id"
// @Success 200 {object} apiResponse
// @Failure 404 {object} apiResponse
// @Router /api/v1/journal/trades/{id} [get]
func (h *JournalHandler) getTrade(c *gin.Context) {
	if h.Service == nil {
		Error(c, http.StatusInternalServerError, "journal service unavailable", nil)
		return
	}
	id, ok := idParam(c)
	if !ok {
		return
	}
	view, err := h.Service.GetTrade(c.Request.Context(), id)
	if err != nil {
		Fail(c, h.Logger, err)
		return
	}
	Ok(c, view, nil)
}

type journalExitRequest struct {
	ExitPrice     decimal.Decimal  `json:"exit_price" swaggertype:"string"`
	ExitReason    string           `json:"exit_reason"`
	ExitTimestamp *time.Time       `json:"exit_timestamp"`
	Fees          *decimal.Decimal `json:"fees" swaggertype:"string"`
}

// @Summary Exit a journal trade
// @Tags journal
// @Param id path int true "trade log id"
// @Param body body journalExitRequest true "exit"
// @Success 200 {object} apiResponse
// @Failure 400 {object} apiResponse
// @Failure 409 {object} apiResponse
// @Router /api/v1/journal/trades/{id}/exit [post]
func (h *JournalHandler) exit(c *gin.Context) {
	if h.Service == nil {
		Error(c, http.StatusInternalServerError, "journal service unavailable", nil)
		return
	}
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req journalExitRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	view, err := h.Service.Exit(c.Request.Context(), id, service.ExitRequest{
		ExitPrice:  req.ExitPrice,
		ExitReason: req.ExitReason,
		ExitedAt:   req.ExitTimestamp,
		Fees:       req.Fees,
	})
	if err != nil {
		Fail(c, h.Logger, err)
		return
	}
	Ok(c, view, nil)
}

type journalReviewRequest struct {
	ExitReason             string `json:"exit_reason"`
	FollowedEntryRules     bool   `json:"followed_entry_rules"`
	FollowedStopRules      bool   `json:"followed_stop_rules"`
	FollowedPositionSizing bool   `json:"followed_position_sizing"`
	EmotionalState         string `json:"emotional_state"`
	MarketContext          string `json:"market_context"`
	LearningInsight        string `json:"learning_insight"`
	TradeGrade             string `json:"trade_grade"`
}

// @Summary Review a closed journal trade
// @Tags journal
// @Param id path int true "trade log id"
// @Param body body journalReviewRequest true "review"
// @Success 200 {object} apiResponse
// @Failure 400 {object} apiResponse
// @Failure 409 {object} apiResponse
// @Router /api/v1/journal/trades/{id}/review [post]
func (h *JournalHandler) review(c *gin.Context) {
	if h.Service == nil {
		Error(c, http.StatusInternalServerError, "journal service unavailable", nil)
		return
	}
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req journalReviewRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	view, err := h.Service.Review(c.Request.Context(), id, service.ReviewRequest(req))
	if err != nil {
		Fail(c, h.Logger, err)
		return
	}
	Ok(c, view, nil)
}

// @Summary Journal calendar
// @Description Trade count and net P&L per trade date for one month. Defaults to the current month.
// @Tags journal
// @Param year query int false "year"
// @Param month query int false "month (1-12)"
// @Success 200 {object} apiResponse
// @Failure 400 {object} apiResponse
// @Router /api/v1/journal/calendar [get]
func (h *JournalHandler) calendar(c *gin.Context) {
	if h.Service == nil {
		Error(c, http.StatusInternalServerError, "journal service unavailable", nil)
		return
	}
	now := time.Now().UTC()
	year := intQuery(c, "year", now.Year())
	month := intQuery(c, "month", int(now.Month()))
	days, err := h.Service.CalendarSummary(c.Request.Context(), year, month)
	if err != nil {
		Fail(c, h.Logger, err)
		return
	}
	Ok(c, gin.H{"year": year, "month": month, "days": days}, nil)
}

// idParam parses the :id path segment, writing a 400 on failure.
func idParam(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if err != nil || id == 0 {
		Error(c, http.StatusBadRequest, "invalid id", map[string]any{"error_code": "INVALID_ID"})
		return 0, false
	}
	return id, true
}
