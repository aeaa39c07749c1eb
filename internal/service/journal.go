package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"tradesetup/internal/apperr"
	"tradesetup/internal/events"
	"tradesetup/internal/models"
	"tradesetup/internal/repository"
	"tradesetup/internal/rules"
)

const stepJournal = "journal"

type PlanView struct {
	ID                  uint64           `json:"id"`
	SourceTradeID       string           `json:"source_trade_id,omitempty"`
	PlanDate            string           `json:"plan_date"`
	TradeMode           string           `json:"trade_mode"`
	Symbol              string           `json:"symbol"`
	Strategy            string           `json:"strategy"`
	PositionType        string           `json:"position_type"`
	SetupDescription    string           `json:"setup_description"`
	EntryTrigger        string           `json:"entry_trigger,omitempty"`
	PlannedEntryPrice   decimal.Decimal  `json:"planned_entry_price"`
	PlannedStopPrice    decimal.Decimal  `json:"planned_stop_price"`
	PlannedTargetPrice  *decimal.Decimal `json:"planned_target_price,omitempty"`
	PlannedRiskAmount   decimal.Decimal  `json:"planned_risk_amount"`
	PlannedPositionSize int64            `json:"planned_position_size"`
	PlanStatus          string           `json:"plan_status"`
	NotTakenReason      string           `json:"not_taken_reason,omitempty"`
	Trade               *TradeLogView    `json:"trade,omitempty"`
	CreatedAt           time.Time        `json:"created_at"`
}

type TradeLogView struct {
	ID              uint64           `json:"id"`
	PlanID          uint64           `json:"plan_id"`
	TradeDate       string           `json:"trade_date"`
	Symbol          string           `json:"symbol"`
	Side            string           `json:"side"`
	PositionType    string           `json:"position_type"`
	Strategy        string           `json:"strategy,omitempty"`
	Source          string           `json:"source"`
	Quantity        int64            `json:"quantity"`
	EntryPrice      decimal.Decimal  `json:"entry_price"`
	EnteredAt       time.Time        `json:"entered_at"`
	ExitPrice       *decimal.Decimal `json:"exit_price,omitempty"`
	ExitReason      string           `json:"exit_reason,omitempty"`
	ExitedAt        *time.Time       `json:"exited_at,omitempty"`
	Fees            decimal.Decimal  `json:"fees"`
	PnLAmount       *decimal.Decimal `json:"pnl_amount,omitempty"`
	PnLPct          *decimal.Decimal `json:"pnl_pct,omitempty"`
	Result          string           `json:"result"`
	DurationSeconds *int64           `json:"duration_seconds,omitempty"`
	Review          *ReviewView      `json:"review,omitempty"`
}

type ReviewView struct {
	TradeLogID             uint64    `json:"trade_log_id"`
	Symbol                 string    `json:"symbol"`
	ExitReason             string    `json:"exit_reason"`
	FollowedEntryRules     bool      `json:"followed_entry_rules"`
	FollowedStopRules      bool      `json:"followed_stop_rules"`
	FollowedPositionSizing bool      `json:"followed_position_sizing"`
	EmotionalState         string    `json:"emotional_state"`
	MarketContext          string    `json:"market_context"`
	LearningInsight        string    `json:"learning_insight"`
	TradeGrade             string    `json:"trade_grade"`
	ReviewedAt             time.Time `json:"reviewed_at"`
}

// DaySummary is one calendar cell: every journal trade of the day and the
// net P&L of those already exited.
type DaySummary struct {
	TradeCount int             `json:"trade_count"`
	PnL        decimal.Decimal `json:"pnl"`
}

type CreatePlanRequest struct {
	PlanDate            time.Time
	TradeMode           string
	Symbol              string
	Strategy            string
	PositionType        string
	SetupDescription    string
	EntryTrigger        string
	PlannedEntryPrice   decimal.Decimal
	PlannedStopPrice    decimal.Decimal
	PlannedTargetPrice  *decimal.Decimal
	PlannedRiskAmount   *decimal.Decimal
	PlannedPositionSize int64
}

// ExecuteRequest records the fill. Nil fields take the planned values.
type ExecuteRequest struct {
	EntryPrice *decimal.Decimal
	Quantity   *int64
	ExecutedAt *time.Time
}

type ExitRequest struct {
	ExitPrice  decimal.Decimal
	ExitReason string
	ExitedAt   *time.Time
	Fees       *decimal.Decimal
}

type ReviewRequest struct {
	ExitReason             string
	FollowedEntryRules     bool
	FollowedStopRules      bool
	FollowedPositionSizing bool
	EmotionalState         string
	MarketContext          string
	LearningInsight        string
	TradeGrade             string
}

// JournalService keeps the trade journal: plans seeded from frozen STEP-4
// trades or entered by hand, their execution and exit, and one review per
// closed trade.
type JournalService struct {
	Deps
	// TradeMode labels seeded plans, PAPER unless set.
	TradeMode string
}

// Publish seeds a plan for every frozen STEP-4 trade. Other events are
// ignored.
func (s *JournalService) Publish(ctx context.Context, ev events.Event) error {
	if s == nil || s.Repo == nil || ev.Type != events.TypeTradeFrozen {
		return nil
	}
	day, err := models.ParseTradeDate(ev.TradeDate)
	if err != nil {
		return fmt.Errorf("journal: trade date %q: %w", ev.TradeDate, err)
	}
	_, err = s.CaptureEntry(ctx, day, ev.Symbol)
	return err
}

// CaptureEntry creates the PLANNED entry for the frozen trade on tradeDate
// and symbol. It returns the existing plan when one was already seeded and
// nil when the journal switch is off or no trade is frozen.
func (s *JournalService) CaptureEntry(ctx context.Context, tradeDate time.Time, symbol string) (view *PlanView, err error) {
	start := time.Now()
	defer func() { s.observe(stepJournal, "capture", start, err) }()

	if !s.Flags.IsEnabled(ctx, FeatureTradeJournal, true) {
		return nil, nil
	}
	day, err := requireDate(tradeDate)
	if err != nil {
		return nil, err
	}
	symbol, err = requireSymbol(symbol)
	if err != nil {
		return nil, err
	}
	trade, err := s.Repo.GetTrade(ctx, day, symbol)
	if err != nil || trade == nil {
		return nil, journalErr(err)
	}
	existing, err := s.Repo.GetTradePlanBySourceTradeID(ctx, trade.TradeID)
	if err != nil {
		return nil, journalErr(err)
	}
	if existing != nil {
		return planView(existing), nil
	}

	source := trade.TradeID
	target := trade.TargetPrice
	description := derefStr(trade.Rationale)
	if description == "" {
		description = fmt.Sprintf("%s %s frozen at STEP-4", trade.SetupType, trade.Direction)
	}
	item := &models.TradePlan{
		SourceTradeID:       &source,
		PlanDate:            day,
		TradeMode:           s.tradeMode(),
		Symbol:              trade.Symbol,
		Strategy:            trade.SetupType,
		PositionType:        trade.Direction,
		SetupDescription:    description,
		PlannedEntryPrice:   trade.EntryPrice,
		PlannedStopPrice:    trade.StopLoss,
		PlannedTargetPrice:  &target,
		PlannedRiskAmount:   trade.RiskPerShare.Mul(decimal.NewFromInt(trade.Quantity)).Round(2),
		PlannedPositionSize: trade.Quantity,
		PlanStatus:          rules.PlanPlanned,
	}
	if err := s.Repo.InsertTradePlan(ctx, item); err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			existing, err := s.Repo.GetTradePlanBySourceTradeID(ctx, source)
			if err != nil || existing == nil {
				return nil, journalErr(err)
			}
			return planView(existing), nil
		}
		return nil, journalErr(err)
	}
	view = planView(item)
	s.log(stepJournal, day).Info("journal plan seeded",
		zap.Uint64("plan_id", item.ID),
		zap.String("symbol", item.Symbol),
		zap.String("trade_id", source),
	)
	s.publish(ctx, events.New(events.TypeJournalPlanCreated, dateKey(day), item.Symbol, view))
	return view, nil
}

func (s *JournalService) CreatePlan(ctx context.Context, req CreatePlanRequest) (view *PlanView, err error) {
	start := time.Now()
	defer func() { s.observe(stepJournal, "create_plan", start, err) }()

	day, err := requireDate(req.PlanDate)
	if err != nil {
		return nil, apperr.Validation("INVALID_PLAN_DATE", "plan_date is required")
	}
	symbol, err := requireSymbol(req.Symbol)
	if err != nil {
		return nil, err
	}
	mode := strings.ToUpper(strings.TrimSpace(req.TradeMode))
	if mode == "" {
		mode = s.tradeMode()
	}
	if !rules.IsTradeMode(mode) {
		return nil, apperr.Validation("INVALID_TRADE_MODE", "trade_mode must be PAPER or REAL")
	}
	position := strings.ToUpper(strings.TrimSpace(req.PositionType))
	if !rules.IsDirection(position) {
		return nil, apperr.Validation("INVALID_POSITION_TYPE", "position_type must be LONG or SHORT")
	}
	strategy := strings.TrimSpace(req.Strategy)
	if strategy == "" {
		return nil, apperr.Validation("STRATEGY_REQUIRED", "strategy is required")
	}
	description := strings.TrimSpace(req.SetupDescription)
	if description == "" {
		return nil, apperr.Validation("SETUP_REQUIRED", "setup_description is required")
	}
	if req.PlannedPositionSize <= 0 {
		return nil, apperr.Validation("INVALID_POSITION_SIZE", "planned_position_size must be positive")
	}
	entry, stop := req.PlannedEntryPrice, req.PlannedStopPrice
	if !entry.IsPositive() || !stop.IsPositive() {
		return nil, apperr.Validation("INVALID_PRICE", "planned entry and stop prices must be positive")
	}
	if (position == rules.DirectionLong && !stop.LessThan(entry)) || (position == rules.DirectionShort && !stop.GreaterThan(entry)) {
		return nil, apperr.Validation("INVALID_STOP", "planned stop must sit on the losing side of the entry for a %s plan", position)
	}
	risk := entry.Sub(stop).Abs().Mul(decimal.NewFromInt(req.PlannedPositionSize)).Round(2)
	if req.PlannedRiskAmount != nil {
		if req.PlannedRiskAmount.IsNegative() {
			return nil, apperr.Validation("INVALID_RISK", "planned_risk_amount must not be negative")
		}
		risk = req.PlannedRiskAmount.Round(2)
	}

	item := &models.TradePlan{
		PlanDate:            day,
		TradeMode:           mode,
		Symbol:              symbol,
		Strategy:            strategy,
		PositionType:        position,
		SetupDescription:    description,
		EntryTrigger:        strPtr(req.EntryTrigger),
		PlannedEntryPrice:   entry,
		PlannedStopPrice:    stop,
		PlannedTargetPrice:  req.PlannedTargetPrice,
		PlannedRiskAmount:   risk,
		PlannedPositionSize: req.PlannedPositionSize,
		PlanStatus:          rules.PlanPlanned,
	}
	if err := s.Repo.InsertTradePlan(ctx, item); err != nil {
		return nil, journalErr(err)
	}
	view = planView(item)
	s.publish(ctx, events.New(events.TypeJournalPlanCreated, dateKey(day), symbol, view))
	return view, nil
}

// GetPlan returns the plan with its execution and review, if any.
func (s *JournalService) GetPlan(ctx context.Context, id uint64) (*PlanView, error) {
	plan, err := s.Repo.GetTradePlan(ctx, id)
	if err != nil {
		return nil, journalErr(err)
	}
	if plan == nil {
		return nil, journalErr(repository.ErrPlanMissing)
	}
	view := planView(plan)
	if plan.TradeLogID != nil {
		trade, err := s.GetTrade(ctx, *plan.TradeLogID)
		if err != nil {
			return nil, err
		}
		view.Trade = trade
	}
	return view, nil
}

func (s *JournalService) ListPlans(ctx context.Context, params repository.ListTradePlansParams) ([]PlanView, int64, error) {
	items, err := s.Repo.ListTradePlans(ctx, params)
	if err != nil {
		return nil, 0, journalErr(err)
	}
	total, err := s.Repo.CountTradePlans(ctx, params)
	if err != nil {
		return nil, 0, journalErr(err)
	}
	out := make([]PlanView, 0, len(items))
	for i := range items {
		out = append(out, *planView(&items[i]))
	}
	return out, total, nil
}

func (s *JournalService) MarkNotTaken(ctx context.Context, id uint64, reason string) (view *PlanView, err error) {
	start := time.Now()
	defer func() { s.observe(stepJournal, "not_taken", start, err) }()

	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperr.Validation("REASON_REQUIRED", "not_taken_reason is required")
	}
	plan, err := s.Repo.MarkTradePlanNotTaken(ctx, id, reason)
	if err != nil {
		return nil, journalErr(err)
	}
	view = planView(plan)
	s.publish(ctx, events.New(events.TypeJournalPlanNotTaken, view.PlanDate, plan.Symbol, view))
	return view, nil
}

// Execute moves a PLANNED plan to EXECUTED and opens its trade log.
func (s *JournalService) Execute(ctx context.Context, id uint64, req ExecuteRequest) (view *PlanView, err error) {
	start := time.Now()
	defer func() { s.observe(stepJournal, "execute", start, err) }()

	if req.EntryPrice != nil && !req.EntryPrice.IsPositive() {
		return nil, apperr.Validation("INVALID_PRICE", "entry_price must be positive")
	}
	if req.Quantity != nil && *req.Quantity <= 0 {
		return nil, apperr.Validation("INVALID_QUANTITY", "quantity must be positive")
	}
	executedAt := s.now()
	if req.ExecutedAt != nil && !req.ExecutedAt.IsZero() {
		executedAt = req.ExecutedAt.UTC()
	}

	plan, trade, err := s.Repo.ExecuteTradePlan(ctx, id, func(p *models.TradePlan) (*models.TradeLog, error) {
		entry, qty := p.PlannedEntryPrice, p.PlannedPositionSize
		if req.EntryPrice != nil {
			entry = *req.EntryPrice
		}
		if req.Quantity != nil {
			qty = *req.Quantity
		}
		return &models.TradeLog{
			TradeDate:    p.PlanDate,
			Symbol:       p.Symbol,
			Side:         rules.SideFor(p.PositionType),
			PositionType: p.PositionType,
			Strategy:     p.Strategy,
			Source:       "manual",
			Quantity:     qty,
			EntryPrice:   entry,
			EnteredAt:    executedAt,
			Fees:         decimal.Zero,
			Result:       rules.ResultOpen,
		}, nil
	})
	if err != nil {
		return nil, journalErr(err)
	}
	view = planView(plan)
	view.Trade = tradeLogView(trade)
	s.log(stepJournal, plan.PlanDate).Info("journal plan executed",
		zap.Uint64("plan_id", plan.ID),
		zap.Uint64("trade_log_id", trade.ID),
		zap.String("symbol", trade.Symbol),
	)
	s.publish(ctx, events.New(events.TypeJournalExecuted, view.PlanDate, trade.Symbol, view))
	return view, nil
}

// Exit closes an open journal trade and computes its P&L.
func (s *JournalService) Exit(ctx context.Context, tradeLogID uint64, req ExitRequest) (view *TradeLogView, err error) {
	start := time.Now()
	defer func() { s.observe(stepJournal, "exit", start, err) }()

	if !req.ExitPrice.IsPositive() {
		return nil, apperr.Validation("INVALID_PRICE", "exit_price must be positive")
	}
	reason := strings.TrimSpace(req.ExitReason)
	if reason == "" {
		return nil, apperr.Validation("EXIT_REASON_REQUIRED", "exit_reason is required")
	}
	fees := decimal.Zero
	if req.Fees != nil {
		if req.Fees.IsNegative() {
			return nil, apperr.Validation("INVALID_FEES", "fees must not be negative")
		}
		fees = *req.Fees
	}
	exitedAt := s.now()
	if req.ExitedAt != nil && !req.ExitedAt.IsZero() {
		exitedAt = req.ExitedAt.UTC()
	}

	trade, err := s.Repo.ExitTradeLog(ctx, tradeLogID, func(t *models.TradeLog) error {
		if exitedAt.Before(t.EnteredAt) {
			return apperr.Validation("INVALID_EXIT_TIME", "exit_timestamp precedes the entry at %s", t.EnteredAt.Format(time.RFC3339))
		}
		out := rules.ClosedOutcome(t.PositionType, t.EntryPrice, req.ExitPrice, t.Quantity, fees)
		duration := int64(exitedAt.Sub(t.EnteredAt) / time.Second)
		price := req.ExitPrice
		t.ExitPrice = &price
		t.ExitReason = &reason
		t.ExitedAt = &exitedAt
		t.Fees = fees
		t.PnLAmount = &out.PnLAmount
		t.PnLPct = &out.PnLPct
		t.Result = out.Result
		t.DurationSeconds = &duration
		return nil
	})
	if err != nil {
		return nil, journalErr(err)
	}
	view = tradeLogView(trade)
	s.log(stepJournal, trade.TradeDate).Info("journal trade exited",
		zap.Uint64("trade_log_id", trade.ID),
		zap.String("symbol", trade.Symbol),
		zap.String("result", trade.Result),
		zap.String("pnl", trade.PnLAmount.String()),
	)
	s.publish(ctx, events.New(events.TypeJournalExited, view.TradeDate, trade.Symbol, view))
	return view, nil
}

// Review stores the single post-exit review of a journal trade.
func (s *JournalService) Review(ctx context.Context, tradeLogID uint64, req ReviewRequest) (view *ReviewView, err error) {
	start := time.Now()
	defer func() { s.observe(stepJournal, "review", start, err) }()

	item := &models.TradeReview{
		TradeLogID:             tradeLogID,
		ExitReason:             strings.ToUpper(strings.TrimSpace(req.ExitReason)),
		FollowedEntryRules:     req.FollowedEntryRules,
		FollowedStopRules:      req.FollowedStopRules,
		FollowedPositionSizing: req.FollowedPositionSizing,
		EmotionalState:         strings.ToUpper(strings.TrimSpace(req.EmotionalState)),
		MarketContext:          strings.ToUpper(strings.TrimSpace(req.MarketContext)),
		LearningInsight:        strings.TrimSpace(req.LearningInsight),
		TradeGrade:             strings.ToUpper(strings.TrimSpace(req.TradeGrade)),
		ReviewedAt:             s.now(),
	}
	switch {
	case !rules.IsReviewExitReason(item.ExitReason):
		return nil, apperr.Validation("INVALID_EXIT_REASON", "exit_reason %q is not a review exit reason", req.ExitReason)
	case !rules.IsEmotionalState(item.EmotionalState):
		return nil, apperr.Validation("INVALID_EMOTIONAL_STATE", "emotional_state %q is not recognised", req.EmotionalState)
	case !rules.IsReviewContext(item.MarketContext):
		return nil, apperr.Validation("INVALID_REVIEW_CONTEXT", "market_context %q is not recognised", req.MarketContext)
	case !rules.IsTradeGrade(item.TradeGrade):
		return nil, apperr.Validation("INVALID_GRADE", "trade_grade must be A, B or C")
	case item.LearningInsight == "":
		return nil, apperr.Validation("INSIGHT_REQUIRED", "learning_insight is required")
	}
	trade, err := s.Repo.InsertTradeReview(ctx, item)
	if err != nil {
		return nil, journalErr(err)
	}
	view = reviewView(item)
	s.publish(ctx, events.New(events.TypeJournalReviewed, dateKey(trade.TradeDate), item.Symbol, view))
	return view, nil
}

// GetTrade returns one journal trade with its review.
func (s *JournalService) GetTrade(ctx context.Context, tradeLogID uint64) (*TradeLogView, error) {
	trade, err := s.Repo.GetTradeLog(ctx, tradeLogID)
	if err != nil {
		return nil, journalErr(err)
	}
	if trade == nil {
		return nil, journalErr(repository.ErrTradeLogMissing)
	}
	view := tradeLogView(trade)
	review, err := s.Repo.GetTradeReview(ctx, trade.ID)
	if err != nil {
		return nil, journalErr(err)
	}
	if review != nil {
		view.Review = reviewView(review)
	}
	return view, nil
}

// CalendarSummary groups the month's journal trades by trade date.
func (s *JournalService) CalendarSummary(ctx context.Context, year, month int) (map[string]DaySummary, error) {
	if year < 1970 || year > 9999 || month < 1 || month > 12 {
		return nil, apperr.Validation("INVALID_MONTH", "year and month must name a calendar month")
	}
	from := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, -1)
	trades, err := s.Repo.ListTradeLogs(ctx, repository.ListTradeLogsParams{From: &from, To: &to})
	if err != nil {
		return nil, journalErr(err)
	}
	out := map[string]DaySummary{}
	for _, t := range trades {
		key := dateKey(t.TradeDate)
		day := out[key]
		day.TradeCount++
		if t.PnLAmount != nil {
			day.PnL = day.PnL.Add(*t.PnLAmount)
		}
		out[key] = day
	}
	return out, nil
}

func (s *JournalService) tradeMode() string {
	if mode := strings.ToUpper(strings.TrimSpace(s.TradeMode)); rules.IsTradeMode(mode) {
		return mode
	}
	return rules.ModePaper
}

func journalErr(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := apperr.As(err); ok {
		return err
	}
	switch {
	case errors.Is(err, repository.ErrPlanMissing):
		return apperr.NotFound("PLAN_NOT_FOUND", "trade plan not found")
	case errors.Is(err, repository.ErrPlanNotPlanned):
		return apperr.Conflict("PLAN_NOT_PLANNED", "only PLANNED trade plans can be executed or marked not taken")
	case errors.Is(err, repository.ErrTradeLogMissing):
		return apperr.NotFound("TRADE_NOT_FOUND", "journal trade not found")
	case errors.Is(err, repository.ErrTradeExited):
		return apperr.Conflict("TRADE_ALREADY_EXITED", "journal trade is already exited")
	case errors.Is(err, repository.ErrTradeNotExited):
		return apperr.Validation("TRADE_NOT_EXITED", "journal trade must be exited before review")
	case errors.Is(err, repository.ErrReviewExists):
		return apperr.Conflict("REVIEW_EXISTS", "journal trade is already reviewed")
	case errors.Is(err, repository.ErrAlreadyExists):
		return apperr.Conflict("PLAN_EXISTS", "a plan already exists for this trade")
	}
	return storeErr("JOURNAL", time.Time{}, err)
}

func planView(p *models.TradePlan) *PlanView {
	return &PlanView{
		ID:                  p.ID,
		SourceTradeID:       derefStr(p.SourceTradeID),
		PlanDate:            dateKey(p.PlanDate),
		TradeMode:           p.TradeMode,
		Symbol:              p.Symbol,
		Strategy:            p.Strategy,
		PositionType:        p.PositionType,
		SetupDescription:    p.SetupDescription,
		EntryTrigger:        derefStr(p.EntryTrigger),
		PlannedEntryPrice:   p.PlannedEntryPrice,
		PlannedStopPrice:    p.PlannedStopPrice,
		PlannedTargetPrice:  p.PlannedTargetPrice,
		PlannedRiskAmount:   p.PlannedRiskAmount,
		PlannedPositionSize: p.PlannedPositionSize,
		PlanStatus:          p.PlanStatus,
		NotTakenReason:      derefStr(p.NotTakenReason),
		CreatedAt:           p.CreatedAt,
	}
}

func tradeLogView(t *models.TradeLog) *TradeLogView {
	return &TradeLogView{
		ID:              t.ID,
		PlanID:          t.PlanID,
		TradeDate:       dateKey(t.TradeDate),
		Symbol:          t.Symbol,
		Side:            t.Side,
		PositionType:    t.PositionType,
		Strategy:        t.Strategy,
		Source:          t.Source,
		Quantity:        t.Quantity,
		EntryPrice:      t.EntryPrice,
		EnteredAt:       t.EnteredAt,
		ExitPrice:       t.ExitPrice,
		ExitReason:      derefStr(t.ExitReason),
		ExitedAt:        t.ExitedAt,
		Fees:            t.Fees,
		PnLAmount:       t.PnLAmount,
		PnLPct:          t.PnLPct,
		Result:          t.Result,
		DurationSeconds: t.DurationSeconds,
	}
}

func reviewView(r *models.TradeReview) *ReviewView {
	return &ReviewView{
		TradeLogID:             r.TradeLogID,
		Symbol:                 r.Symbol,
		ExitReason:             r.ExitReason,
		FollowedEntryRules:     r.FollowedEntryRules,
		FollowedStopRules:      r.FollowedStopRules,
		FollowedPositionSizing: r.FollowedPositionSizing,
		EmotionalState:         r.EmotionalState,
		MarketContext:          r.MarketContext,
		LearningInsight:        r.LearningInsight,
		TradeGrade:             r.TradeGrade,
		ReviewedAt:             r.ReviewedAt,
	}
}
