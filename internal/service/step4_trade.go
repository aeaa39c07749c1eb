package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"tradesetup/internal/apperr"
	"tradesetup/internal/events"
	"tradesetup/internal/models"
	"tradesetup/internal/rules"
)

// TradePreviewRequest sizes one frozen candidate. Nil fields fall back to
// the pipeline defaults.
type TradePreviewRequest struct {
	TradeDate   time.Time
	Symbol      string
	Capital     *decimal.Decimal
	RiskPercent *decimal.Decimal
	EntryBuffer *decimal.Decimal
	RMultiple   *decimal.Decimal
}

// TradeFreezeRequest freezes the stored construction. The optional echoes
// must equal what the trader last previewed.
type TradeFreezeRequest struct {
	TradeDate  time.Time
	Symbol     string
	Rationale  string
	EntryPrice *decimal.Decimal
	StopLoss   *decimal.Decimal
	Quantity   *int64
}

type ConstructionView struct {
	TradeDate    string          `json:"trade_date"`
	Symbol       string          `json:"symbol"`
	Direction    string          `json:"direction"`
	StrategyUsed string          `json:"strategy_used"`
	Capital      decimal.Decimal `json:"capital"`
	RiskPercent  decimal.Decimal `json:"risk_percent"`
	EntryBuffer  decimal.Decimal `json:"entry_buffer"`
	RMultiple    decimal.Decimal `json:"r_multiple"`
	rules.Sizing

	ConstructedAt time.Time `json:"constructed_at"`
	CanFreeze     bool      `json:"can_freeze"`
}

type TradeView struct {
	TradeID      string          `json:"trade_id"`
	TradeDate    string          `json:"trade_date"`
	Symbol       string          `json:"symbol"`
	Direction    string          `json:"direction"`
	SetupType    string          `json:"setup_type"`
	EntryPrice   decimal.Decimal `json:"entry_price"`
	StopLoss     decimal.Decimal `json:"stop_loss"`
	RiskPerShare decimal.Decimal `json:"risk_per_share"`
	TargetPrice  decimal.Decimal `json:"target_price"`
	Quantity     int64           `json:"quantity"`
	Capital      decimal.Decimal `json:"capital"`
	RiskPercent  decimal.Decimal `json:"risk_percent"`
	Rationale    string          `json:"rationale,omitempty"`
	FrozenAt     time.Time       `json:"frozen_at"`
}

// Step4View is the read model for one day or one symbol.
type Step4View struct {
	TradeDate     string             `json:"trade_date"`
	Constructions []ConstructionView `json:"constructions"`
	Trades        []TradeView        `json:"trades"`
}

type Step4Service struct {
	Deps
}

// Preview sizes the candidate from its frozen snapshot and overwrites the
// stored construction. A BLOCKED result is returned and stored, not raised.
func (s *Step4Service) Preview(ctx context.Context, req TradePreviewRequest) (view *ConstructionView, err error) {
	start := time.Now()
	defer func() { s.observe(stepTrade, "preview", start, err) }()

	day, err := requireDate(req.TradeDate)
	if err != nil {
		return nil, err
	}
	symbol, err := requireSymbol(req.Symbol)
	if err != nil {
		return nil, err
	}
	sel, err := s.requireCandidate(ctx, day, symbol)
	if err != nil {
		return nil, err
	}

	in := rules.SizingInputs{
		Strategy:  sel.StrategyUsed,
		Direction: sel.Direction,
		Levels: rules.SnapshotLevels{
			GapHigh:       sel.GapHigh,
			GapLow:        sel.GapLow,
			IntradayHigh:  sel.IntradayHigh,
			IntradayLow:   sel.IntradayLow,
			LastHigherLow: sel.LastHigherLow,
			LastLowerHigh: sel.LastLowerHigh,
		},
		Capital:     decOr(req.Capital, s.Pipeline.DefaultCapital),
		RiskPercent: decOr(req.RiskPercent, s.Pipeline.DefaultRiskPercent),
		EntryBuffer: decOr(req.EntryBuffer, s.Pipeline.DefaultEntryBuffer),
		RMultiple:   decOr(req.RMultiple, s.Pipeline.DefaultRMultiple),
	}
	sizing, err := rules.SizeTrade(in)
	if err != nil {
		return nil, err
	}

	item := &models.TradeConstruction{
		TradeDate:     day,
		Symbol:        symbol,
		Direction:     sel.Direction,
		StrategyUsed:  sel.StrategyUsed,
		Capital:       in.Capital,
		RiskPercent:   in.RiskPercent,
		EntryBuffer:   in.EntryBuffer,
		RMultiple:     in.RMultiple,
		EntryPrice:    sizing.EntryPrice,
		StopLoss:      sizing.StopLoss,
		RiskPerShare:  sizing.RiskPerShare,
		RiskAmount:    sizing.RiskAmount,
		Quantity:      sizing.Quantity,
		TargetPrice:   sizing.TargetPrice,
		TradeStatus:   sizing.TradeStatus,
		BlockReason:   strPtr(sizing.BlockReason),
		ConstructedAt: s.now(),
	}
	log := s.log(stepTrade, day).With(zap.String("symbol", symbol))
	if err := s.Repo.SaveTradeConstruction(ctx, item); err != nil {
		err = storeErr("STEP4", day, err)
		if apperr.KindOf(err) == apperr.KindInfrastructure {
			log.Error("step4 construction save failed", zap.Error(err))
		}
		return nil, err
	}

	view = constructionView(item)
	log.Info("step4 constructed",
		zap.String("trade_status", sizing.TradeStatus),
		zap.String("block_reason", sizing.BlockReason),
		zap.String("entry_price", sizing.EntryPrice.String()),
		zap.String("stop_loss", sizing.StopLoss.String()),
		zap.Int64("quantity", sizing.Quantity),
	)
	s.publish(ctx, events.New(events.TypeTradeConstructed, dateKey(day), symbol, view))
	return view, nil
}

// Freeze turns the stored READY construction into the immutable trade.
func (s *Step4Service) Freeze(ctx context.Context, req TradeFreezeRequest) (view *TradeView, err error) {
	start := time.Now()
	defer func() { s.observe(stepTrade, "freeze", start, err) }()

	day, err := requireDate(req.TradeDate)
	if err != nil {
		return nil, err
	}
	symbol, err := requireSymbol(req.Symbol)
	if err != nil {
		return nil, err
	}
	if _, err := s.requireCandidate(ctx, day, symbol); err != nil {
		return nil, err
	}

	now := s.now()
	item, err := s.Repo.FreezeTrade(ctx, day, symbol, func(c *models.TradeConstruction) (*models.Trade, error) {
		if err := rules.CheckFreezable(c.Direction, c.TradeStatus, c.EntryPrice, c.StopLoss, c.Quantity); err != nil {
			return nil, err
		}
		if err := checkEchoes(c, req); err != nil {
			return nil, err
		}
		return &models.Trade{
			TradeID:      uuid.NewString(),
			Direction:    c.Direction,
			SetupType:    c.StrategyUsed,
			EntryPrice:   c.EntryPrice,
			StopLoss:     c.StopLoss,
			RiskPerShare: c.RiskPerShare,
			TargetPrice:  c.TargetPrice,
			Quantity:     c.Quantity,
			Capital:      c.Capital,
			RiskPercent:  c.RiskPercent,
			Rationale:    strPtr(req.Rationale),
			FrozenAt:     now,
		}, nil
	})
	log := s.log(stepTrade, day).With(zap.String("symbol", symbol))
	if err != nil {
		err = storeErr("STEP4", day, err)
		if apperr.KindOf(err) == apperr.KindInfrastructure {
			log.Error("step4 freeze failed", zap.Error(err))
		}
		return nil, err
	}

	view = tradeView(item)
	log.Info("step4 frozen",
		zap.String("trade_id", item.TradeID),
		zap.String("direction", item.Direction),
		zap.String("setup_type", item.SetupType),
		zap.Int64("quantity", item.Quantity),
	)
	s.publish(ctx, events.New(events.TypeTradeFrozen, dateKey(day), symbol, view))
	return view, nil
}

// Get returns the constructions and trades for the day, narrowed to one
// symbol when symbol is non-empty.
func (s *Step4Service) Get(ctx context.Context, tradeDate time.Time, symbol string) (*Step4View, error) {
	day, err := requireDate(tradeDate)
	if err != nil {
		return nil, err
	}
	view := &Step4View{TradeDate: dateKey(day), Constructions: []ConstructionView{}, Trades: []TradeView{}}

	if symbol = rules.NormalizeSymbol(symbol); symbol != "" {
		c, err := s.Repo.GetTradeConstruction(ctx, day, symbol)
		if err != nil {
			return nil, storeErr("STEP4", day, err)
		}
		t, err := s.Repo.GetTrade(ctx, day, symbol)
		if err != nil {
			return nil, storeErr("STEP4", day, err)
		}
		if c != nil {
			cv := constructionView(c)
			cv.CanFreeze = cv.CanFreeze && t == nil
			view.Constructions = append(view.Constructions, *cv)
		}
		if t != nil {
			view.Trades = append(view.Trades, *tradeView(t))
		}
		return view, nil
	}

	cs, err := s.Repo.ListTradeConstructions(ctx, day)
	if err != nil {
		return nil, storeErr("STEP4", day, err)
	}
	ts, err := s.Repo.ListTrades(ctx, day)
	if err != nil {
		return nil, storeErr("STEP4", day, err)
	}
	frozen := make(map[string]struct{}, len(ts))
	for i := range ts {
		frozen[ts[i].Symbol] = struct{}{}
		view.Trades = append(view.Trades, *tradeView(&ts[i]))
	}
	for i := range cs {
		cv := constructionView(&cs[i])
		if _, ok := frozen[cs[i].Symbol]; ok {
			cv.CanFreeze = false
		}
		view.Constructions = append(view.Constructions, *cv)
	}
	return view, nil
}

// requireCandidate checks every STEP-4 gate in pipeline order and returns
// the frozen candidate row.
func (s *Step4Service) requireCandidate(ctx context.Context, day time.Time, symbol string) (*models.StockSelection, error) {
	key := dateKey(day)
	mc, err := s.Repo.GetMarketContext(ctx, day)
	if err != nil {
		return nil, storeErr("STEP4", day, err)
	}
	if mc == nil {
		return nil, apperr.Conflict("STEP1_NOT_FROZEN", "STEP-1 market context is not frozen for %s", key)
	}
	ob, err := s.Repo.GetOpenBehavior(ctx, day)
	if err != nil {
		return nil, storeErr("STEP4", day, err)
	}
	if ob == nil {
		return nil, apperr.Conflict("STEP2_NOT_FROZEN", "STEP-2 open behavior is not frozen for %s", key)
	}
	if ob.TradePermission == rules.PermissionNo {
		return nil, apperr.Conflict("TRADE_NOT_PERMITTED", "STEP-2 trade_permission is NO for %s", key)
	}
	ec, err := s.Repo.GetExecutionControl(ctx, day)
	if err != nil {
		return nil, storeErr("STEP4", day, err)
	}
	if ec == nil {
		return nil, apperr.Conflict("STEP3_NOT_DERIVED", "STEP-3 execution control is not derived for %s", key)
	}
	if !ec.ExecutionAllowed {
		return nil, apperr.Conflict("EXECUTION_NOT_ALLOWED", "execution is not allowed on %s", key)
	}
	if ec.CandidatesFrozenAt == nil {
		return nil, apperr.Conflict("STEP3_NOT_FROZEN", "STEP-3 candidates are not frozen for %s", key)
	}
	sel, err := s.Repo.GetStockSelection(ctx, day, symbol)
	if err != nil {
		return nil, storeErr("STEP4", day, err)
	}
	if sel == nil || sel.StrategyUsed == rules.StrategyNoTrade {
		return nil, apperr.Conflict("NOT_A_CANDIDATE", "%s is not a frozen STEP-3 candidate for %s", symbol, key)
	}
	return sel, nil
}

func checkEchoes(c *models.TradeConstruction, req TradeFreezeRequest) error {
	if req.EntryPrice != nil && !req.EntryPrice.Equal(c.EntryPrice) {
		return apperr.Conflict("ECHO_MISMATCH", "entry_price %s does not match the construction (%s); preview again", req.EntryPrice, c.EntryPrice)
	}
	if req.StopLoss != nil && !req.StopLoss.Equal(c.StopLoss) {
		return apperr.Conflict("ECHO_MISMATCH", "stop_loss %s does not match the construction (%s); preview again", req.StopLoss, c.StopLoss)
	}
	if req.Quantity != nil && *req.Quantity != c.Quantity {
		return apperr.Conflict("ECHO_MISMATCH", "quantity %d does not match the construction (%d); preview again", *req.Quantity, c.Quantity)
	}
	return nil
}

func decOr(v *decimal.Decimal, fallback float64) decimal.Decimal {
	if v != nil {
		return *v
	}
	return decimal.NewFromFloat(fallback)
}

func constructionView(c *models.TradeConstruction) *ConstructionView {
	return &ConstructionView{
		TradeDate:    dateKey(c.TradeDate),
		Symbol:       c.Symbol,
		Direction:    c.Direction,
		StrategyUsed: c.StrategyUsed,
		Capital:      c.Capital,
		RiskPercent:  c.RiskPercent,
		EntryBuffer:  c.EntryBuffer,
		RMultiple:    c.RMultiple,
		Sizing: rules.Sizing{
			EntryPrice:   c.EntryPrice,
			StopLoss:     c.StopLoss,
			RiskPerShare: c.RiskPerShare,
			RiskAmount:   c.RiskAmount,
			Quantity:     c.Quantity,
			TargetPrice:  c.TargetPrice,
			TradeStatus:  c.TradeStatus,
			BlockReason:  derefStr(c.BlockReason),
		},
		ConstructedAt: c.ConstructedAt,
		CanFreeze:     c.TradeStatus == rules.TradeReady,
	}
}

func tradeView(t *models.Trade) *TradeView {
	return &TradeView{
		TradeID:      t.TradeID,
		TradeDate:    dateKey(t.TradeDate),
		Symbol:       t.Symbol,
		Direction:    t.Direction,
		SetupType:    t.SetupType,
		EntryPrice:   t.EntryPrice,
		StopLoss:     t.StopLoss,
		RiskPerShare: t.RiskPerShare,
		TargetPrice:  t.TargetPrice,
		Quantity:     t.Quantity,
		Capital:      t.Capital,
		RiskPercent:  t.RiskPercent,
		Rationale:    derefStr(t.Rationale),
		FrozenAt:     t.FrozenAt,
	}
}
