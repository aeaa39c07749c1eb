package service

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"tradesetup/internal/apperr"
	"tradesetup/internal/events"
	"tradesetup/internal/marketdata"
	"tradesetup/internal/models"
	"tradesetup/internal/rules"
)

type ExecutionView struct {
	TradeDate       string `json:"trade_date"`
	Derived         bool   `json:"derived"`
	MarketContext   string `json:"market_context,omitempty"`
	TradePermission string `json:"trade_permission,omitempty"`
	rules.ExecutionDecision

	DecidedAt          *time.Time `json:"decided_at,omitempty"`
	CandidatesFrozen   bool       `json:"candidates_frozen"`
	CandidatesFrozenAt *time.Time `json:"candidates_frozen_at,omitempty"`
}

// SelectionView is a frozen candidate with its structural snapshot.
type SelectionView struct {
	Symbol           string  `json:"symbol"`
	Rank             int     `json:"rank"`
	Direction        string  `json:"direction"`
	StrategyUsed     string  `json:"strategy_used"`
	RelativeStrength float64 `json:"relative_strength"`
	GapPct           float64 `json:"gap_pct"`
	ATRPct           float64 `json:"atr_pct"`
	AvgTradedValueCr float64 `json:"avg_traded_value_20d"`
	StructureValid   bool    `json:"structure_valid"`
	Reason           string  `json:"reason"`

	GapHigh        *decimal.Decimal `json:"gap_high,omitempty"`
	GapLow         *decimal.Decimal `json:"gap_low,omitempty"`
	IntradayHigh   *decimal.Decimal `json:"intraday_high,omitempty"`
	IntradayLow    *decimal.Decimal `json:"intraday_low,omitempty"`
	LastHigherLow  *decimal.Decimal `json:"last_higher_low,omitempty"`
	LastLowerHigh  *decimal.Decimal `json:"last_lower_high,omitempty"`
	YesterdayClose *decimal.Decimal `json:"yesterday_close,omitempty"`
	VWAPValue      *decimal.Decimal `json:"vwap_value,omitempty"`

	EvaluatedAt time.Time `json:"evaluated_at"`
}

type Step3View struct {
	Execution  ExecutionView   `json:"execution"`
	Candidates []SelectionView `json:"candidates"`
}

type UniverseItem struct {
	marketdata.StockMetrics
	Tradability rules.Tradability `json:"tradability"`
}

type CandidateRequest struct {
	TradeDate time.Time
	Stocks    []rules.StockContext
	// IndexMove nil means fetch the index move since open.
	IndexMove *rules.IndexMove
}

type ComputeResult struct {
	TradeDate  string                  `json:"trade_date"`
	Execution  rules.ExecutionDecision `json:"execution"`
	IndexMove  rules.IndexMove         `json:"index_move"`
	IndexPct   float64                 `json:"index_pct"`
	Evaluated  []rules.Candidate       `json:"evaluated"`
	Selected   []rules.Candidate       `json:"selected"`
	FrozenView *Step3View              `json:"frozen,omitempty"`
}

type Step3Service struct {
	Deps
	UniverseLimit int
}

// DeriveExecution applies the execution matrix to the frozen STEP-1 and
// STEP-2 rows. Re-running yields the same decision and keeps decided_at.
func (s *Step3Service) DeriveExecution(ctx context.Context, tradeDate time.Time) (view *ExecutionView, err error) {
	start := time.Now()
	defer func() { s.observe(stepExecution, "derive", start, err) }()

	day, err := requireDate(tradeDate)
	if err != nil {
		return nil, err
	}
	now := s.now()
	item, err := s.Repo.DeriveExecutionControl(ctx, day, func(mc *models.MarketContext, ob *models.OpenBehavior) (*models.ExecutionControl, error) {
		d := rules.DeriveExecution(mc.FinalMarketContext, ob.TradePermission)
		raw, err := json.Marshal(d.AllowedStrategies)
		if err != nil {
			return nil, err
		}
		return &models.ExecutionControl{
			MarketContext:     mc.FinalMarketContext,
			TradePermission:   ob.TradePermission,
			AllowedStrategies: datatypes.JSON(raw),
			MaxTradesAllowed:  d.MaxTradesAllowed,
			ExecutionAllowed:  d.ExecutionAllowed,
			DecidedAt:         now,
		}, nil
	})
	if err != nil {
		err = storeErr("STEP3", day, err)
		if apperr.KindOf(err) == apperr.KindInfrastructure {
			s.log(stepExecution, day).Error("step3 derivation failed", zap.Error(err))
		}
		return nil, err
	}

	view = executionView(item)
	s.log(stepExecution, day).Info("step3 execution derived",
		zap.String("market_context", item.MarketContext),
		zap.String("trade_permission", item.TradePermission),
		zap.Int("max_trades_allowed", item.MaxTradesAllowed),
		zap.Bool("execution_allowed", item.ExecutionAllowed),
	)
	s.publish(ctx, events.New(events.TypeExecutionDerived, dateKey(day), "", view))
	return view, nil
}

// Universe lists the liquidity universe with Layer-1 verdicts, highest
// traded value first.
func (s *Step3Service) Universe(ctx context.Context, tradeDate time.Time) (items []UniverseItem, err error) {
	start := time.Now()
	defer func() { s.observe(stepExecution, "universe", start, err) }()

	day, err := requireDate(tradeDate)
	if err != nil {
		return nil, err
	}
	if !s.autoAvailable(ctx) {
		return nil, apperr.Validation("MARKET_DATA_UNAVAILABLE", "the universe needs the market data store")
	}
	symbols, err := s.Provider.Universe(ctx)
	if err != nil {
		return nil, err
	}
	metrics, err := s.Provider.StockMetrics(ctx, day, symbols)
	if err != nil {
		return nil, err
	}

	cfg := s.filterConfig()
	items = make([]UniverseItem, 0, len(metrics))
	for _, sym := range symbols {
		m, ok := metrics[sym]
		if !ok {
			continue
		}
		sc := rules.StockContext{Symbol: sym}
		m.Apply(&sc)
		items = append(items, UniverseItem{StockMetrics: m, Tradability: rules.CheckTradability(sc, cfg)})
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].AvgTradedValueCr != items[j].AvgTradedValueCr {
			return items[i].AvgTradedValueCr > items[j].AvgTradedValueCr
		}
		return items[i].Symbol < items[j].Symbol
	})
	if s.UniverseLimit > 0 && len(items) > s.UniverseLimit {
		items = items[:s.UniverseLimit]
	}
	return items, nil
}

// Compute evaluates the supplied stocks without persisting anything.
func (s *Step3Service) Compute(ctx context.Context, req CandidateRequest) (res *ComputeResult, err error) {
	start := time.Now()
	defer func() { s.observe(stepExecution, "compute", start, err) }()
	return s.compute(ctx, req)
}

func (s *Step3Service) compute(ctx context.Context, req CandidateRequest) (*ComputeResult, error) {
	day, err := requireDate(req.TradeDate)
	if err != nil {
		return nil, err
	}
	decision, err := s.currentDecision(ctx, day)
	if err != nil {
		return nil, err
	}
	if !decision.ExecutionAllowed {
		return nil, apperr.Conflict("EXECUTION_NOT_ALLOWED", "execution is not allowed on %s", dateKey(day))
	}
	stocks, err := s.prepareStocks(ctx, day, req.Stocks)
	if err != nil {
		return nil, err
	}
	move, err := s.indexMove(ctx, day, req.IndexMove)
	if err != nil {
		return nil, err
	}
	indexPct, err := move.Pct()
	if err != nil {
		return nil, err
	}

	cfg := s.filterConfig()
	evaluated := make([]rules.Candidate, 0, len(stocks))
	for _, st := range stocks {
		evaluated = append(evaluated, rules.EvaluateCandidate(st, indexPct, decision, cfg))
	}
	return &ComputeResult{
		TradeDate: dateKey(day),
		Execution: decision,
		IndexMove: move,
		IndexPct:  indexPct,
		Evaluated: evaluated,
		Selected:  rules.SelectCandidates(evaluated, decision.MaxTradesAllowed),
	}, nil
}

// Freeze evaluates the stocks and freezes the top max_trades_allowed
// qualified candidates. It fails when none qualify.
func (s *Step3Service) Freeze(ctx context.Context, req CandidateRequest) (view *Step3View, err error) {
	start := time.Now()
	defer func() { s.observe(stepExecution, "freeze", start, err) }()

	if err := s.ensureDerived(ctx, req.TradeDate); err != nil {
		return nil, err
	}
	res, err := s.compute(ctx, req)
	if err != nil {
		return nil, err
	}
	day := models.TradeDay(req.TradeDate)
	log := s.log(stepExecution, day)
	if len(res.Selected) == 0 {
		return nil, apperr.Conflict("NO_QUALIFIED_CANDIDATES", "no stock qualified for %s", dateKey(day))
	}

	now := s.now()
	rows := make([]models.StockSelection, 0, len(res.Selected))
	for i, c := range res.Selected {
		rows = append(rows, models.StockSelection{
			TradeDate:        day,
			Symbol:           c.Symbol,
			Rank:             i + 1,
			Direction:        c.Direction,
			StrategyUsed:     c.StrategyUsed,
			RelativeStrength: c.RS,
			GapPct:           c.GapPct,
			ATRPct:           c.ATRPct,
			AvgTradedValueCr: c.AvgTradedValueCr,
			GapHigh:          decPtr(c.Levels.GapHigh),
			GapLow:           decPtr(c.Levels.GapLow),
			IntradayHigh:     decPtr(c.Levels.IntradayHigh),
			IntradayLow:      decPtr(c.Levels.IntradayLow),
			LastHigherLow:    decPtr(c.Levels.LastHigherLow),
			LastLowerHigh:    decPtr(c.Levels.LastLowerHigh),
			YesterdayClose:   decPtr(&c.YesterdayClose),
			VWAPValue:        decPtr(c.Levels.VWAP),
			StructureValid:   c.StructureValid,
			Reason:           c.Reason,
			EvaluatedAt:      now,
		})
	}
	if err := s.Repo.FreezeStockSelections(ctx, day, rows, now); err != nil {
		err = storeErr("STEP3", day, err)
		if apperr.KindOf(err) == apperr.KindInfrastructure {
			log.Error("step3 candidate freeze failed", zap.Error(err))
		}
		return nil, err
	}

	view, err = s.Get(ctx, day)
	if err != nil {
		return nil, err
	}
	log.Info("step3 candidates frozen",
		zap.Int("evaluated", len(res.Evaluated)),
		zap.Int("selected", len(rows)),
		zap.Float64("index_pct", res.IndexPct),
	)
	s.publish(ctx, events.New(events.TypeCandidatesFrozen, dateKey(day), "", view))
	return view, nil
}

func (s *Step3Service) Get(ctx context.Context, tradeDate time.Time) (*Step3View, error) {
	day, err := requireDate(tradeDate)
	if err != nil {
		return nil, err
	}
	ec, err := s.Repo.GetExecutionControl(ctx, day)
	if err != nil {
		return nil, storeErr("STEP3", day, err)
	}
	view := &Step3View{Candidates: []SelectionView{}}
	if ec == nil {
		view.Execution = ExecutionView{TradeDate: dateKey(day), ExecutionDecision: rules.ExecutionDecision{AllowedStrategies: []string{}}}
		return view, nil
	}
	view.Execution = *executionView(ec)
	rows, err := s.Repo.ListStockSelections(ctx, day)
	if err != nil {
		return nil, storeErr("STEP3", day, err)
	}
	for i := range rows {
		view.Candidates = append(view.Candidates, selectionView(&rows[i]))
	}
	return view, nil
}

// ensureDerived stores the STEP-3A row when the caller skipped the explicit
// derivation, so the candidate freeze has a row to claim.
func (s *Step3Service) ensureDerived(ctx context.Context, tradeDate time.Time) error {
	day, err := requireDate(tradeDate)
	if err != nil {
		return err
	}
	ec, err := s.Repo.GetExecutionControl(ctx, day)
	if err != nil {
		return storeErr("STEP3", day, err)
	}
	if ec != nil {
		return nil
	}
	_, err = s.DeriveExecution(ctx, day)
	return err
}

// currentDecision reads the stored STEP-3A row, or derives it in memory from
// the frozen predecessors when it has not been stored yet.
func (s *Step3Service) currentDecision(ctx context.Context, day time.Time) (rules.ExecutionDecision, error) {
	ec, err := s.Repo.GetExecutionControl(ctx, day)
	if err != nil {
		return rules.ExecutionDecision{}, storeErr("STEP3", day, err)
	}
	if ec != nil {
		return executionView(ec).ExecutionDecision, nil
	}
	mc, err := s.Repo.GetMarketContext(ctx, day)
	if err != nil {
		return rules.ExecutionDecision{}, storeErr("STEP3", day, err)
	}
	if mc == nil {
		return rules.ExecutionDecision{}, apperr.Conflict("STEP1_NOT_FROZEN", "STEP-1 market context is not frozen for %s", dateKey(day))
	}
	ob, err := s.Repo.GetOpenBehavior(ctx, day)
	if err != nil {
		return rules.ExecutionDecision{}, storeErr("STEP3", day, err)
	}
	if ob == nil {
		return rules.ExecutionDecision{}, apperr.Conflict("STEP2_NOT_FROZEN", "STEP-2 open behavior is not frozen for %s", dateKey(day))
	}
	return rules.DeriveExecution(mc.FinalMarketContext, ob.TradePermission), nil
}

func (s *Step3Service) prepareStocks(ctx context.Context, day time.Time, in []rules.StockContext) ([]rules.StockContext, error) {
	if len(in) == 0 {
		return nil, apperr.Validation("STOCKS_REQUIRED", "at least one stock context is required")
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]rules.StockContext, 0, len(in))
	for _, st := range in {
		st.Symbol = rules.NormalizeSymbol(st.Symbol)
		if st.Symbol == "" {
			return nil, apperr.Validation("INVALID_SYMBOL", "every stock needs a symbol")
		}
		if _, dup := seen[st.Symbol]; dup {
			return nil, apperr.Validation("DUPLICATE_SYMBOL", "symbol %s appears more than once", st.Symbol)
		}
		seen[st.Symbol] = struct{}{}
		out = append(out, st)
	}

	if !s.autoAvailable(ctx) {
		return out, nil
	}
	var missing []string
	for _, st := range out {
		if needsLayer1(st) {
			missing = append(missing, st.Symbol)
		}
	}
	if len(missing) == 0 {
		return out, nil
	}
	metrics, err := s.Provider.StockMetrics(ctx, day, missing)
	if err != nil {
		return nil, err
	}
	for i := range out {
		if m, ok := metrics[out[i].Symbol]; ok {
			m.Apply(&out[i])
		}
	}
	return out, nil
}

func needsLayer1(st rules.StockContext) bool {
	return st.AvgTradedValueCr == 0 || st.ATR == 0 || st.YesterdayClose == 0 || st.YesterdayHigh == 0 || st.YesterdayLow == 0
}

func (s *Step3Service) indexMove(ctx context.Context, day time.Time, move *rules.IndexMove) (rules.IndexMove, error) {
	if move != nil {
		return *move, nil
	}
	if !s.autoAvailable(ctx) {
		return rules.IndexMove{}, apperr.Validation("INPUTS_REQUIRED", "market data is not available; supply index_move")
	}
	return s.Provider.IndexMove(ctx, day, s.sessionOpen(day))
}

func executionView(ec *models.ExecutionControl) *ExecutionView {
	strategies := []string{}
	_ = json.Unmarshal(ec.AllowedStrategies, &strategies)
	if strategies == nil {
		strategies = []string{}
	}
	decidedAt := ec.DecidedAt
	return &ExecutionView{
		TradeDate:       dateKey(ec.TradeDate),
		Derived:         true,
		MarketContext:   ec.MarketContext,
		TradePermission: ec.TradePermission,
		ExecutionDecision: rules.ExecutionDecision{
			AllowedStrategies: strategies,
			MaxTradesAllowed:  ec.MaxTradesAllowed,
			ExecutionAllowed:  ec.ExecutionAllowed,
		},
		DecidedAt:          &decidedAt,
		CandidatesFrozen:   ec.CandidatesFrozenAt != nil,
		CandidatesFrozenAt: ec.CandidatesFrozenAt,
	}
}

func selectionView(row *models.StockSelection) SelectionView {
	return SelectionView{
		Symbol:           row.Symbol,
		Rank:             row.Rank,
		Direction:        row.Direction,
		StrategyUsed:     row.StrategyUsed,
		RelativeStrength: row.RelativeStrength,
		GapPct:           row.GapPct,
		ATRPct:           row.ATRPct,
		AvgTradedValueCr: row.AvgTradedValueCr,
		StructureValid:   row.StructureValid,
		Reason:           row.Reason,
		GapHigh:          row.GapHigh,
		GapLow:           row.GapLow,
		IntradayHigh:     row.IntradayHigh,
		IntradayLow:      row.IntradayLow,
		LastHigherLow:    row.LastHigherLow,
		LastLowerHigh:    row.LastLowerHigh,
		YesterdayClose:   row.YesterdayClose,
		VWAPValue:        row.VWAPValue,
		EvaluatedAt:      row.EvaluatedAt,
	}
}

func decPtr(v *float64) *decimal.Decimal {
	if v == nil {
		return nil
	}
	d := decimal.NewFromFloat(*v)
	return &d
}
