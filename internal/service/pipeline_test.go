package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"tradesetup/internal/apperr"
	"tradesetup/internal/config"
	"tradesetup/internal/events"
	"tradesetup/internal/marketdata"
	gormrepository "tradesetup/internal/repository/gorm"
	"tradesetup/internal/rules"
	"tradesetup/internal/testutil"
)

var (
	tradeDay = time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC)
	fixedNow = time.Date(2026, 1, 12, 4, 30, 0, 0, time.UTC)
)

type harness struct {
	deps Deps
	bus  *events.Bus
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	d := testutil.OpenSQLite(t)
	repo := gormrepository.New(d.Gorm)
	bus := events.NewBus()
	return &harness{
		bus: bus,
		deps: Deps{
			Repo:   repo,
			Flags:  &SystemSettingsService{Repo: repo},
			Events: bus,
			Logger: zap.NewNop(),
			Pipeline: config.PipelineConfig{
				Timezone:           "Asia/Kolkata",
				OpenTime:           "09:15",
				IRCandles:          6,
				DefaultCapital:     100000,
				DefaultRiskPercent: 1,
				DefaultEntryBuffer: 0,
				DefaultRMultiple:   2,
			},
			Now: func() time.Time { return fixedNow },
		},
	}
}

func step1Inputs() *rules.MarketContextInputs {
	return &rules.MarketContextInputs{
		YesterdayClose: 100,
		YesterdayHigh:  110,
		YesterdayLow:   95,
		Day2High:       94,
		Day2Low:        90,
		Last5DayRanges: []float64{10, 10, 10, 10, 10},
		PreOpenPrice:   101.5,
	}
}

func openingCandles() []rules.Candle {
	start := time.Date(2026, 1, 12, 3, 45, 0, 0, time.UTC)
	ohlc := [][4]float64{
		{100, 101, 99.5, 100.8},
		{100.8, 101.5, 100.5, 101.2},
		{101.2, 102, 101, 101.8},
		{101.8, 102.2, 101.5, 102},
		{102, 102.5, 101.8, 102.3},
		{102.3, 102.6, 102, 102.4},
	}
	out := make([]rules.Candle, 0, len(ohlc))
	for i, v := range ohlc {
		out = append(out, rules.Candle{
			Time:   start.Add(time.Duration(i) * 5 * time.Minute),
			Open:   v[0],
			High:   v[1],
			Low:    v[2],
			Close:  v[3],
			Volume: 1000,
		})
	}
	return out
}

func f64(v float64) *float64 { return &v }

// momentumLong qualifies as MOMENTUM LONG against a +0.5% index.
func momentumLong(symbol string, tradedValue float64) rules.StockContext {
	return rules.StockContext{
		Symbol:           symbol,
		AvgTradedValueCr: tradedValue,
		ATR:              30,
		YesterdayHigh:    1510,
		YesterdayLow:     1480,
		YesterdayClose:   1500,
		Open0915:         1500,
		CurrentPrice:     1530,
		StructureValid:   true,
		PriceVsVWAP:      rules.PriceAboveVWAP,
		Levels: rules.Levels{
			IntradayHigh:  f64(1532),
			IntradayLow:   f64(1498),
			LastHigherLow: f64(1520),
			VWAP:          f64(1518),
		},
	}
}

var indexUp = &rules.IndexMove{Open0915: 100, CurrentPrice: 100.5}

func wantCode(t *testing.T, err error, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s, got nil", code)
	}
	if got := apperr.CodeOf(err); got != code {
		t.Fatalf("code=%q want=%q (err=%v)", got, code, err)
	}
}

// freezeThroughStep2 freezes STEP-1 and STEP-2 for tradeDay.
func (h *harness) freezeThroughStep2(t *testing.T, finalContext string) {
	t.Helper()
	ctx := context.Background()
	s1 := &Step1Service{Deps: h.deps}
	if _, err := s1.Freeze(ctx, FreezeMarketContextRequest{
		TradeDate:          tradeDay,
		FinalMarketContext: finalContext,
		FinalReason:        "gap holding above yesterday high",
		Inputs:             step1Inputs(),
	}); err != nil {
		t.Fatalf("step1 freeze err=%v", err)
	}
	s2 := &Step2Service{Deps: h.deps}
	if _, err := s2.Freeze(ctx, FreezeOpenBehaviorRequest{
		TradeDate: tradeDay,
		Input:     OpenBehaviorInput{Candles: openingCandles(), BaselineRange: f64(2.5)},
	}); err != nil {
		t.Fatalf("step2 freeze err=%v", err)
	}
}

func TestPipeline_EndToEnd(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	sub, cancel := h.bus.Subscribe(16)
	defer cancel()

	h.freezeThroughStep2(t, "trend_day")

	s3 := &Step3Service{Deps: h.deps}
	exec, err := s3.DeriveExecution(ctx, tradeDay)
	if err != nil {
		t.Fatalf("derive err=%v", err)
	}
	if !exec.ExecutionAllowed || exec.MaxTradesAllowed != 3 || len(exec.AllowedStrategies) != 2 {
		t.Fatalf("execution=%+v", exec.ExecutionDecision)
	}

	weak := momentumLong("TCS", 50)
	view, err := s3.Freeze(ctx, CandidateRequest{
		TradeDate: tradeDay,
		Stocks:    []rules.StockContext{momentumLong(" infy ", 500), weak},
		IndexMove: indexUp,
	})
	if err != nil {
		t.Fatalf("step3 freeze err=%v", err)
	}
	if !view.Execution.CandidatesFrozen || len(view.Candidates) != 1 {
		t.Fatalf("step3 view=%+v", view)
	}
	c := view.Candidates[0]
	if c.Symbol != "INFY" || c.StrategyUsed != rules.StrategyMomentum || c.Direction != rules.DirectionLong || c.Rank != 1 {
		t.Fatalf("candidate=%+v", c)
	}

	s4 := &Step4Service{Deps: h.deps}
	cons, err := s4.Preview(ctx, TradePreviewRequest{TradeDate: tradeDay, Symbol: "INFY"})
	if err != nil {
		t.Fatalf("step4 preview err=%v", err)
	}
	if cons.TradeStatus != rules.TradeReady || cons.Quantity != 83 {
		t.Fatalf("construction status=%s qty=%d", cons.TradeStatus, cons.Quantity)
	}
	if !cons.EntryPrice.Equal(decimal.NewFromInt(1532)) || !cons.StopLoss.Equal(decimal.NewFromInt(1520)) {
		t.Fatalf("entry=%s stop=%s", cons.EntryPrice, cons.StopLoss)
	}
	if !cons.TargetPrice.Equal(decimal.NewFromInt(1556)) {
		t.Fatalf("target=%s want=1556", cons.TargetPrice)
	}

	qty := int64(83)
	trade, err := s4.Freeze(ctx, TradeFreezeRequest{
		TradeDate: tradeDay,
		Symbol:    "infy",
		Rationale: "momentum above vwap",
		Quantity:  &qty,
	})
	if err != nil {
		t.Fatalf("step4 freeze err=%v", err)
	}
	if trade.TradeID == "" || trade.Quantity != 83 || trade.SetupType != rules.StrategyMomentum {
		t.Fatalf("trade=%+v", trade)
	}

	_, err = s4.Freeze(ctx, TradeFreezeRequest{TradeDate: tradeDay, Symbol: "INFY"})
	wantCode(t, err, "STEP4_ALREADY_FROZEN")
	_, err = s4.Preview(ctx, TradePreviewRequest{TradeDate: tradeDay, Symbol: "INFY"})
	wantCode(t, err, "STEP4_ALREADY_FROZEN")

	got, err := s4.Get(ctx, tradeDay, "")
	if err != nil {
		t.Fatalf("step4 get err=%v", err)
	}
	if len(got.Trades) != 1 || len(got.Constructions) != 1 || got.Constructions[0].CanFreeze {
		t.Fatalf("step4 get=%+v", got)
	}

	var seen []string
	for len(sub) > 0 {
		seen = append(seen, (<-sub).Type)
	}
	want := []string{
		events.TypeMarketContextFrozen,
		events.TypeOpenBehaviorFrozen,
		events.TypeExecutionDerived,
		events.TypeCandidatesFrozen,
		events.TypeTradeConstructed,
		events.TypeTradeFrozen,
	}
	if len(seen) != len(want) {
		t.Fatalf("events=%v want=%v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("events=%v want=%v", seen, want)
		}
	}
}

func TestStep1_FreezeIsSingleShot(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	s1 := &Step1Service{Deps: h.deps}

	req := FreezeMarketContextRequest{TradeDate: tradeDay, FinalMarketContext: "TREND_DAY", FinalReason: "gap up over both ranges", Inputs: step1Inputs()}
	first, err := s1.Freeze(ctx, req)
	if err != nil {
		t.Fatalf("freeze err=%v", err)
	}
	if first.DataMode != DataModeManual || first.Derived.GapContext != rules.GapUp {
		t.Fatalf("view=%+v", first)
	}
	_, err = s1.Freeze(ctx, req)
	wantCode(t, err, "STEP1_ALREADY_FROZEN")

	preview, err := s1.Preview(ctx, tradeDay, nil)
	if err != nil {
		t.Fatalf("preview err=%v", err)
	}
	if !preview.Frozen || preview.CanFreeze || preview.FinalMarketContext != rules.ContextTrendDay {
		t.Fatalf("preview of frozen day=%+v", preview)
	}
}

func TestFreeze_RepeatReportsConflictBeforeInputs(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.freezeThroughStep2(t, rules.ContextTrendDay)

	// No inputs and no provider: a fresh day would fail with INPUTS_REQUIRED.
	s1 := &Step1Service{Deps: h.deps}
	_, err := s1.Freeze(ctx, FreezeMarketContextRequest{TradeDate: tradeDay, FinalMarketContext: "RANGE_UNCERTAIN_DAY", FinalReason: "second look"})
	wantCode(t, err, "STEP1_ALREADY_FROZEN")

	s2 := &Step2Service{Deps: h.deps}
	_, err = s2.Freeze(ctx, FreezeOpenBehaviorRequest{TradeDate: tradeDay})
	wantCode(t, err, "STEP2_ALREADY_FROZEN")

	got, err := s1.Get(ctx, tradeDay)
	if err != nil {
		t.Fatalf("get err=%v", err)
	}
	if got.FinalMarketContext != rules.ContextTrendDay {
		t.Fatalf("final_market_context=%s want=%s", got.FinalMarketContext, rules.ContextTrendDay)
	}
}

func TestStep1_Validation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	s1 := &Step1Service{Deps: h.deps}

	_, err := s1.Freeze(ctx, FreezeMarketContextRequest{TradeDate: tradeDay, FinalMarketContext: "SIDEWAYS", Inputs: step1Inputs()})
	wantCode(t, err, "INVALID_MARKET_CONTEXT")

	_, err = s1.Freeze(ctx, FreezeMarketContextRequest{TradeDate: tradeDay, FinalMarketContext: "TREND_DAY", FinalReason: "   ", Inputs: step1Inputs()})
	wantCode(t, err, "REASON_REQUIRED")

	_, err = s1.Preview(ctx, tradeDay, nil)
	wantCode(t, err, "INPUTS_REQUIRED")

	short := step1Inputs()
	short.Last5DayRanges = []float64{10, 10}
	_, err = s1.Preview(ctx, tradeDay, short)
	wantCode(t, err, "INSUFFICIENT_HISTORY")

	_, err = s1.Preview(ctx, time.Time{}, step1Inputs())
	wantCode(t, err, "INVALID_TRADE_DATE")

	got, err := s1.Get(ctx, tradeDay)
	if err != nil || got.Frozen || !got.CanFreeze {
		t.Fatalf("get=%+v err=%v", got, err)
	}
}

type stubProvider struct {
	inputs  rules.MarketContextInputs
	candles []rules.Candle
	from    time.Time
}

func (p *stubProvider) MarketContextInputs(context.Context, time.Time) (rules.MarketContextInputs, error) {
	return p.inputs, nil
}

func (p *stubProvider) SessionCandles(_ context.Context, _ time.Time, from time.Time) ([]rules.Candle, error) {
	p.from = from
	return p.candles, nil
}

func (p *stubProvider) BaselineRange(context.Context, time.Time) (float64, bool, error) {
	return 2.5, true, nil
}

func (p *stubProvider) IndexMove(context.Context, time.Time, time.Time) (rules.IndexMove, error) {
	return *indexUp, nil
}

func (p *stubProvider) Universe(context.Context) ([]string, error) {
	return []string{"INFY", "TCS"}, nil
}

func (p *stubProvider) StockMetrics(_ context.Context, _ time.Time, symbols []string) (map[string]marketdata.StockMetrics, error) {
	out := make(map[string]marketdata.StockMetrics, len(symbols))
	for _, s := range symbols {
		m := marketdata.StockMetrics{Symbol: s, ATR: 30, YesterdayHigh: 1510, YesterdayLow: 1480, YesterdayClose: 1500, HasATR: true, HasCandle: true, HasTradedValue: true}
		m.AvgTradedValueCr = 500
		if s == "TCS" {
			m.AvgTradedValueCr = 40
		}
		out[s] = m
	}
	return out, nil
}

func TestAutoMode_UsesProvider(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	p := &stubProvider{inputs: *step1Inputs(), candles: openingCandles()}
	h.deps.Provider = p

	s1 := &Step1Service{Deps: h.deps}
	v1, err := s1.Freeze(ctx, FreezeMarketContextRequest{TradeDate: tradeDay, FinalMarketContext: "TREND_DAY", FinalReason: "auto levels"})
	if err != nil {
		t.Fatalf("step1 freeze err=%v", err)
	}
	if v1.DataMode != DataModeAuto {
		t.Fatalf("data_mode=%s want AUTO", v1.DataMode)
	}

	s2 := &Step2Service{Deps: h.deps}
	v2, err := s2.Preview(ctx, tradeDay, OpenBehaviorInput{})
	if err != nil {
		t.Fatalf("step2 preview err=%v", err)
	}
	if v2.DataMode != DataModeAuto || v2.TradePermission != rules.PermissionYes || v2.BaselineRange != 2.5 {
		t.Fatalf("step2 preview=%+v", v2)
	}
	if want := time.Date(2026, 1, 12, 3, 45, 0, 0, time.UTC); !p.from.Equal(want) {
		t.Fatalf("session open=%v want=%v", p.from, want)
	}

	s3 := &Step3Service{Deps: h.deps, UniverseLimit: 10}
	universe, err := s3.Universe(ctx, tradeDay)
	if err != nil {
		t.Fatalf("universe err=%v", err)
	}
	if len(universe) != 2 || universe[0].Symbol != "INFY" || !universe[0].Tradability.Tradable || universe[1].Tradability.Tradable {
		t.Fatalf("universe=%+v", universe)
	}
}

func TestAutoMode_SwitchOff(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.deps.Provider = &stubProvider{inputs: *step1Inputs()}
	if err := h.deps.Flags.SetEnabled(ctx, FeatureMarketDataAuto, false); err != nil {
		t.Fatalf("set switch err=%v", err)
	}
	s1 := &Step1Service{Deps: h.deps}
	_, err := s1.Preview(ctx, tradeDay, nil)
	wantCode(t, err, "INPUTS_REQUIRED")
}

func TestStep2_Gating(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	s2 := &Step2Service{Deps: h.deps}
	in := OpenBehaviorInput{Candles: openingCandles(), BaselineRange: f64(2.5)}

	_, err := s2.Freeze(ctx, FreezeOpenBehaviorRequest{TradeDate: tradeDay, Input: in})
	wantCode(t, err, "STEP1_NOT_FROZEN")

	s1 := &Step1Service{Deps: h.deps}
	if _, err := s1.Freeze(ctx, FreezeMarketContextRequest{TradeDate: tradeDay, FinalMarketContext: "TREND_DAY", FinalReason: "gap up over both ranges", Inputs: step1Inputs()}); err != nil {
		t.Fatalf("step1 freeze err=%v", err)
	}

	_, err = s2.Freeze(ctx, FreezeOpenBehaviorRequest{TradeDate: tradeDay, Input: in, PermissionOverride: "MAYBE"})
	wantCode(t, err, "INVALID_PERMISSION")

	v, err := s2.Freeze(ctx, FreezeOpenBehaviorRequest{TradeDate: tradeDay, Input: in, PermissionOverride: "limited", PermissionReason: "event risk"})
	if err != nil {
		t.Fatalf("step2 freeze err=%v", err)
	}
	if v.DerivedPermission != rules.PermissionYes || v.TradePermission != rules.PermissionLimited || v.PermissionReason != "event risk" {
		t.Fatalf("step2 view=%+v", v)
	}
	_, err = s2.Freeze(ctx, FreezeOpenBehaviorRequest{TradeDate: tradeDay, Input: in})
	wantCode(t, err, "STEP2_ALREADY_FROZEN")
}

func TestStep2_OverrideCannotLoosen(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	s1 := &Step1Service{Deps: h.deps}
	if _, err := s1.Freeze(ctx, FreezeMarketContextRequest{TradeDate: tradeDay, FinalMarketContext: "TREND_DAY", FinalReason: "gap up over both ranges", Inputs: step1Inputs()}); err != nil {
		t.Fatalf("step1 freeze err=%v", err)
	}
	// A baseline of 1 makes the 3.1 opening range chaotic, so NO is derived.
	s2 := &Step2Service{Deps: h.deps}
	_, err := s2.Freeze(ctx, FreezeOpenBehaviorRequest{
		TradeDate:          tradeDay,
		Input:              OpenBehaviorInput{Candles: openingCandles(), BaselineRange: f64(1)},
		PermissionOverride: "YES",
	})
	wantCode(t, err, "PERMISSION_LOOSENED")
}

func TestStep3_DeriveIsIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	s3 := &Step3Service{Deps: h.deps}

	_, err := s3.DeriveExecution(ctx, tradeDay)
	wantCode(t, err, "STEP1_NOT_FROZEN")

	h.freezeThroughStep2(t, "RANGE_UNCERTAIN_DAY")
	first, err := s3.DeriveExecution(ctx, tradeDay)
	if err != nil {
		t.Fatalf("derive err=%v", err)
	}
	s3.Now = func() time.Time { return fixedNow.Add(time.Hour) }
	second, err := s3.DeriveExecution(ctx, tradeDay)
	if err != nil {
		t.Fatalf("re-derive err=%v", err)
	}
	if first.MaxTradesAllowed != 1 || second.MaxTradesAllowed != 1 || !first.DecidedAt.Equal(*second.DecidedAt) {
		t.Fatalf("first=%+v second=%+v", first, second)
	}
	if len(second.AllowedStrategies) != 1 || second.AllowedStrategies[0] != rules.StrategyMomentum {
		t.Fatalf("allowed=%v", second.AllowedStrategies)
	}
}

func TestStep3_Rejections(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	s3 := &Step3Service{Deps: h.deps}
	h.freezeThroughStep2(t, "TREND_DAY")

	_, err := s3.Compute(ctx, CandidateRequest{TradeDate: tradeDay, Stocks: []rules.StockContext{momentumLong("INFY", 500), momentumLong("infy", 400)}, IndexMove: indexUp})
	wantCode(t, err, "DUPLICATE_SYMBOL")

	_, err = s3.Compute(ctx, CandidateRequest{TradeDate: tradeDay, Stocks: []rules.StockContext{momentumLong("INFY", 500)}})
	wantCode(t, err, "INPUTS_REQUIRED")

	res, err := s3.Compute(ctx, CandidateRequest{TradeDate: tradeDay, Stocks: []rules.StockContext{momentumLong("INFY", 50)}, IndexMove: indexUp})
	if err != nil {
		t.Fatalf("compute err=%v", err)
	}
	if len(res.Selected) != 0 || res.Evaluated[0].RejectedAtLayer != 1 {
		t.Fatalf("compute=%+v", res)
	}

	_, err = s3.Freeze(ctx, CandidateRequest{TradeDate: tradeDay, Stocks: []rules.StockContext{momentumLong("INFY", 50)}, IndexMove: indexUp})
	wantCode(t, err, "NO_QUALIFIED_CANDIDATES")

	req := CandidateRequest{TradeDate: tradeDay, Stocks: []rules.StockContext{momentumLong("INFY", 500)}, IndexMove: indexUp}
	if _, err := s3.Freeze(ctx, req); err != nil {
		t.Fatalf("freeze err=%v", err)
	}
	_, err = s3.Freeze(ctx, req)
	wantCode(t, err, "STEP3_ALREADY_FROZEN")
}

func TestStep3_NoTradeDayBlocksExecution(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.freezeThroughStep2(t, "NO_TRADE_DAY")
	s3 := &Step3Service{Deps: h.deps}

	exec, err := s3.DeriveExecution(ctx, tradeDay)
	if err != nil {
		t.Fatalf("derive err=%v", err)
	}
	if exec.ExecutionAllowed || exec.MaxTradesAllowed != 0 || len(exec.AllowedStrategies) != 0 {
		t.Fatalf("execution=%+v", exec.ExecutionDecision)
	}
	_, err = s3.Compute(ctx, CandidateRequest{TradeDate: tradeDay, Stocks: []rules.StockContext{momentumLong("INFY", 500)}, IndexMove: indexUp})
	wantCode(t, err, "EXECUTION_NOT_ALLOWED")

	s4 := &Step4Service{Deps: h.deps}
	_, err = s4.Preview(ctx, TradePreviewRequest{TradeDate: tradeDay, Symbol: "INFY"})
	wantCode(t, err, "EXECUTION_NOT_ALLOWED")
}

func TestStep4_Gates(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	s4 := &Step4Service{Deps: h.deps}

	_, err := s4.Preview(ctx, TradePreviewRequest{TradeDate: tradeDay, Symbol: "INFY"})
	wantCode(t, err, "STEP1_NOT_FROZEN")
	_, err = s4.Preview(ctx, TradePreviewRequest{TradeDate: tradeDay})
	wantCode(t, err, "INVALID_SYMBOL")

	h.freezeThroughStep2(t, "TREND_DAY")
	_, err = s4.Preview(ctx, TradePreviewRequest{TradeDate: tradeDay, Symbol: "INFY"})
	wantCode(t, err, "STEP3_NOT_DERIVED")

	s3 := &Step3Service{Deps: h.deps}
	if _, err := s3.DeriveExecution(ctx, tradeDay); err != nil {
		t.Fatalf("derive err=%v", err)
	}
	_, err = s4.Preview(ctx, TradePreviewRequest{TradeDate: tradeDay, Symbol: "INFY"})
	wantCode(t, err, "STEP3_NOT_FROZEN")

	if _, err := s3.Freeze(ctx, CandidateRequest{TradeDate: tradeDay, Stocks: []rules.StockContext{momentumLong("INFY", 500)}, IndexMove: indexUp}); err != nil {
		t.Fatalf("step3 freeze err=%v", err)
	}
	_, err = s4.Preview(ctx, TradePreviewRequest{TradeDate: tradeDay, Symbol: "WIPRO"})
	wantCode(t, err, "NOT_A_CANDIDATE")
	_, err = s4.Freeze(ctx, TradeFreezeRequest{TradeDate: tradeDay, Symbol: "INFY"})
	wantCode(t, err, "STEP4_NOT_CONSTRUCTED")
}

func TestStep4_BlockedAndEchoes(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.freezeThroughStep2(t, "TREND_DAY")
	s3 := &Step3Service{Deps: h.deps}
	if _, err := s3.Freeze(ctx, CandidateRequest{TradeDate: tradeDay, Stocks: []rules.StockContext{momentumLong("INFY", 500)}, IndexMove: indexUp}); err != nil {
		t.Fatalf("step3 freeze err=%v", err)
	}
	s4 := &Step4Service{Deps: h.deps}

	small := decimal.NewFromInt(1000)
	cons, err := s4.Preview(ctx, TradePreviewRequest{TradeDate: tradeDay, Symbol: "INFY", Capital: &small})
	if err != nil {
		t.Fatalf("preview err=%v", err)
	}
	if cons.TradeStatus != rules.TradeBlocked || cons.BlockReason != rules.BlockInsufficientCapital || cons.CanFreeze {
		t.Fatalf("construction=%+v", cons)
	}
	_, err = s4.Freeze(ctx, TradeFreezeRequest{TradeDate: tradeDay, Symbol: "INFY"})
	wantCode(t, err, "TRADE_BLOCKED")

	if _, err := s4.Preview(ctx, TradePreviewRequest{TradeDate: tradeDay, Symbol: "INFY"}); err != nil {
		t.Fatalf("re-preview err=%v", err)
	}
	wrong := decimal.NewFromInt(1530)
	_, err = s4.Freeze(ctx, TradeFreezeRequest{TradeDate: tradeDay, Symbol: "INFY", EntryPrice: &wrong})
	wantCode(t, err, "ECHO_MISMATCH")

	got, err := s4.Get(ctx, tradeDay, "INFY")
	if err != nil {
		t.Fatalf("get err=%v", err)
	}
	if len(got.Trades) != 0 || len(got.Constructions) != 1 || !got.Constructions[0].CanFreeze {
		t.Fatalf("get=%+v", got)
	}
}
