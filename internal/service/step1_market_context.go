package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"tradesetup/internal/apperr"
	"tradesetup/internal/events"
	"tradesetup/internal/models"
	"tradesetup/internal/repository"
	"tradesetup/internal/rules"
)

// MarketContextView is what STEP-1 preview, freeze and read return.
type MarketContextView struct {
	TradeDate string                     `json:"trade_date"`
	DataMode  string                     `json:"data_mode,omitempty"`
	Inputs    *rules.MarketContextInputs `json:"inputs,omitempty"`
	Derived   *rules.MarketContextResult `json:"derived,omitempty"`

	Frozen             bool       `json:"frozen"`
	CanFreeze          bool       `json:"can_freeze"`
	FinalMarketContext string     `json:"final_market_context,omitempty"`
	FinalReason        string     `json:"final_reason,omitempty"`
	FrozenAt           *time.Time `json:"frozen_at,omitempty"`
}

type FreezeMarketContextRequest struct {
	TradeDate          time.Time
	FinalMarketContext string
	FinalReason        string
	// Inputs nil means fetch from the market store.
	Inputs *rules.MarketContextInputs
}

type Step1Service struct {
	Deps
}

// Preview classifies the day without persisting. A frozen day returns the
// frozen snapshot with CanFreeze false.
func (s *Step1Service) Preview(ctx context.Context, tradeDate time.Time, inputs *rules.MarketContextInputs) (view *MarketContextView, err error) {
	start := time.Now()
	defer func() { s.observe(stepMarketContext, "preview", start, err) }()

	day, err := requireDate(tradeDate)
	if err != nil {
		return nil, err
	}
	frozen, err := s.Repo.GetMarketContext(ctx, day)
	if err != nil {
		return nil, storeErr("STEP1", day, err)
	}
	if frozen != nil {
		return marketContextView(frozen), nil
	}

	in, mode, err := s.resolveInputs(ctx, day, inputs)
	if err != nil {
		return nil, err
	}
	res, err := rules.ClassifyMarketContext(in)
	if err != nil {
		return nil, err
	}
	return &MarketContextView{
		TradeDate: dateKey(day),
		DataMode:  mode,
		Inputs:    &in,
		Derived:   &res,
		CanFreeze: true,
	}, nil
}

func (s *Step1Service) Freeze(ctx context.Context, req FreezeMarketContextRequest) (view *MarketContextView, err error) {
	start := time.Now()
	defer func() { s.observe(stepMarketContext, "freeze", start, err) }()

	day, err := requireDate(req.TradeDate)
	if err != nil {
		return nil, err
	}
	final := strings.ToUpper(strings.TrimSpace(req.FinalMarketContext))
	if !rules.IsMarketContext(final) {
		return nil, apperr.Validation("INVALID_MARKET_CONTEXT",
			"final_market_context must be one of %s, %s, %s", rules.ContextTrendDay, rules.ContextRangeUncertainDay, rules.ContextNoTradeDay)
	}
	reason := strings.TrimSpace(req.FinalReason)
	if reason == "" {
		return nil, apperr.Validation("REASON_REQUIRED", "final_reason is required")
	}
	frozen, err := s.Repo.GetMarketContext(ctx, day)
	if err != nil {
		return nil, storeErr("STEP1", day, err)
	}
	if frozen != nil {
		return nil, storeErr("STEP1", day, repository.ErrAlreadyExists)
	}
	log := s.log(stepMarketContext, day)

	in, mode, err := s.resolveInputs(ctx, day, req.Inputs)
	if err != nil {
		return nil, err
	}
	res, err := rules.ClassifyMarketContext(in)
	if err != nil {
		return nil, err
	}
	ranges, err := json.Marshal(in.Last5DayRanges)
	if err != nil {
		return nil, apperr.Validation("INVALID_INPUT", "last_5_day_ranges: %v", err)
	}

	item := &models.MarketContext{
		TradeDate:              day,
		YesterdayClose:         in.YesterdayClose,
		YesterdayHigh:          in.YesterdayHigh,
		YesterdayLow:           in.YesterdayLow,
		Day2High:               in.Day2High,
		Day2Low:                in.Day2Low,
		Last5DayRanges:         datatypes.JSON(ranges),
		PreOpenPrice:           in.PreOpenPrice,
		GapPct:                 res.GapPct,
		GapClass:               res.GapClass,
		GapContext:             res.GapContext,
		RangeRatio:             res.RangeRatio,
		RangeSize:              res.RangeSize,
		OverlapType:            res.OverlapType,
		StructuralState:        res.StructuralState,
		SuggestedMarketContext: res.SuggestedMarketContext,
		FinalMarketContext:     final,
		FinalReason:            reason,
		DataMode:               mode,
		FrozenAt:               s.now(),
	}
	if err := s.Repo.FreezeMarketContext(ctx, item); err != nil {
		err = storeErr("STEP1", day, err)
		if apperr.KindOf(err) == apperr.KindInfrastructure {
			log.Error("step1 freeze failed", zap.Error(err))
		}
		return nil, err
	}

	log.Info("step1 frozen",
		zap.String("final_market_context", final),
		zap.String("suggested_market_context", res.SuggestedMarketContext),
		zap.String("data_mode", mode),
	)
	view = marketContextView(item)
	s.publish(ctx, events.New(events.TypeMarketContextFrozen, dateKey(day), "", view))
	return view, nil
}

// Get never fails for a missing row; it reports Frozen false instead.
func (s *Step1Service) Get(ctx context.Context, tradeDate time.Time) (*MarketContextView, error) {
	day, err := requireDate(tradeDate)
	if err != nil {
		return nil, err
	}
	item, err := s.Repo.GetMarketContext(ctx, day)
	if err != nil {
		return nil, storeErr("STEP1", day, err)
	}
	if item == nil {
		return &MarketContextView{TradeDate: dateKey(day), CanFreeze: true}, nil
	}
	return marketContextView(item), nil
}

func (s *Step1Service) List(ctx context.Context, params repository.ListTradeDaysParams) ([]MarketContextView, int64, error) {
	items, err := s.Repo.ListMarketContexts(ctx, params)
	if err != nil {
		return nil, 0, storeErr("STEP1", time.Time{}, err)
	}
	total, err := s.Repo.CountMarketContexts(ctx, params)
	if err != nil {
		return nil, 0, storeErr("STEP1", time.Time{}, err)
	}
	out := make([]MarketContextView, 0, len(items))
	for i := range items {
		out = append(out, *marketContextView(&items[i]))
	}
	return out, total, nil
}

func (s *Step1Service) resolveInputs(ctx context.Context, day time.Time, inputs *rules.MarketContextInputs) (rules.MarketContextInputs, string, error) {
	if inputs != nil {
		return *inputs, DataModeManual, nil
	}
	if !s.autoAvailable(ctx) {
		return rules.MarketContextInputs{}, "", apperr.Validation("INPUTS_REQUIRED",
			"market data is not available; supply yesterday/day-2 levels, last_5_day_ranges and preopen_price")
	}
	in, err := s.Provider.MarketContextInputs(ctx, day)
	if err != nil {
		return rules.MarketContextInputs{}, "", err
	}
	return in, DataModeAuto, nil
}

func marketContextView(item *models.MarketContext) *MarketContextView {
	var ranges []float64
	_ = json.Unmarshal(item.Last5DayRanges, &ranges)
	frozenAt := item.FrozenAt
	return &MarketContextView{
		TradeDate: dateKey(item.TradeDate),
		DataMode:  item.DataMode,
		Inputs: &rules.MarketContextInputs{
			YesterdayClose: item.YesterdayClose,
			YesterdayHigh:  item.YesterdayHigh,
			YesterdayLow:   item.YesterdayLow,
			Day2High:       item.Day2High,
			Day2Low:        item.Day2Low,
			Last5DayRanges: ranges,
			PreOpenPrice:   item.PreOpenPrice,
		},
		Derived: &rules.MarketContextResult{
			GapPct:                 item.GapPct,
			GapClass:               item.GapClass,
			GapContext:             item.GapContext,
			RangeRatio:             item.RangeRatio,
			RangeSize:              item.RangeSize,
			OverlapType:            item.OverlapType,
			StructuralState:        item.StructuralState,
			SuggestedMarketContext: item.SuggestedMarketContext,
		},
		Frozen:             true,
		CanFreeze:          false,
		FinalMarketContext: item.FinalMarketContext,
		FinalReason:        item.FinalReason,
		FrozenAt:           &frozenAt,
	}
}
