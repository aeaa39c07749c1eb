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

type OpenBehaviorView struct {
	TradeDate     string                   `json:"trade_date"`
	DataMode      string                   `json:"data_mode,omitempty"`
	CandleCount   int                      `json:"candle_count"`
	BaselineRange float64                  `json:"baseline_range"`
	Derived       *rules.OpenBehaviorResult `json:"derived,omitempty"`

	Frozen            bool       `json:"frozen"`
	CanFreeze         bool       `json:"can_freeze"`
	DerivedPermission string     `json:"derived_permission,omitempty"`
	TradePermission   string     `json:"trade_permission,omitempty"`
	PermissionReason  string     `json:"permission_reason,omitempty"`
	FrozenAt          *time.Time `json:"frozen_at,omitempty"`
}

// OpenBehaviorInput carries the caller's candles. Nil Candles means fetch
// them; a nil BaselineRange is fetched too when candles are fetched.
type OpenBehaviorInput struct {
	Candles       []rules.Candle
	BaselineRange *float64
}

type FreezeOpenBehaviorRequest struct {
	TradeDate time.Time
	Input     OpenBehaviorInput
	// PermissionOverride may only tighten the derived permission.
	PermissionOverride string
	PermissionReason   string
}

type Step2Service struct {
	Deps
}

func (s *Step2Service) Preview(ctx context.Context, tradeDate time.Time, input OpenBehaviorInput) (view *OpenBehaviorView, err error) {
	start := time.Now()
	defer func() { s.observe(stepOpenBehavior, "preview", start, err) }()

	day, err := requireDate(tradeDate)
	if err != nil {
		return nil, err
	}
	if err := s.requireMarketContext(ctx, day); err != nil {
		return nil, err
	}
	frozen, err := s.Repo.GetOpenBehavior(ctx, day)
	if err != nil {
		return nil, storeErr("STEP2", day, err)
	}
	if frozen != nil {
		return openBehaviorView(frozen), nil
	}

	in, mode, err := s.resolveInputs(ctx, day, input)
	if err != nil {
		return nil, err
	}
	res, err := rules.ClassifyOpenBehavior(in)
	if err != nil {
		return nil, err
	}
	return &OpenBehaviorView{
		TradeDate:         dateKey(day),
		DataMode:          mode,
		CandleCount:       len(in.Candles),
		BaselineRange:     in.BaselineRange,
		Derived:           &res,
		CanFreeze:         true,
		DerivedPermission: res.TradePermission,
		TradePermission:   res.TradePermission,
	}, nil
}

func (s *Step2Service) Freeze(ctx context.Context, req FreezeOpenBehaviorRequest) (view *OpenBehaviorView, err error) {
	start := time.Now()
	defer func() { s.observe(stepOpenBehavior, "freeze", start, err) }()

	day, err := requireDate(req.TradeDate)
	if err != nil {
		return nil, err
	}
	override := strings.ToUpper(strings.TrimSpace(req.PermissionOverride))
	if override != "" && !rules.IsPermission(override) {
		return nil, apperr.Validation("INVALID_PERMISSION", "trade_permission must be YES, LIMITED or NO")
	}
	// Fail fast on the predecessor before touching the market store; the
	// repository re-checks it under lock.
	if err := s.requireMarketContext(ctx, day); err != nil {
		return nil, err
	}
	frozen, err := s.Repo.GetOpenBehavior(ctx, day)
	if err != nil {
		return nil, storeErr("STEP2", day, err)
	}
	if frozen != nil {
		return nil, storeErr("STEP2", day, repository.ErrAlreadyExists)
	}
	log := s.log(stepOpenBehavior, day)

	in, mode, err := s.resolveInputs(ctx, day, req.Input)
	if err != nil {
		return nil, err
	}
	res, err := rules.ClassifyOpenBehavior(in)
	if err != nil {
		return nil, err
	}
	permission := res.TradePermission
	if override != "" {
		if !rules.NoLooserThan(override, res.TradePermission) {
			return nil, apperr.Conflict("PERMISSION_LOOSENED",
				"trade_permission %s is looser than the derived %s", override, res.TradePermission)
		}
		permission = override
	}
	candles, err := json.Marshal(in.Candles)
	if err != nil {
		return nil, apperr.Validation("INVALID_INPUT", "candles: %v", err)
	}

	item := &models.OpenBehavior{
		TradeDate:         day,
		Candles:           datatypes.JSON(candles),
		CandleCount:       len(in.Candles),
		BaselineRange:     in.BaselineRange,
		IRHigh:            res.IRHigh,
		IRLow:             res.IRLow,
		IRRange:           res.IRRange,
		IRRatio:           res.IRRatio,
		VolatilityState:   res.VolatilityState,
		VWAP:              res.VWAP,
		VWAPCrossCount:    res.VWAPCrossCount,
		VWAPState:         res.VWAPState,
		RangeHoldStatus:   res.RangeHoldStatus,
		DerivedPermission: res.TradePermission,
		TradePermission:   permission,
		PermissionReason:  strPtr(req.PermissionReason),
		DataMode:          mode,
		FrozenAt:          s.now(),
	}
	if err := s.Repo.FreezeOpenBehavior(ctx, item); err != nil {
		err = storeErr("STEP2", day, err)
		if apperr.KindOf(err) == apperr.KindInfrastructure {
			log.Error("step2 freeze failed", zap.Error(err))
		}
		return nil, err
	}

	log.Info("step2 frozen",
		zap.String("derived_permission", res.TradePermission),
		zap.String("trade_permission", permission),
		zap.String("range_hold", res.RangeHoldStatus),
		zap.String("volatility", res.VolatilityState),
		zap.String("data_mode", mode),
	)
	view = openBehaviorView(item)
	s.publish(ctx, events.New(events.TypeOpenBehaviorFrozen, dateKey(day), "", view))
	return view, nil
}

func (s *Step2Service) Get(ctx context.Context, tradeDate time.Time) (*OpenBehaviorView, error) {
	day, err := requireDate(tradeDate)
	if err != nil {
		return nil, err
	}
	item, err := s.Repo.GetOpenBehavior(ctx, day)
	if err != nil {
		return nil, storeErr("STEP2", day, err)
	}
	if item == nil {
		return &OpenBehaviorView{TradeDate: dateKey(day)}, nil
	}
	return openBehaviorView(item), nil
}

func (s *Step2Service) requireMarketContext(ctx context.Context, day time.Time) error {
	mc, err := s.Repo.GetMarketContext(ctx, day)
	if err != nil {
		return storeErr("STEP2", day, err)
	}
	if mc == nil {
		return apperr.Conflict("STEP1_NOT_FROZEN", "STEP-1 market context is not frozen for %s", dateKey(day))
	}
	return nil
}

func (s *Step2Service) resolveInputs(ctx context.Context, day time.Time, input OpenBehaviorInput) (rules.OpenBehaviorInputs, string, error) {
	in := rules.OpenBehaviorInputs{IRCandles: s.Pipeline.IRCandles}
	if input.BaselineRange != nil {
		in.BaselineRange = *input.BaselineRange
	}
	if len(input.Candles) > 0 {
		in.Candles = input.Candles
		return in, DataModeManual, nil
	}
	if !s.autoAvailable(ctx) {
		return in, "", apperr.Validation("INPUTS_REQUIRED", "market data is not available; supply the opening candles")
	}

	candles, err := s.Provider.SessionCandles(ctx, day, s.sessionOpen(day))
	if err != nil {
		return in, "", err
	}
	in.Candles = candles
	if input.BaselineRange == nil {
		baseline, ok, err := s.Provider.BaselineRange(ctx, day)
		if err != nil {
			return in, "", err
		}
		if ok {
			in.BaselineRange = baseline
		}
	}
	return in, DataModeAuto, nil
}

func openBehaviorView(item *models.OpenBehavior) *OpenBehaviorView {
	frozenAt := item.FrozenAt
	return &OpenBehaviorView{
		TradeDate:     dateKey(item.TradeDate),
		DataMode:      item.DataMode,
		CandleCount:   item.CandleCount,
		BaselineRange: item.BaselineRange,
		Derived: &rules.OpenBehaviorResult{
			IRHigh:          item.IRHigh,
			IRLow:           item.IRLow,
			IRRange:         item.IRRange,
			IRRatio:         item.IRRatio,
			VolatilityState: item.VolatilityState,
			VWAP:            item.VWAP,
			VWAPCrossCount:  item.VWAPCrossCount,
			VWAPState:       item.VWAPState,
			RangeHoldStatus: item.RangeHoldStatus,
			TradePermission: item.DerivedPermission,
		},
		Frozen:            true,
		CanFreeze:         false,
		DerivedPermission: item.DerivedPermission,
		TradePermission:   item.TradePermission,
		PermissionReason:  derefStr(item.PermissionReason),
		FrozenAt:          &frozenAt,
	}
}
