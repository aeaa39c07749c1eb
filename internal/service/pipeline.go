package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"tradesetup/internal/apperr"
	"tradesetup/internal/config"
	"tradesetup/internal/events"
	"tradesetup/internal/logger"
	"tradesetup/internal/marketdata"
	"tradesetup/internal/metrics"
	"tradesetup/internal/models"
	"tradesetup/internal/repository"
	"tradesetup/internal/rules"
)

const (
	DataModeAuto   = "AUTO"
	DataModeManual = "MANUAL"
)

const (
	stepMarketContext = "step1"
	stepOpenBehavior  = "step2"
	stepExecution     = "step3"
	stepTrade         = "step4"
)

// Deps is what every step service shares. Provider may be nil, in which
// case callers must supply raw inputs.
type Deps struct {
	Repo     repository.Repository
	Provider marketdata.Provider
	Flags    *SystemSettingsService
	Events   events.Publisher
	Metrics  *metrics.Metrics
	Logger   *zap.Logger
	Pipeline config.PipelineConfig
	Now      func() time.Time
}

func (d Deps) now() time.Time {
	if d.Now != nil {
		return d.Now().UTC()
	}
	return time.Now().UTC()
}

func (d Deps) log(step string, tradeDate time.Time) *zap.Logger {
	return logger.ForStep(d.Logger, step, tradeDate)
}

func (d Deps) location() *time.Location {
	if tz := strings.TrimSpace(d.Pipeline.Timezone); tz != "" {
		if loc, err := time.LoadLocation(tz); err == nil {
			return loc
		}
	}
	return time.UTC
}

// sessionOpen is the configured market open on tradeDate, in exchange time.
func (d Deps) sessionOpen(tradeDate time.Time) time.Time {
	hour, minute := 9, 15
	if v := strings.TrimSpace(d.Pipeline.OpenTime); v != "" {
		if t, err := time.Parse("15:04", v); err == nil {
			hour, minute = t.Hour(), t.Minute()
		}
	}
	y, m, day := tradeDate.Date()
	return time.Date(y, m, day, hour, minute, 0, 0, d.location())
}

func (d Deps) autoAvailable(ctx context.Context) bool {
	if d.Provider == nil {
		return false
	}
	return d.Flags.IsEnabled(ctx, FeatureMarketDataAuto, true)
}

func (d Deps) filterConfig() rules.FilterConfig {
	cfg := rules.DefaultFilterConfig()
	p := d.Pipeline
	if p.MinTradedValueCr > 0 {
		cfg.MinTradedValueCr = p.MinTradedValueCr
	}
	if p.MinATRPct > 0 {
		cfg.MinATRPct = p.MinATRPct
	}
	if p.MaxATRPct > 0 {
		cfg.MaxATRPct = p.MaxATRPct
	}
	if p.AbnormalATRMultiple > 0 {
		cfg.AbnormalATRMultiple = p.AbnormalATRMultiple
	}
	if p.RSThreshold > 0 {
		cfg.RSThreshold = p.RSThreshold
	}
	if p.GapFollowMinPct > 0 {
		cfg.GapFollowMinPct = p.GapFollowMinPct
	}
	return cfg
}

func (d Deps) publish(ctx context.Context, ev events.Event) {
	if d.Events == nil {
		return
	}
	if err := d.Events.Publish(ctx, ev); err != nil {
		if d.Logger != nil {
			d.Logger.Warn("event publish failed",
				zap.String("type", ev.Type),
				zap.String("trade_date", ev.TradeDate),
				zap.Error(err),
			)
		}
		return
	}
	d.Metrics.EventPublished(ev.Type)
}

func (d Deps) observe(step, op string, start time.Time, err error) {
	d.Metrics.ObserveStep(step, op, start, err)
}

// storeErr maps repository sentinels onto the error taxonomy. prefix names
// the step whose own row collided (STEP1, STEP2, ...).
func storeErr(prefix string, tradeDate time.Time, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := apperr.As(err); ok {
		return err
	}
	day := tradeDate.Format(models.TradeDateLayout)
	switch {
	case errors.Is(err, repository.ErrAlreadyExists):
		return apperr.Conflict(prefix+"_ALREADY_FROZEN", "%s is already frozen for %s", stepLabel(prefix), day)
	case errors.Is(err, repository.ErrMarketContextMissing):
		return apperr.Conflict("STEP1_NOT_FROZEN", "STEP-1 market context is not frozen for %s", day)
	case errors.Is(err, repository.ErrOpenBehaviorMissing):
		return apperr.Conflict("STEP2_NOT_FROZEN", "STEP-2 open behavior is not frozen for %s", day)
	case errors.Is(err, repository.ErrExecutionControlMissing):
		return apperr.Conflict("STEP3_NOT_DERIVED", "STEP-3 execution control is not derived for %s", day)
	case errors.Is(err, repository.ErrExecutionNotAllowed):
		return apperr.Conflict("EXECUTION_NOT_ALLOWED", "execution is not allowed on %s", day)
	case errors.Is(err, repository.ErrCandidateMissing):
		return apperr.Conflict("NOT_A_CANDIDATE", "symbol is not a frozen STEP-3 candidate for %s", day)
	case errors.Is(err, repository.ErrConstructionMissing):
		return apperr.Conflict("STEP4_NOT_CONSTRUCTED", "STEP-4 preview must be generated before freeze")
	case errors.Is(err, repository.ErrTradeFrozen):
		return apperr.Conflict("STEP4_ALREADY_FROZEN", "trade is already frozen; the construction can no longer change")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return apperr.Infrastructure(err, "request cancelled")
	default:
		return apperr.Infrastructure(err, "pipeline store unavailable")
	}
}

func stepLabel(prefix string) string {
	switch prefix {
	case "STEP1":
		return "STEP-1 market context"
	case "STEP2":
		return "STEP-2 open behavior"
	case "STEP3":
		return "STEP-3 candidate list"
	case "STEP4":
		return "STEP-4 trade"
	}
	return strings.ToLower(prefix)
}

func requireDate(tradeDate time.Time) (time.Time, error) {
	if tradeDate.IsZero() {
		return time.Time{}, apperr.Validation("INVALID_TRADE_DATE", "trade_date is required")
	}
	return models.TradeDay(tradeDate), nil
}

func requireSymbol(symbol string) (string, error) {
	s := rules.NormalizeSymbol(symbol)
	if s == "" {
		return "", apperr.Validation("INVALID_SYMBOL", "symbol is required")
	}
	return s, nil
}

func dateKey(t time.Time) string {
	return t.Format(models.TradeDateLayout)
}

func strPtr(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func derefStr(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
