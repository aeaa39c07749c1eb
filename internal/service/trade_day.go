package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"tradesetup/internal/events"
	"tradesetup/internal/rules"
)

// TradeDayStatus reports every gate for one trade date.
type TradeDayStatus struct {
	TradeDate          string `json:"trade_date"`
	Step1Frozen        bool   `json:"step1_frozen"`
	FinalMarketContext string `json:"final_market_context,omitempty"`
	Step2Frozen        bool   `json:"step2_frozen"`
	TradePermission    string `json:"trade_permission,omitempty"`
	ExecutionDerived   bool   `json:"execution_derived"`
	ExecutionAllowed   bool   `json:"execution_allowed"`
	MaxTradesAllowed   int    `json:"max_trades_allowed"`
	CandidatesFrozen   bool   `json:"candidates_frozen"`
	CandidateCount     int    `json:"candidate_count"`
	Step4Unlocked      bool   `json:"step4_unlocked"`
	TradesFrozen       int64  `json:"trades_frozen"`
	// NextStep names the first step still open, or DONE.
	NextStep string `json:"next_step"`
}

type TradeDayService struct {
	Deps
}

func (s *TradeDayService) Status(ctx context.Context, tradeDate time.Time) (*TradeDayStatus, error) {
	day, err := requireDate(tradeDate)
	if err != nil {
		return nil, err
	}
	st := &TradeDayStatus{TradeDate: dateKey(day)}

	mc, err := s.Repo.GetMarketContext(ctx, day)
	if err != nil {
		return nil, storeErr("STEP1", day, err)
	}
	if mc != nil {
		st.Step1Frozen = true
		st.FinalMarketContext = mc.FinalMarketContext
	}
	ob, err := s.Repo.GetOpenBehavior(ctx, day)
	if err != nil {
		return nil, storeErr("STEP2", day, err)
	}
	if ob != nil {
		st.Step2Frozen = true
		st.TradePermission = ob.TradePermission
	}
	ec, err := s.Repo.GetExecutionControl(ctx, day)
	if err != nil {
		return nil, storeErr("STEP3", day, err)
	}
	if ec != nil {
		st.ExecutionDerived = true
		st.ExecutionAllowed = ec.ExecutionAllowed
		st.MaxTradesAllowed = ec.MaxTradesAllowed
		st.CandidatesFrozen = ec.CandidatesFrozenAt != nil
	}
	if st.CandidatesFrozen {
		rows, err := s.Repo.ListStockSelections(ctx, day)
		if err != nil {
			return nil, storeErr("STEP3", day, err)
		}
		st.CandidateCount = len(rows)
	}
	st.TradesFrozen, err = s.Repo.CountTrades(ctx, day)
	if err != nil {
		return nil, storeErr("STEP4", day, err)
	}

	st.Step4Unlocked = st.Step1Frozen && st.Step2Frozen &&
		st.TradePermission != rules.PermissionNo &&
		st.ExecutionAllowed && st.CandidatesFrozen && st.CandidateCount > 0
	st.NextStep = nextStep(st)
	return st, nil
}

func nextStep(st *TradeDayStatus) string {
	switch {
	case !st.Step1Frozen:
		return stepMarketContext
	case !st.Step2Frozen:
		return stepOpenBehavior
	case !st.ExecutionDerived || (st.ExecutionAllowed && !st.CandidatesFrozen):
		return stepExecution
	case st.Step4Unlocked && st.TradesFrozen < int64(st.CandidateCount):
		return stepTrade
	}
	return "DONE"
}

// SessionMonitor periodically reports today's pipeline status.
type SessionMonitor struct {
	Days *TradeDayService
}

// RunOnce logs and publishes the status for the current exchange date. It
// is a no-op when the session monitor switch is off.
func (m *SessionMonitor) RunOnce(ctx context.Context) error {
	if m == nil || m.Days == nil {
		return nil
	}
	d := m.Days.Deps
	if !d.Flags.IsEnabled(ctx, FeatureSessionMonitor, true) {
		return nil
	}
	today := d.now().In(d.location())
	st, err := m.Days.Status(ctx, today)
	if err != nil {
		if d.Logger != nil {
			d.Logger.Warn("session monitor status failed", zap.Error(err))
		}
		return err
	}
	d.log("monitor", today).Info("session status",
		zap.Bool("step1_frozen", st.Step1Frozen),
		zap.Bool("step2_frozen", st.Step2Frozen),
		zap.Bool("execution_allowed", st.ExecutionAllowed),
		zap.Bool("candidates_frozen", st.CandidatesFrozen),
		zap.Int64("trades_frozen", st.TradesFrozen),
		zap.String("next_step", st.NextStep),
	)
	d.publish(ctx, events.New(events.TypeSessionStatus, st.TradeDate, "", st))
	return nil
}
