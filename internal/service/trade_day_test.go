package service

import (
	"context"
	"encoding/json"
	"testing"

	"tradesetup/internal/apperr"
	"tradesetup/internal/events"
	"tradesetup/internal/repository"
	"tradesetup/internal/rules"
)

func TestTradeDayStatus_Progression(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	days := &TradeDayService{Deps: h.deps}

	st, err := days.Status(ctx, tradeDay)
	if err != nil {
		t.Fatalf("status err=%v", err)
	}
	if st.Step1Frozen || st.Step4Unlocked || st.NextStep != "step1" {
		t.Fatalf("empty day=%+v", st)
	}

	h.freezeThroughStep2(t, "TREND_DAY")
	st, _ = days.Status(ctx, tradeDay)
	if !st.Step1Frozen || !st.Step2Frozen || st.TradePermission != rules.PermissionYes || st.NextStep != "step3" {
		t.Fatalf("after step2=%+v", st)
	}

	s3 := &Step3Service{Deps: h.deps}
	if _, err := s3.Freeze(ctx, CandidateRequest{TradeDate: tradeDay, Stocks: []rules.StockContext{momentumLong("INFY", 500)}, IndexMove: indexUp}); err != nil {
		t.Fatalf("step3 freeze err=%v", err)
	}
	st, _ = days.Status(ctx, tradeDay)
	if !st.CandidatesFrozen || st.CandidateCount != 1 || !st.Step4Unlocked || st.NextStep != "step4" {
		t.Fatalf("after step3=%+v", st)
	}

	s4 := &Step4Service{Deps: h.deps}
	if _, err := s4.Preview(ctx, TradePreviewRequest{TradeDate: tradeDay, Symbol: "INFY"}); err != nil {
		t.Fatalf("preview err=%v", err)
	}
	if _, err := s4.Freeze(ctx, TradeFreezeRequest{TradeDate: tradeDay, Symbol: "INFY"}); err != nil {
		t.Fatalf("freeze err=%v", err)
	}
	st, _ = days.Status(ctx, tradeDay)
	if st.TradesFrozen != 1 || st.NextStep != "DONE" {
		t.Fatalf("after step4=%+v", st)
	}
}

func TestSessionMonitor_RunOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	sub, cancel := h.bus.Subscribe(4)
	defer cancel()

	m := &SessionMonitor{Days: &TradeDayService{Deps: h.deps}}
	if err := m.RunOnce(ctx); err != nil {
		t.Fatalf("run err=%v", err)
	}
	if len(sub) != 1 {
		t.Fatalf("events=%d want=1", len(sub))
	}
	ev := <-sub
	if ev.Type != events.TypeSessionStatus || ev.TradeDate != "2026-01-12" {
		t.Fatalf("event=%+v", ev)
	}

	if err := h.deps.Flags.SetEnabled(ctx, FeatureSessionMonitor, false); err != nil {
		t.Fatalf("switch err=%v", err)
	}
	if err := m.RunOnce(ctx); err != nil {
		t.Fatalf("run err=%v", err)
	}
	if len(sub) != 0 {
		t.Fatalf("monitor should be silent when switched off")
	}
}

func TestSystemSettings(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	svc := h.deps.Flags

	if err := svc.EnsureDefaultSwitches(ctx); err != nil {
		t.Fatalf("ensure err=%v", err)
	}
	if err := svc.SetEnabled(ctx, FeatureEventStream, false); err != nil {
		t.Fatalf("set err=%v", err)
	}
	// A restart must not flip the operator's choice back.
	if err := svc.EnsureDefaultSwitches(ctx); err != nil {
		t.Fatalf("ensure err=%v", err)
	}
	if svc.IsEnabled(ctx, FeatureEventStream, true) {
		t.Fatalf("event stream should stay off")
	}
	if !svc.IsEnabled(ctx, FeatureMarketDataAuto, false) {
		t.Fatalf("market data auto should default on")
	}

	err := svc.SetEnabled(ctx, "feature.unknown", true)
	if apperr.KindOf(err) != apperr.KindNotFound {
		t.Fatalf("err=%v want not found", err)
	}

	prefix := "feature."
	items, total, err := svc.List(ctx, repository.ListSystemSettingsParams{Prefix: &prefix})
	if err != nil {
		t.Fatalf("list err=%v", err)
	}
	if total != 4 || len(items) != 4 {
		t.Fatalf("total=%d items=%d want=4", total, len(items))
	}
	for _, it := range items {
		var v bool
		if err := json.Unmarshal(it.Value, &v); err != nil {
			t.Fatalf("value %s: %v", it.Value, err)
		}
	}

	var nilSvc *SystemSettingsService
	if !nilSvc.IsEnabled(ctx, FeatureEventStream, true) {
		t.Fatalf("nil service should return the fallback")
	}
}
