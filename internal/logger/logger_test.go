package logger

import (
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"tradesetup/internal/config"
)

func TestNew_FallsBackToInfo(t *testing.T) {
	l, err := New(config.LogConfig{Level: "verbose", Encoding: "json"})
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if l.Core().Enabled(zap.DebugLevel) {
		t.Fatalf("debug should be disabled for an unknown level")
	}
	if !l.Core().Enabled(zap.InfoLevel) {
		t.Fatalf("info should be enabled")
	}
}

func TestForStep_AddsFields(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	ForStep(zap.New(core), "step2", time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)).Info("frozen")
	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("entries=%d want=1", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["step"] != "step2" || fields["trade_date"] != "2026-01-05" {
		t.Fatalf("fields=%v", fields)
	}
}
