package metrics

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"tradesetup/internal/apperr"
)

func TestObserveStep(t *testing.T) {
	m := New()
	start := time.Now()
	m.ObserveStep("step1", "freeze", start, nil)
	m.ObserveStep("step1", "freeze", start, apperr.Conflict("STEP1_ALREADY_FROZEN", "frozen"))
	m.ObserveStep("step1", "freeze", start, errors.New("raw"))

	if v := testutil.ToFloat64(m.stepOps.WithLabelValues("step1", "freeze", "ok")); v != 1 {
		t.Fatalf("ok=%v want=1", v)
	}
	if v := testutil.ToFloat64(m.stepOps.WithLabelValues("step1", "freeze", "conflict")); v != 1 {
		t.Fatalf("conflict=%v want=1", v)
	}
	if v := testutil.ToFloat64(m.stepOps.WithLabelValues("step1", "freeze", "unknown")); v != 1 {
		t.Fatalf("unknown=%v want=1", v)
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveStep("step2", "preview", time.Now(), nil)
	m.ObserveHTTP("GET", "/healthz", 200, time.Millisecond)
	m.EventPublished("step2.frozen")
}

func TestHandlerExposesSeries(t *testing.T) {
	m := New()
	m.ObserveHTTP("POST", "/api/v1/step1/freeze", 409, 5*time.Millisecond)
	m.EventPublished("step1.frozen")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()
	for _, want := range []string{
		`tradesetup_http_requests_total{method="POST",route="/api/v1/step1/freeze",status="409"} 1`,
		`tradesetup_events_published_total{type="step1.frozen"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics output missing %q", want)
		}
	}
}
