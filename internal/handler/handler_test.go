package handler

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"tradesetup/internal/config"
	"tradesetup/internal/events"
	"tradesetup/internal/metrics"
	gormrepository "tradesetup/internal/repository/gorm"
	"tradesetup/internal/rules"
	"tradesetup/internal/service"
	"tradesetup/internal/testutil"
)

type testServer struct {
	engine   *gin.Engine
	bus      *events.Bus
	settings *service.SystemSettingsService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	d := testutil.OpenSQLite(t)
	repo := gormrepository.New(d.Gorm)
	bus := events.NewBus()
	journal := &service.JournalService{}
	settings := &service.SystemSettingsService{Repo: repo}
	if err := settings.EnsureDefaultSwitches(context.Background()); err != nil {
		t.Fatalf("ensure switches: %v", err)
	}

	now := time.Date(2026, 1, 12, 4, 30, 0, 0, time.UTC)
	deps := service.Deps{
		Repo:   repo,
		Flags:  settings,
		Events: events.Multi{bus, journal},
		Logger: zap.NewNop(),
		Pipeline: config.PipelineConfig{
			Timezone:           "Asia/Kolkata",
			OpenTime:           "09:15",
			IRCandles:          6,
			DefaultCapital:     100000,
			DefaultRiskPercent: 1,
			DefaultRMultiple:   2,
		},
		Now: func() time.Time { return now },
	}
	journal.Deps = deps
	step1 := &service.Step1Service{Deps: deps}
	engine := NewRouter(RouterOptions{
		PaaS:    config.PaaSConfig{AuthDisabled: true},
		Metrics: metrics.New(),
		Handlers: []Registrar{
			&HealthHandler{DB: d.Gorm},
			&Step1Handler{Service: step1},
			&Step2Handler{Service: &service.Step2Service{Deps: deps}},
			&Step3Handler{Service: &service.Step3Service{Deps: deps}},
			&Step4Handler{Service: &service.Step4Service{Deps: deps}},
			&TradeDayHandler{Step1: step1, Days: &service.TradeDayService{Deps: deps}},
			&JournalHandler{Service: journal},
			&SystemSettingsHandler{Settings: settings},
			&EventStreamHandler{Bus: bus, Settings: settings},
		},
	})
	return &testServer{engine: engine, bus: bus, settings: settings}
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Meta    map[string]any  `json:"meta"`
}

func (s *testServer) do(t *testing.T, method, path string, body any) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	var env envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return w.Code, env
}

func decodeData(t *testing.T, env envelope) map[string]any {
	t.Helper()
	out := map[string]any{}
	if err := json.Unmarshal(env.Data, &out); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	return out
}

func wantStatus(t *testing.T, code, want int, env envelope) {
	t.Helper()
	if code != want {
		t.Fatalf("status=%d want=%d message=%q meta=%v", code, want, env.Message, env.Meta)
	}
}

func wantErrorCode(t *testing.T, env envelope, want string) {
	t.Helper()
	if got := env.Meta["error_code"]; got != want {
		t.Fatalf("error_code=%v want=%s", got, want)
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
			Time: start.Add(time.Duration(i) * 5 * time.Minute),
			Open: v[0], High: v[1], Low: v[2], Close: v[3], Volume: 1000,
		})
	}
	return out
}

func step1Body() map[string]any {
	return map[string]any{
		"final_market_context": "TREND_DAY",
		"final_reason":         "gap holding above yesterday high",
		"inputs": rules.MarketContextInputs{
			YesterdayClose: 100,
			YesterdayHigh:  110,
			YesterdayLow:   95,
			Day2High:       94,
			Day2Low:        90,
			Last5DayRanges: []float64{10, 10, 10, 10, 10},
			PreOpenPrice:   101.5,
		},
	}
}

func candidatesBody() map[string]any {
	f := func(v float64) *float64 { return &v }
	return map[string]any{
		"stocks": []rules.StockContext{{
			Symbol:           "INFY",
			AvgTradedValueCr: 500,
			ATR:              30,
			YesterdayHigh:    1510,
			YesterdayLow:     1480,
			YesterdayClose:   1500,
			Open0915:         1500,
			CurrentPrice:     1530,
			StructureValid:   true,
			PriceVsVWAP:      rules.PriceAboveVWAP,
			Levels: rules.Levels{
				IntradayHigh:  f(1532),
				IntradayLow:   f(1498),
				LastHigherLow: f(1520),
				VWAP:          f(1518),
			},
		}},
		"index_move": rules.IndexMove{Open0915: 100, CurrentPrice: 100.5},
	}
}

func TestRoutes_PipelineFlow(t *testing.T) {
	s := newTestServer(t)

	code, env := s.do(t, http.MethodPost, "/api/v1/step2/2026-01-12/preview", map[string]any{"candles": openingCandles(), "baseline_range": 2.5})
	wantStatus(t, code, http.StatusConflict, env)
	wantErrorCode(t, env, "STEP1_NOT_FROZEN")

	code, env = s.do(t, http.MethodPost, "/api/v1/step1/2026-01-12/freeze", step1Body())
	wantStatus(t, code, http.StatusOK, env)
	if v := decodeData(t, env)["frozen"]; v != true {
		t.Fatalf("frozen=%v", v)
	}

	code, env = s.do(t, http.MethodPost, "/api/v1/step1/2026-01-12/freeze", step1Body())
	wantStatus(t, code, http.StatusConflict, env)

	code, env = s.do(t, http.MethodPost, "/api/v1/step2/2026-01-12/freeze", map[string]any{"candles": openingCandles(), "baseline_range": 2.5})
	wantStatus(t, code, http.StatusOK, env)
	if v := decodeData(t, env)["trade_permission"]; v != rules.PermissionYes {
		t.Fatalf("trade_permission=%v want=%s", v, rules.PermissionYes)
	}

	code, env = s.do(t, http.MethodPost, "/api/v1/step3/2026-01-12/execution", nil)
	wantStatus(t, code, http.StatusOK, env)
	if v := decodeData(t, env)["execution_allowed"]; v != true {
		t.Fatalf("execution_allowed=%v", v)
	}

	code, env = s.do(t, http.MethodPost, "/api/v1/step3/2026-01-12/freeze", candidatesBody())
	wantStatus(t, code, http.StatusOK, env)
	if c, _ := decodeData(t, env)["candidates"].([]any); len(c) != 1 {
		t.Fatalf("candidates=%v want 1", c)
	}

	code, env = s.do(t, http.MethodPost, "/api/v1/step4/2026-01-12/infy/preview", nil)
	wantStatus(t, code, http.StatusOK, env)
	cons := decodeData(t, env)
	if cons["quantity"] != float64(83) || cons["entry_price"] != "1532" {
		t.Fatalf("construction quantity=%v entry=%v", cons["quantity"], cons["entry_price"])
	}

	code, env = s.do(t, http.MethodPost, "/api/v1/step4/2026-01-12/INFY/freeze", map[string]any{"entry_price": "1531", "rationale": "x"})
	wantStatus(t, code, http.StatusConflict, env)
	wantErrorCode(t, env, "ECHO_MISMATCH")

	code, env = s.do(t, http.MethodPost, "/api/v1/step4/2026-01-12/INFY/freeze", map[string]any{"entry_price": "1532", "quantity": 83, "rationale": "momentum above vwap"})
	wantStatus(t, code, http.StatusOK, env)
	if v := decodeData(t, env)["trade_id"]; v == "" || v == nil {
		t.Fatalf("trade_id missing")
	}

	code, env = s.do(t, http.MethodGet, "/api/v1/trade-days/2026-01-12", nil)
	wantStatus(t, code, http.StatusOK, env)
	status := decodeData(t, env)
	if status["next_step"] != "DONE" || status["trades_frozen"] != float64(1) {
		t.Fatalf("status next=%v trades=%v", status["next_step"], status["trades_frozen"])
	}

	code, env = s.do(t, http.MethodGet, "/api/v1/trade-days?limit=10", nil)
	wantStatus(t, code, http.StatusOK, env)
	if env.Meta["total"] != float64(1) || env.Meta["has_next"] != false {
		t.Fatalf("meta=%v", env.Meta)
	}

	code, env = s.do(t, http.MethodGet, "/api/v1/journal/plans?status=planned", nil)
	wantStatus(t, code, http.StatusOK, env)
	var plans []map[string]any
	if err := json.Unmarshal(env.Data, &plans); err != nil || len(plans) != 1 {
		t.Fatalf("plans=%v err=%v want 1 seeded plan", plans, err)
	}
	if plans[0]["symbol"] != "INFY" || plans[0]["planned_entry_price"] != "1532" || plans[0]["trade_mode"] != "PAPER" {
		t.Fatalf("plan=%v", plans[0])
	}
	planID := int(plans[0]["id"].(float64))

	code, env = s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/journal/plans/%d/execute", planID), nil)
	wantStatus(t, code, http.StatusOK, env)
	trade, _ := decodeData(t, env)["trade"].(map[string]any)
	if trade == nil || trade["side"] != "BUY" || trade["result"] != "open" {
		t.Fatalf("trade=%v", trade)
	}
	tradeID := int(trade["id"].(float64))

	code, env = s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/journal/trades/%d/review", tradeID), map[string]any{
		"exit_reason": "TARGET_HIT", "emotional_state": "CALM", "market_context": "TRENDING",
		"learning_insight": "patience", "trade_grade": "A",
	})
	wantStatus(t, code, http.StatusBadRequest, env)
	wantErrorCode(t, env, "TRADE_NOT_EXITED")

	code, env = s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/journal/trades/%d/exit", tradeID), map[string]any{
		"exit_price": "1557", "exit_reason": "target", "exit_timestamp": "2026-01-12T06:00:00Z",
	})
	wantStatus(t, code, http.StatusOK, env)
	closed := decodeData(t, env)
	if closed["pnl_amount"] != "2075" || closed["result"] != "profit" || closed["duration_seconds"] != float64(5400) {
		t.Fatalf("closed=%v", closed)
	}

	code, env = s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/journal/trades/%d/exit", tradeID), map[string]any{"exit_price": "1560", "exit_reason": "again"})
	wantStatus(t, code, http.StatusConflict, env)
	wantErrorCode(t, env, "TRADE_ALREADY_EXITED")

	code, env = s.do(t, http.MethodGet, "/api/v1/journal/calendar?year=2026&month=1", nil)
	wantStatus(t, code, http.StatusOK, env)
	days, _ := decodeData(t, env)["days"].(map[string]any)
	day, _ := days["2026-01-12"].(map[string]any)
	if day == nil || day["trade_count"] != float64(1) || day["pnl"] != "2075" {
		t.Fatalf("calendar days=%v", days)
	}
}

func TestRoutes_JournalErrors(t *testing.T) {
	s := newTestServer(t)

	code, env := s.do(t, http.MethodGet, "/api/v1/journal/plans/abc", nil)
	wantStatus(t, code, http.StatusBadRequest, env)
	wantErrorCode(t, env, "INVALID_ID")

	code, env = s.do(t, http.MethodGet, "/api/v1/journal/plans/42", nil)
	wantStatus(t, code, http.StatusNotFound, env)
	wantErrorCode(t, env, "PLAN_NOT_FOUND")

	code, env = s.do(t, http.MethodPost, "/api/v1/journal/plans", map[string]any{"plan_date": "12/01/2026"})
	wantStatus(t, code, http.StatusBadRequest, env)
	wantErrorCode(t, env, "INVALID_PLAN_DATE")

	code, env = s.do(t, http.MethodPost, "/api/v1/journal/plans", map[string]any{
		"plan_date": "2026-01-12", "symbol": "SBIN", "strategy": "PULLBACK", "position_type": "LONG",
		"setup_description": "higher low", "planned_entry_price": "800", "planned_stop_price": "794",
		"planned_position_size": 10,
	})
	wantStatus(t, code, http.StatusOK, env)
	plan := decodeData(t, env)
	if plan["plan_status"] != "PLANNED" || plan["planned_risk_amount"] != "60" {
		t.Fatalf("plan=%v", plan)
	}
	planID := int(plan["id"].(float64))

	code, env = s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/journal/plans/%d/not-taken", planID), map[string]any{"not_taken_reason": "no volume"})
	wantStatus(t, code, http.StatusOK, env)
	code, env = s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/journal/plans/%d/execute", planID), nil)
	wantStatus(t, code, http.StatusConflict, env)
	wantErrorCode(t, env, "PLAN_NOT_PLANNED")

	code, env = s.do(t, http.MethodGet, "/api/v1/journal/calendar?year=2026&month=13", nil)
	wantStatus(t, code, http.StatusBadRequest, env)
	wantErrorCode(t, env, "INVALID_MONTH")
}

func TestRoutes_Validation(t *testing.T) {
	s := newTestServer(t)

	code, env := s.do(t, http.MethodGet, "/api/v1/step1/12-01-2026", nil)
	wantStatus(t, code, http.StatusBadRequest, env)
	wantErrorCode(t, env, "INVALID_TRADE_DATE")

	code, env = s.do(t, http.MethodPost, "/api/v1/step1/2026-01-12/freeze", map[string]any{"final_market_context": "SIDEWAYS"})
	wantStatus(t, code, http.StatusBadRequest, env)
	wantErrorCode(t, env, "INVALID_MARKET_CONTEXT")

	blank := step1Body()
	blank["final_reason"] = "  "
	code, env = s.do(t, http.MethodPost, "/api/v1/step1/2026-01-12/freeze", blank)
	wantStatus(t, code, http.StatusBadRequest, env)
	wantErrorCode(t, env, "REASON_REQUIRED")

	code, env = s.do(t, http.MethodGet, "/api/v1/step1/2026-01-12", nil)
	wantStatus(t, code, http.StatusOK, env)
	view := decodeData(t, env)
	if view["frozen"] != false || view["can_freeze"] != true {
		t.Fatalf("frozen=%v can_freeze=%v", view["frozen"], view["can_freeze"])
	}

	code, env = s.do(t, http.MethodPost, "/api/v1/step4/2026-01-12/INFY/preview", nil)
	wantStatus(t, code, http.StatusConflict, env)
	wantErrorCode(t, env, "STEP1_NOT_FROZEN")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/step3/2026-01-12/compute", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("malformed body status=%d want=400", w.Code)
	}
}

func TestRoutes_SystemSettings(t *testing.T) {
	s := newTestServer(t)

	code, env := s.do(t, http.MethodGet, "/api/v1/system-settings?prefix=feature.", nil)
	wantStatus(t, code, http.StatusOK, env)
	if env.Meta["total"] != float64(4) {
		t.Fatalf("total=%v want=4", env.Meta["total"])
	}

	code, env = s.do(t, http.MethodPut, "/api/v1/system-settings/switches/event_stream", map[string]any{"enabled": false})
	wantStatus(t, code, http.StatusOK, env)

	code, env = s.do(t, http.MethodGet, "/api/v1/system-settings/switches/event_stream", nil)
	wantStatus(t, code, http.StatusOK, env)
	if v := decodeData(t, env)["enabled"]; v != false {
		t.Fatalf("enabled=%v want=false", v)
	}

	code, env = s.do(t, http.MethodPut, "/api/v1/system-settings/switches/nope", map[string]any{"enabled": true})
	wantStatus(t, code, http.StatusNotFound, env)
	wantErrorCode(t, env, "UNKNOWN_SETTING")

	code, env = s.do(t, http.MethodPut, "/api/v1/system-settings/switches/event_stream", map[string]any{})
	wantStatus(t, code, http.StatusBadRequest, env)

	code, env = s.do(t, http.MethodGet, "/api/v1/events/ws", nil)
	wantStatus(t, code, http.StatusServiceUnavailable, env)
	wantErrorCode(t, env, "FEATURE_DISABLED")
}

func TestRoutes_HealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	code, env := s.do(t, http.MethodGet, "/healthz", nil)
	wantStatus(t, code, http.StatusOK, env)

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("readyz status=%d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"market_data":"disabled"`) {
		t.Fatalf("readyz body=%s", w.Body.String())
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Fatalf("missing X-Request-ID")
	}

	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w = httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "tradesetup_http_requests_total") {
		t.Fatalf("metrics status=%d", w.Code)
	}
}

func TestWriteRateLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(WriteRateLimit(0.001, 1))
	r.POST("/api/v1/x", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/api/v1/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	want := []int{http.StatusOK, http.StatusTooManyRequests, http.StatusOK}
	for i, method := range []string{http.MethodPost, http.MethodPost, http.MethodGet} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(method, "/api/v1/x", nil))
		if w.Code != want[i] {
			t.Fatalf("request %d %s status=%d want=%d", i, method, w.Code, want[i])
		}
	}
}

func TestEventStream(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.engine)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/events/ws?types=" + events.TypeTradeFrozen
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	deadline := time.Now().Add(2 * time.Second)
	for s.bus.Subscribers() != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("subscribers=%d want=1", s.bus.Subscribers())
		}
		time.Sleep(10 * time.Millisecond)
	}

	if err := s.bus.Publish(ctx, events.New(events.TypeSessionStatus, "2026-01-12", "", nil)); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := s.bus.Publish(ctx, events.New(events.TypeTradeFrozen, "2026-01-12", "INFY", nil)); err != nil {
		t.Fatalf("publish: %v", err)
	}

	var got events.Event
	if err := wsjson.Read(ctx, conn, &got); err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.Type != events.TypeTradeFrozen || got.Symbol != "INFY" {
		t.Fatalf("event=%+v", got)
	}
}

func TestUpgradeWriter_SendsStatusAfterHijack(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/upgrade", func(c *gin.Context) {
		w := &upgradeWriter{rw: c.Writer}
		w.Header().Set("Upgrade", "test")
		w.Header().Set("Connection", "Upgrade")
		w.WriteHeader(http.StatusSwitchingProtocols)
		conn, brw, err := w.Hijack()
		if err != nil {
			t.Errorf("hijack: %v", err)
			return
		}
		defer conn.Close()
		brw.WriteString("ok")
		brw.Flush()
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	conn, err := net.Dial("tcp", strings.TrimPrefix(srv.URL, "http://"))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(2 * time.Second))
	if _, err := conn.Write([]byte("GET /upgrade HTTP/1.1\r\nHost: test\r\n\r\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	br := bufio.NewReader(conn)
	resp, err := http.ReadResponse(br, nil)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	if resp.StatusCode != http.StatusSwitchingProtocols || resp.Header.Get("Upgrade") != "test" {
		t.Fatalf("status=%d upgrade=%q", resp.StatusCode, resp.Header.Get("Upgrade"))
	}
	rest := make([]byte, 2)
	if _, err := io.ReadFull(br, rest); err != nil || string(rest) != "ok" {
		t.Fatalf("payload=%q err=%v", rest, err)
	}
}

func TestEventFilter(t *testing.T) {
	f := newEventFilter("2026-01-12", "step1.frozen, step2.frozen")
	cases := []struct {
		ev   events.Event
		want bool
	}{
		{events.Event{Type: "step1.frozen", TradeDate: "2026-01-12"}, true},
		{events.Event{Type: "step1.frozen", TradeDate: "2026-01-13"}, false},
		{events.Event{Type: "step4.frozen", TradeDate: "2026-01-12"}, false},
	}
	for _, tc := range cases {
		if got := f.match(tc.ev); got != tc.want {
			t.Fatalf("match(%+v)=%v want=%v", tc.ev, got, tc.want)
		}
	}
	if !newEventFilter("", "").match(events.Event{Type: "anything"}) {
		t.Fatalf("empty filter should match everything")
	}
}
