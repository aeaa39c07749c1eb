package paas

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradesetup/internal/config"
	"tradesetup/internal/events"
)

type fakeGateway struct {
	mu     sync.Mutex
	logins int
	logs   []CreateLogRequest
	// hold, when set, blocks log writes until it is closed.
	hold chan struct{}
}

func (g *fakeGateway) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		g.mu.Lock()
		g.logins++
		g.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]string{"token": "tok-1", "expires_at": "2099-01-01T00:00:00Z"})
	})
	mux.HandleFunc("/api/v1/logs", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if g.hold != nil {
			<-g.hold
		}
		var req CreateLogRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode log: %v", err)
		}
		g.mu.Lock()
		g.logs = append(g.logs, req)
		g.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
	})
	return mux
}

func TestAuditor_PublishesFreezeEvents(t *testing.T) {
	gw := &fakeGateway{}
	srv := httptest.NewServer(gw.handler(t))
	defer srv.Close()

	a := NewAuditor(NewClient(srv.URL, "key-1"), "", nil)
	require.True(t, a.Enabled())

	require.NoError(t, a.Publish(context.Background(), events.New(events.TypeTradeFrozen, "2026-01-12", "INFY", nil)))
	require.NoError(t, a.Publish(context.Background(), events.New(events.TypeSessionStatus, "2026-01-12", "", nil)))
	a.Close()

	gw.mu.Lock()
	defer gw.mu.Unlock()
	assert.Equal(t, 1, gw.logins)
	require.Len(t, gw.logs, 1)
	assert.Equal(t, "tradesetup", gw.logs[0].Agent)
	assert.Equal(t, "tradesetup_step4_frozen", gw.logs[0].Action)
	assert.Equal(t, "INFY", gw.logs[0].Details["symbol"])
}

func TestAuditor_RecordDoesNotWaitForGateway(t *testing.T) {
	gw := &fakeGateway{hold: make(chan struct{})}
	srv := httptest.NewServer(gw.handler(t))
	defer srv.Close()

	a := newAuditor(NewClient(srv.URL, "key-1"), "", nil, 2)
	start := time.Now()
	for i := 0; i < 10; i++ {
		a.Record("tradesetup_http_write", "info", map[string]any{"i": i})
	}
	assert.Less(t, time.Since(start), time.Second)
	// One entry is in flight and two are queued; the rest are dropped.
	assert.GreaterOrEqual(t, a.Dropped(), uint64(7))

	close(gw.hold)
	a.Close()
	a.Close()
	a.Record("after_close", "info", nil)

	gw.mu.Lock()
	defer gw.mu.Unlock()
	assert.Equal(t, uint64(10)-a.Dropped(), uint64(len(gw.logs)))
}

func TestAuditor_Disabled(t *testing.T) {
	assert.Nil(t, NewClient(" ", "key"))
	a := NewAuditor(nil, "x", nil)
	assert.False(t, a.Enabled())
	assert.NoError(t, a.Publish(context.Background(), events.New(events.TypeTradeFrozen, "2026-01-12", "INFY", nil)))

	var nilAuditor *Auditor
	nilAuditor.Record("noop", "info", nil)
	nilAuditor.Close()
	a.Close()
}

func TestRequireBearerMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequireBearerMiddleware(config.PaaSConfig{RequireGateway: true}))
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/api/v1/trade-days", func(c *gin.Context) { c.Status(http.StatusOK) })

	cases := []struct {
		name    string
		path    string
		headers map[string]string
		want    int
	}{
		{name: "health is open", path: "/healthz", want: http.StatusOK},
		{name: "missing token", path: "/api/v1/trade-days", want: http.StatusUnauthorized},
		{name: "missing project", path: "/api/v1/trade-days", headers: map[string]string{"Authorization": "Bearer x"}, want: http.StatusUnauthorized},
		{name: "through gateway", path: "/api/v1/trade-days", headers: map[string]string{"Authorization": "Bearer x", "X-Easyweb3-Project": "p1"}, want: http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			for k, v := range tc.headers {
				req.Header.Set(k, v)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tc.want, w.Code)
		})
	}
}
