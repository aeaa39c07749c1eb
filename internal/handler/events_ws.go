package handler

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"tradesetup/internal/events"
	"tradesetup/internal/service"
)

// EventStreamHandler pushes pipeline events to websocket clients.
type EventStreamHandler struct {
	Bus      *events.Bus
	Settings *service.SystemSettingsService
	Logger   *zap.Logger

	Heartbeat    time.Duration
	WriteTimeout time.Duration
}

func (h *EventStreamHandler) Register(r *gin.Engine) {
	r.GET("/api/v1/events/ws", h.stream)
}

// @Summary Pipeline event stream
// @Description Websocket of freeze and status events. Filter with trade_date or a comma separated type list.
// @Tags events
// @Param trade_date query string false "only events for this trade date"
// @Param types query string false "comma separated event types"
// @Success 101
// @Failure 503 {object} apiResponse
// @Router /api/v1/events/ws [get]
func (h *EventStreamHandler) stream(c *gin.Context) {
	if h.Bus == nil {
		Error(c, http.StatusInternalServerError, "event bus unavailable", nil)
		return
	}
	if !h.Settings.IsEnabled(c.Request.Context(), service.FeatureEventStream, true) {
		Error(c, http.StatusServiceUnavailable, "event stream disabled", map[string]any{"error_code": "FEATURE_DISABLED"})
		return
	}
	filter := newEventFilter(c.Query("trade_date"), c.Query("types"))

	conn, err := websocket.Accept(&upgradeWriter{rw: c.Writer}, c.Request, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		if h.Logger != nil {
			h.Logger.Warn("websocket accept failed", zap.Error(err))
		}
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream ended")

	ch, cancel := h.Bus.Subscribe(64)
	defer cancel()

	// Clients never send; CloseRead handles control frames and cancels on close.
	ctx := conn.CloseRead(c.Request.Context())

	heartbeat := h.Heartbeat
	if heartbeat <= 0 {
		heartbeat = 30 * time.Second
	}
	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case ev, ok := <-ch:
			if !ok {
				conn.Close(websocket.StatusGoingAway, "bus closed")
				return
			}
			if !filter.match(ev) {
				continue
			}
			if err := h.write(ctx, conn, ev); err != nil {
				if h.Logger != nil && ctx.Err() == nil {
					h.Logger.Debug("websocket write failed", zap.Error(err))
				}
				return
			}
		case <-ticker.C:
			pingCtx, cancelPing := context.WithTimeout(ctx, h.writeTimeout())
			err := conn.Ping(pingCtx)
			cancelPing()
			if err != nil {
				return
			}
		}
	}
}

func (h *EventStreamHandler) write(ctx context.Context, conn *websocket.Conn, ev events.Event) error {
	ctx, cancel := context.WithTimeout(ctx, h.writeTimeout())
	defer cancel()
	return wsjson.Write(ctx, conn, ev)
}

func (h *EventStreamHandler) writeTimeout() time.Duration {
	if h.WriteTimeout > 0 {
		return h.WriteTimeout
	}
	return 5 * time.Second
}

// upgradeWriter lets the websocket handshake hijack a gin writer. gin refuses
// to hijack once WriteHeaderNow has run, so the wrapper hides that method and
// sends the recorded status line itself after taking the connection.
type upgradeWriter struct {
	rw     gin.ResponseWriter
	status int
}

func (w *upgradeWriter) Header() http.Header { return w.rw.Header() }

func (w *upgradeWriter) Write(b []byte) (int, error) { return w.rw.Write(b) }

func (w *upgradeWriter) WriteHeader(code int) {
	w.status = code
	w.rw.WriteHeader(code)
}

func (w *upgradeWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	conn, brw, err := w.rw.Hijack()
	if err != nil {
		return nil, nil, err
	}
	if w.status == 0 {
		return conn, brw, nil
	}
	fmt.Fprintf(brw, "HTTP/1.1 %d %s\r\n", w.status, http.StatusText(w.status))
	if err := w.rw.Header().Write(brw); err != nil {
		conn.Close()
		return nil, nil, err
	}
	if _, err := brw.WriteString("\r\n"); err != nil {
		conn.Close()
		return nil, nil, err
	}
	if err := brw.Flush(); err != nil {
		conn.Close()
		return nil, nil, err
	}
	return conn, brw, nil
}

type eventFilter struct {
	tradeDate string
	types     map[string]struct{}
}

func newEventFilter(tradeDate, types string) eventFilter {
	f := eventFilter{tradeDate: strings.TrimSpace(tradeDate)}
	for _, t := range strings.Split(types, ",") {
		if t = strings.TrimSpace(t); t != "" {
			if f.types == nil {
				f.types = map[string]struct{}{}
			}
			f.types[t] = struct{}{}
		}
	}
	return f
}

func (f eventFilter) match(ev events.Event) bool {
	if f.tradeDate != "" && ev.TradeDate != f.tradeDate {
		return false
	}
	if f.types != nil {
		if _, ok := f.types[ev.Type]; !ok {
			return false
		}
	}
	return true
}
