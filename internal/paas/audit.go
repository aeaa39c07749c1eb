package paas

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"tradesetup/internal/events"
)

// Auditor records pipeline writes in the PaaS log sink. Entries are queued
// and sent by one background worker so request handlers never wait on the
// gateway. A nil Auditor or one without a client drops everything.
type Auditor struct {
	Client  *Client
	Agent   string
	Logger  *zap.Logger
	Timeout time.Duration

	mu      sync.RWMutex
	closed  bool
	queue   chan CreateLogRequest
	done    chan struct{}
	dropped atomic.Uint64
}

const defaultAuditQueue = 256

func NewAuditor(client *Client, agent string, logger *zap.Logger) *Auditor {
	return newAuditor(client, agent, logger, defaultAuditQueue)
}

func newAuditor(client *Client, agent string, logger *zap.Logger, queue int) *Auditor {
	agent = strings.TrimSpace(agent)
	if agent == "" {
		agent = "tradesetup"
	}
	a := &Auditor{Client: client, Agent: agent, Logger: logger, Timeout: 2 * time.Second}
	if client != nil {
		if queue <= 0 {
			queue = defaultAuditQueue
		}
		a.queue = make(chan CreateLogRequest, queue)
		a.done = make(chan struct{})
		go a.run()
	}
	return a
}

func (a *Auditor) Enabled() bool {
	return a != nil && a.Client != nil
}

// Record queues one log entry. A full queue drops the entry.
func (a *Auditor) Record(action, level string, details map[string]any) {
	if !a.Enabled() || a.queue == nil {
		return
	}
	req := CreateLogRequest{
		Agent:    a.Agent,
		Action:   action,
		Level:    level,
		Details:  details,
		Metadata: map[string]any{},
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return
	}
	select {
	case a.queue <- req:
	default:
		if n := a.dropped.Add(1); a.Logger != nil && (n == 1 || n%100 == 0) {
			a.Logger.Warn("paas audit queue full; dropping entries", zap.String("action", action), zap.Uint64("dropped", n))
		}
	}
}

// Dropped reports how many entries were discarded because the queue was full.
func (a *Auditor) Dropped() uint64 {
	if a == nil {
		return 0
	}
	return a.dropped.Load()
}

// Close stops accepting entries and waits until the queued ones are sent.
func (a *Auditor) Close() {
	if a == nil || a.queue == nil {
		return
	}
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		<-a.done
		return
	}
	a.closed = true
	close(a.queue)
	a.mu.Unlock()
	<-a.done
}

func (a *Auditor) run() {
	defer close(a.done)
	for req := range a.queue {
		a.send(req)
	}
}

func (a *Auditor) send(req CreateLogRequest) {
	timeout := a.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := a.Client.CreateLog(ctx, req); err != nil && a.Logger != nil {
		a.Logger.Debug("paas audit log failed", zap.String("action", req.Action), zap.Error(err))
	}
}

// Publish audits freeze and derivation events; session status ticks are
// not audited.
func (a *Auditor) Publish(_ context.Context, ev events.Event) error {
	if !a.Enabled() || ev.Type == events.TypeSessionStatus {
		return nil
	}
	a.Record("tradesetup_"+strings.ReplaceAll(ev.Type, ".", "_"), "info", map[string]any{
		"event_id":   ev.ID,
		"type":       ev.Type,
		"trade_date": ev.TradeDate,
		"symbol":     ev.Symbol,
	})
	return nil
}
