package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	TypeMarketContextFrozen = "step1.frozen"
	TypeOpenBehaviorFrozen  = "step2.frozen"
	TypeExecutionDerived    = "step3.execution_derived"
	TypeCandidatesFrozen    = "step3.candidates_frozen"
	TypeTradeConstructed    = "step4.constructed"
	TypeTradeFrozen         = "step4.frozen"
	TypeSessionStatus       = "session.status"

	TypeJournalPlanCreated  = "journal.plan_created"
	TypeJournalPlanNotTaken = "journal.plan_not_taken"
	TypeJournalExecuted     = "journal.executed"
	TypeJournalExited       = "journal.exited"
	TypeJournalReviewed     = "journal.reviewed"
)

// Event is a pipeline state change. Payload is the row or snapshot that
// changed, encoded as-is.
type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	TradeDate string    `json:"trade_date"`
	Symbol    string    `json:"symbol,omitempty"`
	Payload   any       `json:"payload,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func New(eventType, tradeDate, symbol string, payload any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		TradeDate: tradeDate,
		Symbol:    symbol,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// Multi publishes to every publisher and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, ev Event) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Bus fans events out to in-process subscribers. Publish never blocks: a
// subscriber whose buffer is full misses the event.
type Bus struct {
	mu      sync.RWMutex
	subs    map[uint64]chan Event
	nextID  uint64
	dropped uint64
}

func NewBus() *Bus {
	return &Bus{subs: map[uint64]chan Event{}}
}

// Subscribe returns the event channel and a cancel func that closes it.
func (b *Bus) Subscribe(buf int) (<-chan Event, func()) {
	if buf <= 0 {
		buf = 16
	}
	ch := make(chan Event, buf)

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
}

func (b *Bus) Publish(_ context.Context, ev Event) error {
	if b == nil {
		return nil
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			atomic.AddUint64(&b.dropped, 1)
		}
	}
	return nil
}

func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

func (b *Bus) Dropped() uint64 {
	return atomic.LoadUint64(&b.dropped)
}

// RedisPublisher publishes JSON-encoded events to one pub/sub channel.
type RedisPublisher struct {
	client  redis.Cmdable
	channel string
}

func NewRedisPublisher(client redis.Cmdable, channel string) *RedisPublisher {
	if channel == "" {
		channel = "tradesetup.events"
	}
	return &RedisPublisher{client: client, channel: channel}
}

func (p *RedisPublisher) Publish(ctx context.Context, ev Event) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, p.channel, string(raw)).Err()
}

// Logged wraps a publisher so failures are logged instead of returned.
// Freezes have already committed when events go out.
type Logged struct {
	Next   Publisher
	Logger *zap.Logger
}

func (l Logged) Publish(ctx context.Context, ev Event) error {
	if l.Next == nil {
		return nil
	}
	if err := l.Next.Publish(ctx, ev); err != nil && l.Logger != nil {
		l.Logger.Warn("event publish failed",
			zap.String("type", ev.Type),
			zap.String("trade_date", ev.TradeDate),
			zap.String("symbol", ev.Symbol),
			zap.Error(err),
		)
	}
	return nil
}
