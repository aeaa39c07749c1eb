package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_FanoutAndCancel(t *testing.T) {
	bus := NewBus()
	a, cancelA := bus.Subscribe(4)
	b, cancelB := bus.Subscribe(4)
	defer cancelB()

	ev := New(TypeMarketContextFrozen, "2026-01-12", "", map[string]string{"final_market_context": "TREND_DAY"})
	require.NoError(t, bus.Publish(context.Background(), ev))
	for _, ch := range []<-chan Event{a, b} {
		select {
		case got := <-ch:
			assert.Equal(t, ev.ID, got.ID)
			assert.Equal(t, TypeMarketContextFrozen, got.Type)
		case <-time.After(time.Second):
			t.Fatalf("subscriber did not receive event")
		}
	}

	cancelA()
	cancelA()
	assert.Equal(t, 1, bus.Subscribers())
	_, ok := <-a
	assert.False(t, ok, "cancelled channel should be closed")
}

func TestBus_DropsWhenSubscriberIsFull(t *testing.T) {
	bus := NewBus()
	_, cancel := bus.Subscribe(1)
	defer cancel()

	for i := 0; i < 3; i++ {
		_ = bus.Publish(context.Background(), New(TypeSessionStatus, "2026-01-12", "", nil))
	}
	assert.EqualValues(t, 2, bus.Dropped())
}

func TestRedisPublisher_Publish(t *testing.T) {
	client, mock := redismock.NewClientMock()
	pub := NewRedisPublisher(client, "tradesetup.events")

	ev := Event{
		ID:        "ev-1",
		Type:      TypeTradeFrozen,
		TradeDate: "2026-01-12",
		Symbol:    "INFY",
		CreatedAt: time.Date(2026, 1, 12, 4, 0, 0, 0, time.UTC),
	}
	raw, err := json.Marshal(ev)
	require.NoError(t, err)
	mock.ExpectPublish("tradesetup.events", string(raw)).SetVal(1)

	require.NoError(t, pub.Publish(context.Background(), ev))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisPublisher_Error(t *testing.T) {
	client, mock := redismock.NewClientMock()
	pub := NewRedisPublisher(client, "")

	ev := Event{ID: "ev-2", Type: TypeTradeFrozen, TradeDate: "2026-01-12"}
	raw, err := json.Marshal(ev)
	require.NoError(t, err)
	mock.ExpectPublish("tradesetup.events", string(raw)).SetErr(errors.New("redis down"))

	assert.Error(t, pub.Publish(context.Background(), ev))
}

type failing struct{ err error }

func (f failing) Publish(context.Context, Event) error { return f.err }

func TestMultiAndLogged(t *testing.T) {
	bus := NewBus()
	ch, cancel := bus.Subscribe(1)
	defer cancel()

	m := Multi{failing{err: errors.New("boom")}, bus, nil}
	assert.Error(t, m.Publish(context.Background(), New(TypeTradeConstructed, "2026-01-12", "TCS", nil)), "multi should surface the failing publisher")
	assert.Len(t, ch, 1, "bus should still receive the event")
	assert.NoError(t, (Logged{Next: m}).Publish(context.Background(), New(TypeTradeConstructed, "2026-01-12", "TCS", nil)))
}
