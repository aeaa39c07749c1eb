package marketdata

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"tradesetup/internal/apperr"
	"tradesetup/internal/config"
	"tradesetup/internal/rules"
)

// Guarded wraps a Provider in a circuit breaker and translates its failures
// into the pipeline error taxonomy. Missing data never trips the breaker.
type Guarded struct {
	next   Provider
	cb     *gobreaker.CircuitBreaker
	logger *zap.Logger
}

func NewGuarded(next Provider, cfg config.BreakerConfig, logger *zap.Logger) *Guarded {
	if logger == nil {
		logger = zap.NewNop()
	}
	failures := cfg.ConsecutiveFailures
	if failures == 0 {
		failures = 5
	}
	g := &Guarded{next: next, logger: logger}
	g.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "marketdata",
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrInsufficientData) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("market data breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return g
}

// State reports the breaker state for health output.
func (g *Guarded) State() string {
	if g == nil || g.cb == nil {
		return "disabled"
	}
	return g.cb.State().String()
}

func guard[T any](g *Guarded, op string, fn func() (T, error)) (T, error) {
	var zero T
	start := time.Now()
	out, err := g.cb.Execute(func() (interface{}, error) {
		return fn()
	})
	if err == nil {
		return out.(T), nil
	}
	if errors.Is(err, ErrInsufficientData) {
		return zero, apperr.Validation("MARKET_DATA_INSUFFICIENT", "%s", err.Error())
	}
	g.logger.Error("market data query failed",
		zap.String("op", op),
		zap.Duration("elapsed", time.Since(start)),
		zap.Error(err),
	)
	return zero, apperr.Infrastructure(err, "market data unavailable")
}

func (g *Guarded) MarketContextInputs(ctx context.Context, tradeDate time.Time) (rules.MarketContextInputs, error) {
	return guard(g, "market_context_inputs", func() (rules.MarketContextInputs, error) {
		return g.next.MarketContextInputs(ctx, tradeDate)
	})
}

func (g *Guarded) SessionCandles(ctx context.Context, tradeDate, from time.Time) ([]rules.Candle, error) {
	return guard(g, "session_candles", func() ([]rules.Candle, error) {
		return g.next.SessionCandles(ctx, tradeDate, from)
	})
}

type baseline struct {
	value float64
	ok    bool
}

func (g *Guarded) BaselineRange(ctx context.Context, tradeDate time.Time) (float64, bool, error) {
	b, err := guard(g, "baseline_range", func() (baseline, error) {
		v, ok, err := g.next.BaselineRange(ctx, tradeDate)
		return baseline{value: v, ok: ok}, err
	})
	return b.value, b.ok, err
}

func (g *Guarded) IndexMove(ctx context.Context, tradeDate, from time.Time) (rules.IndexMove, error) {
	return guard(g, "index_move", func() (rules.IndexMove, error) {
		return g.next.IndexMove(ctx, tradeDate, from)
	})
}

func (g *Guarded) Universe(ctx context.Context) ([]string, error) {
	return guard(g, "universe", func() ([]string, error) {
		return g.next.Universe(ctx)
	})
}

func (g *Guarded) StockMetrics(ctx context.Context, tradeDate time.Time, symbols []string) (map[string]StockMetrics, error) {
	return guard(g, "stock_metrics", func() (map[string]StockMetrics, error) {
		return g.next.StockMetrics(ctx, tradeDate, symbols)
	})
}
