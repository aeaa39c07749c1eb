package marketdata

import (
	"context"
	"errors"
	"time"

	"tradesetup/internal/rules"
)

// ErrInsufficientData means the market store has no rows for the requested
// window. It is an input problem, not an outage.
var ErrInsufficientData = errors.New("insufficient market data")

// StockMetrics is the Layer-1 slice of a symbol that the market store can
// answer. Has* report whether the corresponding rows existed.
type StockMetrics struct {
	Symbol           string  `json:"symbol"`
	AvgTradedValueCr float64 `json:"avg_traded_value_20d"`
	ATR              float64 `json:"atr"`
	YesterdayHigh    float64 `json:"yesterday_high"`
	YesterdayLow     float64 `json:"yesterday_low"`
	YesterdayClose   float64 `json:"yesterday_close"`
	HasTradedValue   bool    `json:"has_traded_value"`
	HasATR           bool    `json:"has_atr"`
	HasCandle        bool    `json:"has_candle"`
}

// Apply fills the Layer-1 fields of s that the caller left at zero.
func (m StockMetrics) Apply(s *rules.StockContext) {
	if s.AvgTradedValueCr == 0 && m.HasTradedValue {
		s.AvgTradedValueCr = m.AvgTradedValueCr
	}
	if s.ATR == 0 && m.HasATR {
		s.ATR = m.ATR
	}
	if m.HasCandle {
		if s.YesterdayHigh == 0 {
			s.YesterdayHigh = m.YesterdayHigh
		}
		if s.YesterdayLow == 0 {
			s.YesterdayLow = m.YesterdayLow
		}
		if s.YesterdayClose == 0 {
			s.YesterdayClose = m.YesterdayClose
		}
	}
}

// Provider is the read-only view of the index and stock market store used
// when a request leaves raw inputs out.
type Provider interface {
	// MarketContextInputs aggregates the six sessions before tradeDate into
	// daily OHLC and takes the first candle open of tradeDate as pre-open.
	MarketContextInputs(ctx context.Context, tradeDate time.Time) (rules.MarketContextInputs, error)
	// SessionCandles returns index candles of tradeDate at or after from.
	SessionCandles(ctx context.Context, tradeDate, from time.Time) ([]rules.Candle, error)
	// BaselineRange is the mean candle range of the previous session's tail.
	// ok is false when the previous session has no candles.
	BaselineRange(ctx context.Context, tradeDate time.Time) (value float64, ok bool, err error)
	IndexMove(ctx context.Context, tradeDate, from time.Time) (rules.IndexMove, error)
	Universe(ctx context.Context) ([]string, error)
	StockMetrics(ctx context.Context, tradeDate time.Time, symbols []string) (map[string]StockMetrics, error)
}
