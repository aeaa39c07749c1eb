package marketdata

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"tradesetup/internal/config"
	"tradesetup/internal/models"
	"tradesetup/internal/rules"
)

const (
	structuralSessions = 6
	wallClockLayout    = "2006-01-02 15:04:05"
)

// SQLProvider reads the MySQL market schema: nifty_prices (index 5-minute
// candles), instruments_master, intraday_bhavcopy and strategy_features.
type SQLProvider struct {
	db              *sqlx.DB
	timeout         time.Duration
	lookbackDays    int
	baselineCandles int
}

// Open connects to the market schema. parseTime is forced on so DATE and
// DATETIME columns scan into time.Time.
func Open(cfg config.MarketDataConfig) (*SQLProvider, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, errors.New("market_data.dsn is required")
	}
	mc, err := mysql.ParseDSN(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse market_data.dsn: %w", err)
	}
	mc.ParseTime = true

	dbx, err := sqlx.Open("mysql", mc.FormatDSN())
	if err != nil {
		return nil, err
	}
	if cfg.MaxOpenConns > 0 {
		dbx.SetMaxOpenConns(cfg.MaxOpenConns)
		dbx.SetMaxIdleConns(cfg.MaxOpenConns)
	}
	return NewSQLProvider(dbx, cfg), nil
}

func NewSQLProvider(db *sqlx.DB, cfg config.MarketDataConfig) *SQLProvider {
	p := &SQLProvider{
		db:              db,
		timeout:         cfg.QueryTimeout,
		lookbackDays:    cfg.LookbackDays,
		baselineCandles: cfg.BaselineCandles,
	}
	if p.timeout <= 0 {
		p.timeout = 10 * time.Second
	}
	if p.lookbackDays <= 0 {
		p.lookbackDays = 30
	}
	if p.baselineCandles <= 0 {
		p.baselineCandles = 20
	}
	return p
}

func (p *SQLProvider) Close() error {
	if p == nil || p.db == nil {
		return nil
	}
	return p.db.Close()
}

func (p *SQLProvider) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return p.db.PingContext(ctx)
}

type dailyBar struct {
	High  sql.NullFloat64 `db:"day_high"`
	Low   sql.NullFloat64 `db:"day_low"`
	Close sql.NullFloat64 `db:"day_close"`
}

type candleRow struct {
	Time   time.Time       `db:"ts"`
	Open   float64         `db:"open"`
	High   float64         `db:"high"`
	Low    float64         `db:"low"`
	Close  float64         `db:"close"`
	Volume sql.NullFloat64 `db:"volume"`
}

type symbolValue struct {
	Symbol string          `db:"symbol"`
	Value  sql.NullFloat64 `db:"value"`
}

type symbolCandle struct {
	Symbol string          `db:"symbol"`
	High   sql.NullFloat64 `db:"high"`
	Low    sql.NullFloat64 `db:"low"`
	Close  sql.NullFloat64 `db:"close"`
}

func (p *SQLProvider) MarketContextInputs(ctx context.Context, tradeDate time.Time) (rules.MarketContextInputs, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	days, err := p.tradingDaysBefore(ctx, tradeDate, structuralSessions)
	if err != nil {
		return rules.MarketContextInputs{}, err
	}
	if len(days) < structuralSessions {
		return rules.MarketContextInputs{}, fmt.Errorf("%w: %d sessions before %s, need %d",
			ErrInsufficientData, len(days), tradeDate.Format(models.TradeDateLayout), structuralSessions)
	}

	bars := make([]dailyBar, 0, len(days))
	for _, day := range days {
		var bar dailyBar
		err := p.db.GetContext(ctx, &bar, `
			SELECT
				MAX(High) AS day_high,
				MIN(Low) AS day_low,
				(
					SELECT Close FROM nifty_prices
					WHERE DATE(Date) = ?
					ORDER BY Date DESC
					LIMIT 1
				) AS day_close
			FROM nifty_prices
			WHERE DATE(Date) = ?`, day, day)
		if err != nil {
			return rules.MarketContextInputs{}, fmt.Errorf("daily ohlc %s: %w", day, err)
		}
		if !bar.High.Valid || !bar.Low.Valid || !bar.Close.Valid {
			return rules.MarketContextInputs{}, fmt.Errorf("%w: empty session %s", ErrInsufficientData, day)
		}
		bars = append(bars, bar)
	}

	var preopen sql.NullFloat64
	err = p.db.GetContext(ctx, &preopen, `
		SELECT Open FROM nifty_prices
		WHERE DATE(Date) = ?
		ORDER BY Date ASC
		LIMIT 1`, tradeDate.Format(models.TradeDateLayout))
	if errors.Is(err, sql.ErrNoRows) || (err == nil && !preopen.Valid) {
		return rules.MarketContextInputs{}, fmt.Errorf("%w: no candles on %s", ErrInsufficientData, tradeDate.Format(models.TradeDateLayout))
	}
	if err != nil {
		return rules.MarketContextInputs{}, fmt.Errorf("preopen price: %w", err)
	}

	ranges := make([]float64, 0, 5)
	for _, bar := range bars[:5] {
		ranges = append(ranges, bar.High.Float64-bar.Low.Float64)
	}
	return rules.MarketContextInputs{
		YesterdayClose: bars[0].Close.Float64,
		YesterdayHigh:  bars[0].High.Float64,
		YesterdayLow:   bars[0].Low.Float64,
		Day2High:       bars[1].High.Float64,
		Day2Low:        bars[1].Low.Float64,
		Last5DayRanges: ranges,
		PreOpenPrice:   preopen.Float64,
	}, nil
}

func (p *SQLProvider) SessionCandles(ctx context.Context, tradeDate, from time.Time) ([]rules.Candle, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return p.sessionCandles(ctx, tradeDate, from)
}

func (p *SQLProvider) sessionCandles(ctx context.Context, tradeDate, from time.Time) ([]rules.Candle, error) {
	var rows []candleRow
	err := p.db.SelectContext(ctx, &rows, `
		SELECT
			Date AS ts,
			Open AS open,
			High AS high,
			Low AS low,
			Close AS close,
			Volume AS volume
		FROM nifty_prices
		WHERE DATE(Date) = ? AND Date >= ?
		ORDER BY Date ASC`,
		tradeDate.Format(models.TradeDateLayout), from.Format(wallClockLayout))
	if err != nil {
		return nil, fmt.Errorf("session candles: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: no candles on %s from %s", ErrInsufficientData,
			tradeDate.Format(models.TradeDateLayout), from.Format("15:04"))
	}

	out := make([]rules.Candle, 0, len(rows))
	for _, r := range rows {
		out = append(out, rules.Candle{
			Time:   r.Time,
			Open:   r.Open,
			High:   r.High,
			Low:    r.Low,
			Close:  r.Close,
			Volume: r.Volume.Float64,
		})
	}
	return out, nil
}

func (p *SQLProvider) BaselineRange(ctx context.Context, tradeDate time.Time) (float64, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	days, err := p.tradingDaysBefore(ctx, tradeDate, 1)
	if err != nil {
		return 0, false, err
	}
	if len(days) == 0 {
		return 0, false, nil
	}

	var ranges []sql.NullFloat64
	err = p.db.SelectContext(ctx, &ranges, `
		SELECT (High - Low) AS candle_range
		FROM nifty_prices
		WHERE DATE(Date) = ?
		ORDER BY Date DESC
		LIMIT ?`, days[0], p.baselineCandles)
	if err != nil {
		return 0, false, fmt.Errorf("baseline candles: %w", err)
	}

	var sum float64
	var n int
	for _, r := range ranges {
		if !r.Valid {
			continue
		}
		sum += r.Float64
		n++
	}
	if n == 0 {
		return 0, false, nil
	}
	return sum / float64(n), true, nil
}

func (p *SQLProvider) IndexMove(ctx context.Context, tradeDate, from time.Time) (rules.IndexMove, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	candles, err := p.sessionCandles(ctx, tradeDate, from)
	if err != nil {
		return rules.IndexMove{}, err
	}
	return rules.IndexMove{
		Open0915:     candles[0].Open,
		CurrentPrice: candles[len(candles)-1].Close,
	}, nil
}

func (p *SQLProvider) Universe(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var symbols []string
	err := p.db.SelectContext(ctx, &symbols, `
		SELECT symbol
		FROM instruments_master
		WHERE include_in_bhav = 1
		ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("universe: %w", err)
	}
	for i := range symbols {
		symbols[i] = rules.NormalizeSymbol(symbols[i])
	}
	return symbols, nil
}

func (p *SQLProvider) StockMetrics(ctx context.Context, tradeDate time.Time, symbols []string) (map[string]StockMetrics, error) {
	out := make(map[string]StockMetrics, len(symbols))
	if len(symbols) == 0 {
		return out, nil
	}
	for _, s := range symbols {
		out[s] = StockMetrics{Symbol: s}
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	day := tradeDate.Format(models.TradeDateLayout)

	var traded []symbolValue
	if err := p.selectIn(ctx, &traded, `
		SELECT symbol, AVG(net_trdval) AS value
		FROM intraday_bhavcopy
		WHERE trade_date < ?
		  AND trade_date >= DATE_SUB(?, INTERVAL ? DAY)
		  AND symbol IN (?)
		GROUP BY symbol`, day, day, p.lookbackDays, symbols); err != nil {
		return nil, fmt.Errorf("avg traded value: %w", err)
	}
	for _, r := range traded {
		m, ok := out[r.Symbol]
		if !ok || !r.Value.Valid {
			continue
		}
		m.AvgTradedValueCr = r.Value.Float64
		m.HasTradedValue = true
		out[r.Symbol] = m
	}

	var atr []symbolValue
	if err := p.selectIn(ctx, &atr, `
		SELECT symbol, value
		FROM strategy_features
		WHERE trade_date = ?
		  AND feature_name = 'atr_14'
		  AND symbol IN (?)`, day, symbols); err != nil {
		return nil, fmt.Errorf("atr_14: %w", err)
	}
	for _, r := range atr {
		m, ok := out[r.Symbol]
		if !ok || !r.Value.Valid {
			continue
		}
		m.ATR = r.Value.Float64
		m.HasATR = true
		out[r.Symbol] = m
	}

	var candles []symbolCandle
	if err := p.selectIn(ctx, &candles, `
		SELECT symbol, high, low, close
		FROM intraday_bhavcopy
		WHERE trade_date = (
			SELECT MAX(trade_date) FROM intraday_bhavcopy WHERE trade_date < ?
		)
		  AND symbol IN (?)`, day, symbols); err != nil {
		return nil, fmt.Errorf("previous session candle: %w", err)
	}
	for _, r := range candles {
		m, ok := out[r.Symbol]
		if !ok || !r.High.Valid || !r.Low.Valid || !r.Close.Valid {
			continue
		}
		m.YesterdayHigh = r.High.Float64
		m.YesterdayLow = r.Low.Float64
		m.YesterdayClose = r.Close.Float64
		m.HasCandle = true
		out[r.Symbol] = m
	}
	return out, nil
}

func (p *SQLProvider) tradingDaysBefore(ctx context.Context, tradeDate time.Time, n int) ([]string, error) {
	var days []time.Time
	err := p.db.SelectContext(ctx, &days, `
		SELECT DISTINCT DATE(Date) AS trading_day
		FROM nifty_prices
		WHERE DATE(Date) < ?
		ORDER BY trading_day DESC
		LIMIT ?`, tradeDate.Format(models.TradeDateLayout), n)
	if err != nil {
		return nil, fmt.Errorf("trading days: %w", err)
	}
	out := make([]string, 0, len(days))
	for _, d := range days {
		out = append(out, d.Format(models.TradeDateLayout))
	}
	return out, nil
}

func (p *SQLProvider) selectIn(ctx context.Context, dest any, query string, args ...any) error {
	q, qargs, err := sqlx.In(query, args...)
	if err != nil {
		return err
	}
	return p.db.SelectContext(ctx, dest, p.db.Rebind(q), qargs...)
}
