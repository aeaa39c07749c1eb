package models

import "time"

const TradeDateLayout = "2006-01-02"

// TradeDay truncates t to its calendar date at UTC midnight, which is how
// every trade_date column is stored.
func TradeDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseTradeDate parses YYYY-MM-DD.
func ParseTradeDate(s string) (time.Time, error) {
	t, err := time.Parse(TradeDateLayout, s)
	if err != nil {
		return time.Time{}, err
	}
	return TradeDay(t), nil
}
