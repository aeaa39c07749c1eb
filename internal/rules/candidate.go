package rules

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"tradesetup/internal/apperr"
)

// FilterConfig holds the STEP-3B thresholds.
type FilterConfig struct {
	MinTradedValueCr    float64 `json:"min_traded_value_cr"`
	MinATRPct           float64 `json:"min_atr_pct"`
	MaxATRPct           float64 `json:"max_atr_pct"`
	AbnormalATRMultiple float64 `json:"abnormal_atr_multiple"`
	RSThreshold         float64 `json:"rs_threshold"`
	GapFollowMinPct     float64 `json:"gap_follow_min_pct"`
}

func DefaultFilterConfig() FilterConfig {
	return FilterConfig{
		MinTradedValueCr:    100,
		MinATRPct:           1,
		MaxATRPct:           4,
		AbnormalATRMultiple: 2,
		RSThreshold:         0.3,
		GapFollowMinPct:     1.0,
	}
}

// Levels is the structural snapshot STEP-4 sizes from.
type Levels struct {
	GapHigh       *float64 `json:"gap_high,omitempty"`
	GapLow        *float64 `json:"gap_low,omitempty"`
	IntradayHigh  *float64 `json:"intraday_high,omitempty"`
	IntradayLow   *float64 `json:"intraday_low,omitempty"`
	LastHigherLow *float64 `json:"last_higher_low,omitempty"`
	LastLowerHigh *float64 `json:"last_lower_high,omitempty"`
	VWAP          *float64 `json:"vwap_value,omitempty"`
}

// StockContext is everything the 3-layer filter looks at for one symbol.
type StockContext struct {
	Symbol string `json:"symbol"`

	AvgTradedValueCr float64 `json:"avg_traded_value_20d"`
	ATR              float64 `json:"atr"`
	YesterdayHigh    float64 `json:"yesterday_high"`
	YesterdayLow     float64 `json:"yesterday_low"`
	YesterdayClose   float64 `json:"yesterday_close"`

	Open0915     float64 `json:"open_0915"`
	CurrentPrice float64 `json:"current_price"`

	GapHolds       bool   `json:"gap_holds"`
	StructureValid bool   `json:"structure_valid"`
	PriceVsVWAP    string `json:"price_vs_vwap"`

	Levels
}

// IndexMove is the index reference for relative strength.
type IndexMove struct {
	Open0915     float64 `json:"open_0915"`
	CurrentPrice float64 `json:"current_price"`
}

func (m IndexMove) Pct() (float64, error) {
	if m.Open0915 <= 0 || m.CurrentPrice <= 0 {
		return 0, apperr.Validation("INVALID_INDEX_MOVE", "index open_0915 and current_price must be positive")
	}
	return (m.CurrentPrice - m.Open0915) / m.Open0915 * 100, nil
}

// Candidate is the verdict for one symbol.
type Candidate struct {
	Symbol           string  `json:"symbol"`
	Direction        string  `json:"direction,omitempty"`
	StrategyUsed     string  `json:"strategy_used"`
	RejectedAtLayer  int     `json:"rejected_at_layer,omitempty"`
	AvgTradedValueCr float64 `json:"avg_traded_value_20d"`
	ATRPct           float64 `json:"atr_pct"`
	GapPct           float64 `json:"gap_pct"`
	RS               float64 `json:"relative_strength"`
	StructureValid   bool    `json:"structure_valid"`
	YesterdayClose   float64 `json:"yesterday_close"`
	Reason           string  `json:"reason"`
	Levels           Levels  `json:"levels"`
}

func (c Candidate) Qualified() bool {
	return c.StrategyUsed == StrategyGapFollow || c.StrategyUsed == StrategyMomentum
}

// Tradability is the Layer-1 verdict alone.
type Tradability struct {
	Tradable bool    `json:"tradable"`
	ATRPct   float64 `json:"atr_pct"`
	Abnormal bool    `json:"abnormal_candle"`
	Reason   string  `json:"reason"`
}

func CheckTradability(s StockContext, cfg FilterConfig) Tradability {
	var t Tradability
	if s.YesterdayClose > 0 {
		t.ATRPct = s.ATR / s.YesterdayClose * 100
	}
	t.Abnormal = s.ATR > 0 && s.YesterdayHigh-s.YesterdayLow >= cfg.AbnormalATRMultiple*s.ATR
	switch {
	case s.AvgTradedValueCr < cfg.MinTradedValueCr:
		t.Reason = fmt.Sprintf("Low liquidity: avg traded value %.2f Cr below %.2f Cr", s.AvgTradedValueCr, cfg.MinTradedValueCr)
	case s.ATR <= 0 || s.YesterdayClose <= 0:
		t.Reason = "ATR unavailable"
	case t.ATRPct < cfg.MinATRPct || t.ATRPct > cfg.MaxATRPct:
		t.Reason = fmt.Sprintf("ATR%% %.2f outside [%.2f, %.2f]", t.ATRPct, cfg.MinATRPct, cfg.MaxATRPct)
	case t.Abnormal:
		t.Reason = fmt.Sprintf("Abnormal candle: prior range %.2f >= %.1fx ATR", s.YesterdayHigh-s.YesterdayLow, cfg.AbnormalATRMultiple)
	default:
		t.Tradable = true
		t.Reason = "Tradable"
	}
	return t
}

// EvaluateCandidate runs the three layers in order and stops at the first rejection.
func EvaluateCandidate(s StockContext, indexPct float64, exec ExecutionDecision, cfg FilterConfig) Candidate {
	c := Candidate{
		Symbol:           s.Symbol,
		StrategyUsed:     StrategyNoTrade,
		AvgTradedValueCr: s.AvgTradedValueCr,
		StructureValid:   s.StructureValid,
		YesterdayClose:   s.YesterdayClose,
	}

	t := CheckTradability(s, cfg)
	c.ATRPct = t.ATRPct
	if !t.Tradable {
		c.RejectedAtLayer = 1
		c.Reason = t.Reason
		return c
	}

	if s.Open0915 <= 0 || s.CurrentPrice <= 0 {
		c.RejectedAtLayer = 2
		c.Reason = "Price data unavailable"
		return c
	}
	stockPct := (s.CurrentPrice - s.Open0915) / s.Open0915 * 100
	c.RS = stockPct - indexPct
	switch {
	case c.RS >= cfg.RSThreshold:
		c.Direction = DirectionLong
	case c.RS <= -cfg.RSThreshold:
		c.Direction = DirectionShort
	default:
		c.RejectedAtLayer = 2
		c.Reason = fmt.Sprintf("RS Neutral: %.2f", c.RS)
		return c
	}

	c.GapPct = (s.Open0915 - s.YesterdayClose) / s.YesterdayClose * 100
	switch {
	case exec.Allows(StrategyGapFollow) && gapFollowFits(s, c, cfg):
		c.StrategyUsed = StrategyGapFollow
		c.Levels = Levels{GapHigh: s.GapHigh, GapLow: s.GapLow, VWAP: s.VWAP}
		c.Reason = fmt.Sprintf("Gap follow %s: gap %.2f%% holding, RS %.2f", c.Direction, c.GapPct, c.RS)
	case exec.Allows(StrategyMomentum) && momentumFits(s, c):
		c.StrategyUsed = StrategyMomentum
		c.Levels = Levels{
			IntradayHigh:  s.IntradayHigh,
			IntradayLow:   s.IntradayLow,
			LastHigherLow: s.LastHigherLow,
			LastLowerHigh: s.LastLowerHigh,
			VWAP:          s.VWAP,
		}
		c.Reason = fmt.Sprintf("Momentum %s: price %s VWAP, RS %.2f", c.Direction, strings.ToLower(s.PriceVsVWAP), c.RS)
	default:
		c.Direction = ""
		c.RejectedAtLayer = 3
		c.Reason = "Strategy fit failed"
	}
	return c
}

func gapFollowFits(s StockContext, c Candidate, cfg FilterConfig) bool {
	if math.Abs(c.GapPct) < cfg.GapFollowMinPct || !s.GapHolds || !s.StructureValid {
		return false
	}
	if (c.Direction == DirectionLong) != (c.GapPct > 0) {
		return false
	}
	return s.GapHigh != nil && s.GapLow != nil && *s.GapHigh > *s.GapLow
}

func momentumFits(s StockContext, c Candidate) bool {
	if !s.StructureValid {
		return false
	}
	if c.Direction == DirectionLong {
		return s.PriceVsVWAP == PriceAboveVWAP && s.IntradayHigh != nil && s.LastHigherLow != nil
	}
	return s.PriceVsVWAP == PriceBelowVWAP && s.IntradayLow != nil && s.LastLowerHigh != nil
}

// SelectCandidates keeps at most limit qualified candidates ordered by
// traded value desc, |rs| desc, then symbol.
func SelectCandidates(all []Candidate, limit int) []Candidate {
	out := make([]Candidate, 0, len(all))
	for _, c := range all {
		if c.Qualified() {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].AvgTradedValueCr != out[j].AvgTradedValueCr {
			return out[i].AvgTradedValueCr > out[j].AvgTradedValueCr
		}
		ri, rj := math.Abs(out[i].RS), math.Abs(out[j].RS)
		if ri != rj {
			return ri > rj
		}
		return out[i].Symbol < out[j].Symbol
	})
	if limit < 0 {
		limit = 0
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func NormalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
