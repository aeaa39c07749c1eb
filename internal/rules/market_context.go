package rules

import (
	"math"

	"tradesetup/internal/apperr"
)

// MarketContextInputs are the prior-session aggregates STEP-1 classifies.
type MarketContextInputs struct {
	YesterdayClose float64   `json:"yesterday_close"`
	YesterdayHigh  float64   `json:"yesterday_high"`
	YesterdayLow   float64   `json:"yesterday_low"`
	Day2High       float64   `json:"day2_high"`
	Day2Low        float64   `json:"day2_low"`
	Last5DayRanges []float64 `json:"last_5_day_ranges"`
	PreOpenPrice   float64   `json:"preopen_price"`
}

type MarketContextResult struct {
	GapPct                 float64 `json:"gap_pct"`
	GapClass               string  `json:"gap_class"`
	GapContext             string  `json:"gap_context"`
	RangeRatio             float64 `json:"range_ratio"`
	RangeSize              string  `json:"range_size"`
	OverlapType            string  `json:"overlap_type"`
	StructuralState        string  `json:"structural_state"`
	SuggestedMarketContext string  `json:"suggested_market_context"`
}

const minHistoricalRanges = 3

func (in MarketContextInputs) Validate() error {
	if in.YesterdayClose <= 0 {
		return apperr.Validation("INSUFFICIENT_HISTORY", "yesterday_close must be positive")
	}
	if len(in.Last5DayRanges) < minHistoricalRanges {
		return apperr.Validation("INSUFFICIENT_HISTORY", "at least %d prior daily ranges are required, got %d", minHistoricalRanges, len(in.Last5DayRanges))
	}
	if in.PreOpenPrice <= 0 {
		return apperr.Validation("INVALID_PREOPEN", "preopen_price must be positive")
	}
	if in.YesterdayHigh < in.YesterdayLow {
		return apperr.Validation("INVALID_RANGE", "yesterday_high is below yesterday_low")
	}
	if in.Day2High < in.Day2Low {
		return apperr.Validation("INVALID_RANGE", "day2_high is below day2_low")
	}
	for _, r := range in.Last5DayRanges {
		if r < 0 || math.IsNaN(r) {
			return apperr.Validation("INVALID_RANGE", "daily ranges must be non-negative")
		}
	}
	return nil
}

// ClassifyMarketContext derives the STEP-1 labels. It has no side effects.
func ClassifyMarketContext(in MarketContextInputs) (MarketContextResult, error) {
	if err := in.Validate(); err != nil {
		return MarketContextResult{}, err
	}
	var out MarketContextResult

	out.GapPct = (in.PreOpenPrice - in.YesterdayClose) / in.YesterdayClose * 100
	out.GapClass = GapClass(out.GapPct)
	out.GapContext = GapContext(out.GapPct)

	mean := 0.0
	for _, r := range in.Last5DayRanges {
		mean += r
	}
	mean /= float64(len(in.Last5DayRanges))
	if mean <= 0 {
		return MarketContextResult{}, apperr.Validation("INSUFFICIENT_HISTORY", "mean of prior daily ranges must be positive")
	}
	out.RangeRatio = (in.YesterdayHigh - in.YesterdayLow) / mean
	out.RangeSize = RangeSize(out.RangeRatio)
	out.OverlapType = OverlapType(in.YesterdayHigh, in.YesterdayLow, in.Day2High, in.Day2Low)
	out.StructuralState = StructuralState(out.RangeSize, out.OverlapType)
	out.SuggestedMarketContext = SuggestedMarketContext(out.StructuralState)
	return out, nil
}

func GapClass(gapPct float64) string {
	abs := math.Abs(gapPct)
	switch {
	case abs < 0.30:
		return GapRange
	case abs < 0.70:
		return GapSelective
	case abs < 1.0:
		return GapStrong
	default:
		return GapEvent
	}
}

func GapContext(gapPct float64) string {
	switch {
	case gapPct > 0.05:
		return GapUp
	case gapPct < -0.05:
		return GapDown
	default:
		return GapFlat
	}
}

func RangeSize(ratio float64) string {
	switch {
	case ratio < 0.8:
		return RangeSmall
	case ratio <= 1.2:
		return RangeNormal
	case ratio <= 1.8:
		return RangeLarge
	default:
		return RangeExtreme
	}
}

// OverlapType compares yesterday's range against the day before.
func OverlapType(yHigh, yLow, d2High, d2Low float64) string {
	if yHigh <= d2High && yLow >= d2Low {
		return OverlapFull
	}
	if yLow > d2High || yHigh < d2Low {
		return OverlapNone
	}
	return OverlapPartial
}

func StructuralState(rangeSize, overlap string) string {
	switch {
	case rangeSize == RangeExtreme:
		return StructureNoTrade
	case rangeSize == RangeSmall && overlap == OverlapFull:
		return StructureRange
	case rangeSize == RangeLarge && overlap == OverlapNone:
		return StructureTrendBiased
	default:
		return StructureUncertain
	}
}

func SuggestedMarketContext(structural string) string {
	switch structural {
	case StructureTrendBiased:
		return ContextTrendDay
	case StructureNoTrade:
		return ContextNoTradeDay
	default:
		return ContextRangeUncertainDay
	}
}
