package rules

import (
	"math"
	"time"

	"tradesetup/internal/apperr"
)

// Candle is one 5-minute OHLCV bar.
type Candle struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// DefaultIRCandles is the number of 5-minute bars forming the initial range (09:15-09:45).
const DefaultIRCandles = 6

type OpenBehaviorInputs struct {
	Candles []Candle `json:"candles"`
	// IRCandles bounds the initial range; later candles only test whether it held.
	IRCandles int `json:"ir_candles,omitempty"`
	// BaselineRange is the prior session's average 5-minute range. Zero means unknown.
	BaselineRange float64 `json:"baseline_range"`
}

type OpenBehaviorResult struct {
	IRHigh          float64 `json:"ir_high"`
	IRLow           float64 `json:"ir_low"`
	IRRange         float64 `json:"ir_range"`
	IRRatio         float64 `json:"ir_ratio"`
	VolatilityState string  `json:"volatility_state"`
	VWAP            float64 `json:"vwap"`
	VWAPCrossCount  int     `json:"vwap_cross_count"`
	VWAPState       string  `json:"vwap_state"`
	RangeHoldStatus string  `json:"range_hold_status"`
	TradePermission string  `json:"trade_permission"`
}

func (in OpenBehaviorInputs) Validate() error {
	if len(in.Candles) == 0 {
		return apperr.Validation("EMPTY_CANDLES", "at least one opening candle is required")
	}
	if in.IRCandles < 0 {
		return apperr.Validation("INVALID_WINDOW", "ir_candles must be non-negative")
	}
	if in.BaselineRange < 0 || math.IsNaN(in.BaselineRange) {
		return apperr.Validation("INVALID_BASELINE", "baseline_range must be non-negative")
	}
	for i, c := range in.Candles {
		if c.High < c.Low {
			return apperr.Validation("INVALID_CANDLE", "candle %d has high below low", i)
		}
		if c.Volume < 0 {
			return apperr.Validation("INVALID_CANDLE", "candle %d has negative volume", i)
		}
		if i > 0 && !c.Time.IsZero() && !c.Time.After(in.Candles[i-1].Time) {
			return apperr.Validation("INVALID_CANDLE", "candles must be strictly ordered by time")
		}
	}
	return nil
}

// ClassifyOpenBehavior derives the STEP-2 snapshot from the opening candles.
func ClassifyOpenBehavior(in OpenBehaviorInputs) (OpenBehaviorResult, error) {
	if err := in.Validate(); err != nil {
		return OpenBehaviorResult{}, err
	}
	var out OpenBehaviorResult

	window := in.IRCandles
	if window <= 0 {
		window = DefaultIRCandles
	}
	if window > len(in.Candles) {
		window = len(in.Candles)
	}
	ir := in.Candles[:window]
	out.IRHigh = ir[0].High
	out.IRLow = ir[0].Low
	for _, c := range ir[1:] {
		out.IRHigh = math.Max(out.IRHigh, c.High)
		out.IRLow = math.Min(out.IRLow, c.Low)
	}
	out.IRRange = out.IRHigh - out.IRLow
	if in.BaselineRange > 0 {
		out.IRRatio = out.IRRange / in.BaselineRange
	}
	out.VolatilityState = VolatilityState(out.IRRatio, in.BaselineRange > 0)

	out.VWAP, out.VWAPCrossCount, out.VWAPState = vwapProfile(in.Candles)

	last := in.Candles[len(in.Candles)-1].Close
	switch {
	case last > out.IRHigh:
		out.RangeHoldStatus = RangeBrokenUp
	case last < out.IRLow:
		out.RangeHoldStatus = RangeBrokenDown
	default:
		out.RangeHoldStatus = RangeHeld
	}

	out.TradePermission = TradePermission(out.RangeHoldStatus, out.VolatilityState, out.VWAPState)
	return out, nil
}

func VolatilityState(ratio float64, hasBaseline bool) string {
	if !hasBaseline {
		return VolatilityNormal
	}
	switch {
	case ratio > 2.5:
		return VolatilityChaotic
	case ratio > 1.5:
		return VolatilityExpanding
	case ratio < 0.7:
		return VolatilityContracting
	default:
		return VolatilityNormal
	}
}

// vwapProfile returns the closing VWAP, how many times the close switched
// sides of the running VWAP, and the resulting state.
func vwapProfile(candles []Candle) (float64, int, string) {
	var pv, vol, vwap float64
	side, crosses := 0, 0
	for _, c := range candles {
		typical := (c.High + c.Low + c.Close) / 3
		pv += typical * c.Volume
		vol += c.Volume
		if vol > 0 {
			vwap = pv / vol
		} else {
			vwap = typical
		}
		cur := 0
		switch {
		case c.Close > vwap:
			cur = 1
		case c.Close < vwap:
			cur = -1
		}
		if cur == 0 {
			continue
		}
		if side != 0 && cur != side {
			crosses++
		}
		side = cur
	}
	state := VWAPAbove
	switch {
	case crosses > 0:
		state = VWAPMixed
	case side < 0:
		state = VWAPBelow
	}
	return vwap, crosses, state
}

// TradePermission is the STEP-2 gate. Full permission needs a held range with
// clean VWAP and normal or expanding volatility. A break only earns LIMITED
// when it agrees with the VWAP side. Chaotic volatility is always NO.
func TradePermission(rangeHold, volatility, vwapState string) string {
	if volatility == VolatilityChaotic {
		return PermissionNo
	}
	active := volatility == VolatilityNormal || volatility == VolatilityExpanding
	clean := vwapState != VWAPMixed
	switch rangeHold {
	case RangeHeld:
		if clean && active {
			return PermissionYes
		}
		return PermissionLimited
	case RangeBrokenUp:
		if clean && active && vwapState == VWAPAbove {
			return PermissionLimited
		}
	case RangeBrokenDown:
		if clean && active && vwapState == VWAPBelow {
			return PermissionLimited
		}
	}
	return PermissionNo
}
