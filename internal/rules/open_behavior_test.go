package rules

import (
	"testing"
	"time"

	"tradesetup/internal/apperr"
)

func bars(start time.Time, ohlc ...[4]float64) []Candle {
	out := make([]Candle, 0, len(ohlc))
	for i, v := range ohlc {
		out = append(out, Candle{
			Time:   start.Add(time.Duration(i) * 5 * time.Minute),
			Open:   v[0],
			High:   v[1],
			Low:    v[2],
			Close:  v[3],
			Volume: 1000,
		})
	}
	return out
}

var open0915 = time.Date(2026, 1, 5, 9, 15, 0, 0, time.UTC)

func TestClassifyOpenBehavior_HeldTrendingUp(t *testing.T) {
	in := OpenBehaviorInputs{
		Candles: bars(open0915,
			[4]float64{100, 101, 99.5, 100.8},
			[4]float64{100.8, 101.5, 100.5, 101.2},
			[4]float64{101.2, 102, 101, 101.8},
			[4]float64{101.8, 102.2, 101.5, 102},
			[4]float64{102, 102.5, 101.8, 102.3},
			[4]float64{102.3, 102.6, 102, 102.4},
		),
		BaselineRange: 2.5,
	}
	res, err := ClassifyOpenBehavior(in)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if res.IRHigh != 102.6 || res.IRLow != 99.5 {
		t.Fatalf("ir=%v/%v want=102.6/99.5", res.IRHigh, res.IRLow)
	}
	if !approx(res.IRRange, 3.1) {
		t.Fatalf("ir_range=%v want=3.1", res.IRRange)
	}
	if res.VolatilityState != VolatilityNormal {
		t.Fatalf("volatility=%s want NORMAL", res.VolatilityState)
	}
	if res.VWAPCrossCount != 0 || res.VWAPState != VWAPAbove {
		t.Fatalf("vwap crosses=%d state=%s", res.VWAPCrossCount, res.VWAPState)
	}
	if res.RangeHoldStatus != RangeHeld {
		t.Fatalf("range_hold=%s want HELD", res.RangeHoldStatus)
	}
	if res.TradePermission != PermissionYes {
		t.Fatalf("permission=%s want YES", res.TradePermission)
	}
}

func TestClassifyOpenBehavior_BreakAfterWindow(t *testing.T) {
	in := OpenBehaviorInputs{
		Candles: bars(open0915,
			[4]float64{100, 100.5, 99.5, 100.2},
			[4]float64{100.2, 100.6, 99.9, 100.4},
			[4]float64{100.4, 101.5, 100.3, 101.4},
		),
		IRCandles: 2,
	}
	res, err := ClassifyOpenBehavior(in)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if res.IRHigh != 100.6 {
		t.Fatalf("ir_high=%v want=100.6", res.IRHigh)
	}
	if res.RangeHoldStatus != RangeBrokenUp {
		t.Fatalf("range_hold=%s want BROKEN_UP", res.RangeHoldStatus)
	}
	if res.VolatilityState != VolatilityNormal {
		t.Fatalf("volatility=%s want NORMAL without baseline", res.VolatilityState)
	}
	if res.TradePermission != PermissionLimited {
		t.Fatalf("permission=%s want LIMITED", res.TradePermission)
	}
}

func TestClassifyOpenBehavior_VWAPCrosses(t *testing.T) {
	in := OpenBehaviorInputs{
		Candles: bars(open0915,
			[4]float64{100, 101, 99, 100.9},
			[4]float64{100.9, 101, 98, 98.2},
			[4]float64{98.2, 101.5, 98, 101.4},
		),
	}
	res, err := ClassifyOpenBehavior(in)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if res.VWAPCrossCount != 2 {
		t.Fatalf("crosses=%d want=2", res.VWAPCrossCount)
	}
	if res.VWAPState != VWAPMixed {
		t.Fatalf("vwap_state=%s want MIXED", res.VWAPState)
	}
	if res.TradePermission != PermissionLimited {
		t.Fatalf("permission=%s want LIMITED", res.TradePermission)
	}
}

func TestClassifyOpenBehavior_EmptyCandles(t *testing.T) {
	_, err := ClassifyOpenBehavior(OpenBehaviorInputs{})
	if !apperr.IsValidation(err) {
		t.Fatalf("err=%v want validation", err)
	}
}

func TestVolatilityState(t *testing.T) {
	cases := []struct {
		ratio float64
		base  bool
		want  string
	}{
		{5, false, VolatilityNormal},
		{0.69, true, VolatilityContracting},
		{0.7, true, VolatilityNormal},
		{1.5, true, VolatilityNormal},
		{1.51, true, VolatilityExpanding},
		{2.5, true, VolatilityExpanding},
		{2.51, true, VolatilityChaotic},
	}
	for _, c := range cases {
		if got := VolatilityState(c.ratio, c.base); got != c.want {
			t.Fatalf("VolatilityState(%v,%v)=%s want=%s", c.ratio, c.base, got, c.want)
		}
	}
}

func TestTradePermission(t *testing.T) {
	cases := []struct {
		hold, vol, vwap, want string
	}{
		{RangeHeld, VolatilityNormal, VWAPAbove, PermissionYes},
		{RangeHeld, VolatilityExpanding, VWAPBelow, PermissionYes},
		{RangeHeld, VolatilityContracting, VWAPAbove, PermissionLimited},
		{RangeHeld, VolatilityNormal, VWAPMixed, PermissionLimited},
		{RangeHeld, VolatilityChaotic, VWAPAbove, PermissionNo},
		{RangeBrokenUp, VolatilityNormal, VWAPAbove, PermissionLimited},
		{RangeBrokenUp, VolatilityNormal, VWAPBelow, PermissionNo},
		{RangeBrokenDown, VolatilityExpanding, VWAPBelow, PermissionLimited},
		{RangeBrokenDown, VolatilityNormal, VWAPMixed, PermissionNo},
		{RangeBrokenDown, VolatilityContracting, VWAPBelow, PermissionNo},
	}
	for _, c := range cases {
		if got := TradePermission(c.hold, c.vol, c.vwap); got != c.want {
			t.Fatalf("TradePermission(%s,%s,%s)=%s want=%s", c.hold, c.vol, c.vwap, got, c.want)
		}
	}
}

func TestNoLooserThan(t *testing.T) {
	if !NoLooserThan(PermissionNo, PermissionYes) {
		t.Fatalf("NO should be allowed under YES")
	}
	if !NoLooserThan(PermissionLimited, PermissionLimited) {
		t.Fatalf("equal permission should be allowed")
	}
	if NoLooserThan(PermissionYes, PermissionLimited) {
		t.Fatalf("YES must not loosen LIMITED")
	}
	if NoLooserThan("MAYBE", PermissionYes) {
		t.Fatalf("unknown permission must be rejected")
	}
}
