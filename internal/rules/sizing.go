package rules

import (
	"github.com/shopspring/decimal"

	"tradesetup/internal/apperr"
)

// SnapshotLevels are the frozen STEP-3 levels as stored.
type SnapshotLevels struct {
	GapHigh       *decimal.Decimal
	GapLow        *decimal.Decimal
	IntradayHigh  *decimal.Decimal
	IntradayLow   *decimal.Decimal
	LastHigherLow *decimal.Decimal
	LastLowerHigh *decimal.Decimal
}

type SizingInputs struct {
	Strategy    string
	Direction   string
	Levels      SnapshotLevels
	Capital     decimal.Decimal
	RiskPercent decimal.Decimal
	EntryBuffer decimal.Decimal
	RMultiple   decimal.Decimal
}

type Sizing struct {
	EntryPrice   decimal.Decimal `json:"entry_price"`
	StopLoss     decimal.Decimal `json:"stop_loss"`
	RiskPerShare decimal.Decimal `json:"risk_per_share"`
	RiskAmount   decimal.Decimal `json:"risk_amount"`
	Quantity     int64           `json:"quantity"`
	TargetPrice  decimal.Decimal `json:"target_price"`
	TradeStatus  string          `json:"trade_status"`
	BlockReason  string          `json:"block_reason,omitempty"`
}

var hundred = decimal.NewFromInt(100)

func (in SizingInputs) Validate() error {
	if !in.Capital.IsPositive() {
		return apperr.Validation("INVALID_CAPITAL", "capital must be positive")
	}
	if !in.RiskPercent.IsPositive() || in.RiskPercent.GreaterThan(hundred) {
		return apperr.Validation("INVALID_RISK_PERCENT", "risk_percent must be in (0, 100]")
	}
	if in.EntryBuffer.IsNegative() {
		return apperr.Validation("INVALID_ENTRY_BUFFER", "entry_buffer must be non-negative")
	}
	if !in.RMultiple.IsPositive() {
		return apperr.Validation("INVALID_R_MULTIPLE", "r_multiple must be positive")
	}
	if in.Direction != DirectionLong && in.Direction != DirectionShort {
		return apperr.Conflict("INVALID_STRUCTURE", "candidate direction %q is not tradable", in.Direction)
	}
	return nil
}

// referenceLevels picks entry/stop anchors from the frozen snapshot.
func referenceLevels(in SizingInputs) (entry, stop decimal.Decimal, err error) {
	l := in.Levels
	long := in.Direction == DirectionLong
	switch in.Strategy {
	case StrategyGapFollow:
		if l.GapHigh == nil || l.GapLow == nil {
			return entry, stop, apperr.Conflict("INVALID_STRUCTURE", "GAP_FOLLOW candidate is missing gap levels")
		}
		if long {
			return l.GapHigh.Add(in.EntryBuffer), *l.GapLow, nil
		}
		return l.GapLow.Sub(in.EntryBuffer), *l.GapHigh, nil
	case StrategyMomentum:
		if long {
			if l.IntradayHigh == nil || l.LastHigherLow == nil {
				return entry, stop, apperr.Conflict("INVALID_STRUCTURE", "MOMENTUM LONG candidate is missing intraday_high or last_higher_low")
			}
			return l.IntradayHigh.Add(in.EntryBuffer), *l.LastHigherLow, nil
		}
		if l.IntradayLow == nil || l.LastLowerHigh == nil {
			return entry, stop, apperr.Conflict("INVALID_STRUCTURE", "MOMENTUM SHORT candidate is missing intraday_low or last_lower_high")
		}
		return l.IntradayLow.Sub(in.EntryBuffer), *l.LastLowerHigh, nil
	}
	return entry, stop, apperr.Conflict("INVALID_STRUCTURE", "strategy %q cannot be constructed", in.Strategy)
}

// SizeTrade builds a STEP-4 construction. A construction that cannot be
// traded comes back BLOCKED rather than as an error.
func SizeTrade(in SizingInputs) (Sizing, error) {
	if err := in.Validate(); err != nil {
		return Sizing{}, err
	}
	entry, stop, err := referenceLevels(in)
	if err != nil {
		return Sizing{}, err
	}

	out := Sizing{EntryPrice: entry, StopLoss: stop, TradeStatus: TradeReady}
	out.RiskPerShare = entry.Sub(stop).Abs()
	out.RiskAmount = in.Capital.Mul(in.RiskPercent).Div(hundred)

	// A stop on the wrong side of entry counts as an invalid distance.
	wrongSide := (in.Direction == DirectionLong && !stop.LessThan(entry)) ||
		(in.Direction == DirectionShort && !stop.GreaterThan(entry))
	if !out.RiskPerShare.IsPositive() || wrongSide {
		out.TradeStatus = TradeBlocked
		out.BlockReason = BlockInvalidRiskDistance
		out.TargetPrice = entry
		return out, nil
	}

	out.Quantity = out.RiskAmount.Div(out.RiskPerShare).Floor().IntPart()
	reward := out.RiskPerShare.Mul(in.RMultiple)
	if in.Direction == DirectionLong {
		out.TargetPrice = entry.Add(reward)
	} else {
		out.TargetPrice = entry.Sub(reward)
	}
	if out.Quantity < 1 {
		out.TradeStatus = TradeBlocked
		out.BlockReason = BlockInsufficientCapital
	}
	return out, nil
}

// CheckFreezable is the last guard before a construction becomes a trade.
func CheckFreezable(direction, status string, entry, stop decimal.Decimal, quantity int64) error {
	if status != TradeReady {
		return apperr.Conflict("TRADE_BLOCKED", "a %s construction cannot be frozen", status)
	}
	if quantity < 1 {
		return apperr.Conflict("TRADE_BLOCKED", "construction quantity must be at least 1")
	}
	switch direction {
	case DirectionLong:
		if !stop.LessThan(entry) {
			return apperr.Conflict("INVALID_STOP", "LONG stop_loss must be below entry_price")
		}
	case DirectionShort:
		if !stop.GreaterThan(entry) {
			return apperr.Conflict("INVALID_STOP", "SHORT stop_loss must be above entry_price")
		}
	default:
		return apperr.Conflict("INVALID_STRUCTURE", "unknown direction %q", direction)
	}
	return nil
}
