package rules

import (
	"github.com/shopspring/decimal"
)

// Journal labels.
const (
	PlanPlanned  = "PLANNED"
	PlanExecuted = "EXECUTED"
	PlanNotTaken = "NOT_TAKEN"

	ModePaper = "PAPER"
	ModeReal  = "REAL"

	SideBuy  = "BUY"
	SideSell = "SELL"

	ResultOpen      = "open"
	ResultProfit    = "profit"
	ResultLoss      = "loss"
	ResultBreakeven = "breakeven"
)

var (
	reviewExitReasons = set("STOP_HIT", "TARGET_HIT", "TRAILING_STOP", "MANUAL_FEAR", "MANUAL_CONFUSION", "RULE_VIOLATION")
	emotionalStates   = set("CALM", "HESITANT", "FEARFUL", "CONFIDENT", "FOMO", "REVENGE", "DISTRACTED")
	reviewContexts    = set("TRENDING", "RANGE", "CHOPPY", "NEWS_DRIVEN", "LOW_LIQUIDITY")
	tradeGrades       = set("A", "B", "C")
)

func set(values ...string) map[string]struct{} {
	out := make(map[string]struct{}, len(values))
	for _, v := range values {
		out[v] = struct{}{}
	}
	return out
}

func IsTradeMode(v string) bool { return v == ModePaper || v == ModeReal }

func IsDirection(v string) bool { return v == DirectionLong || v == DirectionShort }

func IsReviewExitReason(v string) bool { _, ok := reviewExitReasons[v]; return ok }

func IsEmotionalState(v string) bool { _, ok := emotionalStates[v]; return ok }

func IsReviewContext(v string) bool { _, ok := reviewContexts[v]; return ok }

func IsTradeGrade(v string) bool { _, ok := tradeGrades[v]; return ok }

// SideFor is the opening order side for a position direction.
func SideFor(direction string) string {
	if direction == DirectionShort {
		return SideSell
	}
	return SideBuy
}

// Outcome is the realised result of a closed trade.
type Outcome struct {
	PnLAmount decimal.Decimal
	// PnLPct is PnLAmount over the entry notional, in percent.
	PnLPct decimal.Decimal
	Result string
}

// ClosedOutcome computes net P&L after fees. A zero entry notional yields a
// zero percentage.
func ClosedOutcome(direction string, entry, exit decimal.Decimal, quantity int64, fees decimal.Decimal) Outcome {
	qty := decimal.NewFromInt(quantity)
	move := exit.Sub(entry)
	if direction == DirectionShort {
		move = entry.Sub(exit)
	}
	pnl := move.Mul(qty).Sub(fees)

	pct := decimal.Zero
	if notional := entry.Mul(qty); notional.IsPositive() {
		pct = pnl.Div(notional).Mul(decimal.NewFromInt(100)).Round(4)
	}
	result := ResultBreakeven
	switch pnl.Sign() {
	case 1:
		result = ResultProfit
	case -1:
		result = ResultLoss
	}
	return Outcome{PnLAmount: pnl.Round(6), PnLPct: pct, Result: result}
}
