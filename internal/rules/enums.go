package rules

// STEP-1 labels.
const (
	GapRange     = "RANGE"
	GapSelective = "SELECTIVE"
	GapStrong    = "STRONG"
	GapEvent     = "EVENT"

	GapUp   = "GAP_UP"
	GapDown = "GAP_DOWN"
	GapFlat = "FLAT"

	RangeSmall   = "SMALL"
	RangeNormal  = "NORMAL"
	RangeLarge   = "LARGE"
	RangeExtreme = "EXTREME"

	OverlapFull    = "FULL"
	OverlapPartial = "PARTIAL"
	OverlapNone    = "NO"

	StructureRange       = "RANGE"
	StructureTrendBiased = "TREND_BIASED"
	StructureUncertain   = "UNCERTAIN"
	StructureNoTrade     = "NO_TRADE"

	ContextTrendDay          = "TREND_DAY"
	ContextRangeUncertainDay = "RANGE_UNCERTAIN_DAY"
	ContextNoTradeDay        = "NO_TRADE_DAY"
)

// STEP-2 labels.
const (
	VolatilityNormal      = "NORMAL"
	VolatilityExpanding   = "EXPANDING"
	VolatilityContracting = "CONTRACTING"
	VolatilityChaotic     = "CHAOTIC"

	VWAPAbove = "ABOVE_VWAP"
	VWAPBelow = "BELOW_VWAP"
	VWAPMixed = "MIXED"

	RangeHeld       = "HELD"
	RangeBrokenUp   = "BROKEN_UP"
	RangeBrokenDown = "BROKEN_DOWN"

	PermissionYes     = "YES"
	PermissionLimited = "LIMITED"
	PermissionNo      = "NO"
)

// STEP-3 and STEP-4 labels.
const (
	StrategyGapFollow = "GAP_FOLLOW"
	StrategyMomentum  = "MOMENTUM"
	StrategyNoTrade   = "NO_TRADE"

	DirectionLong  = "LONG"
	DirectionShort = "SHORT"

	PriceAboveVWAP = "ABOVE"
	PriceBelowVWAP = "BELOW"

	TradeReady   = "READY"
	TradeBlocked = "BLOCKED"

	BlockInvalidRiskDistance = "INVALID_RISK_DISTANCE"
	BlockInsufficientCapital = "INSUFFICIENT_CAPITAL"
)

func IsMarketContext(v string) bool {
	switch v {
	case ContextTrendDay, ContextRangeUncertainDay, ContextNoTradeDay:
		return true
	}
	return false
}

func IsPermission(v string) bool {
	switch v {
	case PermissionYes, PermissionLimited, PermissionNo:
		return true
	}
	return false
}

// permissionRank orders permissions from most to least restrictive.
func permissionRank(v string) int {
	switch v {
	case PermissionNo:
		return 0
	case PermissionLimited:
		return 1
	case PermissionYes:
		return 2
	}
	return -1
}

// NoLooserThan reports whether candidate grants at most what derived grants.
func NoLooserThan(candidate, derived string) bool {
	c, d := permissionRank(candidate), permissionRank(derived)
	if c < 0 || d < 0 {
		return false
	}
	return c <= d
}
