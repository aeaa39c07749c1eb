package rules

// ExecutionDecision is the STEP-3A output for a (context, permission) pair.
type ExecutionDecision struct {
	AllowedStrategies []string `json:"allowed_strategies"`
	MaxTradesAllowed  int      `json:"max_trades_allowed"`
	ExecutionAllowed  bool     `json:"execution_allowed"`
}

// DeriveExecution is the fixed STEP-3A matrix. Unknown pairs resolve to no
// execution. AllowedStrategies is never nil so the serialized form is stable.
func DeriveExecution(marketContext, permission string) ExecutionDecision {
	d := ExecutionDecision{AllowedStrategies: []string{}}
	if permission == PermissionNo || marketContext == ContextNoTradeDay {
		return d
	}
	switch {
	case marketContext == ContextTrendDay && permission == PermissionYes:
		d.AllowedStrategies = []string{StrategyGapFollow, StrategyMomentum}
		d.MaxTradesAllowed = 3
	case marketContext == ContextTrendDay && permission == PermissionLimited:
		d.AllowedStrategies = []string{StrategyMomentum}
		d.MaxTradesAllowed = 1
	case marketContext == ContextRangeUncertainDay && permission == PermissionYes:
		d.AllowedStrategies = []string{StrategyMomentum}
		d.MaxTradesAllowed = 1
	}
	d.ExecutionAllowed = d.MaxTradesAllowed > 0
	return d
}

func (d ExecutionDecision) Allows(strategy string) bool {
	for _, s := range d.AllowedStrategies {
		if s == strategy {
			return true
		}
	}
	return false
}
