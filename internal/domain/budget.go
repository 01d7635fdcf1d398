package domain

import "fmt"

// Pressure classifies how close the active tool set is to the context budget.
type Pressure string

const (
	PressureNormal   Pressure = "normal"
	PressureWarning  Pressure = "warning"
	PressureCritical Pressure = "critical"
)

// Level orders pressures so they can be compared.
func (p Pressure) Level() int {
	switch p {
	case PressureWarning:
		return 1
	case PressureCritical:
		return 2
	default:
		return 0
	}
}

// ParsePressure accepts the three pressure names.
func ParsePressure(raw string) (Pressure, bool) {
	switch Pressure(raw) {
	case PressureNormal, PressureWarning, PressureCritical:
		return Pressure(raw), true
	default:
		return "", false
	}
}

// StrategyKind selects the eviction strategy.
type StrategyKind string

const (
	StrategyLRU   StrategyKind = "LRU"
	StrategySmart StrategyKind = "SMART"
)

// BudgetState is derived from the active set on demand; it is never stored.
type BudgetState struct {
	TotalWeight       int      `json:"totalWeight"`
	MaxWeight         int      `json:"maxWeight"`
	WarningThreshold  float64  `json:"warningThreshold"`
	CriticalThreshold float64  `json:"criticalThreshold"`
	Pressure          Pressure `json:"pressure"`
	ActiveItems       int      `json:"activeItems"`
}

// Utilization returns the weight ratio against the maximum, or 0 when unbounded.
func (s BudgetState) Utilization() float64 {
	if s.MaxWeight <= 0 {
		return 0
	}
	return float64(s.TotalWeight) / float64(s.MaxWeight)
}

// BudgetCondition reports a soft overflow: the budget stays exceeded because nothing
// else can be evicted. It is not an error; the triggering activation is kept.
type BudgetCondition struct {
	TotalWeight int      `json:"totalWeight"`
	MaxWeight   int      `json:"maxWeight"`
	Pressure    Pressure `json:"pressure"`
	Reason      string   `json:"reason"`
}

func (c BudgetCondition) String() string {
	return fmt.Sprintf("context budget exceeded: %d/%d tokens (%s): %s", c.TotalWeight, c.MaxWeight, c.Pressure, c.Reason)
}
