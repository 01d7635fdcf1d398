package budget

import (
	"fmt"
	"sort"

	"capgate/internal/domain"
)

// Candidate is an active tool that eviction may remove.
type Candidate struct {
	Name         string
	Weight       int
	Priority     int
	ActivatedSeq uint64
	UsedSeq      uint64
	// Dependents are the active tools that depend on this one directly.
	Dependents []string
}

func (c Candidate) lastSeen() uint64 {
	if c.UsedSeq > c.ActivatedSeq {
		return c.UsedSeq
	}
	return c.ActivatedSeq
}

// PlanOptions tunes how a strategy treats dependents.
type PlanOptions struct {
	CascadeEviction bool
}

// Strategy orders candidates into eviction units. The tracker consumes units
// in order until pressure is back under the target.
type Strategy interface {
	Kind() domain.StrategyKind
	Plan(candidates []Candidate, opts PlanOptions) [][]string
}

// NewStrategy returns the strategy for kind.
func NewStrategy(kind domain.StrategyKind) (Strategy, error) {
	switch kind {
	case domain.StrategyLRU, "":
		return LRU{}, nil
	case domain.StrategySmart:
		return Smart{}, nil
	default:
		return nil, fmt.Errorf("unknown eviction strategy %q", kind)
	}
}

// LRU evicts the least recently activated tools first.
type LRU struct{}

func (LRU) Kind() domain.StrategyKind { return domain.StrategyLRU }

func (LRU) Plan(candidates []Candidate, _ PlanOptions) [][]string {
	ordered := append([]Candidate(nil), candidates...)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].ActivatedSeq != ordered[j].ActivatedSeq {
			return ordered[i].ActivatedSeq < ordered[j].ActivatedSeq
		}
		return ordered[i].Name < ordered[j].Name
	})
	units := make([][]string, 0, len(ordered))
	for _, c := range ordered {
		units = append(units, []string{c.Name})
	}
	return units
}

// Smart evicts by ascending priority, then least recent use. A tool that
// still has active dependents is skipped, or evicted together with them when
// cascading is allowed and every dependent is itself evictable.
type Smart struct{}

func (Smart) Kind() domain.StrategyKind { return domain.StrategySmart }

func (Smart) Plan(candidates []Candidate, opts PlanOptions) [][]string {
	ordered := append([]Candidate(nil), candidates...)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		if a.lastSeen() != b.lastSeen() {
			return a.lastSeen() < b.lastSeen()
		}
		return a.Name < b.Name
	})
	byName := make(map[string]Candidate, len(ordered))
	for _, c := range ordered {
		byName[c.Name] = c
	}

	evicted := make(map[string]struct{})
	var units [][]string
	for _, c := range ordered {
		if _, done := evicted[c.Name]; done {
			continue
		}
		pending := remaining(c.Dependents, evicted)
		if len(pending) == 0 {
			units = append(units, []string{c.Name})
			evicted[c.Name] = struct{}{}
			continue
		}
		if !opts.CascadeEviction {
			continue
		}
		unit, ok := cascade(c.Name, byName, evicted)
		if !ok {
			continue
		}
		for _, name := range unit {
			evicted[name] = struct{}{}
		}
		units = append(units, unit)
	}
	return units
}

// cascade collects name and its transitive dependents. It fails when any
// dependent is not itself a candidate.
func cascade(name string, byName map[string]Candidate, evicted map[string]struct{}) ([]string, bool) {
	unit := []string{name}
	seen := map[string]struct{}{name: {}}
	for i := 0; i < len(unit); i++ {
		for _, dep := range byName[unit[i]].Dependents {
			if _, done := evicted[dep]; done {
				continue
			}
			if _, ok := seen[dep]; ok {
				continue
			}
			if _, ok := byName[dep]; !ok {
				return nil, false
			}
			seen[dep] = struct{}{}
			unit = append(unit, dep)
		}
	}
	return unit, true
}

func remaining(names []string, evicted map[string]struct{}) []string {
	var out []string
	for _, name := range names {
		if _, done := evicted[name]; !done {
			out = append(out, name)
		}
	}
	return out
}
