package audit

import (
	"fmt"
	"sort"
	"time"

	"capgate/internal/domain"
)

// PatternConfig tunes pattern detection.
type PatternConfig struct {
	ThrashWindow    time.Duration
	ThrashThreshold int
}

// DetectPatterns scans entries, oldest first, for advisory usage patterns.
// It only reads entries.
func DetectPatterns(entries []domain.AuditEntry, cfg PatternConfig) []domain.UsagePattern {
	if cfg.ThrashWindow <= 0 {
		cfg.ThrashWindow = domain.DefaultThrashWindow
	}
	if cfg.ThrashThreshold <= 0 {
		cfg.ThrashThreshold = domain.DefaultThrashThreshold
	}

	var patterns []domain.UsagePattern
	patterns = append(patterns, thrashing(entries, cfg)...)
	patterns = append(patterns, discoveryFriction(entries)...)
	patterns = append(patterns, unusedActivations(entries)...)
	sort.SliceStable(patterns, func(i, j int) bool {
		if patterns[i].Kind != patterns[j].Kind {
			return patterns[i].Kind < patterns[j].Kind
		}
		return patterns[i].Subject < patterns[j].Subject
	})
	return patterns
}

type toolState struct {
	activatedAt time.Time
	active      bool
	used        bool
	cycles      []time.Time
	unused      int
}

func replay(entries []domain.AuditEntry) map[string]*toolState {
	tools := make(map[string]*toolState)
	get := func(name string) *toolState {
		st, ok := tools[name]
		if !ok {
			st = &toolState{}
			tools[name] = st
		}
		return st
	}
	for _, entry := range entries {
		for _, name := range entry.Subjects {
			st := get(name)
			switch entry.Kind {
			case domain.AuditActivate:
				if st.active {
					continue
				}
				st.active = true
				st.used = false
				st.activatedAt = entry.Timestamp
			case domain.AuditCall:
				st.used = true
			case domain.AuditDeactivate, domain.AuditEvict:
				if !st.active {
					continue
				}
				st.active = false
				st.cycles = append(st.cycles, st.activatedAt)
				if !st.used {
					st.unused++
				}
			}
		}
	}
	return tools
}

func thrashing(entries []domain.AuditEntry, cfg PatternConfig) []domain.UsagePattern {
	var out []domain.UsagePattern
	for name, st := range replay(entries) {
		best := 0
		start := 0
		for end := range st.cycles {
			for st.cycles[end].Sub(st.cycles[start]) > cfg.ThrashWindow {
				start++
			}
			if n := end - start + 1; n > best {
				best = n
			}
		}
		if best >= cfg.ThrashThreshold {
			out = append(out, domain.UsagePattern{
				Kind:    domain.PatternThrashing,
				Subject: name,
				Count:   best,
				Detail:  fmt.Sprintf("%d activate/deactivate cycles within %s", best, cfg.ThrashWindow),
			})
		}
	}
	return out
}

func unusedActivations(entries []domain.AuditEntry) []domain.UsagePattern {
	var out []domain.UsagePattern
	for name, st := range replay(entries) {
		if st.unused == 0 {
			continue
		}
		out = append(out, domain.UsagePattern{
			Kind:    domain.PatternUnusedActivation,
			Subject: name,
			Count:   st.unused,
			Detail:  fmt.Sprintf("activated %d time(s) and removed without a call", st.unused),
		})
	}
	return out
}

// discoveryFriction finds categories activated explicitly with no later call
// to any tool of that category.
func discoveryFriction(entries []domain.AuditEntry) []domain.UsagePattern {
	pending := make(map[string]int)
	for _, entry := range entries {
		switch entry.Kind {
		case domain.AuditActivate:
			for _, category := range entry.Categories {
				pending[category]++
			}
		case domain.AuditCall:
			for _, category := range entry.Categories {
				delete(pending, category)
			}
		}
	}
	out := make([]domain.UsagePattern, 0, len(pending))
	for category, count := range pending {
		out = append(out, domain.UsagePattern{
			Kind:    domain.PatternDiscoveryFriction,
			Subject: category,
			Count:   count,
			Detail:  fmt.Sprintf("category requested %d time(s) with no tool call afterwards", count),
		})
	}
	return out
}
