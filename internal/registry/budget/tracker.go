package budget

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"capgate/internal/domain"
	"capgate/internal/registry/catalog"
)

// Store is the catalog view the tracker reads.
type Store interface {
	Active() []domain.ToolDescriptor
	ActiveWeight() (int, int)
	Usage(name string) (catalog.Usage, bool)
}

// DependencyIndex reports active dependents of a tool.
type DependencyIndex interface {
	Dependents(name string) []string
}

// Evictor deactivates tools chosen for eviction and returns the ones it removed.
type Evictor interface {
	Evict(names []string) []string
}

// EvictFunc adapts a function to Evictor.
type EvictFunc func(names []string) []string

func (f EvictFunc) Evict(names []string) []string { return f(names) }

// Config holds the context budget settings of a profile.
type Config struct {
	Enabled           bool
	MaxWeight         int
	WarningThreshold  float64
	CriticalThreshold float64
	Strategy          domain.StrategyKind
	AutoOptimize      bool
	// OptimizeTarget is where eviction stops. Empty picks the strategy's
	// default: normal for LRU, warning for SMART.
	OptimizeTarget    domain.Pressure
	CascadeEviction   bool
}

// ConfigFromProfile extracts the budget settings from a profile.
func ConfigFromProfile(profile domain.Profile) Config {
	c := profile.Context
	return Config{
		Enabled:           c.Enabled,
		MaxWeight:         c.MaxWeight,
		WarningThreshold:  c.WarningThreshold,
		CriticalThreshold: c.CriticalThreshold,
		Strategy:          c.Strategy,
		AutoOptimize:      c.AutoOptimize,
		OptimizeTarget:    c.OptimizeTarget,
		CascadeEviction:   c.CascadeEviction,
	}
}

// Outcome reports one optimization pass.
type Outcome struct {
	Evicted   []string
	State     domain.BudgetState
	Condition *domain.BudgetCondition
}

// Tracker derives the budget state from the catalog and plans evictions.
type Tracker struct {
	store   Store
	deps    DependencyIndex
	metrics domain.Metrics
	logger  *zap.Logger

	mu       sync.RWMutex
	cfg      Config
	strategy Strategy
	last     domain.Pressure
}

// NewTracker constructs a tracker. deps may be nil when dependency
// resolution is disabled.
func NewTracker(store Store, deps DependencyIndex, cfg Config, metrics domain.Metrics, logger *zap.Logger) (*Tracker, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = withDefaults(cfg)
	strategy, err := NewStrategy(cfg.Strategy)
	if err != nil {
		return nil, err
	}
	return &Tracker{
		store:    store,
		deps:     deps,
		cfg:      cfg,
		strategy: strategy,
		metrics:  metrics,
		logger:   logger.Named("budget"),
		last:     domain.PressureNormal,
	}, nil
}

func withDefaults(cfg Config) Config {
	if cfg.Strategy == "" {
		cfg.Strategy = domain.StrategyLRU
	}
	if cfg.OptimizeTarget == "" {
		cfg.OptimizeTarget = DefaultTarget(cfg.Strategy)
	}
	return cfg
}

// DefaultTarget is the pressure a strategy evicts down to when the profile
// does not name one.
func DefaultTarget(kind domain.StrategyKind) domain.Pressure {
	if kind == domain.StrategySmart {
		return domain.PressureWarning
	}
	return domain.PressureNormal
}

// Reconfigure swaps thresholds and strategy. Nothing is evicted until the
// next optimization pass.
func (t *Tracker) Reconfigure(cfg Config) error {
	cfg = withDefaults(cfg)
	strategy, err := NewStrategy(cfg.Strategy)
	if err != nil {
		return err
	}
	t.mu.Lock()
	t.cfg = cfg
	t.strategy = strategy
	t.mu.Unlock()
	return nil
}

// Config returns the active settings.
func (t *Tracker) Config() Config {
	cfg, _ := t.settings()
	return cfg
}

func (t *Tracker) settings() (Config, Strategy) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.cfg, t.strategy
}

// State sums the active weights. It is recomputed on every call.
func (t *Tracker) State() domain.BudgetState {
	cfg, _ := t.settings()
	return t.stateFor(cfg)
}

func (t *Tracker) stateFor(cfg Config) domain.BudgetState {
	weight, count := t.store.ActiveWeight()
	return domain.BudgetState{
		TotalWeight:       weight,
		MaxWeight:         cfg.MaxWeight,
		WarningThreshold:  cfg.WarningThreshold,
		CriticalThreshold: cfg.CriticalThreshold,
		Pressure:          pressureFor(cfg, weight),
		ActiveItems:       count,
	}
}

// Observe recomputes the state after a mutation and reports pressure changes.
func (t *Tracker) Observe() domain.BudgetState {
	state := t.State()
	t.mu.Lock()
	previous := t.last
	t.last = state.Pressure
	t.mu.Unlock()
	if state.Pressure != previous {
		fields := []zap.Field{
			zap.String("from", string(previous)),
			zap.String("to", string(state.Pressure)),
			zap.Int("weight", state.TotalWeight),
			zap.Int("max_weight", state.MaxWeight),
		}
		if state.Pressure.Level() > previous.Level() {
			t.logger.Warn("context pressure increased", fields...)
		} else {
			t.logger.Info("context pressure decreased", fields...)
		}
	}
	if t.metrics != nil {
		t.metrics.ObserveBudget(state)
	}
	return state
}

// Optimize evicts through evictor when pressure is critical and
// auto-optimization is on. Protected and load-by-default tools are never
// chosen. A budget that stays exceeded is reported, not enforced.
func (t *Tracker) Optimize(protected map[string]struct{}, evictor Evictor) Outcome {
	cfg, strategy := t.settings()
	state := t.stateFor(cfg)
	if !cfg.Enabled || state.Pressure != domain.PressureCritical {
		return Outcome{State: state}
	}
	if !cfg.AutoOptimize {
		return t.overflow(Outcome{State: state}, "auto-optimization is disabled")
	}

	units := strategy.Plan(t.candidates(protected), PlanOptions{CascadeEviction: cfg.CascadeEviction})
	weights := t.weights()
	weight := state.TotalWeight
	var chosen []string
	for _, unit := range units {
		if pressureFor(cfg, weight).Level() <= cfg.OptimizeTarget.Level() {
			break
		}
		for _, name := range unit {
			weight -= weights[name]
		}
		chosen = append(chosen, unit...)
	}

	var outcome Outcome
	if len(chosen) > 0 {
		outcome.Evicted = evictor.Evict(chosen)
		t.logger.Info("evicted tools to relieve context pressure",
			zap.String("strategy", string(strategy.Kind())),
			zap.Strings("tools", outcome.Evicted),
			zap.Int("weight_before", state.TotalWeight),
		)
		if t.metrics != nil {
			t.metrics.ObserveEvictions(strategy.Kind(), len(outcome.Evicted))
		}
	}
	outcome.State = t.Observe()
	if outcome.State.Pressure == domain.PressureCritical {
		return t.overflow(outcome, "no evictable tools remain")
	}
	return outcome
}

func (t *Tracker) overflow(outcome Outcome, reason string) Outcome {
	outcome.Condition = &domain.BudgetCondition{
		TotalWeight: outcome.State.TotalWeight,
		MaxWeight:   outcome.State.MaxWeight,
		Pressure:    outcome.State.Pressure,
		Reason:      reason,
	}
	t.logger.Warn("context budget overflow kept", zap.String("condition", outcome.Condition.String()))
	if t.metrics != nil {
		t.metrics.ObserveBudgetOverflow()
	}
	return outcome
}

func (t *Tracker) candidates(protected map[string]struct{}) []Candidate {
	active := t.store.Active()
	out := make([]Candidate, 0, len(active))
	for _, desc := range active {
		if desc.LoadByDefault {
			continue
		}
		if _, skip := protected[desc.Name]; skip {
			continue
		}
		usage, _ := t.store.Usage(desc.Name)
		c := Candidate{
			Name:         desc.Name,
			Weight:       desc.EstimatedTokens,
			Priority:     desc.Priority,
			ActivatedSeq: usage.ActivatedSeq,
			UsedSeq:      usage.UsedSeq,
		}
		if t.deps != nil {
			c.Dependents = t.deps.Dependents(desc.Name)
		}
		out = append(out, c)
	}
	return out
}

func (t *Tracker) weights() map[string]int {
	active := t.store.Active()
	out := make(map[string]int, len(active))
	for _, desc := range active {
		out[desc.Name] = desc.EstimatedTokens
	}
	return out
}

func pressureFor(cfg Config, weight int) domain.Pressure {
	if !cfg.Enabled || cfg.MaxWeight <= 0 {
		return domain.PressureNormal
	}
	ratio := float64(weight) / float64(cfg.MaxWeight)
	switch {
	case ratio >= cfg.CriticalThreshold:
		return domain.PressureCritical
	case ratio >= cfg.WarningThreshold:
		return domain.PressureWarning
	default:
		return domain.PressureNormal
	}
}

// Describe renders the state for logs and CLI output.
func Describe(state domain.BudgetState) string {
	return fmt.Sprintf("%d/%d tokens (%.0f%%, %s)", state.TotalWeight, state.MaxWeight, state.Utilization()*100, state.Pressure)
}
