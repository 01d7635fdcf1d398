package resolver

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"capgate/internal/domain"
)

const defaultMaxDepth = 3

// Catalog is the read-only view of the catalog store the resolver needs.
type Catalog interface {
	Get(name string) (domain.ToolDescriptor, bool)
	ByCategory(category domain.Category) []domain.ToolDescriptor
	BySubCategory(ref domain.SubCategoryRef) []domain.ToolDescriptor
	Active() []domain.ToolDescriptor
	IsActive(name string) bool
}

// Config controls dependency expansion.
type Config struct {
	Enabled       bool
	MaxDepth      int
	AllowCircular bool
}

// ConfigFromProfile extracts the resolver settings from a profile.
func ConfigFromProfile(profile domain.Profile) Config {
	return Config{
		Enabled:       profile.Dependencies.Enabled,
		MaxDepth:      profile.Dependencies.MaxDepth,
		AllowCircular: profile.Dependencies.AllowCircular,
	}
}

// Request names the tools, categories and sub-categories to resolve.
type Request struct {
	Tools         []string
	Categories    []domain.Category
	SubCategories []domain.SubCategoryRef
	Exclusive     bool
}

// Result is the activation plan for a request. Nothing is applied.
type Result struct {
	Requested            []string
	Closure              []string
	ToActivate           []string
	ToDeactivate         []string
	DependenciesPulledIn []string
	Unknown              []string
	Warnings             []string
}

// Resolver expands requests into their dependency closure.
type Resolver struct {
	catalog Catalog
	cfg     Config
	logger  *zap.Logger
}

// New constructs a resolver over catalog.
func New(catalog Catalog, cfg Config, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = defaultMaxDepth
	}
	return &Resolver{catalog: catalog, cfg: cfg, logger: logger.Named("resolver")}
}

// Config returns the active resolver settings.
func (r *Resolver) Config() Config {
	return r.cfg
}

// Resolve computes the closure of req against the current catalog state.
// Unknown explicit tool names are reported in Result.Unknown, not as an error.
func (r *Resolver) Resolve(req Request) (Result, error) {
	var result Result
	requested := newOrderedSet()

	for _, raw := range req.Tools {
		name := strings.TrimSpace(raw)
		if _, ok := r.catalog.Get(name); !ok {
			result.Unknown = append(result.Unknown, name)
			continue
		}
		requested.add(name)
	}
	for _, category := range req.Categories {
		for _, desc := range r.catalog.ByCategory(category) {
			requested.add(desc.Name)
		}
	}
	for _, ref := range req.SubCategories {
		for _, desc := range r.catalog.BySubCategory(ref) {
			requested.add(desc.Name)
		}
	}
	result.Requested = requested.list()

	closure := newOrderedSet()
	if !r.cfg.Enabled {
		for _, name := range result.Requested {
			closure.add(name)
		}
	} else {
		w := &walk{resolver: r, closure: closure, depth: make(map[string]int), warnings: newOrderedSet()}
		for _, name := range result.Requested {
			if err := w.visit(name, 0, nil); err != nil {
				return Result{}, err
			}
		}
		result.Warnings = w.warnings.list()
	}
	result.Closure = closure.list()

	for _, name := range result.Closure {
		if !requested.has(name) {
			result.DependenciesPulledIn = append(result.DependenciesPulledIn, name)
		}
		if !r.catalog.IsActive(name) {
			result.ToActivate = append(result.ToActivate, name)
		}
	}
	if req.Exclusive {
		for _, desc := range r.catalog.Active() {
			if desc.LoadByDefault || closure.has(desc.Name) {
				continue
			}
			result.ToDeactivate = append(result.ToDeactivate, desc.Name)
		}
	}
	return result, nil
}

// Expand turns one dependsOn entry into tool names. A tool name wins over a
// category id; "category/sub" selects a sub-category.
func (r *Resolver) Expand(ref string) ([]string, bool) {
	ref = strings.TrimSpace(ref)
	if _, ok := r.catalog.Get(ref); ok {
		return []string{ref}, true
	}
	if strings.ContainsAny(ref, "/:") {
		sub, err := domain.ParseSubCategoryRef(ref)
		if err != nil {
			return nil, false
		}
		return descriptorNames(r.catalog.BySubCategory(sub)), true
	}
	if category, ok := domain.ParseCategory(ref); ok {
		return descriptorNames(r.catalog.ByCategory(category)), true
	}
	return nil, false
}

// DirectDependencies expands the dependsOn list of name one hop deep.
func (r *Resolver) DirectDependencies(name string) []string {
	desc, ok := r.catalog.Get(name)
	if !ok {
		return nil
	}
	deps := newOrderedSet()
	for _, ref := range desc.DependsOn {
		targets, _ := r.Expand(ref)
		for _, target := range targets {
			if target != name {
				deps.add(target)
			}
		}
	}
	return deps.list()
}

// Dependents lists the active tools that directly depend on name.
func (r *Resolver) Dependents(name string) []string {
	if !r.cfg.Enabled {
		return nil
	}
	var out []string
	for _, desc := range r.catalog.Active() {
		if desc.Name == name {
			continue
		}
		for _, dep := range r.DirectDependencies(desc.Name) {
			if dep == name {
				out = append(out, desc.Name)
				break
			}
		}
	}
	return out
}

// Validate checks that every dependsOn target of descs exists. Failures are
// fatal at startup. Cycles are reported per request by Resolve.
func (r *Resolver) Validate(descs []domain.ToolDescriptor) error {
	if !r.cfg.Enabled {
		return nil
	}
	var problems []string
	for _, desc := range descs {
		for _, ref := range desc.DependsOn {
			if _, ok := r.Expand(ref); !ok {
				problems = append(problems, fmt.Sprintf("tool %s depends on unknown target %q", desc.Name, ref))
			}
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid dependencies: %s", strings.Join(problems, "; "))
	}
	return nil
}

type walk struct {
	resolver *Resolver
	closure  *orderedSet
	depth    map[string]int
	warnings *orderedSet
}

func (w *walk) visit(name string, depth int, path []string) error {
	if best, seen := w.depth[name]; seen && best <= depth {
		return nil
	}
	w.depth[name] = depth
	w.closure.add(name)

	desc, ok := w.resolver.catalog.Get(name)
	if !ok || len(desc.DependsOn) == 0 {
		return nil
	}
	if depth >= w.resolver.cfg.MaxDepth {
		w.warnings.add(fmt.Sprintf("dependency depth limit %d reached at %s", w.resolver.cfg.MaxDepth, name))
		return nil
	}
	path = append(path, name)
	for _, ref := range desc.DependsOn {
		targets, known := w.resolver.Expand(ref)
		if !known {
			w.warnings.add(fmt.Sprintf("tool %s depends on unknown target %q", name, ref))
			continue
		}
		explicit := len(targets) == 1 && targets[0] == strings.TrimSpace(ref)
		for _, target := range targets {
			if idx := indexOf(path, target); idx >= 0 {
				if !explicit {
					// category members already on the path are satisfied by membership
					continue
				}
				cycle := append(append([]string(nil), path[idx:]...), target)
				if !w.resolver.cfg.AllowCircular {
					return &domain.CircularDependencyError{Cycle: cycle}
				}
				w.warnings.add("circular dependency ignored: " + strings.Join(cycle, " -> "))
				continue
			}
			if err := w.visit(target, depth+1, path); err != nil {
				return err
			}
		}
	}
	return nil
}

type orderedSet struct {
	items []string
	index map[string]struct{}
}

func newOrderedSet() *orderedSet {
	return &orderedSet{index: make(map[string]struct{})}
}

func (s *orderedSet) add(value string) {
	if _, ok := s.index[value]; ok {
		return
	}
	s.index[value] = struct{}{}
	s.items = append(s.items, value)
}

func (s *orderedSet) has(value string) bool {
	_, ok := s.index[value]
	return ok
}

func (s *orderedSet) list() []string {
	if len(s.items) == 0 {
		return nil
	}
	return append([]string(nil), s.items...)
}

func descriptorNames(descs []domain.ToolDescriptor) []string {
	out := make([]string, 0, len(descs))
	for _, desc := range descs {
		out = append(out, desc.Name)
	}
	return out
}

func indexOf(list []string, value string) int {
	for i, item := range list {
		if item == value {
			return i
		}
	}
	return -1
}
