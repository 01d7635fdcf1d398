package layer

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"capgate/internal/domain"
	"capgate/internal/registry/resolver"
)

// Store is the part of the catalog store the manager mutates.
type Store interface {
	Get(name string) (domain.ToolDescriptor, bool)
	SetActive(name string, active bool) (bool, error)
}

// Resolver expands layer members into their dependency closure.
type Resolver interface {
	Resolve(req resolver.Request) (resolver.Result, error)
}

// Config holds the layer rules of a profile.
type Config struct {
	Enabled                  bool
	MaxActiveLayers          int
	EnforceExclusivity       bool
	AutoActivateDependencies bool
}

// ConfigFromProfile extracts the layer settings from a profile.
func ConfigFromProfile(profile domain.Profile) Config {
	return Config{
		Enabled:                  profile.Layers.Enabled,
		MaxActiveLayers:          profile.Layers.MaxActiveLayers,
		EnforceExclusivity:       profile.Layers.EnforceExclusivity,
		AutoActivateDependencies: profile.Layers.AutoActivateDependencies,
	}
}

// Change reports what one manager call did.
type Change struct {
	ActivatedLayers   []string
	DeactivatedLayers []string
	Activated         []string
	Deactivated       []string
	Dependencies      []string
	Warnings          []string
}

// Empty reports whether the call changed nothing.
func (c Change) Empty() bool {
	return len(c.ActivatedLayers) == 0 && len(c.DeactivatedLayers) == 0 &&
		len(c.Activated) == 0 && len(c.Deactivated) == 0
}

// Merge appends other into c.
func (c *Change) Merge(other Change) {
	c.ActivatedLayers = append(c.ActivatedLayers, other.ActivatedLayers...)
	c.DeactivatedLayers = append(c.DeactivatedLayers, other.DeactivatedLayers...)
	c.Activated = append(c.Activated, other.Activated...)
	c.Deactivated = append(c.Deactivated, other.Deactivated...)
	c.Dependencies = append(c.Dependencies, other.Dependencies...)
	c.Warnings = append(c.Warnings, other.Warnings...)
}

// Manager activates layers and tracks which owner holds each active tool.
// An owner is a layer name or domain.DirectOwner.
type Manager struct {
	store    Store
	resolver Resolver
	cfg      Config
	logger   *zap.Logger

	layers map[string]domain.Layer
	named  []string
	active []string
	owners map[string]map[string]struct{}
	held   map[string]map[string]struct{}
}

// NewManager validates layers and activates the default ones.
func NewManager(store Store, res Resolver, layers []domain.Layer, cfg Config, logger *zap.Logger) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{
		store:    store,
		resolver: res,
		cfg:      cfg,
		logger:   logger.Named("layers"),
		layers:   make(map[string]domain.Layer),
		owners:   make(map[string]map[string]struct{}),
		held:     make(map[string]map[string]struct{}),
	}
	if err := m.load(layers); err != nil {
		return nil, err
	}
	if !cfg.Enabled {
		return m, nil
	}
	for _, name := range m.named {
		if !m.layers[name].Default {
			continue
		}
		if _, err := m.activate(name, false, map[string]struct{}{}); err != nil {
			return nil, fmt.Errorf("activate default layer %s: %w", name, err)
		}
	}
	return m, nil
}

func (m *Manager) load(layers []domain.Layer) error {
	var problems []string
	for _, l := range layers {
		l.Name = strings.TrimSpace(l.Name)
		if l.Name == "" {
			problems = append(problems, "layer name is required")
			continue
		}
		if strings.Contains(l.Name, "/") {
			problems = append(problems, fmt.Sprintf("layer %s: names containing '/' are reserved for sub-categories", l.Name))
			continue
		}
		if _, exists := m.layers[l.Name]; exists {
			problems = append(problems, fmt.Sprintf("layer %s is defined twice", l.Name))
			continue
		}
		for _, tool := range l.Tools {
			if _, ok := m.store.Get(tool); !ok {
				problems = append(problems, fmt.Sprintf("layer %s references unknown tool %s", l.Name, tool))
			}
		}
		for _, category := range l.Categories {
			if !category.Valid() {
				problems = append(problems, fmt.Sprintf("layer %s references invalid category %d", l.Name, category))
			}
		}
		m.layers[l.Name] = l
		m.named = append(m.named, l.Name)
	}
	for _, name := range m.named {
		for _, dep := range m.layers[name].DependsOn {
			if _, ok := m.layers[dep]; !ok {
				problems = append(problems, fmt.Sprintf("layer %s depends on unknown layer %s", name, dep))
			}
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid layers: %s", strings.Join(problems, "; "))
	}
	for _, name := range m.named {
		if _, err := m.resolver.Resolve(m.request(m.layers[name])); err != nil {
			return fmt.Errorf("layer %s: %w", name, err)
		}
	}
	return nil
}

// Reconfigure applies new layer limits. Already active layers stay active.
func (m *Manager) Reconfigure(cfg Config) {
	cfg.Enabled = m.cfg.Enabled
	m.cfg = cfg
}

// Config returns the active layer settings.
func (m *Manager) Config() Config {
	return m.cfg
}

// ActivateLayer activates a named layer with its dependent layers.
func (m *Manager) ActivateLayer(name string, exclusive bool) (Change, error) {
	if _, ok := m.layers[name]; !ok || strings.Contains(name, "/") {
		return Change{}, &domain.UnknownLayerError{Name: name, Valid: m.LayerNames()}
	}
	return m.activate(name, exclusive, map[string]struct{}{})
}

// ActivateSubCategory activates the implicit layer of one sub-category.
// Its exclusive group is the category, applied only when exclusive is set.
func (m *Manager) ActivateSubCategory(category, subCategory string, exclusive bool) (Change, error) {
	ref, err := domain.ParseSubCategoryRef(category + "/" + subCategory)
	if err != nil {
		return Change{}, err
	}
	name := domain.SubCategoryLayerName(ref)
	if _, ok := m.layers[name]; !ok {
		m.layers[name] = domain.Layer{
			Name:           name,
			Description:    subCategoryDescription(ref),
			SubCategories:  []domain.SubCategoryRef{ref},
			ExclusiveGroup: ref.Category.String(),
		}
	}
	return m.activate(name, exclusive, map[string]struct{}{})
}

func (m *Manager) activate(name string, exclusive bool, chain map[string]struct{}) (Change, error) {
	var change Change
	if !m.cfg.Enabled {
		return change, domain.ErrFlatRegistry
	}
	layer := m.layers[name]
	if m.isActive(name) {
		m.touch(name)
		return change, nil
	}
	plan, err := m.resolver.Resolve(m.request(layer))
	if err != nil {
		return change, err
	}
	chain[name] = struct{}{}

	if m.exclusiveApplies(layer, exclusive) {
		for _, other := range m.activeInGroup(layer.ExclusiveGroup, name) {
			change.Merge(m.deactivate(other))
		}
	}

	for _, dep := range layer.DependsOn {
		if m.isActive(dep) {
			continue
		}
		if _, inChain := chain[dep]; inChain {
			continue
		}
		if !m.cfg.AutoActivateDependencies {
			change.Warnings = append(change.Warnings, fmt.Sprintf("layer %s depends on inactive layer %s", name, dep))
			continue
		}
		sub, err := m.activate(dep, false, chain)
		if err != nil {
			return change, fmt.Errorf("activate dependent layer %s: %w", dep, err)
		}
		change.Merge(sub)
	}

	if !layer.Default {
		for m.cfg.MaxActiveLayers > 0 && m.countedLayers() >= m.cfg.MaxActiveLayers {
			if !m.cfg.AutoActivateDependencies {
				return change, &domain.LayerCapacityError{Requested: name, Active: m.ActiveLayers(), Max: m.cfg.MaxActiveLayers}
			}
			victim, ok := m.leastRecent(chain)
			if !ok {
				return change, &domain.LayerCapacityError{Requested: name, Active: m.ActiveLayers(), Max: m.cfg.MaxActiveLayers}
			}
			m.logger.Info("evicting least recently activated layer",
				zap.String("layer", victim),
				zap.String("for", name),
				zap.Int("max_active_layers", m.cfg.MaxActiveLayers),
			)
			change.Merge(m.deactivate(victim))
		}
	}

	activated, err := m.Acquire(name, plan.Closure)
	if err != nil {
		return change, err
	}
	m.active = append(m.active, name)
	change.ActivatedLayers = append(change.ActivatedLayers, name)
	change.Activated = append(change.Activated, activated...)
	change.Dependencies = append(change.Dependencies, plan.DependenciesPulledIn...)
	change.Warnings = append(change.Warnings, plan.Warnings...)
	m.logger.Debug("layer activated", zap.String("layer", name), zap.Int("tools", len(activated)))
	return change, nil
}

// DeactivateLayer releases every tool the layer holds.
func (m *Manager) DeactivateLayer(name string) (Change, error) {
	if _, ok := m.layers[name]; !ok {
		return Change{}, &domain.UnknownLayerError{Name: name, Valid: m.LayerNames()}
	}
	if !m.isActive(name) {
		return Change{}, nil
	}
	return m.deactivate(name), nil
}

// DeactivateSubCategory deactivates the implicit layer of one sub-category.
func (m *Manager) DeactivateSubCategory(category, subCategory string) (Change, error) {
	ref, err := domain.ParseSubCategoryRef(category + "/" + subCategory)
	if err != nil {
		return Change{}, err
	}
	name := domain.SubCategoryLayerName(ref)
	if !m.isActive(name) {
		return Change{}, nil
	}
	return m.deactivate(name), nil
}

func (m *Manager) deactivate(name string) Change {
	change := Change{DeactivatedLayers: []string{name}}
	change.Deactivated = m.Release(name)
	m.active = removeString(m.active, name)
	m.logger.Debug("layer deactivated", zap.String("layer", name), zap.Int("tools", len(change.Deactivated)))
	return change
}

// Acquire marks owner as a holder of names and activates the inactive ones.
// It returns the newly activated names.
func (m *Manager) Acquire(owner string, names []string) ([]string, error) {
	var activated []string
	for _, name := range names {
		if _, ok := m.store.Get(name); !ok {
			return activated, &domain.UnknownToolError{Names: []string{name}}
		}
		m.hold(owner, name)
		previous, err := m.store.SetActive(name, true)
		if err != nil {
			return activated, err
		}
		if !previous {
			activated = append(activated, name)
		}
	}
	return activated, nil
}

// Release drops owner's hold on its tools and deactivates tools nobody else holds.
func (m *Manager) Release(owner string) []string {
	tools := sortedKeys(m.held[owner])
	delete(m.held, owner)
	var deactivated []string
	for _, name := range tools {
		delete(m.owners[name], owner)
		if len(m.owners[name]) > 0 {
			continue
		}
		delete(m.owners, name)
		if m.deactivateTool(name) {
			deactivated = append(deactivated, name)
		}
	}
	return deactivated
}

// Drop deactivates names regardless of owner. Load-by-default tools are kept.
// Active layers left holding nothing are deactivated too.
func (m *Manager) Drop(names []string) Change {
	var change Change
	touched := make(map[string]struct{})
	for _, name := range names {
		desc, ok := m.store.Get(name)
		if !ok || desc.LoadByDefault {
			continue
		}
		for owner := range m.owners[name] {
			delete(m.held[owner], name)
			touched[owner] = struct{}{}
		}
		delete(m.owners, name)
		if m.deactivateTool(name) {
			change.Deactivated = append(change.Deactivated, name)
		}
	}
	for _, owner := range sortedKeys(touched) {
		if len(m.held[owner]) > 0 {
			continue
		}
		delete(m.held, owner)
		if m.isActive(owner) {
			m.active = removeString(m.active, owner)
			change.DeactivatedLayers = append(change.DeactivatedLayers, owner)
		}
	}
	return change
}

// Plan resolves the tools a named layer would hold, without activating it.
func (m *Manager) Plan(name string) (resolver.Result, error) {
	l, ok := m.layers[name]
	if !ok {
		return resolver.Result{}, &domain.UnknownLayerError{Name: name, Valid: m.LayerNames()}
	}
	return m.resolver.Resolve(m.request(l))
}

// Holders returns the owners holding name.
func (m *Manager) Holders(name string) []string {
	return sortedKeys(m.owners[name])
}

// ActiveLayers lists active layers, least recently activated first.
func (m *Manager) ActiveLayers() []string {
	return append([]string(nil), m.active...)
}

// LayerNames lists the named layers in definition order.
func (m *Manager) LayerNames() []string {
	return append([]string(nil), m.named...)
}

// Layer returns a named or implicit layer definition.
func (m *Manager) Layer(name string) (domain.Layer, bool) {
	l, ok := m.layers[name]
	return l, ok
}

// Statuses reports every named layer and every active implicit layer.
func (m *Manager) Statuses() []domain.LayerStatus {
	out := make([]domain.LayerStatus, 0, len(m.named)+len(m.active))
	for _, name := range m.named {
		out = append(out, m.status(name, false))
	}
	for _, name := range m.active {
		if strings.Contains(name, "/") {
			out = append(out, m.status(name, true))
		}
	}
	return out
}

func (m *Manager) status(name string, implicit bool) domain.LayerStatus {
	l := m.layers[name]
	count := len(m.held[name])
	if !m.isActive(name) {
		if plan, err := m.resolver.Resolve(m.request(l)); err == nil {
			count = len(plan.Closure)
		}
	}
	return domain.LayerStatus{
		Name:           name,
		ExclusiveGroup: l.ExclusiveGroup,
		Active:         m.isActive(name),
		Default:        l.Default,
		Implicit:       implicit,
		ToolCount:      count,
	}
}

func (m *Manager) request(l domain.Layer) resolver.Request {
	return resolver.Request{Tools: l.Tools, Categories: l.Categories, SubCategories: l.SubCategories}
}

func (m *Manager) exclusiveApplies(l domain.Layer, exclusive bool) bool {
	if l.ExclusiveGroup == "" {
		return false
	}
	if exclusive {
		return true
	}
	return m.cfg.EnforceExclusivity && !strings.Contains(l.Name, "/")
}

func (m *Manager) activeInGroup(group, except string) []string {
	var out []string
	for _, name := range m.active {
		if name != except && m.layers[name].ExclusiveGroup == group {
			out = append(out, name)
		}
	}
	return out
}

func (m *Manager) countedLayers() int {
	count := 0
	for _, name := range m.active {
		if !m.layers[name].Default {
			count++
		}
	}
	return count
}

func (m *Manager) leastRecent(protected map[string]struct{}) (string, bool) {
	for _, name := range m.active {
		if m.layers[name].Default {
			continue
		}
		if _, skip := protected[name]; skip {
			continue
		}
		return name, true
	}
	return "", false
}

func (m *Manager) isActive(name string) bool {
	for _, active := range m.active {
		if active == name {
			return true
		}
	}
	return false
}

func (m *Manager) touch(name string) {
	m.active = append(removeString(m.active, name), name)
}

func (m *Manager) hold(owner, name string) {
	if m.owners[name] == nil {
		m.owners[name] = make(map[string]struct{})
	}
	m.owners[name][owner] = struct{}{}
	if m.held[owner] == nil {
		m.held[owner] = make(map[string]struct{})
	}
	m.held[owner][name] = struct{}{}
}

func (m *Manager) deactivateTool(name string) bool {
	desc, ok := m.store.Get(name)
	if !ok || desc.LoadByDefault {
		return false
	}
	previous, err := m.store.SetActive(name, false)
	if err != nil {
		m.logger.Warn("deactivate tool failed", zap.String("tool", name), zap.Error(err))
		return false
	}
	return previous
}

func subCategoryDescription(ref domain.SubCategoryRef) string {
	for _, info := range ref.Category.SubCategories() {
		if info.Name == ref.Name {
			return info.Description
		}
	}
	return ""
}

func removeString(list []string, value string) []string {
	out := list[:0]
	for _, item := range list {
		if item != value {
			out = append(out, item)
		}
	}
	return out
}

func sortedKeys(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for key := range set {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}
