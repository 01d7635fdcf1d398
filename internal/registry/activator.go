package registry

import (
	"fmt"

	"capgate/internal/domain"
	"capgate/internal/registry/budget"
	"capgate/internal/registry/layer"
	"capgate/internal/registry/resolver"
)

// Activator applies validated activation requests. The registry picks one
// implementation at construction from the profile.
type Activator interface {
	Mode() string
	Activate(sel selection, exclusive bool) (Mutation, error)
	Deactivate(sel selection, all, cascade bool) (Mutation, error)
}

// Mutation is the net effect of one activator call.
type Mutation struct {
	Activated         []string
	Deactivated       []string
	Evicted           []string
	Dependencies      []string
	ActivatedLayers   []string
	DeactivatedLayers []string
	Categories        []string
	Warnings          []string
	Condition         *domain.BudgetCondition
}

func (m Mutation) empty() bool {
	return len(m.Activated) == 0 && len(m.Deactivated) == 0 && len(m.Evicted) == 0 &&
		len(m.ActivatedLayers) == 0 && len(m.DeactivatedLayers) == 0
}

func (m *Mutation) merge(change layer.Change) {
	m.ActivatedLayers = append(m.ActivatedLayers, change.ActivatedLayers...)
	m.DeactivatedLayers = append(m.DeactivatedLayers, change.DeactivatedLayers...)
	m.Dependencies = append(m.Dependencies, change.Dependencies...)
	m.Warnings = append(m.Warnings, change.Warnings...)
}

type enhancedActivator struct {
	r *Registry
}

func (a *enhancedActivator) Mode() string { return ModeEnhanced }

func (a *enhancedActivator) Activate(sel selection, exclusive bool) (Mutation, error) {
	r := a.r
	before := r.store.ActiveNames()
	m := Mutation{Categories: selectionCategories(sel)}
	layered := r.layers.Config().Enabled

	if !layered && len(sel.layers) > 0 {
		return m, domain.E(domain.CodeFailedPrecond, "activate",
			fmt.Sprintf("layers are disabled in profile %s", r.profile.Name), nil)
	}

	directReq := resolver.Request{Tools: sel.tools, Categories: sel.categories}
	if !layered {
		directReq.SubCategories = sel.subCategories
	}
	var direct resolver.Result
	if len(directReq.Tools)+len(directReq.Categories)+len(directReq.SubCategories) > 0 {
		var err error
		if direct, err = r.resolver.Resolve(directReq); err != nil {
			return m, err
		}
	}

	full, err := r.resolver.Resolve(resolver.Request{
		Tools:         sel.tools,
		Categories:    sel.categories,
		SubCategories: sel.subCategories,
		Exclusive:     exclusive,
	})
	if err != nil {
		return m, err
	}
	keep := setOf(full.Closure)
	for _, name := range sel.layers {
		plan, err := r.layers.Plan(name)
		if err != nil {
			return m, err
		}
		for _, tool := range plan.Closure {
			keep[tool] = struct{}{}
		}
	}
	m.Warnings = append(m.Warnings, full.Warnings...)

	if exclusive {
		var drop []string
		for _, name := range full.ToDeactivate {
			if _, ok := keep[name]; !ok {
				drop = append(drop, name)
			}
		}
		m.merge(r.layers.Drop(drop))
	}

	for _, name := range sel.layers {
		change, err := r.layers.ActivateLayer(name, exclusive)
		m.merge(change)
		if err != nil {
			a.settle(&m, before)
			return m, err
		}
	}
	if layered {
		for _, ref := range sel.subCategories {
			change, err := r.layers.ActivateSubCategory(ref.Category.String(), ref.Name, exclusive)
			m.merge(change)
			if err != nil {
				a.settle(&m, before)
				return m, err
			}
		}
	}
	if len(direct.Closure) > 0 {
		if _, err := r.layers.Acquire(domain.DirectOwner, direct.Closure); err != nil {
			a.settle(&m, before)
			return m, err
		}
		m.Dependencies = append(m.Dependencies, direct.DependenciesPulledIn...)
	}

	protected := setOf(r.store.ActiveNames())
	for name := range setOf(before) {
		if _, ok := keep[name]; !ok {
			delete(protected, name)
		}
	}
	outcome := r.budget.Optimize(protected, budget.EvictFunc(func(names []string) []string {
		change := r.layers.Drop(names)
		m.DeactivatedLayers = append(m.DeactivatedLayers, change.DeactivatedLayers...)
		return change.Deactivated
	}))
	m.Evicted = outcome.Evicted
	m.Condition = outcome.Condition

	a.settle(&m, before)
	return m, nil
}

func (a *enhancedActivator) Deactivate(sel selection, all, cascade bool) (Mutation, error) {
	r := a.r
	before := r.store.ActiveNames()
	var m Mutation

	if all {
		for _, name := range r.layers.ActiveLayers() {
			if l, ok := r.layers.Layer(name); ok && l.Default {
				continue
			}
			change, err := r.layers.DeactivateLayer(name)
			if err != nil {
				return m, err
			}
			m.merge(change)
		}
		r.layers.Release(domain.DirectOwner)
	}
	for _, name := range sel.layers {
		change, err := r.layers.DeactivateLayer(name)
		if err != nil {
			a.settle(&m, before)
			return m, err
		}
		m.merge(change)
	}
	for _, ref := range sel.subCategories {
		change, err := r.layers.DeactivateSubCategory(ref.Category.String(), ref.Name)
		if err != nil {
			a.settle(&m, before)
			return m, err
		}
		m.merge(change)
		m.merge(r.layers.Drop(activeNames(r.store.BySubCategory(ref), r.store.IsActive)))
	}
	for _, category := range sel.categories {
		m.merge(r.layers.Drop(activeNames(r.store.ByCategory(category), r.store.IsActive)))
	}
	if len(sel.tools) > 0 {
		for _, name := range sel.tools {
			if desc, ok := r.store.Get(name); ok && desc.LoadByDefault {
				m.Warnings = append(m.Warnings, fmt.Sprintf("tool %s is loaded by default and stays active", name))
			}
		}
		m.merge(r.layers.Drop(sel.tools))
	}

	if cascade && r.resolver.Config().Enabled {
		a.cascade(&m, before)
	}
	a.settle(&m, before)
	return m, nil
}

// cascade drops dependencies of removed tools that no active tool needs anymore.
func (a *enhancedActivator) cascade(m *Mutation, before []string) {
	r := a.r
	queue := diff(before, r.store.ActiveNames())
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		for _, dep := range r.resolver.DirectDependencies(name) {
			desc, ok := r.store.Get(dep)
			if !ok || desc.LoadByDefault || !r.store.IsActive(dep) {
				continue
			}
			if len(r.resolver.Dependents(dep)) > 0 {
				continue
			}
			change := r.layers.Drop([]string{dep})
			m.merge(change)
			queue = append(queue, change.Deactivated...)
		}
	}
}

// settle derives the net tool changes from the active set before the call.
func (a *enhancedActivator) settle(m *Mutation, before []string) {
	after := a.r.store.ActiveNames()
	m.Activated = diff(after, before)
	evicted := setOf(m.Evicted)
	m.Deactivated = nil
	for _, name := range diff(before, after) {
		if _, ok := evicted[name]; !ok {
			m.Deactivated = append(m.Deactivated, name)
		}
	}
	m.Dependencies = unique(m.Dependencies)
	m.Warnings = unique(m.Warnings)
	m.ActivatedLayers = unique(m.ActivatedLayers)
	m.DeactivatedLayers = unique(m.DeactivatedLayers)
}

// flatActivator backs the minimal profile: every tool is always active.
type flatActivator struct {
	r *Registry
}

func (a *flatActivator) Mode() string { return ModeFlat }

func (a *flatActivator) Activate(sel selection, _ bool) (Mutation, error) {
	return Mutation{
		Categories: selectionCategories(sel),
		Warnings:   []string{domain.ErrFlatRegistry.Error()},
	}, nil
}

func (a *flatActivator) Deactivate(selection, bool, bool) (Mutation, error) {
	return Mutation{}, domain.E(domain.CodeFailedPrecond, "deactivate", "", domain.ErrFlatRegistry)
}

func selectionCategories(sel selection) []string {
	var out []string
	for _, category := range sel.categories {
		out = append(out, category.String())
	}
	for _, ref := range sel.subCategories {
		out = append(out, ref.Category.String())
	}
	return unique(out)
}

func activeNames(descs []domain.ToolDescriptor, isActive func(string) bool) []string {
	var out []string
	for _, desc := range descs {
		if isActive(desc.Name) {
			out = append(out, desc.Name)
		}
	}
	return out
}

func setOf(names []string) map[string]struct{} {
	out := make(map[string]struct{}, len(names))
	for _, name := range names {
		out[name] = struct{}{}
	}
	return out
}

// diff returns the members of a missing from b, in a's order.
func diff(a, b []string) []string {
	exclude := setOf(b)
	var out []string
	for _, name := range a {
		if _, ok := exclude[name]; !ok {
			out = append(out, name)
		}
	}
	return out
}

func unique(list []string) []string {
	if len(list) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(list))
	out := make([]string, 0, len(list))
	for _, item := range list {
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}
