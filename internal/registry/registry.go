package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"capgate/internal/domain"
	"capgate/internal/infra/telemetry"
	"capgate/internal/registry/audit"
	"capgate/internal/registry/budget"
	"capgate/internal/registry/catalog"
	"capgate/internal/registry/layer"
	"capgate/internal/registry/resolver"
)

const (
	ModeEnhanced = "enhanced"
	ModeFlat     = "flat"
)

// Options configures a Registry.
type Options struct {
	Profile   domain.Profile
	Tools     []domain.ToolDescriptor
	Layers    []domain.Layer
	AuditSink audit.Sink
	Metrics   domain.Metrics
	Logger    *zap.Logger
}

// ChangeEvent is delivered to listeners after the active set changed.
type ChangeEvent struct {
	Activated   []string
	Deactivated []string
	Active      []domain.ToolDescriptor
	Budget      domain.BudgetState
}

// ChangeListener observes active set changes.
type ChangeListener func(ChangeEvent)

// Registry owns the catalog and every piece of state derived from it.
// All entry points are serialized by one mutex; listeners run after it is released.
type Registry struct {
	mu        sync.Mutex
	profile   domain.Profile
	store     *catalog.Store
	resolver  *resolver.Resolver
	layers    *layer.Manager
	budget    *budget.Tracker
	audit     *audit.Log
	activator Activator
	metrics   domain.Metrics
	logger    *zap.Logger

	listenersMu sync.RWMutex
	listeners   []ChangeListener
}

// New registers every tool, validates layers and dependencies and activates
// the defaults. Any error here is a startup failure.
func New(opts Options) (*Registry, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = telemetry.NewNoopMetrics()
	}
	profile := opts.Profile

	store := catalog.NewStore(logger)
	if err := store.RegisterAll(opts.Tools); err != nil {
		return nil, fmt.Errorf("register tools: %w", err)
	}

	res := resolver.New(store, resolver.ConfigFromProfile(profile), logger)
	if err := res.Validate(store.All()); err != nil {
		return nil, err
	}

	layers, err := layer.NewManager(store, res, opts.Layers, layer.ConfigFromProfile(profile), logger)
	if err != nil {
		return nil, err
	}

	tracker, err := budget.NewTracker(store, res, budget.ConfigFromProfile(profile), metrics, logger)
	if err != nil {
		return nil, fmt.Errorf("context budget: %w", err)
	}

	r := &Registry{
		profile:  profile,
		store:    store,
		resolver: res,
		layers:   layers,
		budget:   tracker,
		audit:    audit.NewLog(audit.ConfigFromProfile(profile), opts.AuditSink, metrics, logger),
		metrics:  metrics,
		logger:   logger.Named("registry"),
	}
	if profile.Minimal() {
		for _, desc := range store.All() {
			if _, err := store.SetActive(desc.Name, true); err != nil {
				return nil, err
			}
		}
		r.activator = &flatActivator{r: r}
	} else {
		r.activator = &enhancedActivator{r: r}
	}

	state := tracker.Observe()
	metrics.SetActiveLayers(len(layers.ActiveLayers()))
	r.logger.Info("registry ready",
		telemetry.ProfileField(string(profile.Name)),
		zap.String("mode", r.activator.Mode()),
		zap.Int("tools", store.Len()),
		zap.Int("active_tools", state.ActiveItems),
		zap.String("budget", budget.Describe(state)),
	)
	return r, nil
}

// OnChange registers a listener for active set changes.
func (r *Registry) OnChange(listener ChangeListener) {
	if listener == nil {
		return
	}
	r.listenersMu.Lock()
	r.listeners = append(r.listeners, listener)
	r.listenersMu.Unlock()
}

func (r *Registry) notify(event ChangeEvent) {
	r.listenersMu.RLock()
	listeners := append([]ChangeListener(nil), r.listeners...)
	r.listenersMu.RUnlock()
	for _, listener := range listeners {
		listener(event)
	}
}

// Mode reports "enhanced" or "flat".
func (r *Registry) Mode() string {
	return r.activator.Mode()
}

// Profile returns the effective profile.
func (r *Registry) Profile() domain.Profile {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.profile
}

// Tool returns the descriptor of a registered tool.
func (r *Registry) Tool(name string) (domain.ToolDescriptor, bool) {
	return r.store.Get(name)
}

// Tools returns every registered tool in registration order.
func (r *Registry) Tools() []domain.ToolDescriptor {
	return r.store.All()
}

// Active returns the visible tools in registration order.
func (r *Registry) Active() []domain.ToolDescriptor {
	return r.store.Active()
}

// IsActive reports whether name is visible.
func (r *Registry) IsActive(name string) bool {
	return r.store.IsActive(name)
}

// Budget returns the current context budget state.
func (r *Registry) Budget() domain.BudgetState {
	return r.budget.State()
}

// ActiveLayers lists active layers, least recently activated first.
func (r *Registry) ActiveLayers() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.layers.ActiveLayers()
}

// LayerStatuses reports every named layer and every active implicit layer.
func (r *Registry) LayerStatuses() []domain.LayerStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.layers.Statuses()
}

// AuditLog exposes the audit log so the caller can run its flusher.
func (r *Registry) AuditLog() *audit.Log {
	return r.audit
}

// Health summarizes the registry for the observability endpoint.
func (r *Registry) Health() telemetry.HealthReport {
	state := r.budget.State()
	return telemetry.HealthReport{
		Status:      "ok",
		Profile:     string(r.Profile().Name),
		Mode:        r.Mode(),
		ActiveTools: state.ActiveItems,
		Weight:      state.TotalWeight,
		MaxWeight:   state.MaxWeight,
		Pressure:    string(state.Pressure),
	}
}

// Activate makes the requested tools visible. Failures are reported in the
// response, never returned.
func (r *Registry) Activate(ctx context.Context, req ActivateRequest) ActivateResponse {
	start := time.Now()
	ctx, _ = telemetry.EnsureRequestMeta(ctx, "activate")
	logger := telemetry.LoggerWithRequest(ctx, r.logger)

	if req.empty() {
		resp := ActivateResponse{
			Failure: &Failure{
				Code:    domain.CodeInvalidArgument,
				Message: "nothing to activate: pass tools, categories, subCategories or layers",
				Suggestions: []string{
					"use discover({type:'tree'}) to see valid names",
					"use search({query:'...'}) to find tools by keyword",
				},
			},
			Budget: r.budget.State(),
		}
		resp.ContextWeight = resp.Budget.TotalWeight
		resp.Message = resp.Failure.Message
		r.observe("activate", start, false)
		return resp
	}

	r.mu.Lock()
	sel, err := r.parseSelection(req.Tools, req.Categories, req.SubCategories, req.Layers)
	var mutation Mutation
	if err == nil {
		mutation, err = r.activator.Activate(sel, req.Exclusive)
	}
	state := r.budget.Observe()
	r.auditMutation(ctx, mutation, state)
	activeLayers := r.layers.ActiveLayers()
	r.metrics.SetActiveLayers(len(activeLayers))
	r.mu.Unlock()

	resp := ActivateResponse{
		Budget:        state,
		ContextWeight: state.TotalWeight,
		Layers:        activeLayers,
	}
	if err != nil {
		resp.Failure = failureFrom(err, domain.CodeInternal)
		resp.Message = resp.Failure.Message
		// A partial mutation may have happened before the failure.
		resp.Activated = nonNil(mutation.Activated)
		resp.Deactivated = mutation.Deactivated
		resp.Evicted = mutation.Evicted
		if !mutation.empty() {
			r.notify(r.changeEvent(mutation, state))
		}
		logger.Info("activation failed", telemetry.EventField(telemetry.EventActivate), zap.Error(err))
		r.observe("activate", start, false)
		return resp
	}

	resp.Success = true
	resp.Activated = nonNil(mutation.Activated)
	resp.Deactivated = mutation.Deactivated
	resp.Evicted = mutation.Evicted
	resp.Dependencies = mutation.Dependencies
	resp.Warnings = mutation.Warnings
	resp.Condition = mutation.Condition
	resp.Message = activationMessage(mutation, state)

	logger.Info("tools activated",
		telemetry.EventField(telemetry.EventActivate),
		zap.Strings("activated", mutation.Activated),
		zap.Strings("deactivated", mutation.Deactivated),
		zap.Strings("evicted", mutation.Evicted),
		telemetry.LayersField(resp.Layers),
		zap.String("budget", budget.Describe(state)),
	)
	if !mutation.empty() {
		r.notify(r.changeEvent(mutation, state))
	}
	r.observe("activate", start, true)
	return resp
}

// Deactivate hides the requested tools. Dependencies stay active unless
// cascade cleanup is requested or configured.
func (r *Registry) Deactivate(ctx context.Context, req DeactivateRequest) DeactivateResponse {
	start := time.Now()
	ctx, _ = telemetry.EnsureRequestMeta(ctx, "deactivate")
	logger := telemetry.LoggerWithRequest(ctx, r.logger)

	if req.empty() {
		state := r.budget.State()
		r.observe("deactivate", start, false)
		return DeactivateResponse{
			Budget:        state,
			ContextWeight: state.TotalWeight,
			Message:       "nothing to deactivate",
			Failure: &Failure{
				Code:        domain.CodeInvalidArgument,
				Message:     "nothing to deactivate: pass tools, categories, subCategories, layers or all",
				Suggestions: []string{"use discover({type:'active'}) to see what is active"},
			},
		}
	}

	cascade := r.Profile().Dependencies.CascadeCleanup
	if req.Cascade != nil {
		cascade = *req.Cascade
	}

	r.mu.Lock()
	sel, err := r.parseSelection(req.Tools, req.Categories, req.SubCategories, req.Layers)
	var mutation Mutation
	if err == nil {
		mutation, err = r.activator.Deactivate(sel, req.All, cascade)
	}
	state := r.budget.Observe()
	r.auditMutation(ctx, mutation, state)
	r.metrics.SetActiveLayers(len(r.layers.ActiveLayers()))
	r.mu.Unlock()

	resp := DeactivateResponse{Budget: state, ContextWeight: state.TotalWeight}
	if err != nil {
		resp.Failure = failureFrom(err, domain.CodeInternal)
		resp.Message = resp.Failure.Message
		logger.Info("deactivation failed", telemetry.EventField(telemetry.EventDeactivate), zap.Error(err))
		r.observe("deactivate", start, false)
		return resp
	}

	resp.Success = true
	resp.Deactivated = nonNil(mutation.Deactivated)
	resp.DeactivatedLayers = mutation.DeactivatedLayers
	resp.Message = fmt.Sprintf("deactivated %d tool(s); context %s", len(mutation.Deactivated), budget.Describe(state))

	logger.Info("tools deactivated",
		telemetry.EventField(telemetry.EventDeactivate),
		zap.Strings("deactivated", mutation.Deactivated),
		zap.Bool("cascade", cascade),
	)
	if !mutation.empty() {
		r.notify(r.changeEvent(mutation, state))
	}
	r.observe("deactivate", start, true)
	return resp
}

// RecordCall marks a tool as used. The gateway calls it before invoking the handler.
func (r *Registry) RecordCall(ctx context.Context, name string) error {
	desc, ok := r.store.Get(name)
	if !ok {
		return &domain.UnknownToolError{Names: []string{name}}
	}
	ctx, _ = telemetry.EnsureRequestMeta(ctx, name)
	r.mu.Lock()
	r.store.Touch(name)
	weight, _ := r.store.ActiveWeight()
	r.mu.Unlock()

	requestID, traceID := telemetry.AuditIDs(ctx)
	r.audit.Record(domain.AuditEntry{
		Kind:       domain.AuditCall,
		Subjects:   []string{name},
		Categories: []string{desc.Category.String()},
		Weight:     weight,
		RequestID:  requestID,
		TraceID:    traceID,
	})
	return nil
}

// Reconfigure hot-applies budget and layer limits. Switching between the
// flat and enhanced modes needs a restart.
func (r *Registry) Reconfigure(profile domain.Profile) error {
	r.mu.Lock()
	if profile.Minimal() != r.profile.Minimal() {
		r.mu.Unlock()
		return domain.E(domain.CodeFailedPrecond, "registry.Reconfigure",
			fmt.Sprintf("switching profile %s to %s changes the registry mode; restart required", r.profile.Name, profile.Name), nil)
	}
	if err := r.budget.Reconfigure(budget.ConfigFromProfile(profile)); err != nil {
		r.mu.Unlock()
		return domain.Wrap(domain.CodeInvalidArgument, "registry.Reconfigure", err)
	}
	r.layers.Reconfigure(layer.ConfigFromProfile(profile))
	r.profile.Context = profile.Context
	r.profile.Layers.MaxActiveLayers = profile.Layers.MaxActiveLayers
	r.profile.Layers.EnforceExclusivity = profile.Layers.EnforceExclusivity
	r.profile.Layers.AutoActivateDependencies = profile.Layers.AutoActivateDependencies
	r.profile.Dependencies.CascadeCleanup = profile.Dependencies.CascadeCleanup
	state := r.budget.Observe()
	r.mu.Unlock()

	r.logger.Info("profile limits reloaded",
		telemetry.EventField(telemetry.EventConfigReload),
		telemetry.ProfileField(string(profile.Name)),
		zap.String("budget", budget.Describe(state)),
		zap.Int("max_active_layers", profile.Layers.MaxActiveLayers),
	)
	return nil
}

type selection struct {
	tools         []string
	categories    []domain.Category
	subCategories []domain.SubCategoryRef
	layers        []string
}

// parseSelection validates every name before anything is mutated.
func (r *Registry) parseSelection(tools, categories, subCategories, layers []string) (selection, error) {
	var sel selection
	for _, raw := range categories {
		category, ok := domain.ParseCategory(raw)
		if !ok {
			return sel, &domain.UnknownCategoryError{Name: raw, Valid: domain.CategoryIDs()}
		}
		sel.categories = append(sel.categories, category)
	}
	for _, raw := range subCategories {
		ref, err := domain.ParseSubCategoryRef(raw)
		if err != nil {
			return sel, err
		}
		sel.subCategories = append(sel.subCategories, ref)
	}
	var unknown []string
	for _, name := range tools {
		if !r.store.Has(name) {
			unknown = append(unknown, name)
			continue
		}
		sel.tools = append(sel.tools, name)
	}
	if len(unknown) > 0 {
		return sel, &domain.UnknownToolError{Names: unknown}
	}
	for _, name := range layers {
		if _, ok := r.layers.Layer(name); !ok {
			return sel, &domain.UnknownLayerError{Name: name, Valid: r.layers.LayerNames()}
		}
		sel.layers = append(sel.layers, name)
	}
	return sel, nil
}

func (r *Registry) auditMutation(ctx context.Context, m Mutation, state domain.BudgetState) {
	requestID, traceID := telemetry.AuditIDs(ctx)
	record := func(kind domain.AuditKind, subjects, categories []string) {
		if len(subjects) == 0 && len(categories) == 0 {
			return
		}
		r.audit.Record(domain.AuditEntry{
			Kind:       kind,
			Subjects:   subjects,
			Categories: categories,
			Weight:     state.TotalWeight,
			RequestID:  requestID,
			TraceID:    traceID,
		})
	}
	record(domain.AuditActivate, m.Activated, m.Categories)
	record(domain.AuditDeactivate, m.Deactivated, nil)
	record(domain.AuditEvict, m.Evicted, nil)

	if n := len(m.Activated); n > 0 {
		r.metrics.ObserveActivations(domain.AuditActivate, n)
	}
	if n := len(m.Deactivated); n > 0 {
		r.metrics.ObserveActivations(domain.AuditDeactivate, n)
	}
}

func (r *Registry) changeEvent(m Mutation, state domain.BudgetState) ChangeEvent {
	deactivated := append(append([]string(nil), m.Deactivated...), m.Evicted...)
	return ChangeEvent{
		Activated:   m.Activated,
		Deactivated: deactivated,
		Active:      r.store.Active(),
		Budget:      state,
	}
}

func (r *Registry) observe(operation string, start time.Time, ok bool) {
	status := domain.RequestStatusSuccess
	if !ok {
		status = domain.RequestStatusFailure
	}
	r.metrics.ObserveRequest(domain.RequestMetric{
		Operation: operation,
		Status:    status,
		Duration:  time.Since(start),
	})
}

func activationMessage(m Mutation, state domain.BudgetState) string {
	msg := fmt.Sprintf("activated %d tool(s); context %s", len(m.Activated), budget.Describe(state))
	if len(m.Activated) == 0 && len(m.Deactivated) == 0 {
		msg = "requested tools are already active; context " + budget.Describe(state)
	}
	if len(m.Evicted) > 0 {
		msg += fmt.Sprintf("; evicted %d tool(s) to relieve context pressure", len(m.Evicted))
	}
	if m.Condition != nil {
		msg += "; " + m.Condition.String()
	}
	return msg
}

func nonNil(list []string) []string {
	if list == nil {
		return []string{}
	}
	return list
}
