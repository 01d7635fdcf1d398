package app

import (
	"context"
	"errors"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"capgate/internal/domain"
	"capgate/internal/infra/auditstore"
	"capgate/internal/infra/config"
	"capgate/internal/infra/gateway"
	"capgate/internal/infra/telemetry"
	"capgate/internal/registry"
	"capgate/internal/registry/audit"
	"capgate/internal/tools/builtin"
)

// ServeConfig carries the command-line settings of one process.
type ServeConfig struct {
	ConfigPath  string
	Profile     string
	MetricsAddr string
	AuditDBPath string
	Watch       bool
	// Inspect builds the registry for one-shot commands; the audit store
	// stays closed so a running server keeps its file lock.
	Inspect     bool
	Backend     builtin.Backend
}

// NewProfile resolves the profile and applies command-line overrides.
func NewProfile(ctx context.Context, cfg ServeConfig, logger *zap.Logger) (domain.Profile, error) {
	name, err := config.ResolveProfileName(cfg.Profile)
	if err != nil {
		return domain.Profile{}, err
	}
	profile, err := config.NewLoader(logger).Load(ctx, name, cfg.ConfigPath)
	if err != nil {
		return domain.Profile{}, err
	}
	return applyOverrides(profile, cfg), nil
}

func applyOverrides(profile domain.Profile, cfg ServeConfig) domain.Profile {
	if addr := strings.TrimSpace(cfg.MetricsAddr); addr != "" {
		profile.Observability.ListenAddress = addr
		profile.Observability.MetricsEnabled = true
	}
	if path := strings.TrimSpace(cfg.AuditDBPath); path != "" {
		profile.Audit.StorePath = path
	}
	return profile
}

func NewMetricsRegistry() *prometheus.Registry {
	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	promRegistry.MustRegister(prometheus.NewGoCollector())
	return promRegistry
}

func NewMetrics(promRegistry *prometheus.Registry, profile domain.Profile) domain.Metrics {
	if !profile.Observability.MetricsEnabled {
		return telemetry.NewNoopMetrics()
	}
	return telemetry.NewPrometheusMetrics(promRegistry)
}

// NewAuditStore opens the bbolt audit file when the profile names one.
func NewAuditStore(cfg ServeConfig, profile domain.Profile, logger *zap.Logger) (*auditstore.Store, func(), error) {
	if cfg.Inspect || !profile.Audit.Enabled() || profile.Audit.StorePath == "" {
		return nil, func() {}, nil
	}
	store, err := auditstore.OpenStore(profile.Audit.StorePath, profile.Audit.MaxEntries*10)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := store.Close(); err != nil {
			logger.Warn("close audit store failed", zap.Error(err))
		}
	}
	return store, cleanup, nil
}

// NewAuditSink exposes the store as an audit sink. A missing store yields a
// nil interface, not a typed nil.
func NewAuditSink(store *auditstore.Store) audit.Sink {
	if store == nil {
		return nil
	}
	return store
}

func NewBackend(cfg ServeConfig) builtin.Backend {
	if cfg.Backend != nil {
		return cfg.Backend
	}
	return builtin.UnconfiguredBackend{}
}

// NewRegistry builds the registry over the built-in catalog. session_status
// is answered from the registry itself, so the binding happens after
// construction.
func NewRegistry(profile domain.Profile, backend builtin.Backend, sink audit.Sink, metrics domain.Metrics, logger *zap.Logger) (*registry.Registry, error) {
	layers, err := builtin.Layers()
	if err != nil {
		return nil, err
	}
	status := &statusSource{}
	tools := builtin.Tools(builtin.SessionBackend{Status: status.report, Next: backend})
	reg, err := registry.New(registry.Options{
		Profile:   profile,
		Tools:     tools,
		Layers:    layers,
		AuditSink: sink,
		Metrics:   metrics,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}
	status.registry = reg
	return reg, nil
}

type statusSource struct {
	registry *registry.Registry
}

func (s *statusSource) report(ctx context.Context) (any, error) {
	if s.registry == nil {
		return nil, errors.New("registry not ready")
	}
	return s.registry.Discover(ctx, registry.DiscoverRequest{Type: registry.DiscoverStats}).Stats, nil
}

func NewGateway(reg *registry.Registry, logger *zap.Logger) *gateway.Gateway {
	return gateway.NewGateway(reg, gateway.Options{Name: "capgate", Version: Version}, logger)
}

// NewConfigWatcher returns nil unless a config file is watched.
func NewConfigWatcher(cfg ServeConfig, profile domain.Profile, reg *registry.Registry, logger *zap.Logger) *config.Watcher {
	if !cfg.Watch || strings.TrimSpace(cfg.ConfigPath) == "" {
		return nil
	}
	apply := func(next domain.Profile) error {
		return reg.Reconfigure(applyOverrides(next, cfg))
	}
	return config.NewWatcher(config.NewLoader(logger), profile.Name, cfg.ConfigPath, apply, logger)
}
