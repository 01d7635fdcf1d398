package app

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"capgate/internal/domain"
	"capgate/internal/infra/config"
	"capgate/internal/infra/gateway"
	"capgate/internal/infra/telemetry"
	"capgate/internal/registry"
)

// Application wires the registry, its gateway and the background services.
type Application struct {
	ctx        context.Context
	configPath string

	logger   *zap.Logger
	profile  domain.Profile
	metrics  *prometheus.Registry
	registry *registry.Registry
	gateway  *gateway.Gateway
	watcher  *config.Watcher
}

// ApplicationOptions captures dependencies and settings for Application.
type ApplicationOptions struct {
	Context     context.Context
	ServeConfig ServeConfig
	Logger      *zap.Logger
	Profile     domain.Profile
	Metrics     *prometheus.Registry
	Registry    *registry.Registry
	Gateway     *gateway.Gateway
	Watcher     *config.Watcher
}

// NewApplication constructs the application runtime.
func NewApplication(opts ApplicationOptions) *Application {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	return &Application{
		ctx:        ctx,
		configPath: opts.ServeConfig.ConfigPath,
		logger:     opts.Logger,
		profile:    opts.Profile,
		metrics:    opts.Metrics,
		registry:   opts.Registry,
		gateway:    opts.Gateway,
		watcher:    opts.Watcher,
	}
}

// Registry returns the wired registry.
func (a *Application) Registry() *registry.Registry {
	return a.registry
}

// Run serves MCP over stdio and blocks until the client disconnects or the
// context ends. Background services stop with it.
func (a *Application) Run() error {
	a.logger.Info("configuration loaded",
		zap.String("config", a.configPath),
		telemetry.ProfileField(string(a.profile.Name)),
		zap.String("mode", a.registry.Mode()),
		zap.Int("tools", len(a.registry.Tools())),
		zap.Int("active", len(a.registry.Active())),
	)

	ctx, cancel := context.WithCancel(a.ctx)
	defer cancel()
	group, groupCtx := errgroup.WithContext(ctx)

	obs := a.profile.Observability
	if obs.MetricsEnabled {
		group.Go(func() error {
			return telemetry.StartHTTPServer(groupCtx, telemetry.HTTPServerOptions{
				Addr:          obs.ListenAddress,
				EnableMetrics: true,
				EnableHealthz: true,
				Health:        a.registry.Health,
				Registry:      a.metrics,
			}, a.logger)
		})
	}

	group.Go(func() error {
		a.registry.AuditLog().Run(groupCtx)
		return nil
	})

	if a.watcher != nil {
		group.Go(func() error {
			if err := a.watcher.Run(groupCtx); err != nil {
				a.logger.Warn("config watcher stopped", zap.Error(err))
			}
			return nil
		})
	}

	group.Go(func() error {
		defer cancel()
		return a.gateway.Run(groupCtx)
	})

	return group.Wait()
}
