//go:build wireinject
// +build wireinject

package app

import (
	"github.com/google/wire"
)

var CoreInfraSet = wire.NewSet(
	NewLogging,
	NewLogger,
	NewProfile,
	NewMetricsRegistry,
	NewMetrics,
)

var RegistrySet = wire.NewSet(
	CoreInfraSet,
	NewAuditStore,
	NewAuditSink,
	NewBackend,
	NewRegistry,
)

var AppSet = wire.NewSet(
	RegistrySet,
	NewGateway,
	NewConfigWatcher,
	wire.Struct(new(ApplicationOptions), "*"),
	NewApplication,
)
