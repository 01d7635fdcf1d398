//go:build wireinject
// +build wireinject

package app

import (
	"context"

	"github.com/google/wire"

	"capgate/internal/registry"
)

func InitializeApplication(ctx context.Context, cfg ServeConfig, logging LoggingConfig) (*Application, func(), error) {
	wire.Build(AppSet)
	return nil, nil, nil
}

func InitializeRegistry(ctx context.Context, cfg ServeConfig, logging LoggingConfig) (*registry.Registry, func(), error) {
	wire.Build(RegistrySet)
	return nil, nil, nil
}
