package app

import (
	"context"

	"go.uber.org/zap"

	"capgate/internal/domain"
	"capgate/internal/registry"
)

// Summary describes a registry that built successfully.
type Summary struct {
	Profile      domain.ProfileName `json:"profile"`
	Mode         string             `json:"mode"`
	Tools        int                `json:"tools"`
	Categories   int                `json:"categories"`
	Layers       []string           `json:"layers"`
	ActiveLayers []string           `json:"activeLayers"`
	ActiveTools  []string           `json:"activeTools"`
	Budget       domain.BudgetState `json:"budget"`
}

// Validate builds the profile and registry without serving and reports what
// would be exposed at startup.
func Validate(ctx context.Context, cfg ServeConfig, logging LoggingConfig) (Summary, error) {
	reg, cleanup, err := InitializeRegistry(ctx, cfg, logging)
	if err != nil {
		return Summary{}, err
	}
	defer cleanup()

	summary := Summarize(reg)
	if logging.Logger != nil {
		logging.Logger.Info("configuration validated",
			zap.String("config", cfg.ConfigPath),
			zap.String("profile", string(summary.Profile)),
			zap.Int("tools", summary.Tools),
		)
	}
	return summary, nil
}

// Summarize captures the registry's startup view.
func Summarize(reg *registry.Registry) Summary {
	summary := Summary{
		Profile:      reg.Profile().Name,
		Mode:         reg.Mode(),
		Tools:        len(reg.Tools()),
		Categories:   len(domain.Categories()),
		ActiveLayers: reg.ActiveLayers(),
		Budget:       reg.Budget(),
	}
	for _, status := range reg.LayerStatuses() {
		if !status.Implicit {
			summary.Layers = append(summary.Layers, status.Name)
		}
	}
	for _, desc := range reg.Active() {
		summary.ActiveTools = append(summary.ActiveTools, desc.Name)
	}
	return summary
}
