package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"capgate/internal/domain"
)

// Loader builds the effective profile from the built-in defaults, an
// optional config file and CAPGATE_* environment overrides.
type Loader struct {
	logger *zap.Logger
}

func NewLoader(logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{logger: logger.Named("config")}
}

// ResolveProfileName picks the profile: explicit value first, then
// CAPGATE_ENV, then the production default.
func ResolveProfileName(explicit string) (domain.ProfileName, error) {
	raw := strings.TrimSpace(explicit)
	if raw == "" {
		raw = strings.TrimSpace(os.Getenv(domain.ProfileEnvVar))
	}
	if raw == "" {
		return domain.DefaultProfile, nil
	}
	name := domain.ProfileName(strings.ToLower(raw))
	if _, ok := domain.BuiltinProfile(name); !ok {
		return "", fmt.Errorf("unknown profile %q (valid: %s)", raw, strings.Join(domain.ProfileNames(), ", "))
	}
	return name, nil
}

func newProfileViper(base domain.Profile) *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(domain.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setProfileDefaults(v, base)
	return v
}

func setProfileDefaults(v *viper.Viper, base domain.Profile) {
	v.SetDefault("layers.enabled", base.Layers.Enabled)
	v.SetDefault("layers.maxActiveLayers", base.Layers.MaxActiveLayers)
	v.SetDefault("layers.enforceExclusivity", base.Layers.EnforceExclusivity)
	v.SetDefault("layers.autoActivateDependencies", base.Layers.AutoActivateDependencies)
	v.SetDefault("context.enabled", base.Context.Enabled)
	v.SetDefault("context.maxWeight", base.Context.MaxWeight)
	v.SetDefault("context.warningThreshold", base.Context.WarningThreshold)
	v.SetDefault("context.criticalThreshold", base.Context.CriticalThreshold)
	v.SetDefault("context.strategy", string(base.Context.Strategy))
	v.SetDefault("context.autoOptimize", base.Context.AutoOptimize)
	v.SetDefault("context.optimizeTarget", string(base.Context.OptimizeTarget))
	v.SetDefault("context.cascadeEviction", base.Context.CascadeEviction)
	v.SetDefault("dependencies.enabled", base.Dependencies.Enabled)
	v.SetDefault("dependencies.maxDepth", base.Dependencies.MaxDepth)
	v.SetDefault("dependencies.allowCircular", base.Dependencies.AllowCircular)
	v.SetDefault("dependencies.cascadeCleanup", base.Dependencies.CascadeCleanup)
	v.SetDefault("audit.maxEntries", base.Audit.MaxEntries)
	v.SetDefault("audit.persistInterval", base.Audit.PersistInterval)
	v.SetDefault("audit.detectPatterns", base.Audit.DetectPatterns)
	v.SetDefault("audit.thrashWindow", base.Audit.ThrashWindow)
	v.SetDefault("audit.thrashThreshold", base.Audit.ThrashThreshold)
	v.SetDefault("audit.storePath", base.Audit.StorePath)
	v.SetDefault("observability.listenAddress", base.Observability.ListenAddress)
	v.SetDefault("observability.metricsEnabled", base.Observability.MetricsEnabled)
}

type rawProfile struct {
	Layers        rawLayerConfig         `mapstructure:"layers"`
	Context       rawContextConfig       `mapstructure:"context"`
	Dependencies  rawDependencyConfig    `mapstructure:"dependencies"`
	Audit         rawAuditConfig         `mapstructure:"audit"`
	Observability rawObservabilityConfig `mapstructure:"observability"`
}

type rawLayerConfig struct {
	Enabled                  bool `mapstructure:"enabled"`
	MaxActiveLayers          int  `mapstructure:"maxActiveLayers"`
	EnforceExclusivity       bool `mapstructure:"enforceExclusivity"`
	AutoActivateDependencies bool `mapstructure:"autoActivateDependencies"`
}

type rawContextConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	MaxWeight         int     `mapstructure:"maxWeight"`
	WarningThreshold  float64 `mapstructure:"warningThreshold"`
	CriticalThreshold float64 `mapstructure:"criticalThreshold"`
	Strategy          string  `mapstructure:"strategy"`
	AutoOptimize      bool    `mapstructure:"autoOptimize"`
	OptimizeTarget    string  `mapstructure:"optimizeTarget"`
	CascadeEviction   bool    `mapstructure:"cascadeEviction"`
}

type rawDependencyConfig struct {
	Enabled        bool `mapstructure:"enabled"`
	MaxDepth       int  `mapstructure:"maxDepth"`
	AllowCircular  bool `mapstructure:"allowCircular"`
	CascadeCleanup bool `mapstructure:"cascadeCleanup"`
}

type rawAuditConfig struct {
	MaxEntries      int           `mapstructure:"maxEntries"`
	PersistInterval time.Duration `mapstructure:"persistInterval"`
	DetectPatterns  bool          `mapstructure:"detectPatterns"`
	ThrashWindow    time.Duration `mapstructure:"thrashWindow"`
	ThrashThreshold int           `mapstructure:"thrashThreshold"`
	StorePath       string        `mapstructure:"storePath"`
}

type rawObservabilityConfig struct {
	ListenAddress  string `mapstructure:"listenAddress"`
	MetricsEnabled bool   `mapstructure:"metricsEnabled"`
}

// Load resolves the named built-in profile and applies overrides from path
// (YAML or TOML, chosen by extension) and the environment. An empty path
// skips the file.
func (l *Loader) Load(ctx context.Context, name domain.ProfileName, path string) (domain.Profile, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	base, ok := domain.BuiltinProfile(name)
	if !ok {
		return domain.Profile{}, fmt.Errorf("unknown profile %q (valid: %s)", name, strings.Join(domain.ProfileNames(), ", "))
	}

	v := newProfileViper(base)
	if path = strings.TrimSpace(path); path != "" {
		if err := setConfigFile(v, path); err != nil {
			return domain.Profile{}, err
		}
		if err := v.ReadInConfig(); err != nil {
			return domain.Profile{}, fmt.Errorf("parse config: %w", err)
		}
		l.logger.Debug("profile overrides loaded", zap.String("path", path), zap.String("profile", string(name)))
	}

	var raw rawProfile
	if err := v.Unmarshal(&raw); err != nil {
		return domain.Profile{}, fmt.Errorf("decode config: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return domain.Profile{}, err
	}

	profile, errs := normalizeProfile(name, raw)
	if len(errs) > 0 {
		return domain.Profile{}, errors.New(strings.Join(errs, "; "))
	}
	if profile.Minimal() != base.Minimal() {
		l.logger.Warn("profile overrides change the registry mode",
			zap.String("profile", string(name)),
			zap.Bool("minimal", profile.Minimal()),
		)
	}
	return profile, nil
}

func setConfigFile(v *viper.Viper, path string) error {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		v.SetConfigType("yaml")
	case ".toml":
		v.SetConfigType("toml")
	case ".json":
		v.SetConfigType("json")
	default:
		return fmt.Errorf("unsupported config format %q (use .yaml, .toml or .json)", ext)
	}
	v.SetConfigFile(path)
	return nil
}

func normalizeProfile(name domain.ProfileName, raw rawProfile) (domain.Profile, []string) {
	var errs []string

	strategy := domain.StrategyKind(strings.ToUpper(strings.TrimSpace(raw.Context.Strategy)))
	switch strategy {
	case domain.StrategyLRU, domain.StrategySmart:
	case "":
		strategy = domain.StrategySmart
	default:
		errs = append(errs, fmt.Sprintf("context.strategy must be LRU or SMART, got %q", raw.Context.Strategy))
	}

	var target domain.Pressure
	if trimmed := strings.ToLower(strings.TrimSpace(raw.Context.OptimizeTarget)); trimmed != "" {
		parsed, ok := domain.ParsePressure(trimmed)
		if !ok || parsed == domain.PressureCritical {
			errs = append(errs, fmt.Sprintf("context.optimizeTarget must be normal or warning, got %q", raw.Context.OptimizeTarget))
		} else {
			target = parsed
		}
	}

	profile := domain.Profile{
		Name: name,
		Layers: domain.LayerConfig{
			Enabled:                  raw.Layers.Enabled,
			MaxActiveLayers:          raw.Layers.MaxActiveLayers,
			EnforceExclusivity:       raw.Layers.EnforceExclusivity,
			AutoActivateDependencies: raw.Layers.AutoActivateDependencies,
		},
		Context: domain.ContextConfig{
			Enabled:           raw.Context.Enabled,
			MaxWeight:         raw.Context.MaxWeight,
			WarningThreshold:  raw.Context.WarningThreshold,
			CriticalThreshold: raw.Context.CriticalThreshold,
			Strategy:          strategy,
			AutoOptimize:      raw.Context.AutoOptimize,
			OptimizeTarget:    target,
			CascadeEviction:   raw.Context.CascadeEviction,
		},
		Dependencies: domain.DependencyConfig{
			Enabled:        raw.Dependencies.Enabled,
			MaxDepth:       raw.Dependencies.MaxDepth,
			AllowCircular:  raw.Dependencies.AllowCircular,
			CascadeCleanup: raw.Dependencies.CascadeCleanup,
		},
		Audit: domain.AuditConfig{
			MaxEntries:      raw.Audit.MaxEntries,
			PersistInterval: raw.Audit.PersistInterval,
			DetectPatterns:  raw.Audit.DetectPatterns,
			ThrashWindow:    raw.Audit.ThrashWindow,
			ThrashThreshold: raw.Audit.ThrashThreshold,
			StorePath:       strings.TrimSpace(raw.Audit.StorePath),
		},
		Observability: domain.ObservabilityConfig{
			ListenAddress:  strings.TrimSpace(raw.Observability.ListenAddress),
			MetricsEnabled: raw.Observability.MetricsEnabled,
		},
	}

	errs = append(errs, validateProfile(profile)...)
	return profile, errs
}

func validateProfile(p domain.Profile) []string {
	var errs []string
	if p.Layers.Enabled && p.Layers.MaxActiveLayers < 1 {
		errs = append(errs, "layers.maxActiveLayers must be >= 1 when layers are enabled")
	}
	if p.Context.Enabled {
		if p.Context.MaxWeight <= 0 {
			errs = append(errs, "context.maxWeight must be > 0 when the context budget is enabled")
		}
		if p.Context.WarningThreshold <= 0 || p.Context.WarningThreshold >= 1 {
			errs = append(errs, "context.warningThreshold must be between 0 and 1")
		}
		if p.Context.CriticalThreshold <= p.Context.WarningThreshold || p.Context.CriticalThreshold > 1 {
			errs = append(errs, "context.criticalThreshold must be above warningThreshold and at most 1")
		}
	}
	if p.Dependencies.Enabled && p.Dependencies.MaxDepth < 1 {
		errs = append(errs, "dependencies.maxDepth must be >= 1 when dependency resolution is enabled")
	}
	if p.Audit.MaxEntries < 0 {
		errs = append(errs, "audit.maxEntries must be >= 0")
	}
	if p.Audit.PersistInterval < 0 {
		errs = append(errs, "audit.persistInterval must be >= 0")
	}
	if p.Audit.DetectPatterns {
		if p.Audit.ThrashWindow <= 0 {
			errs = append(errs, "audit.thrashWindow must be > 0 when pattern detection is enabled")
		}
		if p.Audit.ThrashThreshold < 2 {
			errs = append(errs, "audit.thrashThreshold must be >= 2 when pattern detection is enabled")
		}
	}
	if p.Observability.MetricsEnabled && p.Observability.ListenAddress == "" {
		errs = append(errs, "observability.listenAddress is required when metrics are enabled")
	}
	return errs
}
