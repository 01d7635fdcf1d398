package domain

import "time"

// ProfileName selects one of the built-in deployment profiles.
type ProfileName string

const (
	ProfileDevelopment ProfileName = "development"
	ProfileProduction  ProfileName = "production"
	ProfileTesting     ProfileName = "testing"
	ProfileMinimal     ProfileName = "minimal"
)

// Profile fixes every tunable of the registry for one deployment.
type Profile struct {
	Name          ProfileName         `json:"name" yaml:"name" toml:"name"`
	Layers        LayerConfig         `json:"layers" yaml:"layers" toml:"layers"`
	Context       ContextConfig       `json:"context" yaml:"context" toml:"context"`
	Dependencies  DependencyConfig    `json:"dependencies" yaml:"dependencies" toml:"dependencies"`
	Audit         AuditConfig         `json:"audit" yaml:"audit" toml:"audit"`
	Observability ObservabilityConfig `json:"observability" yaml:"observability" toml:"observability"`
}

// Minimal reports whether the profile degrades to a flat always-on tool list.
func (p Profile) Minimal() bool {
	return !p.Layers.Enabled && !p.Context.Enabled && !p.Dependencies.Enabled
}

type LayerConfig struct {
	Enabled                  bool `json:"enabled" yaml:"enabled" toml:"enabled"`
	MaxActiveLayers          int  `json:"maxActiveLayers" yaml:"maxActiveLayers" toml:"maxActiveLayers"`
	EnforceExclusivity       bool `json:"enforceExclusivity" yaml:"enforceExclusivity" toml:"enforceExclusivity"`
	AutoActivateDependencies bool `json:"autoActivateDependencies" yaml:"autoActivateDependencies" toml:"autoActivateDependencies"`
}

type ContextConfig struct {
	Enabled           bool         `json:"enabled" yaml:"enabled" toml:"enabled"`
	MaxWeight         int          `json:"maxWeight" yaml:"maxWeight" toml:"maxWeight"`
	WarningThreshold  float64      `json:"warningThreshold" yaml:"warningThreshold" toml:"warningThreshold"`
	CriticalThreshold float64      `json:"criticalThreshold" yaml:"criticalThreshold" toml:"criticalThreshold"`
	Strategy          StrategyKind `json:"strategy" yaml:"strategy" toml:"strategy"`
	AutoOptimize      bool         `json:"autoOptimize" yaml:"autoOptimize" toml:"autoOptimize"`
	OptimizeTarget    Pressure     `json:"optimizeTarget,omitempty" yaml:"optimizeTarget,omitempty" toml:"optimizeTarget,omitempty"`
	CascadeEviction   bool         `json:"cascadeEviction" yaml:"cascadeEviction" toml:"cascadeEviction"`
}

type DependencyConfig struct {
	Enabled        bool `json:"enabled" yaml:"enabled" toml:"enabled"`
	MaxDepth       int  `json:"maxDepth" yaml:"maxDepth" toml:"maxDepth"`
	AllowCircular  bool `json:"allowCircular" yaml:"allowCircular" toml:"allowCircular"`
	CascadeCleanup bool `json:"cascadeCleanup" yaml:"cascadeCleanup" toml:"cascadeCleanup"`
}

type AuditConfig struct {
	MaxEntries      int           `json:"maxEntries" yaml:"maxEntries" toml:"maxEntries"`
	PersistInterval time.Duration `json:"persistInterval" yaml:"persistInterval" toml:"persistInterval"`
	DetectPatterns  bool          `json:"detectPatterns" yaml:"detectPatterns" toml:"detectPatterns"`
	ThrashWindow    time.Duration `json:"thrashWindow" yaml:"thrashWindow" toml:"thrashWindow"`
	ThrashThreshold int           `json:"thrashThreshold" yaml:"thrashThreshold" toml:"thrashThreshold"`
	StorePath       string        `json:"storePath,omitempty" yaml:"storePath,omitempty" toml:"storePath,omitempty"`
}

// Enabled reports whether audit logging keeps any entries.
func (c AuditConfig) Enabled() bool {
	return c.MaxEntries > 0
}

type ObservabilityConfig struct {
	ListenAddress  string `json:"listenAddress" yaml:"listenAddress" toml:"listenAddress"`
	MetricsEnabled bool   `json:"metricsEnabled" yaml:"metricsEnabled" toml:"metricsEnabled"`
}

// BuiltinProfile returns the defaults for a named profile.
func BuiltinProfile(name ProfileName) (Profile, bool) {
	switch name {
	case ProfileDevelopment:
		return Profile{
			Name: ProfileDevelopment,
			Layers: LayerConfig{
				Enabled:                  true,
				MaxActiveLayers:          5,
				EnforceExclusivity:       false,
				AutoActivateDependencies: true,
			},
			Context: ContextConfig{
				Enabled:           true,
				MaxWeight:         16000,
				WarningThreshold:  0.75,
				CriticalThreshold: 0.9,
				Strategy:          StrategyLRU,
				AutoOptimize:      false,
			},
			Dependencies: DependencyConfig{Enabled: true, MaxDepth: 5, AllowCircular: true},
			Audit: AuditConfig{
				MaxEntries:      1000,
				PersistInterval: 30 * time.Second,
				DetectPatterns:  true,
				ThrashWindow:    DefaultThrashWindow,
				ThrashThreshold: DefaultThrashThreshold,
			},
			Observability: ObservabilityConfig{ListenAddress: DefaultObservabilityListenAddress, MetricsEnabled: true},
		}, true
	case ProfileProduction:
		return Profile{
			Name: ProfileProduction,
			Layers: LayerConfig{
				Enabled:                  true,
				MaxActiveLayers:          3,
				EnforceExclusivity:       true,
				AutoActivateDependencies: true,
			},
			Context: ContextConfig{
				Enabled:           true,
				MaxWeight:         8000,
				WarningThreshold:  0.7,
				CriticalThreshold: 0.85,
				Strategy:          StrategySmart,
				AutoOptimize:      true,
				CascadeEviction:   true,
			},
			Dependencies: DependencyConfig{Enabled: true, MaxDepth: 3, AllowCircular: false},
			Audit: AuditConfig{
				MaxEntries:      500,
				PersistInterval: time.Minute,
				DetectPatterns:  false,
				ThrashWindow:    DefaultThrashWindow,
				ThrashThreshold: DefaultThrashThreshold,
			},
			Observability: ObservabilityConfig{ListenAddress: DefaultObservabilityListenAddress, MetricsEnabled: true},
		}, true
	case ProfileTesting:
		return Profile{
			Name: ProfileTesting,
			Layers: LayerConfig{
				Enabled:                  true,
				MaxActiveLayers:          2,
				EnforceExclusivity:       true,
				AutoActivateDependencies: false,
			},
			Context: ContextConfig{
				Enabled:           true,
				MaxWeight:         4000,
				WarningThreshold:  0.75,
				CriticalThreshold: 0.9,
				Strategy:          StrategyLRU,
				AutoOptimize:      true,
			},
			Dependencies: DependencyConfig{Enabled: true, MaxDepth: 4, AllowCircular: false},
			Audit: AuditConfig{
				MaxEntries:      200,
				DetectPatterns:  true,
				ThrashWindow:    DefaultThrashWindow,
				ThrashThreshold: DefaultThrashThreshold,
			},
		}, true
	case ProfileMinimal:
		return Profile{Name: ProfileMinimal}, true
	default:
		return Profile{}, false
	}
}

// ProfileNames lists the built-in profiles.
func ProfileNames() []string {
	return []string{string(ProfileDevelopment), string(ProfileProduction), string(ProfileTesting), string(ProfileMinimal)}
}
