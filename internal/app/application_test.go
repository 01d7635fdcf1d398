package app

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"capgate/internal/domain"
	"capgate/internal/infra/auditstore"
	"capgate/internal/registry"
	"capgate/internal/tools/builtin"
)

func testLogging() LoggingConfig {
	return LoggingConfig{Logger: zap.NewNop()}
}

func TestInitializeRegistryUsesBuiltinCatalog(t *testing.T) {
	reg, cleanup, err := InitializeRegistry(context.Background(), ServeConfig{Profile: "testing", Inspect: true}, testLogging())
	require.NoError(t, err)
	defer cleanup()

	require.Equal(t, domain.ProfileTesting, reg.Profile().Name)
	require.Equal(t, registry.ModeEnhanced, reg.Mode())
	require.Equal(t, len(builtin.Tools(nil)), len(reg.Tools()))
	require.Equal(t, []string{"essentials"}, reg.ActiveLayers())
	require.True(t, reg.IsActive(builtin.ToolSessionStatus))
}

func TestInitializeRegistryMinimalIsFlat(t *testing.T) {
	reg, cleanup, err := InitializeRegistry(context.Background(), ServeConfig{Profile: "minimal"}, testLogging())
	require.NoError(t, err)
	defer cleanup()

	require.Equal(t, registry.ModeFlat, reg.Mode())
	require.Len(t, reg.Active(), len(reg.Tools()))
}

func TestInitializeRegistryRejectsBadProfile(t *testing.T) {
	_, _, err := InitializeRegistry(context.Background(), ServeConfig{Profile: "staging"}, testLogging())
	require.ErrorContains(t, err, "unknown profile")
}

func TestSessionStatusReportsRegistryStats(t *testing.T) {
	reg, cleanup, err := InitializeRegistry(context.Background(), ServeConfig{Profile: "development"}, testLogging())
	require.NoError(t, err)
	defer cleanup()

	desc, ok := reg.Tool(builtin.ToolSessionStatus)
	require.True(t, ok)
	out, err := desc.Handler(context.Background(), nil)
	require.NoError(t, err)

	var stats registry.Stats
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	require.Equal(t, "development", stats.Profile)
	require.Equal(t, len(reg.Tools()), stats.TotalTools)

	render, ok := reg.Tool(builtin.ToolRenderStart)
	require.True(t, ok)
	_, err = render.Handler(context.Background(), nil)
	require.ErrorIs(t, err, builtin.ErrNotConfigured)
}

func TestInitializeApplicationWiresAuditStore(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "audit.db")
	application, cleanup, err := InitializeApplication(context.Background(), ServeConfig{
		Profile:     "production",
		AuditDBPath: dbPath,
	}, testLogging())
	require.NoError(t, err)

	reg := application.Registry()
	require.True(t, reg.Activate(context.Background(), registry.ActivateRequest{Tools: []string{builtin.ToolTTSSpeak}}).Success)
	require.NoError(t, reg.AuditLog().Flush(context.Background()))
	cleanup()

	store, err := auditstore.OpenStore(dbPath, 0)
	require.NoError(t, err)
	defer store.Close()
	entries, err := store.Tail(0)
	require.NoError(t, err)
	var activated []string
	for _, entry := range entries {
		if entry.Kind == domain.AuditActivate {
			activated = append(activated, entry.Subjects...)
		}
	}
	require.Contains(t, activated, builtin.ToolTTSSpeak)
}

func TestValidateSummary(t *testing.T) {
	config := filepath.Join(t.TempDir(), "capgate.yaml")
	require.NoError(t, os.WriteFile(config, []byte("layers:\n  maxActiveLayers: 4\n"), 0o600))

	summary, err := Validate(context.Background(), ServeConfig{ConfigPath: config, Profile: "production", Inspect: true}, testLogging())
	require.NoError(t, err)
	require.Equal(t, domain.ProfileProduction, summary.Profile)
	require.Equal(t, registry.ModeEnhanced, summary.Mode)
	require.Contains(t, summary.Layers, "video-production")
	require.Equal(t, []string{"essentials"}, summary.ActiveLayers)
	require.Contains(t, summary.ActiveTools, builtin.ToolSessionStatus)
}

func TestApplyOverrides(t *testing.T) {
	profile, _ := domain.BuiltinProfile(domain.ProfileTesting)
	got := applyOverrides(profile, ServeConfig{MetricsAddr: "127.0.0.1:9999", AuditDBPath: "/tmp/a.db"})
	require.True(t, got.Observability.MetricsEnabled)
	require.Equal(t, "127.0.0.1:9999", got.Observability.ListenAddress)
	require.Equal(t, "/tmp/a.db", got.Audit.StorePath)
}

func TestNewAuditSinkNilStore(t *testing.T) {
	require.Nil(t, NewAuditSink(nil))
}

func TestNewConfigWatcherNeedsPathAndFlag(t *testing.T) {
	profile, _ := domain.BuiltinProfile(domain.ProfileTesting)
	require.Nil(t, NewConfigWatcher(ServeConfig{Watch: true}, profile, nil, zap.NewNop()))
	require.Nil(t, NewConfigWatcher(ServeConfig{ConfigPath: "capgate.yaml"}, profile, nil, zap.NewNop()))
	require.NotNil(t, NewConfigWatcher(ServeConfig{ConfigPath: "capgate.yaml", Watch: true}, profile, nil, zap.NewNop()))
}
