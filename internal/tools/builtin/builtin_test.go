package builtin

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"capgate/internal/domain"
	"capgate/internal/registry"
)

func TestToolsAreWellFormed(t *testing.T) {
	tools := Tools(nil)
	names := make(map[string]struct{}, len(tools))
	for _, desc := range tools {
		_, dup := names[desc.Name]
		require.False(t, dup, "duplicate tool %s", desc.Name)
		names[desc.Name] = struct{}{}

		assert.NotEmpty(t, desc.Description, desc.Name)
		assert.Positive(t, desc.EstimatedTokens, desc.Name)
		require.NotNil(t, desc.InputSchema, desc.Name)
		assert.Equal(t, "object", desc.InputSchema.Type, desc.Name)
		assert.True(t, desc.Category.HasSubCategory(desc.SubCategory), "%s: sub-category %s", desc.Name, desc.SubCategory)
		require.NotNil(t, desc.Handler, desc.Name)
	}
	for _, desc := range tools {
		for _, dep := range desc.DependsOn {
			_, ok := names[dep]
			assert.True(t, ok, "%s depends on unknown %s", desc.Name, dep)
		}
	}
	for _, category := range domain.Categories() {
		found := false
		for _, desc := range tools {
			if desc.Category == category {
				found = true
				break
			}
		}
		assert.True(t, found, "category %s has no tools", category)
	}
}

func TestRequiredFieldsInSchema(t *testing.T) {
	for _, desc := range Tools(nil) {
		if desc.Name != ToolRenderStart {
			continue
		}
		require.Equal(t, []string{"compositionId"}, desc.InputSchema.Required)
		require.Contains(t, desc.InputSchema.Properties, "format")
		return
	}
	t.Fatal("render_start missing")
}

func TestUnconfiguredBackend(t *testing.T) {
	tools := Tools(nil)
	_, err := tools[len(tools)-1].Handler(context.Background(), json.RawMessage(`{}`))
	require.ErrorIs(t, err, ErrNotConfigured)
	require.Equal(t, domain.CodeFailedPrecond, domain.CodeFrom(err, domain.CodeInternal))
}

func TestHandlersForwardToBackend(t *testing.T) {
	var gotTool, gotArgs string
	backend := BackendFunc(func(_ context.Context, tool string, args json.RawMessage) (string, error) {
		gotTool, gotArgs = tool, string(args)
		return "ok", nil
	})
	for _, desc := range Tools(backend) {
		if desc.Name != ToolTTSSpeak {
			continue
		}
		out, err := desc.Handler(context.Background(), json.RawMessage(`{"text":"hi"}`))
		require.NoError(t, err)
		require.Equal(t, "ok", out)
	}
	require.Equal(t, ToolTTSSpeak, gotTool)
	require.Equal(t, `{"text":"hi"}`, gotArgs)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Tools(backend)[0].Handler(ctx, nil)
	require.ErrorIs(t, err, context.Canceled)
}

func TestSessionBackend(t *testing.T) {
	backend := SessionBackend{Status: func(context.Context) (any, error) {
		return map[string]int{"activeTools": 3}, nil
	}}
	out, err := backend.Invoke(context.Background(), ToolSessionStatus, nil)
	require.NoError(t, err)
	require.JSONEq(t, `{"activeTools":3}`, out)

	_, err = backend.Invoke(context.Background(), ToolRenderStart, nil)
	require.ErrorIs(t, err, ErrNotConfigured)
}

func TestEmbeddedLayers(t *testing.T) {
	layers, err := Layers()
	require.NoError(t, err)

	byName := make(map[string]domain.Layer)
	for _, l := range layers {
		byName[l.Name] = l
	}
	require.Len(t, byName, len(layers))
	require.True(t, byName["essentials"].Default)
	require.Equal(t, "workflow", byName["video-production"].ExclusiveGroup)
	require.Equal(t, "workflow", byName["audio-production"].ExclusiveGroup)
	require.Equal(t, []domain.SubCategoryRef{{Category: domain.CategorySourceEditing, Name: "rewrite"}}, byName["automation"].SubCategories)
	require.Equal(t, []string{"video-production"}, byName["trailer"].DependsOn)
}

func TestParseLayersReportsEveryProblem(t *testing.T) {
	_, err := ParseLayers([]byte(`
layers:
  - name: broken
    categories: [nope]
    subCategories: [speech/whisper]
`))
	require.ErrorContains(t, err, `unknown category "nope"`)
	require.ErrorContains(t, err, "whisper")

	_, err = ParseLayers([]byte("layers: ["))
	require.ErrorContains(t, err, "parse layers")
}

func TestBuiltinCatalogBuildsRegistry(t *testing.T) {
	layers, err := Layers()
	require.NoError(t, err)
	for _, name := range []domain.ProfileName{domain.ProfileDevelopment, domain.ProfileProduction, domain.ProfileTesting, domain.ProfileMinimal} {
		profile, ok := domain.BuiltinProfile(name)
		require.True(t, ok)
		reg, err := registry.New(registry.Options{Profile: profile, Tools: Tools(nil), Layers: layers})
		require.NoError(t, err, name)
		require.NotEmpty(t, reg.Active(), name)
	}

	profile, _ := domain.BuiltinProfile(domain.ProfileProduction)
	reg, err := registry.New(registry.Options{Profile: profile, Tools: Tools(nil), Layers: layers})
	require.NoError(t, err)
	resp := reg.Activate(context.Background(), registry.ActivateRequest{Layers: []string{"trailer"}})
	require.True(t, resp.Success, resp.Message)
	require.ElementsMatch(t, []string{"essentials", "video-production", "trailer"}, reg.ActiveLayers())
	require.True(t, reg.IsActive(ToolImageGenerate))
	require.True(t, reg.IsActive(ToolRenderStart))

	resp = reg.Activate(context.Background(), registry.ActivateRequest{Layers: []string{"audio-production"}})
	require.True(t, resp.Success, resp.Message)
	require.False(t, reg.IsActive(ToolRenderStart), "exclusive group replaces video-production")
	require.True(t, reg.IsActive(ToolTTSSpeak))
}
