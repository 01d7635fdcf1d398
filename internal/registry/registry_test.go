package registry

import (
	"context"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"capgate/internal/domain"
)

func fixtureTools() []domain.ToolDescriptor {
	return []domain.ToolDescriptor{
		{Name: "session_status", Description: "Report session health.", Category: domain.CategoryCore, SubCategory: "session", EstimatedTokens: 5, LoadByDefault: true, Priority: 10},
		{Name: "composition_create", Description: "Create a composition timeline.", Category: domain.CategoryVideoCreation, SubCategory: "composition", EstimatedTokens: 10, Tags: []string{"video", "timeline"}},
		{Name: "render_start", Description: "Start rendering a composition.", Category: domain.CategoryVideoCreation, SubCategory: "rendering", EstimatedTokens: 10, Tags: []string{"video", "render"}, DependsOn: []string{"composition_create"}},
		{Name: "render_status", Description: "Poll a render job.", Category: domain.CategoryVideoCreation, SubCategory: "rendering", EstimatedTokens: 10, Tags: []string{"render"}},
		{Name: "tts_speak", Description: "Synthesize narration audio.", Category: domain.CategorySpeech, SubCategory: "synthesis", EstimatedTokens: 10, Tags: []string{"voice", "narration"}},
		{Name: "voices_list", Description: "List available speakers.", Category: domain.CategorySpeech, SubCategory: "voices", EstimatedTokens: 10, Tags: []string{"voice"}},
		{Name: "audio_search", Description: "Search royalty-free music.", Category: domain.CategoryAudioLibrary, SubCategory: "search", EstimatedTokens: 10, Tags: []string{"music", "sfx"}},
		{Name: "process_spawn", Description: "Spawn a helper process.", Category: domain.CategoryProcess, SubCategory: "lifecycle", EstimatedTokens: 10},
	}
}

func fixtureLayers() []domain.Layer {
	return []domain.Layer{
		{Name: "essentials", Categories: []domain.Category{domain.CategoryCore}, Default: true},
		{Name: "video-production", Tools: []string{"render_start", "render_status"}, ExclusiveGroup: "workflow"},
		{Name: "audio-production", Categories: []domain.Category{domain.CategorySpeech}, Tools: []string{"audio_search"}, ExclusiveGroup: "workflow"},
	}
}

func testingProfile(mutate ...func(*domain.Profile)) domain.Profile {
	profile, _ := domain.BuiltinProfile(domain.ProfileTesting)
	for _, fn := range mutate {
		fn(&profile)
	}
	return profile
}

func newRegistry(t *testing.T, profile domain.Profile, tools []domain.ToolDescriptor, layers []domain.Layer) *Registry {
	t.Helper()
	r, err := New(Options{Profile: profile, Tools: tools, Layers: layers})
	require.NoError(t, err)
	return r
}

func activeToolNames(r *Registry) []string {
	var out []string
	for _, desc := range r.Active() {
		out = append(out, desc.Name)
	}
	return out
}

func requireBudgetInvariant(t *testing.T, r *Registry) {
	t.Helper()
	sum := 0
	for _, desc := range r.Active() {
		sum += desc.EstimatedTokens
	}
	state := r.Budget()
	require.Equal(t, sum, state.TotalWeight)
	require.Equal(t, len(r.Active()), state.ActiveItems)
}

func TestRegistryStartsWithDefaults(t *testing.T) {
	r := newRegistry(t, testingProfile(), fixtureTools(), fixtureLayers())

	require.Equal(t, ModeEnhanced, r.Mode())
	require.Equal(t, []string{"session_status"}, activeToolNames(r))
	require.Equal(t, []string{"essentials"}, r.ActiveLayers())
	require.Equal(t, 5, r.Budget().TotalWeight)
}

func TestNewRejectsDuplicateTools(t *testing.T) {
	tools := append(fixtureTools(), domain.ToolDescriptor{Name: "tts_speak", Category: domain.CategorySpeech, EstimatedTokens: 1})
	_, err := New(Options{Profile: testingProfile(), Tools: tools})
	var dup *domain.DuplicateNameError
	require.ErrorAs(t, err, &dup)
	require.Equal(t, "tts_speak", dup.Name)
}

func TestNewRejectsUnknownDependencyTarget(t *testing.T) {
	tools := append(fixtureTools(), domain.ToolDescriptor{Name: "broken", Category: domain.CategoryProcess, EstimatedTokens: 1, DependsOn: []string{"nope"}})
	_, err := New(Options{Profile: testingProfile(), Tools: tools})
	require.ErrorContains(t, err, `depends on unknown target "nope"`)
}

func TestActivateDependencyClosure(t *testing.T) {
	ctx := context.Background()
	r := newRegistry(t, testingProfile(), fixtureTools(), fixtureLayers())

	resp := r.Activate(ctx, ActivateRequest{Tools: []string{"render_start"}})
	require.True(t, resp.Success, resp.Message)
	require.Equal(t, []string{"composition_create", "render_start"}, resp.Activated)
	require.Equal(t, []string{"composition_create"}, resp.Dependencies)
	require.Equal(t, 25, resp.ContextWeight)

	off := r.Deactivate(ctx, DeactivateRequest{Tools: []string{"render_start"}})
	require.True(t, off.Success)
	require.Equal(t, []string{"render_start"}, off.Deactivated)
	require.True(t, r.IsActive("composition_create"), "deactivation does not cascade by default")
	requireBudgetInvariant(t, r)
}

func TestDeactivateCascadeCleanup(t *testing.T) {
	ctx := context.Background()
	r := newRegistry(t, testingProfile(), fixtureTools(), fixtureLayers())
	require.True(t, r.Activate(ctx, ActivateRequest{Tools: []string{"render_start"}}).Success)

	cascade := true
	off := r.Deactivate(ctx, DeactivateRequest{Tools: []string{"render_start"}, Cascade: &cascade})
	require.True(t, off.Success)
	require.ElementsMatch(t, []string{"render_start", "composition_create"}, off.Deactivated)
	require.Equal(t, []string{"session_status"}, activeToolNames(r))
}

func TestCascadeKeepsSharedDependency(t *testing.T) {
	ctx := context.Background()
	tools := append(fixtureTools(), domain.ToolDescriptor{
		Name: "render_preview", Category: domain.CategoryVideoCreation, SubCategory: "rendering",
		EstimatedTokens: 10, DependsOn: []string{"composition_create"},
	})
	r := newRegistry(t, testingProfile(), tools, nil)
	require.True(t, r.Activate(ctx, ActivateRequest{Tools: []string{"render_start", "render_preview"}}).Success)

	cascade := true
	off := r.Deactivate(ctx, DeactivateRequest{Tools: []string{"render_start"}, Cascade: &cascade})
	require.Equal(t, []string{"render_start"}, off.Deactivated)
	require.True(t, r.IsActive("composition_create"))
}

func TestActivateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	r := newRegistry(t, testingProfile(), fixtureTools(), fixtureLayers())

	first := r.Activate(ctx, ActivateRequest{Tools: []string{"tts_speak", "voices_list"}})
	require.True(t, first.Success)
	before := activeToolNames(r)

	second := r.Activate(ctx, ActivateRequest{Tools: []string{"tts_speak", "voices_list"}})
	require.True(t, second.Success)
	require.Empty(t, second.Activated)
	require.NotNil(t, second.Activated)
	require.Equal(t, first.ContextWeight, second.ContextWeight)
	require.Equal(t, before, activeToolNames(r))
}

func TestBudgetInvariantAcrossOperations(t *testing.T) {
	ctx := context.Background()
	r := newRegistry(t, testingProfile(), fixtureTools(), fixtureLayers())

	steps := []func(){
		func() { r.Activate(ctx, ActivateRequest{Categories: []string{"speech"}}) },
		func() { r.Activate(ctx, ActivateRequest{Layers: []string{"video-production"}}) },
		func() { r.Activate(ctx, ActivateRequest{SubCategories: []string{"process/lifecycle"}}) },
		func() { r.Deactivate(ctx, DeactivateRequest{Categories: []string{"speech"}}) },
		func() { r.Activate(ctx, ActivateRequest{Tools: []string{"audio_search"}, Exclusive: true}) },
		func() { r.Deactivate(ctx, DeactivateRequest{All: true}) },
	}
	for _, step := range steps {
		step()
		requireBudgetInvariant(t, r)
		require.True(t, r.IsActive("session_status"))
	}
	require.Equal(t, []string{"session_status"}, activeToolNames(r))
	require.Equal(t, []string{"essentials"}, r.ActiveLayers())
}

func TestCircularDependencyRejected(t *testing.T) {
	tools := []domain.ToolDescriptor{
		{Name: "a", Category: domain.CategoryProcess, EstimatedTokens: 10, DependsOn: []string{"b"}},
		{Name: "b", Category: domain.CategoryProcess, EstimatedTokens: 10, DependsOn: []string{"a"}},
	}
	r := newRegistry(t, testingProfile(), tools, nil)

	resp := r.Activate(context.Background(), ActivateRequest{Tools: []string{"a"}})
	require.False(t, resp.Success)
	require.NotNil(t, resp.Failure)
	require.Equal(t, domain.CodeFailedPrecond, resp.Failure.Code)
	require.Contains(t, resp.Failure.Message, "circular dependency: a -> b -> a")
	require.NotEmpty(t, resp.Failure.Suggestions)
	require.Empty(t, activeToolNames(r))
}

func TestCircularDependencyAllowed(t *testing.T) {
	tools := []domain.ToolDescriptor{
		{Name: "a", Category: domain.CategoryProcess, EstimatedTokens: 10, DependsOn: []string{"b"}},
		{Name: "b", Category: domain.CategoryProcess, EstimatedTokens: 10, DependsOn: []string{"a"}},
	}
	profile := testingProfile(func(p *domain.Profile) { p.Dependencies.AllowCircular = true })
	r := newRegistry(t, profile, tools, nil)

	resp := r.Activate(context.Background(), ActivateRequest{Tools: []string{"a"}})
	require.True(t, resp.Success, resp.Message)
	require.Equal(t, []string{"a", "b"}, resp.Activated)
	require.Equal(t, 20, resp.ContextWeight)
	require.NotEmpty(t, resp.Warnings)
}

func TestLayerExclusivity(t *testing.T) {
	ctx := context.Background()
	r := newRegistry(t, testingProfile(), fixtureTools(), fixtureLayers())

	video := r.Activate(ctx, ActivateRequest{Layers: []string{"video-production"}})
	require.True(t, video.Success, video.Message)
	require.ElementsMatch(t, []string{"composition_create", "render_start", "render_status"}, video.Activated)

	audio := r.Activate(ctx, ActivateRequest{Layers: []string{"audio-production"}})
	require.True(t, audio.Success, audio.Message)
	require.ElementsMatch(t, []string{"tts_speak", "voices_list", "audio_search"}, audio.Activated)
	require.ElementsMatch(t, []string{"composition_create", "render_start", "render_status"}, audio.Deactivated)
	require.Equal(t, []string{"essentials", "audio-production"}, r.ActiveLayers())
}

func TestExclusiveRequestReplacesSelection(t *testing.T) {
	ctx := context.Background()
	r := newRegistry(t, testingProfile(), fixtureTools(), fixtureLayers())
	require.True(t, r.Activate(ctx, ActivateRequest{Tools: []string{"process_spawn"}}).Success)

	resp := r.Activate(ctx, ActivateRequest{Tools: []string{"audio_search"}, Exclusive: true})
	require.True(t, resp.Success)
	require.Equal(t, []string{"audio_search"}, resp.Activated)
	require.Equal(t, []string{"process_spawn"}, resp.Deactivated)
	require.Equal(t, []string{"session_status", "audio_search"}, activeToolNames(r))
}

func TestActivateSubCategory(t *testing.T) {
	r := newRegistry(t, testingProfile(), fixtureTools(), fixtureLayers())

	resp := r.Activate(context.Background(), ActivateRequest{SubCategories: []string{"speech/synthesis"}})
	require.True(t, resp.Success, resp.Message)
	require.Equal(t, []string{"tts_speak"}, resp.Activated)
	require.Contains(t, resp.Layers, "speech/synthesis")
	require.Equal(t, []string{"speech"}, r.AuditLog().Recent(1)[0].Categories)
}

func TestActivateUnknownSubCategoryFailsWithSuggestions(t *testing.T) {
	r := newRegistry(t, testingProfile(), fixtureTools(), fixtureLayers())

	resp := r.Activate(context.Background(), ActivateRequest{SubCategories: []string{"video-creation/bogus"}})
	require.False(t, resp.Success)
	require.NotNil(t, resp.Failure)
	assert.Equal(t, domain.CodeInvalidArgument, resp.Failure.Code)
	assert.Equal(t, []string{"composition", "rendering"}, resp.Failure.Valid)
	assert.Contains(t, resp.Failure.Suggestions, "use discover({type:'tree'}) to see valid names")
	assert.Equal(t, []string{"session_status"}, activeToolNames(r))
}

func TestActivateUnknownNamesFail(t *testing.T) {
	ctx := context.Background()
	r := newRegistry(t, testingProfile(), fixtureTools(), fixtureLayers())

	category := r.Activate(ctx, ActivateRequest{Categories: []string{"alpha"}})
	require.NotNil(t, category.Failure)
	require.Equal(t, domain.CategoryIDs(), category.Failure.Valid)

	tool := r.Activate(ctx, ActivateRequest{Tools: []string{"tts_speak", "nope"}})
	require.NotNil(t, tool.Failure)
	require.Equal(t, domain.CodeNotFound, tool.Failure.Code)
	require.False(t, r.IsActive("tts_speak"), "validation happens before any mutation")

	layer := r.Activate(ctx, ActivateRequest{Layers: []string{"nope"}})
	require.NotNil(t, layer.Failure)
	require.Equal(t, []string{"essentials", "video-production", "audio-production"}, layer.Failure.Valid)

	empty := r.Activate(ctx, ActivateRequest{})
	require.NotNil(t, empty.Failure)
	require.Equal(t, domain.CodeInvalidArgument, empty.Failure.Code)
}

func TestLayerCapacityReported(t *testing.T) {
	ctx := context.Background()
	r := newRegistry(t, testingProfile(), fixtureTools(), fixtureLayers())

	require.True(t, r.Activate(ctx, ActivateRequest{SubCategories: []string{"speech/synthesis"}}).Success)
	require.True(t, r.Activate(ctx, ActivateRequest{SubCategories: []string{"speech/voices"}}).Success)

	resp := r.Activate(ctx, ActivateRequest{SubCategories: []string{"process/lifecycle"}})
	require.False(t, resp.Success)
	require.Equal(t, domain.CodeResourceExhausted, resp.Failure.Code)
	require.False(t, r.IsActive("process_spawn"))
}

func TestFailedExclusiveActivationReportsPartialChanges(t *testing.T) {
	ctx := context.Background()
	r := newRegistry(t, testingProfile(), fixtureTools(), fixtureLayers())

	require.True(t, r.Activate(ctx, ActivateRequest{SubCategories: []string{"speech/synthesis"}}).Success)
	require.True(t, r.Activate(ctx, ActivateRequest{SubCategories: []string{"speech/voices"}}).Success)
	require.True(t, r.Activate(ctx, ActivateRequest{Tools: []string{"audio_search"}}).Success)

	resp := r.Activate(ctx, ActivateRequest{
		Tools:         []string{"tts_speak", "voices_list"},
		SubCategories: []string{"process/lifecycle"},
		Exclusive:     true,
	})
	require.False(t, resp.Success)
	require.Equal(t, domain.CodeResourceExhausted, resp.Failure.Code)
	require.Equal(t, []string{"audio_search"}, resp.Deactivated)
	require.NotNil(t, resp.Activated)
	require.Empty(t, resp.Activated)
	require.Empty(t, resp.Evicted)
	require.False(t, r.IsActive("audio_search"))
	require.False(t, r.IsActive("process_spawn"))
	requireBudgetInvariant(t, r)
}

func TestLRUProfileEvictsDownToNormal(t *testing.T) {
	ctx := context.Background()
	tools := []domain.ToolDescriptor{
		{Name: "alpha_one", Category: domain.CategoryAudioLibrary, EstimatedTokens: 10},
		{Name: "alpha_two", Category: domain.CategoryAudioLibrary, EstimatedTokens: 10},
		{Name: "alpha_three", Category: domain.CategoryAudioLibrary, EstimatedTokens: 10},
	}
	profile := testingProfile(func(p *domain.Profile) {
		p.Context.MaxWeight = 25
	})
	require.Equal(t, domain.StrategyLRU, profile.Context.Strategy)
	require.Empty(t, profile.Context.OptimizeTarget)
	r := newRegistry(t, profile, tools, nil)

	require.True(t, r.Activate(ctx, ActivateRequest{Tools: []string{"alpha_one"}}).Success)
	require.True(t, r.Activate(ctx, ActivateRequest{Tools: []string{"alpha_two"}}).Success)
	third := r.Activate(ctx, ActivateRequest{Tools: []string{"alpha_three"}})
	require.True(t, third.Success, third.Message)
	require.Equal(t, []string{"alpha_one", "alpha_two"}, third.Evicted)
	require.Equal(t, 10, third.ContextWeight)
	require.Equal(t, domain.PressureNormal, third.Budget.Pressure)
	require.Equal(t, []string{"alpha_three"}, activeToolNames(r))
}

func TestReconfigureWhileReading(t *testing.T) {
	ctx := context.Background()
	r := newRegistry(t, testingProfile(), fixtureTools(), fixtureLayers())
	require.True(t, r.Activate(ctx, ActivateRequest{Tools: []string{"audio_search"}}).Success)

	tight := testingProfile(func(p *domain.Profile) {
		p.Context.MaxWeight = 20
		p.Context.Strategy = domain.StrategySmart
	})
	loose := testingProfile()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			profile := loose
			if i%2 == 0 {
				profile = tight
			}
			assert.NoError(t, r.Reconfigure(profile))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			assert.Equal(t, "ok", r.Health().Status)
			assert.Equal(t, 15, r.Budget().TotalWeight)
			search := r.Search(ctx, SearchRequest{Query: "audio"})
			assert.NotEmpty(t, search.Results)
			r.Discover(ctx, DiscoverRequest{Type: DiscoverStats})
		}
	}()
	wg.Wait()
}

func TestSequentialScenarioEvictsLowestPriority(t *testing.T) {
	ctx := context.Background()
	tools := []domain.ToolDescriptor{
		{Name: "alpha_one", Category: domain.CategoryAudioLibrary, EstimatedTokens: 10, Priority: 2},
		{Name: "alpha_two", Category: domain.CategoryAudioLibrary, EstimatedTokens: 10, Priority: 1},
		{Name: "alpha_three", Category: domain.CategoryAudioLibrary, EstimatedTokens: 10, Priority: 3},
	}
	profile := testingProfile(func(p *domain.Profile) {
		p.Context.MaxWeight = 25
		p.Context.Strategy = domain.StrategySmart
	})
	r := newRegistry(t, profile, tools, nil)

	require.True(t, r.Activate(ctx, ActivateRequest{Tools: []string{"alpha_one"}}).Success)
	second := r.Activate(ctx, ActivateRequest{Tools: []string{"alpha_two"}})
	require.Equal(t, 20, second.ContextWeight)
	require.Equal(t, domain.PressureWarning, second.Budget.Pressure)

	third := r.Activate(ctx, ActivateRequest{Tools: []string{"alpha_three"}})
	require.True(t, third.Success)
	require.Equal(t, []string{"alpha_two"}, third.Evicted)
	require.Empty(t, third.Deactivated)
	require.Equal(t, 20, third.ContextWeight)
	require.Equal(t, domain.PressureWarning, third.Budget.Pressure)
	require.Nil(t, third.Condition)

	kinds := make(map[domain.AuditKind]int)
	for _, entry := range r.AuditLog().Entries() {
		kinds[entry.Kind]++
	}
	require.Equal(t, 1, kinds[domain.AuditEvict])
}

func TestEvictionNeverTouchesDefaultTools(t *testing.T) {
	ctx := context.Background()
	tools := []domain.ToolDescriptor{
		{Name: "default_a", Category: domain.CategoryCore, EstimatedTokens: 10, LoadByDefault: true},
		{Name: "default_b", Category: domain.CategoryCore, EstimatedTokens: 10, LoadByDefault: true},
	}
	var extras []string
	for i, name := range []string{"extra_1", "extra_2", "extra_3", "extra_4", "extra_5"} {
		tools = append(tools, domain.ToolDescriptor{Name: name, Category: domain.CategoryProcess, EstimatedTokens: 22, Priority: i + 1})
		extras = append(extras, name)
	}
	profile, _ := domain.BuiltinProfile(domain.ProfileProduction)
	profile.Context.MaxWeight = 100
	profile.Audit.PersistInterval = 0

	t.Run("one request", func(t *testing.T) {
		r := newRegistry(t, profile, tools, nil)
		resp := r.Activate(ctx, ActivateRequest{Tools: extras})
		require.True(t, resp.Success)
		require.Equal(t, 130, resp.ContextWeight)
		require.NotNil(t, resp.Condition, "requested tools are honored and the overflow is reported")
		require.Equal(t, domain.PressureCritical, resp.Budget.Pressure)
		require.Empty(t, resp.Evicted)
	})

	t.Run("sequential requests", func(t *testing.T) {
		r := newRegistry(t, profile, tools, nil)
		for _, name := range extras {
			resp := r.Activate(ctx, ActivateRequest{Tools: []string{name}})
			require.True(t, resp.Success)
			require.True(t, resp.ContextWeight <= 100 || resp.Condition != nil)
			require.NotContains(t, resp.Evicted, "default_a")
			require.NotContains(t, resp.Evicted, "default_b")
			require.True(t, r.IsActive("default_a"))
			require.True(t, r.IsActive("default_b"))
			requireBudgetInvariant(t, r)
		}
	})
}

func TestSearchOrderingAndDeterminism(t *testing.T) {
	ctx := context.Background()
	r := newRegistry(t, testingProfile(), fixtureTools(), fixtureLayers())

	first := r.Search(ctx, SearchRequest{Query: "Voice"})
	require.True(t, first.Success)
	got := make([]string, 0, len(first.Results))
	for _, result := range first.Results {
		got = append(got, result.Name+":"+string(result.Match))
	}
	require.Equal(t, []string{"voices_list:name", "tts_speak:tag"}, got)

	second := r.Search(ctx, SearchRequest{Query: "Voice"})
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("search not deterministic (-first +second):\n%s", diff)
	}

	exact := r.Search(ctx, SearchRequest{Query: "render_start"})
	require.Equal(t, MatchExactName, exact.Results[0].Match)

	ties := r.Search(ctx, SearchRequest{Query: "render"})
	require.Equal(t, "render_start", ties.Results[0].Name)
	require.Equal(t, "render_status", ties.Results[1].Name)
}

func TestSearchFilters(t *testing.T) {
	ctx := context.Background()
	r := newRegistry(t, testingProfile(), fixtureTools(), fixtureLayers())

	active := true
	resp := r.Search(ctx, SearchRequest{Filter: SearchFilter{Active: &active}})
	require.True(t, resp.Success)
	require.Len(t, resp.Results, 1)
	require.Equal(t, "session_status", resp.Results[0].Name)

	byCategory := r.Search(ctx, SearchRequest{Query: "render", Filter: SearchFilter{Categories: []string{"speech"}}})
	require.True(t, byCategory.Success)
	require.Empty(t, byCategory.Results)

	limited := r.Search(ctx, SearchRequest{Query: "e", Limit: 2})
	require.Len(t, limited.Results, 2)
	require.Greater(t, limited.Total, 2)

	bad := r.Search(ctx, SearchRequest{Query: "x", Filter: SearchFilter{Categories: []string{"alpha"}}})
	require.False(t, bad.Success)
	require.Equal(t, domain.CategoryIDs(), bad.Failure.Valid)

	missing := r.Search(ctx, SearchRequest{})
	require.NotNil(t, missing.Failure)
}

func TestDiscoverViews(t *testing.T) {
	ctx := context.Background()
	r := newRegistry(t, testingProfile(), fixtureTools(), fixtureLayers())
	require.True(t, r.Activate(ctx, ActivateRequest{Tools: []string{"tts_speak"}}).Success)

	categories := r.Discover(ctx, DiscoverRequest{Type: DiscoverCategories})
	require.True(t, categories.Success)
	statuses := make(map[string]string)
	for _, c := range categories.Categories {
		statuses[c.ID] = c.Status
	}
	require.Equal(t, "active", statuses["core"])
	require.Equal(t, "partial", statuses["speech"])
	require.Equal(t, "inactive", statuses["video-creation"])
	require.Equal(t, "empty", statuses["image-generation"])

	active := r.Discover(ctx, DiscoverRequest{Type: DiscoverActive})
	require.Len(t, active.Active.Tools, 2)
	require.Equal(t, 15, active.Active.ContextWeight)

	stats := r.Discover(ctx, DiscoverRequest{Type: DiscoverStats})
	require.Equal(t, 8, stats.Stats.TotalTools)
	require.Equal(t, 1, stats.Stats.DefaultTools)
	require.Equal(t, 2, stats.Stats.ActiveTools)
	require.Equal(t, "testing", stats.Stats.Profile)
	require.Equal(t, 2, stats.Stats.MaxLayers)
	require.NotEmpty(t, stats.Stats.Layers)

	tree := r.Discover(ctx, DiscoverRequest{Type: DiscoverTree})
	var video TreeCategory
	for _, node := range tree.Tree {
		if node.ID == "video-creation" {
			video = node
		}
	}
	require.Len(t, video.SubCategories, 2)
	rendering := video.SubCategories[1]
	require.Equal(t, "rendering", rendering.Name)
	require.Equal(t, "activate({subCategories:['video-creation/rendering']})", rendering.Hint)
	require.Equal(t, []TreeTool{
		{Name: "render_start", EstimatedTokens: 10},
		{Name: "render_status", EstimatedTokens: 10},
	}, rendering.Tools)
}

func TestDiscoverRecommendations(t *testing.T) {
	ctx := context.Background()
	r := newRegistry(t, testingProfile(), fixtureTools(), fixtureLayers())

	resp := r.Discover(ctx, DiscoverRequest{Type: DiscoverRecommendations, Context: "voice narration"})
	require.True(t, resp.Success)
	require.GreaterOrEqual(t, len(resp.Recommendations), 2)
	require.Equal(t, "tts_speak", resp.Recommendations[0].Name)
	require.Equal(t, "voices_list", resp.Recommendations[1].Name)
	require.Equal(t, "activate({tools:['tts_speak']})", resp.Recommendations[0].Hint)

	missing := r.Discover(ctx, DiscoverRequest{Type: DiscoverRecommendations})
	require.NotNil(t, missing.Failure)

	unknown := r.Discover(ctx, DiscoverRequest{Type: "everything"})
	require.NotNil(t, unknown.Failure)
	require.Equal(t, DiscoverKinds(), unknown.Failure.Valid)
}

func TestFlatRegistry(t *testing.T) {
	ctx := context.Background()
	profile, _ := domain.BuiltinProfile(domain.ProfileMinimal)
	r := newRegistry(t, profile, fixtureTools(), fixtureLayers())

	require.Equal(t, ModeFlat, r.Mode())
	require.Len(t, r.Active(), len(fixtureTools()))
	require.Equal(t, domain.PressureNormal, r.Budget().Pressure)

	on := r.Activate(ctx, ActivateRequest{Tools: []string{"tts_speak"}})
	require.True(t, on.Success)
	require.Empty(t, on.Activated)
	require.NotEmpty(t, on.Warnings)

	off := r.Deactivate(ctx, DeactivateRequest{Tools: []string{"tts_speak"}})
	require.False(t, off.Success)
	require.Equal(t, domain.CodeFailedPrecond, off.Failure.Code)
	require.True(t, r.IsActive("tts_speak"))
	require.Zero(t, r.AuditLog().Len())
}

func TestRecordCallAndListeners(t *testing.T) {
	ctx := context.Background()
	r := newRegistry(t, testingProfile(), fixtureTools(), fixtureLayers())

	var events []ChangeEvent
	r.OnChange(func(event ChangeEvent) { events = append(events, event) })

	require.True(t, r.Activate(ctx, ActivateRequest{Tools: []string{"audio_search"}}).Success)
	require.Len(t, events, 1)
	require.Equal(t, []string{"audio_search"}, events[0].Activated)
	require.Len(t, events[0].Active, 2)

	r.Activate(ctx, ActivateRequest{Tools: []string{"audio_search"}})
	require.Len(t, events, 1, "no-op activations do not notify")

	require.NoError(t, r.RecordCall(ctx, "audio_search"))
	last := r.AuditLog().Recent(1)[0]
	require.Equal(t, domain.AuditCall, last.Kind)
	require.Equal(t, []string{"audio-library"}, last.Categories)
	require.NotEmpty(t, last.RequestID)

	var unknown *domain.UnknownToolError
	require.ErrorAs(t, r.RecordCall(ctx, "nope"), &unknown)
}

func TestReconfigure(t *testing.T) {
	r := newRegistry(t, testingProfile(), fixtureTools(), fixtureLayers())

	updated := testingProfile(func(p *domain.Profile) {
		p.Context.MaxWeight = 50
		p.Layers.MaxActiveLayers = 4
	})
	require.NoError(t, r.Reconfigure(updated))
	require.Equal(t, 50, r.Budget().MaxWeight)
	require.Equal(t, 4, r.Profile().Layers.MaxActiveLayers)

	minimal, _ := domain.BuiltinProfile(domain.ProfileMinimal)
	err := r.Reconfigure(minimal)
	require.Error(t, err)
	require.Equal(t, domain.CodeFailedPrecond, domain.CodeFrom(err, domain.CodeInternal))
}

func TestHealth(t *testing.T) {
	r := newRegistry(t, testingProfile(), fixtureTools(), fixtureLayers())
	report := r.Health()
	require.Equal(t, "ok", report.Status)
	require.Equal(t, "testing", report.Profile)
	require.Equal(t, 1, report.ActiveTools)
	require.Equal(t, 4000, report.MaxWeight)
}
