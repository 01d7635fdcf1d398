package resolver

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"capgate/internal/domain"
	"capgate/internal/registry/catalog"
)

func newCatalog(t *testing.T, descs ...domain.ToolDescriptor) *catalog.Store {
	t.Helper()
	store := catalog.NewStore(nil)
	require.NoError(t, store.RegisterAll(descs))
	return store
}

func dep(name string, category domain.Category, deps ...string) domain.ToolDescriptor {
	return domain.ToolDescriptor{
		Name:            name,
		Category:        category,
		EstimatedTokens: 10,
		DependsOn:       deps,
	}
}

func enabled(maxDepth int, allowCircular bool) Config {
	return Config{Enabled: true, MaxDepth: maxDepth, AllowCircular: allowCircular}
}

func TestResolveTransitiveClosure(t *testing.T) {
	store := newCatalog(t,
		dep("a", domain.CategoryProcess, "b"),
		dep("b", domain.CategoryProcess, "c"),
		dep("c", domain.CategoryProcess),
		dep("d", domain.CategoryProcess),
	)
	r := New(store, enabled(5, false), nil)

	result, err := r.Resolve(Request{Tools: []string{"a"}})
	require.NoError(t, err)
	want := Result{
		Requested:            []string{"a"},
		Closure:              []string{"a", "b", "c"},
		ToActivate:           []string{"a", "b", "c"},
		DependenciesPulledIn: []string{"b", "c"},
	}
	if diff := cmp.Diff(want, result); diff != "" {
		t.Fatalf("resolve mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveSkipsActiveTools(t *testing.T) {
	store := newCatalog(t,
		dep("a", domain.CategoryProcess, "b"),
		dep("b", domain.CategoryProcess),
	)
	_, err := store.SetActive("a", true)
	require.NoError(t, err)
	_, err = store.SetActive("b", true)
	require.NoError(t, err)

	result, err := New(store, enabled(3, false), nil).Resolve(Request{Tools: []string{"a"}})
	require.NoError(t, err)
	require.Empty(t, result.ToActivate)
	require.Equal(t, []string{"a", "b"}, result.Closure)
}

func TestResolveCircularRejected(t *testing.T) {
	store := newCatalog(t,
		dep("a", domain.CategoryProcess, "b"),
		dep("b", domain.CategoryProcess, "a"),
	)
	_, err := New(store, enabled(5, false), nil).Resolve(Request{Tools: []string{"a"}})

	var circular *domain.CircularDependencyError
	require.ErrorAs(t, err, &circular)
	require.Equal(t, []string{"a", "b", "a"}, circular.Cycle)
	require.Equal(t, "circular dependency: a -> b -> a", circular.Error())
}

func TestResolveCircularAllowed(t *testing.T) {
	store := newCatalog(t,
		dep("a", domain.CategoryProcess, "b"),
		dep("b", domain.CategoryProcess, "a"),
	)
	result, err := New(store, enabled(5, true), nil).Resolve(Request{Tools: []string{"a"}})
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, result.ToActivate)
	require.Len(t, result.Warnings, 1)
	require.Contains(t, result.Warnings[0], "a -> b -> a")
}

func TestResolveDepthLimit(t *testing.T) {
	store := newCatalog(t,
		dep("a", domain.CategoryProcess, "b"),
		dep("b", domain.CategoryProcess, "c"),
		dep("c", domain.CategoryProcess, "d"),
		dep("d", domain.CategoryProcess),
	)
	result, err := New(store, enabled(2, false), nil).Resolve(Request{Tools: []string{"a"}})
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b", "c"}, result.Closure)
	require.Len(t, result.Warnings, 1)
}

func TestResolveExpandsCategoryDependencies(t *testing.T) {
	store := newCatalog(t,
		dep("render", domain.CategoryVideoCreation, "speech"),
		dep("tts", domain.CategorySpeech),
		dep("voices", domain.CategorySpeech),
	)
	result, err := New(store, enabled(3, false), nil).Resolve(Request{Tools: []string{"render"}})
	require.NoError(t, err)
	require.Equal(t, []string{"render", "tts", "voices"}, result.Closure)
}

func TestResolveSelfCategoryIsNotACycle(t *testing.T) {
	store := newCatalog(t,
		dep("a", domain.CategoryProcess, "process"),
		dep("b", domain.CategoryProcess),
	)
	result, err := New(store, enabled(3, false), nil).Resolve(Request{Tools: []string{"a"}})
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, result.Closure)
}

func TestResolveRequestExpansionAndUnknown(t *testing.T) {
	a := dep("a", domain.CategorySpeech)
	a.SubCategory = "synthesis"
	b := dep("b", domain.CategorySpeech)
	b.SubCategory = "voices"
	store := newCatalog(t, a, b, dep("c", domain.CategoryProcess))

	result, err := New(store, enabled(3, false), nil).Resolve(Request{
		Tools:         []string{"c", "ghost"},
		SubCategories: []domain.SubCategoryRef{{Category: domain.CategorySpeech, Name: "voices"}},
	})
	require.NoError(t, err)
	require.Equal(t, []string{"c", "b"}, result.Requested)
	require.Equal(t, []string{"ghost"}, result.Unknown)

	result, err = New(store, enabled(3, false), nil).Resolve(Request{Categories: []domain.Category{domain.CategorySpeech}})
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, result.Requested)
}

func TestResolveExclusiveKeepsDefaults(t *testing.T) {
	def := dep("status", domain.CategoryCore)
	def.LoadByDefault = true
	store := newCatalog(t, def, dep("a", domain.CategoryProcess), dep("b", domain.CategoryProcess))
	_, err := store.SetActive("a", true)
	require.NoError(t, err)

	result, err := New(store, enabled(3, false), nil).Resolve(Request{Tools: []string{"b"}, Exclusive: true})
	require.NoError(t, err)
	require.Equal(t, []string{"a"}, result.ToDeactivate)
	require.Equal(t, []string{"b"}, result.ToActivate)
}

func TestResolveDisabledReturnsRequestedOnly(t *testing.T) {
	store := newCatalog(t, dep("a", domain.CategoryProcess, "b"), dep("b", domain.CategoryProcess))
	result, err := New(store, Config{}, nil).Resolve(Request{Tools: []string{"a"}})
	require.NoError(t, err)
	require.Equal(t, []string{"a"}, result.Closure)
	require.Empty(t, result.DependenciesPulledIn)
}

func TestDependents(t *testing.T) {
	store := newCatalog(t, dep("a", domain.CategoryProcess, "b"), dep("b", domain.CategoryProcess), dep("c", domain.CategorySpeech, "b"))
	for _, name := range []string{"a", "b"} {
		_, err := store.SetActive(name, true)
		require.NoError(t, err)
	}
	r := New(store, enabled(3, false), nil)
	require.Equal(t, []string{"a"}, r.Dependents("b"))
	require.Empty(t, r.Dependents("a"))
	require.Equal(t, []string{"b"}, r.DirectDependencies("c"))
}

func TestValidate(t *testing.T) {
	store := newCatalog(t, dep("a", domain.CategoryProcess, "missing"))
	err := New(store, enabled(3, false), nil).Validate(store.All())
	require.ErrorContains(t, err, `depends on unknown target "missing"`)

	cyclic := newCatalog(t, dep("a", domain.CategoryProcess, "b"), dep("b", domain.CategoryProcess, "a"))
	require.NoError(t, New(cyclic, enabled(3, false), nil).Validate(cyclic.All()))
}
