package budget

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"capgate/internal/domain"
)

func TestSmartPlanOrdering(t *testing.T) {
	candidates := []Candidate{
		{Name: "b", Priority: 1, ActivatedSeq: 5},
		{Name: "a", Priority: 1, ActivatedSeq: 2, UsedSeq: 9},
		{Name: "c", Priority: 0, ActivatedSeq: 7},
		{Name: "d", Priority: 1, ActivatedSeq: 5},
	}
	got := Smart{}.Plan(candidates, PlanOptions{})
	want := [][]string{{"c"}, {"b"}, {"d"}, {"a"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("plan mismatch (-want +got):\n%s", diff)
	}
}

func TestSmartPlanSkipsToolsWithActiveDependents(t *testing.T) {
	candidates := []Candidate{
		{Name: "base", Priority: 0, ActivatedSeq: 1, Dependents: []string{"user"}},
		{Name: "user", Priority: 5, ActivatedSeq: 2},
		{Name: "other", Priority: 3, ActivatedSeq: 3},
	}
	got := Smart{}.Plan(candidates, PlanOptions{})
	require.Equal(t, [][]string{{"other"}, {"user"}}, got)
}

func TestSmartPlanEvictsAfterDependentIsGone(t *testing.T) {
	candidates := []Candidate{
		{Name: "user", Priority: 0, ActivatedSeq: 2},
		{Name: "base", Priority: 1, ActivatedSeq: 1, Dependents: []string{"user"}},
	}
	got := Smart{}.Plan(candidates, PlanOptions{})
	require.Equal(t, [][]string{{"user"}, {"base"}}, got)
}

func TestSmartPlanCascade(t *testing.T) {
	candidates := []Candidate{
		{Name: "base", Priority: 0, ActivatedSeq: 1, Dependents: []string{"mid"}},
		{Name: "mid", Priority: 4, ActivatedSeq: 2, Dependents: []string{"top"}},
		{Name: "top", Priority: 5, ActivatedSeq: 3},
	}
	got := Smart{}.Plan(candidates, PlanOptions{CascadeEviction: true})
	require.Equal(t, [][]string{{"base", "mid", "top"}}, got)
}

func TestSmartPlanCascadeBlockedByProtectedDependent(t *testing.T) {
	candidates := []Candidate{
		{Name: "base", Priority: 0, ActivatedSeq: 1, Dependents: []string{"protected"}},
		{Name: "loose", Priority: 2, ActivatedSeq: 2},
	}
	got := Smart{}.Plan(candidates, PlanOptions{CascadeEviction: true})
	require.Equal(t, [][]string{{"loose"}}, got)
}

func TestLRUPlanIgnoresPriority(t *testing.T) {
	candidates := []Candidate{
		{Name: "late", Priority: 0, ActivatedSeq: 9},
		{Name: "early", Priority: 9, ActivatedSeq: 1, Dependents: []string{"late"}},
	}
	require.Equal(t, [][]string{{"early"}, {"late"}}, LRU{}.Plan(candidates, PlanOptions{}))
}

func TestNewStrategy(t *testing.T) {
	s, err := NewStrategy(domain.StrategySmart)
	require.NoError(t, err)
	require.Equal(t, domain.StrategySmart, s.Kind())

	s, err = NewStrategy("")
	require.NoError(t, err)
	require.Equal(t, domain.StrategyLRU, s.Kind())

	_, err = NewStrategy("RANDOM")
	require.Error(t, err)
}
