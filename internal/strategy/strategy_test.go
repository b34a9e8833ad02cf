package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParamsForKnownStrategies(t *testing.T) {
	for _, s := range All() {
		p := ParamsFor(s)
		assert.Greater(t, p.ResultCount, 0, "strategy %s", s)
		assert.NotEmpty(t, p.SortKey, "strategy %s", s)
	}
}

func TestParamsForUnknownFallsBackToBroad(t *testing.T) {
	assert.Equal(t, ParamsFor(BroadSearch), ParamsFor(Strategy("made_up")))
}

func TestParamsForTrendSortsByUpdated(t *testing.T) {
	assert.Equal(t, "updated", ParamsFor(TrendAnalysis).SortKey)
}

func TestSuggestBroadSearchesUntilThreeCandidates(t *testing.T) {
	st := &fakeState{query: "python web framework", repos: []string{"a/b", "c/d"}}

	got := SuggestAction(BroadSearch, st)

	assert.Equal(t, PrioritySearch, got.Priority)
	assert.Equal(t, "python web framework", got.Query)
}

func TestSuggestBroadAnalyzesOnceEnoughFound(t *testing.T) {
	st := &fakeState{
		repos:    []string{"a/b", "c/d", "e/f"},
		analyzed: map[string]bool{"a/b": true},
	}

	got := SuggestAction(BroadSearch, st)

	assert.Equal(t, PriorityAnalyze, got.Priority)
	assert.Equal(t, "c/d", got.TargetRepo)
}

func TestSuggestComparisonAnalyzesBothSides(t *testing.T) {
	st := &fakeState{
		repos:    []string{"django/django", "pallets/flask"},
		analyzed: map[string]bool{"django/django": true},
	}

	got := SuggestAction(Comparison, st)

	assert.Equal(t, PriorityAnalyze, got.Priority)
	assert.Equal(t, "pallets/flask", got.TargetRepo)
}

func TestSuggestComparisonConcludesAfterTwoAnalyzed(t *testing.T) {
	st := &fakeState{
		repos:    []string{"django/django", "pallets/flask"},
		analyzed: map[string]bool{"django/django": true, "pallets/flask": true},
	}

	got := SuggestAction(Comparison, st)

	assert.Equal(t, PriorityConclude, got.Priority)
}

func TestSuggestTrendAlwaysSearchesByUpdated(t *testing.T) {
	st := &fakeState{query: "最新的AI项目", repos: []string{"a/b", "c/d", "e/f"}}

	got := SuggestAction(TrendAnalysis, st)

	assert.Equal(t, PrioritySearch, got.Priority)
	assert.Equal(t, "updated", got.Sort)
}

func TestSuggestSolutionNarrowsTheQuery(t *testing.T) {
	st := &fakeState{query: "如何实现rate limiting"}

	got := SuggestAction(SolutionFocused, st)

	assert.Equal(t, PrioritySearch, got.Priority)
	assert.NotContains(t, got.Query, "如何")
	assert.Contains(t, got.Query, "example implementation")
}

func TestSuggestIsTotalForUnknownStrategy(t *testing.T) {
	st := &fakeState{query: "anything"}

	got := SuggestAction(Strategy("made_up"), st)

	assert.Equal(t, PrioritySearch, got.Priority)
}

func TestNarrowQuery(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  string
	}{
		{"chinese filler", "如何实现微服务", "实现微服务 example implementation"},
		{"english filler", "how to build a parser", "build a parser example implementation"},
		{"no filler", "distributed cache", "distributed cache example implementation"},
		{"filler only", "如何", "如何"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NarrowQuery(tt.query))
		})
	}
}
