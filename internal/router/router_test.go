package router

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/XiaoConstantine/reposcout/internal/types"
)

// stubRunner is a scripted SessionRunner.
type stubRunner struct {
	result *types.Result
	err    error
	calls  int
}

func (s *stubRunner) Run(ctx context.Context, query string) (*types.Result, error) {
	s.calls++
	return s.result, s.err
}

func okResult(mode types.Mode, repos ...string) *types.Result {
	return &types.Result{
		SessionID: "s-" + string(mode),
		ModeUsed:  mode,
		Results:   types.ResultData{DiscoveredRepositories: repos},
	}
}

func TestScore(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  int
	}{
		{"plain short query", "python web framework", 0},
		{"two comparison markers", "Django vs Flask哪个更好", 6},
		{"requirement phrasing", "如何实现rate limiting", 1},
		{"single depth marker", "深入研究golang框架", 2},
		{"comparison with analysis and architecture", "对比分析React和Vue的架构", 7},
		{"two complex topics", "微服务架构的设计模式", 4},
		{"long query", "find me a good library for parsing yaml files in go please", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score, _ := Score(tt.query)
			assert.Equal(t, tt.want, score)
		})
	}
}

func TestDecideThresholds(t *testing.T) {
	r := NewRouter(&stubRunner{}, &stubRunner{})

	tests := []struct {
		name  string
		query string
		want  types.Mode
	}{
		{"simple goes to react", "python web framework", types.ModeReAct},
		{"clear comparison goes to plan", "Django vs Flask哪个更好", types.ModePlanExecute},
		{"complex goes to plan", "对比分析React和Vue的架构", types.ModePlanExecute},
		{"ambiguous middle goes to react", "深入研究golang框架", types.ModeReAct},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision := r.Decide(tt.query)
			assert.Equal(t, tt.want, decision.Mode)
			assert.False(t, decision.Forced)
			assert.NotEmpty(t, decision.Reason)
		})
	}
}

func TestDecideForcedModeWins(t *testing.T) {
	r := NewRouter(&stubRunner{}, &stubRunner{})

	decision := r.Decide("python web framework", WithForcedMode(types.ModePlanExecute))

	assert.Equal(t, types.ModePlanExecute, decision.Mode)
	assert.True(t, decision.Forced)
}

func TestExecuteRoutesToPrimaryMode(t *testing.T) {
	react := &stubRunner{result: okResult(types.ModeReAct, "a/b")}
	plan := &stubRunner{result: okResult(types.ModePlanExecute)}
	r := NewRouter(react, plan)

	result, err := r.Execute(context.Background(), "python web framework")

	require.NoError(t, err)
	assert.Equal(t, types.ModeReAct, result.ModeUsed)
	assert.Equal(t, 1, react.calls)
	assert.Equal(t, 0, plan.calls)
}

func TestExecuteRetriesOtherModeOnModeError(t *testing.T) {
	partial := okResult(types.ModeReAct)
	react := &stubRunner{
		result: partial,
		err:    &types.ModeError{Mode: types.ModeReAct, Err: fmt.Errorf("no findings"), Partial: partial},
	}
	plan := &stubRunner{result: okResult(types.ModePlanExecute, "c/d")}
	r := NewRouter(react, plan)

	result, err := r.Execute(context.Background(), "python web framework")

	require.NoError(t, err)
	assert.Equal(t, types.ModePlanExecute, result.ModeUsed)
	assert.Equal(t, 1, react.calls)
	assert.Equal(t, 1, plan.calls)
}

func TestExecuteExhaustedCarriesRichestPartial(t *testing.T) {
	reactPartial := okResult(types.ModeReAct, "a/b")
	planPartial := okResult(types.ModePlanExecute, "a/b", "c/d")
	react := &stubRunner{
		result: reactPartial,
		err:    &types.ModeError{Mode: types.ModeReAct, Err: fmt.Errorf("no findings"), Partial: reactPartial},
	}
	plan := &stubRunner{
		result: planPartial,
		err:    &types.ModeError{Mode: types.ModePlanExecute, Err: fmt.Errorf("all steps failed"), Partial: planPartial},
	}
	r := NewRouter(react, plan)

	result, err := r.Execute(context.Background(), "python web framework")

	var exhausted *types.ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, []types.Mode{types.ModeReAct, types.ModePlanExecute}, exhausted.Attempts)
	assert.Len(t, exhausted.Errs, 2)
	// The plan attempt found more, so its partial wins.
	require.NotNil(t, result)
	assert.Equal(t, []string{"a/b", "c/d"}, result.Results.DiscoveredRepositories)
	assert.Same(t, result, exhausted.Partial)
}

func TestExecuteForcedModeFailsWithoutCrossModeRetry(t *testing.T) {
	partial := okResult(types.ModeReAct)
	react := &stubRunner{
		result: partial,
		err:    &types.ModeError{Mode: types.ModeReAct, Err: fmt.Errorf("no findings"), Partial: partial},
	}
	plan := &stubRunner{result: okResult(types.ModePlanExecute, "c/d")}
	r := NewRouter(react, plan)

	result, err := r.Execute(context.Background(), "python web framework",
		WithForcedMode(types.ModeReAct))

	var exhausted *types.ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, []types.Mode{types.ModeReAct}, exhausted.Attempts)
	assert.Same(t, partial, result)
	// The caller pinned the mode, so the other mode must never run.
	assert.Equal(t, 0, plan.calls)
}

func TestExecuteDoesNotRetryOnPlainError(t *testing.T) {
	react := &stubRunner{err: fmt.Errorf("context canceled")}
	plan := &stubRunner{result: okResult(types.ModePlanExecute)}
	r := NewRouter(react, plan)

	_, err := r.Execute(context.Background(), "python web framework")

	require.Error(t, err)
	assert.Equal(t, 0, plan.calls)
}

func TestStatsSnapshot(t *testing.T) {
	stats := NewStats()
	stats.Record(types.ModeReAct)
	stats.Record(types.ModeReAct)
	stats.Record(types.ModeReAct)
	stats.Record(types.ModePlanExecute)
	stats.RecordSuccess(types.ModeReAct)
	stats.RecordSuccess(types.ModeReAct)
	stats.RecordSuccess(types.ModePlanExecute)

	snap := stats.Snapshot()

	assert.Equal(t, int64(4), snap.TotalRouted)
	assert.InDelta(t, 75.0, snap.ReactPercentage, 0.001)
	assert.InDelta(t, 25.0, snap.PlanExecutePercentage, 0.001)
	assert.Equal(t, int64(3), snap.ReactAttempts)
	assert.Equal(t, int64(1), snap.PlanExecuteAttempts)
	assert.Equal(t, int64(2), snap.ReactSuccesses)
	assert.Equal(t, int64(1), snap.PlanExecuteSuccesses)
}

func TestStatsSnapshotEmpty(t *testing.T) {
	snap := NewStats().Snapshot()

	assert.Equal(t, int64(0), snap.TotalRouted)
	assert.Equal(t, 0.0, snap.ReactPercentage)
	assert.Equal(t, 0.0, snap.PlanExecutePercentage)
	assert.Equal(t, int64(0), snap.ReactSuccesses)
	assert.Equal(t, int64(0), snap.PlanExecuteSuccesses)
}

func TestRouterRecordsStats(t *testing.T) {
	stats := NewStats()
	react := &stubRunner{result: okResult(types.ModeReAct)}
	plan := &stubRunner{result: okResult(types.ModePlanExecute)}
	r := NewRouter(react, plan, WithStats(stats))

	_, err := r.Execute(context.Background(), "python web framework")
	require.NoError(t, err)
	_, err = r.Execute(context.Background(), "对比分析React和Vue的架构")
	require.NoError(t, err)

	snap := stats.Snapshot()
	assert.Equal(t, int64(2), snap.TotalRouted)
	assert.InDelta(t, 50.0, snap.ReactPercentage, 0.001)
	assert.Equal(t, int64(1), snap.ReactSuccesses)
	assert.Equal(t, int64(1), snap.PlanExecuteSuccesses)
}

func TestRouterRecordsRetrySuccess(t *testing.T) {
	stats := NewStats()
	partial := okResult(types.ModeReAct)
	react := &stubRunner{
		result: partial,
		err:    &types.ModeError{Mode: types.ModeReAct, Err: fmt.Errorf("no findings"), Partial: partial},
	}
	plan := &stubRunner{result: okResult(types.ModePlanExecute, "c/d")}
	r := NewRouter(react, plan, WithStats(stats))

	_, err := r.Execute(context.Background(), "python web framework")
	require.NoError(t, err)

	snap := stats.Snapshot()
	assert.Equal(t, int64(1), snap.ReactAttempts)
	assert.Equal(t, int64(1), snap.PlanExecuteAttempts)
	assert.Equal(t, int64(0), snap.ReactSuccesses)
	assert.Equal(t, int64(1), snap.PlanExecuteSuccesses)
}

func TestSearchServiceSynchronousContract(t *testing.T) {
	react := &stubRunner{result: okResult(types.ModeReAct, "a/b")}
	service := NewSearchService(NewRouter(react, &stubRunner{}))

	result, err := service.Search(context.Background(), "python web framework")

	require.NoError(t, err)
	assert.Equal(t, []string{"a/b"}, result.Results.DiscoveredRepositories)
}

func TestSearchServiceHonorsCancellation(t *testing.T) {
	blocked := make(chan struct{})
	react := blockingRunner{release: blocked}
	service := NewSearchService(NewRouter(react, &stubRunner{}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := service.Search(ctx, "python web framework")

	assert.ErrorIs(t, err, context.Canceled)
	close(blocked)
}

type blockingRunner struct {
	release chan struct{}
}

func (b blockingRunner) Run(ctx context.Context, query string) (*types.Result, error) {
	<-b.release
	return nil, ctx.Err()
}
