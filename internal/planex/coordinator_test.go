package planex

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/XiaoConstantine/reposcout/internal/gitsearch"
	"github.com/XiaoConstantine/reposcout/internal/llm"
	"github.com/XiaoConstantine/reposcout/internal/types"
)

type mockReactFallback struct {
	mock.Mock
}

func (m *mockReactFallback) Run(ctx context.Context, query string) (*types.Result, error) {
	args := m.Called(ctx, query)
	if res := args.Get(0); res != nil {
		return res.(*types.Result), args.Error(1)
	}
	return nil, args.Error(1)
}

// plannerWithFallback builds a planner whose model always fails, so every
// plan is the deterministic two-step fallback plan.
func plannerWithFallback() *Planner {
	model := new(mockModel)
	model.On("Complete", mock.Anything, llm.RolePlanner, mock.Anything).
		Return("", fmt.Errorf("planner model down"))
	return NewPlanner(model)
}

func threeStepPlanner(t *testing.T) *Planner {
	t.Helper()
	model := new(mockModel)
	model.On("Complete", mock.Anything, llm.RolePlanner, mock.Anything).
		Return(`{"steps": [
  {"action": "search_repositories", "params": {"query": "web framework", "max_results": 6, "sort": "stars"}},
  {"action": "get_repository_info", "params": {"full_name": "{top_repository}"}},
  {"action": "get_repository_languages", "params": {"full_name": "{top_repository}"}}
], "success_criteria": ["found relevant repositories", "obtained basic information"]}`, nil)
	return NewPlanner(model)
}

func TestCoordinatorHappyPath(t *testing.T) {
	backend := new(mockBackend)
	backend.On("CallTool", mock.Anything, gitsearch.ToolSearchRepositories, mock.Anything).
		Return(gitsearch.ToolResult{Data: `["django/django", "pallets/flask"]`}, nil)
	backend.On("CallTool", mock.Anything, gitsearch.ToolRepositoryInfo, mock.Anything).
		Return(gitsearch.ToolResult{Data: `{"full_name": "django/django", "stars": 70000}`}, nil)

	coord := NewCoordinator(plannerWithFallback(), backend, nil)
	result, err := coord.Run(context.Background(), "python web framework")

	require.NoError(t, err)
	assert.Equal(t, types.ModePlanExecute, result.ModeUsed)
	assert.Equal(t, []string{"django/django", "pallets/flask"}, result.Results.DiscoveredRepositories)
	assert.Contains(t, result.Results.DetailedAnalysis, "django/django")
	assert.Equal(t, 1.0, result.Results.SuccessRate)
	assert.Contains(t, result.ExecutionSummary, "2 of 2 steps executed")
	assert.Contains(t, result.ExecutionSummary, "2 criteria met")
	assert.NotEmpty(t, result.PlanSummary)
	assert.Equal(t, "start with django/django", result.Recommendation)
}

func TestCoordinatorAbortsWhenInitialSearchFails(t *testing.T) {
	backend := new(mockBackend)
	backend.On("CallTool", mock.Anything, gitsearch.ToolSearchRepositories, mock.Anything).
		Return(gitsearch.ToolResult{}, fmt.Errorf("connection refused"))

	coord := NewCoordinator(plannerWithFallback(), backend, nil)
	result, err := coord.Run(context.Background(), "python web framework")

	var modeErr *types.ModeError
	require.ErrorAs(t, err, &modeErr)
	assert.Equal(t, types.ModePlanExecute, modeErr.Mode)
	require.NotNil(t, result)
	assert.Contains(t, result.ExecutionSummary, "1 of 2 steps executed")
	assert.Contains(t, result.ExecutionSummary, "aborted: initial search failed")
	// The dependent info step never ran.
	backend.AssertNumberOfCalls(t, "CallTool", 1)
}

func TestCoordinatorAbortsAfterTwoConsecutiveFailures(t *testing.T) {
	backend := new(mockBackend)
	backend.On("CallTool", mock.Anything, gitsearch.ToolSearchRepositories, mock.Anything).
		Return(gitsearch.ToolResult{Data: `["django/django"]`}, nil)
	backend.On("CallTool", mock.Anything, gitsearch.ToolRepositoryInfo, mock.Anything).
		Return(gitsearch.ToolResult{Data: "rate limited", IsError: true}, nil)
	backend.On("CallTool", mock.Anything, gitsearch.ToolRepositoryLangs, mock.Anything).
		Return(gitsearch.ToolResult{Data: "rate limited", IsError: true}, nil)

	coord := NewCoordinator(threeStepPlanner(t), backend, nil)
	result, err := coord.Run(context.Background(), "web framework 对比")

	// One step succeeded, so the run degrades instead of failing outright.
	require.NoError(t, err)
	assert.Contains(t, result.ExecutionSummary, "aborted: two consecutive step failures")
	assert.InDelta(t, 1.0/3.0, result.Results.SuccessRate, 0.001)
	assert.Equal(t, []string{"django/django"}, result.Results.DiscoveredRepositories)
}

func TestCoordinatorFallsBackToReactWhenNothingSucceeds(t *testing.T) {
	backend := new(mockBackend)
	backend.On("CallTool", mock.Anything, gitsearch.ToolSearchRepositories, mock.Anything).
		Return(gitsearch.ToolResult{}, fmt.Errorf("connection refused"))

	reactResult := &types.Result{
		SessionID: "react-session",
		ModeUsed:  types.ModeReAct,
		Results:   types.ResultData{Summary: "recovered via reasoning loop"},
	}
	fallback := new(mockReactFallback)
	fallback.On("Run", mock.Anything, "python web framework").Return(reactResult, nil)

	coord := NewCoordinator(plannerWithFallback(), backend, nil, WithReactFallback(fallback))
	result, err := coord.Run(context.Background(), "python web framework")

	require.NoError(t, err)
	assert.Equal(t, types.ModeReAct, result.ModeUsed)
	assert.Equal(t, "recovered via reasoning loop", result.Results.Summary)
	fallback.AssertExpectations(t)
}

func TestCoordinatorReportsBothFailuresWhenFallbackAlsoFails(t *testing.T) {
	backend := new(mockBackend)
	backend.On("CallTool", mock.Anything, gitsearch.ToolSearchRepositories, mock.Anything).
		Return(gitsearch.ToolResult{}, fmt.Errorf("connection refused"))

	fallback := new(mockReactFallback)
	fallback.On("Run", mock.Anything, mock.Anything).
		Return(nil, fmt.Errorf("reasoning loop also down"))

	coord := NewCoordinator(plannerWithFallback(), backend, nil, WithReactFallback(fallback))
	result, err := coord.Run(context.Background(), "python web framework")

	var modeErr *types.ModeError
	require.ErrorAs(t, err, &modeErr)
	require.NotNil(t, result)
	require.NotNil(t, modeErr.Partial)
	assert.Empty(t, modeErr.Partial.Results.DiscoveredRepositories)
}
