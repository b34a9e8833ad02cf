package planex

import (
	"context"
	"fmt"
	"strings"

	"github.com/XiaoConstantine/dspy-go/pkg/logging"

	"github.com/XiaoConstantine/reposcout/internal/gitsearch"
	"github.com/XiaoConstantine/reposcout/internal/llm"
	"github.com/XiaoConstantine/reposcout/internal/types"
)

// Executor runs plan steps against the backend and accumulates plan-local
// findings. One Executor serves exactly one plan run; the coordinator creates
// a fresh one per session.
type Executor struct {
	backend gitsearch.Backend
	model   llm.Model
	logger  *logging.Logger

	discovered []string
	seen       map[string]struct{}
	analysis   map[string]string
}

// NewExecutor creates an executor for one plan run. The model is optional;
// when present it polishes step recommendations, when nil the deterministic
// recommendations are used as-is.
func NewExecutor(backend gitsearch.Backend, model llm.Model) *Executor {
	return &Executor{
		backend:  backend,
		model:    model,
		logger:   logging.GetLogger(),
		seen:     make(map[string]struct{}),
		analysis: make(map[string]string),
	}
}

// Discovered returns the repositories found so far, in discovery order.
func (e *Executor) Discovered() []string {
	out := make([]string, len(e.discovered))
	copy(out, e.discovered)
	return out
}

// Analysis returns the per-repository analysis payloads collected so far.
func (e *Executor) Analysis() map[string]string {
	out := make(map[string]string, len(e.analysis))
	for k, v := range e.analysis {
		out[k] = v
	}
	return out
}

// ExecuteStep runs one plan step. It never returns an error: failures are
// reported through the Success and Observations fields so the coordinator can
// apply its abort policy.
func (e *Executor) ExecuteStep(ctx context.Context, step PlanStep) types.ExecutionResult {
	params, err := e.resolveParams(step.Params)
	if err != nil {
		e.logger.Warn(ctx, "Step %d skipped: %v", step.ID, err)
		return types.ExecutionResult{
			StepID:              step.ID,
			ToolUsed:            step.Action,
			Success:             false,
			Observations:        err.Error(),
			NextRecommendations: []string{"run a search step before steps that reference discovered repositories"},
		}
	}

	result, callErr := e.backend.CallTool(ctx, step.Action, params)
	success := gitsearch.Succeeded(result, callErr)

	out := types.ExecutionResult{
		StepID:   step.ID,
		ToolUsed: step.Action,
		Success:  success,
	}

	if !success {
		out.Observations = gitsearch.ErrorCategory(result, callErr)
		out.NextRecommendations = failureRecommendations(step.Action, out.Observations)
		e.logger.Warn(ctx, "Step %d (%s) failed: %s", step.ID, step.Action, out.Observations)
		return out
	}

	out.ResultData = result.Data
	e.recordFindings(step.Action, params, result.Data)
	out.Observations = e.observe(step.Action, result.Data)
	out.NextRecommendations = e.recommend(ctx, step.Action)

	e.logger.Debug(ctx, "Step %d (%s) succeeded: %s", step.ID, step.Action, out.Observations)
	return out
}

// resolveParams substitutes discovery placeholders in step parameters. A
// placeholder with nothing discovered yet is a step failure, not a panic.
func (e *Executor) resolveParams(params map[string]interface{}) (map[string]interface{}, error) {
	resolved := make(map[string]interface{}, len(params))
	for key, value := range params {
		str, ok := value.(string)
		if !ok || !isPlaceholder(str) {
			resolved[key] = value
			continue
		}
		if len(e.discovered) == 0 {
			return nil, fmt.Errorf("step references %s but no repository has been discovered", TopRepositoryPlaceholder)
		}
		resolved[key] = e.discovered[0]
	}
	return resolved, nil
}

func isPlaceholder(s string) bool {
	lowered := strings.ToLower(strings.TrimSpace(s))
	return strings.Contains(lowered, TopRepositoryPlaceholder) ||
		lowered == "top discovered repository"
}

func (e *Executor) recordFindings(action string, params map[string]interface{}, data string) {
	switch action {
	case gitsearch.ToolSearchRepositories:
		for _, name := range gitsearch.ReposFromPayload(data) {
			if _, dup := e.seen[name]; dup {
				continue
			}
			e.seen[name] = struct{}{}
			e.discovered = append(e.discovered, name)
		}
	case gitsearch.ToolRepositoryInfo, gitsearch.ToolRepositoryLangs:
		if target, ok := params["full_name"].(string); ok && target != "" {
			e.analysis[target] = data
		}
	}
}

func (e *Executor) observe(action, data string) string {
	switch action {
	case gitsearch.ToolSearchRepositories:
		return fmt.Sprintf("search returned %d repositories (%d total discovered)",
			len(gitsearch.ReposFromPayload(data)), len(e.discovered))
	case gitsearch.ToolRepositoryInfo:
		return "repository details retrieved"
	case gitsearch.ToolRepositoryLangs:
		return "language breakdown retrieved"
	case gitsearch.ToolRepositoryTree:
		return "directory listing retrieved"
	case gitsearch.ToolFileContent:
		return "file content retrieved"
	}
	return "step completed"
}

// recommend produces the follow-up hints for a successful step. The
// deterministic hints are always valid; the model, when available, may
// rewrite them into something more specific to the findings.
func (e *Executor) recommend(ctx context.Context, action string) []string {
	recs := deterministicRecommendations(action, len(e.discovered), len(e.analysis))
	if e.model == nil {
		return recs
	}

	prompt := fmt.Sprintf(
		"A repository search step (%s) just succeeded. %d repositories are discovered and %d analyzed.\n"+
			"Current follow-up suggestions:\n- %s\n"+
			"Rewrite them as at most three short imperative suggestions, one per line, no numbering.",
		action, len(e.discovered), len(e.analysis), strings.Join(recs, "\n- "))

	response, err := e.model.Complete(ctx, llm.RoleExecutor, prompt)
	if err != nil {
		return recs
	}

	var polished []string
	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "-"))
		if line != "" {
			polished = append(polished, line)
		}
		if len(polished) == 3 {
			break
		}
	}
	if len(polished) == 0 {
		return recs
	}
	return polished
}

func deterministicRecommendations(action string, discovered, analyzed int) []string {
	switch action {
	case gitsearch.ToolSearchRepositories:
		if discovered == 0 {
			return []string{"retry the search with broader terms"}
		}
		return []string{"inspect the top candidates with get_repository_info"}
	case gitsearch.ToolRepositoryInfo:
		return []string{
			"check the language breakdown for technology fit",
			"browse the repository tree for structure",
		}
	case gitsearch.ToolRepositoryLangs:
		return []string{"examine key source files for implementation details"}
	case gitsearch.ToolRepositoryTree:
		return []string{"read the most relevant files found in the listing"}
	case gitsearch.ToolFileContent:
		return []string{"summarize the findings for the user"}
	}
	return []string{"continue with the next planned step"}
}

func failureRecommendations(action, category string) []string {
	if category == "transport_error" {
		return []string{"check backend connectivity before retrying"}
	}
	if action == gitsearch.ToolSearchRepositories {
		return []string{"rephrase the search query and retry"}
	}
	return []string{"verify the repository identifier and retry"}
}
