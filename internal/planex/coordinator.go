package planex

import (
	"context"
	"fmt"
	"strings"

	"github.com/XiaoConstantine/dspy-go/pkg/logging"
	"github.com/google/uuid"

	"github.com/XiaoConstantine/reposcout/internal/gitsearch"
	"github.com/XiaoConstantine/reposcout/internal/llm"
	"github.com/XiaoConstantine/reposcout/internal/types"
)

// ReactFallback runs a query through the reasoning loop. The coordinator
// delegates to it when a plan produces nothing at all.
type ReactFallback interface {
	Run(ctx context.Context, query string) (*types.Result, error)
}

// Coordinator supervises one plan-execute session: plan creation, sequential
// step execution with abort rules, success evaluation, and result assembly.
type Coordinator struct {
	planner  *Planner
	backend  gitsearch.Backend
	model    llm.Model
	logger   *logging.Logger
	fallback ReactFallback
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithReactFallback installs a reasoning-loop fallback for plans that fail
// completely.
func WithReactFallback(fb ReactFallback) CoordinatorOption {
	return func(c *Coordinator) { c.fallback = fb }
}

// NewCoordinator wires a coordinator over the planner, backend, and model.
func NewCoordinator(planner *Planner, backend gitsearch.Backend, model llm.Model, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		planner: planner,
		backend: backend,
		model:   model,
		logger:  logging.GetLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run executes one full plan-execute session for the query.
func (c *Coordinator) Run(ctx context.Context, query string) (*types.Result, error) {
	plan := c.planner.CreatePlan(ctx, query)
	executor := NewExecutor(c.backend, c.model)

	c.logger.Info(ctx, "Plan-execute session starting: query=%q strategy=%s steps=%d",
		query, plan.Strategy, len(plan.Steps))

	var (
		executed     []types.ExecutionResult
		consecutive  int
		abortReason  string
		successCount int
	)

	for i, step := range plan.Steps {
		result := executor.ExecuteStep(ctx, step)
		executed = append(executed, result)

		if result.Success {
			successCount++
			consecutive = 0
			continue
		}

		// The opening search feeds every later step; without it the rest of
		// the plan cannot produce anything.
		if i == 0 && step.Action == gitsearch.ToolSearchRepositories {
			abortReason = "initial search failed"
			break
		}

		consecutive++
		if consecutive >= 2 {
			abortReason = "two consecutive step failures"
			break
		}
	}

	if abortReason != "" {
		c.logger.Warn(ctx, "Plan aborted after %d of %d steps: %s",
			len(executed), len(plan.Steps), abortReason)
	}

	if successCount == 0 {
		return c.recoverFromEmptyPlan(ctx, plan, executor, executed, abortReason)
	}

	result := c.assemble(ctx, plan, executor, executed, abortReason)
	c.logger.Info(ctx, "Plan-execute session complete: %d/%d steps succeeded, %d repositories",
		successCount, len(executed), len(executor.Discovered()))
	return result, nil
}

// recoverFromEmptyPlan handles a plan where no step succeeded: delegate to
// the reasoning loop when available, otherwise fail with the partial result.
func (c *Coordinator) recoverFromEmptyPlan(ctx context.Context, plan *SearchPlan, executor *Executor, executed []types.ExecutionResult, abortReason string) (*types.Result, error) {
	partial := c.assemble(ctx, plan, executor, executed, abortReason)

	if c.fallback != nil {
		c.logger.Warn(ctx, "Plan produced no successful steps, falling back to reasoning loop")
		result, err := c.fallback.Run(ctx, plan.UserQuery)
		if err == nil {
			return result, nil
		}
		return partial, &types.ModeError{
			Mode:    types.ModePlanExecute,
			Err:     fmt.Errorf("plan failed (%s) and reasoning fallback failed: %w", abortOr(abortReason), err),
			Partial: partial,
		}
	}

	return partial, &types.ModeError{
		Mode:    types.ModePlanExecute,
		Err:     fmt.Errorf("no plan step succeeded (%s)", abortOr(abortReason)),
		Partial: partial,
	}
}

func abortOr(reason string) string {
	if reason == "" {
		return "all steps failed"
	}
	return reason
}

// assemble builds the stable result shape from a finished (or aborted) run.
func (c *Coordinator) assemble(ctx context.Context, plan *SearchPlan, executor *Executor, executed []types.ExecutionResult, abortReason string) *types.Result {
	discovered := executor.Discovered()
	analysis := executor.Analysis()

	met := 0
	for _, criterion := range plan.SuccessCriteria {
		if criterionMet(criterion, len(discovered), len(analysis), executed) {
			met++
		}
	}

	execSummary := fmt.Sprintf("%d of %d steps executed, %d criteria met",
		len(executed), len(plan.Steps), met)
	if abortReason != "" {
		execSummary += ", aborted: " + abortReason
	}

	return &types.Result{
		SessionID:        uuid.NewString(),
		UserQuery:        plan.UserQuery,
		ModeUsed:         types.ModePlanExecute,
		PlanSummary:      planSummary(plan),
		ExecutionSummary: execSummary,
		Results: types.ResultData{
			Summary:                c.summarize(ctx, plan, discovered, analysis),
			DiscoveredRepositories: discovered,
			DetailedAnalysis:       analysis,
			SuccessRate:            stepSuccessRate(executed),
			KeyFindings:            collectFindings(executed, len(discovered)),
		},
		Recommendation: planRecommendation(discovered),
	}
}

// criterionMet matches a success criterion against run outcomes. The two
// fallback-plan criteria have exact predicates; free-text criteria from
// model-generated plans count as met when any step succeeded.
func criterionMet(criterion string, discovered, analyzed int, executed []types.ExecutionResult) bool {
	switch criterion {
	case CriterionFoundRepositories:
		return discovered > 0
	case CriterionBasicInfo:
		return analyzed > 0
	}
	for _, res := range executed {
		if res.Success {
			return true
		}
	}
	return false
}

func stepSuccessRate(executed []types.ExecutionResult) float64 {
	if len(executed) == 0 {
		return 0
	}
	ok := 0
	for _, res := range executed {
		if res.Success {
			ok++
		}
	}
	return float64(ok) / float64(len(executed))
}

func collectFindings(executed []types.ExecutionResult, discovered int) []string {
	var findings []string
	if discovered > 0 {
		findings = append(findings, fmt.Sprintf("discovered %d candidate repositories", discovered))
	}
	seen := make(map[string]struct{})
	for _, res := range executed {
		if !res.Success {
			continue
		}
		for _, rec := range res.NextRecommendations {
			if _, dup := seen[rec]; dup {
				continue
			}
			seen[rec] = struct{}{}
			findings = append(findings, rec)
		}
	}
	return findings
}

func planRecommendation(discovered []string) string {
	if len(discovered) == 0 {
		return "no repositories found; consider rephrasing the query"
	}
	return "start with " + discovered[0]
}

func planSummary(plan *SearchPlan) string {
	kind := "planned"
	if plan.Fallback {
		kind = "fallback"
	}
	return fmt.Sprintf("%s %s plan with %d steps (criteria: %s)",
		kind, plan.Strategy, len(plan.Steps), strings.Join(plan.SuccessCriteria, "; "))
}

// summarize produces the user-facing summary, preferring the model and
// falling back to a deterministic rendering of the findings.
func (c *Coordinator) summarize(ctx context.Context, plan *SearchPlan, discovered []string, analysis map[string]string) string {
	fallback := deterministicPlanSummary(plan.UserQuery, discovered, analysis)
	if c.model == nil || len(discovered) == 0 {
		return fallback
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Summarize the findings of this repository search for the user.\n\nQuery: %s\n\n", plan.UserQuery)
	fmt.Fprintf(&b, "Repositories discovered (%d):\n", len(discovered))
	for _, repo := range discovered {
		fmt.Fprintf(&b, "- %s\n", repo)
	}
	if len(analysis) > 0 {
		b.WriteString("\nDetailed analysis:\n")
		for repo, payload := range analysis {
			if len(payload) > 600 {
				payload = payload[:600] + "..."
			}
			fmt.Fprintf(&b, "## %s\n%s\n", repo, payload)
		}
	}
	b.WriteString("\nWrite a concise summary with a clear recommendation.")

	response, err := c.model.Complete(ctx, llm.RoleExecutor, b.String())
	if err != nil || strings.TrimSpace(response) == "" {
		return fallback
	}
	return strings.TrimSpace(response)
}

func deterministicPlanSummary(query string, discovered []string, analysis map[string]string) string {
	if len(discovered) == 0 {
		return fmt.Sprintf("Search for %q found no repositories.", query)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Search for %q found %d repositories:\n", query, len(discovered))
	for _, repo := range discovered {
		marker := ""
		if _, ok := analysis[repo]; ok {
			marker = " (analyzed)"
		}
		fmt.Fprintf(&b, "- %s%s\n", repo, marker)
	}
	return strings.TrimSpace(b.String())
}
