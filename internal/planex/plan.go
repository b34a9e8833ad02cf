// Package planex implements the plan-execute mode: a planner turns the query
// into a structured multi-step plan, an executor runs the steps against the
// search backend, and a coordinator supervises the run end to end.
package planex

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/XiaoConstantine/dspy-go/pkg/logging"

	"github.com/XiaoConstantine/reposcout/internal/gitsearch"
	"github.com/XiaoConstantine/reposcout/internal/llm"
	"github.com/XiaoConstantine/reposcout/internal/strategy"
)

// Fallback plan success criteria. The coordinator matches these strings to
// its completion predicates, so they are constants rather than prompt output.
const (
	CriterionFoundRepositories = "found relevant repositories"
	CriterionBasicInfo         = "obtained basic information"
)

// TopRepositoryPlaceholder stands in for a repository identifier that is not
// known at planning time. The executor resolves it to the first repository
// discovered by an earlier step.
const TopRepositoryPlaceholder = "{top_repository}"

// PlanStep is one tool invocation in a search plan.
type PlanStep struct {
	ID     int                    `json:"id"`
	Action string                 `json:"action"`
	Params map[string]interface{} `json:"params"`
}

// SearchPlan is the full structured plan for one query.
type SearchPlan struct {
	UserQuery       string            `json:"user_query"`
	Strategy        strategy.Strategy `json:"strategy"`
	Steps           []PlanStep        `json:"steps"`
	SuccessCriteria []string          `json:"success_criteria"`
	ExpectedResults string            `json:"expected_results"`
	PriorityActions []string          `json:"priority_actions"`
	Fallback        bool              `json:"fallback"`
}

// Planner produces search plans. Plan creation is total: when the model is
// unavailable or its output unusable, the planner degrades to a deterministic
// two-step fallback plan instead of failing.
type Planner struct {
	model      llm.Model
	classifier *strategy.Classifier
	logger     *logging.Logger
}

// PlannerOption configures a Planner.
type PlannerOption func(*Planner)

// WithPlannerClassifier overrides the intent classifier.
func WithPlannerClassifier(c *strategy.Classifier) PlannerOption {
	return func(p *Planner) { p.classifier = c }
}

// NewPlanner creates a planner over the given model.
func NewPlanner(model llm.Model, opts ...PlannerOption) *Planner {
	p := &Planner{
		model:      model,
		classifier: strategy.NewClassifier(),
		logger:     logging.GetLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// CreatePlan builds a plan for the query. It never returns an error.
func (p *Planner) CreatePlan(ctx context.Context, query string) *SearchPlan {
	strat := p.classifier.Classify(query)

	response, err := p.model.Complete(ctx, llm.RolePlanner, buildPlanPrompt(query, strat))
	if err != nil {
		p.logger.Warn(ctx, "Planner model call failed, using fallback plan: %v", err)
		return FallbackPlan(query, strat)
	}

	plan, ok := parsePlanResponse(response)
	if !ok {
		p.logger.Warn(ctx, "Planner response not parseable, using fallback plan")
		return FallbackPlan(query, strat)
	}

	plan.UserQuery = query
	plan.Strategy = strat
	p.logger.Info(ctx, "Plan created: strategy=%s steps=%d criteria=%d",
		strat, len(plan.Steps), len(plan.SuccessCriteria))
	return plan
}

// parsePlanResponse extracts and validates a plan from model output. The JSON
// object is located by brace bounds so surrounding prose does not break
// parsing. Steps with unrecognized tool names are dropped; a plan with no
// usable step is rejected.
func parsePlanResponse(response string) (*SearchPlan, bool) {
	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start < 0 || end <= start {
		return nil, false
	}

	var plan SearchPlan
	if err := json.Unmarshal([]byte(response[start:end+1]), &plan); err != nil {
		return nil, false
	}

	valid := plan.Steps[:0]
	for _, step := range plan.Steps {
		if !gitsearch.KnownTool(step.Action) {
			continue
		}
		if step.Params == nil {
			step.Params = make(map[string]interface{})
		}
		step.ID = len(valid) + 1
		valid = append(valid, step)
	}
	plan.Steps = valid

	if len(plan.Steps) == 0 {
		return nil, false
	}
	return &plan, true
}

// FallbackPlan is the deterministic minimal plan: one search step with the
// strategy's default parameters, then one info step on the top discovery.
func FallbackPlan(query string, strat strategy.Strategy) *SearchPlan {
	params := strategy.ParamsFor(strat)
	return &SearchPlan{
		UserQuery: query,
		Strategy:  strat,
		Steps: []PlanStep{
			{
				ID:     1,
				Action: gitsearch.ToolSearchRepositories,
				Params: map[string]interface{}{
					"query":       query,
					"max_results": params.ResultCount,
					"sort":        params.SortKey,
				},
			},
			{
				ID:     2,
				Action: gitsearch.ToolRepositoryInfo,
				Params: map[string]interface{}{
					"full_name": TopRepositoryPlaceholder,
				},
			},
		},
		SuccessCriteria: []string{CriterionFoundRepositories, CriterionBasicInfo},
		ExpectedResults: "a shortlist of repositories with basic details on the leading candidate",
		PriorityActions: []string{"search", "analyze"},
		Fallback:        true,
	}
}

func buildPlanPrompt(query string, strat strategy.Strategy) string {
	var b strings.Builder

	b.WriteString("Create a step-by-step GitHub repository search plan as a single JSON object.\n\n")
	b.WriteString("AVAILABLE ACTIONS:\n")
	b.WriteString("- search_repositories: params {\"query\": string, \"max_results\": int, \"sort\": \"stars|forks|updated\"}\n")
	b.WriteString("- get_repository_info: params {\"full_name\": \"owner/repository\"}\n")
	b.WriteString("- get_repository_languages: params {\"full_name\": \"owner/repository\"}\n")
	b.WriteString("- get_repository_tree: params {\"full_name\": \"owner/repository\", \"path\": string}\n")
	b.WriteString("- get_repository_file_content: params {\"full_name\": \"owner/repository\", \"path\": string}\n\n")
	b.WriteString("When a step needs a repository that an earlier search will discover, use the\n")
	b.WriteString("placeholder \"{top_repository}\" as the full_name.\n\n")
	b.WriteString("Respond with JSON only, in this shape:\n")
	b.WriteString(`{"steps": [{"action": "...", "params": {...}}], "success_criteria": ["..."], "expected_results": "...", "priority_actions": ["..."]}`)
	b.WriteString("\n\n")

	b.WriteString("Query: " + query + "\n")
	b.WriteString("Search strategy: " + string(strat) + "\n")

	params := strategy.ParamsFor(strat)
	fmt.Fprintf(&b, "Default search parameters: max_results=%d, sort=%s\n",
		params.ResultCount, params.SortKey)
	b.WriteString("Keep the plan between 2 and 6 steps.\n")

	return b.String()
}
