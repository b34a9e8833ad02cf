package react

import (
	"context"
	"fmt"
	"strings"

	"github.com/XiaoConstantine/dspy-go/pkg/logging"
	"github.com/google/uuid"

	"github.com/XiaoConstantine/reposcout/internal/config"
	"github.com/XiaoConstantine/reposcout/internal/gitsearch"
	"github.com/XiaoConstantine/reposcout/internal/llm"
	"github.com/XiaoConstantine/reposcout/internal/strategy"
	"github.com/XiaoConstantine/reposcout/internal/types"
)

// Loop drives a search session through think→act→observe→reflect iterations
// with a single language-model role.
type Loop struct {
	model         llm.Model
	backend       gitsearch.Backend
	classifier    *strategy.Classifier
	logger        *logging.Logger
	maxIterations int
}

// Option configures a Loop.
type Option func(*Loop)

// WithMaxIterations overrides the iteration ceiling.
func WithMaxIterations(n int) Option {
	return func(l *Loop) {
		if n > 0 {
			l.maxIterations = n
		}
	}
}

// WithClassifier overrides the intent classifier.
func WithClassifier(c *strategy.Classifier) Option {
	return func(l *Loop) { l.classifier = c }
}

// NewLoop creates a reasoning loop over the given model and tool backend.
func NewLoop(model llm.Model, backend gitsearch.Backend, opts ...Option) *Loop {
	l := &Loop{
		model:         model,
		backend:       backend,
		classifier:    strategy.NewClassifier(),
		logger:        logging.GetLogger(),
		maxIterations: config.GetMaxIterations(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// sufficiency holds the per-strategy early-termination predicates.
var sufficiency = map[strategy.Strategy]func(st *SearchState) bool{
	strategy.BroadSearch: func(st *SearchState) bool {
		return st.RepositoryCount() >= 1 && st.SearchAttempts() >= 1
	},
	strategy.DeepAnalysis: func(st *SearchState) bool {
		return st.AnalyzedCount() >= 1
	},
	strategy.Comparison: func(st *SearchState) bool {
		return st.AnalyzedCount() >= 2
	},
	strategy.TrendAnalysis: func(st *SearchState) bool {
		return st.RepositoryCount() >= 3 && st.SearchAttempts() >= 1
	},
	strategy.SolutionFocused: func(st *SearchState) bool {
		return st.RepositoryCount() >= 1 && st.AnalyzedCount() >= 1
	},
}

// Run executes one full session for the query. The returned result is valid
// even on error: partial findings are always carried.
func (l *Loop) Run(ctx context.Context, query string) (*types.Result, error) {
	strat := l.classifier.Classify(query)
	state := NewSearchState(query, strat, l.maxIterations)

	l.logger.Info(ctx, "ReAct session starting: query=%q strategy=%s max_iterations=%d",
		query, strat, l.maxIterations)

	finalAnswer := ""

	for !state.Exhausted() {
		suggestion := strategy.SuggestAction(state.Strategy(), state)
		if suggestion.Priority == strategy.PriorityConclude {
			l.logger.Debug(ctx, "Strategy suggests concluding: %s", suggestion.Reason)
			break
		}

		// Think: ask the model what to do, seeded with the suggestion.
		action, answered := l.decideAction(ctx, state, suggestion)
		if answered != "" {
			finalAnswer = answered
			break
		}

		// Act and observe.
		result, err := l.backend.CallTool(ctx, action.Tool, action.Args)
		success := gitsearch.Succeeded(result, err)

		observation := result.Data
		if !success {
			observation = "action failed: " + gitsearch.ErrorCategory(result, err)
			l.logger.Warn(ctx, "Tool %s failed at iteration %d: %s",
				action.Tool, state.Iteration(), observation)
		}

		l.applyObservation(state, action, result, success)
		state.RecordExchange(action, observation, success)
		state.Advance()

		// Reflect before deciding whether the session is done: a stalled
		// strategy must get its pivot, and sufficiency is then judged
		// against the strategy that will actually run next.
		if next, switched := l.classifier.ShouldSwitch(state.Strategy(), state); switched {
			l.logger.Info(ctx, "Switching strategy %s -> %s at iteration %d",
				state.Strategy(), next, state.Iteration())
			state.SetStrategy(next)
		}

		if done, ok := sufficiency[state.Strategy()]; ok && done(state) {
			l.logger.Debug(ctx, "Sufficiency reached for %s after %d iterations",
				state.Strategy(), state.Iteration())
			break
		}
	}

	return l.finish(ctx, state, finalAnswer)
}

// decideAction runs one model completion and parses an action out of it.
// Any parse or completion failure falls back to the suggested action, so the
// loop always has a valid next step. A final-answer marker short-circuits
// with the answer text.
func (l *Loop) decideAction(ctx context.Context, state *SearchState, suggestion strategy.ActionSuggestion) (Action, string) {
	prompt := buildIterationPrompt(state, suggestion)

	response, err := l.model.Complete(ctx, llm.RoleReAct, prompt)
	if err != nil {
		l.logger.Warn(ctx, "Model call failed at iteration %d, acting on suggestion: %v",
			state.Iteration(), err)
		return actionFromSuggestion(state, suggestion), ""
	}

	if answer, done := ParseFinalAnswer(response); done {
		return Action{}, answer
	}

	if action, ok := ParseAction(response); ok {
		return action, ""
	}

	l.logger.Debug(ctx, "No parseable action in response, acting on suggestion")
	return actionFromSuggestion(state, suggestion), ""
}

// applyObservation folds a tool result into the session state.
func (l *Loop) applyObservation(state *SearchState, action Action, result gitsearch.ToolResult, success bool) {
	if action.Tool == gitsearch.ToolSearchRepositories {
		state.RecordSearchAttempt()
		if success {
			found := gitsearch.ReposFromPayload(result.Data)
			state.AddRepositories(found)
		}
		return
	}

	if success {
		if target, ok := action.Args["full_name"].(string); ok && target != "" {
			state.AddRepositories([]string{target})
			state.AddAnalysis(target, result.Data)
		}
	}
}

// actionFromSuggestion converts a strategy suggestion into a concrete tool
// call. This is the guaranteed fallback when the model output is unusable.
func actionFromSuggestion(state *SearchState, suggestion strategy.ActionSuggestion) Action {
	if suggestion.Priority == strategy.PriorityAnalyze && suggestion.TargetRepo != "" {
		return Action{
			Tool: gitsearch.ToolRepositoryInfo,
			Args: map[string]interface{}{"full_name": suggestion.TargetRepo},
			Raw:  "suggested:" + strategy.PriorityAnalyze,
		}
	}

	params := strategy.ParamsFor(state.Strategy())
	query := suggestion.Query
	if query == "" {
		query = state.UserQuery()
	}
	sort := suggestion.Sort
	if sort == "" {
		sort = params.SortKey
	}
	return Action{
		Tool: gitsearch.ToolSearchRepositories,
		Args: map[string]interface{}{
			"query":       query,
			"max_results": params.ResultCount,
			"sort":        sort,
		},
		Raw: "suggested:" + strategy.PrioritySearch,
	}
}

// finish synthesizes the final answer and assembles the result object.
func (l *Loop) finish(ctx context.Context, state *SearchState, finalAnswer string) (*types.Result, error) {
	summary := finalAnswer
	if summary == "" {
		synthesized, err := l.model.Complete(ctx, llm.RoleReAct, buildSynthesisPrompt(state))
		if err != nil {
			l.logger.Warn(ctx, "Synthesis call failed, using deterministic summary: %v", err)
			summary = fallbackSummary(state)
		} else {
			summary = strings.TrimSpace(synthesized)
			if summary == "" {
				summary = fallbackSummary(state)
			}
		}
	}

	result := &types.Result{
		SessionID: uuid.NewString(),
		UserQuery: state.UserQuery(),
		ModeUsed:  types.ModeReAct,
		ExecutionSummary: fmt.Sprintf("%d iterations, final strategy %s",
			state.Iteration(), state.Strategy()),
		Results: types.ResultData{
			Summary:                summary,
			DiscoveredRepositories: state.Repositories(),
			DetailedAnalysis:       state.Analysis(),
			SuccessRate:            successRate(state.History()),
			KeyFindings:            keyFindings(state),
		},
		Recommendation: recommendation(state),
	}

	if state.RepositoryCount() == 0 && state.AnalyzedCount() == 0 {
		return result, &types.ModeError{
			Mode:    types.ModeReAct,
			Err:     fmt.Errorf("session ended without any findings"),
			Partial: result,
		}
	}

	l.logger.Info(ctx, "ReAct session complete: %d repositories, %d analyzed, %d iterations",
		state.RepositoryCount(), state.AnalyzedCount(), state.Iteration())
	return result, nil
}

func successRate(history []Exchange) float64 {
	if len(history) == 0 {
		return 0
	}
	ok := 0
	for _, ex := range history {
		if ex.Success {
			ok++
		}
	}
	return float64(ok) / float64(len(history))
}

func keyFindings(state *SearchState) []string {
	var findings []string
	if n := state.RepositoryCount(); n > 0 {
		findings = append(findings, fmt.Sprintf("discovered %d candidate repositories", n))
	}
	for _, repo := range state.Repositories() {
		if state.IsAnalyzed(repo) {
			findings = append(findings, "analyzed "+repo)
		}
	}
	return findings
}

func recommendation(state *SearchState) string {
	repos := state.Repositories()
	if len(repos) == 0 {
		return "no repositories found; consider rephrasing the query"
	}
	return "start with " + repos[0]
}

// fallbackSummary builds a usable answer without model assistance.
func fallbackSummary(state *SearchState) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Search for %q finished after %d iterations.\n",
		state.UserQuery(), state.Iteration())

	repos := state.Repositories()
	if len(repos) == 0 {
		b.WriteString("No repositories were found.")
		return b.String()
	}

	fmt.Fprintf(&b, "Discovered %d repositories:\n", len(repos))
	for _, repo := range repos {
		marker := ""
		if state.IsAnalyzed(repo) {
			marker = " (analyzed)"
		}
		fmt.Fprintf(&b, "- %s%s\n", repo, marker)
	}
	return strings.TrimSpace(b.String())
}

// Prompt construction.

func buildIterationPrompt(state *SearchState, suggestion strategy.ActionSuggestion) string {
	var b strings.Builder

	b.WriteString("You are a GitHub repository search assistant working in a think-act-observe loop.\n\n")
	b.WriteString("AVAILABLE TOOLS:\n")
	b.WriteString("- search_repositories(\"query\", max_results=N, sort=\"stars|forks|updated\")\n")
	b.WriteString("- get_repository_info(\"owner/repository\")\n")
	b.WriteString("- get_repository_languages(\"owner/repository\")\n")
	b.WriteString("- get_repository_tree(\"owner/repository\", path=\"...\")\n")
	b.WriteString("- get_repository_file_content(\"owner/repository\", path=\"...\")\n\n")
	b.WriteString("Respond with a short Thought line and exactly one Action line, e.g.\n")
	b.WriteString("Thought: I need more candidates\n")
	b.WriteString("Action: search_repositories(\"python web framework\", max_results=10, sort=\"stars\")\n")
	b.WriteString("When you have enough information, respond with \"Final Answer:\" followed by your summary.\n\n")

	fmt.Fprintf(&b, "User query: %s\n", state.UserQuery())
	fmt.Fprintf(&b, "Current strategy: %s\n", state.Strategy())
	fmt.Fprintf(&b, "Iteration: %d of %d\n", state.Iteration()+1, state.MaxIterations())
	fmt.Fprintf(&b, "Repositories found so far: %d, analyzed: %d\n\n",
		state.RepositoryCount(), state.AnalyzedCount())

	history := state.History()
	if len(history) > 0 {
		b.WriteString("History:\n")
		for i, ex := range history {
			fmt.Fprintf(&b, "%d. Action: %s -> %s\n", i+1, ex.Action.Tool, truncate(ex.Observation, 300))
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "Suggested next step: %s (%s)", suggestion.Priority, suggestion.Reason)
	if suggestion.TargetRepo != "" {
		fmt.Fprintf(&b, " target: %s", suggestion.TargetRepo)
	}
	if suggestion.Query != "" {
		fmt.Fprintf(&b, " query: %q", suggestion.Query)
	}
	b.WriteString("\n")

	return b.String()
}

func buildSynthesisPrompt(state *SearchState) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Summarize the findings of this repository search for the user.\n\nQuery: %s\n\n", state.UserQuery())

	repos := state.Repositories()
	fmt.Fprintf(&b, "Repositories discovered (%d):\n", len(repos))
	for _, repo := range repos {
		fmt.Fprintf(&b, "- %s\n", repo)
	}

	analysis := state.Analysis()
	if len(analysis) > 0 {
		b.WriteString("\nDetailed analysis:\n")
		for repo, payload := range analysis {
			fmt.Fprintf(&b, "## %s\n%s\n", repo, truncate(payload, 600))
		}
	}

	b.WriteString("\nWrite a concise summary with a clear recommendation.")
	return b.String()
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
