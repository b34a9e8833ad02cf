// Package router is the decision layer: it scores query complexity, picks an
// execution mode, runs the session, and retries once on the other mode when
// the chosen one fails.
package router

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/XiaoConstantine/dspy-go/pkg/logging"

	"github.com/XiaoConstantine/reposcout/internal/types"
)

// SessionRunner is one execution mode: the reasoning loop or the
// plan-execute coordinator.
type SessionRunner interface {
	Run(ctx context.Context, query string) (*types.Result, error)
}

// Complexity scoring keyword classes. Weights follow the routing policy:
// comparison intent is the strongest signal for structured planning and
// scores per marker hit, so an unmistakable comparison query clears the
// plan-execute threshold on its own.
var (
	comparisonKeywords = []string{
		"vs", "对比", "比较", "哪个更好", "差异", "选择", "推荐",
		"versus", "compare", "which is better",
	}
	multiStepKeywords = []string{
		"分析", "研究", "深入", "详细", "全面", "系统性",
		"analyze", "research", "in-depth", "detailed", "comprehensive",
	}
	complexKeywords = []string{
		"架构", "设计模式", "技术栈", "最佳实践", "性能对比", "技术选型",
		"architecture", "design pattern", "tech stack", "best practice",
		"performance comparison", "technology selection",
	}
	requirementKeywords = []string{
		"如何", "怎么", "实现", "解决", "方案", "教程",
		"how to", "how do", "implement", "solve", "tutorial",
	}
)

// Thresholds for the mode decision. Scores in between are ambiguous and
// resolve to the cheaper reasoning loop.
const (
	planExecuteThreshold = 4
	reactThreshold       = 1
)

// Score computes the complexity score of a query along with the reasons that
// contributed. Scoring is deterministic and case-insensitive.
func Score(query string) (int, []string) {
	normalized := strings.ToLower(strings.TrimSpace(query))
	score := 0
	var reasons []string

	for _, kw := range comparisonKeywords {
		if strings.Contains(normalized, kw) {
			score += 3
			reasons = append(reasons, fmt.Sprintf("comparison marker %q (+3)", kw))
		}
	}
	if containsAny(normalized, multiStepKeywords) {
		score += 2
		reasons = append(reasons, "multi-step intent (+2)")
	}
	for _, kw := range complexKeywords {
		if strings.Contains(normalized, kw) {
			score += 2
			reasons = append(reasons, fmt.Sprintf("complex topic %q (+2)", kw))
		}
	}
	if containsAny(normalized, requirementKeywords) {
		score++
		reasons = append(reasons, "requirement phrasing (+1)")
	}
	if len(strings.Fields(normalized)) > 8 {
		score++
		reasons = append(reasons, "long query (+1)")
	}

	return score, reasons
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

// Router routes queries to an execution mode and supervises the run.
type Router struct {
	react  SessionRunner
	planEx SessionRunner
	stats  *Stats
	logger *logging.Logger
}

// Option configures a Router.
type Option func(*Router)

// WithStats attaches a shared routing-statistics collector.
func WithStats(s *Stats) Option {
	return func(r *Router) { r.stats = s }
}

// NewRouter wires a router over the two execution modes.
func NewRouter(react, planEx SessionRunner, opts ...Option) *Router {
	r := &Router{
		react:  react,
		planEx: planEx,
		stats:  NewStats(),
		logger: logging.GetLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Stats returns the router's statistics collector.
func (r *Router) Stats() *Stats { return r.stats }

// ExecuteOption adjusts one Execute call.
type ExecuteOption func(*executeConfig)

type executeConfig struct {
	forced types.Mode
}

// WithForcedMode bypasses complexity scoring and pins the execution mode.
// Pinning also disables the cross-mode retry: a failure in the forced mode
// surfaces directly instead of handing the query to the other mode.
func WithForcedMode(mode types.Mode) ExecuteOption {
	return func(cfg *executeConfig) { cfg.forced = mode }
}

// Decide resolves a query to a routing decision without executing anything.
func (r *Router) Decide(query string, opts ...ExecuteOption) types.RoutingDecision {
	var cfg executeConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.forced != "" {
		return types.RoutingDecision{
			Mode:   cfg.forced,
			Reason: "mode forced by caller",
			Forced: true,
		}
	}

	score, reasons := Score(query)
	decision := types.RoutingDecision{ComplexityScore: score}

	switch {
	case score >= planExecuteThreshold:
		decision.Mode = types.ModePlanExecute
		decision.Reason = fmt.Sprintf("score %d >= %d: %s",
			score, planExecuteThreshold, strings.Join(reasons, ", "))
	case score <= reactThreshold:
		decision.Mode = types.ModeReAct
		decision.Reason = fmt.Sprintf("score %d <= %d: simple query", score, reactThreshold)
	default:
		// Ambiguous middle band: the reasoning loop recovers from a wrong
		// guess more cheaply than a full plan run.
		decision.Mode = types.ModeReAct
		decision.Reason = fmt.Sprintf("score %d ambiguous, defaulting to reasoning loop", score)
	}

	return decision
}

// Execute routes and runs one query. When the chosen mode fails with a mode
// error, the other mode is tried exactly once, unless the caller pinned the
// mode. A failed pinned run and a double failure both come back as an
// ExhaustedError carrying the richest partial result seen.
func (r *Router) Execute(ctx context.Context, query string, opts ...ExecuteOption) (*types.Result, error) {
	decision := r.Decide(query, opts...)
	r.stats.Record(decision.Mode)
	r.logger.Info(ctx, "Routing query to %s: %s", decision.Mode, decision.Reason)

	primary := r.runnerFor(decision.Mode)
	result, err := primary.Run(ctx, query)
	if err == nil {
		r.stats.RecordSuccess(decision.Mode)
		return result, nil
	}

	var modeErr *types.ModeError
	if !errors.As(err, &modeErr) {
		return result, err
	}

	if decision.Forced {
		partial := partialOf(modeErr, result)
		return partial, &types.ExhaustedError{
			Query:    query,
			Attempts: []types.Mode{decision.Mode},
			Errs:     []error{err},
			Partial:  partial,
		}
	}

	retryMode := otherMode(decision.Mode)
	r.logger.Warn(ctx, "%s mode failed (%v), retrying on %s", decision.Mode, modeErr.Err, retryMode)
	r.stats.Record(retryMode)

	retryResult, retryErr := r.runnerFor(retryMode).Run(ctx, query)
	if retryErr == nil {
		r.stats.RecordSuccess(retryMode)
		return retryResult, nil
	}

	partial := bestPartial(partialOf(modeErr, result), partialOf2(retryErr, retryResult))
	return partial, &types.ExhaustedError{
		Query:    query,
		Attempts: []types.Mode{decision.Mode, retryMode},
		Errs:     []error{err, retryErr},
		Partial:  partial,
	}
}

func (r *Router) runnerFor(mode types.Mode) SessionRunner {
	if mode == types.ModePlanExecute {
		return r.planEx
	}
	return r.react
}

func otherMode(mode types.Mode) types.Mode {
	if mode == types.ModePlanExecute {
		return types.ModeReAct
	}
	return types.ModePlanExecute
}

func partialOf(modeErr *types.ModeError, returned *types.Result) *types.Result {
	if modeErr.Partial != nil {
		return modeErr.Partial
	}
	return returned
}

func partialOf2(err error, returned *types.Result) *types.Result {
	var modeErr *types.ModeError
	if errors.As(err, &modeErr) && modeErr.Partial != nil {
		return modeErr.Partial
	}
	return returned
}

// bestPartial prefers the partial result with the most discovered
// repositories, breaking ties toward the first attempt.
func bestPartial(a, b *types.Result) *types.Result {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	case len(b.Results.DiscoveredRepositories) > len(a.Results.DiscoveredRepositories):
		return b
	default:
		return a
	}
}
