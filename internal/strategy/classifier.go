package strategy

import (
	"regexp"
	"strings"
)

// StateView is the classifier's read-only view of a running search session.
type StateView interface {
	UserQuery() string
	Iteration() int
	RepositoryCount() int
	AnalyzedCount() int
	Repositories() []string
	IsAnalyzed(repo string) bool
	SearchAttempts() int
}

// IntentRule binds a strategy to the query markers that indicate it. Rules
// are evaluated in slice order; the first match wins, so the ordering is the
// precedence policy and can be adjusted without touching the matcher.
type IntentRule struct {
	Strategy Strategy
	Markers  []string
}

// defaultIntentRules: comparison outranks trend, trend outranks solution.
// Markers cover both the Chinese and English phrasings seen in real queries.
var defaultIntentRules = []IntentRule{
	{Comparison, []string{
		" vs ", " vs.", "对比", "比较", "哪个更好", "差异", "选择", "推荐",
		"compare", "versus", "which is better",
	}},
	{TrendAnalysis, []string{
		"最新", "趋势", "热门", "流行", "trend", "trending", "latest", "popular",
		"2023", "2024", "2025", "2026",
	}},
	{SolutionFocused, []string{
		"如何", "怎么", "实现", "解决", "方案", "教程",
		"how to", "how do", "tutorial", "solution", "example of",
	}},
}

var repoPathQuery = regexp.MustCompile(`^[A-Za-z0-9_.-]+/[A-Za-z0-9_.-]+$`)

// Classifier maps free-text queries to strategies and decides mid-session
// strategy switches.
type Classifier struct {
	rules []IntentRule
}

// NewClassifier builds a classifier with the default precedence table.
func NewClassifier() *Classifier {
	return &Classifier{rules: defaultIntentRules}
}

// NewClassifierWithRules overrides the precedence table. Intended for
// callers that need a different marker policy; the classifier stays total
// regardless of the table contents.
func NewClassifierWithRules(rules []IntentRule) *Classifier {
	return &Classifier{rules: rules}
}

// Classify resolves a query to exactly one strategy. It never fails: queries
// with no recognizable signal resolve to BroadSearch.
func (c *Classifier) Classify(query string) Strategy {
	normalized := strings.ToLower(strings.TrimSpace(query))
	if normalized == "" {
		return BroadSearch
	}

	// A bare owner/repository identifier asks about one specific project.
	if repoPathQuery.MatchString(normalized) {
		return DeepAnalysis
	}

	for _, rule := range c.rules {
		for _, marker := range rule.Markers {
			if strings.Contains(normalized, marker) {
				return rule.Strategy
			}
		}
	}

	return BroadSearch
}

// ShouldSwitch re-evaluates the active strategy against session progress.
// Rules run in fixed priority order; the first hit wins. A switch never
// resets iteration count or history, it only changes which suggestion rules
// apply from the next iteration on.
func (c *Classifier) ShouldSwitch(current Strategy, st StateView) (Strategy, bool) {
	// Broad search that keeps coming up short: narrow the query instead.
	if current == BroadSearch && st.Iteration() >= 2 && st.RepositoryCount() < 3 {
		return SolutionFocused, true
	}

	// Plenty of candidates but almost no depth: pivot to analysis.
	if st.RepositoryCount() >= 5 && st.AnalyzedCount() < 2 && current != DeepAnalysis {
		return DeepAnalysis, true
	}

	return current, false
}
