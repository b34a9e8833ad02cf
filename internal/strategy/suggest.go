package strategy

import (
	"fmt"
	"strings"
)

// Suggestion priorities.
const (
	PrioritySearch   = "search"
	PriorityAnalyze  = "analyze"
	PriorityConclude = "conclude"
)

// ActionSuggestion is a strategy's recommendation for the next action in a
// session: search further, analyze a specific repository, or conclude.
type ActionSuggestion struct {
	Priority   string
	Reason     string
	TargetRepo string
	Query      string
	Sort       string
}

// suggestFunc produces a suggestion from the current session state.
type suggestFunc func(st StateView) ActionSuggestion

// suggesters is the per-strategy dispatch table; one handler per variant.
var suggesters = map[Strategy]suggestFunc{
	BroadSearch:     suggestBroad,
	DeepAnalysis:    suggestDeep,
	Comparison:      suggestComparison,
	TrendAnalysis:   suggestTrend,
	SolutionFocused: suggestSolution,
}

// SuggestAction returns the next-action suggestion for the given strategy.
// Total: unknown strategies fall back to the broad-search handler.
func SuggestAction(s Strategy, st StateView) ActionSuggestion {
	if fn, ok := suggesters[s]; ok {
		return fn(st)
	}
	return suggestBroad(st)
}

func suggestBroad(st StateView) ActionSuggestion {
	params := ParamsFor(BroadSearch)
	if st.RepositoryCount() < 3 {
		return ActionSuggestion{
			Priority: PrioritySearch,
			Reason:   "cast a wide net before committing to candidates",
			Query:    st.UserQuery(),
			Sort:     params.SortKey,
		}
	}
	if repo, ok := firstUnanalyzed(st); ok {
		return ActionSuggestion{
			Priority:   PriorityAnalyze,
			Reason:     "enough candidates found, start examining them",
			TargetRepo: repo,
		}
	}
	return ActionSuggestion{
		Priority: PriorityConclude,
		Reason:   "candidates found and examined",
	}
}

func suggestDeep(st StateView) ActionSuggestion {
	if repo, ok := firstUnanalyzed(st); ok {
		return ActionSuggestion{
			Priority:   PriorityAnalyze,
			Reason:     "deep analysis requested, examine each candidate in turn",
			TargetRepo: repo,
		}
	}
	if st.RepositoryCount() == 0 {
		params := ParamsFor(DeepAnalysis)
		return ActionSuggestion{
			Priority: PrioritySearch,
			Reason:   "nothing to analyze yet, locate the target repository",
			Query:    st.UserQuery(),
			Sort:     params.SortKey,
		}
	}
	return ActionSuggestion{
		Priority: PriorityConclude,
		Reason:   "all discovered repositories analyzed",
	}
}

func suggestComparison(st StateView) ActionSuggestion {
	params := ParamsFor(Comparison)
	if st.RepositoryCount() < 2 {
		return ActionSuggestion{
			Priority: PrioritySearch,
			Reason:   "a comparison needs at least two candidates",
			Query:    st.UserQuery(),
			Sort:     params.SortKey,
		}
	}
	if st.AnalyzedCount() < 2 {
		if repo, ok := firstUnanalyzed(st); ok {
			return ActionSuggestion{
				Priority:   PriorityAnalyze,
				Reason:     "analyze both sides before comparing",
				TargetRepo: repo,
			}
		}
	}
	return ActionSuggestion{
		Priority: PriorityConclude,
		Reason:   "both comparison candidates analyzed",
	}
}

func suggestTrend(st StateView) ActionSuggestion {
	params := ParamsFor(TrendAnalysis)
	return ActionSuggestion{
		Priority: PrioritySearch,
		Reason:   "trend queries favor recently updated projects",
		Query:    st.UserQuery(),
		Sort:     params.SortKey,
	}
}

func suggestSolution(st StateView) ActionSuggestion {
	params := ParamsFor(SolutionFocused)
	if st.RepositoryCount() == 0 || st.SearchAttempts() == 0 {
		return ActionSuggestion{
			Priority: PrioritySearch,
			Reason:   "search with a narrowed, implementation-focused query",
			Query:    NarrowQuery(st.UserQuery()),
			Sort:     params.SortKey,
		}
	}
	if repo, ok := firstUnanalyzed(st); ok {
		return ActionSuggestion{
			Priority:   PriorityAnalyze,
			Reason:     "check whether the candidate actually solves the problem",
			TargetRepo: repo,
		}
	}
	return ActionSuggestion{
		Priority: PriorityConclude,
		Reason:   "solution candidates gathered and checked",
	}
}

func firstUnanalyzed(st StateView) (string, bool) {
	for _, repo := range st.Repositories() {
		if !st.IsAnalyzed(repo) {
			return repo, true
		}
	}
	return "", false
}

// questionFillers are interrogative lead-ins that dilute a repository search.
var questionFillers = []string{
	"如何", "怎么", "怎样", "请问",
	"how to ", "how do i ", "how can i ", "what is the best way to ",
}

// NarrowQuery rewrites a how-to question into an implementation-focused
// search query.
func NarrowQuery(query string) string {
	narrowed := strings.TrimSpace(query)
	lowered := strings.ToLower(narrowed)
	for _, filler := range questionFillers {
		if idx := strings.Index(lowered, filler); idx >= 0 {
			narrowed = narrowed[:idx] + narrowed[idx+len(filler):]
			lowered = strings.ToLower(narrowed)
		}
	}
	narrowed = strings.TrimSpace(narrowed)
	if narrowed == "" {
		return query
	}
	return fmt.Sprintf("%s example implementation", narrowed)
}
