// Package strategy defines the closed set of search strategies, the
// intent classifier that picks one for a query, and the per-strategy action
// suggestion rules that steer a running session.
package strategy

// Strategy is a named search-intent mode with fixed default query parameters.
type Strategy string

const (
	BroadSearch     Strategy = "broad_search"
	DeepAnalysis    Strategy = "deep_analysis"
	Comparison      Strategy = "comparison"
	TrendAnalysis   Strategy = "trend_analysis"
	SolutionFocused Strategy = "solution_focused"
)

// Params are the default search parameters attached to a strategy.
type Params struct {
	ResultCount int
	SortKey     string
}

// catalog is the single point of change when adding a strategy: add the enum
// value, its parameter row here, and its suggester row in suggest.go.
var catalog = map[Strategy]Params{
	BroadSearch:     {ResultCount: 10, SortKey: "stars"},
	DeepAnalysis:    {ResultCount: 3, SortKey: "stars"},
	Comparison:      {ResultCount: 6, SortKey: "stars"},
	TrendAnalysis:   {ResultCount: 8, SortKey: "updated"},
	SolutionFocused: {ResultCount: 5, SortKey: "stars"},
}

// ParamsFor returns the default parameters for a strategy. It is total:
// unknown values resolve to the broad-search defaults.
func ParamsFor(s Strategy) Params {
	if p, ok := catalog[s]; ok {
		return p
	}
	return catalog[BroadSearch]
}

// All enumerates the known strategies in a stable order.
func All() []Strategy {
	return []Strategy{BroadSearch, DeepAnalysis, Comparison, TrendAnalysis, SolutionFocused}
}
