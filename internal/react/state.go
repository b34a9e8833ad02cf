// Package react implements the single-role reasoning loop: a session walks
// think → act → observe → reflect iterations against the search backend
// until a termination condition holds.
package react

import (
	"github.com/XiaoConstantine/reposcout/internal/strategy"
)

// Exchange is one recorded action/observation pair.
type Exchange struct {
	Action      Action
	Observation string
	Success     bool
}

// SearchState is the mutable record of one session's progress. It is owned
// exclusively by one Loop invocation and never shared across sessions.
type SearchState struct {
	userQuery     string
	strategy      strategy.Strategy
	iteration     int
	maxIterations int
	history       []Exchange
	repos         []string
	repoSet       map[string]struct{}
	analysis      map[string]string
	searches      int
}

// NewSearchState creates the state for a fresh session.
func NewSearchState(query string, strat strategy.Strategy, maxIterations int) *SearchState {
	if maxIterations <= 0 {
		maxIterations = 5
	}
	return &SearchState{
		userQuery:     query,
		strategy:      strat,
		maxIterations: maxIterations,
		repoSet:       make(map[string]struct{}),
		analysis:      make(map[string]string),
	}
}

// strategy.StateView implementation.

func (s *SearchState) UserQuery() string    { return s.userQuery }
func (s *SearchState) Iteration() int       { return s.iteration }
func (s *SearchState) RepositoryCount() int { return len(s.repos) }
func (s *SearchState) AnalyzedCount() int   { return len(s.analysis) }
func (s *SearchState) SearchAttempts() int  { return s.searches }

func (s *SearchState) Repositories() []string {
	out := make([]string, len(s.repos))
	copy(out, s.repos)
	return out
}

func (s *SearchState) IsAnalyzed(repo string) bool {
	_, ok := s.analysis[repo]
	return ok
}

// Accessors and mutators used by the loop.

func (s *SearchState) Strategy() strategy.Strategy     { return s.strategy }
func (s *SearchState) SetStrategy(n strategy.Strategy) { s.strategy = n }
func (s *SearchState) MaxIterations() int              { return s.maxIterations }

func (s *SearchState) History() []Exchange {
	out := make([]Exchange, len(s.history))
	copy(out, s.history)
	return out
}

func (s *SearchState) Analysis() map[string]string {
	out := make(map[string]string, len(s.analysis))
	for k, v := range s.analysis {
		out[k] = v
	}
	return out
}

// RecordExchange appends one action/observation pair to the history.
func (s *SearchState) RecordExchange(action Action, observation string, success bool) {
	s.history = append(s.history, Exchange{Action: action, Observation: observation, Success: success})
}

// RecordSearchAttempt counts a search-type action, successful or not.
func (s *SearchState) RecordSearchAttempt() { s.searches++ }

// AddRepositories merges discovered identifiers, preserving insertion order
// and dropping duplicates. The set only ever grows.
func (s *SearchState) AddRepositories(names []string) {
	for _, name := range names {
		if _, dup := s.repoSet[name]; dup {
			continue
		}
		s.repoSet[name] = struct{}{}
		s.repos = append(s.repos, name)
	}
}

// AddAnalysis stores an analysis payload keyed by repository identifier.
func (s *SearchState) AddAnalysis(repo, payload string) {
	s.analysis[repo] = payload
}

// Advance increments the iteration counter.
func (s *SearchState) Advance() { s.iteration++ }

// Exhausted reports whether the iteration ceiling has been reached.
func (s *SearchState) Exhausted() bool { return s.iteration >= s.maxIterations }
