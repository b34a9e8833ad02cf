// Package types holds the shared result and error shapes exchanged between
// the execution modes, the coordinator, and the router.
package types

import (
	"fmt"
	"strings"
)

// Mode identifies which execution mode handled a query.
type Mode string

const (
	ModeReAct       Mode = "react"
	ModePlanExecute Mode = "plan_execute"
)

// RoutingDecision is the per-query outcome of complexity scoring.
type RoutingDecision struct {
	Mode            Mode
	ComplexityScore int
	Reason          string
	Forced          bool
}

// ExecutionResult records the outcome of one executed plan step.
type ExecutionResult struct {
	StepID              int
	ToolUsed            string
	Success             bool
	ResultData          string
	Observations        string
	NextRecommendations []string
}

// ResultData is the findings section of a Result, identical for both modes.
type ResultData struct {
	Summary                string
	DiscoveredRepositories []string
	DetailedAnalysis       map[string]string
	SuccessRate            float64
	KeyFindings            []string
}

// Result is the stable answer shape returned to callers regardless of the
// mode taken. PlanSummary is populated only for plan-execute sessions.
type Result struct {
	SessionID        string
	UserQuery        string
	ModeUsed         Mode
	PlanSummary      string
	ExecutionSummary string
	Results          ResultData
	Recommendation   string
}

// ModeError reports that one execution mode exhausted its internal recovery
// options. Partial carries whatever the session accumulated before giving up.
type ModeError struct {
	Mode    Mode
	Err     error
	Partial *Result
}

func (e *ModeError) Error() string {
	return fmt.Sprintf("%s mode failed: %v", e.Mode, e.Err)
}

func (e *ModeError) Unwrap() error { return e.Err }

// ExhaustedError is the only failure that crosses the outermost boundary:
// every attempted mode failed. It always carries the best partial result
// accumulated across attempts, never an empty object.
type ExhaustedError struct {
	Query    string
	Attempts []Mode
	Errs     []error
	Partial  *Result
}

func (e *ExhaustedError) Error() string {
	modes := make([]string, 0, len(e.Attempts))
	for _, m := range e.Attempts {
		modes = append(modes, string(m))
	}
	return fmt.Sprintf("all execution modes exhausted for query %q (tried: %s)",
		e.Query, strings.Join(modes, ", "))
}

func (e *ExhaustedError) Unwrap() error {
	if len(e.Errs) > 0 {
		return e.Errs[len(e.Errs)-1]
	}
	return nil
}
