package router

import (
	"go.uber.org/atomic"

	"github.com/XiaoConstantine/reposcout/internal/types"
)

// Stats counts routing attempts and successful completions per mode. Safe
// for concurrent sessions; a collector is shared explicitly by passing it to
// the routers that should feed it.
type Stats struct {
	reactAttempts       atomic.Int64
	planExecuteAttempts atomic.Int64
	reactSuccesses      atomic.Int64
	planExecuteSuccess  atomic.Int64
}

// NewStats creates an empty collector.
func NewStats() *Stats {
	return &Stats{}
}

// Record counts one routing attempt for the given mode.
func (s *Stats) Record(mode types.Mode) {
	if mode == types.ModePlanExecute {
		s.planExecuteAttempts.Inc()
		return
	}
	s.reactAttempts.Inc()
}

// RecordSuccess counts one session that the given mode completed.
func (s *Stats) RecordSuccess(mode types.Mode) {
	if mode == types.ModePlanExecute {
		s.planExecuteSuccess.Inc()
		return
	}
	s.reactSuccesses.Inc()
}

// StatsSnapshot is a point-in-time view of routing distribution and per-mode
// completion counts.
type StatsSnapshot struct {
	TotalRouted           int64
	ReactPercentage       float64
	PlanExecutePercentage float64
	ReactAttempts         int64
	PlanExecuteAttempts   int64
	ReactSuccesses        int64
	PlanExecuteSuccesses  int64
}

// Snapshot captures the current distribution. Percentages are over attempts
// and zero when nothing has been routed yet.
func (s *Stats) Snapshot() StatsSnapshot {
	react := s.reactAttempts.Load()
	plan := s.planExecuteAttempts.Load()
	total := react + plan

	snap := StatsSnapshot{
		TotalRouted:          total,
		ReactAttempts:        react,
		PlanExecuteAttempts:  plan,
		ReactSuccesses:       s.reactSuccesses.Load(),
		PlanExecuteSuccesses: s.planExecuteSuccess.Load(),
	}
	if total > 0 {
		snap.ReactPercentage = float64(react) / float64(total) * 100
		snap.PlanExecutePercentage = float64(plan) / float64(total) * 100
	}
	return snap
}
