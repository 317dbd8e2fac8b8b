package model

import (
	"sort"
	"time"
)

// NodeState is the scheduling state of one node during a run.
type NodeState string

const (
	// StatePending indicates the node waits on at least one dependency.
	StatePending NodeState = "pending"
	// StateReady indicates every dependency succeeded and the node waits for an executor.
	StateReady NodeState = "ready"
	// StateDispatched indicates an executor is working on the node.
	StateDispatched NodeState = "dispatched"
	// StateSucceeded marks a node whose check or run script succeeded.
	StateSucceeded NodeState = "succeeded"
	// StateFailed marks a node whose run script failed.
	StateFailed NodeState = "failed"
	// StateSkipped marks a node never dispatched because a dependency failed.
	StateSkipped NodeState = "skipped"
	// StateCancelled marks a node never dispatched because the run was stopped.
	StateCancelled NodeState = "cancelled"
)

// IsTerminal reports whether no further transition can happen.
func (s NodeState) IsTerminal() bool {
	switch s {
	case StateSucceeded, StateFailed, StateSkipped, StateCancelled:
		return true
	default:
		return false
	}
}

// IsValid reports whether s is a known state.
func (s NodeState) IsValid() bool {
	switch s {
	case StatePending, StateReady, StateDispatched:
		return true
	default:
		return s.IsTerminal()
	}
}

// Mode decides how a selected node is executed.
type Mode string

const (
	// ModeRun always executes the run script.
	ModeRun Mode = "run"
	// ModeCheckThenRun executes the check script and runs only when it reports a change.
	ModeCheckThenRun Mode = "check_then_run"
)

// NoExecutor marks a result that was decided without contacting an executor.
const NoExecutor = -1

// NodeResult captures the outcome of a single node.
type NodeResult struct {
	NodeID string
	State  NodeState
	Mode   Mode

	// Executor is the executor slot that handled the node, or NoExecutor.
	Executor int
	// RanCheck and RanRun report which scripts were actually executed.
	RanCheck bool
	RanRun   bool
	// ExitCode is the exit status of the last executed script.
	ExitCode int

	// Message is a short human readable explanation of the outcome.
	Message  string
	Error    error
	Duration time.Duration
}

// RunResult aggregates the outcome of every node selected for a run.
type RunResult struct {
	Nodes    map[string]NodeResult
	Success  bool
	Duration time.Duration
}

// NewRunResult computes overall success: every node must have succeeded.
func NewRunResult(nodes map[string]NodeResult, duration time.Duration) *RunResult {
	if nodes == nil {
		nodes = make(map[string]NodeResult)
	}
	success := true
	for _, node := range nodes {
		if node.State != StateSucceeded {
			success = false
			break
		}
	}
	return &RunResult{Nodes: nodes, Success: success, Duration: duration}
}

// IDs returns the sorted identifiers of every node in the given state.
// With no states it returns every identifier.
func (r *RunResult) IDs(states ...NodeState) []string {
	if r == nil {
		return nil
	}
	ids := make([]string, 0, len(r.Nodes))
	for id, node := range r.Nodes {
		if len(states) == 0 || containsState(states, node.State) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Failed returns the identifiers of nodes that failed.
func (r *RunResult) Failed() []string { return r.IDs(StateFailed) }

// Skipped returns the identifiers of nodes skipped because a dependency failed.
func (r *RunResult) Skipped() []string { return r.IDs(StateSkipped) }

// Cancelled returns the identifiers of nodes never dispatched because the run stopped.
func (r *RunResult) Cancelled() []string { return r.IDs(StateCancelled) }

// Summary counts nodes per terminal state.
func (r *RunResult) Summary() RunSummary {
	var s RunSummary
	if r == nil {
		return s
	}
	for _, node := range r.Nodes {
		s.Total++
		switch node.State {
		case StateSucceeded:
			s.Succeeded++
		case StateFailed:
			s.Failed++
		case StateSkipped:
			s.Skipped++
		case StateCancelled:
			s.Cancelled++
		}
	}
	return s
}

// RunSummary holds per-state node counts.
type RunSummary struct {
	Total     int
	Succeeded int
	Failed    int
	Skipped   int
	Cancelled int
}

func containsState(states []NodeState, target NodeState) bool {
	for _, s := range states {
		if s == target {
			return true
		}
	}
	return false
}
