// Package tui renders run progress, either live with Bubbletea or as a final
// report when stdout is not a terminal.
package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/alexisbeaulieu97/monorun/internal/engine"
	"github.com/alexisbeaulieu97/monorun/internal/model"
)

// NodeStartMsg indicates a node was handed to an executor.
type NodeStartMsg struct {
	ID       string
	Executor int
	Mode     model.Mode
	Time     time.Time
}

// NodeFinishMsg reports that a node reached a terminal state.
type NodeFinishMsg struct {
	Result model.NodeResult
}

// RunFinishMsg carries the final run result.
type RunFinishMsg struct {
	Result *model.RunResult
}

type tickMsg struct{}

// Model contains the Bubbletea state for the run view.
type Model struct {
	project string
	plan    *engine.ExecutionPlan
	results map[string]model.NodeResult
	running map[string]bool
	modes   map[string]model.Mode
	order   []string
	total   int
	done    int

	run       *model.RunResult
	finished  bool
	cancelled bool
	cancel    func()
}

// NewModel constructs a model tracking every node of plan. cancel is invoked
// once when the user interrupts the view and may be nil.
func NewModel(project string, plan *engine.ExecutionPlan, cancel func()) Model {
	m := Model{
		project: project,
		plan:    plan,
		results: make(map[string]model.NodeResult),
		running: make(map[string]bool),
		modes:   make(map[string]model.Mode),
		cancel:  cancel,
	}

	if plan != nil {
		for _, level := range plan.Levels {
			for _, node := range level.Nodes {
				m.ensureNode(node.ID)
				m.modes[node.ID] = node.Mode
			}
		}
	}

	return m
}

// Init starts the Bubbletea program.
func (m Model) Init() tea.Cmd {
	return tea.Tick(time.Millisecond, func(time.Time) tea.Msg { return tickMsg{} })
}

// TotalNodes returns the number of tracked nodes.
func (m Model) TotalNodes() int {
	return m.total
}

// DoneNodes returns the number of nodes in a terminal state.
func (m Model) DoneNodes() int {
	return m.done
}

// IsFinished reports whether the run has completed.
func (m Model) IsFinished() bool {
	return m.finished
}

// Cancelled reports whether the user interrupted the run.
func (m Model) Cancelled() bool {
	return m.cancelled
}

// Result returns the node result recorded for id, if any.
func (m Model) Result(id string) (model.NodeResult, bool) {
	res, ok := m.results[id]
	return res, ok
}

func (m *Model) ensureNode(id string) {
	if id == "" {
		return
	}
	for _, existing := range m.order {
		if existing == id {
			return
		}
	}
	m.order = append(m.order, id)
	m.total++
}
