package tui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// Update handles Bubbletea messages and updates model state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		return m, nil
	case NodeStartMsg:
		m.ensureNode(msg.ID)
		m.running = cloneFlags(m.running)
		m.running[msg.ID] = true
		return m, nil
	case NodeFinishMsg:
		id := msg.Result.NodeID
		if id == "" {
			return m, nil
		}
		m.ensureNode(id)
		m.results = cloneResults(m.results)
		prev, seen := m.results[id]
		m.results[id] = msg.Result
		if !seen || !prev.State.IsTerminal() {
			if msg.Result.State.IsTerminal() {
				m.done++
			}
		}
		m.running = cloneFlags(m.running)
		delete(m.running, id)
		return m, nil
	case RunFinishMsg:
		m.run = msg.Result
		m.finished = true
		m.running = make(map[string]bool)
		return m, tea.Quit
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			if !m.cancelled && m.cancel != nil {
				m.cancel()
			}
			m.cancelled = true
			return m, nil
		}
	case tea.QuitMsg:
		m.finished = true
		return m, nil
	}

	return m, nil
}
