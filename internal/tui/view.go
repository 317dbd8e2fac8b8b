package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/alexisbeaulieu97/monorun/internal/model"
	"github.com/alexisbeaulieu97/monorun/internal/tui/components"
)

// View renders the current state of the model.
func (m Model) View() string {
	var sections []string

	sections = append(sections, titleStyle.Render(fmt.Sprintf("monorun • %s", m.title())))

	progress := components.NewProgress(m.total).View(m.done)
	sections = append(sections, sectionStyle.Render("Progress"), progress)

	list := components.NewNodeList(m.order, m.results, m.running)
	if entries := list.Entries(); len(entries) > 0 {
		sections = append(sections, sectionStyle.Render("Nodes"), m.renderEntries(entries))
	}

	summary := components.NewSummary(m.summaryData(list)).View()
	if strings.TrimSpace(summary) != "" {
		sections = append(sections, sectionStyle.Render("Summary"), summaryStyle.Render(summary))
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) summaryData(list components.NodeList) components.SummaryData {
	data := components.SummaryData{
		Done:        m.done,
		Finished:    m.finished,
		Interrupted: m.cancelled,
		Failed:      list.InState(model.StateFailed),
		Skipped:     list.InState(model.StateSkipped),
	}
	if m.run != nil {
		data.Counts = m.run.Summary()
	} else {
		data.Counts = model.RunSummary{Total: m.total}
	}
	return data
}

func (m Model) renderEntries(entries []components.NodeEntry) string {
	lines := make([]string, 0, len(entries))
	for _, entry := range entries {
		res := entry.Result
		state := res.State
		if entry.Running {
			state = model.StateDispatched
		}

		line := fmt.Sprintf(" %s %s", StatusIcon(state), entry.ID)
		if m.modes[entry.ID] == model.ModeCheckThenRun {
			line += detailStyle.Render(" [check first]")
		}
		if msg := strings.TrimSpace(res.Message); msg != "" && state.IsTerminal() {
			line = fmt.Sprintf("%s: %s", line, msg)
		}
		if res.Duration > 0 {
			line = fmt.Sprintf("%s (%s)", line, res.Duration.Truncate(10*time.Millisecond))
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func (m Model) title() string {
	if strings.TrimSpace(m.project) != "" {
		return m.project
	}
	return "run"
}

// StatusIcon returns the glyph representing a node state.
func StatusIcon(state model.NodeState) string {
	switch state {
	case model.StateSucceeded:
		return successStyle.Render("✓")
	case model.StateDispatched:
		return runningStyle.Render("⏳")
	case model.StateFailed:
		return failureStyle.Render("✗")
	case model.StateSkipped:
		return skippedStyle.Render("⊘")
	case model.StateCancelled:
		return cancelledStyle.Render("■")
	default:
		return pendingStyle.Render("…")
	}
}
