package components

import (
	"fmt"
	"strings"

	"github.com/alexisbeaulieu97/monorun/internal/model"
)

// SummaryData aggregates counts for rendering summaries.
type SummaryData struct {
	Counts      model.RunSummary
	Done        int
	Finished    bool
	Interrupted bool
	Failed      []string
	Skipped     []string
}

// Summary renders a textual run summary.
type Summary struct {
	data SummaryData
}

// NewSummary creates a new Summary component.
func NewSummary(data SummaryData) Summary {
	return Summary{data: data}
}

// View renders the summary.
func (s Summary) View() string {
	c := s.data.Counts
	if c.Total == 0 {
		if s.data.Finished {
			return "Nothing to run"
		}
		return ""
	}

	lines := []string{fmt.Sprintf("Nodes: %d/%d finished", s.data.Done, c.Total)}
	if !s.data.Finished {
		return lines[0]
	}

	lines = append(lines, fmt.Sprintf("succeeded %d, failed %d, skipped %d, cancelled %d",
		c.Succeeded, c.Failed, c.Skipped, c.Cancelled))

	switch {
	case s.data.Interrupted:
		lines = append(lines, "Run cancelled")
	case c.Failed > 0 || c.Skipped > 0 || c.Cancelled > 0:
		lines = append(lines, "Run failed")
	default:
		lines = append(lines, "Run finished successfully")
	}

	if len(s.data.Failed) > 0 {
		lines = append(lines, "Failed: "+strings.Join(s.data.Failed, ", "))
	}
	if len(s.data.Skipped) > 0 {
		lines = append(lines, "Skipped: "+strings.Join(s.data.Skipped, ", "))
	}

	return strings.Join(lines, "\n")
}
