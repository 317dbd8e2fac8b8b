package components

import (
	"fmt"
	"math"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
)

// Progress renders how many nodes of a run reached a terminal state.
type Progress struct {
	bar   progress.Model
	total int
}

// NewProgress creates a progress component for the given node count.
func NewProgress(total int) Progress {
	bar := progress.New(progress.WithDefaultGradient())
	bar.Width = 30
	return Progress{bar: bar, total: total}
}

// Ratio returns the completed fraction, clamped to [0, 1].
func (p Progress) Ratio(done int) float64 {
	if p.total <= 0 {
		return 0
	}
	return math.Max(0, math.Min(1.0, float64(done)/float64(p.total)))
}

// View renders the bar for done terminal nodes.
func (p Progress) View(done int) string {
	label := lipgloss.NewStyle().Bold(true).Render(fmt.Sprintf("%d/%d nodes", done, p.total))
	return lipgloss.JoinHorizontal(lipgloss.Left, label, " ", p.bar.ViewAs(p.Ratio(done)))
}
