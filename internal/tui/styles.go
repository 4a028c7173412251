package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/workgraph/internal/graph"
)

// Border styles
var (
	StyleFocusedBorder = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("62"))

	StyleUnfocusedBorder = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("240"))
)

// Status styles
var (
	StyleStatusRunning = lipgloss.NewStyle().
				Foreground(lipgloss.Color("yellow")).
				Bold(true)

	StyleStatusComplete = lipgloss.NewStyle().
				Foreground(lipgloss.Color("green")).
				Bold(true)

	StyleStatusFailed = lipgloss.NewStyle().
				Foreground(lipgloss.Color("red")).
				Bold(true)

	StyleStatusPending = lipgloss.NewStyle().
				Foreground(lipgloss.Color("240"))

	StyleStatusReset = lipgloss.NewStyle().
				Foreground(lipgloss.Color("208"))
)

// UI element styles
var (
	StyleTitle = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1)

	StyleHelp = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	StyleSelected = lipgloss.NewStyle().
			Background(lipgloss.Color("62")).
			Foreground(lipgloss.Color("0"))

	StyleKey = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))
)

// StatusIcon returns a styled indicator for a task.
func StatusIcon(t *graph.Task) string {
	if t.Action == graph.ActionReset {
		return StyleStatusReset.Render("↺")
	}
	switch t.State {
	case graph.TaskRunning:
		return StyleStatusRunning.Render("●")
	case graph.TaskFinished:
		return StyleStatusComplete.Render("✓")
	case graph.TaskFailed:
		return StyleStatusFailed.Render("✗")
	case graph.TaskSkipped:
		return StyleStatusPending.Render("-")
	default:
		return StyleStatusPending.Render("○")
	}
}
