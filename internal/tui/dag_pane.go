package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/workgraph/internal/graph"
)

// StateCounts tallies the tasks of a run by execution state.
type StateCounts struct {
	Total    int
	Finished int
	Running  int
	Failed   int
	Pending  int
	Skipped  int
	// Flagged counts tasks still carrying the reset action.
	Flagged int
}

// CountStates tallies s.
func CountStates(s *graph.Snapshot) StateCounts {
	var c StateCounts
	if s == nil {
		return c
	}
	for _, t := range s.Tasks {
		c.Total++
		if t.Action == graph.ActionReset {
			c.Flagged++
		}
		switch t.State {
		case graph.TaskFinished:
			c.Finished++
		case graph.TaskRunning:
			c.Running++
		case graph.TaskFailed:
			c.Failed++
		case graph.TaskSkipped:
			c.Skipped++
		default:
			c.Pending++
		}
	}
	return c
}

// DAGPaneModel shows the state summary of the run.
type DAGPaneModel struct {
	name    string
	counts  StateCounts
	width   int
	height  int
	focused bool
}

// NewDAGPaneModel creates a new DAG pane model.
func NewDAGPaneModel() DAGPaneModel {
	return DAGPaneModel{}
}

// SetSnapshot recomputes the summary from s.
func (m *DAGPaneModel) SetSnapshot(s *graph.Snapshot) {
	m.counts = CountStates(s)
	if s != nil {
		m.name = s.Name
	}
}

// Update handles messages for the DAG pane.
func (m DAGPaneModel) Update(msg tea.Msg) (DAGPaneModel, tea.Cmd) {
	if msg, ok := msg.(tea.WindowSizeMsg); ok {
		m.width = msg.Width
		m.height = msg.Height
	}
	return m, nil
}

// View renders the DAG pane.
func (m DAGPaneModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	var b strings.Builder

	title := StyleTitle.Render("Run " + m.name)
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", lipgloss.Width(title)))
	b.WriteString("\n\n")

	c := m.counts
	b.WriteString(fmt.Sprintf("Total:    %d\n", c.Total))
	b.WriteString(fmt.Sprintf("Finished: %s\n", StyleStatusComplete.Render(fmt.Sprintf("%d", c.Finished))))
	b.WriteString(fmt.Sprintf("Running:  %s\n", StyleStatusRunning.Render(fmt.Sprintf("%d", c.Running))))
	b.WriteString(fmt.Sprintf("Failed:   %s\n", StyleStatusFailed.Render(fmt.Sprintf("%d", c.Failed))))
	b.WriteString(fmt.Sprintf("Pending:  %s\n", StyleStatusPending.Render(fmt.Sprintf("%d", c.Pending))))
	if c.Flagged > 0 {
		b.WriteString(fmt.Sprintf("Flagged:  %s\n", StyleStatusReset.Render(fmt.Sprintf("%d", c.Flagged))))
	}

	b.WriteString("\n")

	if c.Total > 0 {
		barWidth := min(m.width-4, 40)
		finishedWidth := (c.Finished * barWidth) / c.Total
		failedWidth := (c.Failed * barWidth) / c.Total
		runningWidth := (c.Running * barWidth) / c.Total
		pendingWidth := barWidth - finishedWidth - failedWidth - runningWidth

		bar := StyleStatusComplete.Render(strings.Repeat("=", max(0, finishedWidth)))
		bar += StyleStatusFailed.Render(strings.Repeat("!", max(0, failedWidth)))
		bar += StyleStatusRunning.Render(strings.Repeat("-", max(0, runningWidth)))
		bar += StyleStatusPending.Render(strings.Repeat(".", max(0, pendingWidth)))

		b.WriteString(fmt.Sprintf("[%s]  %d/%d\n", bar, c.Finished, c.Total))
	}

	style := StyleUnfocusedBorder
	if m.focused {
		style = StyleFocusedBorder
	}

	return style.
		Width(m.width - 2).
		Height(m.height - 2).
		Render(b.String())
}

// SetSize updates the pane dimensions.
func (m *DAGPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// SetFocused updates the focus state.
func (m *DAGPaneModel) SetFocused(focused bool) {
	m.focused = focused
}
