package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/workgraph/internal/graph"
)

const listWidth = 25

// TaskPaneModel is the task list with a scrollable detail viewport.
type TaskPaneModel struct {
	snap        *graph.Snapshot
	order       []string // display order, topological when available
	selectedIdx int
	viewport    viewport.Model
	width       int
	height      int
	focused     bool
}

// NewTaskPaneModel creates an empty task pane.
func NewTaskPaneModel() TaskPaneModel {
	return TaskPaneModel{viewport: viewport.New(0, 0)}
}

// SetSnapshot replaces the displayed run, keeping the selected task when it
// still exists.
func (m *TaskPaneModel) SetSnapshot(s *graph.Snapshot) {
	selected := m.Selected()
	m.snap = s
	m.order = displayOrder(s)
	m.selectedIdx = 0
	for i, name := range m.order {
		if name == selected {
			m.selectedIdx = i
			break
		}
	}
	m.updateViewportContent()
}

// displayOrder lists tasks upstream first when the graph is acyclic.
func displayOrder(s *graph.Snapshot) []string {
	if s == nil {
		return nil
	}
	if s.Connectivity != nil && len(s.Connectivity.Order) == len(s.Tasks) {
		return append([]string(nil), s.Connectivity.Order...)
	}
	return s.TaskNames()
}

// Update handles messages for the task pane.
func (m TaskPaneModel) Update(msg tea.Msg) (TaskPaneModel, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.SetSize(msg.Width, msg.Height)

	case tea.KeyMsg:
		if !m.focused {
			break
		}

		switch msg.String() {
		case KeyJ, KeyDown:
			if m.selectedIdx < len(m.order)-1 {
				m.selectedIdx++
				m.updateViewportContent()
			}
		case KeyK, KeyUp:
			if m.selectedIdx > 0 {
				m.selectedIdx--
				m.updateViewportContent()
			}
		default:
			m.viewport, cmd = m.viewport.Update(msg)
		}
	}

	return m, cmd
}

// View renders the task pane.
func (m TaskPaneModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	viewportWidth := m.width - listWidth - 4
	content := lipgloss.JoinHorizontal(
		lipgloss.Top,
		m.renderTaskList(),
		lipgloss.NewStyle().
			Width(viewportWidth).
			Height(m.height-2).
			Render(m.viewport.View()),
	)

	style := StyleUnfocusedBorder
	if m.focused {
		style = StyleFocusedBorder
	}
	return style.
		Width(m.width - 2).
		Height(m.height - 2).
		Render(content)
}

func (m TaskPaneModel) renderTaskList() string {
	var b strings.Builder

	title := StyleTitle.Render("Tasks")
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", min(listWidth, lipgloss.Width(title))))
	b.WriteString("\n\n")

	if len(m.order) == 0 {
		b.WriteString(StyleStatusPending.Render("No tasks"))
	}
	for i, name := range m.order {
		label := name
		if len(label) > listWidth-6 {
			label = label[:listWidth-9] + "..."
		}
		line := fmt.Sprintf("%s %s", StatusIcon(m.snap.Tasks[name]), label)
		if i == m.selectedIdx {
			line = StyleSelected.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	return lipgloss.NewStyle().
		Width(listWidth).
		Height(m.height - 2).
		Render(b.String())
}

// Selected returns the name of the selected task.
func (m TaskPaneModel) Selected() string {
	if m.selectedIdx >= 0 && m.selectedIdx < len(m.order) {
		return m.order[m.selectedIdx]
	}
	return ""
}

func (m *TaskPaneModel) updateViewportContent() {
	name := m.Selected()
	if name == "" || m.snap == nil {
		m.viewport.SetContent("No task selected")
		return
	}
	m.viewport.SetContent(renderDetail(m.snap, m.snap.Tasks[name]))
	m.viewport.GotoTop()
}

// renderDetail lists the summary table, bound inputs and upstream tasks of t.
func renderDetail(s *graph.Snapshot, t *graph.Task) string {
	var b strings.Builder
	for _, row := range graph.Summarize(t) {
		fmt.Fprintf(&b, "%s %s\n", StyleKey.Render(fmt.Sprintf("%-12s", row[0])), row[1])
	}

	b.WriteString("\n" + StyleTitle.Render("Inputs") + "\n")
	for _, in := range t.Inputs {
		if in.Name == graph.ControlSocket && len(in.Links) == 0 {
			continue
		}
		switch {
		case len(in.Links) > 0:
			from := make([]string, 0, len(in.Links))
			for _, l := range in.Links {
				from = append(from, l.FromNode+"."+l.FromSocket)
			}
			fmt.Fprintf(&b, "  %s <- %s\n", in.Name, strings.Join(from, ", "))
		case len(in.Value) > 0:
			fmt.Fprintf(&b, "  %s = %s\n", in.Name, string(in.Value))
		default:
			fmt.Fprintf(&b, "  %s\n", in.Name)
		}
	}

	if s.Connectivity != nil {
		if anc := s.Connectivity.Ancestors[t.Name]; len(anc) > 0 {
			b.WriteString("\n" + StyleTitle.Render("Depends on") + "\n")
			b.WriteString("  " + strings.Join(anc.Sorted(), ", ") + "\n")
		}
	}
	return b.String()
}

// SetSize updates the pane dimensions.
func (m *TaskPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	m.viewport.Width = max(m.width-listWidth-4, 10)
	m.viewport.Height = max(m.height-4, 5)
}

// SetFocused updates the focus state.
func (m *TaskPaneModel) SetFocused(focused bool) {
	m.focused = focused
}
