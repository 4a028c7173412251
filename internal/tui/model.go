// Package tui is a terminal viewer for a stored run. It reloads the run
// whenever the event bus reports a save of it, and polls the store for
// versions saved by other processes.
package tui

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/workgraph/internal/events"
	"github.com/aristath/workgraph/internal/graph"
)

// PaneID identifies which pane is focused.
type PaneID int

const (
	PaneTasks PaneID = iota
	PaneSummary
	paneCount
)

// Source loads stored runs.
type Source interface {
	Load(ctx context.Context, runID string) (*graph.Snapshot, bool, error)
}

// snapshotMsg carries a freshly loaded run.
type snapshotMsg struct {
	snap *graph.Snapshot
}

// pollMsg asks for a reload check.
type pollMsg struct{}

// loadErrMsg reports a failed or empty load.
type loadErrMsg struct {
	err error
}

// Model is the root Bubble Tea model for the TUI.
type Model struct {
	taskPane    TaskPaneModel
	dagPane     DAGPaneModel
	focusedPane PaneID
	source      Source
	runID       string
	eventSub    <-chan events.Event
	poll        time.Duration
	lastUpdate  time.Time
	loaded      bool
	status      string
	width       int
	height      int
	quitting    bool
}

// New creates a viewer for runID. eventSub may be nil, in which case the run
// is only reloaded on request.
func New(source Source, runID string, eventSub <-chan events.Event) Model {
	return Model{
		taskPane:    NewTaskPaneModel(),
		dagPane:     NewDAGPaneModel(),
		focusedPane: PaneTasks,
		source:      source,
		runID:       runID,
		eventSub:    eventSub,
		status:      "Loading...",
	}
}

// WithPollInterval makes the viewer check the store every d. Zero disables polling.
func (m Model) WithPollInterval(d time.Duration) Model {
	m.poll = d
	return m
}

// Init loads the run and starts listening for events.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.load(), waitForEvent(m.eventSub), m.tick())
}

func (m Model) tick() tea.Cmd {
	if m.poll <= 0 {
		return nil
	}
	return tea.Tick(m.poll, func(time.Time) tea.Msg { return pollMsg{} })
}

func (m Model) load() tea.Cmd {
	source, runID := m.source, m.runID
	return func() tea.Msg {
		snap, found, err := source.Load(context.Background(), runID)
		if err != nil {
			return loadErrMsg{err: err}
		}
		if !found {
			return loadErrMsg{err: fmt.Errorf("run %s not found", runID)}
		}
		return snapshotMsg{snap: snap}
	}
}

// waitForEvent returns a command that waits for the next event from the event bus.
func waitForEvent(sub <-chan events.Event) tea.Cmd {
	if sub == nil {
		return nil
	}
	return func() tea.Msg {
		event, ok := <-sub
		if !ok {
			return nil // bus closed
		}
		return event
	}
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case KeyQuit, KeyCtrlC:
			m.quitting = true
			return m, tea.Quit

		case KeyReload:
			cmds = append(cmds, m.load())

		case KeyTab, KeyShiftTab:
			// Two panes: both directions toggle.
			m.focusedPane = (m.focusedPane + 1) % paneCount
			m.updateFocusStates()

		case KeyPane1:
			m.focusedPane = PaneTasks
			m.updateFocusStates()

		case KeyPane2:
			m.focusedPane = PaneSummary
			m.updateFocusStates()

		default:
			if m.focusedPane == PaneTasks {
				var cmd tea.Cmd
				m.taskPane, cmd = m.taskPane.Update(msg)
				cmds = append(cmds, cmd)
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.computeLayout()

	case pollMsg:
		cmds = append(cmds, m.load(), m.tick())

	case snapshotMsg:
		if m.loaded && m.status == "" && msg.snap.LastUpdate.Equal(m.lastUpdate) {
			// Same version as on screen.
			break
		}
		m.loaded = true
		m.lastUpdate = msg.snap.LastUpdate
		m.status = ""
		m.taskPane.SetSnapshot(msg.snap)
		m.dagPane.SetSnapshot(msg.snap)

	case loadErrMsg:
		m.status = "Error: " + msg.err.Error()

	case events.SnapshotSavedEvent:
		if msg.Run == m.runID {
			cmds = append(cmds, m.load())
		}
		cmds = append(cmds, waitForEvent(m.eventSub))

	case events.Event:
		// Diff and reset events are followed by a save event.
		cmds = append(cmds, waitForEvent(m.eventSub))
	}

	return m, tea.Batch(cmds...)
}

// View renders the TUI.
func (m Model) View() string {
	if m.quitting {
		return "Goodbye!\n"
	}

	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	if m.status != "" {
		return lipgloss.JoinVertical(lipgloss.Left, StyleTitle.Render(m.status), HelpView())
	}

	mainContent := lipgloss.JoinHorizontal(lipgloss.Top, m.taskPane.View(), m.dagPane.View())
	return lipgloss.JoinVertical(lipgloss.Left, mainContent, HelpView())
}

// computeLayout calculates pane dimensions and updates all child models.
func (m *Model) computeLayout() {
	leftWidth := (m.width * 70) / 100
	rightWidth := m.width - leftWidth
	availableHeight := m.height - 1 // reserve 1 line for help bar

	m.taskPane.SetSize(leftWidth, availableHeight)
	m.dagPane.SetSize(rightWidth, availableHeight)

	m.updateFocusStates()
}

// updateFocusStates updates the focus state of all panes.
func (m *Model) updateFocusStates() {
	m.taskPane.SetFocused(m.focusedPane == PaneTasks)
	m.dagPane.SetFocused(m.focusedPane == PaneSummary)
}
