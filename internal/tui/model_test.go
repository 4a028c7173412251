package tui

import (
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/workgraph/internal/events"
	"github.com/aristath/workgraph/internal/graph"
)

type mapSource map[string]*graph.Snapshot

func (s mapSource) Load(_ context.Context, runID string) (*graph.Snapshot, bool, error) {
	snap, ok := s[runID]
	return snap, ok, nil
}

func viewerSnapshot(t *testing.T) *graph.Snapshot {
	t.Helper()
	s := graph.NewSnapshot("viewer")
	for _, name := range []string{"fetch", "train", "report"} {
		s.AddTask(&graph.Task{
			Name:       name,
			Identifier: name,
			Executor:   graph.NewProgramExecutor(name, nil, ""),
			Inputs:     []*graph.Socket{{Name: "in"}, {Name: graph.ControlSocket}},
			Outputs:    []*graph.Socket{{Name: "out"}, {Name: graph.ControlSocket}, {Name: graph.OutputsSocket}},
		})
	}
	s.Tasks["fetch"].State = graph.TaskFinished
	s.Tasks["train"].State = graph.TaskFailed
	s.Tasks["report"].Action = graph.ActionReset
	s.AddLink("fetch", "out", "train", "in")
	s.AddLink("train", "out", "report", "in")

	wired, err := graph.Wire(s)
	require.NoError(t, err)
	wired.Connectivity = graph.Analyze(wired)
	return wired
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func loaded(t *testing.T) (Model, *graph.Snapshot) {
	t.Helper()
	snap := viewerSnapshot(t)
	m := New(mapSource{snap.UUID: snap}, snap.UUID, nil)
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 120, Height: 30})

	msg := m.load()()
	require.IsType(t, snapshotMsg{}, msg)
	m, _ = update(t, m, msg)
	return m, snap
}

func TestViewerListsTasksInDependencyOrder(t *testing.T) {
	m, _ := loaded(t)

	assert.Equal(t, []string{"fetch", "train", "report"}, m.taskPane.order)
	assert.Equal(t, "fetch", m.taskPane.Selected())

	view := m.View()
	for _, name := range []string{"fetch", "train", "report", "Run viewer"} {
		assert.Contains(t, view, name)
	}
}

func TestViewerSelection(t *testing.T) {
	m, _ := loaded(t)

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("j")})
	assert.Equal(t, "train", m.taskPane.Selected())
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("j")})
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("j")})
	assert.Equal(t, "report", m.taskPane.Selected(), "selection stops at the last task")

	// Keys do not reach the task list once the summary pane has focus.
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("2")})
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("k")})
	assert.Equal(t, "report", m.taskPane.Selected())
}

func TestViewerKeepsSelectionOnReload(t *testing.T) {
	m, snap := loaded(t)
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("j")})

	next := graph.Clone(snap)
	next.LastUpdate = snap.LastUpdate.Add(time.Second)
	delete(next.Tasks, "fetch")
	next.Links = nil
	next.Connectivity = graph.Analyze(next)
	m, _ = update(t, m, snapshotMsg{snap: next})

	assert.Equal(t, "train", m.taskPane.Selected())
}

func TestDetailRendering(t *testing.T) {
	snap := viewerSnapshot(t)
	detail := renderDetail(snap, snap.Tasks["report"])

	assert.Contains(t, detail, "in <- train.out")
	assert.Contains(t, detail, "action")
	assert.Contains(t, detail, "fetch, train")
	assert.False(t, strings.Contains(detail, graph.ControlSocket))
}

func TestCountStates(t *testing.T) {
	c := CountStates(viewerSnapshot(t))
	assert.Equal(t, StateCounts{Total: 3, Finished: 1, Failed: 1, Pending: 1, Flagged: 1}, c)
	assert.Equal(t, StateCounts{}, CountStates(nil))
}

func TestSavedEventTriggersReload(t *testing.T) {
	m, snap := loaded(t)

	_, cmd := update(t, m, events.SnapshotSavedEvent{Run: snap.UUID})
	assert.NotNil(t, cmd)

	_, cmd = update(t, m, events.SnapshotSavedEvent{Run: "other"})
	assert.Nil(t, cmd, "no event channel and not our run: nothing to do")
}

func TestPollingPicksUpNewerVersion(t *testing.T) {
	snap := viewerSnapshot(t)
	snap.LastUpdate = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	source := mapSource{snap.UUID: snap}
	m := New(source, snap.UUID, nil).WithPollInterval(time.Millisecond)
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 120, Height: 30})
	m, _ = update(t, m, m.load()())

	_, cmd := update(t, m, pollMsg{})
	assert.NotNil(t, cmd)

	// Same LastUpdate: the screen is left alone even though content differs.
	same := graph.Clone(snap)
	delete(same.Tasks, "report")
	same.Links = same.Links[:1]
	same.Connectivity = graph.Analyze(same)
	source[snap.UUID] = same
	m, _ = update(t, m, m.load()())
	assert.Equal(t, []string{"fetch", "train", "report"}, m.taskPane.order)

	// A newer save from another process is shown.
	newer := graph.Clone(same)
	newer.LastUpdate = snap.LastUpdate.Add(time.Minute)
	source[snap.UUID] = newer
	m, _ = update(t, m, m.load()())
	assert.Equal(t, []string{"fetch", "train"}, m.taskPane.order)
	assert.Equal(t, newer.LastUpdate, m.lastUpdate)
}

func TestNoPollingByDefault(t *testing.T) {
	m := New(mapSource{}, "run", nil)
	assert.Nil(t, m.tick())
}

func TestMissingRun(t *testing.T) {
	m := New(mapSource{}, "gone", nil)
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 80, Height: 20})
	m, _ = update(t, m, m.load()())

	assert.Contains(t, m.View(), "run gone not found")
}
