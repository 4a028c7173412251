package graph

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// newTask builds an "add"-style task with inputs x, y and output result plus
// the built-in control sockets.
func newTask(t *testing.T, name string) *Task {
	t.Helper()
	task := &Task{
		Name:       name,
		Identifier: "add",
		NodeType:   NodeCalcFunction,
		Executor:   NewFunctionExecutor("arith", "add", nil),
	}
	for _, in := range []string{"x", "y", ControlSocket} {
		task.Inputs = append(task.Inputs, &Socket{Name: in})
	}
	for _, out := range []string{"result", ControlSocket, OutputsSocket} {
		task.Outputs = append(task.Outputs, &Socket{Name: out})
	}
	return task
}

// chain builds A -> B -> C where each task feeds the next one's x input.
func chain(t *testing.T) *Snapshot {
	t.Helper()
	s := NewSnapshot("chain")
	for _, name := range []string{"A", "B", "C"} {
		task := newTask(t, name)
		require.NoError(t, task.SetInput("y", 1))
		s.AddTask(task)
	}
	require.NoError(t, s.Tasks["A"].SetInput("x", 1))
	s.AddLink("A", "result", "B", "x")
	s.AddLink("B", "result", "C", "x")
	return s
}

// prepared runs the save-time passes on a copy of s.
func prepared(t *testing.T, s *Snapshot) *Snapshot {
	t.Helper()
	work := Clone(s)
	SealExecutors(work)
	Normalize(work)
	PruneDangling(work)
	wired, err := Wire(work)
	require.NoError(t, err)
	wired.Connectivity = Analyze(wired)
	return wired
}
