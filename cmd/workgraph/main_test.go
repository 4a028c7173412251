package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	gojson "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/workgraph/internal/config"
	"github.com/aristath/workgraph/internal/graph"
	"github.com/aristath/workgraph/internal/registry"
)

type cli struct {
	t          *testing.T
	dir        string
	configPath string
}

func newCLI(t *testing.T) *cli {
	t.Helper()
	dir := t.TempDir()

	cfg := config.DefaultConfig()
	cfg.Store.Path = filepath.Join(dir, "runs.db")
	cfg.Engine.StatePath = filepath.Join(dir, "state.db")
	cfg.Registry.Path = filepath.Join(dir, "descriptors.yaml")
	cfg.Log.Level = "error"
	path := filepath.Join(dir, "config.json")
	require.NoError(t, config.Save(cfg, path))

	return &cli{t: t, dir: dir, configPath: path}
}

func (c *cli) run(args ...string) (int, string, string) {
	c.t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), append([]string{"-config", c.configPath}, args...), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

// writeSnapshot stores s as a JSON file and returns its path.
func (c *cli) writeSnapshot(s *graph.Snapshot) string {
	c.t.Helper()
	data, err := gojson.Marshal(s)
	require.NoError(c.t, err)
	path := filepath.Join(c.dir, "snapshot.json")
	require.NoError(c.t, os.WriteFile(path, data, 0644))
	return path
}

func pipeline(t *testing.T) *graph.Snapshot {
	t.Helper()
	reg := registry.New()
	require.NoError(t, reg.Register(registry.Descriptor{
		Identifier: "scale",
		NodeType:   graph.NodeCalcFunction,
		Inputs:     []string{"value", "factor"},
		Outputs:    []string{"result"},
		Executor:   graph.NewFunctionExecutor("math", "scale", nil),
	}))

	s := graph.NewSnapshot("pipeline")
	for _, name := range []string{"first", "second"} {
		task, err := reg.NewTask(name, "scale", map[string]any{"value": 1, "factor": 2})
		require.NoError(t, err)
		s.AddTask(task)
	}
	s.AddLink("first", "result", "second", "value")
	return s
}

func TestSaveShowListDelete(t *testing.T) {
	c := newCLI(t)
	s := pipeline(t)

	code, out, errOut := c.run("save", c.writeSnapshot(s))
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "run "+s.UUID+" saved (2 tasks)")

	code, out, _ = c.run("list")
	require.Equal(t, 0, code)
	assert.Contains(t, out, s.UUID)
	assert.Contains(t, out, "pipeline")

	code, out, _ = c.run("show", s.UUID)
	require.Equal(t, 0, code)
	var view graph.View
	require.NoError(t, gojson.Unmarshal([]byte(out), &view))
	assert.Equal(t, []graph.SocketRef{{Name: "value"}}, view.Nodes["second"].Inputs)

	code, out, _ = c.run("show", "-task", "second", s.UUID)
	require.Equal(t, 0, code)
	assert.Contains(t, out, "math.scale")
	assert.Contains(t, out, "PENDING")

	// Editing the first task resets both.
	require.NoError(t, s.Tasks["first"].SetInput("factor", 3))
	code, out, errOut = c.run("save", c.writeSnapshot(s))
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "modified: first")
	assert.Contains(t, out, "reset: first, second")

	code, out, _ = c.run("delete", s.UUID)
	require.Equal(t, 0, code)
	assert.Contains(t, out, "deleted")

	code, out, _ = c.run("list")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "no runs")
}

func TestSaveRestartAndReset(t *testing.T) {
	c := newCLI(t)
	s := pipeline(t)
	code, _, errOut := c.run("save", c.writeSnapshot(s))
	require.Equal(t, 0, code, errOut)

	restart := graph.Clone(s)
	restart.UUID = ""
	require.NoError(t, restart.Tasks["second"].SetInput("factor", 5))
	code, out, errOut := c.run("save", "-restart-from", s.UUID, c.writeSnapshot(restart))
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "reset: second")
	assert.NotContains(t, out, s.UUID, "a restart gets its own run id")

	code, out, errOut = c.run("save", "-reset", c.writeSnapshot(s))
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "reset: first, second")
}

func TestIntegrityErrorExitCode(t *testing.T) {
	c := newCLI(t)
	s := pipeline(t)
	s.AddLink("first", "result", "second", "missing")

	code, _, errOut := c.run("save", c.writeSnapshot(s))
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "missing")
}

func TestUsageErrors(t *testing.T) {
	c := newCLI(t)

	tests := []struct {
		name string
		args []string
	}{
		{"no command", nil},
		{"unknown command", []string{"frobnicate"}},
		{"save without file", []string{"save"}},
		{"show without run", []string{"show"}},
		{"list with argument", []string{"list", "extra"}},
		{"unknown flag", []string{"show", "-nope", "run"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, errOut := c.run(tt.args...)
			assert.Equal(t, 2, code)
			assert.Contains(t, errOut, "usage: workgraph")
		})
	}
}

func TestShowUnknownRun(t *testing.T) {
	c := newCLI(t)
	code, _, errOut := c.run("show", "nope")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "run nope not found")
}

func TestBadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("x = 1"), 0644))

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-config", path, "list"}, &stdout, &stderr)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "Error loading config")
}

const scaleDescriptors = `
- identifier: scale
  node_type: calcfunction
  inputs: [value, factor]
  outputs: [result]
  executor:
    kind: function
    function:
      module: math
      name: scale
`

func TestSaveResolvesAgainstDescriptors(t *testing.T) {
	c := newCLI(t)
	require.NoError(t, os.WriteFile(filepath.Join(c.dir, "descriptors.yaml"), []byte(scaleDescriptors), 0644))

	code, out, errOut := c.run("descriptors")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "scale")
	assert.Contains(t, out, "value, factor")

	// Bare records: no sockets beyond the bound values, a forged identity.
	bare := `{"uuid": "run-bare", "name": "bare", "tasks": {
		"first": {"name": "first", "identifier": "scale",
			"inputs": [{"name": "value", "value": 1}, {"name": "factor", "value": 2}],
			"executor": {"kind": "function", "identity": "forged", "function": {"module": "math", "name": "other"}}},
		"second": {"name": "second", "identifier": "scale", "inputs": [{"name": "factor", "value": 2}]}
	}, "links": [{"from_node": "first", "from_socket": "result", "to_node": "second", "to_socket": "value"}]}`
	path := filepath.Join(c.dir, "bare.json")
	require.NoError(t, os.WriteFile(path, []byte(bare), 0644))

	code, out, errOut = c.run("save", path)
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "run run-bare saved (2 tasks)")

	code, out, _ = c.run("show", "-task", "first", "run-bare")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "math.scale")
	assert.NotContains(t, out, "math.other")

	unknown := `{"uuid": "run-unknown", "tasks": {"x": {"name": "x", "identifier": "nope"}}}`
	require.NoError(t, os.WriteFile(path, []byte(unknown), 0644))
	code, _, errOut = c.run("save", path)
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "unknown task identifier")
}

func TestDescriptorsWithoutFile(t *testing.T) {
	c := newCLI(t)
	code, out, errOut := c.run("descriptors")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "no descriptors file")
}

func TestInitWritesDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")
	runInit := func(args ...string) (int, string, string) {
		var stdout, stderr bytes.Buffer
		code := run(context.Background(), append([]string{"-config", path, "init"}, args...), &stdout, &stderr)
		return code, stdout.String(), stderr.String()
	}

	code, out, errOut := runInit()
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "wrote "+path)

	cfg, err := config.Load("", path)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfig(), cfg)

	code, _, errOut = runInit()
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "already exists")

	code, _, errOut = runInit("-force")
	assert.Equal(t, 0, code, errOut)

	code, _, errOut = runInit("extra")
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, "usage: workgraph")
}
