package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyzeChain(t *testing.T) {
	s := prepared(t, chain(t))
	conn := s.Connectivity

	assert.Empty(t, conn.Ancestors["A"])
	assert.Equal(t, []string{"A"}, conn.Ancestors["B"].Sorted())
	assert.Equal(t, []string{"A", "B"}, conn.Ancestors["C"].Sorted())
	assert.Equal(t, []string{"A", "B", "C"}, conn.Order)

	assert.Equal(t, []string{"B", "C"}, conn.Descendants("A").Sorted())
	assert.True(t, conn.DependsOn("C", "A"))
	assert.False(t, conn.DependsOn("A", "C"))
}

func TestAnalyzeDiamondAndParallelLinks(t *testing.T) {
	s := NewSnapshot("diamond")
	for _, name := range []string{"src", "left", "right", "sink"} {
		s.AddTask(newTask(t, name))
	}
	s.AddLink("src", "result", "left", "x")
	s.AddLink("src", "result", "left", "y")
	s.AddLink("src", "result", "right", "x")
	s.AddLink("left", "result", "sink", "x")
	s.AddLink("right", "result", "sink", "y")

	conn := Analyze(s)

	assert.Equal(t, []string{"src"}, conn.Ancestors["left"].Sorted())
	assert.Equal(t, []string{"left", "right", "src"}, conn.Ancestors["sink"].Sorted())
	require.Len(t, conn.Order, 4)
	assert.Equal(t, "src", conn.Order[0])
	assert.Equal(t, "sink", conn.Order[3])
}

func TestAnalyzeControlLinksCount(t *testing.T) {
	s := NewSnapshot("wait")
	s.AddTask(newTask(t, "first"))
	s.AddTask(newTask(t, "second"))
	s.Tasks["second"].Wait = []string{"first"}

	s = prepared(t, s)

	assert.True(t, s.Connectivity.DependsOn("second", "first"))
}

func TestAnalyzeCycleTerminates(t *testing.T) {
	s := chain(t)
	s.AddLink("C", "result", "A", "x")

	conn := Analyze(s)

	for _, name := range []string{"A", "B", "C"} {
		assert.Equal(t, []string{"A", "B", "C"}, conn.Ancestors[name].Sorted(), name)
	}
	assert.Nil(t, conn.Order)
}

func TestAnalyzeEmptyGraph(t *testing.T) {
	conn := Analyze(NewSnapshot("empty"))
	assert.Empty(t, conn.Ancestors)
	assert.NotEmpty(t, conn.Digest)
}

func TestConnectivityMatches(t *testing.T) {
	s := prepared(t, chain(t))
	require.True(t, s.Connectivity.Matches(s))

	// Value edits do not change the structure.
	require.NoError(t, s.Tasks["A"].SetInput("x", 42))
	assert.True(t, s.Connectivity.Matches(s))

	s.AddTask(newTask(t, "D"))
	s.AddLink("C", "result", "D", "x")
	assert.False(t, s.Connectivity.Matches(s))

	var missing *Connectivity
	assert.False(t, missing.Matches(s))
}
