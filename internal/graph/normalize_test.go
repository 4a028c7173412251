package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeWaitBecomesControlLink(t *testing.T) {
	s := NewSnapshot("wait")
	for _, name := range []string{"add1", "add2", "add3"} {
		s.AddTask(newTask(t, name))
	}
	s.Tasks["add3"].Wait = []string{"add1", "add2", "ghost"}

	Normalize(s)

	require.Len(t, s.Links, 2)
	assert.Contains(t, s.Links, Link{FromNode: "add1", FromSocket: ControlSocket, ToNode: "add3", ToSocket: ControlSocket})
	assert.Contains(t, s.Links, Link{FromNode: "add2", FromSocket: ControlSocket, ToNode: "add3", ToSocket: ControlSocket})
	for _, l := range s.Links {
		assert.True(t, l.IsControl())
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	s := chain(t)
	s.Tasks["C"].Wait = []string{"A"}

	Normalize(s)
	once := append([]Link(nil), s.Links...)
	Normalize(s)

	assert.Equal(t, once, s.Links)
	assert.Len(t, s.Links, 3)
}

func TestPruneDangling(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(s *Snapshot)
		wantLinks int
	}{
		{
			name:      "nothing dangling",
			setup:     func(s *Snapshot) {},
			wantLinks: 2,
		},
		{
			name:      "removed target",
			setup:     func(s *Snapshot) { delete(s.Tasks, "C") },
			wantLinks: 1,
		},
		{
			name:      "removed middle task",
			setup:     func(s *Snapshot) { delete(s.Tasks, "B") },
			wantLinks: 0,
		},
		{
			name: "link to unknown task",
			setup: func(s *Snapshot) {
				s.AddLink("ghost", "result", "A", "y")
				s.AddLink("A", "result", "ghost", "x")
			},
			wantLinks: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := chain(t)
			tt.setup(s)

			PruneDangling(s)
			require.Len(t, s.Links, tt.wantLinks)
			for _, l := range s.Links {
				assert.Contains(t, s.Tasks, l.FromNode)
				assert.Contains(t, s.Tasks, l.ToNode)
			}

			after := append([]Link(nil), s.Links...)
			PruneDangling(s)
			assert.Equal(t, after, s.Links, "second prune must be a no-op")
		})
	}
}

func TestPruneDanglingDropsUnknownWait(t *testing.T) {
	s := chain(t)
	s.Tasks["C"].Wait = []string{"A", "gone"}
	s.Tasks["B"].Wait = []string{"gone"}

	PruneDangling(s)

	assert.Equal(t, []string{"A"}, s.Tasks["C"].Wait)
	assert.Nil(t, s.Tasks["B"].Wait)
}
