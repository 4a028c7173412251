package graph

import (
	"fmt"
)

// SocketRef names one end of a link in a projected node.
type SocketRef struct {
	Name string `json:"name"`
}

// NodeView is a projected task.
type NodeView struct {
	Label   string      `json:"label"`
	Inputs  []SocketRef `json:"inputs"`
	Outputs []SocketRef `json:"outputs"`
}

// View is the editor-facing shape of a snapshot.
type View struct {
	Name  string              `json:"name"`
	UUID  string              `json:"uuid"`
	State RunState            `json:"state"`
	Nodes map[string]NodeView `json:"nodes"`
	Links []Link              `json:"links"`
}

// Project reshapes a snapshot for external viewers. Each node lists the
// linked sockets, one entry per link. Nothing is computed beyond the reshape.
func Project(s *Snapshot) View {
	v := View{
		Name:  s.Name,
		UUID:  s.UUID,
		State: s.State,
		Nodes: make(map[string]NodeView, len(s.Tasks)),
		Links: append([]Link{}, s.Links...),
	}
	for name := range s.Tasks {
		v.Nodes[name] = NodeView{Label: name, Inputs: []SocketRef{}, Outputs: []SocketRef{}}
	}
	for _, l := range s.Links {
		if to, ok := v.Nodes[l.ToNode]; ok {
			to.Inputs = append(to.Inputs, SocketRef{Name: l.ToSocket})
			v.Nodes[l.ToNode] = to
		}
		if from, ok := v.Nodes[l.FromNode]; ok {
			from.Outputs = append(from.Outputs, SocketRef{Name: l.FromSocket})
			v.Nodes[l.FromNode] = from
		}
	}
	return v
}

// SummaryRow is one key/value line of a task summary.
type SummaryRow [2]string

// Summarize returns a detail table for a task.
func Summarize(t *Task) []SummaryRow {
	state := string(t.State)
	if state == "" {
		state = string(TaskPending)
	}
	rows := []SummaryRow{
		{"name", t.Name},
		{"type", string(t.NodeType)},
		{"identifier", t.Identifier},
		{"state", state},
	}
	if t.Process != "" {
		rows = append(rows, SummaryRow{"process", t.Process})
	}
	if t.Action != "" {
		rows = append(rows, SummaryRow{"action", t.Action})
	}

	switch t.Executor.Kind {
	case ExecutorFunction:
		if fn := t.Executor.Function; fn != nil {
			rows = append(rows, SummaryRow{"executor", fmt.Sprintf("%s.%s", fn.Module, fn.Name)})
		}
	case ExecutorProgram:
		if p := t.Executor.Program; p != nil {
			exec := p.Command
			if p.Computer != "" {
				exec = fmt.Sprintf("%s@%s", p.Command, p.Computer)
			}
			rows = append(rows, SummaryRow{"executor", exec})
		}
	case ExecutorSubgraph:
		if sg := t.Executor.Subgraph; sg != nil {
			rows = append(rows, SummaryRow{"executor", "graph " + sg.Graph})
		}
	}
	if id := t.Executor.Identity; len(id) >= 12 {
		rows = append(rows, SummaryRow{"executor id", id[:12]})
	}
	return rows
}
