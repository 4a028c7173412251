package graph

import (
	"sort"
	"strconv"

	"github.com/gammazero/toposort"
	"github.com/mitchellh/hashstructure/v2"
)

// Connectivity is the per-task transitive-ancestor index of a wired graph.
// It is derived data: recomputed on every save and stored only inside its snapshot.
type Connectivity struct {
	// Ancestors maps each task to every task that can reach it through links.
	Ancestors map[string]NameSet `json:"ancestors"`
	// Order is a topological order of the tasks, nil when the graph has a cycle.
	Order []string `json:"order"`
	// Digest identifies the task set and task-level edges the index was built from.
	Digest string `json:"digest"`
}

// Analyze computes the connectivity of s. Sockets are ignored: parallel links
// between the same pair of tasks collapse into a single edge.
//
// Cycles are tolerated. Every task's ancestor set is computed with visited
// marking, so the walk terminates; a task on a cycle is its own ancestor and
// Order is left nil.
func Analyze(s *Snapshot) *Connectivity {
	names := s.TaskNames()
	preds := predecessors(s)

	ancestors := make(map[string]NameSet, len(names))
	for _, name := range names {
		visited := make(NameSet)
		stack := append([]string(nil), preds[name]...)
		for len(stack) > 0 {
			cur := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if visited.Has(cur) {
				continue
			}
			visited.Add(cur)
			stack = append(stack, preds[cur]...)
		}
		ancestors[name] = visited
	}

	return &Connectivity{
		Ancestors: ancestors,
		Order:     topoOrder(names, preds),
		Digest:    structureDigest(names, preds),
	}
}

// Descendants returns every task that has name among its ancestors.
func (c *Connectivity) Descendants(name string) NameSet {
	out := make(NameSet)
	for task, anc := range c.Ancestors {
		if anc.Has(name) {
			out.Add(task)
		}
	}
	return out
}

// DependsOn reports whether ancestor can reach task.
func (c *Connectivity) DependsOn(task, ancestor string) bool {
	return c.Ancestors[task].Has(ancestor)
}

// Matches reports whether c was computed from the current structure of s.
func (c *Connectivity) Matches(s *Snapshot) bool {
	if c == nil {
		return false
	}
	return c.Digest == structureDigest(s.TaskNames(), predecessors(s))
}

// predecessors maps each task to its direct upstream tasks, deduplicated and sorted.
// Links with an endpoint outside the task set are ignored.
func predecessors(s *Snapshot) map[string][]string {
	sets := make(map[string]NameSet, len(s.Tasks))
	for _, l := range s.Links {
		if s.Tasks[l.FromNode] == nil || s.Tasks[l.ToNode] == nil {
			continue
		}
		if sets[l.ToNode] == nil {
			sets[l.ToNode] = make(NameSet)
		}
		sets[l.ToNode].Add(l.FromNode)
	}
	preds := make(map[string][]string, len(sets))
	for to, from := range sets {
		preds[to] = from.Sorted()
	}
	return preds
}

func topoOrder(names []string, preds map[string][]string) []string {
	var edges []toposort.Edge
	for _, name := range names {
		if len(preds[name]) == 0 {
			// Roots need an edge from nil to be included in the result
			edges = append(edges, toposort.Edge{nil, name})
			continue
		}
		for _, p := range preds[name] {
			edges = append(edges, toposort.Edge{p, name})
		}
	}

	sorted, err := toposort.Toposort(edges)
	if err != nil {
		return nil
	}

	order := make([]string, 0, len(names))
	for _, id := range sorted {
		if id != nil {
			order = append(order, id.(string))
		}
	}
	if len(order) != len(names) {
		// Tasks that sit only on a cycle never reach the output.
		return nil
	}
	return order
}

type structure struct {
	Tasks []string
	Edges []string
}

func structureDigest(names []string, preds map[string][]string) string {
	st := structure{Tasks: names}
	for _, to := range names {
		for _, from := range preds[to] {
			st.Edges = append(st.Edges, from+"\x00"+to)
		}
	}
	sort.Strings(st.Edges)

	h, err := hashstructure.Hash(st, hashstructure.FormatV2, nil)
	if err != nil {
		// structure holds only strings.
		panic(err)
	}
	return strconv.FormatUint(h, 16)
}
