package graph

import (
	"encoding/json"
	"fmt"
	"sort"
)

// MetadataUpdate lists run-level changes between two snapshots, independent
// of individual task changes. Nil/empty fields mean "unchanged".
type MetadataUpdate struct {
	Name           *string                    `json:"name,omitempty"`
	State          *RunState                  `json:"state,omitempty"`
	Context        map[string]json.RawMessage `json:"context,omitempty"` // Added or changed keys
	RemovedContext []string                   `json:"removed_context,omitempty"`
	Connectivity   *Connectivity              `json:"connectivity,omitempty"` // Set when the task structure changed
}

// Empty reports whether nothing changed at run level.
func (m MetadataUpdate) Empty() bool {
	return m.Name == nil && m.State == nil && len(m.Context) == 0 &&
		len(m.RemovedContext) == 0 && m.Connectivity == nil
}

// DiffResult classifies the tasks of a new snapshot against the previous one.
type DiffResult struct {
	New      NameSet        `json:"new"`
	Modified NameSet        `json:"modified"`
	Removed  NameSet        `json:"removed"`
	Metadata MetadataUpdate `json:"metadata"`
}

// Diff compares cur against prev. Both snapshots are expected to be wired so
// that inbound links take part in the comparison.
//
// A task only in cur is new, a task only in prev is removed, and a task in
// both is modified when its Fingerprint differs; a changed executor therefore
// counts as a modification even when inputs are identical.
func Diff(prev, cur *Snapshot) (*DiffResult, error) {
	res := &DiffResult{
		New:      make(NameSet),
		Modified: make(NameSet),
		Removed:  make(NameSet),
	}

	for _, name := range cur.TaskNames() {
		before, ok := prev.Tasks[name]
		if !ok {
			res.New.Add(name)
			continue
		}
		a, err := Fingerprint(before)
		if err != nil {
			return nil, fmt.Errorf("fingerprint previous: %w", err)
		}
		b, err := Fingerprint(cur.Tasks[name])
		if err != nil {
			return nil, fmt.Errorf("fingerprint current: %w", err)
		}
		if a != b {
			res.Modified.Add(name)
		}
	}

	for name := range prev.Tasks {
		if _, ok := cur.Tasks[name]; !ok {
			res.Removed.Add(name)
		}
	}

	meta, err := diffMetadata(prev, cur)
	if err != nil {
		return nil, err
	}
	res.Metadata = meta
	return res, nil
}

func diffMetadata(prev, cur *Snapshot) (MetadataUpdate, error) {
	var m MetadataUpdate

	if prev.Name != cur.Name {
		name := cur.Name
		m.Name = &name
	}
	if prev.State != cur.State {
		state := cur.State
		m.State = &state
	}

	for k, v := range cur.Context {
		old, ok := prev.Context[k]
		if ok {
			a, err := canonicalJSON(old)
			if err != nil {
				return m, fmt.Errorf("context %q: %w", k, err)
			}
			b, err := canonicalJSON(v)
			if err != nil {
				return m, fmt.Errorf("context %q: %w", k, err)
			}
			if a == b {
				continue
			}
		}
		if m.Context == nil {
			m.Context = make(map[string]json.RawMessage)
		}
		m.Context[k] = v
	}
	for k := range prev.Context {
		if _, ok := cur.Context[k]; !ok {
			m.RemovedContext = append(m.RemovedContext, k)
		}
	}
	sort.Strings(m.RemovedContext)

	prevDigest := ""
	if prev.Connectivity != nil {
		prevDigest = prev.Connectivity.Digest
	}
	if cur.Connectivity != nil && cur.Connectivity.Digest != prevDigest {
		m.Connectivity = cur.Connectivity
	}

	return m, nil
}
