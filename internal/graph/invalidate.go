package graph

// Planner computes which tasks must be reset after an edit.
type Planner struct {
	// Keep, when set, may exempt a downstream task from reset. It is never
	// consulted for the modified tasks themselves. The default resets every
	// descendant, since any ancestor output may have changed.
	Keep func(task string) bool
}

// Plan returns the modified tasks plus every task that has a modified task
// among its ancestors. Either the full set is computed or a
// *StaleConnectivityError is returned; a partial plan is never produced.
func (p Planner) Plan(modified NameSet, conn *Connectivity) (NameSet, error) {
	if conn == nil || conn.Ancestors == nil {
		return nil, stalef("no connectivity computed")
	}
	for name := range modified {
		if _, ok := conn.Ancestors[name]; !ok {
			return nil, stalef("task %q is missing from the connectivity map", name)
		}
	}

	reset := make(NameSet, len(modified))
	reset.AddAll(modified)

	for task, anc := range conn.Ancestors {
		if reset.Has(task) {
			continue
		}
		for name := range modified {
			if !anc.Has(name) {
				continue
			}
			if p.Keep == nil || !p.Keep(task) {
				reset.Add(task)
			}
			break
		}
	}

	return reset, nil
}

// PlanSnapshot plans against s.Connectivity after checking that it still
// describes the task structure of s.
func (p Planner) PlanSnapshot(s *Snapshot, modified NameSet) (NameSet, error) {
	if s.Connectivity == nil {
		return nil, stalef("snapshot %s has no connectivity", s.UUID)
	}
	if !s.Connectivity.Matches(s) {
		return nil, stalef("connectivity of snapshot %s does not match its links", s.UUID)
	}
	return p.Plan(modified, s.Connectivity)
}
