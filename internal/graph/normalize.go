package graph

// Normalize converts every task's wait list into control links
// (W._wait -> T._wait). Wait entries naming unknown tasks are skipped.
// A control link already present is not appended twice, so applying
// Normalize repeatedly yields the same link set.
func Normalize(s *Snapshot) {
	present := make(map[Link]struct{}, len(s.Links))
	for _, l := range s.Links {
		present[l] = struct{}{}
	}

	for _, name := range s.TaskNames() {
		for _, waitFor := range s.Tasks[name].Wait {
			if _, ok := s.Tasks[waitFor]; !ok {
				continue
			}
			l := Link{FromNode: waitFor, FromSocket: ControlSocket, ToNode: name, ToSocket: ControlSocket}
			if _, dup := present[l]; dup {
				continue
			}
			present[l] = struct{}{}
			s.Links = append(s.Links, l)
		}
	}
}

// PruneDangling removes links whose endpoints are not tasks of s, and drops
// unknown names from wait lists. It is idempotent.
func PruneDangling(s *Snapshot) {
	links := append([]Link(nil), s.Links...)
	for _, l := range links {
		if s.Tasks[l.FromNode] == nil || s.Tasks[l.ToNode] == nil {
			s.Links = removeLink(s.Links, l)
		}
	}

	for _, t := range s.Tasks {
		if len(t.Wait) == 0 {
			continue
		}
		kept := t.Wait[:0:0]
		for _, w := range t.Wait {
			if s.Tasks[w] != nil {
				kept = append(kept, w)
			}
		}
		if len(kept) == 0 {
			kept = nil
		}
		t.Wait = kept
	}
}

// removeLink drops the first link structurally equal to l.
func removeLink(links []Link, l Link) []Link {
	for i, cur := range links {
		if cur == l {
			return append(links[:i], links[i+1:]...)
		}
	}
	return links
}
