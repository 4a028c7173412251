package graph

import (
	"github.com/mohae/deepcopy"
)

// Clone returns a deep copy of s.
func Clone(s *Snapshot) *Snapshot {
	if s == nil {
		return nil
	}
	return deepcopy.Copy(s).(*Snapshot)
}

// Wire rebuilds every socket's link list from the snapshot's edge list and
// returns the wired graph as a new snapshot; s itself is left untouched.
//
// Each link is attached to the target task's input named ToSocket and the
// source task's output named FromSocket. A link naming a socket that does not
// exist is a *GraphIntegrityError and no wired snapshot is returned.
// Structurally equal links collapse to one.
func Wire(s *Snapshot) (*Snapshot, error) {
	wired := Clone(s)

	seen := make(map[Link]struct{}, len(wired.Links))
	links := wired.Links[:0:0]
	for _, l := range wired.Links {
		if _, dup := seen[l]; dup {
			continue
		}
		seen[l] = struct{}{}
		links = append(links, l)
	}
	if len(links) > 0 {
		wired.Links = links
	}

	for _, t := range wired.Tasks {
		for _, in := range t.Inputs {
			in.Links = nil
		}
		for _, out := range t.Outputs {
			out.Links = nil
		}
	}

	for i := range wired.Links {
		l := wired.Links[i]

		to, ok := wired.Tasks[l.ToNode]
		if !ok {
			return nil, &GraphIntegrityError{Task: l.ToNode, Socket: l.ToSocket, Link: &l}
		}
		toSocket, ok := to.Input(l.ToSocket)
		if !ok {
			return nil, &GraphIntegrityError{Task: l.ToNode, Socket: l.ToSocket, Link: &l}
		}

		from, ok := wired.Tasks[l.FromNode]
		if !ok {
			return nil, &GraphIntegrityError{Task: l.FromNode, Socket: l.FromSocket, Link: &l}
		}
		fromSocket, ok := from.Output(l.FromSocket)
		if !ok {
			return nil, &GraphIntegrityError{Task: l.FromNode, Socket: l.FromSocket, Link: &l}
		}

		toSocket.Links = append(toSocket.Links, l)
		fromSocket.Links = append(fromSocket.Links, l)
	}

	return wired, nil
}
