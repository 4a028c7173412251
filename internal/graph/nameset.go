package graph

import (
	"sort"

	gojson "github.com/goccy/go-json"
)

// NameSet is an unordered set of task names. It encodes as a sorted JSON array.
type NameSet map[string]struct{}

// NewNameSet returns a set holding the given names.
func NewNameSet(names ...string) NameSet {
	s := make(NameSet, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}

func (s NameSet) Add(name string) { s[name] = struct{}{} }

func (s NameSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// AddAll adds every member of other.
func (s NameSet) AddAll(other NameSet) {
	for n := range other {
		s[n] = struct{}{}
	}
}

// Sorted returns the members in lexical order.
func (s NameSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for n := range s {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func (s NameSet) MarshalJSON() ([]byte, error) {
	return gojson.Marshal(s.Sorted())
}

func (s *NameSet) UnmarshalJSON(data []byte) error {
	var names []string
	if err := gojson.Unmarshal(data, &names); err != nil {
		return err
	}
	*s = NewNameSet(names...)
	return nil
}
