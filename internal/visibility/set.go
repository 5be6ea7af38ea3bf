package visibility

import "sort"

// Set is a set of string identifiers (interval IDs or play IDs).
type Set map[string]struct{}

// NewSet builds a Set from ids.
func NewSet(ids ...string) Set {
	s := make(Set, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Has is safe on a nil Set.
func (s Set) Has(id string) bool {
	_, ok := s[id]
	return ok
}

func (s Set) Add(id string) {
	s[id] = struct{}{}
}

func (s Set) Len() int {
	return len(s)
}

func (s Set) Clone() Set {
	out := make(Set, len(s))
	for id := range s {
		out[id] = struct{}{}
	}
	return out
}

// Sorted returns the members in ascending order.
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
