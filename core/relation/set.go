package relation

import "sort"

// Set is a set of entity IDs.
type Set map[int]struct{}

func NewSet(ids ...int) Set {
	s := make(Set, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s Set) Has(id int) bool {
	_, ok := s[id]
	return ok
}

func (s Set) Add(id int) {
	s[id] = struct{}{}
}

func (s Set) Remove(id int) {
	delete(s, id)
}

func (s Set) Len() int {
	return len(s)
}

// Clone returns a copy of s that shares no storage with it.
func (s Set) Clone() Set {
	c := make(Set, len(s))
	for id := range s {
		c[id] = struct{}{}
	}
	return c
}

// Equal reports whether s and o hold exactly the same IDs.
func (s Set) Equal(o Set) bool {
	if len(s) != len(o) {
		return false
	}
	for id := range s {
		if !o.Has(id) {
			return false
		}
	}
	return true
}

// HasAll reports whether every one of ids is in s.
func (s Set) HasAll(ids []int) bool {
	for _, id := range ids {
		if !s.Has(id) {
			return false
		}
	}
	return true
}

// Minus returns the IDs of s that are not in o, in ascending order.
// The result is never nil.
func (s Set) Minus(o Set) []int {
	diff := make([]int, 0)
	for id := range s {
		if !o.Has(id) {
			diff = append(diff, id)
		}
	}
	sort.Ints(diff)
	return diff
}

// Slice returns the IDs of s in ascending order.
func (s Set) Slice() []int {
	ids := make([]int, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
