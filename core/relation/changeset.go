package relation

// ChangeSet is the minimal edit turning a baseline selection into a working one.
type ChangeSet struct {
	Added   []int `json:"added"`
	Removed []int `json:"removed"`
}

// Diff computes the ChangeSet from baseline to working.
// Added and Removed are sorted, disjoint and never nil.
func Diff(baseline, working Set) ChangeSet {
	return ChangeSet{
		Added:   working.Minus(baseline),
		Removed: baseline.Minus(working),
	}
}

func (cs ChangeSet) IsEmpty() bool {
	return len(cs.Added) == 0 && len(cs.Removed) == 0
}

// Overlap returns the IDs listed both as added and removed.
// A ChangeSet built by Diff never overlaps; this guards decoded input.
func (cs ChangeSet) Overlap() []int {
	removed := NewSet(cs.Removed...)
	overlap := NewSet()
	for _, id := range cs.Added {
		if removed.Has(id) {
			overlap.Add(id)
		}
	}
	return overlap.Slice()
}

// IDs returns every ID the ChangeSet touches, sorted.
func (cs ChangeSet) IDs() []int {
	all := NewSet(cs.Added...)
	for _, id := range cs.Removed {
		all.Add(id)
	}
	return all.Slice()
}

// Apply returns a copy of s with the ChangeSet applied.
func (cs ChangeSet) Apply(s Set) Set {
	out := s.Clone()
	for _, id := range cs.Removed {
		out.Remove(id)
	}
	for _, id := range cs.Added {
		out.Add(id)
	}
	return out
}

