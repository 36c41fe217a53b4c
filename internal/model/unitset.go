package model

import "sort"

// UnitSet is a set of unit ids. The nil set reads as empty; call NewUnitSet
// (or Clone) before mutating. Core operations treat their inputs as
// immutable snapshots: Intersect and Subtract allocate fresh sets.
type UnitSet map[UnitID]struct{}

// NewUnitSet builds a set from the given ids.
func NewUnitSet(ids ...UnitID) UnitSet {
	s := make(UnitSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Add inserts an id into the set.
func (s UnitSet) Add(id UnitID) {
	s[id] = struct{}{}
}

// Contains reports whether id is in the set.
func (s UnitSet) Contains(id UnitID) bool {
	_, ok := s[id]
	return ok
}

// Len returns the number of ids in the set.
func (s UnitSet) Len() int {
	return len(s)
}

// Empty reports whether the set has no ids.
func (s UnitSet) Empty() bool {
	return len(s) == 0
}

// Clone returns an independent copy of the set.
func (s UnitSet) Clone() UnitSet {
	out := make(UnitSet, len(s))
	for id := range s {
		out[id] = struct{}{}
	}
	return out
}

// Intersect returns a new set containing the ids present in both sets.
func (s UnitSet) Intersect(other UnitSet) UnitSet {
	small, large := s, other
	if len(large) < len(small) {
		small, large = large, small
	}
	out := make(UnitSet)
	for id := range small {
		if large.Contains(id) {
			out[id] = struct{}{}
		}
	}
	return out
}

// Subtract returns a new set containing the ids of s absent from other.
func (s UnitSet) Subtract(other UnitSet) UnitSet {
	out := make(UnitSet)
	for id := range s {
		if !other.Contains(id) {
			out[id] = struct{}{}
		}
	}
	return out
}

// Equal reports whether both sets contain exactly the same ids.
func (s UnitSet) Equal(other UnitSet) bool {
	if len(s) != len(other) {
		return false
	}
	for id := range s {
		if !other.Contains(id) {
			return false
		}
	}
	return true
}

// IDs returns the ids in ascending order.
func (s UnitSet) IDs() []UnitID {
	ids := make([]UnitID, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
