package domain

import "sort"

// AttrSet is a set of attribute IDs. The zero value is usable for reads.
type AttrSet map[int64]struct{}

// NewAttrSet builds a set from the given IDs.
func NewAttrSet(ids ...int64) AttrSet {
	s := make(AttrSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s AttrSet) Has(id int64) bool {
	_, ok := s[id]
	return ok
}

func (s AttrSet) Add(ids ...int64) {
	for _, id := range ids {
		s[id] = struct{}{}
	}
}

// Intersects reports whether any of ids is in the set.
func (s AttrSet) Intersects(ids []int64) bool {
	for _, id := range ids {
		if _, ok := s[id]; ok {
			return true
		}
	}
	return false
}

// Minus returns s - other as a new set.
func (s AttrSet) Minus(other AttrSet) AttrSet {
	out := make(AttrSet)
	for id := range s {
		if !other.Has(id) {
			out[id] = struct{}{}
		}
	}
	return out
}

// IDs returns the members in ascending order.
func (s AttrSet) IDs() []int64 {
	out := make([]int64, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s AttrSet) Len() int { return len(s) }
