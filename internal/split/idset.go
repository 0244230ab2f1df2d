// Package split builds leakage-free Train/Validation/Test partitions
// over puzzle identifiers and verifies their disjointness.
//
// Partition lifecycle is fixed: the Test set is defined first from the
// pre-designated test records, Validation is then sampled from the
// remaining pool, and every Train-derived dataset is filtered against
// both. Each partition-producing step re-checks disjointness instead of
// assuming it; any overlap is fatal. All sampling goes through an
// explicit *rand.Rand so identical inputs and seed reproduce identical
// partitions.
package split

import "sort"

// IDSet is a set of original puzzle identifiers representing one
// partition (Test, Validation, or Train-eligible).
type IDSet map[int]struct{}

// NewIDSet builds a set from the given ids.
func NewIDSet(ids ...int) IDSet {
	s := make(IDSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Add inserts id into the set.
func (s IDSet) Add(id int) { s[id] = struct{}{} }

// Has reports whether id is a member.
func (s IDSet) Has(id int) bool {
	_, ok := s[id]
	return ok
}

// Len returns the number of members.
func (s IDSet) Len() int { return len(s) }

// Sorted returns the members in ascending order. Every deterministic
// operation (sampling, registry output) starts from this ordering.
func (s IDSet) Sorted() []int {
	ids := make([]int, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Intersect returns the members present in both sets.
func (s IDSet) Intersect(other IDSet) IDSet {
	small, large := s, other
	if len(large) < len(small) {
		small, large = large, small
	}
	out := make(IDSet)
	for id := range small {
		if large.Has(id) {
			out.Add(id)
		}
	}
	return out
}

// Diff returns the members of s absent from other.
func (s IDSet) Diff(other IDSet) IDSet {
	out := make(IDSet)
	for id := range s {
		if !other.Has(id) {
			out.Add(id)
		}
	}
	return out
}

// Union returns the members present in either set.
func (s IDSet) Union(other IDSet) IDSet {
	out := make(IDSet, len(s)+len(other))
	for id := range s {
		out.Add(id)
	}
	for id := range other {
		out.Add(id)
	}
	return out
}

// identifiable is satisfied by puzzle.Record; declared locally so the
// set constructor works over any record slice carrying an original id.
type identifiable interface {
	OriginalID() int
}

// FromRecords collects the distinct original ids of records.
// Records without a resolvable id (OriginalID() == 0) are skipped, as
// the original pipeline does.
func FromRecords[R identifiable](records []R) IDSet {
	s := make(IDSet)
	for _, r := range records {
		if id := r.OriginalID(); id != 0 {
			s.Add(id)
		}
	}
	return s
}
