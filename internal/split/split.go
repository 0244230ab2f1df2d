package split

import (
	"fmt"
	"math/rand"

	"connlab/internal/puzzle"
)

// NewRand returns the generator threaded through every sampling call.
// Callers seed it once per build; no package-level random state exists,
// so concurrent or repeated builds in one process stay independent.
func NewRand(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

// Partitions holds the three pairwise-disjoint identifier sets.
type Partitions struct {
	Test       IDSet
	Validation IDSet
	Train      IDSet
}

// validationSize applies the original truncation policy max(1, int(n*fraction)).
// Truncation (not rounding) is deliberate: changing it would silently
// recompose every downstream split.
func validationSize(poolSize int, fraction float64) int {
	n := int(float64(poolSize) * fraction)
	if n < 1 {
		n = 1
	}
	return n
}

// BuildBasePartitions fixes the Test set from the pre-designated test
// records, samples the Validation set from the remainder of the pool,
// and assigns everything else to Train.
//
// The Test ids are taken exactly as found; no sampling is involved. The
// validation fraction must lie in (0,1]. The returned partitions are
// re-verified pairwise before being returned; a verification failure is
// a fatal configuration error, never a warning.
func BuildBasePartitions(testRecords, allRecords []puzzle.Record, fraction float64, rng *rand.Rand) (Partitions, error) {
	if fraction <= 0 || fraction > 1 {
		return Partitions{}, fmt.Errorf("%w: validation fraction %v outside (0,1]", ErrConfiguration, fraction)
	}

	test := FromRecords(testRecords)
	all := FromRecords(allRecords)
	pool := all.Diff(test)
	if pool.Len() == 0 {
		return Partitions{}, fmt.Errorf("%w: empty train pool after removing %d test ids", ErrConfiguration, test.Len())
	}

	valIDs, err := SampleIDs(pool, validationSize(pool.Len(), fraction), rng)
	if err != nil {
		return Partitions{}, err
	}
	validation := NewIDSet(valIDs...)
	train := pool.Diff(validation)

	p := Partitions{Test: test, Validation: validation, Train: train}
	if err := p.Verify(); err != nil {
		return Partitions{}, err
	}
	return p, nil
}

// Verify re-checks all three pairwise disjointness invariants.
func (p Partitions) Verify() error {
	if err := VerifyDisjoint(p.Test, p.Validation, "test/validation"); err != nil {
		return err
	}
	if err := VerifyDisjoint(p.Test, p.Train, "test/train"); err != nil {
		return err
	}
	return VerifyDisjoint(p.Validation, p.Train, "validation/train")
}

// VerifyDisjoint computes the intersection of a and b and returns a
// *LeakageError naming the boundary when it is non-empty.
func VerifyDisjoint(a, b IDSet, label string) error {
	if overlap := a.Intersect(b); overlap.Len() > 0 {
		return &LeakageError{Label: label, IDs: overlap.Sorted()}
	}
	return nil
}

// FilterByPartition returns only the records whose original id lies in
// allowed. Every derived dataset is built through this filter, so each
// one inherits the disjointness guarantee transitively — and all
// permutations of an id land on the same side of every boundary.
func FilterByPartition(records []puzzle.Record, allowed IDSet) []puzzle.Record {
	var out []puzzle.Record
	for _, r := range records {
		if allowed.Has(r.OriginalID()) {
			out = append(out, r)
		}
	}
	return out
}

// AlignCrossFormat returns the ids present in both format variants after
// removing excluded ids. Every returned id has at least one record in
// each format and is outside the excluded set.
func AlignCrossFormat(formatA, formatB []puzzle.Record, excluded IDSet) IDSet {
	common := FromRecords(formatA).Intersect(FromRecords(formatB))
	return common.Diff(excluded)
}

// SampleIDs deterministically draws n ids from the set: members are
// sorted ascending, shuffled by rng, and the first n are returned in
// shuffle order. The returned order is itself part of the contract —
// curriculum phase boundaries cut it at a fixed point.
func SampleIDs(ids IDSet, n int, rng *rand.Rand) ([]int, error) {
	if ids.Len() == 0 {
		return nil, fmt.Errorf("%w: empty candidate pool", ErrConfiguration)
	}
	if n > ids.Len() {
		return nil, fmt.Errorf("%w: sample size %d exceeds pool of %d", ErrConfiguration, n, ids.Len())
	}
	ordered := ids.Sorted()
	rng.Shuffle(len(ordered), func(i, j int) {
		ordered[i], ordered[j] = ordered[j], ordered[i]
	})
	return ordered[:n], nil
}

// SplitPoint cuts a seeded ordering into two curriculum phases at the
// midpoint. Input ids must be distinct, so no id can appear in both
// phases; callers still re-verify the two phase sets after the cut.
func SplitPoint(ordered []int) (first, second []int) {
	half := len(ordered) / 2
	return ordered[:half], ordered[half:]
}

// Registry records the exact id membership of partitions for audit and
// reproducibility, keyed by partition name with ascending id lists.
// It is emitted as a pure function of the in-memory split and always
// regenerated wholesale.
type Registry map[string][]int

// Set records the membership of one named partition.
func (r Registry) Set(name string, ids IDSet) {
	r[name] = ids.Sorted()
}
