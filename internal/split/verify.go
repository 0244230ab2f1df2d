package split

import (
	"connlab/internal/puzzle"
)

// FileCheck pairs an emitted dataset file with the partition its
// records must stay inside.
type FileCheck struct {
	Path    string
	Allowed IDSet
	Label   string
}

// VerifyFiles re-scans emitted JSONL files and confirms every record's
// original id lies in its declared partition. This is the second,
// independent leg of the disjointness check: the first runs over the
// in-memory sets, this one over what actually landed on disk.
func VerifyFiles(checks []FileCheck) error {
	for _, c := range checks {
		records, err := puzzle.ReadJSONL(c.Path)
		if err != nil {
			return err
		}
		leaked := make(IDSet)
		for _, r := range records {
			if id := r.OriginalID(); id != 0 && !c.Allowed.Has(id) {
				leaked.Add(id)
			}
		}
		if leaked.Len() > 0 {
			return &LeakageError{Label: c.Label, IDs: leaked.Sorted()}
		}
	}
	return nil
}
