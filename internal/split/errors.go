package split

import (
	"errors"
	"fmt"
)

// ErrConfiguration marks invalid build parameters: a validation
// fraction outside (0,1], an empty sampling pool, or a requested sample
// size exceeding the available pool. Wrapped errors carry the detail.
var ErrConfiguration = errors.New("split: invalid configuration")

// ErrMissingSource marks an absent pre-designated source file. The Test
// partition cannot be defined without its source, so this blocks the
// whole preparation run.
var ErrMissingSource = errors.New("split: missing source file")

// LeakageError reports ids crossing a partition boundary. It is fatal:
// the affected build step must abort rather than drop the offending ids,
// since a silent repair would non-deterministically change dataset sizes.
type LeakageError struct {
	Label string // which boundary was crossed, e.g. "train/test"
	IDs   []int  // the overlapping ids, ascending
}

func (e *LeakageError) Error() string {
	return fmt.Sprintf("split: data leakage across %s: %d overlapping ids %v", e.Label, len(e.IDs), e.IDs)
}
