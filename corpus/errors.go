package corpus

import (
	"errors"
	"fmt"
)

// ErrEmptyCorpus is returned by Load when the passage file decodes to zero
// records. An empty corpus cannot answer anything, so startup must abort.
var ErrEmptyCorpus = errors.New("corpus is empty")

// CorruptRecordError reports a passage record that is missing a required
// field or otherwise unusable. Index is the record's position in the
// passage file.
type CorruptRecordError struct {
	Index  int
	Reason string
}

func (e *CorruptRecordError) Error() string {
	return fmt.Sprintf("corrupt passage record %d: %s", e.Index, e.Reason)
}

// DimensionMismatchError reports an embedding whose dimension differs from
// the expected dimension. The first embedding seen at load time fixes the
// expected dimension for the whole index.
type DimensionMismatchError struct {
	Index int
	Want  int
	Got   int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("embedding record %d: dimension mismatch: want %d, got %d", e.Index, e.Want, e.Got)
}
