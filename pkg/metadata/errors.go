package metadata

import "errors"

// ErrNotFound is returned by Get when no file with the given id is known
// to the store. Delete of an unknown id is not an error.
var ErrNotFound = errors.New("metadata: file not found")

// ErrCorrupt is returned by Open when the persisted document exists but
// cannot be parsed. Per spec.md §7, the coordinator must refuse to start
// rather than silently discard it.
var ErrCorrupt = errors.New("metadata: persisted document is corrupt")
