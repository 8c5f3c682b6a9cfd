package stripe

import "errors"

// ErrDegradedUnrecoverable is returned by Engine.Read when some stripe of
// the requested file has two or more missing blocks: with only one
// parity block per stripe, a second loss in the same stripe cannot be
// reconstructed.
var ErrDegradedUnrecoverable = errors.New("stripe: two or more blocks missing in a stripe, unrecoverable")

// ErrUploadFailed wraps the underlying node error when any block write in
// an upload fails. The upload as a whole is abandoned; no metadata is
// committed.
var ErrUploadFailed = errors.New("stripe: upload failed, one or more block writes did not succeed")
