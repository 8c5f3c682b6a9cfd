package nodeclient

import "errors"

// ErrMissing is returned by Retrieve when the node reports the block as
// absent (HTTP 404). It is not a transport failure and does not mark the
// node offline.
var ErrMissing = errors.New("nodeclient: block missing")

// ErrStorageFull is returned by Store when the node reports HTTP 507.
// Per spec, a full node is not marked offline.
var ErrStorageFull = errors.New("nodeclient: node reports insufficient storage")

// ErrBadRequest is returned when the node rejects a request as malformed
// (HTTP 400), e.g. invalid hex payload.
var ErrBadRequest = errors.New("nodeclient: node rejected request")
