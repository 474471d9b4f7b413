// Package dispatch orchestrates one image-generation job end to end:
// admission gate, ledger reservation, backend selection, the remote
// generation call, and compensation of the reservation on any failure
// path. A failed dispatch is reported to the caller, never retried
// against another backend.
package dispatch
