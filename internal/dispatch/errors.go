package dispatch

import "fmt"

// BackendError is a remote-call failure: network error, timeout,
// non-success response, or malformed payload. The reservation taken for
// the job has already been compensated when the caller sees it.
type BackendError struct {
	Backend string
	Err     error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("dispatch to %s failed: %v", e.Backend, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}
