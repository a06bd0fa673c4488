package orchestrator

import (
	"errors"
	"fmt"
)

// ErrMissingCredential is returned before any network attempt when a caller
// provides an empty orchestrator credential.
var ErrMissingCredential = errors.New("orchestrator credential is empty")

// maxErrorBody bounds how much of a failed response body is retained on a
// TransportError. Error bodies from the panel are not guaranteed to be JSON.
const maxErrorBody = 512

// TransportError reports a failed orchestrator call: either a non-2xx response
// (Status holds the HTTP code, Body a truncated response excerpt) or a
// network-level failure (Status is 0 and the underlying error is wrapped).
type TransportError struct {
	Status int
	Body   string
	err    error
}

func (e *TransportError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("orchestrator request failed: %v", e.err)
	}
	return fmt.Sprintf("orchestrator returned status %d: %s", e.Status, e.Body)
}

func (e *TransportError) Unwrap() error {
	return e.err
}
