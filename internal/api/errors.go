package api

import (
	"errors"
	"fmt"
)

// NetworkError wraps a transport-level failure: the request never
// produced an HTTP response (connection refused, DNS failure,
// timeout). Callers degrade to the local mirror on this category.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: backend unreachable: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// IsNetworkError reports whether err is (or wraps) a NetworkError.
func IsNetworkError(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

// StatusError is a server-reported failure: the backend responded
// with a non-2xx status. Message carries the server-provided error
// text when the body had one, otherwise a generic description.
type StatusError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: server returned %d: %s", e.Op, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: server returned %d", e.Op, e.StatusCode)
}

// IsNotFound reports whether err is a StatusError with a 404 status.
// The migration trigger uses this to treat "nothing to migrate" as a
// no-op rather than a failure.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == 404
}
