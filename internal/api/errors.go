// ABOUTME: Error taxonomy for the credentialed transport
// ABOUTME: Distinguishes auth failures, network failures, and server errors

package api

import (
	"errors"
	"fmt"
)

// Transport errors
var (
	// ErrUnauthorized is returned when the backend rejects the credentials
	// and renewal was not possible or did not help.
	ErrUnauthorized = errors.New("unauthorized")
)

// ServerError is a non-2xx, non-401 response from the backend. It is terminal
// for the operation; the transport never retries it.
type ServerError struct {
	Status int
	Body   string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server error: status %d: %s", e.Status, e.Body)
}

// NetworkError wraps a failure to reach the backend at all.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %v", e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}
