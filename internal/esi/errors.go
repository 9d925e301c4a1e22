package esi

import (
	"errors"
	"fmt"
)

// ErrRemoteUnavailable is matched by errors.Is for every *RemoteUnavailableError.
var ErrRemoteUnavailable = errors.New("remote unavailable")

// RemoteUnavailableError is returned once a request has used up its retry
// budget, or failed with a non-retryable status.
type RemoteUnavailableError struct {
	Op       string // e.g. "GET /markets/10000002/orders/"
	Attempts int
	Err      error
}

func (e *RemoteUnavailableError) Error() string {
	return fmt.Sprintf("%s: remote unavailable after %d attempt(s): %v", e.Op, e.Attempts, e.Err)
}

func (e *RemoteUnavailableError) Unwrap() error { return e.Err }

func (e *RemoteUnavailableError) Is(target error) bool {
	return target == ErrRemoteUnavailable
}

// StatusError is a non-200 ESI response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("ESI %d: %s", e.Code, e.Body)
}

// retryable reports whether a status is worth another attempt.
// 420 is ESI's error-limit status.
func (e *StatusError) retryable() bool {
	return e.Code == 420 || e.Code == 429 || e.Code >= 500
}
