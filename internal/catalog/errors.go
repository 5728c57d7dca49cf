package catalog

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a point read names an album or asset the
// catalog does not have.
var ErrNotFound = errors.New("not found")

// StatusError is a non-2xx response that is not handled as a skip.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// maxErrorBody bounds the response text kept in a StatusError.
const maxErrorBody = 512

func newStatusError(method, path string, status int, body []byte) *StatusError {
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	return &StatusError{Method: method, Path: path, StatusCode: status, Body: string(body)}
}
