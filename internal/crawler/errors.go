package crawler

import (
	"errors"
	"fmt"
)

// ErrRenderingDisabled is returned when a rendered fetch is requested but
// rendering is switched off by configuration. It must never be silently
// downgraded to a static fetch.
var ErrRenderingDisabled = errors.New("rendering is disabled by configuration")

// ErrNoSession indicates the session pool exhausted its attempts without
// finding an eligible session. Retry is the task queue's concern.
var ErrNoSession = errors.New("no session available")

// ErrUnsupportedKind is returned for task kinds this layer does not know.
var ErrUnsupportedKind = errors.New("unsupported task type")

// ErrSessionNotFound indicates a ranked-set member with no backing
// session record. The member is dropped, not re-inserted.
var ErrSessionNotFound = errors.New("session record not found")

// ValidationError marks a descriptor that failed normalization. It is
// fatal for the task and never retried by this layer.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid task: %s: %s", e.Field, e.Reason)
}

// NewValidationError builds a ValidationError for a field.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// HTTPError carries an HTTP status observed during a fetch so penalty
// classification can tier it without string matching.
type HTTPError struct {
	URL        string
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("fetch %s: unexpected status code %d", e.URL, e.StatusCode)
}
