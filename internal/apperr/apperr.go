// Package apperr defines the error taxonomy shared by the enrollment engine
// and its callers. Business-rule failures (full session, duplicate enrollment,
// timing violations) are ordinary typed results, not system errors; storage
// failures are split into retryable and non-retryable kinds.
package apperr

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a requested session or enrollment does not exist.
var ErrNotFound = errors.New("not found")

// ValidationError reports malformed caller input on a specific field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// CapacityExceededError is returned when a session has no remaining seats.
type CapacityExceededError struct {
	Title string
}

func (e *CapacityExceededError) Error() string {
	return fmt.Sprintf("session %q is fully booked", e.Title)
}

// DuplicateEnrollmentError is returned when a contact is already enrolled in
// the session.
type DuplicateEnrollmentError struct {
	Contact string
	Title   string
}

func (e *DuplicateEnrollmentError) Error() string {
	return fmt.Sprintf("%s is already enrolled in %q", e.Contact, e.Title)
}

// TimeConstraintError reports an operation attempted outside its allowed time
// window, e.g. enrolling in a session that has already started.
type TimeConstraintError struct {
	Message string
}

func (e *TimeConstraintError) Error() string {
	return e.Message
}

// CancellationTooLateError is returned when a cancellation is attempted with
// less than the required lead time remaining before the session starts.
type CancellationTooLateError struct {
	Title          string
	HoursRemaining float64
	RequiredHours  float64
}

func (e *CancellationTooLateError) Error() string {
	return fmt.Sprintf("cannot cancel enrollment in %q: %.1f hours remain before start, %.0f required",
		e.Title, e.HoursRemaining, e.RequiredHours)
}

// StorageUnavailableError wraps a transient storage failure (connectivity,
// timeouts, resource exhaustion). Callers may retry; Enroll and Cancel are
// safe to retry because the uniqueness constraint and not-found checks
// deduplicate them.
type StorageUnavailableError struct {
	Err error
}

func (e *StorageUnavailableError) Error() string {
	return fmt.Sprintf("storage temporarily unavailable: %v", e.Err)
}

func (e *StorageUnavailableError) Unwrap() error { return e.Err }

// StorageCorruptionError wraps a non-transient data error. Not retryable.
type StorageCorruptionError struct {
	Err error
}

func (e *StorageCorruptionError) Error() string {
	return fmt.Sprintf("storage data error: %v", e.Err)
}

func (e *StorageCorruptionError) Unwrap() error { return e.Err }

// IsRetryable reports whether the error is a transient storage failure that
// the caller may retry.
func IsRetryable(err error) bool {
	var unavailable *StorageUnavailableError
	return errors.As(err, &unavailable)
}
