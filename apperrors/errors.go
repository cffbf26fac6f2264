package apperrors

import (
	"errors"
	"fmt"
)

// ValidationError rejects malformed input before any state change.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Reason)
	}
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

// NotFoundError signals an unknown booking, collector or other entity.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// PermissionError signals an actor that is not party to the booking.
type PermissionError struct {
	Reason string
}

func (e *PermissionError) Error() string {
	return e.Reason
}

// InvalidTransitionError signals an illegal state-machine edge.
type InvalidTransitionError struct {
	From string
	To   string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition from %s to %s", e.From, e.To)
}

// ConflictError signals a lost optimistic-concurrency race. The caller must
// reload state and retry; it is never silently swallowed.
type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string {
	return e.Reason
}

// NoCandidateError signals that dispatch exhausted all candidates. The
// booking stays pending; this is not fatal.
type NoCandidateError struct {
	BookingID string
	Reason    string
}

func (e *NoCandidateError) Error() string {
	return fmt.Sprintf("no collector candidate for booking %s: %s", e.BookingID, e.Reason)
}

// TransportError wraps a best-effort delivery failure (notification or
// broadcast). Always non-fatal to the state change that triggered it.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport failure during %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsConflict reports whether err is a ConflictError.
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var ne *NotFoundError
	return errors.As(err, &ne)
}

// IsNoCandidate reports whether err is a NoCandidateError.
func IsNoCandidate(err error) bool {
	var nc *NoCandidateError
	return errors.As(err, &nc)
}
