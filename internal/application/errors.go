package application

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrInvalidWindow is returned when a requested interval or duration is malformed.
	ErrInvalidWindow = errors.New("application: invalid window")
	// ErrUserDoubleBooked is returned when the user already holds an overlapping reservation.
	ErrUserDoubleBooked = errors.New("application: user double booked")
	// ErrCapacityExceeded is returned when the resource is full for part of the requested interval.
	ErrCapacityExceeded = errors.New("application: capacity exceeded")
	// ErrNotFound is returned when the requested resource does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrNotOwner is returned when the acting user does not own the reservation.
	ErrNotOwner = errors.New("application: not owner")
	// ErrAlreadyOpen is returned when the user already has an open usage session.
	ErrAlreadyOpen = errors.New("application: session already open")
	// ErrNotOpen is returned when the usage session has already been closed.
	ErrNotOpen = errors.New("application: session not open")
	// ErrInvalidScore is returned when a productivity score is outside the accepted bounds.
	ErrInvalidScore = errors.New("application: invalid score")
	// ErrUnavailable is returned when the store stays contended after bounded retries.
	ErrUnavailable = errors.New("application: unavailable")
)

// ValidationError captures field level validation issues that callers can surface to users.
// Kind, when set, is the sentinel the error matches with errors.Is.
type ValidationError struct {
	Kind        error
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	prefix := "validation failed"
	if v.Kind != nil {
		prefix = v.Kind.Error()
	}
	if len(v.FieldErrors) == 0 {
		return prefix
	}
	fields := make([]string, 0, len(v.FieldErrors))
	for field := range v.FieldErrors {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return fmt.Sprintf("%s: %s", prefix, strings.Join(fields, ", "))
}

// Is reports whether target is the validation kind.
func (v *ValidationError) Is(target error) bool {
	return v != nil && v.Kind != nil && target == v.Kind
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}

// merge copies entries from another validation error into the receiver.
func (v *ValidationError) merge(other *ValidationError) {
	if other == nil || len(other.FieldErrors) == 0 {
		return
	}
	if v.Kind == nil {
		v.Kind = other.Kind
	}
	for field, msg := range other.FieldErrors {
		v.add(field, msg)
	}
}

// ConflictError reports a rejected admission together with the reservations it
// collided with. It matches ErrUserDoubleBooked or ErrCapacityExceeded.
type ConflictError struct {
	Kind           error
	ReservationIDs []string
	Capacity       int
	Peak           int
}

// Error implements the error interface.
func (c *ConflictError) Error() string {
	if c == nil {
		return ""
	}
	msg := c.Kind.Error()
	if c.Capacity > 0 {
		msg = fmt.Sprintf("%s (%d of %d in use)", msg, c.Peak, c.Capacity)
	}
	if len(c.ReservationIDs) > 0 {
		msg = fmt.Sprintf("%s: conflicts with %s", msg, strings.Join(c.ReservationIDs, ", "))
	}
	return msg
}

// Unwrap exposes the conflict kind to errors.Is.
func (c *ConflictError) Unwrap() error {
	if c == nil {
		return nil
	}
	return c.Kind
}
