package persistence

import "errors"

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("persistence: not found")
	// ErrDuplicate is returned when a record with the same key already exists.
	ErrDuplicate = errors.New("persistence: duplicate record")
	// ErrConstraintViolation is returned when a record breaks a schema constraint.
	ErrConstraintViolation = errors.New("persistence: constraint violation")
	// ErrForeignKeyViolation is returned when a record references a missing parent.
	ErrForeignKeyViolation = errors.New("persistence: foreign key violation")
	// ErrCapacityExceeded is returned by conditional reservation writes when the
	// resource is already full for part of the requested interval.
	ErrCapacityExceeded = errors.New("persistence: capacity exceeded")
	// ErrUserOverlap is returned by conditional reservation writes when the user
	// already holds an overlapping active reservation.
	ErrUserOverlap = errors.New("persistence: user overlap")
	// ErrOpenSession is returned when the user already has an open usage session.
	ErrOpenSession = errors.New("persistence: open session exists")
	// ErrSessionClosed is returned when closing a session that is no longer open.
	ErrSessionClosed = errors.New("persistence: session closed")
	// ErrConflict marks a transient write conflict; the operation may be retried.
	ErrConflict = errors.New("persistence: write conflict")
)
