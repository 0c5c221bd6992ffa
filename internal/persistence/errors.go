package persistence

import "errors"

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("persistence: not found")
	// ErrDuplicate is returned when a record with the same key already exists.
	ErrDuplicate = errors.New("persistence: duplicate")
	// ErrConstraintViolation is returned when a write breaks a schema constraint,
	// such as availability referencing a room that does not exist.
	ErrConstraintViolation = errors.New("persistence: constraint violation")
	// ErrLimitExceeded is returned when inserting a participant would exceed
	// the room's participant limit.
	ErrLimitExceeded = errors.New("persistence: participant limit exceeded")
)
