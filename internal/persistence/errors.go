package persistence

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("persistence: not found")
	// ErrDuplicate is returned when a unique key already exists.
	ErrDuplicate = errors.New("persistence: duplicate record")
	// ErrConstraintViolation is returned when a record fails a storage constraint.
	ErrConstraintViolation = errors.New("persistence: constraint violation")
	// ErrForeignKeyViolation is returned when a referenced record is missing.
	ErrForeignKeyViolation = errors.New("persistence: foreign key violation")
	// ErrSlotConflict is returned when a scheduled session already occupies the window.
	ErrSlotConflict = errors.New("persistence: slot conflict")
	// ErrNotScheduled is returned when a status transition requires a scheduled session.
	ErrNotScheduled = errors.New("persistence: session is not scheduled")
)

// SlotConflictError names the scheduled session that blocked an insert.
type SlotConflictError struct {
	SessionID string
	Time      string
}

func (e *SlotConflictError) Error() string {
	return fmt.Sprintf("persistence: slot conflicts with session %s at %s", e.SessionID, e.Time)
}

func (e *SlotConflictError) Is(target error) bool {
	return target == ErrSlotConflict
}
