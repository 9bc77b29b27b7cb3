package application

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized is returned when the acting principal lacks permission for an operation.
	ErrUnauthorized = errors.New("application: unauthorized")
	// ErrNotFound is returned when the requested resource does not exist.
	ErrNotFound = errors.New("application: not found")
)

// ErrorClass groups domain errors by how callers should react to them.
type ErrorClass string

const (
	ClassValidation    ErrorClass = "validation"
	ClassNotFound      ErrorClass = "not_found"
	ClassStateConflict ErrorClass = "state_conflict"
	ClassDependency    ErrorClass = "dependency"
	ClassTransient     ErrorClass = "transient"
)

// DomainError is a typed failure with a stable code, a message fit for end
// users and structured details such as the conflicting time or remaining hours.
type DomainError struct {
	Code    string
	Class   ErrorClass
	Message string
	Details map[string]any
	Err     error
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return e.Code + ": " + e.Message
}

func (e *DomainError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches another DomainError with the same code.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	return ok && e != nil && t.Code == e.Code
}

func newDomainError(sentinel *DomainError, message string, details map[string]any, cause error) *DomainError {
	if message == "" {
		message = sentinel.Message
	}
	return &DomainError{Code: sentinel.Code, Class: sentinel.Class, Message: message, Details: details, Err: cause}
}

// Sentinels for errors.Is. Returned errors carry their own message and details.
var (
	ErrInThePast            = &DomainError{Code: "in_the_past", Class: ClassValidation, Message: "session must start in the future"}
	ErrTooManyTopics        = &DomainError{Code: "too_many_topics", Class: ClassValidation, Message: "at most 2 topics are allowed"}
	ErrSpeakerUnavailable   = &DomainError{Code: "speaker_unavailable", Class: ClassNotFound, Message: "speaker is not available for booking"}
	ErrCalendarNotConnected = &DomainError{Code: "calendar_not_connected", Class: ClassDependency, Message: "speaker has not connected a calendar"}
	ErrLearnerNotFound      = &DomainError{Code: "learner_not_found", Class: ClassNotFound, Message: "learner not found"}
	ErrOutsideAvailability  = &DomainError{Code: "outside_availability", Class: ClassStateConflict, Message: "requested time is outside the speaker's availability"}
	ErrSlotTaken            = &DomainError{Code: "slot_taken", Class: ClassStateConflict, Message: "requested time overlaps an existing session"}
	ErrCalendarAuthFailure  = &DomainError{Code: "calendar_auth_failure", Class: ClassDependency, Message: "speaker's calendar authorization could not be used"}
	ErrCalendarUnavailable  = &DomainError{Code: "calendar_unavailable", Class: ClassTransient, Message: "calendar provider is temporarily unavailable"}
	ErrSessionNotFound      = &DomainError{Code: "session_not_found", Class: ClassNotFound, Message: "session not found"}
	ErrNotCancellable       = &DomainError{Code: "not_cancellable", Class: ClassStateConflict, Message: "session cannot be cancelled"}
	ErrAlreadyStarted       = &DomainError{Code: "already_started", Class: ClassStateConflict, Message: "session has already started"}
	ErrTooLateToCancel      = &DomainError{Code: "too_late_to_cancel", Class: ClassStateConflict, Message: "session is too close to cancel"}
	ErrInvalidState         = &DomainError{Code: "invalid_state", Class: ClassValidation, Message: "calendar connection request is invalid or expired"}
	ErrAuthorizationFailed  = &DomainError{Code: "authorization_failed", Class: ClassDependency, Message: "calendar provider rejected the authorization"}
)

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	return "validation failed"
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error. The first message per field wins.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	if _, exists := v.FieldErrors[field]; exists {
		return
	}
	v.FieldErrors[field] = message
}

// merge copies entries from another validation error into the receiver.
func (v *ValidationError) merge(other *ValidationError) {
	if other == nil || len(other.FieldErrors) == 0 {
		return
	}
	for field, msg := range other.FieldErrors {
		v.add(field, msg)
	}
}

// ClassOf reports the error class of err. ValidationError is ClassValidation;
// unknown errors report an empty class.
func ClassOf(err error) ErrorClass {
	var dErr *DomainError
	if errors.As(err, &dErr) {
		return dErr.Class
	}
	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return ClassValidation
	}
	if errors.Is(err, ErrNotFound) {
		return ClassNotFound
	}
	return ""
}
