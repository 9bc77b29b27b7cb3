package application

import (
	"errors"
	"fmt"
	"testing"
)

func TestValidationError_Error(t *testing.T) {
	t.Parallel()

	var err *ValidationError
	if err.Error() != "" {
		t.Fatalf("expected empty string for nil error, got %q", err.Error())
	}

	withFields := &ValidationError{FieldErrors: map[string]string{"field": "invalid"}}
	if got := withFields.Error(); got != "validation failed" {
		t.Fatalf("expected consistent message for populated error, got %q", got)
	}
}

func TestValidationError_AddAndMerge(t *testing.T) {
	t.Parallel()

	base := &ValidationError{}
	if base.HasErrors() {
		t.Fatalf("expected HasErrors to report false for empty error")
	}
	base.add("first", "value")
	base.add("first", "ignored")
	if got := base.FieldErrors["first"]; got != "value" {
		t.Fatalf("expected first message to win, got %q", got)
	}

	base.merge(&ValidationError{FieldErrors: map[string]string{"second": "another"}})
	base.merge(nil)
	if len(base.FieldErrors) != 2 || !base.HasErrors() {
		t.Fatalf("unexpected fields after merge: %v", base.FieldErrors)
	}
}

func TestDomainError_IsMatchesByCode(t *testing.T) {
	t.Parallel()

	err := newDomainError(ErrSlotTaken, "requested time overlaps the session at 10:00", map[string]any{"conflictingTime": "10:00"}, nil)
	wrapped := fmt.Errorf("book: %w", err)

	if !errors.Is(wrapped, ErrSlotTaken) {
		t.Fatalf("expected wrapped error to match ErrSlotTaken")
	}
	if errors.Is(wrapped, ErrOutsideAvailability) {
		t.Fatalf("expected codes to differ")
	}
	if ClassOf(wrapped) != ClassStateConflict {
		t.Fatalf("unexpected class %q", ClassOf(wrapped))
	}
	if err.Message != "requested time overlaps the session at 10:00" || err.Details["conflictingTime"] != "10:00" {
		t.Fatalf("expected message and details to be kept: %+v", err)
	}

	cause := errors.New("refresh rejected")
	dep := newDomainError(ErrCalendarAuthFailure, "", nil, cause)
	if !errors.Is(dep, cause) {
		t.Fatalf("expected cause to unwrap")
	}
	if dep.Message != ErrCalendarAuthFailure.Message {
		t.Fatalf("expected default message, got %q", dep.Message)
	}
}

func TestClassOf(t *testing.T) {
	t.Parallel()

	cases := map[error]ErrorClass{
		&ValidationError{}:     ClassValidation,
		ErrNotFound:            ClassNotFound,
		ErrLearnerNotFound:     ClassNotFound,
		ErrCalendarUnavailable: ClassTransient,
		errors.New("boom"):     "",
	}
	for err, want := range cases {
		if got := ClassOf(err); got != want {
			t.Fatalf("ClassOf(%v) = %q, want %q", err, got, want)
		}
	}
}
