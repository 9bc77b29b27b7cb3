package scheduler

import "testing"

func TestFindConflict(t *testing.T) {
	t.Parallel()

	existing := []Booking{
		{ID: "s-1", Date: "2025-03-10", Time: "10:00", DurationMinutes: SessionMinutes},
		{ID: "s-2", Date: "2025-03-11", Time: "12:00", DurationMinutes: SessionMinutes},
	}

	t.Run("overlapping start produces conflict", func(t *testing.T) {
		t.Parallel()
		got, ok := FindConflict(existing, "2025-03-10", "10:15", SessionMinutes)
		if !ok {
			t.Fatalf("expected conflict")
		}
		if got.ID != "s-1" {
			t.Fatalf("expected conflict with s-1, got %s", got.ID)
		}
	})

	t.Run("earlier overlapping start produces conflict", func(t *testing.T) {
		t.Parallel()
		if !HasConflict(existing, "2025-03-10", "09:45", SessionMinutes) {
			t.Fatalf("expected conflict for 09:45")
		}
	})

	t.Run("touching endpoints do not conflict", func(t *testing.T) {
		t.Parallel()
		if HasConflict(existing, "2025-03-10", "10:30", SessionMinutes) {
			t.Fatalf("10:30 should not conflict with 10:00-10:30")
		}
		if HasConflict(existing, "2025-03-10", "09:30", SessionMinutes) {
			t.Fatalf("09:30 should not conflict with 10:00-10:30")
		}
	})

	t.Run("other dates are ignored", func(t *testing.T) {
		t.Parallel()
		if HasConflict(existing, "2025-03-10", "12:00", SessionMinutes) {
			t.Fatalf("session on another date must not conflict")
		}
	})
}

func TestOverlaps_IsSymmetric(t *testing.T) {
	t.Parallel()

	for a := 0; a < 24*60; a += 5 {
		for b := 0; b < 24*60; b += 5 {
			if Overlaps(a, SessionMinutes, b, SessionMinutes) != Overlaps(b, SessionMinutes, a, SessionMinutes) {
				t.Fatalf("overlap asymmetric for %s and %s", FormatClock(a), FormatClock(b))
			}
		}
	}
}

func TestHasConflict_IsSymmetricBetweenBookings(t *testing.T) {
	t.Parallel()

	times := []string{"09:00", "09:15", "09:30", "09:45", "10:00", "10:29", "10:30"}
	for _, a := range times {
		for _, b := range times {
			ab := HasConflict([]Booking{{Date: "2025-03-10", Time: b, DurationMinutes: SessionMinutes}}, "2025-03-10", a, SessionMinutes)
			ba := HasConflict([]Booking{{Date: "2025-03-10", Time: a, DurationMinutes: SessionMinutes}}, "2025-03-10", b, SessionMinutes)
			if ab != ba {
				t.Fatalf("conflict between %s and %s is not symmetric", a, b)
			}
		}
	}
}
