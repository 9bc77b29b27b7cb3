package scheduler

// Booking is the slice of a scheduled session needed for overlap checks.
type Booking struct {
	ID              string
	Date            string
	Time            string
	DurationMinutes int
}

// Overlaps reports whether the half-open intervals [aStart, aStart+aLen) and
// [bStart, bStart+bLen) intersect. Touching endpoints do not overlap.
func Overlaps(aStart, aLen, bStart, bLen int) bool {
	return aStart < bStart+bLen && aStart+aLen > bStart
}

// FindConflict returns the first existing booking on date whose window overlaps the
// candidate. Callers pass scheduled sessions only.
func FindConflict(existing []Booking, date, candidateTime string, durationMinutes int) (Booking, bool) {
	candidateStart, err := ParseClock(candidateTime)
	if err != nil {
		return Booking{}, false
	}
	for _, booking := range existing {
		if booking.Date != date {
			continue
		}
		start, err := ParseClock(booking.Time)
		if err != nil {
			continue
		}
		length := booking.DurationMinutes
		if length <= 0 {
			length = SessionMinutes
		}
		if Overlaps(candidateStart, durationMinutes, start, length) {
			return booking, true
		}
	}
	return Booking{}, false
}

// HasConflict reports whether the candidate overlaps any existing booking on date.
func HasConflict(existing []Booking, date, candidateTime string, durationMinutes int) bool {
	_, found := FindConflict(existing, date, candidateTime, durationMinutes)
	return found
}
