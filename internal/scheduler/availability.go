package scheduler

import (
	"fmt"
	"strings"
	"time"
)

// Availability is one weekly recurring window during which a speaker accepts bookings.
type Availability struct {
	Day       time.Weekday
	StartTime string
	EndTime   string
	Available bool
}

// Window returns the entry's bounds in minutes since midnight.
func (a Availability) Window() (start, end int, err error) {
	if start, err = ParseClock(a.StartTime); err != nil {
		return 0, 0, fmt.Errorf("start time: %w", err)
	}
	if end, err = ParseClock(a.EndTime); err != nil {
		return 0, 0, fmt.Errorf("end time: %w", err)
	}
	return start, end, nil
}

// EntryFor returns the first entry registered for day.
func EntryFor(entries []Availability, day time.Weekday) (Availability, bool) {
	for _, entry := range entries {
		if entry.Day == day {
			return entry, true
		}
	}
	return Availability{}, false
}

// IsAvailable reports whether [candidate, candidate+duration) falls entirely inside
// the availability window registered for the candidate's weekday. Times are compared
// as wall-clock values in the candidate's location.
func IsAvailable(entries []Availability, candidate time.Time, durationMinutes int) bool {
	entry, ok := EntryFor(entries, candidate.Weekday())
	if !ok || !entry.Available {
		return false
	}
	start, end, err := entry.Window()
	if err != nil {
		return false
	}
	candidateStart := MinutesOf(candidate)
	return candidateStart >= start && candidateStart+durationMinutes <= end
}

// DayName returns the lower-case English weekday name used on the wire.
func DayName(day time.Weekday) string {
	return strings.ToLower(day.String())
}

// ParseDay parses an English weekday name, case-insensitively.
func ParseDay(name string) (time.Weekday, bool) {
	needle := strings.ToLower(strings.TrimSpace(name))
	for day := time.Sunday; day <= time.Saturday; day++ {
		if DayName(day) == needle {
			return day, true
		}
	}
	return time.Sunday, false
}
