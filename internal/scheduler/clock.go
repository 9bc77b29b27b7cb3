package scheduler

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SessionMinutes is the fixed length of a booked session.
const SessionMinutes = 30

// DateLayout is the calendar date format used on the wire and in storage.
const DateLayout = "2006-01-02"

// ErrInvalidClock indicates a time-of-day string is not a valid HH:MM value.
var ErrInvalidClock = errors.New("scheduler: time must be HH:MM between 00:00 and 23:59")

// ErrSkippedClock indicates a wall-clock time that does not exist on that date
// because the zone's clocks jump forward over it.
var ErrSkippedClock = errors.New("scheduler: time does not exist on this date")

// ParseClock converts an "HH:MM" wall-clock string into minutes since midnight.
// A single digit hour ("9:30") is accepted.
func ParseClock(value string) (int, error) {
	hourPart, minutePart, ok := strings.Cut(strings.TrimSpace(value), ":")
	if !ok || len(hourPart) < 1 || len(hourPart) > 2 || len(minutePart) != 2 {
		return 0, ErrInvalidClock
	}
	if !digits(hourPart) || !digits(minutePart) {
		return 0, ErrInvalidClock
	}
	hour, _ := strconv.Atoi(hourPart)
	minute, _ := strconv.Atoi(minutePart)
	if hour > 23 || minute > 59 {
		return 0, ErrInvalidClock
	}
	return hour*60 + minute, nil
}

// FormatClock renders minutes since midnight as "HH:MM".
func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// MinutesOf returns the wall-clock minutes since midnight of t in its own location.
func MinutesOf(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// Instant combines a "YYYY-MM-DD" date and an "HH:MM" time in loc. Times
// skipped by a daylight saving transition are rejected with ErrSkippedClock
// rather than shifted.
func Instant(date, clock string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	day, err := time.ParseInLocation(DateLayout, strings.TrimSpace(date), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("scheduler: invalid date %q: %w", date, err)
	}
	minutes, err := ParseClock(clock)
	if err != nil {
		return time.Time{}, err
	}
	y, m, d := day.Date()
	at := time.Date(y, m, d, minutes/60, minutes%60, 0, 0, loc)
	if ay, am, ad := at.Date(); ay != y || am != m || ad != d || MinutesOf(at) != minutes {
		return time.Time{}, fmt.Errorf("%w: %s %s in %s", ErrSkippedClock, date, FormatClock(minutes), loc)
	}
	return at, nil
}

func digits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
