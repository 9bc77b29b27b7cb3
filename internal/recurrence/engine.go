// Package recurrence expands weekly availability windows into dated occurrences.
package recurrence

import (
	"errors"
	"time"
)

// Rule describes a weekly recurring window in wall-clock minutes.
type Rule struct {
	ID          string
	Weekday     time.Weekday
	StartMinute int
	EndMinute   int
}

// GenerateOptions bounds occurrence generation. RangeEnd is exclusive.
type GenerateOptions struct {
	RangeStart time.Time
	RangeEnd   time.Time
}

// Occurrence is a dated instance of a rule.
type Occurrence struct {
	RuleID string
	Start  time.Time
	End    time.Time
}

// Engine expands rules into occurrences in a fixed location.
type Engine struct {
	location *time.Location
}

// NewEngine constructs an Engine that evaluates wall-clock windows in loc.
// If loc is nil, UTC is used.
func NewEngine(loc *time.Location) *Engine {
	if loc == nil {
		loc = time.UTC
	}
	return &Engine{location: loc}
}

// ErrInvalidWindow indicates the generation window is empty or unbounded.
var ErrInvalidWindow = errors.New("recurrence: generation window requires start before end")

// ErrInvalidDuration indicates the rule window is empty.
var ErrInvalidDuration = errors.New("recurrence: rule end must be after start")

// GenerateOccurrences produces the occurrences of rules that start inside the window.
//
// Days are stepped by calendar date rather than 24h so windows keep their wall-clock
// times across daylight saving transitions. Results are ordered by start time, then by
// rule order.
func (e *Engine) GenerateOccurrences(rules []Rule, opts GenerateOptions) ([]Occurrence, error) {
	loc := e.location
	if loc == nil {
		loc = time.UTC
	}
	if opts.RangeStart.IsZero() || opts.RangeEnd.IsZero() || !opts.RangeEnd.After(opts.RangeStart) {
		return nil, ErrInvalidWindow
	}
	for _, rule := range rules {
		if rule.EndMinute <= rule.StartMinute {
			return nil, ErrInvalidDuration
		}
	}

	rangeStart := opts.RangeStart.In(loc)
	rangeEnd := opts.RangeEnd.In(loc)

	y, m, d := rangeStart.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, loc)

	occurrences := make([]Occurrence, 0)
	for day.Before(rangeEnd) {
		for _, rule := range rules {
			if rule.Weekday != day.Weekday() {
				continue
			}
			start := atMinute(day, rule.StartMinute, loc)
			if start.Before(rangeStart) || !start.Before(rangeEnd) {
				continue
			}
			occurrences = append(occurrences, Occurrence{
				RuleID: rule.ID,
				Start:  start,
				End:    atMinute(day, rule.EndMinute, loc),
			})
		}
		day = day.AddDate(0, 0, 1)
	}

	return occurrences, nil
}

// Split cuts an occurrence into back-to-back slots of length step. A trailing
// remainder shorter than step is dropped.
func Split(occ Occurrence, step time.Duration) []Occurrence {
	if step <= 0 {
		return nil
	}
	slots := make([]Occurrence, 0)
	for start := occ.Start; !start.Add(step).After(occ.End); start = start.Add(step) {
		slots = append(slots, Occurrence{RuleID: occ.RuleID, Start: start, End: start.Add(step)})
	}
	return slots
}

func atMinute(day time.Time, minute int, loc *time.Location) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, minute/60, minute%60, 0, 0, loc)
}
