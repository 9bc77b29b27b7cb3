package scheduler

import (
	"math"
	"time"
)

// DefaultMinimumNotice is the shortest notice accepted for a cancellation.
const DefaultMinimumNotice = 24 * time.Hour

// Verdict is the outcome of a cancellation notice check.
type Verdict int

const (
	// CancelAllowed means the session may be cancelled.
	CancelAllowed Verdict = iota
	// CancelAlreadyStarted means the session start is not in the future.
	CancelAlreadyStarted
	// CancelTooLate means the session starts within the minimum notice.
	CancelTooLate
)

// CancellationPolicy enforces minimum-notice cancellation.
type CancellationPolicy struct {
	MinimumNotice time.Duration
}

// Evaluate checks a session starting at start against now and returns the verdict
// with the hours remaining until the start, rounded to one decimal.
func (p CancellationPolicy) Evaluate(start, now time.Time) (Verdict, float64) {
	notice := p.MinimumNotice
	if notice <= 0 {
		notice = DefaultMinimumNotice
	}
	remaining := start.Sub(now)
	hours := math.Round(remaining.Hours()*10) / 10
	if remaining <= 0 {
		return CancelAlreadyStarted, hours
	}
	if remaining < notice {
		return CancelTooLate, hours
	}
	return CancelAllowed, hours
}
