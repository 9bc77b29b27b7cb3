package testfixtures

import (
	"sync"
	"time"

	"github.com/example/tutorbook/internal/scheduler"
)

// Clock is a manually driven time source shared by services, the token manager
// and the SQLite harness in a test.
type Clock struct {
	mu  sync.Mutex
	now time.Time
	loc *time.Location
}

// NewClock starts at start, or at ReferenceTime when start is zero. Wall-clock
// helpers interpret dates in start's location.
func NewClock(start time.Time) *Clock {
	if start.IsZero() {
		start = ReferenceTime()
	}
	return &Clock{now: start, loc: start.Location()}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// NowFunc is the injectable form of Now. A nil clock yields time.Now.
func (c *Clock) NowFunc() func() time.Time {
	if c == nil {
		return time.Now
	}
	return c.Now
}

func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

// Advance moves the clock forward and returns the new instant.
func (c *Clock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

// SetWall moves the clock to a booking-style date ("2006-01-02") and clock
// ("15:04") in the clock's location. It panics on malformed input.
func (c *Clock) SetWall(date, clock string) time.Time {
	at, err := scheduler.Instant(date, clock, c.loc)
	if err != nil {
		panic("testfixtures: " + err.Error())
	}
	c.Set(at)
	return at
}

// HoursUntil reports how far the slot at date/clock lies ahead of the clock.
func (c *Clock) HoursUntil(date, clock string) float64 {
	at, err := scheduler.Instant(date, clock, c.loc)
	if err != nil {
		panic("testfixtures: " + err.Error())
	}
	return at.Sub(c.Now()).Hours()
}
