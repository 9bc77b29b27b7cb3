package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/tutorbook/internal/application"
	"github.com/example/tutorbook/internal/persistence"
)

var (
	userCounter         uint64
	availabilityCounter uint64
	sessionCounter      uint64
)

// referenceTime is a Sunday so that fixture sessions default to the following Monday.
var referenceTime = time.Date(2025, time.March, 9, 12, 0, 0, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// ----------------------------- User fixtures -----------------------------

// UserFixture represents a deterministic marketplace user.
type UserFixture struct {
	ID          string
	Email       string
	DisplayName string
	Role        application.Role
	IsActive    bool
	CreatedAt   time.Time
}

// UserOption configures the generated user fixture.
type UserOption func(*UserFixture)

// NewUserFixture returns an active learner with optional overrides.
func NewUserFixture(opts ...UserOption) UserFixture {
	idx := atomic.AddUint64(&userCounter, 1)
	id := fmt.Sprintf("user-%03d", idx)
	fixture := UserFixture{
		ID:          id,
		Email:       fmt.Sprintf("%s@example.com", id),
		DisplayName: fmt.Sprintf("User %03d", idx),
		Role:        application.RoleLearner,
		IsActive:    true,
		CreatedAt:   referenceTime.Add(time.Duration(idx) * time.Minute),
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithUserID overrides the generated user ID.
func WithUserID(id string) UserOption {
	return func(f *UserFixture) {
		f.ID = id
	}
}

// WithUserEmail overrides the generated email address.
func WithUserEmail(email string) UserOption {
	return func(f *UserFixture) {
		f.Email = email
	}
}

// WithUserRole sets the marketplace role.
func WithUserRole(role application.Role) UserOption {
	return func(f *UserFixture) {
		f.Role = role
	}
}

// AsSpeaker is shorthand for WithUserRole(application.RoleSpeaker).
func AsSpeaker() UserOption {
	return WithUserRole(application.RoleSpeaker)
}

// Inactive marks the user as deactivated.
func Inactive() UserOption {
	return func(f *UserFixture) {
		f.IsActive = false
	}
}

// Application returns the fixture as an application.User value.
func (f UserFixture) Application() application.User {
	return application.User{
		ID:          f.ID,
		Email:       f.Email,
		DisplayName: f.DisplayName,
		Role:        f.Role,
		IsActive:    f.IsActive,
	}
}

// Principal returns the principal acting as this user.
func (f UserFixture) Principal() application.Principal {
	return application.Principal{UserID: f.ID, Role: f.Role}
}

// Persistence returns the fixture as a persistence.User value.
func (f UserFixture) Persistence() persistence.User {
	return persistence.User{
		ID:          f.ID,
		Email:       f.Email,
		DisplayName: f.DisplayName,
		Role:        string(f.Role),
		IsActive:    f.IsActive,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.CreatedAt,
	}
}

// ------------------------- Availability fixtures -------------------------

// AvailabilityFixture is one weekly availability window.
type AvailabilityFixture struct {
	ID          string
	SpeakerID   string
	Day         time.Weekday
	StartTime   string
	EndTime     string
	IsAvailable bool
}

// AvailabilityOption configures the generated availability fixture.
type AvailabilityOption func(*AvailabilityFixture)

// NewAvailabilityFixture returns a Monday 09:00-17:00 window for speakerID.
func NewAvailabilityFixture(speakerID string, opts ...AvailabilityOption) AvailabilityFixture {
	idx := atomic.AddUint64(&availabilityCounter, 1)
	fixture := AvailabilityFixture{
		ID:          fmt.Sprintf("availability-%03d", idx),
		SpeakerID:   speakerID,
		Day:         time.Monday,
		StartTime:   "09:00",
		EndTime:     "17:00",
		IsAvailable: true,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithWindow sets the weekday and clock range.
func WithWindow(day time.Weekday, start, end string) AvailabilityOption {
	return func(f *AvailabilityFixture) {
		f.Day = day
		f.StartTime = start
		f.EndTime = end
	}
}

// Unavailable marks the window as blocked.
func Unavailable() AvailabilityOption {
	return func(f *AvailabilityFixture) {
		f.IsAvailable = false
	}
}

// Application returns the fixture as an application.AvailabilityEntry value.
func (f AvailabilityFixture) Application() application.AvailabilityEntry {
	return application.AvailabilityEntry{
		ID:          f.ID,
		Day:         f.Day,
		StartTime:   f.StartTime,
		EndTime:     f.EndTime,
		IsAvailable: f.IsAvailable,
	}
}

// Persistence returns the fixture as a persistence.AvailabilityEntry value.
func (f AvailabilityFixture) Persistence() persistence.AvailabilityEntry {
	return persistence.AvailabilityEntry{
		ID:          f.ID,
		SpeakerID:   f.SpeakerID,
		Day:         f.Day,
		StartTime:   f.StartTime,
		EndTime:     f.EndTime,
		IsAvailable: f.IsAvailable,
		CreatedAt:   referenceTime,
	}
}

// ----------------------------- Session fixtures -------------------------

// SessionFixture represents a deterministic scheduled session.
type SessionFixture struct {
	ID              string
	SpeakerID       string
	LearnerID       string
	Title           string
	Date            string
	Time            string
	Status          application.SessionStatus
	Topics          []string
	CalendarEventID string
	CreatedAt       time.Time
}

// SessionOption configures the generated session fixture.
type SessionOption func(*SessionFixture)

// NewSessionFixture returns a scheduled session on Monday 2025-03-10 at 10:00.
func NewSessionFixture(speakerID, learnerID string, opts ...SessionOption) SessionFixture {
	idx := atomic.AddUint64(&sessionCounter, 1)
	fixture := SessionFixture{
		ID:        fmt.Sprintf("session-%03d", idx),
		SpeakerID: speakerID,
		LearnerID: learnerID,
		Title:     fmt.Sprintf("Session %03d", idx),
		Date:      "2025-03-10",
		Time:      "10:00",
		Status:    application.StatusScheduled,
		CreatedAt: referenceTime,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithSessionID overrides the session ID.
func WithSessionID(id string) SessionOption {
	return func(f *SessionFixture) {
		f.ID = id
	}
}

// WithSlot sets the date and start time.
func WithSlot(date, clock string) SessionOption {
	return func(f *SessionFixture) {
		f.Date = date
		f.Time = clock
	}
}

// WithSessionStatus overrides the status.
func WithSessionStatus(status application.SessionStatus) SessionOption {
	return func(f *SessionFixture) {
		f.Status = status
	}
}

// WithCalendarEvent records a synced remote event.
func WithCalendarEvent(eventID string) SessionOption {
	return func(f *SessionFixture) {
		f.CalendarEventID = eventID
	}
}

// Application returns the fixture as an application.Session value.
func (f SessionFixture) Application() application.Session {
	return application.Session{
		ID:              f.ID,
		SpeakerID:       f.SpeakerID,
		LearnerID:       f.LearnerID,
		Title:           f.Title,
		Date:            f.Date,
		Time:            f.Time,
		DurationMinutes: 30,
		Status:          f.Status,
		Topics:          append([]string(nil), f.Topics...),
		MeetingLink:     "https://meet.google.com/abc-def-ghi",
		CalendarEventID: f.CalendarEventID,
		CalendarSynced:  f.CalendarEventID != "",
		CreatedAt:       f.CreatedAt,
		UpdatedAt:       f.CreatedAt,
	}
}

// Persistence returns the fixture as a persistence.Session value.
func (f SessionFixture) Persistence() persistence.Session {
	var start int
	if t, err := time.Parse("15:04", f.Time); err == nil {
		start = t.Hour()*60 + t.Minute()
	}
	var eventID *string
	if f.CalendarEventID != "" {
		id := f.CalendarEventID
		eventID = &id
	}
	return persistence.Session{
		ID:              f.ID,
		SpeakerID:       f.SpeakerID,
		LearnerID:       f.LearnerID,
		Title:           f.Title,
		Date:            f.Date,
		Time:            f.Time,
		StartMinute:     start,
		DurationMinutes: 30,
		Status:          string(f.Status),
		Topics:          append([]string(nil), f.Topics...),
		MeetingLink:     "https://meet.google.com/abc-def-ghi",
		CalendarEventID: eventID,
		CalendarSynced:  eventID != nil,
		CreatedAt:       f.CreatedAt,
		UpdatedAt:       f.CreatedAt,
	}
}
