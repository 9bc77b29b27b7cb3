package application

import "time"

// Role identifies what a caller may do on the platform.
type Role string

const (
	RoleLearner Role = "learner"
	RoleSpeaker Role = "speaker"
	RoleAdmin   Role = "admin"
)

// Principal represents the authenticated user invoking a service method.
type Principal struct {
	UserID string
	Role   Role
}

// User is the slice of a platform account the booking services need.
type User struct {
	ID          string
	Email       string
	DisplayName string
	Role        Role
	IsActive    bool
}

// AvailabilityEntry is one weekly window in which a speaker accepts bookings.
type AvailabilityEntry struct {
	ID          string
	Day         time.Weekday
	StartTime   string
	EndTime     string
	IsAvailable bool
}

// AvailabilityInput captures a caller provided availability window.
type AvailabilityInput struct {
	Day         string `validate:"required"`
	StartTime   string `validate:"required,clock"`
	EndTime     string `validate:"required,clock"`
	IsAvailable bool
}

// SessionStatus is the lifecycle state of a booked session.
type SessionStatus string

const (
	StatusScheduled SessionStatus = "scheduled"
	StatusCompleted SessionStatus = "completed"
	StatusCancelled SessionStatus = "cancelled"
)

// Session is a booked 30 minute meeting between a speaker and a learner.
type Session struct {
	ID                 string
	SpeakerID          string
	LearnerID          string
	Title              string
	Date               string
	Time               string
	DurationMinutes    int
	Status             SessionStatus
	Topics             []string
	Icebreaker         string
	MeetingLink        string
	CalendarEventID    string
	CalendarSynced     bool
	CancellationReason string
	CancelledAt        *time.Time
	CancelledBy        string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// IsParty reports whether userID is the session's speaker or learner.
func (s Session) IsParty(userID string) bool {
	return userID != "" && (s.SpeakerID == userID || s.LearnerID == userID)
}

// BookingInput captures the caller provided booking request.
type BookingInput struct {
	SpeakerID string   `validate:"required"`
	Title     string   `validate:"required,max=200"`
	Date      string   `validate:"required,datetime=2006-01-02"`
	Time      string   `validate:"required,clock"`
	Topics    []string `validate:"omitempty,dive,max=100"`
}

// BookParams wraps the data required to book a session.
type BookParams struct {
	Principal Principal
	Input     BookingInput
}

// CalendarOutcome reports how remote event creation went for a booking.
type CalendarOutcome struct {
	Created bool
	EventID string
	Error   string
}

// BookingResult is the created session plus the calendar sync outcome.
type BookingResult struct {
	Session  Session
	Calendar CalendarOutcome
}

// CancelParams wraps the data required to cancel a session.
type CancelParams struct {
	Principal Principal
	SessionID string
	Reason    string
}

// ListSessionsParams filters the caller's sessions.
type ListSessionsParams struct {
	Principal Principal
	Status    SessionStatus
}

// ReplaceAvailabilityParams wraps a wholesale availability update.
type ReplaceAvailabilityParams struct {
	Principal Principal
	Entries   []AvailabilityInput
}

// ListSlotsParams bounds an open-slot listing.
type ListSlotsParams struct {
	SpeakerID string
	From      string
	Days      int
}

// Slot is an open 30 minute booking window.
type Slot struct {
	Date  string
	Time  string
	Start time.Time
	End   time.Time
}

// SessionFilter narrows session queries. Empty fields are ignored.
type SessionFilter struct {
	ParticipantID string
	SpeakerID     string
	Status        SessionStatus
	DateFrom      string
	DateTo        string
}

// Cancellation records who cancelled a session, when and why.
type Cancellation struct {
	Reason string
	By     string
	At     time.Time
}
