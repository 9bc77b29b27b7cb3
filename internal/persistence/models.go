package persistence

import "time"

// User is a marketplace account as provisioned from the identity provider.
type User struct {
	ID          string
	Email       string
	DisplayName string
	Role        string
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Credential is the calendar OAuth state stored on a speaker's user record.
// Tokens are held in plaintext here; the store seals them at rest.
type Credential struct {
	SpeakerID    string
	AccessToken  string
	RefreshToken string
	ExpiresAt    *time.Time
	Connected    bool
	UpdatedAt    time.Time
}

// AvailabilityEntry is one weekly window a speaker accepts bookings in.
type AvailabilityEntry struct {
	ID          string
	SpeakerID   string
	Day         time.Weekday
	StartTime   string
	EndTime     string
	IsAvailable bool
	CreatedAt   time.Time
}

// Session statuses.
const (
	StatusScheduled = "scheduled"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

// Session is a booked tutoring session.
type Session struct {
	ID                 string
	SpeakerID          string
	LearnerID          string
	Title              string
	Date               string
	Time               string
	StartMinute        int
	DurationMinutes    int
	Status             string
	Topics             []string
	Icebreaker         string
	MeetingLink        string
	CalendarEventID    *string
	CalendarSynced     bool
	CancellationReason *string
	CancelledAt        *time.Time
	CancelledBy        *string
	CompletedAt        *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Cancellation records who cancelled a session and why.
type Cancellation struct {
	Reason string
	By     string
	At     time.Time
}
