// Package calendar creates and removes remote calendar events for booked sessions.
package calendar

import (
	"context"
	"encoding/base32"
	"errors"
	"strings"
	"time"
)

// ErrEventGone is returned by DeleteEvent when the event no longer exists remotely.
var ErrEventGone = errors.New("calendar: event not found")

// EventSpec describes the event to create. Start and End are sent in UTC.
type EventSpec struct {
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
	Attendees   []string
	// RequestID makes the conference creation request idempotent.
	RequestID string
	// EventID, when set, is used as the remote event id so that a retried
	// insert finds the event an earlier attempt already created.
	EventID string
}

var eventIDEncoding = base32.HexEncoding.WithPadding(base32.NoPadding)

// EventIDFor derives a stable provider event id from a session id. Google
// accepts 5 to 1024 characters from the base32hex alphabet.
func EventIDFor(sessionID string) string {
	if sessionID == "" {
		return ""
	}
	return "tb" + strings.ToLower(eventIDEncoding.EncodeToString([]byte(sessionID)))
}

// Event is the provider's view of a created event.
type Event struct {
	ID          string
	MeetingLink string
}

// Gateway is a remote calendar provider.
type Gateway interface {
	CreateEvent(ctx context.Context, accessToken string, spec EventSpec) (Event, error)
	DeleteEvent(ctx context.Context, accessToken, eventID string) error
}
