package persistence

import (
	"context"
	"time"
)

// UserRepository stores marketplace users.
type UserRepository interface {
	UpsertUser(ctx context.Context, user User) (User, error)
	GetUser(ctx context.Context, id string) (User, error)
}

// CredentialRepository stores speakers' calendar credentials.
type CredentialRepository interface {
	GetCredential(ctx context.Context, speakerID string) (Credential, error)
	// ConnectCredential stores a full token pair and marks the calendar connected.
	ConnectCredential(ctx context.Context, cred Credential) error
	// UpdateTokens replaces the token pair after a refresh without touching Connected.
	UpdateTokens(ctx context.Context, speakerID, accessToken, refreshToken string, expiresAt *time.Time) error
	// MarkDisconnected clears Connected, keeping the stored tokens.
	MarkDisconnected(ctx context.Context, speakerID string) error
	// ClearCredential nulls every credential field.
	ClearCredential(ctx context.Context, speakerID string) error
}

// AvailabilityRepository stores weekly availability.
type AvailabilityRepository interface {
	ListAvailability(ctx context.Context, speakerID string) ([]AvailabilityEntry, error)
	ReplaceAvailability(ctx context.Context, speakerID string, entries []AvailabilityEntry) error
}

// SessionFilter narrows session queries. Empty fields are ignored.
type SessionFilter struct {
	ParticipantID string
	SpeakerID     string
	Status        string
	DateFrom      string
	DateTo        string
}

// SessionRepository stores booked sessions.
type SessionRepository interface {
	// CreateSession inserts a scheduled session unless it overlaps another
	// scheduled session of the same speaker, returning *SlotConflictError.
	CreateSession(ctx context.Context, session Session) error
	GetSession(ctx context.Context, id string) (Session, error)
	ListSessions(ctx context.Context, filter SessionFilter) ([]Session, error)
	// CancelSession moves a scheduled session to cancelled, or returns ErrNotScheduled.
	CancelSession(ctx context.Context, id string, cancellation Cancellation) (Session, error)
	// CompleteSession moves a scheduled session to completed, or returns ErrNotScheduled.
	CompleteSession(ctx context.Context, id string, at time.Time) error
}
