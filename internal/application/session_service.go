package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/tutorbook/internal/persistence"
	"github.com/example/tutorbook/internal/scheduler"
)

// SessionService exposes read access to sessions and the time-driven completion transition.
type SessionService struct {
	sessions SessionRepository
	location *time.Location
	now      func() time.Time
	logger   *slog.Logger
}

// NewSessionService constructs a session service.
func NewSessionService(sessions SessionRepository, location *time.Location, now func() time.Time, logger *slog.Logger) *SessionService {
	if location == nil {
		location = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &SessionService{sessions: sessions, location: location, now: now, logger: defaultLogger(logger)}
}

func (s *SessionService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "SessionService", operation, attrs...)
}

// ListSessions returns sessions in which the caller is speaker or learner, ordered by date and time.
func (s *SessionService) ListSessions(ctx context.Context, params ListSessionsParams) ([]Session, error) {
	if s == nil {
		return nil, fmt.Errorf("SessionService is nil")
	}
	if s.sessions == nil {
		return nil, fmt.Errorf("session repository not configured")
	}
	if params.Principal.UserID == "" {
		return nil, ErrUnauthorized
	}

	status := SessionStatus(strings.ToLower(strings.TrimSpace(string(params.Status))))
	switch status {
	case "", StatusScheduled, StatusCompleted, StatusCancelled:
	default:
		vErr := &ValidationError{}
		vErr.add("status", "must be scheduled, completed or cancelled")
		return nil, vErr
	}

	sessions, err := s.sessions.ListSessions(ctx, SessionFilter{
		ParticipantID: params.Principal.UserID,
		Status:        status,
	})
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

// GetSession returns a session visible to the caller. Sessions of other users
// are reported as not found.
func (s *SessionService) GetSession(ctx context.Context, principal Principal, sessionID string) (Session, error) {
	if s == nil {
		return Session{}, fmt.Errorf("SessionService is nil")
	}
	if s.sessions == nil {
		return Session{}, fmt.Errorf("session repository not configured")
	}
	if principal.UserID == "" {
		return Session{}, ErrUnauthorized
	}

	session, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return Session{}, newDomainError(ErrSessionNotFound, "", nil, nil)
		}
		return Session{}, fmt.Errorf("get session: %w", err)
	}
	if !session.IsParty(principal.UserID) && principal.Role != RoleAdmin {
		return Session{}, newDomainError(ErrSessionNotFound, "", nil, nil)
	}
	return session, nil
}

// CompleteElapsed marks scheduled sessions whose end has passed as completed
// and returns how many were transitioned.
func (s *SessionService) CompleteElapsed(ctx context.Context) (completed int, err error) {
	if s == nil {
		err = fmt.Errorf("SessionService is nil")
		return
	}
	if s.sessions == nil {
		err = fmt.Errorf("session repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "CompleteElapsed")
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to complete elapsed sessions", "error", err, "error_kind", ErrorKind(err), "completed", completed)
			return
		}
		if completed > 0 {
			logger.InfoContext(ctx, "elapsed sessions completed", "completed", completed)
		}
	}()

	now := s.now()
	candidates, err := s.sessions.ListSessions(ctx, SessionFilter{
		Status: StatusScheduled,
		DateTo: now.In(s.location).Format(scheduler.DateLayout),
	})
	if err != nil {
		err = fmt.Errorf("list scheduled sessions: %w", err)
		return
	}

	var errs []error
	for _, session := range candidates {
		start, perr := scheduler.Instant(session.Date, session.Time, s.location)
		if perr != nil {
			errs = append(errs, fmt.Errorf("session %s: %w", session.ID, perr))
			continue
		}
		duration := session.DurationMinutes
		if duration <= 0 {
			duration = scheduler.SessionMinutes
		}
		if start.Add(time.Duration(duration) * time.Minute).After(now) {
			continue
		}
		cerr := s.sessions.CompleteSession(ctx, session.ID, now)
		switch {
		case cerr == nil:
			completed++
		case errors.Is(cerr, persistence.ErrNotScheduled), errors.Is(cerr, persistence.ErrNotFound):
			// Cancelled or completed concurrently.
		default:
			errs = append(errs, fmt.Errorf("session %s: %w", session.ID, cerr))
		}
	}
	err = errors.Join(errs...)
	return
}
