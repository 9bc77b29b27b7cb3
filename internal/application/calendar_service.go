package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/tutorbook/internal/oauth"
	"github.com/example/tutorbook/internal/persistence"
)

const stateTTL = 10 * time.Minute

// StateSigner issues and verifies the signed state carried through the consent redirect.
type StateSigner interface {
	IssueState(speakerID string, ttl time.Duration) (string, error)
	VerifyState(state string) (string, error)
}

// ConsentProvider exchanges authorization codes with the identity provider.
type ConsentProvider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, speakerID, code string) (oauth.Token, error)
}

// CredentialWriter records connection and disconnection of a speaker's calendar.
type CredentialWriter interface {
	ConnectCredential(ctx context.Context, cred oauth.Credential) error
	ClearCredential(ctx context.Context, speakerID string) error
}

// CalendarConnectionService drives the calendar OAuth connect and disconnect flow.
type CalendarConnectionService struct {
	states      StateSigner
	provider    ConsentProvider
	credentials CredentialWriter
	logger      *slog.Logger
}

// NewCalendarConnectionService constructs the connection service.
func NewCalendarConnectionService(states StateSigner, provider ConsentProvider, credentials CredentialWriter, logger *slog.Logger) *CalendarConnectionService {
	return &CalendarConnectionService{states: states, provider: provider, credentials: credentials, logger: defaultLogger(logger)}
}

func (s *CalendarConnectionService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "CalendarConnectionService", operation, attrs...)
}

// ConnectURL returns the consent URL a speaker follows to connect a calendar.
func (s *CalendarConnectionService) ConnectURL(ctx context.Context, principal Principal) (string, error) {
	if s == nil {
		return "", fmt.Errorf("CalendarConnectionService is nil")
	}
	if principal.UserID == "" || principal.Role != RoleSpeaker {
		return "", ErrUnauthorized
	}
	if s.states == nil || s.provider == nil {
		return "", newDomainError(ErrCalendarUnavailable, "calendar integration is not configured", nil, nil)
	}
	state, err := s.states.IssueState(principal.UserID, stateTTL)
	if err != nil {
		return "", fmt.Errorf("issue state: %w", err)
	}
	return s.provider.AuthCodeURL(state), nil
}

// CompleteConnection handles the provider callback: it verifies state, exchanges
// the code and marks the speaker's calendar connected.
func (s *CalendarConnectionService) CompleteConnection(ctx context.Context, code, state string) (speakerID string, err error) {
	if s == nil {
		err = fmt.Errorf("CalendarConnectionService is nil")
		return
	}

	logger := s.loggerWith(ctx, "CompleteConnection")
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to connect calendar", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "calendar connected", "speaker_id", speakerID)
	}()

	code = strings.TrimSpace(code)
	state = strings.TrimSpace(state)
	vErr := &ValidationError{}
	if code == "" {
		vErr.add("code", "is required")
	}
	if state == "" {
		vErr.add("state", "is required")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}
	if s.states == nil || s.provider == nil || s.credentials == nil {
		err = newDomainError(ErrCalendarUnavailable, "calendar integration is not configured", nil, nil)
		return
	}

	speakerID, err = s.states.VerifyState(state)
	if err != nil {
		err = newDomainError(ErrInvalidState, "", nil, err)
		return
	}

	token, err := s.provider.Exchange(ctx, speakerID, code)
	if err != nil {
		if errors.Is(err, oauth.ErrUnavailable) {
			err = newDomainError(ErrCalendarUnavailable, "", nil, err)
			return
		}
		err = newDomainError(ErrAuthorizationFailed, "", nil, err)
		return
	}

	expiry := token.Expiry
	cred := oauth.Credential{
		SpeakerID:    speakerID,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		Connected:    true,
	}
	if !expiry.IsZero() {
		cred.ExpiresAt = &expiry
	}
	if err = s.credentials.ConnectCredential(ctx, cred); err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			err = newDomainError(ErrSpeakerUnavailable, "", nil, err)
			return
		}
		err = fmt.Errorf("store credential: %w", err)
	}
	return
}

// Disconnect clears every credential field for the calling speaker.
func (s *CalendarConnectionService) Disconnect(ctx context.Context, principal Principal) (err error) {
	if s == nil {
		return fmt.Errorf("CalendarConnectionService is nil")
	}
	if principal.UserID == "" || principal.Role != RoleSpeaker {
		return ErrUnauthorized
	}
	if s.credentials == nil {
		return fmt.Errorf("credential writer not configured")
	}

	logger := s.loggerWith(ctx, "Disconnect", "principal_id", principal.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to disconnect calendar", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "calendar disconnected")
	}()

	if err = s.credentials.ClearCredential(ctx, principal.UserID); err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			err = ErrNotFound
			return
		}
		err = fmt.Errorf("clear credential: %w", err)
	}
	return
}
