package main

import (
	"context"
	"time"

	"github.com/example/tutorbook/internal/application"
	"github.com/example/tutorbook/internal/oauth"
	"github.com/example/tutorbook/internal/persistence"
	"github.com/example/tutorbook/internal/scheduler"
)

type userAdapter struct {
	repo persistence.UserRepository
}

func newUserAdapter(repo persistence.UserRepository) *userAdapter {
	return &userAdapter{repo: repo}
}

func (a *userAdapter) GetUser(ctx context.Context, id string) (application.User, error) {
	stored, err := a.repo.GetUser(ctx, id)
	if err != nil {
		return application.User{}, err
	}
	return toApplicationUser(stored), nil
}

// ProvisionUser records the caller named by a verified identity token.
func (a *userAdapter) ProvisionUser(ctx context.Context, user application.User) error {
	_, err := a.repo.UpsertUser(ctx, persistence.User{
		ID:          user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		Role:        string(user.Role),
	})
	return err
}

type credentialAdapter struct {
	repo persistence.CredentialRepository
}

func newCredentialAdapter(repo persistence.CredentialRepository) *credentialAdapter {
	return &credentialAdapter{repo: repo}
}

func (a *credentialAdapter) GetCredential(ctx context.Context, speakerID string) (oauth.Credential, error) {
	stored, err := a.repo.GetCredential(ctx, speakerID)
	if err != nil {
		return oauth.Credential{}, err
	}
	return oauth.Credential{
		SpeakerID:    stored.SpeakerID,
		AccessToken:  stored.AccessToken,
		RefreshToken: stored.RefreshToken,
		ExpiresAt:    cloneTime(stored.ExpiresAt),
		Connected:    stored.Connected,
	}, nil
}

// LoadCredential serves the cleanup worker.
func (a *credentialAdapter) LoadCredential(ctx context.Context, speakerID string) (oauth.Credential, error) {
	return a.GetCredential(ctx, speakerID)
}

func (a *credentialAdapter) ConnectCredential(ctx context.Context, cred oauth.Credential) error {
	return a.repo.ConnectCredential(ctx, persistence.Credential{
		SpeakerID:    cred.SpeakerID,
		AccessToken:  cred.AccessToken,
		RefreshToken: cred.RefreshToken,
		ExpiresAt:    cloneTime(cred.ExpiresAt),
		Connected:    cred.Connected,
	})
}

func (a *credentialAdapter) ClearCredential(ctx context.Context, speakerID string) error {
	return a.repo.ClearCredential(ctx, speakerID)
}

// SaveToken stores a refreshed token pair for the oauth.Manager.
func (a *credentialAdapter) SaveToken(ctx context.Context, speakerID string, token oauth.Token) error {
	var expiresAt *time.Time
	if !token.Expiry.IsZero() {
		expiry := token.Expiry.UTC()
		expiresAt = &expiry
	}
	return a.repo.UpdateTokens(ctx, speakerID, token.AccessToken, token.RefreshToken, expiresAt)
}

func (a *credentialAdapter) MarkDisconnected(ctx context.Context, speakerID string) error {
	return a.repo.MarkDisconnected(ctx, speakerID)
}

type availabilityAdapter struct {
	repo persistence.AvailabilityRepository
}

func newAvailabilityAdapter(repo persistence.AvailabilityRepository) *availabilityAdapter {
	return &availabilityAdapter{repo: repo}
}

func (a *availabilityAdapter) ListAvailability(ctx context.Context, speakerID string) ([]application.AvailabilityEntry, error) {
	models, err := a.repo.ListAvailability(ctx, speakerID)
	if err != nil {
		return nil, err
	}
	entries := make([]application.AvailabilityEntry, 0, len(models))
	for _, model := range models {
		entries = append(entries, application.AvailabilityEntry{
			ID:          model.ID,
			Day:         model.Day,
			StartTime:   model.StartTime,
			EndTime:     model.EndTime,
			IsAvailable: model.IsAvailable,
		})
	}
	return entries, nil
}

func (a *availabilityAdapter) ReplaceAvailability(ctx context.Context, speakerID string, entries []application.AvailabilityEntry) error {
	models := make([]persistence.AvailabilityEntry, 0, len(entries))
	for _, entry := range entries {
		models = append(models, persistence.AvailabilityEntry{
			ID:          entry.ID,
			SpeakerID:   speakerID,
			Day:         entry.Day,
			StartTime:   entry.StartTime,
			EndTime:     entry.EndTime,
			IsAvailable: entry.IsAvailable,
		})
	}
	return a.repo.ReplaceAvailability(ctx, speakerID, models)
}

type sessionAdapter struct {
	repo persistence.SessionRepository
}

func newSessionAdapter(repo persistence.SessionRepository) *sessionAdapter {
	return &sessionAdapter{repo: repo}
}

func (a *sessionAdapter) CreateSession(ctx context.Context, session application.Session) error {
	model, err := toPersistenceSession(session)
	if err != nil {
		return err
	}
	return a.repo.CreateSession(ctx, model)
}

func (a *sessionAdapter) GetSession(ctx context.Context, id string) (application.Session, error) {
	stored, err := a.repo.GetSession(ctx, id)
	if err != nil {
		return application.Session{}, err
	}
	return toApplicationSession(stored), nil
}

func (a *sessionAdapter) ListSessions(ctx context.Context, filter application.SessionFilter) ([]application.Session, error) {
	models, err := a.repo.ListSessions(ctx, persistence.SessionFilter{
		ParticipantID: filter.ParticipantID,
		SpeakerID:     filter.SpeakerID,
		Status:        string(filter.Status),
		DateFrom:      filter.DateFrom,
		DateTo:        filter.DateTo,
	})
	if err != nil {
		return nil, err
	}
	sessions := make([]application.Session, 0, len(models))
	for _, model := range models {
		sessions = append(sessions, toApplicationSession(model))
	}
	return sessions, nil
}

func (a *sessionAdapter) CancelSession(ctx context.Context, id string, cancellation application.Cancellation) (application.Session, error) {
	stored, err := a.repo.CancelSession(ctx, id, persistence.Cancellation{
		Reason: cancellation.Reason,
		By:     cancellation.By,
		At:     cancellation.At,
	})
	if err != nil {
		return application.Session{}, err
	}
	return toApplicationSession(stored), nil
}

func (a *sessionAdapter) CompleteSession(ctx context.Context, id string, at time.Time) error {
	return a.repo.CompleteSession(ctx, id, at)
}

// consentAdapter pairs the provider's consent URL with the manager's exchange.
type consentAdapter struct {
	provider oauth.Provider
	manager  *oauth.Manager
}

func (a consentAdapter) AuthCodeURL(state string) string {
	return a.provider.AuthCodeURL(state)
}

func (a consentAdapter) Exchange(ctx context.Context, speakerID, code string) (oauth.Token, error) {
	return a.manager.Exchange(ctx, speakerID, code)
}

func toApplicationUser(model persistence.User) application.User {
	return application.User{
		ID:          model.ID,
		Email:       model.Email,
		DisplayName: model.DisplayName,
		Role:        application.Role(model.Role),
		IsActive:    model.IsActive,
	}
}

func toApplicationSession(model persistence.Session) application.Session {
	return application.Session{
		ID:                 model.ID,
		SpeakerID:          model.SpeakerID,
		LearnerID:          model.LearnerID,
		Title:              model.Title,
		Date:               model.Date,
		Time:               model.Time,
		DurationMinutes:    model.DurationMinutes,
		Status:             application.SessionStatus(model.Status),
		Topics:             append([]string(nil), model.Topics...),
		Icebreaker:         model.Icebreaker,
		MeetingLink:        model.MeetingLink,
		CalendarEventID:    derefString(model.CalendarEventID),
		CalendarSynced:     model.CalendarSynced,
		CancellationReason: derefString(model.CancellationReason),
		CancelledAt:        cloneTime(model.CancelledAt),
		CancelledBy:        derefString(model.CancelledBy),
		CreatedAt:          model.CreatedAt,
		UpdatedAt:          model.UpdatedAt,
	}
}

func toPersistenceSession(session application.Session) (persistence.Session, error) {
	start, err := scheduler.ParseClock(session.Time)
	if err != nil {
		return persistence.Session{}, err
	}
	return persistence.Session{
		ID:                 session.ID,
		SpeakerID:          session.SpeakerID,
		LearnerID:          session.LearnerID,
		Title:              session.Title,
		Date:               session.Date,
		Time:               session.Time,
		StartMinute:        start,
		DurationMinutes:    session.DurationMinutes,
		Status:             string(session.Status),
		Topics:             append([]string(nil), session.Topics...),
		Icebreaker:         session.Icebreaker,
		MeetingLink:        session.MeetingLink,
		CalendarEventID:    optionalString(session.CalendarEventID),
		CalendarSynced:     session.CalendarSynced,
		CancellationReason: optionalString(session.CancellationReason),
		CancelledAt:        cloneTime(session.CancelledAt),
		CancelledBy:        optionalString(session.CancelledBy),
		CreatedAt:          session.CreatedAt,
		UpdatedAt:          session.UpdatedAt,
	}, nil
}

func optionalString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func derefString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func cloneTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	t := *value
	return &t
}
