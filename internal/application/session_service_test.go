package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sessionsFixture() *sessionRepoStub {
	return &sessionRepoStub{sessions: []Session{
		{ID: "s-1", SpeakerID: "speaker-1", LearnerID: "learner-1", Date: "2025-03-10", Time: "09:00", DurationMinutes: 30, Status: StatusScheduled},
		{ID: "s-2", SpeakerID: "speaker-1", LearnerID: "learner-2", Date: "2025-03-10", Time: "10:00", DurationMinutes: 30, Status: StatusScheduled},
		{ID: "s-3", SpeakerID: "speaker-2", LearnerID: "learner-1", Date: "2025-03-11", Time: "08:00", DurationMinutes: 30, Status: StatusCancelled},
		{ID: "s-4", SpeakerID: "speaker-2", LearnerID: "learner-1", Date: "2025-03-12", Time: "08:00", DurationMinutes: 30, Status: StatusScheduled},
	}}
}

func TestSessionService_ListSessions(t *testing.T) {
	t.Parallel()
	svc := NewSessionService(sessionsFixture(), time.UTC, nil, nil)

	sessions, err := svc.ListSessions(context.Background(), ListSessionsParams{Principal: Principal{UserID: "learner-1", Role: RoleLearner}})
	require.NoError(t, err)
	assert.Len(t, sessions, 3)

	scheduled, err := svc.ListSessions(context.Background(), ListSessionsParams{
		Principal: Principal{UserID: "speaker-1", Role: RoleSpeaker},
		Status:    "Scheduled",
	})
	require.NoError(t, err)
	assert.Len(t, scheduled, 2)

	_, err = svc.ListSessions(context.Background(), ListSessionsParams{
		Principal: Principal{UserID: "speaker-1", Role: RoleSpeaker},
		Status:    "pending",
	})
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)

	_, err = svc.ListSessions(context.Background(), ListSessionsParams{})
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestSessionService_GetSessionVisibleToParties(t *testing.T) {
	t.Parallel()
	svc := NewSessionService(sessionsFixture(), time.UTC, nil, nil)

	session, err := svc.GetSession(context.Background(), Principal{UserID: "learner-2", Role: RoleLearner}, "s-2")
	require.NoError(t, err)
	assert.Equal(t, "s-2", session.ID)

	_, err = svc.GetSession(context.Background(), Principal{UserID: "learner-1", Role: RoleLearner}, "s-2")
	requireDomainError(t, err, ErrSessionNotFound)

	_, err = svc.GetSession(context.Background(), Principal{UserID: "admin-1", Role: RoleAdmin}, "s-2")
	require.NoError(t, err)

	_, err = svc.GetSession(context.Background(), Principal{UserID: "learner-1", Role: RoleLearner}, "missing")
	requireDomainError(t, err, ErrSessionNotFound)
}

func TestSessionService_CompleteElapsed(t *testing.T) {
	t.Parallel()
	repo := sessionsFixture()
	// s-1 ended at 09:30, s-2 ends at 10:30.
	now := time.Date(2025, 3, 10, 10, 15, 0, 0, time.UTC)
	svc := NewSessionService(repo, time.UTC, func() time.Time { return now }, nil)

	completed, err := svc.CompleteElapsed(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, completed)
	assert.Equal(t, []string{"s-1"}, repo.completed)

	now = time.Date(2025, 3, 10, 10, 30, 0, 0, time.UTC)
	completed, err = svc.CompleteElapsed(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, completed)
	assert.Equal(t, []string{"s-1", "s-2"}, repo.completed)
}

func TestSessionService_CompleteElapsedCollectsErrors(t *testing.T) {
	t.Parallel()
	repo := sessionsFixture()
	boom := errors.New("disk full")
	repo.completeErr = map[string]error{"s-1": boom}
	svc := NewSessionService(repo, time.UTC, func() time.Time { return time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC) }, nil)

	completed, err := svc.CompleteElapsed(context.Background())
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, completed)
}
