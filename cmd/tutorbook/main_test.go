package main

import (
	"context"
	"net"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/tutorbook/internal/application"
	"github.com/example/tutorbook/internal/calendar"
	"github.com/example/tutorbook/internal/config"
	"github.com/example/tutorbook/internal/identity"
	"github.com/example/tutorbook/internal/oauth"
	"github.com/example/tutorbook/internal/queue"
	"github.com/example/tutorbook/internal/retry"
	"github.com/example/tutorbook/internal/testfixtures"
	"github.com/example/tutorbook/internal/worker"
)

var singleAttempt = retry.Policy{Name: "test", MaxAttempts: 1}

type adapterFixture struct {
	harness      *testfixtures.SQLiteHarness
	users        *userAdapter
	credentials  *credentialAdapter
	availability *availabilityAdapter
	sessions     *sessionAdapter
	speaker      testfixtures.UserFixture
	learner      testfixtures.UserFixture
}

func newAdapterFixture(t *testing.T) *adapterFixture {
	t.Helper()
	harness := testfixtures.NewSQLiteHarness(t)
	f := &adapterFixture{
		harness:      harness,
		users:        newUserAdapter(harness.Store.Users),
		credentials:  newCredentialAdapter(harness.Store.Users),
		availability: newAvailabilityAdapter(harness.Store.Availability),
		sessions:     newSessionAdapter(harness.Store.Sessions),
		speaker:      testfixtures.NewUserFixture(testfixtures.AsSpeaker()),
		learner:      testfixtures.NewUserFixture(),
	}
	harness.SeedUsers(t, f.speaker, f.learner)
	return f
}

func TestUserAdapter_ProvisionAndGet(t *testing.T) {
	t.Parallel()
	f := newAdapterFixture(t)
	ctx := context.Background()

	require.NoError(t, f.users.ProvisionUser(ctx, application.User{
		ID:          "admin-1",
		Email:       "Admin@Example.com",
		DisplayName: "Ada",
		Role:        application.RoleAdmin,
	}))

	user, err := f.users.GetUser(ctx, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, application.RoleAdmin, user.Role)
	assert.True(t, user.IsActive)
	assert.Equal(t, "Ada", user.DisplayName)
}

func TestCredentialAdapter_Lifecycle(t *testing.T) {
	t.Parallel()
	f := newAdapterFixture(t)
	ctx := context.Background()
	expiry := time.Date(2025, 3, 9, 13, 0, 0, 0, time.UTC)

	require.NoError(t, f.credentials.ConnectCredential(ctx, oauth.Credential{
		SpeakerID:    f.speaker.ID,
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		ExpiresAt:    &expiry,
		Connected:    true,
	}))

	cred, err := f.credentials.GetCredential(ctx, f.speaker.ID)
	require.NoError(t, err)
	assert.True(t, cred.Usable())
	require.NotNil(t, cred.ExpiresAt)
	assert.True(t, cred.ExpiresAt.Equal(expiry))

	refreshed := expiry.Add(time.Hour)
	require.NoError(t, f.credentials.SaveToken(ctx, f.speaker.ID, oauth.Token{AccessToken: "access-2", Expiry: refreshed}))
	cred, err = f.credentials.LoadCredential(ctx, f.speaker.ID)
	require.NoError(t, err)
	assert.Equal(t, "access-2", cred.AccessToken)
	assert.Equal(t, "refresh-1", cred.RefreshToken)

	require.NoError(t, f.credentials.MarkDisconnected(ctx, f.speaker.ID))
	cred, err = f.credentials.GetCredential(ctx, f.speaker.ID)
	require.NoError(t, err)
	assert.False(t, cred.Usable())

	require.NoError(t, f.credentials.ClearCredential(ctx, f.speaker.ID))
	cred, err = f.credentials.GetCredential(ctx, f.speaker.ID)
	require.NoError(t, err)
	assert.Empty(t, cred.AccessToken)
	assert.Nil(t, cred.ExpiresAt)
}

// TestBookAndCancelOverSQLite drives booking, cancellation and the cleanup worker
// through the storage adapters, the token manager and the calendar syncer.
func TestBookAndCancelOverSQLite(t *testing.T) {
	t.Parallel()
	f := newAdapterFixture(t)
	ctx := context.Background()
	refreshedUntil := f.harness.Clock.Now().Add(time.Hour)
	provider := &testfixtures.FakeProvider{
		RefreshToken: oauth.Token{AccessToken: "access-2", Expiry: refreshedUntil},
	}
	gateway := &testfixtures.FakeGateway{}
	tokens := oauth.NewManager(provider, f.credentials, oauth.ManagerConfig{Policy: singleAttempt}, f.harness.Clock.NowFunc(), nil)
	syncer := calendar.NewSyncer(gateway, calendar.SyncerConfig{Policy: singleAttempt}, nil)

	f.harness.SeedAvailability(t, f.speaker.ID,
		testfixtures.NewAvailabilityFixture(f.speaker.ID, testfixtures.WithWindow(time.Tuesday, "09:00", "12:00")))
	require.NoError(t, f.credentials.ConnectCredential(ctx, oauth.Credential{
		SpeakerID: f.speaker.ID, AccessToken: "access", RefreshToken: "refresh", Connected: true,
	}))

	client := queue.NewMemoryClient(4)
	t.Cleanup(func() { _ = client.Close() })
	cleanup := queue.CleanupPublisher{Client: client}

	factory := testfixtures.NewServiceFactory(testfixtures.WithClock(f.harness.Clock))
	slots := factory.NewSlotService(f.availability, f.sessions)
	bookings := factory.NewBookingService(application.BookingDependencies{
		Users:        f.users,
		Credentials:  f.credentials,
		Availability: f.availability,
		Sessions:     f.sessions,
		Tokens:       tokens,
		Calendar:     syncer,
		Cleanup:      cleanup,
		Slots:        slots,
	})

	input := application.BookingInput{SpeakerID: f.speaker.ID, Title: "Go interviews", Date: "2025-03-11", Time: "10:00", Topics: []string{"concurrency"}}
	result, err := bookings.Book(ctx, application.BookParams{Principal: f.learner.Principal(), Input: input})
	require.NoError(t, err)
	assert.True(t, result.Calendar.Created)
	assert.Equal(t, 1, provider.Refreshes, "a credential without expiry is refreshed first")
	assert.Equal(t, []string{"access-2"}, gateway.Tokens)

	cred, err := f.credentials.LoadCredential(ctx, f.speaker.ID)
	require.NoError(t, err)
	assert.Equal(t, "access-2", cred.AccessToken)
	require.NotNil(t, cred.ExpiresAt)

	stored, err := f.sessions.GetSession(ctx, result.Session.ID)
	require.NoError(t, err)
	assert.Equal(t, "event-1", stored.CalendarEventID)
	assert.Equal(t, []string{"concurrency"}, stored.Topics)
	assert.Equal(t, application.StatusScheduled, stored.Status)

	open, err := slots.ListSlots(ctx, application.ListSlotsParams{SpeakerID: f.speaker.ID, From: "2025-03-11", Days: 1})
	require.NoError(t, err)
	for _, slot := range open {
		assert.NotEqual(t, "10:00", slot.Time)
	}

	overlapping := input
	overlapping.Time = "10:15"
	_, err = bookings.Book(ctx, application.BookParams{Principal: f.learner.Principal(), Input: overlapping})
	assert.ErrorIs(t, err, application.ErrSlotTaken)

	cancellations := factory.NewCancellationService(f.sessions, cleanup, slots)
	cancelled, err := cancellations.Cancel(ctx, application.CancelParams{
		Principal: f.learner.Principal(),
		SessionID: result.Session.ID,
		Reason:    "conflict at work",
	})
	require.NoError(t, err)
	assert.Equal(t, application.StatusCancelled, cancelled.Status)
	assert.Equal(t, "conflict at work", cancelled.CancellationReason)

	msgs, err := client.Consume(ctx)
	require.NoError(t, err)
	var job queue.CleanupJob
	select {
	case body := <-msgs:
		job, err = queue.DecodeCleanup(body)
		require.NoError(t, err)
		assert.Equal(t, queue.CleanupJob{SessionID: result.Session.ID, SpeakerID: f.speaker.ID, EventID: "event-1"}, job)
	case <-time.After(2 * time.Second):
		t.Fatal("expected a cleanup job")
	}

	cleaner := worker.NewCleanupWorker(client, f.credentials, tokens, syncer, 1, nil)
	require.NoError(t, cleaner.Process(ctx, job))
	assert.Equal(t, []string{"event-1"}, gateway.DeletedEvents())
	assert.Equal(t, 1, provider.Refreshes, "the stored token is still fresh")
}

func TestCalendarConnectionOverSQLite(t *testing.T) {
	t.Parallel()
	f := newAdapterFixture(t)
	ctx := context.Background()
	expiry := f.harness.Clock.Now().Add(time.Hour)

	verifier, err := identity.NewVerifier("connection-secret", f.harness.Clock.NowFunc())
	require.NoError(t, err)
	provider := &testfixtures.FakeProvider{
		ExchangeToken: oauth.Token{AccessToken: "access-1", RefreshToken: "refresh-1", Expiry: expiry},
	}
	manager := oauth.NewManager(provider, f.credentials, oauth.ManagerConfig{Policy: singleAttempt}, f.harness.Clock.NowFunc(), nil)
	svc := application.NewCalendarConnectionService(verifier, consentAdapter{provider: provider, manager: manager}, f.credentials, nil)

	consentURL, err := svc.ConnectURL(ctx, f.speaker.Principal())
	require.NoError(t, err)
	parsed, err := url.Parse(consentURL)
	require.NoError(t, err)
	state := parsed.Query().Get("state")
	require.NotEmpty(t, state)

	speakerID, err := svc.CompleteConnection(ctx, "auth-code", state)
	require.NoError(t, err)
	assert.Equal(t, f.speaker.ID, speakerID)
	assert.Equal(t, []string{"auth-code"}, provider.Codes)

	cred, err := f.credentials.GetCredential(ctx, f.speaker.ID)
	require.NoError(t, err)
	assert.True(t, cred.Usable())
	assert.Equal(t, "refresh-1", cred.RefreshToken)

	_, err = svc.CompleteConnection(ctx, "auth-code", "forged")
	assert.ErrorIs(t, err, application.ErrInvalidState)

	require.NoError(t, svc.Disconnect(ctx, f.speaker.Principal()))
	cred, err = f.credentials.GetCredential(ctx, f.speaker.ID)
	require.NoError(t, err)
	assert.False(t, cred.Usable())
}

func TestToPersistenceSession_RejectsMalformedTime(t *testing.T) {
	t.Parallel()
	_, err := toPersistenceSession(application.Session{ID: "s", Time: "25:99"})
	assert.Error(t, err)
}

func TestWriteTimeout_CoversBothRetryBudgets(t *testing.T) {
	t.Parallel()
	cfg := config.Config{RetryAttempts: 3, RetryBaseDelay: time.Second, ExternalTimeout: time.Minute}

	got := writeTimeout(cfg)
	worstCase := 2 * remotePolicy(cfg, "calendar").Budget(cfg.ExternalTimeout)
	assert.Greater(t, got, worstCase)
	assert.Greater(t, got, 6*time.Minute, "six timed out attempts fit before the response is cut")
}

func TestRemotePolicy_UsesConfiguredBudget(t *testing.T) {
	t.Parallel()
	policy := remotePolicy(config.Config{RetryAttempts: 5, RetryBaseDelay: 250 * time.Millisecond}, "calendar")
	assert.Equal(t, 5, policy.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, policy.BaseDelay)
	assert.Nil(t, policy.Classify)
}

func TestCalendarCallback_ProviderOutageIsUnavailable(t *testing.T) {
	t.Parallel()
	f := newAdapterFixture(t)
	ctx := context.Background()

	verifier, err := identity.NewVerifier("connection-secret", f.harness.Clock.NowFunc())
	require.NoError(t, err)
	provider := &testfixtures.FakeProvider{ExchangeErr: &net.DNSError{Err: "i/o timeout", Name: "oauth2.googleapis.com", IsTimeout: true}}
	manager := oauth.NewManager(provider, f.credentials, oauth.ManagerConfig{Policy: singleAttempt}, f.harness.Clock.NowFunc(), nil)
	svc := application.NewCalendarConnectionService(verifier, consentAdapter{provider: provider, manager: manager}, f.credentials, nil)

	state, err := verifier.IssueState(f.speaker.ID, time.Minute)
	require.NoError(t, err)
	_, err = svc.CompleteConnection(ctx, "auth-code", state)
	assert.ErrorIs(t, err, application.ErrCalendarUnavailable)

	cred, err := f.credentials.GetCredential(ctx, f.speaker.ID)
	require.NoError(t, err)
	assert.False(t, cred.Usable())
}
