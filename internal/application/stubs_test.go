package application

import (
	"context"
	"sync"
	"time"

	"github.com/example/tutorbook/internal/calendar"
	"github.com/example/tutorbook/internal/oauth"
	"github.com/example/tutorbook/internal/persistence"
	"github.com/example/tutorbook/internal/queue"
)

type userDirectoryStub struct {
	users map[string]User
	err   error
	calls int
}

func (u *userDirectoryStub) GetUser(ctx context.Context, id string) (User, error) {
	u.calls++
	if u.err != nil {
		return User{}, u.err
	}
	user, ok := u.users[id]
	if !ok {
		return User{}, persistence.ErrNotFound
	}
	return user, nil
}

type credentialStub struct {
	creds map[string]oauth.Credential
	err   error
	calls int

	connected []oauth.Credential
	cleared   []string
	writeErr  error
}

func (c *credentialStub) GetCredential(ctx context.Context, speakerID string) (oauth.Credential, error) {
	c.calls++
	if c.err != nil {
		return oauth.Credential{}, c.err
	}
	cred, ok := c.creds[speakerID]
	if !ok {
		return oauth.Credential{}, persistence.ErrNotFound
	}
	return cred, nil
}

func (c *credentialStub) ConnectCredential(ctx context.Context, cred oauth.Credential) error {
	if c.writeErr != nil {
		return c.writeErr
	}
	c.connected = append(c.connected, cred)
	return nil
}

func (c *credentialStub) ClearCredential(ctx context.Context, speakerID string) error {
	if c.writeErr != nil {
		return c.writeErr
	}
	c.cleared = append(c.cleared, speakerID)
	return nil
}

type availabilityStub struct {
	entries map[string][]AvailabilityEntry
	err     error
	calls   int

	replaceErr error
	replaced   []AvailabilityEntry
}

func (a *availabilityStub) ListAvailability(ctx context.Context, speakerID string) ([]AvailabilityEntry, error) {
	a.calls++
	if a.err != nil {
		return nil, a.err
	}
	return a.entries[speakerID], nil
}

func (a *availabilityStub) ReplaceAvailability(ctx context.Context, speakerID string, entries []AvailabilityEntry) error {
	if a.replaceErr != nil {
		return a.replaceErr
	}
	a.replaced = entries
	if a.entries == nil {
		a.entries = make(map[string][]AvailabilityEntry)
	}
	a.entries[speakerID] = entries
	return nil
}

type sessionRepoStub struct {
	mu          sync.Mutex
	sessions    []Session
	createErr   error
	listErr     error
	cancelErr   error
	completeErr map[string]error
	completed   []string
	listCalls   int
}

func (r *sessionRepoStub) CreateSession(ctx context.Context, session Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	r.sessions = append(r.sessions, session)
	return nil
}

func (r *sessionRepoStub) GetSession(ctx context.Context, id string) (Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, session := range r.sessions {
		if session.ID == id {
			return session, nil
		}
	}
	return Session{}, persistence.ErrNotFound
}

func (r *sessionRepoStub) ListSessions(ctx context.Context, filter SessionFilter) ([]Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listCalls++
	if r.listErr != nil {
		return nil, r.listErr
	}
	out := make([]Session, 0)
	for _, session := range r.sessions {
		if filter.ParticipantID != "" && !session.IsParty(filter.ParticipantID) {
			continue
		}
		if filter.SpeakerID != "" && session.SpeakerID != filter.SpeakerID {
			continue
		}
		if filter.Status != "" && session.Status != filter.Status {
			continue
		}
		if filter.DateFrom != "" && session.Date < filter.DateFrom {
			continue
		}
		if filter.DateTo != "" && session.Date > filter.DateTo {
			continue
		}
		out = append(out, session)
	}
	return out, nil
}

func (r *sessionRepoStub) CancelSession(ctx context.Context, id string, cancellation Cancellation) (Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancelErr != nil {
		return Session{}, r.cancelErr
	}
	for i, session := range r.sessions {
		if session.ID != id {
			continue
		}
		if session.Status != StatusScheduled {
			return Session{}, persistence.ErrNotScheduled
		}
		at := cancellation.At
		session.Status = StatusCancelled
		session.CancellationReason = cancellation.Reason
		session.CancelledBy = cancellation.By
		session.CancelledAt = &at
		session.UpdatedAt = at
		r.sessions[i] = session
		return session, nil
	}
	return Session{}, persistence.ErrNotFound
}

func (r *sessionRepoStub) CompleteSession(ctx context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.completeErr[id]; err != nil {
		return err
	}
	for i, session := range r.sessions {
		if session.ID != id {
			continue
		}
		if session.Status != StatusScheduled {
			return persistence.ErrNotScheduled
		}
		r.sessions[i].Status = StatusCompleted
		r.completed = append(r.completed, id)
		return nil
	}
	return persistence.ErrNotFound
}

type tokenProviderStub struct {
	token string
	err   error
	calls int
}

func (t *tokenProviderStub) ObtainValidToken(ctx context.Context, cred oauth.Credential) (string, error) {
	t.calls++
	if t.err != nil {
		return "", t.err
	}
	return t.token, nil
}

type eventCreatorStub struct {
	result calendar.Result
	calls  int
	token  string
	spec   calendar.EventSpec
}

func (e *eventCreatorStub) CreateEvent(ctx context.Context, accessToken string, spec calendar.EventSpec) calendar.Result {
	e.calls++
	e.token = accessToken
	e.spec = spec
	return e.result
}

type cleanupQueueStub struct {
	jobs []queue.CleanupJob
	err  error

	// block makes EnqueueCleanup wait for ctx like a publisher stuck on a full queue.
	block       bool
	sawDeadline bool
}

func (c *cleanupQueueStub) EnqueueCleanup(ctx context.Context, job queue.CleanupJob) error {
	_, c.sawDeadline = ctx.Deadline()
	if c.block {
		<-ctx.Done()
		return ctx.Err()
	}
	if c.err != nil {
		return c.err
	}
	c.jobs = append(c.jobs, job)
	return nil
}

type invalidatorStub struct {
	speakers []string
}

func (i *invalidatorStub) InvalidateSpeaker(speakerID string) {
	i.speakers = append(i.speakers, speakerID)
}
