// Package worker runs the background jobs of the booking service.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/example/tutorbook/internal/metrics"
	"github.com/example/tutorbook/internal/oauth"
	"github.com/example/tutorbook/internal/queue"
)

// CredentialLoader reads a speaker's calendar credential.
type CredentialLoader interface {
	LoadCredential(ctx context.Context, speakerID string) (oauth.Credential, error)
}

// TokenSource yields a valid access token for a credential.
type TokenSource interface {
	ObtainValidToken(ctx context.Context, cred oauth.Credential) (string, error)
}

// EventDeleter removes a remote calendar event.
type EventDeleter interface {
	DeleteEvent(ctx context.Context, accessToken, eventID string) error
}

// CleanupWorker deletes remote events orphaned by cancelled or rejected bookings.
type CleanupWorker struct {
	client      queue.Client
	credentials CredentialLoader
	tokens      TokenSource
	events      EventDeleter
	pool        int
	logger      *slog.Logger
	wg          sync.WaitGroup
}

// NewCleanupWorker wires a worker pool of the given size.
func NewCleanupWorker(client queue.Client, credentials CredentialLoader, tokens TokenSource, events EventDeleter, pool int, logger *slog.Logger) *CleanupWorker {
	if pool <= 0 {
		pool = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CleanupWorker{
		client:      client,
		credentials: credentials,
		tokens:      tokens,
		events:      events,
		pool:        pool,
		logger:      logger.With("component", "calendar_cleanup"),
	}
}

// Start launches the consumers. They stop when ctx is cancelled.
func (w *CleanupWorker) Start(ctx context.Context) {
	for i := 0; i < w.pool; i++ {
		w.wg.Add(1)
		go func(idx int) {
			defer w.wg.Done()
			logger := w.logger.With("worker", idx)
			msgs, err := w.client.Consume(ctx)
			if err != nil {
				logger.ErrorContext(ctx, "failed to consume", "error", err)
				return
			}
			logger.InfoContext(ctx, "worker started")
			for {
				select {
				case <-ctx.Done():
					logger.InfoContext(ctx, "worker stopping")
					return
				case body, ok := <-msgs:
					if !ok {
						logger.InfoContext(ctx, "messages channel closed")
						return
					}
					job, err := queue.DecodeCleanup(body)
					if err != nil {
						metrics.CalendarCleanup.WithLabelValues("invalid").Inc()
						logger.ErrorContext(ctx, "dropping malformed cleanup job", "error", err)
						continue
					}
					_ = w.Process(ctx, job)
				}
			}
		}(i)
	}
}

// Wait blocks until every consumer has returned.
func (w *CleanupWorker) Wait() {
	w.wg.Wait()
}

// Process deletes the event named by job. Failures are logged and counted.
func (w *CleanupWorker) Process(ctx context.Context, job queue.CleanupJob) (err error) {
	logger := w.logger.With("session_id", job.SessionID, "speaker_id", job.SpeakerID, "event_id", job.EventID)
	defer func() {
		switch {
		case err == nil:
			metrics.CalendarCleanup.WithLabelValues("deleted").Inc()
			logger.InfoContext(ctx, "calendar event deleted")
		case errors.Is(err, oauth.ErrNotConnected) || errors.Is(err, oauth.ErrTokenInvalid):
			metrics.CalendarCleanup.WithLabelValues("skipped").Inc()
			logger.WarnContext(ctx, "calendar disconnected, event left in place", "error", err)
		default:
			metrics.CalendarCleanup.WithLabelValues("failed").Inc()
			logger.ErrorContext(ctx, "calendar event cleanup failed", "error", err)
		}
	}()

	if w.credentials == nil || w.tokens == nil || w.events == nil {
		return errors.New("cleanup worker dependencies not configured")
	}
	cred, err := w.credentials.LoadCredential(ctx, job.SpeakerID)
	if err != nil {
		return err
	}
	token, err := w.tokens.ObtainValidToken(ctx, cred)
	if err != nil {
		return err
	}
	return w.events.DeleteEvent(ctx, token, job.EventID)
}
