package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/example/tutorbook/internal/metrics"
	"github.com/example/tutorbook/internal/persistence"
	"github.com/example/tutorbook/internal/queue"
	"github.com/example/tutorbook/internal/scheduler"
)

const maxReasonLength = 500

// CancellationService enforces minimum-notice cancellation of scheduled sessions.
type CancellationService struct {
	sessions       SessionRepository
	cleanup        CleanupQueue
	slots          SlotInvalidator
	policy         scheduler.CancellationPolicy
	location       *time.Location
	now            func() time.Time
	enqueueTimeout time.Duration
	logger         *slog.Logger
}

// NewCancellationService constructs a cancellation service. cleanup and slots may be nil.
func NewCancellationService(sessions SessionRepository, cleanup CleanupQueue, slots SlotInvalidator, policy scheduler.CancellationPolicy, location *time.Location, now func() time.Time, logger *slog.Logger) *CancellationService {
	if location == nil {
		location = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &CancellationService{
		sessions:       sessions,
		cleanup:        cleanup,
		slots:          slots,
		policy:         policy,
		location:       location,
		now:            now,
		enqueueTimeout: defaultEnqueueTimeout,
		logger:         defaultLogger(logger),
	}
}

func (s *CancellationService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "CancellationService", operation, attrs...)
}

// Cancel moves a scheduled session owned by the acting party to cancelled and
// schedules removal of its remote calendar event.
func (s *CancellationService) Cancel(ctx context.Context, params CancelParams) (session Session, err error) {
	if s == nil {
		err = fmt.Errorf("CancellationService is nil")
		return
	}
	if s.sessions == nil {
		err = fmt.Errorf("session repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "Cancel",
		"principal_id", params.Principal.UserID,
		"session_id", params.SessionID,
	)
	defer func() {
		if err != nil {
			metrics.Cancellations.WithLabelValues(ErrorKind(err)).Inc()
			logger.ErrorContext(ctx, "failed to cancel session", "error", err, "error_kind", ErrorKind(err))
			return
		}
		metrics.Cancellations.WithLabelValues("cancelled").Inc()
		logger.InfoContext(ctx, "session cancelled")
	}()

	reason := strings.TrimSpace(params.Reason)
	if utf8.RuneCountInString(reason) > maxReasonLength {
		vErr := &ValidationError{}
		vErr.add("reason", fmt.Sprintf("must be at most %d characters", maxReasonLength))
		err = vErr
		return
	}

	existing, err := s.sessions.GetSession(ctx, params.SessionID)
	if err != nil {
		err = mapSessionRepoError(err)
		return
	}
	if !existing.IsParty(params.Principal.UserID) {
		err = newDomainError(ErrNotCancellable, "only the speaker or learner of a session can cancel it", nil, nil)
		return
	}
	if existing.Status != StatusScheduled {
		err = newDomainError(ErrNotCancellable,
			fmt.Sprintf("session is %s and can no longer be cancelled", existing.Status),
			map[string]any{"status": string(existing.Status)}, nil)
		return
	}

	now := s.now()
	if err = s.checkNotice(existing, now); err != nil {
		return
	}

	session, err = s.sessions.CancelSession(ctx, existing.ID, Cancellation{
		Reason: reason,
		By:     params.Principal.UserID,
		At:     now,
	})
	if err != nil {
		err = mapSessionRepoError(err)
		return
	}

	if s.slots != nil {
		s.slots.InvalidateSpeaker(session.SpeakerID)
	}
	if session.CalendarEventID != "" && s.cleanup != nil {
		job := queue.CleanupJob{SessionID: session.ID, SpeakerID: session.SpeakerID, EventID: session.CalendarEventID}
		if qErr := enqueueDetached(ctx, s.cleanup, s.enqueueTimeout, job); qErr != nil {
			logger.WarnContext(ctx, "failed to enqueue calendar cleanup", "error", qErr, "event_id", job.EventID)
		}
	}
	return
}

func (s *CancellationService) checkNotice(session Session, now time.Time) error {
	start, err := scheduler.Instant(session.Date, session.Time, s.location)
	if err != nil {
		return fmt.Errorf("session %s has an invalid start: %w", session.ID, err)
	}

	verdict, hours := s.policy.Evaluate(start, now)
	switch verdict {
	case scheduler.CancelAlreadyStarted:
		return newDomainError(ErrAlreadyStarted, "", map[string]any{"hoursUntilSession": hours}, nil)
	case scheduler.CancelTooLate:
		notice := s.policy.MinimumNotice
		if notice <= 0 {
			notice = scheduler.DefaultMinimumNotice
		}
		return newDomainError(ErrTooLateToCancel,
			fmt.Sprintf("sessions must be cancelled at least %.0f hours in advance; this one starts in %.1f hours", notice.Hours(), hours),
			map[string]any{
				"hoursUntilSession":  hours,
				"minimumNoticeHours": notice.Hours(),
			}, nil)
	}
	return nil
}

func mapSessionRepoError(err error) error {
	switch {
	case errors.Is(err, persistence.ErrNotFound):
		return newDomainError(ErrSessionNotFound, "", nil, nil)
	case errors.Is(err, persistence.ErrNotScheduled):
		return newDomainError(ErrNotCancellable, "session is no longer scheduled", nil, nil)
	default:
		return err
	}
}

// enqueueDetached hands job to the queue after the request's own outcome is
// settled: it survives the caller cancelling ctx but gives up after timeout.
func enqueueDetached(ctx context.Context, cleanup CleanupQueue, timeout time.Duration, job queue.CleanupJob) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	return cleanup.EnqueueCleanup(ctx, job)
}
