package calendar

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/example/tutorbook/internal/logging"
	"github.com/example/tutorbook/internal/metrics"
	"github.com/example/tutorbook/internal/retry"
)

// Result is the outcome of a sync attempt. MeetingLink is always set.
type Result struct {
	Created     bool
	EventID     string
	MeetingLink string
	Err         error
}

// SyncerConfig tunes the calls made by a Syncer.
type SyncerConfig struct {
	CallTimeout time.Duration
	Policy      retry.Policy
	// Intn picks random indexes for fallback links. rand.IntN when nil.
	Intn func(int) int
}

// Syncer wraps a Gateway so event creation never fails the caller.
type Syncer struct {
	gateway Gateway
	cfg     SyncerConfig
	logger  *slog.Logger
}

// NewSyncer builds a Syncer. A zero Policy falls back to retry.Default with ClassifyError.
func NewSyncer(gateway Gateway, cfg SyncerConfig, logger *slog.Logger) *Syncer {
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 60 * time.Second
	}
	if cfg.Policy.MaxAttempts == 0 {
		cfg.Policy = retry.Default("calendar")
	}
	if cfg.Policy.Classify == nil {
		cfg.Policy.Classify = ClassifyError
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Syncer{gateway: gateway, cfg: cfg, logger: logger}
}

// CreateEvent creates the remote event. On failure it returns Created=false with a
// synthesised meeting link and the provider error in Result.Err.
func (s *Syncer) CreateEvent(ctx context.Context, accessToken string, spec EventSpec) Result {
	if s == nil || s.gateway == nil {
		return s.fallback(ctx, errors.New("calendar gateway not configured"))
	}

	var event Event
	err := s.cfg.Policy.Do(ctx, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
		defer cancel()

		created, err := s.gateway.CreateEvent(callCtx, accessToken, spec)
		if err != nil {
			return err
		}
		event = created
		return nil
	})
	if err != nil {
		return s.fallback(ctx, err)
	}

	link := event.MeetingLink
	if link == "" {
		link = FallbackMeetingLink(s.intn())
	}
	metrics.CalendarSync.WithLabelValues("created").Inc()
	return Result{Created: true, EventID: event.ID, MeetingLink: link}
}

// DeleteEvent removes an event under the same retry policy. A missing event is not an error.
func (s *Syncer) DeleteEvent(ctx context.Context, accessToken, eventID string) error {
	if s == nil || s.gateway == nil {
		return errors.New("calendar gateway not configured")
	}
	err := s.cfg.Policy.Do(ctx, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
		defer cancel()
		return s.gateway.DeleteEvent(callCtx, accessToken, eventID)
	})
	if errors.Is(err, ErrEventGone) {
		return nil
	}
	return err
}

func (s *Syncer) fallback(ctx context.Context, err error) Result {
	var logger *slog.Logger
	var intn func(int) int
	if s != nil {
		logger = logging.FromContextOr(ctx, s.logger)
		intn = s.intn()
	} else {
		logger = logging.FromContextOr(ctx, slog.Default())
	}
	logger.WarnContext(ctx, "calendar event creation failed, using fallback meeting link", "error", err)
	metrics.CalendarSync.WithLabelValues("fallback").Inc()
	return Result{Created: false, MeetingLink: FallbackMeetingLink(intn), Err: err}
}

func (s *Syncer) intn() func(int) int {
	return s.cfg.Intn
}
