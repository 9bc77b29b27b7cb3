package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/tutorbook/internal/calendar"
	"github.com/example/tutorbook/internal/metrics"
	"github.com/example/tutorbook/internal/oauth"
	"github.com/example/tutorbook/internal/persistence"
	"github.com/example/tutorbook/internal/queue"
	"github.com/example/tutorbook/internal/scheduler"
)

const maxTopics = 2

// UserDirectory resolves platform users. Missing users yield persistence.ErrNotFound.
type UserDirectory interface {
	GetUser(ctx context.Context, id string) (User, error)
}

// CredentialReader loads a speaker's calendar credential.
type CredentialReader interface {
	GetCredential(ctx context.Context, speakerID string) (oauth.Credential, error)
}

// AvailabilityReader lists a speaker's weekly availability.
type AvailabilityReader interface {
	ListAvailability(ctx context.Context, speakerID string) ([]AvailabilityEntry, error)
}

// SessionRepository captures the session persistence operations used by the services.
type SessionRepository interface {
	// CreateSession returns an error matching persistence.ErrSlotConflict when a
	// scheduled session already overlaps the new one.
	CreateSession(ctx context.Context, session Session) error
	GetSession(ctx context.Context, id string) (Session, error)
	ListSessions(ctx context.Context, filter SessionFilter) ([]Session, error)
	CancelSession(ctx context.Context, id string, cancellation Cancellation) (Session, error)
	CompleteSession(ctx context.Context, id string, at time.Time) error
}

// TokenProvider yields a valid calendar access token for a credential.
type TokenProvider interface {
	ObtainValidToken(ctx context.Context, cred oauth.Credential) (string, error)
}

// EventCreator creates the remote calendar event. It never fails; degraded
// results carry a fallback meeting link.
type EventCreator interface {
	CreateEvent(ctx context.Context, accessToken string, spec calendar.EventSpec) calendar.Result
}

// defaultEnqueueTimeout bounds how long a request waits to hand a cleanup job
// to the queue.
const defaultEnqueueTimeout = 5 * time.Second

// CleanupQueue schedules deletion of a remote calendar event.
type CleanupQueue interface {
	EnqueueCleanup(ctx context.Context, job queue.CleanupJob) error
}

// SlotInvalidator drops cached open slots for a speaker.
type SlotInvalidator interface {
	InvalidateSpeaker(speakerID string)
}

// BookingDependencies lists the collaborators of a BookingService.
type BookingDependencies struct {
	Users        UserDirectory
	Credentials  CredentialReader
	Availability AvailabilityReader
	Sessions     SessionRepository
	Tokens       TokenProvider
	Calendar     EventCreator
	Cleanup      CleanupQueue
	Slots        SlotInvalidator
	// Location is the platform zone in which dates and times are interpreted.
	Location *time.Location
	// Intn picks icebreakers. rand.IntN when nil.
	Intn func(int) int
}

// BookingService validates booking requests and creates sessions.
type BookingService struct {
	deps           BookingDependencies
	idGenerator    func() string
	now            func() time.Time
	enqueueTimeout time.Duration
	logger         *slog.Logger
}

// NewBookingService constructs a booking service.
func NewBookingService(deps BookingDependencies, idGenerator func() string, now func() time.Time, logger *slog.Logger) *BookingService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	if deps.Location == nil {
		deps.Location = time.UTC
	}
	return &BookingService{
		deps:           deps,
		idGenerator:    idGenerator,
		now:            now,
		enqueueTimeout: defaultEnqueueTimeout,
		logger:         defaultLogger(logger),
	}
}

func (s *BookingService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "BookingService", operation, attrs...)
}

// Book runs the booking gates in order and persists a scheduled session. Calendar
// sync failures degrade to a fallback meeting link and never fail the booking.
func (s *BookingService) Book(ctx context.Context, params BookParams) (result BookingResult, err error) {
	if s == nil {
		err = fmt.Errorf("BookingService is nil")
		return
	}

	logger := s.loggerWith(ctx, "Book",
		"principal_id", params.Principal.UserID,
		"speaker_id", params.Input.SpeakerID,
	)
	defer func() {
		if err != nil {
			metrics.Bookings.WithLabelValues(ErrorKind(err)).Inc()
			logger.ErrorContext(ctx, "failed to book session", "error", err, "error_kind", ErrorKind(err))
			return
		}
		metrics.Bookings.WithLabelValues("created").Inc()
		logger.With("session_id", result.Session.ID).InfoContext(ctx, "session booked",
			"calendar_created", result.Calendar.Created,
		)
	}()

	if params.Principal.UserID == "" || params.Principal.Role != RoleLearner {
		err = ErrUnauthorized
		return
	}
	if err = s.checkDependencies(); err != nil {
		return
	}

	input, start, err := s.validateBooking(params.Input)
	if err != nil {
		return
	}

	speaker, err := s.loadSpeaker(ctx, input.SpeakerID)
	if err != nil {
		return
	}

	cred, err := s.deps.Credentials.GetCredential(ctx, speaker.ID)
	switch {
	case errors.Is(err, persistence.ErrNotFound):
		err = newDomainError(ErrCalendarNotConnected, "", nil, nil)
		return
	case err != nil:
		err = fmt.Errorf("load calendar credential: %w", err)
		return
	case !cred.Usable():
		err = newDomainError(ErrCalendarNotConnected, "", nil, nil)
		return
	}

	learner, err := s.deps.Users.GetUser(ctx, params.Principal.UserID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			err = newDomainError(ErrLearnerNotFound, "", nil, nil)
			return
		}
		err = fmt.Errorf("load learner: %w", err)
		return
	}

	if err = s.checkAvailability(ctx, speaker.ID, start); err != nil {
		return
	}
	if err = s.checkConflicts(ctx, speaker.ID, input.Date, input.Time); err != nil {
		return
	}

	token, err := s.deps.Tokens.ObtainValidToken(ctx, cred)
	if err != nil {
		err = newDomainError(ErrCalendarAuthFailure, "", map[string]any{
			"reconnectRequired": errors.Is(err, oauth.ErrTokenInvalid) || errors.Is(err, oauth.ErrNotConnected),
		}, err)
		return
	}

	sessionID := s.idGenerator()
	icebreaker := calendar.PickIcebreaker(s.deps.Intn)
	synced := s.deps.Calendar.CreateEvent(ctx, token, calendar.EventSpec{
		Summary:     input.Title,
		Description: eventDescription(icebreaker, input.Topics),
		Start:       start,
		End:         start.Add(scheduler.SessionMinutes * time.Minute),
		Attendees:   []string{speaker.Email, learner.Email},
		RequestID:   sessionID,
		EventID:     calendar.EventIDFor(sessionID),
	})

	now := s.now()
	session := Session{
		ID:              sessionID,
		SpeakerID:       speaker.ID,
		LearnerID:       learner.ID,
		Title:           input.Title,
		Date:            input.Date,
		Time:            input.Time,
		DurationMinutes: scheduler.SessionMinutes,
		Status:          StatusScheduled,
		Topics:          input.Topics,
		Icebreaker:      icebreaker,
		MeetingLink:     synced.MeetingLink,
		CalendarEventID: synced.EventID,
		CalendarSynced:  synced.Created,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err = s.deps.Sessions.CreateSession(ctx, session); err != nil {
		s.enqueueCleanup(ctx, logger, session)
		var conflict *persistence.SlotConflictError
		if errors.As(err, &conflict) {
			err = slotTaken(conflict.Time)
			return
		}
		if errors.Is(err, persistence.ErrSlotConflict) {
			err = newDomainError(ErrSlotTaken, "", nil, err)
			return
		}
		err = fmt.Errorf("persist session: %w", err)
		return
	}

	if s.deps.Slots != nil {
		s.deps.Slots.InvalidateSpeaker(speaker.ID)
	}

	result = BookingResult{
		Session: session,
		Calendar: CalendarOutcome{
			Created: synced.Created,
			EventID: synced.EventID,
		},
	}
	if synced.Err != nil {
		result.Calendar.Error = synced.Err.Error()
	}
	return
}

func (s *BookingService) checkDependencies() error {
	switch {
	case s.deps.Users == nil:
		return fmt.Errorf("user directory not configured")
	case s.deps.Credentials == nil:
		return fmt.Errorf("credential reader not configured")
	case s.deps.Availability == nil:
		return fmt.Errorf("availability reader not configured")
	case s.deps.Sessions == nil:
		return fmt.Errorf("session repository not configured")
	case s.deps.Tokens == nil:
		return fmt.Errorf("token provider not configured")
	case s.deps.Calendar == nil:
		return fmt.Errorf("event creator not configured")
	}
	return nil
}

// validateBooking checks the request without touching any collaborator and
// returns the normalised input with its start instant.
func (s *BookingService) validateBooking(in BookingInput) (BookingInput, time.Time, error) {
	in.SpeakerID = strings.TrimSpace(in.SpeakerID)
	in.Title = strings.TrimSpace(in.Title)
	in.Date = strings.TrimSpace(in.Date)
	in.Time = strings.TrimSpace(in.Time)
	in.Topics = normalizeTopics(in.Topics)

	vErr := validateStruct(in, "")
	if vErr.HasErrors() {
		return in, time.Time{}, vErr
	}

	start, err := scheduler.Instant(in.Date, in.Time, s.deps.Location)
	switch {
	case errors.Is(err, scheduler.ErrSkippedClock):
		vErr.add("time", "does not exist on this date because of a daylight saving change")
		return in, time.Time{}, vErr
	case err != nil:
		vErr.add("date", "must be a valid calendar date")
		return in, time.Time{}, vErr
	}
	in.Time = scheduler.FormatClock(scheduler.MinutesOf(start))

	if !start.After(s.now()) {
		return in, time.Time{}, newDomainError(ErrInThePast, "", map[string]any{
			"date": in.Date,
			"time": in.Time,
		}, nil)
	}
	if len(in.Topics) > maxTopics {
		return in, time.Time{}, newDomainError(ErrTooManyTopics, "", map[string]any{
			"max":   maxTopics,
			"count": len(in.Topics),
		}, nil)
	}
	return in, start, nil
}

func (s *BookingService) loadSpeaker(ctx context.Context, speakerID string) (User, error) {
	speaker, err := s.deps.Users.GetUser(ctx, speakerID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return User{}, newDomainError(ErrSpeakerUnavailable, "", nil, nil)
		}
		return User{}, fmt.Errorf("load speaker: %w", err)
	}
	if speaker.Role != RoleSpeaker || !speaker.IsActive {
		return User{}, newDomainError(ErrSpeakerUnavailable, "", nil, nil)
	}
	return speaker, nil
}

func (s *BookingService) checkAvailability(ctx context.Context, speakerID string, start time.Time) error {
	entries, err := s.deps.Availability.ListAvailability(ctx, speakerID)
	if err != nil {
		return fmt.Errorf("load availability: %w", err)
	}
	policy := toPolicyAvailability(entries)
	if scheduler.IsAvailable(policy, start, scheduler.SessionMinutes) {
		return nil
	}

	day := scheduler.DayName(start.Weekday())
	entry, ok := scheduler.EntryFor(policy, start.Weekday())
	if !ok || !entry.Available {
		return newDomainError(ErrOutsideAvailability,
			fmt.Sprintf("speaker is not available on %s", day),
			map[string]any{"day": day}, nil)
	}
	return newDomainError(ErrOutsideAvailability,
		fmt.Sprintf("speaker is available on %s from %s to %s", day, entry.StartTime, entry.EndTime),
		map[string]any{"day": day, "startTime": entry.StartTime, "endTime": entry.EndTime}, nil)
}

func (s *BookingService) checkConflicts(ctx context.Context, speakerID, date, clock string) error {
	existing, err := s.deps.Sessions.ListSessions(ctx, SessionFilter{
		SpeakerID: speakerID,
		Status:    StatusScheduled,
		DateFrom:  date,
		DateTo:    date,
	})
	if err != nil {
		return fmt.Errorf("load scheduled sessions: %w", err)
	}
	if conflict, found := scheduler.FindConflict(toBookings(existing), date, clock, scheduler.SessionMinutes); found {
		return slotTaken(conflict.Time)
	}
	return nil
}

// enqueueCleanup asks the cleanup worker to remove an event that no session
// will reference. Failures are logged only.
func (s *BookingService) enqueueCleanup(ctx context.Context, logger *slog.Logger, session Session) {
	if session.CalendarEventID == "" || s.deps.Cleanup == nil {
		return
	}
	job := queue.CleanupJob{SessionID: session.ID, SpeakerID: session.SpeakerID, EventID: session.CalendarEventID}
	if err := enqueueDetached(ctx, s.deps.Cleanup, s.enqueueTimeout, job); err != nil {
		logger.WarnContext(ctx, "failed to enqueue calendar cleanup", "error", err, "event_id", job.EventID)
	}
}

func slotTaken(conflictingTime string) error {
	return newDomainError(ErrSlotTaken,
		fmt.Sprintf("requested time overlaps the session at %s", conflictingTime),
		map[string]any{"conflictingTime": conflictingTime}, nil)
}

func eventDescription(icebreaker string, topics []string) string {
	var b strings.Builder
	b.WriteString("Icebreaker: ")
	b.WriteString(icebreaker)
	if len(topics) > 0 {
		b.WriteString("\nTopics: ")
		b.WriteString(strings.Join(topics, ", "))
	}
	return b.String()
}

func toPolicyAvailability(entries []AvailabilityEntry) []scheduler.Availability {
	out := make([]scheduler.Availability, 0, len(entries))
	for _, entry := range entries {
		out = append(out, scheduler.Availability{
			Day:       entry.Day,
			StartTime: entry.StartTime,
			EndTime:   entry.EndTime,
			Available: entry.IsAvailable,
		})
	}
	return out
}

func toBookings(sessions []Session) []scheduler.Booking {
	out := make([]scheduler.Booking, 0, len(sessions))
	for _, session := range sessions {
		if session.Status != StatusScheduled {
			continue
		}
		out = append(out, scheduler.Booking{
			ID:              session.ID,
			Date:            session.Date,
			Time:            session.Time,
			DurationMinutes: session.DurationMinutes,
		})
	}
	return out
}
