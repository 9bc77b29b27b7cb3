package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/example/tutorbook/internal/persistence"
	"github.com/example/tutorbook/internal/scheduler"
)

// AvailabilityRepository reads and replaces a speaker's weekly availability.
type AvailabilityRepository interface {
	AvailabilityReader
	ReplaceAvailability(ctx context.Context, speakerID string, entries []AvailabilityEntry) error
}

// AvailabilityService manages speakers' weekly availability windows.
type AvailabilityService struct {
	availability AvailabilityRepository
	slots        SlotInvalidator
	idGenerator  func() string
	logger       *slog.Logger
}

// NewAvailabilityService constructs an availability service. slots may be nil.
func NewAvailabilityService(availability AvailabilityRepository, slots SlotInvalidator, idGenerator func() string, logger *slog.Logger) *AvailabilityService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	return &AvailabilityService{availability: availability, slots: slots, idGenerator: idGenerator, logger: defaultLogger(logger)}
}

func (s *AvailabilityService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "AvailabilityService", operation, attrs...)
}

// ListAvailability returns the speaker's entries ordered by weekday and start time.
func (s *AvailabilityService) ListAvailability(ctx context.Context, speakerID string) ([]AvailabilityEntry, error) {
	if s == nil {
		return nil, fmt.Errorf("AvailabilityService is nil")
	}
	if s.availability == nil {
		return nil, fmt.Errorf("availability repository not configured")
	}
	speakerID = strings.TrimSpace(speakerID)
	if speakerID == "" {
		vErr := &ValidationError{}
		vErr.add("speakerId", "is required")
		return nil, vErr
	}
	entries, err := s.availability.ListAvailability(ctx, speakerID)
	if err != nil {
		return nil, fmt.Errorf("list availability: %w", err)
	}
	return entries, nil
}

// ReplaceAvailability swaps the calling speaker's entries for the supplied set.
func (s *AvailabilityService) ReplaceAvailability(ctx context.Context, params ReplaceAvailabilityParams) (entries []AvailabilityEntry, err error) {
	if s == nil {
		err = fmt.Errorf("AvailabilityService is nil")
		return
	}
	if s.availability == nil {
		err = fmt.Errorf("availability repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "ReplaceAvailability",
		"principal_id", params.Principal.UserID,
		"entry_count", len(params.Entries),
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to replace availability", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "availability replaced")
	}()

	if params.Principal.UserID == "" || params.Principal.Role != RoleSpeaker {
		err = ErrUnauthorized
		return
	}

	entries, vErr := s.buildEntries(params.Entries)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	if err = s.availability.ReplaceAvailability(ctx, params.Principal.UserID, entries); err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			err = ErrNotFound
			return
		}
		err = fmt.Errorf("replace availability: %w", err)
		return
	}
	if s.slots != nil {
		s.slots.InvalidateSpeaker(params.Principal.UserID)
	}
	return
}

func (s *AvailabilityService) buildEntries(inputs []AvailabilityInput) ([]AvailabilityEntry, *ValidationError) {
	vErr := &ValidationError{}
	entries := make([]AvailabilityEntry, 0, len(inputs))
	for i, input := range inputs {
		prefix := fmt.Sprintf("entries[%d].", i)
		input.Day = strings.TrimSpace(input.Day)
		input.StartTime = strings.TrimSpace(input.StartTime)
		input.EndTime = strings.TrimSpace(input.EndTime)

		entryErr := validateStruct(input, prefix)
		day, ok := scheduler.ParseDay(input.Day)
		if input.Day != "" && !ok {
			entryErr.add(prefix+"day", "must be a weekday name such as monday")
		}
		if entryErr.HasErrors() {
			vErr.merge(entryErr)
			continue
		}

		start, _ := scheduler.ParseClock(input.StartTime)
		end, _ := scheduler.ParseClock(input.EndTime)
		if start >= end {
			vErr.add(prefix+"endTime", "must be after startTime")
			continue
		}

		entries = append(entries, AvailabilityEntry{
			ID:          s.idGenerator(),
			Day:         day,
			StartTime:   scheduler.FormatClock(start),
			EndTime:     scheduler.FormatClock(end),
			IsAvailable: input.IsAvailable,
		})
	}
	return entries, vErr
}
