package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/tutorbook/internal/recurrence"
	"github.com/example/tutorbook/internal/scheduler"
)

const (
	defaultSlotDays = 7
	maxSlotDays     = 31
)

// SlotService lists the open 30 minute booking windows of a speaker.
type SlotService struct {
	availability AvailabilityReader
	sessions     SessionRepository
	engine       *recurrence.Engine
	cache        *slotCache
	location     *time.Location
	now          func() time.Time
	logger       *slog.Logger
}

// NewSlotService constructs a slot service whose results are cached for cacheTTL.
func NewSlotService(availability AvailabilityReader, sessions SessionRepository, location *time.Location, cacheTTL time.Duration, now func() time.Time, logger *slog.Logger) *SlotService {
	if location == nil {
		location = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &SlotService{
		availability: availability,
		sessions:     sessions,
		engine:       recurrence.NewEngine(location),
		cache:        newSlotCache(cacheTTL, 0, now),
		location:     location,
		now:          now,
		logger:       defaultLogger(logger),
	}
}

// InvalidateSpeaker drops cached listings for speakerID.
func (s *SlotService) InvalidateSpeaker(speakerID string) {
	if s == nil {
		return
	}
	s.cache.InvalidateSpeaker(speakerID)
}

// ListSlots expands the speaker's weekly availability over the requested days,
// dropping slots that already started or overlap a scheduled session.
func (s *SlotService) ListSlots(ctx context.Context, params ListSlotsParams) ([]Slot, error) {
	if s == nil {
		return nil, fmt.Errorf("SlotService is nil")
	}
	if s.availability == nil || s.sessions == nil {
		return nil, fmt.Errorf("slot service dependencies not configured")
	}

	now := s.now()
	speakerID := strings.TrimSpace(params.SpeakerID)
	from := strings.TrimSpace(params.From)
	if from == "" {
		from = now.In(s.location).Format(scheduler.DateLayout)
	}
	days := params.Days
	if days == 0 {
		days = defaultSlotDays
	}

	vErr := &ValidationError{}
	if speakerID == "" {
		vErr.add("speakerId", "is required")
	}
	rangeStart, err := time.ParseInLocation(scheduler.DateLayout, from, s.location)
	if err != nil {
		vErr.add("from", "must be a date formatted 2006-01-02")
	}
	if days < 1 || days > maxSlotDays {
		vErr.add("days", fmt.Sprintf("must be between 1 and %d", maxSlotDays))
	}
	if vErr.HasErrors() {
		return nil, vErr
	}

	key := slotKey{speakerID: speakerID, from: from, days: days}
	if cached, ok := s.cache.Get(key); ok {
		return cached, nil
	}

	entries, err := s.availability.ListAvailability(ctx, speakerID)
	if err != nil {
		return nil, fmt.Errorf("load availability: %w", err)
	}

	rangeEnd := rangeStart.AddDate(0, 0, days)
	occurrences, err := s.engine.GenerateOccurrences(availabilityRules(entries), recurrence.GenerateOptions{
		RangeStart: rangeStart,
		RangeEnd:   rangeEnd,
	})
	if err != nil {
		return nil, fmt.Errorf("expand availability: %w", err)
	}

	scheduled, err := s.sessions.ListSessions(ctx, SessionFilter{
		SpeakerID: speakerID,
		Status:    StatusScheduled,
		DateFrom:  from,
		DateTo:    rangeEnd.AddDate(0, 0, -1).Format(scheduler.DateLayout),
	})
	if err != nil {
		return nil, fmt.Errorf("load scheduled sessions: %w", err)
	}
	bookings := toBookings(scheduled)

	slots := make([]Slot, 0)
	for _, occ := range occurrences {
		for _, part := range recurrence.Split(occ, scheduler.SessionMinutes*time.Minute) {
			if !part.Start.After(now) {
				continue
			}
			date := part.Start.Format(scheduler.DateLayout)
			clock := scheduler.FormatClock(scheduler.MinutesOf(part.Start))
			if scheduler.HasConflict(bookings, date, clock, scheduler.SessionMinutes) {
				continue
			}
			slots = append(slots, Slot{Date: date, Time: clock, Start: part.Start, End: part.End})
		}
	}

	s.cache.Put(key, slots)
	serviceLogger(ctx, s.logger, "SlotService", "ListSlots", "speaker_id", speakerID).
		DebugContext(ctx, "open slots computed", "from", from, "days", days, "slots", len(slots))
	return slots, nil
}

// availabilityRules converts entries into recurrence rules, keeping only the
// first bookable entry per weekday as the availability check does.
func availabilityRules(entries []AvailabilityEntry) []recurrence.Rule {
	seen := make(map[time.Weekday]bool, len(entries))
	rules := make([]recurrence.Rule, 0, len(entries))
	for _, entry := range entries {
		if seen[entry.Day] {
			continue
		}
		seen[entry.Day] = true
		if !entry.IsAvailable {
			continue
		}
		start, err := scheduler.ParseClock(entry.StartTime)
		if err != nil {
			continue
		}
		end, err := scheduler.ParseClock(entry.EndTime)
		if err != nil || end <= start {
			continue
		}
		rules = append(rules, recurrence.Rule{ID: entry.ID, Weekday: entry.Day, StartMinute: start, EndMinute: end})
	}
	return rules
}
