package testfixtures

import (
	"log/slog"
	"time"

	"github.com/example/tutorbook/internal/application"
	"github.com/example/tutorbook/internal/scheduler"
)

// ServiceFactory assists tests with constructing application services using
// deterministic identifiers and clocks.
type ServiceFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
	Location    *time.Location
	Logger      *slog.Logger
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory with defaults.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:       NewClock(time.Time{}),
		IDGenerator: NewIDGenerator("id"),
		Location:    time.UTC,
	}
	for _, opt := range opts {
		opt(factory)
	}
	if factory.Clock == nil {
		factory.Clock = NewClock(time.Time{})
	}
	if factory.IDGenerator == nil {
		factory.IDGenerator = NewIDGenerator("id")
	}
	if factory.Location == nil {
		factory.Location = time.UTC
	}
	return factory
}

// WithClock overrides the clock used by the factory.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Clock = clock
	}
}

// WithIDGenerator overrides the identifier generator used by the factory.
func WithIDGenerator(generator *IDGenerator) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.IDGenerator = generator
	}
}

// WithLocation overrides the platform time zone.
func WithLocation(loc *time.Location) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Location = loc
	}
}

// NewBookingService builds a booking service. deps.Location defaults to the factory's.
func (f *ServiceFactory) NewBookingService(deps application.BookingDependencies) *application.BookingService {
	if deps.Location == nil {
		deps.Location = f.Location
	}
	if deps.Intn == nil {
		deps.Intn = func(int) int { return 0 }
	}
	return application.NewBookingService(deps, f.IDGenerator.NextFunc(), f.Clock.NowFunc(), f.Logger)
}

// NewCancellationService builds a cancellation service with a 24 hour notice window.
func (f *ServiceFactory) NewCancellationService(sessions application.SessionRepository, cleanup application.CleanupQueue, slots application.SlotInvalidator) *application.CancellationService {
	policy := scheduler.CancellationPolicy{MinimumNotice: 24 * time.Hour}
	return application.NewCancellationService(sessions, cleanup, slots, policy, f.Location, f.Clock.NowFunc(), f.Logger)
}

// NewSessionService builds a session query service.
func (f *ServiceFactory) NewSessionService(sessions application.SessionRepository) *application.SessionService {
	return application.NewSessionService(sessions, f.Location, f.Clock.NowFunc(), f.Logger)
}

// NewAvailabilityService builds an availability service.
func (f *ServiceFactory) NewAvailabilityService(repo application.AvailabilityRepository, slots application.SlotInvalidator) *application.AvailabilityService {
	return application.NewAvailabilityService(repo, slots, f.IDGenerator.NextFunc(), f.Logger)
}

// NewSlotService builds a slot service with the default cache lifetime.
func (f *ServiceFactory) NewSlotService(availability application.AvailabilityReader, sessions application.SessionRepository) *application.SlotService {
	return application.NewSlotService(availability, sessions, f.Location, 0, f.Clock.NowFunc(), f.Logger)
}
