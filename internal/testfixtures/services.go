package testfixtures

import (
	"log/slog"
	"time"

	"github.com/example/group-availability/internal/application"
	"github.com/example/group-availability/internal/cache"
)

// ServiceFactory assists tests with constructing application services using
// deterministic identifiers and clocks.
type ServiceFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory with defaults.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:       NewClock(time.Time{}),
		IDGenerator: NewIDGenerator("room"),
	}
	for _, opt := range opts {
		opt(factory)
	}
	if factory.Clock == nil {
		factory.Clock = NewClock(time.Time{})
	}
	if factory.IDGenerator == nil {
		factory.IDGenerator = NewIDGenerator("room")
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

// RoomServiceDeps captures dependencies for constructing a room service.
type RoomServiceDeps struct {
	Rooms       application.RoomRepository
	IDGenerator func() string
	Now         func() time.Time
	Logger      *slog.Logger
}

// NewRoomService builds a room service using the supplied dependencies.
func (f *ServiceFactory) NewRoomService(deps RoomServiceDeps) *application.RoomService {
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = f.IDGenerator.NextFunc()
	}
	now := deps.Now
	if now == nil {
		now = f.Clock.NowFunc()
	}
	return application.NewRoomServiceWithLogger(deps.Rooms, idGen, now, deps.Logger)
}

// AvailabilityServiceDeps captures dependencies for constructing an availability service.
type AvailabilityServiceDeps struct {
	Rooms           application.RoomRepository
	Records         application.AvailabilityRepository
	Cache           cache.Store
	MaxParticipants int
	Now             func() time.Time
	Logger          *slog.Logger
}

// NewAvailabilityService builds an availability service using the supplied dependencies.
func (f *ServiceFactory) NewAvailabilityService(deps AvailabilityServiceDeps) *application.AvailabilityService {
	now := deps.Now
	if now == nil {
		now = f.Clock.NowFunc()
	}
	return application.NewAvailabilityServiceWithLogger(
		deps.Rooms,
		deps.Records,
		now,
		deps.Logger,
		application.WithHeatmapCache(deps.Cache),
		application.WithMaxParticipants(deps.MaxParticipants),
	)
}

// Services bundles both services over one store.
type Services struct {
	Store        *MemoryStore
	Rooms        *application.RoomService
	Availability *application.AvailabilityService
}

// NewMemoryServices wires both services to a fresh MemoryStore.
func (f *ServiceFactory) NewMemoryServices() Services {
	store := NewMemoryStore()
	return Services{
		Store: store,
		Rooms: f.NewRoomService(RoomServiceDeps{Rooms: store}),
		Availability: f.NewAvailabilityService(AvailabilityServiceDeps{
			Rooms:   store,
			Records: store,
		}),
	}
}
