package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/group-availability/internal/aggregate"
	"github.com/example/group-availability/internal/application"
	"github.com/example/group-availability/internal/persistence"
	"github.com/example/group-availability/internal/slotgrid"
)

var (
	roomCounter        uint64
	participantCounter uint64
)

var referenceTime = time.Date(2024, time.January, 2, 15, 4, 5, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// ----------------------------- Grid fixtures -----------------------------

// Cell addresses one slot of a week grid.
type Cell struct {
	Day  int
	Slot int
}

// Grid returns a participant grid with the given cells marked available.
// Out of range cells panic, since they always indicate a broken test.
func Grid(cells ...Cell) slotgrid.WeekGrid {
	g := slotgrid.Empty()
	for _, c := range cells {
		var err error
		g, err = g.Set(c.Day, c.Slot, 1)
		if err != nil {
			panic(err)
		}
	}
	return g
}

// Span returns the cells day/from..day/to inclusive.
func Span(day, from, to int) []Cell {
	cells := make([]Cell, 0, to-from+1)
	for slot := from; slot <= to; slot++ {
		cells = append(cells, Cell{Day: day, Slot: slot})
	}
	return cells
}

// ----------------------------- Room fixtures -----------------------------

// RoomFixture represents a deterministic scheduling room.
type RoomFixture struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// RoomOption configures the generated room fixture.
type RoomOption func(*RoomFixture)

// NewRoomFixture returns a deterministic room fixture with optional overrides.
func NewRoomFixture(opts ...RoomOption) RoomFixture {
	idx := atomic.AddUint64(&roomCounter, 1)
	fixture := RoomFixture{
		ID:        fmt.Sprintf("room-%03d", idx),
		Name:      fmt.Sprintf("Room %03d", idx),
		CreatedAt: referenceTime.Add(time.Duration(idx) * time.Hour),
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithRoomID overrides the generated room ID.
func WithRoomID(id string) RoomOption {
	return func(f *RoomFixture) {
		f.ID = id
	}
}

// WithRoomName overrides the generated room name.
func WithRoomName(name string) RoomOption {
	return func(f *RoomFixture) {
		f.Name = name
	}
}

// WithRoomCreatedAt sets the created timestamp on the fixture.
func WithRoomCreatedAt(t time.Time) RoomOption {
	return func(f *RoomFixture) {
		f.CreatedAt = t
	}
}

// Application returns the fixture as an application.Room value.
func (f RoomFixture) Application() application.Room {
	return application.Room{ID: f.ID, Name: f.Name, CreatedAt: f.CreatedAt}
}

// Persistence returns the fixture as a persistence.Room value.
func (f RoomFixture) Persistence() persistence.Room {
	return persistence.Room{ID: f.ID, Name: f.Name, CreatedAt: f.CreatedAt}
}

// Input returns the fixture as an application.RoomInput.
func (f RoomFixture) Input() application.RoomInput {
	return application.RoomInput{Name: f.Name}
}

// ------------------------- Availability fixtures -------------------------

// AvailabilityFixture represents one participant's stored grid. A non-empty
// Encoded is stored instead of the encoding of Grid, for malformed rows.
type AvailabilityFixture struct {
	RoomID    string
	Name      string
	Grid      slotgrid.WeekGrid
	Encoded   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// AvailabilityOption configures the generated availability fixture.
type AvailabilityOption func(*AvailabilityFixture)

// NewAvailabilityFixture returns a participant of roomID with an empty grid.
func NewAvailabilityFixture(roomID string, opts ...AvailabilityOption) AvailabilityFixture {
	idx := atomic.AddUint64(&participantCounter, 1)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	fixture := AvailabilityFixture{
		RoomID:    roomID,
		Name:      fmt.Sprintf("Participant %03d", idx),
		Grid:      slotgrid.Empty(),
		CreatedAt: created,
		UpdatedAt: created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithParticipantName overrides the generated participant name.
func WithParticipantName(name string) AvailabilityOption {
	return func(f *AvailabilityFixture) {
		f.Name = name
	}
}

// WithCells marks the given cells available.
func WithCells(cells ...Cell) AvailabilityOption {
	return func(f *AvailabilityFixture) {
		f.Grid = Grid(cells...)
	}
}

// WithRawEncoding stores s verbatim instead of the encoded grid.
func WithRawEncoding(s string) AvailabilityOption {
	return func(f *AvailabilityFixture) {
		f.Encoded = s
	}
}

// WithAvailabilityTimestamps sets both created and updated timestamps.
func WithAvailabilityTimestamps(created, updated time.Time) AvailabilityOption {
	return func(f *AvailabilityFixture) {
		f.CreatedAt = created
		f.UpdatedAt = updated
	}
}

// Encoding returns the stored encoding of the fixture.
func (f AvailabilityFixture) Encoding() string {
	if f.Encoded != "" {
		return f.Encoded
	}
	return slotgrid.Encode(f.Grid)
}

// Record returns the fixture as an aggregation input.
func (f AvailabilityFixture) Record() aggregate.Record {
	return aggregate.Record{Name: f.Name, Encoded: f.Encoding()}
}

// Application returns the fixture as an application.AvailabilityRecord.
func (f AvailabilityFixture) Application() application.AvailabilityRecord {
	return application.AvailabilityRecord{
		RoomID:          f.RoomID,
		ParticipantName: f.Name,
		Encoded:         f.Encoding(),
		CreatedAt:       f.CreatedAt,
		UpdatedAt:       f.UpdatedAt,
	}
}

// Persistence returns the fixture as a persistence.Availability value.
func (f AvailabilityFixture) Persistence() persistence.Availability {
	return persistence.Availability{
		RoomID:           f.RoomID,
		ParticipantName:  f.Name,
		ScheduleEncoding: f.Encoding(),
		CreatedAt:        f.CreatedAt,
		UpdatedAt:        f.UpdatedAt,
	}
}

// Submit returns the fixture as service submission parameters.
func (f AvailabilityFixture) Submit() application.SubmitAvailabilityParams {
	return application.SubmitAvailabilityParams{
		RoomID:          f.RoomID,
		ParticipantName: f.Name,
		Encoded:         f.Encoding(),
	}
}
