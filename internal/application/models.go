package application

import (
	"time"

	"github.com/example/group-availability/internal/aggregate"
	"github.com/example/group-availability/internal/slotgrid"
)

// MaxNameLength bounds room and participant names, counted in characters.
const MaxNameLength = 100

// Room is a scheduling poll.
type Room struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// RoomInput captures caller provided room fields.
type RoomInput struct {
	Name string
}

// AvailabilityRecord is a stored participant row as seen by the services.
type AvailabilityRecord struct {
	RoomID          string
	ParticipantName string
	Encoded         string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Participant is one participant's availability in a room. Submitted is false
// when the participant has never saved a grid; Grid is then empty.
type Participant struct {
	RoomID    string
	Name      string
	Grid      slotgrid.WeekGrid
	Encoded   string
	Submitted bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SubmitAvailabilityParams wraps the data required to save a participant's grid.
type SubmitAvailabilityParams struct {
	RoomID          string
	ParticipantName string
	Encoded         string
}

// Heatmap is the aggregate availability of a room. Values returned by the
// service may be shared between callers and must be treated as read-only.
type Heatmap struct {
	RoomID        string                 `json:"room_id"`
	Respondents   int                    `json:"respondents"`
	Attendance    slotgrid.WeekGrid      `json:"attendance"`
	Attendees     aggregate.AttendeeGrid `json:"attendees"`
	Skipped       []string               `json:"skipped,omitempty"`
	MaxAttendance int                    `json:"max_attendance"`
	// Fingerprint identifies the record set the heat-map was computed from.
	Fingerprint string `json:"fingerprint"`
}

// Result converts the heat-map back into an aggregate result.
func (h Heatmap) Result() aggregate.Result {
	return aggregate.Result{
		Attendance:  h.Attendance,
		Attendees:   h.Attendees,
		Respondents: h.Respondents,
		Skipped:     h.Skipped,
	}
}

// EncodedAttendance returns the attendance grid in the wire encoding.
func (h Heatmap) EncodedAttendance() string {
	return slotgrid.Encode(h.Attendance)
}
