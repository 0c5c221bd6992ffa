package persistence

import "time"

// Room is a scheduling poll that participants join by ID.
type Room struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// Availability is one participant's encoded week grid within a room.
// A room holds at most one row per participant name.
type Availability struct {
	RoomID           string
	ParticipantName  string
	ScheduleEncoding string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
