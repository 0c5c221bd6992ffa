package persistence

import "context"

// RoomRepository stores rooms.
type RoomRepository interface {
	CreateRoom(ctx context.Context, room Room) error
	GetRoom(ctx context.Context, id string) (Room, error)
}

// AvailabilityRepository stores participant availability.
type AvailabilityRepository interface {
	// UpsertAvailability inserts or replaces the row keyed by (RoomID, ParticipantName).
	// CreatedAt of an existing row is preserved.
	UpsertAvailability(ctx context.Context, availability Availability) (Availability, error)
	// UpsertAvailabilityWithin is UpsertAvailability for rooms limited to limit
	// participants. Replacing an existing row always succeeds; inserting a new
	// one into a full room fails with ErrLimitExceeded. The check and the write
	// are one atomic step. A limit of zero or less is unbounded.
	UpsertAvailabilityWithin(ctx context.Context, availability Availability, limit int) (Availability, error)
	GetAvailability(ctx context.Context, roomID, participantName string) (Availability, error)
	// ListAvailability returns every row of the room ordered by participant name.
	ListAvailability(ctx context.Context, roomID string) ([]Availability, error)
	CountParticipants(ctx context.Context, roomID string) (int, error)
}
