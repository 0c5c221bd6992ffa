package testfixtures

import (
	"context"
	"sort"
	"sync"

	"github.com/example/group-availability/internal/application"
	"github.com/example/group-availability/internal/persistence"
)

// MemoryStore implements the application repositories in memory. It reports
// missing rows with persistence sentinels, the same way the SQLite gateway does.
type MemoryStore struct {
	mu           sync.Mutex
	rooms        map[string]application.Room
	availability map[string]map[string]application.AvailabilityRecord
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rooms:        make(map[string]application.Room),
		availability: make(map[string]map[string]application.AvailabilityRecord),
	}
}

// CreateRoom stores a room, rejecting duplicate identifiers.
func (s *MemoryStore) CreateRoom(ctx context.Context, room application.Room) (application.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.rooms[room.ID]; exists {
		return application.Room{}, persistence.ErrDuplicate
	}
	s.rooms[room.ID] = room
	return room, nil
}

// GetRoom returns a stored room.
func (s *MemoryStore) GetRoom(ctx context.Context, id string) (application.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[id]
	if !ok {
		return application.Room{}, persistence.ErrNotFound
	}
	return room, nil
}

// UpsertAvailability inserts or replaces a participant row, keeping the
// original creation time on replace. A positive limit refuses new
// participants once the room holds that many.
func (s *MemoryStore) UpsertAvailability(ctx context.Context, record application.AvailabilityRecord, limit int) (application.AvailabilityRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[record.RoomID]; !ok {
		return application.AvailabilityRecord{}, persistence.ErrConstraintViolation
	}
	byName := s.availability[record.RoomID]
	if byName == nil {
		byName = make(map[string]application.AvailabilityRecord)
		s.availability[record.RoomID] = byName
	}
	if existing, ok := byName[record.ParticipantName]; ok {
		record.CreatedAt = existing.CreatedAt
	} else if limit > 0 && len(byName) >= limit {
		return application.AvailabilityRecord{}, persistence.ErrLimitExceeded
	}
	byName[record.ParticipantName] = record
	return record, nil
}

// GetAvailability returns one participant row.
func (s *MemoryStore) GetAvailability(ctx context.Context, roomID, participantName string) (application.AvailabilityRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.availability[roomID][participantName]
	if !ok {
		return application.AvailabilityRecord{}, persistence.ErrNotFound
	}
	return record, nil
}

// ListAvailability returns the rows of a room ordered by participant name.
func (s *MemoryStore) ListAvailability(ctx context.Context, roomID string) ([]application.AvailabilityRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	records := make([]application.AvailabilityRecord, 0, len(s.availability[roomID]))
	for _, record := range s.availability[roomID] {
		records = append(records, record)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].ParticipantName < records[j].ParticipantName
	})
	return records, nil
}

// SeedRoom stores the fixture directly.
func (s *MemoryStore) SeedRoom(f RoomFixture) {
	_, _ = s.CreateRoom(context.Background(), f.Application())
}

// SeedAvailability stores the fixture directly, bypassing validation.
func (s *MemoryStore) SeedAvailability(f AvailabilityFixture) {
	_, _ = s.UpsertAvailability(context.Background(), f.Application(), 0)
}
