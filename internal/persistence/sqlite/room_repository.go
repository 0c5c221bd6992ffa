package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/example/group-availability/internal/persistence"
)

// RoomRepository implements persistence.RoomRepository using SQLite
type RoomRepository struct {
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewRoomRepository creates a new SQLite room repository
func NewRoomRepository(pool *ConnectionPool) *RoomRepository {
	return &RoomRepository{
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

// CreateRoom inserts a new room. An existing ID yields persistence.ErrDuplicate.
func (r *RoomRepository) CreateRoom(ctx context.Context, room persistence.Room) error {
	if strings.TrimSpace(room.ID) == "" {
		return persistence.ErrConstraintViolation
	}

	if room.CreatedAt.IsZero() {
		room.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO rooms (id, name, created_at)
		VALUES (?, ?, ?)
	`

	if _, err := r.helper.Exec(ctx, query,
		room.ID,
		room.Name,
		formatTime(room.CreatedAt),
	); err != nil {
		return r.mapper.MapError(err)
	}

	return nil
}

// GetRoom retrieves a room by ID
func (r *RoomRepository) GetRoom(ctx context.Context, id string) (persistence.Room, error) {
	if id == "" {
		return persistence.Room{}, persistence.ErrNotFound
	}

	query := `
		SELECT id, name, created_at
		FROM rooms
		WHERE id = ?
	`

	var (
		room         persistence.Room
		createdAtStr string
	)

	if err := r.helper.QueryRow(ctx, query, id).Scan(&room.ID, &room.Name, &createdAtStr); err != nil {
		return persistence.Room{}, r.mapper.MapError(err)
	}

	var err error
	if room.CreatedAt, err = parseTime(createdAtStr); err != nil {
		return persistence.Room{}, fmt.Errorf("failed to parse created_at: %w", err)
	}

	return room, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(value string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, value)
}
