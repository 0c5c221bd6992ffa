package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/example/group-availability/internal/persistence"
)

// AvailabilityRepository implements persistence.AvailabilityRepository using SQLite
type AvailabilityRepository struct {
	helper *QueryHelper
	mapper *ErrorMapper
	retry  *RetryHelper
}

// NewAvailabilityRepository creates a new SQLite availability repository
func NewAvailabilityRepository(pool *ConnectionPool) *AvailabilityRepository {
	return NewAvailabilityRepositoryWithRetry(pool, DefaultRetryConfig())
}

// NewAvailabilityRepositoryWithRetry allows tests to shorten the lock retry schedule.
func NewAvailabilityRepositoryWithRetry(pool *ConnectionPool, config RetryConfig) *AvailabilityRepository {
	return &AvailabilityRepository{
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
		retry:  NewRetryHelper(config),
	}
}

// UpsertAvailability inserts the participant's row or replaces its encoding.
// The returned row carries the created_at of the first write.
func (r *AvailabilityRepository) UpsertAvailability(ctx context.Context, availability persistence.Availability) (persistence.Availability, error) {
	return r.UpsertAvailabilityWithin(ctx, availability, 0)
}

// UpsertAvailabilityWithin is UpsertAvailability with a participant limit. The
// limit is evaluated inside the INSERT, so concurrent writers cannot both take
// the last free place: SQLite serialises the statement under its write lock.
func (r *AvailabilityRepository) UpsertAvailabilityWithin(ctx context.Context, availability persistence.Availability, limit int) (persistence.Availability, error) {
	if availability.RoomID == "" || availability.ParticipantName == "" {
		return persistence.Availability{}, persistence.ErrConstraintViolation
	}

	if availability.UpdatedAt.IsZero() {
		availability.UpdatedAt = time.Now().UTC()
	}
	if availability.CreatedAt.IsZero() {
		availability.CreatedAt = availability.UpdatedAt
	}

	// The WHERE clause also keeps SQLite from reading ON CONFLICT as a join constraint.
	query := `
		INSERT INTO availability (room_id, participant_name, schedule_encoding, created_at, updated_at)
		SELECT ?, ?, ?, ?, ?
		WHERE ? <= 0
			OR EXISTS (SELECT 1 FROM availability WHERE room_id = ? AND participant_name = ?)
			OR (SELECT COUNT(*) FROM availability WHERE room_id = ?) < ?
		ON CONFLICT (room_id, participant_name) DO UPDATE SET
			schedule_encoding = excluded.schedule_encoding,
			updated_at = excluded.updated_at
		RETURNING created_at
	`

	var createdAtStr string
	err := r.retry.WithRetry(ctx, func() error {
		err := r.helper.QueryRow(ctx, query,
			availability.RoomID,
			availability.ParticipantName,
			availability.ScheduleEncoding,
			formatTime(availability.CreatedAt),
			formatTime(availability.UpdatedAt),
			limit,
			availability.RoomID,
			availability.ParticipantName,
			availability.RoomID,
			limit,
		).Scan(&createdAtStr)
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.ErrLimitExceeded
		}
		return err
	})
	if err != nil {
		return persistence.Availability{}, err
	}

	if availability.CreatedAt, err = parseTime(createdAtStr); err != nil {
		return persistence.Availability{}, fmt.Errorf("failed to parse created_at: %w", err)
	}

	return availability, nil
}

// GetAvailability retrieves one participant's row
func (r *AvailabilityRepository) GetAvailability(ctx context.Context, roomID, participantName string) (persistence.Availability, error) {
	query := `
		SELECT room_id, participant_name, schedule_encoding, created_at, updated_at
		FROM availability
		WHERE room_id = ? AND participant_name = ?
	`

	var (
		availability persistence.Availability
		createdAtStr string
		updatedAtStr string
	)

	err := r.helper.QueryRow(ctx, query, roomID, participantName).Scan(
		&availability.RoomID,
		&availability.ParticipantName,
		&availability.ScheduleEncoding,
		&createdAtStr,
		&updatedAtStr,
	)
	if err != nil {
		return persistence.Availability{}, r.mapper.MapError(err)
	}

	if err := parseTimestamps(&availability, createdAtStr, updatedAtStr); err != nil {
		return persistence.Availability{}, err
	}

	return availability, nil
}

// ListAvailability returns every row of a room ordered by participant name
func (r *AvailabilityRepository) ListAvailability(ctx context.Context, roomID string) ([]persistence.Availability, error) {
	query := `
		SELECT room_id, participant_name, schedule_encoding, created_at, updated_at
		FROM availability
		WHERE room_id = ?
		ORDER BY participant_name ASC
	`

	rows, err := r.helper.Query(ctx, query, roomID)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	records := make([]persistence.Availability, 0)

	for rows.Next() {
		var (
			availability persistence.Availability
			createdAtStr string
			updatedAtStr string
		)

		if err := rows.Scan(
			&availability.RoomID,
			&availability.ParticipantName,
			&availability.ScheduleEncoding,
			&createdAtStr,
			&updatedAtStr,
		); err != nil {
			return nil, r.mapper.MapError(err)
		}

		if err := parseTimestamps(&availability, createdAtStr, updatedAtStr); err != nil {
			return nil, err
		}

		records = append(records, availability)
	}

	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}

	return records, nil
}

// CountParticipants returns the number of rows stored for a room
func (r *AvailabilityRepository) CountParticipants(ctx context.Context, roomID string) (int, error) {
	var count int
	if err := r.helper.QueryRow(ctx, `SELECT COUNT(*) FROM availability WHERE room_id = ?`, roomID).Scan(&count); err != nil {
		return 0, r.mapper.MapError(err)
	}
	return count, nil
}

func parseTimestamps(availability *persistence.Availability, createdAtStr, updatedAtStr string) error {
	var err error
	if availability.CreatedAt, err = parseTime(createdAtStr); err != nil {
		return fmt.Errorf("failed to parse created_at: %w", err)
	}
	if availability.UpdatedAt, err = parseTime(updatedAtStr); err != nil {
		return fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return nil
}
