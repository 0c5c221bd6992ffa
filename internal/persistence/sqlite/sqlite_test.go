package sqlite

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/example/group-availability/internal/persistence"
	"github.com/example/group-availability/internal/persistence/sqlite/migration"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()

	path := filepath.Join(t.TempDir(), "availability.db")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	storage, err := OpenWithConfig(migration.TempFileTestSQLiteConfig(path), logger)
	if err != nil {
		t.Fatalf("failed to open storage: %v", err)
	}

	t.Cleanup(func() {
		_ = storage.Close()
	})

	if err := storage.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	return storage
}

func TestStorage_MigrateIsIdempotent(t *testing.T) {
	storage := newTestStorage(t)

	if err := storage.Migrate(context.Background()); err != nil {
		t.Fatalf("second Migrate failed: %v", err)
	}
	if err := storage.Ping(context.Background()); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
}

func TestRoomRepository(t *testing.T) {
	ctx := context.Background()
	storage := newTestStorage(t)

	created := time.Date(2024, time.January, 2, 15, 4, 5, 123456789, time.UTC)
	room := persistence.Room{ID: "room-1", Name: "Team offsite", CreatedAt: created}

	if err := storage.CreateRoom(ctx, room); err != nil {
		t.Fatalf("CreateRoom failed: %v", err)
	}

	fetched, err := storage.GetRoom(ctx, "room-1")
	if err != nil {
		t.Fatalf("GetRoom failed: %v", err)
	}
	if fetched.Name != room.Name || !fetched.CreatedAt.Equal(created) {
		t.Fatalf("unexpected room: %#v", fetched)
	}

	if err := storage.CreateRoom(ctx, room); !errors.Is(err, persistence.ErrDuplicate) {
		t.Fatalf("expected persistence.ErrDuplicate, got %v", err)
	}

	if err := storage.CreateRoom(ctx, persistence.Room{ID: "room-2", Name: ""}); !errors.Is(err, persistence.ErrConstraintViolation) {
		t.Fatalf("expected persistence.ErrConstraintViolation for empty name, got %v", err)
	}

	if _, err := storage.GetRoom(ctx, "missing"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected persistence.ErrNotFound, got %v", err)
	}
}

func TestAvailabilityRepository(t *testing.T) {
	ctx := context.Background()
	storage := newTestStorage(t)

	if err := storage.CreateRoom(ctx, persistence.Room{ID: "room-1", Name: "Planning"}); err != nil {
		t.Fatalf("CreateRoom failed: %v", err)
	}

	first := time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC)
	second := first.Add(time.Hour)

	t.Run("upsert inserts then replaces", func(t *testing.T) {
		stored, err := storage.UpsertAvailability(ctx, persistence.Availability{
			RoomID:           "room-1",
			ParticipantName:  "Bob",
			ScheduleEncoding: "v1",
			CreatedAt:        first,
			UpdatedAt:        first,
		})
		if err != nil {
			t.Fatalf("UpsertAvailability failed: %v", err)
		}
		if !stored.CreatedAt.Equal(first) {
			t.Fatalf("unexpected created_at: %v", stored.CreatedAt)
		}

		stored, err = storage.UpsertAvailability(ctx, persistence.Availability{
			RoomID:           "room-1",
			ParticipantName:  "Bob",
			ScheduleEncoding: "v2",
			CreatedAt:        second,
			UpdatedAt:        second,
		})
		if err != nil {
			t.Fatalf("second UpsertAvailability failed: %v", err)
		}
		if !stored.CreatedAt.Equal(first) {
			t.Fatalf("created_at must be preserved, got %v", stored.CreatedAt)
		}

		fetched, err := storage.GetAvailability(ctx, "room-1", "Bob")
		if err != nil {
			t.Fatalf("GetAvailability failed: %v", err)
		}
		if fetched.ScheduleEncoding != "v2" || !fetched.UpdatedAt.Equal(second) || !fetched.CreatedAt.Equal(first) {
			t.Fatalf("unexpected availability: %#v", fetched)
		}

		count, err := storage.CountParticipants(ctx, "room-1")
		if err != nil {
			t.Fatalf("CountParticipants failed: %v", err)
		}
		if count != 1 {
			t.Fatalf("expected a single row per participant, got %d", count)
		}
	})

	t.Run("list is ordered by participant name", func(t *testing.T) {
		for _, name := range []string{"Carol", "Alice"} {
			if _, err := storage.UpsertAvailability(ctx, persistence.Availability{
				RoomID:           "room-1",
				ParticipantName:  name,
				ScheduleEncoding: "x",
			}); err != nil {
				t.Fatalf("UpsertAvailability(%s) failed: %v", name, err)
			}
		}

		records, err := storage.ListAvailability(ctx, "room-1")
		if err != nil {
			t.Fatalf("ListAvailability failed: %v", err)
		}
		if len(records) != 3 {
			t.Fatalf("expected 3 records, got %d", len(records))
		}
		for i, want := range []string{"Alice", "Bob", "Carol"} {
			if records[i].ParticipantName != want {
				t.Fatalf("record %d: expected %s, got %s", i, want, records[i].ParticipantName)
			}
		}

		empty, err := storage.ListAvailability(ctx, "other-room")
		if err != nil {
			t.Fatalf("ListAvailability for empty room failed: %v", err)
		}
		if len(empty) != 0 {
			t.Fatalf("expected no records, got %d", len(empty))
		}
	})

	t.Run("missing participant is not found", func(t *testing.T) {
		if _, err := storage.GetAvailability(ctx, "room-1", "Nobody"); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected persistence.ErrNotFound, got %v", err)
		}
	})

	t.Run("unknown room violates the foreign key", func(t *testing.T) {
		_, err := storage.UpsertAvailability(ctx, persistence.Availability{
			RoomID:           "ghost",
			ParticipantName:  "Bob",
			ScheduleEncoding: "x",
		})
		if !errors.Is(err, persistence.ErrConstraintViolation) {
			t.Fatalf("expected persistence.ErrConstraintViolation, got %v", err)
		}
	})
}

func TestAvailabilityRepository_UpsertWithin(t *testing.T) {
	ctx := context.Background()
	storage := newTestStorage(t)

	if err := storage.CreateRoom(ctx, persistence.Room{ID: "small", Name: "Small"}); err != nil {
		t.Fatalf("CreateRoom failed: %v", err)
	}

	upsert := func(name string, limit int) error {
		_, err := storage.UpsertAvailabilityWithin(ctx, persistence.Availability{
			RoomID:           "small",
			ParticipantName:  name,
			ScheduleEncoding: "x-" + name,
		}, limit)
		return err
	}

	for _, name := range []string{"Alice", "Bob"} {
		if err := upsert(name, 2); err != nil {
			t.Fatalf("UpsertAvailabilityWithin(%s) failed: %v", name, err)
		}
	}

	if err := upsert("Carol", 2); !errors.Is(err, persistence.ErrLimitExceeded) {
		t.Fatalf("expected persistence.ErrLimitExceeded for a third participant, got %v", err)
	}
	if _, err := storage.GetAvailability(ctx, "small", "Carol"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("rejected participant must not be stored, got %v", err)
	}

	if err := upsert("Alice", 2); err != nil {
		t.Fatalf("existing participant must still save in a full room: %v", err)
	}
	if err := upsert("Carol", 0); err != nil {
		t.Fatalf("a zero limit must be unbounded: %v", err)
	}
}

func TestAvailabilityRepository_UpsertWithinConcurrentWriters(t *testing.T) {
	ctx := context.Background()
	storage := newTestStorage(t)

	if err := storage.CreateRoom(ctx, persistence.Room{ID: "race", Name: "Race"}); err != nil {
		t.Fatalf("CreateRoom failed: %v", err)
	}

	const limit = 3
	const writers = 12

	repo := NewAvailabilityRepositoryWithRetry(storage.pool, RetryConfig{
		MaxRetries:    50,
		InitialDelay:  2 * time.Millisecond,
		MaxDelay:      20 * time.Millisecond,
		BackoffFactor: 2,
	})

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
		rejected int
		failures []error
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := repo.UpsertAvailabilityWithin(ctx, persistence.Availability{
				RoomID:           "race",
				ParticipantName:  fmt.Sprintf("participant-%02d", i),
				ScheduleEncoding: "x",
			}, limit)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				accepted++
			case errors.Is(err, persistence.ErrLimitExceeded):
				rejected++
			default:
				failures = append(failures, err)
			}
		}(i)
	}
	wg.Wait()

	if len(failures) > 0 {
		t.Fatalf("unexpected errors: %v", failures)
	}
	if accepted != limit || rejected != writers-limit {
		t.Fatalf("expected %d accepted and %d rejected, got %d and %d", limit, writers-limit, accepted, rejected)
	}

	count, err := storage.CountParticipants(ctx, "race")
	if err != nil {
		t.Fatalf("CountParticipants failed: %v", err)
	}
	if count != limit {
		t.Fatalf("expected %d stored participants, got %d", limit, count)
	}
}
