package testfixtures

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/example/group-availability/internal/persistence"
	"github.com/example/group-availability/internal/persistence/sqlite"
)

// SQLiteHarness provides repository access backed by a temporary SQLite storage
// instance for integration-style persistence tests.
type SQLiteHarness struct {
	Rooms        persistence.RoomRepository
	Availability persistence.AvailabilityRepository
	Storage      *sqlite.Storage

	cleanup func()
}

// Close releases resources associated with the harness.
func (h *SQLiteHarness) Close() {
	if h != nil && h.cleanup != nil {
		h.cleanup()
		h.cleanup = nil
	}
}

// NewSQLiteHarness constructs a SQLiteHarness using a temporary file that is
// migrated automatically. Callers may optionally invoke Close, but the helper
// will also register a cleanup callback with the provided testing.TB.
func NewSQLiteHarness(tb testing.TB) *SQLiteHarness {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "availability.db")

	storage, err := sqlite.Open(path)
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}

	if err := storage.Migrate(context.Background()); err != nil {
		_ = storage.Close()
		tb.Fatalf("failed to migrate storage: %v", err)
	}

	harness := &SQLiteHarness{
		Rooms:        storage,
		Availability: storage,
		Storage:      storage,
		cleanup: func() {
			_ = storage.Close()
		},
	}

	tb.Cleanup(harness.Close)
	return harness
}

// SeedRoom inserts the fixture and fails the test on error.
func (h *SQLiteHarness) SeedRoom(tb testing.TB, f RoomFixture) {
	tb.Helper()
	if err := h.Rooms.CreateRoom(context.Background(), f.Persistence()); err != nil {
		tb.Fatalf("failed to seed room %s: %v", f.ID, err)
	}
}

// SeedAvailability inserts the fixture and fails the test on error.
func (h *SQLiteHarness) SeedAvailability(tb testing.TB, f AvailabilityFixture) {
	tb.Helper()
	if _, err := h.Availability.UpsertAvailability(context.Background(), f.Persistence()); err != nil {
		tb.Fatalf("failed to seed availability %s/%s: %v", f.RoomID, f.Name, err)
	}
}
