package migration

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"testing/fstest"
)

func openTestDB(t *testing.T) *SQLiteExecutor {
	t.Helper()

	db, err := OpenDatabase(TempFileTestSQLiteConfig(filepath.Join(t.TempDir(), "migrate.db")))
	if err != nil {
		t.Fatalf("OpenDatabase returned error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewSQLiteExecutor(db)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestManager_Run(t *testing.T) {
	ctx := context.Background()

	files := fstest.MapFS{
		"001_create_rooms.sql":  {Data: []byte("CREATE TABLE rooms (id TEXT PRIMARY KEY);")},
		"002_create_people.sql": {Data: []byte("CREATE TABLE people (id TEXT PRIMARY KEY);\nCREATE INDEX idx_people ON people(id);")},
	}

	executor := openTestDB(t)
	manager := NewManager(files, executor, quietLogger())

	if err := manager.Run(ctx); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	status, err := manager.Status(ctx)
	if err != nil {
		t.Fatalf("Status returned error: %v", err)
	}
	if status.CurrentVersion != "002" || len(status.Pending) != 0 || len(status.Applied) != 2 {
		t.Fatalf("unexpected status after run: %+v", status)
	}

	// second run is a no-op
	if err := manager.Run(ctx); err != nil {
		t.Fatalf("second Run returned error: %v", err)
	}

	applied, err := executor.IsVersionApplied(ctx, "001")
	if err != nil || !applied {
		t.Fatalf("expected 001 to be applied, got %v (err=%v)", applied, err)
	}
	applied, err = executor.IsVersionApplied(ctx, "003")
	if err != nil || applied {
		t.Fatalf("expected 003 to be pending, got %v (err=%v)", applied, err)
	}
}

func TestManager_RunStopsOnFailure(t *testing.T) {
	ctx := context.Background()

	files := fstest.MapFS{
		"001_ok.sql":     {Data: []byte("CREATE TABLE ok (id TEXT);")},
		"002_broken.sql": {Data: []byte("CREATE TABLE broken (id TEXT);\nINSERT INTO missing VALUES (1);")},
	}

	executor := openTestDB(t)
	manager := NewManager(files, executor, quietLogger())

	err := manager.Run(ctx)
	if !errors.Is(err, ErrMigrationFailed) {
		t.Fatalf("expected ErrMigrationFailed, got %v", err)
	}

	status, err := manager.Status(ctx)
	if err != nil {
		t.Fatalf("Status returned error: %v", err)
	}
	if status.CurrentVersion != "001" || len(status.Pending) != 1 {
		t.Fatalf("expected 002 to remain pending, got %+v", status)
	}

	applied, _ := executor.IsVersionApplied(ctx, "002")
	if applied {
		t.Fatalf("failed migration must not be recorded")
	}
}

func TestManager_DetectsEditedMigration(t *testing.T) {
	ctx := context.Background()
	executor := openTestDB(t)

	original := fstest.MapFS{"001_t.sql": {Data: []byte("CREATE TABLE t (id TEXT);")}}
	if err := NewManager(original, executor, quietLogger()).Run(ctx); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	edited := fstest.MapFS{"001_t.sql": {Data: []byte("CREATE TABLE t (id TEXT, name TEXT);")}}
	_, err := NewManager(edited, executor, quietLogger()).Status(ctx)
	if !errors.Is(err, ErrChecksumMismatch) {
		t.Fatalf("expected ErrChecksumMismatch, got %v", err)
	}
}
