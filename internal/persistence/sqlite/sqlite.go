package sqlite

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/example/group-availability/internal/persistence"
	"github.com/example/group-availability/internal/persistence/sqlite/migration"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// MigrationFiles returns the embedded schema migrations.
func MigrationFiles() fs.FS {
	sub, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		panic(fmt.Sprintf("sqlite: embedded migrations: %v", err))
	}
	return sub
}

// Storage bundles the SQLite repositories over one connection pool.
type Storage struct {
	*RoomRepository
	*AvailabilityRepository

	pool   *ConnectionPool
	logger *slog.Logger
}

var (
	_ persistence.RoomRepository         = (*Storage)(nil)
	_ persistence.AvailabilityRepository = (*Storage)(nil)
)

// Open opens the database file at path with the default configuration.
func Open(path string) (*Storage, error) {
	return OpenWithConfig(migration.DefaultSQLiteConfig(path), nil)
}

// OpenWithConfig opens a database with an explicit configuration.
func OpenWithConfig(config migration.SQLiteConfig, logger *slog.Logger) (*Storage, error) {
	pool, err := NewConnectionPool(config)
	if err != nil {
		return nil, err
	}
	return NewStorage(pool, logger), nil
}

// NewStorage builds the repositories over an existing pool.
func NewStorage(pool *ConnectionPool, logger *slog.Logger) *Storage {
	if logger == nil {
		logger = slog.Default()
	}
	return &Storage{
		RoomRepository:         NewRoomRepository(pool),
		AvailabilityRepository: NewAvailabilityRepository(pool),
		pool:                   pool,
		logger:                 logger,
	}
}

// Migrate applies pending schema migrations.
func (s *Storage) Migrate(ctx context.Context) error {
	manager := migration.NewManager(MigrationFiles(), migration.NewSQLiteExecutor(s.pool.DB()), s.logger)
	if err := manager.Run(ctx); err != nil {
		return fmt.Errorf("sqlite: migrate: %w", err)
	}
	return nil
}

// Ping checks that the database is reachable.
func (s *Storage) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Storage) Close() error {
	return s.pool.Close()
}
