package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/example/group-availability/internal/application"
	"github.com/example/group-availability/internal/cache"
	"github.com/example/group-availability/internal/config"
	httptransport "github.com/example/group-availability/internal/http"
	"github.com/example/group-availability/internal/logging"
	"github.com/example/group-availability/internal/persistence/sqlite"
	"github.com/example/group-availability/internal/persistence/sqlite/migration"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stderr, nil)).Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger := logging.New(os.Stdout, cfg.LogLevel)

	app, err := newApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           app.Handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("availability API listening", "addr", server.Addr, "cache", app.CacheKind)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server encountered error", "error", err)
		app.Close()
		os.Exit(1)
	}
}

// app holds the wired services behind the HTTP handler.
type app struct {
	Handler      http.Handler
	Rooms        *application.RoomService
	Availability *application.AvailabilityService
	CacheKind    string

	closers []func() error
	logger  *slog.Logger
}

func newApp(ctx context.Context, cfg config.Config, logger *slog.Logger) (*app, error) {
	a := &app{logger: logger}

	storage, err := sqlite.OpenWithConfig(migration.DefaultSQLiteConfig(cfg.SQLiteDSN), logger)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	a.closers = append(a.closers, storage.Close)

	if err := storage.Migrate(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	store, kind, err := newCacheStore(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.CacheKind = kind
	if closer, ok := store.(interface{ Close() error }); ok {
		a.closers = append(a.closers, closer.Close)
	}

	now := time.Now
	rooms := newRoomRepositoryAdapter(storage)
	records := newAvailabilityRepositoryAdapter(storage)

	a.Rooms = application.NewRoomServiceWithLogger(rooms, uuid.NewString, now, logger)
	a.Availability = application.NewAvailabilityServiceWithLogger(rooms, records, now, logger,
		application.WithHeatmapCache(store),
		application.WithMaxParticipants(cfg.MaxParticipants),
	)

	a.Handler = httptransport.NewRouter(httptransport.RouterConfig{
		Rooms:        httptransport.NewRoomHandler(a.Rooms, logger),
		Availability: httptransport.NewAvailabilityHandler(a.Availability, a.Rooms, logger),
		Middleware: []func(http.Handler) http.Handler{
			httptransport.RequestLogger(logger),
			httptransport.Recoverer(logger),
		},
	})
	return a, nil
}

func newCacheStore(ctx context.Context, cfg config.Config) (cache.Store, string, error) {
	if !cfg.UseRedis() {
		return cache.NewMemory(cfg.CacheTTL, 0, nil), "memory", nil
	}
	store, err := cache.NewRedis(ctx, cache.RedisOptions{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		TTL:      cfg.CacheTTL,
	})
	if err != nil {
		return nil, "", err
	}
	return store, "redis", nil
}

// Close releases resources in reverse order of acquisition. It is safe to call twice.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Error("failed to release resource", "error", err)
		}
	}
	a.closers = nil
}
