package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/example/group-availability/internal/application"
	"github.com/example/group-availability/internal/client"
	"github.com/example/group-availability/internal/config"
	"github.com/example/group-availability/internal/editor"
	"github.com/example/group-availability/internal/slotgrid"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		HTTPPort:        8080,
		SQLiteDSN:       filepath.Join(t.TempDir(), "availability.db"),
		LogLevel:        slog.LevelInfo,
		CacheTTL:        time.Minute,
		ShutdownTimeout: time.Second,
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startApp(t *testing.T, cfg config.Config) (*app, *client.Client) {
	t.Helper()
	a, err := newApp(context.Background(), cfg, testLogger())
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	server := httptest.NewServer(a.Handler)
	t.Cleanup(func() {
		server.Close()
		a.Close()
	})
	return a, client.New(server.URL, client.WithRetry(0, 0))
}

func openEditor(t *testing.T, c *client.Client, roomID, name string) *editor.Session {
	t.Helper()
	session, err := editor.Open(context.Background(), c, roomID, name, editor.Options{Logger: testLogger()})
	if err != nil {
		t.Fatalf("open editor for %s: %v", name, err)
	}
	t.Cleanup(session.Close)
	return session
}

func flushEditor(t *testing.T, session *editor.Session) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := session.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}
}

func TestApp_TwoParticipantScenario(t *testing.T) {
	ctx := context.Background()
	_, c := startApp(t, testConfig(t))

	room, err := c.CreateRoom(ctx, "Weekly sync")
	if err != nil {
		t.Fatalf("create room: %v", err)
	}

	alice := openEditor(t, c, room.ID, "Alice")
	if err := alice.PointerDown(1, 18); err != nil {
		t.Fatalf("pointer down: %v", err)
	}
	alice.PointerMove(1, 21)
	if err := alice.PointerUp(1, 21); err != nil {
		t.Fatalf("pointer up: %v", err)
	}
	flushEditor(t, alice)

	bob := openEditor(t, c, room.ID, "Bob")
	if got := bob.Heatmap().Attendance[1][19]; got != 1 {
		t.Fatalf("bob sees attendance %d at Mon 09:30, want 1", got)
	}
	if err := bob.PointerDown(1, 20); err != nil {
		t.Fatalf("pointer down: %v", err)
	}
	if err := bob.PointerUp(1, 23); err != nil {
		t.Fatalf("pointer up: %v", err)
	}
	flushEditor(t, bob)

	heatmap, err := c.Heatmap(ctx, room.ID)
	if err != nil {
		t.Fatalf("heatmap: %v", err)
	}
	if heatmap.Respondents != 2 {
		t.Fatalf("respondents = %d, want 2", heatmap.Respondents)
	}
	if heatmap.MaxAttendance != 2 {
		t.Fatalf("max attendance = %d, want 2", heatmap.MaxAttendance)
	}
	for slot, want := range map[int]int{17: 0, 18: 1, 20: 2, 21: 2, 22: 1, 24: 0} {
		if got := heatmap.Attendance[1][slot]; got != want {
			t.Errorf("attendance[1][%d] = %d, want %d", slot, got, want)
		}
	}
	if got := heatmap.Attendees[1][21]; !slices.Equal(got, []string{"Alice", "Bob"}) {
		t.Fatalf("attendees at overlap = %v", got)
	}

	if err := alice.Refresh(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if got := alice.Heatmap().Attendance; got != heatmap.Attendance {
		t.Fatalf("alice's refreshed heat-map differs from the server's")
	}

	_, changed, err := c.HeatmapIfChanged(ctx, room.ID, heatmap.ETag)
	if err != nil {
		t.Fatalf("conditional heatmap: %v", err)
	}
	if changed {
		t.Fatalf("expected not modified for unchanged heat-map")
	}

	workbook, err := c.HeatmapWorkbook(ctx, room.ID)
	if err != nil {
		t.Fatalf("workbook: %v", err)
	}
	if len(workbook) == 0 {
		t.Fatalf("empty workbook")
	}
}

func TestApp_PersistsAcrossRestart(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	first, err := newApp(ctx, cfg, testLogger())
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	room, err := first.Rooms.CreateRoom(ctx, application.RoomInput{Name: "Retro"})
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	grid, _ := slotgrid.Empty().Set(6, 47, 1)
	if _, err := first.Availability.SubmitAvailability(ctx, application.SubmitAvailabilityParams{
		RoomID:          room.ID,
		ParticipantName: "Carol",
		Encoded:         slotgrid.Encode(grid),
	}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	first.Close()

	_, c := startApp(t, cfg)
	participant, err := c.GetAvailability(ctx, room.ID, "Carol")
	if err != nil {
		t.Fatalf("get availability: %v", err)
	}
	if !participant.Submitted || participant.ScheduleEncoding != slotgrid.Encode(grid) {
		t.Fatalf("unexpected participant after restart: %+v", participant)
	}
}

func TestApp_RedisHeatmapCache(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)

	cfg := testConfig(t)
	cfg.RedisAddr = mr.Addr()
	a, c := startApp(t, cfg)
	if a.CacheKind != "redis" {
		t.Fatalf("cache kind = %q, want redis", a.CacheKind)
	}

	room, err := c.CreateRoom(ctx, "Cached")
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	if _, err := c.Heatmap(ctx, room.ID); err != nil {
		t.Fatalf("heatmap: %v", err)
	}

	key := "availability:heatmap:" + room.ID + ":0"
	if !mr.Exists(key) {
		t.Fatalf("expected %s to be cached, keys: %v", key, mr.Keys())
	}

	if err := c.UpsertAvailability(ctx, room.ID, "Dave", slotgrid.Encode(slotgrid.Empty())); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if mr.Exists(key) {
		t.Fatalf("expected %s to be invalidated after a write", key)
	}
	if gen, err := mr.Get("availability:heatmap-gen:" + room.ID); err != nil || gen != "1" {
		t.Fatalf("expected generation 1 after a write, got %q (%v)", gen, err)
	}

	heatmap, err := c.Heatmap(ctx, room.ID)
	if err != nil {
		t.Fatalf("heatmap: %v", err)
	}
	if heatmap.Respondents != 1 {
		t.Fatalf("expected Dave to be counted, got %d respondents", heatmap.Respondents)
	}
	if next := "availability:heatmap:" + room.ID + ":1"; !mr.Exists(next) {
		t.Fatalf("expected %s to be cached, keys: %v", next, mr.Keys())
	}
}

func TestNewApp_Errors(t *testing.T) {
	t.Run("unreachable redis", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.RedisAddr = "127.0.0.1:1"
		if _, err := newApp(context.Background(), cfg, testLogger()); err == nil {
			t.Fatalf("expected error for unreachable redis")
		}
	})

	t.Run("room capacity", func(t *testing.T) {
		ctx := context.Background()
		cfg := testConfig(t)
		cfg.MaxParticipants = 1
		_, c := startApp(t, cfg)

		room, err := c.CreateRoom(ctx, "Tiny")
		if err != nil {
			t.Fatalf("create room: %v", err)
		}
		empty := slotgrid.Encode(slotgrid.Empty())
		if err := c.UpsertAvailability(ctx, room.ID, "Erin", empty); err != nil {
			t.Fatalf("first upsert: %v", err)
		}
		err = c.UpsertAvailability(ctx, room.ID, "Frank", empty)
		var apiErr *client.APIError
		if !errors.As(err, &apiErr) || apiErr.Code != "ROOM_FULL" {
			t.Fatalf("expected ROOM_FULL, got %v", err)
		}
		if err := c.UpsertAvailability(ctx, room.ID, "Erin", empty); err != nil {
			t.Fatalf("existing participant should still save: %v", err)
		}
	})
}

func TestApp_HeatmapOverSQLite(t *testing.T) {
	ctx := context.Background()
	_, c := startApp(t, testConfig(t))

	room, err := c.CreateRoom(ctx, "Standup")
	if err != nil {
		t.Fatalf("create room: %v", err)
	}

	a := slotgrid.Empty()
	a, _ = a.Set(0, 0, 1)
	a, _ = a.Set(0, 1, 1)
	b, _ := slotgrid.Empty().Set(0, 0, 1)

	if err := c.UpsertAvailability(ctx, room.ID, "A", slotgrid.Encode(a)); err != nil {
		t.Fatalf("upsert A: %v", err)
	}
	if err := c.UpsertAvailability(ctx, room.ID, "B", slotgrid.Encode(b)); err != nil {
		t.Fatalf("upsert B: %v", err)
	}

	heatmap, err := c.Heatmap(ctx, room.ID)
	if err != nil {
		t.Fatalf("heatmap: %v", err)
	}
	if heatmap.Attendance[0][0] != 2 || heatmap.Attendance[0][1] != 1 {
		t.Fatalf("attendance = %d/%d, want 2/1", heatmap.Attendance[0][0], heatmap.Attendance[0][1])
	}
	if !slices.Equal(heatmap.Attendees[0][0], []string{"A", "B"}) || !slices.Equal(heatmap.Attendees[0][1], []string{"A"}) {
		t.Fatalf("attendees = %v / %v", heatmap.Attendees[0][0], heatmap.Attendees[0][1])
	}
	if heatmap.Attendance.Count() != 2 {
		t.Fatalf("unexpected non-zero cells: %d", heatmap.Attendance.Count())
	}
}
