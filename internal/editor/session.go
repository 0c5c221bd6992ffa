// Package editor drives one participant's editing session: pointer events
// paint a local week grid, every completed gesture is persisted in the
// background, and the displayed heat-map reflects local edits immediately.
package editor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/example/group-availability/internal/aggregate"
	"github.com/example/group-availability/internal/selection"
	"github.com/example/group-availability/internal/slotgrid"
)

// Gateway is the persistence collaborator of a session.
type Gateway interface {
	FetchAllAvailability(ctx context.Context, roomID string) ([]aggregate.Record, error)
	UpsertAvailability(ctx context.Context, roomID, name, encoded string) error
}

// Options configures a Session.
type Options struct {
	// StrictInvariants makes gesture methods return invariant violations
	// instead of logging them and continuing with clamped counts.
	StrictInvariants bool
	WriteTimeout     time.Duration
	Logger           *slog.Logger
}

// Session is safe for concurrent use, although pointer events are expected
// from a single goroutine.
type Session struct {
	gateway Gateway
	roomID  string
	name    string
	strict  bool
	logger  *slog.Logger
	writer  *Writer

	mu      sync.Mutex
	machine selection.Machine
	grid    slotgrid.WeekGrid
	// shown is the local grid whose contribution is included in heatmap.
	shown     slotgrid.WeekGrid
	heatmap   aggregate.Result
	others    int
	submitted bool
}

// Open loads the room and starts a session for name. Surrounding whitespace
// is dropped from name, matching how the server stores participant names.
func Open(ctx context.Context, gateway Gateway, roomID, name string, opts Options) (*Session, error) {
	name = strings.TrimSpace(name)
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("room_id", roomID, "participant", name)

	s := &Session{
		gateway: gateway,
		roomID:  roomID,
		name:    name,
		strict:  opts.StrictInvariants,
		logger:  logger,
	}
	s.writer = NewWriter(func(ctx context.Context, encoded string) error {
		return gateway.UpsertAvailability(ctx, roomID, name, encoded)
	}, opts.WriteTimeout, logger)

	records, err := gateway.FetchAllAvailability(ctx, roomID)
	if err != nil {
		s.writer.Close()
		return nil, fmt.Errorf("editor: open: %w", err)
	}

	others, own, found := splitRecords(records, name)
	if found {
		grid, err := slotgrid.DecodeOrEmpty(own.Encoded)
		if err != nil {
			logger.Warn("stored availability is malformed, starting empty", "error", err)
		}
		s.grid = grid
		s.submitted = true
	}

	s.others = len(others)
	s.heatmap, err = aggregate.Aggregate(others).WithLocalOverride(name, slotgrid.Empty(), s.grid)
	if err != nil {
		s.writer.Close()
		return nil, fmt.Errorf("editor: open: %w", err)
	}
	s.shown = s.grid
	s.fixRespondents()

	logger.Debug("editing session opened", "respondents", s.heatmap.Respondents)
	return s, nil
}

func splitRecords(records []aggregate.Record, name string) (others []aggregate.Record, own aggregate.Record, found bool) {
	others = make([]aggregate.Record, 0, len(records))
	for _, record := range records {
		if record.Name == name {
			own = record
			found = true
			continue
		}
		others = append(others, record)
	}
	return others, own, found
}

// fixRespondents counts the local participant once they have a saved or
// submitted grid. Callers hold mu.
func (s *Session) fixRespondents() {
	s.heatmap.Respondents = s.others
	if s.submitted {
		s.heatmap.Respondents++
	}
}

// PointerDown starts a gesture on a cell.
func (s *Session) PointerDown(day, slot int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.machine.State() == selection.Dragging {
		return nil
	}
	if err := s.machine.Begin(day, slot, s.grid.Available(day, slot)); err != nil {
		return err
	}
	s.grid = s.machine.Extend(s.grid, day, slot)
	return nil
}

// PointerMove extends the current gesture. It is ignored when no gesture is active.
func (s *Session) PointerMove(day, slot int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grid = s.machine.Extend(s.grid, day, slot)
}

// PointerUp completes the gesture and persists the grid.
func (s *Session) PointerUp(day, slot int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	grid, done := s.machine.End(s.grid, day, slot)
	s.grid = grid
	if !done {
		return nil
	}
	return s.commitLocked()
}

// Tap toggles a single cell as one complete gesture.
func (s *Session) Tap(day, slot int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	grid, done := s.machine.Tap(s.grid, day, slot)
	s.grid = grid
	if !done {
		return fmt.Errorf("editor: tap: %w: day=%d slot=%d", slotgrid.ErrOutOfRange, day, slot)
	}
	return s.commitLocked()
}

// Cancel abandons the current gesture. Painted cells stay in the local grid
// and are persisted with the next completed gesture.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.machine.Cancel()
}

func (s *Session) commitLocked() error {
	s.writer.Submit(slotgrid.Encode(s.grid))
	s.submitted = true

	updated, err := s.heatmap.WithLocalOverride(s.name, s.shown, s.grid)
	s.heatmap = updated
	s.shown = s.grid
	s.fixRespondents()

	if err != nil {
		if s.strict {
			return err
		}
		s.logger.Error("heatmap override clamped", "error", err, "error_kind", "invariant_violation")
	}
	return nil
}

// Grid returns the local grid, including cells painted by an unfinished gesture.
func (s *Session) Grid() slotgrid.WeekGrid {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.grid
}

// Heatmap returns the displayed aggregate: the last fetched records of the
// other participants plus the local grid as of the last completed gesture.
// The attendee slices must not be modified.
func (s *Session) Heatmap() aggregate.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.heatmap
}

// Dragging reports whether a gesture is in progress.
func (s *Session) Dragging() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.machine.State() == selection.Dragging
}

// Refresh re-reads the other participants from the gateway. The local grid is
// kept, since it may hold writes the server has not applied yet.
func (s *Session) Refresh(ctx context.Context) error {
	records, err := s.gateway.FetchAllAvailability(ctx, s.roomID)
	if err != nil {
		return fmt.Errorf("editor: refresh: %w", err)
	}
	others, _, found := splitRecords(records, s.name)

	s.mu.Lock()
	defer s.mu.Unlock()

	heatmap, err := aggregate.Aggregate(others).WithLocalOverride(s.name, slotgrid.Empty(), s.shown)
	if err != nil {
		return fmt.Errorf("editor: refresh: %w", err)
	}
	s.heatmap = heatmap
	s.others = len(others)
	s.submitted = s.submitted || found
	s.fixRespondents()
	return nil
}

// Flush waits for pending writes and returns the last write error.
func (s *Session) Flush(ctx context.Context) error {
	return s.writer.Flush(ctx)
}

// Err returns the error of the most recent write, if it failed.
func (s *Session) Err() error {
	return s.writer.Err()
}

// Close abandons any in-flight write.
func (s *Session) Close() {
	s.writer.Close()
}
