package editor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/group-availability/internal/aggregate"
	"github.com/example/group-availability/internal/slotgrid"
)

type fakeGateway struct {
	mu       sync.Mutex
	records  map[string]string
	upserts  []string
	fetchErr error
}

func newFakeGateway(records map[string]string) *fakeGateway {
	if records == nil {
		records = map[string]string{}
	}
	return &fakeGateway{records: records}
}

func (g *fakeGateway) FetchAllAvailability(_ context.Context, _ string) ([]aggregate.Record, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fetchErr != nil {
		return nil, g.fetchErr
	}
	out := make([]aggregate.Record, 0, len(g.records))
	for name, encoded := range g.records {
		out = append(out, aggregate.Record{Name: name, Encoded: encoded})
	}
	return out, nil
}

func (g *fakeGateway) UpsertAvailability(_ context.Context, _ string, name, encoded string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.records[name] = encoded
	g.upserts = append(g.upserts, encoded)
	return nil
}

func (g *fakeGateway) set(name, encoded string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.records[name] = encoded
}

func (g *fakeGateway) upsertCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.upserts)
}

func (g *fakeGateway) stored(name string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.records[name]
}

func encodedWith(t *testing.T, cells ...[2]int) string {
	t.Helper()
	grid := slotgrid.Empty()
	for _, c := range cells {
		var err error
		grid, err = grid.Set(c[0], c[1], 1)
		require.NoError(t, err)
	}
	return slotgrid.Encode(grid)
}

func openSession(t *testing.T, gw Gateway, name string, opts Options) *Session {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = discardLogger()
	}
	s, err := Open(context.Background(), gw, "room-1", name, opts)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func flush(t *testing.T, s *Session) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Flush(ctx))
}

func TestOpen_NewParticipant(t *testing.T) {
	gw := newFakeGateway(map[string]string{
		"Alice": encodedWith(t, [2]int{1, 18}, [2]int{1, 19}),
	})
	s := openSession(t, gw, "Bob", Options{})

	assert.Equal(t, 0, s.Grid().Count())
	hm := s.Heatmap()
	assert.Equal(t, 1, hm.Respondents)
	assert.Equal(t, 1, hm.Attendance[1][18])
	assert.Equal(t, []string{"Alice"}, hm.Attendees[1][19])
	assert.False(t, s.Dragging())
}

func TestOpen_ResumesOwnGrid(t *testing.T) {
	gw := newFakeGateway(map[string]string{
		"Alice": encodedWith(t, [2]int{0, 0}),
		"Bob":   encodedWith(t, [2]int{0, 0}, [2]int{6, 47}),
	})
	s := openSession(t, gw, "Bob", Options{})

	grid := s.Grid()
	assert.Equal(t, 2, grid.Count())
	assert.True(t, grid.Available(6, 47))

	hm := s.Heatmap()
	assert.Equal(t, 2, hm.Respondents)
	assert.Equal(t, 2, hm.Attendance[0][0])
	assert.Equal(t, []string{"Alice", "Bob"}, hm.Attendees[0][0])
	assert.Equal(t, []string{"Bob"}, hm.Attendees[6][47])
}

func TestOpen_TrimsParticipantName(t *testing.T) {
	gw := newFakeGateway(map[string]string{"Ann": encodedWith(t, [2]int{0, 0})})
	s := openSession(t, gw, "Ann ", Options{})

	require.Equal(t, 1, s.Grid().Count(), "stored grid seeds the session")

	require.NoError(t, s.Tap(0, 1))
	flush(t, s)

	hm := s.Heatmap()
	assert.Equal(t, 1, hm.Respondents)
	assert.Equal(t, 1, hm.Attendance[0][0])
	assert.Equal(t, []string{"Ann"}, hm.Attendees[0][0])
	assert.Equal(t, []string{"Ann"}, hm.Attendees[0][1])

	stored, err := slotgrid.Decode(gw.stored("Ann"))
	require.NoError(t, err)
	assert.Equal(t, 2, stored.Count())
	assert.Empty(t, gw.stored("Ann "))
}

func TestOpen_MalformedOwnRecordStartsEmpty(t *testing.T) {
	gw := newFakeGateway(map[string]string{"Bob": "not-a-grid"})
	s := openSession(t, gw, "Bob", Options{})

	assert.Equal(t, 0, s.Grid().Count())
	assert.Equal(t, 1, s.Heatmap().Respondents)
}

func TestOpen_FetchError(t *testing.T) {
	gw := newFakeGateway(nil)
	gw.fetchErr = errors.New("offline")

	_, err := Open(context.Background(), gw, "room-1", "Bob", Options{Logger: discardLogger()})
	assert.ErrorIs(t, err, gw.fetchErr)
}

func TestSession_DragPersistsOncePerGesture(t *testing.T) {
	gw := newFakeGateway(nil)
	s := openSession(t, gw, "Bob", Options{})

	require.NoError(t, s.PointerDown(2, 10))
	assert.True(t, s.Dragging())
	s.PointerMove(3, 11)
	s.PointerMove(4, 12)
	assert.Equal(t, 9, s.Grid().Count())
	assert.Equal(t, 0, s.Heatmap().Attendance[2][10], "heat-map waits for the gesture to finish")

	require.NoError(t, s.PointerUp(4, 12))
	flush(t, s)

	assert.False(t, s.Dragging())
	assert.Equal(t, 1, gw.upsertCount())
	assert.Equal(t, slotgrid.Encode(s.Grid()), gw.stored("Bob"))

	hm := s.Heatmap()
	assert.Equal(t, 1, hm.Respondents)
	assert.Equal(t, 1, hm.Attendance[3][11])
	assert.Equal(t, []string{"Bob"}, hm.Attendees[4][12])
	assert.Equal(t, 1, aggregate.MaxAttendance(hm.Attendance))
}

func TestSession_PointerDownWhileDraggingIsIgnored(t *testing.T) {
	s := openSession(t, newFakeGateway(nil), "Bob", Options{})

	require.NoError(t, s.PointerDown(0, 0))
	require.NoError(t, s.PointerDown(5, 5))
	require.NoError(t, s.PointerUp(0, 0))

	grid := s.Grid()
	assert.Equal(t, 1, grid.Count())
	assert.True(t, grid.Available(0, 0))
}

func TestSession_EraseGestureUpdatesHeatmap(t *testing.T) {
	gw := newFakeGateway(map[string]string{
		"Alice": encodedWith(t, [2]int{3, 20}),
		"Bob":   encodedWith(t, [2]int{3, 20}, [2]int{3, 21}),
	})
	s := openSession(t, gw, "Bob", Options{})

	require.NoError(t, s.PointerDown(3, 20))
	require.NoError(t, s.PointerUp(3, 21))
	flush(t, s)

	assert.Equal(t, 0, s.Grid().Count())
	hm := s.Heatmap()
	assert.Equal(t, 1, hm.Attendance[3][20])
	assert.Equal(t, 0, hm.Attendance[3][21])
	assert.Equal(t, []string{"Alice"}, hm.Attendees[3][20])
	assert.Empty(t, hm.Attendees[3][21])
	assert.Equal(t, 2, hm.Respondents, "an emptied grid still counts as a response")
}

func TestSession_Tap(t *testing.T) {
	gw := newFakeGateway(nil)
	s := openSession(t, gw, "Bob", Options{})

	require.NoError(t, s.Tap(1, 1))
	require.NoError(t, s.Tap(1, 2))
	require.NoError(t, s.Tap(1, 1))
	flush(t, s)

	grid := s.Grid()
	assert.Equal(t, 1, grid.Count())
	assert.True(t, grid.Available(1, 2))
	assert.Equal(t, slotgrid.Encode(grid), gw.stored("Bob"))

	err := s.Tap(7, 0)
	assert.ErrorIs(t, err, slotgrid.ErrOutOfRange)
}

func TestSession_PointerDownOutOfRange(t *testing.T) {
	s := openSession(t, newFakeGateway(nil), "Bob", Options{})

	assert.ErrorIs(t, s.PointerDown(0, 48), slotgrid.ErrOutOfRange)
	assert.False(t, s.Dragging())
	assert.NoError(t, s.PointerUp(0, 0))
}

func TestSession_CancelKeepsCellsUntilNextGesture(t *testing.T) {
	gw := newFakeGateway(nil)
	s := openSession(t, gw, "Bob", Options{})

	require.NoError(t, s.PointerDown(0, 0))
	s.PointerMove(0, 3)
	s.Cancel()
	flush(t, s)

	assert.False(t, s.Dragging())
	assert.Equal(t, 4, s.Grid().Count())
	assert.Equal(t, 0, gw.upsertCount())

	require.NoError(t, s.Tap(6, 0))
	flush(t, s)
	assert.Equal(t, 5, s.Grid().Count())
	assert.Equal(t, 5, s.Heatmap().Attendance.Count())
}

func TestSession_RefreshKeepsLocalGrid(t *testing.T) {
	gw := newFakeGateway(nil)
	s := openSession(t, gw, "Bob", Options{})

	require.NoError(t, s.Tap(2, 2))
	flush(t, s)

	gw.set("Carol", encodedWith(t, [2]int{2, 2}))
	gw.set("Bob", slotgrid.Encode(slotgrid.Empty()))

	require.NoError(t, s.Refresh(context.Background()))

	assert.True(t, s.Grid().Available(2, 2))
	hm := s.Heatmap()
	assert.Equal(t, 2, hm.Respondents)
	assert.Equal(t, 2, hm.Attendance[2][2])
	assert.Equal(t, []string{"Bob", "Carol"}, hm.Attendees[2][2])
}

func TestSession_RefreshError(t *testing.T) {
	gw := newFakeGateway(nil)
	s := openSession(t, gw, "Bob", Options{})

	gw.mu.Lock()
	gw.fetchErr = errors.New("offline")
	gw.mu.Unlock()

	assert.ErrorContains(t, s.Refresh(context.Background()), "offline")
}

func TestSession_InvariantViolation(t *testing.T) {
	setup := func(t *testing.T, strict bool) *Session {
		gw := newFakeGateway(map[string]string{"Bob": encodedWith(t, [2]int{0, 0})})
		s := openSession(t, gw, "Bob", Options{StrictInvariants: strict})
		s.mu.Lock()
		s.heatmap.Attendance[0][0] = 0
		s.mu.Unlock()
		return s
	}

	t.Run("lenient clamps", func(t *testing.T) {
		s := setup(t, false)
		require.NoError(t, s.Tap(0, 0))
		assert.Equal(t, 0, s.Heatmap().Attendance[0][0])
	})

	t.Run("strict reports", func(t *testing.T) {
		s := setup(t, true)
		err := s.Tap(0, 0)
		assert.ErrorIs(t, err, slotgrid.ErrInvariantViolation)
		assert.Equal(t, 0, s.Heatmap().Attendance[0][0])
	})
}
