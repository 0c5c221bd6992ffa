// Package selection turns pointer gestures over a week grid into rectangular
// batches of slot updates.
//
// A gesture starts on one cell and paints every cell of the rectangle spanned by
// that anchor and the current pointer position. The paint value is the inverse
// of the anchor cell at gesture start, so starting on a filled cell erases and
// starting on an empty cell fills. Paint is monotonic within a gesture: cells
// left behind when the rectangle shrinks keep the value they were given.
package selection

import (
	"fmt"

	"github.com/example/group-availability/internal/slotgrid"
)

// State identifies the machine state.
type State int

const (
	// Idle means no gesture is in progress.
	Idle State = iota
	// Dragging means a gesture has begun and has not been released.
	Dragging
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Dragging:
		return "dragging"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Machine tracks a single pointer. The zero value is an idle machine.
// A Machine is not safe for concurrent use.
type Machine struct {
	state      State
	anchorDay  int
	anchorSlot int
	paint      bool
}

// State reports the current state.
func (m *Machine) State() State {
	return m.state
}

// Anchor returns the gesture's starting cell while dragging.
func (m *Machine) Anchor() (day, slot int, ok bool) {
	if m.state != Dragging {
		return 0, 0, false
	}
	return m.anchorDay, m.anchorSlot, true
}

// Paint reports the value the current gesture writes.
func (m *Machine) Paint() bool {
	return m.state == Dragging && m.paint
}

// Begin starts a gesture at day and slot. current is the value of that cell
// before the gesture. Calls while a gesture is already in progress are ignored.
func (m *Machine) Begin(day, slot int, current bool) error {
	if m.state == Dragging {
		return nil
	}
	if !slotgrid.InRange(day, slot) {
		return fmt.Errorf("selection: begin: %w: day=%d slot=%d", slotgrid.ErrOutOfRange, day, slot)
	}
	m.state = Dragging
	m.anchorDay = day
	m.anchorSlot = slot
	m.paint = !current
	return nil
}

// Extend paints the rectangle from the anchor to day and slot, both inclusive,
// and returns the updated copy of g. Positions outside the grid are clamped to
// its edge. When idle, g is returned unchanged.
func (m *Machine) Extend(g slotgrid.WeekGrid, day, slot int) slotgrid.WeekGrid {
	if m.state != Dragging {
		return g
	}

	day = clamp(day, 0, slotgrid.Days-1)
	slot = clamp(slot, 0, slotgrid.SlotsPerDay-1)

	minDay, maxDay := ordered(m.anchorDay, day)
	minSlot, maxSlot := ordered(m.anchorSlot, slot)

	value := 0
	if m.paint {
		value = 1
	}
	for d := minDay; d <= maxDay; d++ {
		for s := minSlot; s <= maxSlot; s++ {
			g[d][s] = value
		}
	}
	return g
}

// End covers the release position, returns to idle and reports whether a
// gesture was completed.
func (m *Machine) End(g slotgrid.WeekGrid, day, slot int) (slotgrid.WeekGrid, bool) {
	if m.state != Dragging {
		return g, false
	}
	g = m.Extend(g, day, slot)
	m.reset()
	return g, true
}

// Tap is the touch variant: begin, extend and end on a single cell in one step.
func (m *Machine) Tap(g slotgrid.WeekGrid, day, slot int) (slotgrid.WeekGrid, bool) {
	if m.state == Dragging {
		return m.End(g, day, slot)
	}
	if err := m.Begin(day, slot, g.Available(day, slot)); err != nil {
		return g, false
	}
	g = m.Extend(g, day, slot)
	return m.End(g, day, slot)
}

// Cancel abandons an in-flight gesture without signalling completion. Cells
// already painted stay painted.
func (m *Machine) Cancel() {
	m.reset()
}

func (m *Machine) reset() {
	*m = Machine{}
}

func ordered(a, b int) (int, int) {
	if a <= b {
		return a, b
	}
	return b, a
}

func clamp(value, lo, hi int) int {
	if value < lo {
		return lo
	}
	if value > hi {
		return hi
	}
	return value
}
