// Package aggregate folds participant week grids into a room heat-map.
//
// The fold is commutative: attendance is a per-slot sum and attendee lists are
// kept sorted, so the result never depends on the order records arrive in.
package aggregate

import (
	"fmt"
	"sort"

	"github.com/example/group-availability/internal/slotgrid"
)

// Record is one participant's stored availability.
type Record struct {
	Name    string
	Encoded string
}

// AttendeeGrid holds, per slot, the sorted names of participants available at that slot.
type AttendeeGrid [slotgrid.Days][slotgrid.SlotsPerDay][]string

// Result is the aggregate view of a room.
type Result struct {
	Attendance  slotgrid.WeekGrid
	Attendees   AttendeeGrid
	Respondents int
	// Skipped lists records whose encoding could not be decoded. They count as
	// respondents with an empty grid.
	Skipped []string
}

// Aggregate decodes every record and sums the grids slot by slot.
func Aggregate(records []Record) Result {
	result := Result{Respondents: len(records)}

	for _, record := range records {
		grid, err := slotgrid.DecodeOrEmpty(record.Encoded)
		if err != nil {
			result.Skipped = append(result.Skipped, record.Name)
		}
		for day := range grid {
			for slot, value := range grid[day] {
				result.Attendance[day][slot] += value
				if value == 1 {
					result.Attendees[day][slot] = append(result.Attendees[day][slot], record.Name)
				}
			}
		}
	}

	for day := range result.Attendees {
		for slot := range result.Attendees[day] {
			sort.Strings(result.Attendees[day][slot])
		}
	}
	sort.Strings(result.Skipped)

	return result
}

// ApplyLocalOverride replaces one participant's contribution in an attendance
// grid: previous is subtracted and next is added, slot by slot.
//
// A cell that would drop below zero is clamped to zero and the returned error
// wraps slotgrid.ErrInvariantViolation. The clamped grid is always returned.
func ApplyLocalOverride(attendance, previous, next slotgrid.WeekGrid) (slotgrid.WeekGrid, error) {
	updated := attendance
	violations := 0

	for day := range updated {
		for slot := range updated[day] {
			value := updated[day][slot] - previous[day][slot] + next[day][slot]
			if value < 0 {
				violations++
				value = 0
			}
			updated[day][slot] = value
		}
	}

	if violations > 0 {
		return updated, fmt.Errorf("%w: local override clamped %d negative cells", slotgrid.ErrInvariantViolation, violations)
	}
	return updated, nil
}

// WithLocalOverride returns a copy of the result in which name's contribution
// moves from previous to next. Attendee lists are updated alongside the counts.
func (r Result) WithLocalOverride(name string, previous, next slotgrid.WeekGrid) (Result, error) {
	attendance, err := ApplyLocalOverride(r.Attendance, previous, next)

	updated := r
	updated.Attendance = attendance
	updated.Skipped = append([]string(nil), r.Skipped...)

	for day := range updated.Attendees {
		for slot := range updated.Attendees[day] {
			names := r.Attendees[day][slot]
			wasIn := previous[day][slot] == 1
			isIn := next[day][slot] == 1
			switch {
			case wasIn && !isIn:
				names = removeName(names, name)
			case !wasIn && isIn:
				names = insertName(names, name)
			default:
				names = append([]string(nil), names...)
			}
			updated.Attendees[day][slot] = names
		}
	}

	return updated, err
}

// MaxAttendance returns the largest cell of the grid, or 0 for an all-zero grid.
func MaxAttendance(g slotgrid.WeekGrid) int {
	peak := 0
	for day := range g {
		for _, value := range g[day] {
			if value > peak {
				peak = value
			}
		}
	}
	return peak
}

// Intensity normalises a slot count against the busiest slot. It is 0 when
// peak is 0, which is the "no data yet" state.
func Intensity(count, peak int) float64 {
	if peak <= 0 || count <= 0 {
		return 0
	}
	if count >= peak {
		return 1
	}
	return float64(count) / float64(peak)
}

func insertName(names []string, name string) []string {
	idx := sort.SearchStrings(names, name)
	out := make([]string, 0, len(names)+1)
	out = append(out, names[:idx]...)
	out = append(out, name)
	out = append(out, names[idx:]...)
	return out
}

func removeName(names []string, name string) []string {
	idx := sort.SearchStrings(names, name)
	if idx >= len(names) || names[idx] != name {
		return append([]string(nil), names...)
	}
	if len(names) == 1 {
		return nil
	}
	out := make([]string, 0, len(names)-1)
	out = append(out, names[:idx]...)
	out = append(out, names[idx+1:]...)
	return out
}
