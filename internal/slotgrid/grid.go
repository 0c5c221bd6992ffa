package slotgrid

import (
	"errors"
	"fmt"
)

const (
	// Days is the number of day rows in a week grid, Sunday first.
	Days = 7
	// SlotsPerDay is the number of half-hour slots in one day.
	SlotsPerDay = 48
	// Cells is the total number of slots in a week grid.
	Cells = Days * SlotsPerDay
)

var (
	// ErrOutOfRange is returned when a day or slot index lies outside the grid.
	ErrOutOfRange = errors.New("slotgrid: cell out of range")
	// ErrInvariantViolation indicates a grid holds a value no valid operation can produce.
	ErrInvariantViolation = errors.New("slotgrid: invariant violation")
)

// WeekGrid holds one value per half-hour slot of a week.
//
// A participant grid stores 0 (unavailable) or 1 (available). An aggregate grid
// stores the number of participants available at the slot. The array type fixes
// the dimensions, and assignment copies every cell.
type WeekGrid [Days][SlotsPerDay]int

// Empty returns the all-zero grid used for participants that never submitted.
func Empty() WeekGrid {
	return WeekGrid{}
}

// InRange reports whether day and slot address a cell of the grid.
func InRange(day, slot int) bool {
	return day >= 0 && day < Days && slot >= 0 && slot < SlotsPerDay
}

// Get returns the value stored at day and slot.
func (g WeekGrid) Get(day, slot int) (int, error) {
	if !InRange(day, slot) {
		return 0, fmt.Errorf("%w: day=%d slot=%d", ErrOutOfRange, day, slot)
	}
	return g[day][slot], nil
}

// Set returns a copy of the grid with the value at day and slot replaced.
func (g WeekGrid) Set(day, slot, value int) (WeekGrid, error) {
	if !InRange(day, slot) {
		return g, fmt.Errorf("%w: day=%d slot=%d", ErrOutOfRange, day, slot)
	}
	g[day][slot] = value
	return g, nil
}

// Available reports whether the cell holds a non-zero value. Out of range cells are unavailable.
func (g WeekGrid) Available(day, slot int) bool {
	if !InRange(day, slot) {
		return false
	}
	return g[day][slot] != 0
}

// Validate reports the first negative cell, if any.
func (g WeekGrid) Validate() error {
	for day := range g {
		for slot, value := range g[day] {
			if value < 0 {
				return fmt.Errorf("%w: negative value %d at day=%d slot=%d", ErrInvariantViolation, value, day, slot)
			}
		}
	}
	return nil
}

// IsBinary reports whether every cell is 0 or 1.
func (g WeekGrid) IsBinary() bool {
	for day := range g {
		for _, value := range g[day] {
			if value != 0 && value != 1 {
				return false
			}
		}
	}
	return true
}

// Count returns the number of non-zero cells.
func (g WeekGrid) Count() int {
	total := 0
	for day := range g {
		for _, value := range g[day] {
			if value != 0 {
				total++
			}
		}
	}
	return total
}

// SlotLabel returns the "HH:MM" start time of a slot.
func SlotLabel(slot int) string {
	if slot < 0 || slot >= SlotsPerDay {
		return ""
	}
	return fmt.Sprintf("%02d:%02d", slot/2, (slot%2)*30)
}
