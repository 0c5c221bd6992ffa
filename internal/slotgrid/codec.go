package slotgrid

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Delimiter separates the cell tokens of an encoded schedule.
const Delimiter = "-"

// ErrMalformedEncoding is returned when a string is not a valid encoded schedule.
var ErrMalformedEncoding = errors.New("slotgrid: malformed encoding")

// Encode flattens the grid day by day into Cells decimal tokens joined by Delimiter.
//
// The format is positional: zero cells keep their token. Cells must be
// non-negative; see Validate.
func Encode(g WeekGrid) string {
	var b strings.Builder
	b.Grow(Cells * 2)
	for day := range g {
		for slot, value := range g[day] {
			if day > 0 || slot > 0 {
				b.WriteString(Delimiter)
			}
			b.WriteString(strconv.Itoa(value))
		}
	}
	return b.String()
}

// Decode parses an encoded schedule back into a grid. It is the exact inverse of
// Encode for grids with non-negative cells.
func Decode(s string) (WeekGrid, error) {
	var g WeekGrid

	tokens := strings.Split(s, Delimiter)
	if len(tokens) != Cells {
		return WeekGrid{}, fmt.Errorf("%w: expected %d tokens, got %d", ErrMalformedEncoding, Cells, len(tokens))
	}

	for i, token := range tokens {
		value, err := strconv.ParseUint(token, 10, 31)
		if err != nil {
			return WeekGrid{}, fmt.Errorf("%w: token %d %q is not a non-negative integer", ErrMalformedEncoding, i, token)
		}
		g[i/SlotsPerDay][i%SlotsPerDay] = int(value)
	}

	return g, nil
}

// DecodeOrEmpty decodes s and falls back to the empty grid on failure. The decode
// error is still returned so callers can record it.
func DecodeOrEmpty(s string) (WeekGrid, error) {
	g, err := Decode(s)
	if err != nil {
		return Empty(), err
	}
	return g, nil
}
