// Package export renders a room heat-map as a spreadsheet.
package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/example/group-availability/internal/aggregate"
	"github.com/example/group-availability/internal/slotgrid"
)

const (
	// AttendanceSheet holds the per-slot participant counts.
	AttendanceSheet = "Attendance"
	// AttendeesSheet holds the per-slot participant names.
	AttendeesSheet = "Attendees"

	// ContentType is the MIME type of the generated workbook.
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// DayHeaders are the column titles after the Time column, Sunday first.
var DayHeaders = [slotgrid.Days]string{"Su", "Mo", "Tu", "We", "Th", "Fr", "Sa"}

// HeatmapWorkbook builds an xlsx file with one row per half-hour slot and one
// column per day. The attendance sheet is active when the file is opened.
func HeatmapWorkbook(roomName string, result aggregate.Result) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetDocProps(&excelize.DocProperties{
		Title:   roomName,
		Subject: "Availability heat-map",
	}); err != nil {
		return nil, fmt.Errorf("failed to set document properties: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	if _, err := f.NewSheet(AttendanceSheet); err != nil {
		return nil, fmt.Errorf("failed to create sheet %s: %w", AttendanceSheet, err)
	}
	if err := writeSheet(f, AttendanceSheet, headerStyle, func(day, slot int) any {
		return result.Attendance[day][slot]
	}); err != nil {
		return nil, err
	}

	if _, err := f.NewSheet(AttendeesSheet); err != nil {
		return nil, fmt.Errorf("failed to create sheet %s: %w", AttendeesSheet, err)
	}
	if err := writeSheet(f, AttendeesSheet, headerStyle, func(day, slot int) any {
		return strings.Join(result.Attendees[day][slot], ", ")
	}); err != nil {
		return nil, err
	}

	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("failed to remove default sheet: %w", err)
	}
	index, err := f.GetSheetIndex(AttendanceSheet)
	if err != nil {
		return nil, fmt.Errorf("failed to locate sheet %s: %w", AttendanceSheet, err)
	}
	f.SetActiveSheet(index)

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeSheet(f *excelize.File, sheet string, headerStyle int, value func(day, slot int) any) error {
	header := make([]any, 0, slotgrid.Days+1)
	header = append(header, "Time")
	for _, day := range DayHeaders {
		header = append(header, day)
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write %s header: %w", sheet, err)
	}

	lastCol, err := excelize.ColumnNumberToName(slotgrid.Days + 1)
	if err != nil {
		return fmt.Errorf("failed to convert column number: %w", err)
	}
	if err := f.SetCellStyle(sheet, "A1", lastCol+"1", headerStyle); err != nil {
		return fmt.Errorf("failed to set %s header style: %w", sheet, err)
	}

	for slot := 0; slot < slotgrid.SlotsPerDay; slot++ {
		row := make([]any, 0, slotgrid.Days+1)
		row = append(row, slotgrid.SlotLabel(slot))
		for day := 0; day < slotgrid.Days; day++ {
			row = append(row, value(day, slot))
		}
		cell, err := excelize.CoordinatesToCellName(1, slot+2)
		if err != nil {
			return fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, slot+2, err)
		}
	}

	width := 8.0
	if sheet == AttendeesSheet {
		width = 24
	}
	if err := f.SetColWidth(sheet, "B", lastCol, width); err != nil {
		return fmt.Errorf("failed to set column width: %w", err)
	}
	return nil
}
