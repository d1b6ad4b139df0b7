/*
Package sheet moves attendance data in and out of Excel workbooks.

PURPOSE:
  Raw punches arrive as spreadsheets exported by clock terminals or typed by
  HR. Computed records and weekly summaries leave as spreadsheets for payroll.
  This package is the only place that knows about cells.

IMPORT FORMAT:
  First worksheet, first row is the header. Columns are matched by name,
  case-insensitively, in any order:

    user_id | userid | employee id | employee_id   (required)
    date                                          (required)
    name | user_name
    department | dept
    title
    clock_in | in | start
    clock_out | out | end

  Dates may be YYYY-MM-DD, YYYY/MM/DD, M/D/YYYY or an Excel date serial.
  Clock cells may be HH:MM, HH:MM:SS, "9:05 AM" or an Excel time fraction.
  A clock value that matches none of these is passed through unchanged so
  the DailyLogProcessor reports it against that punch.

ERRORS:
  Empty rows are skipped. A row without user or date is reported as a
  generic.SheetRowError carrying its 1-based row number; the other rows
  still import.

SEE ALSO:
  - write.go: Record and weekly-summary export
  - api/handlers.go: Upload and download endpoints
*/
package sheet

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/generic"
)

// MaxImportRows bounds one upload.
const MaxImportRows = 50000

var headerAliases = map[string][]string{
	"user_id":    {"user_id", "userid", "user id", "employee id", "employee_id", "emp_id"},
	"name":       {"name", "user_name", "username", "employee name"},
	"department": {"department", "dept"},
	"title":      {"title", "position"},
	"date":       {"date", "work_date", "day"},
	"clock_in":   {"clock_in", "clock in", "in", "start"},
	"clock_out":  {"clock_out", "clock out", "out", "end"},
}

// ReadPunches parses the first worksheet of an xlsx workbook. It returns the
// punches it could read and the rows it had to reject.
func ReadPunches(r io.Reader) ([]attendance.RawPunch, []*generic.SheetRowError, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", generic.ErrInvalidSheet, err)
	}
	defer func() { _ = f.Close() }()

	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return nil, nil, fmt.Errorf("%w: no worksheet found", generic.ErrInvalidSheet)
	}
	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, nil, fmt.Errorf("read worksheet: %w", err)
	}
	if len(rows) < 2 {
		return nil, nil, fmt.Errorf("%w: no data rows", generic.ErrInvalidSheet)
	}
	if len(rows)-1 > MaxImportRows {
		return nil, nil, fmt.Errorf("%w: more than %d rows", generic.ErrInvalidSheet, MaxImportRows)
	}

	col := parseHeaderIndex(rows[0])
	if col["user_id"] < 0 || col["date"] < 0 {
		return nil, nil, fmt.Errorf("%w: header needs user_id and date columns", generic.ErrInvalidSheet)
	}

	var (
		punches []attendance.RawPunch
		rowErrs []*generic.SheetRowError
	)
	for i := 1; i < len(rows); i++ {
		row := rows[i]
		if isBlank(row) {
			continue
		}
		rowNum := i + 1

		userID := cellValue(row, col["user_id"])
		if userID == "" {
			rowErrs = append(rowErrs, &generic.SheetRowError{Row: rowNum, Reason: "missing user id"})
			continue
		}
		rawDate := cellValue(row, col["date"])
		date, err := parseDateCell(rawDate)
		if err != nil {
			rowErrs = append(rowErrs, &generic.SheetRowError{Row: rowNum, Reason: "bad date", Err: err})
			continue
		}

		punches = append(punches, attendance.RawPunch{
			UserID:     generic.UserID(userID),
			UserName:   cellValue(row, col["name"]),
			Department: cellValue(row, col["department"]),
			Title:      cellValue(row, col["title"]),
			Date:       date,
			ClockIn:    normalizeClockCell(cellValue(row, col["clock_in"])),
			ClockOut:   normalizeClockCell(cellValue(row, col["clock_out"])),
		})
	}

	if len(punches) == 0 && len(rowErrs) == 0 {
		return nil, nil, fmt.Errorf("%w: no data rows", generic.ErrInvalidSheet)
	}
	return punches, rowErrs, nil
}

// =============================================================================
// CELL HELPERS
// =============================================================================

func parseHeaderIndex(header []string) map[string]int {
	idx := make(map[string]int, len(headerAliases))
	for key := range headerAliases {
		idx[key] = -1
	}
	for i, h := range header {
		name := normalizeHeader(h)
		for key, aliases := range headerAliases {
			if idx[key] >= 0 {
				continue
			}
			for _, alias := range aliases {
				if name == alias {
					idx[key] = i
				}
			}
		}
	}
	return idx
}

func normalizeHeader(header string) string {
	return strings.ToLower(strings.TrimSpace(header))
}

func cellValue(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

var dateLayouts = []string{generic.DateLayout, "2006/01/02", "1/2/2006", "01/02/2006", "2006.01.02"}

func parseDateCell(value string) (generic.TimePoint, error) {
	if value == "" {
		return generic.TimePoint{}, fmt.Errorf("%w: empty", generic.ErrInvalidDate)
	}
	// Excel date serial, e.g. 45425 for 2024-05-13.
	if serial, err := strconv.ParseFloat(value, 64); err == nil && serial >= 20000 && serial <= 80000 {
		if t, err := excelize.ExcelDateToTime(serial, false); err == nil {
			return generic.DateOf(t), nil
		}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return generic.DateOf(t), nil
		}
	}
	return generic.TimePoint{}, fmt.Errorf("%w: %q", generic.ErrInvalidDate, value)
}

var clockLayouts = []string{"15:04", "15:04:05", "3:04 PM", "3:04:05 PM", "3:04PM"}

// normalizeClockCell renders recognizable clock cells as HH:MM.
func normalizeClockCell(value string) string {
	if value == "" {
		return ""
	}
	if fraction, err := strconv.ParseFloat(value, 64); err == nil && fraction >= 0 && fraction < 1 {
		minutes := int(fraction*generic.MinutesPerDay + 0.5)
		return generic.Clock(minutes % generic.MinutesPerDay).String()
	}
	for _, layout := range clockLayouts {
		if t, err := time.Parse(layout, strings.ToUpper(value)); err == nil {
			return generic.ClockAt(t.Hour(), t.Minute()).String()
		}
	}
	return value
}
