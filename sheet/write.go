package sheet

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/payroll"
)

const (
	recordsSheet   = "Records"
	summariesSheet = "Weekly"
)

var recordHeader = []any{
	"User ID", "Name", "Department", "Date", "Clock In", "Clock Out",
	"Total (min)", "Break (min)", "Actual (min)", "Overtime (min)",
	"Recognized Hours", "Hours", "Status", "Category", "Note",
}

// WriteRecords renders day records into a workbook.
func WriteRecords(records []attendance.ComputedDayRecord) (*bytes.Buffer, error) {
	f, err := newWorkbook(recordsSheet, recordHeader)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	for i, r := range records {
		row := []any{
			string(r.UserID), r.UserName, r.Department, r.Date.String(),
			r.Start.String(), r.End.String(),
			r.TotalDurationMinutes, r.BreakDurationMinutes, r.ActualWorkMinutes, r.OvertimeMinutes,
			payroll.ToRecognizedHours(r.ActualWorkMinutes),
			payroll.ToOneDecimalHours(r.ActualWorkMinutes),
			string(r.Status), string(r.CategoricalStatus), r.Note,
		}
		if err := setRow(f, recordsSheet, i+2, row); err != nil {
			return nil, err
		}
	}
	return writeBuffer(f)
}

var summaryHeader = []any{
	"User ID", "Week", "Week Start",
	"Total (min)", "Basic (min)", "Overtime (min)", "Special (min)",
	"Basic Hours", "Overtime Hours", "Special Hours", "Overtime (1 dp)",
}

var payHeader = []any{"Basic Pay", "Overtime Pay", "Special Pay", "Total Pay"}

// WriteWeeklySummaries renders weekly summaries into a workbook. When rates
// is non-nil, pay columns are appended.
func WriteWeeklySummaries(summaries []attendance.WeeklySummary, rates *payroll.Rates) (*bytes.Buffer, error) {
	header := summaryHeader
	if rates != nil {
		header = append(append([]any{}, summaryHeader...), payHeader...)
	}
	f, err := newWorkbook(summariesSheet, header)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	for i, s := range summaries {
		row := []any{
			string(s.UserID), s.WeekKey, s.WeekStart.String(),
			s.TotalWorkMinutes, s.BasicWorkMinutes, s.OvertimeMinutes, s.SpecialWorkMinutes,
			payroll.ToRecognizedHours(s.BasicWorkMinutes),
			payroll.ToRecognizedHours(s.OvertimeMinutes),
			payroll.ToRecognizedHours(s.SpecialWorkMinutes),
			payroll.ToOneDecimalHours(s.OvertimeMinutes),
		}
		if rates != nil {
			line := rates.PayFor(s.BasicWorkMinutes, s.OvertimeMinutes, s.SpecialWorkMinutes)
			row = append(row, line.BasicPay.String(), line.OvertimePay.String(), line.SpecialPay.String(), line.Total.String())
		}
		if err := setRow(f, summariesSheet, i+2, row); err != nil {
			return nil, err
		}
	}
	return writeBuffer(f)
}

// =============================================================================
// WORKBOOK HELPERS
// =============================================================================

func newWorkbook(sheetName string, header []any) (*excelize.File, error) {
	f := excelize.NewFile()
	idx, err := f.NewSheet(sheetName)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(idx)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("drop default sheet: %w", err)
	}

	if err := setRow(f, sheetName, 1, header); err != nil {
		_ = f.Close()
		return nil, err
	}
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#D9E1F2"}, Pattern: 1},
	})
	if err == nil {
		last, _ := excelize.CoordinatesToCellName(len(header), 1)
		_ = f.SetCellStyle(sheetName, "A1", last, headerStyle)
	}
	lastCol, _ := excelize.ColumnNumberToName(len(header))
	_ = f.SetColWidth(sheetName, "A", lastCol, 14)
	return f, nil
}

func setRow(f *excelize.File, sheetName string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheetName, cell, &values); err != nil {
		return fmt.Errorf("write row %d: %w", row, err)
	}
	return nil
}

func writeBuffer(f *excelize.File) (*bytes.Buffer, error) {
	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf, nil
}
