package generic

import "time"

// =============================================================================
// PERIOD - Inclusive date range
// =============================================================================

// Period is an inclusive date range [Start, End]. Synthesis runs over a period,
// and record queries filter by one.
type Period struct {
	Start TimePoint
	End   TimePoint
}

// MonthPeriod returns the calendar month containing the given year/month.
func MonthPeriod(year int, month time.Month) Period {
	return Period{Start: StartOfMonth(year, month), End: EndOfMonth(year, month)}
}

// Validate rejects a period whose end precedes its start.
func (p Period) Validate() error {
	if p.Start.IsZero() || p.End.IsZero() || p.End.Before(p.Start) {
		return ErrInvalidPeriod
	}
	return nil
}

// Contains returns true if the date is within [Start, End].
func (p Period) Contains(t TimePoint) bool {
	return t.AfterOrEqual(p.Start) && t.BeforeOrEqual(p.End)
}

// Days returns all days in the period.
func (p Period) Days() []TimePoint {
	var days []TimePoint
	for current := p.Start; current.BeforeOrEqual(p.End); current = current.AddDays(1) {
		days = append(days, current)
	}
	return days
}

// Workdays returns the days that are neither weekends nor holidays.
func (p Period) Workdays(calendar HolidayCalendar, companyID string) []TimePoint {
	var days []TimePoint
	for _, d := range p.Days() {
		if d.IsWorkdayWithHolidays(calendar, companyID) {
			days = append(days, d)
		}
	}
	return days
}

func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}
