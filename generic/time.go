package generic

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// TIME POINT - A calendar date (attendance is always bucketed by day)
// =============================================================================

const DateLayout = "2006-01-02"

// TimePoint is a calendar date in UTC. The time-of-day part is always zero;
// clock punches within a day are ClockTime values.
type TimePoint struct {
	Time time.Time
}

func NewTimePoint(year int, month time.Month, day int) TimePoint {
	return TimePoint{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates any time.Time to its calendar date.
func DateOf(t time.Time) TimePoint {
	return NewTimePoint(t.Year(), t.Month(), t.Day())
}

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(s string) (TimePoint, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return TimePoint{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return DateOf(t), nil
}

func Today() TimePoint { return DateOf(time.Now()) }

// Comparison
func (tp TimePoint) Before(other TimePoint) bool        { return tp.Time.Before(other.Time) }
func (tp TimePoint) Equal(other TimePoint) bool         { return tp.Time.Equal(other.Time) }
func (tp TimePoint) After(other TimePoint) bool         { return tp.Time.After(other.Time) }
func (tp TimePoint) BeforeOrEqual(other TimePoint) bool { return !tp.After(other) }
func (tp TimePoint) AfterOrEqual(other TimePoint) bool  { return !tp.Before(other) }

// Arithmetic
func (tp TimePoint) AddDays(n int) TimePoint   { return TimePoint{Time: tp.Time.AddDate(0, 0, n)} }
func (tp TimePoint) AddMonths(n int) TimePoint { return TimePoint{Time: tp.Time.AddDate(0, n, 0)} }

// Properties
func (tp TimePoint) Year() int             { return tp.Time.Year() }
func (tp TimePoint) Month() time.Month     { return tp.Time.Month() }
func (tp TimePoint) Day() int              { return tp.Time.Day() }
func (tp TimePoint) Weekday() time.Weekday { return tp.Time.Weekday() }
func (tp TimePoint) IsWeekend() bool       { wd := tp.Weekday(); return wd == time.Saturday || wd == time.Sunday }
func (tp TimePoint) IsWorkday() bool       { return !tp.IsWeekend() }
func (tp TimePoint) IsZero() bool          { return tp.Time.IsZero() }
func (tp TimePoint) String() string        { return tp.Time.Format(DateLayout) }

// WeekStart returns the Monday of the ISO week containing tp.
func (tp TimePoint) WeekStart() TimePoint {
	offset := (int(tp.Weekday()) + 6) % 7 // Monday=0 ... Sunday=6
	return tp.AddDays(-offset)
}

// WeekKey returns the ISO week identifier, e.g. "2024-W05".
// The ISO year can differ from the calendar year around January 1st.
func (tp TimePoint) WeekKey() string {
	year, week := tp.Time.ISOWeek()
	return fmt.Sprintf("%04d-W%02d", year, week)
}

func (tp TimePoint) MarshalText() ([]byte, error) {
	if tp.IsZero() {
		return []byte(""), nil
	}
	return []byte(tp.String()), nil
}

func (tp *TimePoint) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*tp = TimePoint{}
		return nil
	}
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*tp = parsed
	return nil
}

// =============================================================================
// CLOCK TIME - Minute-of-day punch with explicit presence
// =============================================================================

const MinutesPerDay = 1440

// ClockTime is a punch expressed in minutes since midnight. Minutes may exceed
// MinutesPerDay for a clock-out that wrapped past midnight. Valid=false means
// the punch is absent, which is different from 00:00.
type ClockTime struct {
	Minutes int
	Valid   bool
}

func Clock(minutes int) ClockTime { return ClockTime{Minutes: minutes, Valid: true} }

// ClockAt builds a ClockTime from hours and minutes.
func ClockAt(hour, minute int) ClockTime { return Clock(hour*60 + minute) }

// ParseClockTime parses "HH:MM" or "HH:MM:SS". An empty string is an absent
// punch, not an error.
func ParseClockTime(s string) (ClockTime, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return ClockTime{}, nil
	}
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return ClockTime{}, &ClockParseError{Value: s}
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return ClockTime{}, &ClockParseError{Value: s}
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return ClockTime{}, &ClockParseError{Value: s}
	}
	if len(parts) == 3 {
		sec, err := strconv.Atoi(parts[2])
		if err != nil || sec < 0 || sec > 59 {
			return ClockTime{}, &ClockParseError{Value: s}
		}
	}
	return ClockAt(hour, minute), nil
}

// MustParseClockTime is for literals in presets and tests.
func MustParseClockTime(s string) ClockTime {
	ct, err := ParseClockTime(s)
	if err != nil {
		panic(err)
	}
	return ct
}

// Add shifts a valid clock time; an absent punch stays absent.
func (c ClockTime) Add(minutes int) ClockTime {
	if !c.Valid {
		return c
	}
	return Clock(c.Minutes + minutes)
}

// String renders HH:MM. Wrapped clock-outs render as their wall-clock time.
func (c ClockTime) String() string {
	if !c.Valid {
		return ""
	}
	m := ((c.Minutes % MinutesPerDay) + MinutesPerDay) % MinutesPerDay
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

func (c ClockTime) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (c *ClockTime) UnmarshalText(b []byte) error {
	parsed, err := ParseClockTime(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// =============================================================================
// HOLIDAY CALENDAR - Company-specific non-working days
// =============================================================================

// Holiday is a company non-working day.
type Holiday struct {
	ID        string
	CompanyID string    // Empty string = global/default holidays
	Date      TimePoint // The holiday date
	Name      string
	Recurring bool // true = same month/day every year
}

// HolidayCalendar provides holiday lookup functionality.
type HolidayCalendar interface {
	// IsHoliday checks company-specific holidays first, then global holidays.
	IsHoliday(companyID string, date TimePoint) bool
}

// NoHolidays is the calendar used when holidays are disabled.
type NoHolidays struct{}

func (NoHolidays) IsHoliday(string, TimePoint) bool { return false }

// StaticCalendar is a fixed set of dates, handy for tests and presets.
type StaticCalendar map[string]bool

func NewStaticCalendar(dates ...TimePoint) StaticCalendar {
	c := make(StaticCalendar, len(dates))
	for _, d := range dates {
		c[d.String()] = true
	}
	return c
}

func (c StaticCalendar) IsHoliday(_ string, date TimePoint) bool { return c[date.String()] }

// IsWorkdayWithHolidays checks if a date is a working day, considering holidays.
func (tp TimePoint) IsWorkdayWithHolidays(calendar HolidayCalendar, companyID string) bool {
	if tp.IsWeekend() {
		return false
	}
	if calendar != nil && calendar.IsHoliday(companyID, tp) {
		return false
	}
	return true
}

// =============================================================================
// TIME UTILITIES
// =============================================================================

func DaysBetween(from, to TimePoint) int { return int(to.Time.Sub(from.Time).Hours() / 24) }
func StartOfMonth(year int, month time.Month) TimePoint { return NewTimePoint(year, month, 1) }
func EndOfMonth(year int, month time.Month) TimePoint {
	return DateOf(time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1))
}
