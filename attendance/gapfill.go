package attendance

import (
	"fmt"
	"sort"

	"github.com/warp/attendance-engine/generic"
)

// =============================================================================
// GAP FILLER - Contiguous per-user series
// =============================================================================

// GapFiller inserts zero-duration REST placeholders for dates inside each
// user's observed span that carry no record, so aggregation and calendar views
// never see silent gaps. Weekends and holidays are left empty unless
// FillNonWorkingDays is set.
type GapFiller struct {
	Calendar           generic.HolidayCalendar
	CompanyID          string
	FillNonWorkingDays bool
}

// Fill returns the records plus placeholders, sorted by user then date. Dates
// that already hold a record for the user are never touched.
func (g GapFiller) Fill(records []ComputedDayRecord) []ComputedDayRecord {
	type span struct {
		first, last ComputedDayRecord
		dates       map[string]bool
	}
	spans := make(map[generic.UserID]*span)

	for _, r := range records {
		s, ok := spans[r.UserID]
		if !ok {
			s = &span{first: r, last: r, dates: make(map[string]bool)}
			spans[r.UserID] = s
		}
		if r.Date.Before(s.first.Date) {
			s.first = r
		}
		if r.Date.After(s.last.Date) {
			s.last = r
		}
		s.dates[r.Date.String()] = true
	}

	out := cloneRecords(records)
	for userID, s := range spans {
		for d := s.first.Date; d.BeforeOrEqual(s.last.Date); d = d.AddDays(1) {
			if s.dates[d.String()] {
				continue
			}
			if !g.FillNonWorkingDays && !d.IsWorkdayWithHolidays(g.Calendar, g.CompanyID) {
				continue
			}
			out = append(out, ComputedDayRecord{
				ID:                PlaceholderID(userID, d),
				CompanyID:         g.CompanyID,
				UserID:            userID,
				UserName:          s.first.UserName,
				Department:        s.first.Department,
				Date:              d,
				Status:            StatusNormal,
				CategoricalStatus: CategoryRest,
			})
		}
	}

	SortRecords(out)
	return out
}

// PlaceholderID is the deterministic id of a gap placeholder.
func PlaceholderID(userID generic.UserID, date generic.TimePoint) generic.RecordID {
	return generic.RecordID(fmt.Sprintf("gap-%s-%s", userID, date))
}

// DropInactiveUsers removes users whose summed actual work is zero; such users
// are treated as not-yet-active rather than all-rest.
func DropInactiveUsers(records []ComputedDayRecord) []ComputedDayRecord {
	worked := make(map[generic.UserID]int)
	for _, r := range records {
		worked[r.UserID] += r.ActualWorkMinutes
	}
	out := make([]ComputedDayRecord, 0, len(records))
	for _, r := range records {
		if worked[r.UserID] > 0 {
			out = append(out, r)
		}
	}
	return out
}

// SortRecords orders records by user, then date.
func SortRecords(records []ComputedDayRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].UserID != records[j].UserID {
			return records[i].UserID < records[j].UserID
		}
		return records[i].Date.Before(records[j].Date)
	})
}
