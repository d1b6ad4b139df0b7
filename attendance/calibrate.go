package attendance

import (
	"sort"

	"github.com/warp/attendance-engine/generic"
)

// =============================================================================
// COMPLIANCE CALIBRATOR - Weekly overtime cap
// =============================================================================

// CalibrationAdjustment records the minutes taken off one record.
type CalibrationAdjustment struct {
	RecordID       generic.RecordID
	UserID         generic.UserID
	Date           generic.TimePoint
	WeekKey        string
	RemovedMinutes int
}

// WeekCalibration is the before/after overtime of one calibrated week.
type WeekCalibration struct {
	UserID         generic.UserID
	WeekKey        string
	CapMinutes     int
	OvertimeBefore int
	OvertimeAfter  int
}

// CalibrationResult is a new record set; the input is never modified.
type CalibrationResult struct {
	Records     []ComputedDayRecord
	Adjustments []CalibrationAdjustment
	Weeks       []WeekCalibration
}

// RemovedMinutes is the total trimmed across all weeks.
func (r CalibrationResult) RemovedMinutes() int {
	total := 0
	for _, a := range r.Adjustments {
		total += a.RemovedMinutes
	}
	return total
}

// ComplianceCalibrator trims a week's records so its overtime (as the
// WeeklyAggregator counts it) does not exceed MaxWeeklyOvertimeMinutes.
//
// TRIM ORDER:
//
//  1. Level daily overtime: take minutes from the day with the most daily
//     overtime down to the next lower overtime value among the other days,
//     and repeat. Ties are not shared: the most recent tied day comes down
//     first, to the next lower value or to zero when every day ties. Each
//     minute removed here is one overtime minute.
//  2. If the week is still over the cap, its overtime is weekly-basic excess:
//     trim regular work from the most recent regular day backwards.
//
// Every removed minute removes one overtime minute, so the week loses exactly
// its excess. Special records (SPECIAL category or non-working days) are never
// trimmed. Trimming moves the clock-out earlier.
type ComplianceCalibrator struct{}

type userWeek struct {
	userID generic.UserID
	week   string
}

// Calibrate returns the calibrated copy of records.
func (c *ComplianceCalibrator) Calibrate(records []ComputedDayRecord, ctx WorkTypeContext) CalibrationResult {
	out := cloneRecords(records)

	groups := make(map[userWeek][]int)
	var keys []userWeek
	for i, r := range out {
		k := userWeek{userID: r.UserID, week: r.Date.WeekKey()}
		if _, ok := groups[k]; !ok {
			keys = append(keys, k)
		}
		groups[k] = append(groups[k], i)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].userID != keys[j].userID {
			return keys[i].userID < keys[j].userID
		}
		return keys[i].week < keys[j].week
	})

	result := CalibrationResult{}
	for _, k := range keys {
		idx := groups[k]
		weekPolicy := ctx.PolicyFor(out[idx[0]].Date.WeekStart())
		before := weekOvertime(out, idx, k, ctx)
		if before <= weekPolicy.MaxWeeklyOvertimeMinutes {
			continue
		}

		removed := c.calibrateWeek(out, idx, k, weekPolicy.MaxWeeklyOvertimeMinutes, ctx)

		result.Weeks = append(result.Weeks, WeekCalibration{
			UserID:         k.userID,
			WeekKey:        k.week,
			CapMinutes:     weekPolicy.MaxWeeklyOvertimeMinutes,
			OvertimeBefore: before,
			OvertimeAfter:  weekOvertime(out, idx, k, ctx),
		})
		for _, i := range idx {
			if removed[i] == 0 {
				continue
			}
			out[i].Calibrated = true
			result.Adjustments = append(result.Adjustments, CalibrationAdjustment{
				RecordID:       out[i].ID,
				UserID:         out[i].UserID,
				Date:           out[i].Date,
				WeekKey:        k.week,
				RemovedMinutes: removed[i],
			})
		}
	}

	result.Records = out
	return result
}

func (c *ComplianceCalibrator) calibrateWeek(out []ComputedDayRecord, idx []int, k userWeek, capMinutes int, ctx WorkTypeContext) map[int]int {
	removed := make(map[int]int)
	excess := func() int { return weekOvertime(out, idx, k, ctx) - capMinutes }

	var regular []int
	for _, i := range idx {
		if !ctx.IsSpecial(out[i]) && out[i].ActualWorkMinutes > 0 {
			regular = append(regular, i)
		}
	}

	// Phase 1: level daily overtime.
	for excess() > 0 {
		sort.SliceStable(regular, func(a, b int) bool {
			ra, rb := out[regular[a]], out[regular[b]]
			if ra.OvertimeMinutes != rb.OvertimeMinutes {
				return ra.OvertimeMinutes > rb.OvertimeMinutes
			}
			return ra.Date.After(rb.Date)
		})
		if len(regular) == 0 || out[regular[0]].OvertimeMinutes == 0 {
			break
		}
		top := regular[0]
		nextLower := 0
		for _, i := range regular[1:] {
			if ot := out[i].OvertimeMinutes; ot < out[top].OvertimeMinutes {
				nextLower = ot
				break
			}
		}
		step := min(excess(), out[top].OvertimeMinutes-nextLower)
		n := c.trim(out, top, step, ctx)
		if n == 0 {
			break
		}
		removed[top] += n
	}

	// Phase 2: weekly-basic excess, most recent regular day first.
	sort.SliceStable(regular, func(a, b int) bool {
		return out[regular[a]].Date.After(out[regular[b]].Date)
	})
	for _, i := range regular {
		e := excess()
		if e <= 0 {
			break
		}
		n := c.trim(out, i, min(e, out[i].ActualWorkMinutes), ctx)
		removed[i] += n
	}
	return removed
}

// trim removes up to minutes of actual work from out[i] by moving its
// clock-out earlier, and returns the actual minutes removed.
func (c *ComplianceCalibrator) trim(out []ComputedDayRecord, i, minutes int, ctx WorkTypeContext) int {
	r := out[i]
	policy := ctx.PolicyFor(r.Date)
	target := nonNegative(r.ActualWorkMinutes - minutes)
	total := DurationForActual(target, policy)

	if r.Start.Valid && r.End.Valid {
		from, _ := RecognizedWindow(r.Start.Minutes, r.End.Minutes, policy)
		end := from + total
		if end < r.Start.Minutes {
			end = r.Start.Minutes
		}
		r.End = generic.Clock(end)
	}
	r = r.withDuration(total, policy)

	removed := out[i].ActualWorkMinutes - r.ActualWorkMinutes
	out[i] = r
	return removed
}

func weekOvertime(out []ComputedDayRecord, idx []int, k userWeek, ctx WorkTypeContext) int {
	recs := make([]ComputedDayRecord, len(idx))
	for n, i := range idx {
		recs[n] = out[i]
	}
	return summarizeWeek(k.userID, k.week, recs, ctx).OvertimeMinutes
}
