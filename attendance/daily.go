package attendance

import (
	"github.com/warp/attendance-engine/generic"
)

// =============================================================================
// BREAK-TIER RULE - Shared by every component that produces durations
// =============================================================================

const (
	breakTier4hMinutes = 240
	breakTier8hMinutes = 480
)

// BreakDeduction returns the break minutes for a gross duration:
//
//	total <  240  -> 0
//	total <  480  -> BreakDeduction4h
//	total >= 480  -> BreakDeduction8h
func BreakDeduction(totalMinutes int, policy EffectiveDatedPolicy) int {
	switch {
	case totalMinutes < breakTier4hMinutes:
		return 0
	case totalMinutes < breakTier8hMinutes:
		return policy.BreakDeduction4h
	default:
		return policy.BreakDeduction8h
	}
}

// ActualFor applies the break-tier rule to a gross duration.
func ActualFor(totalMinutes int, policy EffectiveDatedPolicy) int {
	if totalMinutes <= 0 {
		return 0
	}
	return nonNegative(totalMinutes - BreakDeduction(totalMinutes, policy))
}

// DurationForActual inverts the break-tier rule: it returns the shortest gross
// duration whose actual work equals target. Every target is reachable when
// BreakDeduction8h >= BreakDeduction4h, which Validate enforces. For policies
// that skip validation, unreachable targets resolve to the closest achievable
// actual below the target.
func DurationForActual(target int, policy EffectiveDatedPolicy) int {
	for t := target; t > 0; t-- {
		if total, ok := exactDurationFor(t, policy); ok {
			return total
		}
	}
	return 0
}

func exactDurationFor(actual int, policy EffectiveDatedPolicy) (int, bool) {
	if actual < breakTier4hMinutes {
		return actual, true
	}
	if total := actual + policy.BreakDeduction4h; total >= breakTier4hMinutes && total < breakTier8hMinutes {
		return total, true
	}
	if total := actual + policy.BreakDeduction8h; total >= breakTier8hMinutes {
		return total, true
	}
	return 0, false
}

// withDuration fills the duration fields from a gross duration, keeping the
// record invariants.
func (r ComputedDayRecord) withDuration(totalMinutes int, policy EffectiveDatedPolicy) ComputedDayRecord {
	if totalMinutes <= 0 {
		r.TotalDurationMinutes = 0
		r.BreakDurationMinutes = 0
		r.ActualWorkMinutes = 0
		r.OvertimeMinutes = 0
		return r
	}
	r.TotalDurationMinutes = totalMinutes
	r.BreakDurationMinutes = BreakDeduction(totalMinutes, policy)
	r.ActualWorkMinutes = nonNegative(totalMinutes - r.BreakDurationMinutes)
	r.OvertimeMinutes = nonNegative(r.ActualWorkMinutes - DailyOvertimeThresholdMinutes)
	return r
}

// withTimes sets both punches and recomputes durations over the recognized
// window.
func (r ComputedDayRecord) withTimes(start, end generic.ClockTime, policy EffectiveDatedPolicy) ComputedDayRecord {
	r.Start = start
	r.End = end
	if !start.Valid || !end.Valid {
		return r.withDuration(0, policy)
	}
	from, to := RecognizedWindow(start.Minutes, end.Minutes, policy)
	return r.withDuration(to-from, policy)
}

// RecognizedWindow clamps raw punches to the part of the day that counts:
// clock-ins before ClockInCutoff count from the cutoff, clock-ins within the
// grace period after the standard start count from the standard start, and
// clock-outs after ClockOutCutoff count to the cutoff. end is on the start
// day's axis (already wrapped for overnight shifts).
func RecognizedWindow(start, end int, policy EffectiveDatedPolicy) (int, int) {
	from := start
	if policy.ClockInCutoff.Valid && from < policy.ClockInCutoff.Minutes {
		from = policy.ClockInCutoff.Minutes
	}
	std := policy.StandardStart.Minutes
	if policy.ClockInGraceMinutes > 0 && from > std && from <= std+policy.ClockInGraceMinutes {
		from = std
	}

	to := end
	if policy.ClockOutCutoff.Valid {
		cutoff := policy.ClockOutCutoff.Minutes
		if policy.IsOvernight() && cutoff < std {
			cutoff += generic.MinutesPerDay
		}
		if to > cutoff {
			to = cutoff
		}
	}
	return from, to
}

// =============================================================================
// DAILY LOG PROCESSOR - RawPunch + policy -> ComputedDayRecord
// =============================================================================

// DailyLogProcessor turns one raw punch pair into a computed record. It is
// pure: the only failure is an unparsable clock string.
//
// DURATION:
//
//	total = end - start
//	end < start wraps (+1440) only when the policy's standard shift is
//	overnight; otherwise the record keeps zero durations and the
//	AnomalyDetector flags it.
//
// A missing punch keeps the punch that is present and zero durations.
type DailyLogProcessor struct{}

// Process computes one day.
func (DailyLogProcessor) Process(punch RawPunch, policy EffectiveDatedPolicy) (ComputedDayRecord, error) {
	start, err := generic.ParseClockTime(punch.ClockIn)
	if err != nil {
		return ComputedDayRecord{}, &generic.ClockParseError{Field: "clock_in", Value: punch.ClockIn}
	}
	end, err := generic.ParseClockTime(punch.ClockOut)
	if err != nil {
		return ComputedDayRecord{}, &generic.ClockParseError{Field: "clock_out", Value: punch.ClockOut}
	}

	rec := ComputedDayRecord{
		UserID:            punch.UserID,
		UserName:          punch.UserName,
		Department:        punch.Department,
		Date:              punch.Date,
		Status:            StatusNormal,
		CategoricalStatus: CategoryNormal,
	}
	return rec.fromPunches(start, end, policy), nil
}

// FromClockTimes computes a record from already-parsed punches. Synthesis and
// the remote generator use it so every duration goes through the same rule.
func (DailyLogProcessor) FromClockTimes(base ComputedDayRecord, start, end generic.ClockTime, policy EffectiveDatedPolicy) ComputedDayRecord {
	return base.fromPunches(start, end, policy)
}

func (r ComputedDayRecord) fromPunches(start, end generic.ClockTime, policy EffectiveDatedPolicy) ComputedDayRecord {
	if start.Valid && end.Valid && end.Minutes < start.Minutes && policy.IsOvernight() {
		end = end.Add(generic.MinutesPerDay)
	}
	if start.Valid && end.Valid && end.Minutes <= start.Minutes {
		r.Start, r.End = start, end
		return r.withDuration(0, policy)
	}
	return r.withTimes(start, end, policy)
}
