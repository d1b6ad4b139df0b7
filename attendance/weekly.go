package attendance

import (
	"sort"

	"github.com/warp/attendance-engine/generic"
)

// =============================================================================
// WORK TYPE CONTEXT - What the aggregator needs to classify minutes
// =============================================================================

// WorkTypeContext carries the policies and calendar used to classify a week.
// The policy for a week is the one in force on its Monday.
type WorkTypeContext struct {
	Policies  []EffectiveDatedPolicy
	Calendar  generic.HolidayCalendar
	CompanyID string
	Resolver  PolicyResolver
}

// PolicyFor resolves the policy for a date, falling back to DefaultPolicy.
func (c WorkTypeContext) PolicyFor(date generic.TimePoint) EffectiveDatedPolicy {
	return c.Resolver.ResolveOrDefault(date, c.Policies)
}

// IsSpecial reports whether a record's minutes belong in the special bucket.
func (c WorkTypeContext) IsSpecial(r ComputedDayRecord) bool {
	return r.CategoricalStatus == CategorySpecial || !r.Date.IsWorkdayWithHolidays(c.Calendar, c.CompanyID)
}

// =============================================================================
// WEEKLY AGGREGATOR - basic / overtime / special buckets per ISO week
// =============================================================================

// WeeklyAggregator partitions a user's actual work per ISO week.
//
// ALGORITHM:
//
//	special      = Σ actual of special records
//	dailyOT      = Σ overtime of the remaining records
//	withinDaily  = Σ actual of the remaining records - dailyOT
//	weeklyExcess = max(0, withinDaily - weeklyBasic)
//	overtime     = dailyOT + weeklyExcess
//	basic        = withinDaily - weeklyExcess
//
// so total = basic + overtime + special and basic never exceeds weeklyBasic.
type WeeklyAggregator struct{}

// Summarize returns one summary per ISO week touched by the user's records,
// in week order. Records of other users are ignored.
func (WeeklyAggregator) Summarize(userID generic.UserID, records []ComputedDayRecord, ctx WorkTypeContext) []WeeklySummary {
	weeks := make(map[string][]ComputedDayRecord)
	for _, r := range records {
		if r.UserID != userID {
			continue
		}
		key := r.Date.WeekKey()
		weeks[key] = append(weeks[key], r)
	}

	summaries := make([]WeeklySummary, 0, len(weeks))
	for key, recs := range weeks {
		summaries = append(summaries, summarizeWeek(userID, key, recs, ctx))
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].WeekStart.Before(summaries[j].WeekStart)
	})
	return summaries
}

// SummarizeAll summarizes every user, sorted by user then week.
func (a WeeklyAggregator) SummarizeAll(records []ComputedDayRecord, ctx WorkTypeContext) []WeeklySummary {
	seen := make(map[generic.UserID]bool)
	var users []generic.UserID
	for _, r := range records {
		if !seen[r.UserID] {
			seen[r.UserID] = true
			users = append(users, r.UserID)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i] < users[j] })

	var out []WeeklySummary
	for _, u := range users {
		out = append(out, a.Summarize(u, records, ctx)...)
	}
	return out
}

func summarizeWeek(userID generic.UserID, key string, recs []ComputedDayRecord, ctx WorkTypeContext) WeeklySummary {
	weekStart := recs[0].Date.WeekStart()
	policy := ctx.PolicyFor(weekStart)

	var total, special, regularActual, dailyOT int
	for _, r := range recs {
		total += r.ActualWorkMinutes
		if ctx.IsSpecial(r) {
			special += r.ActualWorkMinutes
			continue
		}
		regularActual += r.ActualWorkMinutes
		dailyOT += r.OvertimeMinutes
	}

	withinDaily := regularActual - dailyOT
	weeklyExcess := nonNegative(withinDaily - policy.WeeklyBasicWorkMinutes)

	return WeeklySummary{
		UserID:             userID,
		WeekKey:            key,
		WeekStart:          weekStart,
		TotalWorkMinutes:   total,
		BasicWorkMinutes:   withinDaily - weeklyExcess,
		OvertimeMinutes:    dailyOT + weeklyExcess,
		SpecialWorkMinutes: special,
	}
}
