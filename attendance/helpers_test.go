package attendance_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/generic"
)

// =============================================================================
// TEST SETUP
// =============================================================================

// May 2024: the 13th is a Monday, the 18th a Saturday.
func date(t *testing.T, s string) generic.TimePoint {
	t.Helper()
	d, err := generic.ParseDate(s)
	require.NoError(t, err)
	return d
}

func punch(t *testing.T, user, day, in, out string) attendance.RawPunch {
	t.Helper()
	return attendance.RawPunch{
		UserID:   generic.UserID(user),
		UserName: "User " + user,
		Date:     date(t, day),
		ClockIn:  in,
		ClockOut: out,
	}
}

// worked computes a record through the DailyLogProcessor so every fixture
// keeps the record invariants.
func worked(t *testing.T, policy attendance.EffectiveDatedPolicy, user, day, in, out string) attendance.ComputedDayRecord {
	t.Helper()
	rec, err := attendance.DailyLogProcessor{}.Process(punch(t, user, day, in, out), policy)
	require.NoError(t, err)
	rec.ID = generic.RecordID(user + "-" + day)
	return rec
}

func policyFrom(t *testing.T, effective string) attendance.EffectiveDatedPolicy {
	t.Helper()
	p := attendance.DefaultPolicy()
	p.ID = generic.PolicyID("p-" + effective)
	p.EffectiveDate = date(t, effective)
	return p
}

func contextWith(policies ...attendance.EffectiveDatedPolicy) attendance.WorkTypeContext {
	return attendance.WorkTypeContext{
		Policies:  policies,
		Calendar:  generic.NoHolidays{},
		CompanyID: "acme",
	}
}

func requireInvariants(t *testing.T, r attendance.ComputedDayRecord) {
	t.Helper()
	require.Equal(t, max(0, r.TotalDurationMinutes-r.BreakDurationMinutes), r.ActualWorkMinutes, "actual = total - break (%s %s)", r.UserID, r.Date)
	require.Equal(t, max(0, r.ActualWorkMinutes-480), r.OvertimeMinutes, "overtime = actual - 480 (%s %s)", r.UserID, r.Date)
}
