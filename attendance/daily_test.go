package attendance_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/generic"
)

// =============================================================================
// BREAK-TIER RULE
// =============================================================================

func TestBreakDeduction_TierBoundaries(t *testing.T) {
	policy := attendance.DefaultPolicy() // 30 / 60

	tests := []struct {
		total int
		want  int
	}{
		{total: 0, want: 0},
		{total: 239, want: 0},
		{total: 240, want: 30},
		{total: 479, want: 30},
		{total: 480, want: 60},
		{total: 900, want: 60},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, attendance.BreakDeduction(tt.total, policy), "total=%d", tt.total)
	}
}

func TestDurationForActual_InvertsBreakTiers(t *testing.T) {
	policy := attendance.DefaultPolicy()

	assert.Equal(t, 200, attendance.DurationForActual(200, policy))
	assert.Equal(t, 450, attendance.DurationForActual(420, policy))
	assert.Equal(t, 510, attendance.DurationForActual(450, policy))
	assert.Equal(t, 540, attendance.DurationForActual(480, policy))
	assert.Equal(t, 0, attendance.DurationForActual(0, policy))

	for target := 1; target <= 900; target++ {
		require.Equal(t, target, attendance.ActualFor(attendance.DurationForActual(target, policy), policy), "target=%d", target)
	}
}

func TestDurationForActual_ExactForEveryValidPolicy(t *testing.T) {
	for _, breaks := range [][2]int{{0, 0}, {30, 30}, {45, 45}, {20, 60}, {0, 90}, {32, 32}} {
		policy := attendance.DefaultPolicy()
		policy.EffectiveDate = generic.NewTimePoint(2024, 1, 1)
		policy.BreakDeduction4h, policy.BreakDeduction8h = breaks[0], breaks[1]
		require.NoError(t, policy.Validate())

		for target := 0; target <= 900; target++ {
			got := attendance.ActualFor(attendance.DurationForActual(target, policy), policy)
			require.Equal(t, target, got, "breaks=%v target=%d", breaks, target)
		}
	}
}

func TestDurationForActual_DeadZoneFallsBelow(t *testing.T) {
	// GIVEN: A larger 4h-tier break than 8h-tier break leaves actuals 420..449
	// unreachable
	policy := attendance.DefaultPolicy()
	policy.EffectiveDate = generic.NewTimePoint(2024, 1, 1)
	policy.BreakDeduction4h = 60
	policy.BreakDeduction8h = 30
	require.ErrorIs(t, policy.Validate(), generic.ErrInvalidPolicy)

	// THEN: The closest achievable actual below the target is used
	total := attendance.DurationForActual(430, policy)
	assert.Equal(t, 479, total)
	assert.Equal(t, 419, attendance.ActualFor(total, policy))
}

// =============================================================================
// DAILY LOG PROCESSOR
// =============================================================================

func TestDailyLogProcessor_StandardDay(t *testing.T) {
	rec, err := attendance.DailyLogProcessor{}.Process(punch(t, "u1", "2024-05-13", "09:00", "18:00"), attendance.DefaultPolicy())
	require.NoError(t, err)

	assert.Equal(t, 540, rec.TotalDurationMinutes)
	assert.Equal(t, 60, rec.BreakDurationMinutes)
	assert.Equal(t, 480, rec.ActualWorkMinutes)
	assert.Equal(t, 0, rec.OvertimeMinutes)
	assert.Equal(t, attendance.StatusNormal, rec.Status)
	assert.Equal(t, attendance.CategoryNormal, rec.CategoricalStatus)
	assert.Equal(t, "User u1", rec.UserName)
}

func TestDailyLogProcessor_InvariantsHoldForEveryTier(t *testing.T) {
	policy := attendance.DefaultPolicy()
	for _, total := range []int{0, 100, 239, 240, 300, 479, 480, 600, 900} {
		end := generic.Clock(6*60 + total)
		rec, err := attendance.DailyLogProcessor{}.Process(punch(t, "u1", "2024-05-13", "06:00", end.String()), policy)
		require.NoError(t, err)

		assert.Equal(t, total, rec.TotalDurationMinutes)
		requireInvariants(t, rec)
	}
}

func TestDailyLogProcessor_Overtime(t *testing.T) {
	rec, err := attendance.DailyLogProcessor{}.Process(punch(t, "u1", "2024-05-13", "08:30", "20:00"), attendance.DefaultPolicy())
	require.NoError(t, err)

	assert.Equal(t, 690, rec.TotalDurationMinutes)
	assert.Equal(t, 630, rec.ActualWorkMinutes)
	assert.Equal(t, 150, rec.OvertimeMinutes)
}

func TestDailyLogProcessor_OvernightWrapOnlyForNightShifts(t *testing.T) {
	night := attendance.DefaultPolicy()
	night.StandardStart = generic.ClockAt(22, 0)
	night.StandardEnd = generic.ClockAt(6, 0)

	// GIVEN: A night-shift policy
	// WHEN: Clock-out is earlier on the clock than clock-in
	rec, err := attendance.DailyLogProcessor{}.Process(punch(t, "u1", "2024-05-13", "22:00", "06:30"), night)
	require.NoError(t, err)

	// THEN: The clock-out wraps past midnight
	assert.Equal(t, 510, rec.TotalDurationMinutes)
	assert.Equal(t, 450, rec.ActualWorkMinutes)
	assert.Equal(t, "06:30", rec.End.String())
	assert.Equal(t, 1830, rec.End.Minutes)

	// GIVEN: A day policy, the same shape is not wrapped
	day, err := attendance.DailyLogProcessor{}.Process(punch(t, "u1", "2024-05-13", "18:00", "09:00"), attendance.DefaultPolicy())
	require.NoError(t, err)
	assert.Equal(t, 0, day.TotalDurationMinutes)
	assert.Equal(t, 0, day.ActualWorkMinutes)
	assert.True(t, day.End.Valid)
}

func TestDailyLogProcessor_MissingPunchKeepsPresentOne(t *testing.T) {
	rec, err := attendance.DailyLogProcessor{}.Process(punch(t, "u1", "2024-05-13", "09:00", ""), attendance.DefaultPolicy())
	require.NoError(t, err)

	assert.True(t, rec.Start.Valid)
	assert.False(t, rec.End.Valid)
	assert.Equal(t, 0, rec.TotalDurationMinutes)
	assert.Equal(t, 0, rec.ActualWorkMinutes)
}

func TestDailyLogProcessor_UnparsableTimeFailsRecord(t *testing.T) {
	_, err := attendance.DailyLogProcessor{}.Process(punch(t, "u1", "2024-05-13", "25:00", "18:00"), attendance.DefaultPolicy())
	require.Error(t, err)
	assert.ErrorIs(t, err, generic.ErrInvalidClockTime)

	var parseErr *generic.ClockParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, "clock_in", parseErr.Field)

	_, err = attendance.DailyLogProcessor{}.Process(punch(t, "u1", "2024-05-13", "09:00", "6pm"), attendance.DefaultPolicy())
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, "clock_out", parseErr.Field)
}

func TestDailyLogProcessor_RecognizedWindow(t *testing.T) {
	policy := attendance.DefaultPolicy()
	policy.ClockInGraceMinutes = 10
	policy.ClockInCutoff = generic.ClockAt(8, 0)
	policy.ClockOutCutoff = generic.ClockAt(20, 0)

	tests := []struct {
		in, out string
		total   int
	}{
		{in: "09:07", out: "18:00", total: 540}, // within grace counts from 09:00
		{in: "09:11", out: "18:00", total: 529}, // past grace
		{in: "07:00", out: "21:00", total: 720}, // both cutoffs
		{in: "08:30", out: "18:00", total: 570},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s-%s", tt.in, tt.out), func(t *testing.T) {
			rec, err := attendance.DailyLogProcessor{}.Process(punch(t, "u1", "2024-05-13", tt.in, tt.out), policy)
			require.NoError(t, err)
			assert.Equal(t, tt.total, rec.TotalDurationMinutes)
			assert.Equal(t, tt.in, rec.Start.String(), "raw punch is kept")
			requireInvariants(t, rec)
		})
	}
}
