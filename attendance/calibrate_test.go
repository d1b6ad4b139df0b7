package attendance_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/generic"
)

var week20 = []string{"2024-05-13", "2024-05-14", "2024-05-15", "2024-05-16", "2024-05-17"}

func weekOf(t *testing.T, policy attendance.EffectiveDatedPolicy, in, out string) []attendance.ComputedDayRecord {
	var records []attendance.ComputedDayRecord
	for _, d := range week20 {
		records = append(records, worked(t, policy, "u1", d, in, out))
	}
	return records
}

func removedByDate(result attendance.CalibrationResult) map[string]int {
	out := make(map[string]int)
	for _, a := range result.Adjustments {
		out[a.Date.String()] += a.RemovedMinutes
	}
	return out
}

func TestComplianceCalibrator_TrimsMostRecentDaysFirst(t *testing.T) {
	// GIVEN: Five 08:00-21:00 days, 240 daily overtime each, cap 720
	policy := policyFrom(t, "2024-01-01")
	records := weekOf(t, policy, "08:00", "21:00")

	// WHEN: Calibrating
	var calibrator attendance.ComplianceCalibrator
	result := calibrator.Calibrate(records, contextWith(policy))

	// THEN: Friday and Thursday lose their overtime and end at 17:00
	assert.Equal(t, map[string]int{"2024-05-16": 240, "2024-05-17": 240}, removedByDate(result))
	assert.Equal(t, 480, result.RemovedMinutes())

	for _, r := range result.Records[3:] {
		assert.Equal(t, "17:00", r.End.String())
		assert.Equal(t, "08:00", r.Start.String())
		assert.Equal(t, 480, r.ActualWorkMinutes)
		assert.True(t, r.Calibrated)
		requireInvariants(t, r)
	}
	assert.False(t, result.Records[0].Calibrated)

	require.Len(t, result.Weeks, 1)
	assert.Equal(t, 1200, result.Weeks[0].OvertimeBefore)
	assert.Equal(t, 720, result.Weeks[0].OvertimeAfter)

	summary := attendance.WeeklyAggregator{}.Summarize("u1", result.Records, contextWith(policy))[0]
	assert.Equal(t, 720, summary.OvertimeMinutes)
}

func TestComplianceCalibrator_LevelsDailyOvertime(t *testing.T) {
	// GIVEN: Daily overtime of 300 / 120 / 60 and a cap of 200
	policy := policyFrom(t, "2024-01-01")
	policy.MaxWeeklyOvertimeMinutes = 200
	records := []attendance.ComputedDayRecord{
		worked(t, policy, "u1", "2024-05-13", "08:00", "22:00"),
		worked(t, policy, "u1", "2024-05-14", "08:00", "19:00"),
		worked(t, policy, "u1", "2024-05-15", "08:00", "18:00"),
	}
	require.Equal(t, 300, records[0].OvertimeMinutes)
	require.Equal(t, 120, records[1].OvertimeMinutes)
	require.Equal(t, 60, records[2].OvertimeMinutes)

	var calibrator attendance.ComplianceCalibrator
	result := calibrator.Calibrate(records, contextWith(policy))

	// THEN: The highest days come down first; the lowest day is untouched
	assert.Equal(t, map[string]int{"2024-05-13": 220, "2024-05-14": 60}, removedByDate(result))
	assert.Equal(t, 80, result.Records[0].OvertimeMinutes)
	assert.Equal(t, 60, result.Records[1].OvertimeMinutes)
	assert.Equal(t, 60, result.Records[2].OvertimeMinutes)
}

func TestComplianceCalibrator_TiedDaysDrainMostRecentFirst(t *testing.T) {
	// GIVEN: Daily overtime of 120 / 120 / 60 and a cap of 200
	policy := policyFrom(t, "2024-01-01")
	policy.MaxWeeklyOvertimeMinutes = 200
	records := []attendance.ComputedDayRecord{
		worked(t, policy, "u1", "2024-05-13", "08:00", "19:00"),
		worked(t, policy, "u1", "2024-05-14", "08:00", "19:00"),
		worked(t, policy, "u1", "2024-05-15", "08:00", "18:00"),
	}
	require.Equal(t, 120, records[0].OvertimeMinutes)
	require.Equal(t, 120, records[1].OvertimeMinutes)

	var calibrator attendance.ComplianceCalibrator
	result := calibrator.Calibrate(records, contextWith(policy))

	// THEN: Tuesday comes down to the 60 level before Monday is touched
	assert.Equal(t, map[string]int{"2024-05-13": 40, "2024-05-14": 60}, removedByDate(result))
	assert.Equal(t, 100, result.RemovedMinutes())
	assert.Equal(t, 80, result.Records[0].OvertimeMinutes)
	assert.Equal(t, 60, result.Records[1].OvertimeMinutes)
}

func TestComplianceCalibrator_WeeklyBasicExcess(t *testing.T) {
	// GIVEN: No daily overtime, but 400 minutes beyond a 2000-minute basic week
	policy := policyFrom(t, "2024-01-01")
	policy.WeeklyBasicWorkMinutes = 2000
	policy.MaxWeeklyOvertimeMinutes = 100
	records := weekOf(t, policy, "09:00", "18:00")

	var calibrator attendance.ComplianceCalibrator
	result := calibrator.Calibrate(records, contextWith(policy))

	// THEN: Friday alone is shortened
	assert.Equal(t, map[string]int{"2024-05-17": 300}, removedByDate(result))
	friday := result.Records[4]
	assert.Equal(t, "12:00", friday.End.String())
	assert.Equal(t, 180, friday.TotalDurationMinutes)
	assert.Equal(t, 0, friday.BreakDurationMinutes)
	requireInvariants(t, friday)

	summary := attendance.WeeklyAggregator{}.Summarize("u1", result.Records, contextWith(policy))[0]
	assert.Equal(t, 100, summary.OvertimeMinutes)
	assert.Equal(t, 2000, summary.BasicWorkMinutes)
}

func TestComplianceCalibrator_NeverTrimsSpecialWork(t *testing.T) {
	policy := policyFrom(t, "2024-01-01")
	records := weekOf(t, policy, "08:00", "21:00")
	records[0].CategoricalStatus = attendance.CategorySpecial
	saturday := worked(t, policy, "u1", "2024-05-18", "08:00", "21:00")
	records = append(records, saturday)

	var calibrator attendance.ComplianceCalibrator
	result := calibrator.Calibrate(records, contextWith(policy))

	assert.Equal(t, records[0], result.Records[0])
	assert.Equal(t, saturday, result.Records[5])
	assert.NotContains(t, removedByDate(result), "2024-05-13")
	assert.NotContains(t, removedByDate(result), "2024-05-18")
}

func TestComplianceCalibrator_LeavesInputAndCompliantWeeksAlone(t *testing.T) {
	policy := policyFrom(t, "2024-01-01")
	records := weekOf(t, policy, "08:00", "21:00")
	snapshot := append([]attendance.ComputedDayRecord(nil), records...)

	compliant := worked(t, policy, "u2", "2024-05-13", "09:00", "18:00")
	records = append(records, compliant)

	var calibrator attendance.ComplianceCalibrator
	result := calibrator.Calibrate(records, contextWith(policy))

	assert.Equal(t, snapshot, records[:5])
	assert.Equal(t, compliant, result.Records[5])
	for _, a := range result.Adjustments {
		assert.Equal(t, generic.UserID("u1"), a.UserID)
	}
}

func TestComplianceCalibrator_NeverIncreasesOvertime(t *testing.T) {
	policy := policyFrom(t, "2024-01-01")
	ctx := contextWith(policy)
	ends := []string{"17:30", "18:45", "19:10", "20:00", "21:15", "22:40", "23:00"}

	for limit := 0; limit <= 900; limit += 150 {
		p := policy
		p.MaxWeeklyOvertimeMinutes = limit
		ctx.Policies = []attendance.EffectiveDatedPolicy{p}

		var records []attendance.ComputedDayRecord
		for i, d := range week20 {
			records = append(records, worked(t, p, "u1", d, "08:00", ends[(i+limit/150)%len(ends)]))
		}
		before := attendance.WeeklyAggregator{}.Summarize("u1", records, ctx)[0]

		var calibrator attendance.ComplianceCalibrator
		result := calibrator.Calibrate(records, ctx)
		after := attendance.WeeklyAggregator{}.Summarize("u1", result.Records, ctx)[0]

		assert.LessOrEqual(t, after.OvertimeMinutes, before.OvertimeMinutes, "cap=%d", limit)
		assert.LessOrEqual(t, after.OvertimeMinutes, limit, "cap=%d", limit)
		for _, r := range result.Records {
			requireInvariants(t, r)
		}
	}
}
