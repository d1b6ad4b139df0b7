package attendance_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/generic"
	"github.com/warp/attendance-engine/payroll"
)

func hours(n int) *int { return &n }

func may2024() generic.Period { return generic.MonthPeriod(2024, time.May) }

func generationRequest(user string, target *int) attendance.GenerationRequest {
	return attendance.GenerationRequest{
		EmployeeID:              generic.UserID(user),
		UserName:                "User " + user,
		Period:                  may2024(),
		Policy:                  attendance.DefaultPolicy(),
		RequiredRecognizedHours: target,
		Calendar:                generic.NoHolidays{},
		Seed:                    42,
	}
}

// =============================================================================
// SYNTHETIC ATTENDANCE GENERATOR
// =============================================================================

func TestSyntheticGenerator_CoversEligibleDays(t *testing.T) {
	// GIVEN: May 2024 (23 workdays) with one leave day
	req := generationRequest("u1", nil)
	req.LeaveDates = []generic.TimePoint{date(t, "2024-05-15")}

	var gen attendance.SyntheticAttendanceGenerator
	records, err := gen.Generate(context.Background(), req)
	require.NoError(t, err)

	// THEN: 22 plausible days, none on a weekend or the leave day
	require.Len(t, records, 22)
	for _, r := range records {
		assert.True(t, r.Date.IsWorkday())
		assert.NotEqual(t, "2024-05-15", r.Date.String())
		assert.True(t, r.Synthetic)
		assert.Equal(t, attendance.CategoryNormal, r.CategoricalStatus)
		assert.Equal(t, "User u1", r.UserName)

		assert.GreaterOrEqual(t, r.Start.Minutes, 9*60-15)
		assert.LessOrEqual(t, r.Start.Minutes, 9*60+10)
		assert.GreaterOrEqual(t, r.End.Minutes, 18*60)
		assert.LessOrEqual(t, r.End.Minutes, 18*60+60)
		requireInvariants(t, r)
	}
}

func TestSyntheticGenerator_IsDeterministicPerSeed(t *testing.T) {
	var gen attendance.SyntheticAttendanceGenerator
	a, err := gen.Generate(context.Background(), generationRequest("u1", nil))
	require.NoError(t, err)
	b, err := gen.Generate(context.Background(), generationRequest("u1", nil))
	require.NoError(t, err)
	assert.Equal(t, a, b)

	other := generationRequest("u1", nil)
	other.Seed = 43
	c, err := gen.Generate(context.Background(), other)
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestSyntheticGenerator_HitsTarget(t *testing.T) {
	var gen attendance.SyntheticAttendanceGenerator
	records, err := gen.Generate(context.Background(), generationRequest("u1", hours(160)))
	require.NoError(t, err)

	total := 0
	for _, r := range records {
		total += payroll.ToRecognizedHours(r.ActualWorkMinutes)
		assert.LessOrEqual(t, r.ActualWorkMinutes, attendance.DefaultDailyCeilingMinutes)
		requireInvariants(t, r)
	}
	assert.Equal(t, 160, total)
	assert.True(t, attendance.Verify("u1", records, hours(160)).Matched)
}

func TestSyntheticGenerator_RejectsInvalidPeriodAndCancelledContext(t *testing.T) {
	var gen attendance.SyntheticAttendanceGenerator

	req := generationRequest("u1", nil)
	req.Period = generic.Period{Start: date(t, "2024-05-31"), End: date(t, "2024-05-01")}
	_, err := gen.Generate(context.Background(), req)
	assert.ErrorIs(t, err, generic.ErrInvalidPeriod)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = gen.Generate(ctx, generationRequest("u1", nil))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestVerify(t *testing.T) {
	policy := attendance.DefaultPolicy()
	records := []attendance.ComputedDayRecord{
		worked(t, policy, "u1", "2024-05-13", "09:00", "18:00"), // 480 -> 8
		worked(t, policy, "u1", "2024-05-14", "09:00", "14:03"), // 273 -> 5
		worked(t, policy, "u2", "2024-05-14", "09:00", "18:00"),
	}

	v := attendance.Verify("u1", records, hours(13))
	assert.True(t, v.Matched)
	assert.Equal(t, 13, v.RecognizedHours)

	v = attendance.Verify("u1", records, hours(14))
	assert.False(t, v.Matched)
	assert.Equal(t, -60, v.DeltaMinutes)

	assert.True(t, attendance.Verify("u1", records, nil).Matched)
}

// =============================================================================
// REPAIR LOOP
// =============================================================================

// flakyGenerator misses the target on an employee's first call.
type flakyGenerator struct {
	inner attendance.SyntheticAttendanceGenerator
	calls map[generic.UserID]int
}

func (g *flakyGenerator) Generate(ctx context.Context, req attendance.GenerationRequest) ([]attendance.ComputedDayRecord, error) {
	g.calls[req.EmployeeID]++
	if g.calls[req.EmployeeID] == 1 && req.EmployeeID == "flaky" {
		req.RequiredRecognizedHours = hours(*req.RequiredRecognizedHours - 10)
	}
	return g.inner.Generate(ctx, req)
}

type failingGenerator struct {
	failOn generic.UserID
	err    error
	inner  attendance.SyntheticAttendanceGenerator
}

func (g *failingGenerator) Generate(ctx context.Context, req attendance.GenerationRequest) ([]attendance.ComputedDayRecord, error) {
	if req.EmployeeID == g.failOn {
		return nil, g.err
	}
	return g.inner.Generate(ctx, req)
}

func synthesisRequest(targets ...attendance.SyntheticTarget) attendance.SynthesisRequest {
	return attendance.SynthesisRequest{
		Period:   may2024(),
		Targets:  targets,
		Policy:   attendance.DefaultPolicy(),
		Calendar: generic.NoHolidays{},
		Seed:     7,
	}
}

func TestRepairLoop_ConvergesOnFirstRound(t *testing.T) {
	loop := attendance.RepairLoop{Generator: &attendance.SyntheticAttendanceGenerator{}}

	run := loop.Run(context.Background(), synthesisRequest(
		attendance.SyntheticTarget{EmployeeID: "u1", RequiredRecognizedHours: 160},
		attendance.SyntheticTarget{EmployeeID: "u2", RequiredRecognizedHours: 150},
	))

	assert.Equal(t, attendance.TerminationConverged, run.Termination)
	assert.True(t, run.Converged())
	assert.Equal(t, 1, run.Attempt)
	assert.Equal(t, 0, run.RepairRounds())
	assert.Empty(t, run.Mismatched)
	assert.NoError(t, run.Err)
	assert.Equal(t, 160, run.Verifications["u1"].RecognizedHours)
	assert.Equal(t, 150, run.Verifications["u2"].RecognizedHours)
	assert.NotEmpty(t, run.AllRecords())
}

func TestRepairLoop_ExhaustsOnInfeasibleTarget(t *testing.T) {
	// GIVEN: 400 hours cannot fit 23 days under a 12-hour daily ceiling
	loop := attendance.RepairLoop{Generator: &attendance.SyntheticAttendanceGenerator{}}

	run := loop.Run(context.Background(), synthesisRequest(
		attendance.SyntheticTarget{EmployeeID: "u1", RequiredRecognizedHours: 400},
		attendance.SyntheticTarget{EmployeeID: "u2", RequiredRecognizedHours: 160},
	))

	// THEN: One initial round plus three repairs, the failure is reported
	assert.Equal(t, attendance.TerminationMaxRetriesExhausted, run.Termination)
	assert.Equal(t, 4, run.Attempt)
	assert.Equal(t, 3, run.RepairRounds())
	assert.Equal(t, []generic.UserID{"u1"}, run.Mismatched)
	assert.Equal(t, 23*12, run.Verifications["u1"].RecognizedHours)
	assert.True(t, run.Verifications["u2"].Matched)
	assert.NoError(t, run.Err)
}

func TestRepairLoop_RegeneratesOnlyMismatched(t *testing.T) {
	gen := &flakyGenerator{calls: make(map[generic.UserID]int)}
	loop := attendance.RepairLoop{Generator: gen}

	run := loop.Run(context.Background(), synthesisRequest(
		attendance.SyntheticTarget{EmployeeID: "flaky", RequiredRecognizedHours: 160},
		attendance.SyntheticTarget{EmployeeID: "steady", RequiredRecognizedHours: 160},
	))

	assert.Equal(t, attendance.TerminationConverged, run.Termination)
	assert.Equal(t, 2, run.Attempt)
	assert.Equal(t, 2, gen.calls["flaky"])
	assert.Equal(t, 1, gen.calls["steady"])
}

func TestRepairLoop_HonorsMaxRepairRounds(t *testing.T) {
	loop := attendance.RepairLoop{Generator: &attendance.SyntheticAttendanceGenerator{}, MaxRepairRounds: 1}

	run := loop.Run(context.Background(), synthesisRequest(
		attendance.SyntheticTarget{EmployeeID: "u1", RequiredRecognizedHours: 400},
	))

	assert.Equal(t, attendance.TerminationMaxRetriesExhausted, run.Termination)
	assert.Equal(t, 2, run.Attempt)
}

func TestRepairLoop_GenerationFailureKeepsAccumulatedRecords(t *testing.T) {
	boom := errors.New("upstream unavailable")
	loop := attendance.RepairLoop{Generator: &failingGenerator{failOn: "u2", err: boom}}

	run := loop.Run(context.Background(), synthesisRequest(
		attendance.SyntheticTarget{EmployeeID: "u1", RequiredRecognizedHours: 160},
		attendance.SyntheticTarget{EmployeeID: "u2", RequiredRecognizedHours: 160},
	))

	assert.Equal(t, attendance.TerminationGenerationFailed, run.Termination)
	assert.ErrorIs(t, run.Err, generic.ErrGenerationFailed)
	assert.ErrorIs(t, run.Err, boom)
	assert.NotEmpty(t, run.Records["u1"])
	assert.Empty(t, run.Records["u2"])
	assert.Equal(t, 1, run.Attempt)
}

func TestRepairLoop_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	loop := attendance.RepairLoop{Generator: &attendance.SyntheticAttendanceGenerator{}}

	run := loop.Run(ctx, synthesisRequest(attendance.SyntheticTarget{EmployeeID: "u1", RequiredRecognizedHours: 160}))

	assert.Equal(t, attendance.TerminationCancelled, run.Termination)
	assert.ErrorIs(t, run.Err, context.Canceled)
	assert.Empty(t, run.Records)

	// A generator surfacing a deadline is treated the same way
	loop = attendance.RepairLoop{Generator: &failingGenerator{failOn: "u1", err: context.DeadlineExceeded}}
	run = loop.Run(context.Background(), synthesisRequest(attendance.SyntheticTarget{EmployeeID: "u1", RequiredRecognizedHours: 160}))
	assert.Equal(t, attendance.TerminationCancelled, run.Termination)
}

func TestSynthesisRequest_EmployeesWithoutTargetAlwaysMatch(t *testing.T) {
	loop := attendance.RepairLoop{Generator: &attendance.SyntheticAttendanceGenerator{}}
	req := synthesisRequest()
	req.Employees = []attendance.SynthesisEmployee{{ID: "u1", UserName: "Ann", Department: "Ops"}}

	run := loop.Run(context.Background(), req)

	assert.Equal(t, attendance.TerminationConverged, run.Termination)
	require.Len(t, run.Records["u1"], 23)
	assert.Equal(t, "Ann", run.Records["u1"][0].UserName)
	assert.Equal(t, "Ops", run.Records["u1"][0].Department)
}
