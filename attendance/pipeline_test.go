package attendance_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/generic"
)

func TestPipeline_ComputesBatch(t *testing.T) {
	// GIVEN: A clean day, a forgotten clock-out, and one unparsable punch
	punches := []attendance.RawPunch{
		punch(t, "u1", "2024-05-13", "09:00", "18:00"),
		punch(t, "u1", "2024-05-15", "09:00", ""),
		punch(t, "u2", "2024-05-13", "25:00", "18:00"),
		punch(t, "u3", "2024-05-13", "08:00", "20:00"),
	}

	// WHEN: Running the pipeline
	var pipeline attendance.Pipeline
	result := pipeline.Process(punches, contextWith(policyFrom(t, "2024-01-01")))

	// THEN: The bad punch is reported, the rest computes
	require.Len(t, result.Errors, 1)
	assert.Equal(t, 2, result.Errors[0].Index)
	assert.Equal(t, generic.UserID("u2"), result.Errors[0].UserID)
	assert.ErrorIs(t, result.Errors[0], generic.ErrInvalidClockTime)

	// u1 gets a Tuesday placeholder, u3 has its single day
	require.Len(t, result.Records, 4)
	assert.Equal(t, "2024-05-14", result.Records[1].Date.String())
	assert.Equal(t, attendance.CategoryRest, result.Records[1].CategoricalStatus)
	assert.Equal(t, attendance.StatusWarning, result.Records[2].Status)
	assert.Equal(t, generic.UserID("u3"), result.Records[3].UserID)

	assert.Equal(t, []generic.UserID{"u1"}, result.ViolatingUserIDs)
	assert.Equal(t, 1, result.InitialViolationCount)

	require.Len(t, result.Summaries, 2)
	assert.Equal(t, 480, result.Summaries[0].BasicWorkMinutes)
	assert.Equal(t, 660, result.Summaries[1].TotalWorkMinutes)
	assert.Equal(t, 180, result.Summaries[1].OvertimeMinutes)

	for _, r := range result.Records {
		requireInvariants(t, r)
	}
}

func TestPipeline_DropsInactiveUsers(t *testing.T) {
	punches := []attendance.RawPunch{
		punch(t, "u1", "2024-05-13", "09:00", "18:00"),
		punch(t, "ghost", "2024-05-13", "", ""),
	}

	pipeline := attendance.Pipeline{DropInactiveUsers: true}
	result := pipeline.Process(punches, contextWith())

	require.Len(t, result.Records, 1)
	assert.Equal(t, generic.UserID("u1"), result.Records[0].UserID)

	// The empty workday was still flagged before dropping
	assert.Equal(t, []generic.UserID{"ghost"}, result.ViolatingUserIDs)
}
