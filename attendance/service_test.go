package attendance_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/generic"
	"github.com/warp/attendance-engine/store/memory"
)

const company = "acme"

func newService(t *testing.T) (*attendance.Service, *memory.Memory) {
	t.Helper()
	store := memory.New()
	return attendance.NewService(store, generic.NoHolidays{}, nil, nil, attendance.Options{}), store
}

func longWeek(t *testing.T, user string) []attendance.RawPunch {
	var punches []attendance.RawPunch
	for _, d := range week20 {
		punches = append(punches, punch(t, user, d, "08:00", "21:00"))
	}
	return punches
}

// =============================================================================
// IMPORT AND QUERIES
// =============================================================================

func TestService_ImportPunches(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	_, err := svc.ImportPunches(ctx, company, nil)
	assert.ErrorIs(t, err, generic.ErrInvalidSheet)

	result, err := svc.ImportPunches(ctx, company, []attendance.RawPunch{
		punch(t, "u1", "2024-05-13", "09:00", "18:00"),
		punch(t, "u1", "2024-05-15", "09:00", ""),
		punch(t, "u2", "2024-05-13", "nope", "18:00"),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Imported)
	assert.Equal(t, 3, result.Records)
	assert.Equal(t, []generic.UserID{"u1"}, result.ViolatingUserIDs)
	require.Len(t, result.Errors, 1)

	records, err := svc.Records(ctx, company, attendance.ViewOriginal, attendance.RecordFilter{UserID: "u1"})
	require.NoError(t, err)
	require.Len(t, records, 3)
	for _, r := range records {
		assert.NotEmpty(t, r.ID)
	}
	assert.Equal(t, attendance.PlaceholderID("u1", date(t, "2024-05-14")), records[1].ID)

	violations, err := svc.Violations(ctx, company, attendance.RecordFilter{})
	require.NoError(t, err)
	assert.Equal(t, []generic.UserID{"u1"}, violations)
}

func TestService_ReimportReplacesScope(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	_, err := svc.ImportPunches(ctx, company, []attendance.RawPunch{punch(t, "u1", "2024-05-13", "09:00", "")})
	require.NoError(t, err)

	// WHEN: The corrected punch is imported again
	_, err = svc.ImportPunches(ctx, company, []attendance.RawPunch{punch(t, "u1", "2024-05-13", "09:00", "18:00")})
	require.NoError(t, err)

	// THEN: One record, now normal
	records, err := svc.Records(ctx, company, attendance.ViewOriginal, attendance.RecordFilter{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, attendance.StatusNormal, records[0].Status)
	assert.Equal(t, 480, records[0].ActualWorkMinutes)
}

func TestService_CompaniesDoNotShareRecords(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	// GIVEN: The same user id and day imported under two companies
	_, err := svc.ImportPunches(ctx, "acme", []attendance.RawPunch{punch(t, "u1", "2024-05-13", "09:00", "18:00")})
	require.NoError(t, err)
	_, err = svc.ImportPunches(ctx, "globex", []attendance.RawPunch{punch(t, "u1", "2024-05-13", "10:00", "11:00")})
	require.NoError(t, err)

	// THEN: Each company keeps its own record
	acme, err := svc.Records(ctx, "acme", attendance.ViewOriginal, attendance.RecordFilter{})
	require.NoError(t, err)
	require.Len(t, acme, 1)
	assert.Equal(t, 480, acme[0].ActualWorkMinutes)
	assert.Equal(t, "acme", acme[0].CompanyID)

	globex, err := svc.Records(ctx, "globex", attendance.ViewOriginal, attendance.RecordFilter{})
	require.NoError(t, err)
	require.Len(t, globex, 1)
	assert.Equal(t, 60, globex[0].ActualWorkMinutes)

	// THEN: Scans and edits stay inside the company
	scan, err := svc.ScanAnomalies(ctx, "acme", attendance.TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, 1, scan.RecordCount)

	err = svc.DeleteRecord(ctx, "globex", acme[0].ID)
	assert.ErrorIs(t, err, generic.ErrRecordNotFound)
	_, _, err = svc.ChangeStatus(ctx, "globex", acme[0].ID, attendance.CategoryVacation)
	assert.ErrorIs(t, err, generic.ErrRecordNotFound)

	_, err = svc.Calibrate(ctx, "globex", attendance.RecordFilter{})
	require.NoError(t, err)
	calibrated, err := svc.Records(ctx, "acme", attendance.ViewCalibrated, attendance.RecordFilter{})
	require.NoError(t, err)
	assert.Empty(t, calibrated)
}

func TestService_WeeklySummariesPerView(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	_, err := svc.ImportPunches(ctx, company, longWeek(t, "u1"))
	require.NoError(t, err)

	original, err := svc.WeeklySummaries(ctx, company, attendance.ViewOriginal, attendance.RecordFilter{})
	require.NoError(t, err)
	require.Len(t, original, 1)
	assert.Equal(t, 1200, original[0].OvertimeMinutes)

	// Nothing calibrated yet
	calibrated, err := svc.WeeklySummaries(ctx, company, attendance.ViewCalibrated, attendance.RecordFilter{})
	require.NoError(t, err)
	assert.Empty(t, calibrated)
}

// =============================================================================
// CALIBRATION
// =============================================================================

func TestService_CalibrateWritesSeparateView(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	_, err := svc.ImportPunches(ctx, company, longWeek(t, "u1"))
	require.NoError(t, err)

	result, err := svc.Calibrate(ctx, company, attendance.RecordFilter{})
	require.NoError(t, err)
	assert.Equal(t, 480, result.RemovedMinutes())

	calibrated, err := svc.WeeklySummaries(ctx, company, attendance.ViewCalibrated, attendance.RecordFilter{})
	require.NoError(t, err)
	assert.Equal(t, 720, calibrated[0].OvertimeMinutes)

	// THEN: The original view is untouched
	original, err := svc.Records(ctx, company, attendance.ViewOriginal, attendance.RecordFilter{})
	require.NoError(t, err)
	for _, r := range original {
		assert.Equal(t, "21:00", r.End.String())
		assert.False(t, r.Calibrated)
	}
}

func TestService_CalibrateUsesCompanyPolicy(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	policy := policyFrom(t, "2024-01-01")
	policy.ID = ""
	policy.CompanyID = company
	policy.MaxWeeklyOvertimeMinutes = 1200
	_, err := svc.SavePolicy(ctx, policy)
	require.NoError(t, err)

	_, err = svc.ImportPunches(ctx, company, longWeek(t, "u1"))
	require.NoError(t, err)

	result, err := svc.Calibrate(ctx, company, attendance.RecordFilter{})
	require.NoError(t, err)
	assert.Zero(t, result.RemovedMinutes())
}

// =============================================================================
// MANUAL EDITS
// =============================================================================

func TestService_ChangeStatus(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	_, err := svc.ImportPunches(ctx, company, []attendance.RawPunch{punch(t, "u1", "2024-05-13", "09:00", "")})
	require.NoError(t, err)
	records, err := svc.Records(ctx, company, attendance.ViewOriginal, attendance.RecordFilter{})
	require.NoError(t, err)
	id := records[0].ID

	updated, update, err := svc.ChangeStatus(ctx, company, id, attendance.CategoryTrip)
	require.NoError(t, err)
	assert.Equal(t, attendance.StatusNormal, updated.Status)
	assert.Equal(t, 480, updated.ActualWorkMinutes)
	assert.Equal(t, id, update.RecordID)

	stored, err := svc.Records(ctx, company, attendance.ViewOriginal, attendance.RecordFilter{})
	require.NoError(t, err)
	assert.Equal(t, attendance.CategoryTrip, stored[0].CategoricalStatus)

	_, _, err = svc.ChangeStatus(ctx, company, "missing", attendance.CategoryTrip)
	assert.ErrorIs(t, err, generic.ErrRecordNotFound)
	assert.True(t, generic.IsNotFound(err))
}

func TestService_DeleteRecord(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	_, err := svc.ImportPunches(ctx, company, longWeek(t, "u1"))
	require.NoError(t, err)
	_, err = svc.Calibrate(ctx, company, attendance.RecordFilter{})
	require.NoError(t, err)

	records, err := svc.Records(ctx, company, attendance.ViewOriginal, attendance.RecordFilter{})
	require.NoError(t, err)
	friday := records[4]

	require.NoError(t, svc.DeleteRecord(ctx, company, friday.ID))

	// THEN: Gone from both views
	for _, view := range []attendance.View{attendance.ViewOriginal, attendance.ViewCalibrated} {
		left, err := svc.Records(ctx, company, view, attendance.RecordFilter{})
		require.NoError(t, err)
		assert.Len(t, left, 4, view)
	}
	assert.ErrorIs(t, svc.DeleteRecord(ctx, company, friday.ID), generic.ErrRecordNotFound)
}

// =============================================================================
// POLICIES
// =============================================================================

func TestService_Policies(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	// GIVEN: No policy yet, the default applies
	p, isDefault, err := svc.ResolvePolicy(ctx, company, date(t, "2024-05-13"))
	require.NoError(t, err)
	assert.True(t, isDefault)
	assert.Equal(t, attendance.DefaultPolicy(), p)

	invalid := policyFrom(t, "2024-01-01")
	invalid.StandardEnd = invalid.StandardStart
	_, err = svc.SavePolicy(ctx, invalid)
	assert.ErrorIs(t, err, generic.ErrInvalidPolicy)

	policy := policyFrom(t, "2024-01-01")
	policy.ID = ""
	policy.CompanyID = company
	saved, err := svc.SavePolicy(ctx, policy)
	require.NoError(t, err)
	assert.NotEmpty(t, saved.ID)

	p, isDefault, err = svc.ResolvePolicy(ctx, company, date(t, "2024-05-13"))
	require.NoError(t, err)
	assert.False(t, isDefault)
	assert.Equal(t, saved.ID, p.ID)

	list, err := svc.Policies(ctx, company)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, svc.DeletePolicy(ctx, saved.ID))
	assert.ErrorIs(t, svc.DeletePolicy(ctx, saved.ID), generic.ErrPolicyNotFound)
}

// =============================================================================
// SYNTHESIS PREVIEWS
// =============================================================================

func synthesisFor(targets ...attendance.SyntheticTarget) attendance.SynthesisRequest {
	return attendance.SynthesisRequest{Period: may2024(), Targets: targets, Seed: 1}
}

func TestService_SynthesizeAndCommit(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	preview, err := svc.Synthesize(ctx, company, synthesisFor(attendance.SyntheticTarget{EmployeeID: "u1", RequiredRecognizedHours: 160}))
	require.NoError(t, err)
	assert.Equal(t, attendance.PreviewPending, preview.Status)
	assert.Equal(t, attendance.TerminationConverged, preview.Termination)
	require.Len(t, preview.Verifications, 1)
	assert.Equal(t, 160, preview.Verifications[0].RecognizedHours)

	// THEN: Nothing in the original view before approval
	original, err := svc.Records(ctx, company, attendance.ViewOriginal, attendance.RecordFilter{})
	require.NoError(t, err)
	assert.Empty(t, original)

	loaded, err := svc.Preview(ctx, preview.ID)
	require.NoError(t, err)
	assert.Len(t, loaded.Records, 23)

	committed, err := svc.CommitPreview(ctx, preview.ID, false)
	require.NoError(t, err)
	assert.Equal(t, attendance.PreviewCommitted, committed.Status)

	original, err = svc.Records(ctx, company, attendance.ViewOriginal, attendance.RecordFilter{})
	require.NoError(t, err)
	assert.Len(t, original, 23)
	for _, r := range original {
		assert.True(t, r.Synthetic)
		assert.NotEmpty(t, r.ID)
	}

	_, err = svc.CommitPreview(ctx, preview.ID, false)
	assert.ErrorIs(t, err, generic.ErrPreviewNotPending)
	assert.True(t, generic.IsConflict(err))
}

func TestService_UnconvergedPreviewNeedsForce(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	preview, err := svc.Synthesize(ctx, company, synthesisFor(attendance.SyntheticTarget{EmployeeID: "u1", RequiredRecognizedHours: 400}))
	require.NoError(t, err)
	assert.Equal(t, attendance.TerminationMaxRetriesExhausted, preview.Termination)
	assert.Equal(t, 4, preview.Attempt)
	assert.Equal(t, []generic.UserID{"u1"}, preview.Mismatched)

	_, err = svc.CommitPreview(ctx, preview.ID, false)
	assert.ErrorIs(t, err, generic.ErrPreviewUnconverged)

	_, err = svc.CommitPreview(ctx, preview.ID, true)
	require.NoError(t, err)
}

func TestService_DiscardPreview(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t)

	preview, err := svc.Synthesize(ctx, company, synthesisFor(attendance.SyntheticTarget{EmployeeID: "u1", RequiredRecognizedHours: 160}))
	require.NoError(t, err)

	require.NoError(t, svc.DiscardPreview(ctx, preview.ID))

	left, err := store.ListRecords(ctx, attendance.PreviewView(preview.ID), attendance.RecordFilter{})
	require.NoError(t, err)
	assert.Empty(t, left)

	loaded, err := svc.Preview(ctx, preview.ID)
	require.NoError(t, err)
	assert.Equal(t, attendance.PreviewDiscarded, loaded.Status)

	_, err = svc.CommitPreview(ctx, preview.ID, true)
	assert.ErrorIs(t, err, generic.ErrPreviewNotPending)

	_, err = svc.Preview(ctx, "nope")
	assert.ErrorIs(t, err, generic.ErrPreviewNotFound)
}

func TestService_SynthesizeRejectsBadPeriod(t *testing.T) {
	svc, _ := newService(t)
	req := synthesisFor()
	req.Period = generic.Period{}

	_, err := svc.Synthesize(context.Background(), company, req)
	assert.ErrorIs(t, err, generic.ErrInvalidPeriod)
}

// =============================================================================
// ANOMALY SCANS
// =============================================================================

func TestService_ScanAnomalies(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	_, err := svc.ImportPunches(ctx, company, []attendance.RawPunch{
		punch(t, "u1", "2024-05-13", "09:00", ""),
		punch(t, "u2", "2024-05-13", "09:00", "18:00"),
	})
	require.NoError(t, err)

	scan, err := svc.ScanAnomalies(ctx, company, "manual")
	require.NoError(t, err)
	assert.Equal(t, 2, scan.RecordCount)
	assert.Equal(t, 1, scan.ViolationCount)
	assert.Equal(t, []generic.UserID{"u1"}, scan.ViolatingUserIDs)

	_, err = svc.ScanAnomalies(ctx, company, "scheduled")
	require.NoError(t, err)

	scans, err := svc.Scans(ctx, 1)
	require.NoError(t, err)
	require.Len(t, scans, 1)
	assert.Equal(t, "scheduled", scans[0].Trigger)
}
