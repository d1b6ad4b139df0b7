/*
scenarios_test.go - Tests for demo scenarios

PURPOSE:
	Tests that each scenario sets up the expected state through the same
	endpoints a client would use afterwards:
	- Records land in the original view
	- Anomalies are flagged
	- Calibration and holidays behave as described

These tests double as end-to-end checks of the HTTP surface.
*/
package api

import (
	"bytes"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadScenario(t *testing.T, router http.Handler, id string) {
	t.Helper()
	rec := do(t, router, http.MethodPost, "/api/scenarios/load", map[string]string{"scenario_id": id})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestScenarios_List(t *testing.T) {
	router := newTestRouter(t)

	rec := do(t, router, http.MethodGet, "/api/scenarios", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]ScenarioDTO](t, rec)
	assert.Len(t, list, len(scenarios))

	rec = do(t, router, http.MethodGet, "/api/scenarios/current", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "null", string(bytes.TrimSpace(rec.Body.Bytes())))

	rec = do(t, router, http.MethodPost, "/api/scenarios/load", map[string]string{"scenario_id": "nope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScenario_CleanWeek(t *testing.T) {
	router := newTestRouter(t)
	loadScenario(t, router, "clean-week")

	records := listRecords(t, router, "")
	assert.Len(t, records, 10)
	for _, r := range records {
		assert.Equal(t, "NORMAL", r.Status)
		assert.Equal(t, 490, r.ActualMinutes)
		assert.Equal(t, 10, r.OvertimeMinutes)
	}

	rec := do(t, router, http.MethodGet, "/api/violations", nil)
	assert.JSONEq(t, `{"violating_user_ids":[]}`, rec.Body.String())

	rec = do(t, router, http.MethodGet, "/api/scenarios/current", nil)
	assert.Equal(t, "clean-week", decode[ScenarioDTO](t, rec).ID)
}

func TestScenario_MissingPunches(t *testing.T) {
	router := newTestRouter(t)

	// GIVEN: Another scenario was loaded first
	loadScenario(t, router, "clean-week")
	loadScenario(t, router, "missing-punches")

	// THEN: Only the new scenario's employee remains
	rec := do(t, router, http.MethodGet, "/api/violations", nil)
	assert.JSONEq(t, `{"violating_user_ids":["e-cam"]}`, rec.Body.String())

	byDate := make(map[string]RecordDTO)
	for _, r := range listRecords(t, router, "") {
		assert.Equal(t, "e-cam", r.UserID)
		byDate[r.Date] = r
	}
	assert.Equal(t, "NORMAL", byDate["2024-05-13"].Status)
	assert.Equal(t, "WARNING", byDate["2024-05-14"].Status)
	assert.Equal(t, "WARNING", byDate["2024-05-15"].Status)
	assert.Equal(t, "ERROR", byDate["2024-05-17"].Status)
}

func TestScenario_OvertimeWeek(t *testing.T) {
	router := newTestRouter(t)
	loadScenario(t, router, "overtime-week")

	rec := do(t, router, http.MethodGet, "/api/policies", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Standard 2024")

	rec = do(t, router, http.MethodPost, "/api/calibrate", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 480, decode[CalibrationResponse](t, rec).RemovedMinutes)
}

func TestScenario_HolidayWork(t *testing.T) {
	router := newTestRouter(t)
	loadScenario(t, router, "holiday-work")

	rec := do(t, router, http.MethodGet, "/api/summaries/weekly", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	summaries := decode[struct {
		Summaries []WeeklySummaryDTO `json:"summaries"`
	}](t, rec).Summaries
	require.Len(t, summaries, 1)
	assert.Equal(t, 210, summaries[0].SpecialMinutes)
	assert.Equal(t, 4*480, summaries[0].BasicMinutes)
}

func TestScenario_SynthesisMonthAndReset(t *testing.T) {
	router := newTestRouter(t)
	loadScenario(t, router, "synthesis-month")

	// THEN: The preview is pending, nothing in the original view
	assert.Empty(t, listRecords(t, router, ""))

	rec := do(t, router, http.MethodPost, "/api/reset", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, router, http.MethodGet, "/api/scenarios/current", nil)
	assert.Equal(t, "null", string(bytes.TrimSpace(rec.Body.Bytes())))
}
