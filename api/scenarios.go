/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	attendance data for demos. Each scenario goes through the Service, so the
	stored records are exactly what an import or synthesis would produce.

AVAILABLE SCENARIOS (week of Monday 2024-05-13):

	clean-week:       Two employees, standard days, nothing to review
	missing-punches:  One of each anomaly: missing out, missing in, reversed, too long
	overtime-week:    13h days over the weekly overtime cap, ready to calibrate
	holiday-work:     A holiday on Thursday with a half day worked on it
	synthesis-month:  A pending synthesis preview for May 2024

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Create policies and holidays
 3. Import punches or run a synthesis through the Service

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "overtime-week"}

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Import, calibrate and synthesis endpoints
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/generic"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "clean-week",
		Name:        "Clean Week",
		Description: "Two employees working standard days, no anomalies",
		Category:    "import",
	},
	{
		ID:          "missing-punches",
		Name:        "Missing Punches",
		Description: "Missing clock-out, missing clock-in, reversed punches and an implausible day",
		Category:    "import",
	},
	{
		ID:          "overtime-week",
		Name:        "Overtime Week",
		Description: "13-hour days pushing weekly overtime over the cap; run calibration",
		Category:    "calibration",
	},
	{
		ID:          "holiday-work",
		Name:        "Holiday Work",
		Description: "Company holiday on Thursday with a half day worked as special time",
		Category:    "import",
	},
	{
		ID:          "synthesis-month",
		Name:        "Synthesis Month",
		Description: "Pending synthesis preview for May 2024 with 160h targets",
		Category:    "synthesis",
	},
}

var scenarioWeek = []string{"2024-05-13", "2024-05-14", "2024-05-15", "2024-05-16", "2024-05-17"}

// ListScenarios returns available scenarios.
// GET /api/scenarios
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
// GET /api/scenarios/current
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	if current == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, ScenarioDTO{ID: current, Name: current})
}

// LoadScenario resets the database and loads a predefined scenario.
// POST /api/scenarios/load
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ScenarioID string `json:"scenario_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var load func(ctx context.Context, companyID string) error
	switch req.ScenarioID {
	case "clean-week":
		load = h.loadCleanWeekScenario
	case "missing-punches":
		load = h.loadMissingPunchesScenario
	case "overtime-week":
		load = h.loadOvertimeWeekScenario
	case "holiday-work":
		load = h.loadHolidayWorkScenario
	case "synthesis-month":
		load = h.loadSynthesisMonthScenario
	default:
		writeError(w, http.StatusBadRequest, "Unknown scenario", fmt.Errorf("scenario %q", req.ScenarioID))
		return
	}

	ctx := r.Context()
	if err := h.Backend.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	companyID := h.company(r)
	if err := load(ctx, companyID); err != nil {
		writeServiceError(w, "Failed to load scenario", err)
		return
	}

	h.mu.Lock()
	h.currentScenario = req.ScenarioID
	h.mu.Unlock()

	h.logger.Info("scenario loaded", zap.String("scenario", req.ScenarioID), zap.String("company_id", companyID))
	writeJSON(w, http.StatusOK, map[string]any{"status": "loaded", "scenario": req.ScenarioID})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) loadCleanWeekScenario(ctx context.Context, companyID string) error {
	var punches []attendance.RawPunch
	for _, emp := range []struct{ id, name, dept string }{
		{"e-ann", "Ann Lee", "Engineering"},
		{"e-bo", "Bo Chen", "Support"},
	} {
		for _, d := range scenarioWeek {
			p, err := scenarioPunch(emp.id, emp.name, emp.dept, d, "08:55", "18:05")
			if err != nil {
				return err
			}
			punches = append(punches, p)
		}
	}
	_, err := h.Service.ImportPunches(ctx, companyID, punches)
	return err
}

func (h *Handler) loadMissingPunchesScenario(ctx context.Context, companyID string) error {
	days := []struct{ date, in, out string }{
		{"2024-05-13", "09:00", "18:00"},
		{"2024-05-14", "09:00", ""},      // missing clock-out
		{"2024-05-15", "", "18:00"},      // missing clock-in
		{"2024-05-16", "18:00", "09:00"}, // reversed
		{"2024-05-17", "05:00", "23:30"}, // longer than the sanity ceiling
	}
	punches := make([]attendance.RawPunch, 0, len(days))
	for _, d := range days {
		p, err := scenarioPunch("e-cam", "Cam Diaz", "Warehouse", d.date, d.in, d.out)
		if err != nil {
			return err
		}
		punches = append(punches, p)
	}
	_, err := h.Service.ImportPunches(ctx, companyID, punches)
	return err
}

func (h *Handler) loadOvertimeWeekScenario(ctx context.Context, companyID string) error {
	policy := attendance.DefaultPolicy()
	policy.ID = ""
	policy.CompanyID = companyID
	policy.Name = "Standard 2024"
	policy.EffectiveDate = generic.NewTimePoint(2024, 1, 1)
	if _, err := h.Service.SavePolicy(ctx, policy); err != nil {
		return err
	}

	punches := make([]attendance.RawPunch, 0, len(scenarioWeek))
	for _, d := range scenarioWeek {
		p, err := scenarioPunch("e-dee", "Dee Park", "Operations", d, "08:00", "21:00")
		if err != nil {
			return err
		}
		punches = append(punches, p)
	}
	_, err := h.Service.ImportPunches(ctx, companyID, punches)
	return err
}

func (h *Handler) loadHolidayWorkScenario(ctx context.Context, companyID string) error {
	holiday := generic.Holiday{
		ID:        uuid.NewString(),
		CompanyID: companyID,
		Date:      generic.NewTimePoint(2024, 5, 16),
		Name:      "Founders Day",
	}
	if err := h.Holidays.SaveHoliday(ctx, holiday); err != nil {
		return err
	}

	punches := make([]attendance.RawPunch, 0, len(scenarioWeek))
	for _, d := range scenarioWeek {
		in, out := "09:00", "18:00"
		if d == holiday.Date.String() {
			out = "13:00"
		}
		p, err := scenarioPunch("e-eve", "Eve Moss", "Support", d, in, out)
		if err != nil {
			return err
		}
		punches = append(punches, p)
	}
	_, err := h.Service.ImportPunches(ctx, companyID, punches)
	return err
}

func (h *Handler) loadSynthesisMonthScenario(ctx context.Context, companyID string) error {
	_, err := h.Service.Synthesize(ctx, companyID, attendance.SynthesisRequest{
		Period: generic.MonthPeriod(2024, 5),
		Employees: []attendance.SynthesisEmployee{
			{ID: "e-fay", UserName: "Fay Ng", Department: "Finance"},
			{ID: "e-gus", UserName: "Gus Roy", Department: "Finance"},
		},
		Targets: []attendance.SyntheticTarget{
			{EmployeeID: "e-fay", RequiredRecognizedHours: 160},
			{EmployeeID: "e-gus", RequiredRecognizedHours: 152},
		},
		LeaveDates: map[generic.UserID][]generic.TimePoint{
			"e-gus": {generic.NewTimePoint(2024, 5, 20)},
		},
		Seed: 2024,
	})
	return err
}

func scenarioPunch(userID, name, dept, date, in, out string) (attendance.RawPunch, error) {
	d, err := generic.ParseDate(date)
	if err != nil {
		return attendance.RawPunch{}, err
	}
	return attendance.RawPunch{
		UserID:     generic.UserID(userID),
		UserName:   name,
		Department: dept,
		Date:       d,
		ClockIn:    in,
		ClockOut:   out,
	}, nil
}
