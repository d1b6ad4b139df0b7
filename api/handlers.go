/*
handlers.go - HTTP API handlers for the attendance engine

PURPOSE:
  Exposes the attendance Service via REST API. Handles HTTP request/response,
  JSON and xlsx serialization, and delegates to the Service.

ENDPOINTS:
  Punches and records:
    POST   /api/punches/import          Import xlsx (multipart "file") or JSON punches
    GET    /api/records                 List records (?view=&user=&from=&to=)
    GET    /api/records/export          Same, as xlsx
    DELETE /api/records/{id}            Delete a record from every view
    POST   /api/records/{id}/status     Change categorical status
    GET    /api/violations              Users with non-NORMAL records

  Summaries:
    GET    /api/summaries/weekly        Weekly buckets (?view=&user=&from=&to=)
    GET    /api/summaries/weekly/export Same, as xlsx
    POST   /api/calibrate               Compute the calibrated view

  Policies and holidays:
    GET    /api/policies                List the company's policies
    POST   /api/policies                Create policy from JSON
    GET    /api/policies/resolve        Policy in force (?date=)
    DELETE /api/policies/{id}           Delete policy
    GET    /api/holidays                List holidays
    POST   /api/holidays                Create holiday
    DELETE /api/holidays/{id}           Delete holiday

  Synthesis:
    POST   /api/synthesis/preview       Run the repair loop, store a pending preview
    GET    /api/synthesis/{id}          Preview with its records
    POST   /api/synthesis/{id}/commit   Persist into the original view
    POST   /api/synthesis/{id}/discard  Drop the preview

  Scans:
    GET    /api/scans                   Recent anomaly scans (?limit=)
    POST   /api/scans                   Run a scan now

  Admin:
    GET    /healthz                     Database ping
    POST   /api/reset                   Clear every table (dev only)
    GET    /api/scenarios               Demo scenarios (see scenarios.go)
    GET    /api/scenarios/current       Last loaded scenario
    POST   /api/scenarios/load          Reset and load a scenario

COMPANY SCOPE:
  Every request works on the configured company unless ?company_id= is set.

ERROR HANDLING:
  Errors are returned as JSON {error, details} with appropriate HTTP status:
  - 400: Validation errors, invalid input (generic.IsClientError)
  - 404: Resource not found (generic.IsNotFound)
  - 409: Conflict, e.g. committing a discarded preview (generic.IsConflict)
  - 500: Internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - attendance/service.go: The workflows behind every endpoint
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/factory"
	"github.com/warp/attendance-engine/generic"
	"github.com/warp/attendance-engine/payroll"
	"github.com/warp/attendance-engine/sheet"
)

const (
	maxUploadBytes  = 32 << 20
	defaultScanList = 20
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// HolidayStore is the holiday administration the API needs.
type HolidayStore interface {
	SaveHoliday(ctx context.Context, h generic.Holiday) error
	DeleteHoliday(ctx context.Context, id string) error
	GetAllHolidays(ctx context.Context, companyID string) ([]generic.Holiday, error)
}

// Backend is the persistence the API administers directly.
type Backend interface {
	HolidayStore
	Ping(ctx context.Context) error
	Reset(ctx context.Context) error
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service       *attendance.Service
	Holidays      HolidayStore
	Backend       Backend
	PolicyFactory *factory.PolicyFactory

	// CompanyID is used when a request has no company_id parameter.
	CompanyID string
	// Rates adds pay to weekly summaries when set.
	Rates *payroll.Rates

	mu              sync.Mutex
	currentScenario string

	logger *zap.Logger
}

// NewHandler creates a new handler.
func NewHandler(service *attendance.Service, backend Backend, companyID string, rates *payroll.Rates, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		Service:       service,
		Holidays:      backend,
		Backend:       backend,
		PolicyFactory: factory.NewPolicyFactory(),
		CompanyID:     companyID,
		Rates:         rates,
		logger:        logger,
	}
}

func (h *Handler) company(r *http.Request) string {
	if c := strings.TrimSpace(r.URL.Query().Get("company_id")); c != "" {
		return c
	}
	return h.CompanyID
}

// =============================================================================
// IMPORT HANDLERS
// =============================================================================

// ImportPunches imports raw punches and recomputes the original view.
// POST /api/punches/import
func (h *Handler) ImportPunches(w http.ResponseWriter, r *http.Request) {
	var (
		punches   []attendance.RawPunch
		errs      []ImportErrorDTO
		positions []int // request index of each punch handed to the service
	)

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid upload", err)
			return
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusBadRequest, "Missing file field", err)
			return
		}
		defer file.Close()

		var rowErrs []*generic.SheetRowError
		punches, rowErrs, err = sheet.ReadPunches(file)
		if err != nil {
			writeServiceError(w, "Failed to read workbook", err)
			return
		}
		for _, e := range rowErrs {
			errs = append(errs, ImportErrorDTO{Row: e.Row, Error: e.Error()})
		}
	} else {
		var req ImportPunchesRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, maxUploadBytes)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
		for i, p := range req.Punches {
			if strings.TrimSpace(p.UserID) == "" {
				idx := i
				errs = append(errs, ImportErrorDTO{Index: &idx, Date: p.Date, Error: "user_id is required"})
				continue
			}
			date, err := generic.ParseDate(p.Date)
			if err != nil {
				idx := i
				errs = append(errs, ImportErrorDTO{Index: &idx, UserID: p.UserID, Error: err.Error()})
				continue
			}
			positions = append(positions, i)
			punches = append(punches, attendance.RawPunch{
				UserID:     generic.UserID(strings.TrimSpace(p.UserID)),
				UserName:   p.UserName,
				Department: p.Department,
				Title:      p.Title,
				Date:       date,
				ClockIn:    p.ClockIn,
				ClockOut:   p.ClockOut,
			})
		}
	}

	if len(punches) == 0 {
		writeJSON(w, http.StatusBadRequest, ImportResponse{
			ViolatingUserIDs: []string{},
			Errors:           nonNilErrors(errs),
		})
		return
	}

	result, err := h.Service.ImportPunches(r.Context(), h.company(r), punches)
	if err != nil {
		writeServiceError(w, "Failed to import punches", err)
		return
	}
	for _, e := range result.Errors {
		dto := ImportErrorDTO{
			UserID: string(e.UserID),
			Date:   e.Date.String(),
			Error:  e.Err.Error(),
		}
		// Workbook punches are identified by user and date only.
		if positions != nil {
			idx := positions[e.Index]
			dto.Index = &idx
		}
		errs = append(errs, dto)
	}

	writeJSON(w, http.StatusOK, ImportResponse{
		Imported:              result.Imported,
		Records:               result.Records,
		ViolatingUserIDs:      userIDStrings(result.ViolatingUserIDs),
		InitialViolationCount: result.InitialViolationCount,
		Errors:                nonNilErrors(errs),
	})
}

func nonNilErrors(errs []ImportErrorDTO) []ImportErrorDTO {
	if errs == nil {
		return []ImportErrorDTO{}
	}
	return errs
}

// =============================================================================
// RECORD HANDLERS
// =============================================================================

// ListRecords returns a view's records.
// GET /api/records?view=original|calibrated&user=&from=&to=
func (h *Handler) ListRecords(w http.ResponseWriter, r *http.Request) {
	view, filter, err := parseViewQuery(r)
	if err != nil {
		writeServiceError(w, "Invalid query", err)
		return
	}

	records, err := h.Service.Records(r.Context(), h.company(r), view, filter)
	if err != nil {
		writeServiceError(w, "Failed to list records", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"view":    view,
		"records": toRecordDTOs(records),
	})
}

// ExportRecords returns a view's records as a workbook.
// GET /api/records/export
func (h *Handler) ExportRecords(w http.ResponseWriter, r *http.Request) {
	view, filter, err := parseViewQuery(r)
	if err != nil {
		writeServiceError(w, "Invalid query", err)
		return
	}
	records, err := h.Service.Records(r.Context(), h.company(r), view, filter)
	if err != nil {
		writeServiceError(w, "Failed to list records", err)
		return
	}
	buf, err := sheet.WriteRecords(records)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to build workbook", err)
		return
	}
	writeWorkbook(w, fmt.Sprintf("records-%s.xlsx", view), buf.Bytes())
}

// DeleteRecord removes a record from every view.
// DELETE /api/records/{id}
func (h *Handler) DeleteRecord(w http.ResponseWriter, r *http.Request) {
	id := generic.RecordID(chi.URLParam(r, "id"))
	if err := h.Service.DeleteRecord(r.Context(), h.company(r), id); err != nil {
		writeServiceError(w, "Failed to delete record", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "deleted", "id": id})
}

// ChangeStatus applies a categorical status change.
// POST /api/records/{id}/status
func (h *Handler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	var req StatusChangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	target, err := attendance.ParseCategoricalStatus(req.Status)
	if err != nil {
		writeServiceError(w, "Invalid status", err)
		return
	}

	id := generic.RecordID(chi.URLParam(r, "id"))
	record, update, err := h.Service.ChangeStatus(r.Context(), h.company(r), id, target)
	if err != nil {
		writeServiceError(w, "Failed to change status", err)
		return
	}
	writeJSON(w, http.StatusOK, StatusChangeResponse{Record: toRecordDTO(*record), Seed: update.Seed})
}

// ListViolations returns users with a non-NORMAL record.
// GET /api/violations?user=&from=&to=
func (h *Handler) ListViolations(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		writeServiceError(w, "Invalid query", err)
		return
	}
	users, err := h.Service.Violations(r.Context(), h.company(r), filter)
	if err != nil {
		writeServiceError(w, "Failed to list violations", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"violating_user_ids": userIDStrings(users)})
}

// =============================================================================
// SUMMARY HANDLERS
// =============================================================================

// WeeklySummaries returns the weekly buckets of a view.
// GET /api/summaries/weekly
func (h *Handler) WeeklySummaries(w http.ResponseWriter, r *http.Request) {
	view, filter, err := parseViewQuery(r)
	if err != nil {
		writeServiceError(w, "Invalid query", err)
		return
	}
	summaries, err := h.Service.WeeklySummaries(r.Context(), h.company(r), view, filter)
	if err != nil {
		writeServiceError(w, "Failed to summarize", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"view":      view,
		"summaries": toSummaryDTOs(summaries, h.Rates),
	})
}

// ExportWeeklySummaries returns the weekly buckets as a workbook.
// GET /api/summaries/weekly/export
func (h *Handler) ExportWeeklySummaries(w http.ResponseWriter, r *http.Request) {
	view, filter, err := parseViewQuery(r)
	if err != nil {
		writeServiceError(w, "Invalid query", err)
		return
	}
	summaries, err := h.Service.WeeklySummaries(r.Context(), h.company(r), view, filter)
	if err != nil {
		writeServiceError(w, "Failed to summarize", err)
		return
	}
	buf, err := sheet.WriteWeeklySummaries(summaries, h.Rates)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to build workbook", err)
		return
	}
	writeWorkbook(w, fmt.Sprintf("weekly-%s.xlsx", view), buf.Bytes())
}

// Calibrate recomputes the calibrated view.
// POST /api/calibrate
func (h *Handler) Calibrate(w http.ResponseWriter, r *http.Request) {
	var req CalibrateRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
	}
	filter, err := filterFrom(req.UserID, req.From, req.To)
	if err != nil {
		writeServiceError(w, "Invalid filter", err)
		return
	}

	result, err := h.Service.Calibrate(r.Context(), h.company(r), filter)
	if err != nil {
		writeServiceError(w, "Failed to calibrate", err)
		return
	}
	writeJSON(w, http.StatusOK, toCalibrationResponse(result))
}

// =============================================================================
// POLICY HANDLERS
// =============================================================================

// ListPolicies returns the company's policies, oldest first.
// GET /api/policies
func (h *Handler) ListPolicies(w http.ResponseWriter, r *http.Request) {
	policies, err := h.Service.Policies(r.Context(), h.company(r))
	if err != nil {
		writeServiceError(w, "Failed to list policies", err)
		return
	}
	dtos := make([]factory.PolicyJSON, len(policies))
	for i, p := range policies {
		dtos[i] = h.PolicyFactory.ToJSON(p)
	}
	writeJSON(w, http.StatusOK, map[string]any{"policies": dtos})
}

// CreatePolicy creates or replaces a policy from JSON.
// POST /api/policies
func (h *Handler) CreatePolicy(w http.ResponseWriter, r *http.Request) {
	var pj factory.PolicyJSON
	if err := json.NewDecoder(r.Body).Decode(&pj); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if pj.CompanyID == "" {
		pj.CompanyID = h.company(r)
	}

	policy, err := h.PolicyFactory.FromJSON(pj)
	if err != nil {
		writeServiceError(w, "Invalid policy", err)
		return
	}
	saved, err := h.Service.SavePolicy(r.Context(), *policy)
	if err != nil {
		writeServiceError(w, "Failed to save policy", err)
		return
	}

	h.logger.Info("policy saved",
		zap.String("policy_id", string(saved.ID)),
		zap.String("company_id", saved.CompanyID),
		zap.String("effective_date", saved.EffectiveDate.String()),
	)
	writeJSON(w, http.StatusCreated, h.PolicyFactory.ToJSON(*saved))
}

// DeletePolicy removes a policy.
// DELETE /api/policies/{id}
func (h *Handler) DeletePolicy(w http.ResponseWriter, r *http.Request) {
	id := generic.PolicyID(chi.URLParam(r, "id"))
	if err := h.Service.DeletePolicy(r.Context(), id); err != nil {
		writeServiceError(w, "Failed to delete policy", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "deleted", "id": id})
}

// ResolvePolicy returns the policy in force on a date (today by default).
// GET /api/policies/resolve?date=
func (h *Handler) ResolvePolicy(w http.ResponseWriter, r *http.Request) {
	date := generic.Today()
	if v := r.URL.Query().Get("date"); v != "" {
		parsed, err := generic.ParseDate(v)
		if err != nil {
			writeServiceError(w, "Invalid date", err)
			return
		}
		date = parsed
	}

	policy, isDefault, err := h.Service.ResolvePolicy(r.Context(), h.company(r), date)
	if err != nil {
		writeServiceError(w, "Failed to resolve policy", err)
		return
	}
	writeJSON(w, http.StatusOK, ResolvedPolicyResponse{
		Date:      date.String(),
		IsDefault: isDefault,
		Policy:    h.PolicyFactory.ToJSON(policy),
	})
}

// =============================================================================
// HOLIDAY ENDPOINTS
// =============================================================================

// ListHolidays returns company and global holidays.
// GET /api/holidays
func (h *Handler) ListHolidays(w http.ResponseWriter, r *http.Request) {
	holidays, err := h.Holidays.GetAllHolidays(r.Context(), h.company(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get holidays", err)
		return
	}

	dtos := make([]HolidayDTO, 0, len(holidays))
	for _, hol := range holidays {
		dtos = append(dtos, toHolidayDTO(hol))
	}
	writeJSON(w, http.StatusOK, map[string]any{"holidays": dtos})
}

// CreateHoliday creates a new holiday.
// POST /api/holidays
func (h *Handler) CreateHoliday(w http.ResponseWriter, r *http.Request) {
	var req CreateHolidayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Date == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "Date and name are required", nil)
		return
	}
	date, err := generic.ParseDate(req.Date)
	if err != nil {
		writeServiceError(w, "Invalid date", err)
		return
	}

	holiday := generic.Holiday{
		ID:        uuid.NewString(),
		CompanyID: req.CompanyID,
		Date:      date,
		Name:      req.Name,
		Recurring: req.Recurring,
	}
	if err := h.Holidays.SaveHoliday(r.Context(), holiday); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create holiday", err)
		return
	}
	writeJSON(w, http.StatusCreated, toHolidayDTO(holiday))
}

// DeleteHoliday deletes a holiday.
// DELETE /api/holidays/{id}
func (h *Handler) DeleteHoliday(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Holidays.DeleteHoliday(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete holiday", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "deleted"})
}

// =============================================================================
// SYNTHESIS HANDLERS
// =============================================================================

// CreatePreview runs the repair loop and stores a pending preview.
// POST /api/synthesis/preview
func (h *Handler) CreatePreview(w http.ResponseWriter, r *http.Request) {
	var req SynthesisRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	companyID := h.company(r)
	synth, err := h.synthesisRequest(r.Context(), companyID, req)
	if err != nil {
		writeServiceError(w, "Invalid synthesis request", err)
		return
	}
	if len(synth.Employees) == 0 && len(synth.Targets) == 0 {
		writeError(w, http.StatusBadRequest, "At least one employee or target is required", nil)
		return
	}

	preview, err := h.Service.Synthesize(r.Context(), companyID, synth)
	if err != nil {
		writeServiceError(w, "Failed to synthesize", err)
		return
	}
	writeJSON(w, http.StatusCreated, toPreviewDTO(preview))
}

func (h *Handler) synthesisRequest(ctx context.Context, companyID string, req SynthesisRequestDTO) (attendance.SynthesisRequest, error) {
	var synth attendance.SynthesisRequest

	from, err := generic.ParseDate(req.From)
	if err != nil {
		return synth, fmt.Errorf("from: %w", err)
	}
	to, err := generic.ParseDate(req.To)
	if err != nil {
		return synth, fmt.Errorf("to: %w", err)
	}
	synth.Period = generic.Period{Start: from, End: to}

	for _, e := range req.Employees {
		synth.Employees = append(synth.Employees, attendance.SynthesisEmployee{
			ID: generic.UserID(e.ID), UserName: e.Name, Department: e.Department,
		})
	}
	for _, t := range req.Targets {
		if t.RequiredRecognizedHours < 0 {
			return synth, fmt.Errorf("%w: negative target for %s", generic.ErrInvalidPeriod, t.EmployeeID)
		}
		synth.Targets = append(synth.Targets, attendance.SyntheticTarget{
			EmployeeID: generic.UserID(t.EmployeeID), RequiredRecognizedHours: t.RequiredRecognizedHours,
		})
	}

	synth.LeaveDates = make(map[generic.UserID][]generic.TimePoint, len(req.LeaveDates))
	for user, dates := range req.LeaveDates {
		for _, d := range dates {
			date, err := generic.ParseDate(d)
			if err != nil {
				return synth, fmt.Errorf("leave date of %s: %w", user, err)
			}
			synth.LeaveDates[generic.UserID(user)] = append(synth.LeaveDates[generic.UserID(user)], date)
		}
	}

	if req.PolicyID != "" {
		policy, err := h.findPolicy(ctx, companyID, generic.PolicyID(req.PolicyID))
		if err != nil {
			return synth, err
		}
		synth.Policy = policy
	}

	if req.Seed != nil {
		synth.Seed = *req.Seed
	} else {
		synth.Seed = uint64(time.Now().UnixNano())
	}
	return synth, nil
}

func (h *Handler) findPolicy(ctx context.Context, companyID string, id generic.PolicyID) (attendance.EffectiveDatedPolicy, error) {
	policies, err := h.Service.Policies(ctx, companyID)
	if err != nil {
		return attendance.EffectiveDatedPolicy{}, err
	}
	for _, p := range policies {
		if p.ID == id {
			return p, nil
		}
	}
	return attendance.EffectiveDatedPolicy{}, fmt.Errorf("%w: %s", generic.ErrPolicyNotFound, id)
}

// GetPreview returns a preview with its records.
// GET /api/synthesis/{id}
func (h *Handler) GetPreview(w http.ResponseWriter, r *http.Request) {
	preview, err := h.Service.Preview(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, "Failed to get preview", err)
		return
	}
	writeJSON(w, http.StatusOK, toPreviewDTO(preview))
}

// CommitPreview persists a pending preview into the original view.
// POST /api/synthesis/{id}/commit
func (h *Handler) CommitPreview(w http.ResponseWriter, r *http.Request) {
	var req CommitRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
	}

	preview, err := h.Service.CommitPreview(r.Context(), chi.URLParam(r, "id"), req.Force)
	if err != nil {
		writeServiceError(w, "Failed to commit preview", err)
		return
	}
	writeJSON(w, http.StatusOK, toPreviewDTO(preview))
}

// DiscardPreview drops a pending preview.
// POST /api/synthesis/{id}/discard
func (h *Handler) DiscardPreview(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Service.DiscardPreview(r.Context(), id); err != nil {
		writeServiceError(w, "Failed to discard preview", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "discarded", "id": id})
}

// =============================================================================
// SCAN HANDLERS
// =============================================================================

// ListScans returns recent anomaly scans, newest first.
// GET /api/scans?limit=
func (h *Handler) ListScans(w http.ResponseWriter, r *http.Request) {
	limit := defaultScanList
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit", err)
			return
		}
		limit = n
	}

	scans, err := h.Service.Scans(r.Context(), limit)
	if err != nil {
		writeServiceError(w, "Failed to list scans", err)
		return
	}
	dtos := make([]ScanDTO, len(scans))
	for i, s := range scans {
		dtos[i] = toScanDTO(s)
	}
	writeJSON(w, http.StatusOK, map[string]any{"scans": dtos})
}

// RunScan runs the anomaly detector over stored records now.
// POST /api/scans
func (h *Handler) RunScan(w http.ResponseWriter, r *http.Request) {
	scan, err := h.Service.ScanAnomalies(r.Context(), h.company(r), attendance.TriggerManual)
	if err != nil {
		writeServiceError(w, "Failed to scan", err)
		return
	}
	writeJSON(w, http.StatusCreated, toScanDTO(*scan))
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// Health reports whether the database answers.
// GET /healthz
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.Backend.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "Database unavailable", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// ResetDatabase clears every table. Development only.
// POST /api/reset
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Backend.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.mu.Lock()
	h.currentScenario = ""
	h.mu.Unlock()

	h.logger.Warn("database reset", zap.String("request_id", middleware.GetReqID(r.Context())))
	writeJSON(w, http.StatusOK, map[string]any{"status": "reset"})
}

// =============================================================================
// REQUEST PARSING
// =============================================================================

func parseViewQuery(r *http.Request) (attendance.View, attendance.RecordFilter, error) {
	view, err := attendance.ParseView(r.URL.Query().Get("view"))
	if err != nil {
		return "", attendance.RecordFilter{}, err
	}
	filter, err := parseFilter(r)
	return view, filter, err
}

func parseFilter(r *http.Request) (attendance.RecordFilter, error) {
	q := r.URL.Query()
	return filterFrom(q.Get("user"), q.Get("from"), q.Get("to"))
}

func filterFrom(user, from, to string) (attendance.RecordFilter, error) {
	filter := attendance.RecordFilter{UserID: generic.UserID(strings.TrimSpace(user))}
	if from != "" {
		d, err := generic.ParseDate(from)
		if err != nil {
			return filter, fmt.Errorf("from: %w", err)
		}
		filter.From = d
	}
	if to != "" {
		d, err := generic.ParseDate(to)
		if err != nil {
			return filter, fmt.Errorf("to: %w", err)
		}
		filter.To = d
	}
	if !filter.From.IsZero() && !filter.To.IsZero() && filter.To.Before(filter.From) {
		return filter, generic.ErrInvalidPeriod
	}
	return filter, nil
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeServiceError maps engine errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, message string, err error) {
	switch {
	case generic.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	case generic.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case generic.IsConflict(err):
		writeError(w, http.StatusConflict, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

func writeWorkbook(w http.ResponseWriter, filename string, data []byte) {
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", strings.ReplaceAll(filename, ":", "-")))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
