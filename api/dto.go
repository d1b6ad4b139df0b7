/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

TYPES:
  Records:
    RecordDTO, StatusChangeRequest, StatusChangeResponse

  Import:
    PunchDTO, ImportPunchesRequest, ImportResponse, ImportErrorDTO

  Summaries:
    WeeklySummaryDTO, PayDTO, CalibrateRequest, CalibrationResponse

  Policy:
    factory.PolicyJSON is used as-is; ResolvedPolicyResponse adds isDefault

  Synthesis:
    SynthesisRequestDTO, PreviewDTO, VerificationDTO, CommitRequest

  Holidays, scans and scenarios:
    HolidayDTO, CreateHolidayRequest, ScanDTO, ScenarioDTO

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/policy.go: PolicyJSON type
*/
package api

import (
	"time"

	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/factory"
	"github.com/warp/attendance-engine/generic"
	"github.com/warp/attendance-engine/payroll"
)

// =============================================================================
// RECORDS
// =============================================================================

// RecordDTO represents a computed day record in API responses.
type RecordDTO struct {
	ID                string `json:"id"`
	UserID            string `json:"user_id"`
	UserName          string `json:"user_name,omitempty"`
	Department        string `json:"department,omitempty"`
	Date              string `json:"date"`
	ClockIn           string `json:"clock_in"`
	ClockOut          string `json:"clock_out"`
	TotalMinutes      int    `json:"total_minutes"`
	BreakMinutes      int    `json:"break_minutes"`
	ActualMinutes     int    `json:"actual_minutes"`
	OvertimeMinutes   int    `json:"overtime_minutes"`
	RecognizedHours   int    `json:"recognized_hours"`
	Hours             string `json:"hours"`
	Status            string `json:"status"`
	CategoricalStatus string `json:"categorical_status"`
	Note              string `json:"note,omitempty"`
	Synthetic         bool   `json:"synthetic"`
	Calibrated        bool   `json:"calibrated"`
}

// StatusChangeRequest is the body of POST /api/records/{id}/status.
type StatusChangeRequest struct {
	Status string `json:"status"`
}

// StatusChangeResponse carries the updated record and the regeneration seed.
type StatusChangeResponse struct {
	Record RecordDTO `json:"record"`
	Seed   uint64    `json:"seed,omitempty"`
}

// =============================================================================
// IMPORT
// =============================================================================

// PunchDTO is one raw punch in a JSON import.
type PunchDTO struct {
	UserID     string `json:"user_id"`
	UserName   string `json:"user_name"`
	Department string `json:"department"`
	Title      string `json:"title"`
	Date       string `json:"date"`
	ClockIn    string `json:"clock_in"`
	ClockOut   string `json:"clock_out"`
}

// ImportPunchesRequest is the JSON alternative to an xlsx upload.
type ImportPunchesRequest struct {
	Punches []PunchDTO `json:"punches"`
}

// ImportErrorDTO is one rejected row or punch. Row is set for spreadsheet
// rows, Index for punches of the batch.
type ImportErrorDTO struct {
	Row    int    `json:"row,omitempty"`
	Index  *int   `json:"index,omitempty"`
	UserID string `json:"user_id,omitempty"`
	Date   string `json:"date,omitempty"`
	Error  string `json:"error"`
}

// ImportResponse summarizes an import.
type ImportResponse struct {
	Imported              int              `json:"imported"`
	Records               int              `json:"records"`
	ViolatingUserIDs      []string         `json:"violating_user_ids"`
	InitialViolationCount int              `json:"initial_violation_count"`
	Errors                []ImportErrorDTO `json:"errors"`
}

// =============================================================================
// SUMMARIES AND CALIBRATION
// =============================================================================

// PayDTO is a pay line rendered as decimal strings.
type PayDTO struct {
	Basic    string `json:"basic"`
	Overtime string `json:"overtime"`
	Special  string `json:"special"`
	Total    string `json:"total"`
}

// WeeklySummaryDTO represents one user-week.
type WeeklySummaryDTO struct {
	UserID          string  `json:"user_id"`
	Week            string  `json:"week"`
	WeekStart       string  `json:"week_start"`
	TotalMinutes    int     `json:"total_minutes"`
	BasicMinutes    int     `json:"basic_minutes"`
	OvertimeMinutes int     `json:"overtime_minutes"`
	SpecialMinutes  int     `json:"special_minutes"`
	BasicHours      int     `json:"basic_hours"`
	OvertimeHours   int     `json:"overtime_hours"`
	SpecialHours    int     `json:"special_hours"`
	OvertimeDisplay string  `json:"overtime_display"`
	Pay             *PayDTO `json:"pay,omitempty"`
}

// CalibrateRequest narrows POST /api/calibrate. Empty fields match all.
type CalibrateRequest struct {
	UserID string `json:"user_id"`
	From   string `json:"from"`
	To     string `json:"to"`
}

// AdjustmentDTO is one trimmed record.
type AdjustmentDTO struct {
	RecordID       string `json:"record_id"`
	UserID         string `json:"user_id"`
	Date           string `json:"date"`
	Week           string `json:"week"`
	RemovedMinutes int    `json:"removed_minutes"`
}

// WeekCalibrationDTO is the before/after overtime of one week.
type WeekCalibrationDTO struct {
	UserID         string `json:"user_id"`
	Week           string `json:"week"`
	CapMinutes     int    `json:"cap_minutes"`
	OvertimeBefore int    `json:"overtime_before"`
	OvertimeAfter  int    `json:"overtime_after"`
}

// CalibrationResponse summarizes a calibration run.
type CalibrationResponse struct {
	Records        int                  `json:"records"`
	RemovedMinutes int                  `json:"removed_minutes"`
	Adjustments    []AdjustmentDTO      `json:"adjustments"`
	Weeks          []WeekCalibrationDTO `json:"weeks"`
}

// =============================================================================
// POLICIES AND HOLIDAYS
// =============================================================================

// ResolvedPolicyResponse is the policy in force on a date.
type ResolvedPolicyResponse struct {
	Date      string             `json:"date"`
	IsDefault bool               `json:"is_default"`
	Policy    factory.PolicyJSON `json:"policy"`
}

// HolidayDTO represents a holiday.
type HolidayDTO struct {
	ID        string `json:"id"`
	CompanyID string `json:"company_id"`
	Date      string `json:"date"`
	Name      string `json:"name"`
	Recurring bool   `json:"recurring"`
}

// CreateHolidayRequest is the body of POST /api/holidays. An empty
// company_id makes the holiday global.
type CreateHolidayRequest struct {
	CompanyID string `json:"company_id"`
	Date      string `json:"date"`
	Name      string `json:"name"`
	Recurring bool   `json:"recurring"`
}

// =============================================================================
// SYNTHESIS
// =============================================================================

// EmployeeRefDTO names an employee to generate for.
type EmployeeRefDTO struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Department string `json:"department"`
}

// TargetDTO is an employee's required recognized hours.
type TargetDTO struct {
	EmployeeID              string `json:"employee_id"`
	RequiredRecognizedHours int    `json:"required_recognized_hours"`
}

// SynthesisRequestDTO is the body of POST /api/synthesis/preview. Without a
// policy_id the policy in force at from is used.
type SynthesisRequestDTO struct {
	From       string              `json:"from"`
	To         string              `json:"to"`
	Employees  []EmployeeRefDTO    `json:"employees"`
	Targets    []TargetDTO         `json:"targets"`
	LeaveDates map[string][]string `json:"leave_dates"`
	PolicyID   string              `json:"policy_id"`
	Seed       *uint64             `json:"seed"`
}

// VerificationDTO compares an employee's generated total with the target.
type VerificationDTO struct {
	EmployeeID              string `json:"employee_id"`
	RequiredRecognizedHours *int   `json:"required_recognized_hours"`
	RecognizedHours         int    `json:"recognized_hours"`
	DeltaMinutes            int    `json:"delta_minutes"`
	Matched                 bool   `json:"matched"`
}

// PreviewDTO represents a synthesis preview.
type PreviewDTO struct {
	ID              string            `json:"id"`
	CompanyID       string            `json:"company_id"`
	From            string            `json:"from"`
	To              string            `json:"to"`
	Status          string            `json:"status"`
	Termination     string            `json:"termination"`
	Attempt         int               `json:"attempt"`
	RepairRounds    int               `json:"repair_rounds"`
	MaxRepairRounds int               `json:"max_repair_rounds"`
	Mismatched      []string          `json:"mismatched"`
	Verifications   []VerificationDTO `json:"verifications"`
	Error           string            `json:"error,omitempty"`
	Records         []RecordDTO       `json:"records"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// CommitRequest is the optional body of POST /api/synthesis/{id}/commit.
type CommitRequest struct {
	Force bool `json:"force"`
}

// =============================================================================
// SCENARIOS
// =============================================================================

// ScenarioDTO describes a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// =============================================================================
// SCANS AND ERRORS
// =============================================================================

// ScanDTO represents one anomaly scan.
type ScanDTO struct {
	ID               string    `json:"id"`
	CompanyID        string    `json:"company_id"`
	Trigger          string    `json:"trigger"`
	RecordCount      int       `json:"record_count"`
	ViolationCount   int       `json:"violation_count"`
	ViolatingUserIDs []string  `json:"violating_user_ids"`
	ScannedAt        time.Time `json:"scanned_at"`
}

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toRecordDTO(r attendance.ComputedDayRecord) RecordDTO {
	return RecordDTO{
		ID:                string(r.ID),
		UserID:            string(r.UserID),
		UserName:          r.UserName,
		Department:        r.Department,
		Date:              r.Date.String(),
		ClockIn:           r.Start.String(),
		ClockOut:          r.End.String(),
		TotalMinutes:      r.TotalDurationMinutes,
		BreakMinutes:      r.BreakDurationMinutes,
		ActualMinutes:     r.ActualWorkMinutes,
		OvertimeMinutes:   r.OvertimeMinutes,
		RecognizedHours:   payroll.ToRecognizedHours(r.ActualWorkMinutes),
		Hours:             payroll.ToOneDecimalHours(r.ActualWorkMinutes),
		Status:            string(r.Status),
		CategoricalStatus: string(r.CategoricalStatus),
		Note:              r.Note,
		Synthetic:         r.Synthetic,
		Calibrated:        r.Calibrated,
	}
}

func toRecordDTOs(records []attendance.ComputedDayRecord) []RecordDTO {
	dtos := make([]RecordDTO, len(records))
	for i, r := range records {
		dtos[i] = toRecordDTO(r)
	}
	return dtos
}

func toSummaryDTOs(summaries []attendance.WeeklySummary, rates *payroll.Rates) []WeeklySummaryDTO {
	dtos := make([]WeeklySummaryDTO, len(summaries))
	for i, s := range summaries {
		dtos[i] = WeeklySummaryDTO{
			UserID:          string(s.UserID),
			Week:            s.WeekKey,
			WeekStart:       s.WeekStart.String(),
			TotalMinutes:    s.TotalWorkMinutes,
			BasicMinutes:    s.BasicWorkMinutes,
			OvertimeMinutes: s.OvertimeMinutes,
			SpecialMinutes:  s.SpecialWorkMinutes,
			BasicHours:      payroll.ToRecognizedHours(s.BasicWorkMinutes),
			OvertimeHours:   payroll.ToRecognizedHours(s.OvertimeMinutes),
			SpecialHours:    payroll.ToRecognizedHours(s.SpecialWorkMinutes),
			OvertimeDisplay: payroll.ToOneDecimalHours(s.OvertimeMinutes),
		}
		if rates != nil {
			line := rates.PayFor(s.BasicWorkMinutes, s.OvertimeMinutes, s.SpecialWorkMinutes)
			dtos[i].Pay = &PayDTO{
				Basic:    line.BasicPay.String(),
				Overtime: line.OvertimePay.String(),
				Special:  line.SpecialPay.String(),
				Total:    line.Total.String(),
			}
		}
	}
	return dtos
}

func toCalibrationResponse(result *attendance.CalibrationResult) CalibrationResponse {
	resp := CalibrationResponse{
		Records:        len(result.Records),
		RemovedMinutes: result.RemovedMinutes(),
		Adjustments:    make([]AdjustmentDTO, len(result.Adjustments)),
		Weeks:          make([]WeekCalibrationDTO, len(result.Weeks)),
	}
	for i, a := range result.Adjustments {
		resp.Adjustments[i] = AdjustmentDTO{
			RecordID:       string(a.RecordID),
			UserID:         string(a.UserID),
			Date:           a.Date.String(),
			Week:           a.WeekKey,
			RemovedMinutes: a.RemovedMinutes,
		}
	}
	for i, w := range result.Weeks {
		resp.Weeks[i] = WeekCalibrationDTO{
			UserID:         string(w.UserID),
			Week:           w.WeekKey,
			CapMinutes:     w.CapMinutes,
			OvertimeBefore: w.OvertimeBefore,
			OvertimeAfter:  w.OvertimeAfter,
		}
	}
	return resp
}

func toPreviewDTO(p *attendance.SynthesisPreview) PreviewDTO {
	dto := PreviewDTO{
		ID:              p.ID,
		CompanyID:       p.CompanyID,
		From:            p.Period.Start.String(),
		To:              p.Period.End.String(),
		Status:          string(p.Status),
		Termination:     string(p.Termination),
		Attempt:         p.Attempt,
		RepairRounds:    max(0, p.Attempt-1),
		MaxRepairRounds: p.MaxRepairRounds,
		Mismatched:      userIDStrings(p.Mismatched),
		Verifications:   make([]VerificationDTO, len(p.Verifications)),
		Error:           p.Error,
		Records:         toRecordDTOs(p.Records),
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}
	for i, v := range p.Verifications {
		dto.Verifications[i] = VerificationDTO{
			EmployeeID:              string(v.EmployeeID),
			RequiredRecognizedHours: v.RequiredRecognizedHours,
			RecognizedHours:         v.RecognizedHours,
			DeltaMinutes:            v.DeltaMinutes,
			Matched:                 v.Matched,
		}
	}
	return dto
}

func toScanDTO(s attendance.AnomalyScan) ScanDTO {
	return ScanDTO{
		ID:               s.ID,
		CompanyID:        s.CompanyID,
		Trigger:          s.Trigger,
		RecordCount:      s.RecordCount,
		ViolationCount:   s.ViolationCount,
		ViolatingUserIDs: userIDStrings(s.ViolatingUserIDs),
		ScannedAt:        s.ScannedAt,
	}
}

func toHolidayDTO(h generic.Holiday) HolidayDTO {
	return HolidayDTO{
		ID:        h.ID,
		CompanyID: h.CompanyID,
		Date:      h.Date.String(),
		Name:      h.Name,
		Recurring: h.Recurring,
	}
}

func userIDStrings(ids []generic.UserID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}
