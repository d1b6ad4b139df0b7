/*
Package attendance implements the attendance time engine.

PURPOSE:
  Turns raw clock punches into legally-bucketed work time, reconciles that
  time against date-versioned company policy, flags anomalies, and when no
  punches exist synthesizes plausible ones that reproduce a required total.

KEY CONCEPTS IN THIS FILE (types.go):
  - RawPunch: One imported clock-in/clock-out pair (immutable)
  - ComputedDayRecord: The engine's central entity, one per user per day
  - Status: Data-integrity flag set by the AnomalyDetector
  - CategoricalStatus: What kind of day it is (normal, rest, vacation, ...)
  - WeeklySummary: Derived basic / overtime / special buckets per ISO week

PIPELINE:
  RawPunch --PolicyResolver--> DailyLogProcessor --> AnomalyDetector
           --> GapFiller --> WeeklyAggregator / ComplianceCalibrator

  StatusChangeEngine and SyntheticAttendanceGenerator are side entrances
  used on manual edits and synthesis requests.

DESIGN PRINCIPLES:
  1. Purity: Engine components never touch storage and never mutate input
  2. Explicit policy: Every computation receives its policy as an argument
  3. Anomalies are data: WARNING/ERROR live in Status, never in errors

SEE ALSO:
  - policy.go: EffectiveDatedPolicy and PolicyResolver
  - daily.go: DailyLogProcessor and the break-tier rule
  - service.go: Binds the engine to persistence
*/
package attendance

import (
	"fmt"
	"strings"

	"github.com/warp/attendance-engine/generic"
)

// DailyOvertimeThresholdMinutes is the fixed 8-hour daily threshold.
const DailyOvertimeThresholdMinutes = 480

// =============================================================================
// RAW PUNCH - Imported clock data
// =============================================================================

// RawPunch is one user's clock data for one day, as imported. ClockIn and
// ClockOut are raw strings; parsing happens in the DailyLogProcessor so that a
// malformed value fails that record only.
type RawPunch struct {
	UserID     generic.UserID
	UserName   string
	Department string
	Title      string
	Date       generic.TimePoint
	ClockIn    string
	ClockOut   string
}

// =============================================================================
// STATUS - Integrity flag
// =============================================================================

type Status string

const (
	StatusNormal  Status = "NORMAL"
	StatusWarning Status = "WARNING"
	StatusError   Status = "ERROR"
	StatusMissing Status = "MISSING"
)

// =============================================================================
// CATEGORICAL STATUS - Kind of day
// =============================================================================

type CategoricalStatus string

const (
	CategoryNormal    CategoricalStatus = "NORMAL"
	CategoryRest      CategoricalStatus = "REST"
	CategorySpecial   CategoricalStatus = "SPECIAL"
	CategoryVacation  CategoricalStatus = "VACATION"
	CategoryTrip      CategoricalStatus = "TRIP"
	CategoryEducation CategoricalStatus = "EDUCATION"
	CategorySick      CategoricalStatus = "SICK"
	CategoryOther     CategoricalStatus = "OTHER"
)

var allCategories = []CategoricalStatus{
	CategoryNormal, CategoryRest, CategorySpecial, CategoryVacation,
	CategoryTrip, CategoryEducation, CategorySick, CategoryOther,
}

// ParseCategoricalStatus accepts any casing of a known status.
func ParseCategoricalStatus(s string) (CategoricalStatus, error) {
	candidate := CategoricalStatus(strings.ToUpper(strings.TrimSpace(s)))
	for _, c := range allCategories {
		if c == candidate {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %q", generic.ErrInvalidStatus, s)
}

// =============================================================================
// COMPUTED DAY RECORD - The engine's central entity
// =============================================================================

// ComputedDayRecord is one user's computed day.
//
// Invariants maintained by every constructor in this package:
//
//	ActualWorkMinutes = max(0, TotalDurationMinutes - BreakDurationMinutes)
//	OvertimeMinutes   = max(0, ActualWorkMinutes - 480)
type ComputedDayRecord struct {
	ID         generic.RecordID
	CompanyID  string
	UserID     generic.UserID
	UserName   string
	Department string
	Date       generic.TimePoint

	Start generic.ClockTime
	End   generic.ClockTime

	TotalDurationMinutes int
	BreakDurationMinutes int
	ActualWorkMinutes    int
	OvertimeMinutes      int

	Status            Status
	CategoricalStatus CategoricalStatus
	Note              string // Reason for a non-NORMAL Status

	Synthetic  bool // Generated, not punched
	Calibrated bool // Trimmed by the ComplianceCalibrator
}

// HasTimes reports whether the record carries any working time.
func (r ComputedDayRecord) HasTimes() bool {
	return r.Start.Valid && r.End.Valid && r.TotalDurationMinutes > 0
}

// =============================================================================
// WEEKLY SUMMARY - Derived, never edited
// =============================================================================

type WeeklySummary struct {
	UserID             generic.UserID
	WeekKey            string            // ISO week, e.g. "2024-W05"
	WeekStart          generic.TimePoint // Monday
	TotalWorkMinutes   int
	BasicWorkMinutes   int
	OvertimeMinutes    int
	SpecialWorkMinutes int
}

// =============================================================================
// SYNTHETIC TARGET - Input to the generator
// =============================================================================

type SyntheticTarget struct {
	EmployeeID              generic.UserID
	RequiredRecognizedHours int
}

// =============================================================================
// HELPERS
// =============================================================================

func nonNegative(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

// cloneRecords returns a copy so callers can never mutate engine input.
func cloneRecords(records []ComputedDayRecord) []ComputedDayRecord {
	out := make([]ComputedDayRecord, len(records))
	copy(out, records)
	return out
}
