/*
errors.go - Centralized error types for the attendance engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Packages wrap these with fmt.Errorf("...: %w", err) and callers check
  them with errors.Is / errors.As.

ERROR CATEGORIES:
  1. Input errors - Malformed punches, dates, sheets (fatal to that record)
  2. Lookup errors - Missing records, policies, previews
  3. Workflow errors - Preview state, generation failures

Detected anomalies are NOT errors. They live in the record's status field so
callers decide whether a WARNING blocks anything.

SEE ALSO:
  - attendance/daily.go: Raises ClockParseError through ParseClockTime
  - api/handlers.go: Maps these errors to HTTP status codes
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidClockTime is returned when a punch cannot be parsed into minutes.
	ErrInvalidClockTime = errors.New("invalid clock time")

	// ErrInvalidDate is returned when a date is not YYYY-MM-DD.
	ErrInvalidDate = errors.New("invalid date")

	// ErrInvalidPeriod is returned when a period is malformed (end before start).
	ErrInvalidPeriod = errors.New("invalid period: end before start")

	// ErrInvalidStatus is returned for an unknown categorical status.
	ErrInvalidStatus = errors.New("invalid categorical status")

	// ErrInvalidView is returned for an unknown record view.
	ErrInvalidView = errors.New("invalid record view")

	// ErrInvalidSheet is returned when an uploaded workbook has no usable rows.
	ErrInvalidSheet = errors.New("invalid attendance sheet")

	// ErrInvalidPolicy is returned when a policy's fields are inconsistent.
	ErrInvalidPolicy = errors.New("invalid policy")

	// ErrNoPolicy is returned when no policy applies and no default was allowed.
	ErrNoPolicy = errors.New("no effective policy")

	// ErrPolicyNotFound is returned when a referenced policy doesn't exist.
	ErrPolicyNotFound = errors.New("policy not found")

	// ErrRecordNotFound is returned when a referenced day record doesn't exist.
	ErrRecordNotFound = errors.New("record not found")

	// ErrPreviewNotFound is returned when a synthesis preview doesn't exist.
	ErrPreviewNotFound = errors.New("synthesis preview not found")

	// ErrPreviewNotPending is returned when committing or discarding a preview
	// that was already committed or discarded.
	ErrPreviewNotPending = errors.New("synthesis preview is not pending")

	// ErrPreviewUnconverged is returned when committing a preview that still
	// has mismatched employees without forcing it.
	ErrPreviewUnconverged = errors.New("synthesis preview has unresolved mismatches")

	// ErrGenerationFailed is returned when the external generation call fails.
	ErrGenerationFailed = errors.New("attendance generation failed")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ClockParseError reports the raw value that failed to parse.
type ClockParseError struct {
	Field string // "clock_in", "clock_out", or empty when unknown
	Value string
}

func (e *ClockParseError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid clock time %q", e.Value)
	}
	return fmt.Sprintf("invalid %s %q", e.Field, e.Value)
}

func (e *ClockParseError) Unwrap() error { return ErrInvalidClockTime }

// SheetRowError points at the spreadsheet row that could not be imported.
type SheetRowError struct {
	Row    int // 1-based, as shown in the spreadsheet
	Reason string
	Err    error
}

func (e *SheetRowError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("row %d: %s: %v", e.Row, e.Reason, e.Err)
	}
	return fmt.Sprintf("row %d: %s", e.Row, e.Reason)
}

func (e *SheetRowError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrInvalidSheet
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidClockTime) ||
		errors.Is(err, ErrInvalidDate) ||
		errors.Is(err, ErrInvalidPeriod) ||
		errors.Is(err, ErrInvalidStatus) ||
		errors.Is(err, ErrInvalidSheet) ||
		errors.Is(err, ErrInvalidPolicy) ||
		errors.Is(err, ErrInvalidView)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrPolicyNotFound) ||
		errors.Is(err, ErrRecordNotFound) ||
		errors.Is(err, ErrPreviewNotFound)
}

// IsConflict returns true if the request clashes with the current state.
func IsConflict(err error) bool {
	return errors.Is(err, ErrPreviewNotPending) ||
		errors.Is(err, ErrPreviewUnconverged)
}
