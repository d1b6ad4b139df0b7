/*
Package factory provides JSON to Go policy conversion.

PURPOSE:
  Converts JSON policy definitions into attendance.EffectiveDatedPolicy values
  and back. HR defines working-time rules in JSON (admin UI, config files,
  the HTTP API) and the factory produces the struct the engine resolves.

JSON SCHEMA:
  {
    "id": "office-2024",
    "company_id": "acme",
    "name": "Office hours 2024",
    "effective_date": "2024-01-01",
    "standard_start": "09:00",
    "standard_end": "18:00",
    "break_deduction_4h": 30,
    "break_deduction_8h": 60,
    "clock_in_grace_minutes": 10,
    "clock_in_cutoff": "08:00",
    "clock_out_cutoff": "22:00",
    "max_weekly_overtime_minutes": 720,
    "weekly_basic_work_minutes": 2400
  }

DEFAULTS:
  Missing fields take DefaultPolicy's values, so {"effective_date": "..."}
  alone is a valid policy. Cutoffs are optional and stay absent when omitted.

USAGE:
  factory := NewPolicyFactory()
  policy, err := factory.ParsePolicy(jsonString)

SEE ALSO:
  - attendance/policy.go: EffectiveDatedPolicy and its Validate rules
  - api/handlers.go: Policy endpoints use PolicyJSON as their wire format
*/
package factory

import (
	"encoding/json"
	"fmt"

	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/generic"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// PolicyJSON is the JSON representation of a policy. Pointer fields
// distinguish "omitted" from zero.
type PolicyJSON struct {
	ID                       string `json:"id,omitempty"`
	CompanyID                string `json:"company_id,omitempty"`
	Name                     string `json:"name,omitempty"`
	EffectiveDate            string `json:"effective_date"`
	StandardStart            string `json:"standard_start,omitempty"`
	StandardEnd              string `json:"standard_end,omitempty"`
	BreakDeduction4h         *int   `json:"break_deduction_4h,omitempty"`
	BreakDeduction8h         *int   `json:"break_deduction_8h,omitempty"`
	ClockInGraceMinutes      int    `json:"clock_in_grace_minutes,omitempty"`
	ClockInCutoff            string `json:"clock_in_cutoff,omitempty"`
	ClockOutCutoff           string `json:"clock_out_cutoff,omitempty"`
	MaxWeeklyOvertimeMinutes *int   `json:"max_weekly_overtime_minutes,omitempty"`
	WeeklyBasicWorkMinutes   *int   `json:"weekly_basic_work_minutes,omitempty"`
}

// =============================================================================
// POLICY FACTORY
// =============================================================================

// PolicyFactory converts JSON policies to Go structs.
type PolicyFactory struct{}

// NewPolicyFactory creates a new policy factory.
func NewPolicyFactory() *PolicyFactory {
	return &PolicyFactory{}
}

// ParsePolicy parses a JSON string into a validated policy.
func (f *PolicyFactory) ParsePolicy(jsonStr string) (*attendance.EffectiveDatedPolicy, error) {
	var pj PolicyJSON
	if err := json.Unmarshal([]byte(jsonStr), &pj); err != nil {
		return nil, fmt.Errorf("failed to parse policy JSON: %w", err)
	}
	return f.FromJSON(pj)
}

// ParsePolicies parses a JSON array of policies, e.g. a seed file.
func (f *PolicyFactory) ParsePolicies(data []byte) ([]attendance.EffectiveDatedPolicy, error) {
	var list []PolicyJSON
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("failed to parse policies JSON: %w", err)
	}
	policies := make([]attendance.EffectiveDatedPolicy, 0, len(list))
	for i, pj := range list {
		p, err := f.FromJSON(pj)
		if err != nil {
			return nil, fmt.Errorf("policy %d: %w", i, err)
		}
		policies = append(policies, *p)
	}
	return policies, nil
}

// FromJSON converts PolicyJSON to a validated EffectiveDatedPolicy.
func (f *PolicyFactory) FromJSON(pj PolicyJSON) (*attendance.EffectiveDatedPolicy, error) {
	policy := attendance.DefaultPolicy()
	policy.ID = generic.PolicyID(pj.ID)
	policy.CompanyID = pj.CompanyID
	policy.Name = pj.Name
	policy.ClockInGraceMinutes = pj.ClockInGraceMinutes

	date, err := generic.ParseDate(pj.EffectiveDate)
	if err != nil {
		return nil, fmt.Errorf("%w: effective_date: %w", generic.ErrInvalidPolicy, err)
	}
	policy.EffectiveDate = date

	clocks := []struct {
		field string
		value string
		dst   *generic.ClockTime
	}{
		{"standard_start", pj.StandardStart, &policy.StandardStart},
		{"standard_end", pj.StandardEnd, &policy.StandardEnd},
		{"clock_in_cutoff", pj.ClockInCutoff, &policy.ClockInCutoff},
		{"clock_out_cutoff", pj.ClockOutCutoff, &policy.ClockOutCutoff},
	}
	for _, c := range clocks {
		if c.value == "" {
			continue
		}
		parsed, err := generic.ParseClockTime(c.value)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", generic.ErrInvalidPolicy, c.field, err)
		}
		*c.dst = parsed
	}

	setInt(&policy.BreakDeduction4h, pj.BreakDeduction4h)
	setInt(&policy.BreakDeduction8h, pj.BreakDeduction8h)
	setInt(&policy.MaxWeeklyOvertimeMinutes, pj.MaxWeeklyOvertimeMinutes)
	setInt(&policy.WeeklyBasicWorkMinutes, pj.WeeklyBasicWorkMinutes)

	if err := policy.Validate(); err != nil {
		return nil, err
	}
	return &policy, nil
}

// ToJSON converts a policy to PolicyJSON. Absent cutoffs are omitted.
func (f *PolicyFactory) ToJSON(policy attendance.EffectiveDatedPolicy) PolicyJSON {
	pj := PolicyJSON{
		ID:                       string(policy.ID),
		CompanyID:                policy.CompanyID,
		Name:                     policy.Name,
		EffectiveDate:            policy.EffectiveDate.String(),
		StandardStart:            policy.StandardStart.String(),
		StandardEnd:              policy.StandardEnd.String(),
		BreakDeduction4h:         intPtr(policy.BreakDeduction4h),
		BreakDeduction8h:         intPtr(policy.BreakDeduction8h),
		ClockInGraceMinutes:      policy.ClockInGraceMinutes,
		MaxWeeklyOvertimeMinutes: intPtr(policy.MaxWeeklyOvertimeMinutes),
		WeeklyBasicWorkMinutes:   intPtr(policy.WeeklyBasicWorkMinutes),
	}
	if policy.ClockInCutoff.Valid {
		pj.ClockInCutoff = policy.ClockInCutoff.String()
	}
	if policy.ClockOutCutoff.Valid {
		pj.ClockOutCutoff = policy.ClockOutCutoff.String()
	}
	return pj
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func intPtr(v int) *int { return &v }
