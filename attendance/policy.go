package attendance

import (
	"fmt"
	"sort"

	"github.com/warp/attendance-engine/generic"
)

// =============================================================================
// EFFECTIVE-DATED POLICY - A versioned company work rule
// =============================================================================

// EffectiveDatedPolicy governs every date on or after EffectiveDate until a
// later policy of the same company supersedes it.
type EffectiveDatedPolicy struct {
	ID            generic.PolicyID
	CompanyID     string
	Name          string
	EffectiveDate generic.TimePoint

	StandardStart generic.ClockTime
	StandardEnd   generic.ClockTime // Earlier than StandardStart for night shifts

	BreakDeduction4h int // Deducted for 240..479 total minutes
	BreakDeduction8h int // Deducted for 480+ total minutes

	ClockInGraceMinutes int
	ClockInCutoff       generic.ClockTime // Optional: earliest counted clock-in
	ClockOutCutoff      generic.ClockTime // Optional: latest counted clock-out

	MaxWeeklyOvertimeMinutes int
	WeeklyBasicWorkMinutes   int
}

// DefaultPolicy is the hard-coded configuration used when a company has no
// policies at all.
func DefaultPolicy() EffectiveDatedPolicy {
	return EffectiveDatedPolicy{
		ID:                       "default",
		Name:                     "Default",
		StandardStart:            generic.ClockAt(9, 0),
		StandardEnd:              generic.ClockAt(18, 0),
		BreakDeduction4h:         30,
		BreakDeduction8h:         60,
		ClockInGraceMinutes:      0,
		MaxWeeklyOvertimeMinutes: 720,
		WeeklyBasicWorkMinutes:   2400,
	}
}

// IsOvernight reports whether the standard shift crosses midnight.
func (p EffectiveDatedPolicy) IsOvernight() bool {
	return p.StandardEnd.Minutes < p.StandardStart.Minutes
}

// StandardEndMinutes returns the standard end on the start day's axis, so an
// overnight shift ends after 1440.
func (p EffectiveDatedPolicy) StandardEndMinutes() int {
	if p.IsOvernight() {
		return p.StandardEnd.Minutes + generic.MinutesPerDay
	}
	return p.StandardEnd.Minutes
}

// StandardShiftMinutes is the gross length of the standard shift.
func (p EffectiveDatedPolicy) StandardShiftMinutes() int {
	return p.StandardEndMinutes() - p.StandardStart.Minutes
}

// Validate checks the policy is internally consistent.
func (p EffectiveDatedPolicy) Validate() error {
	switch {
	case p.EffectiveDate.IsZero():
		return fmt.Errorf("%w: effective date is required", generic.ErrInvalidPolicy)
	case !p.StandardStart.Valid || !p.StandardEnd.Valid:
		return fmt.Errorf("%w: standard start and end are required", generic.ErrInvalidPolicy)
	case p.StandardStart.Minutes == p.StandardEnd.Minutes:
		return fmt.Errorf("%w: standard start equals standard end", generic.ErrInvalidPolicy)
	case p.BreakDeduction4h < 0 || p.BreakDeduction8h < 0:
		return fmt.Errorf("%w: break deductions must be non-negative", generic.ErrInvalidPolicy)
	case p.BreakDeduction4h >= 240 || p.BreakDeduction8h >= 480:
		return fmt.Errorf("%w: break deduction exceeds its tier", generic.ErrInvalidPolicy)
	case p.BreakDeduction8h < p.BreakDeduction4h:
		// A smaller 8h break leaves actual minutes no duration can produce.
		return fmt.Errorf("%w: 8h break deduction is below the 4h one", generic.ErrInvalidPolicy)
	case p.ClockInGraceMinutes < 0:
		return fmt.Errorf("%w: grace minutes must be non-negative", generic.ErrInvalidPolicy)
	case p.MaxWeeklyOvertimeMinutes < 0 || p.WeeklyBasicWorkMinutes < 0:
		return fmt.Errorf("%w: weekly limits must be non-negative", generic.ErrInvalidPolicy)
	}
	return nil
}

// =============================================================================
// POLICY RESOLVER - Which version is in force on a date
// =============================================================================

// PolicyResolver selects the policy active on a date.
//
// RESOLUTION RULE:
//
//	Sort by EffectiveDate descending and take the first on or before the date.
//	If the date predates every policy, fall back to the OLDEST policy so
//	historical data stays computable. Strict turns that fallback into
//	ErrNoPolicy.
type PolicyResolver struct {
	Strict bool
}

// Resolve returns the active policy. An empty list yields ErrNoPolicy; the
// caller is expected to supply DefaultPolicy in that case.
func (r PolicyResolver) Resolve(date generic.TimePoint, policies []EffectiveDatedPolicy) (EffectiveDatedPolicy, error) {
	if len(policies) == 0 {
		return EffectiveDatedPolicy{}, generic.ErrNoPolicy
	}

	sorted := make([]EffectiveDatedPolicy, len(policies))
	copy(sorted, policies)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].EffectiveDate.After(sorted[j].EffectiveDate)
	})

	for _, p := range sorted {
		if p.EffectiveDate.BeforeOrEqual(date) {
			return p, nil
		}
	}

	if r.Strict {
		return EffectiveDatedPolicy{}, fmt.Errorf("%w: %s predates every policy", generic.ErrNoPolicy, date)
	}
	return sorted[len(sorted)-1], nil
}

// ResolveOrDefault never fails: anything Resolve cannot answer gets
// DefaultPolicy.
func (r PolicyResolver) ResolveOrDefault(date generic.TimePoint, policies []EffectiveDatedPolicy) EffectiveDatedPolicy {
	p, err := r.Resolve(date, policies)
	if err != nil {
		return DefaultPolicy()
	}
	return p
}
