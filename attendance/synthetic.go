package attendance

import (
	"context"
	"math/rand/v2"
	"strconv"

	"github.com/warp/attendance-engine/generic"
	"github.com/warp/attendance-engine/payroll"
)

// Offset distribution for naturalistic punches, in minutes from the standard
// times.
const (
	onTimeStartProbability = 0.7 // [-15, 0], else [+1, +10]
	shortEndProbability    = 0.8 // [0, +20], else [+21, +60]

	// DefaultDailyCeilingMinutes caps the actual work of one synthetic day.
	DefaultDailyCeilingMinutes = 720

	// targetJitterMinutes keeps each day's actual inside its rounding window.
	targetJitterMinutes = 20
)

// =============================================================================
// GENERATION REQUEST - One employee, one period
// =============================================================================

// GenerationRequest asks a Generator for one employee's records.
type GenerationRequest struct {
	EmployeeID generic.UserID
	UserName   string
	Department string

	Period     generic.Period
	LeaveDates []generic.TimePoint
	Policy     EffectiveDatedPolicy

	// RequiredRecognizedHours is nil when any plausible total is acceptable.
	RequiredRecognizedHours *int

	Calendar  generic.HolidayCalendar
	CompanyID string
	Seed      uint64
}

// EligibleDays are the period's working days that are not leave days.
func (r GenerationRequest) EligibleDays() []generic.TimePoint {
	leave := make(map[string]bool, len(r.LeaveDates))
	for _, d := range r.LeaveDates {
		leave[d.String()] = true
	}
	var days []generic.TimePoint
	for _, d := range r.Period.Workdays(r.Calendar, r.CompanyID) {
		if !leave[d.String()] {
			days = append(days, d)
		}
	}
	return days
}

// Generator produces candidate records for one employee. The repair loop
// calls it sequentially; implementations must honor ctx.
type Generator interface {
	Generate(ctx context.Context, req GenerationRequest) ([]ComputedDayRecord, error)
}

// =============================================================================
// SYNTHETIC ATTENDANCE GENERATOR - Local Generator
// =============================================================================

// SyntheticAttendanceGenerator draws plausible punches around the policy's
// standard times for every eligible day.
//
// WITHOUT A TARGET:
//
//	start = stdStart + (70%: [-15, 0], else [+1, +10])
//	end   = stdEnd   + (80%: [0, +20], else [+21, +60])
//
// WITH A TARGET:
//
//	The required hours are spread over the eligible days (remainder on the
//	earliest days). The start draw is kept and the clock-out is derived so
//	the day's actual work rounds to its share. Shares above the daily
//	ceiling are clamped, which leaves the employee mismatched.
type SyntheticAttendanceGenerator struct {
	DailyCeilingMinutes int
}

// Generate implements Generator. It never fails on its own.
func (g *SyntheticAttendanceGenerator) Generate(ctx context.Context, req GenerationRequest) ([]ComputedDayRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := req.Period.Validate(); err != nil {
		return nil, err
	}

	days := req.EligibleDays()
	rng := newRand(seedFor(string(req.EmployeeID), req.Period.String(), strconv.FormatUint(req.Seed, 10)))
	policy := req.Policy

	var shares []int
	if req.RequiredRecognizedHours != nil {
		shares = spreadHours(*req.RequiredRecognizedHours, len(days))
	}

	var processor DailyLogProcessor
	records := make([]ComputedDayRecord, 0, len(days))
	for i, day := range days {
		base := ComputedDayRecord{
			UserID:            req.EmployeeID,
			UserName:          req.UserName,
			Department:        req.Department,
			Date:              day,
			Status:            StatusNormal,
			CategoricalStatus: CategoryNormal,
			Synthetic:         true,
		}

		startOffset := between(rng, 1, 10)
		if chance(rng, onTimeStartProbability) {
			startOffset = between(rng, -15, 0)
		}
		endOffset := between(rng, 21, 60)
		if chance(rng, shortEndProbability) {
			endOffset = between(rng, 0, 20)
		}
		start := nonNegative(policy.StandardStart.Minutes + startOffset)

		var end int
		if shares == nil {
			end = policy.StandardEndMinutes() + endOffset
		} else {
			if shares[i] == 0 {
				continue
			}
			actual := g.actualForShare(rng, shares[i])
			from, _ := RecognizedWindow(start, start, policy)
			end = from + DurationForActual(actual, policy)
		}

		records = append(records, processor.FromClockTimes(base, generic.Clock(start), generic.Clock(end), policy))
	}
	return records, nil
}

func (g *SyntheticAttendanceGenerator) ceiling() int {
	if g.DailyCeilingMinutes > 0 {
		return g.DailyCeilingMinutes
	}
	return DefaultDailyCeilingMinutes
}

// actualForShare picks an actual-work figure that rounds to hours, clamped to
// the daily ceiling.
func (g *SyntheticAttendanceGenerator) actualForShare(rng *rand.Rand, hours int) int {
	ceiling := g.ceiling()
	if hours*60 > ceiling {
		hours = ceiling / 60
	}
	lo := hours*60 - targetJitterMinutes
	hi := hours*60 + targetJitterMinutes
	if lo < 1 {
		lo = 1
	}
	return min(between(rng, lo, hi), ceiling)
}

// spreadHours splits total into n integer shares, remainder first.
func spreadHours(total, n int) []int {
	shares := make([]int, n)
	if n == 0 || total <= 0 {
		return shares
	}
	base, rem := total/n, total%n
	for i := range shares {
		shares[i] = base
		if i < rem {
			shares[i]++
		}
	}
	return shares
}

// =============================================================================
// VERIFICATION - Recognized hours against the target
// =============================================================================

// ToleranceMinutes is the allowed gap between recognized and required totals.
const ToleranceMinutes = 1

// Verification compares one employee's generated total with the target.
type Verification struct {
	EmployeeID              generic.UserID
	RequiredRecognizedHours *int
	RecognizedHours         int
	DeltaMinutes            int // recognized - required, in minutes
	Matched                 bool
}

// Verify sums per-day recognized hours and compares with the target.
func Verify(employeeID generic.UserID, records []ComputedDayRecord, required *int) Verification {
	v := Verification{EmployeeID: employeeID, RequiredRecognizedHours: required, Matched: true}
	for _, r := range records {
		if r.UserID == employeeID {
			v.RecognizedHours += payroll.ToRecognizedHours(r.ActualWorkMinutes)
		}
	}
	if required == nil {
		return v
	}
	v.DeltaMinutes = v.RecognizedHours*60 - *required*60
	v.Matched = abs(v.DeltaMinutes) <= ToleranceMinutes
	return v
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
