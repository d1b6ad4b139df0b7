package attendance

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/warp/attendance-engine/generic"
)

// DefaultMaxRepairRounds bounds the rounds after the initial generation.
const DefaultMaxRepairRounds = 3

// Termination says why a synthesis run stopped.
type Termination string

const (
	TerminationConverged           Termination = "converged"
	TerminationMaxRetriesExhausted Termination = "maxRetriesExhausted"
	TerminationGenerationFailed    Termination = "generationFailed"
	TerminationCancelled           Termination = "cancelled"
)

// =============================================================================
// SYNTHESIS REQUEST / RUN
// =============================================================================

// SynthesisEmployee identifies an employee to generate for.
type SynthesisEmployee struct {
	ID         generic.UserID
	UserName   string
	Department string
}

// SynthesisRequest covers every employee of one synthesis preview. Employees
// named only in Targets are included as well.
type SynthesisRequest struct {
	Period     generic.Period
	Employees  []SynthesisEmployee
	Targets    []SyntheticTarget
	LeaveDates map[generic.UserID][]generic.TimePoint
	Policy     EffectiveDatedPolicy
	Calendar   generic.HolidayCalendar
	CompanyID  string
	Seed       uint64
}

// employees merges Employees and Targets, keeping first-seen order.
func (r SynthesisRequest) employees() []SynthesisEmployee {
	seen := make(map[generic.UserID]bool)
	var out []SynthesisEmployee
	for _, e := range r.Employees {
		if !seen[e.ID] {
			seen[e.ID] = true
			out = append(out, e)
		}
	}
	for _, t := range r.Targets {
		if !seen[t.EmployeeID] {
			seen[t.EmployeeID] = true
			out = append(out, SynthesisEmployee{ID: t.EmployeeID})
		}
	}
	return out
}

func (r SynthesisRequest) targetFor(id generic.UserID) *int {
	for _, t := range r.Targets {
		if t.EmployeeID == id {
			hours := t.RequiredRecognizedHours
			return &hours
		}
	}
	return nil
}

// SynthesisRun is the observable state of the repair state machine.
type SynthesisRun struct {
	Attempt         int // Generation rounds executed; 1 is the initial round
	MaxRepairRounds int
	Records         map[generic.UserID][]ComputedDayRecord
	Verifications   map[generic.UserID]Verification
	Mismatched      []generic.UserID
	Termination     Termination
	Err             error
}

// Converged reports whether every targeted employee matched.
func (r SynthesisRun) Converged() bool {
	return r.Termination == TerminationConverged
}

// RepairRounds is the number of rounds after the initial generation.
func (r SynthesisRun) RepairRounds() int {
	return max(0, r.Attempt-1)
}

// AllRecords flattens the generated records, sorted by user then date.
func (r SynthesisRun) AllRecords() []ComputedDayRecord {
	var out []ComputedDayRecord
	for _, recs := range r.Records {
		out = append(out, recs...)
	}
	SortRecords(out)
	return out
}

// =============================================================================
// REPAIR LOOP - Bounded verify-and-repair state machine
// =============================================================================

// RepairLoop drives a Generator until every targeted employee's recognized
// hours match, or the bound is reached.
//
// STATES:
//
//	generate(all) -> verify -> [mismatched empty]  -> converged
//	                        -> [round < max]       -> regenerate(mismatched) -> verify
//	                        -> [round == max]      -> maxRetriesExhausted
//
//	Any Generator error ends the run as generationFailed, keeping what was
//	accumulated. A cancelled ctx ends it as cancelled.
//
// Rounds are strictly sequential. Matched employees are never regenerated.
type RepairLoop struct {
	Generator       Generator
	MaxRepairRounds int // 0 means DefaultMaxRepairRounds
}

// Run executes the state machine.
func (l *RepairLoop) Run(ctx context.Context, req SynthesisRequest) SynthesisRun {
	run := SynthesisRun{
		MaxRepairRounds: l.maxRounds(),
		Records:         make(map[generic.UserID][]ComputedDayRecord),
		Verifications:   make(map[generic.UserID]Verification),
	}

	pending := req.employees()
	for round := 0; ; round++ {
		run.Attempt = round + 1
		for _, emp := range pending {
			if err := ctx.Err(); err != nil {
				return l.stop(run, TerminationCancelled, err)
			}
			records, err := l.Generator.Generate(ctx, l.generationRequest(req, emp, round))
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return l.stop(run, TerminationCancelled, err)
				}
				return l.stop(run, TerminationGenerationFailed,
					fmt.Errorf("%w: employee %s: %w", generic.ErrGenerationFailed, emp.ID, err))
			}
			run.Records[emp.ID] = records
			run.Verifications[emp.ID] = Verify(emp.ID, records, req.targetFor(emp.ID))
		}

		var mismatched []SynthesisEmployee
		for _, emp := range req.employees() {
			if !run.Verifications[emp.ID].Matched {
				mismatched = append(mismatched, emp)
			}
		}
		pending = mismatched
		run.Mismatched = idsOf(pending)

		if len(pending) == 0 {
			run.Termination = TerminationConverged
			return run
		}
		if round >= run.MaxRepairRounds {
			run.Termination = TerminationMaxRetriesExhausted
			return run
		}
	}
}

func (l *RepairLoop) stop(run SynthesisRun, t Termination, err error) SynthesisRun {
	run.Termination = t
	run.Err = err
	run.Mismatched = nil
	for id, v := range run.Verifications {
		if !v.Matched {
			run.Mismatched = append(run.Mismatched, id)
		}
	}
	sort.Slice(run.Mismatched, func(i, j int) bool { return run.Mismatched[i] < run.Mismatched[j] })
	return run
}

func (l *RepairLoop) maxRounds() int {
	if l.MaxRepairRounds > 0 {
		return l.MaxRepairRounds
	}
	return DefaultMaxRepairRounds
}

func (l *RepairLoop) generationRequest(req SynthesisRequest, emp SynthesisEmployee, round int) GenerationRequest {
	return GenerationRequest{
		EmployeeID:              emp.ID,
		UserName:                emp.UserName,
		Department:              emp.Department,
		Period:                  req.Period,
		LeaveDates:              req.LeaveDates[emp.ID],
		Policy:                  req.Policy,
		RequiredRecognizedHours: req.targetFor(emp.ID),
		Calendar:                req.Calendar,
		CompanyID:               req.CompanyID,
		Seed:                    seedFor(strconv.FormatUint(req.Seed, 10), string(emp.ID), strconv.Itoa(round)),
	}
}

func idsOf(emps []SynthesisEmployee) []generic.UserID {
	ids := make([]generic.UserID, len(emps))
	for i, e := range emps {
		ids[i] = e.ID
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
