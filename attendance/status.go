package attendance

import (
	"strconv"

	"github.com/warp/attendance-engine/generic"
)

// Jitter windows for a NORMAL transition, relative to the standard times.
const (
	normalStartEarliest = -30
	normalStartLatest   = 10
	normalEndEarliest   = 0
	normalEndLatest     = 15

	maxRedraws = 16
)

// =============================================================================
// STATUS UPDATE - Partial update produced by one transition
// =============================================================================

// DayTimes is the full set of time fields a transition may overwrite.
type DayTimes struct {
	Start                generic.ClockTime
	End                  generic.ClockTime
	TotalDurationMinutes int
	BreakDurationMinutes int
	ActualWorkMinutes    int
	OvertimeMinutes      int
}

// StatusUpdate is the result of a transition. Times is nil when the time
// fields stay as they are.
type StatusUpdate struct {
	RecordID          generic.RecordID
	CategoricalStatus CategoricalStatus
	Status            Status
	Times             *DayTimes
	Seed              uint64 // PRNG seed of a NORMAL regeneration, for audit
}

// Apply returns the record with the update applied.
func (u StatusUpdate) Apply(r ComputedDayRecord) ComputedDayRecord {
	r.CategoricalStatus = u.CategoricalStatus
	r.Status = u.Status
	r.Note = ""
	if u.Times != nil {
		r.Start = u.Times.Start
		r.End = u.Times.End
		r.TotalDurationMinutes = u.Times.TotalDurationMinutes
		r.BreakDurationMinutes = u.Times.BreakDurationMinutes
		r.ActualWorkMinutes = u.Times.ActualWorkMinutes
		r.OvertimeMinutes = u.Times.OvertimeMinutes
	}
	return r
}

func timesOf(r ComputedDayRecord) *DayTimes {
	return &DayTimes{
		Start:                r.Start,
		End:                  r.End,
		TotalDurationMinutes: r.TotalDurationMinutes,
		BreakDurationMinutes: r.BreakDurationMinutes,
		ActualWorkMinutes:    r.ActualWorkMinutes,
		OvertimeMinutes:      r.OvertimeMinutes,
	}
}

// =============================================================================
// STATUS CHANGE ENGINE - One transition per call
// =============================================================================

// StatusChangeEngine recomputes a record when its categorical status is
// changed by hand.
//
// TRANSITIONS:
//
//	VACATION, SICK, REST, OTHER -> zero every time field
//	TRIP, EDUCATION             -> standard start/end, break-tier durations
//	SPECIAL                     -> seed standard times only if neither punch exists
//	NORMAL                      -> new jittered start/end on every call
//
// Every transition clears the error status. NORMAL is deliberately not
// idempotent: the PRNG is seeded from the record's identity and current
// times, so a given input is reproducible while consecutive calls differ.
type StatusChangeEngine struct{}

// Change computes the update for moving record to target.
func (e *StatusChangeEngine) Change(record ComputedDayRecord, target CategoricalStatus, policy EffectiveDatedPolicy) StatusUpdate {
	u := StatusUpdate{
		RecordID:          record.ID,
		CategoricalStatus: target,
		Status:            StatusNormal,
	}

	switch target {
	case CategoryVacation, CategorySick, CategoryRest, CategoryOther:
		u.Times = &DayTimes{}
	case CategoryTrip, CategoryEducation:
		u.Times = standardTimes(record, policy)
	case CategorySpecial:
		if !record.Start.Valid && !record.End.Valid {
			u.Times = standardTimes(record, policy)
		}
	case CategoryNormal:
		u.Times, u.Seed = e.jitter(record, policy)
	}
	return u
}

func standardTimes(record ComputedDayRecord, policy EffectiveDatedPolicy) *DayTimes {
	r := record
	r.Start = policy.StandardStart
	r.End = generic.Clock(policy.StandardEndMinutes())
	return timesOf(r.withDuration(policy.StandardShiftMinutes(), policy))
}

func (e *StatusChangeEngine) jitter(record ComputedDayRecord, policy EffectiveDatedPolicy) (*DayTimes, uint64) {
	seed := seedFor(
		string(record.ID),
		string(record.UserID),
		record.Date.String(),
		clockKey(record.Start),
		clockKey(record.End),
	)
	rng := newRand(seed)

	stdStart := policy.StandardStart.Minutes
	stdEnd := policy.StandardEndMinutes()

	var start, end int
	for attempt := 0; attempt < maxRedraws; attempt++ {
		start = nonNegative(between(rng, stdStart+normalStartEarliest, stdStart+normalStartLatest))
		end = nonNegative(between(rng, stdEnd+normalEndEarliest, stdEnd+normalEndLatest))
		if !sameTimes(record, start, end) {
			break
		}
	}

	r := record.fromPunches(generic.Clock(start), generic.Clock(end), policy)
	return timesOf(r), seed
}

func sameTimes(r ComputedDayRecord, start, end int) bool {
	return r.Start.Valid && r.End.Valid && r.Start.Minutes == start && r.End.Minutes == end
}

func clockKey(c generic.ClockTime) string {
	if !c.Valid {
		return "-"
	}
	return strconv.Itoa(c.Minutes)
}
