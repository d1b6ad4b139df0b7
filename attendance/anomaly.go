package attendance

import (
	"sort"

	"github.com/warp/attendance-engine/generic"
)

// DefaultSanityCeilingMinutes is the longest plausible gross day (16h).
const DefaultSanityCeilingMinutes = 960

// Anomaly notes stored on flagged records.
const (
	NoteMissingClockOut = "suspected missing clock-out"
	NoteMissingClockIn  = "suspected missing clock-in"
	NoteEndBeforeStart  = "clock-out before clock-in"
	NoteImplausibleDay  = "duration exceeds sanity ceiling"
	NoteNoPunches       = "no punches on a working day"
)

// =============================================================================
// ANOMALY DETECTOR - Integrity flags as data
// =============================================================================

// AnomalyDetector populates Status and Note. Anomalies are never returned as
// errors; callers decide whether a flagged record blocks anything.
//
// RULES (first match wins):
//
//	start, no end, category not REST/VACATION  -> WARNING
//	end, no start, category not REST/VACATION  -> WARNING
//	end before start (no overnight wrap)       -> ERROR
//	total > SanityCeilingMinutes               -> ERROR
//	NORMAL category, no punches, working day   -> MISSING
//	otherwise                                  -> NORMAL
type AnomalyDetector struct {
	SanityCeilingMinutes int // 0 means DefaultSanityCeilingMinutes
	Calendar             generic.HolidayCalendar
	CompanyID            string
}

// Detect returns a flagged copy of the records.
func (d AnomalyDetector) Detect(records []ComputedDayRecord) []ComputedDayRecord {
	out := cloneRecords(records)
	for i := range out {
		out[i].Status, out[i].Note = d.classify(out[i])
	}
	return out
}

func (d AnomalyDetector) classify(r ComputedDayRecord) (Status, string) {
	exempt := r.CategoricalStatus == CategoryRest || r.CategoricalStatus == CategoryVacation

	switch {
	case r.Start.Valid && !r.End.Valid && !exempt:
		return StatusWarning, NoteMissingClockOut
	case r.End.Valid && !r.Start.Valid && !exempt:
		return StatusWarning, NoteMissingClockIn
	case r.Start.Valid && r.End.Valid && r.End.Minutes < r.Start.Minutes:
		return StatusError, NoteEndBeforeStart
	case r.TotalDurationMinutes > d.ceiling():
		return StatusError, NoteImplausibleDay
	case r.CategoricalStatus == CategoryNormal && !r.Start.Valid && !r.End.Valid &&
		r.Date.IsWorkdayWithHolidays(d.Calendar, d.CompanyID):
		return StatusMissing, NoteNoPunches
	}
	return StatusNormal, ""
}

func (d AnomalyDetector) ceiling() int {
	if d.SanityCeilingMinutes > 0 {
		return d.SanityCeilingMinutes
	}
	return DefaultSanityCeilingMinutes
}

// ViolatingUserIDs returns, sorted, every user with at least one non-NORMAL
// record.
func ViolatingUserIDs(records []ComputedDayRecord) []generic.UserID {
	seen := make(map[generic.UserID]bool)
	for _, r := range records {
		if r.Status != StatusNormal && r.Status != "" {
			seen[r.UserID] = true
		}
	}
	ids := make([]generic.UserID, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
