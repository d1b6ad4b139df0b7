package attendance

import (
	"fmt"

	"github.com/warp/attendance-engine/generic"
)

// PunchError reports a punch that could not be computed. It is fatal to that
// punch only; the rest of the batch still computes.
type PunchError struct {
	Index  int // Position in the input batch
	UserID generic.UserID
	Date   generic.TimePoint
	Err    error
}

func (e *PunchError) Error() string {
	return fmt.Sprintf("punch %d (%s %s): %v", e.Index, e.UserID, e.Date, e.Err)
}

func (e *PunchError) Unwrap() error { return e.Err }

// =============================================================================
// PIPELINE - Pure composition of the engine
// =============================================================================

// PipelineResult is everything a batch of punches computes to.
type PipelineResult struct {
	Records               []ComputedDayRecord
	ViolatingUserIDs      []generic.UserID
	InitialViolationCount int
	Summaries             []WeeklySummary
	Errors                []*PunchError
}

// Pipeline runs punches through resolve -> process -> detect -> fill ->
// summarize.
type Pipeline struct {
	SanityCeilingMinutes int
	FillNonWorkingDays   bool
	DropInactiveUsers    bool
}

// Process computes a batch.
func (p *Pipeline) Process(punches []RawPunch, ctx WorkTypeContext) PipelineResult {
	var (
		processor DailyLogProcessor
		result    PipelineResult
		records   = make([]ComputedDayRecord, 0, len(punches))
	)

	for i, punch := range punches {
		policy := ctx.PolicyFor(punch.Date)
		rec, err := processor.Process(punch, policy)
		if err != nil {
			result.Errors = append(result.Errors, &PunchError{Index: i, UserID: punch.UserID, Date: punch.Date, Err: err})
			continue
		}
		rec.CompanyID = ctx.CompanyID
		records = append(records, rec)
	}

	detector := AnomalyDetector{
		SanityCeilingMinutes: p.SanityCeilingMinutes,
		Calendar:             ctx.Calendar,
		CompanyID:            ctx.CompanyID,
	}
	records = detector.Detect(records)
	result.ViolatingUserIDs = ViolatingUserIDs(records)
	result.InitialViolationCount = len(result.ViolatingUserIDs)

	filler := GapFiller{
		Calendar:           ctx.Calendar,
		CompanyID:          ctx.CompanyID,
		FillNonWorkingDays: p.FillNonWorkingDays,
	}
	records = filler.Fill(records)
	if p.DropInactiveUsers {
		records = DropInactiveUsers(records)
	}

	result.Records = records
	result.Summaries = WeeklyAggregator{}.SummarizeAll(records, ctx)
	return result
}
