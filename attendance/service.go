/*
service.go - Binds the pure engine to persistence

PURPOSE:
  The engine components are pure functions over slices. The Service loads
  their inputs from a Store, runs them, and writes their outputs back. It is
  the only place in this package that logs or touches storage.

WORKFLOWS:
  ImportPunches:   punches -> Pipeline -> original view (replaced per scope)
  Calibrate:       original view -> ComplianceCalibrator -> calibrated view
  ChangeStatus:    one record -> StatusChangeEngine -> original view
  Synthesize:      RepairLoop -> pending preview (never the original view)
  CommitPreview:   preview records -> original view, only on approval
  ScanAnomalies:   original view -> AnomalyDetector -> scan log

IDENTIFIERS:
  Records, policies, previews and scans get UUIDs when saved without an ID.
  Gap placeholders keep their deterministic ids.

SEE ALSO:
  - pipeline.go: Pure composition used by ImportPunches
  - repair.go: The synthesis state machine
  - store/sqlite: Production Store
*/
package attendance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/warp/attendance-engine/generic"
)

// Options are the engine settings that come from configuration.
type Options struct {
	SanityCeilingMinutes int
	FillNonWorkingDays   bool
	DropInactiveUsers    bool
	StrictPolicy         bool
	MaxRepairRounds      int
}

// Service orchestrates the engine against a Store.
type Service struct {
	store     Store
	calendar  generic.HolidayCalendar
	generator Generator
	logger    *zap.Logger
	opts      Options
	now       func() time.Time
}

// NewService wires a Service. A nil calendar means no holidays, a nil
// generator means the local SyntheticAttendanceGenerator, and a nil logger
// discards logs.
func NewService(store Store, calendar generic.HolidayCalendar, generator Generator, logger *zap.Logger, opts Options) *Service {
	if calendar == nil {
		calendar = generic.NoHolidays{}
	}
	if generator == nil {
		generator = &SyntheticAttendanceGenerator{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:     store,
		calendar:  calendar,
		generator: generator,
		logger:    logger,
		opts:      opts,
		now:       time.Now,
	}
}

// WorkContext loads a company's policies into a WorkTypeContext.
func (s *Service) WorkContext(ctx context.Context, companyID string) (WorkTypeContext, error) {
	policies, err := s.store.ListPolicies(ctx, companyID)
	if err != nil {
		return WorkTypeContext{}, fmt.Errorf("list policies: %w", err)
	}
	return WorkTypeContext{
		Policies:  policies,
		Calendar:  s.calendar,
		CompanyID: companyID,
		Resolver:  PolicyResolver{Strict: s.opts.StrictPolicy},
	}, nil
}

// =============================================================================
// IMPORT
// =============================================================================

// ImportResult summarizes one import.
type ImportResult struct {
	Imported              int
	Records               int
	ViolatingUserIDs      []generic.UserID
	InitialViolationCount int
	Errors                []*PunchError
}

// ImportPunches stores the punches, computes them, and replaces the original
// view for the affected users and dates. Punches that fail to parse are
// reported and skipped; the rest still import.
func (s *Service) ImportPunches(ctx context.Context, companyID string, punches []RawPunch) (*ImportResult, error) {
	if len(punches) == 0 {
		return nil, fmt.Errorf("%w: no punches", generic.ErrInvalidSheet)
	}

	wctx, err := s.WorkContext(ctx, companyID)
	if err != nil {
		return nil, err
	}
	if err := s.store.SavePunches(ctx, companyID, punches); err != nil {
		return nil, fmt.Errorf("save punches: %w", err)
	}

	pipeline := Pipeline{
		SanityCeilingMinutes: s.opts.SanityCeilingMinutes,
		FillNonWorkingDays:   s.opts.FillNonWorkingDays,
		DropInactiveUsers:    s.opts.DropInactiveUsers,
	}
	result := pipeline.Process(punches, wctx)

	records := assignRecordIDs(companyID, result.Records)
	scope := punchScope(companyID, punches)
	if err := s.store.ReplaceRecords(ctx, ViewOriginal, scope, records); err != nil {
		return nil, fmt.Errorf("replace records: %w", err)
	}

	s.logger.Info("punches imported",
		zap.String("company_id", companyID),
		zap.Int("punches", len(punches)),
		zap.Int("records", len(records)),
		zap.Int("violating_users", result.InitialViolationCount),
		zap.Int("rejected", len(result.Errors)),
	)

	return &ImportResult{
		Imported:              len(punches) - len(result.Errors),
		Records:               len(records),
		ViolatingUserIDs:      result.ViolatingUserIDs,
		InitialViolationCount: result.InitialViolationCount,
		Errors:                result.Errors,
	}, nil
}

func punchScope(companyID string, punches []RawPunch) Scope {
	days := make([]ComputedDayRecord, len(punches))
	for i, p := range punches {
		days[i] = ComputedDayRecord{CompanyID: companyID, UserID: p.UserID, Date: p.Date}
	}
	return ScopeOf(days)
}

// assignRecordIDs stamps the owning company on every record and gives new
// records a UUID.
func assignRecordIDs(companyID string, records []ComputedDayRecord) []ComputedDayRecord {
	out := cloneRecords(records)
	for i := range out {
		out[i].CompanyID = companyID
		if out[i].ID == "" {
			out[i].ID = generic.RecordID(uuid.NewString())
		}
	}
	return out
}

// =============================================================================
// QUERIES
// =============================================================================

// Records lists a company's records in a view.
func (s *Service) Records(ctx context.Context, companyID string, view View, filter RecordFilter) ([]ComputedDayRecord, error) {
	filter.CompanyID = companyID
	records, err := s.store.ListRecords(ctx, view, filter)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	return records, nil
}

// WeeklySummaries recomputes the weekly buckets of a view. Nothing is cached.
func (s *Service) WeeklySummaries(ctx context.Context, companyID string, view View, filter RecordFilter) ([]WeeklySummary, error) {
	records, err := s.Records(ctx, companyID, view, filter)
	if err != nil {
		return nil, err
	}
	wctx, err := s.WorkContext(ctx, companyID)
	if err != nil {
		return nil, err
	}
	return WeeklyAggregator{}.SummarizeAll(records, wctx), nil
}

// Violations lists the users with a non-NORMAL record in the original view.
func (s *Service) Violations(ctx context.Context, companyID string, filter RecordFilter) ([]generic.UserID, error) {
	records, err := s.Records(ctx, companyID, ViewOriginal, filter)
	if err != nil {
		return nil, err
	}
	return ViolatingUserIDs(records), nil
}

// =============================================================================
// CALIBRATION
// =============================================================================

// Calibrate computes the calibrated copy of the original view and stores it
// under the calibrated view. The original view is not modified.
func (s *Service) Calibrate(ctx context.Context, companyID string, filter RecordFilter) (*CalibrationResult, error) {
	originals, err := s.Records(ctx, companyID, ViewOriginal, filter)
	if err != nil {
		return nil, err
	}
	wctx, err := s.WorkContext(ctx, companyID)
	if err != nil {
		return nil, err
	}

	var calibrator ComplianceCalibrator
	result := calibrator.Calibrate(originals, wctx)

	if len(result.Records) > 0 {
		if err := s.store.ReplaceRecords(ctx, ViewCalibrated, ScopeOf(result.Records), result.Records); err != nil {
			return nil, fmt.Errorf("save calibrated records: %w", err)
		}
	}

	s.logger.Info("records calibrated",
		zap.String("company_id", companyID),
		zap.Int("weeks_over_cap", len(result.Weeks)),
		zap.Int("removed_minutes", result.RemovedMinutes()),
	)
	return &result, nil
}

// =============================================================================
// MANUAL EDITS
// =============================================================================

// ChangeStatus applies one StatusChangeEngine transition to a stored record.
func (s *Service) ChangeStatus(ctx context.Context, companyID string, id generic.RecordID, target CategoricalStatus) (*ComputedDayRecord, *StatusUpdate, error) {
	record, err := s.store.GetRecord(ctx, ViewOriginal, companyID, id)
	if err != nil {
		return nil, nil, fmt.Errorf("get record: %w", err)
	}
	if record == nil {
		return nil, nil, fmt.Errorf("%w: %s", generic.ErrRecordNotFound, id)
	}
	wctx, err := s.WorkContext(ctx, companyID)
	if err != nil {
		return nil, nil, err
	}

	var engine StatusChangeEngine
	update := engine.Change(*record, target, wctx.PolicyFor(record.Date))
	updated := update.Apply(*record)

	if err := s.store.SaveRecords(ctx, ViewOriginal, []ComputedDayRecord{updated}); err != nil {
		return nil, nil, fmt.Errorf("save record: %w", err)
	}

	s.logger.Info("status changed",
		zap.String("company_id", companyID),
		zap.String("record_id", string(id)),
		zap.String("from", string(record.CategoricalStatus)),
		zap.String("to", string(target)),
		zap.Uint64("seed", update.Seed),
	)
	return &updated, &update, nil
}

// DeleteRecord removes a company's record from every view.
func (s *Service) DeleteRecord(ctx context.Context, companyID string, id generic.RecordID) error {
	record, err := s.store.GetRecord(ctx, ViewOriginal, companyID, id)
	if err != nil {
		return fmt.Errorf("get record: %w", err)
	}
	if record == nil {
		return fmt.Errorf("%w: %s", generic.ErrRecordNotFound, id)
	}
	if err := s.store.DeleteRecord(ctx, companyID, id); err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	return nil
}

// =============================================================================
// POLICIES
// =============================================================================

// SavePolicy validates and stores a policy, assigning an ID when missing.
func (s *Service) SavePolicy(ctx context.Context, policy EffectiveDatedPolicy) (*EffectiveDatedPolicy, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	if policy.ID == "" {
		policy.ID = generic.PolicyID(uuid.NewString())
	}
	if err := s.store.SavePolicy(ctx, policy); err != nil {
		return nil, fmt.Errorf("save policy: %w", err)
	}
	return &policy, nil
}

// Policies lists a company's policies.
func (s *Service) Policies(ctx context.Context, companyID string) ([]EffectiveDatedPolicy, error) {
	policies, err := s.store.ListPolicies(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("list policies: %w", err)
	}
	return policies, nil
}

// DeletePolicy removes a policy.
func (s *Service) DeletePolicy(ctx context.Context, id generic.PolicyID) error {
	existing, err := s.store.GetPolicy(ctx, id)
	if err != nil {
		return fmt.Errorf("get policy: %w", err)
	}
	if existing == nil {
		return fmt.Errorf("%w: %s", generic.ErrPolicyNotFound, id)
	}
	return s.store.DeletePolicy(ctx, id)
}

// ResolvePolicy returns the policy in force on date. isDefault is true when
// the company has no applicable policy and DefaultPolicy was used.
func (s *Service) ResolvePolicy(ctx context.Context, companyID string, date generic.TimePoint) (EffectiveDatedPolicy, bool, error) {
	wctx, err := s.WorkContext(ctx, companyID)
	if err != nil {
		return EffectiveDatedPolicy{}, false, err
	}
	p, err := wctx.Resolver.Resolve(date, wctx.Policies)
	if errors.Is(err, generic.ErrNoPolicy) {
		return DefaultPolicy(), true, nil
	}
	return p, false, err
}

// =============================================================================
// SYNTHESIS
// =============================================================================

// Synthesize runs the repair loop and stores the result as a pending
// preview. Nothing reaches the original view until CommitPreview.
func (s *Service) Synthesize(ctx context.Context, companyID string, req SynthesisRequest) (*SynthesisPreview, error) {
	if err := req.Period.Validate(); err != nil {
		return nil, err
	}
	wctx, err := s.WorkContext(ctx, companyID)
	if err != nil {
		return nil, err
	}
	if !req.Policy.StandardStart.Valid {
		req.Policy = wctx.PolicyFor(req.Period.Start)
	}
	req.Calendar = s.calendar
	req.CompanyID = companyID

	loop := RepairLoop{Generator: s.generator, MaxRepairRounds: s.opts.MaxRepairRounds}
	run := loop.Run(ctx, req)
	if run.Termination == TerminationCancelled {
		return nil, run.Err
	}

	now := s.now().UTC()
	preview := SynthesisPreview{
		ID:              uuid.NewString(),
		CompanyID:       companyID,
		Period:          req.Period,
		Status:          PreviewPending,
		Termination:     run.Termination,
		Attempt:         run.Attempt,
		MaxRepairRounds: run.MaxRepairRounds,
		Mismatched:      run.Mismatched,
		Records:         assignRecordIDs(companyID, run.AllRecords()),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	for _, emp := range req.employees() {
		if v, ok := run.Verifications[emp.ID]; ok {
			preview.Verifications = append(preview.Verifications, v)
		}
	}
	if run.Err != nil {
		preview.Error = run.Err.Error()
	}

	if err := s.store.SaveRecords(ctx, PreviewView(preview.ID), preview.Records); err != nil {
		return nil, fmt.Errorf("save preview records: %w", err)
	}
	if err := s.store.SavePreview(ctx, preview); err != nil {
		return nil, fmt.Errorf("save preview: %w", err)
	}

	s.logger.Info("synthesis preview created",
		zap.String("preview_id", preview.ID),
		zap.String("termination", string(run.Termination)),
		zap.Int("attempts", run.Attempt),
		zap.Int("mismatched", len(run.Mismatched)),
		zap.Int("records", len(preview.Records)),
	)
	return &preview, nil
}

// Preview loads a preview with its records.
func (s *Service) Preview(ctx context.Context, id string) (*SynthesisPreview, error) {
	preview, err := s.store.GetPreview(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get preview: %w", err)
	}
	if preview == nil {
		return nil, fmt.Errorf("%w: %s", generic.ErrPreviewNotFound, id)
	}
	if preview.Status == PreviewPending {
		records, err := s.store.ListRecords(ctx, PreviewView(id), RecordFilter{})
		if err != nil {
			return nil, fmt.Errorf("list preview records: %w", err)
		}
		preview.Records = records
	}
	return preview, nil
}

// CommitPreview persists a pending preview's records into the original view.
// A preview with mismatched employees needs force.
func (s *Service) CommitPreview(ctx context.Context, id string, force bool) (*SynthesisPreview, error) {
	preview, err := s.Preview(ctx, id)
	if err != nil {
		return nil, err
	}
	if preview.Status != PreviewPending {
		return nil, fmt.Errorf("%w: %s is %s", generic.ErrPreviewNotPending, id, preview.Status)
	}
	if preview.Termination != TerminationConverged && !force {
		return nil, fmt.Errorf("%w: %d employees mismatched", generic.ErrPreviewUnconverged, len(preview.Mismatched))
	}

	if err := s.store.SaveRecords(ctx, ViewOriginal, preview.Records); err != nil {
		return nil, fmt.Errorf("commit preview records: %w", err)
	}
	if err := s.finishPreview(ctx, preview, PreviewCommitted); err != nil {
		return nil, err
	}

	s.logger.Info("synthesis preview committed",
		zap.String("preview_id", id),
		zap.Bool("forced", force && preview.Termination != TerminationConverged),
		zap.Int("records", len(preview.Records)),
	)
	return preview, nil
}

// DiscardPreview drops a pending preview.
func (s *Service) DiscardPreview(ctx context.Context, id string) error {
	preview, err := s.Preview(ctx, id)
	if err != nil {
		return err
	}
	if preview.Status != PreviewPending {
		return fmt.Errorf("%w: %s is %s", generic.ErrPreviewNotPending, id, preview.Status)
	}
	return s.finishPreview(ctx, preview, PreviewDiscarded)
}

func (s *Service) finishPreview(ctx context.Context, preview *SynthesisPreview, status PreviewStatus) error {
	if err := s.store.DeleteView(ctx, PreviewView(preview.ID)); err != nil {
		return fmt.Errorf("drop preview records: %w", err)
	}
	preview.Status = status
	preview.UpdatedAt = s.now().UTC()
	if err := s.store.SavePreview(ctx, *preview); err != nil {
		return fmt.Errorf("save preview: %w", err)
	}
	return nil
}

// =============================================================================
// ANOMALY SCANS
// =============================================================================

// ScanAnomalies re-runs the AnomalyDetector over the stored original view and
// logs the outcome.
func (s *Service) ScanAnomalies(ctx context.Context, companyID, trigger string) (*AnomalyScan, error) {
	records, err := s.Records(ctx, companyID, ViewOriginal, RecordFilter{})
	if err != nil {
		return nil, err
	}

	detector := AnomalyDetector{
		SanityCeilingMinutes: s.opts.SanityCeilingMinutes,
		Calendar:             s.calendar,
		CompanyID:            companyID,
	}
	violating := ViolatingUserIDs(detector.Detect(records))

	scan := AnomalyScan{
		ID:               uuid.NewString(),
		CompanyID:        companyID,
		Trigger:          trigger,
		RecordCount:      len(records),
		ViolationCount:   len(violating),
		ViolatingUserIDs: violating,
		ScannedAt:        s.now().UTC(),
	}
	if err := s.store.SaveScan(ctx, scan); err != nil {
		return nil, fmt.Errorf("save scan: %w", err)
	}

	s.logger.Info("anomaly scan finished",
		zap.String("company_id", companyID),
		zap.String("trigger", trigger),
		zap.Int("records", scan.RecordCount),
		zap.Int("violating_users", scan.ViolationCount),
	)
	return &scan, nil
}

// Scans lists recent anomaly scans, newest first.
func (s *Service) Scans(ctx context.Context, limit int) ([]AnomalyScan, error) {
	scans, err := s.store.ListScans(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list scans: %w", err)
	}
	return scans, nil
}
