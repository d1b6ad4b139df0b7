/*
scheduler.go - Scheduled anomaly scans

PURPOSE:
  Periodically re-runs the anomaly detector over the stored original view,
  so records whose policy changed after import are flagged without a new
  import. Each run is stored as an AnomalyScan with trigger "scheduled".

DESIGN:
  - robfig/cron with the standard 5-field parser
  - One job; a run that overlaps the previous one is skipped
  - Each run gets its own timeout context

CONFIGURATION:
  - Spec:    cron expression (default: "0 2 * * *", nightly at 02:00)
  - Timeout: per-run deadline (default: 5 minutes)

USAGE:
  scheduler := NewAnomalyScheduler(service, "acme", "0 2 * * *", logger)
  if err := scheduler.Start(); err != nil { ... }
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: RunScan endpoint (manual scans)
  - attendance/service.go: ScanAnomalies
*/
package api

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/warp/attendance-engine/attendance"
)

// DefaultScanSpec runs the scan nightly at 02:00.
const DefaultScanSpec = "0 2 * * *"

// Scanner runs one anomaly scan.
type Scanner interface {
	ScanAnomalies(ctx context.Context, companyID, trigger string) (*attendance.AnomalyScan, error)
}

// AnomalyScheduler runs scheduled anomaly scans for one company.
type AnomalyScheduler struct {
	Scanner   Scanner
	CompanyID string
	Spec      string
	Timeout   time.Duration

	cron    *cron.Cron
	logger  *zap.Logger
	mu      sync.Mutex
	started bool
}

// NewAnomalyScheduler creates a scheduler. An empty spec uses DefaultScanSpec.
func NewAnomalyScheduler(scanner Scanner, companyID, spec string, logger *zap.Logger) *AnomalyScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if spec == "" {
		spec = DefaultScanSpec
	}
	return &AnomalyScheduler{
		Scanner:   scanner,
		CompanyID: companyID,
		Spec:      spec,
		Timeout:   5 * time.Minute,
		logger:    logger,
	}
}

// Start registers the scan job and starts the cron loop.
func (s *AnomalyScheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.cron = cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := s.cron.AddFunc(s.Spec, s.scheduledScan); err != nil {
		return fmt.Errorf("schedule anomaly scan %q: %w", s.Spec, err)
	}
	s.cron.Start()
	s.started = true

	s.logger.Info("anomaly scheduler started",
		zap.String("spec", s.Spec),
		zap.String("company_id", s.CompanyID))
	return nil
}

// Stop stops the cron loop and waits for a running scan to finish.
func (s *AnomalyScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	<-s.cron.Stop().Done()
	s.started = false
	s.logger.Info("anomaly scheduler stopped")
}

// RunOnce runs a scheduled scan immediately.
func (s *AnomalyScheduler) RunOnce(ctx context.Context) (*attendance.AnomalyScan, error) {
	scan, err := s.Scanner.ScanAnomalies(ctx, s.CompanyID, attendance.TriggerScheduled)
	if err != nil {
		s.logger.Error("anomaly scan failed", zap.String("company_id", s.CompanyID), zap.Error(err))
		return nil, err
	}

	log := s.logger.Info
	if scan.ViolationCount > 0 {
		log = s.logger.Warn
	}
	log("anomaly scan completed",
		zap.String("scan_id", scan.ID),
		zap.Int("records", scan.RecordCount),
		zap.Int("violations", scan.ViolationCount),
		zap.Int("violating_users", len(scan.ViolatingUserIDs)))
	return scan, nil
}

func (s *AnomalyScheduler) scheduledScan() {
	ctx, cancel := context.WithTimeout(context.Background(), s.Timeout)
	defer cancel()

	_, _ = s.RunOnce(ctx)
}
