package attendance

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/warp/attendance-engine/generic"
)

// =============================================================================
// STORE INTERFACES - Persistence collaborators
// =============================================================================
//
// The engine never touches storage. These interfaces are what the Service
// needs; store/sqlite and store/memory implement all of them.
//
// Get methods return (nil, nil) when the row does not exist. The Service
// turns that into the matching not-found error.

// View names a record set. The original view holds computed punches;
// calibrated holds the ComplianceCalibrator's copy; preview views hold
// uncommitted synthesis output.
type View string

const (
	ViewOriginal   View = "original"
	ViewCalibrated View = "calibrated"

	previewViewPrefix = "preview:"
)

// PreviewView is the view holding a synthesis preview's records.
func PreviewView(previewID string) View { return View(previewViewPrefix + previewID) }

// ParseView accepts "original" and "calibrated"; empty means original.
func ParseView(s string) (View, error) {
	switch View(strings.ToLower(strings.TrimSpace(s))) {
	case "", ViewOriginal:
		return ViewOriginal, nil
	case ViewCalibrated:
		return ViewCalibrated, nil
	}
	return "", fmt.Errorf("%w: %q", generic.ErrInvalidView, s)
}

// RecordFilter narrows record queries. Zero fields match everything.
type RecordFilter struct {
	CompanyID string
	UserID    generic.UserID
	From      generic.TimePoint
	To        generic.TimePoint
}

// Matches reports whether a record passes the filter.
func (f RecordFilter) Matches(r ComputedDayRecord) bool {
	if f.CompanyID != "" && r.CompanyID != f.CompanyID {
		return false
	}
	if f.UserID != "" && r.UserID != f.UserID {
		return false
	}
	if !f.From.IsZero() && r.Date.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && r.Date.After(f.To) {
		return false
	}
	return true
}

// MatchesPunch reports whether a punch passes the filter. Punches are stored
// per company, so CompanyID is not compared.
func (f RecordFilter) MatchesPunch(p RawPunch) bool {
	f.CompanyID = ""
	return f.Matches(ComputedDayRecord{UserID: p.UserID, Date: p.Date})
}

// Scope is the set of one company's user-days a batch replaces.
type Scope struct {
	CompanyID string
	UserIDs   []generic.UserID
	Period    generic.Period
}

// ScopeOf covers every user and the full date range of records. Records are
// expected to belong to one company; the first record's company is used.
func ScopeOf(records []ComputedDayRecord) Scope {
	var s Scope
	if len(records) > 0 {
		s.CompanyID = records[0].CompanyID
	}
	seen := make(map[generic.UserID]bool)
	for _, r := range records {
		if !seen[r.UserID] {
			seen[r.UserID] = true
			s.UserIDs = append(s.UserIDs, r.UserID)
		}
		if s.Period.Start.IsZero() || r.Date.Before(s.Period.Start) {
			s.Period.Start = r.Date
		}
		if s.Period.End.IsZero() || r.Date.After(s.Period.End) {
			s.Period.End = r.Date
		}
	}
	return s
}

// Contains reports whether a record falls inside the scope.
func (s Scope) Contains(r ComputedDayRecord) bool {
	if r.CompanyID != s.CompanyID || !s.Period.Contains(r.Date) {
		return false
	}
	for _, id := range s.UserIDs {
		if id == r.UserID {
			return true
		}
	}
	return false
}

type PunchStore interface {
	SavePunches(ctx context.Context, companyID string, punches []RawPunch) error
	ListPunches(ctx context.Context, companyID string, filter RecordFilter) ([]RawPunch, error)
}

type PolicyStore interface {
	SavePolicy(ctx context.Context, policy EffectiveDatedPolicy) error
	GetPolicy(ctx context.Context, id generic.PolicyID) (*EffectiveDatedPolicy, error)
	ListPolicies(ctx context.Context, companyID string) ([]EffectiveDatedPolicy, error)
	DeletePolicy(ctx context.Context, id generic.PolicyID) error
}

// RecordStore keeps computed records per view and company. Record ids are
// unique within a company, not across companies.
type RecordStore interface {
	// ReplaceRecords deletes every record of view inside scope, then inserts
	// records.
	ReplaceRecords(ctx context.Context, view View, scope Scope, records []ComputedDayRecord) error
	// SaveRecords upserts by (view, company, user, date).
	SaveRecords(ctx context.Context, view View, records []ComputedDayRecord) error
	GetRecord(ctx context.Context, view View, companyID string, id generic.RecordID) (*ComputedDayRecord, error)
	ListRecords(ctx context.Context, view View, filter RecordFilter) ([]ComputedDayRecord, error)
	// DeleteRecord removes the company's record from every view.
	DeleteRecord(ctx context.Context, companyID string, id generic.RecordID) error
	DeleteView(ctx context.Context, view View) error
}

type PreviewStore interface {
	SavePreview(ctx context.Context, preview SynthesisPreview) error
	GetPreview(ctx context.Context, id string) (*SynthesisPreview, error)
}

type ScanStore interface {
	SaveScan(ctx context.Context, scan AnomalyScan) error
	ListScans(ctx context.Context, limit int) ([]AnomalyScan, error)
}

// Store is everything the Service persists.
type Store interface {
	PunchStore
	PolicyStore
	RecordStore
	PreviewStore
	ScanStore
}

// =============================================================================
// PERSISTED WORKFLOW ENTITIES
// =============================================================================

type PreviewStatus string

const (
	PreviewPending   PreviewStatus = "pending"
	PreviewCommitted PreviewStatus = "committed"
	PreviewDiscarded PreviewStatus = "discarded"
)

// SynthesisPreview is a stored synthesis run awaiting approval. Records live
// in PreviewView(ID) until committed.
type SynthesisPreview struct {
	ID              string
	CompanyID       string
	Period          generic.Period
	Status          PreviewStatus
	Termination     Termination
	Attempt         int
	MaxRepairRounds int
	Mismatched      []generic.UserID
	Verifications   []Verification
	Error           string
	Records         []ComputedDayRecord // Populated by Service.Preview
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Scan triggers.
const (
	TriggerManual    = "manual"
	TriggerScheduled = "scheduled"
)

// AnomalyScan is one run of the AnomalyDetector over stored records.
type AnomalyScan struct {
	ID               string
	CompanyID        string
	Trigger          string // TriggerManual or TriggerScheduled
	RecordCount      int
	ViolationCount   int
	ViolatingUserIDs []generic.UserID
	ScannedAt        time.Time
}
