// Package memory provides an in-memory attendance.Store for tests and local
// development.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/generic"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu       sync.RWMutex
	punches  map[string][]attendance.RawPunch // company -> punches
	policies map[generic.PolicyID]attendance.EffectiveDatedPolicy
	records  map[attendance.View]map[recordKey]attendance.ComputedDayRecord
	previews map[string]attendance.SynthesisPreview
	scans    []attendance.AnomalyScan
}

type recordKey struct {
	CompanyID string
	UserID    generic.UserID
	Date      string
}

func keyOf(r attendance.ComputedDayRecord) recordKey {
	return recordKey{CompanyID: r.CompanyID, UserID: r.UserID, Date: r.Date.String()}
}

func New() *Memory {
	return &Memory{
		punches:  make(map[string][]attendance.RawPunch),
		policies: make(map[generic.PolicyID]attendance.EffectiveDatedPolicy),
		records:  make(map[attendance.View]map[recordKey]attendance.ComputedDayRecord),
		previews: make(map[string]attendance.SynthesisPreview),
	}
}

// =============================================================================
// PUNCHES
// =============================================================================

// SavePunches replaces any punch of the same user and date.
func (m *Memory) SavePunches(_ context.Context, companyID string, punches []attendance.RawPunch) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing := m.punches[companyID]
	for _, p := range punches {
		replaced := false
		for i := range existing {
			if existing[i].UserID == p.UserID && existing[i].Date.Equal(p.Date) {
				existing[i] = p
				replaced = true
				break
			}
		}
		if !replaced {
			existing = append(existing, p)
		}
	}
	m.punches[companyID] = existing
	return nil
}

func (m *Memory) ListPunches(_ context.Context, companyID string, filter attendance.RecordFilter) ([]attendance.RawPunch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []attendance.RawPunch
	for _, p := range m.punches[companyID] {
		if filter.MatchesPunch(p) {
			result = append(result, p)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].UserID != result[j].UserID {
			return result[i].UserID < result[j].UserID
		}
		return result[i].Date.Before(result[j].Date)
	})
	return result, nil
}

// =============================================================================
// POLICIES
// =============================================================================

func (m *Memory) SavePolicy(_ context.Context, policy attendance.EffectiveDatedPolicy) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.policies[policy.ID] = policy
	return nil
}

func (m *Memory) GetPolicy(_ context.Context, id generic.PolicyID) (*attendance.EffectiveDatedPolicy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.policies[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

// ListPolicies returns a company's policies, oldest effective date first.
func (m *Memory) ListPolicies(_ context.Context, companyID string) ([]attendance.EffectiveDatedPolicy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []attendance.EffectiveDatedPolicy
	for _, p := range m.policies {
		if p.CompanyID == companyID {
			result = append(result, p)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].EffectiveDate.Before(result[j].EffectiveDate)
	})
	return result, nil
}

func (m *Memory) DeletePolicy(_ context.Context, id generic.PolicyID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.policies, id)
	return nil
}

// =============================================================================
// RECORDS
// =============================================================================

func (m *Memory) ReplaceRecords(_ context.Context, view attendance.View, scope attendance.Scope, records []attendance.ComputedDayRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	set := m.viewLocked(view)
	for k, r := range set {
		if scope.Contains(r) {
			delete(set, k)
		}
	}
	for _, r := range records {
		set[keyOf(r)] = r
	}
	return nil
}

func (m *Memory) SaveRecords(_ context.Context, view attendance.View, records []attendance.ComputedDayRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	set := m.viewLocked(view)
	for _, r := range records {
		set[keyOf(r)] = r
	}
	return nil
}

func (m *Memory) GetRecord(_ context.Context, view attendance.View, companyID string, id generic.RecordID) (*attendance.ComputedDayRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, r := range m.records[view] {
		if r.CompanyID == companyID && r.ID == id {
			return &r, nil
		}
	}
	return nil, nil
}

func (m *Memory) ListRecords(_ context.Context, view attendance.View, filter attendance.RecordFilter) ([]attendance.ComputedDayRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]attendance.ComputedDayRecord, 0, len(m.records[view]))
	for _, r := range m.records[view] {
		if filter.Matches(r) {
			result = append(result, r)
		}
	}
	attendance.SortRecords(result)
	return result, nil
}

func (m *Memory) DeleteRecord(_ context.Context, companyID string, id generic.RecordID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, set := range m.records {
		for k, r := range set {
			if r.CompanyID == companyID && r.ID == id {
				delete(set, k)
			}
		}
	}
	return nil
}

func (m *Memory) DeleteView(_ context.Context, view attendance.View) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, view)
	return nil
}

func (m *Memory) viewLocked(view attendance.View) map[recordKey]attendance.ComputedDayRecord {
	set, ok := m.records[view]
	if !ok {
		set = make(map[recordKey]attendance.ComputedDayRecord)
		m.records[view] = set
	}
	return set
}

// =============================================================================
// PREVIEWS AND SCANS
// =============================================================================

// SavePreview stores the preview without its records, which live in the
// preview view.
func (m *Memory) SavePreview(_ context.Context, preview attendance.SynthesisPreview) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	preview.Records = nil
	m.previews[preview.ID] = preview
	return nil
}

func (m *Memory) GetPreview(_ context.Context, id string) (*attendance.SynthesisPreview, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.previews[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *Memory) SaveScan(_ context.Context, scan attendance.AnomalyScan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scans = append(m.scans, scan)
	return nil
}

// ListScans returns the newest scans first. limit <= 0 means all.
func (m *Memory) ListScans(_ context.Context, limit int) ([]attendance.AnomalyScan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]attendance.AnomalyScan, 0, len(m.scans))
	for i := len(m.scans) - 1; i >= 0; i-- {
		result = append(result, m.scans[i])
		if limit > 0 && len(result) == limit {
			break
		}
	}
	return result, nil
}

var _ attendance.Store = (*Memory)(nil)
