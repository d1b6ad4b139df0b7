package api

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/generic"
)

type fakeScanner struct {
	mu       sync.Mutex
	triggers []string
	err      error
}

func (f *fakeScanner) ScanAnomalies(_ context.Context, companyID, trigger string) (*attendance.AnomalyScan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.triggers = append(f.triggers, trigger)
	if f.err != nil {
		return nil, f.err
	}
	return &attendance.AnomalyScan{
		ID:               "scan-1",
		CompanyID:        companyID,
		Trigger:          trigger,
		RecordCount:      10,
		ViolationCount:   1,
		ViolatingUserIDs: []generic.UserID{"u1"},
	}, nil
}

func (f *fakeScanner) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.triggers)
}

func TestAnomalyScheduler_RunOnce(t *testing.T) {
	scanner := &fakeScanner{}
	s := NewAnomalyScheduler(scanner, "acme", "", nil)
	assert.Equal(t, DefaultScanSpec, s.Spec)

	scan, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "acme", scan.CompanyID)
	assert.Equal(t, []string{attendance.TriggerScheduled}, scanner.triggers)

	scanner.err = errors.New("database is locked")
	_, err = s.RunOnce(context.Background())
	assert.Error(t, err)
}

func TestAnomalyScheduler_RunsOnSchedule(t *testing.T) {
	scanner := &fakeScanner{}
	s := NewAnomalyScheduler(scanner, "acme", "@every 1s", nil)

	require.NoError(t, s.Start())
	require.NoError(t, s.Start(), "second start is a no-op")
	defer s.Stop()

	assert.Eventually(t, func() bool { return scanner.calls() > 0 }, 3*time.Second, 50*time.Millisecond)
}

func TestAnomalyScheduler_RejectsBadSpec(t *testing.T) {
	s := NewAnomalyScheduler(&fakeScanner{}, "acme", "every night", nil)
	assert.Error(t, s.Start())
	s.Stop()
}
