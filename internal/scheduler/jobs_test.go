package scheduler

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/arena/internal/domain"
	"github.com/aristath/arena/internal/modules/rebalancing"
)

type fakeCoordinator struct {
	priceUpdates int
	cyclesRun    int
	snapshots    int
	scans        int
}

func (f *fakeCoordinator) UpdatePrices() { f.priceUpdates++ }

func (f *fakeCoordinator) RunDueCycles(context.Context) map[string]*rebalancing.CycleReport {
	f.cyclesRun++
	return map[string]*rebalancing.CycleReport{
		"momentum": {Portfolio: "momentum", FinalState: "REPORTED"},
	}
}

func (f *fakeCoordinator) ScanRiskAlerts() map[string][]domain.RiskAlert {
	f.scans++
	return nil
}

func (f *fakeCoordinator) CreateSnapshots() []domain.PortfolioSnapshot {
	f.snapshots++
	return []domain.PortfolioSnapshot{{}}
}

type fakeBackup struct {
	runs int
	err  error
}

func (f *fakeBackup) CreateAndUploadBackup(context.Context) error {
	f.runs++
	return f.err
}

func TestCycleJobRefreshesPricesBeforeCycles(t *testing.T) {
	coord := &fakeCoordinator{}
	job := NewCycleJob(coord, 0, zerolog.Nop())

	require.NoError(t, job.Run())
	assert.Equal(t, 1, coord.priceUpdates)
	assert.Equal(t, 1, coord.cyclesRun)
	assert.Equal(t, "rebalance_cycle", job.Name())
}

func TestSnapshotAndRiskScanJobs(t *testing.T) {
	coord := &fakeCoordinator{}

	require.NoError(t, NewSnapshotJob(coord, zerolog.Nop()).Run())
	require.NoError(t, NewRiskScanJob(coord, zerolog.Nop()).Run())

	assert.Equal(t, 1, coord.snapshots)
	assert.Equal(t, 1, coord.scans)
	assert.Equal(t, 2, coord.priceUpdates)
}

type fakeMaintenance struct {
	daily  int
	weekly int
}

func (f *fakeMaintenance) RunDaily(context.Context) error  { f.daily++; return nil }
func (f *fakeMaintenance) RunWeekly(context.Context) error { f.weekly++; return nil }

func TestMaintenanceJobs(t *testing.T) {
	m := &fakeMaintenance{}

	require.NoError(t, NewMaintenanceJob(m, zerolog.Nop()).Run())
	require.NoError(t, NewWeeklyMaintenanceJob(m, zerolog.Nop()).Run())

	assert.Equal(t, 1, m.daily)
	assert.Equal(t, 1, m.weekly)
}

func TestBackupJobPropagatesFailure(t *testing.T) {
	backup := &fakeBackup{err: errors.New("bucket unreachable")}
	job := NewBackupJob(backup, 0, zerolog.Nop())

	assert.Error(t, job.Run())
	assert.Equal(t, 1, backup.runs)
}

func TestRunNowByName(t *testing.T) {
	coord := &fakeCoordinator{}
	s := New(zerolog.Nop())
	require.NoError(t, s.AddJob("@daily", NewSnapshotJob(coord, zerolog.Nop())))

	found, err := s.RunNow("daily_snapshot")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 1, coord.snapshots)

	found, err = s.RunNow("unknown")
	require.NoError(t, err)
	assert.False(t, found)
}
