package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/arena/internal/domain"
	"github.com/aristath/arena/internal/modules/rebalancing"
)

// CycleCoordinator is the slice of the arena the scheduled jobs need.
type CycleCoordinator interface {
	UpdatePrices()
	RunDueCycles(ctx context.Context) map[string]*rebalancing.CycleReport
	ScanRiskAlerts() map[string][]domain.RiskAlert
	CreateSnapshots() []domain.PortfolioSnapshot
}

// BackupRunner creates and uploads one state backup.
type BackupRunner interface {
	CreateAndUploadBackup(ctx context.Context) error
}

// MaintenanceRunner performs database upkeep.
type MaintenanceRunner interface {
	RunDaily(ctx context.Context) error
	RunWeekly(ctx context.Context) error
}

// CycleJob refreshes prices and runs every due rebalance cycle. Scheduled
// daily; the rebalancers' own weekday and drift gates decide who actually runs.
type CycleJob struct {
	arena   CycleCoordinator
	timeout time.Duration
	log     zerolog.Logger
}

// NewCycleJob creates the daily cycle job.
func NewCycleJob(arena CycleCoordinator, timeout time.Duration, log zerolog.Logger) *CycleJob {
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &CycleJob{
		arena:   arena,
		timeout: timeout,
		log:     log.With().Str("job", "rebalance_cycle").Logger(),
	}
}

// Name returns the job name for scheduler
func (j *CycleJob) Name() string { return "rebalance_cycle" }

// Run executes the daily cycle job
func (j *CycleJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	j.arena.UpdatePrices()
	reports := j.arena.RunDueCycles(ctx)

	for name, report := range reports {
		j.log.Info().
			Str("portfolio", name).
			Str("final_state", string(report.FinalState)).
			Int("executed", report.OrdersExecuted).
			Int("failed", report.OrdersFailed).
			Msg("Cycle report")
	}
	return nil
}

// RiskScanJob runs the advisory risk monitor across all portfolios.
type RiskScanJob struct {
	arena CycleCoordinator
	log   zerolog.Logger
}

// NewRiskScanJob creates the risk scan job.
func NewRiskScanJob(arena CycleCoordinator, log zerolog.Logger) *RiskScanJob {
	return &RiskScanJob{arena: arena, log: log.With().Str("job", "risk_scan").Logger()}
}

// Name returns the job name for scheduler
func (j *RiskScanJob) Name() string { return "risk_scan" }

// Run executes the risk scan job
func (j *RiskScanJob) Run() error {
	j.arena.UpdatePrices()
	alerts := j.arena.ScanRiskAlerts()
	for portfolio, list := range alerts {
		j.log.Warn().Str("portfolio", portfolio).Int("alerts", len(list)).Msg("Risk limits flagged")
	}
	return nil
}

// SnapshotJob records the end-of-day snapshot for every portfolio.
type SnapshotJob struct {
	arena CycleCoordinator
	log   zerolog.Logger
}

// NewSnapshotJob creates the end-of-day snapshot job.
func NewSnapshotJob(arena CycleCoordinator, log zerolog.Logger) *SnapshotJob {
	return &SnapshotJob{arena: arena, log: log.With().Str("job", "daily_snapshot").Logger()}
}

// Name returns the job name for scheduler
func (j *SnapshotJob) Name() string { return "daily_snapshot" }

// Run executes the snapshot job
func (j *SnapshotJob) Run() error {
	j.arena.UpdatePrices()
	snaps := j.arena.CreateSnapshots()
	j.log.Info().Int("portfolios", len(snaps)).Msg("Snapshots created")
	return nil
}

// BackupJob uploads a state backup to object storage.
type BackupJob struct {
	backup  BackupRunner
	timeout time.Duration
	log     zerolog.Logger
}

// NewBackupJob creates the backup job.
func NewBackupJob(backup BackupRunner, timeout time.Duration, log zerolog.Logger) *BackupJob {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &BackupJob{
		backup:  backup,
		timeout: timeout,
		log:     log.With().Str("job", "state_backup").Logger(),
	}
}

// Name returns the job name for scheduler
func (j *BackupJob) Name() string { return "state_backup" }

// Run executes the backup job
func (j *BackupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()
	return j.backup.CreateAndUploadBackup(ctx)
}

// MaintenanceJob runs daily database upkeep.
type MaintenanceJob struct {
	maintenance MaintenanceRunner
	log         zerolog.Logger
}

// NewMaintenanceJob creates the maintenance job.
func NewMaintenanceJob(maintenance MaintenanceRunner, log zerolog.Logger) *MaintenanceJob {
	return &MaintenanceJob{maintenance: maintenance, log: log.With().Str("job", "daily_maintenance").Logger()}
}

// Name returns the job name for scheduler
func (j *MaintenanceJob) Name() string { return "daily_maintenance" }

// Run executes the maintenance job
func (j *MaintenanceJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	return j.maintenance.RunDaily(ctx)
}

// WeeklyMaintenanceJob reclaims database space outside trading hours.
type WeeklyMaintenanceJob struct {
	maintenance MaintenanceRunner
	log         zerolog.Logger
}

// NewWeeklyMaintenanceJob creates the weekly vacuum job.
func NewWeeklyMaintenanceJob(maintenance MaintenanceRunner, log zerolog.Logger) *WeeklyMaintenanceJob {
	return &WeeklyMaintenanceJob{maintenance: maintenance, log: log.With().Str("job", "weekly_maintenance").Logger()}
}

// Name returns the job name for scheduler
func (j *WeeklyMaintenanceJob) Name() string { return "weekly_maintenance" }

// Run executes the weekly maintenance job
func (j *WeeklyMaintenanceJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	return j.maintenance.RunWeekly(ctx)
}
