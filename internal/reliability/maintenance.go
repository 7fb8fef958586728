package reliability

import (
	"context"
	"fmt"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/aristath/arena/internal/database"
)

// MaintenanceService performs routine SQLite upkeep on the engine's databases.
type MaintenanceService struct {
	databases map[string]*database.DB
	dataDir   string
	log       zerolog.Logger
}

// NewMaintenanceService creates a maintenance service over the named databases.
func NewMaintenanceService(databases map[string]*database.DB, dataDir string, log zerolog.Logger) *MaintenanceService {
	return &MaintenanceService{
		databases: databases,
		dataDir:   dataDir,
		log:       log.With().Str("service", "maintenance").Logger(),
	}
}

// RunDaily checks integrity, truncates WAL files, and verifies disk space.
// A failed integrity check is fatal; a failed checkpoint is only logged.
func (s *MaintenanceService) RunDaily(ctx context.Context) error {
	for name, db := range s.databases {
		if err := db.HealthCheck(ctx); err != nil {
			return fmt.Errorf("integrity check failed for %s: %w", name, err)
		}

		if err := db.WALCheckpoint("TRUNCATE"); err != nil {
			s.log.Warn().Err(err).Str("database", name).Msg("WAL checkpoint failed")
		}

		if stats, err := db.GetStats(); err == nil {
			s.log.Debug().
				Str("database", name).
				Int64("size_bytes", stats.SizeBytes).
				Int64("wal_size_bytes", stats.WALSizeBytes).
				Int64("freelist_pages", stats.FreelistCount).
				Msg("Database stats")
		}
	}

	return s.checkDiskSpace()
}

// RunWeekly vacuums every database except the append-only ledger.
func (s *MaintenanceService) RunWeekly(ctx context.Context) error {
	for name, db := range s.databases {
		if db.Profile() == database.ProfileLedger {
			s.log.Debug().Str("database", name).Msg("Skipping VACUUM for append-only ledger")
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := db.Vacuum(); err != nil {
			s.log.Error().Err(err).Str("database", name).Msg("VACUUM failed")
		}
	}
	return nil
}

// checkDiskSpace halts maintenance when free space drops below 500MB.
func (s *MaintenanceService) checkDiskSpace() error {
	stat := syscall.Statfs_t{}
	if err := syscall.Statfs(s.dataDir, &stat); err != nil {
		return fmt.Errorf("failed to stat filesystem: %w", err)
	}

	availableGB := float64(stat.Bavail*uint64(stat.Bsize)) / 1e9
	switch {
	case availableGB < 0.5:
		return fmt.Errorf("only %.2f GB free on data volume", availableGB)
	case availableGB < 5.0:
		s.log.Warn().Float64("available_gb", availableGB).Msg("Disk space running low")
	}
	return nil
}
