// Package main is the entry point for the arena, a paper-trading engine that
// runs several strategies against isolated portfolios and compares them.
package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/arena/internal/config"
	"github.com/aristath/arena/internal/database"
	"github.com/aristath/arena/internal/domain"
	"github.com/aristath/arena/internal/events"
	"github.com/aristath/arena/internal/modules/arena"
	"github.com/aristath/arena/internal/modules/marketdata"
	"github.com/aristath/arena/internal/modules/portfolio"
	"github.com/aristath/arena/internal/modules/rebalancing"
	"github.com/aristath/arena/internal/modules/risk"
	"github.com/aristath/arena/internal/modules/strategies"
	"github.com/aristath/arena/internal/modules/trading"
	"github.com/aristath/arena/internal/reliability"
	"github.com/aristath/arena/internal/scheduler"
	"github.com/aristath/arena/internal/server"
	"github.com/aristath/arena/internal/utils"
	"github.com/aristath/arena/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().Msg("Starting arena")

	// Databases: append-only trade ledger and portfolio snapshots.
	ledgerDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "ledger.db"),
		Profile: database.ProfileLedger,
		Name:    "ledger",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open ledger database")
	}
	defer ledgerDB.Close()

	portfolioDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "portfolio.db"),
		Profile: database.ProfileStandard,
		Name:    "portfolio",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open portfolio database")
	}
	defer portfolioDB.Close()

	for _, db := range []*database.DB{ledgerDB, portfolioDB} {
		if err := db.Migrate(); err != nil {
			log.Fatal().Err(err).Str("database", db.Name()).Msg("Failed to migrate database")
		}
	}

	clock := domain.SystemClock{}
	bus := events.NewBus(log)

	// Market data, with the sector map taken from the environment:
	// ARENA_SECTORS="AAPL:Technology,XOM:Energy".
	market := marketdata.NewService(20, clock, log)
	for _, pair := range utils.ParseCSV(os.Getenv("ARENA_SECTORS")) {
		ticker, sector, ok := strings.Cut(pair, ":")
		if !ok || ticker == "" || sector == "" {
			log.Warn().Str("pair", pair).Msg("Ignoring malformed sector mapping")
			continue
		}
		market.SetSector(strings.TrimSpace(ticker), strings.TrimSpace(sector))
	}

	riskManager := risk.NewManager(cfg.Risk, log)

	// Execution path: trade ledger -> guard -> paper broker.
	trades := trading.NewTradeRepository(ledgerDB.Conn(), log)
	guard := trading.NewExecutionGuard(trades, cfg.Trading, clock, log)
	broker := trading.NewPaperBroker(time.Duration(cfg.Rebalance.ExecutionTimeout)*time.Second, guard, log)

	snapshots := portfolio.NewSnapshotRepository(portfolioDB.Conn(), log)
	reports := rebalancing.NewReportRepository(portfolioDB.Conn(), log)

	// The arena: one portfolio and one rebalancer per strategy.
	coordinator := arena.NewArena(cfg, market, riskManager, broker, bus, clock, log)
	coordinator.SetTradeRecorder(trades)
	coordinator.SetSnapshotStore(snapshots)
	coordinator.SetReportStore(reports)

	entrants := []domain.Strategy{
		strategies.NewMomentum(market, strategies.DefaultMomentumConfig(), domain.DefaultRiskParameters(), log),
		strategies.NewMeanReversion(market, strategies.DefaultMeanReversionConfig(), domain.DefaultRiskParameters(), log),
	}
	for _, s := range entrants {
		if err := coordinator.AddStrategy(s); err != nil {
			log.Fatal().Err(err).Str("strategy", s.Name()).Msg("Failed to enter strategy")
		}
	}

	maintenance := reliability.NewMaintenanceService(map[string]*database.DB{
		"ledger":    ledgerDB,
		"portfolio": portfolioDB,
	}, cfg.DataDir, log)

	var backup *reliability.BackupService
	if cfg.Backup.Enabled {
		initCtx, cancelInit := context.WithTimeout(context.Background(), 10*time.Second)
		store, err := reliability.NewS3Client(initCtx, cfg.Backup, log)
		cancelInit()
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize backup storage")
		}
		backup = reliability.NewBackupService(coordinator, store, bus, log)

		// Restore the newest backup so a restart picks up where it left off.
		restoreCtx, cancelRestore := context.WithTimeout(context.Background(), 2*time.Minute)
		if err := backup.RestoreLatest(restoreCtx); err != nil {
			log.Warn().Err(err).Msg("No state restored, starting fresh")
		}
		cancelRestore()
	}

	// Background jobs. The cycle job fires every weekday evening; each
	// rebalancer's weekday and drift gates decide who actually trades.
	sched := scheduler.New(log)
	registerJob(sched, "30 17 * * MON-FRI", scheduler.NewCycleJob(coordinator, 10*time.Minute, log), log)
	registerJob(sched, "0 12 * * MON-FRI", scheduler.NewRiskScanJob(coordinator, log), log)
	registerJob(sched, "0 18 * * MON-FRI", scheduler.NewSnapshotJob(coordinator, log), log)
	registerJob(sched, "0 2 * * *", scheduler.NewMaintenanceJob(maintenance, log), log)
	registerJob(sched, "0 3 * * SUN", scheduler.NewWeeklyMaintenanceJob(maintenance, log), log)
	if backup != nil {
		registerJob(sched, "30 18 * * *", scheduler.NewBackupJob(backup, 5*time.Minute, log), log)
	}
	sched.Start()
	defer sched.Stop()

	srv := server.New(server.Config{
		Log:         log,
		Cfg:         cfg,
		LedgerDB:    ledgerDB,
		PortfolioDB: portfolioDB,
		Arena:       coordinator,
		Market:      market,
		Risk:        riskManager,
		Bus:         bus,
		Scheduler:   sched,
		Trades:      trades,
		Snapshots:   snapshots,
		Reports:     reports,
		Clock:       clock,
		Port:        cfg.Port,
		DevMode:     cfg.DevMode,
	})

	go func() {
		if err := srv.Start(); err != nil {
			log.Error().Err(err).Msg("HTTP server stopped")
		}
	}()

	// Wait for shutdown signal.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}
}

func registerJob(sched *scheduler.Scheduler, schedule string, job scheduler.Job, log zerolog.Logger) {
	if err := sched.AddJob(schedule, job); err != nil {
		log.Fatal().Err(err).Str("job", job.Name()).Msg("Failed to register job")
	}
}
