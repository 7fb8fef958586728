// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir  string // Base directory for all databases (always absolute)
	LogLevel string
	Port     int
	DevMode  bool

	Portfolio PortfolioConfig
	Risk      RiskConfig
	Rebalance RebalanceConfig
	Trading   TradingConfig
	Backup    BackupConfig
}

// PortfolioConfig holds the per-portfolio ledger limits.
type PortfolioConfig struct {
	InitialCapital          float64
	MaxPositionsPerStrategy int
	MaxTotalPositions       int
	CashReservePct          float64
	TransactionCostPct      float64
	TransactionCostMin      float64
}

// RiskConfig holds the hard risk limits applied during plan validation.
type RiskConfig struct {
	MaxPortfolioVaR      float64 // 1-day 95% VaR as fraction of portfolio value
	MaxSectorExposure    float64
	MaxCorrelation       float64
	VaRConfidence        float64
	VolatilityMultiplier float64 // k in stop distance clamp(k * vol, min, max)
	VolatilityFloor      float64 // annualized floor for position sizing
	KellyLookbackTrades  int
}

// RebalanceConfig controls the weekly cycle trigger and execution limits.
type RebalanceConfig struct {
	Weekday          int     // 0=Sunday .. 6=Saturday
	DriftThreshold   float64 // allocation drift that forces an off-schedule cycle
	MinTradeValue    float64 // suppress orders below this notional
	LiquidityCapPct  float64 // max fraction of average daily volume per order
	ExecutionTimeout int     // seconds per order before EXECUTION_TIMEOUT
}

// TradingConfig holds the execution guard limits for the paper broker.
type TradingConfig struct {
	MaxTradesPerDay      int // 0 disables the cap
	ReentryCooldownHours int // 0 disables the cooldown
}

// BackupConfig holds S3-compatible object storage credentials for state backups.
type BackupConfig struct {
	Enabled         bool
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	Region          string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("ARENA_DATA_DIR", "")
	if dataDir == "" {
		dataDir = "./data"
	}

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:  absDataDir,
		Port:     getEnvAsInt("ARENA_PORT", 8001),
		DevMode:  getEnvAsBool("DEV_MODE", false),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Portfolio: PortfolioConfig{
			InitialCapital:          getEnvAsFloat("INITIAL_CAPITAL", 100000.0),
			MaxPositionsPerStrategy: getEnvAsInt("MAX_POSITIONS_PER_STRATEGY", 15),
			MaxTotalPositions:       getEnvAsInt("MAX_TOTAL_POSITIONS", 50),
			CashReservePct:          getEnvAsFloat("CASH_RESERVE_PCT", 0.05),
			TransactionCostPct:      getEnvAsFloat("TRANSACTION_COST_PCT", 0.001),
			TransactionCostMin:      getEnvAsFloat("TRANSACTION_COST_MIN", 1.0),
		},
		Risk: RiskConfig{
			MaxPortfolioVaR:      getEnvAsFloat("MAX_PORTFOLIO_VAR", 0.02),
			MaxSectorExposure:    getEnvAsFloat("MAX_SECTOR_EXPOSURE", 0.25),
			MaxCorrelation:       getEnvAsFloat("MAX_CORRELATION", 0.70),
			VaRConfidence:        getEnvAsFloat("VAR_CONFIDENCE", 0.95),
			VolatilityMultiplier: getEnvAsFloat("VOLATILITY_MULTIPLIER", 2.0),
			VolatilityFloor:      getEnvAsFloat("VOLATILITY_FLOOR", 0.05),
			KellyLookbackTrades:  getEnvAsInt("KELLY_LOOKBACK_TRADES", 30),
		},
		Rebalance: RebalanceConfig{
			Weekday:          getEnvAsInt("REBALANCE_WEEKDAY", 1), // Monday
			DriftThreshold:   getEnvAsFloat("DRIFT_THRESHOLD", 0.10),
			MinTradeValue:    getEnvAsFloat("MIN_TRADE_VALUE", 200.0),
			LiquidityCapPct:  getEnvAsFloat("LIQUIDITY_CAP_PCT", 0.05),
			ExecutionTimeout: getEnvAsInt("EXECUTION_TIMEOUT_SECONDS", 30),
		},
		Trading: TradingConfig{
			MaxTradesPerDay:      getEnvAsInt("MAX_TRADES_PER_DAY", 100),
			ReentryCooldownHours: getEnvAsInt("REENTRY_COOLDOWN_HOURS", 24),
		},
		Backup: BackupConfig{
			Enabled:         getEnvAsBool("BACKUP_ENABLED", false),
			Endpoint:        getEnv("BACKUP_S3_ENDPOINT", ""),
			AccessKeyID:     getEnv("BACKUP_S3_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("BACKUP_S3_SECRET_ACCESS_KEY", ""),
			Bucket:          getEnv("BACKUP_S3_BUCKET", ""),
			Region:          getEnv("BACKUP_S3_REGION", "auto"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present and sane
func (c *Config) Validate() error {
	if c.Portfolio.InitialCapital <= 0 {
		return fmt.Errorf("INITIAL_CAPITAL must be positive, got %f", c.Portfolio.InitialCapital)
	}
	if c.Portfolio.CashReservePct < 0 || c.Portfolio.CashReservePct >= 1 {
		return fmt.Errorf("CASH_RESERVE_PCT must be in [0,1), got %f", c.Portfolio.CashReservePct)
	}
	if c.Portfolio.MaxPositionsPerStrategy <= 0 || c.Portfolio.MaxTotalPositions <= 0 {
		return fmt.Errorf("position limits must be positive")
	}
	if c.Risk.MaxPortfolioVaR <= 0 {
		return fmt.Errorf("MAX_PORTFOLIO_VAR must be positive, got %f", c.Risk.MaxPortfolioVaR)
	}
	if c.Risk.MaxCorrelation <= 0 || c.Risk.MaxCorrelation > 1 {
		return fmt.Errorf("MAX_CORRELATION must be in (0,1], got %f", c.Risk.MaxCorrelation)
	}
	if c.Risk.VaRConfidence <= 0.5 || c.Risk.VaRConfidence >= 1 {
		return fmt.Errorf("VAR_CONFIDENCE must be in (0.5,1), got %f", c.Risk.VaRConfidence)
	}
	if c.Rebalance.Weekday < 0 || c.Rebalance.Weekday > 6 {
		return fmt.Errorf("REBALANCE_WEEKDAY must be in [0,6], got %d", c.Rebalance.Weekday)
	}
	if c.Rebalance.LiquidityCapPct <= 0 || c.Rebalance.LiquidityCapPct > 1 {
		return fmt.Errorf("LIQUIDITY_CAP_PCT must be in (0,1], got %f", c.Rebalance.LiquidityCapPct)
	}
	if c.Backup.Enabled {
		if c.Backup.Endpoint == "" || c.Backup.Bucket == "" {
			return fmt.Errorf("backup enabled but BACKUP_S3_ENDPOINT or BACKUP_S3_BUCKET missing")
		}
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
