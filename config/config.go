package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"stockAlertsBot/internal/adapters/logger" // Import the logger package for LogLevel
)

// Config holds all application configuration.
type Config struct {
	// Market data API
	TwelveDataAPIKey string

	// Watchlist
	Watchlist []string
	Sectors   map[string]string // symbol -> sector, optional

	// Historical data
	HistoryDays int // Calendar days of daily bars to backfill

	// Signal thresholds
	MovePct          float64 // % change from day open
	VolumeSpikeMult  float64
	BreakoutLookback int

	// Alert throttling
	MinAlertGap    time.Duration // Minimum gap between alerts per symbol
	ReAlertStepPct float64       // Additional % move to re-alert

	// Trend estimation
	TrendWindow      int     // Closes fed to the regression
	TrendMinSlopePct float64 // Minimum normalized slope per bar
	TrendMinR2       float64 // Minimum regression fit

	// Market hours
	MarketZone      string
	MarketOpenHour  int
	MarketCloseHour int

	// Scheduling
	MonitorCron string
	TrendCron   string
	EODCron     string
	Workers     int // Concurrent symbol evaluations

	// Email
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	AlertEmailTo string

	// Database
	DBPath string

	// Logging
	LogLevel logger.LogLevel
}

// watchlistFile is the optional YAML companion file carrying the watchlist
// and sector map. Env vars win over the file.
type watchlistFile struct {
	Watchlist []string          `yaml:"watchlist"`
	Sectors   map[string]string `yaml:"sectors"`
}

// LoadConfig loads configuration from environment variables (.env file) and
// the optional watchlist YAML file.
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := &Config{}
	var err error
	var errs []string // Collect validation errors

	cfg.TwelveDataAPIKey = getEnv("TWELVE_DATA_API_KEY", "")
	if cfg.TwelveDataAPIKey == "" {
		errs = append(errs, "TWELVE_DATA_API_KEY must be set")
	}

	// Watchlist: env CSV first, YAML file as fallback.
	if raw := getEnv("WATCHLIST", ""); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
				cfg.Watchlist = append(cfg.Watchlist, s)
			}
		}
	}
	if path := getEnv("WATCHLIST_FILE", ""); path != "" {
		if err := cfg.loadWatchlistFile(path); err != nil {
			errs = append(errs, fmt.Sprintf("invalid WATCHLIST_FILE: %v", err))
		}
	}
	if len(cfg.Watchlist) == 0 {
		errs = append(errs, "WATCHLIST (or WATCHLIST_FILE) must be set")
	}

	cfg.HistoryDays, err = getEnvAsIntRequired("HISTORY_DAYS", 365)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid HISTORY_DAYS: %v", err))
	} else if cfg.HistoryDays < 1 {
		errs = append(errs, "HISTORY_DAYS must be positive")
	}

	cfg.MovePct, err = getEnvAsFloatRequired("MOVE_PCT", 1.5)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MOVE_PCT: %v", err))
	} else if cfg.MovePct < 0 {
		errs = append(errs, "MOVE_PCT cannot be negative")
	}

	cfg.VolumeSpikeMult, err = getEnvAsFloatRequired("VOLUME_SPIKE_MULT", 2.0)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid VOLUME_SPIKE_MULT: %v", err))
	} else if cfg.VolumeSpikeMult < 0 {
		errs = append(errs, "VOLUME_SPIKE_MULT cannot be negative")
	}

	cfg.BreakoutLookback, err = getEnvAsIntRequired("BREAKOUT_LOOKBACK", 20)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid BREAKOUT_LOOKBACK: %v", err))
	} else if cfg.BreakoutLookback < 1 {
		errs = append(errs, "BREAKOUT_LOOKBACK must be at least 1")
	}

	gapMin, err := getEnvAsIntRequired("MIN_ALERT_GAP_MIN", 60)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MIN_ALERT_GAP_MIN: %v", err))
	} else if gapMin < 1 {
		errs = append(errs, "MIN_ALERT_GAP_MIN must be at least 1")
	}
	cfg.MinAlertGap = time.Duration(gapMin) * time.Minute

	cfg.ReAlertStepPct, err = getEnvAsFloatRequired("RE_ALERT_STEP_PCT", 0.5)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid RE_ALERT_STEP_PCT: %v", err))
	} else if cfg.ReAlertStepPct < 0 {
		errs = append(errs, "RE_ALERT_STEP_PCT cannot be negative")
	}

	cfg.TrendWindow = getEnvAsInt("TREND_WINDOW", 10)
	cfg.TrendMinSlopePct = getEnvAsFloat("TREND_MIN_SLOPE_PCT", 0.0002)
	cfg.TrendMinR2 = getEnvAsFloat("TREND_MIN_R2", 0.15)
	if cfg.TrendWindow < 2 {
		errs = append(errs, "TREND_WINDOW must be at least 2")
	}
	if cfg.TrendMinSlopePct < 0 || cfg.TrendMinR2 < 0 {
		errs = append(errs, "trend thresholds cannot be negative")
	}

	cfg.MarketZone = getEnv("MARKET_ZONE", "Europe/London")
	cfg.MarketOpenHour = getEnvAsInt("MARKET_OPEN_HOUR", 8)
	cfg.MarketCloseHour = getEnvAsInt("MARKET_CLOSE_HOUR", 16)
	if cfg.MarketOpenHour < 0 || cfg.MarketCloseHour > 24 || cfg.MarketOpenHour >= cfg.MarketCloseHour {
		errs = append(errs, "invalid market hours (open must be before close, within 0-24)")
	}

	cfg.MonitorCron = getEnv("MONITOR_CRON", "*/15 * * * 1-5")
	cfg.TrendCron = getEnv("TREND_CRON", "*/30 * * * 1-5")
	cfg.EODCron = getEnv("EOD_CRON", "30 16 * * 1-5")

	cfg.Workers = getEnvAsInt("WORKERS", 4)
	if cfg.Workers < 1 {
		errs = append(errs, "WORKERS must be at least 1")
	}

	cfg.SMTPHost = getEnv("SMTP_HOST", "smtp.gmail.com")
	cfg.SMTPPort, err = getEnvAsIntRequired("SMTP_PORT", 587)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid SMTP_PORT: %v", err))
	}
	cfg.SMTPUser = getEnv("SMTP_USER", "")
	cfg.SMTPPassword = getEnv("SMTP_PASSWORD", "")
	cfg.AlertEmailTo = getEnv("ALERT_EMAIL_TO", "")

	cfg.DBPath = getEnv("DB_PATH", "./data/stock_alerts.db")
	if cfg.DBPath == "" {
		errs = append(errs, "DB_PATH must be set")
	}

	cfg.LogLevel = logger.ParseLevel(getEnv("LOG_LEVEL", "INFO"))

	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return cfg, nil
}

func (c *Config) loadWatchlistFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	var wf watchlistFile
	if err := yaml.Unmarshal(data, &wf); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	if len(c.Watchlist) == 0 {
		for _, s := range wf.Watchlist {
			if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
				c.Watchlist = append(c.Watchlist, s)
			}
		}
	}
	if len(wf.Sectors) > 0 {
		c.Sectors = make(map[string]string, len(wf.Sectors))
		for sym, sector := range wf.Sectors {
			c.Sectors[strings.ToUpper(strings.TrimSpace(sym))] = sector
		}
	}
	return nil
}

// --- Env Var Helpers ---

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsIntRequired(key string, defaultValue int) (int, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return 0, fmt.Errorf("invalid integer value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloatRequired(key string, defaultValue float64) (float64, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid float value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}
