package main

import (
	"context"
	"flag"
	"log"
	"math"
	"time"

	"stockAlertsBot/config"
	"stockAlertsBot/internal/adapters/logger"
	"stockAlertsBot/internal/adapters/sqlite"
	"stockAlertsBot/internal/adapters/twelvedata"
	"stockAlertsBot/internal/ports"
)

// backfill loads historical daily bars for every watchlist symbol into the
// OHLC store and records the outcome of each symbol in the ingestion log.
func main() {
	days := flag.Int("days", 0, "calendar days of history to load (default: HISTORY_DAYS from config)")
	flag.Parse()

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
	}
	if *days <= 0 {
		*days = cfg.HistoryDays
	}

	// 2. Initialize Logger
	appLogger := logger.NewStdLogger(cfg.LogLevel)
	ctx := context.Background()
	appLogger.Info(ctx, "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String()})

	// 3. Initialize Repository (Database Adapter)
	repo, err := sqlite.NewRepository(sqlite.Config{
		DBPath: cfg.DBPath,
		Logger: appLogger,
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize database repository")
		log.Fatalf("FATAL: Failed to initialize database repository: %v", err)
	}
	defer func() {
		if err := repo.Close(); err != nil {
			appLogger.Error(ctx, err, "Error closing database repository")
		}
	}()

	// 4. Initialize Market Data Client (Twelve Data Adapter)
	marketClient, err := twelvedata.New(twelvedata.Config{
		APIKey: cfg.TwelveDataAPIKey,
		Logger: appLogger,
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize market data client")
		log.Fatalf("FATAL: Failed to initialize market data client: %v", err)
	}

	end := time.Now()
	start := end.AddDate(0, 0, -*days)
	appLogger.Info(ctx, "Backfill started", map[string]interface{}{
		"symbols": len(cfg.Watchlist),
		"from":    start.Format("2006-01-02"),
		"to":      end.Format("2006-01-02"),
	})

	for _, symbol := range cfg.Watchlist {
		stored, err := backfillSymbol(ctx, marketClient, repo, symbol, *days)

		entry := &ports.IngestionEntry{
			Symbol:     symbol,
			RangeStart: start.Format("2006-01-02"),
			RangeEnd:   end.Format("2006-01-02"),
			Status:     "ok",
			Records:    stored,
		}
		if err != nil {
			entry.Status = "error"
			entry.ErrMessage = err.Error()
			appLogger.Error(ctx, err, "Backfill failed for symbol", map[string]interface{}{"symbol": symbol})
		} else {
			appLogger.Info(ctx, "Backfill finished for symbol", map[string]interface{}{
				"symbol": symbol, "records": stored,
			})
		}
		if logErr := repo.LogIngestion(ctx, entry); logErr != nil {
			appLogger.Error(ctx, logErr, "Failed to write ingestion log entry", map[string]interface{}{"symbol": symbol})
		}
	}

	appLogger.Info(ctx, "Backfill complete")
}

func backfillSymbol(ctx context.Context, market ports.MarketDataClient, repo *sqlite.Repository, symbol string, days int) (int, error) {
	bars, err := market.FetchTimeSeries(ctx, symbol, "1day", days)
	if err != nil {
		return 0, err
	}

	stored := 0
	for _, bar := range bars {
		if math.IsNaN(bar.Close) {
			continue
		}
		if err := repo.StoreDailyBar(ctx, bar); err != nil {
			return stored, err
		}
		stored++
	}
	return stored, nil
}
