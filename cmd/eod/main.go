package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math"

	"stockAlertsBot/config"
	"stockAlertsBot/internal/adapters/logger"
	"stockAlertsBot/internal/adapters/sqlite"
	"stockAlertsBot/internal/adapters/twelvedata"
	"stockAlertsBot/internal/domain"
	"stockAlertsBot/internal/report"
)

// ledgerRowLimit bounds how many ledger rows per symbol feed the report.
const ledgerRowLimit = 1000

// eod captures the completed daily bar for every watchlist symbol, verifies
// each row landed, and prints the running paper-trading result. It exists
// for environments that run the capture from an external scheduler instead
// of the long-lived service.
func main() {
	csvPath := flag.String("csv", "", "optional path for a ledger CSV export")
	flag.Parse()

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
	}

	// 2. Initialize Logger
	appLogger := logger.NewStdLogger(cfg.LogLevel)
	ctx := context.Background()

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

	failures := 0
	var positions []*domain.Position
	for _, symbol := range cfg.Watchlist {
		if err := captureSymbol(ctx, marketClient, repo, symbol); err != nil {
			appLogger.Error(ctx, err, "End-of-day capture failed", map[string]interface{}{"symbol": symbol})
			failures++
		}
		rows, err := repo.FindBySymbol(ctx, symbol, ledgerRowLimit)
		if err != nil {
			appLogger.Error(ctx, err, "Failed to load ledger rows", map[string]interface{}{"symbol": symbol})
			continue
		}
		positions = append(positions, rows...)
	}

	metrics := report.Analyze(positions)
	appLogger.Info(ctx, "Paper-trading result to date", map[string]interface{}{
		"totalProfit": metrics.TotalProfit,
		"closed":      metrics.ClosedPositions,
		"open":        metrics.OpenPositions,
		"winRate":     metrics.WinRate,
		"maxDrawdown": metrics.MaxDrawdown,
	})

	if *csvPath != "" {
		if err := report.WritePositionsToCSV(positions, *csvPath); err != nil {
			appLogger.Error(ctx, err, "Failed to write ledger CSV", map[string]interface{}{"file": *csvPath})
		} else {
			appLogger.Info(ctx, "Ledger exported", map[string]interface{}{"file": *csvPath})
		}
	}

	appLogger.Info(ctx, "End-of-day capture complete", map[string]interface{}{
		"symbols":  len(cfg.Watchlist),
		"failures": failures,
	})
	if failures > 0 {
		log.Fatalf("end-of-day capture finished with %d failure(s)", failures)
	}
}

func captureSymbol(ctx context.Context, market *twelvedata.Client, repo *sqlite.Repository, symbol string) error {
	bars, err := market.FetchTimeSeries(ctx, symbol, "1day", 1)
	if err != nil {
		return err
	}
	if len(bars) == 0 {
		return nil
	}

	bar := domain.Latest(bars)
	if math.IsNaN(bar.Close) {
		return nil
	}
	if err := repo.StoreDailyBar(ctx, bar); err != nil {
		return err
	}

	// Read the row back to confirm the write.
	date := bar.Timestamp.Format("2006-01-02")
	stored, err := repo.GetDailyBar(ctx, symbol, date)
	if err != nil {
		return err
	}
	if stored == nil {
		return fmt.Errorf("daily bar for %s on %s missing after store", symbol, date)
	}
	return nil
}
