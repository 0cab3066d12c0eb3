package main

import (
	"context"
	"log" // Use standard log only for initial fatal errors before logger is set up

	"stockAlertsBot/config"
	"stockAlertsBot/internal/adapters/logger"
	"stockAlertsBot/internal/adapters/smtp"
	"stockAlertsBot/internal/adapters/sqlite"
	"stockAlertsBot/internal/adapters/twelvedata"
	"stockAlertsBot/internal/alert"
	"stockAlertsBot/internal/app"
	"stockAlertsBot/internal/ledger"
	"stockAlertsBot/internal/markethours"
	"stockAlertsBot/internal/signal"
	"stockAlertsBot/internal/trend"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
	}

	// 2. Initialize Logger
	appLogger := logger.NewStdLogger(cfg.LogLevel)
	appLogger.Info(context.Background(), "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String()})

	// 3. Initialize Repository (Database Adapter)
	repo, err := sqlite.NewRepository(sqlite.Config{
		DBPath: cfg.DBPath,
		Logger: appLogger,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize database repository")
		log.Fatalf("FATAL: Failed to initialize database repository: %v", err) // Also log to stderr
	}
	defer func() {
		if err := repo.Close(); err != nil {
			appLogger.Error(context.Background(), err, "Error closing database repository")
		}
	}()
	appLogger.Info(context.Background(), "Database repository initialized")

	// 4. Initialize Market Data Client (Twelve Data Adapter)
	marketClient, err := twelvedata.New(twelvedata.Config{
		APIKey: cfg.TwelveDataAPIKey,
		Logger: appLogger,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize market data client")
		log.Fatalf("FATAL: Failed to initialize market data client: %v", err)
	}
	appLogger.Info(context.Background(), "Market data client initialized")

	// 5. Initialize Notifier (SMTP Adapter)
	mailer, err := smtp.NewMailer(smtp.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUser,
		Password: cfg.SMTPPassword,
		To:       cfg.AlertEmailTo,
		Logger:   appLogger,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize mailer")
		log.Fatalf("FATAL: Failed to initialize mailer: %v", err)
	}

	// 6. Initialize the decision components
	detector, err := signal.NewDetector(signal.Config{
		MovePct:          cfg.MovePct,
		VolumeSpikeMult:  cfg.VolumeSpikeMult,
		BreakoutLookback: cfg.BreakoutLookback,
	}, appLogger)
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize signal detector")
		log.Fatalf("FATAL: Failed to initialize signal detector: %v", err)
	}

	estimator, err := trend.NewEstimator(trend.Config{
		WindowSize:        cfg.TrendWindow,
		MinSlopePctPerBar: cfg.TrendMinSlopePct,
		MinR2:             cfg.TrendMinR2,
	}, appLogger)
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize trend estimator")
		log.Fatalf("FATAL: Failed to initialize trend estimator: %v", err)
	}

	throttle, err := alert.NewThrottle(alert.Config{
		MinAlertGap:    cfg.MinAlertGap,
		ReAlertStepPct: cfg.ReAlertStepPct,
		MovePct:        cfg.MovePct,
	}, repo, appLogger)
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize alert throttle")
		log.Fatalf("FATAL: Failed to initialize alert throttle: %v", err)
	}

	book, err := ledger.New(repo, appLogger)
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize position ledger")
		log.Fatalf("FATAL: Failed to initialize position ledger: %v", err)
	}

	clock, err := markethours.NewClock(cfg.MarketZone, cfg.MarketOpenHour, cfg.MarketCloseHour)
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize market clock")
		log.Fatalf("FATAL: Failed to initialize market clock: %v", err)
	}

	// 7. Initialize Application Service
	service, err := app.NewMonitorService(app.Deps{
		Cfg:       cfg,
		Logger:    appLogger,
		Market:    marketClient,
		Notifier:  mailer,
		Signals:   repo,
		Positions: repo,
		Trends:    repo,
		Daily:     repo,
		Detector:  detector,
		Estimator: estimator,
		Throttle:  throttle,
		Ledger:    book,
		Clock:     clock,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize monitor service")
		log.Fatalf("FATAL: Failed to initialize monitor service: %v", err)
	}
	appLogger.Info(context.Background(), "Monitor service initialized")

	// 8. Start the Service
	// Use context.Background() as the base context for the application run
	if err := service.Start(context.Background()); err != nil && err != context.Canceled {
		appLogger.Error(context.Background(), err, "Monitor service exited with error")
		log.Fatalf("FATAL: Monitor service exited with error: %v", err)
	}

	appLogger.Info(context.Background(), "Application finished gracefully.")
}
