package app

import (
	"context"
	"fmt"
	"math"
	"os"
	ossignal "os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"stockAlertsBot/config"
	"stockAlertsBot/internal/alert"
	"stockAlertsBot/internal/domain"
	"stockAlertsBot/internal/ledger"
	"stockAlertsBot/internal/markethours"
	"stockAlertsBot/internal/ports"
	"stockAlertsBot/internal/signal"
	"stockAlertsBot/internal/trend"
)

const (
	intradayInterval = "30min"
	dailyInterval    = "1day"

	// monitorWindowSize covers a full session of 30-minute bars plus the
	// preceding day's tail, enough for the volume average and breakout
	// lookbacks.
	monitorWindowSize = 50

	// trendWindowSize bounds the intraday window fed to the regression.
	trendWindowSize = 20
)

// MonitorService orchestrates the per-symbol evaluation cycles: signal
// detection with alerting, trend estimation driving the paper-trading
// ledger, and end-of-day capture of daily bars.
type MonitorService struct {
	cfg       *config.Config
	logger    ports.Logger
	market    ports.MarketDataClient
	notifier  ports.Notifier
	signals   ports.SignalRepository
	positions ports.PositionRepository
	trends    ports.TrendRepository
	daily     ports.DailyOHLCRepository
	detector  *signal.Detector
	estimator *trend.Estimator
	throttle  *alert.Throttle
	ledger    *ledger.Ledger
	clock     *markethours.Clock

	// mu guards symLocks. Each per-symbol mutex serializes the
	// read-decide-write cycle for that symbol across overlapping runs.
	mu       sync.Mutex
	symLocks map[string]*sync.Mutex

	now func() time.Time
}

// Deps collects the collaborators required by the service.
type Deps struct {
	Cfg       *config.Config
	Logger    ports.Logger
	Market    ports.MarketDataClient
	Notifier  ports.Notifier
	Signals   ports.SignalRepository
	Positions ports.PositionRepository
	Trends    ports.TrendRepository
	Daily     ports.DailyOHLCRepository
	Detector  *signal.Detector
	Estimator *trend.Estimator
	Throttle  *alert.Throttle
	Ledger    *ledger.Ledger
	Clock     *markethours.Clock
}

// NewMonitorService creates the application service instance.
func NewMonitorService(deps Deps) (*MonitorService, error) {
	if deps.Cfg == nil || deps.Logger == nil || deps.Market == nil || deps.Notifier == nil ||
		deps.Signals == nil || deps.Positions == nil || deps.Trends == nil || deps.Daily == nil ||
		deps.Detector == nil || deps.Estimator == nil || deps.Throttle == nil ||
		deps.Ledger == nil || deps.Clock == nil {
		return nil, fmt.Errorf("missing required dependencies for MonitorService")
	}
	if len(deps.Cfg.Watchlist) == 0 {
		return nil, fmt.Errorf("configuration Watchlist must not be empty")
	}
	if deps.Cfg.Workers <= 0 {
		return nil, fmt.Errorf("configuration Workers must be positive")
	}

	return &MonitorService{
		cfg:       deps.Cfg,
		logger:    deps.Logger,
		market:    deps.Market,
		notifier:  deps.Notifier,
		signals:   deps.Signals,
		positions: deps.Positions,
		trends:    deps.Trends,
		daily:     deps.Daily,
		detector:  deps.Detector,
		estimator: deps.Estimator,
		throttle:  deps.Throttle,
		ledger:    deps.Ledger,
		clock:     deps.Clock,
		symLocks:  make(map[string]*sync.Mutex),
		now:       time.Now,
	}, nil
}

// Start schedules the cycles and blocks until the context is canceled or a
// shutdown signal arrives.
func (s *MonitorService) Start(ctx context.Context) error {
	s.logger.Info(ctx, "Starting monitor service...", map[string]interface{}{
		"watchlist": len(s.cfg.Watchlist),
		"workers":   s.cfg.Workers,
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	ossignal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		s.logger.Info(ctx, "Received shutdown signal", map[string]interface{}{"signal": sig.String()})
		cancel()
	}()

	sched := cron.New()
	if _, err := sched.AddFunc(s.cfg.MonitorCron, func() { s.RunMonitorCycle(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule monitor cycle: %w", err)
	}
	if _, err := sched.AddFunc(s.cfg.TrendCron, func() { s.RunTrendCycle(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule trend cycle: %w", err)
	}
	if _, err := sched.AddFunc(s.cfg.EODCron, func() { s.RunEODCycle(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule end-of-day cycle: %w", err)
	}
	sched.Start()
	defer sched.Stop()

	// Kick off an immediate pass so a mid-session restart does not wait for
	// the next cron tick.
	s.RunMonitorCycle(ctx)

	<-ctx.Done()
	s.logger.Info(ctx, "Monitor service shutting down")
	return ctx.Err()
}

// forEachSymbol fans the watchlist out to a bounded pool of workers.
func (s *MonitorService) forEachSymbol(ctx context.Context, fn func(ctx context.Context, symbol string)) {
	jobs := make(chan string)
	var wg sync.WaitGroup

	for i := 0; i < s.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for symbol := range jobs {
				if ctx.Err() != nil {
					return
				}
				fn(ctx, symbol)
			}
		}()
	}

	for _, symbol := range s.cfg.Watchlist {
		select {
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return
		case jobs <- symbol:
		}
	}
	close(jobs)
	wg.Wait()
}

// today is the current trading date in the market zone.
func (s *MonitorService) today() string {
	return s.now().In(s.clock.Location()).Format("2006-01-02")
}

func (s *MonitorService) symbolLock(symbol string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.symLocks[symbol]
	if !ok {
		l = &sync.Mutex{}
		s.symLocks[symbol] = l
	}
	return l
}

// RunMonitorCycle evaluates every watchlist symbol for fresh signals.
// Outside market hours the cycle is a no-op.
func (s *MonitorService) RunMonitorCycle(ctx context.Context) {
	if !s.clock.IsOpen() {
		s.logger.Debug(ctx, "Market closed, skipping monitor cycle")
		return
	}

	cycleID := uuid.NewString()
	s.logger.Info(ctx, "Monitor cycle started", map[string]interface{}{"cycleID": cycleID})

	s.forEachSymbol(ctx, func(ctx context.Context, symbol string) {
		lock := s.symbolLock(symbol)
		lock.Lock()
		defer lock.Unlock()
		s.monitorSymbol(ctx, symbol)
	})

	s.logger.Info(ctx, "Monitor cycle finished", map[string]interface{}{"cycleID": cycleID})
}

func (s *MonitorService) monitorSymbol(ctx context.Context, symbol string) {
	bars, err := s.market.FetchTimeSeries(ctx, symbol, intradayInterval, monitorWindowSize)
	if err != nil {
		s.logger.Warn(ctx, "Failed to fetch intraday bars, skipping symbol", map[string]interface{}{
			"symbol": symbol, "error": err.Error(),
		})
		return
	}
	if len(bars) == 0 {
		return
	}

	dayOpen := s.resolveDayOpen(ctx, symbol, bars)
	sigs := s.detector.Detect(ctx, symbol, bars, dayOpen)
	if len(sigs) == 0 {
		return
	}

	price := domain.Latest(bars).Close
	for _, sig := range sigs {
		id, err := s.signals.StoreSignal(ctx, sig)
		if err != nil {
			s.logger.Error(ctx, err, "Failed to store signal", map[string]interface{}{
				"symbol": symbol, "type": string(sig.Type),
			})
			continue
		}
		if id == 0 {
			// Already stored for this bar.
			continue
		}
		sig.ID = id

		ok, err := s.throttle.Evaluate(ctx, sig, price)
		if err != nil {
			s.logger.Error(ctx, err, "Alert throttle evaluation failed", map[string]interface{}{
				"symbol": symbol,
			})
			continue
		}
		if !ok {
			continue
		}
		if err := s.notifier.SendAlert(ctx, sig, price); err != nil {
			s.logger.Error(ctx, err, "Failed to deliver alert", map[string]interface{}{
				"symbol": symbol, "type": string(sig.Type),
			})
		}
	}
}

// resolveDayOpen prefers the stored daily bar for today and falls back to
// the open of today's first intraday bar. Returns 0 when neither is usable.
func (s *MonitorService) resolveDayOpen(ctx context.Context, symbol string, bars []*domain.Bar) float64 {
	today := s.today()

	dailyBar, err := s.daily.GetDailyBar(ctx, symbol, today)
	if err != nil {
		s.logger.Warn(ctx, "Daily bar lookup failed", map[string]interface{}{
			"symbol": symbol, "date": today, "error": err.Error(),
		})
	}
	if dailyBar != nil && !math.IsNaN(dailyBar.Open) && dailyBar.Open != 0 {
		return dailyBar.Open
	}

	for _, b := range bars {
		if b.Timestamp.Format("2006-01-02") != today {
			continue
		}
		if !math.IsNaN(b.Open) && b.Open != 0 {
			return b.Open
		}
	}
	return 0
}

// RunTrendCycle refreshes every symbol's trend snapshot and lets the ledger
// act on it.
func (s *MonitorService) RunTrendCycle(ctx context.Context) {
	if !s.clock.IsOpen() {
		s.logger.Debug(ctx, "Market closed, skipping trend cycle")
		return
	}

	cycleID := uuid.NewString()
	s.logger.Info(ctx, "Trend cycle started", map[string]interface{}{"cycleID": cycleID})

	s.forEachSymbol(ctx, func(ctx context.Context, symbol string) {
		lock := s.symbolLock(symbol)
		lock.Lock()
		defer lock.Unlock()
		s.trendSymbol(ctx, symbol, cycleID)
	})

	s.logger.Info(ctx, "Trend cycle finished", map[string]interface{}{"cycleID": cycleID})
}

func (s *MonitorService) trendSymbol(ctx context.Context, symbol, cycleID string) {
	prevClose := s.previousClose(ctx, symbol)

	bars, err := s.market.FetchTimeSeries(ctx, symbol, intradayInterval, trendWindowSize)
	if err != nil {
		s.logger.Warn(ctx, "Failed to fetch intraday bars for trend", map[string]interface{}{
			"symbol": symbol, "error": err.Error(),
		})
		bars = nil
	}

	nowLocal := s.now().In(s.clock.Location())
	prices := trend.ComputeReferencePrices(bars, prevClose, nowLocal)

	openPos, err := s.positions.FindOpenBySymbol(ctx, symbol)
	if err != nil {
		s.logger.Error(ctx, err, "Failed to look up open position", map[string]interface{}{"symbol": symbol})
		return
	}

	label, est := s.estimator.Estimate(ctx, symbol, bars, prices, openPos)

	row := &domain.TrendRow{
		Symbol:    symbol,
		Trend:     label,
		Prices:    prices,
		Degraded:  est.Degraded,
		CycleID:   cycleID,
		UpdatedAt: s.now(),
	}
	if err := s.trends.UpsertTrendRow(ctx, row); err != nil {
		s.logger.Error(ctx, err, "Failed to store trend snapshot", map[string]interface{}{"symbol": symbol})
		return
	}

	if !prices.Now.Valid {
		return
	}
	action, _, err := s.ledger.Apply(ctx, symbol, s.cfg.Sectors[symbol], label, prices.Now.Price, s.now())
	if err != nil {
		s.logger.Error(ctx, err, "Ledger update failed", map[string]interface{}{"symbol": symbol})
		return
	}
	if action != ledger.ActionNone && action != ledger.ActionHeld {
		s.logger.Info(ctx, "Ledger action", map[string]interface{}{
			"symbol": symbol, "action": string(action), "trend": string(label), "price": prices.Now.Price,
		})
	}
}

// previousClose fetches the most recent completed daily close. An invalid
// point is returned when the provider has nothing usable; the reference
// price computation treats it as absent.
func (s *MonitorService) previousClose(ctx context.Context, symbol string) domain.PricePoint {
	bars, err := s.market.FetchTimeSeries(ctx, symbol, dailyInterval, 2)
	if err != nil {
		s.logger.Warn(ctx, "Failed to fetch daily bars", map[string]interface{}{
			"symbol": symbol, "error": err.Error(),
		})
		return domain.PricePoint{}
	}

	today := s.today()
	for i := len(bars) - 1; i >= 0; i-- {
		b := bars[i]
		if b.Timestamp.Format("2006-01-02") == today {
			continue
		}
		if !math.IsNaN(b.Close) {
			return domain.PricePoint{Price: b.Close, Valid: true}
		}
	}
	return domain.PricePoint{}
}

// RunEODCycle stores today's completed daily bar for every symbol and
// verifies it landed.
func (s *MonitorService) RunEODCycle(ctx context.Context) {
	cycleID := uuid.NewString()
	s.logger.Info(ctx, "End-of-day cycle started", map[string]interface{}{"cycleID": cycleID})

	s.forEachSymbol(ctx, func(ctx context.Context, symbol string) {
		s.captureEOD(ctx, symbol)
	})

	s.logger.Info(ctx, "End-of-day cycle finished", map[string]interface{}{"cycleID": cycleID})
}

func (s *MonitorService) captureEOD(ctx context.Context, symbol string) {
	bars, err := s.market.FetchTimeSeries(ctx, symbol, dailyInterval, 1)
	if err != nil || len(bars) == 0 {
		s.logger.Warn(ctx, "No daily bar available at end of day", map[string]interface{}{
			"symbol": symbol,
		})
		return
	}

	bar := domain.Latest(bars)
	date := bar.Timestamp.Format("2006-01-02")
	if err := s.daily.StoreDailyBar(ctx, bar); err != nil {
		s.logger.Error(ctx, err, "Failed to store daily bar", map[string]interface{}{
			"symbol": symbol, "date": date,
		})
		return
	}

	// Integrity check: read the row back.
	stored, err := s.daily.GetDailyBar(ctx, symbol, date)
	if err != nil || stored == nil {
		s.logger.Error(ctx, err, "Stored daily bar failed verification", map[string]interface{}{
			"symbol": symbol, "date": date,
		})
		return
	}
	s.logger.Debug(ctx, "Daily bar captured", map[string]interface{}{
		"symbol": symbol, "date": date, "close": stored.Close,
	})
}
