package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"stockAlertsBot/internal/domain"
	"stockAlertsBot/internal/ports"

	"github.com/mattn/go-sqlite3" // SQLite driver, registered on import
)

// Repository implements the ports repositories (signals, alert state,
// positions, trend rows, daily OHLC) using SQLite.
type Repository struct {
	db     *sql.DB
	logger ports.Logger
}

// Config holds configuration for the SQLite repository.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// NewRepository creates a new SQLite repository instance.
func NewRepository(cfg Config) (*Repository, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite repository")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/stock_alerts.db" // Default path
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		err = fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(dbPath), err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// WAL mode for better concurrency between evaluation workers.
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		err = fmt.Errorf("failed to open database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("failed to ping database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// SQLite handles concurrency internally; the Go driver benefits from a
	// single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	repo := &Repository{db: db, logger: cfg.Logger}

	if err := repo.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize database schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}
	cfg.Logger.Info(context.Background(), "Database schema initialized/verified", map[string]interface{}{"path": dbPath})

	return repo, nil
}

// initializeSchema creates tables if they don't exist.
func (r *Repository) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS ohlc_daily (
		symbol TEXT NOT NULL,
		date TEXT NOT NULL,
		open REAL NOT NULL,
		high REAL NOT NULL,
		low REAL NOT NULL,
		close REAL NOT NULL,
		volume REAL NOT NULL,
		ingested_at TIMESTAMP NOT NULL,
		PRIMARY KEY (symbol, date)
	);
	CREATE INDEX IF NOT EXISTS idx_ohlc_daily_symbol_date ON ohlc_daily (symbol, date DESC);

	CREATE TABLE IF NOT EXISTS ingestion_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol TEXT NOT NULL,
		date_range_start TEXT,
		date_range_end TEXT,
		status TEXT NOT NULL,
		records_ingested INTEGER DEFAULT 0,
		error_message TEXT,
		created_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS signals (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol TEXT NOT NULL,
		signal_type TEXT NOT NULL,
		metrics_json TEXT NOT NULL,
		severity TEXT NOT NULL,
		bar_id TIMESTAMP NOT NULL,
		created_at TIMESTAMP NOT NULL,
		UNIQUE (symbol, signal_type, bar_id)
	);
	CREATE INDEX IF NOT EXISTS idx_signals_symbol_bar ON signals (symbol, bar_id DESC);

	CREATE TABLE IF NOT EXISTS alert_log (
		symbol TEXT PRIMARY KEY,
		last_alert_at TIMESTAMP,
		last_alert_price REAL,
		last_alert_direction TEXT,
		last_alert_severity TEXT
	);

	CREATE TABLE IF NOT EXISTS positions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol TEXT NOT NULL,
		name TEXT,
		buy_price REAL NOT NULL,
		buy_time TIMESTAMP NOT NULL,
		sale_price REAL DEFAULT NULL,
		sale_time TIMESTAMP DEFAULT NULL,
		created_at TIMESTAMP NOT NULL
	);
	-- At most one open row (no sale recorded) per symbol.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_positions_one_open
		ON positions (symbol) WHERE sale_time IS NULL;
	CREATE INDEX IF NOT EXISTS idx_positions_symbol_buy_time ON positions (symbol, buy_time DESC);

	CREATE TABLE IF NOT EXISTS trend_rows (
		symbol TEXT PRIMARY KEY,
		trend TEXT NOT NULL,
		start_price REAL,
		price_2h REAL,
		price_1h30 REAL,
		price_1h REAL,
		price_30m REAL,
		price_now REAL,
		degraded INTEGER NOT NULL DEFAULT 0,
		cycle_id TEXT,
		updated_at TIMESTAMP NOT NULL
	);
	`
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	if r.db != nil {
		r.logger.Info(context.Background(), "Closing SQLite database connection")
		return r.db.Close()
	}
	return nil
}

// --- SignalRepository Implementation ---

// StoreSignal saves a signal and returns its assigned ID.
// Returns 0, nil for a duplicate (symbol, type, bar_id) triple.
func (r *Repository) StoreSignal(ctx context.Context, sig *domain.Signal) (int64, error) {
	metricsJSON, err := json.Marshal(sig.Metrics)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal metrics for %s signal: %w", sig.Type, err)
	}

	const query = `
	INSERT INTO signals (symbol, signal_type, metrics_json, severity, bar_id, created_at)
	VALUES (?, ?, ?, ?, ?, ?)`

	result, err := r.db.ExecContext(ctx, query,
		sig.Symbol, string(sig.Type), string(metricsJSON), string(sig.Severity), sig.BarID.UTC(), time.Now().UTC())
	if err != nil {
		if isConstraintErr(err) {
			r.logger.Debug(ctx, "Duplicate signal ignored", map[string]interface{}{
				"symbol": sig.Symbol, "type": sig.Type, "barID": sig.BarID,
			})
			return 0, nil
		}
		return 0, fmt.Errorf("failed to insert signal for symbol %s: %w", sig.Symbol, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for signal %s: %w", sig.Symbol, err)
	}
	sig.ID = id
	return id, nil
}

// FindSignals retrieves the most recent signals for a symbol, newest first.
func (r *Repository) FindSignals(ctx context.Context, symbol string, limit int) ([]*domain.Signal, error) {
	const query = `
	SELECT id, symbol, signal_type, metrics_json, severity, bar_id
	FROM signals
	WHERE symbol = ? ORDER BY bar_id DESC LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query signals for symbol %s: %w", symbol, err)
	}
	defer rows.Close()

	signals := make([]*domain.Signal, 0)
	for rows.Next() {
		sig := &domain.Signal{}
		var sigType, metricsJSON, severity string
		if err := rows.Scan(&sig.ID, &sig.Symbol, &sigType, &metricsJSON, &severity, &sig.BarID); err != nil {
			return nil, fmt.Errorf("failed to scan signal during FindSignals: %w", err)
		}
		sig.Type = domain.SignalType(sigType)
		sig.Severity = domain.Severity(severity)
		metrics, err := unmarshalMetrics(sig.Type, metricsJSON)
		if err != nil {
			return nil, fmt.Errorf("failed to decode metrics for signal %d: %w", sig.ID, err)
		}
		sig.Metrics = metrics
		signals = append(signals, sig)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating signal rows: %w", err)
	}
	return signals, nil
}

func unmarshalMetrics(t domain.SignalType, raw string) (domain.SignalMetrics, error) {
	switch t {
	case domain.SignalMoveFromOpen:
		var m domain.MoveFromOpenMetrics
		return m, json.Unmarshal([]byte(raw), &m)
	case domain.SignalVolumeSpike:
		var m domain.VolumeSpikeMetrics
		return m, json.Unmarshal([]byte(raw), &m)
	case domain.SignalBreakout:
		var m domain.BreakoutMetrics
		return m, json.Unmarshal([]byte(raw), &m)
	case domain.SignalBreakdown:
		var m domain.BreakdownMetrics
		return m, json.Unmarshal([]byte(raw), &m)
	default:
		return nil, fmt.Errorf("unknown signal type %q", t)
	}
}

// --- AlertStateRepository Implementation ---

// GetAlertState retrieves the last-alert record for a symbol, nil if absent.
func (r *Repository) GetAlertState(ctx context.Context, symbol string) (*domain.AlertState, error) {
	const query = `
	SELECT symbol, last_alert_at, COALESCE(last_alert_price, 0),
	       COALESCE(last_alert_direction, ''), COALESCE(last_alert_severity, '')
	FROM alert_log WHERE symbol = ?`

	state := &domain.AlertState{}
	var alertAt sql.NullTime
	var direction, severity string
	err := r.db.QueryRowContext(ctx, query, symbol).Scan(
		&state.Symbol, &alertAt, &state.LastPrice, &direction, &severity)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // First-time symbol, not an error
		}
		return nil, fmt.Errorf("failed to query alert state for symbol %s: %w", symbol, err)
	}
	if alertAt.Valid {
		state.LastAlertAt = alertAt.Time
	}
	state.LastDirection = domain.Direction(direction)
	state.LastSeverity = domain.Severity(severity)
	return state, nil
}

// PutAlertState overwrites the alert record for the state's symbol.
func (r *Repository) PutAlertState(ctx context.Context, state *domain.AlertState) error {
	const query = `
	INSERT OR REPLACE INTO alert_log
		(symbol, last_alert_at, last_alert_price, last_alert_direction, last_alert_severity)
	VALUES (?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		state.Symbol, state.LastAlertAt.UTC(), state.LastPrice,
		string(state.LastDirection), string(state.LastSeverity))
	if err != nil {
		return fmt.Errorf("failed to update alert state for symbol %s: %w", state.Symbol, err)
	}
	return nil
}

// --- PositionRepository Implementation ---

// OpenPosition appends a new open row and returns its assigned ID.
// Wraps ports.ErrPositionAlreadyOpen when an open row already exists.
func (r *Repository) OpenPosition(ctx context.Context, pos *domain.Position) (int64, error) {
	const query = `
	INSERT INTO positions (symbol, name, buy_price, buy_time, created_at)
	VALUES (?, ?, ?, ?, ?)`

	result, err := r.db.ExecContext(ctx, query,
		pos.Symbol, pos.Name, pos.BuyPrice, pos.BuyTime.UTC(), time.Now().UTC())
	if err != nil {
		if isConstraintErr(err) {
			return 0, fmt.Errorf("open position for symbol %s: %w", pos.Symbol, ports.ErrPositionAlreadyOpen)
		}
		return 0, fmt.Errorf("failed to insert position for symbol %s: %w", pos.Symbol, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for position %s: %w", pos.Symbol, err)
	}
	pos.ID = id
	r.logger.Debug(ctx, "Position opened", map[string]interface{}{"positionID": id, "symbol": pos.Symbol})
	return id, nil
}

// ClosePosition fills the sale fields of an open row.
// Wraps ports.ErrNoOpenPosition when the row is missing or already closed.
func (r *Repository) ClosePosition(ctx context.Context, id int64, salePrice float64, saleTime time.Time) error {
	const query = `
	UPDATE positions SET sale_price = ?, sale_time = ?
	WHERE id = ? AND sale_time IS NULL`

	result, err := r.db.ExecContext(ctx, query, salePrice, saleTime.UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to close position ID %d: %w", id, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for close position ID %d: %w", id, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("position ID %d: %w", id, ports.ErrNoOpenPosition)
	}
	r.logger.Debug(ctx, "Position closed", map[string]interface{}{"positionID": id, "salePrice": salePrice})
	return nil
}

// FindOpenBySymbol retrieves the currently open position for a symbol, if any.
func (r *Repository) FindOpenBySymbol(ctx context.Context, symbol string) (*domain.Position, error) {
	const query = `
	SELECT id, symbol, COALESCE(name, ''), buy_price, buy_time, COALESCE(sale_price, 0), sale_time, created_at
	FROM positions
	WHERE symbol = ? AND sale_time IS NULL
	ORDER BY buy_time DESC LIMIT 1`

	pos, err := scanPosition(r.db.QueryRowContext(ctx, query, symbol))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not an error, just not found
		}
		return nil, fmt.Errorf("failed to query open position for symbol %s: %w", symbol, err)
	}
	return pos, nil
}

// FindBySymbol retrieves ledger rows for a symbol, newest first.
func (r *Repository) FindBySymbol(ctx context.Context, symbol string, limit int) ([]*domain.Position, error) {
	const query = `
	SELECT id, symbol, COALESCE(name, ''), buy_price, buy_time, COALESCE(sale_price, 0), sale_time, created_at
	FROM positions
	WHERE symbol = ? ORDER BY buy_time DESC LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query positions for symbol %s: %w", symbol, err)
	}
	defer rows.Close()

	positions := make([]*domain.Position, 0)
	for rows.Next() {
		pos, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan position during FindBySymbol: %w", err)
		}
		positions = append(positions, pos)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating position rows: %w", err)
	}
	return positions, nil
}

// TotalProfit sums realized profit over all closed rows.
func (r *Repository) TotalProfit(ctx context.Context) (float64, error) {
	const query = `SELECT COALESCE(SUM(sale_price - buy_price), 0) FROM positions WHERE sale_time IS NOT NULL`
	var total float64
	if err := r.db.QueryRowContext(ctx, query).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to calculate total profit: %w", err)
	}
	return total, nil
}

// --- TrendRepository Implementation ---

// UpsertTrendRow inserts or replaces the snapshot for the row's symbol.
func (r *Repository) UpsertTrendRow(ctx context.Context, row *domain.TrendRow) error {
	const query = `
	INSERT OR REPLACE INTO trend_rows
		(symbol, trend, start_price, price_2h, price_1h30, price_1h, price_30m, price_now, degraded, cycle_id, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		row.Symbol, string(row.Trend),
		nullPrice(row.Prices.Start), nullPrice(row.Prices.H2), nullPrice(row.Prices.H1Half),
		nullPrice(row.Prices.H1), nullPrice(row.Prices.Min30), nullPrice(row.Prices.Now),
		row.Degraded, row.CycleID, row.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to upsert trend row for symbol %s: %w", row.Symbol, err)
	}
	return nil
}

// GetTrendRow retrieves the latest snapshot for a symbol, nil if absent.
func (r *Repository) GetTrendRow(ctx context.Context, symbol string) (*domain.TrendRow, error) {
	const query = `
	SELECT symbol, trend, start_price, price_2h, price_1h30, price_1h, price_30m, price_now, degraded, COALESCE(cycle_id, ''), updated_at
	FROM trend_rows WHERE symbol = ?`

	row := &domain.TrendRow{}
	var trend string
	var start, h2, h1h, h1, m30, now sql.NullFloat64
	err := r.db.QueryRowContext(ctx, query, symbol).Scan(
		&row.Symbol, &trend, &start, &h2, &h1h, &h1, &m30, &now, &row.Degraded, &row.CycleID, &row.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query trend row for symbol %s: %w", symbol, err)
	}
	row.Trend = domain.TrendLabel(trend)
	row.Prices = domain.ReferencePrices{
		Start:  pricePoint(start),
		H2:     pricePoint(h2),
		H1Half: pricePoint(h1h),
		H1:     pricePoint(h1),
		Min30:  pricePoint(m30),
		Now:    pricePoint(now),
	}
	return row, nil
}

// --- DailyOHLCRepository Implementation ---

// StoreDailyBar inserts or replaces the daily bar for (symbol, date).
func (r *Repository) StoreDailyBar(ctx context.Context, bar *domain.Bar) error {
	const query = `
	INSERT OR REPLACE INTO ohlc_daily (symbol, date, open, high, low, close, volume, ingested_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	date := bar.Timestamp.Format("2006-01-02")
	_, err := r.db.ExecContext(ctx, query,
		bar.Symbol, date, nanToZero(bar.Open), nanToZero(bar.High), nanToZero(bar.Low),
		nanToZero(bar.Close), bar.Volume, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to store daily bar for %s on %s: %w", bar.Symbol, date, err)
	}
	return nil
}

// GetDailyBar retrieves the daily bar for a symbol and date, nil if absent.
func (r *Repository) GetDailyBar(ctx context.Context, symbol string, date string) (*domain.Bar, error) {
	const query = `
	SELECT symbol, date, open, high, low, close, volume
	FROM ohlc_daily WHERE symbol = ? AND date = ?`

	bar := &domain.Bar{Interval: "1day"}
	var dateStr string
	err := r.db.QueryRowContext(ctx, query, symbol, date).Scan(
		&bar.Symbol, &dateStr, &bar.Open, &bar.High, &bar.Low, &bar.Close, &bar.Volume)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query daily bar for %s on %s: %w", symbol, date, err)
	}
	if ts, err := time.Parse("2006-01-02", dateStr); err == nil {
		bar.Timestamp = ts
	}
	return bar, nil
}

// LogIngestion records the outcome of a backfill run.
func (r *Repository) LogIngestion(ctx context.Context, entry *ports.IngestionEntry) error {
	const query = `
	INSERT INTO ingestion_log
		(symbol, date_range_start, date_range_end, status, records_ingested, error_message, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		entry.Symbol, entry.RangeStart, entry.RangeEnd, entry.Status, entry.Records,
		entry.ErrMessage, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to log ingestion for symbol %s: %w", entry.Symbol, err)
	}
	return nil
}

// --- Helpers ---

// scanner defines an interface compatible with *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanPosition(s scanner) (*domain.Position, error) {
	p := &domain.Position{}
	var saleTime sql.NullTime
	err := s.Scan(&p.ID, &p.Symbol, &p.Name, &p.BuyPrice, &p.BuyTime, &p.SalePrice, &saleTime, &p.CreatedAt)
	if err != nil {
		return nil, err // Handle sql.ErrNoRows in the caller
	}
	if saleTime.Valid {
		p.SaleTime = saleTime.Time
	}
	return p, nil
}

func isConstraintErr(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint
}

func nullPrice(p domain.PricePoint) sql.NullFloat64 {
	if !p.Valid {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: p.Price, Valid: true}
}

func pricePoint(v sql.NullFloat64) domain.PricePoint {
	if !v.Valid {
		return domain.PricePoint{}
	}
	return domain.PricePoint{Price: v.Float64, Valid: true}
}

func nanToZero(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return v
}
