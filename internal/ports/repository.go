package ports

import (
	"context"
	"time"

	"stockAlertsBot/internal/domain"
)

// SignalRepository stores detected signals. Signals are written once and
// never mutated; duplicates are resolved at the storage layer.
type SignalRepository interface {
	// StoreSignal saves a signal and returns its assigned ID.
	// Returns 0, nil when an identical (symbol, type, bar_id) signal
	// already exists.
	StoreSignal(ctx context.Context, sig *domain.Signal) (int64, error)
	// FindSignals retrieves the most recent signals for a symbol, newest
	// first, up to a limit.
	FindSignals(ctx context.Context, symbol string, limit int) ([]*domain.Signal, error)
}

// AlertStateRepository stores per-symbol alert throttling state.
type AlertStateRepository interface {
	// GetAlertState retrieves the last-alert record for a symbol.
	// Returns nil, nil when the symbol has never alerted.
	GetAlertState(ctx context.Context, symbol string) (*domain.AlertState, error)
	// PutAlertState overwrites the alert record for the state's symbol.
	PutAlertState(ctx context.Context, state *domain.AlertState) error
}

// PositionRepository stores the paper-trading ledger.
type PositionRepository interface {
	// OpenPosition appends a new open row and returns its assigned ID.
	// Fails when an open position already exists for the symbol.
	OpenPosition(ctx context.Context, pos *domain.Position) (int64, error)
	// ClosePosition fills the sale fields of the row with the given ID.
	ClosePosition(ctx context.Context, id int64, salePrice float64, saleTime time.Time) error
	// FindOpenBySymbol retrieves the currently open position for a symbol,
	// if any. Returns nil, nil when no open position exists.
	FindOpenBySymbol(ctx context.Context, symbol string) (*domain.Position, error)
	// FindBySymbol retrieves ledger rows for a symbol, newest first, up to
	// a limit.
	FindBySymbol(ctx context.Context, symbol string, limit int) ([]*domain.Position, error)
	// TotalProfit sums realized profit over all closed rows.
	TotalProfit(ctx context.Context) (float64, error)
}

// TrendRepository stores per-symbol trend snapshots. Each cycle's row
// replaces the previous one for the same symbol.
type TrendRepository interface {
	// UpsertTrendRow inserts or replaces the snapshot for the row's symbol.
	UpsertTrendRow(ctx context.Context, row *domain.TrendRow) error
	// GetTrendRow retrieves the latest snapshot for a symbol.
	// Returns nil, nil when none exists.
	GetTrendRow(ctx context.Context, symbol string) (*domain.TrendRow, error)
}

// DailyOHLCRepository stores end-of-day bars used for day-open lookups and
// historical backfill.
type DailyOHLCRepository interface {
	// StoreDailyBar inserts or replaces the daily bar for (symbol, date).
	StoreDailyBar(ctx context.Context, bar *domain.Bar) error
	// GetDailyBar retrieves the daily bar for a symbol and date.
	// Returns nil, nil when absent.
	GetDailyBar(ctx context.Context, symbol string, date string) (*domain.Bar, error)
	// LogIngestion records the outcome of a backfill run.
	LogIngestion(ctx context.Context, entry *IngestionEntry) error
}

// IngestionEntry describes one backfill attempt for the ingestion log.
type IngestionEntry struct {
	Symbol     string
	RangeStart string
	RangeEnd   string
	Status     string
	Records    int
	ErrMessage string
}
