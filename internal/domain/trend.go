package domain

import "time"

// TrendLabel is the final trend call for a symbol in one evaluation cycle.
type TrendLabel string

const (
	TrendUp   TrendLabel = "Up"
	TrendDown TrendLabel = "Down"
)

// ReferencePrices holds closes at the fixed lookback offsets used by the
// trend snapshot. NaN markers are not used here: a price that could not be
// determined is reported with its Valid flag false.
type ReferencePrices struct {
	Start  PricePoint // First bar open of the session
	H2     PricePoint // Close ~2 hours ago
	H1Half PricePoint // Close ~1.5 hours ago
	H1     PricePoint // Close ~1 hour ago
	Min30  PricePoint // Close ~30 minutes ago
	Now    PricePoint // Latest close
}

// PricePoint is a price that may be unavailable.
type PricePoint struct {
	Price float64
	Valid bool
}

// TrendEstimate is the outcome of one trend evaluation before it is mapped
// onto a ledger decision.
type TrendEstimate struct {
	Uptrend  bool // Regression (or fallback) verdict
	Degraded bool // True when the start-vs-now fallback was used
}

// TrendRow is the persisted per-symbol trend snapshot. One row per symbol;
// each cycle's row supersedes the previous one.
type TrendRow struct {
	Symbol    string
	Trend     TrendLabel
	Prices    ReferencePrices
	Degraded  bool      // Estimate came from the degraded fallback path
	CycleID   string    // Evaluation run the row belongs to
	UpdatedAt time.Time // Snapshot time (UTC)
}
