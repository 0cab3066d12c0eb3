package domain

import "time"

// Position represents one row of the paper-trading ledger. A position with a
// zero SaleTime is open; at most one open position may exist per symbol at
// any time. Rows are append-only: closing fills the sale fields, it never
// deletes or replaces the row.
type Position struct {
	ID        int64     // Unique identifier for the position (from DB)
	Symbol    string    // Stock symbol (e.g., "NVDA")
	Name      string    // Company name, may be empty
	BuyPrice  float64   // Reference price at which the position was opened
	BuyTime   time.Time // Timestamp of the opening evaluation cycle
	SalePrice float64   // Reference price at close (0 while open)
	SaleTime  time.Time // Timestamp of the closing cycle (zero value while open)
	CreatedAt time.Time // Row creation time
}

// IsOpen reports whether the position has not been closed yet.
func (p *Position) IsOpen() bool {
	return p.SaleTime.IsZero()
}

// Profit returns the realized profit (sale - buy) for a closed position.
// For an open position it returns 0.
func (p *Position) Profit() float64 {
	if p.IsOpen() {
		return 0
	}
	return p.SalePrice - p.BuyPrice
}
