package domain

import (
	"math"
	"time"
)

// Bar represents a single OHLCV observation at a fixed time resolution.
// Price fields that were absent or unparseable upstream are NaN; an absent
// volume is 0. Consumers must treat NaN per field, not as a window error.
type Bar struct {
	Timestamp time.Time // Bar open time, ascending and unique within a window
	Symbol    string    // Stock symbol (e.g., "AAPL")
	Interval  string    // Bar interval (e.g., "30min", "1day")
	Open      float64   // Opening price
	High      float64   // Highest price
	Low       float64   // Lowest price
	Close     float64   // Closing price
	Volume    float64   // Traded volume
}

// Closes extracts the close prices of a window, skipping NaN closes.
// Order is preserved (oldest first).
func Closes(bars []*Bar) []float64 {
	closes := make([]float64, 0, len(bars))
	for _, b := range bars {
		if !math.IsNaN(b.Close) {
			closes = append(closes, b.Close)
		}
	}
	return closes
}

// Latest returns the newest bar of an ascending window, or nil if empty.
func Latest(bars []*Bar) *Bar {
	if len(bars) == 0 {
		return nil
	}
	return bars[len(bars)-1]
}

// CloseAtOrBefore returns the close of the last bar whose timestamp is at or
// before target, and false when no bar qualifies. Bars must be ascending.
func CloseAtOrBefore(bars []*Bar, target time.Time) (float64, bool) {
	best := math.NaN()
	found := false
	for _, b := range bars {
		if b.Timestamp.After(target) {
			break
		}
		if !math.IsNaN(b.Close) {
			best = b.Close
			found = true
		}
	}
	return best, found
}
