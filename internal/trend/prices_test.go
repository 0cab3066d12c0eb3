package trend

import (
	"math"
	"testing"
	"time"

	"stockAlertsBot/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sessionBars(day time.Time, closes ...float64) []*domain.Bar {
	// 30-minute bars starting at the 09:30 session open.
	start := time.Date(day.Year(), day.Month(), day.Day(), 9, 30, 0, 0, day.Location())
	bars := make([]*domain.Bar, 0, len(closes))
	for i, c := range closes {
		bars = append(bars, &domain.Bar{
			Timestamp: start.Add(time.Duration(i) * 30 * time.Minute),
			Symbol:    "AAPL",
			Interval:  "30min",
			Open:      c,
			High:      c,
			Low:       c,
			Close:     c,
			Volume:    1000,
		})
	}
	return bars
}

func TestComputeReferencePrices(t *testing.T) {
	day := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

	t.Run("mid-session snapshot", func(t *testing.T) {
		// Bars at 09:30 .. 12:30, snapshot at 12:45.
		bars := sessionBars(day, 100, 101, 102, 103, 104, 105, 106)
		now := time.Date(2025, 6, 2, 12, 45, 0, 0, time.UTC)

		p := ComputeReferencePrices(bars, domain.PricePoint{}, now)

		require.True(t, p.Start.Valid)
		assert.InDelta(t, 100.0, p.Start.Price, 1e-9)
		require.True(t, p.Now.Valid)
		assert.InDelta(t, 106.0, p.Now.Price, 1e-9)

		// 2h back is 10:45, latest bar at or before is 10:30 (close 102).
		require.True(t, p.H2.Valid)
		assert.InDelta(t, 102.0, p.H2.Price, 1e-9)
		// 90m back is 11:15 -> 11:00 bar (close 103).
		require.True(t, p.H1Half.Valid)
		assert.InDelta(t, 103.0, p.H1Half.Price, 1e-9)
		// 1h back is 11:45 -> 11:30 bar (close 104).
		require.True(t, p.H1.Valid)
		assert.InDelta(t, 104.0, p.H1.Price, 1e-9)
		// 30m back is 12:15 -> 12:00 bar (close 105).
		require.True(t, p.Min30.Valid)
		assert.InDelta(t, 105.0, p.Min30.Price, 1e-9)
	})

	t.Run("lookbacks before the first bar are invalid", func(t *testing.T) {
		bars := sessionBars(day, 100, 101)
		now := time.Date(2025, 6, 2, 10, 15, 0, 0, time.UTC)

		p := ComputeReferencePrices(bars, domain.PricePoint{}, now)

		assert.True(t, p.Start.Valid)
		assert.True(t, p.Now.Valid)
		assert.False(t, p.H2.Valid)
		assert.False(t, p.H1Half.Valid)
		// 1h back is 09:15, before the 09:30 bar.
		assert.False(t, p.H1.Valid)
		assert.True(t, p.Min30.Valid)
	})

	t.Run("before the open unresolved slots fall back to previous close", func(t *testing.T) {
		now := time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)
		prev := domain.PricePoint{Price: 99.5, Valid: true}

		p := ComputeReferencePrices(nil, prev, now)

		for _, pt := range []domain.PricePoint{p.Start, p.H2, p.H1Half, p.H1, p.Min30, p.Now} {
			require.True(t, pt.Valid)
			assert.InDelta(t, 99.5, pt.Price, 1e-9)
		}
	})

	t.Run("after the open there is no previous-close fill", func(t *testing.T) {
		now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
		prev := domain.PricePoint{Price: 99.5, Valid: true}

		p := ComputeReferencePrices(nil, prev, now)

		assert.False(t, p.Start.Valid)
		assert.False(t, p.Now.Valid)
		assert.False(t, p.H2.Valid)
	})

	t.Run("unparseable first open falls back to its close", func(t *testing.T) {
		bars := sessionBars(day, 100, 101, 102)
		bars[0].Open = math.NaN()
		now := time.Date(2025, 6, 2, 11, 0, 0, 0, time.UTC)

		p := ComputeReferencePrices(bars, domain.PricePoint{}, now)

		require.True(t, p.Start.Valid)
		assert.InDelta(t, 100.0, p.Start.Price, 1e-9)
	})
}
