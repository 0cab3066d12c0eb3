package trend

import (
	"math"
	"time"

	"stockAlertsBot/internal/domain"
)

// ComputeReferencePrices derives the snapshot prices at the fixed lookback
// offsets from an ascending 30-minute window. nowLocal must be in the
// exchange's local zone. Before the 9:30 open, slots that could not be
// resolved from intraday bars are filled with the previous daily close.
func ComputeReferencePrices(bars []*domain.Bar, prevClose domain.PricePoint, nowLocal time.Time) domain.ReferencePrices {
	var p domain.ReferencePrices

	if len(bars) > 0 {
		first := bars[0]
		// First bar open is the best session-start proxy at 30m resolution.
		switch {
		case !math.IsNaN(first.Open):
			p.Start = domain.PricePoint{Price: first.Open, Valid: true}
		case !math.IsNaN(first.Close):
			p.Start = domain.PricePoint{Price: first.Close, Valid: true}
		}
		if latest := domain.Latest(bars); !math.IsNaN(latest.Close) {
			p.Now = domain.PricePoint{Price: latest.Close, Valid: true}
		}

		p.H2 = closeAt(bars, nowLocal.Add(-2*time.Hour))
		p.H1Half = closeAt(bars, nowLocal.Add(-90*time.Minute))
		p.H1 = closeAt(bars, nowLocal.Add(-time.Hour))
		p.Min30 = closeAt(bars, nowLocal.Add(-30*time.Minute))
	}

	if beforeMarketOpen(nowLocal) {
		for _, pt := range []*domain.PricePoint{&p.Start, &p.H2, &p.H1Half, &p.H1, &p.Min30, &p.Now} {
			if !pt.Valid {
				*pt = prevClose
			}
		}
	}

	return p
}

func closeAt(bars []*domain.Bar, target time.Time) domain.PricePoint {
	if c, ok := domain.CloseAtOrBefore(bars, target); ok {
		return domain.PricePoint{Price: c, Valid: true}
	}
	return domain.PricePoint{}
}

func beforeMarketOpen(local time.Time) bool {
	open := time.Date(local.Year(), local.Month(), local.Day(), 9, 30, 0, 0, local.Location())
	return local.Before(open)
}
