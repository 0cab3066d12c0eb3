package report

import (
	"math"
	"sort"
	"time"

	"stockAlertsBot/internal/domain"
)

// PerformanceMetrics summarizes the paper-trading ledger. Profit figures are
// per-share, matching how the ledger records a position.
type PerformanceMetrics struct {
	TotalPositions  int
	OpenPositions   int
	ClosedPositions int
	WinningTrades   int
	LosingTrades    int
	WinRate         float64
	TotalProfit     float64
	AverageWin      float64
	AverageLoss     float64
	MaxDrawdown     float64 // Deepest dip of realized profit below its running peak
	AverageHoldTime time.Duration
	BySymbol        map[string]float64 // Realized profit per symbol
}

// Analyze computes ledger metrics from a set of positions. Open positions
// count toward totals but contribute no profit.
func Analyze(positions []*domain.Position) *PerformanceMetrics {
	metrics := &PerformanceMetrics{
		BySymbol: make(map[string]float64),
	}

	if len(positions) == 0 {
		return metrics
	}

	closed := make([]*domain.Position, 0, len(positions))
	for _, pos := range positions {
		metrics.TotalPositions++
		if pos.IsOpen() {
			metrics.OpenPositions++
			continue
		}
		closed = append(closed, pos)
	}
	metrics.ClosedPositions = len(closed)
	if len(closed) == 0 {
		return metrics
	}

	// Realized profit accrues in sale order.
	sort.Slice(closed, func(i, j int) bool {
		return closed[i].SaleTime.Before(closed[j].SaleTime)
	})

	var equity, peak float64
	var totalHold time.Duration

	for _, pos := range closed {
		profit := pos.Profit()
		metrics.TotalProfit += profit
		metrics.BySymbol[pos.Symbol] += profit
		totalHold += pos.SaleTime.Sub(pos.BuyTime)

		if profit > 0 {
			metrics.WinningTrades++
			metrics.AverageWin = (metrics.AverageWin*float64(metrics.WinningTrades-1) + profit) / float64(metrics.WinningTrades)
		} else {
			metrics.LosingTrades++
			metrics.AverageLoss = (metrics.AverageLoss*float64(metrics.LosingTrades-1) + profit) / float64(metrics.LosingTrades)
		}

		equity += profit
		if equity > peak {
			peak = equity
		}
		metrics.MaxDrawdown = math.Max(metrics.MaxDrawdown, peak-equity)
	}

	metrics.WinRate = float64(metrics.WinningTrades) / float64(len(closed))
	metrics.AverageHoldTime = totalHold / time.Duration(len(closed))

	return metrics
}
