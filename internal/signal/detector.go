package signal

import (
	"context"
	"fmt"
	"math"

	"stockAlertsBot/internal/domain"
	"stockAlertsBot/internal/ports"
)

// volumeAvgWindow is the number of bars preceding the latest over which the
// trailing average volume is computed.
const volumeAvgWindow = 20

// Config holds the detection thresholds.
type Config struct {
	MovePct          float64 // Move-from-open trigger, percent (e.g., 1.5)
	VolumeSpikeMult  float64 // Volume spike multiplier (e.g., 2.0)
	BreakoutLookback int     // Bars to look back for breakout/breakdown (e.g., 20)
}

// Detector derives signals from an intraday bar window. It is pure: the same
// window, day open and thresholds always produce the same signals.
type Detector struct {
	cfg    Config
	logger ports.Logger
}

// NewDetector creates a signal detector.
func NewDetector(cfg Config, logger ports.Logger) (*Detector, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for detector")
	}
	if cfg.MovePct < 0 || cfg.VolumeSpikeMult < 0 {
		return nil, fmt.Errorf("detection thresholds cannot be negative")
	}
	if cfg.BreakoutLookback < 1 {
		return nil, fmt.Errorf("breakout lookback must be at least 1")
	}
	return &Detector{cfg: cfg, logger: logger}, nil
}

// Detect runs all checks against an ascending bar window and the day-open
// price. Fewer than 2 bars, a zero day open or a NaN latest close are
// insufficient data: the result is empty, not an error. The three checks are
// independent; any subset may fire, except breakout and breakdown which are
// mutually exclusive within one pass.
func (d *Detector) Detect(ctx context.Context, symbol string, bars []*domain.Bar, dayOpen float64) []*domain.Signal {
	if len(bars) < 2 {
		return nil
	}

	latest := domain.Latest(bars)
	if math.IsNaN(latest.Close) || dayOpen == 0 {
		d.logger.Debug(ctx, "Detection skipped, insufficient data", map[string]interface{}{
			"symbol": symbol, "dayOpen": dayOpen,
		})
		return nil
	}

	var signals []*domain.Signal

	if sig := d.checkMoveFromOpen(symbol, latest, dayOpen); sig != nil {
		signals = append(signals, sig)
	}
	if sig := d.checkVolumeSpike(symbol, bars, latest); sig != nil {
		signals = append(signals, sig)
	}
	if sig := d.checkBreakout(symbol, bars, latest); sig != nil {
		signals = append(signals, sig)
	}

	return signals
}

func (d *Detector) checkMoveFromOpen(symbol string, latest *domain.Bar, dayOpen float64) *domain.Signal {
	pctChange := (latest.Close - dayOpen) / dayOpen * 100.0
	if math.Abs(pctChange) < d.cfg.MovePct {
		return nil
	}

	severity := domain.SeverityMedium
	if math.Abs(pctChange) >= d.cfg.MovePct*2 {
		severity = domain.SeverityHigh
	}
	direction := domain.DirectionDown
	if pctChange > 0 {
		direction = domain.DirectionUp
	}

	return &domain.Signal{
		Symbol: symbol,
		Type:   domain.SignalMoveFromOpen,
		Metrics: domain.MoveFromOpenMetrics{
			DayOpen:     dayOpen,
			LatestClose: latest.Close,
			PctChange:   pctChange,
			Direction:   direction,
		},
		Severity: severity,
		BarID:    latest.Timestamp,
	}
}

func (d *Detector) checkVolumeSpike(symbol string, bars []*domain.Bar, latest *domain.Bar) *domain.Signal {
	if len(bars) < volumeAvgWindow+1 {
		return nil
	}

	// Average over the 20 bars immediately preceding the latest (exclusive).
	window := bars[len(bars)-volumeAvgWindow-1 : len(bars)-1]
	var total float64
	for _, b := range window {
		total += b.Volume
	}
	avgVol := total / float64(len(window))

	if avgVol <= 0 || latest.Volume < d.cfg.VolumeSpikeMult*avgVol {
		return nil
	}

	return &domain.Signal{
		Symbol: symbol,
		Type:   domain.SignalVolumeSpike,
		Metrics: domain.VolumeSpikeMetrics{
			LatestVolume: latest.Volume,
			AvgVolume:    avgVol,
			Multiplier:   latest.Volume / avgVol,
		},
		Severity: domain.SeverityMedium,
		BarID:    latest.Timestamp,
	}
}

func (d *Detector) checkBreakout(symbol string, bars []*domain.Bar, latest *domain.Bar) *domain.Signal {
	if len(bars) < d.cfg.BreakoutLookback+1 {
		return nil
	}

	// Prior high/low over the lookback bars preceding the latest, skipping
	// unparseable values.
	look := bars[len(bars)-d.cfg.BreakoutLookback-1 : len(bars)-1]
	priorHigh := math.NaN()
	priorLow := math.NaN()
	for _, b := range look {
		if !math.IsNaN(b.High) && (math.IsNaN(priorHigh) || b.High > priorHigh) {
			priorHigh = b.High
		}
		if !math.IsNaN(b.Low) && (math.IsNaN(priorLow) || b.Low < priorLow) {
			priorLow = b.Low
		}
	}
	if math.IsNaN(priorHigh) || math.IsNaN(priorLow) {
		return nil
	}

	switch {
	case latest.Close > priorHigh:
		return &domain.Signal{
			Symbol: symbol,
			Type:   domain.SignalBreakout,
			Metrics: domain.BreakoutMetrics{
				LatestClose:    latest.Close,
				PriorHigh:      priorHigh,
				BreakoutAmount: latest.Close - priorHigh,
			},
			Severity: domain.SeverityHigh,
			BarID:    latest.Timestamp,
		}
	case latest.Close < priorLow:
		return &domain.Signal{
			Symbol: symbol,
			Type:   domain.SignalBreakdown,
			Metrics: domain.BreakdownMetrics{
				LatestClose:     latest.Close,
				PriorLow:        priorLow,
				BreakdownAmount: latest.Close - priorLow,
			},
			Severity: domain.SeverityHigh,
			BarID:    latest.Timestamp,
		}
	}
	return nil
}
