package trend

import (
	"context"
	"fmt"

	"stockAlertsBot/internal/domain"
	"stockAlertsBot/internal/ports"
)

// profitFloorPct is the minimal buffer above the entry price an open
// position must clear before the estimator will call "Up" on it.
const profitFloorPct = 0.005

// Config holds the regression parameters.
type Config struct {
	WindowSize        int     // Latest closes fed to the regression (e.g., 10)
	MinSlopePctPerBar float64 // Noise filter on normalized slope (e.g., 0.0002)
	MinR2             float64 // Fit-quality floor (e.g., 0.15)
}

// Estimator turns a close-price window into a trend call. Beyond the
// regression it knows two adjustments: a degraded start-vs-now fallback when
// intraday bars are missing, and a profit-floor override for symbols with an
// open position.
type Estimator struct {
	cfg    Config
	logger ports.Logger
}

// NewEstimator creates a trend estimator.
func NewEstimator(cfg Config, logger ports.Logger) (*Estimator, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for estimator")
	}
	if cfg.WindowSize < 2 {
		return nil, fmt.Errorf("window size must be at least 2")
	}
	if cfg.MinSlopePctPerBar < 0 || cfg.MinR2 < 0 {
		return nil, fmt.Errorf("regression thresholds cannot be negative")
	}
	return &Estimator{cfg: cfg, logger: logger}, nil
}

// IsUptrend reports whether an ascending close sequence is trending up.
// Small samples get progressively simpler tests: 0 or 1 closes are never an
// uptrend, 2 closes compare second vs first, 3 compare last vs first, and 4+
// run the regression with thresholds relaxed below 6 points.
func (e *Estimator) IsUptrend(closes []float64) bool {
	switch len(closes) {
	case 0, 1:
		return false
	case 2:
		return closes[1] > closes[0]
	}

	y := closes
	if len(y) > e.cfg.WindowSize {
		y = y[len(y)-e.cfg.WindowSize:]
	}
	k := len(y)

	// Regression on 3 points is unreliable; compare endpoints instead.
	if k == 3 {
		return y[2] > y[0]
	}

	slope, r2 := olsFit(y)

	var avg float64
	for _, v := range y {
		avg += v
	}
	avg /= float64(k)
	if avg == 0 {
		return false
	}
	slopePctPerBar := slope / avg

	minR2 := e.cfg.MinR2
	minSlope := e.cfg.MinSlopePctPerBar
	switch {
	case k >= 6:
		// Full thresholds.
	case k >= 4:
		minR2 *= 0.5
		minSlope *= 0.5
	default:
		minR2 = 0
		minSlope = 0
	}

	if r2 < minR2 {
		return false
	}
	if slopePctPerBar <= 0 || slopePctPerBar < minSlope {
		return false
	}
	return true
}

// Estimate produces the trend call for one symbol from its intraday window,
// the cycle's reference prices and the symbol's open position (nil if none).
//
// With no usable latest price the call is Down. With fewer than 2 bars the
// degraded start-vs-now fallback is used and flagged. An open position whose
// latest price has not cleared buy price + 0.5% forces Down regardless of
// the regression outcome.
func (e *Estimator) Estimate(
	ctx context.Context,
	symbol string,
	bars []*domain.Bar,
	prices domain.ReferencePrices,
	openPos *domain.Position,
) (domain.TrendLabel, domain.TrendEstimate) {
	if !prices.Now.Valid {
		return domain.TrendDown, domain.TrendEstimate{}
	}
	latest := prices.Now.Price

	var est domain.TrendEstimate
	if len(bars) > 1 {
		est.Uptrend = e.IsUptrend(domain.Closes(bars))
	} else if prices.Start.Valid {
		est.Uptrend = latest > prices.Start.Price
		est.Degraded = true
		e.logger.Debug(ctx, "Trend computed via start-vs-now fallback", map[string]interface{}{
			"symbol": symbol, "start": prices.Start.Price, "now": latest,
		})
	}

	if openPos != nil {
		floor := openPos.BuyPrice * (1.0 + profitFloorPct)
		if latest < floor {
			e.logger.Debug(ctx, "Trend forced Down below position profit floor", map[string]interface{}{
				"symbol": symbol, "latest": latest, "floor": floor,
			})
			return domain.TrendDown, est
		}
	}

	if est.Uptrend {
		return domain.TrendUp, est
	}
	return domain.TrendDown, est
}
