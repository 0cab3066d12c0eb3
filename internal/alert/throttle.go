package alert

import (
	"context"
	"fmt"
	"math"
	"time"

	"stockAlertsBot/internal/domain"
	"stockAlertsBot/internal/ports"
)

// Config holds the throttling thresholds.
type Config struct {
	MinAlertGap    time.Duration // Cooldown between alerts for one symbol
	ReAlertStepPct float64       // Additional % move from last alerted price that re-alerts
	MovePct        float64       // Move threshold backing the direction-flip override
}

// Throttle decides whether a detected signal becomes an alert. State is read
// before every decision and written only on emission; suppressed evaluations
// leave it untouched.
type Throttle struct {
	cfg    Config
	states ports.AlertStateRepository
	logger ports.Logger
	now    func() time.Time
}

// NewThrottle creates an alert throttle backed by the given state repository.
func NewThrottle(cfg Config, states ports.AlertStateRepository, logger ports.Logger) (*Throttle, error) {
	if states == nil {
		return nil, fmt.Errorf("alert state repository is required for throttle")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for throttle")
	}
	if cfg.MinAlertGap <= 0 {
		return nil, fmt.Errorf("minimum alert gap must be positive")
	}
	if cfg.ReAlertStepPct < 0 || cfg.MovePct < 0 {
		return nil, fmt.Errorf("throttle thresholds cannot be negative")
	}
	return &Throttle{cfg: cfg, states: states, logger: logger, now: time.Now}, nil
}

// Evaluate runs one read-decide-write cycle for a signal. It returns true
// when the caller should deliver an alert, in which case the persisted state
// has already been overwritten with the new price, direction, severity and
// timestamp.
func (t *Throttle) Evaluate(ctx context.Context, sig *domain.Signal, currentPrice float64) (bool, error) {
	state, err := t.states.GetAlertState(ctx, sig.Symbol)
	if err != nil {
		return false, fmt.Errorf("read alert state for %s: %w", sig.Symbol, err)
	}

	now := t.now().UTC()
	if !t.shouldAlert(ctx, sig, currentPrice, state, now) {
		return false, nil
	}

	next := &domain.AlertState{
		Symbol:        sig.Symbol,
		LastAlertAt:   now,
		LastPrice:     currentPrice,
		LastDirection: sig.Direction(),
		LastSeverity:  sig.Severity,
	}
	if err := t.states.PutAlertState(ctx, next); err != nil {
		return false, fmt.Errorf("write alert state for %s: %w", sig.Symbol, err)
	}
	return true, nil
}

func (t *Throttle) shouldAlert(ctx context.Context, sig *domain.Signal, currentPrice float64, state *domain.AlertState, now time.Time) bool {
	// First alert for the symbol.
	if !state.HasAlerted() {
		return true
	}

	// A direction flip with a move beyond the threshold overrides the
	// cooldown; nothing else does.
	flipped := sig.Direction() != state.LastDirection &&
		math.Abs(sig.PctChange()) >= t.cfg.MovePct

	if now.Sub(state.LastAlertAt) < t.cfg.MinAlertGap {
		if flipped {
			t.logger.Debug(ctx, "Cooldown overridden by direction flip", map[string]interface{}{
				"symbol": sig.Symbol, "direction": sig.Direction(),
			})
			return true
		}
		return false
	}

	if flipped {
		return true
	}

	// Price stepped far enough from the last alerted price.
	if state.LastPrice > 0 {
		stepPct := math.Abs((currentPrice - state.LastPrice) / state.LastPrice * 100)
		if stepPct >= t.cfg.ReAlertStepPct {
			return true
		}
	}

	// Severity strictly increased.
	if sig.Severity.Rank() > state.LastSeverity.Rank() {
		return true
	}

	return false
}
