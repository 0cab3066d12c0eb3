package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"stockAlertsBot/internal/domain"
	"stockAlertsBot/internal/ports"
)

// Action describes what the ledger did for a symbol in one cycle.
type Action string

const (
	ActionOpened Action = "opened" // New position opened
	ActionHeld   Action = "held"   // Up with a position already open
	ActionClosed Action = "closed" // Open position closed
	ActionNone   Action = "none"   // Down with nothing open
)

// Ledger is the buy/sell state machine over the paper-trading positions. Per
// symbol it has two states, open and flat, driven by the cycle's trend label.
type Ledger struct {
	positions ports.PositionRepository
	logger    ports.Logger
}

// New creates a position ledger backed by the given repository.
func New(positions ports.PositionRepository, logger ports.Logger) (*Ledger, error) {
	if positions == nil {
		return nil, fmt.Errorf("position repository is required for ledger")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for ledger")
	}
	return &Ledger{positions: positions, logger: logger}, nil
}

// Apply transitions the symbol's position state for one evaluation cycle:
// Up opens a position when none is open and holds otherwise; Down closes the
// open position and is a no-op otherwise. An attempt to double-open or close
// a missing position is rejected as a no-op, never an error the caller must
// handle: the invariant of at most one open row per symbol always holds.
func (l *Ledger) Apply(ctx context.Context, symbol, name string, trend domain.TrendLabel, price float64, ts time.Time) (Action, *domain.Position, error) {
	open, err := l.positions.FindOpenBySymbol(ctx, symbol)
	if err != nil {
		return ActionNone, nil, fmt.Errorf("query open position for %s: %w", symbol, err)
	}

	switch trend {
	case domain.TrendUp:
		if open != nil {
			l.logger.Debug(ctx, "Trend Up, position already open, holding", map[string]interface{}{
				"symbol": symbol, "buyPrice": open.BuyPrice,
			})
			return ActionHeld, open, nil
		}
		return l.open(ctx, symbol, name, price, ts)

	case domain.TrendDown:
		if open == nil {
			l.logger.Debug(ctx, "Trend Down, no open position, nothing to close", map[string]interface{}{
				"symbol": symbol,
			})
			return ActionNone, nil, nil
		}
		return l.close(ctx, open, price, ts)

	default:
		return ActionNone, nil, fmt.Errorf("unknown trend label %q for %s", trend, symbol)
	}
}

func (l *Ledger) open(ctx context.Context, symbol, name string, price float64, ts time.Time) (Action, *domain.Position, error) {
	pos := &domain.Position{
		Symbol:   symbol,
		Name:     name,
		BuyPrice: price,
		BuyTime:  ts,
	}
	id, err := l.positions.OpenPosition(ctx, pos)
	if err != nil {
		// A concurrent cycle won the race; the existing open row stands.
		if errors.Is(err, ports.ErrPositionAlreadyOpen) {
			l.logger.Warn(ctx, "Open rejected, position already exists", map[string]interface{}{
				"symbol": symbol,
			})
			return ActionHeld, nil, nil
		}
		return ActionNone, nil, fmt.Errorf("open position for %s: %w", symbol, err)
	}
	pos.ID = id
	l.logger.Info(ctx, "Opened position", map[string]interface{}{
		"symbol": symbol, "buyPrice": price, "positionID": id,
	})
	return ActionOpened, pos, nil
}

func (l *Ledger) close(ctx context.Context, open *domain.Position, price float64, ts time.Time) (Action, *domain.Position, error) {
	if err := l.positions.ClosePosition(ctx, open.ID, price, ts); err != nil {
		if errors.Is(err, ports.ErrNoOpenPosition) {
			l.logger.Warn(ctx, "Close rejected, position no longer open", map[string]interface{}{
				"symbol": open.Symbol, "positionID": open.ID,
			})
			return ActionNone, nil, nil
		}
		return ActionNone, nil, fmt.Errorf("close position %d for %s: %w", open.ID, open.Symbol, err)
	}
	closed := *open
	closed.SalePrice = price
	closed.SaleTime = ts
	l.logger.Info(ctx, "Closed position", map[string]interface{}{
		"symbol":     open.Symbol,
		"positionID": open.ID,
		"buyPrice":   open.BuyPrice,
		"salePrice":  price,
		"profit":     closed.Profit(),
	})
	return ActionClosed, &closed, nil
}
