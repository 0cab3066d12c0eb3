package ports

import (
	"context"

	"stockAlertsBot/internal/domain"
)

// MarketDataClient defines the interface for fetching price bars from an
// external market data provider. Implementations own retries, rate limiting
// and timeouts; the core only ever sees an ascending window or an empty one.
type MarketDataClient interface {
	// FetchTimeSeries returns up to outputsize bars for symbol at the given
	// interval (e.g., "30min", "1day"), ordered oldest to newest. Fetch
	// failures and rate limits come back as wrapped sentinel errors; callers
	// treat any of them as an empty window, never as a crash.
	FetchTimeSeries(ctx context.Context, symbol, interval string, outputsize int) ([]*domain.Bar, error)
}
