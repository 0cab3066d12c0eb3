package ports

import (
	"context"

	"stockAlertsBot/internal/domain"
)

// Notifier delivers alerts for signals that passed the throttle.
type Notifier interface {
	// SendAlert delivers one alert for a signal at the given price.
	SendAlert(ctx context.Context, sig *domain.Signal, price float64) error
}
