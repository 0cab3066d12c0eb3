package markethours

import (
	"fmt"
	"time"
)

// Clock gates evaluation cycles on the trading session of a single market
// zone. Weekends are always closed.
type Clock struct {
	loc       *time.Location
	openHour  int
	closeHour int
	now       func() time.Time
}

// NewClock creates a market-hours clock for the named IANA zone
// (e.g., "Europe/London") and whole-hour open/close bounds.
func NewClock(zone string, openHour, closeHour int) (*Clock, error) {
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, fmt.Errorf("failed to load market timezone %q: %w", zone, err)
	}
	if openHour < 0 || closeHour > 24 || openHour >= closeHour {
		return nil, fmt.Errorf("invalid market hours %d-%d", openHour, closeHour)
	}
	return &Clock{loc: loc, openHour: openHour, closeHour: closeHour, now: time.Now}, nil
}

// IsOpen reports whether the market is currently within trading hours.
func (c *Clock) IsOpen() bool {
	now := c.now().In(c.loc)
	if wd := now.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return false
	}
	return now.Hour() >= c.openHour && now.Hour() < c.closeHour
}

// Today returns the current trading date in the market zone as YYYY-MM-DD.
func (c *Clock) Today() string {
	return c.now().In(c.loc).Format("2006-01-02")
}

// Location returns the market zone.
func (c *Clock) Location() *time.Location {
	return c.loc
}
