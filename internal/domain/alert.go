package domain

import "time"

// AlertState is the persisted throttling record for one symbol. It is read
// before every throttle decision and overwritten only when an alert is
// actually emitted.
type AlertState struct {
	Symbol        string
	LastAlertAt   time.Time // Zero value means no prior alert
	LastPrice     float64
	LastDirection Direction
	LastSeverity  Severity
}

// HasAlerted reports whether any alert was ever recorded for the symbol.
func (s *AlertState) HasAlerted() bool {
	return s != nil && !s.LastAlertAt.IsZero()
}
