package domain

import "time"

// SignalType identifies what kind of market event a signal describes.
type SignalType string

const (
	SignalMoveFromOpen SignalType = "move_from_open"
	SignalVolumeSpike  SignalType = "volume_spike"
	SignalBreakout     SignalType = "breakout"
	SignalBreakdown    SignalType = "breakdown"
)

// Direction is the sign of a price move.
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

// Severity is the coarse urgency classification of a signal.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Rank orders severities for comparison (low < medium < high).
// Unknown severities rank below low.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	default:
		return 0
	}
}

// SignalMetrics is the typed payload attached to a signal. Each signal type
// carries its own named numeric fields.
type SignalMetrics interface {
	signalMetrics()
}

// MoveFromOpenMetrics describes a percentage move from the day open.
type MoveFromOpenMetrics struct {
	DayOpen     float64   `json:"day_open"`
	LatestClose float64   `json:"latest_close"`
	PctChange   float64   `json:"pct_change"`
	Direction   Direction `json:"direction"`
}

// VolumeSpikeMetrics describes volume against the trailing average.
type VolumeSpikeMetrics struct {
	LatestVolume float64 `json:"latest_volume"`
	AvgVolume    float64 `json:"avg_volume"`
	Multiplier   float64 `json:"multiplier"`
}

// BreakoutMetrics describes a close above the prior lookback high.
type BreakoutMetrics struct {
	LatestClose    float64 `json:"latest_close"`
	PriorHigh      float64 `json:"prior_high"`
	BreakoutAmount float64 `json:"breakout_amount"`
}

// BreakdownMetrics describes a close below the prior lookback low.
type BreakdownMetrics struct {
	LatestClose     float64 `json:"latest_close"`
	PriorLow        float64 `json:"prior_low"`
	BreakdownAmount float64 `json:"breakdown_amount"`
}

func (MoveFromOpenMetrics) signalMetrics() {}
func (VolumeSpikeMetrics) signalMetrics()  {}
func (BreakoutMetrics) signalMetrics()     {}
func (BreakdownMetrics) signalMetrics()    {}

// Signal is a detected market event for one symbol. Identity for
// deduplication is (Symbol, Type, BarID): at most one stored signal per triple.
type Signal struct {
	ID       int64         // Assigned by storage, 0 until persisted
	Symbol   string        // Stock symbol
	Type     SignalType    // What fired
	Metrics  SignalMetrics // Type-specific numeric payload
	Severity Severity      // low / medium / high
	BarID    time.Time     // Timestamp of the triggering bar
}

// PctChange returns the signed move-from-open percentage when the signal
// carries one, and 0 otherwise.
func (s *Signal) PctChange() float64 {
	if m, ok := s.Metrics.(MoveFromOpenMetrics); ok {
		return m.PctChange
	}
	return 0
}

// Direction returns the signal's direction. Signals without an explicit
// direction fall back to the sign of the move-from-open percentage.
func (s *Signal) Direction() Direction {
	if m, ok := s.Metrics.(MoveFromOpenMetrics); ok {
		return m.Direction
	}
	if s.PctChange() > 0 {
		return DirectionUp
	}
	return DirectionDown
}
