package markethours

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClock(t *testing.T) {
	tests := []struct {
		name    string
		zone    string
		open    int
		close   int
		wantErr bool
	}{
		{name: "valid", zone: "Europe/London", open: 8, close: 16},
		{name: "unknown zone", zone: "Nowhere/Atlantis", open: 8, close: 16, wantErr: true},
		{name: "open after close", zone: "Europe/London", open: 16, close: 8, wantErr: true},
		{name: "close past midnight", zone: "Europe/London", open: 8, close: 25, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewClock(tt.zone, tt.open, tt.close)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.NotNil(t, c)
		})
	}
}

func TestIsOpen(t *testing.T) {
	c, err := NewClock("UTC", 8, 16)
	require.NoError(t, err)

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{name: "weekday mid-session", now: time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC), want: true},
		{name: "weekday at the open", now: time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC), want: true},
		{name: "weekday just before the open", now: time.Date(2025, 6, 2, 7, 59, 0, 0, time.UTC), want: false},
		{name: "weekday at the close", now: time.Date(2025, 6, 2, 16, 0, 0, 0, time.UTC), want: false},
		{name: "saturday", now: time.Date(2025, 6, 7, 12, 0, 0, 0, time.UTC), want: false},
		{name: "sunday", now: time.Date(2025, 6, 8, 12, 0, 0, 0, time.UTC), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c.now = func() time.Time { return tt.now }
			assert.Equal(t, tt.want, c.IsOpen())
		})
	}
}

func TestToday(t *testing.T) {
	c, err := NewClock("Europe/London", 8, 16)
	require.NoError(t, err)

	// 23:30 UTC on June 2nd is already June 3rd in London during BST.
	c.now = func() time.Time { return time.Date(2025, 6, 2, 23, 30, 0, 0, time.UTC) }
	assert.Equal(t, "2025-06-03", c.Today())
}
