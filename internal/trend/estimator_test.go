package trend

import (
	"context"
	"testing"
	"time"

	"stockAlertsBot/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockLogger implements ports.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

func testEstimator(t *testing.T) *Estimator {
	t.Helper()
	e, err := NewEstimator(Config{
		WindowSize:        10,
		MinSlopePctPerBar: 0.0002,
		MinR2:             0.15,
	}, &mockLogger{})
	require.NoError(t, err)
	return e
}

func TestNewEstimator(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		nilLog  bool
		wantErr bool
	}{
		{name: "valid config", cfg: Config{WindowSize: 10, MinSlopePctPerBar: 0.0002, MinR2: 0.15}},
		{name: "nil logger", cfg: Config{WindowSize: 10}, nilLog: true, wantErr: true},
		{name: "window too small", cfg: Config{WindowSize: 1}, wantErr: true},
		{name: "negative threshold", cfg: Config{WindowSize: 10, MinR2: -0.1}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var log *mockLogger
			if !tt.nilLog {
				log = &mockLogger{}
			}
			e, err := NewEstimator(tt.cfg, log)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, e)
				return
			}
			assert.NoError(t, err)
			assert.NotNil(t, e)
		})
	}
}

func TestIsUptrend(t *testing.T) {
	e := testEstimator(t)

	tests := []struct {
		name   string
		closes []float64
		want   bool
	}{
		{name: "empty", closes: nil, want: false},
		{name: "single close", closes: []float64{100}, want: false},
		{name: "two closes rising", closes: []float64{100, 101}, want: true},
		{name: "two closes falling", closes: []float64{101, 100}, want: false},
		{name: "two closes equal", closes: []float64{100, 100}, want: false},
		{name: "three closes last above first", closes: []float64{100, 99, 101}, want: true},
		{name: "three closes last below first", closes: []float64{100, 102, 99}, want: false},
		{
			name:   "clean rise over full window",
			closes: []float64{100, 100.5, 101, 101.5, 102, 102.5, 103, 103.5},
			want:   true,
		},
		{
			name:   "clean fall over full window",
			closes: []float64{103, 102.5, 102, 101.5, 101, 100.5, 100, 99.5},
			want:   false,
		},
		{
			name:   "flat series is not an uptrend",
			closes: []float64{100, 100, 100, 100, 100, 100},
			want:   false,
		},
		{
			// With 4 points the R2 and slope floors are halved, so a
			// modest clean rise still qualifies.
			name:   "small sample with relaxed thresholds",
			closes: []float64{100, 100.2, 100.4, 100.6},
			want:   true,
		},
		{
			// Noise around a flat mean fails the fit floor at full size.
			name:   "choppy series fails the fit floor",
			closes: []float64{100, 101, 99.5, 100.5, 99.8, 100.2, 100.05, 100.0},
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, e.IsUptrend(tt.closes))
		})
	}
}

func TestIsUptrend_WindowTruncation(t *testing.T) {
	e := testEstimator(t)

	// 15 closes: a long fall followed by a clean 10-bar rise. Only the
	// window tail feeds the regression, so the early fall is invisible.
	closes := []float64{120, 118, 116, 114, 112}
	for i := 0; i < 10; i++ {
		closes = append(closes, 100+float64(i))
	}
	assert.True(t, e.IsUptrend(closes))
}

func valid(p float64) domain.PricePoint {
	return domain.PricePoint{Price: p, Valid: true}
}

func risingBars(n int, start, step float64) []*domain.Bar {
	base := time.Date(2025, 6, 2, 14, 30, 0, 0, time.UTC)
	bars := make([]*domain.Bar, 0, n)
	for i := 0; i < n; i++ {
		price := start + float64(i)*step
		bars = append(bars, &domain.Bar{
			Timestamp: base.Add(time.Duration(i) * 30 * time.Minute),
			Symbol:    "AAPL",
			Interval:  "30min",
			Open:      price,
			High:      price,
			Low:       price,
			Close:     price,
			Volume:    1000,
		})
	}
	return bars
}

func TestEstimate(t *testing.T) {
	e := testEstimator(t)
	ctx := context.Background()

	t.Run("no usable latest price is Down", func(t *testing.T) {
		label, est := e.Estimate(ctx, "AAPL", risingBars(8, 100, 1), domain.ReferencePrices{}, nil)
		assert.Equal(t, domain.TrendDown, label)
		assert.False(t, est.Degraded)
	})

	t.Run("rising window is Up", func(t *testing.T) {
		bars := risingBars(8, 100, 1)
		prices := domain.ReferencePrices{Start: valid(100), Now: valid(107)}
		label, est := e.Estimate(ctx, "AAPL", bars, prices, nil)
		assert.Equal(t, domain.TrendUp, label)
		assert.False(t, est.Degraded)
	})

	t.Run("falling window is Down", func(t *testing.T) {
		bars := risingBars(8, 107, -1)
		prices := domain.ReferencePrices{Start: valid(107), Now: valid(100)}
		label, est := e.Estimate(ctx, "AAPL", bars, prices, nil)
		assert.Equal(t, domain.TrendDown, label)
		assert.False(t, est.Degraded)
	})

	t.Run("start-vs-now fallback is degraded", func(t *testing.T) {
		prices := domain.ReferencePrices{Start: valid(100), Now: valid(101)}
		label, est := e.Estimate(ctx, "AAPL", nil, prices, nil)
		assert.Equal(t, domain.TrendUp, label)
		assert.True(t, est.Degraded)

		prices = domain.ReferencePrices{Start: valid(101), Now: valid(100)}
		label, est = e.Estimate(ctx, "AAPL", nil, prices, nil)
		assert.Equal(t, domain.TrendDown, label)
		assert.True(t, est.Degraded)
	})

	t.Run("no start and no bars is Down without degradation flag", func(t *testing.T) {
		prices := domain.ReferencePrices{Now: valid(100)}
		label, est := e.Estimate(ctx, "AAPL", nil, prices, nil)
		assert.Equal(t, domain.TrendDown, label)
		assert.False(t, est.Degraded)
	})

	t.Run("open position below profit floor forces Down", func(t *testing.T) {
		bars := risingBars(8, 100, 1)
		prices := domain.ReferencePrices{Start: valid(100), Now: valid(107)}
		pos := &domain.Position{Symbol: "AAPL", BuyPrice: 106.8}

		// 107 < 106.8 * 1.005, so the uptrend is overridden.
		label, est := e.Estimate(ctx, "AAPL", bars, prices, pos)
		assert.Equal(t, domain.TrendDown, label)
		assert.False(t, est.Degraded)
	})

	t.Run("open position above profit floor keeps Up", func(t *testing.T) {
		bars := risingBars(8, 100, 1)
		prices := domain.ReferencePrices{Start: valid(100), Now: valid(107)}
		pos := &domain.Position{Symbol: "AAPL", BuyPrice: 100}

		label, _ := e.Estimate(ctx, "AAPL", bars, prices, pos)
		assert.Equal(t, domain.TrendUp, label)
	})
}
