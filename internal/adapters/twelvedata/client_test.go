package twelvedata

import (
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"stockAlertsBot/internal/ports"

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

func testClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(Config{
		APIKey:        "test-key",
		BaseURL:       srv.URL,
		HTTPClient:    srv.Client(),
		Logger:        &mockLogger{},
		MaxRetries:    2,
		RateLimitWait: 10 * time.Millisecond,
	})
	require.NoError(t, err)
	return c, srv
}

func TestNew(t *testing.T) {
	t.Run("missing API key", func(t *testing.T) {
		_, err := New(Config{Logger: &mockLogger{}})
		require.Error(t, err)
		assert.ErrorIs(t, err, ports.ErrConfigurationError)
	})

	t.Run("nil logger", func(t *testing.T) {
		_, err := New(Config{APIKey: "k"})
		assert.Error(t, err)
	})
}

func TestFetchTimeSeries_ParsesAndSortsBars(t *testing.T) {
	const body = `{
		"status": "ok",
		"values": [
			{"datetime": "2025-06-02 10:00:00", "open": "101", "high": "102", "low": "100.5", "close": "101.5", "volume": "1200"},
			{"datetime": "2025-06-02 09:30:00", "open": "100", "high": "101", "low": "99.5", "close": "100.8", "volume": "1500"},
			{"datetime": "2025-06-02 10:00:00", "open": "101", "high": "102", "low": "100.5", "close": "101.5", "volume": "1200"},
			{"datetime": "not-a-date", "open": "1", "high": "1", "low": "1", "close": "1", "volume": "1"},
			{"datetime": "2025-06-02 10:30:00", "open": "", "high": "102.5", "low": "101", "close": "bogus", "volume": ""}
		]
	}`

	var gotQuery atomic.Value
	c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery.Store(r.URL.Query())
		w.Write([]byte(body))
	})

	bars, err := c.FetchTimeSeries(context.Background(), "AAPL", "30min", 50)
	require.NoError(t, err)
	require.Len(t, bars, 3)

	// Ascending, duplicate timestamp dropped, bad datetime dropped.
	assert.True(t, bars[0].Timestamp.Before(bars[1].Timestamp))
	assert.True(t, bars[1].Timestamp.Before(bars[2].Timestamp))
	assert.Equal(t, "AAPL", bars[0].Symbol)
	assert.Equal(t, "30min", bars[0].Interval)
	assert.InDelta(t, 100.8, bars[0].Close, 1e-9)

	// Timestamps are parsed in the exchange zone.
	assert.Equal(t, 9, bars[0].Timestamp.Hour())
	assert.Equal(t, 30, bars[0].Timestamp.Minute())
	assert.Equal(t, c.Location(), bars[0].Timestamp.Location())

	// Unparseable prices degrade to NaN, volume to zero.
	assert.True(t, math.IsNaN(bars[2].Open))
	assert.True(t, math.IsNaN(bars[2].Close))
	assert.InDelta(t, 102.5, bars[2].High, 1e-9)
	assert.Zero(t, bars[2].Volume)

	q := gotQuery.Load().(url.Values)
	assert.Equal(t, "AAPL", q.Get("symbol"))
	assert.Equal(t, "30min", q.Get("interval"))
	assert.Equal(t, "50", q.Get("outputsize"))
	assert.Equal(t, "ASC", q.Get("order"))
	assert.Equal(t, "test-key", q.Get("apikey"))
}

func TestFetchTimeSeries_DailyLayout(t *testing.T) {
	const body = `{
		"status": "ok",
		"values": [
			{"datetime": "2025-05-30", "open": "100", "high": "105", "low": "99", "close": "104", "volume": "900000"},
			{"datetime": "2025-06-02", "open": "104", "high": "106", "low": "103", "close": "105", "volume": "800000"}
		]
	}`

	c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	})

	bars, err := c.FetchTimeSeries(context.Background(), "AAPL", "1day", 2)
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, "2025-05-30", bars[0].Timestamp.Format("2006-01-02"))
	assert.Equal(t, "2025-06-02", bars[1].Timestamp.Format("2006-01-02"))
}

func TestFetchTimeSeries_RetriesThenSucceeds(t *testing.T) {
	var calls int32
	c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"status": "ok", "values": [
			{"datetime": "2025-06-02 09:30:00", "open": "100", "high": "101", "low": "99", "close": "100.5", "volume": "1000"}
		]}`))
	})

	bars, err := c.FetchTimeSeries(context.Background(), "AAPL", "30min", 1)
	require.NoError(t, err)
	assert.Len(t, bars, 1)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestFetchTimeSeries_ErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		wantErr error
	}{
		{
			name: "HTTP 429 maps to rate limited",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusTooManyRequests)
			},
			wantErr: ports.ErrRateLimited,
		},
		{
			name: "HTTP 500 maps to provider unavailable",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
			wantErr: ports.ErrProviderUnavailable,
		},
		{
			name: "embedded credits error maps to rate limited",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"status": "error", "code": 400, "message": "You have run out of API credits"}`))
			},
			wantErr: ports.ErrRateLimited,
		},
		{
			name: "embedded provider error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"status": "error", "code": 404, "message": "symbol not found"}`))
			},
			wantErr: ports.ErrProviderUnavailable,
		},
		{
			name: "malformed body maps to bad payload",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"status":`))
			},
			wantErr: ports.ErrBadPayload,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := testClient(t, tt.handler)

			bars, err := c.FetchTimeSeries(context.Background(), "AAPL", "30min", 1)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, bars)
		})
	}
}

func TestFetchTimeSeries_ContextCancellation(t *testing.T) {
	c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.FetchTimeSeries(ctx, "AAPL", "30min", 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, ports.ErrContextCanceled)
}
