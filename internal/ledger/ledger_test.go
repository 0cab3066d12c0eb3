package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"stockAlertsBot/internal/domain"
	"stockAlertsBot/internal/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockLogger implements ports.Logger for testing
type mockLogger struct {
	warnMsgs []string
}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.warnMsgs = append(m.warnMsgs, msg)
}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

// memPositions is an in-memory PositionRepository.
type memPositions struct {
	nextID  int64
	rows    []*domain.Position
	openErr error
	findErr error
}

func (m *memPositions) OpenPosition(ctx context.Context, pos *domain.Position) (int64, error) {
	if m.openErr != nil {
		return 0, m.openErr
	}
	for _, r := range m.rows {
		if r.Symbol == pos.Symbol && r.IsOpen() {
			return 0, ports.ErrPositionAlreadyOpen
		}
	}
	m.nextID++
	stored := *pos
	stored.ID = m.nextID
	m.rows = append(m.rows, &stored)
	return stored.ID, nil
}

func (m *memPositions) ClosePosition(ctx context.Context, id int64, salePrice float64, saleTime time.Time) error {
	for _, r := range m.rows {
		if r.ID == id && r.IsOpen() {
			r.SalePrice = salePrice
			r.SaleTime = saleTime
			return nil
		}
	}
	return ports.ErrNoOpenPosition
}

func (m *memPositions) FindOpenBySymbol(ctx context.Context, symbol string) (*domain.Position, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	for _, r := range m.rows {
		if r.Symbol == symbol && r.IsOpen() {
			return r, nil
		}
	}
	return nil, nil
}

func (m *memPositions) FindBySymbol(ctx context.Context, symbol string, limit int) ([]*domain.Position, error) {
	var out []*domain.Position
	for _, r := range m.rows {
		if r.Symbol == symbol {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memPositions) TotalProfit(ctx context.Context) (float64, error) {
	var total float64
	for _, r := range m.rows {
		total += r.Profit()
	}
	return total, nil
}

var ledgerNow = time.Date(2025, 6, 2, 15, 0, 0, 0, time.UTC)

func TestApply_Transitions(t *testing.T) {
	ctx := context.Background()
	repo := &memPositions{}
	book, err := New(repo, &mockLogger{})
	require.NoError(t, err)

	// Down with nothing open is a no-op.
	action, pos, err := book.Apply(ctx, "AAPL", "Technology", domain.TrendDown, 100, ledgerNow)
	require.NoError(t, err)
	assert.Equal(t, ActionNone, action)
	assert.Nil(t, pos)

	// Up with nothing open opens.
	action, pos, err = book.Apply(ctx, "AAPL", "Technology", domain.TrendUp, 100, ledgerNow)
	require.NoError(t, err)
	assert.Equal(t, ActionOpened, action)
	require.NotNil(t, pos)
	assert.Equal(t, int64(1), pos.ID)
	assert.Equal(t, 100.0, pos.BuyPrice)
	assert.True(t, pos.IsOpen())

	// Up again holds the same position.
	action, pos, err = book.Apply(ctx, "AAPL", "Technology", domain.TrendUp, 105, ledgerNow.Add(30*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, ActionHeld, action)
	require.NotNil(t, pos)
	assert.Equal(t, int64(1), pos.ID)

	// Down closes it.
	saleTime := ledgerNow.Add(time.Hour)
	action, pos, err = book.Apply(ctx, "AAPL", "Technology", domain.TrendDown, 103, saleTime)
	require.NoError(t, err)
	assert.Equal(t, ActionClosed, action)
	require.NotNil(t, pos)
	assert.Equal(t, 103.0, pos.SalePrice)
	assert.Equal(t, saleTime, pos.SaleTime)
	assert.InDelta(t, 3.0, pos.Profit(), 1e-9)

	// The repository row really closed.
	open, err := repo.FindOpenBySymbol(ctx, "AAPL")
	require.NoError(t, err)
	assert.Nil(t, open)

	// A fresh Up opens a second, independent row.
	action, pos, err = book.Apply(ctx, "AAPL", "Technology", domain.TrendUp, 101, saleTime.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, ActionOpened, action)
	assert.Equal(t, int64(2), pos.ID)
}

func TestApply_SymbolsAreIndependent(t *testing.T) {
	ctx := context.Background()
	repo := &memPositions{}
	book, err := New(repo, &mockLogger{})
	require.NoError(t, err)

	_, _, err = book.Apply(ctx, "AAPL", "", domain.TrendUp, 100, ledgerNow)
	require.NoError(t, err)
	_, _, err = book.Apply(ctx, "MSFT", "", domain.TrendUp, 300, ledgerNow)
	require.NoError(t, err)

	action, _, err := book.Apply(ctx, "MSFT", "", domain.TrendDown, 310, ledgerNow.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, ActionClosed, action)

	open, err := repo.FindOpenBySymbol(ctx, "AAPL")
	require.NoError(t, err)
	require.NotNil(t, open)
	assert.Equal(t, 100.0, open.BuyPrice)
}

func TestApply_DoubleOpenRaceIsANoOp(t *testing.T) {
	ctx := context.Background()
	repo := &memPositions{}
	log := &mockLogger{}
	book, err := New(repo, log)
	require.NoError(t, err)

	// The repository reports no open row but rejects the insert, as when a
	// concurrent cycle won the race.
	repo.findErr = nil
	_, _, err = book.Apply(ctx, "AAPL", "", domain.TrendUp, 100, ledgerNow)
	require.NoError(t, err)
	repo.openErr = ports.ErrPositionAlreadyOpen
	repo.rows = nil

	action, pos, err := book.Apply(ctx, "AAPL", "", domain.TrendUp, 101, ledgerNow)
	require.NoError(t, err)
	assert.Equal(t, ActionHeld, action)
	assert.Nil(t, pos)
	assert.NotEmpty(t, log.warnMsgs)
}

func TestApply_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("lookup failure propagates", func(t *testing.T) {
		repo := &memPositions{findErr: errors.New("db down")}
		book, err := New(repo, &mockLogger{})
		require.NoError(t, err)

		_, _, err = book.Apply(ctx, "AAPL", "", domain.TrendUp, 100, ledgerNow)
		assert.Error(t, err)
	})

	t.Run("unknown trend label is rejected", func(t *testing.T) {
		book, err := New(&memPositions{}, &mockLogger{})
		require.NoError(t, err)

		_, _, err = book.Apply(ctx, "AAPL", "", domain.TrendLabel("Sideways"), 100, ledgerNow)
		assert.Error(t, err)
	})

	t.Run("open failure propagates", func(t *testing.T) {
		repo := &memPositions{openErr: errors.New("disk full")}
		book, err := New(repo, &mockLogger{})
		require.NoError(t, err)

		_, _, err = book.Apply(ctx, "AAPL", "", domain.TrendUp, 100, ledgerNow)
		assert.Error(t, err)
	})
}
