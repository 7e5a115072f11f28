package ledger

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func appendTrade(s *Store, sym, action string, pnl float64, ts time.Time) {
	s.Append(context.Background(), TradeRecord{
		Timestamp:   ts,
		Symbol:      sym,
		Action:      action,
		Quantity:    10,
		Price:       100,
		RealizedPnL: pnl,
	})
}

func TestStore_Queries(t *testing.T) {
	s := newMemoryStore()
	base := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	appendTrade(s, "AAPL", "BUY", 0, base)
	appendTrade(s, "MSFT", "BUY", 0, base.Add(time.Hour))
	appendTrade(s, "AAPL", "SELL", 50, base.AddDate(0, 0, 1))

	t.Run("Recent", func(t *testing.T) {
		recent := s.Recent(2)
		require.Len(t, recent, 2)
		assert.Equal(t, "MSFT", recent[0].Symbol)
		assert.Equal(t, "AAPL", recent[1].Symbol)
		assert.Len(t, s.Recent(0), 3)
	})

	t.Run("BySymbol", func(t *testing.T) {
		assert.Len(t, s.BySymbol("aapl"), 2)
		assert.Empty(t, s.BySymbol("TSLA"))
	})

	t.Run("ByDateRange Inclusive", func(t *testing.T) {
		got := s.ByDateRange(base, base.Add(time.Hour))
		assert.Len(t, got, 2)
	})

	t.Run("Today", func(t *testing.T) {
		assert.Len(t, s.Today(base), 2)
		assert.Len(t, s.Today(base.AddDate(0, 0, 1)), 1)
	})
}

func TestStore_Summarize(t *testing.T) {
	t.Run("No PnL-Bearing Trades", func(t *testing.T) {
		s := newMemoryStore()
		appendTrade(s, "AAPL", "BUY", 0, time.Now())
		sum := s.Summarize()
		assert.Equal(t, 1, sum.TotalTrades)
		assert.Equal(t, 1, sum.BuyCount)
		assert.Equal(t, 0.0, sum.WinRate)
		assert.Equal(t, 0.0, sum.ProfitFactor)
	})

	t.Run("Mixed Results", func(t *testing.T) {
		s := newMemoryStore()
		appendTrade(s, "AAPL", "SELL", 100, time.Now())
		appendTrade(s, "MSFT", "SELL", -40, time.Now())
		appendTrade(s, "NVDA", "BUY", 0, time.Now())

		sum := s.Summarize()
		assert.Equal(t, 3, sum.TotalTrades)
		assert.InDelta(t, 0.5, sum.WinRate, 1e-9)
		assert.InDelta(t, 30.0, sum.AvgPnL, 1e-9)
		assert.InDelta(t, 2.5, sum.ProfitFactor, 1e-9)
	})

	t.Run("No Losses Is Infinite", func(t *testing.T) {
		s := newMemoryStore()
		appendTrade(s, "AAPL", "SELL", 100, time.Now())
		sum := s.Summarize()
		assert.True(t, math.IsInf(sum.ProfitFactor, 1))
		assert.Equal(t, 1.0, sum.WinRate)
	})
}

func TestStore_Persistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trades.db")

	s, err := NewStore(path)
	require.NoError(t, err)
	appendTrade(s, "AAPL", "BUY", 0, time.Now())
	appendTrade(s, "AAPL", "SELL", 25, time.Now())
	require.NoError(t, s.Close())

	reopened, err := NewStore(path)
	require.NoError(t, err)
	defer reopened.Close()
	assert.Equal(t, 2, reopened.Count())
	assert.Len(t, reopened.BySymbol("AAPL"), 2)
}
