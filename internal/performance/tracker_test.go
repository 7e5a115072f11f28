package performance

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func steppedTracker(start time.Time) (*Tracker, *time.Time) {
	now := start
	t := newMemoryTracker(func() time.Time { return now })
	return t, &now
}

func TestCompute_Defaults(t *testing.T) {
	tr, _ := steppedTracker(time.Now())

	t.Run("Empty", func(t *testing.T) {
		m := tr.Compute()
		assert.Zero(t, m.TotalReturnPct)
		assert.Zero(t, m.SharpeRatio)
		assert.Zero(t, m.MaxDrawdownPct)
		assert.Zero(t, m.VolatilityPct)
	})

	t.Run("Single Point", func(t *testing.T) {
		tr.Update(context.Background(), 100000)
		m := tr.Compute()
		assert.Equal(t, 1, m.PointCount)
		assert.Zero(t, m.SharpeRatio)
	})
}

func TestCompute_Metrics(t *testing.T) {
	t.Run("Total Return", func(t *testing.T) {
		tr, now := steppedTracker(time.Date(2026, 3, 2, 16, 0, 0, 0, time.UTC))
		for _, v := range []float64{100000, 105000, 110000} {
			tr.Update(context.Background(), v)
			*now = now.AddDate(0, 0, 1)
		}
		m := tr.Compute()
		assert.InDelta(t, 10.0, m.TotalReturnPct, 1e-9)
		assert.Greater(t, m.SharpeRatio, 0.0)
		assert.Greater(t, m.VolatilityPct, 0.0)
	})

	t.Run("Constant Returns Give Zero Sharpe", func(t *testing.T) {
		tr, _ := steppedTracker(time.Now())
		// each step is exactly +10%: sample std of returns is 0
		for _, v := range []float64{100, 110, 121} {
			tr.Update(context.Background(), v)
		}
		m := tr.Compute()
		assert.Zero(t, m.SharpeRatio)
		assert.Zero(t, m.VolatilityPct)
	})

	t.Run("Drawdown Non-Positive", func(t *testing.T) {
		tr, _ := steppedTracker(time.Now())
		for _, v := range []float64{100, 120, 90, 110} {
			tr.Update(context.Background(), v)
		}
		m := tr.Compute()
		assert.InDelta(t, -25.0, m.MaxDrawdownPct, 1e-9)
	})

	t.Run("Non-Decreasing Curve Has Zero Drawdown", func(t *testing.T) {
		tr, _ := steppedTracker(time.Now())
		for _, v := range []float64{100, 100, 105, 110} {
			tr.Update(context.Background(), v)
		}
		assert.Zero(t, tr.Compute().MaxDrawdownPct)
	})

	t.Run("Sharpe Annualization", func(t *testing.T) {
		tr, _ := steppedTracker(time.Now())
		for _, v := range []float64{100, 101, 99, 102} {
			tr.Update(context.Background(), v)
		}
		returns := []float64{0.01, -2.0 / 101, 3.0 / 99}
		mean, std := meanStd(returns)
		m := tr.Compute()
		assert.InDelta(t, mean/std*math.Sqrt(252), m.SharpeRatio, 1e-9)
	})
}

func TestEquityCurveAndDailyPnL(t *testing.T) {
	tr, now := steppedTracker(time.Date(2026, 3, 2, 16, 0, 0, 0, time.UTC))
	for _, v := range []float64{100000, 101000, 99000} {
		tr.Update(context.Background(), v)
		*now = now.AddDate(0, 0, 10)
	}

	t.Run("Curve Window", func(t *testing.T) {
		assert.Len(t, tr.EquityCurve(0), 3)
		assert.Len(t, tr.EquityCurve(15), 1)
		assert.Len(t, tr.EquityCurve(25), 2)
	})

	t.Run("Daily PnL", func(t *testing.T) {
		pnl, pct := tr.DailyPnL()
		assert.InDelta(t, -2000.0, pnl, 1e-9)
		assert.InDelta(t, -2000.0/101000*100, pct, 1e-9)
	})

	t.Run("Latest", func(t *testing.T) {
		p, ok := tr.Latest()
		require.True(t, ok)
		assert.Equal(t, 99000.0, p.Value)
	})
}

func TestTracker_Persistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "performance.db")

	tr, err := NewTracker(path)
	require.NoError(t, err)
	tr.Update(context.Background(), 100000)
	tr.Update(context.Background(), 102000)
	require.NoError(t, tr.Close())

	reopened, err := NewTracker(path)
	require.NoError(t, err)
	defer reopened.Close()
	m := reopened.Compute()
	assert.Equal(t, 2, m.PointCount)
	assert.InDelta(t, 2.0, m.TotalReturnPct, 1e-9)
}
