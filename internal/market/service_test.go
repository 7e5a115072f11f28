package market

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	bars  map[string][]Bar
	err   error
	calls int
}

func (f *fakeSource) GetHistory(_ context.Context, symbol string, _ int) ([]Bar, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.bars[symbol], nil
}

func (f *fakeSource) LatestPrice(context.Context, string) (float64, error) {
	if f.err != nil {
		return 0, f.err
	}
	return 100, nil
}

type fakeFallback struct {
	bars  map[string][]Bar
	saved map[string][]Bar
}

func (f *fakeFallback) Load(symbol string) ([]Bar, error) {
	bars, ok := f.bars[symbol]
	if !ok {
		return nil, ErrNoData
	}
	return bars, nil
}

func (f *fakeFallback) Save(symbol string, bars []Bar) error {
	if f.saved == nil {
		f.saved = make(map[string][]Bar)
	}
	f.saved[symbol] = bars
	return nil
}

func dailyBars(n int) []Bar {
	base := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	bars := make([]Bar, n)
	for i := range bars {
		bars[i] = Bar{
			Date: base.AddDate(0, 0, i), Open: 100, High: 101, Low: 99,
			Close: 100 + float64(i), Volume: 1000,
		}
	}
	return bars
}

func TestHistory(t *testing.T) {
	ctx := context.Background()

	t.Run("remote served and saved locally", func(t *testing.T) {
		fb := &fakeFallback{}
		svc := NewService(&fakeSource{bars: map[string][]Bar{"AAPL": dailyBars(5)}}, fb, true)

		bars, err := svc.History(ctx, "aapl", 60)
		require.NoError(t, err)
		assert.Len(t, bars, 5)
		assert.Len(t, fb.saved["AAPL"], 5)
	})

	t.Run("fallback on remote failure", func(t *testing.T) {
		fb := &fakeFallback{bars: map[string][]Bar{"MSFT": dailyBars(70)}}
		svc := NewService(&fakeSource{err: errors.New("rate limited")}, fb, false)

		bars, err := svc.History(ctx, "MSFT", 60)
		require.NoError(t, err)
		assert.Len(t, bars, 60, "fallback history trimmed to lookback")
	})

	t.Run("remote failure without fallback data", func(t *testing.T) {
		svc := NewService(&fakeSource{err: errors.New("rate limited")}, &fakeFallback{}, false)
		_, err := svc.History(ctx, "NVDA", 60)
		assert.EqualError(t, err, "rate limited")
	})

	t.Run("empty symbol", func(t *testing.T) {
		svc := NewService(&fakeSource{}, nil, false)
		_, err := svc.History(ctx, "  ", 60)
		assert.ErrorIs(t, err, ErrNoData)
	})
}

func TestFetchUniverse(t *testing.T) {
	ctx := context.Background()

	t.Run("partial failures tolerated", func(t *testing.T) {
		src := &fakeSource{bars: map[string][]Bar{"AAPL": dailyBars(60)}}
		svc := NewService(src, nil, false)

		data, err := svc.FetchUniverse(ctx, []string{"AAPL", "MSFT"}, 60)
		require.NoError(t, err)
		assert.Len(t, data, 1)
		assert.Contains(t, data, "AAPL")
	})

	t.Run("total outage reported", func(t *testing.T) {
		svc := NewService(&fakeSource{err: errors.New("connection refused")}, nil, false)
		_, err := svc.FetchUniverse(ctx, []string{"AAPL", "MSFT"}, 60)
		assert.ErrorIs(t, err, ErrFetchOutage)
	})

	t.Run("all symbols merely missing is not an outage", func(t *testing.T) {
		svc := NewService(&fakeSource{}, nil, false)
		data, err := svc.FetchUniverse(ctx, []string{"AAPL"}, 60)
		require.NoError(t, err)
		assert.Empty(t, data)
	})
}

func TestBreakerShieldsRemote(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{err: errors.New("connection refused")}
	fb := &fakeFallback{bars: map[string][]Bar{"AAPL": dailyBars(60)}}
	svc := NewService(src, fb, false)

	// threshold 5 hard failures open the breaker
	for i := 0; i < 5; i++ {
		_, err := svc.History(ctx, "MSFT", 60)
		assert.Error(t, err)
	}
	calls := src.calls

	bars, err := svc.History(ctx, "AAPL", 60)
	require.NoError(t, err)
	assert.Len(t, bars, 60)
	assert.Equal(t, calls, src.calls, "open breaker skips the remote source")
}

func TestSessionStatus(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	t.Run("mid session", func(t *testing.T) {
		now := time.Date(2026, 3, 3, 11, 0, 0, 0, loc) // Tuesday
		st := SessionStatus(now, loc)
		assert.True(t, st.Open)
		assert.Equal(t, 16, st.NextClose.Hour())
		assert.Equal(t, time.Wednesday, st.NextOpen.Weekday())
	})

	t.Run("pre market", func(t *testing.T) {
		now := time.Date(2026, 3, 3, 8, 0, 0, 0, loc)
		st := SessionStatus(now, loc)
		assert.False(t, st.Open)
		assert.Equal(t, now.Day(), st.NextOpen.Day())
	})

	t.Run("friday evening rolls to monday", func(t *testing.T) {
		now := time.Date(2026, 3, 6, 18, 0, 0, 0, loc) // Friday
		st := SessionStatus(now, loc)
		assert.False(t, st.Open)
		assert.Equal(t, time.Monday, st.NextOpen.Weekday())
		assert.Equal(t, 9, st.NextOpen.Hour())
		assert.Equal(t, 30, st.NextOpen.Minute())
	})

	t.Run("weekend", func(t *testing.T) {
		now := time.Date(2026, 3, 7, 12, 0, 0, 0, loc) // Saturday
		st := SessionStatus(now, loc)
		assert.False(t, st.Open)
		assert.Equal(t, time.Monday, st.NextOpen.Weekday())
	})
}
