package yahoo

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"
	"github.com/piquette/finance-go/quote"

	"alphadesk/internal/market"
)

// extraCalendarDays pads the requested lookback so weekends and exchange
// holidays still leave enough trading days in the window.
const extraCalendarDays = 10

// Source fetches daily OHLCV bars from Yahoo Finance.
type Source struct {
	nowFn func() time.Time
}

func NewSource() *Source {
	return &Source{nowFn: time.Now}
}

// GetHistory returns up to lookback daily bars in ascending date order.
func (s *Source) GetHistory(ctx context.Context, symbol string, lookback int) ([]market.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if lookback <= 0 {
		lookback = 1
	}

	end := s.nowFn()
	start := end.AddDate(0, 0, -(lookback + extraCalendarDays))

	iter := chart.Get(&chart.Params{
		Symbol:   symbol,
		Start:    datetime.New(&start),
		End:      datetime.New(&end),
		Interval: datetime.OneDay,
	})

	var bars []market.Bar
	for iter.Next() {
		b := iter.Bar()
		bars = append(bars, market.Bar{
			Date:   time.Unix(int64(b.Timestamp), 0).UTC(),
			Open:   b.Open.InexactFloat64(),
			High:   b.High.InexactFloat64(),
			Low:    b.Low.InexactFloat64(),
			Close:  b.Close.InexactFloat64(),
			Volume: float64(b.Volume),
		})
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("yahoo: history for %s: %w", symbol, err)
	}
	if len(bars) == 0 {
		return nil, market.ErrNoData
	}

	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
	if len(bars) > lookback {
		bars = bars[len(bars)-lookback:]
	}
	return bars, nil
}

// LatestPrice returns the regular-market price for symbol.
func (s *Source) LatestPrice(ctx context.Context, symbol string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	q, err := quote.Get(symbol)
	if err != nil {
		return 0, fmt.Errorf("yahoo: quote for %s: %w", symbol, err)
	}
	if q == nil || q.RegularMarketPrice <= 0 {
		return 0, market.ErrNoData
	}
	return q.RegularMarketPrice, nil
}
