package market

import (
	"context"
	"errors"
)

// ErrNoData marks a fetch that completed but returned no usable bars for one
// instrument. Callers treat it as an instrument-level skip, never as a fatal
// condition.
var ErrNoData = errors.New("market: no data")

// ErrFetchOutage marks the whole fetch layer as unavailable. A cycle that
// hits it aborts without touching prior state; the process stays alive for
// the next trigger.
var ErrFetchOutage = errors.New("market: fetch layer unavailable")

// Source retrieves daily history and latest prices for equities.
type Source interface {
	// GetHistory returns up to lookback trailing daily bars ordered
	// ascending by date. An empty result without error means the symbol
	// has no data right now.
	GetHistory(ctx context.Context, symbol string, lookback int) ([]Bar, error)

	// LatestPrice returns the most recent traded/close price.
	LatestPrice(ctx context.Context, symbol string) (float64, error)
}
