// Package broker defines the account/execution surface the pipeline trades
// through. A nil or unreachable broker switches execution to simulation mode.
package broker

import (
	"context"
	"time"
)

// Side of a market order.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Account is the broker's aggregate account state.
type Account struct {
	Cash        float64 `json:"cash"`
	Equity      float64 `json:"equity"`
	BuyingPower float64 `json:"buying_power"`
	LastEquity  float64 `json:"last_equity"`
}

// Position is one open holding.
type Position struct {
	Symbol           string  `json:"symbol"`
	Quantity         float64 `json:"quantity"`
	AvgEntryPrice    float64 `json:"avg_entry_price"`
	CurrentPrice     float64 `json:"current_price"`
	MarketValue      float64 `json:"market_value"`
	UnrealizedPnL    float64 `json:"unrealized_pnl"`
	UnrealizedPnLPct float64 `json:"unrealized_pnl_pct"`
	Side             string  `json:"side"`
}

// OrderResult is the broker's acknowledgement of a submitted order.
type OrderResult struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// Snapshot is the aggregate portfolio view built from account + positions.
type Snapshot struct {
	Timestamp   time.Time  `json:"timestamp"`
	Cash        float64    `json:"cash"`
	Equity      float64    `json:"equity"`
	BuyingPower float64    `json:"buying_power"`
	DayPnL      float64    `json:"day_pnl"`
	DayPnLPct   float64    `json:"day_pnl_pct"`
	TotalPnL    float64    `json:"total_pnl"`
	TotalPnLPct float64    `json:"total_pnl_pct"`
	Positions   []Position `json:"positions"`
}

// Broker is the trading backend.
type Broker interface {
	// Connected reports whether the session is authenticated and reachable.
	Connected(ctx context.Context) bool
	GetAccount(ctx context.Context) (Account, error)
	GetPositions(ctx context.Context) ([]Position, error)
	// GetPosition returns the holding for symbol; found=false when flat.
	GetPosition(ctx context.Context, symbol string) (Position, bool, error)
	GetLatestPrice(ctx context.Context, symbol string) (float64, error)
	SubmitMarketOrder(ctx context.Context, symbol string, side Side, qty int64) (OrderResult, error)
}

// BuildSnapshot derives the aggregate portfolio view.
func BuildSnapshot(acct Account, positions []Position, now time.Time) Snapshot {
	snap := Snapshot{
		Timestamp:   now,
		Cash:        acct.Cash,
		Equity:      acct.Equity,
		BuyingPower: acct.BuyingPower,
		DayPnL:      acct.Equity - acct.LastEquity,
		Positions:   positions,
	}
	if acct.LastEquity != 0 {
		snap.DayPnLPct = snap.DayPnL / acct.LastEquity * 100
	}
	for _, p := range positions {
		snap.TotalPnL += p.UnrealizedPnL
	}
	if cost := acct.Equity - snap.TotalPnL; cost != 0 {
		snap.TotalPnLPct = snap.TotalPnL / cost * 100
	}
	return snap
}
