// Package report assembles and persists the end-of-cycle daily report.
package report

import (
	"time"

	"alphadesk/internal/broker"
	"alphadesk/internal/decision"
	"alphadesk/internal/indicator"
	"alphadesk/internal/ledger"
	"alphadesk/internal/performance"
)

// Signal is one intent produced during a cycle, executed or not.
type Signal struct {
	Timestamp time.Time            `json:"timestamp"`
	Intent    decision.TradeIntent `json:"intent"`
	Executed  bool                 `json:"executed"`
}

// Skip records why one instrument produced no signal this cycle.
type Skip struct {
	Symbol string `json:"symbol"`
	Group  string `json:"group"`
	Reason string `json:"reason"`
	Detail string `json:"detail,omitempty"`
}

// DailyReport is the persisted outcome of one trading day. One object per
// calendar date; re-running a day replaces it.
type DailyReport struct {
	Date        string                `json:"date"`
	GeneratedAt time.Time             `json:"generated_at"`
	Snapshot    broker.Snapshot       `json:"portfolio"`
	SignalCount int                   `json:"signal_count"`
	TradeCount  int                   `json:"trade_count"`
	Signals     []Signal              `json:"signals"`
	Trades      []ledger.TradeRecord  `json:"trades"`
	Skips       []Skip                `json:"skips,omitempty"`
	Metrics     performance.Metrics   `json:"performance"`
	Indicators  []indicator.Snapshot  `json:"indicators,omitempty"`
}
