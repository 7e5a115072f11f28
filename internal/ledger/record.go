package ledger

import "time"

// TradeRecord is one executed (or simulated) order. Records are append-only:
// once written they are never mutated or deleted.
type TradeRecord struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Timestamp   time.Time `gorm:"index;not null" json:"timestamp"`
	Symbol      string    `gorm:"size:16;index;not null" json:"symbol"`
	Action      string    `gorm:"size:8;not null" json:"action"`
	Quantity    int64     `gorm:"not null" json:"quantity"`
	Price       float64   `json:"price"`
	RealizedPnL float64   `json:"realized_pnl"`
	OrderID     string    `gorm:"size:64" json:"order_id"`
	Status      string    `gorm:"size:32" json:"status"`
	Group       string    `gorm:"size:32;index" json:"group"`
	Simulated   bool      `json:"simulated"`
}

func (TradeRecord) TableName() string { return "trade_records" }

// Summary aggregates the ledger. Win rate, average pnl and profit factor are
// computed over pnl-bearing records only (realized pnl != 0).
type Summary struct {
	TotalTrades  int     `json:"total_trades"`
	BuyCount     int     `json:"buy_count"`
	SellCount    int     `json:"sell_count"`
	WinRate      float64 `json:"win_rate"`
	AvgPnL       float64 `json:"avg_pnl"`
	ProfitFactor float64 `json:"profit_factor"`
}
