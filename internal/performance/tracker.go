// Package performance maintains the portfolio equity curve and derives
// risk/return metrics from it. Metrics are always recomputed from the full
// stored history so they stay consistent after arbitrary replay.
package performance

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"alphadesk/internal/logger"
)

const tradingDaysPerYear = 252

// EquityPoint is one observation of total portfolio value.
type EquityPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// Metrics are derived from the full equity history.
type Metrics struct {
	TotalReturnPct float64 `json:"total_return_pct"`
	SharpeRatio    float64 `json:"sharpe_ratio"`
	MaxDrawdownPct float64 `json:"max_drawdown_pct"`
	VolatilityPct  float64 `json:"volatility_pct"`
	PointCount     int     `json:"point_count"`
}

// Tracker owns the append-only equity sequence. Single writer.
type Tracker struct {
	mu     sync.RWMutex
	db     *sql.DB
	points []EquityPoint
	nowFn  func() time.Time
}

// NewTracker opens the performance database and loads the stored curve.
func NewTracker(path string) (*Tracker, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("performance: database path required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("performance: open database: %w", err)
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(2)
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS equity_points (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ts INTEGER NOT NULL,
		value REAL NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("performance: ensure schema: %w", err)
	}

	t := &Tracker{db: db, nowFn: time.Now}
	rows, err := db.Query(`SELECT ts, value FROM equity_points ORDER BY id ASC`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("performance: load history: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var ts int64
		var value float64
		if err := rows.Scan(&ts, &value); err != nil {
			db.Close()
			return nil, err
		}
		t.points = append(t.points, EquityPoint{Timestamp: time.UnixMilli(ts), Value: value})
	}
	if err := rows.Err(); err != nil {
		db.Close()
		return nil, err
	}
	logger.Infof("performance history loaded: %d equity points", len(t.points))
	return t, nil
}

// newMemoryTracker builds a tracker with no database; used by tests.
func newMemoryTracker(nowFn func() time.Time) *Tracker {
	return &Tracker{nowFn: nowFn}
}

// Update appends one equity observation. A persistence failure keeps the
// in-memory point and is only logged.
func (t *Tracker) Update(ctx context.Context, value float64) {
	point := EquityPoint{Timestamp: t.nowFn(), Value: value}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.db != nil {
		if _, err := t.db.ExecContext(ctx,
			`INSERT INTO equity_points (ts, value) VALUES (?, ?)`,
			point.Timestamp.UnixMilli(), point.Value); err != nil {
			logger.Warnf("performance: persisting equity point failed, kept in memory: %v", err)
		}
	}
	t.points = append(t.points, point)
}

// Compute derives the metrics from the full history. Fewer than two points
// yields all-zero values.
func (t *Tracker) Compute() Metrics {
	t.mu.RLock()
	defer t.mu.RUnlock()

	m := Metrics{PointCount: len(t.points)}
	if len(t.points) < 2 {
		return m
	}

	first, last := t.points[0].Value, t.points[len(t.points)-1].Value
	if first != 0 {
		m.TotalReturnPct = (last - first) / first * 100
	}

	returns := t.dailyReturnsLocked()
	mean, std := meanStd(returns)
	if std != 0 {
		m.SharpeRatio = mean / std * math.Sqrt(tradingDaysPerYear)
	}
	m.VolatilityPct = std * math.Sqrt(tradingDaysPerYear) * 100

	runningMax := t.points[0].Value
	for _, p := range t.points {
		if p.Value > runningMax {
			runningMax = p.Value
		}
		if runningMax != 0 {
			dd := (p.Value - runningMax) / runningMax * 100
			if dd < m.MaxDrawdownPct {
				m.MaxDrawdownPct = dd
			}
		}
	}
	return m
}

// EquityCurve returns points observed within the trailing number of days.
func (t *Tracker) EquityCurve(days int) []EquityPoint {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if days <= 0 {
		return append([]EquityPoint(nil), t.points...)
	}
	cutoff := t.nowFn().AddDate(0, 0, -days)
	var out []EquityPoint
	for _, p := range t.points {
		if !p.Timestamp.Before(cutoff) {
			out = append(out, p)
		}
	}
	return out
}

// DailyPnL is the change between the last two equity points.
func (t *Tracker) DailyPnL() (pnl, pct float64) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.points) < 2 {
		return 0, 0
	}
	prev := t.points[len(t.points)-2].Value
	last := t.points[len(t.points)-1].Value
	pnl = last - prev
	if prev != 0 {
		pct = pnl / prev * 100
	}
	return pnl, pct
}

// Latest returns the most recent equity point.
func (t *Tracker) Latest() (EquityPoint, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.points) == 0 {
		return EquityPoint{}, false
	}
	return t.points[len(t.points)-1], true
}

func (t *Tracker) dailyReturnsLocked() []float64 {
	if len(t.points) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(t.points)-1)
	for i := 1; i < len(t.points); i++ {
		prev := t.points[i-1].Value
		returns = append(returns, (t.points[i].Value-prev)/prev)
	}
	return returns
}

func (t *Tracker) Close() error {
	if t.db == nil {
		return nil
	}
	return t.db.Close()
}

// meanStd returns the mean and sample standard deviation of xs.
func meanStd(xs []float64) (mean, std float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))
	if len(xs) < 2 {
		return mean, 0
	}
	var ss float64
	for _, x := range xs {
		ss += (x - mean) * (x - mean)
	}
	return mean, math.Sqrt(ss / float64(len(xs)-1))
}
