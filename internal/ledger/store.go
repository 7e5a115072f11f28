// Package ledger is the append-only trade log. Every record lives in memory
// for the life of the process and is mirrored to SQLite write-through; a
// failed mirror write keeps the in-memory record so the current session
// never loses its own trades.
package ledger

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"alphadesk/internal/logger"
)

// Store owns the trade-record sequence. Single writer: all appends go
// through the orchestrator or the manual-trade handler, serialized here.
type Store struct {
	db *gorm.DB

	mu      sync.RWMutex
	records []TradeRecord
}

// NewStore opens (or creates) the ledger database and loads existing
// records into memory.
func NewStore(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("ledger: database path required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ledger: create %s: %w", dir, err)
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("ledger: open database: %w", err)
	}
	if err := db.AutoMigrate(&TradeRecord{}); err != nil {
		return nil, fmt.Errorf("ledger: migrate: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(2)
	sqlDB.SetMaxIdleConns(2)

	s := &Store{db: db}
	if err := db.Order("id ASC").Find(&s.records).Error; err != nil {
		return nil, fmt.Errorf("ledger: load history: %w", err)
	}
	logger.Infof("ledger loaded %d trade records from %s", len(s.records), path)
	return s, nil
}

// newMemoryStore builds a store with no database; used by tests.
func newMemoryStore() *Store {
	return &Store{}
}

// Append records one trade. The in-memory append always succeeds; a database
// failure is logged and swallowed.
func (s *Store) Append(ctx context.Context, rec TradeRecord) {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
			logger.Warnf("ledger: persisting trade %s %s failed, record kept in memory: %v",
				rec.Action, rec.Symbol, err)
		}
	}
	s.records = append(s.records, rec)
}

// Recent returns the last limit records in insertion order.
func (s *Store) Recent(limit int) []TradeRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 || limit > len(s.records) {
		limit = len(s.records)
	}
	return append([]TradeRecord(nil), s.records[len(s.records)-limit:]...)
}

// BySymbol returns every record for one instrument in insertion order.
func (s *Store) BySymbol(symbol string) []TradeRecord {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []TradeRecord
	for _, rec := range s.records {
		if rec.Symbol == symbol {
			out = append(out, rec)
		}
	}
	return out
}

// ByDateRange returns records with start <= timestamp <= end.
func (s *Store) ByDateRange(start, end time.Time) []TradeRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []TradeRecord
	for _, rec := range s.records {
		if !rec.Timestamp.Before(start) && !rec.Timestamp.After(end) {
			out = append(out, rec)
		}
	}
	return out
}

// Today returns records whose timestamp falls on now's calendar day.
func (s *Store) Today(now time.Time) []TradeRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	y, m, d := now.Date()
	var out []TradeRecord
	for _, rec := range s.records {
		ry, rm, rd := rec.Timestamp.In(now.Location()).Date()
		if ry == y && rm == m && rd == d {
			out = append(out, rec)
		}
	}
	return out
}

// Count returns the total record count.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Summarize aggregates the full ledger.
func (s *Store) Summarize() Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sum := Summary{TotalTrades: len(s.records)}
	var wins, bearing int
	var totalPnL, grossProfit, grossLoss float64
	for _, rec := range s.records {
		switch rec.Action {
		case "BUY":
			sum.BuyCount++
		case "SELL":
			sum.SellCount++
		}
		if rec.RealizedPnL == 0 {
			continue
		}
		bearing++
		totalPnL += rec.RealizedPnL
		if rec.RealizedPnL > 0 {
			wins++
			grossProfit += rec.RealizedPnL
		} else {
			grossLoss += -rec.RealizedPnL
		}
	}
	if bearing == 0 {
		return sum
	}
	sum.WinRate = float64(wins) / float64(bearing)
	sum.AvgPnL = totalPnL / float64(bearing)
	if grossLoss == 0 {
		if grossProfit > 0 {
			sum.ProfitFactor = math.Inf(1)
		}
	} else {
		sum.ProfitFactor = grossProfit / grossLoss
	}
	return sum
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
