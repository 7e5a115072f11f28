// Package csvstore keeps daily OHLCV history as CSV files on disk, used as
// the fallback when the remote market source is unavailable. Files are named
// either SYMBOL.csv or SYMBOL_YYYYMMDD.csv; for dated files the lexically
// latest one wins.
package csvstore

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"alphadesk/internal/logger"
	"alphadesk/internal/market"
)

var datedName = regexp.MustCompile(`^([A-Z0-9.\-]+)_(\d{8})\.csv$`)
var plainName = regexp.MustCompile(`^([A-Z0-9.\-]+)\.csv$`)

// Store indexes the CSV files in one directory and re-indexes on filesystem
// changes so that files dropped in while the service runs are picked up.
type Store struct {
	dir     string
	nowFn   func() time.Time
	watcher *fsnotify.Watcher
	done    chan struct{}

	mu    sync.RWMutex
	index map[string]string // symbol -> file path
}

func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("csvstore: create %s: %w", dir, err)
	}
	s := &Store{
		dir:   dir,
		nowFn: time.Now,
		done:  make(chan struct{}),
		index: make(map[string]string),
	}
	s.reindex()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Warnf("csvstore: watcher unavailable, directory changes need a restart: %v", err)
		return s, nil
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		logger.Warnf("csvstore: watching %s failed: %v", dir, err)
		return s, nil
	}
	s.watcher = watcher
	go s.watch()
	return s, nil
}

func (s *Store) watch() {
	for {
		select {
		case <-s.done:
			return
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
				s.reindex()
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			logger.Warnf("csvstore: watch error: %v", err)
		}
	}
}

func (s *Store) reindex() {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		logger.Warnf("csvstore: reading %s failed: %v", s.dir, err)
		return
	}

	dated := make(map[string]string)  // symbol -> latest dated file name
	plain := make(map[string]string)  // symbol -> plain file name
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if m := datedName.FindStringSubmatch(name); m != nil {
			if prev, ok := dated[m[1]]; !ok || name > prev {
				dated[m[1]] = name
			}
			continue
		}
		if m := plainName.FindStringSubmatch(name); m != nil {
			plain[m[1]] = name
		}
	}

	index := make(map[string]string, len(dated)+len(plain))
	for symbol, name := range plain {
		index[symbol] = filepath.Join(s.dir, name)
	}
	for symbol, name := range dated {
		index[symbol] = filepath.Join(s.dir, name)
	}

	s.mu.Lock()
	s.index = index
	s.mu.Unlock()
}

// Symbols returns the symbols currently indexed, sorted.
func (s *Store) Symbols() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	symbols := make([]string, 0, len(s.index))
	for symbol := range s.index {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	return symbols
}

// Load reads the bars for symbol in ascending date order.
func (s *Store) Load(symbol string) ([]market.Bar, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	s.mu.RLock()
	path, ok := s.index[symbol]
	s.mu.RUnlock()
	if !ok {
		return nil, market.ErrNoData
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("csvstore: open %s: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("csvstore: parse %s: %w", path, err)
	}
	if len(rows) < 2 {
		return nil, market.ErrNoData
	}

	cols := columnIndex(rows[0])
	bars := make([]market.Bar, 0, len(rows)-1)
	for _, row := range rows[1:] {
		bar, ok := parseRow(row, cols)
		if !ok {
			continue
		}
		bars = append(bars, bar)
	}
	if len(bars) == 0 {
		return nil, market.ErrNoData
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
	return bars, nil
}

// Save writes the bars as a dated file for symbol and re-indexes.
func (s *Store) Save(symbol string, bars []market.Bar) error {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" || len(bars) == 0 {
		return nil
	}
	path := filepath.Join(s.dir, fmt.Sprintf("%s_%s.csv", symbol, s.nowFn().Format("20060102")))

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("csvstore: create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"Date", "Open", "High", "Low", "Close", "Volume"}); err != nil {
		return err
	}
	for _, bar := range bars {
		record := []string{
			bar.Date.Format("2006-01-02"),
			strconv.FormatFloat(bar.Open, 'f', -1, 64),
			strconv.FormatFloat(bar.High, 'f', -1, 64),
			strconv.FormatFloat(bar.Low, 'f', -1, 64),
			strconv.FormatFloat(bar.Close, 'f', -1, 64),
			strconv.FormatFloat(bar.Volume, 'f', -1, 64),
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("csvstore: write %s: %w", path, err)
	}

	s.mu.Lock()
	s.index[symbol] = path
	s.mu.Unlock()
	return nil
}

func (s *Store) Close() error {
	close(s.done)
	if s.watcher != nil {
		return s.watcher.Close()
	}
	return nil
}

func columnIndex(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	return cols
}

func parseRow(row []string, cols map[string]int) (market.Bar, bool) {
	field := func(name string) (string, bool) {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return "", false
		}
		return strings.TrimSpace(row[i]), true
	}
	num := func(name string) (float64, bool) {
		raw, ok := field(name)
		if !ok || raw == "" {
			return 0, false
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return 0, false
		}
		return v, true
	}

	raw, ok := field("date")
	if !ok {
		return market.Bar{}, false
	}
	date, err := parseDate(raw)
	if err != nil {
		return market.Bar{}, false
	}

	var bar market.Bar
	bar.Date = date
	if bar.Open, ok = num("open"); !ok {
		return market.Bar{}, false
	}
	if bar.High, ok = num("high"); !ok {
		return market.Bar{}, false
	}
	if bar.Low, ok = num("low"); !ok {
		return market.Bar{}, false
	}
	if bar.Close, ok = num("close"); !ok {
		return market.Bar{}, false
	}
	if bar.Volume, ok = num("volume"); !ok {
		return market.Bar{}, false
	}
	return bar, true
}

func parseDate(raw string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02", time.RFC3339, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("csvstore: unrecognized date %q", raw)
}
