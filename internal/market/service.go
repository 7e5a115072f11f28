package market

import (
	"context"
	"strings"
	"time"

	"alphadesk/internal/logger"
	"alphadesk/internal/pkg/circuit"
)

// Fallback is the optional local store consulted when the remote source
// fails or comes back empty for a symbol.
type Fallback interface {
	Load(symbol string) ([]Bar, error)
	Save(symbol string, bars []Bar) error
}

// Service composes the remote source with the local fallback store and
// exposes the universe-level fetch the daily cycle runs first.
type Service struct {
	source      Source
	fallback    Fallback
	saveFetched bool
	breaker     *circuit.Breaker
}

func NewService(source Source, fallback Fallback, saveFetched bool) *Service {
	return &Service{
		source:      source,
		fallback:    fallback,
		saveFetched: saveFetched,
		breaker:     circuit.NewBreaker("market-data", 5, 2*time.Minute),
	}
}

// History fetches trailing bars for one symbol, falling back to the local
// CSV store when the remote path yields nothing.
func (s *Service) History(ctx context.Context, symbol string, lookback int) ([]Bar, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, ErrNoData
	}
	var remoteErr error
	if s.source != nil && s.breaker.Allow() {
		bars, err := s.source.GetHistory(ctx, symbol, lookback)
		if err == nil && len(bars) > 0 {
			s.breaker.RecordSuccess()
			if s.saveFetched && s.fallback != nil {
				if serr := s.fallback.Save(symbol, bars); serr != nil {
					logger.Warnf("market: saving %s history locally failed: %v", symbol, serr)
				}
			}
			return bars, nil
		}
		if err != nil && err != ErrNoData {
			s.breaker.RecordFailure()
		}
		remoteErr = err
	}
	if s.fallback != nil {
		if bars, err := s.fallback.Load(symbol); err == nil && len(bars) > 0 {
			logger.Infof("market: %s served from local store (%d bars)", symbol, len(bars))
			return tail(bars, lookback), nil
		}
	}
	if remoteErr != nil {
		return nil, remoteErr
	}
	return nil, ErrNoData
}

// FetchUniverse pulls history for every tracked symbol. Per-symbol failures
// are tolerated and simply absent from the result; only a total outage (at
// least one hard error and zero successful symbols) is reported as
// ErrFetchOutage.
func (s *Service) FetchUniverse(ctx context.Context, symbols []string, lookback int) (map[string][]Bar, error) {
	data := make(map[string][]Bar, len(symbols))
	var lastErr error
	for _, symbol := range symbols {
		bars, err := s.History(ctx, symbol, lookback)
		if err != nil {
			if err != ErrNoData {
				lastErr = err
			}
			logger.Warnf("market: fetch %s failed: %v", symbol, err)
			continue
		}
		data[strings.ToUpper(strings.TrimSpace(symbol))] = bars
	}
	if len(data) == 0 && lastErr != nil {
		return nil, ErrFetchOutage
	}
	return data, nil
}

// LatestPrice proxies the source; zero with ErrNoData when unavailable.
func (s *Service) LatestPrice(ctx context.Context, symbol string) (float64, error) {
	if s.source == nil {
		return 0, ErrNoData
	}
	return s.source.LatestPrice(ctx, symbol)
}

func tail(bars []Bar, n int) []Bar {
	if n <= 0 || len(bars) <= n {
		return bars
	}
	return bars[len(bars)-n:]
}
