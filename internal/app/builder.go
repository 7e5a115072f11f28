package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"alphadesk/internal/broker"
	"alphadesk/internal/broker/alpaca"
	adcfg "alphadesk/internal/config"
	"alphadesk/internal/decision"
	"alphadesk/internal/engine"
	"alphadesk/internal/executor"
	"alphadesk/internal/ledger"
	"alphadesk/internal/logger"
	"alphadesk/internal/market"
	"alphadesk/internal/market/csvstore"
	"alphadesk/internal/market/yahoo"
	"alphadesk/internal/notifier"
	"alphadesk/internal/performance"
	"alphadesk/internal/report"
	"alphadesk/internal/scheduler"
	apihttp "alphadesk/internal/transport/http"
)

type AppBuilder struct {
	cfg *adcfg.Config

	registryFn func(string) (*decision.Registry, error)
	brokerFn   func(adcfg.BrokerConfig) broker.Broker
	sourceFn   func() market.Source
	notifierFn func(adcfg.NotifyConfig) notifier.TextNotifier
}

type AppBuilderOption func(*AppBuilder)

func NewAppBuilder(cfg *adcfg.Config, opts ...AppBuilderOption) *AppBuilder {
	b := &AppBuilder{
		cfg:        cfg,
		registryFn: decision.NewRegistry,
		brokerFn:   buildBroker,
		sourceFn:   func() market.Source { return yahoo.NewSource() },
		notifierFn: buildNotifier,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

func (b *AppBuilder) Build(ctx context.Context) (*App, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if b.cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	cfg := b.cfg
	logger.SetLevel(cfg.App.LogLevel)
	loc := cfg.Location()

	registry, err := b.registryFn(cfg.Models.Manifest)
	if err != nil {
		return nil, fmt.Errorf("loading model manifest failed: %w", err)
	}

	fallback, err := buildFallbackStore(cfg.Data.Dir)
	if err != nil {
		return nil, fmt.Errorf("initializing history store failed: %w", err)
	}
	mkt := market.NewService(b.sourceFn(), fallback, cfg.Data.SaveFetched)

	tradeStore, err := buildStore(cfg.Store.TradesPath, ledger.NewStore)
	if err != nil {
		return nil, fmt.Errorf("initializing trade ledger failed: %w", err)
	}
	perf, err := buildStore(cfg.Store.PerformancePath, performance.NewTracker)
	if err != nil {
		return nil, fmt.Errorf("initializing performance tracker failed: %w", err)
	}
	reports, err := buildStore(cfg.Store.ReportsPath, report.NewStore)
	if err != nil {
		return nil, fmt.Errorf("initializing report store failed: %w", err)
	}

	brk := b.brokerFn(cfg.Broker)
	exec := executor.NewEngine(ctx, brk)
	textNotifier := b.notifierFn(cfg.Notify)

	eng := engine.New(engine.Config{
		Lookback:   cfg.Data.Lookback,
		MinHistory: cfg.Data.MinHistory,
	}, registry, mkt, exec, brk, tradeStore, perf, reports, textNotifier)

	sched := scheduler.NewDailyScheduler(ctx, cfg.Schedule.Hour, cfg.Schedule.Minute, loc)

	server, err := apihttp.NewServer(apihttp.ServerConfig{
		Addr:     cfg.Server.Addr,
		Engine:   eng,
		Registry: registry,
		Ledger:   tradeStore,
		Perf:     perf,
		Reports:  reports,
		Location: loc,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing http server failed: %w", err)
	}

	return &App{
		cfg:      cfg,
		engine:   eng,
		sched:    sched,
		server:   server,
		fallback: fallback,
		Summary: &StartupSummary{
			Env:       cfg.App.Env,
			Addr:      server.Addr(),
			Schedule:  fmt.Sprintf("%02d:%02d %s (weekdays)", cfg.Schedule.Hour, cfg.Schedule.Minute, cfg.Schedule.Timezone),
			Live:      cfg.Broker.Configured(),
			Groups:    registry.Info(),
			Universe:  registry.Universe(),
			Lookback:  cfg.Data.Lookback,
			DataDir:   cfg.Data.Dir,
			Telegram:  cfg.Notify.Telegram.Enabled,
			Immediate: cfg.Schedule.RunImmediately,
		},
	}, nil
}

func buildBroker(cfg adcfg.BrokerConfig) broker.Broker {
	if !cfg.Configured() {
		logger.Infof("broker credentials absent, running in simulation mode")
		return nil
	}
	return alpaca.NewClient(cfg.APIKey, cfg.APISecret, cfg.BaseURL)
}

func buildNotifier(cfg adcfg.NotifyConfig) notifier.TextNotifier {
	if !cfg.Telegram.Enabled {
		return nil
	}
	return notifier.NewTelegram(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
}

func buildFallbackStore(dir string) (*csvstore.Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return csvstore.NewStore(dir)
}

// buildStore creates the parent directory before opening a sqlite-backed store.
func buildStore[T any](path string, open func(string) (T, error)) (T, error) {
	var zero T
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return zero, err
		}
	}
	return open(path)
}

func WithRegistry(fn func(string) (*decision.Registry, error)) AppBuilderOption {
	return func(b *AppBuilder) {
		if fn != nil {
			b.registryFn = fn
		}
	}
}

func WithBroker(fn func(adcfg.BrokerConfig) broker.Broker) AppBuilderOption {
	return func(b *AppBuilder) {
		if fn != nil {
			b.brokerFn = fn
		}
	}
}

func WithMarketSource(fn func() market.Source) AppBuilderOption {
	return func(b *AppBuilder) {
		if fn != nil {
			b.sourceFn = fn
		}
	}
}

func WithNotifier(fn func(adcfg.NotifyConfig) notifier.TextNotifier) AppBuilderOption {
	return func(b *AppBuilder) {
		if fn != nil {
			b.notifierFn = fn
		}
	}
}
