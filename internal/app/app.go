package app

import (
	"context"
	"errors"
	"fmt"

	adcfg "alphadesk/internal/config"
	"alphadesk/internal/engine"
	"alphadesk/internal/logger"
	"alphadesk/internal/market/csvstore"
	"alphadesk/internal/scheduler"
	apihttp "alphadesk/internal/transport/http"

	"golang.org/x/sync/errgroup"
)

// App wires config, pipeline engine, scheduler and HTTP surface together.
type App struct {
	cfg      *adcfg.Config
	engine   *engine.Engine
	sched    *scheduler.DailyScheduler
	server   *apihttp.Server
	fallback *csvstore.Store
	Summary  *StartupSummary
}

// NewApp builds the application from config without starting anything.
func NewApp(cfg *adcfg.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return buildAppWithWire(context.Background(), cfg)
}

// Run starts the HTTP server and the daily scheduler, blocking until the
// context ends or either component fails.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	if a.Summary != nil {
		a.Summary.Print()
	}

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		if err := a.server.Start(ctx); err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		if a.cfg.Schedule.RunImmediately {
			a.runCycle(ctx)
		}
		a.sched.Start(func() { a.runCycle(ctx) })
		return nil
	})

	err := group.Wait()
	a.close()
	return err
}

// Engine exposes the pipeline engine (for testing and replay harnesses).
func (a *App) Engine() *engine.Engine {
	if a == nil {
		return nil
	}
	return a.engine
}

func (a *App) runCycle(ctx context.Context) {
	result, err := a.engine.RunCycle(ctx)
	switch {
	case err == nil:
		logger.Infof("cycle %s completed: %d signals, %d trades, %d skips",
			result.TraceID, len(result.Signals), len(result.Trades), len(result.Skips))
	case errors.Is(err, engine.ErrRunInProgress):
		logger.Warnf("cycle trigger ignored, previous run still in flight")
	default:
		logger.Errorf("cycle failed: %v", err)
	}
}

func (a *App) close() {
	if a.fallback != nil {
		if err := a.fallback.Close(); err != nil {
			logger.Warnf("closing history store: %v", err)
		}
	}
}
