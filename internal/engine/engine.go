// Package engine runs the daily trading cycle: fetch history, compute
// features, ask the per-group models for intents, execute, and record the
// outcome. One cycle is a synchronous batch job; failures are isolated at
// the smallest granularity (instrument, then group, then cycle).
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"alphadesk/internal/broker"
	"alphadesk/internal/decision"
	"alphadesk/internal/executor"
	"alphadesk/internal/indicator"
	"alphadesk/internal/ledger"
	"alphadesk/internal/logger"
	"alphadesk/internal/market"
	"alphadesk/internal/notifier"
	"alphadesk/internal/observation"
	"alphadesk/internal/performance"
	"alphadesk/internal/report"
)

// ErrRunInProgress rejects a trigger while another cycle is running.
var ErrRunInProgress = errors.New("engine: run already in progress")

// State of the cycle state machine.
type State string

const (
	StateIdle       State = "idle"
	StateFetching   State = "fetching"
	StateProcessing State = "processing"
	StateAggregate  State = "aggregating"
	StateReporting  State = "reporting"
)

// Skip reasons attached to instruments that produced no signal.
const (
	SkipDataUnavailable     = "data_unavailable"
	SkipInsufficientHistory = "insufficient_history"
	SkipMalformedInput      = "malformed_input"
	SkipModelUnavailable    = "model_unavailable"
	SkipScalerMismatch      = "scaler_mismatch"
	SkipDecisionFailed      = "decision_failed"
	SkipExecutionFailed     = "execution_failed"
)

// simEquity is the portfolio value reported while no broker session exists.
const simEquity = 100000.0

// Config tunes the cycle.
type Config struct {
	Lookback   int
	MinHistory int
}

func (c Config) withDefaults() Config {
	if c.Lookback <= 0 {
		c.Lookback = 60
	}
	if c.MinHistory <= 0 {
		c.MinHistory = 30
	}
	return c
}

// CycleResult is the outcome of one completed run.
type CycleResult struct {
	TraceID    string               `json:"trace_id"`
	StartedAt  time.Time            `json:"started_at"`
	FinishedAt time.Time            `json:"finished_at"`
	Signals    []report.Signal      `json:"signals"`
	Trades     []ledger.TradeRecord `json:"trades"`
	Skips      []report.Skip        `json:"skips"`
	Equity     float64              `json:"equity"`
	ReportDate string               `json:"report_date"`
}

// Engine composes the full pipeline. Scheduled and manual triggers share
// RunCycle; a TryLock keeps at most one cycle in flight.
type Engine struct {
	cfg      Config
	registry *decision.Registry
	market   *market.Service
	exec     *executor.Engine
	broker   broker.Broker
	ledger   *ledger.Store
	perf     *performance.Tracker
	reports  *report.Store
	notify   notifier.TextNotifier
	nowFn    func() time.Time

	runMu sync.Mutex

	mu         sync.RWMutex
	state      State
	lastResult *CycleResult
}

func New(cfg Config, registry *decision.Registry, mkt *market.Service, exec *executor.Engine,
	b broker.Broker, led *ledger.Store, perf *performance.Tracker, reports *report.Store,
	notify notifier.TextNotifier) *Engine {
	return &Engine{
		cfg:      cfg.withDefaults(),
		registry: registry,
		market:   mkt,
		exec:     exec,
		broker:   b,
		ledger:   led,
		perf:     perf,
		reports:  reports,
		notify:   notify,
		nowFn:    time.Now,
		state:    StateIdle,
	}
}

// State returns the current cycle state.
func (e *Engine) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// LastResult returns the most recent completed cycle, if any.
func (e *Engine) LastResult() *CycleResult {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastResult
}

func (e *Engine) setState(s State) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
}

// RunCycle executes one full trading cycle. A second trigger while one is
// in flight returns ErrRunInProgress; a fetch-layer outage aborts the cycle
// with prior state untouched.
func (e *Engine) RunCycle(ctx context.Context) (*CycleResult, error) {
	if !e.runMu.TryLock() {
		return nil, ErrRunInProgress
	}
	defer e.runMu.Unlock()
	defer e.setState(StateIdle)

	result := &CycleResult{
		TraceID:   uuid.NewString(),
		StartedAt: e.nowFn(),
	}
	logger.Infof("cycle %s started", result.TraceID)

	e.setState(StateFetching)
	universe := e.registry.Universe()
	data, err := e.market.FetchUniverse(ctx, universe, e.cfg.Lookback)
	if err != nil {
		logger.Errorf("cycle %s aborted: %v", result.TraceID, err)
		return nil, fmt.Errorf("market data outage: %w", err)
	}
	logger.Infof("cycle %s fetched history for %d/%d instruments",
		result.TraceID, len(data), len(universe))

	e.setState(StateProcessing)
	acct := e.accountState(ctx)
	for _, group := range e.registry.Groups() {
		e.processGroup(ctx, group, data, acct, result)
	}

	e.setState(StateAggregate)
	snapshot := e.portfolioSnapshot(ctx)
	result.Equity = snapshot.Equity
	e.perf.Update(ctx, snapshot.Equity)

	e.setState(StateReporting)
	rep := e.assembleReport(snapshot, data, result)
	result.ReportDate = rep.Date
	if err := e.reports.Save(ctx, rep); err != nil {
		logger.Warnf("cycle %s: persisting daily report failed: %v", result.TraceID, err)
	}
	e.sendSummary(rep)

	result.FinishedAt = e.nowFn()
	e.mu.Lock()
	e.lastResult = result
	e.mu.Unlock()
	logger.Infof("cycle %s finished: %d signals, %d trades, %d skips, equity=%.2f",
		result.TraceID, len(result.Signals), len(result.Trades), len(result.Skips), result.Equity)
	return result, nil
}

func (e *Engine) processGroup(ctx context.Context, group string, data map[string][]market.Bar,
	acct broker.Account, result *CycleResult) {
	tickers := e.registry.Tickers(group)
	if !e.registry.Ready(group) {
		for _, symbol := range tickers {
			result.Skips = append(result.Skips, report.Skip{
				Symbol: symbol, Group: group, Reason: SkipModelUnavailable,
			})
		}
		logger.Warnf("group %s skipped: no model/scaler registered", group)
		return
	}
	scaler, err := e.registry.Scaler(group)
	if err != nil {
		logger.Warnf("group %s skipped: %v", group, err)
		return
	}

	for _, symbol := range tickers {
		skip := e.processInstrument(ctx, group, symbol, data[symbol], scaler, acct, result)
		if skip != nil {
			result.Skips = append(result.Skips, *skip)
			logger.Warnf("%s/%s skipped (%s): %s", group, symbol, skip.Reason, skip.Detail)
		}
	}
}

// processInstrument runs feature extraction, decision and execution for a
// single instrument. A non-nil return is the skip entry for this cycle.
func (e *Engine) processInstrument(ctx context.Context, group, symbol string, bars []market.Bar,
	scaler *observation.Scaler, acct broker.Account, result *CycleResult) *report.Skip {
	if len(bars) == 0 {
		return &report.Skip{Symbol: symbol, Group: group, Reason: SkipDataUnavailable}
	}
	if len(bars) < e.cfg.MinHistory {
		return &report.Skip{
			Symbol: symbol, Group: group, Reason: SkipInsufficientHistory,
			Detail: fmt.Sprintf("%d bars, need %d", len(bars), e.cfg.MinHistory),
		}
	}

	row, err := indicator.Latest(bars)
	if err != nil {
		return &report.Skip{Symbol: symbol, Group: group, Reason: SkipMalformedInput, Detail: err.Error()}
	}

	vec, err := scaler.Transform(observation.Build(row))
	if err != nil {
		return &report.Skip{Symbol: symbol, Group: group, Reason: SkipScalerMismatch, Detail: err.Error()}
	}

	intent, err := e.registry.Decide(group, symbol, vec)
	if err != nil {
		reason := SkipDecisionFailed
		if errors.Is(err, decision.ErrModelUnavailable) {
			reason = SkipModelUnavailable
		}
		return &report.Skip{Symbol: symbol, Group: group, Reason: reason, Detail: err.Error()}
	}

	signal := report.Signal{Timestamp: e.nowFn(), Intent: intent}
	rec, err := e.exec.Execute(ctx, intent, acct)
	if err != nil {
		// the intent still counts as a signal
		result.Signals = append(result.Signals, signal)
		return &report.Skip{Symbol: symbol, Group: group, Reason: SkipExecutionFailed, Detail: err.Error()}
	}
	if rec != nil {
		e.ledger.Append(ctx, *rec)
		result.Trades = append(result.Trades, *rec)
		signal.Executed = true
	}
	result.Signals = append(result.Signals, signal)
	return nil
}

func (e *Engine) accountState(ctx context.Context) broker.Account {
	if !e.exec.Live() {
		return broker.Account{Cash: simEquity, Equity: simEquity, BuyingPower: simEquity, LastEquity: simEquity}
	}
	acct, err := e.broker.GetAccount(ctx)
	if err != nil {
		logger.Warnf("account state unavailable, buys will size to zero: %v", err)
		return broker.Account{}
	}
	return acct
}

// portfolioSnapshot reads the aggregate account view, synthesizing a flat
// placeholder portfolio in simulation mode.
func (e *Engine) portfolioSnapshot(ctx context.Context) broker.Snapshot {
	if !e.exec.Live() {
		return broker.BuildSnapshot(broker.Account{
			Cash: simEquity, Equity: simEquity, BuyingPower: simEquity, LastEquity: simEquity,
		}, nil, e.nowFn())
	}
	acct, err := e.broker.GetAccount(ctx)
	if err != nil {
		logger.Warnf("portfolio snapshot: account read failed: %v", err)
		return broker.Snapshot{Timestamp: e.nowFn()}
	}
	positions, err := e.broker.GetPositions(ctx)
	if err != nil {
		logger.Warnf("portfolio snapshot: positions read failed: %v", err)
	}
	return broker.BuildSnapshot(acct, positions, e.nowFn())
}

func (e *Engine) assembleReport(snapshot broker.Snapshot, data map[string][]market.Bar,
	result *CycleResult) report.DailyReport {
	rep := report.DailyReport{
		Date:        e.nowFn().Format("2006-01-02"),
		GeneratedAt: e.nowFn(),
		Snapshot:    snapshot,
		SignalCount: len(result.Signals),
		TradeCount:  len(result.Trades),
		Signals:     result.Signals,
		Trades:      result.Trades,
		Skips:       result.Skips,
		Metrics:     e.perf.Compute(),
	}
	for _, signal := range result.Signals {
		symbol := signal.Intent.Symbol
		if bars, ok := data[symbol]; ok {
			rep.Indicators = append(rep.Indicators, indicator.ComputeSnapshot(symbol, bars))
		}
	}
	return rep
}

// sendSummary notifies best-effort; a delivery failure never fails the run.
func (e *Engine) sendSummary(rep report.DailyReport) {
	if e.notify == nil {
		return
	}
	var b strings.Builder
	fmt.Fprintf(&b, "*Daily Report %s*\n", rep.Date)
	fmt.Fprintf(&b, "Equity: %.2f (day %.2f%%)\n", rep.Snapshot.Equity, rep.Snapshot.DayPnLPct)
	fmt.Fprintf(&b, "Signals: %d, Trades: %d, Skips: %d\n", rep.SignalCount, rep.TradeCount, len(rep.Skips))
	for _, trade := range rep.Trades {
		tag := ""
		if trade.Simulated {
			tag = " (sim)"
		}
		fmt.Fprintf(&b, "%s %s x%d @ %.2f%s\n", trade.Action, trade.Symbol, trade.Quantity, trade.Price, tag)
	}
	if err := e.notify.SendText(b.String()); err != nil {
		logger.Warnf("report notification failed: %v", err)
	}
}

// ManualTrade bypasses the decision engine and executes an explicit order,
// recording it in the ledger on success.
func (e *Engine) ManualTrade(ctx context.Context, symbol, action string, qty int64) (*ledger.TradeRecord, error) {
	rec, err := e.exec.ExecuteManual(ctx, symbol, action, qty)
	if err != nil {
		return nil, err
	}
	e.ledger.Append(ctx, *rec)
	return rec, nil
}

// Portfolio exposes the aggregate snapshot for the control surface.
func (e *Engine) Portfolio(ctx context.Context) broker.Snapshot {
	return e.portfolioSnapshot(ctx)
}

// Positions lists open holdings; empty in simulation mode.
func (e *Engine) Positions(ctx context.Context) ([]broker.Position, error) {
	if !e.exec.Live() {
		return nil, nil
	}
	return e.broker.GetPositions(ctx)
}
