// Package executor turns trade intents into sized market orders. When no
// broker session is available it degrades to simulation mode, synthesizing
// deterministic fills with no external side effect.
package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"alphadesk/internal/broker"
	"alphadesk/internal/decision"
	"alphadesk/internal/ledger"
	"alphadesk/internal/logger"
)

// ErrExecutionFailed covers broker rejections and price-lookup failures. It
// is scoped to the single instrument being processed.
var ErrExecutionFailed = errors.New("executor: order execution failed")

const (
	// simPrice stands in for the fill price when no market session exists.
	simPrice = 100.0
	// simBaseQty is the notional share count simulated fills are sized from.
	simBaseQty = 100
)

// Engine sizes and submits orders. broker may be nil (pure simulation).
type Engine struct {
	broker broker.Broker
	live   bool
	nowFn  func() time.Time
}

// NewEngine probes the broker once; an unreachable or absent broker pins the
// engine to simulation mode for its lifetime.
func NewEngine(ctx context.Context, b broker.Broker) *Engine {
	live := b != nil && b.Connected(ctx)
	if !live {
		logger.Warnf("executor: no broker session, running in simulation mode")
	}
	return &Engine{broker: b, live: live, nowFn: time.Now}
}

// Live reports whether orders reach a real broker.
func (e *Engine) Live() bool { return e.live }

// Execute converts an intent into at most one market order.
// HOLD and sub-share quantities return (nil, nil): nothing happened.
func (e *Engine) Execute(ctx context.Context, intent decision.TradeIntent, acct broker.Account) (*ledger.TradeRecord, error) {
	switch intent.Action {
	case decision.ActionHold:
		return nil, nil
	case decision.ActionBuy, decision.ActionSell:
	default:
		return nil, fmt.Errorf("%w: unknown action %q", ErrExecutionFailed, intent.Action)
	}

	if !e.live {
		return e.simulate(intent), nil
	}
	if intent.Action == decision.ActionBuy {
		return e.buy(ctx, intent, acct)
	}
	return e.sell(ctx, intent)
}

func (e *Engine) buy(ctx context.Context, intent decision.TradeIntent, acct broker.Account) (*ledger.TradeRecord, error) {
	price, err := e.broker.GetLatestPrice(ctx, intent.Symbol)
	if err != nil {
		return nil, fmt.Errorf("%w: price lookup for %s: %v", ErrExecutionFailed, intent.Symbol, err)
	}
	if price <= 0 {
		return nil, fmt.Errorf("%w: non-positive price for %s", ErrExecutionFailed, intent.Symbol)
	}

	qty := decimal.NewFromFloat(acct.Equity).
		Mul(decimal.NewFromFloat(intent.Size)).
		Div(decimal.NewFromFloat(price)).
		IntPart()
	if qty < 1 {
		logger.Debugf("executor: %s buy sized to zero (equity=%.2f size=%.3f price=%.2f)",
			intent.Symbol, acct.Equity, intent.Size, price)
		return nil, nil
	}

	result, err := e.broker.SubmitMarketOrder(ctx, intent.Symbol, broker.SideBuy, qty)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExecutionFailed, err)
	}
	return e.record(intent, "BUY", qty, price, 0, result), nil
}

func (e *Engine) sell(ctx context.Context, intent decision.TradeIntent) (*ledger.TradeRecord, error) {
	pos, found, err := e.broker.GetPosition(ctx, intent.Symbol)
	if err != nil {
		return nil, fmt.Errorf("%w: position lookup for %s: %v", ErrExecutionFailed, intent.Symbol, err)
	}
	if !found || pos.Quantity <= 0 {
		return nil, nil
	}

	qty := decimal.NewFromFloat(pos.Quantity).
		Mul(decimal.NewFromFloat(intent.Size)).
		IntPart()
	if qty < 1 {
		return nil, nil
	}

	price, err := e.broker.GetLatestPrice(ctx, intent.Symbol)
	if err != nil || price <= 0 {
		price = pos.CurrentPrice
	}

	result, err := e.broker.SubmitMarketOrder(ctx, intent.Symbol, broker.SideSell, qty)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExecutionFailed, err)
	}
	realized := (price - pos.AvgEntryPrice) * float64(qty)
	return e.record(intent, "SELL", qty, price, realized, result), nil
}

// simulate synthesizes a deterministic fill at the placeholder price.
func (e *Engine) simulate(intent decision.TradeIntent) *ledger.TradeRecord {
	qty := decimal.NewFromInt(simBaseQty).
		Mul(decimal.NewFromFloat(intent.Size)).
		IntPart()
	if qty < 1 {
		return nil
	}
	return &ledger.TradeRecord{
		Timestamp: e.nowFn(),
		Symbol:    intent.Symbol,
		Action:    string(intent.Action),
		Quantity:  qty,
		Price:     simPrice,
		OrderID:   "sim-" + uuid.NewString(),
		Status:    "filled",
		Group:     intent.Group,
		Simulated: true,
	}
}

func (e *Engine) record(intent decision.TradeIntent, action string, qty int64, price, realized float64, result broker.OrderResult) *ledger.TradeRecord {
	return &ledger.TradeRecord{
		Timestamp:   e.nowFn(),
		Symbol:      intent.Symbol,
		Action:      action,
		Quantity:    qty,
		Price:       price,
		RealizedPnL: realized,
		OrderID:     result.ID,
		Status:      result.Status,
		Group:       intent.Group,
	}
}

// ExecuteManual bypasses the decision engine: an explicit symbol, action and
// share count from the control surface.
func (e *Engine) ExecuteManual(ctx context.Context, symbol, action string, qty int64) (*ledger.TradeRecord, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	action = strings.ToUpper(strings.TrimSpace(action))
	if symbol == "" || qty < 1 {
		return nil, fmt.Errorf("%w: symbol and positive quantity required", ErrExecutionFailed)
	}
	var side broker.Side
	switch action {
	case "BUY":
		side = broker.SideBuy
	case "SELL":
		side = broker.SideSell
	default:
		return nil, fmt.Errorf("%w: unknown action %q", ErrExecutionFailed, action)
	}

	if !e.live {
		return &ledger.TradeRecord{
			Timestamp: e.nowFn(),
			Symbol:    symbol,
			Action:    action,
			Quantity:  qty,
			Price:     simPrice,
			OrderID:   "sim-" + uuid.NewString(),
			Status:    "filled",
			Group:     "manual",
			Simulated: true,
		}, nil
	}

	price, err := e.broker.GetLatestPrice(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("%w: price lookup for %s: %v", ErrExecutionFailed, symbol, err)
	}
	result, err := e.broker.SubmitMarketOrder(ctx, symbol, side, qty)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExecutionFailed, err)
	}
	return &ledger.TradeRecord{
		Timestamp: e.nowFn(),
		Symbol:    symbol,
		Action:    action,
		Quantity:  qty,
		Price:     price,
		OrderID:   result.ID,
		Status:    result.Status,
		Group:     "manual",
	}, nil
}
