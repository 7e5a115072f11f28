// Package alpaca implements the broker interface against the Alpaca paper
// and live trading REST APIs.
package alpaca

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"

	"alphadesk/internal/broker"
	"alphadesk/internal/logger"
)

const (
	paperBaseURL = "https://paper-api.alpaca.markets"
	dataBaseURL  = "https://data.alpaca.markets"
)

// Client talks to the Alpaca trading and market-data APIs.
type Client struct {
	trading *resty.Client
	data    *resty.Client
}

// NewClient builds a client for the given credentials. baseURL empty means
// the paper endpoint.
func NewClient(keyID, secret, baseURL string) *Client {
	if baseURL == "" {
		baseURL = paperBaseURL
	}
	headers := map[string]string{
		"APCA-API-KEY-ID":     keyID,
		"APCA-API-SECRET-KEY": secret,
	}

	trading := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(30 * time.Second).
		SetHeaders(headers)
	data := resty.New().
		SetBaseURL(dataBaseURL).
		SetTimeout(30 * time.Second).
		SetHeaders(headers)

	return &Client{trading: trading, data: data}
}

// Connected probes the account endpoint once.
func (c *Client) Connected(ctx context.Context) bool {
	resp, err := c.trading.R().SetContext(ctx).Get("/v2/account")
	if err != nil {
		logger.Warnf("alpaca: account probe failed: %v", err)
		return false
	}
	return resp.StatusCode() == 200
}

func (c *Client) GetAccount(ctx context.Context) (broker.Account, error) {
	body, err := c.get(ctx, c.trading, "/v2/account")
	if err != nil {
		return broker.Account{}, err
	}
	return broker.Account{
		Cash:        body.Get("cash").Float(),
		Equity:      body.Get("equity").Float(),
		BuyingPower: body.Get("buying_power").Float(),
		LastEquity:  body.Get("last_equity").Float(),
	}, nil
}

func (c *Client) GetPositions(ctx context.Context) ([]broker.Position, error) {
	body, err := c.get(ctx, c.trading, "/v2/positions")
	if err != nil {
		return nil, err
	}
	var positions []broker.Position
	body.ForEach(func(_, item gjson.Result) bool {
		positions = append(positions, decodePosition(item))
		return true
	})
	return positions, nil
}

func (c *Client) GetPosition(ctx context.Context, symbol string) (broker.Position, bool, error) {
	resp, err := c.trading.R().SetContext(ctx).Get("/v2/positions/" + symbol)
	if err != nil {
		return broker.Position{}, false, fmt.Errorf("alpaca: position %s: %w", symbol, err)
	}
	if resp.StatusCode() == 404 {
		return broker.Position{}, false, nil
	}
	if resp.StatusCode() != 200 {
		return broker.Position{}, false, apiError("position "+symbol, resp)
	}
	return decodePosition(gjson.ParseBytes(resp.Body())), true, nil
}

func (c *Client) GetLatestPrice(ctx context.Context, symbol string) (float64, error) {
	body, err := c.get(ctx, c.data, "/v2/stocks/"+symbol+"/trades/latest")
	if err != nil {
		return 0, err
	}
	price := body.Get("trade.p").Float()
	if price <= 0 {
		return 0, fmt.Errorf("alpaca: no latest trade for %s", symbol)
	}
	return price, nil
}

func (c *Client) SubmitMarketOrder(ctx context.Context, symbol string, side broker.Side, qty int64) (broker.OrderResult, error) {
	resp, err := c.trading.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]string{
			"symbol":        symbol,
			"qty":           strconv.FormatInt(qty, 10),
			"side":          string(side),
			"type":          "market",
			"time_in_force": "day",
		}).
		Post("/v2/orders")
	if err != nil {
		return broker.OrderResult{}, fmt.Errorf("alpaca: submit order: %w", err)
	}
	if resp.StatusCode() != 200 && resp.StatusCode() != 201 {
		return broker.OrderResult{}, apiError("submit order", resp)
	}

	body := gjson.ParseBytes(resp.Body())
	return broker.OrderResult{
		ID:     body.Get("id").String(),
		Status: body.Get("status").String(),
	}, nil
}

func (c *Client) get(ctx context.Context, client *resty.Client, path string) (gjson.Result, error) {
	resp, err := client.R().SetContext(ctx).Get(path)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("alpaca: %s: %w", path, err)
	}
	if resp.StatusCode() != 200 {
		return gjson.Result{}, apiError(path, resp)
	}
	return gjson.ParseBytes(resp.Body()), nil
}

func decodePosition(item gjson.Result) broker.Position {
	return broker.Position{
		Symbol:           item.Get("symbol").String(),
		Quantity:         item.Get("qty").Float(),
		AvgEntryPrice:    item.Get("avg_entry_price").Float(),
		CurrentPrice:     item.Get("current_price").Float(),
		MarketValue:      item.Get("market_value").Float(),
		UnrealizedPnL:    item.Get("unrealized_pl").Float(),
		UnrealizedPnLPct: item.Get("unrealized_plpc").Float() * 100,
		Side:             item.Get("side").String(),
	}
}

func apiError(what string, resp *resty.Response) error {
	msg := gjson.GetBytes(resp.Body(), "message").String()
	if msg == "" {
		msg = resp.Status()
	}
	return fmt.Errorf("alpaca: %s failed (%d): %s", what, resp.StatusCode(), msg)
}
