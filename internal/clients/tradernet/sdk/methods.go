package sdk

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Duration constants
var (
	DurationDay = 1 // The order will be valid until the end of the trading day
	DurationExt = 2 // Extended day order
	DurationGTC = 3 // Good Till Cancelled
)

// DurationMap maps duration strings to IDs
var DurationMap = map[string]int{
	"day": DurationDay,
	"ext": DurationExt,
	"gtc": DurationGTC,
}

// Order types accepted by putTradeOrder
const (
	OrderTypeMarket = 1
	OrderTypeLimit  = 2
)

// Action IDs accepted by putTradeOrder
const (
	actionBuy        = 1
	actionBuyMargin  = 2
	actionSell       = 3
	actionSellMargin = 4
)

// UserInfo retrieves user information from the Tradernet API.
// Used as a cheap authenticated call to verify credentials.
func (c *Client) UserInfo(ctx context.Context) (map[string]interface{}, error) {
	return c.authorizedRequest(ctx, "GetAllUserTexInfo", GetAllUserTexInfoParams{})
}

// AccountSummary retrieves account summary including positions and cash balances.
// This calls the getPositionJson command with no parameters.
//
// The response has the structure:
//   - result.ps.pos: positions, each with i (symbol), q (quantity),
//     mkt_price (current price), bal_price_a (average price) and curr (currency)
//   - result.ps.acc: cash accounts, each with curr and s (balance)
func (c *Client) AccountSummary(ctx context.Context) (map[string]interface{}, error) {
	return c.authorizedRequest(ctx, "getPositionJson", GetPositionJSONParams{})
}

// Trade places an order. A positive quantity buys, a negative quantity sells.
// Market orders take a nil limitPrice; limit orders require one.
func (c *Client) Trade(ctx context.Context, symbol string, quantity float64, orderType int, limitPrice *float64, duration string, useMargin bool) (map[string]interface{}, error) {
	durationID, ok := DurationMap[strings.ToLower(duration)]
	if !ok {
		return nil, fmt.Errorf("unknown duration %s", duration)
	}

	switch orderType {
	case OrderTypeMarket:
	case OrderTypeLimit:
		if limitPrice == nil {
			return nil, fmt.Errorf("limit_price required for limit orders (type 2)")
		}
	default:
		return nil, fmt.Errorf("unsupported order type %d", orderType)
	}

	var actionID int
	switch {
	case quantity > 0 && useMargin:
		actionID = actionBuyMargin
	case quantity > 0:
		actionID = actionBuy
	case quantity < 0 && useMargin:
		actionID = actionSellMargin
	case quantity < 0:
		actionID = actionSell
	default:
		return nil, fmt.Errorf("zero quantity")
	}

	qty := quantity
	if qty < 0 {
		qty = -qty
	}

	params := PutTradeOrderParams{
		InstrName:    symbol,
		ActionID:     actionID,
		OrderTypeID:  orderType,
		Qty:          qty,
		LimitPrice:   limitPrice,
		ExpirationID: durationID,
	}

	return c.authorizedRequest(ctx, "putTradeOrder", params)
}

// Sell places a sell order for the specified symbol.
// A zero price places a market order, a positive price a limit order.
func (c *Client) Sell(ctx context.Context, symbol string, quantity, price float64, duration string, useMargin bool) (map[string]interface{}, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("quantity must be positive")
	}

	orderType := OrderTypeMarket
	var limitPrice *float64
	if price > 0 {
		orderType = OrderTypeLimit
		limitPrice = &price
	}

	return c.Trade(ctx, symbol, -quantity, orderType, limitPrice, duration, useMargin)
}

// GetCandles gets historical OHLC data
func (c *Client) GetCandles(ctx context.Context, symbol string, start, end time.Time, timeframeSeconds int) (map[string]interface{}, error) {
	timeframeMinutes := timeframeSeconds / 60
	if timeframeMinutes < 1 {
		timeframeMinutes = 1
	}

	params := GetHlocParams{
		ID:           symbol,
		Count:        -1,
		Timeframe:    timeframeMinutes,
		DateFrom:     start.Format("02.01.2006 15:04"),
		DateTo:       end.Format("02.01.2006 15:04"),
		IntervalMode: "ClosedRay",
	}
	return c.authorizedRequest(ctx, "getHloc", params)
}
