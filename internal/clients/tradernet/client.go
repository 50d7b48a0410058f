// Package tradernet provides client functionality for interacting with the Tradernet API.
package tradernet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/trailstop/internal/clients/tradernet/sdk"
)

// ErrNotConnected is returned when the client has no SDK client
var ErrNotConnected = errors.New("tradernet client not connected")

// Client for Tradernet API (using SDK directly)
type Client struct {
	sdkClient SDKClient
	log       zerolog.Logger
}

// NewClient creates a new Tradernet client using SDK.
// Credentials are validated by the SDK on the first request.
func NewClient(apiKey, apiSecret, baseURL string, log zerolog.Logger) *Client {
	return &Client{
		sdkClient: sdk.NewClient(apiKey, apiSecret, baseURL, log),
		log:       log.With().Str("client", "tradernet").Logger(),
	}
}

// NewClientWithSDK creates a new Tradernet client with a provided SDK client (for testing)
func NewClientWithSDK(sdkClient SDKClient, log zerolog.Logger) *Client {
	return &Client{
		sdkClient: sdkClient,
		log:       log.With().Str("client", "tradernet").Logger(),
	}
}

// Position represents a portfolio position
type Position struct {
	Symbol       string  `json:"symbol"`
	Quantity     float64 `json:"quantity"`
	AvgPrice     float64 `json:"avg_price"`
	CurrentPrice float64 `json:"current_price"`
	MarketValue  float64 `json:"market_value"`
	Currency     string  `json:"currency"`
}

// OrderResult is the result of placing an order
type OrderResult struct {
	OrderID  string  `json:"order_id"`
	Symbol   string  `json:"symbol"`
	Side     string  `json:"side"`
	Quantity float64 `json:"quantity"`
	Price    float64 `json:"price"`
}

// OHLCV represents one candle
type OHLCV struct {
	Timestamp int64   `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    int64   `json:"volume"`
}

// GetPortfolio gets current portfolio positions
func (c *Client) GetPortfolio(ctx context.Context) ([]Position, error) {
	if c.sdkClient == nil {
		return nil, ErrNotConnected
	}

	c.log.Debug().Msg("GetPortfolio: calling SDK AccountSummary")

	result, err := c.sdkClient.AccountSummary(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get portfolio: %w", err)
	}

	positions, err := transformPositions(result)
	if err != nil {
		return nil, fmt.Errorf("failed to transform positions: %w", err)
	}

	return positions, nil
}

// SellMarket places a day market sell order without margin
func (c *Client) SellMarket(ctx context.Context, symbol string, quantity float64) (*OrderResult, error) {
	if c.sdkClient == nil {
		return nil, ErrNotConnected
	}

	c.log.Debug().
		Str("symbol", symbol).
		Float64("quantity", quantity).
		Msg("SellMarket: calling SDK")

	result, err := c.sdkClient.Sell(ctx, symbol, quantity, 0, "day", false)
	if err != nil {
		c.log.Error().Err(err).Str("symbol", symbol).Msg("SellMarket: SDK Sell failed")
		return nil, fmt.Errorf("failed to place order: %w", err)
	}

	orderResult, err := transformOrderResult(result, symbol, "SELL", quantity)
	if err != nil {
		return nil, fmt.Errorf("failed to transform order result: %w", err)
	}

	return orderResult, nil
}

// GetCandles gets OHLC candles for symbol between start and end
func (c *Client) GetCandles(ctx context.Context, symbol string, start, end time.Time, timeframe time.Duration) ([]OHLCV, error) {
	if c.sdkClient == nil {
		return nil, ErrNotConnected
	}

	result, err := c.sdkClient.GetCandles(ctx, symbol, start, end, int(timeframe.Seconds()))
	if err != nil {
		return nil, fmt.Errorf("failed to get candles for %s: %w", symbol, err)
	}

	return transformCandles(result, symbol)
}

// HealthCheckResult represents the result of a health check
type HealthCheckResult struct {
	Connected bool   `json:"connected"`
	Timestamp string `json:"timestamp"`
}

// HealthCheck checks the health of the Tradernet API using UserInfo()
func (c *Client) HealthCheck(ctx context.Context) *HealthCheckResult {
	result := &HealthCheckResult{Timestamp: time.Now().Format(time.RFC3339)}
	if c.sdkClient == nil {
		return result
	}

	if _, err := c.sdkClient.UserInfo(ctx); err != nil {
		c.log.Debug().Err(err).Msg("HealthCheck: SDK UserInfo failed")
		return result
	}

	result.Connected = true
	return result
}

// Close stops the SDK request worker
func (c *Client) Close() {
	if c.sdkClient != nil {
		c.sdkClient.Close()
	}
}
