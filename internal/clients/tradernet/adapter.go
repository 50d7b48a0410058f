package tradernet

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/trailstop/internal/domain"
	"github.com/aristath/trailstop/pkg/formulas"
	"github.com/rs/zerolog"
)

// Price sources for GetHoldings
const (
	PriceSourceInstant = "instant" // mkt_price as reported with the position
	PriceSourceMean    = "mean"    // Mean close over the averaging window
	PriceSourceEMA     = "ema"     // Exponential moving average of closes over the averaging window
)

const candleTimeframe = time.Minute

// Compile-time checks
var (
	_ domain.HoldingsSource      = (*TradernetAdapter)(nil)
	_ domain.LiquidationExecutor = (*TradernetAdapter)(nil)
)

// TradernetAdapter adapts tradernet.Client to the trailing stop's holdings source
// and liquidation executor
type TradernetAdapter struct {
	client      *Client
	priceSource string
	now         func() time.Time
	log         zerolog.Logger
}

// NewTradernetAdapter creates an adapter around client
func NewTradernetAdapter(client *Client, priceSource string, log zerolog.Logger) *TradernetAdapter {
	if priceSource == "" {
		priceSource = PriceSourceInstant
	}
	return &TradernetAdapter{
		client:      client,
		priceSource: priceSource,
		now:         time.Now,
		log:         log.With().Str("component", "tradernet_adapter").Logger(),
	}
}

// GetHoldings implements domain.HoldingsSource.
// Positions with no quantity are not reported.
func (a *TradernetAdapter) GetHoldings(ctx context.Context, window time.Duration) ([]domain.AssetSnapshot, error) {
	positions, err := a.client.GetPortfolio(ctx)
	if err != nil {
		return nil, err
	}

	snapshots := make([]domain.AssetSnapshot, 0, len(positions))
	for _, pos := range positions {
		if pos.Quantity <= 0 || pos.Symbol == "" {
			continue
		}
		snapshots = append(snapshots, domain.AssetSnapshot{
			Currency:  pos.Symbol,
			Available: pos.Quantity,
			Price:     a.price(ctx, pos, window),
		})
	}

	return snapshots, nil
}

// price returns the configured price for a position, falling back to the
// instantaneous market price when no candles are available
func (a *TradernetAdapter) price(ctx context.Context, pos Position, window time.Duration) float64 {
	if a.priceSource == PriceSourceInstant || window <= 0 {
		return pos.CurrentPrice
	}

	end := a.now()
	candles, err := a.client.GetCandles(ctx, pos.Symbol, end.Add(-window), end, candleTimeframe)
	if err != nil {
		a.log.Warn().Err(err).Str("symbol", pos.Symbol).Msg("Failed to fetch candles, using market price")
		return pos.CurrentPrice
	}

	closes := make([]float64, 0, len(candles))
	for _, c := range candles {
		closes = append(closes, c.Close)
	}

	var avg *float64
	switch a.priceSource {
	case PriceSourceEMA:
		avg = formulas.EMA(closes, emaLength(len(closes)))
	default:
		avg = formulas.Mean(closes)
	}

	if avg == nil {
		a.log.Debug().Str("symbol", pos.Symbol).Msg("No candles in window, using market price")
		return pos.CurrentPrice
	}
	return *avg
}

// emaLength spans half the window so the newest candles dominate
func emaLength(n int) int {
	if n/2 < 2 {
		return 2
	}
	return n / 2
}

// SellAll implements domain.LiquidationExecutor.
// The quantity is read from a fresh portfolio so partial fills elsewhere are respected.
func (a *TradernetAdapter) SellAll(ctx context.Context, currency string) error {
	positions, err := a.client.GetPortfolio(ctx)
	if err != nil {
		return fmt.Errorf("failed to read position for %s: %w", currency, err)
	}

	var quantity float64
	for _, pos := range positions {
		if pos.Symbol == currency {
			quantity = pos.Quantity
			break
		}
	}

	if quantity <= 0 {
		a.log.Info().Str("symbol", currency).Msg("Nothing to sell, position already closed")
		return nil
	}

	order, err := a.client.SellMarket(ctx, currency, quantity)
	if err != nil {
		return err
	}

	a.log.Info().
		Str("symbol", currency).
		Float64("quantity", quantity).
		Str("order_id", order.OrderID).
		Msg("Market sell placed")

	return nil
}

// HealthCheck reports whether the broker API is reachable
func (a *TradernetAdapter) HealthCheck(ctx context.Context) *HealthCheckResult {
	return a.client.HealthCheck(ctx)
}

// Close releases the underlying client
func (a *TradernetAdapter) Close() {
	a.client.Close()
}
