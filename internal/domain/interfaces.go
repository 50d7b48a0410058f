package domain

import (
	"context"
	"time"
)

// HoldingsSource supplies snapshots of the currently held assets.
// window selects the averaging window for time-averaged prices; zero requests instantaneous prices.
type HoldingsSource interface {
	GetHoldings(ctx context.Context, window time.Duration) ([]AssetSnapshot, error)
}

// LiquidationExecutor sells an entire position.
// Selling a currency that is no longer held must be a no-op.
type LiquidationExecutor interface {
	SellAll(ctx context.Context, currency string) error
}

// PerformanceIndicator receives the portfolio performance after every poll.
// It is advisory only; callers log its errors and carry on.
type PerformanceIndicator interface {
	SetPerformance(ctx context.Context, currentBalance, baselineBalance float64) error
}

// LiquidationRecorder persists liquidation attempts for auditing
type LiquidationRecorder interface {
	RecordLiquidation(ctx context.Context, attempt LiquidationAttempt) error
}
