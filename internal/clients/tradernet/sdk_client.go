package tradernet

import (
	"context"
	"time"
)

// SDKClient is the subset of the SDK client used here, for dependency injection in tests
type SDKClient interface {
	AccountSummary(ctx context.Context) (map[string]interface{}, error)
	Sell(ctx context.Context, symbol string, quantity, price float64, duration string, useMargin bool) (map[string]interface{}, error)
	GetCandles(ctx context.Context, symbol string, start, end time.Time, timeframeSeconds int) (map[string]interface{}, error)
	UserInfo(ctx context.Context) (map[string]interface{}, error)
	Close()
}
