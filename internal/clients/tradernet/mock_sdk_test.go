package tradernet

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
)

type mockSDKClient struct {
	mock.Mock
}

func (m *mockSDKClient) AccountSummary(ctx context.Context) (map[string]interface{}, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]interface{}), args.Error(1)
}

func (m *mockSDKClient) Sell(ctx context.Context, symbol string, quantity, price float64, duration string, useMargin bool) (map[string]interface{}, error) {
	args := m.Called(ctx, symbol, quantity, price, duration, useMargin)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]interface{}), args.Error(1)
}

func (m *mockSDKClient) GetCandles(ctx context.Context, symbol string, start, end time.Time, timeframeSeconds int) (map[string]interface{}, error) {
	args := m.Called(ctx, symbol, start, end, timeframeSeconds)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]interface{}), args.Error(1)
}

func (m *mockSDKClient) UserInfo(ctx context.Context) (map[string]interface{}, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]interface{}), args.Error(1)
}

func (m *mockSDKClient) Close() {
	m.Called()
}

func portfolioResponse(positions ...map[string]interface{}) map[string]interface{} {
	pos := make([]interface{}, 0, len(positions))
	for _, p := range positions {
		pos = append(pos, p)
	}
	return map[string]interface{}{
		"result": map[string]interface{}{
			"ps": map[string]interface{}{
				"pos": pos,
			},
		},
	}
}

func position(symbol string, quantity, price float64) map[string]interface{} {
	return map[string]interface{}{
		"i":           symbol,
		"q":           quantity,
		"mkt_price":   price,
		"bal_price_a": price * 0.9,
		"curr":        "USD",
	}
}

func candlesResponse(symbol string, closes ...float64) map[string]interface{} {
	hloc := make([]interface{}, 0, len(closes))
	for _, c := range closes {
		hloc = append(hloc, []interface{}{c + 1, c - 1, c, c})
	}
	return map[string]interface{}{
		"hloc": map[string]interface{}{symbol: hloc},
	}
}
