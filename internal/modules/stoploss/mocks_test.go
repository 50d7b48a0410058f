package stoploss

import (
	"context"
	"sync"
	"time"

	"github.com/aristath/trailstop/internal/domain"
	"github.com/stretchr/testify/mock"
)

type mockExecutor struct {
	mock.Mock
}

func (m *mockExecutor) SellAll(ctx context.Context, currency string) error {
	args := m.Called(ctx, currency)
	return args.Error(0)
}

type mockIndicator struct {
	mock.Mock
}

func (m *mockIndicator) SetPerformance(ctx context.Context, current, baseline float64) error {
	args := m.Called(ctx, current, baseline)
	return args.Error(0)
}

type mockRecorder struct {
	mock.Mock
}

func (m *mockRecorder) RecordLiquidation(ctx context.Context, attempt domain.LiquidationAttempt) error {
	args := m.Called(ctx, attempt)
	return args.Error(0)
}

type pollResult struct {
	assets []domain.AssetSnapshot
	err    error
}

// scriptedSource replays poll results in order and repeats the last one
type scriptedSource struct {
	mu      sync.Mutex
	polls   []pollResult
	calls   int
	windows []time.Duration
	onPoll  func(call int)
}

func (s *scriptedSource) GetHoldings(ctx context.Context, window time.Duration) ([]domain.AssetSnapshot, error) {
	s.mu.Lock()
	idx := s.calls
	if idx >= len(s.polls) {
		idx = len(s.polls) - 1
	}
	s.calls++
	s.windows = append(s.windows, window)
	call := s.calls
	p := s.polls[idx]
	hook := s.onPoll
	s.mu.Unlock()

	if hook != nil {
		hook(call)
	}
	return p.assets, p.err
}

func (s *scriptedSource) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func holdings(assets ...domain.AssetSnapshot) pollResult {
	return pollResult{assets: assets}
}

func asset(currency string, available, price float64) domain.AssetSnapshot {
	return domain.AssetSnapshot{Currency: currency, Available: available, Price: price}
}
