package stoploss

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aristath/trailstop/internal/domain"
	"github.com/aristath/trailstop/internal/evaluation/workers"
	"github.com/aristath/trailstop/internal/events"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type controllerFixture struct {
	controller *Controller
	source     *scriptedSource
	executor   *mockExecutor
}

func newFixture(cfg ControllerConfig, numWorkers int, threshold, maxDelta float64, polls ...pollResult) controllerFixture {
	source := &scriptedSource{polls: polls}
	executor := &mockExecutor{}
	evaluator := NewEvaluator(NewFloorTracker(threshold), maxDelta, executor, zerolog.Nop())
	controller := NewController(cfg, source, evaluator, workers.NewWorkerPool(numWorkers), zerolog.Nop())

	return controllerFixture{controller: controller, source: source, executor: executor}
}

func TestController_FirstIterationTracksEveryAsset(t *testing.T) {
	f := newFixture(ControllerConfig{}, 2, 0.04, 0.08,
		holdings(asset("BTC", 0.5, 100), asset("ETH", 2, 50)),
	)

	report, err := f.controller.RunIteration(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, report.Assets)
	assert.Equal(t, 2, report.Held)
	assert.NotEmpty(t, report.ID)

	floors := f.controller.Floors()
	require.Len(t, floors, 2)
	assert.InDelta(t, 96, floors["BTC"].Floor.Value, 1e-9)
	assert.InDelta(t, 48, floors["ETH"].Floor.Value, 1e-9)
	f.executor.AssertNotCalled(t, "SellAll", mock.Anything, mock.Anything)
}

func TestController_TrailingScenario(t *testing.T) {
	f := newFixture(ControllerConfig{}, 1, 0.04, 0.08,
		holdings(asset("BTC", 1, 100)),
		holdings(asset("BTC", 1, 104)),
		holdings(asset("BTC", 1, 103.9)),
		holdings(asset("BTC", 1, 99.7)),
	)
	f.executor.On("SellAll", mock.Anything, "BTC").Return(nil).Once()
	ctx := context.Background()

	for _, expected := range []float64{96, 99.84, 99.84} {
		_, err := f.controller.RunIteration(ctx)
		require.NoError(t, err)
		assert.InDelta(t, expected, f.controller.Floors()["BTC"].Floor.Value, 1e-9)
	}

	report, err := f.controller.RunIteration(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Liquidated)
	assert.NotContains(t, f.controller.Floors(), "BTC")
	f.executor.AssertExpectations(t)
}

func TestController_SpikeScenario(t *testing.T) {
	f := newFixture(ControllerConfig{}, 1, 0.04, 0.05,
		holdings(asset("ETH", 1, 100)),
		holdings(asset("ETH", 1, 1000)),
		holdings(asset("ETH", 1, 960)),
	)
	ctx := context.Background()

	_, err := f.controller.RunIteration(ctx)
	require.NoError(t, err)
	_, err = f.controller.RunIteration(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 950, f.controller.Floors()["ETH"].Floor.Value, 1e-9)

	report, err := f.controller.RunIteration(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Held)
	f.executor.AssertNotCalled(t, "SellAll", mock.Anything, mock.Anything)
}

func TestController_RemovesCurrenciesNoLongerHeld(t *testing.T) {
	f := newFixture(ControllerConfig{}, 1, 0.04, 0.08,
		holdings(asset("BTC", 1, 100), asset("ETH", 1, 50)),
		holdings(asset("ETH", 1, 51)),
		holdings(asset("ETH", 1, 52)),
	)
	ctx := context.Background()

	_, err := f.controller.RunIteration(ctx)
	require.NoError(t, err)

	report, err := f.controller.RunIteration(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Removed)
	assert.NotContains(t, f.controller.Floors(), "BTC")

	report, err = f.controller.RunIteration(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Removed)
	assert.Len(t, f.controller.Floors(), 1)
}

func TestController_ReappearingCurrencyStartsFresh(t *testing.T) {
	f := newFixture(ControllerConfig{}, 1, 0.04, 0.08,
		holdings(asset("BTC", 1, 200)),
		holdings(),
		holdings(asset("BTC", 1, 100)),
	)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := f.controller.RunIteration(ctx)
		require.NoError(t, err)
	}

	// A stale floor of 192 would have liquidated at 100
	assert.InDelta(t, 96, f.controller.Floors()["BTC"].Floor.Value, 1e-9)
	f.executor.AssertNotCalled(t, "SellAll", mock.Anything, mock.Anything)
}

func TestController_FetchFailureLeavesStateUnchanged(t *testing.T) {
	fetchErr := errors.New("connection reset")
	f := newFixture(ControllerConfig{}, 1, 0.04, 0.08,
		holdings(asset("BTC", 1, 100)),
		pollResult{err: fetchErr},
	)

	bus := events.NewBus(zerolog.Nop())
	f.controller.SetEventManager(events.NewManager(bus, zerolog.Nop()))
	var fetchEvents []*events.Event
	bus.Subscribe(events.HoldingsFetchFailed, func(e *events.Event) { fetchEvents = append(fetchEvents, e) })

	_, err := f.controller.RunIteration(context.Background())
	require.NoError(t, err)
	before := f.controller.Floors()

	report, err := f.controller.RunIteration(context.Background())
	assert.ErrorIs(t, err, fetchErr)
	assert.Nil(t, report)
	assert.Equal(t, before, f.controller.Floors())
	require.Len(t, fetchEvents, 1)
	assert.Equal(t, "connection reset", fetchEvents[0].Data["error"])
}

func TestController_FailedSellPolicy(t *testing.T) {
	tests := []struct {
		name   string
		retain bool
	}{
		{"drops floor by default", false},
		{"retains floor when configured", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(ControllerConfig{RetainFloorOnFailedSell: tt.retain}, 1, 0.04, 0.08,
				holdings(asset("BTC", 2, 100)),
				holdings(asset("BTC", 2, 90)),
			)
			sellErr := errors.New("insufficient liquidity")
			f.executor.On("SellAll", mock.Anything, "BTC").Return(sellErr).Once()

			recorder := &mockRecorder{}
			recorder.On("RecordLiquidation", mock.Anything, mock.MatchedBy(func(a domain.LiquidationAttempt) bool {
				return a.Currency == "BTC" && a.Quantity == 2 && a.Price == 90 && errors.Is(a.Err, sellErr)
			})).Return(nil).Once()
			f.controller.SetLiquidationRecorder(recorder)

			_, err := f.controller.RunIteration(context.Background())
			require.NoError(t, err)
			report, err := f.controller.RunIteration(context.Background())
			require.NoError(t, err)

			assert.Equal(t, 1, report.Failed)
			state, tracked := f.controller.Floors()["BTC"]
			assert.Equal(t, tt.retain, tracked)
			if tt.retain {
				assert.InDelta(t, 96, state.Floor.Value, 1e-9)
			}
			f.executor.AssertExpectations(t)
			recorder.AssertExpectations(t)
		})
	}
}

func TestController_SuccessfulSellIsRecordedAndEmitted(t *testing.T) {
	f := newFixture(ControllerConfig{}, 1, 0.04, 0.08,
		holdings(asset("SOL", 10, 20)),
		holdings(asset("SOL", 10, 18)),
	)
	f.executor.On("SellAll", mock.Anything, "SOL").Return(nil).Once()

	recorder := &mockRecorder{}
	recorder.On("RecordLiquidation", mock.Anything, mock.MatchedBy(func(a domain.LiquidationAttempt) bool {
		return a.Currency == "SOL" && a.Succeeded() && a.Floor > 18
	})).Return(errors.New("disk full")).Once()
	f.controller.SetLiquidationRecorder(recorder)

	bus := events.NewBus(zerolog.Nop())
	f.controller.SetEventManager(events.NewManager(bus, zerolog.Nop()))
	var executed []*events.Event
	bus.Subscribe(events.LiquidationExecuted, func(e *events.Event) { executed = append(executed, e) })

	_, err := f.controller.RunIteration(context.Background())
	require.NoError(t, err)
	report, err := f.controller.RunIteration(context.Background())
	require.NoError(t, err, "recorder errors must not fail the iteration")

	assert.Equal(t, 1, report.Liquidated)
	assert.Empty(t, f.controller.Floors())
	require.Len(t, executed, 1)
	assert.Equal(t, "SOL", executed[0].Data["currency"])
	recorder.AssertExpectations(t)
}

func TestController_InvalidPriceKeepsExistingFloor(t *testing.T) {
	f := newFixture(ControllerConfig{}, 1, 0.04, 0.08,
		holdings(asset("BTC", 1, 100)),
		holdings(asset("BTC", 1, 0)),
	)

	_, err := f.controller.RunIteration(context.Background())
	require.NoError(t, err)
	before := f.controller.Floors()["BTC"]

	report, err := f.controller.RunIteration(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, before, f.controller.Floors()["BTC"])
}

func TestController_DuplicateCurrencyEvaluatedOnce(t *testing.T) {
	f := newFixture(ControllerConfig{}, 2, 0.04, 0.08,
		holdings(asset("BTC", 1, 100), asset("BTC", 1, 50)),
	)

	report, err := f.controller.RunIteration(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Assets)
	require.Len(t, report.Results, 1)
	assert.InDelta(t, 96, f.controller.Floors()["BTC"].Floor.Value, 1e-9)
}

func TestController_ResultIndependentOfWorkerCount(t *testing.T) {
	var polls []pollResult
	for step := 0; step < 6; step++ {
		var assets []domain.AssetSnapshot
		for i := 0; i < 25; i++ {
			price := 100 + float64((i*7+step*13)%17) - float64(step)
			assets = append(assets, asset(fmt.Sprintf("C%02d", i), 1, price))
		}
		polls = append(polls, pollResult{assets: assets})
	}

	run := func(numWorkers int) (map[string]FloorState, []string) {
		f := newFixture(ControllerConfig{}, numWorkers, 0.04, 0.08, polls...)
		var mu sync.Mutex
		var sold []string
		f.executor.On("SellAll", mock.Anything, mock.Anything).Return(nil).Run(func(args mock.Arguments) {
			mu.Lock()
			sold = append(sold, args.String(1))
			mu.Unlock()
		})
		for range polls {
			_, err := f.controller.RunIteration(context.Background())
			require.NoError(t, err)
		}
		return f.controller.Floors(), sold
	}

	sequentialFloors, sequentialSold := run(1)
	parallelFloors, parallelSold := run(8)

	assert.Equal(t, sequentialFloors, parallelFloors)
	assert.ElementsMatch(t, sequentialSold, parallelSold)
}

func TestController_PerformanceUsesFirstBalanceAsBaseline(t *testing.T) {
	f := newFixture(ControllerConfig{}, 1, 0.04, 0.08,
		holdings(asset("BTC", 2, 100), asset("ETH", 1, 50)),
		holdings(asset("BTC", 2, 110), asset("ETH", 1, 50)),
	)

	indicator := &mockIndicator{}
	indicator.On("SetPerformance", mock.Anything, 250.0, 250.0).Return(nil).Once()
	indicator.On("SetPerformance", mock.Anything, 270.0, 250.0).Return(errors.New("bridge offline")).Once()
	f.controller.SetPerformanceIndicator(indicator)

	first, err := f.controller.RunIteration(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 250.0, first.Baseline)

	second, err := f.controller.RunIteration(context.Background())
	require.NoError(t, err, "indicator errors are advisory")
	assert.Equal(t, 270.0, second.Balance)
	assert.Equal(t, 250.0, second.Baseline)
	indicator.AssertExpectations(t)
}

func TestController_SlowIndicatorDoesNotDelaySells(t *testing.T) {
	f := newFixture(ControllerConfig{}, 1, 0.04, 0.08,
		holdings(asset("BTC", 1, 100)),
		holdings(asset("BTC", 1, 90)),
	)

	sold := make(chan struct{})
	f.executor.On("SellAll", mock.Anything, "BTC").Return(nil).Once().Run(func(mock.Arguments) {
		close(sold)
	})

	var soldFirst []bool
	indicator := &mockIndicator{}
	indicator.On("SetPerformance", mock.Anything, mock.Anything, mock.Anything).Return(nil).Run(func(mock.Arguments) {
		select {
		case <-sold:
			soldFirst = append(soldFirst, true)
		case <-time.After(200 * time.Millisecond):
			soldFirst = append(soldFirst, false)
		}
	})
	f.controller.SetPerformanceIndicator(indicator)

	_, err := f.controller.RunIteration(context.Background())
	require.NoError(t, err)
	report, err := f.controller.RunIteration(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Liquidated)
	// First iteration has nothing to sell; the second must sell before touching the lights
	assert.Equal(t, []bool{false, true}, soldFirst)
	f.executor.AssertExpectations(t)
}

func TestController_IndicatorContextIsBounded(t *testing.T) {
	f := newFixture(ControllerConfig{}, 1, 0.04, 0.08,
		holdings(asset("BTC", 1, 100)),
	)

	var hasDeadline bool
	indicator := &mockIndicator{}
	indicator.On("SetPerformance", mock.Anything, 100.0, 100.0).Return(nil).Once().Run(func(args mock.Arguments) {
		_, hasDeadline = args.Get(0).(context.Context).Deadline()
	})
	f.controller.SetPerformanceIndicator(indicator)

	_, err := f.controller.RunIteration(context.Background())
	require.NoError(t, err)
	assert.True(t, hasDeadline)
	indicator.AssertExpectations(t)
}

func TestController_EmitsFloorRaisedOnlyWhenFloorMoves(t *testing.T) {
	f := newFixture(ControllerConfig{}, 1, 0.04, 0.08,
		holdings(asset("BTC", 1, 100)),
		holdings(asset("BTC", 1, 104)),
		holdings(asset("BTC", 1, 103.9)),
	)

	bus := events.NewBus(zerolog.Nop())
	f.controller.SetEventManager(events.NewManager(bus, zerolog.Nop()))
	var raised []*events.FloorRaisedData
	bus.Subscribe(events.FloorRaised, func(e *events.Event) {
		raised = append(raised, e.GetTypedData().(*events.FloorRaisedData))
	})

	for i := 0; i < 3; i++ {
		_, err := f.controller.RunIteration(context.Background())
		require.NoError(t, err)
	}

	require.Len(t, raised, 2)
	assert.Nil(t, raised[0].OldFloor)
	assert.InDelta(t, 96, raised[0].NewFloor, 1e-9)
	require.NotNil(t, raised[1].OldFloor)
	assert.InDelta(t, 96, *raised[1].OldFloor, 1e-9)
	assert.InDelta(t, 99.84, raised[1].NewFloor, 1e-9)
}

func TestController_RunStopsBetweenIterations(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := newFixture(ControllerConfig{PollInterval: time.Hour, AveragingWindow: time.Minute}, 1, 0.04, 0.08,
		holdings(asset("BTC", 1, 100)),
	)
	f.source.onPoll = func(int) { cancel() }

	done := make(chan error, 1)
	go func() { done <- f.controller.Run(ctx) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("controller did not stop")
	}

	assert.Equal(t, 1, f.source.Calls())
	assert.Equal(t, []time.Duration{time.Minute}, f.source.windows)
	assert.Contains(t, f.controller.Floors(), "BTC", "in-flight iteration completes")
	require.NotNil(t, f.controller.LastReport())
}

func TestController_InFlightIterationIgnoresCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := newFixture(ControllerConfig{PollInterval: time.Hour}, 1, 0.04, 0.08,
		holdings(asset("BTC", 1, 100)),
	)
	// Seed a floor above the price so the first Run iteration sells
	_, err := f.controller.RunIteration(context.Background())
	require.NoError(t, err)
	f.source.polls = []pollResult{holdings(asset("BTC", 1, 50))}
	f.source.onPoll = func(int) { cancel() }

	var sellCtxErr error
	f.executor.On("SellAll", mock.Anything, "BTC").Return(nil).Once().Run(func(args mock.Arguments) {
		sellCtxErr = args.Get(0).(context.Context).Err()
	})

	require.NoError(t, f.controller.Run(ctx))
	assert.NoError(t, sellCtxErr)
	f.executor.AssertExpectations(t)
}
