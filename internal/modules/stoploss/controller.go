package stoploss

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aristath/trailstop/internal/domain"
	"github.com/aristath/trailstop/internal/evaluation/workers"
	"github.com/aristath/trailstop/internal/events"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	moduleName = "stoploss"

	// indicatorTimeout bounds one performance indicator update
	indicatorTimeout = 10 * time.Second
)

// ControllerConfig holds the loop parameters
type ControllerConfig struct {
	PollInterval            time.Duration // Delay between iterations
	AveragingWindow         time.Duration // Passed to the holdings source; zero for instantaneous prices
	RetainFloorOnFailedSell bool          // Keep the candidate floor when a sell fails instead of forgetting the currency
}

// IterationReport summarises one pass of the loop
type IterationReport struct {
	ID         string        `json:"id"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration"`
	Assets     int           `json:"assets"`
	Held       int           `json:"held"`
	Liquidated int           `json:"liquidated"`
	Failed     int           `json:"failed"`
	Skipped    int           `json:"skipped"`
	Removed    int           `json:"removed"`
	Balance    float64       `json:"balance"`
	Baseline   float64       `json:"baseline"`
	Results    []Result      `json:"-"`
}

// Controller owns the floor map and drives poll, evaluate and reconcile.
// Only the goroutine running an iteration writes the floor map; readers use Floors.
type Controller struct {
	cfg       ControllerConfig
	source    domain.HoldingsSource
	evaluator *Evaluator
	pool      *workers.WorkerPool

	indicator domain.PerformanceIndicator
	recorder  domain.LiquidationRecorder
	events    *events.Manager

	iterMu   sync.Mutex
	floors   map[string]FloorState
	baseline Price

	viewMu     sync.RWMutex
	view       map[string]FloorState
	lastReport *IterationReport

	log zerolog.Logger
}

// NewController creates a controller with an empty floor map
func NewController(
	cfg ControllerConfig,
	source domain.HoldingsSource,
	evaluator *Evaluator,
	pool *workers.WorkerPool,
	log zerolog.Logger,
) *Controller {
	return &Controller{
		cfg:       cfg,
		source:    source,
		evaluator: evaluator,
		pool:      pool,
		floors:    make(map[string]FloorState),
		view:      make(map[string]FloorState),
		log:       log.With().Str("service", "stoploss").Logger(),
	}
}

// SetPerformanceIndicator sets the optional performance display
func (c *Controller) SetPerformanceIndicator(indicator domain.PerformanceIndicator) {
	c.indicator = indicator
}

// SetLiquidationRecorder sets the optional liquidation ledger
func (c *Controller) SetLiquidationRecorder(recorder domain.LiquidationRecorder) {
	c.recorder = recorder
}

// SetEventManager sets the optional event manager
func (c *Controller) SetEventManager(manager *events.Manager) {
	c.events = manager
}

// Run loops until ctx is cancelled. Cancellation is observed between iterations;
// an iteration that already started runs to completion.
func (c *Controller) Run(ctx context.Context) error {
	c.log.Info().
		Dur("poll_interval", c.cfg.PollInterval).
		Int("workers", c.pool.Size()).
		Msg("Trailing stop started")

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			c.log.Info().Msg("Trailing stop stopped")
			return nil
		case <-timer.C:
		}

		if _, err := c.RunIteration(context.WithoutCancel(ctx)); err != nil {
			c.log.Warn().Err(err).Msg("Iteration skipped")
		}

		timer.Reset(c.cfg.PollInterval)
	}
}

// RunIteration performs one poll, evaluate and reconcile pass.
// A holdings fetch error leaves the floor map untouched and is returned.
func (c *Controller) RunIteration(ctx context.Context) (*IterationReport, error) {
	c.iterMu.Lock()
	defer c.iterMu.Unlock()

	report := &IterationReport{
		ID:        uuid.New().String(),
		StartedAt: time.Now(),
	}

	assets, err := c.source.GetHoldings(ctx, c.cfg.AveragingWindow)
	if err != nil {
		c.log.Error().Err(err).Msg("Failed to fetch holdings")
		if c.events != nil {
			c.events.EmitError(events.HoldingsFetchFailed, moduleName, err, map[string]interface{}{
				"iteration_id": report.ID,
			})
		}
		return nil, fmt.Errorf("failed to fetch holdings: %w", err)
	}

	assets = c.dedupe(assets)
	report.Assets = len(assets)
	report.Removed = c.removeAbsent(assets)

	c.trackBalance(assets, report)

	tasks := make([]task, 0, len(assets))
	for _, asset := range assets {
		tasks = append(tasks, task{asset: asset, state: c.floors[asset.Currency]})
	}

	for result := range workers.Stream(c.pool, tasks, func(t task) Result {
		return c.evaluator.Evaluate(ctx, t.asset, t.state)
	}) {
		c.reconcile(ctx, result, report)
		report.Results = append(report.Results, result)
	}

	// Lights are updated only after every sell has been issued
	c.updateIndicator(ctx, report)

	report.Duration = time.Since(report.StartedAt)
	c.publish(report)

	c.log.Info().
		Str("iteration_id", report.ID).
		Int("assets", report.Assets).
		Int("held", report.Held).
		Int("liquidated", report.Liquidated).
		Int("failed", report.Failed).
		Int("skipped", report.Skipped).
		Int("removed", report.Removed).
		Dur("duration", report.Duration).
		Msg("Iteration completed")

	if c.events != nil {
		c.events.EmitTyped(moduleName, &events.IterationCompletedData{
			IterationID: report.ID,
			Assets:      report.Assets,
			Held:        report.Held,
			Liquidated:  report.Liquidated,
			Failed:      report.Failed,
			Skipped:     report.Skipped,
			Removed:     report.Removed,
			Balance:     report.Balance,
			Baseline:    report.Baseline,
			DurationMs:  report.Duration.Milliseconds(),
		})
	}

	return report, nil
}

// Floors returns a copy of the floor map as of the last completed iteration
func (c *Controller) Floors() map[string]FloorState {
	c.viewMu.RLock()
	defer c.viewMu.RUnlock()

	out := make(map[string]FloorState, len(c.view))
	for k, v := range c.view {
		out[k] = v
	}
	return out
}

// LastReport returns the report of the last completed iteration, or nil
func (c *Controller) LastReport() *IterationReport {
	c.viewMu.RLock()
	defer c.viewMu.RUnlock()

	if c.lastReport == nil {
		return nil
	}
	r := *c.lastReport
	r.Results = nil
	return &r
}

type task struct {
	asset domain.AssetSnapshot
	state FloorState
}

func (c *Controller) dedupe(assets []domain.AssetSnapshot) []domain.AssetSnapshot {
	seen := make(map[string]bool, len(assets))
	out := assets[:0:0]
	for _, asset := range assets {
		if seen[asset.Currency] {
			c.log.Warn().Str("currency", asset.Currency).Msg("Duplicate currency in holdings, ignoring repeat")
			continue
		}
		seen[asset.Currency] = true
		out = append(out, asset)
	}
	return out
}

// removeAbsent forgets currencies that are no longer held
func (c *Controller) removeAbsent(assets []domain.AssetSnapshot) int {
	present := make(map[string]bool, len(assets))
	for _, asset := range assets {
		present[asset.Currency] = true
	}

	removed := 0
	for currency := range c.floors {
		if !present[currency] {
			delete(c.floors, currency)
			removed++
			c.log.Info().Str("currency", currency).Msg("Currency no longer held, floor removed")
		}
	}
	return removed
}

func (c *Controller) reconcile(ctx context.Context, result Result, report *IterationReport) {
	currency := result.Currency()

	switch result.Action {
	case ActionHold:
		report.Held++
		c.floors[currency] = result.State
		c.emitFloorRaised(result)

	case ActionLiquidated:
		report.Liquidated++
		delete(c.floors, currency)
		c.recordAttempt(ctx, result)

	case ActionLiquidationFailed:
		report.Failed++
		if c.cfg.RetainFloorOnFailedSell {
			c.floors[currency] = result.State
		} else {
			delete(c.floors, currency)
		}
		c.recordAttempt(ctx, result)

	case ActionSkipped:
		report.Skipped++
	}
}

func (c *Controller) emitFloorRaised(result Result) {
	if c.events == nil {
		return
	}
	if result.Previous.Floor.Valid && result.State.Floor.Value <= result.Previous.Floor.Value {
		return
	}

	data := &events.FloorRaisedData{
		Currency: result.Currency(),
		NewFloor: result.State.Floor.Value,
		Price:    result.Asset.Price,
	}
	if result.Previous.Floor.Valid {
		old := result.Previous.Floor.Value
		data.OldFloor = &old
	}
	c.events.EmitTyped(moduleName, data)
}

func (c *Controller) recordAttempt(ctx context.Context, result Result) {
	attempt := domain.LiquidationAttempt{
		Currency:  result.Currency(),
		Quantity:  result.Asset.Available,
		Price:     result.Asset.Price,
		Floor:     result.State.Floor.Value,
		Err:       result.Err,
		Timestamp: time.Now(),
	}

	if c.recorder != nil {
		if err := c.recorder.RecordLiquidation(ctx, attempt); err != nil {
			c.log.Error().Err(err).Str("currency", attempt.Currency).Msg("Failed to record liquidation")
		}
	}

	if c.events != nil {
		data := &events.LiquidationData{
			Currency: attempt.Currency,
			Quantity: attempt.Quantity,
			Price:    attempt.Price,
			Floor:    attempt.Floor,
		}
		if attempt.Err != nil {
			data.Error = attempt.Err.Error()
		}
		c.events.EmitTyped(moduleName, data)
	}
}

// trackBalance computes the portfolio balance for the report.
// The first positive balance becomes the baseline.
func (c *Controller) trackBalance(assets []domain.AssetSnapshot, report *IterationReport) {
	balance := 0.0
	for _, asset := range assets {
		if asset.Price > 0 {
			balance += asset.Value()
		}
	}

	if !c.baseline.Valid && balance > 0 {
		c.baseline = Some(balance)
	}

	report.Balance = balance
	report.Baseline = c.baseline.Value

	c.log.Info().
		Float64("balance", balance).
		Float64("baseline", c.baseline.Value).
		Msg("Portfolio balance")
}

// updateIndicator pushes the performance to the indicator, bounded by indicatorTimeout
func (c *Controller) updateIndicator(ctx context.Context, report *IterationReport) {
	if c.indicator == nil || !c.baseline.Valid {
		return
	}

	indicatorCtx, cancel := context.WithTimeout(ctx, indicatorTimeout)
	defer cancel()

	if err := c.indicator.SetPerformance(indicatorCtx, report.Balance, report.Baseline); err != nil {
		c.log.Warn().Err(err).Msg("Failed to update performance indicator")
	}
}

func (c *Controller) publish(report *IterationReport) {
	view := make(map[string]FloorState, len(c.floors))
	for k, v := range c.floors {
		view[k] = v
	}

	c.viewMu.Lock()
	c.view = view
	c.lastReport = report
	c.viewMu.Unlock()
}
