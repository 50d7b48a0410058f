package stoploss

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/aristath/trailstop/internal/domain"
	"github.com/rs/zerolog"
)

// ErrInvalidPrice is reported for snapshots without a positive price
var ErrInvalidPrice = errors.New("price must be positive")

// Action is the outcome of evaluating one asset
type Action int

const (
	// ActionHold keeps the position with an updated floor
	ActionHold Action = iota
	// ActionLiquidated means the floor was breached and the executor accepted the sell
	ActionLiquidated
	// ActionLiquidationFailed means the floor was breached and the executor failed
	ActionLiquidationFailed
	// ActionSkipped means the snapshot could not be evaluated
	ActionSkipped
)

func (a Action) String() string {
	switch a {
	case ActionHold:
		return "hold"
	case ActionLiquidated:
		return "liquidated"
	case ActionLiquidationFailed:
		return "liquidation_failed"
	case ActionSkipped:
		return "skipped"
	}
	return fmt.Sprintf("action(%d)", int(a))
}

// Result is what a worker hands back to the controller for one asset
type Result struct {
	Asset    domain.AssetSnapshot
	Previous FloorState // State the evaluation started from
	State    FloorState // State to store if the currency stays tracked
	Action   Action
	Err      error
}

// Currency returns the evaluated currency
func (r Result) Currency() string {
	return r.Asset.Currency
}

// Evaluator decides hold or liquidate for a single asset
type Evaluator struct {
	tracker  FloorTracker
	maxDelta float64
	executor domain.LiquidationExecutor
	log      zerolog.Logger
}

// NewEvaluator creates an evaluator. maxDelta bounds how close to the price a
// single price jump may lift the floor.
func NewEvaluator(tracker FloorTracker, maxDelta float64, executor domain.LiquidationExecutor, log zerolog.Logger) *Evaluator {
	return &Evaluator{
		tracker:  tracker,
		maxDelta: maxDelta,
		executor: executor,
		log:      log.With().Str("component", "stoploss_evaluator").Logger(),
	}
}

// Candidate returns the floor that applies to price given the known state,
// together with the state to keep when holding.
//
// The tracked floor follows the sell threshold. It is capped at price*(1-maxDelta)
// only when the price jumped more than maxDelta above the last observation, or when
// the threshold leaves no distance to the price at all. A zero threshold therefore
// reduces to floor = max(known floor, price*(1-maxDelta)).
func (e *Evaluator) Candidate(state FloorState, price float64) FloorState {
	tracked := e.tracker.Update(state, price)
	floor := tracked.Floor.Value

	spike := state.LastPrice.Valid && price > state.LastPrice.Value*(1+e.maxDelta)
	if spike || floor >= price {
		floor = math.Min(floor, price*(1-e.maxDelta))
	}

	return FloorState{
		Floor:     state.Floor.Max(Some(floor)),
		LastPrice: tracked.LastPrice,
	}
}

// Evaluate evaluates one asset against its known floor state. On a breach it calls
// the executor exactly once and does not retry.
func (e *Evaluator) Evaluate(ctx context.Context, asset domain.AssetSnapshot, state FloorState) Result {
	result := Result{Asset: asset, Previous: state, State: state}

	if !(asset.Price > 0) || math.IsInf(asset.Price, 0) {
		result.Action = ActionSkipped
		result.Err = fmt.Errorf("%s: %w (got %v)", asset.Currency, ErrInvalidPrice, asset.Price)
		e.log.Warn().Str("currency", asset.Currency).Float64("price", asset.Price).Msg("Skipping asset with invalid price")
		return result
	}

	next := e.Candidate(state, asset.Price)
	result.State = next

	e.log.Info().
		Str("currency", asset.Currency).
		Float64("floor", next.Floor.Value).
		Float64("price", asset.Price).
		Float64("delta_pct", math.Round((asset.Price/next.Floor.Value*100-100)*100)/100).
		Msg("Evaluated asset")

	if asset.Price > next.Floor.Value {
		result.Action = ActionHold
		return result
	}

	e.log.Warn().
		Str("currency", asset.Currency).
		Float64("floor", next.Floor.Value).
		Float64("price", asset.Price).
		Msg("Floor breached, selling entire position")

	if err := e.executor.SellAll(ctx, asset.Currency); err != nil {
		e.log.Error().Err(err).Str("currency", asset.Currency).Msg("Liquidation failed")
		result.Action = ActionLiquidationFailed
		result.Err = fmt.Errorf("sell all %s: %w", asset.Currency, err)
		return result
	}

	result.Action = ActionLiquidated
	return result
}
