package stoploss

// FloorState is the tracked state of one currency.
// Once set, Floor never decreases until the state is deleted.
type FloorState struct {
	Floor     Price // Current stop price
	LastPrice Price // Price observed on the previous evaluation
}

// Tracked reports whether a floor has been established
func (s FloorState) Tracked() bool {
	return s.Floor.Valid
}

// FloorTracker raises floors following a fixed sell threshold
type FloorTracker struct {
	SellThreshold float64 // Fraction below the trailing price at which the floor sits
}

// NewFloorTracker creates a floor tracker
func NewFloorTracker(sellThreshold float64) FloorTracker {
	return FloorTracker{SellThreshold: sellThreshold}
}

// Update applies one price observation and returns the new state.
// The floor moves to price*(1-threshold) when no floor exists yet, when the price
// rose since the last observation, or when the floor trails the price by more than
// the threshold. It never moves down.
func (t FloorTracker) Update(state FloorState, price float64) FloorState {
	return FloorState{
		Floor:     RaiseFloor(state.Floor, state.LastPrice, price, t.SellThreshold),
		LastPrice: Some(price),
	}
}

// RaiseFloor is the floor update rule for a single observation
func RaiseFloor(oldFloor, oldPrice Price, newPrice, sellThreshold float64) Price {
	candidate := newPrice * (1 - sellThreshold)

	switch {
	case !oldFloor.Valid:
		return Some(candidate)
	case !oldPrice.Valid || newPrice > oldPrice.Value:
		return oldFloor.Max(Some(candidate))
	case newPrice-oldFloor.Value > newPrice*sellThreshold:
		return oldFloor.Max(Some(candidate))
	}
	return oldFloor
}
