// Package domain holds the trailing stop domain types and collaborator interfaces.
package domain

import "time"

// AssetSnapshot is one held asset as reported by the holdings source for a single poll.
// Snapshots are produced fresh each poll and never mutated afterwards.
type AssetSnapshot struct {
	Currency  string  // Instrument identifier, unique within one poll
	Available float64 // Quantity available for sale
	Price     float64 // Current or time-averaged market price
}

// Value returns the position value in the quote currency
func (a AssetSnapshot) Value() float64 {
	return a.Available * a.Price
}

// LiquidationAttempt describes one sell-all attempt made by the trailing stop
type LiquidationAttempt struct {
	Currency  string
	Quantity  float64
	Price     float64 // Price that breached the floor
	Floor     float64 // Floor in force when the breach was detected
	Err       error   // nil when the executor reported success
	Timestamp time.Time
}

// Succeeded reports whether the executor accepted the sell
func (a LiquidationAttempt) Succeeded() bool {
	return a.Err == nil
}
