// Package ledger records liquidation attempts made by the trailing stop.
//
// The ledger is an audit trail only. Nothing in it is ever read back into
// the floor map, so a restart always starts with every floor unset.
package ledger

import "time"

// Status of a recorded liquidation
type Status string

const (
	StatusExecuted Status = "executed"
	StatusFailed   Status = "failed"
)

// Liquidation is one recorded sell-all attempt
type Liquidation struct {
	ID        string    `json:"id"`
	Currency  string    `json:"currency"`
	Quantity  float64   `json:"quantity"`
	Price     float64   `json:"price"`
	Floor     float64   `json:"floor"`
	Status    Status    `json:"status"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Summary aggregates liquidations over a period
type Summary struct {
	Since      time.Time `json:"since"`
	Executed   int       `json:"executed"`
	Failed     int       `json:"failed"`
	Currencies []string  `json:"currencies"` // Distinct currencies touched, sorted
}

// Total returns the number of attempts in the summary
func (s Summary) Total() int {
	return s.Executed + s.Failed
}
