package events

// EventData is the interface that all event data types must implement
type EventData interface {
	// EventType returns the event type this data is associated with
	EventType() EventType
}

// IterationCompletedData summarises one controller iteration
type IterationCompletedData struct {
	IterationID string  `json:"iteration_id"`
	Assets      int     `json:"assets"`
	Held        int     `json:"held"`
	Liquidated  int     `json:"liquidated"`
	Failed      int     `json:"failed"`
	Skipped     int     `json:"skipped"`
	Removed     int     `json:"removed"`
	Balance     float64 `json:"balance"`
	Baseline    float64 `json:"baseline"`
	DurationMs  int64   `json:"duration_ms"`
}

// EventType returns the event type for IterationCompletedData
func (d *IterationCompletedData) EventType() EventType {
	return IterationCompleted
}

// FloorRaisedData is emitted whenever a currency's floor moves up or is first set
type FloorRaisedData struct {
	Currency string   `json:"currency"`
	OldFloor *float64 `json:"old_floor,omitempty"`
	NewFloor float64  `json:"new_floor"`
	Price    float64  `json:"price"`
}

// EventType returns the event type for FloorRaisedData
func (d *FloorRaisedData) EventType() EventType {
	return FloorRaised
}

// LiquidationData describes a sell-all attempt
type LiquidationData struct {
	Currency string  `json:"currency"`
	Quantity float64 `json:"quantity"`
	Price    float64 `json:"price"`
	Floor    float64 `json:"floor"`
	Error    string  `json:"error,omitempty"`
}

// EventType returns the event type for LiquidationData
func (d *LiquidationData) EventType() EventType {
	if d.Error != "" {
		return LiquidationFailed
	}
	return LiquidationExecuted
}

// LedgerBackupData is emitted after the ledger database was uploaded
type LedgerBackupData struct {
	Key       string `json:"key"`
	SizeBytes int64  `json:"size_bytes"`
}

// EventType returns the event type for LedgerBackupData
func (d *LedgerBackupData) EventType() EventType {
	return LedgerBackupComplete
}

// BrokerStatusData is emitted when broker connectivity flips
type BrokerStatusData struct {
	Connected bool   `json:"connected"`
	Timestamp string `json:"timestamp"`
}

// EventType returns the event type for BrokerStatusData
func (d *BrokerStatusData) EventType() EventType {
	return BrokerStatusChanged
}

// ErrorEventData contains data for error events
type ErrorEventData struct {
	Error   string                 `json:"error"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// EventType returns the event type for ErrorEventData
func (d *ErrorEventData) EventType() EventType {
	return ErrorOccurred
}
