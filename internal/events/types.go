// Package events provides event management functionality.
package events

import (
	"encoding/json"
	"time"
)

// EventType represents different event types
type EventType string

const (
	IterationCompleted   EventType = "ITERATION_COMPLETED"
	FloorRaised          EventType = "FLOOR_RAISED"
	LiquidationExecuted  EventType = "LIQUIDATION_EXECUTED"
	LiquidationFailed    EventType = "LIQUIDATION_FAILED"
	HoldingsFetchFailed  EventType = "HOLDINGS_FETCH_FAILED"
	LedgerBackupComplete EventType = "LEDGER_BACKUP_COMPLETE"
	BrokerStatusChanged  EventType = "BROKER_STATUS_CHANGED"
	ErrorOccurred        EventType = "ERROR_OCCURRED"
)

// AllEventTypes lists every event type a subscriber may ask for
var AllEventTypes = []EventType{
	IterationCompleted,
	FloorRaised,
	LiquidationExecuted,
	LiquidationFailed,
	HoldingsFetchFailed,
	LedgerBackupComplete,
	BrokerStatusChanged,
	ErrorOccurred,
}

// Event represents a system event
type Event struct {
	Type      EventType              `json:"type" msgpack:"type"`
	Timestamp time.Time              `json:"timestamp" msgpack:"timestamp"`
	Data      map[string]interface{} `json:"data" msgpack:"data"`
	Module    string                 `json:"module" msgpack:"module"`
}

// GetTypedData converts the Data map back to the typed EventData for the event type.
// Returns nil when the type is unknown or the data does not fit.
func (e *Event) GetTypedData() EventData {
	if e.Data == nil {
		return nil
	}

	var data EventData
	switch e.Type {
	case IterationCompleted:
		data = &IterationCompletedData{}
	case FloorRaised:
		data = &FloorRaisedData{}
	case LiquidationExecuted, LiquidationFailed:
		data = &LiquidationData{}
	case HoldingsFetchFailed, ErrorOccurred:
		data = &ErrorEventData{}
	case LedgerBackupComplete:
		data = &LedgerBackupData{}
	case BrokerStatusChanged:
		data = &BrokerStatusData{}
	default:
		return nil
	}

	if err := convertMapToStruct(e.Data, data); err != nil {
		return nil
	}
	return data
}

// convertMapToStruct converts a map[string]interface{} to a struct
func convertMapToStruct(m map[string]interface{}, v interface{}) error {
	jsonBytes, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return json.Unmarshal(jsonBytes, v)
}
