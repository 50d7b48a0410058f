package events

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupEventManager() (*Manager, *Bus) {
	log := zerolog.Nop()
	bus := NewBus(log)
	return NewManager(bus, log), bus
}

func TestBus_SubscribeAndEmit(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	var received []*Event
	bus.Subscribe(FloorRaised, func(event *Event) {
		received = append(received, event)
	})

	bus.Emit(FloorRaised, "stoploss", map[string]interface{}{"currency": "BTC"})
	bus.Emit(IterationCompleted, "stoploss", nil)

	require.Len(t, received, 1)
	assert.Equal(t, FloorRaised, received[0].Type)
	assert.Equal(t, "stoploss", received[0].Module)
	assert.Equal(t, "BTC", received[0].Data["currency"])
	assert.False(t, received[0].Timestamp.IsZero())
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	count := 0
	id := bus.Subscribe(FloorRaised, func(*Event) { count++ })
	bus.Subscribe(LiquidationFailed, func(*Event) {})

	bus.Emit(FloorRaised, "test", nil)
	bus.Unsubscribe(id)
	bus.Emit(FloorRaised, "test", nil)

	assert.Equal(t, 1, count)
}

func TestBus_HandlerPanicDoesNotStopDelivery(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	delivered := false
	bus.Subscribe(ErrorOccurred, func(*Event) { panic("boom") })
	bus.Subscribe(ErrorOccurred, func(*Event) { delivered = true })

	assert.NotPanics(t, func() {
		bus.Emit(ErrorOccurred, "test", nil)
	})
	assert.True(t, delivered)
}

func TestManager_EmitTyped(t *testing.T) {
	manager, bus := setupEventManager()

	var got *Event
	bus.Subscribe(LiquidationExecuted, func(event *Event) { got = event })

	manager.EmitTyped("stoploss", &LiquidationData{
		Currency: "ETH",
		Quantity: 2.5,
		Price:    1900,
		Floor:    1950,
	})

	require.NotNil(t, got)
	typed, ok := got.GetTypedData().(*LiquidationData)
	require.True(t, ok)
	assert.Equal(t, "ETH", typed.Currency)
	assert.Equal(t, 2.5, typed.Quantity)
	assert.Equal(t, 1950.0, typed.Floor)
}

func TestManager_EmitTypedFailedLiquidation(t *testing.T) {
	manager, bus := setupEventManager()

	var got *Event
	bus.Subscribe(LiquidationFailed, func(event *Event) { got = event })

	manager.EmitTyped("stoploss", &LiquidationData{Currency: "ETH", Error: "rejected"})

	require.NotNil(t, got)
	assert.Equal(t, LiquidationFailed, got.Type)
	assert.Equal(t, "rejected", got.Data["error"])
}

func TestManager_EmitError(t *testing.T) {
	manager, bus := setupEventManager()

	var got *Event
	bus.Subscribe(HoldingsFetchFailed, func(event *Event) { got = event })

	manager.EmitError(HoldingsFetchFailed, "stoploss", errors.New("timeout"), map[string]interface{}{"attempt": 1})

	require.NotNil(t, got)
	typed, ok := got.GetTypedData().(*ErrorEventData)
	require.True(t, ok)
	assert.Equal(t, "timeout", typed.Error)
	assert.Equal(t, float64(1), typed.Context["attempt"])
}

func TestGetTypedData(t *testing.T) {
	oldFloor := 96.0
	tests := []struct {
		name  string
		data  EventData
		check func(t *testing.T, typed EventData)
	}{
		{
			name: "floor raised",
			data: &FloorRaisedData{Currency: "BTC", OldFloor: &oldFloor, NewFloor: 99.84, Price: 104},
			check: func(t *testing.T, typed EventData) {
				d := typed.(*FloorRaisedData)
				require.NotNil(t, d.OldFloor)
				assert.Equal(t, 96.0, *d.OldFloor)
				assert.Equal(t, 99.84, d.NewFloor)
			},
		},
		{
			name: "iteration completed",
			data: &IterationCompletedData{IterationID: "abc", Assets: 3, Held: 2, Liquidated: 1},
			check: func(t *testing.T, typed EventData) {
				d := typed.(*IterationCompletedData)
				assert.Equal(t, "abc", d.IterationID)
				assert.Equal(t, 1, d.Liquidated)
			},
		},
		{
			name: "ledger backup",
			data: &LedgerBackupData{Key: "trailstop/ledger.db", SizeBytes: 4096},
			check: func(t *testing.T, typed EventData) {
				assert.Equal(t, int64(4096), typed.(*LedgerBackupData).SizeBytes)
			},
		},
		{
			name: "broker status",
			data: &BrokerStatusData{Connected: true, Timestamp: "2026-01-01T00:00:00Z"},
			check: func(t *testing.T, typed EventData) {
				assert.True(t, typed.(*BrokerStatusData).Connected)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := &Event{Type: tt.data.EventType(), Data: convertEventDataToMap(tt.data)}
			typed := event.GetTypedData()
			require.NotNil(t, typed)
			assert.Equal(t, tt.data.EventType(), typed.EventType())
			tt.check(t, typed)
		})
	}
}

func TestGetTypedData_Unknown(t *testing.T) {
	event := &Event{Type: "SOMETHING_ELSE", Data: map[string]interface{}{"a": 1}}
	assert.Nil(t, event.GetTypedData())

	event = &Event{Type: FloorRaised}
	assert.Nil(t, event.GetTypedData())
}
