package server

import (
	"context"
	"time"

	"github.com/aristath/trailstop/internal/clients/tradernet"
	"github.com/aristath/trailstop/internal/events"
	"github.com/rs/zerolog"
)

// BrokerHealth reports broker connectivity
type BrokerHealth interface {
	HealthCheck(ctx context.Context) *tradernet.HealthCheckResult
}

// StatusMonitor periodically checks broker connectivity and emits an event on changes
type StatusMonitor struct {
	eventManager *events.Manager
	broker       BrokerHealth
	log          zerolog.Logger

	// nil until the first check
	lastConnected *bool
}

// NewStatusMonitor creates a new status monitor
func NewStatusMonitor(eventManager *events.Manager, broker BrokerHealth, log zerolog.Logger) *StatusMonitor {
	return &StatusMonitor{
		eventManager: eventManager,
		broker:       broker,
		log:          log.With().Str("component", "status_monitor").Logger(),
	}
}

// Start begins periodic status monitoring until ctx is cancelled
func (m *StatusMonitor) Start(ctx context.Context, interval time.Duration) {
	go m.monitor(ctx, interval)
}

// monitor runs the periodic monitoring loop
func (m *StatusMonitor) monitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Do initial check
	m.check(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.check(ctx)
		}
	}
}

// check queries the broker and emits BROKER_STATUS_CHANGED when connectivity flips.
// The first check always emits so subscribers learn the initial state.
func (m *StatusMonitor) check(ctx context.Context) {
	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	result := m.broker.HealthCheck(checkCtx)
	if result == nil {
		return
	}

	if m.lastConnected != nil && *m.lastConnected == result.Connected {
		return
	}

	connected := result.Connected
	m.lastConnected = &connected

	if connected {
		m.log.Info().Msg("Broker connected")
	} else {
		m.log.Warn().Msg("Broker unreachable")
	}

	if m.eventManager != nil {
		m.eventManager.EmitTyped("status_monitor", &events.BrokerStatusData{
			Connected: result.Connected,
			Timestamp: result.Timestamp,
		})
	}
}
