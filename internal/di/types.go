/**
 * Package di provides dependency injection type definitions.
 *
 * This package defines the Container type which holds all application dependencies.
 * The Container is the single source of truth for all service instances and is
 * passed to main for startup and shutdown.
 */
package di

import (
	"github.com/aristath/trailstop/internal/clients/tradernet"
	"github.com/aristath/trailstop/internal/database"
	"github.com/aristath/trailstop/internal/evaluation/workers"
	"github.com/aristath/trailstop/internal/events"
	"github.com/aristath/trailstop/internal/modules/display"
	"github.com/aristath/trailstop/internal/modules/ledger"
	ledgerhandlers "github.com/aristath/trailstop/internal/modules/ledger/handlers"
	"github.com/aristath/trailstop/internal/modules/stoploss"
	"github.com/aristath/trailstop/internal/reliability"
	"github.com/aristath/trailstop/internal/scheduler"
)

/**
 * Container holds all dependencies for the application.
 *
 * Architecture:
 * - Databases: a single ledger database (liquidation audit trail, never read back into floors)
 * - Clients: Tradernet broker client and the holdings/liquidation adapter
 * - Services: floor evaluation, the iteration controller, optional Hue lights and backups
 * - Scheduler: cron jobs for summaries, maintenance and backups
 */
type Container struct {
	// Databases
	LedgerDB *database.DB // Liquidation audit trail

	// Clients - External API integrations
	TradernetClient *tradernet.Client           // Signed Tradernet API client
	Broker          *tradernet.TradernetAdapter // HoldingsSource + LiquidationExecutor

	// Repositories - Data access layer
	LiquidationRepo *ledger.Repository

	// Handlers
	LedgerHandler *ledgerhandlers.Handler

	// Events
	EventBus     *events.Bus
	EventManager *events.Manager

	// Services - Business logic layer
	WorkerPool *workers.WorkerPool
	Evaluator  *stoploss.Evaluator
	Controller *stoploss.Controller
	HueLights  *display.HueLights // nil when no bridge is configured

	// Reliability - nil when backups are disabled
	R2Client        *reliability.R2Client
	R2BackupService *reliability.R2BackupService

	// Scheduler - cron jobs
	Scheduler *scheduler.Scheduler
}

// Close releases the broker client and the ledger database
func (c *Container) Close() {
	if c.Broker != nil {
		c.Broker.Close()
	}
	if c.LedgerDB != nil {
		c.LedgerDB.Close()
	}
}

// JobInstances holds references to all registered jobs
type JobInstances struct {
	LedgerSummary scheduler.Job
	Maintenance   scheduler.Job
	Backup        scheduler.Job // nil when backups are disabled
}
