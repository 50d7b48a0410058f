package di

import (
	"fmt"

	"github.com/aristath/trailstop/internal/config"
	"github.com/aristath/trailstop/internal/database"
	"github.com/aristath/trailstop/internal/reliability"
	"github.com/aristath/trailstop/internal/scheduler"
	"github.com/rs/zerolog"
)

// RegisterJobs registers all cron jobs with the container's scheduler
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) (*JobInstances, error) {
	if container == nil || container.Scheduler == nil {
		return nil, fmt.Errorf("container scheduler not initialized")
	}

	instances := &JobInstances{}

	instances.LedgerSummary = scheduler.NewLedgerSummaryJob(container.LiquidationRepo, cfg.SummaryWindow, log)
	if err := container.Scheduler.AddJob(cfg.SummaryCron, instances.LedgerSummary); err != nil {
		return nil, fmt.Errorf("failed to register ledger summary job: %w", err)
	}

	instances.Maintenance = reliability.NewMaintenanceJob(
		map[string]*database.DB{"ledger": container.LedgerDB},
		cfg.DataDir,
		log,
	)
	if err := container.Scheduler.AddJob(cfg.MaintenanceCron, instances.Maintenance); err != nil {
		return nil, fmt.Errorf("failed to register maintenance job: %w", err)
	}

	if container.R2BackupService != nil {
		instances.Backup = reliability.NewBackupJob(container.R2BackupService, cfg.Backup.RetentionDays, log)
		if err := container.Scheduler.AddJob(cfg.Backup.Cron, instances.Backup); err != nil {
			return nil, fmt.Errorf("failed to register backup job: %w", err)
		}
	}

	log.Info().Bool("backups", instances.Backup != nil).Msg("Jobs registered")

	return instances, nil
}
