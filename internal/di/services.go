package di

import (
	"context"
	"fmt"

	"github.com/aristath/trailstop/internal/clients/tradernet"
	"github.com/aristath/trailstop/internal/config"
	"github.com/aristath/trailstop/internal/evaluation/workers"
	"github.com/aristath/trailstop/internal/events"
	"github.com/aristath/trailstop/internal/modules/display"
	"github.com/aristath/trailstop/internal/modules/ledger"
	ledgerhandlers "github.com/aristath/trailstop/internal/modules/ledger/handlers"
	"github.com/aristath/trailstop/internal/modules/stoploss"
	"github.com/aristath/trailstop/internal/reliability"
	"github.com/aristath/trailstop/internal/scheduler"
	"github.com/rs/zerolog"
)

// InitializeServices creates clients, repositories and services in dependency order
func InitializeServices(container *Container, cfg *config.Config, log zerolog.Logger) error {
	if container == nil {
		return fmt.Errorf("container cannot be nil")
	}

	// ==========================================
	// STEP 1: Event system
	// ==========================================
	container.EventBus = events.NewBus(log)
	container.EventManager = events.NewManager(container.EventBus, log)

	// ==========================================
	// STEP 2: Broker
	// ==========================================
	container.TradernetClient = tradernet.NewClient(
		cfg.Tradernet.APIKey,
		cfg.Tradernet.APISecret,
		cfg.Tradernet.BaseURL,
		log,
	)
	container.Broker = tradernet.NewTradernetAdapter(container.TradernetClient, cfg.Stop.PriceSource, log)

	// ==========================================
	// STEP 3: Ledger
	// ==========================================
	container.LiquidationRepo = ledger.NewRepository(container.LedgerDB.Conn(), log)
	container.LedgerHandler = ledgerhandlers.NewHandler(container.LiquidationRepo, log)

	// ==========================================
	// STEP 4: Trailing stop
	// ==========================================
	container.WorkerPool = workers.NewWorkerPool(cfg.Stop.Workers)
	container.Evaluator = stoploss.NewEvaluator(
		stoploss.NewFloorTracker(cfg.Stop.SellThreshold),
		cfg.Stop.MaxDelta,
		container.Broker,
		log,
	)

	window := cfg.Stop.AveragingWindow
	if cfg.Stop.PriceSource == config.PriceSourceInstant {
		window = 0
	}
	container.Controller = stoploss.NewController(
		stoploss.ControllerConfig{
			PollInterval:            cfg.Stop.PollInterval,
			AveragingWindow:         window,
			RetainFloorOnFailedSell: cfg.Stop.RetainFloorOnFailedSell,
		},
		container.Broker,
		container.Evaluator,
		container.WorkerPool,
		log,
	)
	container.Controller.SetLiquidationRecorder(container.LiquidationRepo)
	container.Controller.SetEventManager(container.EventManager)

	// ==========================================
	// STEP 5: Hue lights (optional)
	// ==========================================
	if cfg.Hue.Enabled() {
		scale, err := display.NewColorScale(
			cfg.Hue.DownColor,
			cfg.Hue.UpColor,
			cfg.Hue.NumColors,
			cfg.Hue.PerformanceThreshold,
		)
		if err != nil {
			return fmt.Errorf("failed to build hue color scale: %w", err)
		}
		container.HueLights = display.NewHueLights(cfg.Hue.BridgeIP, cfg.Hue.User, cfg.Hue.LightIDs, scale, log)
		container.Controller.SetPerformanceIndicator(container.HueLights)
		log.Info().Str("bridge", cfg.Hue.BridgeIP).Msg("Hue performance lights enabled")
	}

	// ==========================================
	// STEP 6: Ledger backups (optional)
	// ==========================================
	if cfg.Backup.Enabled() {
		r2Client, err := reliability.NewR2Client(context.Background(), reliability.R2Config{
			Bucket:          cfg.Backup.Bucket,
			Endpoint:        cfg.Backup.Endpoint,
			Region:          cfg.Backup.Region,
			AccessKeyID:     cfg.Backup.AccessKeyID,
			SecretAccessKey: cfg.Backup.SecretAccessKey,
		}, log)
		if err != nil {
			return fmt.Errorf("failed to create backup client: %w", err)
		}
		container.R2Client = r2Client
		container.R2BackupService = reliability.NewR2BackupService(
			r2Client,
			[]reliability.Snapshotter{container.LedgerDB},
			cfg.DataDir,
			cfg.Backup.Prefix,
			log,
		)
		container.R2BackupService.SetEventManager(container.EventManager)
	}

	// ==========================================
	// STEP 7: Scheduler
	// ==========================================
	container.Scheduler = scheduler.New(log)

	log.Info().
		Float64("sell_threshold", cfg.Stop.SellThreshold).
		Float64("max_delta", cfg.Stop.MaxDelta).
		Int("workers", container.WorkerPool.Size()).
		Str("price_source", cfg.Stop.PriceSource).
		Msg("Services initialized")

	return nil
}
