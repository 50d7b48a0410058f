package di

import (
	"fmt"
	"path/filepath"

	"github.com/aristath/trailstop/internal/config"
	"github.com/aristath/trailstop/internal/database"
	"github.com/rs/zerolog"
)

// InitializeDatabases opens the ledger database and applies its schema
func InitializeDatabases(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{}

	// Ledger - liquidation audit trail (maximum safety profile)
	ledgerDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "ledger.db"),
		Profile: database.ProfileLedger,
		Name:    "ledger",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize ledger database: %w", err)
	}

	if err := ledgerDB.Migrate(); err != nil {
		ledgerDB.Close()
		return nil, fmt.Errorf("failed to migrate ledger database: %w", err)
	}

	container.LedgerDB = ledgerDB

	log.Info().Str("path", ledgerDB.Path()).Msg("Ledger database initialized")

	return container, nil
}
