package di

import (
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/aristath/runway/internal/config"
	"github.com/aristath/runway/internal/database"
)

// InitializeDatabases opens results.db and applies its schema
func InitializeDatabases(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{}

	// results.db - latest AggregateResult per scenario
	resultsDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "results.db"),
		Profile: database.ProfileStandard,
		Name:    "results",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize results database: %w", err)
	}
	if err := resultsDB.Migrate(); err != nil {
		resultsDB.Close()
		return nil, fmt.Errorf("failed to migrate results database: %w", err)
	}
	container.ResultsDB = resultsDB

	log.Info().Str("path", resultsDB.Path()).Msg("Databases initialized")
	return container, nil
}
