package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"

	"agentrouter/internal/config"
	"agentrouter/internal/log"
	"agentrouter/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := log.Init(cfg.LogLevel)
	log.SetGlobalLogger(logger)

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error().Err(err).Msg("failed to connect to database")
		os.Exit(1)
	}
	defer pool.Close()

	if err := store.Migrate(ctx, pool, logger); err != nil {
		logger.Error().Err(err).Msg("migration failed")
		os.Exit(2)
	}

	logger.Info().Msg("migrations applied")
}
