// cmd/seed bootstraps a fresh local database from config.SeedConfigPath: a
// handful of tenants and agents to develop against, each tenant granted
// every seeded agent. It talks to Postgres directly rather than through
// domain.Store, since the admin write surface this data would otherwise go
// through is an explicit out-of-scope stub (internal/httpapi's
// HandleAdminUnimplemented) — this tool exists precisely to fill that gap
// for local development.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"

	"agentrouter/internal/config"
	"agentrouter/internal/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := log.Init(cfg.LogLevel)
	log.SetGlobalLogger(logger)

	seed, err := config.LoadSeed(cfg.SeedConfigPath)
	if err != nil {
		logger.Error().Err(err).Msg("failed to load seed file")
		os.Exit(1)
	}

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error().Err(err).Msg("failed to connect to database")
		os.Exit(1)
	}
	defer pool.Close()

	if err := run(ctx, pool, logger, seed); err != nil {
		logger.Error().Err(err).Msg("seed failed")
		os.Exit(1)
	}

	logger.Info().Msg("seed complete")
}

func run(ctx context.Context, pool *pgxpool.Pool, logger *log.Logger, seed *config.SeedConfig) error {
	var modelID string
	if err := pool.QueryRow(ctx, `SELECT id FROM llm_provider_models WHERE active ORDER BY created_at LIMIT 1`).Scan(&modelID); err != nil {
		return fmt.Errorf("no active llm_provider_models row to bind seeded agents to: %w", err)
	}

	tenantIDs := make([]string, 0, len(seed.Tenants))
	for _, t := range seed.Tenants {
		var tenantID string
		err := pool.QueryRow(ctx, `
			INSERT INTO tenants (name, active)
			VALUES ($1, $2)
			ON CONFLICT (name) DO UPDATE SET active = EXCLUDED.active, updated_at = now()
			RETURNING id
		`, t.Name, t.Active).Scan(&tenantID)
		if err != nil {
			return fmt.Errorf("seed tenant %q: %w", t.Name, err)
		}
		tenantIDs = append(tenantIDs, tenantID)
		logger.Info().Str("tenant", t.Name).Msg("seeded tenant")
	}

	agentIDs := make([]string, 0, len(seed.Agents))
	for _, a := range seed.Agents {
		var agentID string
		err := pool.QueryRow(ctx, `
			INSERT INTO agent_specs (name, description, system_prompt, llm_provider_model_id, handler_class, active)
			VALUES ($1, $2, $3, $4, $5, true)
			ON CONFLICT (name) DO UPDATE SET
				description = EXCLUDED.description,
				system_prompt = EXCLUDED.system_prompt,
				handler_class = EXCLUDED.handler_class,
				updated_at = now()
			RETURNING id
		`, a.Name, a.Description, a.SystemPrompt, modelID, a.HandlerClass).Scan(&agentID)
		if err != nil {
			return fmt.Errorf("seed agent %q: %w", a.Name, err)
		}
		agentIDs = append(agentIDs, agentID)

		for priority, toolName := range a.Tools {
			var toolID string
			if err := pool.QueryRow(ctx, `SELECT id FROM tool_specs WHERE name = $1`, toolName).Scan(&toolID); err != nil {
				return fmt.Errorf("seed agent %q: tool %q not found: %w", a.Name, toolName, err)
			}
			if _, err := pool.Exec(ctx, `
				INSERT INTO agent_tools (agent_spec_id, tool_spec_id, priority)
				VALUES ($1, $2, $3)
				ON CONFLICT (agent_spec_id, tool_spec_id) DO UPDATE SET priority = EXCLUDED.priority
			`, agentID, toolID, priority*10); err != nil {
				return fmt.Errorf("seed agent %q: grant tool %q: %w", a.Name, toolName, err)
			}
		}
		logger.Info().Str("agent", a.Name).Msg("seeded agent")
	}

	for _, tenantID := range tenantIDs {
		for _, agentID := range agentIDs {
			if _, err := pool.Exec(ctx, `
				INSERT INTO tenant_agent_grants (tenant_id, agent_spec_id, enabled)
				VALUES ($1, $2, true)
				ON CONFLICT (tenant_id, agent_spec_id) DO UPDATE SET enabled = true
			`, tenantID, agentID); err != nil {
				return fmt.Errorf("grant agent to tenant: %w", err)
			}
		}
	}

	return nil
}
