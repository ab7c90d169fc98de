package catalog

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"golang.org/x/sync/singleflight"

	"agentrouter/internal/domain"
	"agentrouter/internal/log"
)

// ToolRegistry implements domain.ToolRegistry: for one (agent, tenant) pair
// it resolves the agent's priority-ordered tool list, checks each tool
// against the tenant's grants, compiles and caches its input schema, and
// wraps it in the domain.CallableTool kind its ToolSpec.Kind calls for.
type ToolRegistry struct {
	store         domain.Store
	db            *pgxpool.Pool
	logger        *log.Logger
	priorityLimit int

	mu      sync.RWMutex
	schemas map[uuid.UUID]*jsonschema.Schema

	group singleflight.Group
}

// NewToolRegistry builds a ToolRegistry. db backs the RAG tool kind's
// similarity search; store backs every catalog/grant lookup. priorityLimit
// is the top-K, by ascending priority, of an agent's tools loaded per call
// (spec's K=5); a non-positive value is treated as that default.
func NewToolRegistry(store domain.Store, db *pgxpool.Pool, logger *log.Logger, priorityLimit int) *ToolRegistry {
	if priorityLimit <= 0 {
		priorityLimit = 5
	}
	return &ToolRegistry{
		store:         store,
		db:            db,
		logger:        logger,
		priorityLimit: priorityLimit,
		schemas:       make(map[uuid.UUID]*jsonschema.Schema),
	}
}

// LoadToolsForAgent returns the permission-filtered, schema-validated
// callable tools for agentID on tenantID, in ascending priority order.
func (r *ToolRegistry) LoadToolsForAgent(ctx context.Context, agentID, tenantID uuid.UUID) ([]domain.CallableTool, error) {
	agentTools, err := r.store.ListAgentTools(ctx, agentID, r.priorityLimit)
	if err != nil {
		return nil, fmt.Errorf("%w: list agent tools: %v", domain.ErrStore, err)
	}

	tools := make([]domain.CallableTool, 0, len(agentTools))
	for _, at := range agentTools {
		granted, err := r.store.IsToolGranted(ctx, tenantID, at.ToolSpecID)
		if err != nil {
			return nil, fmt.Errorf("%w: check tool grant: %v", domain.ErrStore, err)
		}
		if !granted {
			continue
		}

		spec, err := r.store.GetToolSpec(ctx, at.ToolSpecID)
		if err != nil {
			return nil, fmt.Errorf("%w: get tool spec: %v", domain.ErrStore, err)
		}
		if spec == nil || !spec.Active {
			continue
		}

		schema, err := r.compiledSchema(*spec)
		if err != nil {
			r.logger.WithContext(ctx).Warn().Err(err).Str("tool", spec.Name).Msg("tool schema failed to compile, skipping")
			continue
		}

		tools = append(tools, r.buildTool(*spec, tenantID, schema))
	}

	return tools, nil
}

// InvalidateTenantTool drops a tool's compiled schema from cache, forcing
// recompilation on next use. Tool schemas are tenant-agnostic, but grants
// are re-checked on every LoadToolsForAgent call regardless.
func (r *ToolRegistry) InvalidateTenantTool(tenantID, toolID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.schemas, toolID)
}

func (r *ToolRegistry) compiledSchema(spec domain.ToolSpec) (*jsonschema.Schema, error) {
	r.mu.RLock()
	if schema, ok := r.schemas[spec.ID]; ok {
		r.mu.RUnlock()
		return schema, nil
	}
	r.mu.RUnlock()

	result, err, _ := r.group.Do(spec.ID.String(), func() (any, error) {
		schema, err := jsonschema.CompileString(spec.Name+".json", string(spec.InputSchema))
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", domain.ErrSchemaInvalid, spec.Name, err)
		}
		return schema, nil
	})
	if err != nil {
		return nil, err
	}

	schema := result.(*jsonschema.Schema)
	r.mu.Lock()
	r.schemas[spec.ID] = schema
	r.mu.Unlock()
	return schema, nil
}

// validateArgs rejects args that fail schema, wrapping the validator's
// message in domain.ErrSchemaInvalid so it reaches the LLM as a
// "schema_invalid" tool-error rather than an outbound call.
func validateArgs(schema *jsonschema.Schema, toolName string, args map[string]any) error {
	if schema == nil {
		return nil
	}
	if err := schema.Validate(args); err != nil {
		return fmt.Errorf("%w: %s: %v", domain.ErrSchemaInvalid, toolName, err)
	}
	return nil
}

func (r *ToolRegistry) buildTool(spec domain.ToolSpec, tenantID uuid.UUID, schema *jsonschema.Schema) domain.CallableTool {
	switch spec.Kind {
	case domain.ToolKindHTTPGet, domain.ToolKindHTTPPost:
		return newHTTPTool(spec, schema, r.logger)
	case domain.ToolKindRAG:
		return newRAGTool(spec, tenantID, schema, r.db, r.logger)
	default:
		return newStubTool(spec, schema, r.logger)
	}
}
