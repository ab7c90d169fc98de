package catalog_test

import (
	"context"
	"encoding/json"
	"testing"

	"agentrouter/internal/catalog"
	"agentrouter/internal/domain"
	"agentrouter/internal/log"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type registryStubStore struct {
	domain.Store
	agentTools []domain.AgentTool
	grants     map[uuid.UUID]bool
	specs      map[uuid.UUID]*domain.ToolSpec

	lastLimit int
}

func (s *registryStubStore) ListAgentTools(ctx context.Context, agentID uuid.UUID, limit int) ([]domain.AgentTool, error) {
	s.lastLimit = limit
	return s.agentTools, nil
}

func (s *registryStubStore) IsToolGranted(ctx context.Context, tenantID, toolID uuid.UUID) (bool, error) {
	return s.grants[toolID], nil
}

func (s *registryStubStore) GetToolSpec(ctx context.Context, id uuid.UUID) (*domain.ToolSpec, error) {
	return s.specs[id], nil
}

func TestToolRegistryLoadToolsForAgent(t *testing.T) {
	logger := log.Init("debug")
	agentID := uuid.New()
	tenantID := uuid.New()
	grantedTool := uuid.New()
	ungrantedTool := uuid.New()

	schema, err := json.Marshal(map[string]any{
		"type":       "object",
		"properties": map[string]any{"query": map[string]any{"type": "string"}},
		"required":   []string{"query"},
	})
	require.NoError(t, err)

	store := &registryStubStore{
		agentTools: []domain.AgentTool{
			{AgentSpecID: agentID, ToolSpecID: grantedTool, Priority: 1},
			{AgentSpecID: agentID, ToolSpecID: ungrantedTool, Priority: 2},
		},
		grants: map[uuid.UUID]bool{grantedTool: true, ungrantedTool: false},
		specs: map[uuid.UUID]*domain.ToolSpec{
			grantedTool: {
				ID:               grantedTool,
				Name:             "search_docs",
				Kind:             domain.ToolKindHTTPGet,
				EndpointTemplate: "https://example.com/search",
				InputSchema:      schema,
				Active:           true,
			},
		},
	}

	registry := catalog.NewToolRegistry(store, nil, logger, 5)

	t.Run("only grants surface as callable tools", func(t *testing.T) {
		tools, err := registry.LoadToolsForAgent(context.Background(), agentID, tenantID)
		require.NoError(t, err)
		require.Len(t, tools, 1)
		assert.Equal(t, "search_docs", tools[0].Name())
	})

	t.Run("the configured priority limit reaches the store, not a hardcoded 0", func(t *testing.T) {
		_, err := registry.LoadToolsForAgent(context.Background(), agentID, tenantID)
		require.NoError(t, err)
		assert.Equal(t, 5, store.lastLimit)
	})

	t.Run("a non-positive priority limit falls back to the spec default of 5", func(t *testing.T) {
		defaultRegistry := catalog.NewToolRegistry(store, nil, logger, 0)
		_, err := defaultRegistry.LoadToolsForAgent(context.Background(), agentID, tenantID)
		require.NoError(t, err)
		assert.Equal(t, 5, store.lastLimit)
	})

	t.Run("a tool with an invalid schema is skipped, not fatal", func(t *testing.T) {
		badToolID := uuid.New()
		badStore := &registryStubStore{
			agentTools: []domain.AgentTool{{AgentSpecID: agentID, ToolSpecID: badToolID, Priority: 1}},
			grants:     map[uuid.UUID]bool{badToolID: true},
			specs: map[uuid.UUID]*domain.ToolSpec{
				badToolID: {ID: badToolID, Name: "broken", Active: true, InputSchema: []byte(`not json`)},
			},
		}
		registry := catalog.NewToolRegistry(badStore, nil, logger, 5)
		tools, err := registry.LoadToolsForAgent(context.Background(), agentID, tenantID)
		require.NoError(t, err)
		assert.Empty(t, tools)
	})
}
