// Package catalog implements the database-backed LLMClientManager and
// ToolRegistry: the layer that turns catalog rows and encrypted credentials
// into live, cached domain.ChatClient and domain.CallableTool instances.
package catalog

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"agentrouter/internal/domain"
	"agentrouter/internal/llm"
	"agentrouter/internal/llm/anthropic"
	"agentrouter/internal/llm/mocktest"
	"agentrouter/internal/llm/openai"
	"agentrouter/internal/log"
	"agentrouter/internal/security"
)

const (
	openAIBaseURL     = "https://api.openai.com/v1"
	openRouterBaseURL = "https://openrouter.ai/api/v1"
	geminiBaseURL     = "https://generativelanguage.googleapis.com/v1beta/openai/"
)

// ClientManager implements domain.LLMClientManager. Clients are cached per
// tenant, keyed off the tenant's (llm_provider_model_id, binding updated_at)
// pair so a credential rotation invalidates the cache without an explicit
// call. Cold construction is singleflight-guarded so concurrent requests for
// the same tenant don't decrypt and dial the provider twice.
type ClientManager struct {
	store  domain.Store
	cipher *security.CredentialCipher
	logger *log.Logger

	mu      sync.RWMutex
	clients map[string]domain.ChatClient

	group singleflight.Group
}

// NewClientManager builds a ClientManager backed by store for catalog/
// binding reads and cipher for decrypting binding credentials.
func NewClientManager(store domain.Store, cipher *security.CredentialCipher, logger *log.Logger) *ClientManager {
	return &ClientManager{
		store:   store,
		cipher:  cipher,
		logger:  logger,
		clients: make(map[string]domain.ChatClient),
	}
}

// GetClient resolves tenantID to a live chat client, building and caching
// one on first use.
func (m *ClientManager) GetClient(ctx context.Context, tenantID uuid.UUID) (domain.ChatClient, error) {
	binding, err := m.store.GetTenantLLMBinding(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("%w: get tenant llm binding: %v", domain.ErrStore, err)
	}
	if binding == nil {
		return nil, fmt.Errorf("%w: tenant %s has no LLM binding", domain.ErrConfigMissing, tenantID)
	}

	cacheKey := fmt.Sprintf("%s:%s:%s", tenantID, binding.LLMProviderModelID, binding.UpdatedAt)

	m.mu.RLock()
	if client, ok := m.clients[cacheKey]; ok {
		m.mu.RUnlock()
		return client, nil
	}
	m.mu.RUnlock()

	result, err, _ := m.group.Do(cacheKey, func() (any, error) {
		return m.buildClient(ctx, tenantID, binding)
	})
	if err != nil {
		return nil, err
	}

	client := result.(domain.ChatClient)

	m.mu.Lock()
	m.clients[cacheKey] = client
	m.mu.Unlock()

	return client, nil
}

// InvalidateTenant drops every cached client whose key is scoped to
// tenantID, forcing the next GetClient to rebuild from the current binding.
func (m *ClientManager) InvalidateTenant(tenantID uuid.UUID) {
	prefix := tenantID.String() + ":"
	m.mu.Lock()
	defer m.mu.Unlock()
	for key := range m.clients {
		if strings.HasPrefix(key, prefix) {
			delete(m.clients, key)
		}
	}
}

func (m *ClientManager) buildClient(ctx context.Context, tenantID uuid.UUID, binding *domain.TenantLLMBinding) (domain.ChatClient, error) {
	model, err := m.store.GetLLMProviderModel(ctx, binding.LLMProviderModelID)
	if err != nil {
		return nil, fmt.Errorf("%w: get llm provider model: %v", domain.ErrStore, err)
	}
	if model == nil || !model.Active {
		return nil, fmt.Errorf("%w: llm provider model %s is unknown or inactive", domain.ErrProviderUnknown, binding.LLMProviderModelID)
	}

	plaintext, err := m.cipher.Open(binding.APIKeyCiphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrConfigDecryptFailure, err)
	}
	credential := string(plaintext)

	logger := m.logger.WithTenant(tenantID.String())

	switch model.Provider {
	case "openai":
		return openai.NewProvider(credential, openAIBaseURL, model.ModelName, "openai", logger), nil
	case "openrouter":
		return openai.NewProvider(credential, openRouterBaseURL, model.ModelName, "openrouter", logger), nil
	case "gemini":
		return openai.NewProvider(credential, geminiBaseURL, model.ModelName, "gemini", logger), nil
	case "anthropic":
		return anthropic.NewProvider(credential, model.ModelName, logger)
	case "bedrock":
		accessKeyID, secretAccessKey, region, err := splitBedrockCredential(credential)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrConfigDecryptFailure, err)
		}
		return llm.NewBedrockProvider(accessKeyID, secretAccessKey, region, model.ModelName, logger)
	case "mock":
		return mocktest.NewProvider(model.ModelName, logger), nil
	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrProviderUnknown, model.Provider)
	}
}

// splitBedrockCredential parses the "accessKeyID:secretAccessKey:region"
// shape stored in a Bedrock binding's ciphertext.
func splitBedrockCredential(credential string) (accessKeyID, secretAccessKey, region string, err error) {
	parts := strings.SplitN(credential, ":", 3)
	if len(parts) < 2 {
		return "", "", "", fmt.Errorf("bedrock credential must be \"accessKeyID:secretAccessKey[:region]\"")
	}
	accessKeyID, secretAccessKey = parts[0], parts[1]
	if len(parts) == 3 {
		region = parts[2]
	}
	if accessKeyID == "" || secretAccessKey == "" {
		return "", "", "", fmt.Errorf("bedrock credential missing access key or secret key")
	}
	return accessKeyID, secretAccessKey, region, nil
}
