package catalog_test

import (
	"context"
	"testing"
	"time"

	"agentrouter/internal/catalog"
	"agentrouter/internal/domain"
	"agentrouter/internal/log"
	"agentrouter/internal/security"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubStore implements only what ClientManager touches; every other method
// panics if called, which would signal an unintended dependency.
type stubStore struct {
	domain.Store
	binding *domain.TenantLLMBinding
	model   *domain.LLMProviderModel
}

func (s *stubStore) GetTenantLLMBinding(ctx context.Context, tenantID uuid.UUID) (*domain.TenantLLMBinding, error) {
	return s.binding, nil
}

func (s *stubStore) GetLLMProviderModel(ctx context.Context, id uuid.UUID) (*domain.LLMProviderModel, error) {
	return s.model, nil
}

func sealedCredential(t *testing.T, cipher *security.CredentialCipher, plaintext string) []byte {
	t.Helper()
	sealed, err := cipher.Seal([]byte(plaintext))
	require.NoError(t, err)
	return sealed
}

func TestClientManagerResolvesProviderByModel(t *testing.T) {
	key, err := security.DecodeKey("01234567890123456789012345678901")
	require.NoError(t, err)
	cipher, err := security.NewCredentialCipher(key)
	require.NoError(t, err)

	logger := log.Init("debug")
	tenantID := uuid.New()
	modelID := uuid.New()

	t.Run("dispatches mock provider for a mock model", func(t *testing.T) {
		store := &stubStore{
			binding: &domain.TenantLLMBinding{
				ID:                 uuid.New(),
				TenantID:           tenantID,
				LLMProviderModelID: modelID,
				APIKeyCiphertext:   sealedCredential(t, cipher, "unused"),
				UpdatedAt:          time.Now(),
			},
			model: &domain.LLMProviderModel{
				ID:        modelID,
				Provider:  "mock",
				ModelName: "mock-chat",
				Active:    true,
			},
		}

		manager := catalog.NewClientManager(store, cipher, logger)
		client, err := manager.GetClient(context.Background(), tenantID)
		require.NoError(t, err)
		assert.Equal(t, "mock", client.Provider())
	})

	t.Run("caches the client across repeated calls", func(t *testing.T) {
		store := &stubStore{
			binding: &domain.TenantLLMBinding{
				ID:                 uuid.New(),
				TenantID:           tenantID,
				LLMProviderModelID: modelID,
				APIKeyCiphertext:   sealedCredential(t, cipher, "unused"),
				UpdatedAt:          time.Now(),
			},
			model: &domain.LLMProviderModel{
				ID:        modelID,
				Provider:  "mock",
				ModelName: "mock-chat",
				Active:    true,
			},
		}

		manager := catalog.NewClientManager(store, cipher, logger)
		first, err := manager.GetClient(context.Background(), tenantID)
		require.NoError(t, err)
		second, err := manager.GetClient(context.Background(), tenantID)
		require.NoError(t, err)
		assert.Same(t, first, second)
	})

	t.Run("rejects an inactive model", func(t *testing.T) {
		store := &stubStore{
			binding: &domain.TenantLLMBinding{
				ID:                 uuid.New(),
				TenantID:           tenantID,
				LLMProviderModelID: modelID,
				APIKeyCiphertext:   sealedCredential(t, cipher, "unused"),
				UpdatedAt:          time.Now(),
			},
			model: &domain.LLMProviderModel{
				ID:       modelID,
				Provider: "mock",
				Active:   false,
			},
		}

		manager := catalog.NewClientManager(store, cipher, logger)
		_, err := manager.GetClient(context.Background(), tenantID)
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrProviderUnknown)
	})

	t.Run("unknown binding produces ErrConfigMissing", func(t *testing.T) {
		store := &stubStore{binding: nil}
		manager := catalog.NewClientManager(store, cipher, logger)
		_, err := manager.GetClient(context.Background(), tenantID)
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrConfigMissing)
	})
}
