package anthropic_test

import (
	"context"
	"testing"

	"agentrouter/internal/domain"
	anthropicProvider "agentrouter/internal/llm/anthropic"
	"agentrouter/internal/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProviderRequiresAPIKey(t *testing.T) {
	logger := log.Init("debug")

	t.Run("rejects empty API key", func(t *testing.T) {
		_, err := anthropicProvider.NewProvider("", "claude-3-5-sonnet-20241022", logger)
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrConfigMissing)
	})

	t.Run("accepts a non-empty API key", func(t *testing.T) {
		p, err := anthropicProvider.NewProvider("sk-ant-fake-key", "claude-3-5-sonnet-20241022", logger)
		require.NoError(t, err)
		assert.Equal(t, "anthropic", p.Provider())
	})
}

func TestChatCompletionTransportError(t *testing.T) {
	t.Run("fake key against the real endpoint errors as ErrLLMTransport", func(t *testing.T) {
		logger := log.Init("debug")
		p, err := anthropicProvider.NewProvider("sk-ant-fake-key", "claude-3-5-sonnet-20241022", logger)
		require.NoError(t, err)

		req := &domain.ChatCompletionRequest{
			Messages: []domain.ChatMessage{
				{Role: domain.RoleSystem, Content: "You are a helpful assistant."},
				{Role: domain.RoleUser, Content: "Hello, world!"},
			},
			MaxTokens:   100,
			Temperature: 0.7,
		}

		_, err = p.ChatCompletion(context.Background(), req)
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrLLMTransport)
	})
}
