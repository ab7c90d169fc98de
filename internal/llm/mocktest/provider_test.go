package mocktest_test

import (
	"context"
	"testing"

	"agentrouter/internal/domain"
	"agentrouter/internal/llm/mocktest"
	"agentrouter/internal/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockProviderChatCompletion(t *testing.T) {
	logger := log.Init("debug")
	provider := mocktest.NewProvider("mock-chat", logger)

	t.Run("returns text reply when no tool keyword present", func(t *testing.T) {
		req := &domain.ChatCompletionRequest{
			Messages: []domain.ChatMessage{
				{Role: domain.RoleUser, Content: "hello there"},
			},
		}
		resp, err := provider.ChatCompletion(context.Background(), req)
		require.NoError(t, err)
		assert.NotEmpty(t, resp.Message.Content)
		assert.Empty(t, resp.Message.ToolCalls)
	})

	t.Run("emits a tool call when a tool keyword is present and tools offered", func(t *testing.T) {
		req := &domain.ChatCompletionRequest{
			Messages: []domain.ChatMessage{
				{Role: domain.RoleUser, Content: "please search for invoices"},
			},
			Tools: []domain.ToolDefinition{
				{Type: "function", Function: &domain.ToolFunction{Name: "search_invoices"}},
			},
		}
		resp, err := provider.ChatCompletion(context.Background(), req)
		require.NoError(t, err)
		require.Len(t, resp.Message.ToolCalls, 1)
		assert.Equal(t, "search_invoices", resp.Message.ToolCalls[0].Function.Name)
	})

	t.Run("provider identifier is mock", func(t *testing.T) {
		assert.Equal(t, "mock", provider.Provider())
	})
}
