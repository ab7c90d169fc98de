// Package mocktest implements domain.ChatClient deterministically.
// catalog.ClientManager selects it for a model whose provider is "mock", so
// a chat turn can run locally without a live provider.
package mocktest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"agentrouter/internal/domain"
	"agentrouter/internal/log"
)

// Provider is a deterministic, test-only domain.ChatClient. It never makes
// network calls.
type Provider struct {
	logger    *log.Logger
	modelName string
}

// NewProvider creates a mock provider bound to a nominal model name, used
// only for response bookkeeping (AgentResult.LLMModel).
func NewProvider(modelName string, logger *log.Logger) *Provider {
	return &Provider{logger: logger, modelName: modelName}
}

// Provider returns the provider identifier.
func (p *Provider) Provider() string {
	return "mock"
}

// ChatCompletion simulates a round: if the latest user turn looks like it
// needs a tool and tools are offered, emits a single tool call against the
// first offered tool; otherwise emits a canned text reply.
func (p *Provider) ChatCompletion(ctx context.Context, req *domain.ChatCompletionRequest) (*domain.ChatCompletionResponse, error) {
	p.logger.WithContext(ctx).Debug().
		Int("messages", len(req.Messages)).
		Msg("mock chat completion request")

	time.Sleep(10 * time.Millisecond)

	var responseText string
	var toolCalls []domain.ToolCall

	if n := len(req.Messages); n > 0 {
		last := req.Messages[n-1]
		if p.shouldUseTool(last.Content) && len(req.Tools) > 0 {
			tool := req.Tools[0]
			toolCalls = []domain.ToolCall{
				{
					ID:   fmt.Sprintf("call_%s", uuid.New().String()[:8]),
					Type: "function",
					Function: &domain.FunctionCall{
						Name:      tool.Function.Name,
						Arguments: json.RawMessage(`{}`),
					},
				},
			}
		} else {
			responseText = p.generateResponse(last.Content)
		}
	} else {
		responseText = "Hello! I'm a mock assistant. How can I help?"
	}

	usage := &domain.TokenUsage{
		PromptTokens:     p.estimateTokens(req.Messages),
		CompletionTokens: p.estimateTokens([]domain.ChatMessage{{Content: responseText}}),
	}
	usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens

	return &domain.ChatCompletionResponse{
		Model: p.modelName,
		Message: domain.ChatMessage{
			Role:      domain.RoleAssistant,
			Content:   responseText,
			ToolCalls: toolCalls,
		},
		Usage: usage,
	}, nil
}

func (p *Provider) shouldUseTool(content string) bool {
	keywords := []string{"search", "find", "look up", "get", "retrieve", "check", "query"}
	content = strings.ToLower(content)
	for _, k := range keywords {
		if strings.Contains(content, k) {
			return true
		}
	}
	return false
}

func (p *Provider) generateResponse(input string) string {
	displayInput := input
	if len(displayInput) > 50 {
		displayInput = displayInput[:47] + "..."
	}
	return fmt.Sprintf("Mock response to: %s", displayInput)
}

func (p *Provider) estimateTokens(messages []domain.ChatMessage) int {
	totalChars := 0
	for _, msg := range messages {
		totalChars += len(msg.Content) + len(msg.Role) + 10
	}
	return (totalChars + 3) / 4
}
