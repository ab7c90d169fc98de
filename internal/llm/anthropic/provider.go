// Package anthropic implements domain.ChatClient against the native
// Anthropic Messages API. Unlike the OpenAI-compatible providers this uses
// the first-party SDK, since Anthropic's wire format (content-block arrays,
// a separate system parameter) doesn't fit the OpenAI chat shape.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"agentrouter/internal/domain"
	"agentrouter/internal/log"
)

// Provider implements domain.ChatClient for one tenant's decrypted
// Anthropic API key. The router's bounded tool loop is request/response,
// so this calls the non-streaming Messages.New endpoint.
type Provider struct {
	client    anthropic.Client
	logger    *log.Logger
	modelName string
}

// NewProvider builds a Provider bound to a decrypted API key.
func NewProvider(apiKey, modelName string, logger *log.Logger) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: anthropic: API key is required", domain.ErrConfigMissing)
	}
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &Provider{client: client, logger: logger, modelName: modelName}, nil
}

// Provider returns the provider identifier.
func (p *Provider) Provider() string {
	return "anthropic"
}

// ChatCompletion performs one non-streaming Messages.New call.
func (p *Provider) ChatCompletion(ctx context.Context, req *domain.ChatCompletionRequest) (*domain.ChatCompletionResponse, error) {
	start := time.Now()

	messages, system := p.convertMessages(req.Messages)
	tools, err := p.convertTools(req.Tools)
	if err != nil {
		return nil, fmt.Errorf("%w: anthropic: %v", domain.ErrLLMTransport, err)
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.modelName),
		Messages:  messages,
		MaxTokens: int64(maxTokens),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if len(tools) > 0 {
		params.Tools = tools
	}

	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		p.logger.WithContext(ctx).Error().Err(err).Dur("duration", time.Since(start)).Msg("anthropic messages.new failed")
		return nil, fmt.Errorf("%w: anthropic: %v", domain.ErrLLMTransport, err)
	}

	domainResp := p.convertResponse(msg)

	if domainResp.Usage != nil {
		p.logger.LogTokenUsage("anthropic_chat", domainResp.Usage.PromptTokens, domainResp.Usage.CompletionTokens, domainResp.Usage.TotalTokens)
	}

	return domainResp, nil
}

func (p *Provider) convertMessages(messages []domain.ChatMessage) ([]anthropic.MessageParam, string) {
	var result []anthropic.MessageParam
	var system string

	for _, msg := range messages {
		if msg.Role == domain.RoleSystem {
			system = msg.Content
			continue
		}

		var content []anthropic.ContentBlockParamUnion
		if msg.Content != "" {
			content = append(content, anthropic.NewTextBlock(msg.Content))
		}
		if msg.ToolCallID != "" {
			content = append(content, anthropic.NewToolResultBlock(msg.ToolCallID, msg.Content, false))
		}
		for _, tc := range msg.ToolCalls {
			if tc.Function == nil {
				continue
			}
			var input map[string]any
			_ = json.Unmarshal(tc.Function.Arguments, &input)
			content = append(content, anthropic.NewToolUseBlock(tc.ID, input, tc.Function.Name))
		}

		if msg.Role == domain.RoleAssistant {
			result = append(result, anthropic.NewAssistantMessage(content...))
		} else {
			result = append(result, anthropic.NewUserMessage(content...))
		}
	}

	return result, system
}

func (p *Provider) convertTools(tools []domain.ToolDefinition) ([]anthropic.ToolUnionParam, error) {
	var result []anthropic.ToolUnionParam
	for _, tool := range tools {
		if tool.Function == nil {
			continue
		}
		paramsJSON, err := json.Marshal(tool.Function.Parameters)
		if err != nil {
			return nil, fmt.Errorf("marshal tool parameters for %s: %w", tool.Function.Name, err)
		}
		var schema anthropic.ToolInputSchemaParam
		if err := json.Unmarshal(paramsJSON, &schema); err != nil {
			return nil, fmt.Errorf("invalid tool schema for %s: %w", tool.Function.Name, err)
		}

		toolParam := anthropic.ToolUnionParamOfTool(schema, tool.Function.Name)
		if toolParam.OfTool != nil {
			toolParam.OfTool.Description = anthropic.String(tool.Function.Description)
		}
		result = append(result, toolParam)
	}
	return result, nil
}

func (p *Provider) convertResponse(msg *anthropic.Message) *domain.ChatCompletionResponse {
	var textParts string
	var toolCalls []domain.ToolCall

	for _, block := range msg.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			textParts += variant.Text
		case anthropic.ToolUseBlock:
			toolCalls = append(toolCalls, domain.ToolCall{
				ID:   variant.ID,
				Type: "function",
				Function: &domain.FunctionCall{
					Name:      variant.Name,
					Arguments: json.RawMessage(variant.Input),
				},
			})
		}
	}

	return &domain.ChatCompletionResponse{
		Model: string(msg.Model),
		Message: domain.ChatMessage{
			Role:      domain.RoleAssistant,
			Content:   textParts,
			ToolCalls: toolCalls,
		},
		Usage: &domain.TokenUsage{
			PromptTokens:     int(msg.Usage.InputTokens),
			CompletionTokens: int(msg.Usage.OutputTokens),
			TotalTokens:      int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
		},
	}
}
