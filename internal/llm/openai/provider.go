// Package openai implements domain.ChatClient against the OpenAI chat
// completions API. The same client also serves OpenRouter, which exposes an
// OpenAI-compatible endpoint under a different base URL and API key.
package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"

	"agentrouter/internal/domain"
	"agentrouter/internal/log"
)

// Provider implements domain.ChatClient for OpenAI-compatible endpoints.
type Provider struct {
	client     *openai.Client
	logger     *log.Logger
	modelName  string
	providerID string
}

// NewProvider builds a Provider bound to one tenant's decrypted API key.
// baseURL is optional; an empty string uses OpenAI's default endpoint.
// providerID labels the client for logging ("openai" or "openrouter").
func NewProvider(apiKey, baseURL, modelName, providerID string, logger *log.Logger) *Provider {
	clientConfig := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		clientConfig.BaseURL = baseURL
	}
	return &Provider{
		client:     openai.NewClientWithConfig(clientConfig),
		logger:     logger,
		modelName:  modelName,
		providerID: providerID,
	}
}

// Provider returns the provider identifier, e.g. "openai" or "openrouter".
func (p *Provider) Provider() string {
	return p.providerID
}

// ChatCompletion performs one chat completion call.
func (p *Provider) ChatCompletion(ctx context.Context, req *domain.ChatCompletionRequest) (*domain.ChatCompletionResponse, error) {
	start := time.Now()
	wireReq := p.convertRequest(req)

	p.logger.WithContext(ctx).Debug().
		Str("model", wireReq.Model).
		Int("messages", len(wireReq.Messages)).
		Msg("openai chat completion request")

	resp, err := p.client.CreateChatCompletion(ctx, wireReq)
	if err != nil {
		p.logger.WithContext(ctx).Error().
			Err(err).
			Dur("duration", time.Since(start)).
			Msg("openai chat completion failed")
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrLLMTransport, p.providerID, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: %s: empty choices", domain.ErrLLMTransport, p.providerID)
	}

	domainResp := p.convertResponse(&resp)

	if domainResp.Usage != nil {
		p.logger.LogTokenUsage(p.providerID+"_chat",
			domainResp.Usage.PromptTokens,
			domainResp.Usage.CompletionTokens,
			domainResp.Usage.TotalTokens)
	}

	return domainResp, nil
}

func (p *Provider) convertRequest(req *domain.ChatCompletionRequest) openai.ChatCompletionRequest {
	wireReq := openai.ChatCompletionRequest{
		Model:       p.modelName,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}

	for _, msg := range req.Messages {
		wireMsg := openai.ChatCompletionMessage{
			Role:       string(msg.Role),
			Content:    msg.Content,
			ToolCallID: msg.ToolCallID,
			Name:       msg.Name,
		}
		for _, tc := range msg.ToolCalls {
			wireToolCall := openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolType(tc.Type),
			}
			if tc.Function != nil {
				wireToolCall.Function = openai.FunctionCall{
					Name:      tc.Function.Name,
					Arguments: string(tc.Function.Arguments),
				}
			}
			wireMsg.ToolCalls = append(wireMsg.ToolCalls, wireToolCall)
		}
		wireReq.Messages = append(wireReq.Messages, wireMsg)
	}

	for _, tool := range req.Tools {
		wireTool := openai.Tool{Type: openai.ToolType(tool.Type)}
		if tool.Function != nil {
			wireTool.Function = &openai.FunctionDefinition{
				Name:        tool.Function.Name,
				Description: tool.Function.Description,
				Parameters:  tool.Function.Parameters,
			}
		}
		wireReq.Tools = append(wireReq.Tools, wireTool)
	}

	return wireReq
}

func (p *Provider) convertResponse(resp *openai.ChatCompletionResponse) *domain.ChatCompletionResponse {
	choice := resp.Choices[0]
	domainMsg := domain.ChatMessage{
		Role:    domain.MessageRole(choice.Message.Role),
		Content: choice.Message.Content,
	}
	for _, tc := range choice.Message.ToolCalls {
		domainTC := domain.ToolCall{ID: tc.ID, Type: string(tc.Type)}
		if tc.Function.Name != "" {
			domainTC.Function = &domain.FunctionCall{
				Name:      tc.Function.Name,
				Arguments: json.RawMessage(tc.Function.Arguments),
			}
		}
		domainMsg.ToolCalls = append(domainMsg.ToolCalls, domainTC)
	}

	domainResp := &domain.ChatCompletionResponse{
		Model:   resp.Model,
		Message: domainMsg,
	}
	if resp.Usage.TotalTokens > 0 {
		domainResp.Usage = &domain.TokenUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
	}
	return domainResp
}
