// Package executor implements domain.ExecutorStrategy: the bounded
// LLM-tool loop that runs one domain-agent turn once the SupervisorRouter
// has chosen an agent.
package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"agentrouter/internal/domain"
	"agentrouter/internal/log"
)

// DomainAgentExecutor is both the generic executor and the dispatcher that
// selects a specialized strategy by an agent's handler-class path. Unknown
// or unregistered paths fall back to the generic loop with a warning, never
// a hard failure, so new agents stay fully database-driven.
type DomainAgentExecutor struct {
	tools   domain.ToolRegistry
	clients domain.LLMClientManager
	memory  domain.ConversationMemory
	logger  *log.Logger

	maxRounds          int
	maxHistoryMessages int
	resultTruncateBytes int

	mu         sync.RWMutex
	registered map[string]domain.ExecutorStrategy
}

// New builds a DomainAgentExecutor. maxRounds bounds the LLM<->tool loop;
// maxHistoryMessages bounds how much prior conversation is replayed;
// resultTruncateBytes caps how much of a tool result's serialized body is
// fed back into the next LLM turn (and is all that ever reaches a log).
func New(tools domain.ToolRegistry, clients domain.LLMClientManager, memory domain.ConversationMemory, logger *log.Logger, maxRounds, maxHistoryMessages, resultTruncateBytes int) *DomainAgentExecutor {
	return &DomainAgentExecutor{
		tools:               tools,
		clients:             clients,
		memory:              memory,
		logger:              logger,
		maxRounds:           maxRounds,
		maxHistoryMessages:  maxHistoryMessages,
		resultTruncateBytes: resultTruncateBytes,
		registered:          make(map[string]domain.ExecutorStrategy),
	}
}

// Register associates a handler-class path with a specialized strategy.
// The generic executor is used whenever the agent's HandlerClass has no
// registration.
func (e *DomainAgentExecutor) Register(handlerClass string, strategy domain.ExecutorStrategy) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.registered[handlerClass] = strategy
}

// Invoke resolves req.Agent.HandlerClass to a strategy and runs it.
func (e *DomainAgentExecutor) Invoke(ctx context.Context, req domain.ExecutorRequest) (*domain.AgentResult, error) {
	if req.Agent.HandlerClass != "" && req.Agent.HandlerClass != "generic" {
		e.mu.RLock()
		strategy, ok := e.registered[req.Agent.HandlerClass]
		e.mu.RUnlock()
		if ok {
			return strategy.Invoke(ctx, req)
		}
		e.logger.WithContext(ctx).Warn().
			Str("agent", req.Agent.Name).
			Str("handler_class", req.Agent.HandlerClass).
			Msg("unregistered handler class, falling back to generic executor")
	}
	return e.invokeGeneric(ctx, req)
}

func (e *DomainAgentExecutor) invokeGeneric(ctx context.Context, req domain.ExecutorRequest) (*domain.AgentResult, error) {
	start := time.Now()

	client, err := e.clients.GetClient(ctx, req.TenantID)
	if err != nil {
		return nil, err
	}

	history := e.memory.History(ctx, req.SessionID, e.maxHistoryMessages, false)

	tools, err := e.tools.LoadToolsForAgent(ctx, req.Agent.ID, req.TenantID)
	if err != nil {
		return nil, err
	}

	systemPrompt := req.Agent.SystemPrompt
	if req.Language != "" {
		systemPrompt += languageHint(req.Language)
	}

	entities := e.extractEntities(ctx, client, tools, systemPrompt, req.UserText)

	if len(tools) == 0 {
		messages := buildMessages(systemPrompt, history, req.UserText)
		resp, err := client.ChatCompletion(ctx, &domain.ChatCompletionRequest{Messages: messages})
		if err != nil {
			return nil, err
		}
		return &domain.AgentResult{
			Text:              resp.Message.Content,
			ToolCallsMade:     []string{},
			EntitiesExtracted: entities,
			LLMModel:          resp.Model,
			DurationMS:        time.Since(start).Milliseconds(),
		}, nil
	}

	toolByName := make(map[string]domain.CallableTool, len(tools))
	defs := make([]domain.ToolDefinition, 0, len(tools))
	for _, t := range tools {
		toolByName[t.Name()] = t
		defs = append(defs, toolDefinition(t))
	}

	messages := buildMessages(systemPrompt+toolEnumeration(tools), history, req.UserText)

	toolCallsMade := []string{}
	var lastText, lastModel string
	overflow := false

	for round := 0; round < e.maxRounds; round++ {
		resp, err := client.ChatCompletion(ctx, &domain.ChatCompletionRequest{Messages: messages, Tools: defs})
		if err != nil {
			return nil, err
		}
		lastText = resp.Message.Content
		lastModel = resp.Model

		if len(resp.Message.ToolCalls) == 0 {
			return &domain.AgentResult{
				Text:              lastText,
				ToolCallsMade:     toolCallsMade,
				EntitiesExtracted: entities,
				LLMModel:          lastModel,
				DurationMS:        time.Since(start).Milliseconds(),
			}, nil
		}

		messages = append(messages, resp.Message)
		for _, call := range resp.Message.ToolCalls {
			name, result := e.runToolCall(ctx, toolByName, call, req.BearerToken)
			toolCallsMade = append(toolCallsMade, name)
			messages = append(messages, e.toolResultMessage(call, result))
		}

		if round == e.maxRounds-1 {
			overflow = true
		}
	}

	e.logger.LogChatTurn(req.SessionID.String(), req.Agent.Name, e.maxRounds, overflow, time.Since(start))
	return &domain.AgentResult{
		Text:              lastText,
		ToolCallsMade:     toolCallsMade,
		EntitiesExtracted: entities,
		LLMModel:          lastModel,
		DurationMS:        time.Since(start).Milliseconds(),
		Overflow:          overflow,
	}, nil
}

// runToolCall validates and invokes one LLM-requested tool call, returning
// the tool name (for ToolCallsMade bookkeeping) and a structured result.
// A tool failure is never returned as an error here: it is handed back to
// the LLM as the tool-call result so the conversation can continue.
func (e *DomainAgentExecutor) runToolCall(ctx context.Context, toolByName map[string]domain.CallableTool, call domain.ToolCall, bearerToken string) (string, *domain.ToolInvocationResult) {
	if call.Function == nil {
		return "", &domain.ToolInvocationResult{Error: "unknown_tool", Detail: "tool call carried no function payload"}
	}
	name := call.Function.Name

	tool, ok := toolByName[name]
	if !ok {
		return name, &domain.ToolInvocationResult{Error: "unknown_tool", Detail: fmt.Sprintf("%q is not among this agent's loaded tools", name)}
	}

	var args map[string]any
	if len(call.Function.Arguments) > 0 {
		if err := json.Unmarshal(call.Function.Arguments, &args); err != nil {
			return name, &domain.ToolInvocationResult{Error: "invalid_arguments", Detail: err.Error()}
		}
	}

	if err := tool.Validate(args); err != nil {
		detail := strings.TrimPrefix(err.Error(), domain.ErrSchemaInvalid.Error()+": ")
		return name, &domain.ToolInvocationResult{Error: "schema_invalid", Detail: detail}
	}

	result, err := tool.Invoke(ctx, args, bearerToken)
	if err != nil {
		e.logger.WithContext(ctx).Warn().Str("error", truncate(log.SanitizeText(err.Error()), e.resultTruncateBytes)).Str("tool", name).Msg("tool invocation failed")
		return name, &domain.ToolInvocationResult{Error: "tool_error", Detail: log.SanitizeText(err.Error())}
	}
	return name, result
}

// extractEntities runs a lightweight, advisory LLM call asking for values
// matching the first tool's required properties, if any are loaded. Its
// output never blocks or fails the turn: a transport error here is
// swallowed and entities are simply omitted.
func (e *DomainAgentExecutor) extractEntities(ctx context.Context, client domain.ChatClient, tools []domain.CallableTool, systemPrompt, userText string) map[string]any {
	if len(tools) == 0 {
		return nil
	}

	required := requiredProperties(tools[0].SchemaJSON())
	if len(required) == 0 {
		return nil
	}

	prompt := fmt.Sprintf("Extract a JSON object with these keys if present in the message, omitting any not mentioned: %s. Reply with JSON only, no prose.", strings.Join(required, ", "))
	resp, err := client.ChatCompletion(ctx, &domain.ChatCompletionRequest{
		Messages: []domain.ChatMessage{
			{Role: domain.RoleSystem, Content: prompt},
			{Role: domain.RoleUser, Content: userText},
		},
	})
	if err != nil {
		e.logger.WithContext(ctx).Debug().Err(err).Msg("advisory entity extraction skipped")
		return nil
	}

	var entities map[string]any
	if err := json.Unmarshal([]byte(resp.Message.Content), &entities); err != nil {
		return nil
	}
	return entities
}

func requiredProperties(schema []byte) []string {
	var parsed struct {
		Required []string `json:"required"`
	}
	if err := json.Unmarshal(schema, &parsed); err != nil {
		return nil
	}
	return parsed.Required
}

func toolDefinition(t domain.CallableTool) domain.ToolDefinition {
	var params map[string]any
	_ = json.Unmarshal(t.SchemaJSON(), &params)
	return domain.ToolDefinition{
		Type: "function",
		Function: &domain.ToolFunction{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  params,
		},
	}
}

// toolResultMessage serializes result into the tool-role message fed back
// to the LLM, truncating the body to resultTruncateBytes with an ellipsis
// marker. A tool response can be arbitrarily large (a full API payload);
// the bounded loop must not let one round blow the model's context window.
func (e *DomainAgentExecutor) toolResultMessage(call domain.ToolCall, result *domain.ToolInvocationResult) domain.ChatMessage {
	payload, err := json.Marshal(result)
	if err != nil {
		payload = []byte(`{"error":"marshal_failed"}`)
	}
	return domain.ChatMessage{Role: domain.RoleTool, Content: truncate(string(payload), e.resultTruncateBytes), ToolCallID: call.ID}
}

func truncate(text string, limit int) string {
	if limit <= 0 || len(text) <= limit {
		return text
	}
	return text[:limit] + "..."
}

func buildMessages(systemPrompt string, history []domain.TypedMessage, userText string) []domain.ChatMessage {
	messages := make([]domain.ChatMessage, 0, len(history)+2)
	if systemPrompt != "" {
		messages = append(messages, domain.ChatMessage{Role: domain.RoleSystem, Content: systemPrompt})
	}
	for _, h := range history {
		messages = append(messages, domain.ChatMessage{Role: h.Role, Content: h.Text})
	}
	messages = append(messages, domain.ChatMessage{Role: domain.RoleUser, Content: userText})
	return messages
}

func toolEnumeration(tools []domain.CallableTool) string {
	var b strings.Builder
	b.WriteString("\n\nAvailable tools:\n")
	for _, t := range tools {
		fmt.Fprintf(&b, "- %s: %s (schema: %s)\n", t.Name(), t.Description(), t.SchemaJSON())
	}
	return b.String()
}

func languageHint(language string) string {
	if language == domain.LanguageVietnamese {
		return "\n\nRespond in Vietnamese."
	}
	return "\n\nRespond in English."
}
