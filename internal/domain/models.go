package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Tenant is the top-level isolation scope for all permissions and state.
type Tenant struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Active    bool      `json:"active" db:"active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// LLMProviderModel is a catalog entry describing one selectable model for a
// provider. Catalog entries are tenant-agnostic; tenants bind to one via
// TenantLLMBinding.
type LLMProviderModel struct {
	ID               uuid.UUID `json:"id" db:"id"`
	Provider         string    `json:"provider" db:"provider"` // openai, gemini, anthropic, openrouter, bedrock
	ModelName        string    `json:"model_name" db:"model_name"`
	ContextWindow    int       `json:"context_window" db:"context_window"`
	CostPerInputUSD  float64   `json:"cost_per_input_token_usd" db:"cost_per_input_token_usd"`
	CostPerOutputUSD float64   `json:"cost_per_output_token_usd" db:"cost_per_output_token_usd"`
	Active           bool      `json:"active" db:"active"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
}

// TenantLLMBinding is the 1:1 binding of a tenant to its selected model and
// encrypted credential. The ciphertext is never serialized back out; its
// json tag is "-" so an accidental json.Marshal of the struct cannot leak
// it.
type TenantLLMBinding struct {
	ID                 uuid.UUID `json:"id" db:"id"`
	TenantID           uuid.UUID `json:"tenant_id" db:"tenant_id"`
	LLMProviderModelID uuid.UUID `json:"llm_provider_model_id" db:"llm_provider_model_id"`
	APIKeyCiphertext   []byte    `json:"-" db:"api_key_ciphertext"`
	RateLimitRPM       int       `json:"rate_limit_rpm" db:"rate_limit_rpm"`
	RateLimitTPM       int       `json:"rate_limit_tpm" db:"rate_limit_tpm"`
	CreatedAt          time.Time `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time `json:"updated_at" db:"updated_at"`
}

// ToolKind is the base kind of a ToolSpec's callable.
type ToolKind string

const (
	ToolKindHTTPGet  ToolKind = "HTTP_GET"
	ToolKindHTTPPost ToolKind = "HTTP_POST"
	ToolKindRAG      ToolKind = "RAG"
	ToolKindDBQuery  ToolKind = "DB_QUERY"
	ToolKindOCR      ToolKind = "OCR"
)

// ToolSpec is a tenant-agnostic catalog entry describing one callable tool.
// EndpointTemplate may contain {placeholder} segments matching properties
// of InputSchema.
type ToolSpec struct {
	ID               uuid.UUID         `json:"id" db:"id"`
	Name             string            `json:"name" db:"name"`
	Kind             ToolKind          `json:"kind" db:"kind"`
	Description      string            `json:"description" db:"description"`
	EndpointTemplate string            `json:"endpoint_template" db:"endpoint_template"`
	StaticHeaders    map[string]string `json:"static_headers" db:"static_headers"`
	TimeoutSeconds   int               `json:"timeout_seconds" db:"timeout_seconds"`
	InputSchema      json.RawMessage   `json:"input_schema" db:"input_schema"`
	OutputFormat     string            `json:"output_format" db:"output_format"`
	Active           bool              `json:"active" db:"active"`
	CreatedAt        time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at" db:"updated_at"`
}

// AgentSpec is a tenant-agnostic catalog entry describing one selectable
// specialist agent.
type AgentSpec struct {
	ID                 uuid.UUID `json:"id" db:"id"`
	Name               string    `json:"name" db:"name"`
	Description        string    `json:"description" db:"description"`
	SystemPrompt       string    `json:"system_prompt" db:"system_prompt"`
	LLMProviderModelID uuid.UUID `json:"llm_provider_model_id" db:"llm_provider_model_id"`
	HandlerClass       string    `json:"handler_class" db:"handler_class"`
	Active             bool      `json:"active" db:"active"`
	CreatedAt          time.Time `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time `json:"updated_at" db:"updated_at"`
}

// AgentTool joins an AgentSpec to a ToolSpec with a priority. Lower
// priority values are preferred; at most one row per (agent, tool).
type AgentTool struct {
	AgentSpecID uuid.UUID `json:"agent_spec_id" db:"agent_spec_id"`
	ToolSpecID  uuid.UUID `json:"tool_spec_id" db:"tool_spec_id"`
	Priority    int       `json:"priority" db:"priority"`
}

// TenantAgentGrant authorizes a tenant to use an agent.
type TenantAgentGrant struct {
	TenantID    uuid.UUID `json:"tenant_id" db:"tenant_id"`
	AgentSpecID uuid.UUID `json:"agent_spec_id" db:"agent_spec_id"`
	Enabled     bool      `json:"enabled" db:"enabled"`
}

// TenantToolGrant authorizes a tenant to use a tool.
type TenantToolGrant struct {
	TenantID   uuid.UUID `json:"tenant_id" db:"tenant_id"`
	ToolSpecID uuid.UUID `json:"tool_spec_id" db:"tool_spec_id"`
	Enabled    bool      `json:"enabled" db:"enabled"`
}

// Session is the conversation container; it owns an ordered sequence of
// Messages and is the unit of per-user serialization.
type Session struct {
	ID             uuid.UUID  `json:"id" db:"id"`
	TenantID       uuid.UUID  `json:"tenant_id" db:"tenant_id"`
	UserID         string     `json:"user_id" db:"user_id"`
	LastAgentName  *string    `json:"last_agent_name,omitempty" db:"last_agent_name"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	LastActivityAt time.Time  `json:"last_activity_at" db:"last_activity_at"`
}

// ThreadID returns the stable thread identifier used for memory/logging
// correlation: tenant:{t}__user:{u}__session:{s}.
func (s Session) ThreadID() string {
	return "tenant:" + s.TenantID.String() + "__user:" + s.UserID + "__session:" + s.ID.String()
}

// MessageRole is the role of a persisted Message.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleSystem    MessageRole = "system"
	// RoleTool labels a tool-result message fed back into the next LLM
	// turn. It never appears on a persisted Message; only on the
	// in-flight ChatCompletionRequest message list.
	RoleTool MessageRole = "tool"
)

// Message is one append-only turn in a Session. Metadata for assistant
// messages records: agent, intent, tool_calls, extracted_entities,
// llm_model, duration_ms (and, on round exhaustion, overflow=true).
type Message struct {
	ID        uuid.UUID      `json:"id" db:"id"`
	SessionID uuid.UUID      `json:"session_id" db:"session_id"`
	Role      MessageRole    `json:"role" db:"role"`
	Text      string         `json:"text" db:"text"`
	Metadata  map[string]any `json:"metadata" db:"metadata"`
	CreatedAt time.Time      `json:"created_at" db:"created_at"`
}

// TypedMessage is a history entry as returned by ConversationMemory,
// shaped for direct inclusion in a ChatCompletionRequest.
type TypedMessage struct {
	Role MessageRole
	Text string
}

// ChatMessage is one entry in a ChatCompletionRequest, matching the shape
// every supported provider's wire format normalizes to/from.
type ChatMessage struct {
	Role       MessageRole `json:"role"`
	Content    string      `json:"content,omitempty"`
	ToolCalls  []ToolCall  `json:"tool_calls,omitempty"`
	ToolCallID string      `json:"tool_call_id,omitempty"`
	Name       string      `json:"name,omitempty"`
}

// ToolCall is one tool invocation requested by the LLM in an assistant turn.
type ToolCall struct {
	ID       string        `json:"id"`
	Type     string        `json:"type"`
	Function *FunctionCall `json:"function,omitempty"`
}

// FunctionCall is the function-shaped payload of a ToolCall.
type FunctionCall struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ToolDefinition is a tool description sent to the LLM alongside a request.
type ToolDefinition struct {
	Type     string        `json:"type"`
	Function *ToolFunction `json:"function,omitempty"`
}

// ToolFunction is the function-shaped body of a ToolDefinition.
type ToolFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// ChatCompletionRequest is the provider-agnostic chat request shape.
type ChatCompletionRequest struct {
	Model       string           `json:"model"`
	Messages    []ChatMessage    `json:"messages"`
	Tools       []ToolDefinition `json:"tools,omitempty"`
	MaxTokens   int              `json:"max_tokens,omitempty"`
	Temperature float32          `json:"temperature,omitempty"`
}

// ChatCompletionResponse is the provider-agnostic chat response shape.
type ChatCompletionResponse struct {
	Model   string      `json:"model"`
	Message ChatMessage `json:"message"`
	Usage   *TokenUsage `json:"usage,omitempty"`
}

// TokenUsage records prompt/completion token accounting for one call.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ToolInvocationResult is the structured, non-exceptional result of a
// tool call: either a success payload or an {error, detail} pair handed
// back to the LLM as the tool-call result.
type ToolInvocationResult struct {
	Success bool   `json:"success"`
	Result  any    `json:"result,omitempty"`
	Error   string `json:"error,omitempty"`
	Detail  string `json:"detail,omitempty"`
}

// RAGDocument is one hit returned by the RAG tool kind's backing call.
type RAGDocument struct {
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Distance float64        `json:"distance"`
}

// RAGResult is the structured object returned by the RAG tool kind.
type RAGResult struct {
	Documents []RAGDocument `json:"documents"`
	Success   bool          `json:"success"`
}

// AgentResult is the outcome of one DomainAgentExecutor.Invoke call.
type AgentResult struct {
	Text              string         `json:"text"`
	ToolCallsMade     []string       `json:"tool_calls_made"`
	EntitiesExtracted map[string]any `json:"entities_extracted"`
	LLMModel          string         `json:"llm_model"`
	DurationMS        int64          `json:"duration_ms"`
	Overflow          bool           `json:"overflow,omitempty"`
}

// RouteOutcome is the result of SupervisorRouter.Route: either a concrete
// agent to dispatch to, or a clarification/unclear sentinel.
type RouteOutcome struct {
	AgentName          string
	Unclear            bool
	MultiIntent        bool
	ClarificationText  string
	Language           string
}

const (
	LanguageVietnamese = "vi"
	LanguageEnglish    = "en"
)

// IntentLabel values recorded on persisted assistant Message metadata.
const (
	IntentUnclear     = "unclear"
	IntentMultiIntent = "multi_intent"
	IntentRouted      = "routed"
)
