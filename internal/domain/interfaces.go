package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ChatClient is a provider-agnostic chat completion client bound to one
// tenant's decrypted credentials.
type ChatClient interface {
	ChatCompletion(ctx context.Context, req *ChatCompletionRequest) (*ChatCompletionResponse, error)
	Provider() string
}

// CallableTool is a tool materialized from a ToolSpec row, ready to be
// invoked within a per-request call context. The bearer token is supplied
// at invoke time, never stored on the tool object.
type CallableTool interface {
	Name() string
	Description() string
	SchemaJSON() []byte
	// Validate rejects args that fail the tool's compiled input schema. It
	// must be called, and must pass, before Invoke ever reaches an outbound
	// call.
	Validate(args map[string]any) error
	Invoke(ctx context.Context, args map[string]any, bearerToken string) (*ToolInvocationResult, error)
}

// LLMClientManager resolves a tenant to a cached, live chat client.
type LLMClientManager interface {
	GetClient(ctx context.Context, tenantID uuid.UUID) (ChatClient, error)
	InvalidateTenant(tenantID uuid.UUID)
}

// ToolRegistry materializes the permission-filtered, schema-validated
// callable tool set for one agent and tenant.
type ToolRegistry interface {
	LoadToolsForAgent(ctx context.Context, agentID, tenantID uuid.UUID) ([]CallableTool, error)
	InvalidateTenantTool(tenantID, toolID uuid.UUID)
}

// ConversationMemory reconstructs bounded chat history from persisted
// messages.
type ConversationMemory interface {
	History(ctx context.Context, sessionID uuid.UUID, maxMessages int, includeSystem bool) []TypedMessage
}

// Store is the persistence surface. Raw-SQL backed; not-found reads return
// (nil, nil) per the teacher's convention.
type Store interface {
	GetTenant(ctx context.Context, id uuid.UUID) (*Tenant, error)

	GetLLMProviderModel(ctx context.Context, id uuid.UUID) (*LLMProviderModel, error)
	GetTenantLLMBinding(ctx context.Context, tenantID uuid.UUID) (*TenantLLMBinding, error)
	GetAgentSpec(ctx context.Context, id uuid.UUID) (*AgentSpec, error)
	GetAgentSpecByName(ctx context.Context, name string) (*AgentSpec, error)
	GetToolSpec(ctx context.Context, id uuid.UUID) (*ToolSpec, error)
	ListAgentTools(ctx context.Context, agentID uuid.UUID, limit int) ([]AgentTool, error)

	ListAuthorizedAgents(ctx context.Context, tenantID uuid.UUID) ([]AgentSpec, error)
	IsAgentGranted(ctx context.Context, tenantID, agentID uuid.UUID) (bool, error)
	IsToolGranted(ctx context.Context, tenantID, toolID uuid.UUID) (bool, error)

	GetSession(ctx context.Context, id uuid.UUID) (*Session, error)
	CreateSession(ctx context.Context, tenantID uuid.UUID, userID string) (*Session, error)
	TouchSession(ctx context.Context, sessionID uuid.UUID, agentName string) error
	ListSessions(ctx context.Context, tenantID uuid.UUID, userID string, limit, offset int) ([]Session, int, error)
	CreateMessage(ctx context.Context, msg *Message) error
	GetMessages(ctx context.Context, sessionID uuid.UUID, limit int) ([]Message, error)

	// TryAcquireSessionLock takes a Postgres session-scoped advisory lock
	// keyed on sessionID, non-blocking. ok is false if another request
	// already holds it; the caller must not proceed with that session.
	// The returned SessionLock must be released exactly once.
	TryAcquireSessionLock(ctx context.Context, sessionID uuid.UUID) (lock SessionLock, ok bool, err error)

	Ping(ctx context.Context) error
}

// SessionLock holds a per-session advisory lock for the duration of one
// ChatOrchestrator request, serializing concurrent turns on the same
// session at the application layer.
type SessionLock interface {
	Release(ctx context.Context)
}

// ExecutorStrategy runs one domain-agent invocation. The generic strategy
// is the default; other handler-class tags may be registered for
// specialized agents.
type ExecutorStrategy interface {
	Invoke(ctx context.Context, req ExecutorRequest) (*AgentResult, error)
}

// ExecutorRequest bundles what an ExecutorStrategy needs to run one turn,
// avoiding re-querying the catalog the SupervisorRouter already loaded.
type ExecutorRequest struct {
	Agent       AgentSpec
	TenantID    uuid.UUID
	SessionID   uuid.UUID
	UserText    string
	BearerToken string
	Language    string
}

// SupervisorRouterSvc classifies a message into one authorized agent name
// or a clarification outcome, then dispatches to the executor.
type SupervisorRouterSvc interface {
	Route(ctx context.Context, tenantID, sessionID uuid.UUID, userText, bearerToken string) (*RouteOutcome, *AgentResult, error)
}

// PermissionCache is a namespaced, tenant-scoped TTL cache. It is never the
// source of truth; a cold cache must always produce correct results from
// the store.
type PermissionCache interface {
	Get(key string) (any, bool)
	Set(key string, value any, ttl time.Duration)
	Evict(key string)
	EvictPrefix(prefix string)
}
