// Package httpapi exposes the inbound HTTP surface over Echo: the chat
// and session endpoints a tenant's client calls, a health check, and the
// admin surface (mostly a 501 stub, with one genuine stats read).
package httpapi

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"agentrouter/internal/config"
	"agentrouter/internal/domain"
	"agentrouter/internal/log"
	"agentrouter/internal/orchestrator"
	"agentrouter/internal/router"
)

// ScopedStoreFunc builds a domain.Store bound to one tenant for the
// lifetime of one request (e.g. a store.TenantScopedStore setting the
// Postgres RLS session variable). Kept as an injected function rather
// than a concrete pgxpool-backed constructor so httpapi stays testable
// without a live database connection.
type ScopedStoreFunc func(tenantID uuid.UUID) domain.Store

// Server holds every shared, process-lifetime collaborator. Handlers build
// a tenant-scoped Store and a bound SupervisorRouter/ChatOrchestrator per
// request (cheap struct construction, no new connections); domain.
// LLMClientManager and domain.ConversationMemory stay process-lifetime
// singletons over the base store instead, since their cross-request
// caches (ClientManager's single-flight-guarded client cache in
// particular) would lose all value if rebuilt per request.
type Server struct {
	baseStore   domain.Store
	scopedStore ScopedStoreFunc
	clients     domain.LLMClientManager
	memory      domain.ConversationMemory
	executor    domain.ExecutorStrategy
	cache       domain.PermissionCache
	cfg         *config.Config
	logger      *log.Logger
}

// New builds a Server. scopedStore is used for every tenant-scoped read or
// write; baseStore backs the tenant-agnostic health check only.
func New(baseStore domain.Store, scopedStore ScopedStoreFunc, clients domain.LLMClientManager, memory domain.ConversationMemory, executor domain.ExecutorStrategy, cache domain.PermissionCache, cfg *config.Config, logger *log.Logger) *Server {
	return &Server{baseStore: baseStore, scopedStore: scopedStore, clients: clients, memory: memory, executor: executor, cache: cache, cfg: cfg, logger: logger}
}

// orchestratorFor assembles a request-scoped ChatOrchestrator over a
// request-scoped SupervisorRouter, both bound to store.
func (s *Server) orchestratorFor(tenantStore domain.Store) *orchestrator.ChatOrchestrator {
	r := router.New(tenantStore, s.clients, s.memory, s.executor, s.logger)
	return orchestrator.New(tenantStore, r, s.logger, s.cfg.SessionLockTimeout)
}

// RegisterRoutes wires every route in the inbound HTTP surface onto e. If
// cfg.JWTPublicKey fails to parse, an error is returned rather than
// silently leaving /chat unauthenticated.
func (s *Server) RegisterRoutes(e *echo.Echo) error {
	e.GET("/health", s.HandleHealth)

	api := e.Group("/api/:tenant_id")

	if s.cfg.JWTPublicKey != "" {
		requireBearer, err := RequireBearer(s.cfg.JWTPublicKey)
		if err != nil {
			return err
		}
		api.POST("/chat", s.HandleChat, requireBearer)
	}
	// No public key configured: auth is not possible, so /chat stays
	// structurally absent until DisableAuth opens the static-token path.

	if s.cfg.DisableAuth {
		api.POST("/test/chat", s.HandleTestChat, StaticBearer(s.cfg.TestBearerToken))
	}

	api.GET("/sessions", s.HandleListSessions)
	api.GET("/sessions/:session_id", s.HandleGetSession)

	admin := e.Group("/admin")
	admin.GET("/tenants/:tenant_id/stats", s.HandleAdminTenantStats)
	for _, route := range []struct {
		method, path string
	}{
		{"GET", "/tenants"}, {"POST", "/tenants"}, {"PUT", "/tenants/:id"},
		{"GET", "/llm-provider-models"}, {"POST", "/llm-provider-models"},
		{"GET", "/tenant-llm-bindings"}, {"POST", "/tenant-llm-bindings"},
		{"GET", "/tool-specs"}, {"POST", "/tool-specs"}, {"PUT", "/tool-specs/:id"},
		{"GET", "/agent-specs"}, {"POST", "/agent-specs"}, {"PUT", "/agent-specs/:id"},
		{"GET", "/agent-tools"}, {"POST", "/agent-tools"},
		{"GET", "/tenant-agent-grants"}, {"POST", "/tenant-agent-grants"},
		{"GET", "/tenant-tool-grants"}, {"POST", "/tenant-tool-grants"},
		{"POST", "/tenants/:tenant_id/cache/reload"},
	} {
		admin.Add(route.method, route.path, s.HandleAdminUnimplemented)
	}

	return nil
}
