package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"agentrouter/internal/domain"
	"agentrouter/internal/log"
)

// TenantScopedStore wraps a domain.Store, setting the RLS session variable
// before tenant-owned operations and clearing it before catalog-level
// (tenant-agnostic) reads. Constructed once per request, bound to the
// caller's tenant.
type TenantScopedStore struct {
	inner    domain.Store
	db       *pgxpool.Pool
	tenantID uuid.UUID
	logger   *log.Logger
}

// NewTenantScopedStore builds a store bound to one tenant for the lifetime
// of a request.
func NewTenantScopedStore(inner domain.Store, db *pgxpool.Pool, tenantID uuid.UUID, logger *log.Logger) *TenantScopedStore {
	return &TenantScopedStore{inner: inner, db: db, tenantID: tenantID, logger: logger}
}

func (s *TenantScopedStore) setTenantContext(ctx context.Context) error {
	_, err := s.db.Exec(ctx, "SELECT set_tenant_context($1)", s.tenantID.String())
	if err != nil {
		s.logger.WithContext(ctx).Error().Err(err).Str("tenant_id", s.tenantID.String()).
			Msg("failed to set tenant context")
	}
	return err
}

func (s *TenantScopedStore) clearTenantContext(ctx context.Context) {
	_, _ = s.db.Exec(ctx, "SELECT clear_tenant_context()")
}

// Catalog-level reads (tenant-agnostic): clear context first.

func (s *TenantScopedStore) GetTenant(ctx context.Context, id uuid.UUID) (*domain.Tenant, error) {
	s.clearTenantContext(ctx)
	return s.inner.GetTenant(ctx, id)
}

func (s *TenantScopedStore) GetLLMProviderModel(ctx context.Context, id uuid.UUID) (*domain.LLMProviderModel, error) {
	s.clearTenantContext(ctx)
	return s.inner.GetLLMProviderModel(ctx, id)
}

func (s *TenantScopedStore) GetAgentSpec(ctx context.Context, id uuid.UUID) (*domain.AgentSpec, error) {
	s.clearTenantContext(ctx)
	return s.inner.GetAgentSpec(ctx, id)
}

func (s *TenantScopedStore) GetAgentSpecByName(ctx context.Context, name string) (*domain.AgentSpec, error) {
	s.clearTenantContext(ctx)
	return s.inner.GetAgentSpecByName(ctx, name)
}

func (s *TenantScopedStore) GetToolSpec(ctx context.Context, id uuid.UUID) (*domain.ToolSpec, error) {
	s.clearTenantContext(ctx)
	return s.inner.GetToolSpec(ctx, id)
}

func (s *TenantScopedStore) ListAgentTools(ctx context.Context, agentID uuid.UUID, limit int) ([]domain.AgentTool, error) {
	s.clearTenantContext(ctx)
	return s.inner.ListAgentTools(ctx, agentID, limit)
}

// Tenant-owned operations: set tenant context so RLS policies scope rows.

func (s *TenantScopedStore) GetTenantLLMBinding(ctx context.Context, tenantID uuid.UUID) (*domain.TenantLLMBinding, error) {
	if err := s.setTenantContext(ctx); err != nil {
		return nil, err
	}
	return s.inner.GetTenantLLMBinding(ctx, tenantID)
}

func (s *TenantScopedStore) ListAuthorizedAgents(ctx context.Context, tenantID uuid.UUID) ([]domain.AgentSpec, error) {
	if err := s.setTenantContext(ctx); err != nil {
		return nil, err
	}
	return s.inner.ListAuthorizedAgents(ctx, tenantID)
}

func (s *TenantScopedStore) IsAgentGranted(ctx context.Context, tenantID, agentID uuid.UUID) (bool, error) {
	if err := s.setTenantContext(ctx); err != nil {
		return false, err
	}
	return s.inner.IsAgentGranted(ctx, tenantID, agentID)
}

func (s *TenantScopedStore) IsToolGranted(ctx context.Context, tenantID, toolID uuid.UUID) (bool, error) {
	if err := s.setTenantContext(ctx); err != nil {
		return false, err
	}
	return s.inner.IsToolGranted(ctx, tenantID, toolID)
}

func (s *TenantScopedStore) GetSession(ctx context.Context, id uuid.UUID) (*domain.Session, error) {
	if err := s.setTenantContext(ctx); err != nil {
		return nil, err
	}
	return s.inner.GetSession(ctx, id)
}

func (s *TenantScopedStore) CreateSession(ctx context.Context, tenantID uuid.UUID, userID string) (*domain.Session, error) {
	if err := s.setTenantContext(ctx); err != nil {
		return nil, err
	}
	return s.inner.CreateSession(ctx, tenantID, userID)
}

func (s *TenantScopedStore) TouchSession(ctx context.Context, sessionID uuid.UUID, agentName string) error {
	if err := s.setTenantContext(ctx); err != nil {
		return err
	}
	return s.inner.TouchSession(ctx, sessionID, agentName)
}

func (s *TenantScopedStore) ListSessions(ctx context.Context, tenantID uuid.UUID, userID string, limit, offset int) ([]domain.Session, int, error) {
	if err := s.setTenantContext(ctx); err != nil {
		return nil, 0, err
	}
	return s.inner.ListSessions(ctx, tenantID, userID, limit, offset)
}

func (s *TenantScopedStore) CreateMessage(ctx context.Context, msg *domain.Message) error {
	if err := s.setTenantContext(ctx); err != nil {
		return err
	}
	return s.inner.CreateMessage(ctx, msg)
}

func (s *TenantScopedStore) GetMessages(ctx context.Context, sessionID uuid.UUID, limit int) ([]domain.Message, error) {
	if err := s.setTenantContext(ctx); err != nil {
		return nil, err
	}
	return s.inner.GetMessages(ctx, sessionID, limit)
}

func (s *TenantScopedStore) TryAcquireSessionLock(ctx context.Context, sessionID uuid.UUID) (domain.SessionLock, bool, error) {
	return s.inner.TryAcquireSessionLock(ctx, sessionID)
}

func (s *TenantScopedStore) Ping(ctx context.Context) error {
	return s.inner.Ping(ctx)
}
