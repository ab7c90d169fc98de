package httpapi

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// HandleAdminUnimplemented answers the admin CRUD surface (Tenant,
// LLMProviderModel, TenantLLMBinding, ToolSpec, AgentSpec, AgentTool,
// TenantAgentGrant, TenantToolGrant, and the cache-reload endpoint): an
// external collaborator's contract, not a responsibility this core takes
// on. Routes are registered so the surface shape is discoverable, but
// every one of them answers 501 rather than silently 404ing.
func (s *Server) HandleAdminUnimplemented(c echo.Context) error {
	return c.JSON(http.StatusNotImplemented, errorBody{Status: "error", Code: "not_implemented"})
}

// adminTenantStats is the one genuine admin read this core implements: a
// per-tenant usage snapshot built from data already on hand (session
// count), useful to operators without requiring the full admin CRUD
// surface to exist.
type adminTenantStats struct {
	TenantID     uuid.UUID `json:"tenant_id"`
	TenantActive bool      `json:"tenant_active"`
	SessionCount int       `json:"session_count"`
}

// HandleAdminTenantStats serves GET /admin/tenants/:tenant_id/stats.
func (s *Server) HandleAdminTenantStats(c echo.Context) error {
	tenantID, err := uuid.Parse(c.Param("tenant_id"))
	if err != nil {
		return c.JSON(http.StatusNotFound, errorBody{Status: "error", Code: "tenant_unknown"})
	}

	ctx := c.Request().Context()
	tenantStore := s.scopedStore(tenantID)
	tenant, err := tenantStore.GetTenant(ctx, tenantID)
	if err != nil {
		return writeError(c, err)
	}
	if tenant == nil {
		return c.JSON(http.StatusNotFound, errorBody{Status: "error", Code: "tenant_unknown"})
	}

	_, total, err := tenantStore.ListSessions(ctx, tenantID, "", 1, 0)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, adminTenantStats{
		TenantID:     tenant.ID,
		TenantActive: tenant.Active,
		SessionCount: total,
	})
}
