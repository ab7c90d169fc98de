package httpapi

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const (
	defaultSessionsLimit = 20
	maxSessionsLimit     = 100
)

// HandleListSessions serves GET /api/:tenant_id/sessions?user_id=&limit=&offset=.
func (s *Server) HandleListSessions(c echo.Context) error {
	tenantID, err := uuid.Parse(c.Param("tenant_id"))
	if err != nil {
		return c.JSON(http.StatusNotFound, errorBody{Status: "error", Code: "tenant_unknown"})
	}

	limit := parseBoundedInt(c.QueryParam("limit"), defaultSessionsLimit, maxSessionsLimit)
	offset := parseBoundedInt(c.QueryParam("offset"), 0, 0)

	tenantStore := s.scopedStore(tenantID)
	sessions, total, err := tenantStore.ListSessions(c.Request().Context(), tenantID, c.QueryParam("user_id"), limit, offset)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"sessions": sessions,
		"total":    total,
	})
}

// HandleGetSession serves GET /api/:tenant_id/sessions/:session_id, returning
// the session and its messages in chronological order.
func (s *Server) HandleGetSession(c echo.Context) error {
	tenantID, err := uuid.Parse(c.Param("tenant_id"))
	if err != nil {
		return c.JSON(http.StatusNotFound, errorBody{Status: "error", Code: "tenant_unknown"})
	}
	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		return c.JSON(http.StatusNotFound, errorBody{Status: "error", Code: "not_found"})
	}

	ctx := c.Request().Context()
	tenantStore := s.scopedStore(tenantID)
	session, err := tenantStore.GetSession(ctx, sessionID)
	if err != nil {
		return writeError(c, err)
	}
	if session == nil || session.TenantID != tenantID {
		return c.JSON(http.StatusNotFound, errorBody{Status: "error", Code: "not_found"})
	}

	// Full session history: the full-session view has no pagination of its
	// own, so this is a generous cap rather than a real page size.
	const fullHistoryLimit = 1000
	messages, err := tenantStore.GetMessages(ctx, sessionID, fullHistoryLimit)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"session":  session,
		"messages": messages,
	})
}

// parseBoundedInt parses raw as a non-negative int, falling back to def
// when absent or malformed, and capping at max when max > 0.
func parseBoundedInt(raw string, def, max int) int {
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return def
	}
	if max > 0 && v > max {
		return max
	}
	return v
}
