package httpapi

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// chatRequest is the body accepted by both /chat and /test/chat.
type chatRequest struct {
	Message   string         `json:"message" validate:"required"`
	UserID    string         `json:"user_id" validate:"required"`
	SessionID *uuid.UUID     `json:"session_id,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// chatResponse mirrors the external contract field-for-field.
type chatResponse struct {
	SessionID uuid.UUID      `json:"session_id"`
	MessageID uuid.UUID      `json:"message_id"`
	Response  string         `json:"response"`
	Agent     string         `json:"agent,omitempty"`
	Intent    string         `json:"intent"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// HandleChat serves POST /api/:tenant_id/chat. Bearer verification already
// ran in RequireBearer; the verified raw token is read back off the echo
// context and forwarded unmodified to the orchestrator.
func (s *Server) HandleChat(c echo.Context) error {
	return s.handleChat(c, bearerFromContext(c))
}

// HandleTestChat serves POST /api/:tenant_id/test/chat: identical body and
// response shape, but only ever reachable when the route itself is
// registered under cfg.DisableAuth (see RegisterRoutes), so the bearer is
// always the configured TestBearerToken rather than a verified header.
func (s *Server) HandleTestChat(c echo.Context) error {
	return s.handleChat(c, s.cfg.TestBearerToken)
}

func (s *Server) handleChat(c echo.Context, bearerToken string) error {
	tenantID, err := uuid.Parse(c.Param("tenant_id"))
	if err != nil {
		return c.JSON(http.StatusNotFound, errorBody{Status: "error", Code: "tenant_unknown"})
	}

	var req chatRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody{Status: "error", Code: "invalid_request"})
	}
	if req.Message == "" || req.UserID == "" {
		return c.JSON(http.StatusBadRequest, errorBody{Status: "error", Code: "invalid_request"})
	}

	orch := s.orchestratorFor(s.scopedStore(tenantID))
	result, err := orch.HandleChat(c.Request().Context(), tenantID, req.SessionID, req.UserID, bearerToken, req.Message, req.Metadata)
	if err != nil {
		s.logger.WithContext(c.Request().Context()).Error().Err(err).Str("tenant_id", tenantID.String()).Msg("chat turn failed")
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, chatResponse{
		SessionID: result.SessionID,
		MessageID: result.MessageID,
		Response:  result.Text,
		Agent:     result.Agent,
		Intent:    result.Intent,
		Metadata:  result.Metadata,
	})
}
