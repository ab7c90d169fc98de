package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// HandleHealth serves GET /health, pinging the store directly and the
// cache indirectly (a cache miss is never fatal, so its status only ever
// reads "ok" or "disabled" here, never "down").
func (s *Server) HandleHealth(c echo.Context) error {
	ctx := c.Request().Context()

	storeStatus := "ok"
	if err := s.baseStore.Ping(ctx); err != nil {
		storeStatus = "down"
	}

	cacheStatus := "disabled"
	if s.cache != nil {
		cacheStatus = "ok"
	}

	status := "ok"
	httpStatus := http.StatusOK
	if storeStatus != "ok" {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	return c.JSON(httpStatus, map[string]any{
		"status": status,
		"services": map[string]string{
			"store": storeStatus,
			"cache": cacheStatus,
		},
	})
}
