package httpapi

import (
	"errors"
	"net/http"

	"agentrouter/internal/domain"
)

// statusFor maps a domain sentinel error to the HTTP status the taxonomy
// assigns it. Order matters: errors.Is checks run top to bottom and the
// first match wins, so more specific sentinels are listed before generic
// fallbacks.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrTenantUnknown):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrTenantInactive):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrTenantMismatch):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrSessionBusy):
		return http.StatusConflict
	case errors.Is(err, domain.ErrConfigMissing), errors.Is(err, domain.ErrConfigDecryptFailure), errors.Is(err, domain.ErrProviderUnknown):
		return http.StatusInternalServerError
	case errors.Is(err, domain.ErrLLMAuth):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrLLMTransport):
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrStore):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// codeFor returns the machine-readable error code for a response body.
// Domain sentinels are constructed with errors.New(snake_case_name), so
// unwrapping to the sentinel's own message doubles as the code.
func codeFor(err error) string {
	for _, sentinel := range []error{
		domain.ErrTenantUnknown, domain.ErrTenantInactive, domain.ErrUnauthorized,
		domain.ErrTenantMismatch, domain.ErrPermissionDenied, domain.ErrSessionBusy,
		domain.ErrConfigMissing, domain.ErrConfigDecryptFailure, domain.ErrProviderUnknown,
		domain.ErrLLMAuth, domain.ErrLLMTransport, domain.ErrStore,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return "internal_error"
}

// errorBody is the JSON shape returned for every non-2xx response.
type errorBody struct {
	Status string `json:"status"`
	Code   string `json:"code"`
}

func newErrorBody(err error) errorBody {
	return errorBody{Status: "error", Code: codeFor(err)}
}
