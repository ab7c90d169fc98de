package domain

import "errors"

// Sentinel errors for the taxonomy in the router's error-handling design.
// Each is tested with errors.Is; httpapi maps them to status codes.
var (
	ErrTenantUnknown        = errors.New("tenant_unknown")
	ErrTenantInactive       = errors.New("tenant_inactive")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrTenantMismatch       = errors.New("tenant_mismatch")
	ErrSessionBusy          = errors.New("session_busy")
	ErrConfigMissing        = errors.New("config_missing")
	ErrConfigDecryptFailure = errors.New("config_decrypt_failure")
	ErrProviderUnknown      = errors.New("provider_unknown")
	ErrPermissionDenied     = errors.New("permission_denied")
	ErrSchemaInvalid        = errors.New("schema_invalid")
	ErrToolTransport        = errors.New("tool_transport_error")
	ErrToolHTTP             = errors.New("tool_http_error")
	ErrToolTimeout          = errors.New("tool_timeout")
	ErrLLMTransport         = errors.New("llm_transport_error")
	ErrLLMAuth              = errors.New("llm_auth_error")
	ErrStore                = errors.New("store_error")
)
