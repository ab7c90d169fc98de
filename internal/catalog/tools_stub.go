package catalog

import (
	"context"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"agentrouter/internal/domain"
	"agentrouter/internal/log"
)

// stubTool serves ToolSpec kinds without a concrete backing integration in
// this core (DB_QUERY, OCR). The spec treats these as external
// collaborators: the tool is registered, schema-validated, and callable,
// but the invocation result is a structured "not implemented" failure
// rather than a panic or a silently-wrong success.
type stubTool struct {
	spec   domain.ToolSpec
	schema *jsonschema.Schema
	logger *log.Logger
}

func newStubTool(spec domain.ToolSpec, schema *jsonschema.Schema, logger *log.Logger) *stubTool {
	return &stubTool{spec: spec, schema: schema, logger: logger}
}

func (t *stubTool) Name() string        { return t.spec.Name }
func (t *stubTool) Description() string { return t.spec.Description }
func (t *stubTool) SchemaJSON() []byte  { return t.spec.InputSchema }

func (t *stubTool) Validate(args map[string]any) error {
	return validateArgs(t.schema, t.spec.Name, args)
}

func (t *stubTool) Invoke(ctx context.Context, args map[string]any, _ string) (*domain.ToolInvocationResult, error) {
	t.logger.WithContext(ctx).Warn().
		Str("tool", t.spec.Name).
		Str("kind", string(t.spec.Kind)).
		Msg("tool kind has no backing integration in this deployment")

	return &domain.ToolInvocationResult{
		Success: false,
		Error:   "not_implemented",
		Detail:  "tool kind " + string(t.spec.Kind) + " has no backing integration configured",
	}, nil
}
