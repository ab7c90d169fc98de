package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"agentrouter/internal/domain"
	"agentrouter/internal/log"
)

// httpTool adapts a ToolSpec of kind HTTP_GET/HTTP_POST into a
// domain.CallableTool. The endpoint template's {placeholder} segments are
// filled from the invocation args; any remaining args are sent as query
// parameters (GET) or a JSON body (POST).
type httpTool struct {
	spec   domain.ToolSpec
	schema *jsonschema.Schema
	client *http.Client
	logger *log.Logger
}

func newHTTPTool(spec domain.ToolSpec, schema *jsonschema.Schema, logger *log.Logger) *httpTool {
	timeout := time.Duration(spec.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &httpTool{
		spec:   spec,
		schema: schema,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

func (t *httpTool) Name() string        { return t.spec.Name }
func (t *httpTool) Description() string { return t.spec.Description }
func (t *httpTool) SchemaJSON() []byte  { return t.spec.InputSchema }

func (t *httpTool) Validate(args map[string]any) error {
	return validateArgs(t.schema, t.spec.Name, args)
}

func (t *httpTool) Invoke(ctx context.Context, args map[string]any, bearerToken string) (*domain.ToolInvocationResult, error) {
	start := time.Now()

	endpoint, remaining := fillTemplate(t.spec.EndpointTemplate, args)

	method := http.MethodGet
	var body io.Reader
	if t.spec.Kind == domain.ToolKindHTTPPost {
		method = http.MethodPost
		if len(remaining) > 0 {
			payload, err := json.Marshal(remaining)
			if err != nil {
				return nil, fmt.Errorf("%w: marshal request body: %v", domain.ErrToolTransport, err)
			}
			body = bytes.NewReader(payload)
		}
	} else if len(remaining) > 0 {
		u, err := url.Parse(endpoint)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid endpoint: %v", domain.ErrToolTransport, err)
		}
		q := u.Query()
		for k, v := range remaining {
			q.Set(k, fmt.Sprintf("%v", v))
		}
		u.RawQuery = q.Encode()
		endpoint = u.String()
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", domain.ErrToolTransport, err)
	}
	for key, value := range t.spec.StaticHeaders {
		req.Header.Set(key, value)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+bearerToken)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		t.logger.WithContext(ctx).Warn().Err(err).Str("tool", t.spec.Name).Dur("duration", time.Since(start)).Msg("tool http call failed")
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %s: %v", domain.ErrToolTimeout, t.spec.Name, err)
		}
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrToolTransport, t.spec.Name, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", domain.ErrToolTransport, err)
	}

	t.logger.LogAPICall(t.spec.Name, method, endpoint, resp.StatusCode, time.Since(start))

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%w: %s: status %d: %s", domain.ErrToolHTTP, t.spec.Name, resp.StatusCode, log.SanitizeText(string(respBody)))
	}

	var decoded any
	if strings.Contains(resp.Header.Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(respBody, &decoded); err != nil {
			decoded = string(respBody)
		}
	} else {
		decoded = string(respBody)
	}

	return &domain.ToolInvocationResult{Success: true, Result: decoded}, nil
}

// fillTemplate substitutes {name} segments in template with args[name],
// returning the filled string and the args not consumed by the template.
func fillTemplate(template string, args map[string]any) (string, map[string]any) {
	remaining := make(map[string]any, len(args))
	for k, v := range args {
		remaining[k] = v
	}

	result := template
	for key, value := range args {
		placeholder := "{" + key + "}"
		if strings.Contains(result, placeholder) {
			result = strings.ReplaceAll(result, placeholder, fmt.Sprintf("%v", value))
			delete(remaining, key)
		}
	}
	return result, remaining
}
