package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"agentrouter/internal/domain"
	"agentrouter/internal/log"
)

const embeddingDimensions = 1536

// ragTool adapts a ToolSpec of kind RAG into a domain.CallableTool backed by
// a pgvector similarity search over the tenant's knowledge_chunks table.
// tenantID is closed over from the agent/tenant this tool was loaded for,
// never taken from the LLM-supplied call arguments, so a tool call cannot
// be made to read another tenant's knowledge base. Embedding generation is
// an external collaborator (spec's knowledge-base ingestion pipeline is out
// of scope); queryEmbed stands in for it with a deterministic hash-seeded
// vector.
type ragTool struct {
	spec     domain.ToolSpec
	tenantID uuid.UUID
	schema   *jsonschema.Schema
	db       *pgxpool.Pool
	logger   *log.Logger
}

func newRAGTool(spec domain.ToolSpec, tenantID uuid.UUID, schema *jsonschema.Schema, db *pgxpool.Pool, logger *log.Logger) *ragTool {
	return &ragTool{spec: spec, tenantID: tenantID, schema: schema, db: db, logger: logger}
}

func (t *ragTool) Name() string        { return t.spec.Name }
func (t *ragTool) Description() string { return t.spec.Description }
func (t *ragTool) SchemaJSON() []byte  { return t.spec.InputSchema }

func (t *ragTool) Validate(args map[string]any) error {
	return validateArgs(t.schema, t.spec.Name, args)
}

func (t *ragTool) Invoke(ctx context.Context, args map[string]any, _ string) (*domain.ToolInvocationResult, error) {
	queryText, _ := args["query_text"].(string)
	if queryText == "" {
		return &domain.ToolInvocationResult{Success: false, Error: "query_text is required"}, nil
	}

	topK := 5
	if v, ok := args["top_k"].(float64); ok && v > 0 {
		topK = int(v)
	}

	embedding := queryEmbed(queryText)

	rows, err := t.db.Query(ctx, `
		SELECT content, metadata, embedding <=> $1 AS distance
		FROM knowledge_chunks
		WHERE tenant_id = $2
		ORDER BY embedding <=> $1
		LIMIT $3
	`, pgvector.NewVector(embedding), t.tenantID, topK)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrToolTransport, t.spec.Name, err)
	}
	defer rows.Close()

	var documents []domain.RAGDocument
	for rows.Next() {
		var doc domain.RAGDocument
		var metadata []byte
		if err := rows.Scan(&doc.Content, &metadata, &doc.Distance); err != nil {
			return nil, fmt.Errorf("%w: %s: scan: %v", domain.ErrToolTransport, t.spec.Name, err)
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &doc.Metadata); err != nil {
				return nil, fmt.Errorf("%w: %s: metadata: %v", domain.ErrToolTransport, t.spec.Name, err)
			}
		}
		documents = append(documents, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrToolTransport, t.spec.Name, err)
	}

	result := domain.RAGResult{Documents: documents, Success: true}
	return &domain.ToolInvocationResult{Success: true, Result: result}, nil
}

// queryEmbed produces a deterministic, hash-seeded unit vector for text.
// Standing in for a real embedding model call, which is out of scope here.
func queryEmbed(text string) []float32 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	r := rand.New(rand.NewSource(int64(h.Sum64())))

	vec := make([]float32, embeddingDimensions)
	var norm float64
	for i := range vec {
		v := r.Float32()*2 - 1
		vec[i] = v
		norm += float64(v) * float64(v)
	}
	norm = math.Sqrt(norm)
	if norm > 0 {
		for i := range vec {
			vec[i] = float32(float64(vec[i]) / norm)
		}
	}
	return vec
}
