// Package store is the persistence layer. PostgresStore is the raw-SQL
// implementation; TenantScopedStore wraps it to set/clear the RLS session
// variable the schema's row-level-security policies key off of.
package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"agentrouter/internal/domain"
	"agentrouter/internal/log"
)

// PostgresStore implements domain.Store against a central Postgres database.
type PostgresStore struct {
	db     *pgxpool.Pool
	logger *log.Logger
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(db *pgxpool.Pool, logger *log.Logger) *PostgresStore {
	return &PostgresStore{db: db, logger: logger}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *PostgresStore) GetTenant(ctx context.Context, id uuid.UUID) (*domain.Tenant, error) {
	const query = `
		SELECT id, name, active, created_at, updated_at
		FROM tenants
		WHERE id = $1
	`
	var t domain.Tenant
	err := s.db.QueryRow(ctx, query, id).Scan(&t.ID, &t.Name, &t.Active, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("store: get tenant: %w", err)
	}
	return &t, nil
}

func (s *PostgresStore) GetLLMProviderModel(ctx context.Context, id uuid.UUID) (*domain.LLMProviderModel, error) {
	const query = `
		SELECT id, provider, model_name, context_window, cost_per_input_token_usd,
		       cost_per_output_token_usd, active, created_at
		FROM llm_provider_models
		WHERE id = $1
	`
	var m domain.LLMProviderModel
	err := s.db.QueryRow(ctx, query, id).Scan(
		&m.ID, &m.Provider, &m.ModelName, &m.ContextWindow, &m.CostPerInputUSD,
		&m.CostPerOutputUSD, &m.Active, &m.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("store: get llm provider model: %w", err)
	}
	return &m, nil
}

func (s *PostgresStore) GetTenantLLMBinding(ctx context.Context, tenantID uuid.UUID) (*domain.TenantLLMBinding, error) {
	const query = `
		SELECT id, tenant_id, llm_provider_model_id, api_key_ciphertext,
		       rate_limit_rpm, rate_limit_tpm, created_at, updated_at
		FROM tenant_llm_bindings
		WHERE tenant_id = $1
	`
	var b domain.TenantLLMBinding
	err := s.db.QueryRow(ctx, query, tenantID).Scan(
		&b.ID, &b.TenantID, &b.LLMProviderModelID, &b.APIKeyCiphertext,
		&b.RateLimitRPM, &b.RateLimitTPM, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("store: get tenant llm binding: %w", err)
	}
	return &b, nil
}

func (s *PostgresStore) GetAgentSpec(ctx context.Context, id uuid.UUID) (*domain.AgentSpec, error) {
	const query = `
		SELECT id, name, description, system_prompt, llm_provider_model_id,
		       handler_class, active, created_at, updated_at
		FROM agent_specs
		WHERE id = $1
	`
	return s.scanAgentSpec(s.db.QueryRow(ctx, query, id))
}

func (s *PostgresStore) GetAgentSpecByName(ctx context.Context, name string) (*domain.AgentSpec, error) {
	const query = `
		SELECT id, name, description, system_prompt, llm_provider_model_id,
		       handler_class, active, created_at, updated_at
		FROM agent_specs
		WHERE name = $1
	`
	return s.scanAgentSpec(s.db.QueryRow(ctx, query, name))
}

func (s *PostgresStore) scanAgentSpec(row pgx.Row) (*domain.AgentSpec, error) {
	var a domain.AgentSpec
	err := row.Scan(
		&a.ID, &a.Name, &a.Description, &a.SystemPrompt, &a.LLMProviderModelID,
		&a.HandlerClass, &a.Active, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("store: get agent spec: %w", err)
	}
	return &a, nil
}

func (s *PostgresStore) GetToolSpec(ctx context.Context, id uuid.UUID) (*domain.ToolSpec, error) {
	const query = `
		SELECT id, name, kind, description, endpoint_template, static_headers,
		       timeout_seconds, input_schema, output_format, active, created_at, updated_at
		FROM tool_specs
		WHERE id = $1
	`
	var t domain.ToolSpec
	var headersJSON []byte
	err := s.db.QueryRow(ctx, query, id).Scan(
		&t.ID, &t.Name, &t.Kind, &t.Description, &t.EndpointTemplate, &headersJSON,
		&t.TimeoutSeconds, &t.InputSchema, &t.OutputFormat, &t.Active, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("store: get tool spec: %w", err)
	}
	if len(headersJSON) > 0 {
		if err := json.Unmarshal(headersJSON, &t.StaticHeaders); err != nil {
			return nil, fmt.Errorf("store: unmarshal static headers: %w", err)
		}
	}
	return &t, nil
}

func (s *PostgresStore) ListAgentTools(ctx context.Context, agentID uuid.UUID, limit int) ([]domain.AgentTool, error) {
	const query = `
		SELECT at.agent_spec_id, at.tool_spec_id, at.priority
		FROM agent_tools at
		JOIN tool_specs ts ON ts.id = at.tool_spec_id
		WHERE at.agent_spec_id = $1
		ORDER BY at.priority ASC, ts.name ASC
		LIMIT $2
	`
	rows, err := s.db.Query(ctx, query, agentID, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list agent tools: %w", err)
	}
	defer rows.Close()

	var tools []domain.AgentTool
	for rows.Next() {
		var at domain.AgentTool
		if err := rows.Scan(&at.AgentSpecID, &at.ToolSpecID, &at.Priority); err != nil {
			return nil, fmt.Errorf("store: scan agent tool: %w", err)
		}
		tools = append(tools, at)
	}
	return tools, rows.Err()
}

func (s *PostgresStore) ListAuthorizedAgents(ctx context.Context, tenantID uuid.UUID) ([]domain.AgentSpec, error) {
	const query = `
		SELECT a.id, a.name, a.description, a.system_prompt, a.llm_provider_model_id,
		       a.handler_class, a.active, a.created_at, a.updated_at
		FROM agent_specs a
		JOIN tenant_agent_grants g ON g.agent_spec_id = a.id
		WHERE g.tenant_id = $1 AND g.enabled = true AND a.active = true
		ORDER BY a.name ASC
	`
	rows, err := s.db.Query(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("store: list authorized agents: %w", err)
	}
	defer rows.Close()

	var agents []domain.AgentSpec
	for rows.Next() {
		var a domain.AgentSpec
		if err := rows.Scan(
			&a.ID, &a.Name, &a.Description, &a.SystemPrompt, &a.LLMProviderModelID,
			&a.HandlerClass, &a.Active, &a.CreatedAt, &a.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("store: scan agent spec: %w", err)
		}
		agents = append(agents, a)
	}
	return agents, rows.Err()
}

func (s *PostgresStore) IsAgentGranted(ctx context.Context, tenantID, agentID uuid.UUID) (bool, error) {
	const query = `
		SELECT enabled FROM tenant_agent_grants
		WHERE tenant_id = $1 AND agent_spec_id = $2
	`
	var enabled bool
	err := s.db.QueryRow(ctx, query, tenantID, agentID).Scan(&enabled)
	if err != nil {
		if err == pgx.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("store: is agent granted: %w", err)
	}
	return enabled, nil
}

func (s *PostgresStore) IsToolGranted(ctx context.Context, tenantID, toolID uuid.UUID) (bool, error) {
	const query = `
		SELECT enabled FROM tenant_tool_grants
		WHERE tenant_id = $1 AND tool_spec_id = $2
	`
	var enabled bool
	err := s.db.QueryRow(ctx, query, tenantID, toolID).Scan(&enabled)
	if err != nil {
		if err == pgx.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("store: is tool granted: %w", err)
	}
	return enabled, nil
}

func (s *PostgresStore) GetSession(ctx context.Context, id uuid.UUID) (*domain.Session, error) {
	const query = `
		SELECT id, tenant_id, user_id, last_agent_name, created_at, last_activity_at
		FROM sessions
		WHERE id = $1
	`
	var sess domain.Session
	err := s.db.QueryRow(ctx, query, id).Scan(
		&sess.ID, &sess.TenantID, &sess.UserID, &sess.LastAgentName, &sess.CreatedAt, &sess.LastActivityAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("store: get session: %w", err)
	}
	return &sess, nil
}

func (s *PostgresStore) CreateSession(ctx context.Context, tenantID uuid.UUID, userID string) (*domain.Session, error) {
	const query = `
		INSERT INTO sessions (id, tenant_id, user_id, created_at, last_activity_at)
		VALUES ($1, $2, $3, now(), now())
		RETURNING id, tenant_id, user_id, last_agent_name, created_at, last_activity_at
	`
	var sess domain.Session
	err := s.db.QueryRow(ctx, query, uuid.New(), tenantID, userID).Scan(
		&sess.ID, &sess.TenantID, &sess.UserID, &sess.LastAgentName, &sess.CreatedAt, &sess.LastActivityAt,
	)
	if err != nil {
		return nil, fmt.Errorf("store: create session: %w", err)
	}

	s.logger.WithContext(ctx).Debug().
		Str("session_id", sess.ID.String()).
		Str("tenant_id", tenantID.String()).
		Msg("session created")

	return &sess, nil
}

func (s *PostgresStore) TouchSession(ctx context.Context, sessionID uuid.UUID, agentName string) error {
	const query = `
		UPDATE sessions
		SET last_agent_name = $1, last_activity_at = now()
		WHERE id = $2
	`
	_, err := s.db.Exec(ctx, query, agentName, sessionID)
	if err != nil {
		return fmt.Errorf("store: touch session: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListSessions(ctx context.Context, tenantID uuid.UUID, userID string, limit, offset int) ([]domain.Session, int, error) {
	const countQuery = `
		SELECT count(*) FROM sessions WHERE tenant_id = $1 AND ($2 = '' OR user_id = $2)
	`
	var total int
	if err := s.db.QueryRow(ctx, countQuery, tenantID, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("store: count sessions: %w", err)
	}

	const query = `
		SELECT id, tenant_id, user_id, last_agent_name, created_at, last_activity_at
		FROM sessions
		WHERE tenant_id = $1 AND ($2 = '' OR user_id = $2)
		ORDER BY last_activity_at DESC
		LIMIT $3 OFFSET $4
	`
	rows, err := s.db.Query(ctx, query, tenantID, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("store: list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []domain.Session
	for rows.Next() {
		var sess domain.Session
		if err := rows.Scan(
			&sess.ID, &sess.TenantID, &sess.UserID, &sess.LastAgentName, &sess.CreatedAt, &sess.LastActivityAt,
		); err != nil {
			return nil, 0, fmt.Errorf("store: scan session: %w", err)
		}
		sessions = append(sessions, sess)
	}
	return sessions, total, rows.Err()
}

func (s *PostgresStore) CreateMessage(ctx context.Context, msg *domain.Message) error {
	const query = `
		INSERT INTO messages (id, session_id, role, text, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	metadataJSON, err := json.Marshal(msg.Metadata)
	if err != nil {
		return fmt.Errorf("store: marshal message metadata: %w", err)
	}
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	_, err = s.db.Exec(ctx, query, msg.ID, msg.SessionID, msg.Role, msg.Text, metadataJSON, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("store: create message: %w", err)
	}
	return nil
}

// pgSessionLock wraps the dedicated connection an advisory lock was taken
// on. Advisory locks are session-scoped in Postgres, so the connection
// must be held, not returned to the pool, until Release unlocks it.
type pgSessionLock struct {
	conn   *pgxpool.Conn
	lockID int64
	logger *log.Logger
}

func (l *pgSessionLock) Release(ctx context.Context) {
	defer l.conn.Release()
	if _, err := l.conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", l.lockID); err != nil {
		l.logger.WithContext(ctx).Warn().Err(err).Int64("lock_id", l.lockID).Msg("session advisory lock unlock failed")
	}
}

// TryAcquireSessionLock takes a non-blocking session-scoped advisory lock
// keyed by hashSessionID(session_id). A dedicated connection is reserved from
// the pool for the lock's lifetime since Postgres advisory locks are tied
// to the connection that took them, not to a transaction.
func (s *PostgresStore) TryAcquireSessionLock(ctx context.Context, sessionID uuid.UUID) (domain.SessionLock, bool, error) {
	conn, err := s.db.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("store: acquire connection for session lock: %w", err)
	}

	lockID := int64(hashSessionID(sessionID))
	var acquired bool
	if err := conn.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", lockID).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("store: try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	return &pgSessionLock{conn: conn, lockID: lockID, logger: s.logger}, true, nil
}

// hashSessionID folds a uuid into a signed 64-bit key for pg_try_advisory_lock
// by XOR-ing its first 8 bytes with its last 8 bytes.
func hashSessionID(id uuid.UUID) int64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v = v<<8 | uint64(id[i]^id[i+8])
	}
	return int64(v)
}

func (s *PostgresStore) GetMessages(ctx context.Context, sessionID uuid.UUID, limit int) ([]domain.Message, error) {
	const query = `
		SELECT id, session_id, role, text, metadata, created_at
		FROM messages
		WHERE session_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := s.db.Query(ctx, query, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("store: get messages: %w", err)
	}
	defer rows.Close()

	var messages []domain.Message
	for rows.Next() {
		var m domain.Message
		var metadataJSON []byte
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Text, &metadataJSON, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scan message: %w", err)
		}
		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &m.Metadata); err != nil {
				return nil, fmt.Errorf("store: unmarshal message metadata: %w", err)
			}
		}
		messages = append(messages, m)
	}
	// Reverse into chronological order; the query fetched most-recent-first
	// to make LIMIT bound the right end of a long history.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, rows.Err()
}
