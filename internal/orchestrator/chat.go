// Package orchestrator implements ChatOrchestrator: the top-level,
// per-request contract that resolves a session, persists the inbound
// message, dispatches to the SupervisorRouter, and persists the outcome.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"agentrouter/internal/domain"
	"agentrouter/internal/log"
)

// ChatResult is the shape ChatOrchestrator.HandleChat returns, matching
// the HTTP response body one-for-one.
type ChatResult struct {
	SessionID uuid.UUID
	MessageID uuid.UUID
	Text      string
	Agent     string
	Intent    string
	Metadata  map[string]any
}

// ChatOrchestrator implements the per-request contract. Bearer-token
// resolution (header vs. test token) and JWT verification happen one
// layer up, in httpapi; by the time HandleChat is called, bearerToken is
// already the token to inject into outbound tool calls.
type ChatOrchestrator struct {
	store  domain.Store
	router domain.SupervisorRouterSvc
	logger *log.Logger

	sessionLockTimeout time.Duration
}

// requestTimeout bounds one whole chat turn, LLM and tool calls included.
const requestTimeout = 60 * time.Second

// New builds a ChatOrchestrator.
func New(store domain.Store, router domain.SupervisorRouterSvc, logger *log.Logger, sessionLockTimeout time.Duration) *ChatOrchestrator {
	return &ChatOrchestrator{store: store, router: router, logger: logger, sessionLockTimeout: sessionLockTimeout}
}

// HandleChat runs one chat turn for tenantID. sessionID is nil to start a
// new session. metadata is caller-supplied request metadata recorded on
// the inbound user Message.
func (o *ChatOrchestrator) HandleChat(ctx context.Context, tenantID uuid.UUID, sessionID *uuid.UUID, userID, bearerToken, userText string, metadata map[string]any) (*ChatResult, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	tenant, err := o.store.GetTenant(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("%w: get tenant: %v", domain.ErrStore, err)
	}
	if tenant == nil {
		return nil, domain.ErrTenantUnknown
	}
	if !tenant.Active {
		return nil, domain.ErrTenantInactive
	}

	session, err := o.resolveSession(ctx, tenantID, sessionID, userID)
	if err != nil {
		return nil, err
	}

	lock, acquired, err := o.acquireSessionLock(ctx, session.ID)
	if err != nil {
		return nil, err
	}
	if !acquired {
		return nil, domain.ErrSessionBusy
	}
	defer releaseLock(lock)

	userMsg := &domain.Message{SessionID: session.ID, Role: domain.RoleUser, Text: userText, Metadata: metadata, CreatedAt: time.Now().UTC()}
	if err := o.store.CreateMessage(ctx, userMsg); err != nil {
		return nil, fmt.Errorf("%w: persist user message: %v", domain.ErrStore, err)
	}

	outcome, result, err := o.router.Route(ctx, tenantID, session.ID, userText, bearerToken)
	if err != nil {
		// A cancellation or transport failure here must not produce a
		// persisted assistant message: the turn genuinely failed.
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if outcome.Unclear || outcome.MultiIntent {
		return o.persistClarification(ctx, session.ID, outcome)
	}

	return o.persistAgentResult(ctx, session.ID, outcome, result)
}

func (o *ChatOrchestrator) resolveSession(ctx context.Context, tenantID uuid.UUID, sessionID *uuid.UUID, userID string) (*domain.Session, error) {
	if sessionID == nil {
		session, err := o.store.CreateSession(ctx, tenantID, userID)
		if err != nil {
			return nil, fmt.Errorf("%w: create session: %v", domain.ErrStore, err)
		}
		return session, nil
	}

	session, err := o.store.GetSession(ctx, *sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: get session: %v", domain.ErrStore, err)
	}
	if session == nil || session.TenantID != tenantID {
		return nil, fmt.Errorf("%w: session does not belong to this tenant", domain.ErrTenantMismatch)
	}
	return session, nil
}

// acquireSessionLock retries the non-blocking advisory lock until either
// it is acquired or sessionLockTimeout elapses, at which point the caller
// should surface ErrSessionBusy: another request is already handling
// this session's turn.
func (o *ChatOrchestrator) acquireSessionLock(ctx context.Context, sessionID uuid.UUID) (domain.SessionLock, bool, error) {
	deadline := time.Now().Add(o.sessionLockTimeout)
	for {
		lock, ok, err := o.store.TryAcquireSessionLock(ctx, sessionID)
		if err != nil {
			return nil, false, err
		}
		if ok {
			return lock, true, nil
		}
		if time.Now().After(deadline) {
			return nil, false, nil
		}
		select {
		case <-ctx.Done():
			return nil, false, ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
}

// releaseLock unlocks using a fresh, short-lived context rather than the
// request's: a canceled request must still release its session lock, or
// the session would wedge for every subsequent turn.
func releaseLock(lock domain.SessionLock) {
	if lock == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	lock.Release(ctx)
}

func (o *ChatOrchestrator) persistClarification(ctx context.Context, sessionID uuid.UUID, outcome *domain.RouteOutcome) (*ChatResult, error) {
	intent := domain.IntentUnclear
	if outcome.MultiIntent {
		intent = domain.IntentMultiIntent
	}
	metadata := map[string]any{"intent": intent, "language": outcome.Language}

	msg := &domain.Message{SessionID: sessionID, Role: domain.RoleAssistant, Text: outcome.ClarificationText, Metadata: metadata, CreatedAt: time.Now().UTC()}
	if err := o.store.CreateMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("%w: persist clarification message: %v", domain.ErrStore, err)
	}

	return &ChatResult{
		SessionID: sessionID,
		MessageID: msg.ID,
		Text:      outcome.ClarificationText,
		Intent:    intent,
		Metadata:  metadata,
	}, nil
}

func (o *ChatOrchestrator) persistAgentResult(ctx context.Context, sessionID uuid.UUID, outcome *domain.RouteOutcome, result *domain.AgentResult) (*ChatResult, error) {
	metadata := map[string]any{
		"intent":             domain.IntentRouted,
		"agent":              outcome.AgentName,
		"tool_calls":         result.ToolCallsMade,
		"extracted_entities": result.EntitiesExtracted,
		"llm_model":          result.LLMModel,
		"duration_ms":        result.DurationMS,
		"language":           outcome.Language,
	}
	if result.Overflow {
		metadata["overflow"] = true
	}

	msg := &domain.Message{SessionID: sessionID, Role: domain.RoleAssistant, Text: result.Text, Metadata: metadata, CreatedAt: time.Now().UTC()}
	if err := o.store.CreateMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("%w: persist assistant message: %v", domain.ErrStore, err)
	}

	if err := o.store.TouchSession(ctx, sessionID, outcome.AgentName); err != nil {
		o.logger.WithContext(ctx).Warn().Err(err).Str("session_id", sessionID.String()).Msg("failed to touch session after turn")
	}

	return &ChatResult{
		SessionID: sessionID,
		MessageID: msg.ID,
		Text:      result.Text,
		Agent:     outcome.AgentName,
		Intent:    domain.IntentRouted,
		Metadata:  metadata,
	}, nil
}
