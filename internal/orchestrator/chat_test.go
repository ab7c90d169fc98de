package orchestrator_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentrouter/internal/domain"
	"agentrouter/internal/log"
	"agentrouter/internal/orchestrator"
)

type fakeLock struct {
	released bool
}

func (l *fakeLock) Release(ctx context.Context) { l.released = true }

type stubStore struct {
	domain.Store

	tenant   *domain.Tenant
	session  *domain.Session
	messages []*domain.Message
	lockOK   bool

	createSessionCalled bool
	touchedAgent        string
}

func (s *stubStore) GetTenant(ctx context.Context, id uuid.UUID) (*domain.Tenant, error) {
	return s.tenant, nil
}
func (s *stubStore) GetTenantLLMBinding(ctx context.Context, tenantID uuid.UUID) (*domain.TenantLLMBinding, error) {
	return nil, nil
}
func (s *stubStore) GetSession(ctx context.Context, id uuid.UUID) (*domain.Session, error) {
	if s.session != nil && s.session.ID == id {
		return s.session, nil
	}
	return nil, nil
}
func (s *stubStore) CreateSession(ctx context.Context, tenantID uuid.UUID, userID string) (*domain.Session, error) {
	s.createSessionCalled = true
	s.session = &domain.Session{ID: uuid.New(), TenantID: tenantID, UserID: userID, CreatedAt: time.Now(), LastActivityAt: time.Now()}
	return s.session, nil
}
func (s *stubStore) TouchSession(ctx context.Context, sessionID uuid.UUID, agentName string) error {
	s.touchedAgent = agentName
	return nil
}
func (s *stubStore) CreateMessage(ctx context.Context, msg *domain.Message) error {
	msg.ID = uuid.New()
	s.messages = append(s.messages, msg)
	return nil
}
func (s *stubStore) TryAcquireSessionLock(ctx context.Context, sessionID uuid.UUID) (domain.SessionLock, bool, error) {
	if !s.lockOK {
		return nil, false, nil
	}
	return &fakeLock{}, true, nil
}

type stubRouter struct {
	outcome *domain.RouteOutcome
	result  *domain.AgentResult
	err     error
}

func (r *stubRouter) Route(ctx context.Context, tenantID, sessionID uuid.UUID, userText, bearerToken string) (*domain.RouteOutcome, *domain.AgentResult, error) {
	return r.outcome, r.result, r.err
}

func newTestStore() *stubStore {
	return &stubStore{
		tenant: &domain.Tenant{ID: uuid.New(), Name: "acme", Active: true},
		lockOK: true,
	}
}

func TestChatOrchestratorRoutesAndPersists(t *testing.T) {
	store := newTestStore()
	router := &stubRouter{
		outcome: &domain.RouteOutcome{AgentName: "billing", Language: domain.LanguageEnglish},
		result:  &domain.AgentResult{Text: "your balance is $0", ToolCallsMade: []string{"lookup_balance"}, LLMModel: "gpt-test", DurationMS: 12},
	}
	orch := orchestrator.New(store, router, log.Init("debug"), time.Second)

	result, err := orch.HandleChat(context.Background(), store.tenant.ID, nil, "user-1", "bearer-token", "what is my balance", nil)
	require.NoError(t, err)
	assert.Equal(t, "your balance is $0", result.Text)
	assert.Equal(t, "billing", result.Agent)
	assert.Equal(t, domain.IntentRouted, result.Intent)
	assert.True(t, store.createSessionCalled)
	assert.Equal(t, "billing", store.touchedAgent)
	require.Len(t, store.messages, 2)
	assert.Equal(t, domain.RoleUser, store.messages[0].Role)
	assert.Equal(t, domain.RoleAssistant, store.messages[1].Role)
}

func TestChatOrchestratorPersistsClarificationWithoutTouchingSession(t *testing.T) {
	store := newTestStore()
	router := &stubRouter{
		outcome: &domain.RouteOutcome{Unclear: true, ClarificationText: "could you clarify?", Language: domain.LanguageEnglish},
	}
	orch := orchestrator.New(store, router, log.Init("debug"), time.Second)

	result, err := orch.HandleChat(context.Background(), store.tenant.ID, nil, "user-1", "", "huh", nil)
	require.NoError(t, err)
	assert.Equal(t, domain.IntentUnclear, result.Intent)
	assert.Equal(t, "could you clarify?", result.Text)
	assert.Empty(t, store.touchedAgent)
}

func TestChatOrchestratorRejectsUnknownTenant(t *testing.T) {
	store := &stubStore{lockOK: true}
	orch := orchestrator.New(store, &stubRouter{}, log.Init("debug"), time.Second)

	_, err := orch.HandleChat(context.Background(), uuid.New(), nil, "user-1", "", "hi", nil)
	assert.ErrorIs(t, err, domain.ErrTenantUnknown)
}

func TestChatOrchestratorRejectsInactiveTenant(t *testing.T) {
	store := &stubStore{tenant: &domain.Tenant{ID: uuid.New(), Active: false}, lockOK: true}
	orch := orchestrator.New(store, &stubRouter{}, log.Init("debug"), time.Second)

	_, err := orch.HandleChat(context.Background(), store.tenant.ID, nil, "user-1", "", "hi", nil)
	assert.ErrorIs(t, err, domain.ErrTenantInactive)
}

func TestChatOrchestratorRejectsSessionFromAnotherTenant(t *testing.T) {
	foreignSession := &domain.Session{ID: uuid.New(), TenantID: uuid.New()}
	store := &stubStore{tenant: &domain.Tenant{ID: uuid.New(), Active: true}, session: foreignSession, lockOK: true}
	orch := orchestrator.New(store, &stubRouter{}, log.Init("debug"), time.Second)

	sid := foreignSession.ID
	_, err := orch.HandleChat(context.Background(), store.tenant.ID, &sid, "user-1", "", "hi", nil)
	assert.ErrorIs(t, err, domain.ErrTenantMismatch)
}

func TestChatOrchestratorReturnsSessionBusyWhenLockUnavailable(t *testing.T) {
	store := newTestStore()
	store.lockOK = false
	orch := orchestrator.New(store, &stubRouter{}, log.Init("debug"), 60*time.Millisecond)

	_, err := orch.HandleChat(context.Background(), store.tenant.ID, nil, "user-1", "", "hi", nil)
	assert.ErrorIs(t, err, domain.ErrSessionBusy)
}

func TestChatOrchestratorDoesNotPersistAssistantMessageOnRouterError(t *testing.T) {
	store := newTestStore()
	router := &stubRouter{err: assert.AnError}
	orch := orchestrator.New(store, router, log.Init("debug"), time.Second)

	_, err := orch.HandleChat(context.Background(), store.tenant.ID, nil, "user-1", "", "hi", nil)
	require.Error(t, err)
	require.Len(t, store.messages, 1)
	assert.Equal(t, domain.RoleUser, store.messages[0].Role)
}
