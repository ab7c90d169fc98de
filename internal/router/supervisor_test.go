package router_test

import (
	"context"
	"testing"

	"agentrouter/internal/domain"
	"agentrouter/internal/log"
	"agentrouter/internal/router"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubStore struct {
	domain.Store
	agents []domain.AgentSpec
	err    error
}

func (s *stubStore) ListAuthorizedAgents(ctx context.Context, tenantID uuid.UUID) ([]domain.AgentSpec, error) {
	return s.agents, s.err
}

type scriptedClient struct {
	reply string
}

func (c *scriptedClient) Provider() string { return "fake" }
func (c *scriptedClient) ChatCompletion(ctx context.Context, req *domain.ChatCompletionRequest) (*domain.ChatCompletionResponse, error) {
	return &domain.ChatCompletionResponse{Model: "gpt-test", Message: domain.ChatMessage{Role: domain.RoleAssistant, Content: c.reply}}, nil
}

type stubClientManager struct {
	client domain.ChatClient
}

func (m *stubClientManager) GetClient(ctx context.Context, tenantID uuid.UUID) (domain.ChatClient, error) {
	return m.client, nil
}
func (m *stubClientManager) InvalidateTenant(tenantID uuid.UUID) {}

type noMemory struct{}

func (noMemory) History(ctx context.Context, sessionID uuid.UUID, maxMessages int, includeSystem bool) []domain.TypedMessage {
	return nil
}

type recordingExecutor struct {
	invokedFor domain.ExecutorRequest
	result     *domain.AgentResult
}

func (e *recordingExecutor) Invoke(ctx context.Context, req domain.ExecutorRequest) (*domain.AgentResult, error) {
	e.invokedFor = req
	return e.result, nil
}

func testAgents() []domain.AgentSpec {
	return []domain.AgentSpec{
		{ID: uuid.New(), Name: "billing", Description: "handles invoices and payments"},
		{ID: uuid.New(), Name: "scheduling", Description: "books and reschedules appointments"},
	}
}

func TestSupervisorRouterDispatchesOnConfidentMatch(t *testing.T) {
	logger := log.Init("debug")
	store := &stubStore{agents: testAgents()}
	client := &scriptedClient{reply: "billing"}
	exec := &recordingExecutor{result: &domain.AgentResult{Text: "here is your invoice"}}
	r := router.New(store, &stubClientManager{client: client}, noMemory{}, exec, logger)

	outcome, result, err := r.Route(context.Background(), uuid.New(), uuid.New(), "what do I owe", "token")
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "billing", outcome.AgentName)
	assert.False(t, outcome.Unclear)
	assert.False(t, outcome.MultiIntent)
	assert.Equal(t, "here is your invoice", result.Text)
	assert.Equal(t, "billing", exec.invokedFor.Agent.Name)
}

func TestSupervisorRouterTieBreaksOnFirstMatchingLine(t *testing.T) {
	logger := log.Init("debug")
	store := &stubStore{agents: testAgents()}
	client := &scriptedClient{reply: "I think this is:\nbilling\nbut could also be scheduling"}
	exec := &recordingExecutor{result: &domain.AgentResult{Text: "ok"}}
	r := router.New(store, &stubClientManager{client: client}, noMemory{}, exec, logger)

	outcome, _, err := r.Route(context.Background(), uuid.New(), uuid.New(), "hi", "token")
	require.NoError(t, err)
	assert.Equal(t, "billing", outcome.AgentName)
}

func TestSupervisorRouterUnclearOnNoMatch(t *testing.T) {
	logger := log.Init("debug")
	store := &stubStore{agents: testAgents()}
	client := &scriptedClient{reply: "I'm not sure what you mean"}
	exec := &recordingExecutor{}
	r := router.New(store, &stubClientManager{client: client}, noMemory{}, exec, logger)

	outcome, result, err := r.Route(context.Background(), uuid.New(), uuid.New(), "???", "token")
	require.NoError(t, err)
	assert.Nil(t, result)
	assert.True(t, outcome.Unclear)
	assert.NotEmpty(t, outcome.ClarificationText)
}

func TestSupervisorRouterMultiIntent(t *testing.T) {
	logger := log.Init("debug")
	store := &stubStore{agents: testAgents()}
	client := &scriptedClient{reply: "MULTI_INTENT"}
	exec := &recordingExecutor{}
	r := router.New(store, &stubClientManager{client: client}, noMemory{}, exec, logger)

	outcome, result, err := r.Route(context.Background(), uuid.New(), uuid.New(), "pay my bill and also book an appointment", "token")
	require.NoError(t, err)
	assert.Nil(t, result)
	assert.True(t, outcome.MultiIntent)
}

func TestSupervisorRouterDetectsVietnamese(t *testing.T) {
	logger := log.Init("debug")
	store := &stubStore{agents: testAgents()}
	client := &scriptedClient{reply: "billing"}
	exec := &recordingExecutor{result: &domain.AgentResult{}}
	r := router.New(store, &stubClientManager{client: client}, noMemory{}, exec, logger)

	outcome, _, err := r.Route(context.Background(), uuid.New(), uuid.New(), "tôi muốn kiểm tra hóa đơn", "token")
	require.NoError(t, err)
	assert.Equal(t, domain.LanguageVietnamese, outcome.Language)
	assert.Equal(t, domain.LanguageVietnamese, exec.invokedFor.Language)
}

func TestSupervisorRouterRejectsTenantWithNoAuthorizedAgents(t *testing.T) {
	logger := log.Init("debug")
	store := &stubStore{agents: nil}
	r := router.New(store, &stubClientManager{}, noMemory{}, &recordingExecutor{}, logger)

	_, _, err := r.Route(context.Background(), uuid.New(), uuid.New(), "hi", "token")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)
}
