package store_test

import (
	"context"
	"testing"
	"time"

	"agentrouter/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockStore implements domain.Store for testing consumers of the interface.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) GetTenant(ctx context.Context, id uuid.UUID) (*domain.Tenant, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Tenant), args.Error(1)
}

func (m *MockStore) GetLLMProviderModel(ctx context.Context, id uuid.UUID) (*domain.LLMProviderModel, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.LLMProviderModel), args.Error(1)
}

func (m *MockStore) GetTenantLLMBinding(ctx context.Context, tenantID uuid.UUID) (*domain.TenantLLMBinding, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.TenantLLMBinding), args.Error(1)
}

func (m *MockStore) GetAgentSpec(ctx context.Context, id uuid.UUID) (*domain.AgentSpec, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AgentSpec), args.Error(1)
}

func (m *MockStore) GetAgentSpecByName(ctx context.Context, name string) (*domain.AgentSpec, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AgentSpec), args.Error(1)
}

func (m *MockStore) GetToolSpec(ctx context.Context, id uuid.UUID) (*domain.ToolSpec, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ToolSpec), args.Error(1)
}

func (m *MockStore) ListAgentTools(ctx context.Context, agentID uuid.UUID, limit int) ([]domain.AgentTool, error) {
	args := m.Called(ctx, agentID, limit)
	return args.Get(0).([]domain.AgentTool), args.Error(1)
}

func (m *MockStore) ListAuthorizedAgents(ctx context.Context, tenantID uuid.UUID) ([]domain.AgentSpec, error) {
	args := m.Called(ctx, tenantID)
	return args.Get(0).([]domain.AgentSpec), args.Error(1)
}

func (m *MockStore) IsAgentGranted(ctx context.Context, tenantID, agentID uuid.UUID) (bool, error) {
	args := m.Called(ctx, tenantID, agentID)
	return args.Bool(0), args.Error(1)
}

func (m *MockStore) IsToolGranted(ctx context.Context, tenantID, toolID uuid.UUID) (bool, error) {
	args := m.Called(ctx, tenantID, toolID)
	return args.Bool(0), args.Error(1)
}

func (m *MockStore) GetSession(ctx context.Context, id uuid.UUID) (*domain.Session, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Session), args.Error(1)
}

func (m *MockStore) CreateSession(ctx context.Context, tenantID uuid.UUID, userID string) (*domain.Session, error) {
	args := m.Called(ctx, tenantID, userID)
	return args.Get(0).(*domain.Session), args.Error(1)
}

func (m *MockStore) TouchSession(ctx context.Context, sessionID uuid.UUID, agentName string) error {
	args := m.Called(ctx, sessionID, agentName)
	return args.Error(0)
}

func (m *MockStore) ListSessions(ctx context.Context, tenantID uuid.UUID, userID string, limit, offset int) ([]domain.Session, int, error) {
	args := m.Called(ctx, tenantID, userID, limit, offset)
	return args.Get(0).([]domain.Session), args.Int(1), args.Error(2)
}

func (m *MockStore) CreateMessage(ctx context.Context, msg *domain.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *MockStore) GetMessages(ctx context.Context, sessionID uuid.UUID, limit int) ([]domain.Message, error) {
	args := m.Called(ctx, sessionID, limit)
	return args.Get(0).([]domain.Message), args.Error(1)
}

func (m *MockStore) TryAcquireSessionLock(ctx context.Context, sessionID uuid.UUID) (domain.SessionLock, bool, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(domain.SessionLock), args.Bool(1), args.Error(2)
}

func (m *MockStore) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func TestStoreInterfaceCompliance(t *testing.T) {
	t.Run("mock store implements domain.Store", func(t *testing.T) {
		var _ domain.Store = (*MockStore)(nil)
	})
}

func TestSessionOperations(t *testing.T) {
	ctx := context.Background()
	mockStore := new(MockStore)
	tenantID := uuid.New()

	t.Run("create session", func(t *testing.T) {
		expected := &domain.Session{
			ID:             uuid.New(),
			TenantID:       tenantID,
			UserID:         "user-1",
			CreatedAt:      time.Now(),
			LastActivityAt: time.Now(),
		}
		mockStore.On("CreateSession", ctx, tenantID, "user-1").Return(expected, nil)

		session, err := mockStore.CreateSession(ctx, tenantID, "user-1")
		assert.NoError(t, err)
		assert.Equal(t, "user-1", session.UserID)
		mockStore.AssertExpectations(t)
	})

	t.Run("list sessions returns total count", func(t *testing.T) {
		sessions := []domain.Session{
			{ID: uuid.New(), TenantID: tenantID, UserID: "user-1"},
		}
		mockStore.On("ListSessions", ctx, tenantID, "user-1", 20, 0).Return(sessions, 1, nil)

		got, total, err := mockStore.ListSessions(ctx, tenantID, "user-1", 20, 0)
		assert.NoError(t, err)
		assert.Equal(t, 1, total)
		assert.Len(t, got, 1)
		mockStore.AssertExpectations(t)
	})
}

func TestPermissionGrantChecks(t *testing.T) {
	ctx := context.Background()
	mockStore := new(MockStore)
	tenantID := uuid.New()
	agentID := uuid.New()
	toolID := uuid.New()

	t.Run("agent granted", func(t *testing.T) {
		mockStore.On("IsAgentGranted", ctx, tenantID, agentID).Return(true, nil)

		granted, err := mockStore.IsAgentGranted(ctx, tenantID, agentID)
		assert.NoError(t, err)
		assert.True(t, granted)
		mockStore.AssertExpectations(t)
	})

	t.Run("tool not granted", func(t *testing.T) {
		mockStore.On("IsToolGranted", ctx, tenantID, toolID).Return(false, nil)

		granted, err := mockStore.IsToolGranted(ctx, tenantID, toolID)
		assert.NoError(t, err)
		assert.False(t, granted)
		mockStore.AssertExpectations(t)
	})
}
