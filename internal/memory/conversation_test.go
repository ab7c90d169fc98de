package memory_test

import (
	"context"
	"errors"
	"testing"

	"agentrouter/internal/domain"
	"agentrouter/internal/log"
	"agentrouter/internal/memory"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

type stubStore struct {
	domain.Store
	messages []domain.Message
	err      error
}

func (s *stubStore) GetMessages(ctx context.Context, sessionID uuid.UUID, limit int) ([]domain.Message, error) {
	return s.messages, s.err
}

func TestConversationMemoryHistory(t *testing.T) {
	logger := log.Init("debug")
	sessionID := uuid.New()

	t.Run("drops system messages by default", func(t *testing.T) {
		store := &stubStore{messages: []domain.Message{
			{Role: domain.RoleSystem, Text: "you are an assistant"},
			{Role: domain.RoleUser, Text: "hi"},
			{Role: domain.RoleAssistant, Text: "hello"},
		}}
		mem := memory.New(store, logger)
		history := mem.History(context.Background(), sessionID, 20, false)
		assert.Len(t, history, 2)
		assert.Equal(t, domain.RoleUser, history[0].Role)
	})

	t.Run("includes system messages when requested", func(t *testing.T) {
		store := &stubStore{messages: []domain.Message{
			{Role: domain.RoleSystem, Text: "you are an assistant"},
			{Role: domain.RoleUser, Text: "hi"},
		}}
		mem := memory.New(store, logger)
		history := mem.History(context.Background(), sessionID, 20, true)
		assert.Len(t, history, 2)
	})

	t.Run("a storage error degrades to empty history", func(t *testing.T) {
		store := &stubStore{err: errors.New("connection reset")}
		mem := memory.New(store, logger)
		history := mem.History(context.Background(), sessionID, 20, false)
		assert.Empty(t, history)
	})
}
