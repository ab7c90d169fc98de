// Package memory implements domain.ConversationMemory: bounded chat
// history reconstruction from persisted messages.
package memory

import (
	"context"

	"github.com/google/uuid"

	"agentrouter/internal/domain"
	"agentrouter/internal/log"
)

// ConversationMemory reconstructs the most recent maxMessages turns of a
// session in chronological order. A storage error degrades to empty
// history rather than blocking the request: memory loss is recoverable,
// a stalled chat turn is not.
type ConversationMemory struct {
	store  domain.Store
	logger *log.Logger
}

// New builds a ConversationMemory over store.
func New(store domain.Store, logger *log.Logger) *ConversationMemory {
	return &ConversationMemory{store: store, logger: logger}
}

// History returns up to maxMessages of sessionID's most recent messages,
// oldest first. System messages are dropped unless includeSystem is set.
func (m *ConversationMemory) History(ctx context.Context, sessionID uuid.UUID, maxMessages int, includeSystem bool) []domain.TypedMessage {
	messages, err := m.store.GetMessages(ctx, sessionID, maxMessages)
	if err != nil {
		m.logger.WithContext(ctx).Warn().Err(err).Str("session_id", sessionID.String()).Msg("conversation history unavailable, continuing without it")
		return nil
	}

	history := make([]domain.TypedMessage, 0, len(messages))
	for _, msg := range messages {
		if msg.Role == domain.RoleSystem && !includeSystem {
			continue
		}
		history = append(history, domain.TypedMessage{Role: msg.Role, Text: msg.Text})
	}
	return history
}
