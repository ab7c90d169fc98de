// Package router implements domain.SupervisorRouterSvc: it classifies an
// inbound message into one authorized agent (by name) or a clarification
// outcome, then dispatches to the executor.
package router

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"agentrouter/internal/domain"
	"agentrouter/internal/log"
)

const (
	multiIntentToken = "MULTI_INTENT"
	unclearToken     = "UNCLEAR"

	// defaultHistoryLimit caps the bounded history window fed to the
	// classifier call, independent of the executor's own history bound.
	defaultHistoryLimit = 10
)

// vietnameseChars matches the diacritic and đ/Đ code points unique to
// Vietnamese orthography. Their presence is a reliable enough signal for a
// coarse two-way language split; anything else defaults to English.
var vietnameseChars = regexp.MustCompile(`[àáạảãâầấậẩẫăằắặẳẵèéẹẻẽêềếệểễìíịỉĩòóọỏõôồốộổỗơờớợởỡùúụủũưừứựửữỳýỵỷỹđÀÁẠẢÃÂẦẤẬẨẪĂẰẮẶẲẴÈÉẸẺẼÊỀẾỆỂỄÌÍỊỈĨÒÓỌỎÕÔỒỐỘỔỖƠỜỚỢỞỠÙÚỤỦŨƯỪỨỰỬỮỲÝỴỶỸĐ]`)

// SupervisorRouter implements domain.SupervisorRouterSvc.
type SupervisorRouter struct {
	store    domain.Store
	clients  domain.LLMClientManager
	memory   domain.ConversationMemory
	executor domain.ExecutorStrategy
	logger   *log.Logger

	historyLimit int
}

// New builds a SupervisorRouter.
func New(store domain.Store, clients domain.LLMClientManager, memory domain.ConversationMemory, executor domain.ExecutorStrategy, logger *log.Logger) *SupervisorRouter {
	return &SupervisorRouter{
		store:        store,
		clients:      clients,
		memory:       memory,
		executor:     executor,
		logger:       logger,
		historyLimit: defaultHistoryLimit,
	}
}

// Route classifies userText against tenantID's authorized agents and, on a
// confident match, runs the chosen agent via the executor. It never
// returns a partial outcome: exactly one of (agent dispatched) or
// (clarification outcome) is returned on a nil error.
func (r *SupervisorRouter) Route(ctx context.Context, tenantID, sessionID uuid.UUID, userText, bearerToken string) (*domain.RouteOutcome, *domain.AgentResult, error) {
	agents, err := r.store.ListAuthorizedAgents(ctx, tenantID)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: list authorized agents: %v", domain.ErrStore, err)
	}
	if len(agents) == 0 {
		return nil, nil, fmt.Errorf("%w: tenant has no authorized agents", domain.ErrPermissionDenied)
	}

	language := detectLanguage(userText)

	client, err := r.clients.GetClient(ctx, tenantID)
	if err != nil {
		return nil, nil, err
	}

	history := r.memory.History(ctx, sessionID, r.historyLimit, false)

	messages := make([]domain.ChatMessage, 0, len(history)+2)
	messages = append(messages, domain.ChatMessage{Role: domain.RoleSystem, Content: classifierPrompt(agents, language)})
	for _, h := range history {
		messages = append(messages, domain.ChatMessage{Role: h.Role, Content: h.Text})
	}
	messages = append(messages, domain.ChatMessage{Role: domain.RoleUser, Content: userText})

	resp, err := client.ChatCompletion(ctx, &domain.ChatCompletionRequest{Messages: messages})
	if err != nil {
		return nil, nil, err
	}

	decision := classify(resp.Message.Content, agents)

	switch decision {
	case multiIntentToken:
		r.logger.WithContext(ctx).Info().Str("session_id", sessionID.String()).Msg("router: multi-intent, asking user to split request")
		return &domain.RouteOutcome{MultiIntent: true, ClarificationText: multiIntentMessage(language), Language: language}, nil, nil

	case unclearToken:
		r.logger.WithContext(ctx).Info().Str("session_id", sessionID.String()).Msg("router: unclear, asking user to rephrase")
		return &domain.RouteOutcome{Unclear: true, ClarificationText: unclearMessage(language), Language: language}, nil, nil

	default:
		agent := findAgent(agents, decision)
		if agent == nil {
			// classify() only returns an agent name already present in
			// agents, so this branch is unreachable in practice; treat
			// defensively as UNCLEAR rather than panicking on a nil deref.
			return &domain.RouteOutcome{Unclear: true, ClarificationText: unclearMessage(language), Language: language}, nil, nil
		}

		result, err := r.executor.Invoke(ctx, domain.ExecutorRequest{
			Agent:       *agent,
			TenantID:    tenantID,
			SessionID:   sessionID,
			UserText:    userText,
			BearerToken: bearerToken,
			Language:    language,
		})
		if err != nil {
			return nil, nil, err
		}
		return &domain.RouteOutcome{AgentName: agent.Name, Language: language}, result, nil
	}
}

// classify parses the classifier's raw reply into an agent name or one of
// the two sentinel tokens. A bare MULTI_INTENT reply is recognized
// directly; otherwise the first line that exactly equals an authorized
// agent name wins. Anything else, including a bare UNCLEAR, degrades to
// UNCLEAR.
func classify(raw string, agents []domain.AgentSpec) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == multiIntentToken {
		return multiIntentToken
	}

	for _, line := range strings.Split(trimmed, "\n") {
		line = strings.TrimSpace(line)
		if agent := findAgent(agents, line); agent != nil {
			return agent.Name
		}
	}
	return unclearToken
}

func findAgent(agents []domain.AgentSpec, name string) *domain.AgentSpec {
	for i := range agents {
		if agents[i].Name == name {
			return &agents[i]
		}
	}
	return nil
}

func detectLanguage(text string) string {
	if vietnameseChars.MatchString(text) {
		return domain.LanguageVietnamese
	}
	return domain.LanguageEnglish
}

// classifierPrompt builds the dynamic system prompt enumerating every
// authorized agent as "name — description" and instructing the model to
// reply with exactly one agent name or one of the two sentinel tokens.
func classifierPrompt(agents []domain.AgentSpec, language string) string {
	var b strings.Builder
	b.WriteString("You are a routing classifier. Read the user's message and decide which specialist agent should handle it.\n\n")
	b.WriteString("Available agents:\n")
	for _, agent := range agents {
		fmt.Fprintf(&b, "- %s — %s\n", agent.Name, agent.Description)
	}
	b.WriteString("\nReply with exactly one of the following and nothing else: one of the agent names above, the literal token MULTI_INTENT if the message asks for more than one distinct thing, or the literal token UNCLEAR if no agent above can confidently handle it.\n")
	if language == domain.LanguageVietnamese {
		b.WriteString("The user is writing in Vietnamese.\n")
	} else {
		b.WriteString("The user is writing in English.\n")
	}
	return b.String()
}
