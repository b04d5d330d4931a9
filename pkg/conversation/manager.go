package conversation

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/vexaai/vexa/pkg/client"
	"github.com/vexaai/vexa/pkg/errors"
	"github.com/vexaai/vexa/pkg/logging"
)

// FallbackAssistantContent is appended in place of the assistant's turn
// when a send fails. The user's message is never retracted.
const FallbackAssistantContent = "Sorry, I encountered an error processing your message. Please try again."

// API is the slice of the transport client the manager consumes.
type API interface {
	CreateChatSession(ctx context.Context, title, documentID string) (*client.ChatSession, error)
	ListChatSessions(ctx context.Context) ([]client.ChatSession, error)
	GetChatSession(ctx context.Context, sessionID string) (*client.SessionDetail, error)
	SendMessage(ctx context.Context, sessionID string, req client.ChatRequest) (*client.ChatResponse, error)
	DeleteChatSession(ctx context.Context, sessionID string) error
}

// Manager owns the chat session list, the active session, and its message
// buffer. Messages are append-only; the buffer is replaced wholesale on
// session switch so one session's history never leaks into another's view.
type Manager struct {
	api    API
	logger *logging.Logger

	mu       sync.Mutex
	sessions []client.ChatSession
	active   *client.ChatSession
	buffer   []client.ChatMessage

	// documentID per session created this process; the association is set
	// at creation and immutable thereafter.
	sessionDocs map[string]string
}

// NewManager creates a conversation manager over the given API surface.
func NewManager(api API, logger *logging.Logger) *Manager {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Manager{
		api:         api,
		logger:      logger,
		sessionDocs: make(map[string]string),
	}
}

// CreateSession creates a session, prepends it to the list (most recent
// first), and makes it active with an empty message buffer. When title is
// empty the server assigns one.
func (m *Manager) CreateSession(ctx context.Context, title, documentID string) (*client.ChatSession, error) {
	session, err := m.api.CreateChatSession(ctx, title, documentID)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.sessions = append([]client.ChatSession{*session}, m.sessions...)
	active := *session
	m.active = &active
	m.buffer = nil
	if documentID != "" {
		m.sessionDocs[session.ID] = documentID
	}
	m.mu.Unlock()

	m.logger.Info(logging.CategoryConversation, "session_created", session.Title, map[string]any{
		"session_id":  session.ID,
		"document_id": documentID,
	})
	return session, nil
}

// ListSessions fetches the session list and replaces the local snapshot
// wholesale. The active session and buffer are untouched.
func (m *Manager) ListSessions(ctx context.Context) ([]client.ChatSession, error) {
	sessions, err := m.api.ListChatSessions(ctx)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.sessions = sessions
	m.mu.Unlock()
	return sessions, nil
}

// SelectSession fetches the session's full history and makes it active,
// replacing the message buffer wholesale.
func (m *Manager) SelectSession(ctx context.Context, sessionID string) (*client.ChatSession, []client.ChatMessage, error) {
	detail, err := m.api.GetChatSession(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}

	m.mu.Lock()
	active := detail.ChatSession
	m.active = &active
	m.buffer = append([]client.ChatMessage(nil), detail.Messages...)
	messages := append([]client.ChatMessage(nil), m.buffer...)
	m.mu.Unlock()

	m.logger.SetSessionID(sessionID)
	m.logger.Info(logging.CategoryConversation, "session_selected", detail.Title, map[string]any{
		"session_id": sessionID,
		"messages":   len(messages),
	})
	session := detail.ChatSession
	return &session, messages, nil
}

// DeleteSession deletes the session server-side and removes it from the
// list. If it was active, the active session and buffer are cleared; the
// caller falls back to an idle state, never to another session.
func (m *Manager) DeleteSession(ctx context.Context, sessionID string) error {
	if err := m.api.DeleteChatSession(ctx, sessionID); err != nil {
		return err
	}

	m.mu.Lock()
	kept := m.sessions[:0]
	for _, s := range m.sessions {
		if s.ID != sessionID {
			kept = append(kept, s)
		}
	}
	m.sessions = kept
	if m.active != nil && m.active.ID == sessionID {
		m.active = nil
		m.buffer = nil
	}
	delete(m.sessionDocs, sessionID)
	m.mu.Unlock()

	m.logger.Info(logging.CategoryConversation, "session_deleted", "", map[string]any{
		"session_id": sessionID,
	})
	return nil
}

// Deactivate clears the active session and buffer without touching the
// server. The session stays in the list and can be reselected.
func (m *Manager) Deactivate() {
	m.mu.Lock()
	m.active = nil
	m.buffer = nil
	m.mu.Unlock()
}

// turnState tracks one optimistic send: the user message is committed
// before the network call and the turn then resolves or errors. Either
// way exactly one assistant message is appended and the user message
// stays, so the buffer grows by exactly two per send.
type turnState int

const (
	turnPending turnState = iota
	turnResolved
	turnErrored
)

type turn struct {
	manager *Manager
	state   turnState
}

// begin appends the optimistic user message and opens the turn.
func (m *Manager) beginTurn(text string) (*turn, client.ChatMessage) {
	userMsg := client.ChatMessage{
		ID:        ulid.Make().String(),
		Role:      client.RoleUser,
		Content:   text,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}

	m.mu.Lock()
	m.buffer = append(m.buffer, userMsg)
	m.mu.Unlock()

	return &turn{manager: m}, userMsg
}

// settle moves the turn out of pending exactly once and appends the
// closing assistant message. A turn that already resolved or errored
// ignores further transitions so one send never yields two assistant
// messages.
func (t *turn) settle(to turnState, msg client.ChatMessage) bool {
	t.manager.mu.Lock()
	defer t.manager.mu.Unlock()
	if t.state != turnPending {
		return false
	}
	t.state = to
	t.manager.buffer = append(t.manager.buffer, msg)
	return true
}

// resolve appends the assistant message mapped from the server response.
func (t *turn) resolve(resp *client.ChatResponse) client.ChatMessage {
	assistant := client.ChatMessage{
		ID:             resp.MessageID,
		Role:           client.RoleAssistant,
		Content:        resp.Content,
		CreatedAt:      resp.CreatedAt,
		TokensUsed:     resp.TokensUsed,
		ProcessingTime: resp.ProcessingTime,
	}
	t.settle(turnResolved, assistant)
	return assistant
}

// errored appends the fixed fallback assistant message with no token or
// timing metadata. The user message is never removed.
func (t *turn) errored() client.ChatMessage {
	fallback := client.ChatMessage{
		ID:        ulid.Make().String(),
		Role:      client.RoleAssistant,
		Content:   FallbackAssistantContent,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	t.settle(turnErrored, fallback)
	return fallback
}

// SendMessage runs the optimistic send against the active session:
//  1. The user message (local-clock ULID, local timestamp) is appended
//     before the network call and is never rolled back.
//  2. On success the server response is mapped into the assistant message
//     and appended.
//  3. On failure the fixed fallback assistant message is appended and the
//     error is returned for the caller's transient notification.
//
// There is no retry and no de-duplication beyond append-once.
func (m *Manager) SendMessage(ctx context.Context, sessionID, text, documentID string) (*client.ChatMessage, error) {
	m.mu.Lock()
	if m.active == nil || m.active.ID != sessionID {
		m.mu.Unlock()
		return nil, errors.New(errors.ErrCodeInvalidInput, "send targets a session that is not active").
			WithContext("session_id", sessionID)
	}
	if documentID == "" {
		documentID = m.sessionDocs[sessionID]
	}
	m.mu.Unlock()

	t, _ := m.beginTurn(text)

	resp, err := m.api.SendMessage(ctx, sessionID, client.ChatRequest{
		Message:    text,
		DocumentID: documentID,
	})
	if err != nil {
		t.errored()
		m.logger.Error(logging.CategoryConversation, "send_failed", "", map[string]any{
			"session_id": sessionID,
			"error":      err.Error(),
		})
		return nil, err
	}

	assistant := t.resolve(resp)
	m.logger.Info(logging.CategoryConversation, "message_exchanged", "", map[string]any{
		"session_id":  sessionID,
		"tokens_used": assistant.TokensUsed,
	})
	return &assistant, nil
}

// Sessions returns a copy of the session list snapshot.
func (m *Manager) Sessions() []client.ChatSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]client.ChatSession, len(m.sessions))
	copy(out, m.sessions)
	return out
}

// Active returns the active session, or nil when idle.
func (m *Manager) Active() *client.ChatSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return nil
	}
	active := *m.active
	return &active
}

// ActiveDocumentID returns the document bound to the active session, if
// the binding was made in this process.
func (m *Manager) ActiveDocumentID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return ""
	}
	return m.sessionDocs[m.active.ID]
}

// Messages returns a copy of the active message buffer.
func (m *Manager) Messages() []client.ChatMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]client.ChatMessage, len(m.buffer))
	copy(out, m.buffer)
	return out
}
