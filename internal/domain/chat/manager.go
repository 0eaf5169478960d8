package chat

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	apperrors "github.com/yanqian/chat-assistant/pkg/errors"
	"github.com/yanqian/chat-assistant/pkg/util"
)

// Manager owns one session per connected user and correlates asynchronous
// answers back to the conversation that asked.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	logger   *slog.Logger
	now      func() time.Time
}

// NewManager constructs an empty session table.
func NewManager(logger *slog.Logger) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		logger:   logger.With("component", "chat.manager"),
		now:      util.NowUTC,
	}
}

// Register creates an open session bound to the given channel. A second
// registration for the same user replaces the previous session.
func (m *Manager) Register(userID string, ch Channel) *Session {
	session := &Session{
		userID:  userID,
		state:   StateOpen,
		channel: ch,
	}
	m.mu.Lock()
	m.sessions[userID] = session
	m.mu.Unlock()
	m.logger.Info("session opened", "userId", userID)
	return session
}

// Lookup returns the live session for a user, if any.
func (m *Manager) Lookup(userID string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	session, ok := m.sessions[userID]
	return session, ok
}

// SubmitQuestion appends the user's message optimistically and enqueues a
// question frame on the channel. Empty or whitespace-only input is a
// silent no-op. Overlapping submissions queue; the log stays ordered.
func (m *Manager) SubmitQuestion(ctx context.Context, session *Session, text string) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}

	payload, err := EncodeQuestion(trimmed)
	if err != nil {
		return apperrors.Wrap("chat_error", "encode question failed", err)
	}

	session.mu.Lock()
	if session.state == StateClosed {
		session.mu.Unlock()
		return apperrors.Wrap("channel_closed", "session is closed", nil)
	}
	session.log = append(session.log, Message{
		Role:    RoleUser,
		Content: trimmed,
		SentAt:  m.now(),
	})
	session.pending++
	ch := session.channel
	session.mu.Unlock()

	if err := ch.Send(ctx, payload); err != nil {
		return apperrors.Wrap("channel_closed", "channel send failed", err)
	}
	return nil
}

// OnInbound processes a raw frame received on the session's channel.
// Answers extend the log and clear the waiting state; unknown types are
// ignored; malformed frames are logged and dropped so transport noise
// never crashes a conversation.
func (m *Manager) OnInbound(session *Session, raw []byte) error {
	session.mu.Lock()
	if session.state == StateClosed {
		session.mu.Unlock()
		return apperrors.Wrap("channel_closed", "session is closed", nil)
	}
	session.mu.Unlock()

	decoded, err := DecodeInbound(raw)
	if err != nil {
		m.logger.Warn("dropping malformed frame", "code", "invalid_message", "userId", session.userID, "error", err)
		return nil
	}

	switch msg := decoded.(type) {
	case InboundAnswer:
		session.mu.Lock()
		session.log = append(session.log, Message{
			Role:       RoleAssistant,
			Content:    msg.Payload.Answer,
			Source:     msg.Payload.Source,
			Confidence: msg.Payload.Confidence,
			SentAt:     m.now(),
		})
		if session.pending > 0 {
			session.pending--
		}
		session.mu.Unlock()
	case InboundUnknown:
		m.logger.Debug("ignoring unknown frame type", "type", msg.Type, "userId", session.userID)
	default:
		// question frames are outbound only; receiving one is noise
		m.logger.Debug("ignoring unexpected frame", "userId", session.userID)
	}
	return nil
}

// Close releases the session's channel. Any in-flight resolution keeps
// running and is still recorded by the engine; only delivery stops.
func (m *Manager) Close(session *Session) error {
	session.mu.Lock()
	if session.state == StateClosed {
		session.mu.Unlock()
		return apperrors.Wrap("channel_closed", "session already closed", nil)
	}
	session.state = StateClosed
	session.pending = 0
	ch := session.channel
	session.mu.Unlock()

	m.mu.Lock()
	if current, ok := m.sessions[session.userID]; ok && current == session {
		delete(m.sessions, session.userID)
	}
	m.mu.Unlock()

	if err := ch.Close(); err != nil {
		m.logger.Warn("channel close failed", "userId", session.userID, "error", err)
	}
	m.logger.Info("session closed", "userId", session.userID)
	return nil
}
