package chat

import (
	"sync"
	"time"

	"github.com/yanqian/chat-assistant/internal/domain/qa"
)

// ChannelState describes the lifecycle of a session's channel. Sessions
// are created from an already-established transport, so they start open.
type ChannelState string

const (
	StateOpen   ChannelState = "open"
	StateClosed ChannelState = "closed"
)

// Role tags a message log entry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry in a session's conversation log.
type Message struct {
	Role       Role      `json:"role"`
	Content    string    `json:"content"`
	Source     qa.Source `json:"source,omitempty"`
	Confidence float64   `json:"confidence,omitempty"`
	SentAt     time.Time `json:"sentAt"`
}

// Session is one connected user's conversational context. The message log
// is append-only and local to the session; nothing survives a disconnect.
type Session struct {
	mu      sync.Mutex
	userID  string
	state   ChannelState
	channel Channel
	log     []Message
	pending int
}

// UserID returns the owning user.
func (s *Session) UserID() string { return s.userID }

// State returns the current channel state.
func (s *Session) State() ChannelState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Waiting reports whether at least one submission is awaiting an answer.
// The loading indicator tracks the most recent submission only.
func (s *Session) Waiting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending > 0
}

// Messages returns a copy of the conversation log in delivery order.
func (s *Session) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.log...)
}
