package chat

import (
	"context"

	"github.com/yanqian/chat-assistant/internal/domain/qa"
)

// Channel is the bidirectional message channel a session owns. The
// transport handshake and reconnection behavior live outside this core.
type Channel interface {
	Send(ctx context.Context, payload []byte) error
	Close() error
}

// Resolution is what the external answer resolver produces for a question.
type Resolution struct {
	Answer     string
	Source     qa.Source
	Confidence float64
}

// Resolver produces an answer for a natural-language question. The core
// never retries; retry and timeout policy belong to the implementation.
type Resolver interface {
	Resolve(ctx context.Context, question string) (Resolution, error)
}
