package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/yanqian/chat-assistant/internal/domain/chat"
	"github.com/yanqian/chat-assistant/internal/domain/qa"
	apperrors "github.com/yanqian/chat-assistant/pkg/errors"
)

const defaultResolveTimeout = 90 * time.Second

// DeliverFunc hands a finished answer frame back to the transport. It is
// called from the resolution goroutine, never while the channel lock is held.
type DeliverFunc func(frame []byte)

// Channel implements chat.Channel by resolving question frames
// asynchronously and recording every answer through the engine. Closing
// the channel stops delivery but never stops recording: an in-flight
// resolution still lands in the question log.
type Channel struct {
	resolver chat.Resolver
	engine   qa.Service
	deliver  DeliverFunc
	timeout  time.Duration
	logger   *slog.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewChannel constructs a resolution channel for one session.
func NewChannel(resolver chat.Resolver, engine qa.Service, deliver DeliverFunc, timeout time.Duration, logger *slog.Logger) *Channel {
	if timeout <= 0 {
		timeout = defaultResolveTimeout
	}
	return &Channel{
		resolver: resolver,
		engine:   engine,
		deliver:  deliver,
		timeout:  timeout,
		logger:   logger.With("component", "pipeline.channel"),
	}
}

// Send implements chat.Channel. The frame must be a question; anything
// else is logged and dropped. Resolution runs in its own goroutine with a
// detached context so that closing the session cannot cancel recording.
func (c *Channel) Send(_ context.Context, payload []byte) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return apperrors.Wrap("channel_closed", "channel is closed", nil)
	}
	c.wg.Add(1)
	c.mu.Unlock()

	decoded, err := chat.DecodeInbound(payload)
	if err != nil {
		c.wg.Done()
		c.logger.Warn("dropping malformed outbound frame", "code", "invalid_message", "error", err)
		return nil
	}
	question, ok := decoded.(chat.InboundQuestion)
	if !ok {
		c.wg.Done()
		c.logger.Warn("dropping non-question outbound frame", "code", "invalid_message")
		return nil
	}

	go c.resolve(question.Question)
	return nil
}

func (c *Channel) resolve(question string) {
	defer c.wg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	resolution, err := c.resolver.Resolve(ctx, question)
	if err != nil {
		c.logger.Error("question resolution failed", "error", err)
		return
	}

	if _, err := c.engine.Resolve(ctx, question, resolution.Answer, resolution.Source, resolution.Confidence); err != nil {
		// the answer is still worth delivering; only the bookkeeping failed
		c.logger.Error("answer recording failed", "error", err)
	}

	frame, err := chat.EncodeAnswer(chat.AnswerPayload{
		Answer:     resolution.Answer,
		Source:     resolution.Source,
		Confidence: resolution.Confidence,
	})
	if err != nil {
		c.logger.Error("encode answer failed", "error", err)
		return
	}

	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		c.logger.Debug("channel closed before delivery, answer recorded only")
		return
	}
	c.deliver(frame)
}

// Close implements chat.Channel. In-flight resolutions keep running; their
// answers are recorded but no longer delivered.
func (c *Channel) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

// Wait blocks until all in-flight resolutions have finished. Used by
// tests and graceful shutdown.
func (c *Channel) Wait() {
	c.wg.Wait()
}

var _ chat.Channel = (*Channel)(nil)
