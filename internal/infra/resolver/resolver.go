package resolver

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/yanqian/chat-assistant/internal/domain/chat"
	"github.com/yanqian/chat-assistant/internal/domain/qa"
	"github.com/yanqian/chat-assistant/internal/infra/llm/chatgpt"
	apperrors "github.com/yanqian/chat-assistant/pkg/errors"
)

// Config holds runtime knobs for the answer resolver.
type Config struct {
	Model               string
	Temperature         float32
	Prompt              string
	SimilarityThreshold float64
	ChatGPTConfidence   float64
	MaxAnswerTokens     int
}

// ChatClient is the slice of the ChatGPT client the resolver needs.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, req chatgpt.ChatCompletionRequest) (chatgpt.ChatCompletionResponse, error)
}

// Resolver answers questions by consulting the answer cache, then the
// similarity index over known questions, then ChatGPT. Cache and index
// failures degrade to the next step; only the generative fallback is
// allowed to fail the resolution.
type Resolver struct {
	cfg    Config
	cache  qa.AnswerCache
	index  qa.VectorIndex
	repo   qa.RecordRepository
	client ChatClient
	logger *slog.Logger
}

// New wires up the resolver.
func New(cfg Config, cache qa.AnswerCache, index qa.VectorIndex, repo qa.RecordRepository, client ChatClient, logger *slog.Logger) *Resolver {
	if cfg.ChatGPTConfidence <= 0 {
		cfg.ChatGPTConfidence = 0.8
	}
	return &Resolver{
		cfg:    cfg,
		cache:  cache,
		index:  index,
		repo:   repo,
		client: client,
		logger: logger.With("component", "resolver"),
	}
}

// Resolve implements chat.Resolver.
func (r *Resolver) Resolve(ctx context.Context, question string) (chat.Resolution, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return chat.Resolution{}, apperrors.Wrap("invalid_input", "question cannot be empty", nil)
	}
	normalized := qa.NormalizeQuestion(question)

	cached, ok, err := r.cache.Get(ctx, normalized)
	if err != nil {
		r.logger.Warn("answer cache lookup failed", "error", err)
	} else if ok {
		return chat.Resolution{Answer: cached.Answer, Source: qa.SourceCache, Confidence: 1.0}, nil
	}

	if resolution, ok := r.lookupKnown(ctx, normalized, question); ok {
		return resolution, nil
	}

	answer, err := r.askChatGPT(ctx, question)
	if err != nil {
		return chat.Resolution{}, err
	}
	return chat.Resolution{Answer: answer, Source: qa.SourceChatGPT, Confidence: r.cfg.ChatGPTConfidence}, nil
}

// lookupKnown searches the similarity index for a close enough known
// question and serves its current answer.
func (r *Resolver) lookupKnown(ctx context.Context, normalized, question string) (chat.Resolution, bool) {
	hit, found, err := r.index.Search(ctx, question)
	if err != nil {
		r.logger.Warn("similarity search failed", "error", err)
		return chat.Resolution{}, false
	}
	if !found || hit.Score < r.cfg.SimilarityThreshold {
		return chat.Resolution{}, false
	}

	record, ok, err := r.repo.Get(ctx, hit.RecordID)
	if err != nil {
		r.logger.Warn("record lookup failed", "recordId", hit.RecordID, "error", err)
		return chat.Resolution{}, false
	}
	if !ok {
		// stale index entry pointing at a deleted record
		r.logger.Warn("dropping stale index entry", "recordId", hit.RecordID)
		if err := r.index.Delete(ctx, hit.RecordID); err != nil {
			r.logger.Warn("stale index delete failed", "recordId", hit.RecordID, "error", err)
		}
		return chat.Resolution{}, false
	}

	if err := r.cache.Set(ctx, normalized, qa.CachedAnswer{Question: question, Answer: record.CurrentAnswer}); err != nil {
		r.logger.Warn("answer cache save failed", "error", err)
	}
	return chat.Resolution{Answer: record.CurrentAnswer, Source: qa.SourceDatabase, Confidence: hit.Score}, true
}

func (r *Resolver) askChatGPT(ctx context.Context, question string) (string, error) {
	prompt := strings.TrimSpace(r.cfg.Prompt)
	if prompt == "" {
		prompt = "You are a helpful personal assistant. Answer accurately and kindly."
	}
	req := chatgpt.ChatCompletionRequest{
		Model: r.cfg.Model,
		Messages: []chatgpt.Message{
			{Role: "system", Content: prompt},
			{Role: "user", Content: question},
		},
		Temperature: r.cfg.Temperature,
		MaxTokens:   r.cfg.MaxAnswerTokens,
	}
	resp, err := r.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", apperrors.Wrap("llm_error", "chatgpt request failed", err)
	}
	if len(resp.Choices) == 0 {
		return "", apperrors.Wrap("llm_error", "chatgpt returned no choices", errors.New("empty choices"))
	}
	answer := strings.TrimSpace(resp.Choices[0].Message.Content)
	if answer == "" {
		return "", apperrors.Wrap("llm_error", "chatgpt response empty", nil)
	}

	usage := resp.TokenUsage(r.cfg.Model, req)
	r.logger.Debug("chatgpt answer generated",
		"promptTokens", usage.PromptTokens,
		"completionTokens", usage.CompletionTokens,
		"totalTokens", usage.TotalTokens,
	)
	return answer, nil
}

var _ chat.Resolver = (*Resolver)(nil)
