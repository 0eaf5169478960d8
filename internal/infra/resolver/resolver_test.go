package resolver

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/yanqian/chat-assistant/internal/domain/qa"
	"github.com/yanqian/chat-assistant/internal/infra/llm/chatgpt"
	"github.com/yanqian/chat-assistant/internal/infra/qacache"
	"github.com/yanqian/chat-assistant/internal/infra/qarepo"
	apperrors "github.com/yanqian/chat-assistant/pkg/errors"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubIndex struct {
	hit     qa.IndexHit
	found   bool
	err     error
	deleted []uuid.UUID
}

func (s *stubIndex) Upsert(context.Context, uuid.UUID, string) error { return nil }

func (s *stubIndex) Search(context.Context, string) (qa.IndexHit, bool, error) {
	return s.hit, s.found, s.err
}

func (s *stubIndex) Delete(_ context.Context, recordID uuid.UUID) error {
	s.deleted = append(s.deleted, recordID)
	return nil
}

type stubChat struct {
	answer string
	err    error
	calls  int
}

func (s *stubChat) CreateChatCompletion(_ context.Context, _ chatgpt.ChatCompletionRequest) (chatgpt.ChatCompletionResponse, error) {
	s.calls++
	if s.err != nil {
		return chatgpt.ChatCompletionResponse{}, s.err
	}
	return chatgpt.ChatCompletionResponse{
		Choices: []chatgpt.Choice{{Message: chatgpt.Message{Role: "assistant", Content: s.answer}}},
	}, nil
}

func newResolverUnderTest(index *stubIndex, llm *stubChat) (*Resolver, *qacache.MemoryCache, *qarepo.MemoryRepository) {
	cache := qacache.NewMemoryCache(0)
	repo := qarepo.NewMemoryRepository()
	r := New(Config{
		Model:               "gpt-4",
		SimilarityThreshold: 0.8,
	}, cache, index, repo, llm, newTestLogger())
	return r, cache, repo
}

func TestResolver_CacheHit(t *testing.T) {
	llm := &stubChat{answer: "unused"}
	r, cache, _ := newResolverUnderTest(&stubIndex{}, llm)
	ctx := context.Background()

	normalized := qa.NormalizeQuestion("What is Go?")
	require.NoError(t, cache.Set(ctx, normalized, qa.CachedAnswer{Question: "What is Go?", Answer: "A language."}))

	res, err := r.Resolve(ctx, "What is Go?")
	require.NoError(t, err)
	require.Equal(t, qa.SourceCache, res.Source)
	require.Equal(t, "A language.", res.Answer)
	require.InDelta(t, 1.0, res.Confidence, 1e-9)
	require.Zero(t, llm.calls)
}

func TestResolver_DatabaseHitCachesAnswer(t *testing.T) {
	recordID := uuid.New()
	index := &stubIndex{hit: qa.IndexHit{RecordID: recordID, Score: 0.92}, found: true}
	llm := &stubChat{answer: "unused"}
	r, cache, repo := newResolverUnderTest(index, llm)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, qa.Record{
		ID:            recordID,
		Question:      "What is Go?",
		Normalized:    qa.NormalizeQuestion("What is Go?"),
		CurrentAnswer: "A programming language.",
		Versions:      []qa.Version{{Answer: "A programming language.", Source: qa.SourceAdmin, Approved: true}},
	}))

	res, err := r.Resolve(ctx, "what is go")
	require.NoError(t, err)
	require.Equal(t, qa.SourceDatabase, res.Source)
	require.Equal(t, "A programming language.", res.Answer)
	require.InDelta(t, 0.92, res.Confidence, 1e-9)
	require.Zero(t, llm.calls)

	cached, ok, err := cache.Get(ctx, qa.NormalizeQuestion("what is go"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "A programming language.", cached.Answer)
}

func TestResolver_BelowThresholdFallsBack(t *testing.T) {
	index := &stubIndex{hit: qa.IndexHit{RecordID: uuid.New(), Score: 0.5}, found: true}
	llm := &stubChat{answer: "Generated answer."}
	r, _, _ := newResolverUnderTest(index, llm)

	res, err := r.Resolve(context.Background(), "something new")
	require.NoError(t, err)
	require.Equal(t, qa.SourceChatGPT, res.Source)
	require.Equal(t, "Generated answer.", res.Answer)
	require.InDelta(t, 0.8, res.Confidence, 1e-9)
	require.Equal(t, 1, llm.calls)
}

func TestResolver_StaleIndexEntryDropped(t *testing.T) {
	recordID := uuid.New()
	index := &stubIndex{hit: qa.IndexHit{RecordID: recordID, Score: 0.95}, found: true}
	llm := &stubChat{answer: "Generated answer."}
	r, _, _ := newResolverUnderTest(index, llm)

	res, err := r.Resolve(context.Background(), "orphaned question")
	require.NoError(t, err)
	require.Equal(t, qa.SourceChatGPT, res.Source)
	require.Equal(t, []uuid.UUID{recordID}, index.deleted)
}

func TestResolver_LLMErrorSurfaces(t *testing.T) {
	llm := &stubChat{err: errors.New("upstream down")}
	r, _, _ := newResolverUnderTest(&stubIndex{}, llm)

	_, err := r.Resolve(context.Background(), "anything")
	require.Error(t, err)
	require.True(t, apperrors.IsCode(err, "llm_error"))
}

func TestResolver_EmptyQuestionRejected(t *testing.T) {
	r, _, _ := newResolverUnderTest(&stubIndex{}, &stubChat{})

	_, err := r.Resolve(context.Background(), "   ")
	require.True(t, apperrors.IsCode(err, "invalid_input"))
}
