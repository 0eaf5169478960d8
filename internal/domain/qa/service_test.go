package qa

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	apperrors "github.com/yanqian/chat-assistant/pkg/errors"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeRepo struct {
	mu      sync.Mutex
	records map[uuid.UUID]Record
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{records: make(map[uuid.UUID]Record)}
}

func (r *fakeRepo) FindByNormalized(_ context.Context, normalized string) (Record, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, record := range r.records {
		if record.Normalized == normalized {
			return record.Clone(), true, nil
		}
	}
	return Record{}, false, nil
}

func (r *fakeRepo) Get(_ context.Context, id uuid.UUID) (Record, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.records[id]
	if !ok {
		return Record{}, false, nil
	}
	return record.Clone(), true, nil
}

func (r *fakeRepo) List(_ context.Context) ([]Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Record, 0, len(r.records))
	for _, record := range r.records {
		out = append(out, record.Clone())
	}
	return out, nil
}

func (r *fakeRepo) Save(_ context.Context, record Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[record.ID] = record.Clone()
	return nil
}

func (r *fakeRepo) Delete(_ context.Context, id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[id]; !ok {
		return false, nil
	}
	delete(r.records, id)
	return true, nil
}

type fakeCache struct {
	mu          sync.Mutex
	invalidated []string
	cleared     int
}

func (c *fakeCache) Get(context.Context, string) (CachedAnswer, bool, error) {
	return CachedAnswer{}, false, nil
}

func (c *fakeCache) Set(context.Context, string, CachedAnswer) error { return nil }

func (c *fakeCache) Invalidate(_ context.Context, normalized string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated = append(c.invalidated, normalized)
	return nil
}

func (c *fakeCache) ClearAll(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cleared++
	return nil
}

type fakeIndex struct {
	mu       sync.Mutex
	upserted []uuid.UUID
	deleted  []uuid.UUID
}

func (i *fakeIndex) Upsert(_ context.Context, recordID uuid.UUID, _ string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.upserted = append(i.upserted, recordID)
	return nil
}

func (i *fakeIndex) Search(context.Context, string) (IndexHit, bool, error) {
	return IndexHit{}, false, nil
}

func (i *fakeIndex) Delete(_ context.Context, recordID uuid.UUID) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.deleted = append(i.deleted, recordID)
	return nil
}

func newTestService(now func() time.Time) (Service, *fakeRepo, *fakeCache, *fakeIndex) {
	repo := newFakeRepo()
	cache := &fakeCache{}
	index := &fakeIndex{}
	svc := NewService(Config{Now: now}, repo, cache, index, newTestLogger())
	return svc, repo, cache, index
}

func TestService_ResolveCountsEveryCall(t *testing.T) {
	svc, _, _, index := newTestService(nil)
	ctx := context.Background()

	first, err := svc.Resolve(ctx, "What is Go?", "A programming language.", SourceDatabase, 0.9)
	require.NoError(t, err)
	require.Len(t, first.Versions, 1)
	require.EqualValues(t, 1, first.UsageCount)

	// the same answer again still appends a version and counts as usage
	second, err := svc.Resolve(ctx, "what is go", "A programming language.", SourceCache, 1.0)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Len(t, second.Versions, 2)
	require.EqualValues(t, 2, second.UsageCount)
	require.False(t, second.LastUsed.Before(first.LastUsed))

	// only the first resolution indexes the question
	require.Equal(t, []uuid.UUID{first.ID}, index.upserted)
}

func TestService_ResolveScenario(t *testing.T) {
	svc, _, _, _ := newTestService(nil)
	ctx := context.Background()

	record, err := svc.Resolve(ctx, "capital of France?", "Paris", SourceDatabase, 0.9)
	require.NoError(t, err)
	require.Len(t, record.Versions, 1)
	require.Equal(t, SourceDatabase, record.Versions[0].Source)
	require.True(t, record.Versions[0].Approved)
	require.EqualValues(t, 1, record.UsageCount)

	record, err = svc.Resolve(ctx, "capital of France?", "Paris is the capital.", SourceChatGPT, 0.6)
	require.NoError(t, err)
	require.Len(t, record.Versions, 2)
	require.Equal(t, SourceChatGPT, record.Versions[0].Source)
	require.False(t, record.Versions[0].Approved)
	require.Equal(t, "Paris is the capital.", record.CurrentAnswer)
	require.EqualValues(t, 2, record.UsageCount)

	approved, err := svc.Approve(ctx, record.ID)
	require.NoError(t, err)
	require.True(t, approved.Versions[0].Approved)
	require.Equal(t, "Paris is the capital.", approved.CurrentAnswer)
}

func TestService_ApproveIdempotent(t *testing.T) {
	svc, _, _, _ := newTestService(nil)
	ctx := context.Background()

	record, err := svc.Resolve(ctx, "hello", "generated answer", SourceChatGPT, 0.8)
	require.NoError(t, err)

	once, err := svc.Approve(ctx, record.ID)
	require.NoError(t, err)
	twice, err := svc.Approve(ctx, record.ID)
	require.NoError(t, err)
	require.Equal(t, once.Versions, twice.Versions)
	require.True(t, twice.Versions[0].Approved)
	require.Len(t, twice.Versions, 1)
}

func TestService_ApproveNothingToApprove(t *testing.T) {
	svc, _, _, _ := newTestService(nil)
	ctx := context.Background()

	record, err := svc.Resolve(ctx, "hello", "stored answer", SourceDatabase, 0.95)
	require.NoError(t, err)

	_, err = svc.Approve(ctx, record.ID)
	require.Error(t, err)
	require.True(t, apperrors.IsCode(err, "nothing_to_approve"))
}

func TestService_ApproveTargetsMostRecentChatGPTVersion(t *testing.T) {
	svc, _, _, _ := newTestService(nil)
	ctx := context.Background()

	record, err := svc.Resolve(ctx, "hello", "first draft", SourceChatGPT, 0.8)
	require.NoError(t, err)
	record, err = svc.Resolve(ctx, "hello", "second draft", SourceChatGPT, 0.8)
	require.NoError(t, err)

	approved, err := svc.Approve(ctx, record.ID)
	require.NoError(t, err)
	require.True(t, approved.Versions[0].Approved)
	require.False(t, approved.Versions[1].Approved)
}

func TestService_UpdateAnswerIsNotUsage(t *testing.T) {
	svc, _, cache, index := newTestService(nil)
	ctx := context.Background()

	record, err := svc.Resolve(ctx, "hello", "generated answer", SourceChatGPT, 0.8)
	require.NoError(t, err)

	updated, err := svc.UpdateAnswer(ctx, record.ID, "curated answer")
	require.NoError(t, err)
	require.Equal(t, "curated answer", updated.CurrentAnswer)
	require.Len(t, updated.Versions, 2)
	require.Equal(t, SourceAdmin, updated.Versions[0].Source)
	require.True(t, updated.Versions[0].Approved)
	require.Equal(t, record.UsageCount, updated.UsageCount)
	require.True(t, updated.LastUsed.Equal(record.LastUsed))

	require.Equal(t, []string{record.Normalized}, cache.invalidated)
	require.Equal(t, []uuid.UUID{record.ID, record.ID}, index.upserted)
}

func TestService_DeleteRemovesRecord(t *testing.T) {
	svc, _, cache, index := newTestService(nil)
	ctx := context.Background()

	record, err := svc.Resolve(ctx, "hello", "generated answer", SourceChatGPT, 0.8)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, record.ID))
	require.Equal(t, []uuid.UUID{record.ID}, index.deleted)
	require.NotEmpty(t, cache.invalidated)

	_, err = svc.GetRecord(ctx, record.ID)
	require.True(t, apperrors.IsCode(err, "not_found"))

	err = svc.Delete(ctx, record.ID)
	require.True(t, apperrors.IsCode(err, "not_found"))
}

func TestService_UnknownIDsFail(t *testing.T) {
	svc, _, _, _ := newTestService(nil)
	ctx := context.Background()

	missing := uuid.New()
	_, err := svc.GetRecord(ctx, missing)
	require.True(t, apperrors.IsCode(err, "not_found"))
	_, err = svc.UpdateAnswer(ctx, missing, "answer")
	require.True(t, apperrors.IsCode(err, "not_found"))
	_, err = svc.Approve(ctx, missing)
	require.True(t, apperrors.IsCode(err, "not_found"))
}

func TestService_RejectsInvalidInput(t *testing.T) {
	svc, _, _, _ := newTestService(nil)
	ctx := context.Background()

	_, err := svc.Resolve(ctx, "   ", "answer", SourceDatabase, 1)
	require.True(t, apperrors.IsCode(err, "invalid_input"))
	_, err = svc.Resolve(ctx, "question", "", SourceDatabase, 1)
	require.True(t, apperrors.IsCode(err, "invalid_input"))
	_, err = svc.Resolve(ctx, "question", "answer", Source("oracle"), 1)
	require.True(t, apperrors.IsCode(err, "invalid_input"))
}

func TestService_ListRecordsOrder(t *testing.T) {
	current := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	svc, _, _, _ := newTestService(func() time.Time { return current })
	ctx := context.Background()

	older, err := svc.Resolve(ctx, "first question", "a", SourceDatabase, 1)
	require.NoError(t, err)
	current = current.Add(time.Minute)
	newer, err := svc.Resolve(ctx, "second question", "b", SourceDatabase, 1)
	require.NoError(t, err)

	records, err := svc.ListRecords(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, newer.ID, records[0].ID)
	require.Equal(t, older.ID, records[1].ID)
}

func TestService_Statistics(t *testing.T) {
	current := time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC)
	svc, _, _, _ := newTestService(func() time.Time { return current })
	ctx := context.Background()

	yesterday, err := svc.Resolve(ctx, "old question", "old answer", SourceChatGPT, 0.8)
	require.NoError(t, err)

	current = current.Add(24 * time.Hour)
	_, err = svc.Resolve(ctx, "fresh question", "fresh answer", SourceDatabase, 0.9)
	require.NoError(t, err)
	_, err = svc.UpdateAnswer(ctx, yesterday.ID, "curated")
	require.NoError(t, err)

	stats, err := svc.Statistics(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 2, stats.TotalQA)
	require.EqualValues(t, 1, stats.ChatGPTAnswers)
	require.EqualValues(t, 1, stats.AdminAnswers)
	// only the record used today counts; the admin edit did not bump LastUsed
	require.EqualValues(t, 1, stats.TodayQuestions)
}

func TestService_ClearCacheLeavesRecordsIntact(t *testing.T) {
	svc, _, cache, _ := newTestService(nil)
	ctx := context.Background()

	record, err := svc.Resolve(ctx, "hello", "generated answer", SourceChatGPT, 0.8)
	require.NoError(t, err)

	require.NoError(t, svc.ClearCache(ctx))
	require.Equal(t, 1, cache.cleared)

	got, err := svc.GetRecord(ctx, record.ID)
	require.NoError(t, err)
	require.Len(t, got.Versions, 1)
	require.EqualValues(t, 1, got.UsageCount)
}
