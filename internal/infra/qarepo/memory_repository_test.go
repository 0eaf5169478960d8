package qarepo

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/yanqian/chat-assistant/internal/domain/qa"
)

func newRecord(question string) qa.Record {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return qa.Record{
		ID:            uuid.New(),
		Question:      question,
		Normalized:    qa.NormalizeQuestion(question),
		CurrentAnswer: "an answer",
		Versions: []qa.Version{
			{Answer: "an answer", Source: qa.SourceChatGPT, Confidence: 0.8, CreatedAt: now},
		},
		UsageCount: 1,
		LastUsed:   now,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func TestMemoryRepository_SaveAndLookup(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	record := newRecord("What is Go?")

	require.NoError(t, repo.Save(ctx, record))

	got, found, err := repo.Get(ctx, record.ID)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, record.Question, got.Question)

	byNorm, found, err := repo.FindByNormalized(ctx, record.Normalized)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, record.ID, byNorm.ID)
}

func TestMemoryRepository_CallersCannotMutateStoredState(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	record := newRecord("What is Go?")
	require.NoError(t, repo.Save(ctx, record))

	got, _, err := repo.Get(ctx, record.ID)
	require.NoError(t, err)
	got.Versions[0].Answer = "tampered"

	fresh, _, err := repo.Get(ctx, record.ID)
	require.NoError(t, err)
	require.Equal(t, "an answer", fresh.Versions[0].Answer)
}

func TestMemoryRepository_Delete(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	record := newRecord("What is Go?")
	require.NoError(t, repo.Save(ctx, record))

	deleted, err := repo.Delete(ctx, record.ID)
	require.NoError(t, err)
	require.True(t, deleted)

	_, found, err := repo.FindByNormalized(ctx, record.Normalized)
	require.NoError(t, err)
	require.False(t, found)

	deleted, err = repo.Delete(ctx, record.ID)
	require.NoError(t, err)
	require.False(t, deleted)
}

func TestMemoryRepository_List(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	require.NoError(t, repo.Save(ctx, newRecord("first question")))
	require.NoError(t, repo.Save(ctx, newRecord("second question")))

	records, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
}
