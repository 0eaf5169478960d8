package qacache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yanqian/chat-assistant/internal/domain/qa"
)

func TestMemoryCache_SetGetInvalidate(t *testing.T) {
	cache := NewMemoryCache(0)
	ctx := context.Background()
	answer := qa.CachedAnswer{Question: "What is Go?", Answer: "A language."}

	require.NoError(t, cache.Set(ctx, "what is go", answer))

	got, ok, err := cache.Get(ctx, "what is go")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, answer, got)

	require.NoError(t, cache.Invalidate(ctx, "what is go"))

	_, ok, err = cache.Get(ctx, "what is go")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMemoryCache_MissOnUnknownKey(t *testing.T) {
	cache := NewMemoryCache(0)

	_, ok, err := cache.Get(context.Background(), "never stored")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMemoryCache_EntriesExpire(t *testing.T) {
	cache := NewMemoryCache(time.Millisecond)
	ctx := context.Background()
	require.NoError(t, cache.Set(ctx, "what is go", qa.CachedAnswer{Answer: "A language."}))

	time.Sleep(5 * time.Millisecond)

	_, ok, err := cache.Get(ctx, "what is go")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMemoryCache_EmptyKeyIsNoOp(t *testing.T) {
	cache := NewMemoryCache(0)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "", qa.CachedAnswer{Answer: "ignored"}))
	_, ok, err := cache.Get(ctx, "")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMemoryCache_ClearAll(t *testing.T) {
	cache := NewMemoryCache(0)
	ctx := context.Background()
	require.NoError(t, cache.Set(ctx, "what is go", qa.CachedAnswer{Answer: "A language."}))
	require.NoError(t, cache.Set(ctx, "capital of france", qa.CachedAnswer{Answer: "Paris"}))

	require.NoError(t, cache.ClearAll(ctx))

	_, ok, err := cache.Get(ctx, "what is go")
	require.NoError(t, err)
	require.False(t, ok)
	_, ok, err = cache.Get(ctx, "capital of france")
	require.NoError(t, err)
	require.False(t, ok)
}
