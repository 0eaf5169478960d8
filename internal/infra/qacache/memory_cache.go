package qacache

import (
	"context"
	"sync"
	"time"

	"github.com/yanqian/chat-assistant/internal/domain/qa"
)

type cachedEntry struct {
	payload   qa.CachedAnswer
	expiresAt time.Time
}

// MemoryCache is an in-memory qa.AnswerCache for tests/dev.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]cachedEntry
	ttl     time.Duration
}

// NewMemoryCache constructs a cache backed by process memory.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]cachedEntry),
		ttl:     ttl,
	}
}

// Get implements qa.AnswerCache.
func (c *MemoryCache) Get(_ context.Context, normalized string) (qa.CachedAnswer, bool, error) {
	if normalized == "" {
		return qa.CachedAnswer{}, false, nil
	}
	c.mu.RLock()
	entry, ok := c.entries[normalized]
	c.mu.RUnlock()
	if !ok {
		return qa.CachedAnswer{}, false, nil
	}
	if hasExpired(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, normalized)
		c.mu.Unlock()
		return qa.CachedAnswer{}, false, nil
	}
	return entry.payload, true, nil
}

// Set implements qa.AnswerCache.
func (c *MemoryCache) Set(_ context.Context, normalized string, answer qa.CachedAnswer) error {
	if normalized == "" {
		return nil
	}
	exp := time.Time{}
	if c.ttl > 0 {
		exp = time.Now().Add(c.ttl)
	}
	c.mu.Lock()
	c.entries[normalized] = cachedEntry{payload: answer, expiresAt: exp}
	c.mu.Unlock()
	return nil
}

// Invalidate implements qa.AnswerCache.
func (c *MemoryCache) Invalidate(_ context.Context, normalized string) error {
	c.mu.Lock()
	delete(c.entries, normalized)
	c.mu.Unlock()
	return nil
}

// ClearAll implements qa.AnswerCache.
func (c *MemoryCache) ClearAll(_ context.Context) error {
	c.mu.Lock()
	c.entries = make(map[string]cachedEntry)
	c.mu.Unlock()
	return nil
}

func hasExpired(ts time.Time) bool {
	if ts.IsZero() {
		return false
	}
	return ts.Before(time.Now())
}

var _ qa.AnswerCache = (*MemoryCache)(nil)
