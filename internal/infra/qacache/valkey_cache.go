package qacache

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/yanqian/chat-assistant/internal/domain/qa"
)

// ValkeyCache stores resolved answers in a Valkey-compatible database,
// keyed by a digest of the normalized question.
type ValkeyCache struct {
	client valkey.Client
	prefix string
	ttl    time.Duration
}

// NewValkeyCache constructs a cache backed by Valkey.
func NewValkeyCache(client valkey.Client, prefix string, ttl time.Duration) *ValkeyCache {
	if prefix == "" {
		prefix = "qa"
	}
	return &ValkeyCache{client: client, prefix: prefix, ttl: ttl}
}

// Get implements qa.AnswerCache.
func (c *ValkeyCache) Get(ctx context.Context, normalized string) (qa.CachedAnswer, bool, error) {
	if normalized == "" {
		return qa.CachedAnswer{}, false, nil
	}
	cmd := c.client.B().Get().Key(c.key(normalized)).Build()
	payload, err := c.client.Do(ctx, cmd).ToString()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return qa.CachedAnswer{}, false, nil
		}
		return qa.CachedAnswer{}, false, err
	}
	var answer qa.CachedAnswer
	if err := json.Unmarshal([]byte(payload), &answer); err != nil {
		return qa.CachedAnswer{}, false, err
	}
	return answer, true, nil
}

// Set implements qa.AnswerCache.
func (c *ValkeyCache) Set(ctx context.Context, normalized string, answer qa.CachedAnswer) error {
	if normalized == "" {
		return nil
	}
	payload, err := json.Marshal(answer)
	if err != nil {
		return err
	}
	builder := c.client.B().Set().Key(c.key(normalized)).Value(string(payload))
	var cmd valkey.Completed
	if c.ttl > 0 {
		ttl := c.ttl
		if ttl < time.Second {
			ttl = time.Second
		}
		cmd = builder.Ex(ttl).Build()
	} else {
		cmd = builder.Build()
	}
	return c.client.Do(ctx, cmd).Error()
}

// Invalidate implements qa.AnswerCache.
func (c *ValkeyCache) Invalidate(ctx context.Context, normalized string) error {
	if normalized == "" {
		return nil
	}
	err := c.client.Do(ctx, c.client.B().Del().Key(c.key(normalized)).Build()).Error()
	if err != nil && valkey.IsValkeyNil(err) {
		return nil
	}
	return err
}

// ClearAll implements qa.AnswerCache. Keys are discovered with SCAN so
// the server is never blocked the way KEYS would.
func (c *ValkeyCache) ClearAll(ctx context.Context) error {
	var cursor uint64
	for {
		scan := c.client.B().Scan().Cursor(cursor).Match(c.prefix + ":*").Count(100).Build()
		entry, err := c.client.Do(ctx, scan).AsScanEntry()
		if err != nil {
			return err
		}
		if len(entry.Elements) > 0 {
			del := c.client.B().Del().Key(entry.Elements...).Build()
			if err := c.client.Do(ctx, del).Error(); err != nil && !valkey.IsValkeyNil(err) {
				return err
			}
		}
		cursor = entry.Cursor
		if cursor == 0 {
			return nil
		}
	}
}

func (c *ValkeyCache) key(normalized string) string {
	digest := md5.Sum([]byte(normalized))
	return fmt.Sprintf("%s:%s", c.prefix, hex.EncodeToString(digest[:]))
}

var _ qa.AnswerCache = (*ValkeyCache)(nil)
