// Package cache provides a Redis-backed reply cache for the chat endpoint.
// Identical messages in the same language share one cached reply; concurrent
// misses for the same key are collapsed with singleflight so the fallback
// chain runs once.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/medicobot/medicobot/internal/chat"
	"github.com/medicobot/medicobot/pkg/config"
	pkgredis "github.com/medicobot/medicobot/pkg/redis"
	"golang.org/x/sync/singleflight"
)

const keyPrefix = "chat:"

// ReplyCache caches chat replies keyed by normalised message and language.
type ReplyCache struct {
	client *pkgredis.Client
	cfg    config.RedisConfig
	group  singleflight.Group
	logger *slog.Logger
	hits   atomic.Int64
	misses atomic.Int64
}

// New creates a ReplyCache over the given Redis client.
func New(client *pkgredis.Client, cfg config.RedisConfig) *ReplyCache {
	return &ReplyCache{
		client: client,
		cfg:    cfg,
		logger: slog.Default().With("component", "reply-cache"),
	}
}

// Get returns the cached reply for the message, if present. Redis errors are
// treated as misses.
func (c *ReplyCache) Get(ctx context.Context, message, language string) (*chat.Reply, bool) {
	key := c.buildKey(message, language)
	data, err := c.client.Get(ctx, key)
	if err != nil {
		if !pkgredis.IsNilError(err) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		c.misses.Add(1)
		return nil, false
	}
	var reply chat.Reply
	if err := json.Unmarshal([]byte(data), &reply); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return &reply, true
}

// Set stores a reply with the configured TTL. Failures are logged, not
// returned: a cold cache is not an error.
func (c *ReplyCache) Set(ctx context.Context, message, language string, reply *chat.Reply) {
	key := c.buildKey(message, language)
	data, err := json.Marshal(reply)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.client.Set(ctx, key, data, c.cfg.CacheTTL); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached reply or runs computeFn once per key across
// concurrent callers, caching the result. The second return reports whether
// the reply came from cache.
func (c *ReplyCache) GetOrCompute(
	ctx context.Context,
	message, language string,
	computeFn func() (*chat.Reply, error),
) (*chat.Reply, bool, error) {
	if reply, ok := c.Get(ctx, message, language); ok {
		return reply, true, nil
	}
	key := c.buildKey(message, language)
	val, err, _ := c.group.Do(key, func() (interface{}, error) {
		if reply, ok := c.Get(ctx, message, language); ok {
			return reply, nil
		}
		reply, err := computeFn()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, message, language, reply)
		return reply, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.(*chat.Reply), false, nil
}

// Invalidate removes all cached replies. Called after a corpus reload so
// stale matches are not served.
func (c *ReplyCache) Invalidate(ctx context.Context) error {
	deleted, err := c.client.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return fmt.Errorf("invalidating reply cache: %w", err)
	}
	c.logger.Info("reply cache invalidated", "keys_deleted", deleted)
	return nil
}

// Stats returns hit and miss counts since startup.
func (c *ReplyCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *ReplyCache) buildKey(message, language string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(message)), " ")
	raw := fmt.Sprintf("%s|lang=%s", normalized, language)
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}
