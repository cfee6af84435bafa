// Package cache is a small read-through cache for article list pages,
// backed by Redis. Pages are invalidated wholesale whenever a new article
// lands, so stale entries live at most one TTL.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"news_crawler/internal/config"
)

const pageKeyPrefix = "articles:page:"

// connectTimeout bounds the initial ping.
const connectTimeout = 5 * time.Second

// NewClient opens a Redis connection and verifies it with a ping.
func NewClient(cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return client, nil
}

// PageCache stores rendered article list pages keyed by page index.
type PageCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewPageCache(rdb *redis.Client, ttl time.Duration, logger *slog.Logger) *PageCache {
	return &PageCache{
		rdb:    rdb,
		ttl:    ttl,
		logger: logger.With("component", "cache"),
	}
}

// GetPage returns the cached payload for a page index, with ok=false on miss.
func (c *PageCache) GetPage(ctx context.Context, index int) ([]byte, bool, error) {
	payload, err := c.rdb.Get(ctx, pageKey(index)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get page %d: %w", index, err)
	}
	return payload, true, nil
}

// SetPage stores a rendered page payload under the configured TTL.
func (c *PageCache) SetPage(ctx context.Context, index int, payload []byte) error {
	if err := c.rdb.Set(ctx, pageKey(index), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("set page %d: %w", index, err)
	}
	return nil
}

// InvalidatePages deletes every cached page. Called after each stored
// article so list pages never serve an article-count one behind.
func (c *PageCache) InvalidatePages(ctx context.Context) error {
	var deleted int64
	iter := c.rdb.Scan(ctx, 0, pageKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := c.rdb.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("delete %s: %w", iter.Val(), err)
		}
		deleted++
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan pages: %w", err)
	}

	if deleted > 0 {
		c.logger.Debug("invalidated cached pages", "count", deleted)
	}
	return nil
}

func pageKey(index int) string {
	return fmt.Sprintf("%s%d", pageKeyPrefix, index)
}
