// Package cache holds read-through caches in front of the database.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"learnhub/backend/config"
	"learnhub/backend/models"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

// RatingSummaryCache caches per-course rating summaries. A miss returns
// (nil, nil).
type RatingSummaryCache interface {
	Get(ctx context.Context, courseID uint) (*models.RatingSummary, error)
	Set(ctx context.Context, summary models.RatingSummary) error
	Invalidate(ctx context.Context, courseID uint) error
}

// NewRatingSummaryCache returns a Redis cache when REDIS_ADDR is set, and a
// no-op cache otherwise.
func NewRatingSummaryCache(cfg *config.Config) RatingSummaryCache {
	if cfg.RedisAddr == "" {
		return NopRatingSummaryCache{}
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	return NewRedisRatingSummaryCache(client, time.Duration(cfg.RatingCacheTTLSeconds)*time.Second)
}

type RedisRatingSummaryCache struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewRedisRatingSummaryCache(client redis.UniversalClient, ttl time.Duration) *RedisRatingSummaryCache {
	return &RedisRatingSummaryCache{client: client, ttl: ttl}
}

func summaryKey(courseID uint) string {
	return fmt.Sprintf("learnhub:rating-summary:%d", courseID)
}

func (c *RedisRatingSummaryCache) Get(ctx context.Context, courseID uint) (*models.RatingSummary, error) {
	raw, err := c.client.Get(ctx, summaryKey(courseID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var s models.RatingSummary
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *RedisRatingSummaryCache) Set(ctx context.Context, summary models.RatingSummary) error {
	raw, err := json.Marshal(summary)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, summaryKey(summary.CourseID), raw, c.ttl).Err()
}

func (c *RedisRatingSummaryCache) Invalidate(ctx context.Context, courseID uint) error {
	return c.client.Del(ctx, summaryKey(courseID)).Err()
}

type NopRatingSummaryCache struct{}

func (NopRatingSummaryCache) Get(context.Context, uint) (*models.RatingSummary, error) {
	return nil, nil
}
func (NopRatingSummaryCache) Set(context.Context, models.RatingSummary) error { return nil }
func (NopRatingSummaryCache) Invalidate(context.Context, uint) error          { return nil }
