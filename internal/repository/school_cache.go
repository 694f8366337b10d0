package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/sis-directory-api/internal/models"
)

type schoolFinder interface {
	FindByID(ctx context.Context, id string) (*models.School, error)
	ListAll(ctx context.Context) ([]models.School, error)
}

// SchoolCache decorates the school lookup with a Redis read-through cache.
// School codes change rarely but are read on every allocation, so a short
// TTL keeps the hot path off Postgres. Cache failures degrade to the inner
// lookup and are only logged.
type SchoolCache struct {
	inner  schoolFinder
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewSchoolCache wraps a school repository with caching.
func NewSchoolCache(inner schoolFinder, client *redis.Client, ttl time.Duration, logger *zap.Logger) *SchoolCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SchoolCache{inner: inner, client: client, ttl: ttl, logger: logger}
}

// FindByID fetches a school, preferring the cache.
func (c *SchoolCache) FindByID(ctx context.Context, id string) (*models.School, error) {
	key := "school:" + id

	if c.client != nil {
		raw, err := c.client.Get(ctx, key).Result()
		if err == nil {
			var school models.School
			if unmarshalErr := json.Unmarshal([]byte(raw), &school); unmarshalErr == nil {
				return &school, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			c.logger.Warn("school cache read failed", zap.String("school_id", id), zap.Error(err))
		}
	}

	school, err := c.inner.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if c.client != nil {
		if raw, marshalErr := json.Marshal(school); marshalErr == nil {
			if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
				c.logger.Warn("school cache write failed", zap.String("school_id", id), zap.Error(err))
			}
		}
	}

	return school, nil
}

// ListAll bypasses the cache; reconciliation wants a fresh snapshot.
func (c *SchoolCache) ListAll(ctx context.Context) ([]models.School, error) {
	return c.inner.ListAll(ctx)
}
