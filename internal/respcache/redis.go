package respcache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisCache stores entries in one hash per scope, field per entry. Scans
// the scope's entries on lookup; scopes are expected to hold at most a few
// hundred live answers.
type RedisCache struct {
	client    *redis.Client
	threshold float64
	ttl       time.Duration
}

func NewRedisCache(client *redis.Client, threshold float64, ttl time.Duration) *RedisCache {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultSimilarityThreshold
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisCache{client: client, threshold: threshold, ttl: ttl}
}

func scopeKey(ownerScope uuid.UUID) string {
	return "respcache:" + ownerScope.String()
}

func (c *RedisCache) Lookup(ctx context.Context, ownerScope uuid.UUID, queryEmbedding []float32) (*Entry, bool, error) {
	if len(queryEmbedding) == 0 {
		return nil, false, nil
	}

	fields, err := c.client.HGetAll(ctx, scopeKey(ownerScope)).Result()
	if err != nil {
		return nil, false, fmt.Errorf("cache lookup: %w", err)
	}

	now := time.Now()
	var best *Entry
	bestScore := 0.0
	var expired []string

	for field, raw := range fields {
		var e Entry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			expired = append(expired, field)
			continue
		}
		if now.After(e.ExpiresAt) {
			expired = append(expired, field)
			continue
		}
		score := dot(queryEmbedding, e.QueryEmbedding)
		if score >= c.threshold && score > bestScore {
			entry := e
			best = &entry
			bestScore = score
		}
	}

	if len(expired) > 0 {
		if err := c.client.HDel(ctx, scopeKey(ownerScope), expired...).Err(); err != nil {
			slog.Debug("failed to drop expired cache entries", "error", err)
		}
	}

	return best, best != nil, nil
}

func (c *RedisCache) Store(ctx context.Context, entry Entry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	now := time.Now()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	if entry.ExpiresAt.IsZero() {
		entry.ExpiresAt = now.Add(c.ttl)
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	key := scopeKey(entry.OwnerScope)
	pipe := c.client.Pipeline()
	pipe.HSet(ctx, key, entry.ID.String(), data)
	pipe.Expire(ctx, key, c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache store: %w", err)
	}
	return nil
}

func (c *RedisCache) InvalidateScope(ctx context.Context, ownerScope uuid.UUID) error {
	if err := c.client.Del(ctx, scopeKey(ownerScope)).Err(); err != nil {
		return fmt.Errorf("cache invalidate: %w", err)
	}
	return nil
}

// dot is cosine similarity for unit-length vectors.
func dot(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
