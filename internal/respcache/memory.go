package respcache

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryCache is an in-process Cache for tests and single-node runs.
type MemoryCache struct {
	mu        sync.RWMutex
	scopes    map[uuid.UUID]map[uuid.UUID]Entry
	threshold float64
	ttl       time.Duration

	now func() time.Time
}

func NewMemoryCache(threshold float64, ttl time.Duration) *MemoryCache {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultSimilarityThreshold
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryCache{
		scopes:    make(map[uuid.UUID]map[uuid.UUID]Entry),
		threshold: threshold,
		ttl:       ttl,
		now:       time.Now,
	}
}

func (c *MemoryCache) Lookup(_ context.Context, ownerScope uuid.UUID, queryEmbedding []float32) (*Entry, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entries, ok := c.scopes[ownerScope]
	if !ok || len(queryEmbedding) == 0 {
		return nil, false, nil
	}

	now := c.now()
	var best *Entry
	bestScore := 0.0
	for _, e := range entries {
		if now.After(e.ExpiresAt) {
			continue
		}
		score := dot(queryEmbedding, e.QueryEmbedding)
		if score >= c.threshold && score > bestScore {
			entry := e
			best = &entry
			bestScore = score
		}
	}
	return best, best != nil, nil
}

func (c *MemoryCache) Store(_ context.Context, entry Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	now := c.now()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	if entry.ExpiresAt.IsZero() {
		entry.ExpiresAt = now.Add(c.ttl)
	}

	entries, ok := c.scopes[entry.OwnerScope]
	if !ok {
		entries = make(map[uuid.UUID]Entry)
		c.scopes[entry.OwnerScope] = entries
	}
	entries[entry.ID] = entry
	return nil
}

func (c *MemoryCache) InvalidateScope(_ context.Context, ownerScope uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.scopes, ownerScope)
	return nil
}
